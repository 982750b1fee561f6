package timetable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeOfDay(t *testing.T) {
	t.Run("parse", func(t *testing.T) {
		tests := []struct {
			in      string
			want    TimeOfDay
			wantErr bool
		}{
			{in: "00:00", want: 0},
			{in: "08:30", want: 8*60 + 30},
			{in: "23:59", want: 23*60 + 59},
			{in: " 09:00 ", want: 9 * 60}, // whitespace tolerated
			{in: "24:00", wantErr: true},
			{in: "9am", wantErr: true},
			{in: "", wantErr: true},
		}
		for _, tt := range tests {
			got, err := ParseTimeOfDay(tt.in)
			if tt.wantErr {
				assert.Error(t, err, tt.in)
				continue
			}
			require.NoError(t, err, tt.in)
			assert.Equal(t, tt.want, got, tt.in)
		}
	})

	t.Run("string round-trip", func(t *testing.T) {
		assert.Equal(t, "08:05", MustTimeOfDay("08:05").String())
		assert.Equal(t, "00:00", TimeOfDay(0).String())
	})

	t.Run("on date", func(t *testing.T) {
		date := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
		got := MustTimeOfDay("09:15").On(date)
		assert.Equal(t, time.Date(2025, 9, 1, 9, 15, 0, 0, time.UTC), got)
	})
}

func TestEquipmentSet(t *testing.T) {
	t.Run("normalisation", func(t *testing.T) {
		set := NewEquipmentSet(" Projector", "whiteboard", "PROJECTOR", "", "ac")
		assert.Equal(t, EquipmentSet{"ac", "projector", "whiteboard"}, set)
	})

	t.Run("covers", func(t *testing.T) {
		tests := []struct {
			name     string
			have     EquipmentSet
			required EquipmentSet
			want     bool
		}{
			{name: "empty requirement", have: NewEquipmentSet(), required: NewEquipmentSet(), want: true},
			{name: "exact", have: NewEquipmentSet("projector"), required: NewEquipmentSet("projector"), want: true},
			{name: "available is superstring", have: NewEquipmentSet("smart-whiteboard", "ac"), required: NewEquipmentSet("whiteboard"), want: true},
			{name: "required is superstring", have: NewEquipmentSet("whiteboard"), required: NewEquipmentSet("smart-whiteboard"), want: true},
			{name: "case-insensitive", have: NewEquipmentSet("ProJector"), required: NewEquipmentSet("PROJECTOR"), want: true},
			{name: "missing", have: NewEquipmentSet("ac"), required: NewEquipmentSet("projector"), want: false},
			{name: "one of two missing", have: NewEquipmentSet("projector"), required: NewEquipmentSet("projector", "lab-bench"), want: false},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				assert.Equal(t, tt.want, tt.have.Covers(tt.required))
			})
		}
	})
}

func TestTeacher_EligibleFor(t *testing.T) {
	math := Course{Code: "MATH101", Department: "Math"}

	tests := []struct {
		name    string
		teacher Teacher
		want    bool
	}{
		{name: "empty qualifications is a wild-card", teacher: Teacher{}, want: true},
		{name: "matching qualification", teacher: Teacher{Qualifications: []string{"Math"}}, want: true},
		{name: "case-insensitive match", teacher: Teacher{Qualifications: []string{"mAtH"}}, want: true},
		{name: "one of many", teacher: Teacher{Qualifications: []string{"Physics", "Math"}}, want: true},
		{name: "no match", teacher: Teacher{Qualifications: []string{"Physics"}}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.teacher.EligibleFor(math))
		})
	}
}

func TestClassroom_Fits(t *testing.T) {
	course := Course{MinCapacity: 30, RequiredEquipment: NewEquipmentSet("whiteboard")}

	assert.True(t, Classroom{Capacity: 30, Equipment: NewEquipmentSet("smart-whiteboard")}.Fits(course))
	assert.False(t, Classroom{Capacity: 29, Equipment: NewEquipmentSet("whiteboard")}.Fits(course), "capacity short by one")
	assert.False(t, Classroom{Capacity: 40, Equipment: NewEquipmentSet("ac")}.Fits(course), "equipment missing")
}

func TestInstanceID(t *testing.T) {
	date := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	id := MakeInstanceID("a1b2", date)
	assert.Equal(t, "a1b2:2025-09-01", id)

	assignmentID, parsed, err := ParseInstanceID(id, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "a1b2", assignmentID)
	assert.True(t, parsed.Equal(date))

	for _, bad := range []string{"", "nodate", ":2025-09-01", "a1b2:", "a1b2:september"} {
		_, _, err := ParseInstanceID(bad, time.UTC)
		assert.ErrorIs(t, err, ErrNotFound, bad)
	}
}
