package timetable_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ratiba/core/timetable"
	"github.com/trezcool/ratiba/storage/database/inmem"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// seedTerm sets up one Monday 09:00-10:00 assignment inside an active
// 2025/2026 academic year whose first session runs Sep-Dec 2025.
func seedTerm(t *testing.T, db *inmem.DB) (timetable.Assignment, timetable.StudentGroup, timetable.Teacher) {
	t.Helper()

	courses := db.SeedCourses(timetable.Course{Code: "MATH101", Department: "Math", PeriodsPerWeek: 1})
	teachers := db.SeedTeachers(timetable.Teacher{Name: "Ada", Department: "Math"})
	rooms := db.SeedClassrooms(timetable.Classroom{Number: "A1", Capacity: 30})
	slots := db.SeedTimeSlots(timetable.TimeSlot{Day: time.Monday, Start: timetable.MustTimeOfDay("09:00"), End: timetable.MustTimeOfDay("10:00")})
	groups := db.SeedGroups(timetable.StudentGroup{Name: "M1", Department: "Math", Year: 1, Semester: 1, CourseIDs: []string{courses[0].ID}})

	years := db.SeedAcademicYears(timetable.AcademicYear{
		Name: "2025/2026", StartDate: date(2025, 9, 1), EndDate: date(2026, 7, 1), IsActive: true,
	})
	db.SeedSessions(timetable.Session{
		AcademicYearID: years[0].ID, Name: "Fall", StartDate: date(2025, 9, 1), EndDate: date(2025, 12, 20),
	})

	assignments := db.SeedAssignments(timetable.Assignment{
		GroupID:   groups[0].ID,
		CourseID:  courses[0].ID,
		TeacherID: teachers[0].ID,
		RoomID:    rooms[0].ID,
		SlotID:    slots[0].ID,
	})
	return assignments[0], groups[0], teachers[0]
}

func TestService_Materialise(t *testing.T) {
	ctx := context.Background()

	t.Run("one week, one instance", func(t *testing.T) {
		svc, db := newSvc(t)
		assignment, _, _ := seedTerm(t, db)

		instances, err := svc.Materialise(ctx, date(2025, 9, 1), date(2025, 9, 8), timetable.Scope{})
		require.NoError(t, err)
		require.Len(t, instances, 1)

		inst := instances[0]
		assert.Equal(t, timetable.MakeInstanceID(assignment.ID, date(2025, 9, 1)), inst.ID)
		assert.Equal(t, assignment.ID, inst.Assignment.ID)
		assert.True(t, inst.Date.Equal(date(2025, 9, 1)))

		start, end := inst.Window()
		assert.Equal(t, time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC), start)
		assert.Equal(t, time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC), end)
	})

	t.Run("weekly recurrence over the session", func(t *testing.T) {
		svc, db := newSvc(t)
		seedTerm(t, db)

		instances, err := svc.Materialise(ctx, date(2025, 9, 1), date(2025, 10, 1), timetable.Scope{})
		require.NoError(t, err)
		assert.Len(t, instances, 5) // Sep 1, 8, 15, 22, 29
	})

	t.Run("holidays are skipped", func(t *testing.T) {
		svc, db := newSvc(t)
		assignment, _, _ := seedTerm(t, db)

		years, err := inmem.NewTimetableRepository(db).QueryAcademicYears(ctx)
		require.NoError(t, err)
		db.SeedHolidays(timetable.Holiday{
			AcademicYearID: years[0].ID, Name: "Founders' week",
			StartDate: date(2025, 9, 1), EndDate: date(2025, 9, 8),
		})

		instances, err := svc.Materialise(ctx, date(2025, 9, 1), date(2025, 9, 15), timetable.Scope{})
		require.NoError(t, err)
		require.Len(t, instances, 1)
		assert.Equal(t, timetable.MakeInstanceID(assignment.ID, date(2025, 9, 8)), instances[0].ID)
	})

	t.Run("out of session", func(t *testing.T) {
		svc, db := newSvc(t)
		seedTerm(t, db)

		// the year is active but no session covers January
		instances, err := svc.Materialise(ctx, date(2026, 1, 5), date(2026, 1, 12), timetable.Scope{})
		require.NoError(t, err)
		assert.Empty(t, instances)
	})

	t.Run("no active year", func(t *testing.T) {
		svc, db := newSvc(t)
		seedTerm(t, db)

		instances, err := svc.Materialise(ctx, date(2030, 9, 2), date(2030, 9, 9), timetable.Scope{})
		require.NoError(t, err)
		assert.Empty(t, instances)
	})

	t.Run("repeated calls agree", func(t *testing.T) {
		svc, db := newSvc(t)
		seedTerm(t, db)

		first, err := svc.Materialise(ctx, date(2025, 9, 1), date(2025, 10, 1), timetable.Scope{})
		require.NoError(t, err)
		second, err := svc.Materialise(ctx, date(2025, 9, 1), date(2025, 10, 1), timetable.Scope{})
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("callers cannot corrupt the cache", func(t *testing.T) {
		svc, db := newSvc(t)
		seedTerm(t, db)

		first, err := svc.Materialise(ctx, date(2025, 9, 1), date(2025, 9, 8), timetable.Scope{})
		require.NoError(t, err)
		require.NotEmpty(t, first)
		want := first[0].ID
		first[0].ID = "mangled"

		second, err := svc.Materialise(ctx, date(2025, 9, 1), date(2025, 9, 8), timetable.Scope{})
		require.NoError(t, err)
		require.NotEmpty(t, second)
		assert.Equal(t, want, second[0].ID)
	})

	t.Run("scopes", func(t *testing.T) {
		svc, db := newSvc(t)
		_, group, teacher := seedTerm(t, db)
		students := db.SeedStudents(timetable.Student{Name: "Asha", GroupID: group.ID})

		week := func(scope timetable.Scope) []timetable.ClassInstance {
			instances, err := svc.Materialise(ctx, date(2025, 9, 1), date(2025, 9, 8), scope)
			require.NoError(t, err)
			return instances
		}

		assert.Len(t, week(timetable.Scope{GroupID: group.ID}), 1)
		assert.Len(t, week(timetable.Scope{TeacherID: teacher.ID}), 1)
		assert.Len(t, week(timetable.Scope{StudentID: students[0].ID}), 1)
		assert.Empty(t, week(timetable.Scope{GroupID: "other"}))
		assert.Empty(t, week(timetable.Scope{TeacherID: "other"}))

		_, err := svc.Materialise(ctx, date(2025, 9, 1), date(2025, 9, 8), timetable.Scope{StudentID: "ghost"})
		assert.ErrorIs(t, err, timetable.ErrNotFound)
	})
}

func TestService_GetInstance(t *testing.T) {
	ctx := context.Background()
	svc, db := newSvc(t)
	assignment, _, _ := seedTerm(t, db)

	t.Run("valid", func(t *testing.T) {
		inst, err := svc.GetInstance(ctx, timetable.MakeInstanceID(assignment.ID, date(2025, 9, 1)))
		require.NoError(t, err)
		assert.Equal(t, assignment.ID, inst.Assignment.ID)
		assert.True(t, inst.Date.Equal(date(2025, 9, 1)))
	})

	t.Run("wrong weekday", func(t *testing.T) {
		// 2025-09-02 is a Tuesday; the slot runs on Mondays
		_, err := svc.GetInstance(ctx, timetable.MakeInstanceID(assignment.ID, date(2025, 9, 2)))
		assert.ErrorIs(t, err, timetable.ErrNotFound)
	})

	t.Run("outside the calendar", func(t *testing.T) {
		_, err := svc.GetInstance(ctx, timetable.MakeInstanceID(assignment.ID, date(2030, 9, 2)))
		assert.ErrorIs(t, err, timetable.ErrNotFound)
	})

	t.Run("unknown assignment", func(t *testing.T) {
		_, err := svc.GetInstance(ctx, timetable.MakeInstanceID("ghost", date(2025, 9, 1)))
		assert.ErrorIs(t, err, timetable.ErrNotFound)
	})

	t.Run("malformed id", func(t *testing.T) {
		_, err := svc.GetInstance(ctx, "not-an-instance")
		assert.ErrorIs(t, err, timetable.ErrNotFound)
	})
}
