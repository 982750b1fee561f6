package sweepersvc

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ratiba/core/attendance"
	"github.com/trezcool/ratiba/core/timetable"
	logsvc "github.com/trezcool/ratiba/services/logger"
	"github.com/trezcool/ratiba/storage/database/inmem"
)

var classDate = time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC) // a Monday

func setup(t *testing.T) (*Sweeper, *inmem.DB, string) {
	t.Helper()

	db := inmem.NewDB()
	logger := logsvc.NewConsoleLogger(log.New(io.Discard, "", 0))
	classes := timetable.NewService(inmem.NewTimetableRepository(db), logger, time.UTC)
	att := attendance.NewService(inmem.NewAttendanceRepository(db), classes, logger)

	courses := db.SeedCourses(timetable.Course{Code: "MATH101", Department: "Math", PeriodsPerWeek: 1})
	teachers := db.SeedTeachers(timetable.Teacher{Name: "Ada", Department: "Math"})
	rooms := db.SeedClassrooms(timetable.Classroom{Number: "A1", Capacity: 30})
	slots := db.SeedTimeSlots(timetable.TimeSlot{Day: time.Monday, Start: timetable.MustTimeOfDay("09:00"), End: timetable.MustTimeOfDay("10:00")})
	groups := db.SeedGroups(timetable.StudentGroup{Name: "M1", Department: "Math", Year: 1, Semester: 1, CourseIDs: []string{courses[0].ID}})
	db.SeedStudents(
		timetable.Student{Name: "Asha", GroupID: groups[0].ID},
		timetable.Student{Name: "Biko", GroupID: groups[0].ID},
	)
	years := db.SeedAcademicYears(timetable.AcademicYear{
		Name: "2025/2026", StartDate: classDate, EndDate: classDate.AddDate(1, 0, 0), IsActive: true,
	})
	db.SeedSessions(timetable.Session{
		AcademicYearID: years[0].ID, Name: "Fall", StartDate: classDate, EndDate: classDate.AddDate(0, 4, 0),
	})
	assignments := db.SeedAssignments(timetable.Assignment{
		GroupID:   groups[0].ID,
		CourseID:  courses[0].ID,
		TeacherID: teachers[0].ID,
		RoomID:    rooms[0].ID,
		SlotID:    slots[0].ID,
	})

	instanceID := timetable.MakeInstanceID(assignments[0].ID, classDate)
	return NewSweeper(classes, att, logger, ""), db, instanceID
}

func TestSweeper_Run(t *testing.T) {
	ctx := context.Background()
	defer func() { nowFunc = time.Now }()

	sweeper, db, instanceID := setup(t)
	repo := inmem.NewAttendanceRepository(db)

	// mid-class: the window has not ended, nothing is marked
	nowFunc = func() time.Time { return classDate.Add(9*time.Hour + 30*time.Minute) }
	require.NoError(t, sweeper.Run(ctx))
	records, err := repo.QueryInstanceRecords(ctx, instanceID)
	require.NoError(t, err)
	assert.Empty(t, records)

	// after the window: both students marked absent
	nowFunc = func() time.Time { return classDate.Add(10*time.Hour + time.Minute) }
	require.NoError(t, sweeper.Run(ctx))
	records, err = repo.QueryInstanceRecords(ctx, instanceID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.Equal(t, attendance.StatusAbsent, rec.Status)
		assert.Empty(t, rec.Marker)
	}

	// repeat runs never duplicate
	require.NoError(t, sweeper.Run(ctx))
	records, err = repo.QueryInstanceRecords(ctx, instanceID)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
