// Package inmem implements the core repository ports in memory. Used by
// tests and local development; behaviour mirrors the SQL adapters, domain
// sentinels included.
package inmem

import (
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/ratiba/core/attendance"
	"github.com/trezcool/ratiba/core/timetable"
)

type DB struct {
	mu  sync.RWMutex
	gen int64

	// txMu serialises Transact brackets so a rollback restores a
	// consistent snapshot.
	txMu sync.Mutex

	courses  map[string]timetable.Course
	teachers map[string]timetable.Teacher
	rooms    map[string]timetable.Classroom
	slots    map[string]timetable.TimeSlot
	groups   map[string]timetable.StudentGroup
	students map[string]timetable.Student

	years    map[string]timetable.AcademicYear
	sessions map[string]timetable.Session
	holidays map[string]timetable.Holiday

	assignments map[string]timetable.Assignment

	tokens  map[string]attendance.Token  // by ID
	records map[string]attendance.Record // by (studentID|instanceID)
	markers map[string]bool
}

func NewDB() *DB {
	return &DB{
		gen:         1,
		courses:     make(map[string]timetable.Course),
		teachers:    make(map[string]timetable.Teacher),
		rooms:       make(map[string]timetable.Classroom),
		slots:       make(map[string]timetable.TimeSlot),
		groups:      make(map[string]timetable.StudentGroup),
		students:    make(map[string]timetable.Student),
		years:       make(map[string]timetable.AcademicYear),
		sessions:    make(map[string]timetable.Session),
		holidays:    make(map[string]timetable.Holiday),
		assignments: make(map[string]timetable.Assignment),
		tokens:      make(map[string]attendance.Token),
		records:     make(map[string]attendance.Record),
		markers:     make(map[string]bool),
	}
}

func newID(id string) string {
	if id == "" {
		return uuid.New().String()
	}
	return id
}

func recordKey(studentID, instanceID string) string {
	return studentID + "|" + instanceID
}

func copyMap[T any](m map[string]T) map[string]T {
	out := make(map[string]T, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// bump invalidates generation-keyed caches. Callers must hold db.mu.
func (db *DB) bump() { db.gen++ }

func (db *DB) SeedCourses(courses ...timetable.Course) []timetable.Course {
	db.mu.Lock()
	defer db.mu.Unlock()
	for i := range courses {
		courses[i].ID = newID(courses[i].ID)
		db.courses[courses[i].ID] = courses[i]
	}
	db.bump()
	return courses
}

func (db *DB) SeedTeachers(teachers ...timetable.Teacher) []timetable.Teacher {
	db.mu.Lock()
	defer db.mu.Unlock()
	for i := range teachers {
		teachers[i].ID = newID(teachers[i].ID)
		db.teachers[teachers[i].ID] = teachers[i]
	}
	db.bump()
	return teachers
}

func (db *DB) SeedClassrooms(rooms ...timetable.Classroom) []timetable.Classroom {
	db.mu.Lock()
	defer db.mu.Unlock()
	for i := range rooms {
		rooms[i].ID = newID(rooms[i].ID)
		db.rooms[rooms[i].ID] = rooms[i]
	}
	db.bump()
	return rooms
}

func (db *DB) SeedTimeSlots(slots ...timetable.TimeSlot) []timetable.TimeSlot {
	db.mu.Lock()
	defer db.mu.Unlock()
	for i := range slots {
		slots[i].ID = newID(slots[i].ID)
		db.slots[slots[i].ID] = slots[i]
	}
	db.bump()
	return slots
}

func (db *DB) SeedGroups(groups ...timetable.StudentGroup) []timetable.StudentGroup {
	db.mu.Lock()
	defer db.mu.Unlock()
	for i := range groups {
		groups[i].ID = newID(groups[i].ID)
		db.groups[groups[i].ID] = groups[i]
	}
	db.bump()
	return groups
}

func (db *DB) SeedStudents(students ...timetable.Student) []timetable.Student {
	db.mu.Lock()
	defer db.mu.Unlock()
	for i := range students {
		students[i].ID = newID(students[i].ID)
		db.students[students[i].ID] = students[i]
	}
	db.bump()
	return students
}

func (db *DB) SeedAcademicYears(years ...timetable.AcademicYear) []timetable.AcademicYear {
	db.mu.Lock()
	defer db.mu.Unlock()
	for i := range years {
		years[i].ID = newID(years[i].ID)
		db.years[years[i].ID] = years[i]
	}
	db.bump()
	return years
}

func (db *DB) SeedSessions(sessions ...timetable.Session) []timetable.Session {
	db.mu.Lock()
	defer db.mu.Unlock()
	for i := range sessions {
		sessions[i].ID = newID(sessions[i].ID)
		db.sessions[sessions[i].ID] = sessions[i]
	}
	db.bump()
	return sessions
}

func (db *DB) SeedHolidays(holidays ...timetable.Holiday) []timetable.Holiday {
	db.mu.Lock()
	defer db.mu.Unlock()
	for i := range holidays {
		holidays[i].ID = newID(holidays[i].ID)
		db.holidays[holidays[i].ID] = holidays[i]
	}
	db.bump()
	return holidays
}

func (db *DB) SeedAssignments(assignments ...timetable.Assignment) []timetable.Assignment {
	db.mu.Lock()
	defer db.mu.Unlock()
	for i := range assignments {
		assignments[i].ID = newID(assignments[i].ID)
		db.assignments[assignments[i].ID] = assignments[i]
	}
	db.bump()
	return assignments
}

func (db *DB) SeedAuthorisedMarkers(ids ...string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, id := range ids {
		db.markers[id] = true
	}
	db.bump()
}
