package inmem

import (
	"context"
	"sort"

	"github.com/samber/lo"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/timetable"
)

type timetableRepo struct {
	db *DB
}

var _ timetable.Repository = (*timetableRepo)(nil)

func NewTimetableRepository(db *DB) timetable.Repository {
	return &timetableRepo{db: db}
}

// values returns a map's values sorted by ID for deterministic reads.
func values[T any](m map[string]T) []T {
	keys := lo.Keys(m)
	sort.Strings(keys)
	out := make([]T, 0, len(m))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

func (repo *timetableRepo) Generation(_ context.Context, _ ...core.DBExecutor) (int64, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.db.gen, nil
}

func (repo *timetableRepo) QueryCourses(_ context.Context, _ ...core.DBExecutor) ([]timetable.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return values(repo.db.courses), nil
}

func (repo *timetableRepo) GetCourse(_ context.Context, id string, _ ...core.DBExecutor) (timetable.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	c, ok := repo.db.courses[id]
	if !ok {
		return timetable.Course{}, timetable.ErrNotFound
	}
	return c, nil
}

func (repo *timetableRepo) QueryTeachers(_ context.Context, _ ...core.DBExecutor) ([]timetable.Teacher, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return values(repo.db.teachers), nil
}

func (repo *timetableRepo) GetTeacher(_ context.Context, id string, _ ...core.DBExecutor) (timetable.Teacher, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	t, ok := repo.db.teachers[id]
	if !ok {
		return timetable.Teacher{}, timetable.ErrNotFound
	}
	return t, nil
}

func (repo *timetableRepo) QueryClassrooms(_ context.Context, _ ...core.DBExecutor) ([]timetable.Classroom, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return values(repo.db.rooms), nil
}

func (repo *timetableRepo) QueryTimeSlots(_ context.Context, _ ...core.DBExecutor) ([]timetable.TimeSlot, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return values(repo.db.slots), nil
}

func (repo *timetableRepo) QueryGroups(_ context.Context, _ ...core.DBExecutor) ([]timetable.StudentGroup, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return values(repo.db.groups), nil
}

func (repo *timetableRepo) GetGroup(_ context.Context, id string, _ ...core.DBExecutor) (timetable.StudentGroup, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	g, ok := repo.db.groups[id]
	if !ok {
		return timetable.StudentGroup{}, timetable.ErrNotFound
	}
	return g, nil
}

func (repo *timetableRepo) GetStudent(_ context.Context, id string, _ ...core.DBExecutor) (timetable.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	s, ok := repo.db.students[id]
	if !ok {
		return timetable.Student{}, timetable.ErrNotFound
	}
	return s, nil
}

func (repo *timetableRepo) QueryGroupStudents(_ context.Context, groupID string, _ ...core.DBExecutor) ([]timetable.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return lo.Filter(values(repo.db.students), func(s timetable.Student, _ int) bool {
		return s.GroupID == groupID
	}), nil
}

func (repo *timetableRepo) QueryAcademicYears(_ context.Context, _ ...core.DBExecutor) ([]timetable.AcademicYear, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return values(repo.db.years), nil
}

func (repo *timetableRepo) QuerySessions(_ context.Context, _ ...core.DBExecutor) ([]timetable.Session, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return values(repo.db.sessions), nil
}

func (repo *timetableRepo) QueryHolidays(_ context.Context, _ ...core.DBExecutor) ([]timetable.Holiday, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return values(repo.db.holidays), nil
}

func (repo *timetableRepo) QueryAssignments(_ context.Context, filter timetable.AssignmentFilter, _ ...core.DBExecutor) ([]timetable.Assignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return lo.Filter(values(repo.db.assignments), func(a timetable.Assignment, _ int) bool {
		if len(filter.GroupIDs) > 0 && !lo.Contains(filter.GroupIDs, a.GroupID) {
			return false
		}
		if filter.TeacherID != "" && a.TeacherID != filter.TeacherID {
			return false
		}
		if filter.Day != nil {
			slot, ok := repo.db.slots[a.SlotID]
			if !ok || slot.Day != *filter.Day {
				return false
			}
		}
		return true
	}), nil
}

func (repo *timetableRepo) GetAssignment(_ context.Context, id string, _ ...core.DBExecutor) (timetable.Assignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	a, ok := repo.db.assignments[id]
	if !ok {
		return timetable.Assignment{}, timetable.ErrNotFound
	}
	return a, nil
}

func (repo *timetableRepo) ReplaceAssignments(_ context.Context, groupIDs []string, assignments []timetable.Assignment, _ ...core.DBExecutor) ([]timetable.Assignment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	for id, a := range repo.db.assignments {
		if lo.Contains(groupIDs, a.GroupID) {
			delete(repo.db.assignments, id)
		}
	}
	replaced := make([]timetable.Assignment, 0, len(assignments))
	for _, a := range assignments {
		a.ID = newID(a.ID)
		repo.db.assignments[a.ID] = a
		replaced = append(replaced, a)
	}
	repo.db.bump()
	return replaced, nil
}
