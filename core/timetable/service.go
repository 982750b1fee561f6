package timetable

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/ratiba/core"
)

type (
	// AssignmentFilter applies an AND operation on its non-zero fields.
	AssignmentFilter struct {
		GroupIDs  []string
		TeacherID string
		Day       *time.Weekday
	}

	// Repository is the read/write port the core calls. Entity records are
	// managed externally; the core only reads them, replaces assignments and
	// observes the generation counter.
	//
	// Generation returns a counter that every entity or assignment mutation
	// bumps; in-process caches are keyed by it. ReplaceAssignments is the
	// transactional unit bracketing assignment replacement: it atomically
	// clears all assignments of the given groups, writes the new set and
	// bumps the generation. Readers see either the entire prior set or the
	// entire new set.
	Repository interface {
		Generation(ctx context.Context, exec ...core.DBExecutor) (int64, error)

		QueryCourses(ctx context.Context, exec ...core.DBExecutor) ([]Course, error)
		GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (Course, error)
		QueryTeachers(ctx context.Context, exec ...core.DBExecutor) ([]Teacher, error)
		GetTeacher(ctx context.Context, id string, exec ...core.DBExecutor) (Teacher, error)
		QueryClassrooms(ctx context.Context, exec ...core.DBExecutor) ([]Classroom, error)
		QueryTimeSlots(ctx context.Context, exec ...core.DBExecutor) ([]TimeSlot, error)
		QueryGroups(ctx context.Context, exec ...core.DBExecutor) ([]StudentGroup, error)
		GetGroup(ctx context.Context, id string, exec ...core.DBExecutor) (StudentGroup, error)
		GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (Student, error)
		QueryGroupStudents(ctx context.Context, groupID string, exec ...core.DBExecutor) ([]Student, error)

		QueryAcademicYears(ctx context.Context, exec ...core.DBExecutor) ([]AcademicYear, error)
		QuerySessions(ctx context.Context, exec ...core.DBExecutor) ([]Session, error)
		QueryHolidays(ctx context.Context, exec ...core.DBExecutor) ([]Holiday, error)

		QueryAssignments(ctx context.Context, filter AssignmentFilter, exec ...core.DBExecutor) ([]Assignment, error)
		GetAssignment(ctx context.Context, id string, exec ...core.DBExecutor) (Assignment, error)
		ReplaceAssignments(ctx context.Context, groupIDs []string, assignments []Assignment, exec ...core.DBExecutor) ([]Assignment, error)
	}

	Service struct {
		repo Repository
		log  core.Logger
		loc  *time.Location

		// regenMu serialises regenerations; two runs over overlapping group
		// sets must never interleave, and serialising globally satisfies that.
		regenMu sync.Mutex

		cacheMu   sync.Mutex
		cacheGen  int64
		feasible  error
		feasSet   bool
		instances map[string][]ClassInstance
	}
)

func NewService(repo Repository, log core.Logger, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:      repo,
		log:       log,
		loc:       loc,
		instances: make(map[string][]ClassInstance),
	}
}

// Location returns the calendar zone all service date math runs in.
func (svc *Service) Location() *time.Location { return svc.loc }

// GetStudent looks a student up by ID.
func (svc *Service) GetStudent(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, id)
}

// QueryGroupStudents lists the members of a group.
func (svc *Service) QueryGroupStudents(ctx context.Context, groupID string) ([]Student, error) {
	return svc.repo.QueryGroupStudents(ctx, groupID)
}

// CheckFeasibility proves or disproves the necessary scheduling conditions.
// A nil return means "may be schedulable"; callers must still handle search
// failure. The verdict is cached per repository generation.
func (svc *Service) CheckFeasibility(ctx context.Context) error {
	gen, err := svc.repo.Generation(ctx)
	if err != nil {
		return err
	}

	svc.cacheMu.Lock()
	if svc.feasSet && svc.cacheGen == gen {
		res := svc.feasible
		svc.cacheMu.Unlock()
		return res
	}
	svc.cacheMu.Unlock()

	data, err := svc.loadDataset(ctx)
	if err != nil {
		return err
	}
	res := analyse(data)

	svc.cacheMu.Lock()
	svc.resetCacheLocked(gen)
	svc.feasible, svc.feasSet = nil, true
	if res != nil {
		svc.feasible = res
	}
	svc.cacheMu.Unlock()

	if res != nil {
		return res
	}
	return nil
}

// Regenerate rebuilds the timetables of the given groups (all groups when
// empty) and atomically replaces their assignments. The context deadline
// bounds the search; on expiry the repository is left untouched. Returns the
// number of assignments written.
func (svc *Service) Regenerate(ctx context.Context, groupIDs []string) (int, error) {
	svc.regenMu.Lock()
	defer svc.regenMu.Unlock()

	data, err := svc.loadDataset(ctx)
	if err != nil {
		return 0, err
	}
	if infeasible := analyse(data); infeasible != nil {
		return 0, infeasible
	}

	groups, err := data.targetGroups(groupIDs)
	if err != nil {
		return 0, err
	}

	assignments, err := buildTimetable(ctx, data, groups)
	if err != nil {
		return 0, err
	}

	ids := make([]string, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.ID)
	}
	if _, err = svc.repo.ReplaceAssignments(ctx, ids, assignments); err != nil {
		return 0, err
	}

	if svc.log != nil {
		svc.log.Info("timetable regenerated", map[string]interface{}{
			"groups": len(groups), "assignments": len(assignments),
		})
	}
	return len(assignments), nil
}

func (svc *Service) resetCacheLocked(gen int64) {
	if svc.cacheGen != gen {
		svc.cacheGen = gen
		svc.feasible, svc.feasSet = nil, false
		svc.instances = make(map[string][]ClassInstance)
	}
}
