package timetable

import (
	"context"
	"time"

	"github.com/samber/lo"
)

// demand is one period of one course for one group, awaiting a
// (slot, room, teacher) triple.
type demand struct {
	group  StudentGroup
	course Course
}

// search carries the backtracking state. All candidate enumerations are
// stable, so identical inputs yield identical timetables.
type search struct {
	data    *dataset
	demands []demand

	roomBusy    map[string]map[string]bool // slot ID -> room IDs
	teacherBusy map[string]map[string]bool // slot ID -> teacher IDs
	groupBusy   map[string]map[string]bool // slot ID -> group IDs

	placed []Assignment

	deadline    time.Time
	hasDeadline bool
	timedOut    bool

	// deepest is the furthest demand index the search failed to extend;
	// exhaustion is diagnosed against it.
	deepest int
}

// buildTimetable assigns every demanded period of the given groups, honouring
// the occupancy of every group outside the set. It mutates nothing; the
// caller commits the returned assignments through the repository.
func buildTimetable(ctx context.Context, data *dataset, groups []StudentGroup) ([]Assignment, error) {
	s := &search{
		data:        data,
		roomBusy:    make(map[string]map[string]bool),
		teacherBusy: make(map[string]map[string]bool),
		groupBusy:   make(map[string]map[string]bool),
	}
	if dl, ok := ctx.Deadline(); ok {
		s.deadline, s.hasDeadline = dl, true
	}

	// groups outside the regeneration target keep their assignments; seed
	// occupancy so the new schedule cannot collide with them.
	targeted := lo.SliceToMap(groups, func(g StudentGroup) (string, bool) { return g.ID, true })
	for _, a := range data.assignments {
		if targeted[a.GroupID] {
			continue
		}
		s.occupy(a.SlotID, a.RoomID, a.TeacherID, a.GroupID)
	}

	for _, g := range groups {
		for _, c := range data.groupCourses(g) {
			for p := 0; p < c.PeriodsPerWeek; p++ {
				s.demands = append(s.demands, demand{group: g, course: c})
			}
		}
	}

	if s.place(0) {
		return s.placed, nil
	}
	if s.timedOut {
		d := s.demands[min(s.deepest, len(s.demands)-1)]
		return nil, &TimeoutError{Placed: s.deepest, GroupID: d.group.ID, CourseCode: d.course.Code}
	}
	return nil, s.diagnose()
}

// place extends the schedule with the i-th demand, backtracking across group
// boundaries when a later demand cannot be satisfied.
func (s *search) place(i int) bool {
	if i >= len(s.demands) {
		return true
	}
	if s.hasDeadline && time.Now().After(s.deadline) {
		s.timedOut = true
		return false
	}
	if i > s.deepest {
		s.deepest = i
	}

	dm := s.demands[i]
	for _, slot := range s.data.slots {
		if s.groupBusy[slot.ID][dm.group.ID] {
			continue
		}
		for _, room := range s.data.rooms {
			if !room.Fits(dm.course) || s.roomBusy[slot.ID][room.ID] {
				continue
			}
			for _, teacher := range s.data.teachers {
				if !teacher.EligibleFor(dm.course) || s.teacherBusy[slot.ID][teacher.ID] {
					continue
				}

				s.occupy(slot.ID, room.ID, teacher.ID, dm.group.ID)
				s.placed = append(s.placed, Assignment{
					GroupID:   dm.group.ID,
					CourseID:  dm.course.ID,
					TeacherID: teacher.ID,
					RoomID:    room.ID,
					SlotID:    slot.ID,
				})

				if s.place(i + 1) {
					return true
				}
				if s.timedOut {
					return false
				}

				s.placed = s.placed[:len(s.placed)-1]
				s.release(slot.ID, room.ID, teacher.ID, dm.group.ID)
			}
		}
	}
	return false
}

func (s *search) occupy(slotID, roomID, teacherID, groupID string) {
	mark(s.roomBusy, slotID, roomID)
	mark(s.teacherBusy, slotID, teacherID)
	mark(s.groupBusy, slotID, groupID)
}

func (s *search) release(slotID, roomID, teacherID, groupID string) {
	delete(s.roomBusy[slotID], roomID)
	delete(s.teacherBusy[slotID], teacherID)
	delete(s.groupBusy[slotID], groupID)
}

func mark(m map[string]map[string]bool, slotID, id string) {
	if m[slotID] == nil {
		m[slotID] = make(map[string]bool)
	}
	m[slotID][id] = true
}

// diagnose explains the exhaustion at the deepest demand the search reached.
// The static checks mirror the feasibility analyser; anything that passes
// them but still fails the search is blocked by global conflicts.
func (s *search) diagnose() *UnschedulableError {
	dm := s.demands[min(s.deepest, len(s.demands)-1)]
	err := &UnschedulableError{GroupID: dm.group.ID, GroupName: dm.group.Name, CourseCode: dm.course.Code}

	switch {
	case !lo.SomeBy(s.data.rooms, func(r Classroom) bool { return r.Fits(dm.course) }):
		err.Reason = UnschedulableNoRoomFits
	case !lo.SomeBy(s.data.teachers, func(t Teacher) bool { return t.EligibleFor(dm.course) }):
		err.Reason = UnschedulableNoTeacherFits
	case dm.course.PeriodsPerWeek > s.openSlots(dm):
		err.Reason = UnschedulableNoFreeSlots
	default:
		err.Reason = UnschedulableConflicts
	}
	return err
}

// openSlots counts the slots still able to host the demand under the
// occupancy that survives backtracking, i.e. the standing assignments of
// groups outside the regeneration set.
func (s *search) openSlots(dm demand) int {
	var n int
	for _, slot := range s.data.slots {
		if s.groupBusy[slot.ID][dm.group.ID] {
			continue
		}
		roomFree := lo.SomeBy(s.data.rooms, func(r Classroom) bool {
			return r.Fits(dm.course) && !s.roomBusy[slot.ID][r.ID]
		})
		teacherFree := lo.SomeBy(s.data.teachers, func(t Teacher) bool {
			return t.EligibleFor(dm.course) && !s.teacherBusy[slot.ID][t.ID]
		})
		if roomFree && teacherFree {
			n++
		}
	}
	return n
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
