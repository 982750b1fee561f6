package timetable

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"
)

// dataset is a point-in-time snapshot of the entity corpus, pre-indexed and
// pre-sorted for the analyser and the scheduler.
type dataset struct {
	courses    []Course
	teachers   []Teacher
	rooms      []Classroom
	slots      []TimeSlot // non-break, sorted by (weekday, start)
	groups     []StudentGroup
	courseByID map[string]Course

	// assignments of groups outside the regeneration target still occupy
	// rooms and teachers; the scheduler seeds its occupancy from them.
	assignments []Assignment
}

func (svc *Service) loadDataset(ctx context.Context) (*dataset, error) {
	courses, err := svc.repo.QueryCourses(ctx)
	if err != nil {
		return nil, err
	}
	teachers, err := svc.repo.QueryTeachers(ctx)
	if err != nil {
		return nil, err
	}
	rooms, err := svc.repo.QueryClassrooms(ctx)
	if err != nil {
		return nil, err
	}
	slots, err := svc.repo.QueryTimeSlots(ctx)
	if err != nil {
		return nil, err
	}
	groups, err := svc.repo.QueryGroups(ctx)
	if err != nil {
		return nil, err
	}
	assignments, err := svc.repo.QueryAssignments(ctx, AssignmentFilter{})
	if err != nil {
		return nil, err
	}

	data := &dataset{
		courses:     courses,
		teachers:    sortTeachers(teachers),
		rooms:       sortRooms(rooms),
		slots:       sortSlots(lo.Filter(slots, func(s TimeSlot, _ int) bool { return !s.IsBreak })),
		groups:      sortGroups(groups),
		assignments: assignments,
		courseByID:  lo.KeyBy(courses, func(c Course) string { return c.ID }),
	}
	return data, nil
}

// groupCourses resolves a group's course list, skipping dangling references.
func (d *dataset) groupCourses(g StudentGroup) []Course {
	courses := make([]Course, 0, len(g.CourseIDs))
	for _, id := range g.CourseIDs {
		if c, ok := d.courseByID[id]; ok {
			courses = append(courses, c)
		}
	}
	// descending periods-per-week, then course code
	sort.SliceStable(courses, func(i, j int) bool {
		if courses[i].PeriodsPerWeek != courses[j].PeriodsPerWeek {
			return courses[i].PeriodsPerWeek > courses[j].PeriodsPerWeek
		}
		return courses[i].Code < courses[j].Code
	})
	return courses
}

func (d *dataset) targetGroups(groupIDs []string) ([]StudentGroup, error) {
	if len(groupIDs) == 0 {
		return d.groups, nil
	}
	byID := lo.KeyBy(d.groups, func(g StudentGroup) string { return g.ID })
	groups := make([]StudentGroup, 0, len(groupIDs))
	for _, id := range groupIDs {
		g, ok := byID[id]
		if !ok {
			return nil, ErrNotFound
		}
		groups = append(groups, g)
	}
	return sortGroups(groups), nil
}

// analyse proves or disproves the necessary conditions for schedulability, in
// a fixed order, short-circuiting at the first failure. It never attempts a
// real assignment.
func analyse(d *dataset) *InfeasibleError {
	// 1. resource census
	switch {
	case len(d.courses) == 0:
		return &InfeasibleError{Reason: InfeasibleMissingResources, Detail: "no courses"}
	case len(d.rooms) == 0:
		return &InfeasibleError{Reason: InfeasibleMissingResources, Detail: "no classrooms"}
	case len(d.teachers) == 0:
		return &InfeasibleError{Reason: InfeasibleMissingResources, Detail: "no teachers"}
	case len(d.slots) == 0:
		return &InfeasibleError{Reason: InfeasibleMissingResources, Detail: "no time slots"}
	case len(d.groups) == 0:
		return &InfeasibleError{Reason: InfeasibleMissingResources, Detail: "no student groups"}
	}

	// 2. every group has at least one course
	for _, g := range d.groups {
		if len(d.groupCourses(g)) == 0 {
			return &InfeasibleError{Reason: InfeasibleGroupWithoutCourses, EntityRef: g.Name}
		}
	}

	// 3-5. per-course capacity, equipment and qualification
	for _, c := range d.courses {
		if !lo.SomeBy(d.rooms, func(r Classroom) bool { return r.Capacity >= c.MinCapacity }) {
			return &InfeasibleError{
				Reason:    InfeasibleCapacity,
				EntityRef: c.Code,
				Detail:    fmt.Sprintf("no room holds %d students", c.MinCapacity),
			}
		}
		if !lo.SomeBy(d.rooms, func(r Classroom) bool { return r.Fits(c) }) {
			return &InfeasibleError{Reason: InfeasibleEquipment, EntityRef: c.Code}
		}
		if !lo.SomeBy(d.teachers, func(t Teacher) bool { return t.EligibleFor(c) }) {
			return &InfeasibleError{Reason: InfeasibleQualification, EntityRef: c.Code}
		}
	}

	// 6. global slot budget
	var totalPeriods int
	for _, g := range d.groups {
		for _, c := range d.groupCourses(g) {
			totalPeriods += c.PeriodsPerWeek
		}
	}
	if budget := len(d.slots) * len(d.groups); totalPeriods > budget {
		return &InfeasibleError{
			Reason: InfeasibleSlotBudget,
			Detail: fmt.Sprintf("%d periods required, %d group-slots available", totalPeriods, budget),
		}
	}

	// 7. per-group budget (tighter than 6)
	for _, g := range d.groups {
		periods := lo.SumBy(d.groupCourses(g), func(c Course) int { return c.PeriodsPerWeek })
		if periods > len(d.slots) {
			return &InfeasibleError{
				Reason:    InfeasibleGroupSlotBudget,
				EntityRef: g.Name,
				Detail:    fmt.Sprintf("%d periods required, %d slots per week", periods, len(d.slots)),
			}
		}
	}
	return nil
}

// stable orderings; the scheduler's determinism depends on them.

func sortGroups(groups []StudentGroup) []StudentGroup {
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if a.Department != b.Department {
			return a.Department < b.Department
		}
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if a.Semester != b.Semester {
			return a.Semester < b.Semester
		}
		return a.ID < b.ID
	})
	return groups
}

// weekdayIndex orders Monday first; Sunday (time.Weekday's zero) goes last.
func weekdayIndex(d time.Weekday) int {
	if d == time.Sunday {
		return 7
	}
	return int(d)
}

func sortSlots(slots []TimeSlot) []TimeSlot {
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].Day != slots[j].Day {
			return weekdayIndex(slots[i].Day) < weekdayIndex(slots[j].Day)
		}
		if slots[i].Start != slots[j].Start {
			return slots[i].Start < slots[j].Start
		}
		return slots[i].ID < slots[j].ID
	})
	return slots
}

func sortRooms(rooms []Classroom) []Classroom {
	sort.SliceStable(rooms, func(i, j int) bool {
		if rooms[i].Capacity != rooms[j].Capacity {
			return rooms[i].Capacity < rooms[j].Capacity
		}
		return rooms[i].ID < rooms[j].ID
	})
	return rooms
}

func sortTeachers(teachers []Teacher) []Teacher {
	sort.SliceStable(teachers, func(i, j int) bool { return teachers[i].ID < teachers[j].ID })
	return teachers
}
