package timetable

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Scope narrows materialisation to one group, teacher or student. The zero
// value covers every assignment. At most one field should be set.
type Scope struct {
	GroupID   string
	TeacherID string
	StudentID string
}

func (s Scope) key() string {
	return strings.Join([]string{s.GroupID, s.TeacherID, s.StudentID}, "|")
}

// calendar resolves, per date, whether classes may run at all.
type calendar struct {
	years    []AcademicYear
	sessions []Session
	holidays []Holiday
}

// covers reports whether d lies in the active academic year, inside a session
// and outside every holiday.
func (c calendar) covers(d time.Time) bool {
	year, ok := lo.Find(c.years, func(y AcademicYear) bool { return y.IsActive && y.Contains(d) })
	if !ok {
		return false
	}
	inSession := lo.SomeBy(c.sessions, func(s Session) bool {
		return s.AcademicYearID == year.ID && s.Contains(d)
	})
	if !inSession {
		return false
	}
	return !lo.SomeBy(c.holidays, func(h Holiday) bool {
		return h.AcademicYearID == year.ID && h.Contains(d)
	})
}

func (svc *Service) loadCalendar(ctx context.Context) (calendar, error) {
	var cal calendar
	var err error
	if cal.years, err = svc.repo.QueryAcademicYears(ctx); err != nil {
		return calendar{}, err
	}
	if cal.sessions, err = svc.repo.QuerySessions(ctx); err != nil {
		return calendar{}, err
	}
	if cal.holidays, err = svc.repo.QueryHolidays(ctx); err != nil {
		return calendar{}, err
	}
	return cal, nil
}

// Materialise projects the weekly assignments onto every calendar date in
// [from, to), honouring sessions and holidays. The result is memoised per
// repository generation; re-running with the same range and scope yields
// equal output.
func (svc *Service) Materialise(ctx context.Context, from, to time.Time, scope Scope) ([]ClassInstance, error) {
	gen, err := svc.repo.Generation(ctx)
	if err != nil {
		return nil, err
	}
	from, to = svc.midnight(from), svc.midnight(to)
	cacheKey := from.Format(instanceIDDateLayout) + "|" + to.Format(instanceIDDateLayout) + "|" + scope.key()

	svc.cacheMu.Lock()
	svc.resetCacheLocked(gen)
	if cached, ok := svc.instances[cacheKey]; ok {
		svc.cacheMu.Unlock()
		// callers get a copy; the cached slice stays private
		return append([]ClassInstance(nil), cached...), nil
	}
	svc.cacheMu.Unlock()

	filter := AssignmentFilter{TeacherID: scope.TeacherID}
	if scope.GroupID != "" {
		filter.GroupIDs = []string{scope.GroupID}
	}
	if scope.StudentID != "" {
		student, err := svc.repo.GetStudent(ctx, scope.StudentID)
		if err != nil {
			return nil, err
		}
		filter.GroupIDs = append(filter.GroupIDs, student.GroupID)
	}
	assignments, err := svc.repo.QueryAssignments(ctx, filter)
	if err != nil {
		return nil, err
	}
	slots, err := svc.repo.QueryTimeSlots(ctx)
	if err != nil {
		return nil, err
	}
	cal, err := svc.loadCalendar(ctx)
	if err != nil {
		return nil, err
	}

	slotByID := lo.KeyBy(slots, func(s TimeSlot) string { return s.ID })
	byDay := make(map[time.Weekday][]ClassInstance)
	for _, a := range assignments {
		slot, ok := slotByID[a.SlotID]
		if !ok || slot.IsBreak {
			continue
		}
		byDay[slot.Day] = append(byDay[slot.Day], ClassInstance{Assignment: a, Slot: slot})
	}
	for day := range byDay {
		byDay[day] = sortInstances(byDay[day])
	}

	instances := make([]ClassInstance, 0)
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		if !cal.covers(d) {
			continue
		}
		for _, proto := range byDay[d.Weekday()] {
			proto.Date = d
			proto.ID = MakeInstanceID(proto.Assignment.ID, d)
			instances = append(instances, proto)
		}
	}

	svc.cacheMu.Lock()
	svc.resetCacheLocked(gen)
	svc.instances[cacheKey] = instances
	svc.cacheMu.Unlock()
	return append([]ClassInstance(nil), instances...), nil
}

// GetInstance resolves a class-instance identifier, applying the same
// calendar rules as Materialise. Unknown assignments and invalid dates
// (holiday, out of session, wrong weekday) resolve to ErrNotFound.
func (svc *Service) GetInstance(ctx context.Context, id string) (ClassInstance, error) {
	assignmentID, date, err := ParseInstanceID(id, svc.loc)
	if err != nil {
		return ClassInstance{}, err
	}
	assignment, err := svc.repo.GetAssignment(ctx, assignmentID)
	if err != nil {
		return ClassInstance{}, err
	}
	slots, err := svc.repo.QueryTimeSlots(ctx)
	if err != nil {
		return ClassInstance{}, err
	}
	slot, ok := lo.Find(slots, func(s TimeSlot) bool { return s.ID == assignment.SlotID })
	if !ok || slot.IsBreak || slot.Day != date.Weekday() {
		return ClassInstance{}, ErrNotFound
	}
	cal, err := svc.loadCalendar(ctx)
	if err != nil {
		return ClassInstance{}, err
	}
	if !cal.covers(date) {
		return ClassInstance{}, ErrNotFound
	}
	return ClassInstance{
		ID:         MakeInstanceID(assignmentID, date),
		Assignment: assignment,
		Slot:       slot,
		Date:       date,
	}, nil
}

// midnight truncates t to its calendar date in the service zone.
func (svc *Service) midnight(t time.Time) time.Time {
	y, m, d := t.In(svc.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, svc.loc)
}

func sortInstances(instances []ClassInstance) []ClassInstance {
	sort.SliceStable(instances, func(i, j int) bool {
		if instances[i].Slot.Start != instances[j].Slot.Start {
			return instances[i].Slot.Start < instances[j].Slot.Start
		}
		return instances[i].Assignment.ID < instances[j].Assignment.ID
	})
	return instances
}
