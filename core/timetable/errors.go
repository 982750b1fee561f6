package timetable

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("timetable entity not found")

// InfeasibleReason identifies which necessary condition failed.
type InfeasibleReason int

const (
	InfeasibleMissingResources InfeasibleReason = iota + 1
	InfeasibleGroupWithoutCourses
	InfeasibleCapacity
	InfeasibleEquipment
	InfeasibleQualification
	InfeasibleSlotBudget
	InfeasibleGroupSlotBudget
)

func (r InfeasibleReason) String() string {
	switch r {
	case InfeasibleMissingResources:
		return "missing resources"
	case InfeasibleGroupWithoutCourses:
		return "group has no courses"
	case InfeasibleCapacity:
		return "no room satisfies course capacity"
	case InfeasibleEquipment:
		return "no room satisfies course equipment"
	case InfeasibleQualification:
		return "no eligible teacher for course"
	case InfeasibleSlotBudget:
		return "total periods exceed slot budget"
	case InfeasibleGroupSlotBudget:
		return "group periods exceed weekly slots"
	}
	return "infeasible"
}

// InfeasibleError reports the first necessary condition the entity corpus fails.
type InfeasibleError struct {
	Reason    InfeasibleReason
	EntityRef string // offending entity (course code, group name, ...), may be empty
	Detail    string
}

func (e *InfeasibleError) Error() string {
	msg := "infeasible: " + e.Reason.String()
	if e.EntityRef != "" {
		msg += " (" + e.EntityRef + ")"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// UnschedulableReason distinguishes why the search exhausted.
type UnschedulableReason int

const (
	UnschedulableNoRoomFits UnschedulableReason = iota + 1
	UnschedulableNoTeacherFits
	UnschedulableNoFreeSlots
	UnschedulableConflicts
)

func (r UnschedulableReason) String() string {
	switch r {
	case UnschedulableNoRoomFits:
		return "no rooms fit"
	case UnschedulableNoTeacherFits:
		return "no teachers fit"
	case UnschedulableNoFreeSlots:
		return "no free slots remain"
	case UnschedulableConflicts:
		return "blocked by global conflicts"
	}
	return "unschedulable"
}

// UnschedulableError reports search exhaustion for a (group, course) pair.
type UnschedulableError struct {
	GroupID    string
	GroupName  string
	CourseCode string
	Reason     UnschedulableReason
}

func (e *UnschedulableError) Error() string {
	return fmt.Sprintf("unschedulable: course %s for group %s: %s", e.CourseCode, e.GroupName, e.Reason)
}

// TimeoutError reports deadline expiry during the search. The repository is
// left untouched; the partial placement count helps callers size a retry.
type TimeoutError struct {
	Placed     int
	GroupID    string
	CourseCode string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timetable generation timed out (%d periods placed, at course %s of group %s)", e.Placed, e.CourseCode, e.GroupID)
}
