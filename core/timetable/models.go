package timetable

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/trezcool/ratiba/core"
)

// TimeOfDay is a wall-clock time expressed as minutes since midnight.
type TimeOfDay int

// ParseTimeOfDay parses a "HH:MM" string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", core.CleanString(s))
	if err != nil {
		return 0, err
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

// MustTimeOfDay is ParseTimeOfDay for trusted literals (fixtures, tests).
func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t/60, t%60)
}

// On anchors the time of day on the given date's calendar day, in the date's location.
func (t TimeOfDay) On(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, int(t)/60, int(t)%60, 0, 0, date.Location())
}

// EquipmentSet is a normalized (lowercased, trimmed, sorted, deduped) set of
// equipment tokens.
type EquipmentSet []string

func NewEquipmentSet(tokens ...string) EquipmentSet {
	set := make(EquipmentSet, 0, len(tokens))
	seen := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		tok = core.CleanString(tok, true /* lower */)
		if tok == "" || seen[tok] {
			continue
		}
		seen[tok] = true
		set = append(set, tok)
	}
	sort.Strings([]string(set))
	return set
}

// satisfies reports whether the required token is met by any available token.
// Matching is a bidirectional substring test: "whiteboard" is satisfied by
// "smart-whiteboard" and vice versa. Existing data sets mix compound and
// simple tokens, so equality matching would silently break them.
func (es EquipmentSet) satisfies(required string) bool {
	for _, have := range es {
		if strings.Contains(have, required) || strings.Contains(required, have) {
			return true
		}
	}
	return false
}

// Covers reports whether every required token is satisfied by this set.
func (es EquipmentSet) Covers(required EquipmentSet) bool {
	for _, req := range required {
		if !es.satisfies(req) {
			return false
		}
	}
	return true
}

type Course struct {
	ID                string       `json:"id"`
	Code              string       `json:"code"`
	Name              string       `json:"name"`
	Department        string       `json:"department"`
	PeriodsPerWeek    int          `json:"periods_per_week"`
	MinCapacity       int          `json:"min_capacity"`
	RequiredEquipment EquipmentSet `json:"required_equipment"`
}

type Teacher struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Department string `json:"department"`
	// Qualifications holds the subject areas this teacher may teach.
	// An empty set is a wild-card: the teacher is eligible for any course.
	Qualifications []string `json:"qualifications"`
}

// EligibleFor reports whether the teacher may teach the course.
func (t Teacher) EligibleFor(c Course) bool {
	if len(t.Qualifications) == 0 {
		return true
	}
	dept := core.CleanString(c.Department, true /* lower */)
	for _, q := range t.Qualifications {
		if core.CleanString(q, true /* lower */) == dept {
			return true
		}
	}
	return false
}

type Classroom struct {
	ID        string       `json:"id"`
	Number    string       `json:"number"`
	Capacity  int          `json:"capacity"`
	Equipment EquipmentSet `json:"equipment"`
}

// Fits reports whether the room statically satisfies the course's capacity
// and equipment requirements.
func (r Classroom) Fits(c Course) bool {
	return r.Capacity >= c.MinCapacity && r.Equipment.Covers(c.RequiredEquipment)
}

type TimeSlot struct {
	ID      string       `json:"id"`
	Day     time.Weekday `json:"day"`
	Start   TimeOfDay    `json:"start"`
	End     TimeOfDay    `json:"end"`
	IsBreak bool         `json:"is_break"` // break slots are never scheduled
}

type StudentGroup struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Department string   `json:"department"`
	Year       int      `json:"year"`
	Semester   int      `json:"semester"`
	CourseIDs  []string `json:"course_ids"`
}

type Student struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	GroupID string `json:"group_id"`
}

// AcademicYear is a half-open date range [StartDate, EndDate).
// At most one year is active at any date.
type AcademicYear struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	IsActive  bool      `json:"is_active"`
}

func (y AcademicYear) Contains(d time.Time) bool {
	return !d.Before(y.StartDate) && d.Before(y.EndDate)
}

// Session is a half-open date range within its academic year.
type Session struct {
	ID             string    `json:"id"`
	AcademicYearID string    `json:"academic_year_id"`
	Name           string    `json:"name"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
}

func (s Session) Contains(d time.Time) bool {
	return !d.Before(s.StartDate) && d.Before(s.EndDate)
}

// Holiday blocks class-instance generation over [StartDate, EndDate).
type Holiday struct {
	ID             string    `json:"id"`
	AcademicYearID string    `json:"academic_year_id"`
	Name           string    `json:"name"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
}

func (h Holiday) Contains(d time.Time) bool {
	return !d.Before(h.StartDate) && d.Before(h.EndDate)
}

// Assignment is a confirmed (group, course, teacher, room, slot) tuple
// produced by the scheduler.
type Assignment struct {
	ID        string `json:"id"`
	GroupID   string `json:"group_id"`
	CourseID  string `json:"course_id"`
	TeacherID string `json:"teacher_id"`
	RoomID    string `json:"room_id"`
	SlotID    string `json:"slot_id"`
}

// ClassInstance is an assignment projected onto a concrete calendar date.
// Its identity is fully determined by (assignment, date); instances are never
// persisted speculatively.
type ClassInstance struct {
	ID         string     `json:"id"`
	Assignment Assignment `json:"assignment"`
	Slot       TimeSlot   `json:"slot"`
	Date       time.Time  `json:"date"` // midnight in the configured zone
}

// Window returns the instance's slot window [start, end] on its date.
func (ci ClassInstance) Window() (start, end time.Time) {
	return ci.Slot.Start.On(ci.Date), ci.Slot.End.On(ci.Date)
}

const instanceIDDateLayout = "2006-01-02"

// MakeInstanceID builds the stable instance identifier for an assignment on a date.
func MakeInstanceID(assignmentID string, date time.Time) string {
	return assignmentID + ":" + date.Format(instanceIDDateLayout)
}

// ParseInstanceID splits an instance identifier back into its assignment ID
// and date. The date is anchored at midnight in loc.
func ParseInstanceID(id string, loc *time.Location) (assignmentID string, date time.Time, err error) {
	idx := strings.LastIndex(id, ":")
	if idx <= 0 || idx == len(id)-1 {
		return "", time.Time{}, ErrNotFound
	}
	date, err = time.ParseInLocation(instanceIDDateLayout, id[idx+1:], loc)
	if err != nil {
		return "", time.Time{}, ErrNotFound
	}
	return id[:idx], date, nil
}
