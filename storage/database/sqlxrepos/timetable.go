package sqlxrepos

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/timetable"
)

type timetableRepo struct {
	db *sqlx.DB
}

var _ timetable.Repository = (*timetableRepo)(nil)

func NewTimetableRepository(db *sqlx.DB) timetable.Repository {
	return &timetableRepo{db: db}
}

func (repo *timetableRepo) Generation(ctx context.Context, exec ...core.DBExecutor) (int64, error) {
	var gen int64
	err := sqlx.GetContext(ctx, ext(repo.db, exec), &gen, "SELECT gen FROM generation")
	if err != nil {
		return 0, errors.Wrap(err, "reading generation")
	}
	return gen, nil
}

func bumpGeneration(ctx context.Context, e sqlx.ExtContext) error {
	if _, err := e.ExecContext(ctx, "UPDATE generation SET gen = gen + 1"); err != nil {
		return errors.Wrap(err, "bumping generation")
	}
	return nil
}

// --- courses ---

type courseRow struct {
	ID                string         `db:"id"`
	Code              string         `db:"code"`
	Name              string         `db:"name"`
	Department        string         `db:"department"`
	PeriodsPerWeek    int            `db:"periods_per_week"`
	MinCapacity       int            `db:"min_capacity"`
	RequiredEquipment pq.StringArray `db:"required_equipment"`
}

func (r courseRow) course() timetable.Course {
	return timetable.Course{
		ID:                r.ID,
		Code:              r.Code,
		Name:              r.Name,
		Department:        r.Department,
		PeriodsPerWeek:    r.PeriodsPerWeek,
		MinCapacity:       r.MinCapacity,
		RequiredEquipment: timetable.NewEquipmentSet(r.RequiredEquipment...),
	}
}

const courseCols = "id, code, name, department, periods_per_week, min_capacity, required_equipment"

func (repo *timetableRepo) QueryCourses(ctx context.Context, exec ...core.DBExecutor) ([]timetable.Course, error) {
	var rows []courseRow
	err := sqlx.SelectContext(ctx, ext(repo.db, exec), &rows, "SELECT "+courseCols+" FROM course ORDER BY code")
	if err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]timetable.Course, len(rows))
	for i, r := range rows {
		courses[i] = r.course()
	}
	return courses, nil
}

func (repo *timetableRepo) GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (timetable.Course, error) {
	var r courseRow
	err := sqlx.GetContext(ctx, ext(repo.db, exec), &r, "SELECT "+courseCols+" FROM course WHERE id = $1", id)
	if err != nil {
		return timetable.Course{}, trapNoRowsErr(err, timetable.ErrNotFound)
	}
	return r.course(), nil
}

// --- teachers ---

type teacherRow struct {
	ID             string         `db:"id"`
	Name           string         `db:"name"`
	Department     string         `db:"department"`
	Qualifications pq.StringArray `db:"qualifications"`
}

func (r teacherRow) teacher() timetable.Teacher {
	return timetable.Teacher{ID: r.ID, Name: r.Name, Department: r.Department, Qualifications: r.Qualifications}
}

const teacherCols = "id, name, department, qualifications"

func (repo *timetableRepo) QueryTeachers(ctx context.Context, exec ...core.DBExecutor) ([]timetable.Teacher, error) {
	var rows []teacherRow
	err := sqlx.SelectContext(ctx, ext(repo.db, exec), &rows, "SELECT "+teacherCols+" FROM teacher ORDER BY id")
	if err != nil {
		return nil, errors.Wrap(err, "querying teachers")
	}
	teachers := make([]timetable.Teacher, len(rows))
	for i, r := range rows {
		teachers[i] = r.teacher()
	}
	return teachers, nil
}

func (repo *timetableRepo) GetTeacher(ctx context.Context, id string, exec ...core.DBExecutor) (timetable.Teacher, error) {
	var r teacherRow
	err := sqlx.GetContext(ctx, ext(repo.db, exec), &r, "SELECT "+teacherCols+" FROM teacher WHERE id = $1", id)
	if err != nil {
		return timetable.Teacher{}, trapNoRowsErr(err, timetable.ErrNotFound)
	}
	return r.teacher(), nil
}

// --- classrooms ---

type classroomRow struct {
	ID        string         `db:"id"`
	Number    string         `db:"number"`
	Capacity  int            `db:"capacity"`
	Equipment pq.StringArray `db:"equipment"`
}

func (repo *timetableRepo) QueryClassrooms(ctx context.Context, exec ...core.DBExecutor) ([]timetable.Classroom, error) {
	var rows []classroomRow
	err := sqlx.SelectContext(ctx, ext(repo.db, exec), &rows,
		"SELECT id, number, capacity, equipment FROM classroom ORDER BY id")
	if err != nil {
		return nil, errors.Wrap(err, "querying classrooms")
	}
	rooms := make([]timetable.Classroom, len(rows))
	for i, r := range rows {
		rooms[i] = timetable.Classroom{
			ID:        r.ID,
			Number:    r.Number,
			Capacity:  r.Capacity,
			Equipment: timetable.NewEquipmentSet(r.Equipment...),
		}
	}
	return rooms, nil
}

// --- time slots ---

type timeSlotRow struct {
	ID       string `db:"id"`
	Day      int    `db:"day"`
	StartMin int    `db:"start_min"`
	EndMin   int    `db:"end_min"`
	IsBreak  bool   `db:"is_break"`
}

func (repo *timetableRepo) QueryTimeSlots(ctx context.Context, exec ...core.DBExecutor) ([]timetable.TimeSlot, error) {
	var rows []timeSlotRow
	err := sqlx.SelectContext(ctx, ext(repo.db, exec), &rows,
		"SELECT id, day, start_min, end_min, is_break FROM time_slot ORDER BY day, start_min")
	if err != nil {
		return nil, errors.Wrap(err, "querying time slots")
	}
	slots := make([]timetable.TimeSlot, len(rows))
	for i, r := range rows {
		slots[i] = timetable.TimeSlot{
			ID:      r.ID,
			Day:     time.Weekday(r.Day),
			Start:   timetable.TimeOfDay(r.StartMin),
			End:     timetable.TimeOfDay(r.EndMin),
			IsBreak: r.IsBreak,
		}
	}
	return slots, nil
}

// --- groups & students ---

type groupRow struct {
	ID         string         `db:"id"`
	Name       string         `db:"name"`
	Department string         `db:"department"`
	Year       int            `db:"year"`
	Semester   int            `db:"semester"`
	CourseIDs  pq.StringArray `db:"course_ids"`
}

func (r groupRow) group() timetable.StudentGroup {
	return timetable.StudentGroup{
		ID: r.ID, Name: r.Name, Department: r.Department,
		Year: r.Year, Semester: r.Semester, CourseIDs: r.CourseIDs,
	}
}

// groupQuery aggregates the M2M course links into course_ids.
const groupQuery = `
SELECT g.id, g.name, g.department, g.year, g.semester,
       COALESCE(array_agg(gc.course_id) FILTER (WHERE gc.course_id IS NOT NULL), '{}') AS course_ids
FROM student_group g
LEFT JOIN student_group_course gc ON gc.group_id = g.id`

func (repo *timetableRepo) QueryGroups(ctx context.Context, exec ...core.DBExecutor) ([]timetable.StudentGroup, error) {
	var rows []groupRow
	err := sqlx.SelectContext(ctx, ext(repo.db, exec), &rows, groupQuery+" GROUP BY g.id ORDER BY g.id")
	if err != nil {
		return nil, errors.Wrap(err, "querying groups")
	}
	groups := make([]timetable.StudentGroup, len(rows))
	for i, r := range rows {
		groups[i] = r.group()
	}
	return groups, nil
}

func (repo *timetableRepo) GetGroup(ctx context.Context, id string, exec ...core.DBExecutor) (timetable.StudentGroup, error) {
	var r groupRow
	err := sqlx.GetContext(ctx, ext(repo.db, exec), &r, groupQuery+" WHERE g.id = $1 GROUP BY g.id", id)
	if err != nil {
		return timetable.StudentGroup{}, trapNoRowsErr(err, timetable.ErrNotFound)
	}
	return r.group(), nil
}

type studentRow struct {
	ID      string `db:"id"`
	Name    string `db:"name"`
	GroupID string `db:"group_id"`
}

func (repo *timetableRepo) GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (timetable.Student, error) {
	var r studentRow
	err := sqlx.GetContext(ctx, ext(repo.db, exec), &r,
		"SELECT id, name, group_id FROM student WHERE id = $1", id)
	if err != nil {
		return timetable.Student{}, trapNoRowsErr(err, timetable.ErrNotFound)
	}
	return timetable.Student(r), nil
}

func (repo *timetableRepo) QueryGroupStudents(ctx context.Context, groupID string, exec ...core.DBExecutor) ([]timetable.Student, error) {
	var rows []studentRow
	err := sqlx.SelectContext(ctx, ext(repo.db, exec), &rows,
		"SELECT id, name, group_id FROM student WHERE group_id = $1 ORDER BY id", groupID)
	if err != nil {
		return nil, errors.Wrap(err, "querying group students")
	}
	students := make([]timetable.Student, len(rows))
	for i, r := range rows {
		students[i] = timetable.Student(r)
	}
	return students, nil
}

// --- calendar ---

type yearRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	StartDate time.Time `db:"start_date"`
	EndDate   time.Time `db:"end_date"`
	IsActive  bool      `db:"is_active"`
}

type dateRangeRow struct {
	ID             string    `db:"id"`
	AcademicYearID string    `db:"academic_year_id"`
	Name           string    `db:"name"`
	StartDate      time.Time `db:"start_date"`
	EndDate        time.Time `db:"end_date"`
}

func (repo *timetableRepo) QueryAcademicYears(ctx context.Context, exec ...core.DBExecutor) ([]timetable.AcademicYear, error) {
	var rows []yearRow
	err := sqlx.SelectContext(ctx, ext(repo.db, exec), &rows,
		"SELECT id, name, start_date, end_date, is_active FROM academic_year ORDER BY start_date")
	if err != nil {
		return nil, errors.Wrap(err, "querying academic years")
	}
	years := make([]timetable.AcademicYear, len(rows))
	for i, r := range rows {
		years[i] = timetable.AcademicYear(r)
	}
	return years, nil
}

func (repo *timetableRepo) QuerySessions(ctx context.Context, exec ...core.DBExecutor) ([]timetable.Session, error) {
	var rows []dateRangeRow
	err := sqlx.SelectContext(ctx, ext(repo.db, exec), &rows,
		"SELECT id, academic_year_id, name, start_date, end_date FROM academic_session ORDER BY start_date")
	if err != nil {
		return nil, errors.Wrap(err, "querying sessions")
	}
	sessions := make([]timetable.Session, len(rows))
	for i, r := range rows {
		sessions[i] = timetable.Session(r)
	}
	return sessions, nil
}

func (repo *timetableRepo) QueryHolidays(ctx context.Context, exec ...core.DBExecutor) ([]timetable.Holiday, error) {
	var rows []dateRangeRow
	err := sqlx.SelectContext(ctx, ext(repo.db, exec), &rows,
		"SELECT id, academic_year_id, name, start_date, end_date FROM holiday ORDER BY start_date")
	if err != nil {
		return nil, errors.Wrap(err, "querying holidays")
	}
	holidays := make([]timetable.Holiday, len(rows))
	for i, r := range rows {
		holidays[i] = timetable.Holiday(r)
	}
	return holidays, nil
}

// --- assignments ---

type assignmentRow struct {
	ID        string `db:"id"`
	GroupID   string `db:"group_id"`
	CourseID  string `db:"course_id"`
	TeacherID string `db:"teacher_id"`
	RoomID    string `db:"room_id"`
	SlotID    string `db:"slot_id"`
}

const assignmentCols = "a.id, a.group_id, a.course_id, a.teacher_id, a.room_id, a.slot_id"

func (repo *timetableRepo) QueryAssignments(ctx context.Context, filter timetable.AssignmentFilter, exec ...core.DBExecutor) ([]timetable.Assignment, error) {
	query := "SELECT " + assignmentCols + " FROM assignment a"
	where := " WHERE 1=1"
	var args []interface{}
	if filter.Day != nil {
		query += " JOIN time_slot s ON s.id = a.slot_id"
		args = append(args, int(*filter.Day))
		where += " AND s.day = $1"
	}
	if len(filter.GroupIDs) > 0 {
		args = append(args, pq.Array(filter.GroupIDs))
		where += " AND a.group_id = ANY($" + strconv.Itoa(len(args)) + ")"
	}
	if filter.TeacherID != "" {
		args = append(args, filter.TeacherID)
		where += " AND a.teacher_id = $" + strconv.Itoa(len(args))
	}

	var rows []assignmentRow
	err := sqlx.SelectContext(ctx, ext(repo.db, exec), &rows, query+where+" ORDER BY a.id", args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	assignments := make([]timetable.Assignment, len(rows))
	for i, r := range rows {
		assignments[i] = timetable.Assignment(r)
	}
	return assignments, nil
}

func (repo *timetableRepo) GetAssignment(ctx context.Context, id string, exec ...core.DBExecutor) (timetable.Assignment, error) {
	var r assignmentRow
	err := sqlx.GetContext(ctx, ext(repo.db, exec), &r,
		"SELECT "+assignmentCols+" FROM assignment a WHERE a.id = $1", id)
	if err != nil {
		return timetable.Assignment{}, trapNoRowsErr(err, timetable.ErrNotFound)
	}
	return timetable.Assignment(r), nil
}

// ReplaceAssignments clears the given groups' assignments and writes the new
// set in one transaction, bumping the generation on commit. When a
// transaction is passed in, it brackets the whole call instead.
func (repo *timetableRepo) ReplaceAssignments(ctx context.Context, groupIDs []string, assignments []timetable.Assignment, exec ...core.DBExecutor) ([]timetable.Assignment, error) {
	if len(exec) > 0 {
		if e, ok := exec[0].(sqlx.ExtContext); ok {
			return repo.replaceAssignments(ctx, e, groupIDs, assignments)
		}
	}

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "beginning transaction")
	}
	replaced, err := repo.replaceAssignments(ctx, tx, groupIDs, assignments)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "committing assignment replacement")
	}
	return replaced, nil
}

func (repo *timetableRepo) replaceAssignments(ctx context.Context, e sqlx.ExtContext, groupIDs []string, assignments []timetable.Assignment) ([]timetable.Assignment, error) {
	if _, err := e.ExecContext(ctx, "DELETE FROM assignment WHERE group_id = ANY($1)", pq.Array(groupIDs)); err != nil {
		return nil, errors.Wrap(err, "clearing assignments")
	}
	replaced := make([]timetable.Assignment, 0, len(assignments))
	for _, a := range assignments {
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		_, err := e.ExecContext(ctx,
			"INSERT INTO assignment (id, group_id, course_id, teacher_id, room_id, slot_id) VALUES ($1, $2, $3, $4, $5, $6)",
			a.ID, a.GroupID, a.CourseID, a.TeacherID, a.RoomID, a.SlotID)
		if err != nil {
			return nil, errors.Wrap(err, "inserting assignment")
		}
		replaced = append(replaced, a)
	}
	if err := bumpGeneration(ctx, e); err != nil {
		return nil, err
	}
	return replaced, nil
}
