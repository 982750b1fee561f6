package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/attendance"
)

type attendanceRepo struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*attendanceRepo)(nil)

func NewAttendanceRepository(db *sqlx.DB) attendance.Repository {
	return &attendanceRepo{db: db}
}

// Transact brackets fn in a database transaction; fn must forward the passed
// executor to every repository call it makes.
func (repo *attendanceRepo) Transact(ctx context.Context, fn func(exec core.DBExecutor) error) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// --- tokens ---

type tokenRow struct {
	ID         string    `db:"id"`
	StudentID  string    `db:"student_id"`
	Nonce      string    `db:"nonce"`
	IssuedAt   time.Time `db:"issued_at"`
	ExpiresAt  time.Time `db:"expires_at"`
	Consumed   bool      `db:"consumed"`
	ConsumedAt null.Time `db:"consumed_at"`
}

func (r tokenRow) token() attendance.Token {
	tok := attendance.Token{
		ID:        r.ID,
		StudentID: r.StudentID,
		Nonce:     r.Nonce,
		IssuedAt:  r.IssuedAt,
		ExpiresAt: r.ExpiresAt,
		Consumed:  r.Consumed,
	}
	if r.ConsumedAt.Valid {
		tok.ConsumedAt = r.ConsumedAt.Time
	}
	return tok
}

const tokenCols = "id, student_id, nonce, issued_at, expires_at, consumed, consumed_at"

func (repo *attendanceRepo) GetTokenByNonce(ctx context.Context, nonce string, exec ...core.DBExecutor) (attendance.Token, error) {
	var r tokenRow
	err := sqlx.GetContext(ctx, ext(repo.db, exec), &r,
		"SELECT "+tokenCols+" FROM attendance_token WHERE nonce = $1", nonce)
	if err != nil {
		return attendance.Token{}, trapNoRowsErr(err, attendance.ErrNotFound)
	}
	return r.token(), nil
}

// InvalidateStudentTokens expires the student's live tokens as of the given
// instant; consumed tokens stay untouched.
func (repo *attendanceRepo) InvalidateStudentTokens(ctx context.Context, studentID string, at time.Time, exec ...core.DBExecutor) error {
	_, err := ext(repo.db, exec).ExecContext(ctx,
		"UPDATE attendance_token SET expires_at = $2 WHERE student_id = $1 AND NOT consumed AND expires_at > $2",
		studentID, at)
	if err != nil {
		return errors.Wrap(err, "invalidating tokens")
	}
	return nil
}

func (repo *attendanceRepo) CreateToken(ctx context.Context, tok attendance.Token, exec ...core.DBExecutor) (attendance.Token, error) {
	if tok.ID == "" {
		tok.ID = uuid.New().String()
	}
	_, err := ext(repo.db, exec).ExecContext(ctx,
		"INSERT INTO attendance_token (id, student_id, nonce, issued_at, expires_at) VALUES ($1, $2, $3, $4, $5)",
		tok.ID, tok.StudentID, tok.Nonce, tok.IssuedAt, tok.ExpiresAt)
	if err != nil {
		return attendance.Token{}, errors.Wrap(err, "inserting token")
	}
	return tok, nil
}

func (repo *attendanceRepo) ConsumeToken(ctx context.Context, id string, at time.Time, exec ...core.DBExecutor) error {
	res, err := ext(repo.db, exec).ExecContext(ctx,
		"UPDATE attendance_token SET consumed = true, consumed_at = $2 WHERE id = $1 AND NOT consumed", id, at)
	if err != nil {
		return errors.Wrap(err, "consuming token")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return attendance.ErrTokenConsumed
	}
	return nil
}

// --- records ---

type recordRow struct {
	ID              string      `db:"id"`
	StudentID       string      `db:"student_id"`
	ClassInstanceID string      `db:"class_instance_id"`
	Status          string      `db:"status"`
	MarkedAt        time.Time   `db:"marked_at"`
	MarkedBy        null.String `db:"marked_by"`
}

func (r recordRow) record() attendance.Record {
	return attendance.Record{
		ID:              r.ID,
		StudentID:       r.StudentID,
		ClassInstanceID: r.ClassInstanceID,
		Status:          attendance.Status(r.Status),
		MarkedAt:        r.MarkedAt,
		Marker:          r.MarkedBy.String,
	}
}

const recordCols = "id, student_id, class_instance_id, status, marked_at, marked_by"

func (repo *attendanceRepo) GetRecord(ctx context.Context, studentID, classInstanceID string, exec ...core.DBExecutor) (attendance.Record, error) {
	var r recordRow
	err := sqlx.GetContext(ctx, ext(repo.db, exec), &r,
		"SELECT "+recordCols+" FROM attendance_record WHERE student_id = $1 AND class_instance_id = $2",
		studentID, classInstanceID)
	if err != nil {
		return attendance.Record{}, trapNoRowsErr(err, attendance.ErrNotFound)
	}
	return r.record(), nil
}

func (repo *attendanceRepo) QueryInstanceRecords(ctx context.Context, classInstanceID string, exec ...core.DBExecutor) ([]attendance.Record, error) {
	var rows []recordRow
	err := sqlx.SelectContext(ctx, ext(repo.db, exec), &rows,
		"SELECT "+recordCols+" FROM attendance_record WHERE class_instance_id = $1 ORDER BY student_id",
		classInstanceID)
	if err != nil {
		return nil, errors.Wrap(err, "querying instance records")
	}
	records := make([]attendance.Record, len(rows))
	for i, r := range rows {
		records[i] = r.record()
	}
	return records, nil
}

// CreateRecord inserts an attendance fact; the unique (student, instance)
// constraint guards double-marking across processes.
func (repo *attendanceRepo) CreateRecord(ctx context.Context, rec attendance.Record, exec ...core.DBExecutor) (attendance.Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	_, err := ext(repo.db, exec).ExecContext(ctx,
		"INSERT INTO attendance_record (id, student_id, class_instance_id, status, marked_at, marked_by) VALUES ($1, $2, $3, $4, $5, $6)",
		rec.ID, rec.StudentID, rec.ClassInstanceID, string(rec.Status), rec.MarkedAt, null.NewString(rec.Marker, rec.Marker != ""))
	if err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return attendance.Record{}, attendance.ErrAlreadyMarked
		}
		return attendance.Record{}, errors.Wrap(err, "inserting attendance record")
	}
	return rec, nil
}

func (repo *attendanceRepo) IsAuthorisedMarker(ctx context.Context, markerID string, exec ...core.DBExecutor) (bool, error) {
	var ok bool
	err := sqlx.GetContext(ctx, ext(repo.db, exec), &ok,
		"SELECT EXISTS (SELECT 1 FROM authorized_marker WHERE id = $1)", markerID)
	if err != nil {
		return false, errors.Wrap(err, "checking marker authorisation")
	}
	return ok, nil
}
