package attendance

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/timetable"
)

var (
	// errors
	ErrNotFound           = errors.New("attendance record not found")
	ErrTokenMissing       = errors.New("token not found")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenConsumed      = errors.New("token already consumed")
	ErrNotYetStarted      = errors.New("class has not started yet")
	ErrEnded              = errors.New("class has ended")
	ErrAlreadyMarked      = errors.New("attendance already marked")
	ErrUnauthorisedMarker = errors.New("marker not authorised for this class")
	ErrWrongGroup         = errors.New("student does not belong to this class")
)

type (
	// Repository is the token and record port. CreateRecord must enforce
	// at-most-one record per (student, class-instance), returning
	// ErrAlreadyMarked on a duplicate. IsAuthorisedMarker covers roles
	// beyond the instance's own teacher (opaque to the core).
	Repository interface {
		// Transact runs fn atomically: repository calls forwarding the
		// passed executor either all commit or leave no trace.
		Transact(ctx context.Context, fn func(exec core.DBExecutor) error) error

		GetTokenByNonce(ctx context.Context, nonce string, exec ...core.DBExecutor) (Token, error)
		InvalidateStudentTokens(ctx context.Context, studentID string, at time.Time, exec ...core.DBExecutor) error
		CreateToken(ctx context.Context, tok Token, exec ...core.DBExecutor) (Token, error)
		ConsumeToken(ctx context.Context, id string, at time.Time, exec ...core.DBExecutor) error

		GetRecord(ctx context.Context, studentID, classInstanceID string, exec ...core.DBExecutor) (Record, error)
		QueryInstanceRecords(ctx context.Context, classInstanceID string, exec ...core.DBExecutor) ([]Record, error)
		CreateRecord(ctx context.Context, rec Record, exec ...core.DBExecutor) (Record, error)

		IsAuthorisedMarker(ctx context.Context, markerID string, exec ...core.DBExecutor) (bool, error)
	}

	// ClassDirectory resolves class-instances and group membership; the
	// timetable service implements it.
	ClassDirectory interface {
		GetInstance(ctx context.Context, id string) (timetable.ClassInstance, error)
		GetStudent(ctx context.Context, id string) (timetable.Student, error)
		QueryGroupStudents(ctx context.Context, groupID string) ([]timetable.Student, error)
	}

	Service struct {
		repo    Repository
		classes ClassDirectory
		log     core.Logger

		// scanMu serialises scans per (student, class-instance) pair;
		// different pairs proceed concurrently.
		scanMu sync.Map // string -> *sync.Mutex
	}
)

func NewService(repo Repository, classes ClassDirectory, log core.Logger) *Service {
	return &Service{repo: repo, classes: classes, log: log}
}

// IssueToken invalidates any active token for the student and issues a fresh
// single-use token valid for TokenTTL.
func (svc *Service) IssueToken(ctx context.Context, studentID string, now time.Time) (Token, error) {
	if _, err := svc.classes.GetStudent(ctx, studentID); err != nil {
		return Token{}, err
	}
	if err := svc.repo.InvalidateStudentTokens(ctx, studentID, now); err != nil {
		return Token{}, err
	}
	nonce, err := generateNonce()
	if err != nil {
		return Token{}, err
	}
	return svc.repo.CreateToken(ctx, Token{
		StudentID: studentID,
		Nonce:     nonce,
		IssuedAt:  now,
		ExpiresAt: now.Add(TokenTTL),
	})
}

// Scan validates a faculty scan of a student token against the class window
// and marks the student present or late. The whole sequence is serialised per
// (student, class-instance) pair.
func (svc *Service) Scan(ctx context.Context, nonce, classInstanceID, markerID string, now time.Time) (ScanResult, error) {
	// 1. resolve the token
	tok, err := svc.repo.GetTokenByNonce(ctx, nonce)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ScanResult{}, ErrTokenMissing
		}
		return ScanResult{}, err
	}
	if tok.ExpiredAt(now) {
		return ScanResult{}, ErrTokenExpired
	}
	if tok.Consumed {
		return ScanResult{}, ErrTokenConsumed
	}
	student, err := svc.classes.GetStudent(ctx, tok.StudentID)
	if err != nil {
		if errors.Is(err, timetable.ErrNotFound) {
			return ScanResult{}, ErrTokenMissing
		}
		return ScanResult{}, err
	}

	// 2. resolve the class-instance
	inst, err := svc.classes.GetInstance(ctx, classInstanceID)
	if err != nil {
		return ScanResult{}, err
	}

	// 3. marker must be the assigned teacher or otherwise authorised
	if markerID != inst.Assignment.TeacherID {
		ok, err := svc.repo.IsAuthorisedMarker(ctx, markerID)
		if err != nil {
			return ScanResult{}, err
		}
		if !ok {
			return ScanResult{}, ErrUnauthorisedMarker
		}
	}

	// 4. student must belong to the instance's group
	if student.GroupID != inst.Assignment.GroupID {
		return ScanResult{}, ErrWrongGroup
	}

	// 5. the scan must land inside the slot window
	start, end := inst.Window()
	if now.Before(start) {
		return ScanResult{}, ErrNotYetStarted
	}
	if now.After(end) {
		return ScanResult{}, ErrEnded
	}

	// 6. late past the grace period
	res := ScanResult{Status: StatusPresent}
	if now.After(start.Add(GracePeriod)) {
		res.Status = StatusLate
		res.MinutesLate = int(now.Sub(start).Minutes())
	}

	// 7-8. consume + record in one transaction, serialised per
	// (student, instance). Consumption gates the record write: a concurrent
	// scan of the same nonce against another instance loses on the consumed
	// flag and leaves no record behind.
	unlock := svc.lockPair(student.ID, inst.ID)
	defer unlock()

	if _, err := svc.repo.GetRecord(ctx, student.ID, inst.ID); err == nil {
		return ScanResult{}, ErrAlreadyMarked
	} else if !errors.Is(err, ErrNotFound) {
		return ScanResult{}, err
	}
	err = svc.repo.Transact(ctx, func(exec core.DBExecutor) error {
		if err := svc.repo.ConsumeToken(ctx, tok.ID, now, exec); err != nil {
			return err
		}
		_, err := svc.repo.CreateRecord(ctx, Record{
			StudentID:       student.ID,
			ClassInstanceID: inst.ID,
			Status:          res.Status,
			MarkedAt:        now,
			Marker:          markerID,
		}, exec)
		return err
	})
	if err != nil {
		return ScanResult{}, err
	}
	return res, nil
}

// SweepAbsences writes absent records for every group member of the instance
// without an existing record. A no-op before the class window ends; running
// it twice never downgrades a present/late record and never duplicates.
// Returns the number of records created.
func (svc *Service) SweepAbsences(ctx context.Context, classInstanceID string, now time.Time) (int, error) {
	inst, err := svc.classes.GetInstance(ctx, classInstanceID)
	if err != nil {
		return 0, err
	}
	if _, end := inst.Window(); now.Before(end) {
		return 0, nil
	}

	students, err := svc.classes.QueryGroupStudents(ctx, inst.Assignment.GroupID)
	if err != nil {
		return 0, err
	}
	records, err := svc.repo.QueryInstanceRecords(ctx, inst.ID)
	if err != nil {
		return 0, err
	}
	marked := make(map[string]bool, len(records))
	for _, rec := range records {
		marked[rec.StudentID] = true
	}

	var created int
	for _, student := range students {
		if marked[student.ID] {
			continue
		}
		unlock := svc.lockPair(student.ID, inst.ID)
		_, err := svc.repo.CreateRecord(ctx, Record{
			StudentID:       student.ID,
			ClassInstanceID: inst.ID,
			Status:          StatusAbsent,
			MarkedAt:        now,
		})
		unlock()
		if err != nil {
			if errors.Is(err, ErrAlreadyMarked) {
				continue // raced with a concurrent scan
			}
			return created, err
		}
		created++
	}

	if svc.log != nil && created > 0 {
		svc.log.Info("absence sweep completed", map[string]interface{}{
			"class_instance": inst.ID, "absent": created,
		})
	}
	return created, nil
}

func (svc *Service) lockPair(studentID, instanceID string) (unlock func()) {
	v, _ := svc.scanMu.LoadOrStore(studentID+"|"+instanceID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
