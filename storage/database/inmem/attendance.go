package inmem

import (
	"context"
	"time"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/attendance"
)

type attendanceRepo struct {
	db *DB
}

var _ attendance.Repository = (*attendanceRepo)(nil)

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepo{db: db}
}

// Transact mimics a transaction by snapshotting the attendance tables and
// restoring them when fn fails.
func (repo *attendanceRepo) Transact(_ context.Context, fn func(exec core.DBExecutor) error) error {
	repo.db.txMu.Lock()
	defer repo.db.txMu.Unlock()

	repo.db.mu.Lock()
	tokens, records := copyMap(repo.db.tokens), copyMap(repo.db.records)
	repo.db.mu.Unlock()

	if err := fn(nil); err != nil {
		repo.db.mu.Lock()
		repo.db.tokens, repo.db.records = tokens, records
		repo.db.mu.Unlock()
		return err
	}
	return nil
}

func (repo *attendanceRepo) GetTokenByNonce(_ context.Context, nonce string, _ ...core.DBExecutor) (attendance.Token, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	for _, tok := range repo.db.tokens {
		if tok.Nonce == nonce {
			return tok, nil
		}
	}
	return attendance.Token{}, attendance.ErrNotFound
}

func (repo *attendanceRepo) InvalidateStudentTokens(_ context.Context, studentID string, at time.Time, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	for id, tok := range repo.db.tokens {
		if tok.StudentID == studentID && !tok.Consumed && tok.ExpiresAt.After(at) {
			tok.ExpiresAt = at
			repo.db.tokens[id] = tok
		}
	}
	return nil
}

func (repo *attendanceRepo) CreateToken(_ context.Context, tok attendance.Token, _ ...core.DBExecutor) (attendance.Token, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	tok.ID = newID(tok.ID)
	repo.db.tokens[tok.ID] = tok
	return tok, nil
}

func (repo *attendanceRepo) ConsumeToken(_ context.Context, id string, at time.Time, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	tok, ok := repo.db.tokens[id]
	if !ok {
		return attendance.ErrNotFound
	}
	if tok.Consumed {
		return attendance.ErrTokenConsumed
	}
	tok.Consumed = true
	tok.ConsumedAt = at
	repo.db.tokens[id] = tok
	return nil
}

func (repo *attendanceRepo) GetRecord(_ context.Context, studentID, classInstanceID string, _ ...core.DBExecutor) (attendance.Record, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	rec, ok := repo.db.records[recordKey(studentID, classInstanceID)]
	if !ok {
		return attendance.Record{}, attendance.ErrNotFound
	}
	return rec, nil
}

func (repo *attendanceRepo) QueryInstanceRecords(_ context.Context, classInstanceID string, _ ...core.DBExecutor) ([]attendance.Record, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	var records []attendance.Record
	for _, rec := range values(repo.db.records) {
		if rec.ClassInstanceID == classInstanceID {
			records = append(records, rec)
		}
	}
	return records, nil
}

func (repo *attendanceRepo) CreateRecord(_ context.Context, rec attendance.Record, _ ...core.DBExecutor) (attendance.Record, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	key := recordKey(rec.StudentID, rec.ClassInstanceID)
	if _, exists := repo.db.records[key]; exists {
		return attendance.Record{}, attendance.ErrAlreadyMarked
	}
	rec.ID = newID(rec.ID)
	repo.db.records[key] = rec
	return rec, nil
}

func (repo *attendanceRepo) IsAuthorisedMarker(_ context.Context, markerID string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.db.markers[markerID], nil
}
