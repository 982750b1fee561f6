package attendance

import (
	"time"
)

// Status of an attendance record.
type Status string

const (
	StatusPresent Status = "present"
	StatusLate    Status = "late"
	StatusAbsent  Status = "absent"
)

const (
	// TokenTTL bounds a token's life after issuance.
	TokenTTL = 24 * time.Hour

	// GracePeriod is how long after slot start an arrival still counts as
	// present. Frozen by contract; not per-course configurable.
	GracePeriod = 15 * time.Minute
)

// Token is a single-use, time-bounded credential tying a student to at most
// one scan. A student has at most one active token at a time.
type Token struct {
	ID         string    `json:"id"`
	StudentID  string    `json:"student_id"`
	Nonce      string    `json:"nonce"` // URL-safe, stable across serialisation
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Consumed   bool      `json:"consumed"`
	ConsumedAt time.Time `json:"consumed_at,omitempty"`
}

// ExpiredAt reports whether the token is stale at the given instant.
// A token issued at T expires exactly at T+TTL: a scan at T+TTL is rejected.
func (t Token) ExpiredAt(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Record is an immutable attendance fact for one (student, class-instance)
// pair. Marker is empty when the absence sweep wrote the record.
type Record struct {
	ID              string    `json:"id"`
	StudentID       string    `json:"student_id"`
	ClassInstanceID string    `json:"class_instance_id"`
	Status          Status    `json:"status"`
	MarkedAt        time.Time `json:"marked_at"`
	Marker          string    `json:"marker,omitempty"`
}

// ScanResult is a successful scan outcome.
type ScanResult struct {
	Status      Status `json:"status"`
	MinutesLate int    `json:"minutes_late,omitempty"` // rounded down, 0 when present
}
