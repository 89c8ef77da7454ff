// internal/store/store.go
package store

import (
	"context"
	"errors"
	"time"

	"admissions-workers/internal/models"
)

var (
	// ErrNotFound is returned when no record exists for the given key.
	ErrNotFound = errors.New("record not found")

	// ErrVersionConflict is returned by UpdateSeatPool when the pool was
	// updated concurrently since the version token was read.
	ErrVersionConflict = errors.New("seat pool version conflict")
)

// Store is the application store both engines operate on. One
// implementation is postgres-backed; tests use the in-memory fake in
// the storetest package.
type Store interface {
	// Validation side.
	GetPendingValidation(ctx context.Context) ([]models.ApplicantRecord, error)
	GetByEmail(ctx context.Context, email string) (*models.ApplicantRecord, error)

	// UpdateValidation records a validation verdict in one atomic
	// operation: validation_done=true, valid=<verdict>, issues,
	// validation_attempts+1, last_validation=at, edited=false, and the
	// validation notification flagged pending. A verdict on an edited
	// record also reopens a rejected (never an accepted) allocation
	// decision so the applicant can re-enter the merit queue.
	UpdateValidation(ctx context.Context, email string, valid bool, issues []string, at time.Time) error

	// Allocation side.
	ListStreams(ctx context.Context) ([]models.Stream, error)
	GetSeatPool(ctx context.Context, stream models.Stream) (*models.SeatPool, error)

	// EnsureSeatPool creates the pool row for a stream if absent
	// (available = total) and keeps total_seats in sync with
	// configuration otherwise.
	EnsureSeatPool(ctx context.Context, stream models.Stream, totalSeats int) error

	// UpdateSeatPool writes a new available-seat count guarded by the
	// version token read with GetSeatPool. Returns ErrVersionConflict
	// if the pool changed in between.
	UpdateSeatPool(ctx context.Context, stream models.Stream, newAvailable int, version int64) error

	GetEligibleForAllocation(ctx context.Context, stream models.Stream) ([]models.ApplicantRecord, error)
	GetDecision(ctx context.Context, email string) (*models.AllocationDecision, error)

	// UpdateAllocation settles one applicant's decision:
	// shortlisting_done=true, accepted=<verdict>, allocation
	// notification flagged pending. The write is conditional on the
	// applicant not being shortlisted yet; it reports false when
	// another run already claimed the decision, so seats are never
	// decremented twice for the same applicant.
	UpdateAllocation(ctx context.Context, email string, accepted bool) (bool, error)

	// WithStreamLock runs fn while holding an exclusive per-stream
	// lock, so one allocation writer at a time touches a stream's
	// decisions and seat pool.
	WithStreamLock(ctx context.Context, stream models.Stream, fn func(context.Context) error) error

	// Notification side.
	PendingNotifications(ctx context.Context, limit int) ([]models.NotificationEvent, error)
	MarkNotified(ctx context.Context, email string, kind models.NotificationKind) error

	// Audit trail.
	LogStatusChange(ctx context.Context, email, statusChange, changedBy string) error
}
