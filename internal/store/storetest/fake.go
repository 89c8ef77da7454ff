// internal/store/storetest/fake.go
//
// In-memory Store used by engine and end-to-end tests. Mirrors the
// postgres implementation's semantics, including the seat pool version
// check, without any database.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"admissions-workers/internal/models"
	"admissions-workers/internal/store"
)

type FakeStore struct {
	mu          sync.Mutex
	applicants  map[string]*models.ApplicantRecord
	decisions   map[string]*models.AllocationDecision
	pools       map[models.Stream]*models.SeatPool
	logEntries  []LogEntry
	streamLocks map[models.Stream]*sync.Mutex

	// validation notifications pending per email
	validationPending map[string]bool

	// FailSeatPoolUpdates forces the next N UpdateSeatPool calls to
	// return ErrVersionConflict, for retry-path tests.
	FailSeatPoolUpdates int

	// FailValidationFor makes UpdateValidation fail for these emails,
	// for write-failure-path tests.
	FailValidationFor map[string]error

	// FailAllocationFor makes UpdateAllocation fail for these emails,
	// for partial-write tests.
	FailAllocationFor map[string]error
}

type LogEntry struct {
	Email        string
	StatusChange string
	ChangedBy    string
	ChangedAt    time.Time
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		applicants:        make(map[string]*models.ApplicantRecord),
		decisions:         make(map[string]*models.AllocationDecision),
		pools:             make(map[models.Stream]*models.SeatPool),
		streamLocks:       make(map[models.Stream]*sync.Mutex),
		validationPending: make(map[string]bool),
		FailValidationFor: make(map[string]error),
		FailAllocationFor: make(map[string]error),
	}
}

// AddApplicant seeds a record, overwriting any existing one.
func (f *FakeStore) AddApplicant(rec models.ApplicantRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applicants[rec.Email] = &rec
}

// Applicant returns a copy of the stored record, or nil.
func (f *FakeStore) Applicant(email string) *models.ApplicantRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.applicants[email]; ok {
		cp := *rec
		return &cp
	}
	return nil
}

// Decision returns a copy of the stored decision, or nil.
func (f *FakeStore) Decision(email string) *models.AllocationDecision {
	f.mu.Lock()
	defer f.mu.Unlock()
	if dec, ok := f.decisions[email]; ok {
		cp := *dec
		return &cp
	}
	return nil
}

// Log returns the audit entries recorded so far.
func (f *FakeStore) Log() []LogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]LogEntry, len(f.logEntries))
	copy(out, f.logEntries)
	return out
}

func (f *FakeStore) GetPendingValidation(ctx context.Context) ([]models.ApplicantRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var records []models.ApplicantRecord
	for _, rec := range f.applicants {
		if !rec.ValidationDone || rec.EditedSinceLastRun {
			records = append(records, *rec)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Email < records[j].Email })
	return records, nil
}

func (f *FakeStore) GetByEmail(ctx context.Context, email string) (*models.ApplicantRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.applicants[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *FakeStore) UpdateValidation(ctx context.Context, email string, valid bool, issues []string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.FailValidationFor[email]; ok {
		return err
	}
	rec, ok := f.applicants[email]
	if !ok {
		return store.ErrNotFound
	}
	rec.ValidationDone = true
	rec.Valid = valid
	rec.Issues = append([]string(nil), issues...)
	rec.EditedSinceLastRun = false
	rec.ValidationAttempts++
	t := at
	rec.LastValidation = &t
	f.validationPending[email] = true

	if dec, ok := f.decisions[email]; ok && !dec.Accepted {
		dec.ShortlistingDone = false
		dec.NotificationSent = false
	}

	verdict := "valid"
	if !valid {
		verdict = "invalid"
	}
	f.logEntries = append(f.logEntries, LogEntry{
		Email: email, StatusChange: "validation: " + verdict,
		ChangedBy: "validation-engine", ChangedAt: time.Now().UTC(),
	})
	return nil
}

func (f *FakeStore) ListStreams(ctx context.Context) ([]models.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var streams []models.Stream
	for stream := range f.pools {
		streams = append(streams, stream)
	}
	sort.Slice(streams, func(i, j int) bool { return streams[i] < streams[j] })
	return streams, nil
}

func (f *FakeStore) GetSeatPool(ctx context.Context, stream models.Stream) (*models.SeatPool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pool, ok := f.pools[stream]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *pool
	return &cp, nil
}

func (f *FakeStore) EnsureSeatPool(ctx context.Context, stream models.Stream, totalSeats int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pool, ok := f.pools[stream]; ok {
		pool.TotalSeats = totalSeats
		return nil
	}
	f.pools[stream] = &models.SeatPool{
		Stream: stream, TotalSeats: totalSeats, AvailableSeats: totalSeats,
	}
	return nil
}

func (f *FakeStore) UpdateSeatPool(ctx context.Context, stream models.Stream, newAvailable int, version int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	pool, ok := f.pools[stream]
	if !ok {
		return store.ErrNotFound
	}
	if f.FailSeatPoolUpdates > 0 {
		f.FailSeatPoolUpdates--
		return store.ErrVersionConflict
	}
	if pool.Version != version {
		return store.ErrVersionConflict
	}
	pool.AvailableSeats = newAvailable
	pool.Version++
	return nil
}

func (f *FakeStore) GetEligibleForAllocation(ctx context.Context, stream models.Stream) ([]models.ApplicantRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var records []models.ApplicantRecord
	for _, rec := range f.applicants {
		if rec.StreamApplied != stream {
			continue
		}
		if !rec.ValidationDone || !rec.Valid || rec.EditedSinceLastRun {
			continue
		}
		if dec, ok := f.decisions[rec.Email]; ok && dec.ShortlistingDone {
			continue
		}
		records = append(records, *rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].JEERank != records[j].JEERank {
			return records[i].JEERank < records[j].JEERank
		}
		return records[i].Email < records[j].Email
	})
	return records, nil
}

func (f *FakeStore) GetDecision(ctx context.Context, email string) (*models.AllocationDecision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	dec, ok := f.decisions[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *dec
	return &cp, nil
}

func (f *FakeStore) UpdateAllocation(ctx context.Context, email string, accepted bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.FailAllocationFor[email]; ok {
		return false, err
	}
	dec, ok := f.decisions[email]
	if ok && dec.ShortlistingDone {
		return false, nil
	}
	if !ok {
		dec = &models.AllocationDecision{Email: email}
		f.decisions[email] = dec
	}
	dec.ShortlistingDone = true
	dec.Accepted = accepted
	dec.NotificationSent = false

	verdict := "accepted"
	if !accepted {
		verdict = "rejected"
	}
	f.logEntries = append(f.logEntries, LogEntry{
		Email: email, StatusChange: "allocation: " + verdict,
		ChangedBy: "allocation-engine", ChangedAt: time.Now().UTC(),
	})
	return true, nil
}

// WithStreamLock serializes allocation runs per stream, mirroring the
// postgres advisory lock.
func (f *FakeStore) WithStreamLock(ctx context.Context, stream models.Stream, fn func(context.Context) error) error {
	f.mu.Lock()
	l, ok := f.streamLocks[stream]
	if !ok {
		l = &sync.Mutex{}
		f.streamLocks[stream] = l
	}
	f.mu.Unlock()

	l.Lock()
	defer l.Unlock()
	return fn(ctx)
}

func (f *FakeStore) PendingNotifications(ctx context.Context, limit int) ([]models.NotificationEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var events []models.NotificationEvent
	for email, pending := range f.validationPending {
		if !pending {
			continue
		}
		rec := f.applicants[email]
		if rec == nil {
			continue
		}
		verdict := models.VerdictValid
		if !rec.Valid {
			verdict = models.VerdictInvalid
		}
		events = append(events, models.NotificationEvent{
			ID: uuid.New().String(), Email: email,
			Kind: models.NotificationValidation, Verdict: verdict,
			Issues: append([]string(nil), rec.Issues...), Timestamp: time.Now().UTC(),
		})
	}
	for email, dec := range f.decisions {
		if !dec.ShortlistingDone || dec.NotificationSent {
			continue
		}
		verdict := models.VerdictAccepted
		if !dec.Accepted {
			verdict = models.VerdictRejected
		}
		events = append(events, models.NotificationEvent{
			ID: uuid.New().String(), Email: email,
			Kind: models.NotificationAllocation, Verdict: verdict,
			Timestamp: time.Now().UTC(),
		})
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].Email != events[j].Email {
			return events[i].Email < events[j].Email
		}
		return events[i].Kind < events[j].Kind
	})
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (f *FakeStore) MarkNotified(ctx context.Context, email string, kind models.NotificationKind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch kind {
	case models.NotificationValidation:
		if _, ok := f.applicants[email]; !ok {
			return store.ErrNotFound
		}
		f.validationPending[email] = false
	case models.NotificationAllocation:
		dec, ok := f.decisions[email]
		if !ok {
			return store.ErrNotFound
		}
		dec.NotificationSent = true
	}
	return nil
}

func (f *FakeStore) LogStatusChange(ctx context.Context, email, statusChange, changedBy string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logEntries = append(f.logEntries, LogEntry{
		Email: email, StatusChange: statusChange, ChangedBy: changedBy, ChangedAt: time.Now().UTC(),
	})
	return nil
}
