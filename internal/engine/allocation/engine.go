// internal/engine/allocation/engine.go
package allocation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"admissions-workers/internal/common/config"
	commonerrors "admissions-workers/internal/common/errors"
	"admissions-workers/internal/common/logger"
	"admissions-workers/internal/common/metrics"
	"admissions-workers/internal/models"
	"admissions-workers/internal/store"
)

// maxPoolRetries bounds the re-read cycle after an optimistic
// concurrency conflict on the seat pool.
const maxPoolRetries = 5

// StreamResult is the outcome for one stream within a batch.
type StreamResult struct {
	Stream         models.Stream `json:"stream"`
	Considered     int           `json:"considered"`
	Accepted       int           `json:"accepted"`
	Rejected       int           `json:"rejected"`
	SeatsAvailable int           `json:"seatsAvailable"`
	Skipped        bool          `json:"skipped,omitempty"`
	Error          string        `json:"error,omitempty"`
}

// Report summarizes one allocation batch across all streams.
type Report struct {
	Streams    []StreamResult `json:"streams"`
	Duration   time.Duration  `json:"-"`
	DurationMs int64          `json:"durationMs"`
}

// Failed reports whether any stream ended in an error.
func (r *Report) Failed() bool {
	for _, sr := range r.Streams {
		if sr.Error != "" {
			return true
		}
	}
	return false
}

// Engine assigns seats to validated applicants in strict merit order,
// JEE rank ascending with email as the tie-break. Streams are
// allocated concurrently; within a stream there is a single writer:
// the whole read-decide-write cycle runs under a per-stream lock, and
// each decision write is conditional so a run never claims an
// applicant another run already decided. Decisions are persisted
// before the seat pool is decremented, and the decrement is exactly
// the count of acceptances actually claimed, so a partial failure
// never strands a seat. The pool update itself is still guarded by a
// version token against out-of-band capacity changes.
type Engine struct {
	store   store.Store
	streams map[string]config.StreamConfig
	logger  logger.Logger
}

func NewEngine(st store.Store, streams map[string]config.StreamConfig, log logger.Logger) *Engine {
	return &Engine{
		store:   st,
		streams: streams,
		logger:  log.WithFields(map[string]interface{}{"engine": "allocation"}),
	}
}

func (e *Engine) AllocateBatch(ctx context.Context) (*Report, error) {
	start := time.Now()

	streams, err := e.store.ListStreams(ctx)
	if err != nil {
		return nil, &commonerrors.StandardError{
			Code:      commonerrors.ErrCodeAllocationBatchFailed,
			Message:   "failed to list streams",
			Details:   err.Error(),
			Retryable: true,
			Timestamp: time.Now().UTC(),
		}
	}

	report := &Report{Streams: make([]StreamResult, len(streams))}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, stream := range streams {
		i, stream := i, stream
		g.Go(func() error {
			// A failed stream never aborts its siblings.
			result := e.allocateStream(gctx, stream)
			mu.Lock()
			report.Streams[i] = result
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	report.Duration = time.Since(start)
	report.DurationMs = report.Duration.Milliseconds()
	metrics.BatchDuration.WithLabelValues("allocation").Observe(report.Duration.Seconds())

	e.logger.Info("allocation batch complete", map[string]interface{}{
		"streams":    len(report.Streams),
		"failed":     report.Failed(),
		"durationMs": report.DurationMs,
	})
	return report, nil
}

func (e *Engine) allocateStream(ctx context.Context, stream models.Stream) StreamResult {
	result := StreamResult{Stream: stream}

	if _, ok := e.streams[string(stream)]; !ok {
		err := commonerrors.NewStreamConfigMissingError(string(stream))
		e.logger.Error("stream has a seat pool but no configuration", map[string]interface{}{
			"stream": stream,
		})
		result.Error = err.Error()
		return result
	}

	if err := e.store.WithStreamLock(ctx, stream, func(ctx context.Context) error {
		e.runStream(ctx, stream, &result)
		return nil
	}); err != nil {
		result.Error = fmt.Sprintf("failed to lock stream: %v", err)
	}
	return result
}

// runStream walks one stream's merit queue under the stream lock.
func (e *Engine) runStream(ctx context.Context, stream models.Stream, result *StreamResult) {
	pool, err := e.store.GetSeatPool(ctx, stream)
	if err != nil {
		result.Error = fmt.Sprintf("failed to read seat pool: %v", err)
		return
	}
	result.SeatsAvailable = pool.AvailableSeats

	eligible, err := e.store.GetEligibleForAllocation(ctx, stream)
	if err != nil {
		result.Error = fmt.Sprintf("failed to load eligible applicants: %v", err)
		return
	}
	result.Considered = len(eligible)

	if len(eligible) == 0 {
		return
	}

	// No seats to hand out: leave everyone pending so a future
	// capacity increase can still admit them.
	if pool.AvailableSeats == 0 {
		result.Skipped = true
		e.logger.Info("stream exhausted, skipping", map[string]interface{}{
			"stream":   stream,
			"eligible": len(eligible),
		})
		return
	}

	acceptCount := len(eligible)
	if acceptCount > pool.AvailableSeats {
		acceptCount = pool.AvailableSeats
	}

	// Decisions first. The pool is then decremented by the acceptances
	// actually claimed, so a write failure partway through cannot
	// decrement seats for decisions that were never recorded.
	claimed := e.writeDecisions(ctx, stream, eligible, acceptCount, result)
	if claimed == 0 {
		return
	}

	for attempt := 0; attempt < maxPoolRetries; attempt++ {
		err := e.store.UpdateSeatPool(ctx, stream, pool.AvailableSeats-claimed, pool.Version)
		if errors.Is(err, store.ErrVersionConflict) {
			metrics.SeatPoolConflicts.WithLabelValues(string(stream)).Inc()
			e.logger.Warn("seat pool changed concurrently, retrying decrement from a fresh read", map[string]interface{}{
				"stream":  stream,
				"attempt": attempt + 1,
			})
			pool, err = e.store.GetSeatPool(ctx, stream)
			if err != nil {
				result.Error = fmt.Sprintf("failed to re-read seat pool: %v", err)
				return
			}
			continue
		}
		if err != nil {
			result.Error = fmt.Sprintf("failed to update seat pool: %v", err)
			return
		}
		result.SeatsAvailable = pool.AvailableSeats - claimed
		return
	}

	result.Error = commonerrors.NewSeatPoolConflictError(string(stream)).Error()
}

// writeDecisions persists the merit walk and returns the number of
// acceptances actually claimed by this run. An applicant already
// claimed by another run is skipped; a write error stops the walk but
// keeps what was claimed so far, so the pool decrement stays in step
// with the recorded decisions.
func (e *Engine) writeDecisions(ctx context.Context, stream models.Stream, eligible []models.ApplicantRecord, acceptCount int, result *StreamResult) int {
	claimed := 0
	for i, rec := range eligible {
		accepted := i < acceptCount
		ok, err := e.store.UpdateAllocation(ctx, rec.Email, accepted)
		if err != nil {
			result.Error = fmt.Sprintf("failed to persist decision for %s: %v", rec.Email, err)
			break
		}
		if !ok {
			continue
		}
		if accepted {
			claimed++
			result.Accepted++
		} else {
			result.Rejected++
		}
		verdict := "accepted"
		if !accepted {
			verdict = "rejected"
		}
		metrics.ApplicantsShortlisted.WithLabelValues(string(stream), verdict).Inc()
		e.logger.Debug("decision recorded", map[string]interface{}{
			"email":    rec.Email,
			"stream":   stream,
			"jeeRank":  rec.JEERank,
			"accepted": accepted,
		})
	}
	return claimed
}
