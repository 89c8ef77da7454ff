// internal/engine/validation/engine.go
package validation

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"admissions-workers/internal/common/config"
	commonerrors "admissions-workers/internal/common/errors"
	"admissions-workers/internal/common/logger"
	"admissions-workers/internal/common/metrics"
	"admissions-workers/internal/documents"
	"admissions-workers/internal/models"
	"admissions-workers/internal/store"
)

// Report summarizes one validation batch. Lookup and write failures
// are counted, not fatal: the affected applicants stay pending and the
// next run retries them.
type Report struct {
	Processed          int           `json:"processed"`
	Valid              int           `json:"valid"`
	Invalid            int           `json:"invalid"`
	FactLookupFailures int           `json:"factLookupFailures"`
	WriteFailures      int           `json:"writeFailures"`
	Duration           time.Duration `json:"-"`
	DurationMs         int64         `json:"durationMs"`
}

// outcome of one applicant's pass through the engine.
type outcome int

const (
	outcomeDecided outcome = iota
	outcomeLookupFailed
	outcomeWriteFailed
)

// Engine validates every applicant that has never been validated or
// was edited since its last run. Applicants are processed in parallel;
// each verdict is persisted individually, so a crash mid-batch loses
// no completed work and the next run picks up only the remainder.
type Engine struct {
	store    store.Store
	provider documents.Provider
	cfg      config.ValidationConfig
	logger   logger.Logger
}

func NewEngine(st store.Store, provider documents.Provider, cfg config.ValidationConfig, log logger.Logger) *Engine {
	return &Engine{
		store:    st,
		provider: provider,
		cfg:      cfg,
		logger:   log.WithFields(map[string]interface{}{"engine": "validation"}),
	}
}

func (e *Engine) ValidateBatch(ctx context.Context) (*Report, error) {
	start := time.Now()

	pending, err := e.store.GetPendingValidation(ctx)
	if err != nil {
		return nil, &commonerrors.StandardError{
			Code:      commonerrors.ErrCodeValidationBatchFailed,
			Message:   "failed to load pending applicants",
			Details:   err.Error(),
			Retryable: true,
			Timestamp: time.Now().UTC(),
		}
	}

	report := &Report{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workerCount())

	for i := range pending {
		rec := pending[i]
		// A failed applicant never aborts its siblings: failures are
		// counted and the record stays pending for the next run.
		g.Go(func() error {
			verdict, out := e.validateOne(gctx, &rec)
			mu.Lock()
			defer mu.Unlock()
			switch out {
			case outcomeLookupFailed:
				report.FactLookupFailures++
			case outcomeWriteFailed:
				report.WriteFailures++
			default:
				report.Processed++
				if verdict {
					report.Valid++
				} else {
					report.Invalid++
				}
			}
			return nil
		})
	}
	g.Wait()

	report.Duration = time.Since(start)
	report.DurationMs = report.Duration.Milliseconds()
	metrics.BatchDuration.WithLabelValues("validation").Observe(report.Duration.Seconds())

	e.logger.Info("validation batch complete", map[string]interface{}{
		"processed":          report.Processed,
		"valid":              report.Valid,
		"invalid":            report.Invalid,
		"factLookupFailures": report.FactLookupFailures,
		"writeFailures":      report.WriteFailures,
		"durationMs":         report.DurationMs,
	})
	return report, nil
}

// validateOne returns the verdict and how the record fared. A lookup
// or write failure leaves the record untouched; it stays pending for
// the next batch.
func (e *Engine) validateOne(ctx context.Context, rec *models.ApplicantRecord) (bool, outcome) {
	issues := CheckRecord(rec, e.cfg)

	facts, err := e.fetchFacts(ctx, rec.Email)
	if err != nil {
		if errors.Is(err, documents.ErrFactsNotFound) {
			issues = append(issues, CrossCheck(rec, nil, e.cfg)...)
		} else {
			e.logger.Warn("document lookup failed, leaving applicant pending", map[string]interface{}{
				"email": rec.Email,
				"error": err.Error(),
			})
			return false, outcomeLookupFailed
		}
	} else {
		issues = append(issues, CrossCheck(rec, facts, e.cfg)...)
	}

	verdict := len(issues) == 0
	if err := e.store.UpdateValidation(ctx, rec.Email, verdict, Messages(issues), time.Now().UTC()); err != nil {
		e.logger.Warn("verdict write failed, leaving applicant pending", map[string]interface{}{
			"email": rec.Email,
			"error": err.Error(),
		})
		return false, outcomeWriteFailed
	}

	verdictLabel := "valid"
	if !verdict {
		verdictLabel = "invalid"
	}
	metrics.ApplicationsValidated.WithLabelValues(verdictLabel).Inc()
	for _, issue := range issues {
		metrics.ValidationIssues.WithLabelValues(issue.Rule).Inc()
	}

	e.logger.Debug("applicant validated", map[string]interface{}{
		"email":   rec.Email,
		"valid":   verdict,
		"issues":  len(issues),
		"attempt": rec.ValidationAttempts + 1,
	})
	return verdict, outcomeDecided
}

func (e *Engine) fetchFacts(ctx context.Context, email string) (*documents.Facts, error) {
	timeout := time.Duration(e.cfg.ProviderTimeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	fctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return e.provider.Fetch(fctx, email)
}

func (e *Engine) workerCount() int {
	if e.cfg.WorkerCount <= 0 {
		return 4
	}
	return e.cfg.WorkerCount
}
