// internal/engine/validation/engine_test.go
package validation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admissions-workers/internal/common/logger"
	"admissions-workers/internal/documents/documentstest"
	"admissions-workers/internal/models"
	"admissions-workers/internal/store/storetest"
)

func newEngineUnderTest(t *testing.T) (*Engine, *storetest.FakeStore, *documentstest.StaticProvider) {
	st := storetest.NewFakeStore()
	provider := documentstest.NewStaticProvider()
	engine := NewEngine(st, provider, testConfig(), logger.NewTestLogger(t))
	return engine, st, provider
}

func seedApplicant(st *storetest.FakeStore, provider *documentstest.StaticProvider, mutate func(*models.ApplicantRecord)) models.ApplicantRecord {
	rec := cleanRecord()
	if mutate != nil {
		mutate(&rec)
	}
	st.AddApplicant(rec)
	provider.Facts[rec.Email] = matchingFacts(rec)
	return rec
}

func TestValidateBatch(t *testing.T) {
	t.Run("mixed batch", func(t *testing.T) {
		engine, st, provider := newEngineUnderTest(t)

		seedApplicant(st, provider, nil)
		seedApplicant(st, provider, func(r *models.ApplicantRecord) {
			r.Email = "bad-mobile@example.com"
			r.MobileNumber = "98765"
		})
		// Already validated, untouched since: not part of the batch.
		seedApplicant(st, provider, func(r *models.ApplicantRecord) {
			r.Email = "done@example.com"
			r.ValidationDone = true
			r.Valid = true
		})

		report, err := engine.ValidateBatch(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 2, report.Processed)
		assert.Equal(t, 1, report.Valid)
		assert.Equal(t, 1, report.Invalid)
		assert.Equal(t, 0, report.FactLookupFailures)

		good := st.Applicant("asha@example.com")
		assert.True(t, good.ValidationDone)
		assert.True(t, good.Valid)
		assert.Empty(t, good.Issues)
		assert.Equal(t, 1, good.ValidationAttempts)
		require.NotNil(t, good.LastValidation)

		bad := st.Applicant("bad-mobile@example.com")
		assert.True(t, bad.ValidationDone)
		assert.False(t, bad.Valid)
		assert.Equal(t, []string{"mobile number must be exactly 10 digits"}, bad.Issues)
	})

	t.Run("rerun without edits processes nothing", func(t *testing.T) {
		engine, st, provider := newEngineUnderTest(t)
		seedApplicant(st, provider, nil)

		_, err := engine.ValidateBatch(context.Background())
		require.NoError(t, err)

		report, err := engine.ValidateBatch(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, report.Processed)
		assert.Equal(t, 1, st.Applicant("asha@example.com").ValidationAttempts)
	})

	t.Run("edited record is revalidated and attempts accumulate", func(t *testing.T) {
		engine, st, provider := newEngineUnderTest(t)
		rec := seedApplicant(st, provider, func(r *models.ApplicantRecord) {
			r.ValidationDone = true
			r.Valid = false
			r.Issues = []string{"mobile number must be exactly 10 digits"}
			r.EditedSinceLastRun = true
			r.ValidationAttempts = 1
		})

		report, err := engine.ValidateBatch(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, report.Processed)

		got := st.Applicant(rec.Email)
		assert.True(t, got.Valid)
		assert.Empty(t, got.Issues)
		assert.False(t, got.EditedSinceLastRun)
		assert.Equal(t, 2, got.ValidationAttempts)
	})

	t.Run("missing documents make the record invalid", func(t *testing.T) {
		engine, st, _ := newEngineUnderTest(t)
		rec := cleanRecord()
		st.AddApplicant(rec)

		report, err := engine.ValidateBatch(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, report.Invalid)

		got := st.Applicant(rec.Email)
		assert.False(t, got.Valid)
		assert.Equal(t, []string{"no documents uploaded"}, got.Issues)
	})

	t.Run("transient lookup failure leaves the record pending", func(t *testing.T) {
		engine, st, provider := newEngineUnderTest(t)
		rec := seedApplicant(st, provider, nil)
		provider.Err = errors.New("search unavailable")

		report, err := engine.ValidateBatch(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, report.Processed)
		assert.Equal(t, 1, report.FactLookupFailures)

		got := st.Applicant(rec.Email)
		assert.False(t, got.ValidationDone)
		assert.Equal(t, 0, got.ValidationAttempts)

		// The provider recovers and the next batch picks the record up.
		provider.Err = nil
		report, err = engine.ValidateBatch(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, report.Processed)
		assert.True(t, st.Applicant(rec.Email).Valid)
	})

	t.Run("verdict write failure does not abort the batch", func(t *testing.T) {
		engine, st, provider := newEngineUnderTest(t)

		seedApplicant(st, provider, nil)
		seedApplicant(st, provider, func(r *models.ApplicantRecord) { r.Email = "b@example.com" })
		seedApplicant(st, provider, func(r *models.ApplicantRecord) { r.Email = "c@example.com" })
		seedApplicant(st, provider, func(r *models.ApplicantRecord) { r.Email = "d@example.com" })
		st.FailValidationFor["b@example.com"] = errors.New("connection reset")

		report, err := engine.ValidateBatch(context.Background())
		require.NoError(t, err)
		require.NotNil(t, report)

		assert.Equal(t, 3, report.Processed)
		assert.Equal(t, 3, report.Valid)
		assert.Equal(t, 1, report.WriteFailures)

		// The failed record stays pending, untouched.
		got := st.Applicant("b@example.com")
		assert.False(t, got.ValidationDone)
		assert.Equal(t, 0, got.ValidationAttempts)

		// The next batch picks up exactly the one leftover.
		delete(st.FailValidationFor, "b@example.com")
		report, err = engine.ValidateBatch(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, report.Processed)
		assert.Equal(t, 0, report.WriteFailures)
		assert.True(t, st.Applicant("b@example.com").Valid)
	})

	t.Run("rejected decision is reopened on revalidation", func(t *testing.T) {
		engine, st, provider := newEngineUnderTest(t)
		rec := seedApplicant(st, provider, func(r *models.ApplicantRecord) {
			r.ValidationDone = true
			r.Valid = true
			r.EditedSinceLastRun = true
		})
		claimed, err := st.UpdateAllocation(context.Background(), rec.Email, false)
		require.NoError(t, err)
		require.True(t, claimed)

		_, err = engine.ValidateBatch(context.Background())
		require.NoError(t, err)

		dec := st.Decision(rec.Email)
		require.NotNil(t, dec)
		assert.False(t, dec.ShortlistingDone, "rejected decision must reopen so the applicant re-enters the merit queue")
	})

	t.Run("accepted decision survives revalidation", func(t *testing.T) {
		engine, st, provider := newEngineUnderTest(t)
		rec := seedApplicant(st, provider, func(r *models.ApplicantRecord) {
			r.ValidationDone = true
			r.Valid = true
			r.EditedSinceLastRun = true
		})
		claimed, err := st.UpdateAllocation(context.Background(), rec.Email, true)
		require.NoError(t, err)
		require.True(t, claimed)

		_, err = engine.ValidateBatch(context.Background())
		require.NoError(t, err)

		dec := st.Decision(rec.Email)
		require.NotNil(t, dec)
		assert.True(t, dec.ShortlistingDone)
		assert.True(t, dec.Accepted)
	})
}
