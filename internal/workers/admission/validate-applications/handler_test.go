// internal/workers/admission/validate-applications/handler_test.go
package validateapplications

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admissions-workers/internal/common/config"
	"admissions-workers/internal/common/logger"
	"admissions-workers/internal/documents"
	"admissions-workers/internal/documents/documentstest"
	"admissions-workers/internal/engine/validation"
	"admissions-workers/internal/models"
	"admissions-workers/internal/store/storetest"
)

func validationConfig() config.ValidationConfig {
	return config.ValidationConfig{
		EvaluationYear:  2022,
		MinSubjectMarks: 60,
		Class10MaxAge:   4,
		Class12MaxAge:   2,
		MarksTolerance:  0.5,
		WorkerCount:     2,
		ProviderTimeout: 5000,
	}
}

func seed(st *storetest.FakeStore, provider *documentstest.StaticProvider, email, mobile string) {
	rec := models.ApplicantRecord{
		Email:            email,
		Name:             "Test Applicant",
		MobileNumber:     mobile,
		AadhaarNumber:    "123456789012",
		DOB:              "2004-01-01",
		Class10Year:      2020,
		Class10AvgMarks:  85,
		Class12Year:      2022,
		Class12Physics:   80,
		Class12Chemistry: 82,
		Class12Maths:     84,
		JEEYear:          2022,
		JEERank:          100,
		StreamApplied:    models.StreamCS,
	}
	st.AddApplicant(rec)
	provider.Facts[email] = &documents.Facts{
		Aadhaar: &documents.AadhaarFacts{Name: rec.Name, AadhaarNumber: rec.AadhaarNumber, DOB: rec.DOB},
		Class10: &documents.Class10Facts{Name: rec.Name, Year: rec.Class10Year, AvgMarks: rec.Class10AvgMarks},
		Class12: &documents.Class12Facts{Name: rec.Name, Year: rec.Class12Year, Physics: 80, Chemistry: 82, Maths: 84},
		JEE:     &documents.JEEFacts{Name: rec.Name, Year: rec.JEEYear, Rank: rec.JEERank},
	}
}

func TestHandler_Execute(t *testing.T) {
	st := storetest.NewFakeStore()
	provider := documentstest.NewStaticProvider()
	seed(st, provider, "good@example.com", "9876543210")
	seed(st, provider, "bad@example.com", "98765")

	engine := validation.NewEngine(st, provider, validationConfig(), logger.NewTestLogger(t))
	handler := NewHandler(LoadConfig(), engine, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{TriggeredBy: "manual", BatchID: "batch-7"})
	require.NoError(t, err)

	assert.Equal(t, "batch-7", output.BatchID)
	assert.Equal(t, 2, output.Processed)
	assert.Equal(t, 1, output.Valid)
	assert.Equal(t, 1, output.Invalid)
	assert.NotEmpty(t, output.CompletedAt)

	assert.True(t, st.Applicant("good@example.com").Valid)
	assert.False(t, st.Applicant("bad@example.com").Valid)
}

func TestHandler_Execute_GeneratesBatchID(t *testing.T) {
	st := storetest.NewFakeStore()
	provider := documentstest.NewStaticProvider()
	engine := validation.NewEngine(st, provider, validationConfig(), logger.NewTestLogger(t))
	handler := NewHandler(LoadConfig(), engine, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{})
	require.NoError(t, err)
	assert.NotEmpty(t, output.BatchID)
	assert.Equal(t, 0, output.Processed)
}
