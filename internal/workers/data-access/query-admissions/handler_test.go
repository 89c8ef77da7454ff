// internal/workers/data-access/query-admissions/handler_test.go
package queryadmissions

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admissions-workers/internal/common/logger"
	"admissions-workers/internal/models"
)

func TestHandler_Execute_ApplicantSummary(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"name", "stream_applied", "jee_rank",
		"validation_done", "valid", "edited", "issues",
		"shortlisting_done", "accepted",
	}).AddRow("Asha Rao", "CS", 1042, true, true, false, "", true, true)
	mock.ExpectQuery("SELECT a.name, a.stream_applied, a.jee_rank").
		WithArgs("asha@example.com").
		WillReturnRows(rows)

	handler := NewHandler(LoadConfig(), db, logger.NewTestLogger(t))
	output, err := handler.Execute(context.Background(), &Input{
		QueryType: models.QueryTypeApplicantSummary,
		Email:     "asha@example.com",
	})

	require.NoError(t, err)
	assert.Equal(t, 1, output.RowCount)
	data := output.Data.(map[string]interface{})
	assert.Equal(t, "Asha Rao", data["name"])
	assert.Equal(t, true, data["accepted"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_ApplicantSummary_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT a.name, a.stream_applied, a.jee_rank").
		WithArgs("ghost@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"name"}))

	handler := NewHandler(LoadConfig(), db, logger.NewTestLogger(t))
	_, err = handler.Execute(context.Background(), &Input{
		QueryType: models.QueryTypeApplicantSummary,
		Email:     "ghost@example.com",
	})

	assert.ErrorIs(t, err, ErrApplicantNotFound)
}

func TestHandler_Execute_SeatMatrix(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"stream", "total_seats", "available_seats", "version"}).
		AddRow("CS", 60, 12, int64(4)).
		AddRow("ECE", 45, 45, int64(0))
	mock.ExpectQuery("SELECT stream, total_seats, available_seats, version").
		WillReturnRows(rows)

	handler := NewHandler(LoadConfig(), db, logger.NewTestLogger(t))
	output, err := handler.Execute(context.Background(), &Input{
		QueryType: models.QueryTypeSeatMatrix,
	})

	require.NoError(t, err)
	assert.Equal(t, 2, output.RowCount)
	data := output.Data.([]map[string]interface{})
	assert.Equal(t, 48, data[0]["filled"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_ValidationBacklog(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"email", "stream_applied", "edited", "validation_attempts", "last_validation"}).
		AddRow("new@example.com", "CS", false, 0, nil).
		AddRow("edited@example.com", "ECE", true, 2, nil)
	mock.ExpectQuery("SELECT email, stream_applied, edited, validation_attempts, last_validation").
		WithArgs(10).
		WillReturnRows(rows)

	handler := NewHandler(LoadConfig(), db, logger.NewTestLogger(t))
	output, err := handler.Execute(context.Background(), &Input{
		QueryType: models.QueryTypeValidationBacklog,
		Params:    map[string]interface{}{"limit": float64(10)},
	})

	require.NoError(t, err)
	assert.Equal(t, 2, output.RowCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_UnknownQueryType(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	handler := NewHandler(LoadConfig(), db, logger.NewTestLogger(t))
	_, err = handler.Execute(context.Background(), &Input{QueryType: "everything"})

	assert.ErrorIs(t, err, ErrInvalidQueryType)
}

func TestHandler_Execute_MissingParam(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	handler := NewHandler(LoadConfig(), db, logger.NewTestLogger(t))
	_, err = handler.Execute(context.Background(), &Input{
		QueryType: models.QueryTypeApplicantSummary,
	})

	assert.ErrorIs(t, err, ErrQueryExecutionFailed)
}

func TestHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"invalid query type", ErrInvalidQueryType, "INVALID_QUERY_TYPE"},
		{"query timeout", ErrQueryTimeout, "QUERY_TIMEOUT"},
		{"applicant not found", ErrApplicantNotFound, "APPLICANT_NOT_FOUND"},
		{"execution failed", ErrQueryExecutionFailed, "QUERY_EXECUTION_FAILED"},
		{"connection failed", ErrDatabaseConnectionFailed, "DATABASE_CONNECTION_FAILED"},
	}

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	handler := NewHandler(LoadConfig(), db, logger.NewTestLogger(t))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, handler.mapErrorToCode(tt.err))
		})
	}
}
