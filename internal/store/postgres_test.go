// internal/store/postgres_test.go
package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admissions-workers/internal/common/logger"
	"admissions-workers/internal/models"
)

func applicantRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"email", "name", "mobile_number", "aadhaar_number", "dob",
		"class10_year", "class10_avg_marks",
		"class12_year", "class12_physics", "class12_chemistry", "class12_maths",
		"jee_year", "jee_rank", "stream_applied",
		"validation_done", "valid", "issues", "edited",
		"validation_attempts", "last_validation",
	})
}

func TestPostgresStore_GetByEmail(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		rows := applicantRows().AddRow(
			"asha@example.com", "Asha Rao", "9876543210", "123456789012", "2004-06-12",
			2020, 88.5,
			2022, 91.0, 84.0, 95.5,
			2022, 1042, "CS",
			true, false, "mobile number must be exactly 10 digits", false,
			2, time.Now().UTC(),
		)
		mock.ExpectQuery("SELECT (.+) FROM applicants WHERE email").
			WithArgs("asha@example.com").
			WillReturnRows(rows)

		s := NewPostgresStore(db, logger.NewNoOpLogger())
		rec, err := s.GetByEmail(context.Background(), "asha@example.com")

		require.NoError(t, err)
		assert.Equal(t, "Asha Rao", rec.Name)
		assert.Equal(t, models.StreamCS, rec.StreamApplied)
		assert.Equal(t, []string{"mobile number must be exactly 10 digits"}, rec.Issues)
		assert.Equal(t, 2, rec.ValidationAttempts)
		require.NotNil(t, rec.LastValidation)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT (.+) FROM applicants WHERE email").
			WithArgs("missing@example.com").
			WillReturnRows(applicantRows())

		s := NewPostgresStore(db, logger.NewNoOpLogger())
		_, err = s.GetByEmail(context.Background(), "missing@example.com")

		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_GetPendingValidation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := applicantRows().
		AddRow("a@example.com", "A", "9876543210", "123456789012", "2004-01-01",
			2020, 80.0, 2022, 70.0, 72.0, 74.0, 2022, 500, "ECE",
			false, false, "", false, 0, nil).
		AddRow("b@example.com", "B", "9876543211", "123456789013", "2004-02-02",
			2020, 82.0, 2022, 75.0, 77.0, 79.0, 2022, 300, "CS",
			true, true, "", true, 1, time.Now().UTC())
	mock.ExpectQuery("SELECT (.+) FROM applicants\\s+WHERE validation_done = false OR edited = true").
		WillReturnRows(rows)

	s := NewPostgresStore(db, logger.NewNoOpLogger())
	records, err := s.GetPendingValidation(context.Background())

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a@example.com", records[0].Email)
	assert.True(t, records[1].EditedSinceLastRun)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateValidation(t *testing.T) {
	t.Run("writes verdict, reopens rejected decision and logs", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		at := time.Now().UTC()
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE applicants").
			WithArgs("asha@example.com", true, "", at).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE admission_results").
			WithArgs("asha@example.com").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO application_log").
			WithArgs("asha@example.com", "validation: valid", "validation-engine", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		s := NewPostgresStore(db, logger.NewNoOpLogger())
		err = s.UpdateValidation(context.Background(), "asha@example.com", true, nil, at)

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown applicant", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		at := time.Now().UTC()
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE applicants").
			WithArgs("missing@example.com", false, "aadhaar number must be exactly 12 digits", at).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		s := NewPostgresStore(db, logger.NewNoOpLogger())
		err = s.UpdateValidation(context.Background(), "missing@example.com", false,
			[]string{"aadhaar number must be exactly 12 digits"}, at)

		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_UpdateSeatPool(t *testing.T) {
	t.Run("success bumps version", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("UPDATE admission_seats").
			WithArgs(models.StreamCS, 3, int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		s := NewPostgresStore(db, logger.NewNoOpLogger())
		err = s.UpdateSeatPool(context.Background(), models.StreamCS, 3, 7)

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale version", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("UPDATE admission_seats").
			WithArgs(models.StreamCS, 3, int64(6)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		s := NewPostgresStore(db, logger.NewNoOpLogger())
		err = s.UpdateSeatPool(context.Background(), models.StreamCS, 3, 6)

		assert.ErrorIs(t, err, ErrVersionConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_GetSeatPool(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"stream", "total_seats", "available_seats", "version"}).
		AddRow("Mechanical", 40, 12, int64(9))
	mock.ExpectQuery("SELECT stream, total_seats, available_seats, version").
		WithArgs(models.StreamMechanical).
		WillReturnRows(rows)

	s := NewPostgresStore(db, logger.NewNoOpLogger())
	pool, err := s.GetSeatPool(context.Background(), models.StreamMechanical)

	require.NoError(t, err)
	assert.Equal(t, 40, pool.TotalSeats)
	assert.Equal(t, 12, pool.AvailableSeats)
	assert.Equal(t, int64(9), pool.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetEligibleForAllocation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := applicantRows().
		AddRow("rank10@example.com", "R10", "9876543210", "123456789012", "2004-01-01",
			2020, 85.0, 2022, 80.0, 82.0, 84.0, 2022, 10, "CS",
			true, true, "", false, 1, time.Now().UTC()).
		AddRow("rank30@example.com", "R30", "9876543211", "123456789013", "2004-02-02",
			2020, 86.0, 2022, 81.0, 83.0, 85.0, 2022, 30, "CS",
			true, true, "", false, 1, time.Now().UTC())
	mock.ExpectQuery("SELECT (.+) FROM applicants a").
		WithArgs(models.StreamCS).
		WillReturnRows(rows)

	s := NewPostgresStore(db, logger.NewNoOpLogger())
	records, err := s.GetEligibleForAllocation(context.Background(), models.StreamCS)

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 10, records[0].JEERank)
	assert.Equal(t, 30, records[1].JEERank)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateAllocation(t *testing.T) {
	t.Run("claims an undecided applicant", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec(`(?s)INSERT INTO admission_results.+shortlisting_done = false`).
			WithArgs("rank10@example.com", true).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO application_log").
			WithArgs("rank10@example.com", "allocation: accepted", "allocation-engine", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		s := NewPostgresStore(db, logger.NewNoOpLogger())
		claimed, err := s.UpdateAllocation(context.Background(), "rank10@example.com", true)

		require.NoError(t, err)
		assert.True(t, claimed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("leaves an already settled decision alone", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec(`(?s)INSERT INTO admission_results.+shortlisting_done = false`).
			WithArgs("rank10@example.com", false).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		s := NewPostgresStore(db, logger.NewNoOpLogger())
		claimed, err := s.UpdateAllocation(context.Background(), "rank10@example.com", false)

		require.NoError(t, err)
		assert.False(t, claimed, "a settled decision must not be overwritten or logged")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_WithStreamLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("SELECT pg_advisory_lock").
		WithArgs("CS").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SELECT pg_advisory_unlock").
		WithArgs("CS").
		WillReturnResult(sqlmock.NewResult(0, 0))

	s := NewPostgresStore(db, logger.NewNoOpLogger())
	ran := false
	err = s.WithStreamLock(context.Background(), models.StreamCS, func(context.Context) error {
		ran = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, ran)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PendingNotifications(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"email", "kind", "verdict", "issues"}).
		AddRow("a@example.com", "allocation", "rejected", "").
		AddRow("a@example.com", "validation", "valid", "").
		AddRow("b@example.com", "validation", "invalid", "mobile number must be exactly 10 digits")
	mock.ExpectQuery("SELECT email, kind, verdict, issues FROM").
		WithArgs(100).
		WillReturnRows(rows)

	s := NewPostgresStore(db, logger.NewNoOpLogger())
	events, err := s.PendingNotifications(context.Background(), 100)

	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, models.NotificationAllocation, events[0].Kind)
	assert.Equal(t, models.VerdictRejected, events[0].Verdict)
	assert.Equal(t, []string{"mobile number must be exactly 10 digits"}, events[2].Issues)
	assert.NotEmpty(t, events[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkNotified(t *testing.T) {
	t.Run("validation", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("UPDATE applicants").
			WithArgs("a@example.com").
			WillReturnResult(sqlmock.NewResult(0, 1))

		s := NewPostgresStore(db, logger.NewNoOpLogger())
		require.NoError(t, s.MarkNotified(context.Background(), "a@example.com", models.NotificationValidation))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("allocation", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("UPDATE admission_results").
			WithArgs("a@example.com").
			WillReturnResult(sqlmock.NewResult(0, 1))

		s := NewPostgresStore(db, logger.NewNoOpLogger())
		require.NoError(t, s.MarkNotified(context.Background(), "a@example.com", models.NotificationAllocation))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
