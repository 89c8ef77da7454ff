// internal/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"admissions-workers/internal/common/logger"
	"admissions-workers/internal/models"
)

const issueSeparator = "; "

// PostgresStore implements Store on top of the admissions schema:
// applicants, admission_results, admission_seats and application_log.
type PostgresStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewPostgresStore(db *sql.DB, log logger.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: log}
}

const applicantColumns = `email, name, mobile_number, aadhaar_number, dob, class10_year, class10_avg_marks, class12_year, class12_physics, class12_chemistry, class12_maths, jee_year, jee_rank, stream_applied, validation_done, valid, issues, edited, validation_attempts, last_validation`

func scanApplicant(row interface{ Scan(...interface{}) error }) (*models.ApplicantRecord, error) {
	var rec models.ApplicantRecord
	var issues sql.NullString
	var lastValidation sql.NullTime
	err := row.Scan(
		&rec.Email, &rec.Name, &rec.MobileNumber, &rec.AadhaarNumber, &rec.DOB,
		&rec.Class10Year, &rec.Class10AvgMarks,
		&rec.Class12Year, &rec.Class12Physics, &rec.Class12Chemistry, &rec.Class12Maths,
		&rec.JEEYear, &rec.JEERank, &rec.StreamApplied,
		&rec.ValidationDone, &rec.Valid, &issues, &rec.EditedSinceLastRun,
		&rec.ValidationAttempts, &lastValidation,
	)
	if err != nil {
		return nil, err
	}
	if issues.Valid && issues.String != "" {
		rec.Issues = strings.Split(issues.String, issueSeparator)
	}
	if lastValidation.Valid {
		t := lastValidation.Time
		rec.LastValidation = &t
	}
	return &rec, nil
}

func (s *PostgresStore) GetPendingValidation(ctx context.Context) ([]models.ApplicantRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM applicants
		WHERE validation_done = false OR edited = true
		ORDER BY email ASC`, applicantColumns)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending applicants: %w", err)
	}
	defer rows.Close()

	var records []models.ApplicantRecord
	for rows.Next() {
		rec, err := scanApplicant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan applicant row: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (*models.ApplicantRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM applicants WHERE email = $1`, applicantColumns)

	rec, err := scanApplicant(s.db.QueryRowContext(ctx, query, email))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query applicant %s: %w", email, err)
	}
	return rec, nil
}

func (s *PostgresStore) UpdateValidation(ctx context.Context, email string, valid bool, issues []string, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE applicants
		SET validation_done = true,
		    valid = $2,
		    issues = $3,
		    edited = false,
		    validation_email_sent = false,
		    validation_attempts = validation_attempts + 1,
		    last_validation = $4
		WHERE email = $1`,
		email, valid, strings.Join(issues, issueSeparator), at)
	if err != nil {
		return fmt.Errorf("failed to update validation for %s: %w", email, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	// A rejected applicant who edited and revalidated re-enters the
	// merit queue; an accepted seat is never reopened.
	if _, err := tx.ExecContext(ctx, `UPDATE admission_results
		SET shortlisting_done = false, email_sent = false
		WHERE email = $1 AND accepted = false`, email); err != nil {
		return fmt.Errorf("failed to reopen decision for %s: %w", email, err)
	}

	verdict := "valid"
	if !valid {
		verdict = "invalid"
	}
	if err := logStatusChangeTx(ctx, tx, email, "validation: "+verdict, "validation-engine"); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PostgresStore) ListStreams(ctx context.Context) ([]models.Stream, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT stream FROM admission_seats ORDER BY stream ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list streams: %w", err)
	}
	defer rows.Close()

	var streams []models.Stream
	for rows.Next() {
		var stream models.Stream
		if err := rows.Scan(&stream); err != nil {
			return nil, fmt.Errorf("failed to scan stream row: %w", err)
		}
		streams = append(streams, stream)
	}
	return streams, rows.Err()
}

func (s *PostgresStore) GetSeatPool(ctx context.Context, stream models.Stream) (*models.SeatPool, error) {
	var pool models.SeatPool
	err := s.db.QueryRowContext(ctx, `SELECT stream, total_seats, available_seats, version
		FROM admission_seats WHERE stream = $1`, stream).
		Scan(&pool.Stream, &pool.TotalSeats, &pool.AvailableSeats, &pool.Version)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query seat pool for %s: %w", stream, err)
	}
	return &pool, nil
}

func (s *PostgresStore) EnsureSeatPool(ctx context.Context, stream models.Stream, totalSeats int) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO admission_seats (stream, total_seats, available_seats, version)
		VALUES ($1, $2, $2, 0)
		ON CONFLICT (stream) DO UPDATE SET total_seats = EXCLUDED.total_seats`,
		stream, totalSeats)
	if err != nil {
		return fmt.Errorf("failed to ensure seat pool for %s: %w", stream, err)
	}
	return nil
}

func (s *PostgresStore) UpdateSeatPool(ctx context.Context, stream models.Stream, newAvailable int, version int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE admission_seats
		SET available_seats = $2, version = version + 1
		WHERE stream = $1 AND version = $3`,
		stream, newAvailable, version)
	if err != nil {
		return fmt.Errorf("failed to update seat pool for %s: %w", stream, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected for %s: %w", stream, err)
	}
	if n == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (s *PostgresStore) GetEligibleForAllocation(ctx context.Context, stream models.Stream) ([]models.ApplicantRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM applicants a
		WHERE a.stream_applied = $1
		  AND a.validation_done = true AND a.valid = true AND a.edited = false
		  AND NOT EXISTS (
		      SELECT 1 FROM admission_results r
		      WHERE r.email = a.email AND r.shortlisting_done = true
		  )
		ORDER BY a.jee_rank ASC, a.email ASC`, prefixColumns("a"))

	rows, err := s.db.QueryContext(ctx, query, stream)
	if err != nil {
		return nil, fmt.Errorf("failed to query eligible applicants for %s: %w", stream, err)
	}
	defer rows.Close()

	var records []models.ApplicantRecord
	for rows.Next() {
		rec, err := scanApplicant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan applicant row: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func prefixColumns(alias string) string {
	cols := strings.Split(applicantColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

func (s *PostgresStore) GetDecision(ctx context.Context, email string) (*models.AllocationDecision, error) {
	var dec models.AllocationDecision
	err := s.db.QueryRowContext(ctx, `SELECT email, shortlisting_done, accepted, email_sent
		FROM admission_results WHERE email = $1`, email).
		Scan(&dec.Email, &dec.ShortlistingDone, &dec.Accepted, &dec.NotificationSent)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query decision for %s: %w", email, err)
	}
	return &dec, nil
}

func (s *PostgresStore) UpdateAllocation(ctx context.Context, email string, accepted bool) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// The update arm is conditional on shortlisting_done so a decision
	// already claimed by another run is left alone.
	res, err := tx.ExecContext(ctx, `INSERT INTO admission_results (email, shortlisting_done, accepted, email_sent)
		VALUES ($1, true, $2, false)
		ON CONFLICT (email) DO UPDATE
		SET shortlisting_done = true, accepted = EXCLUDED.accepted, email_sent = false
		WHERE admission_results.shortlisting_done = false`,
		email, accepted)
	if err != nil {
		return false, fmt.Errorf("failed to update decision for %s: %w", email, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}

	verdict := "accepted"
	if !accepted {
		verdict = "rejected"
	}
	if err := logStatusChangeTx(ctx, tx, email, "allocation: "+verdict, "allocation-engine"); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

// WithStreamLock holds a postgres advisory lock for the stream while fn
// runs, giving allocation a single writer per stream across processes.
func (s *PostgresStore) WithStreamLock(ctx context.Context, stream models.Stream, fn func(context.Context) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection for %s: %w", stream, err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock(hashtext($1))`, string(stream)); err != nil {
		return fmt.Errorf("failed to lock stream %s: %w", stream, err)
	}
	defer func() {
		if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_unlock(hashtext($1))`, string(stream)); err != nil {
			s.logger.Warn("failed to release stream lock", map[string]interface{}{
				"stream": stream,
				"error":  err.Error(),
			})
		}
	}()

	return fn(ctx)
}

func (s *PostgresStore) PendingNotifications(ctx context.Context, limit int) ([]models.NotificationEvent, error) {
	query := `SELECT email, kind, verdict, issues FROM (
		SELECT email, 'validation' AS kind,
		       CASE WHEN valid THEN 'valid' ELSE 'invalid' END AS verdict,
		       issues
		FROM applicants
		WHERE validation_done = true AND validation_email_sent = false
		UNION ALL
		SELECT email, 'allocation' AS kind,
		       CASE WHEN accepted THEN 'accepted' ELSE 'rejected' END AS verdict,
		       '' AS issues
		FROM admission_results
		WHERE shortlisting_done = true AND email_sent = false
	) pending ORDER BY email ASC, kind ASC LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending notifications: %w", err)
	}
	defer rows.Close()

	var events []models.NotificationEvent
	for rows.Next() {
		var ev models.NotificationEvent
		var issues sql.NullString
		if err := rows.Scan(&ev.Email, &ev.Kind, &ev.Verdict, &issues); err != nil {
			return nil, fmt.Errorf("failed to scan notification row: %w", err)
		}
		if issues.Valid && issues.String != "" {
			ev.Issues = strings.Split(issues.String, issueSeparator)
		}
		ev.ID = uuid.New().String()
		ev.Timestamp = time.Now().UTC()
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *PostgresStore) MarkNotified(ctx context.Context, email string, kind models.NotificationKind) error {
	var res sql.Result
	var err error
	switch kind {
	case models.NotificationValidation:
		res, err = s.db.ExecContext(ctx, `UPDATE applicants
			SET validation_email_sent = true WHERE email = $1`, email)
	case models.NotificationAllocation:
		res, err = s.db.ExecContext(ctx, `UPDATE admission_results
			SET email_sent = true WHERE email = $1`, email)
	default:
		return fmt.Errorf("unknown notification kind: %s", kind)
	}
	if err != nil {
		return fmt.Errorf("failed to mark %s notification sent for %s: %w", kind, email, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) LogStatusChange(ctx context.Context, email, statusChange, changedBy string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO application_log (email, status_change, changed_by, changed_at)
		VALUES ($1, $2, $3, $4)`,
		email, statusChange, changedBy, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert status log for %s: %w", email, err)
	}
	return nil
}

func logStatusChangeTx(ctx context.Context, tx *sql.Tx, email, statusChange, changedBy string) error {
	if _, err := tx.ExecContext(ctx, `INSERT INTO application_log (email, status_change, changed_by, changed_at)
		VALUES ($1, $2, $3, $4)`,
		email, statusChange, changedBy, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to insert status log for %s: %w", email, err)
	}
	return nil
}
