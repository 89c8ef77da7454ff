// internal/workers/data-access/query-admissions/queries/admissions.go
package queries

import (
	"context"
	"database/sql"
	"time"
)

// ApplicantSummary joins the applicant record with its allocation
// decision into one view, the shape the admissions portal shows.
func ApplicantSummary(ctx context.Context, db *sql.DB, params map[string]interface{}) (interface{}, int, int64, error) {
	email, ok := params["email"].(string)
	if !ok || email == "" {
		return nil, 0, 0, ErrMissingParam
	}

	start := time.Now()

	var name, stream string
	var jeeRank int
	var validationDone, valid, edited bool
	var issues sql.NullString
	var shortlistingDone, accepted sql.NullBool

	err := db.QueryRowContext(ctx, `
		SELECT a.name, a.stream_applied, a.jee_rank,
		       a.validation_done, a.valid, a.edited, a.issues,
		       r.shortlisting_done, r.accepted
		FROM applicants a
		LEFT JOIN admission_results r ON r.email = a.email
		WHERE a.email = $1`, email).Scan(
		&name, &stream, &jeeRank,
		&validationDone, &valid, &edited, &issues,
		&shortlistingDone, &accepted,
	)
	if err != nil {
		return nil, 0, 0, err
	}

	result := map[string]interface{}{
		"email":            email,
		"name":             name,
		"streamApplied":    stream,
		"jeeRank":          jeeRank,
		"validationDone":   validationDone,
		"valid":            valid,
		"edited":           edited,
		"issues":           issues.String,
		"shortlistingDone": shortlistingDone.Valid && shortlistingDone.Bool,
		"accepted":         accepted.Valid && accepted.Bool,
	}

	execTime := time.Since(start).Milliseconds()
	return result, 1, execTime, nil
}

// SeatMatrix returns the current seat pool for every stream.
func SeatMatrix(ctx context.Context, db *sql.DB, params map[string]interface{}) (interface{}, int, int64, error) {
	start := time.Now()

	rows, err := db.QueryContext(ctx, `
		SELECT stream, total_seats, available_seats, version
		FROM admission_seats
		ORDER BY stream ASC`)
	if err != nil {
		return nil, 0, 0, err
	}
	defer rows.Close()

	var results []map[string]interface{}
	for rows.Next() {
		var stream string
		var totalSeats, availableSeats int
		var version int64
		if err := rows.Scan(&stream, &totalSeats, &availableSeats, &version); err != nil {
			return nil, 0, 0, err
		}
		results = append(results, map[string]interface{}{
			"stream":         stream,
			"totalSeats":     totalSeats,
			"availableSeats": availableSeats,
			"filled":         totalSeats - availableSeats,
			"version":        version,
		})
	}

	execTime := time.Since(start).Milliseconds()
	return results, len(results), execTime, nil
}

// StreamStatistics aggregates applicant counts per stream by
// validation and allocation outcome.
func StreamStatistics(ctx context.Context, db *sql.DB, params map[string]interface{}) (interface{}, int, int64, error) {
	start := time.Now()

	rows, err := db.QueryContext(ctx, `
		SELECT a.stream_applied,
		       COUNT(*) AS applicants,
		       COUNT(*) FILTER (WHERE a.validation_done AND a.valid) AS valid,
		       COUNT(*) FILTER (WHERE a.validation_done AND NOT a.valid) AS invalid,
		       COUNT(*) FILTER (WHERE r.shortlisting_done AND r.accepted) AS accepted,
		       COUNT(*) FILTER (WHERE r.shortlisting_done AND NOT r.accepted) AS rejected
		FROM applicants a
		LEFT JOIN admission_results r ON r.email = a.email
		GROUP BY a.stream_applied
		ORDER BY a.stream_applied ASC`)
	if err != nil {
		return nil, 0, 0, err
	}
	defer rows.Close()

	var results []map[string]interface{}
	for rows.Next() {
		var stream string
		var applicants, valid, invalid, accepted, rejected int
		if err := rows.Scan(&stream, &applicants, &valid, &invalid, &accepted, &rejected); err != nil {
			return nil, 0, 0, err
		}
		results = append(results, map[string]interface{}{
			"stream":     stream,
			"applicants": applicants,
			"valid":      valid,
			"invalid":    invalid,
			"accepted":   accepted,
			"rejected":   rejected,
		})
	}

	execTime := time.Since(start).Milliseconds()
	return results, len(results), execTime, nil
}

// ValidationBacklog lists applicants still waiting for a validation
// run, oldest attempts first.
func ValidationBacklog(ctx context.Context, db *sql.DB, params map[string]interface{}) (interface{}, int, int64, error) {
	start := time.Now()

	limit := 50
	if v, ok := params["limit"].(float64); ok && v > 0 {
		limit = int(v)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT email, stream_applied, edited, validation_attempts, last_validation
		FROM applicants
		WHERE validation_done = false OR edited = true
		ORDER BY last_validation ASC NULLS FIRST, email ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, 0, 0, err
	}
	defer rows.Close()

	var results []map[string]interface{}
	for rows.Next() {
		var email, stream string
		var edited bool
		var attempts int
		var lastValidation sql.NullTime
		if err := rows.Scan(&email, &stream, &edited, &attempts, &lastValidation); err != nil {
			return nil, 0, 0, err
		}
		entry := map[string]interface{}{
			"email":              email,
			"streamApplied":      stream,
			"edited":             edited,
			"validationAttempts": attempts,
		}
		if lastValidation.Valid {
			entry["lastValidation"] = lastValidation.Time.UTC().Format(time.RFC3339)
		}
		results = append(results, entry)
	}

	execTime := time.Since(start).Milliseconds()
	return results, len(results), execTime, nil
}
