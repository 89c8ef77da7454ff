// internal/models/query_types.go
package models

type QueryType string

const (
	QueryTypeApplicantSummary  QueryType = "applicant_summary"
	QueryTypeSeatMatrix        QueryType = "seat_matrix"
	QueryTypeStreamStatistics  QueryType = "stream_statistics"
	QueryTypeValidationBacklog QueryType = "validation_backlog"
)
