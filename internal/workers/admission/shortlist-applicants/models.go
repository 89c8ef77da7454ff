// internal/workers/admission/shortlist-applicants/models.go
package shortlistapplicants

type Input struct {
	TriggeredBy string `json:"triggeredBy,omitempty"`
	BatchID     string `json:"batchId,omitempty"`
}

type StreamOutcome struct {
	Stream         string `json:"stream"`
	Considered     int    `json:"considered"`
	Accepted       int    `json:"accepted"`
	Rejected       int    `json:"rejected"`
	SeatsAvailable int    `json:"seatsAvailable"`
	Skipped        bool   `json:"skipped,omitempty"`
	Error          string `json:"error,omitempty"`
}

type Output struct {
	BatchID     string          `json:"batchId"`
	Streams     []StreamOutcome `json:"streams"`
	HasFailures bool            `json:"hasFailures"`
	DurationMs  int64           `json:"durationMs"`
	CompletedAt string          `json:"completedAt"` // ISO 8601
}
