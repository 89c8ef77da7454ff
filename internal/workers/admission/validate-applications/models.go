// internal/workers/admission/validate-applications/models.go
package validateapplications

type Input struct {
	TriggeredBy string `json:"triggeredBy,omitempty"` // "schedule" or "manual"
	BatchID     string `json:"batchId,omitempty"`
}

type Output struct {
	BatchID            string `json:"batchId"`
	Processed          int    `json:"processed"`
	Valid              int    `json:"valid"`
	Invalid            int    `json:"invalid"`
	FactLookupFailures int    `json:"factLookupFailures"`
	WriteFailures      int    `json:"writeFailures"`
	DurationMs         int64  `json:"durationMs"`
	CompletedAt        string `json:"completedAt"` // ISO 8601
}
