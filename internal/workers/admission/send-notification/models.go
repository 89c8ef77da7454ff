// internal/workers/admission/send-notification/models.go
package sendnotification

type Input struct {
	BatchSize int `json:"batchSize,omitempty"`
}

type Output struct {
	Pending     int    `json:"pending"`
	Sent        int    `json:"sent"`
	Failed      int    `json:"failed"`
	CompletedAt string `json:"completedAt"` // ISO 8601
}
