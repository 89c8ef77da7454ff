// internal/models/applicant.go
package models

import "time"

// Stream is an engineering branch an applicant can apply to. The set
// is configuration-driven; these are the streams offered today.
type Stream string

const (
	StreamCS         Stream = "CS"
	StreamECE        Stream = "ECE"
	StreamMechanical Stream = "Mechanical"
	StreamCivil      Stream = "Civil"
)

// ApplicantRecord is one submitted application. Email is the primary
// key across the whole system. The validation flags are bookkeeping
// owned by the validation engine; an external edit sets
// EditedSinceLastRun and the engine picks the record up again.
type ApplicantRecord struct {
	Email string `json:"email"`
	Name  string `json:"name"`

	MobileNumber  string `json:"mobileNumber"`
	AadhaarNumber string `json:"aadhaarNumber"`
	DOB           string `json:"dob"` // YYYY-MM-DD

	Class10Year     int     `json:"class10Year"`
	Class10AvgMarks float64 `json:"class10AvgMarks"`

	Class12Year      int     `json:"class12Year"`
	Class12Physics   float64 `json:"class12Physics"`
	Class12Chemistry float64 `json:"class12Chemistry"`
	Class12Maths     float64 `json:"class12Maths"`

	JEEYear       int    `json:"jeeYear"`
	JEERank       int    `json:"jeeRank"`
	StreamApplied Stream `json:"streamApplied"`

	ValidationDone     bool     `json:"validationDone"`
	Valid              bool     `json:"valid"`
	Issues             []string `json:"issues,omitempty"`
	EditedSinceLastRun bool     `json:"edited"`

	ValidationAttempts int        `json:"validationAttempts"`
	LastValidation     *time.Time `json:"lastValidation,omitempty"`
}

// AllocationDecision is the allocation engine's verdict for one
// applicant. Absence of a decision means the applicant has not been
// through a round that could seat them yet.
type AllocationDecision struct {
	Email            string `json:"email"`
	ShortlistingDone bool   `json:"shortlistingDone"`
	Accepted         bool   `json:"accepted"`
	NotificationSent bool   `json:"notificationSent"`
}

// SeatPool is the live capacity for one stream. Version is the
// optimistic-concurrency token; every successful update increments it.
type SeatPool struct {
	Stream         Stream `json:"stream"`
	TotalSeats     int    `json:"totalSeats"`
	AvailableSeats int    `json:"availableSeats"`
	Version        int64  `json:"version"`
}
