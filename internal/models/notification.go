// internal/models/notification.go
package models

import "time"

// NotificationKind distinguishes the two verdict events an applicant
// can be notified about.
type NotificationKind string

const (
	NotificationValidation NotificationKind = "validation"
	NotificationAllocation NotificationKind = "allocation"
)

// NotificationEvent is one finalized verdict handed to the emitter.
// The pending flag on the source record is cleared only after the
// emitter acknowledges delivery.
type NotificationEvent struct {
	ID        string           `json:"id"`
	Email     string           `json:"email"`
	Kind      NotificationKind `json:"kind"`
	Verdict   string           `json:"verdict"` // "valid", "invalid", "accepted", "rejected"
	Issues    []string         `json:"issues,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Verdict strings carried in NotificationEvent and batch reports.
const (
	VerdictValid    = "valid"
	VerdictInvalid  = "invalid"
	VerdictAccepted = "accepted"
	VerdictRejected = "rejected"
)
