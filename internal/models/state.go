// internal/models/state.go
package models

// ApplicationState is the derived lifecycle position of an
// application. It is never stored; it is a pure function of the
// applicant record and the allocation decision, so the two engines can
// never disagree with a stale state column.
type ApplicationState string

const (
	StateSubmitted        ApplicationState = "submitted"
	StateValidating       ApplicationState = "validating"
	StateValid            ApplicationState = "valid"
	StateInvalid          ApplicationState = "invalid"
	StateShortlistPending ApplicationState = "shortlist_pending"
	StateAccepted         ApplicationState = "accepted"
	StateRejected         ApplicationState = "rejected"
	StateNotified         ApplicationState = "notified"
)

// StateOf derives the current state. dec may be nil when no allocation
// round has considered the applicant yet.
func StateOf(rec *ApplicantRecord, dec *AllocationDecision) ApplicationState {
	if !rec.ValidationDone {
		return StateSubmitted
	}
	if rec.EditedSinceLastRun {
		// An edit invalidates the previous verdict until the next run.
		return StateValidating
	}
	if !rec.Valid {
		return StateInvalid
	}
	if dec == nil || !dec.ShortlistingDone {
		return StateShortlistPending
	}
	if dec.Accepted {
		if dec.NotificationSent {
			return StateNotified
		}
		return StateAccepted
	}
	if dec.NotificationSent {
		return StateNotified
	}
	return StateRejected
}

// NeedsValidation reports whether the validation engine should pick
// this record up in its next batch.
func NeedsValidation(rec *ApplicantRecord) bool {
	return !rec.ValidationDone || rec.EditedSinceLastRun
}

// EligibleForAllocation reports whether the allocation engine may
// consider this applicant: validated clean, not edited since, and not
// already settled by a previous round.
func EligibleForAllocation(rec *ApplicantRecord, dec *AllocationDecision) bool {
	if !rec.ValidationDone || !rec.Valid || rec.EditedSinceLastRun {
		return false
	}
	return dec == nil || !dec.ShortlistingDone
}
