package verify

import "github.com/your-org/presence/internal/models"

// NextAction returns the only action permitted for a user given their most
// recent attendance event: first event must be in, and events alternate.
// A second consecutive in is rejected the same way an out without an open in
// is; the rule is enforced uniformly for every verification variant.
func NextAction(last *models.AttendanceEvent) models.Action {
	if last == nil || last.Action == models.ActionOut {
		return models.ActionIn
	}
	return models.ActionOut
}

// sequenceRejection builds the refusal for a disallowed action.
func sequenceRejection(requested models.Action) *Rejection {
	if requested == models.ActionOut {
		return reject(ReasonNotClockedIn, "not clocked in yet")
	}
	return reject(ReasonAlreadyClockedIn, "already clocked in")
}
