// Package lifecycle implements the request status state machine.
//
//	NEW ──► IN_PROGRESS ──► COMPLETED
//	 │            └───────► REJECTED
//	 ├──────────────────────► COMPLETED
//	 └──────────────────────► REJECTED
//
// COMPLETED and REJECTED are terminal. Completing requires a photo URL,
// rejecting requires a reason.
package lifecycle

import (
	"fmt"
	"strings"

	"cityServiceDesk/models"
)

// Payload carries the side-data for a transition. Only the field matching the
// target status is consulted.
type Payload struct {
	PhotoURL        string
	RejectionReason string
}

var allowed = map[models.RequestStatus][]models.RequestStatus{
	models.StatusNew:        {models.StatusInProgress, models.StatusCompleted, models.StatusRejected},
	models.StatusInProgress: {models.StatusCompleted, models.StatusRejected},
}

// CanTransition reports whether from → to is an edge of the state machine.
// Self-loops are not edges; see Apply for replay handling.
func CanTransition(from, to models.RequestStatus) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Apply validates a transition of cur to target and returns the resulting
// record. changed is false when the call is an idempotent replay (same status,
// same side-data); the returned record is then cur itself. cur is never mutated.
func Apply(cur *models.Request, target models.RequestStatus, p Payload) (next *models.Request, changed bool, err error) {
	if cur == nil {
		return nil, false, fmt.Errorf("%w: request is required", models.ErrValidation)
	}
	switch target {
	case models.StatusNew, models.StatusInProgress, models.StatusCompleted, models.StatusRejected:
	default:
		return nil, false, fmt.Errorf("%w: unknown status %q", models.ErrValidation, target)
	}
	photo := strings.TrimSpace(p.PhotoURL)
	reason := strings.TrimSpace(p.RejectionReason)

	if target == cur.Status && sameSideData(cur, target, photo, reason) {
		return cur, false, nil
	}
	if cur.Status.IsTerminal() {
		return nil, false, fmt.Errorf("%w: request %d is %s and can no longer change", models.ErrConflict, cur.ID, cur.Status)
	}
	if target != cur.Status && !CanTransition(cur.Status, target) {
		return nil, false, fmt.Errorf("%w: cannot move request %d from %s to %s", models.ErrConflict, cur.ID, cur.Status, target)
	}

	out := *cur
	out.Status = target
	switch target {
	case models.StatusCompleted:
		if photo == "" {
			return nil, false, fmt.Errorf("%w: a photo URL is required to complete a request", models.ErrValidation)
		}
		out.PhotoURL = &photo
	case models.StatusRejected:
		if reason == "" {
			return nil, false, fmt.Errorf("%w: a reason is required to reject a request", models.ErrValidation)
		}
		out.RejectionReason = &reason
	}
	return &out, true, nil
}

// sameSideData compares the side-field relevant to status. Statuses without
// side-data always compare equal.
func sameSideData(cur *models.Request, status models.RequestStatus, photo, reason string) bool {
	switch status {
	case models.StatusCompleted:
		return cur.Photo() == photo
	case models.StatusRejected:
		return cur.Reason() == reason
	}
	return true
}
