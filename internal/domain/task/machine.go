package task

// transitions is the closed set of legal status changes. Completion is
// reachable only from pending_review and only through the approval gate.
var transitions = map[Status][]Status{
	StatusNew:           {StatusInProgress, StatusCancelled},
	StatusInProgress:    {StatusPendingReview, StatusOnHold, StatusCancelled},
	StatusPendingReview: {StatusCompleted, StatusInProgress, StatusCancelled},
	StatusOnHold:        {StatusInProgress, StatusCancelled},
	StatusCompleted:     {},
	StatusCancelled:     {},
}

func IsTerminal(s Status) bool {
	return s == StatusCompleted || s == StatusCancelled
}

func CanTransition(from, to Status) bool {
	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// RequiresApproval reports whether the transition may only be applied by a
// reviewer decision, never directly by the requester.
func RequiresApproval(from, to Status) bool {
	return from == StatusPendingReview && to == StatusCompleted
}

// decisionChange reports change types that may cross the approval gate.
func decisionChange(c ChangeType) bool {
	return c == ChangeApproval || c == ChangeRejection || c == ChangeRevisionRequest
}

// ValidateChange checks a requested transition against the table and the
// actor/change-type rules. It performs no I/O.
func ValidateChange(from, to Status, actor string, changeType ChangeType) error {
	if !to.Valid() || !changeType.Valid() {
		return ErrValidation
	}
	if changeType.System() && actor != "" {
		return ErrValidation
	}
	if !changeType.System() && actor == "" {
		return ErrValidation
	}
	if to == from {
		return ErrInvalidTransition
	}
	if IsTerminal(from) {
		return ErrInvalidTransition
	}
	if !CanTransition(from, to) {
		return ErrInvalidTransition
	}
	// pending_review may only be left through a reviewer decision or
	// cancellation; a plain manual change cannot resolve a review.
	if from == StatusPendingReview && to != StatusCancelled && !decisionChange(changeType) && !RequiresApproval(from, to) {
		return ErrInvalidTransition
	}
	return nil
}
