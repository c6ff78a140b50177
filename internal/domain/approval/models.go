package approval

import (
	"errors"
	"time"
)

type SubjectType string

const (
	SubjectTask   SubjectType = "task"
	SubjectReview SubjectType = "review"
)

type RequestStatus string

const (
	StatusPending           RequestStatus = "pending"
	StatusApproved          RequestStatus = "approved"
	StatusRejected          RequestStatus = "rejected"
	StatusRevisionRequested RequestStatus = "revision_requested"
)

type Decision string

const (
	DecisionApprove         Decision = "approve"
	DecisionReject          Decision = "reject"
	DecisionRequestRevision Decision = "request_revision"
)

func (d Decision) Valid() bool {
	switch d {
	case DecisionApprove, DecisionReject, DecisionRequestRevision:
		return true
	}
	return false
}

// statusFor maps a decision to the final request status.
func statusFor(d Decision) RequestStatus {
	switch d {
	case DecisionApprove:
		return StatusApproved
	case DecisionReject:
		return StatusRejected
	default:
		return StatusRevisionRequested
	}
}

// Request gates one transition behind a reviewer decision. At most one
// pending request exists per subject; once decided it is immutable.
type Request struct {
	ID          string        `json:"id"`
	SubjectType SubjectType   `json:"subjectType"`
	SubjectID   string        `json:"subjectId"`
	FromStatus  string        `json:"fromStatus"`
	ToStatus    string        `json:"toStatus"`
	RequesterID string        `json:"requesterId"`
	Status      RequestStatus `json:"status"`
	Comment     string        `json:"comment,omitempty"`
	DeciderID   *string       `json:"deciderId,omitempty"`
	DecidedAt   *time.Time    `json:"decidedAt,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
}

var (
	ErrNotFound         = errors.New("approval request not found")
	ErrDuplicatePending = errors.New("pending approval request already exists")
	ErrAlreadyDecided   = errors.New("approval request already decided")
	ErrValidation       = errors.New("invalid approval request")
)
