package approval

import (
	"context"
	"log/slog"

	"hrflow/internal/domain/events"
	"hrflow/internal/domain/task"
)

// TaskWorkflow applies decided transitions on tasks. Satisfied by
// task.Service.
type TaskWorkflow interface {
	RequestTransition(ctx context.Context, tenantID, taskID string, to task.Status, actor, reason string, changeType task.ChangeType, progress *int) (task.TransitionResult, error)
}

// ReviewWorkflow finalizes or reopens a performance review after a
// decision on a review-subject request. Satisfied by review.Service.
type ReviewWorkflow interface {
	Finalize(ctx context.Context, tenantID, reviewID, deciderID string) error
	Reopen(ctx context.Context, tenantID, reviewID, comment string) error
}

type Service struct {
	store   StoreAPI
	tasks   TaskWorkflow
	reviews ReviewWorkflow
	bus     *events.Bus
}

func NewService(store StoreAPI, tasks TaskWorkflow, reviews ReviewWorkflow, bus *events.Bus) *Service {
	return &Service{store: store, tasks: tasks, reviews: reviews, bus: bus}
}

func (s *Service) Get(ctx context.Context, tenantID, requestID string) (Request, error) {
	return s.store.GetRequest(ctx, tenantID, requestID)
}

func (s *Service) ListPending(ctx context.Context, tenantID string, limit, offset int) ([]Request, int, error) {
	return s.store.ListPending(ctx, tenantID, limit, offset)
}

// SubmitTaskApproval implements task.ApprovalGate.
func (s *Service) SubmitTaskApproval(ctx context.Context, tenantID, taskID string, from, to task.Status, requester string) (string, error) {
	req, err := s.Submit(ctx, tenantID, SubjectTask, taskID, string(from), string(to), requester)
	if err != nil {
		return "", err
	}
	return req.ID, nil
}

// SubmitReviewApproval implements review.ApprovalGate.
func (s *Service) SubmitReviewApproval(ctx context.Context, tenantID, reviewID, from, to, requester string) (string, error) {
	req, err := s.Submit(ctx, tenantID, SubjectReview, reviewID, from, to, requester)
	if err != nil {
		return "", err
	}
	return req.ID, nil
}

// Submit creates one pending request for the subject. A second submission
// while one is pending fails with ErrDuplicatePending.
func (s *Service) Submit(ctx context.Context, tenantID string, subjectType SubjectType, subjectID, fromStatus, toStatus, requester string) (Request, error) {
	if subjectID == "" || requester == "" || toStatus == "" {
		return Request{}, ErrValidation
	}
	if subjectType != SubjectTask && subjectType != SubjectReview {
		return Request{}, ErrValidation
	}

	created, err := s.store.CreateRequest(ctx, tenantID, Request{
		SubjectType: subjectType,
		SubjectID:   subjectID,
		FromStatus:  fromStatus,
		ToStatus:    toStatus,
		RequesterID: requester,
		Status:      StatusPending,
	})
	if err != nil {
		return Request{}, err
	}

	s.publish(ctx, events.Event{
		Kind:        events.KindApprovalRequested,
		TenantID:    tenantID,
		SubjectType: string(subjectType),
		SubjectID:   subjectID,
		RequestID:   created.ID,
		RequesterID: requester,
		FromStatus:  fromStatus,
		ToStatus:    toStatus,
	})
	return created, nil
}

// Decide records exactly one decision per request. A concurrent second
// decision loses the conditional update and observes ErrAlreadyDecided.
func (s *Service) Decide(ctx context.Context, tenantID, requestID string, decision Decision, deciderID, comment string) (Request, error) {
	if !decision.Valid() || deciderID == "" {
		return Request{}, ErrValidation
	}

	req, err := s.store.GetRequest(ctx, tenantID, requestID)
	if err != nil {
		return Request{}, err
	}
	if req.Status != StatusPending {
		return req, ErrAlreadyDecided
	}

	won, err := s.store.MarkDecided(ctx, tenantID, requestID, statusFor(decision), deciderID, comment)
	if err != nil {
		return Request{}, err
	}
	if !won {
		decided, getErr := s.store.GetRequest(ctx, tenantID, requestID)
		if getErr != nil {
			return Request{}, getErr
		}
		return decided, ErrAlreadyDecided
	}

	// The decision row is immutable once the conditional update wins, so
	// the requester is told about it even if applying the outcome to the
	// subject fails below.
	s.publish(ctx, events.Event{
		Kind:        events.KindApprovalDecided,
		TenantID:    tenantID,
		SubjectType: string(req.SubjectType),
		SubjectID:   req.SubjectID,
		RequestID:   requestID,
		RequesterID: req.RequesterID,
		DeciderID:   deciderID,
		Decision:    string(decision),
		FromStatus:  req.FromStatus,
		ToStatus:    req.ToStatus,
		Comment:     comment,
	})

	if err := s.applyOutcome(ctx, tenantID, req, decision, deciderID, comment); err != nil {
		// The subject update failed (for example a concurrent status
		// change). Surface the error so the decider can inspect the
		// subject.
		slog.Warn("approval outcome apply failed", "requestId", requestID, "decision", decision, "err", err)
		return Request{}, err
	}

	decided, err := s.store.GetRequest(ctx, tenantID, requestID)
	if err != nil {
		return Request{}, err
	}
	return decided, nil
}

func (s *Service) applyOutcome(ctx context.Context, tenantID string, req Request, decision Decision, deciderID, comment string) error {
	switch req.SubjectType {
	case SubjectTask:
		return s.applyTaskOutcome(ctx, tenantID, req, decision, deciderID, comment)
	case SubjectReview:
		return s.applyReviewOutcome(ctx, tenantID, req, decision, deciderID, comment)
	}
	return ErrValidation
}

func (s *Service) applyTaskOutcome(ctx context.Context, tenantID string, req Request, decision Decision, deciderID, comment string) error {
	var to task.Status
	var changeType task.ChangeType
	switch decision {
	case DecisionApprove:
		to = task.Status(req.ToStatus)
		changeType = task.ChangeApproval
	case DecisionReject:
		to = task.Status(req.FromStatus)
		changeType = task.ChangeRejection
	default:
		to = task.Status(req.FromStatus)
		changeType = task.ChangeRevisionRequest
	}
	// Rejections return the subject to where work resumes; a task parked
	// in pending_review goes back to in_progress rather than to itself.
	if decision != DecisionApprove && to == task.StatusPendingReview {
		to = task.StatusInProgress
	}
	_, err := s.tasks.RequestTransition(ctx, tenantID, req.SubjectID, to, deciderID, comment, changeType, nil)
	return err
}

func (s *Service) applyReviewOutcome(ctx context.Context, tenantID string, req Request, decision Decision, deciderID, comment string) error {
	if s.reviews == nil {
		return ErrValidation
	}
	if decision == DecisionApprove {
		return s.reviews.Finalize(ctx, tenantID, req.SubjectID, deciderID)
	}
	return s.reviews.Reopen(ctx, tenantID, req.SubjectID, comment)
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, event)
}
