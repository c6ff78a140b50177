package task

import (
	"errors"
	"testing"
)

func TestCanTransitionTable(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusNew, StatusInProgress, true},
		{StatusNew, StatusCancelled, true},
		{StatusNew, StatusCompleted, false},
		{StatusInProgress, StatusPendingReview, true},
		{StatusInProgress, StatusOnHold, true},
		{StatusInProgress, StatusCompleted, false},
		{StatusOnHold, StatusInProgress, true},
		{StatusOnHold, StatusPendingReview, false},
		{StatusPendingReview, StatusCompleted, true},
		{StatusPendingReview, StatusInProgress, true},
		{StatusPendingReview, StatusOnHold, false},
		{StatusCompleted, StatusInProgress, false},
		{StatusCancelled, StatusInProgress, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestTerminalStatesAcceptNothing(t *testing.T) {
	for _, from := range []Status{StatusCompleted, StatusCancelled} {
		for _, to := range []Status{StatusNew, StatusInProgress, StatusPendingReview, StatusOnHold, StatusCancelled, StatusCompleted} {
			if from == to {
				continue
			}
			if err := ValidateChange(from, to, "u1", ChangeManual); !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("expected ErrInvalidTransition from %s to %s, got %v", from, to, err)
			}
		}
	}
}

func TestCompletionOnlyFromPendingReview(t *testing.T) {
	for _, from := range []Status{StatusNew, StatusInProgress, StatusOnHold} {
		if err := ValidateChange(from, StatusCompleted, "u1", ChangeManual); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition completing from %s, got %v", from, err)
		}
	}
	if err := ValidateChange(StatusPendingReview, StatusCompleted, "u1", ChangeManual); err != nil {
		t.Fatalf("completion from pending_review should validate (it is then gated), got %v", err)
	}
	if !RequiresApproval(StatusPendingReview, StatusCompleted) {
		t.Fatalf("pending_review -> completed must require approval")
	}
}

func TestPendingReviewOnlyLeavesViaDecisionOrCancel(t *testing.T) {
	if err := ValidateChange(StatusPendingReview, StatusInProgress, "u1", ChangeManual); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("manual pending_review -> in_progress must be rejected, got %v", err)
	}
	if err := ValidateChange(StatusPendingReview, StatusInProgress, "u1", ChangeRejection); err != nil {
		t.Fatalf("rejection pending_review -> in_progress should pass, got %v", err)
	}
	if err := ValidateChange(StatusPendingReview, StatusInProgress, "u1", ChangeRevisionRequest); err != nil {
		t.Fatalf("revision pending_review -> in_progress should pass, got %v", err)
	}
	if err := ValidateChange(StatusPendingReview, StatusCancelled, "u1", ChangeManual); err != nil {
		t.Fatalf("cancellation from pending_review should pass, got %v", err)
	}
}

func TestSameStatusRejected(t *testing.T) {
	if err := ValidateChange(StatusInProgress, StatusInProgress, "u1", ChangeManual); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for no-op change, got %v", err)
	}
}

func TestActorRules(t *testing.T) {
	if err := ValidateChange(StatusNew, StatusInProgress, "u1", ChangeAutoDue); !errors.Is(err, ErrValidation) {
		t.Fatalf("system change with actor must fail validation, got %v", err)
	}
	if err := ValidateChange(StatusNew, StatusInProgress, "", ChangeManual); !errors.Is(err, ErrValidation) {
		t.Fatalf("manual change without actor must fail validation, got %v", err)
	}
	if err := ValidateChange(StatusNew, StatusInProgress, "", ChangeAutoDue); err != nil {
		t.Fatalf("system auto_due without actor should pass, got %v", err)
	}
}

func TestUnknownStatusRejected(t *testing.T) {
	if err := ValidateChange(StatusNew, Status("archived"), "u1", ChangeManual); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown target status must fail validation, got %v", err)
	}
	if err := ValidateChange(StatusNew, StatusInProgress, "u1", ChangeType("bulk")); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown change type must fail validation, got %v", err)
	}
}
