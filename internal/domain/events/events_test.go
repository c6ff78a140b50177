package events

import (
	"context"
	"testing"
)

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus()
	var got []Kind
	bus.Subscribe(func(ctx context.Context, e Event) {
		got = append(got, e.Kind)
	})
	bus.Subscribe(func(ctx context.Context, e Event) {
		got = append(got, e.Kind)
	})

	bus.Publish(context.Background(), Event{Kind: KindTaskOverdue, TenantID: "t1"})

	if len(got) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(got))
	}
}

func TestPublishFillsIDAndTimestamp(t *testing.T) {
	bus := NewBus()
	var seen Event
	bus.Subscribe(func(ctx context.Context, e Event) {
		seen = e
	})

	bus.Publish(context.Background(), Event{Kind: KindApprovalDecided})

	if seen.ID == "" {
		t.Fatalf("expected generated event id")
	}
	if seen.OccurredAt.IsZero() {
		t.Fatalf("expected occurredAt to be set")
	}
}

func TestPanickingSubscriberDoesNotStopOthers(t *testing.T) {
	bus := NewBus()
	delivered := false
	bus.Subscribe(func(ctx context.Context, e Event) {
		panic("boom")
	})
	bus.Subscribe(func(ctx context.Context, e Event) {
		delivered = true
	})

	bus.Publish(context.Background(), Event{Kind: KindTaskDueSoon})

	if !delivered {
		t.Fatalf("expected second subscriber to run after panic in first")
	}
}
