package carts

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMemoryBusFanOut(t *testing.T) {
	t.Parallel()

	bus := NewMemoryBus()
	cartID := uuid.New()
	ctx := context.Background()

	first, cancelFirst, err := bus.Subscribe(ctx, cartID)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer cancelFirst()
	second, cancelSecond, err := bus.Subscribe(ctx, cartID)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer cancelSecond()

	bus.Publish(ctx, CartEvent{CartID: cartID, Type: EventItemsChanged, At: time.Now().UTC()})

	for _, ch := range []<-chan CartEvent{first, second} {
		select {
		case event := <-ch:
			if event.Type != EventItemsChanged {
				t.Fatalf("unexpected event type %s", event.Type)
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestMemoryBusScopesByCart(t *testing.T) {
	t.Parallel()

	bus := NewMemoryBus()
	ctx := context.Background()
	mine := uuid.New()

	events, cancel, err := bus.Subscribe(ctx, mine)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer cancel()

	bus.Publish(ctx, CartEvent{CartID: uuid.New(), Type: EventBadgeUpdated})

	select {
	case event := <-events:
		t.Fatalf("received event for another cart: %+v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBusCancelClosesChannel(t *testing.T) {
	t.Parallel()

	bus := NewMemoryBus()
	cartID := uuid.New()
	events, cancel, err := bus.Subscribe(context.Background(), cartID)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	cancel()
	if _, open := <-events; open {
		t.Fatal("expected channel closed after cancel")
	}

	// Publishing after cancel must not panic or block.
	bus.Publish(context.Background(), CartEvent{CartID: cartID, Type: EventCartDeleted})
}
