package carts

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/grubsquad/grubsquad-backend/pkg/logger"
	gsredis "github.com/grubsquad/grubsquad-backend/pkg/redis"
	"github.com/grubsquad/grubsquad-backend/pkg/types"
)

// Event types published on a cart's channel. Consumers re-fetch a snapshot
// on notification; deltas and ordering are not guaranteed.
const (
	EventItemsChanged       = "cart.items.changed"
	EventBadgeUpdated       = "cart.badge.updated"
	EventFulfillmentUpdated = "cart.fulfillment.updated"
	EventCartDeleted        = "cart.deleted"
)

// Badge is the lightweight cart summary published alongside item mutations
// so UIs can refresh counters without a full snapshot fetch.
type Badge struct {
	CartID        uuid.UUID         `json:"cart_id"`
	RestaurantID  uuid.UUID         `json:"restaurant_id"`
	Title         string            `json:"title"`
	ItemCount     int               `json:"item_count"`
	SubtotalCents int               `json:"subtotal_cents"`
	Fulfillment   types.Fulfillment `json:"fulfillment"`
}

// CartEvent is the payload fanned out to cart subscribers.
type CartEvent struct {
	CartID   uuid.UUID  `json:"cart_id"`
	Type     string     `json:"type"`
	MemberID *uuid.UUID `json:"member_id,omitempty"`
	ItemID   *uuid.UUID `json:"item_id,omitempty"`
	Badge    *Badge     `json:"badge,omitempty"`
	At       time.Time  `json:"at"`
}

// Bus fans cart events out to interested subscribers.
type Bus interface {
	Publish(ctx context.Context, event CartEvent)
	Subscribe(ctx context.Context, cartID uuid.UUID) (<-chan CartEvent, func(), error)
}

// memoryBus is a process-local bus used in tests and single-node deploys.
type memoryBus struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]map[int]chan CartEvent
	next int
}

// NewMemoryBus constructs an in-process event bus.
func NewMemoryBus() Bus {
	return &memoryBus{subs: map[uuid.UUID]map[int]chan CartEvent{}}
}

func (b *memoryBus) Publish(_ context.Context, event CartEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[event.CartID] {
		select {
		case ch <- event:
		default:
			// slow subscriber, drop rather than block publishers
		}
	}
}

func (b *memoryBus) Subscribe(_ context.Context, cartID uuid.UUID) (<-chan CartEvent, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[cartID] == nil {
		b.subs[cartID] = map[int]chan CartEvent{}
	}
	id := b.next
	b.next++

	ch := make(chan CartEvent, 16)
	b.subs[cartID][id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[cartID][id]; ok {
			delete(b.subs[cartID], id)
			close(sub)
		}
	}
	return ch, cancel, nil
}

// redisBus fans events out across nodes via redis pub/sub.
type redisBus struct {
	client *gsredis.Client
	log    *logger.Logger
}

// NewRedisBus constructs a bus backed by redis pub/sub channels.
func NewRedisBus(client *gsredis.Client, log *logger.Logger) Bus {
	return &redisBus{client: client, log: log}
}

func (b *redisBus) Publish(ctx context.Context, event CartEvent) {
	ctx = b.log.WithCartID(ctx, event.CartID.String())
	payload, err := json.Marshal(event)
	if err != nil {
		b.log.Error(ctx, "cart event marshal failed", err)
		return
	}
	if err := b.client.Publish(ctx, gsredis.CartChannel(event.CartID.String()), payload); err != nil {
		b.log.Error(ctx, "cart event publish failed", err)
	}
}

func (b *redisBus) Subscribe(ctx context.Context, cartID uuid.UUID) (<-chan CartEvent, func(), error) {
	sub, err := b.client.Subscribe(ctx, gsredis.CartChannel(cartID.String()))
	if err != nil {
		return nil, nil, err
	}

	out := make(chan CartEvent, 16)
	done := make(chan struct{})

	go func() {
		defer close(out)
		src := sub.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-src:
				if !ok {
					return
				}
				var event CartEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					continue
				}
				select {
				case out <- event:
				case <-done:
					return
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = sub.Close()
		})
	}
	return out, cancel, nil
}
