package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const saleEventsChannel = "sales:events"

const (
	EventSaleCreated = "SaleCreated"
	EventSaleUpdated = "SaleUpdated"
	EventSaleDeleted = "SaleDeleted"
	EventSalePaid    = "SalePaid"
)

// SaleEvent is the envelope published on every dashboard-visible mutation.
// Subscribers (the live feed) only need the sale id and the event type;
// they reload the record themselves.
type SaleEvent struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	SaleID     string    `json:"sale_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

type EventsRepo struct {
	client *goredis.Client
}

func NewEventsRepo(client *goredis.Client) *EventsRepo {
	return &EventsRepo{client: client}
}

func (r *EventsRepo) Publish(ctx context.Context, event SaleEvent) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if event.SaleID == "" || event.EventType == "" {
		return fmt.Errorf("invalid sale event payload")
	}

	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal sale event: %w", err)
	}

	if err := r.client.Publish(ctx, saleEventsChannel, raw).Err(); err != nil {
		return fmt.Errorf("publish sale event: %w", err)
	}

	return nil
}

// Subscribe returns a channel of decoded events. The channel closes when
// ctx is cancelled; undecodable messages are skipped.
func (r *EventsRepo) Subscribe(ctx context.Context) (<-chan SaleEvent, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	sub := r.client.Subscribe(ctx, saleEventsChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe sale events: %w", err)
	}

	out := make(chan SaleEvent)
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()

		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var event SaleEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
