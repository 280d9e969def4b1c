package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/GlebTut/Auction-System-Project/internal/domain"

	"github.com/go-redis/redis/v8"
)

const eventChannel = "auction_events"

// EventPublisher fans auction events out over a Redis pub/sub channel so that
// every running instance can notify its own viewers.
type EventPublisher struct {
	client *redis.Client
}

func NewEventPublisher(client *redis.Client) *EventPublisher {
	return &EventPublisher{client: client}
}

func (p *EventPublisher) PublishAuctionEvent(ctx context.Context, event *domain.AuctionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal auction event: %w", err)
	}
	return p.client.Publish(ctx, eventChannel, payload).Err()
}
