package services

import (
	"context"
	"fmt"

	"github.com/GlebTut/Auction-System-Project/internal/domain"
	"github.com/GlebTut/Auction-System-Project/pkg/logger"
)

// EventListener relays published auction events to the WebSocket viewers
// registered for the affected auction.
type EventListener struct {
	connManager domain.ConnectionManager
	log         logger.Logger
}

func NewEventListener(connManager domain.ConnectionManager, log logger.Logger) *EventListener {
	return &EventListener{
		connManager: connManager,
		log:         log,
	}
}

func (el *EventListener) Start(ctx context.Context, subscriber domain.EventSubscriber) error {
	el.log.Info("Starting event listener")
	return subscriber.SubscribeToAuctionEvents(ctx, el.handleEvent)
}

func (el *EventListener) handleEvent(event *domain.AuctionEvent) error {
	el.log.Debug("Handling auction event", "type", event.Type, "auction_id", event.AuctionID)

	switch event.Type {
	case domain.EventBidAccepted:
		return el.connManager.BroadcastToAuction(event.AuctionID, map[string]interface{}{
			"type":           "bid_update",
			"current_bid":    event.Amount.String(),
			"current_winner": event.BuyerID,
			"timestamp":      event.Timestamp,
		})
	case domain.EventPaymentCreated:
		return el.connManager.BroadcastToAuction(event.AuctionID, map[string]interface{}{
			"type":      "payment_created",
			"buyer_id":  event.BuyerID,
			"amount":    event.Amount.String(),
			"timestamp": event.Timestamp,
		})
	case domain.EventAuctionClosed:
		if err := el.connManager.BroadcastToAuction(event.AuctionID, map[string]interface{}{
			"type":      "auction_closed",
			"timestamp": event.Timestamp,
		}); err != nil {
			el.log.Error("Failed to broadcast auction close", "auction_id", event.AuctionID, "error", err)
			return err
		}
		// Viewers have nothing further to watch once the auction is closed.
		return el.connManager.CloseAndUnregisterConnections(event.AuctionID)
	}

	return fmt.Errorf("unknown event type %q", event.Type)
}
