package domain

import (
	"context"
	"time"
)

// UpdateAuctionFn is applied to the current auction record inside a Ledger
// transaction. It may mutate the record in place and may return a Bid, which
// the Ledger persists in the same transaction as the auction update. Returning
// an error aborts the transaction without applying any change.
type UpdateAuctionFn func(a *Auction) (*Bid, error)

// Ledger is the durable store of auctions, bids and payments, and the single
// source of truth for auction state. Per-auction linearizability comes from
// UpdateAuctionAtomically; different auctions are fully independent.
type Ledger interface {
	CreateAuction(ctx context.Context, auction *Auction) error
	GetAuction(ctx context.Context, auctionID string) (*Auction, error)
	// UpdateAuctionAtomically applies fn to the current record inside a
	// transaction scoped to the auction row. A detected concurrent update
	// surfaces as ErrConflict; the caller decides whether to retry.
	UpdateAuctionAtomically(ctx context.Context, auctionID string, fn UpdateAuctionFn) (*Auction, error)
	GetBidsByAuction(ctx context.Context, auctionID string) ([]*Bid, error)
	// InsertPaymentIfAbsent creates the payment unless one already exists for
	// the same auction, in which case the existing record is returned with
	// created=false. Uniqueness is keyed on AuctionID.
	InsertPaymentIfAbsent(ctx context.Context, payment *Payment) (stored *Payment, created bool, err error)
	GetPaymentByAuction(ctx context.Context, auctionID string) (*Payment, error)
	ListOpenExpiredAuctions(ctx context.Context, now time.Time) ([]*Auction, error)
}

// Clock supplies the current instant. Substituted in tests.
type Clock interface {
	Now() time.Time
}

// Event interfaces
type EventPublisher interface {
	PublishAuctionEvent(ctx context.Context, event *AuctionEvent) error
}

type EventSubscriber interface {
	SubscribeToAuctionEvents(ctx context.Context, handler EventHandler) error
}

type EventHandler func(event *AuctionEvent) error

// Leader election interface
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}

// WebSocket interfaces
type WebSocketConnection interface {
	Send(message interface{}) error
	Close() error
	UserID() string
	AuctionID() string
}

type ConnectionManager interface {
	RegisterConnection(userID, auctionID string, conn WebSocketConnection) error
	UnregisterConnection(userID, auctionID string) error
	BroadcastToAuction(auctionID string, message interface{}) error
	CloseAndUnregisterConnections(auctionID string) error
}
