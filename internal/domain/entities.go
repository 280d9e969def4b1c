package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Auction is the value record for a single timed sale. Records are read fresh
// from the Ledger per call and mutated only through UpdateAuctionAtomically;
// Version is the Ledger's optimistic concurrency token.
type Auction struct {
	ID                string
	ItemID            string
	SellerID          string
	StartingPrice     decimal.Decimal
	CurrentHighestBid decimal.Decimal
	WinningBuyerID    string
	StartTime         time.Time
	EndTime           time.Time
	Status            AuctionStatus
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type AuctionStatus int

const (
	AuctionOpen AuctionStatus = iota
	AuctionClosed
)

func (s AuctionStatus) String() string {
	switch s {
	case AuctionOpen:
		return "open"
	case AuctionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Expired reports whether the auction's deadline has passed at the given
// instant. The deadline is authoritative on read: a bid arriving at or after
// EndTime is rejected even if no sweep has flipped Status yet.
func (a *Auction) Expired(now time.Time) bool {
	return !now.Before(a.EndTime)
}

// Bid records are immutable once created.
type Bid struct {
	ID        string
	AuctionID string
	BuyerID   string
	Amount    decimal.Decimal
	PlacedAt  time.Time
}

// Payment is the obligation created for the winning buyer when an auction
// closes with at least one accepted bid. At most one exists per auction.
type Payment struct {
	ID        string
	AuctionID string
	BuyerID   string
	SellerID  string
	Amount    decimal.Decimal
	Status    PaymentStatus
	CreatedAt time.Time
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
)

// AuctionEvent is the notification fanned out to viewers over pub/sub and
// WebSocket. Events never carry state the Ledger does not already hold.
type AuctionEvent struct {
	Type      AuctionEventType `json:"type"`
	AuctionID string           `json:"auction_id"`
	BuyerID   string           `json:"buyer_id,omitempty"`
	Amount    decimal.Decimal  `json:"amount"`
	Timestamp time.Time        `json:"timestamp"`
}

type AuctionEventType string

const (
	EventBidAccepted    AuctionEventType = "bid_accepted"
	EventAuctionClosed  AuctionEventType = "auction_closed"
	EventPaymentCreated AuctionEventType = "payment_created"
)
