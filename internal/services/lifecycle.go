package services

import (
	"context"
	"fmt"
	"time"

	"github.com/GlebTut/Auction-System-Project/internal/domain"
	"github.com/GlebTut/Auction-System-Project/pkg/logger"
	"github.com/GlebTut/Auction-System-Project/pkg/utils"

	"github.com/shopspring/decimal"
)

// DefaultLedgerTimeout brackets every Ledger call made on behalf of a single
// operation when the caller supplied no tighter deadline.
const DefaultLedgerTimeout = 5 * time.Second

// AuctionLifecycleService composes the bid acceptor, the closer and the
// payment issuer behind one contract. It holds no auction state of its own:
// every call re-reads from the Ledger, so independently running instances
// observe a linearizable-per-auction view.
type AuctionLifecycleService struct {
	ledger      domain.Ledger
	clock       domain.Clock
	acceptor    *BidAcceptor
	closer      *AuctionCloser
	events      domain.EventPublisher
	callTimeout time.Duration
	log         logger.Logger
}

func NewAuctionLifecycleService(
	ledger domain.Ledger,
	clock domain.Clock,
	acceptor *BidAcceptor,
	closer *AuctionCloser,
	events domain.EventPublisher,
	callTimeout time.Duration,
	log logger.Logger,
) *AuctionLifecycleService {
	if callTimeout <= 0 {
		callTimeout = DefaultLedgerTimeout
	}
	return &AuctionLifecycleService{
		ledger:      ledger,
		clock:       clock,
		acceptor:    acceptor,
		closer:      closer,
		events:      events,
		callTimeout: callTimeout,
		log:         log,
	}
}

// CreateAuction registers a new OPEN auction for a seller's item. The current
// highest bid starts at the starting price, so the first accepted bid must
// strictly exceed it.
func (s *AuctionLifecycleService) CreateAuction(ctx context.Context, itemID, sellerID string, startingPrice decimal.Decimal, startTime, endTime time.Time) (*domain.Auction, error) {
	if itemID == "" || sellerID == "" {
		return nil, fmt.Errorf("lifecycle: %w: missing item or seller id", domain.ErrInternal)
	}
	if !startingPrice.IsPositive() {
		return nil, fmt.Errorf("lifecycle: %w: starting price must be positive", domain.ErrBidTooLow)
	}
	if !endTime.After(startTime) {
		return nil, fmt.Errorf("lifecycle: %w: end time must be after start time", domain.ErrInternal)
	}

	now := s.clock.Now()
	auction := &domain.Auction{
		ID:                utils.GenerateID("auction"),
		ItemID:            itemID,
		SellerID:          sellerID,
		StartingPrice:     startingPrice,
		CurrentHighestBid: startingPrice,
		StartTime:         startTime,
		EndTime:           endTime,
		Status:            domain.AuctionOpen,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	ctx, cancel := s.deadline(ctx)
	defer cancel()
	if err := s.ledger.CreateAuction(ctx, auction); err != nil {
		return nil, fmt.Errorf("lifecycle: create auction: %w", err)
	}

	s.log.Info("Auction created", "auction_id", auction.ID,
		"item_id", itemID, "seller_id", sellerID, "end_time", endTime)
	return auction, nil
}

// PlaceBid validates and records a bid using the Clock's current instant as
// the deadline reference.
func (s *AuctionLifecycleService) PlaceBid(ctx context.Context, auctionID, buyerID string, amount decimal.Decimal) (*domain.Bid, error) {
	now := s.clock.Now()

	ctx, cancel := s.deadline(ctx)
	defer cancel()
	bid, err := s.acceptor.PlaceBid(ctx, auctionID, buyerID, amount, now)
	if err != nil {
		return nil, err
	}

	if s.events != nil {
		if err := s.events.PublishAuctionEvent(ctx, &domain.AuctionEvent{
			Type:      domain.EventBidAccepted,
			AuctionID: bid.AuctionID,
			BuyerID:   bid.BuyerID,
			Amount:    bid.Amount,
			Timestamp: bid.PlacedAt,
		}); err != nil {
			s.log.Error("Failed to publish bid event", "auction_id", auctionID, "error", err)
		}
	}
	return bid, nil
}

// CloseIfExpired performs an on-demand close check for a single auction, e.g.
// a viewer polling one auction.
func (s *AuctionLifecycleService) CloseIfExpired(ctx context.Context, auctionID string) (bool, error) {
	ctx, cancel := s.deadline(ctx)
	defer cancel()
	return s.closer.CloseIfExpired(ctx, auctionID, s.clock.Now())
}

// SweepExpired closes every auction whose deadline has passed. Safe to invoke
// from any number of overlapping schedulers.
func (s *AuctionLifecycleService) SweepExpired(ctx context.Context) (int, []error) {
	ctx, cancel := s.deadline(ctx)
	defer cancel()
	return s.closer.CloseExpiredAuctions(ctx, s.clock.Now())
}

func (s *AuctionLifecycleService) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	ctx, cancel := s.deadline(ctx)
	defer cancel()
	return s.ledger.GetAuction(ctx, auctionID)
}

// GetBidHistory returns the auction's immutable bid records ordered by
// placement time.
func (s *AuctionLifecycleService) GetBidHistory(ctx context.Context, auctionID string) ([]*domain.Bid, error) {
	ctx, cancel := s.deadline(ctx)
	defer cancel()
	if _, err := s.ledger.GetAuction(ctx, auctionID); err != nil {
		return nil, fmt.Errorf("lifecycle: bid history: %w", err)
	}
	return s.ledger.GetBidsByAuction(ctx, auctionID)
}

func (s *AuctionLifecycleService) GetPayment(ctx context.Context, auctionID string) (*domain.Payment, error) {
	ctx, cancel := s.deadline(ctx)
	defer cancel()
	return s.ledger.GetPaymentByAuction(ctx, auctionID)
}

func (s *AuctionLifecycleService) deadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.callTimeout)
}
