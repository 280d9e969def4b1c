package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GlebTut/Auction-System-Project/internal/domain"
	"github.com/GlebTut/Auction-System-Project/pkg/logger"
	"github.com/GlebTut/Auction-System-Project/pkg/utils"

	"github.com/shopspring/decimal"
)

// DefaultBidRetryAttempts bounds how often an optimistic-conflict bid is
// retried before ErrConflict is surfaced to the caller.
const DefaultBidRetryAttempts = 3

// BidAcceptor validates and records a single bid against a single auction.
// The highest-bid check, the auction update and the bid insert all run inside
// one Ledger transaction, so two concurrent bids can never both be accepted
// when only one clears the then-current highest bid.
type BidAcceptor struct {
	ledger      domain.Ledger
	maxAttempts int
	log         logger.Logger
}

func NewBidAcceptor(ledger domain.Ledger, maxAttempts int, log logger.Logger) *BidAcceptor {
	if maxAttempts < 1 {
		maxAttempts = DefaultBidRetryAttempts
	}
	return &BidAcceptor{
		ledger:      ledger,
		maxAttempts: maxAttempts,
		log:         log,
	}
}

// PlaceBid records a bid by buyerID on auctionID, taking now as the
// authoritative instant for the deadline check. On success the stored Bid is
// returned and the auction's highest bid and winning buyer reflect it.
func (a *BidAcceptor) PlaceBid(ctx context.Context, auctionID, buyerID string, amount decimal.Decimal, now time.Time) (*domain.Bid, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("bid acceptor: %w: amount must be positive", domain.ErrBidTooLow)
	}

	var lastErr error
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		var stored *domain.Bid
		_, err := a.ledger.UpdateAuctionAtomically(ctx, auctionID, func(auc *domain.Auction) (*domain.Bid, error) {
			if err := validateBid(auc, amount, now); err != nil {
				return nil, err
			}

			bid := &domain.Bid{
				ID:        utils.GenerateID("bid"),
				AuctionID: auc.ID,
				BuyerID:   buyerID,
				Amount:    amount,
				PlacedAt:  now,
			}

			auc.CurrentHighestBid = amount
			auc.WinningBuyerID = buyerID
			stored = bid
			return bid, nil
		})
		if err != nil {
			if errors.Is(err, domain.ErrConflict) {
				lastErr = err
				a.log.Warn("Bid hit concurrent update, retrying",
					"auction_id", auctionID, "buyer_id", buyerID, "attempt", attempt)
				continue
			}
			return nil, fmt.Errorf("bid acceptor: place bid on auction %s: %w", auctionID, err)
		}

		a.log.Info("Bid accepted",
			"auction_id", auctionID, "buyer_id", buyerID, "amount", amount.String())
		return stored, nil
	}

	return nil, fmt.Errorf("bid acceptor: auction %s: retries exhausted: %w", auctionID, lastErr)
}

// validateBid enforces the acceptance preconditions in order: the auction is
// open and the deadline has not passed, the amount strictly exceeds the
// current highest bid (ties rejected), and a first bid clears the starting
// price floor.
func validateBid(auc *domain.Auction, amount decimal.Decimal, now time.Time) error {
	if auc.Status != domain.AuctionOpen || auc.Expired(now) {
		return fmt.Errorf("%w: auction %s", domain.ErrAuctionClosed, auc.ID)
	}
	if !amount.GreaterThan(auc.CurrentHighestBid) {
		return fmt.Errorf("%w: current highest bid is %s", domain.ErrBidTooLow, auc.CurrentHighestBid.String())
	}
	if auc.WinningBuyerID == "" && amount.LessThan(auc.StartingPrice) {
		return fmt.Errorf("%w: starting price is %s", domain.ErrBidTooLow, auc.StartingPrice.String())
	}
	return nil
}
