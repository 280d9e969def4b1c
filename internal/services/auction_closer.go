package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GlebTut/Auction-System-Project/internal/domain"
	"github.com/GlebTut/Auction-System-Project/pkg/logger"
)

// Close outcomes signalled out of the atomic update without committing any
// change. Both map to closed=false: closing is idempotent and a not-yet-expired
// auction is simply left alone. An already-closed won auction still gets its
// payment handoff re-checked before returning.
var (
	errAlreadyClosed = errors.New("already closed")
	errNotExpired    = errors.New("not expired")
)

// AuctionCloser detects expired auctions, performs the one-way OPEN → CLOSED
// transition and hands each freshly closed auction to the PaymentIssuer. No
// process owns an auction continuously; any number of callers may attempt the
// same close concurrently and exactly one transition commits.
type AuctionCloser struct {
	ledger      domain.Ledger
	issuer      *PaymentIssuer
	events      domain.EventPublisher
	maxAttempts int
	log         logger.Logger
}

func NewAuctionCloser(ledger domain.Ledger, issuer *PaymentIssuer, events domain.EventPublisher, maxAttempts int, log logger.Logger) *AuctionCloser {
	if maxAttempts < 1 {
		maxAttempts = DefaultBidRetryAttempts
	}
	return &AuctionCloser{
		ledger:      ledger,
		issuer:      issuer,
		events:      events,
		maxAttempts: maxAttempts,
		log:         log,
	}
}

// CloseIfExpired transitions the auction to CLOSED if its deadline has passed.
// Returns closed=false without error when the auction is already closed or
// not yet expired. On a successful transition the payment obligation for the
// winner, if any, is issued before returning; for an auction that was already
// closed with a winner, a missing payment is reissued so that a failure after
// an earlier close commit never loses the obligation.
func (c *AuctionCloser) CloseIfExpired(ctx context.Context, auctionID string, now time.Time) (bool, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		var alreadyClosed *domain.Auction
		closed, err := c.ledger.UpdateAuctionAtomically(ctx, auctionID, func(auc *domain.Auction) (*domain.Bid, error) {
			if auc.Status == domain.AuctionClosed {
				snapshot := *auc
				alreadyClosed = &snapshot
				return nil, errAlreadyClosed
			}
			if !auc.Expired(now) {
				return nil, errNotExpired
			}
			auc.Status = domain.AuctionClosed
			return nil, nil
		})
		if err != nil {
			switch {
			case errors.Is(err, errAlreadyClosed):
				return false, c.recoverPayment(ctx, alreadyClosed, now)
			case errors.Is(err, errNotExpired):
				return false, nil
			case errors.Is(err, domain.ErrConflict):
				lastErr = err
				c.log.Warn("Close hit concurrent update, retrying",
					"auction_id", auctionID, "attempt", attempt)
				continue
			default:
				return false, fmt.Errorf("auction closer: close auction %s: %w", auctionID, err)
			}
		}

		c.log.Info("Auction closed", "auction_id", auctionID,
			"winning_buyer_id", closed.WinningBuyerID,
			"highest_bid", closed.CurrentHighestBid.String())
		c.publish(ctx, &domain.AuctionEvent{
			Type:      domain.EventAuctionClosed,
			AuctionID: closed.ID,
			BuyerID:   closed.WinningBuyerID,
			Amount:    closed.CurrentHighestBid,
			Timestamp: now,
		})

		payment, err := c.issuer.IssueIfWon(ctx, closed)
		if err != nil {
			return true, fmt.Errorf("auction closer: issue payment for auction %s: %w", auctionID, err)
		}
		if payment != nil {
			c.publish(ctx, &domain.AuctionEvent{
				Type:      domain.EventPaymentCreated,
				AuctionID: closed.ID,
				BuyerID:   payment.BuyerID,
				Amount:    payment.Amount,
				Timestamp: now,
			})
		}
		return true, nil
	}

	return false, fmt.Errorf("auction closer: auction %s: retries exhausted: %w", auctionID, lastErr)
}

// recoverPayment re-runs the payment handoff for an auction that closed
// earlier but may have lost its payment to a transient failure, e.g. a Ledger
// timeout between the close commit and the payment insert. Once the payment
// exists this is a single read.
func (c *AuctionCloser) recoverPayment(ctx context.Context, auc *domain.Auction, now time.Time) error {
	if auc == nil || auc.WinningBuyerID == "" {
		return nil
	}

	_, err := c.ledger.GetPaymentByAuction(ctx, auc.ID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrPaymentNotFound) {
		return fmt.Errorf("auction closer: check payment for auction %s: %w", auc.ID, err)
	}

	c.log.Warn("Closed auction has no payment, reissuing", "auction_id", auc.ID)
	payment, err := c.issuer.IssueIfWon(ctx, auc)
	if err != nil {
		return fmt.Errorf("auction closer: issue payment for auction %s: %w", auc.ID, err)
	}
	if payment != nil {
		c.publish(ctx, &domain.AuctionEvent{
			Type:      domain.EventPaymentCreated,
			AuctionID: auc.ID,
			BuyerID:   payment.BuyerID,
			Amount:    payment.Amount,
			Timestamp: now,
		})
	}
	return nil
}

// CloseExpiredAuctions sweeps every open auction whose deadline has passed.
// A failure on one auction never aborts the sweep; all individual errors are
// collected and returned alongside the number of auctions actually closed.
func (c *AuctionCloser) CloseExpiredAuctions(ctx context.Context, now time.Time) (int, []error) {
	expired, err := c.ledger.ListOpenExpiredAuctions(ctx, now)
	if err != nil {
		return 0, []error{fmt.Errorf("auction closer: list expired auctions: %w", err)}
	}

	var (
		closedCount int
		errs        []error
	)
	for _, auc := range expired {
		closed, err := c.CloseIfExpired(ctx, auc.ID, now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if closed {
			closedCount++
		}
	}

	if closedCount > 0 || len(errs) > 0 {
		c.log.Info("Sweep finished", "candidates", len(expired),
			"closed", closedCount, "errors", len(errs))
	}
	return closedCount, errs
}

func (c *AuctionCloser) publish(ctx context.Context, event *domain.AuctionEvent) {
	if c.events == nil {
		return
	}
	if err := c.events.PublishAuctionEvent(ctx, event); err != nil {
		c.log.Error("Failed to publish auction event",
			"type", event.Type, "auction_id", event.AuctionID, "error", err)
	}
}
