package services

import (
	"context"
	"fmt"

	"github.com/GlebTut/Auction-System-Project/internal/domain"
	"github.com/GlebTut/Auction-System-Project/pkg/logger"
	"github.com/GlebTut/Auction-System-Project/pkg/utils"
)

// PaymentIssuer creates the payment obligation for a closed auction's winner.
// Creation is idempotent: the Ledger enforces uniqueness per auction, so a
// concurrent or retried close can never produce a duplicate obligation.
type PaymentIssuer struct {
	ledger domain.Ledger
	clock  domain.Clock
	log    logger.Logger
}

func NewPaymentIssuer(ledger domain.Ledger, clock domain.Clock, log logger.Logger) *PaymentIssuer {
	return &PaymentIssuer{
		ledger: ledger,
		clock:  clock,
		log:    log,
	}
}

// IssueIfWon creates the PENDING payment for the auction's winning buyer.
// Calling it on an auction that is not CLOSED is a caller bug. An auction that
// closed without any bid yields (nil, nil): no payment, not an error. If the
// payment already exists, the existing record is returned.
func (p *PaymentIssuer) IssueIfWon(ctx context.Context, auction *domain.Auction) (*domain.Payment, error) {
	if auction.Status != domain.AuctionClosed {
		return nil, fmt.Errorf("payment issuer: %w: auction %s is %s, expected closed",
			domain.ErrInternal, auction.ID, auction.Status)
	}
	if auction.WinningBuyerID == "" {
		p.log.Info("Auction closed without bids, no payment issued", "auction_id", auction.ID)
		return nil, nil
	}

	payment := &domain.Payment{
		ID:        utils.GenerateID("payment"),
		AuctionID: auction.ID,
		BuyerID:   auction.WinningBuyerID,
		SellerID:  auction.SellerID,
		Amount:    auction.CurrentHighestBid,
		Status:    domain.PaymentPending,
		CreatedAt: p.clock.Now(),
	}

	stored, created, err := p.ledger.InsertPaymentIfAbsent(ctx, payment)
	if err != nil {
		return nil, fmt.Errorf("payment issuer: insert payment for auction %s: %w", auction.ID, err)
	}
	if !created {
		p.log.Info("Payment already issued", "auction_id", auction.ID, "payment_id", stored.ID)
		return stored, nil
	}

	p.log.Info("Payment issued", "auction_id", auction.ID, "payment_id", stored.ID,
		"buyer_id", stored.BuyerID, "amount", stored.Amount.String())
	return stored, nil
}
