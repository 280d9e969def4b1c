package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/GlebTut/Auction-System-Project/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func seedAuction(t *testing.T, ledger *Ledger, id string, end time.Time) *domain.Auction {
	t.Helper()
	auction := &domain.Auction{
		ID:                id,
		ItemID:            "item1",
		SellerID:          "seller1",
		StartingPrice:     decimal.NewFromInt(10),
		CurrentHighestBid: decimal.NewFromInt(10),
		StartTime:         end.Add(-time.Hour),
		EndTime:           end,
		Status:            domain.AuctionOpen,
	}
	require.NoError(t, ledger.CreateAuction(context.Background(), auction))
	return auction
}

func TestLedger_GetAuction(t *testing.T) {
	ledger := NewLedger()
	end := time.Date(2025, 3, 1, 13, 0, 0, 0, time.UTC)
	seedAuction(t, ledger, "auction_1", end)

	auction, err := ledger.GetAuction(context.Background(), "auction_1")
	require.NoError(t, err)
	require.Equal(t, "auction_1", auction.ID)

	_, err = ledger.GetAuction(context.Background(), "auction_missing")
	require.ErrorIs(t, err, domain.ErrAuctionNotFound)
}

func TestLedger_UpdateAuctionAtomically(t *testing.T) {
	ledger := NewLedger()
	end := time.Date(2025, 3, 1, 13, 0, 0, 0, time.UTC)
	seedAuction(t, ledger, "auction_1", end)

	t.Run("applies_mutation_and_bid_together", func(t *testing.T) {
		updated, err := ledger.UpdateAuctionAtomically(context.Background(), "auction_1",
			func(a *domain.Auction) (*domain.Bid, error) {
				a.CurrentHighestBid = decimal.NewFromInt(20)
				a.WinningBuyerID = "buyer1"
				return &domain.Bid{
					ID:        "bid_1",
					AuctionID: a.ID,
					BuyerID:   "buyer1",
					Amount:    decimal.NewFromInt(20),
					PlacedAt:  end.Add(-time.Minute),
				}, nil
			})
		require.NoError(t, err)
		require.Equal(t, int64(1), updated.Version)

		bids, err := ledger.GetBidsByAuction(context.Background(), "auction_1")
		require.NoError(t, err)
		require.Len(t, bids, 1)
	})

	t.Run("failed_mutation_changes_nothing", func(t *testing.T) {
		before, err := ledger.GetAuction(context.Background(), "auction_1")
		require.NoError(t, err)

		boom := errors.New("validation failed")
		_, err = ledger.UpdateAuctionAtomically(context.Background(), "auction_1",
			func(a *domain.Auction) (*domain.Bid, error) {
				a.CurrentHighestBid = decimal.NewFromInt(999)
				return nil, boom
			})
		require.ErrorIs(t, err, boom)

		after, err := ledger.GetAuction(context.Background(), "auction_1")
		require.NoError(t, err)
		require.True(t, after.CurrentHighestBid.Equal(before.CurrentHighestBid))
		require.Equal(t, before.Version, after.Version)

		bids, err := ledger.GetBidsByAuction(context.Background(), "auction_1")
		require.NoError(t, err)
		require.Len(t, bids, 1, "no bid may be recorded for a failed mutation")
	})

	t.Run("expired_deadline_maps_to_timeout", func(t *testing.T) {
		ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
		defer cancel()

		_, err := ledger.UpdateAuctionAtomically(ctx, "auction_1",
			func(a *domain.Auction) (*domain.Bid, error) { return nil, nil })
		require.ErrorIs(t, err, domain.ErrTimeout)
	})
}

func TestLedger_InsertPaymentIfAbsent(t *testing.T) {
	ledger := NewLedger()

	_, err := ledger.GetPaymentByAuction(context.Background(), "auction_1")
	require.ErrorIs(t, err, domain.ErrPaymentNotFound)

	payment := &domain.Payment{
		ID:        "payment_1",
		AuctionID: "auction_1",
		BuyerID:   "buyer1",
		SellerID:  "seller1",
		Amount:    decimal.NewFromInt(20),
		Status:    domain.PaymentPending,
	}

	stored, created, err := ledger.InsertPaymentIfAbsent(context.Background(), payment)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, "payment_1", stored.ID)

	duplicate := &domain.Payment{ID: "payment_2", AuctionID: "auction_1"}
	stored, created, err = ledger.InsertPaymentIfAbsent(context.Background(), duplicate)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, "payment_1", stored.ID, "the first payment wins")

	fetched, err := ledger.GetPaymentByAuction(context.Background(), "auction_1")
	require.NoError(t, err)
	require.Equal(t, "payment_1", fetched.ID)
}

func TestLedger_ListOpenExpiredAuctions(t *testing.T) {
	ledger := NewLedger()
	now := time.Date(2025, 3, 1, 13, 0, 0, 0, time.UTC)

	seedAuction(t, ledger, "auction_expired", now.Add(-time.Minute))
	seedAuction(t, ledger, "auction_live", now.Add(time.Hour))
	closedAuction := seedAuction(t, ledger, "auction_closed", now.Add(-time.Hour))

	_, err := ledger.UpdateAuctionAtomically(context.Background(), closedAuction.ID,
		func(a *domain.Auction) (*domain.Bid, error) {
			a.Status = domain.AuctionClosed
			return nil, nil
		})
	require.NoError(t, err)

	expired, err := ledger.ListOpenExpiredAuctions(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	require.Equal(t, "auction_expired", expired[0].ID)
}

func TestLedger_ReadsReturnCopies(t *testing.T) {
	ledger := NewLedger()
	end := time.Date(2025, 3, 1, 13, 0, 0, 0, time.UTC)
	seedAuction(t, ledger, "auction_1", end)

	first, err := ledger.GetAuction(context.Background(), "auction_1")
	require.NoError(t, err)
	first.CurrentHighestBid = decimal.NewFromInt(9999)
	first.Status = domain.AuctionClosed

	second, err := ledger.GetAuction(context.Background(), "auction_1")
	require.NoError(t, err)
	require.True(t, second.CurrentHighestBid.Equal(decimal.NewFromInt(10)))
	require.Equal(t, domain.AuctionOpen, second.Status)
}
