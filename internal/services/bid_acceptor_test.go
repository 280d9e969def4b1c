package services

import (
	"context"
	"testing"
	"time"

	"github.com/GlebTut/Auction-System-Project/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestBidAcceptor_PlaceBid(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	tests := []struct {
		name        string
		amount      string
		now         time.Time
		prepare     func(ledger domain.Ledger, auctionID string)
		expectedErr error
	}{
		{
			name:   "first_bid_above_starting_price_accepted",
			amount: "15",
			now:    start.Add(time.Minute),
		},
		{
			name:        "first_bid_equal_to_starting_price_rejected",
			amount:      "10",
			now:         start.Add(time.Minute),
			expectedErr: domain.ErrBidTooLow,
		},
		{
			name:        "first_bid_below_starting_price_rejected",
			amount:      "5",
			now:         start.Add(time.Minute),
			expectedErr: domain.ErrBidTooLow,
		},
		{
			name:        "zero_amount_rejected",
			amount:      "0",
			now:         start.Add(time.Minute),
			expectedErr: domain.ErrBidTooLow,
		},
		{
			name:        "negative_amount_rejected",
			amount:      "-20",
			now:         start.Add(time.Minute),
			expectedErr: domain.ErrBidTooLow,
		},
		{
			name:   "tie_with_current_highest_rejected",
			amount: "15",
			now:    start.Add(2 * time.Minute),
			prepare: func(ledger domain.Ledger, auctionID string) {
				acceptor := NewBidAcceptor(ledger, 1, testLogger())
				_, err := acceptor.PlaceBid(context.Background(), auctionID, "buyer1", money("15"), start.Add(time.Minute))
				require.NoError(t, err)
			},
			expectedErr: domain.ErrBidTooLow,
		},
		{
			name:   "higher_bid_accepted_over_previous",
			amount: "20",
			now:    start.Add(2 * time.Minute),
			prepare: func(ledger domain.Ledger, auctionID string) {
				acceptor := NewBidAcceptor(ledger, 1, testLogger())
				_, err := acceptor.PlaceBid(context.Background(), auctionID, "buyer1", money("15"), start.Add(time.Minute))
				require.NoError(t, err)
			},
		},
		{
			name:        "bid_at_deadline_rejected",
			amount:      "50",
			now:         end,
			expectedErr: domain.ErrAuctionClosed,
		},
		{
			name:        "bid_after_deadline_rejected_even_while_status_open",
			amount:      "50",
			now:         end.Add(time.Second),
			expectedErr: domain.ErrAuctionClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := newTestLedger()
			auction := newOpenAuction(ledger, "10", start, end)
			if tt.prepare != nil {
				tt.prepare(ledger, auction.ID)
			}

			acceptor := NewBidAcceptor(ledger, 1, testLogger())
			bid, err := acceptor.PlaceBid(context.Background(), auction.ID, "buyer2", money(tt.amount), tt.now)

			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				require.Nil(t, bid)
				return
			}

			require.NoError(t, err)
			require.NotEmpty(t, bid.ID)
			require.Equal(t, auction.ID, bid.AuctionID)
			require.Equal(t, "buyer2", bid.BuyerID)
			require.True(t, bid.Amount.Equal(money(tt.amount)))

			updated, err := ledger.GetAuction(context.Background(), auction.ID)
			require.NoError(t, err)
			require.True(t, updated.CurrentHighestBid.Equal(bid.Amount))
			require.Equal(t, "buyer2", updated.WinningBuyerID)
		})
	}
}

func TestBidAcceptor_UnknownAuction(t *testing.T) {
	acceptor := NewBidAcceptor(newTestLedger(), 1, testLogger())

	_, err := acceptor.PlaceBid(context.Background(), "auction_missing", "buyer1", money("10"), time.Now().UTC())
	require.ErrorIs(t, err, domain.ErrAuctionNotFound)

	// An empty auction id is an existence failure, not a bid validation one.
	_, err = acceptor.PlaceBid(context.Background(), "", "buyer1", money("10"), time.Now().UTC())
	require.ErrorIs(t, err, domain.ErrAuctionNotFound)
}

func TestBidAcceptor_RejectedBidLeavesAuctionUntouched(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ledger := newTestLedger()
	auction := newOpenAuction(ledger, "10", start, start.Add(time.Hour))

	acceptor := NewBidAcceptor(ledger, 1, testLogger())
	_, err := acceptor.PlaceBid(context.Background(), auction.ID, "buyer1", money("30"), start.Add(time.Minute))
	require.NoError(t, err)

	_, err = acceptor.PlaceBid(context.Background(), auction.ID, "buyer2", money("25"), start.Add(2*time.Minute))
	require.ErrorIs(t, err, domain.ErrBidTooLow)

	current, err := ledger.GetAuction(context.Background(), auction.ID)
	require.NoError(t, err)
	require.True(t, current.CurrentHighestBid.Equal(money("30")))
	require.Equal(t, "buyer1", current.WinningBuyerID)

	bids, err := ledger.GetBidsByAuction(context.Background(), auction.ID)
	require.NoError(t, err)
	require.Len(t, bids, 1, "rejected bid must not be recorded")
}

func TestBidAcceptor_RetriesConflictsThenSucceeds(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	base := newTestLedger()
	auction := newOpenAuction(base, "10", start, start.Add(time.Hour))
	ledger := &conflictLedger{Ledger: base, conflicts: 2}

	acceptor := NewBidAcceptor(ledger, 3, testLogger())
	bid, err := acceptor.PlaceBid(context.Background(), auction.ID, "buyer1", money("15"), start.Add(time.Minute))
	require.NoError(t, err)
	require.True(t, bid.Amount.Equal(money("15")))
}

func TestBidAcceptor_SurfacesConflictAfterRetryBudget(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	base := newTestLedger()
	auction := newOpenAuction(base, "10", start, start.Add(time.Hour))
	ledger := &conflictLedger{Ledger: base, conflicts: 10}

	acceptor := NewBidAcceptor(ledger, 3, testLogger())
	_, err := acceptor.PlaceBid(context.Background(), auction.ID, "buyer1", money("15"), start.Add(time.Minute))
	require.ErrorIs(t, err, domain.ErrConflict)
}

func TestBidAcceptor_TimeoutSurfaced(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ledger := newTestLedger()
	auction := newOpenAuction(ledger, "10", start, start.Add(time.Hour))

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	acceptor := NewBidAcceptor(ledger, 3, testLogger())
	_, err := acceptor.PlaceBid(ctx, auction.ID, "buyer1", money("15"), start.Add(time.Minute))
	require.ErrorIs(t, err, domain.ErrTimeout)
}
