package services

import (
	"context"
	"sync"
	"time"

	"github.com/GlebTut/Auction-System-Project/internal/domain"
	"github.com/GlebTut/Auction-System-Project/internal/infrastructure/memory"
	"github.com/GlebTut/Auction-System-Project/pkg/logger"
	"github.com/GlebTut/Auction-System-Project/pkg/utils"

	"github.com/shopspring/decimal"
)

// fakeClock is a settable Clock for tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// conflictLedger wraps another Ledger and fails the first n atomic updates
// with ErrConflict, simulating lost optimistic races.
type conflictLedger struct {
	domain.Ledger
	mu        sync.Mutex
	conflicts int
}

func (l *conflictLedger) UpdateAuctionAtomically(ctx context.Context, auctionID string, fn domain.UpdateAuctionFn) (*domain.Auction, error) {
	l.mu.Lock()
	remaining := l.conflicts
	if remaining > 0 {
		l.conflicts--
	}
	l.mu.Unlock()

	if remaining > 0 {
		return nil, domain.ErrConflict
	}
	return l.Ledger.UpdateAuctionAtomically(ctx, auctionID, fn)
}

// capturingPublisher records published events.
type capturingPublisher struct {
	mu     sync.Mutex
	events []*domain.AuctionEvent
}

func (p *capturingPublisher) PublishAuctionEvent(_ context.Context, event *domain.AuctionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) byType(t domain.AuctionEventType) []*domain.AuctionEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*domain.AuctionEvent
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// newOpenAuction seeds the ledger with an open auction whose highest bid
// starts at the starting price.
func newOpenAuction(ledger domain.Ledger, startingPrice string, start, end time.Time) *domain.Auction {
	auction := &domain.Auction{
		ID:                utils.GenerateID("auction"),
		ItemID:            utils.GenerateID("item"),
		SellerID:          "seller1",
		StartingPrice:     money(startingPrice),
		CurrentHighestBid: money(startingPrice),
		StartTime:         start,
		EndTime:           end,
		Status:            domain.AuctionOpen,
		CreatedAt:         start,
		UpdatedAt:         start,
	}
	if err := ledger.CreateAuction(context.Background(), auction); err != nil {
		panic(err)
	}
	return auction
}

func newTestLedger() *memory.Ledger {
	return memory.NewLedger()
}

func testLogger() logger.Logger {
	return logger.NewNop()
}
