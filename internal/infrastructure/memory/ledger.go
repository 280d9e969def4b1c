package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/GlebTut/Auction-System-Project/internal/domain"
)

// Ledger is a concurrency-safe in-memory implementation of domain.Ledger,
// used by tests and the single-node "memory" storage backend. Auction updates
// are serialized under one mutex, which trivially satisfies the per-auction
// linearizability the interface demands.
type Ledger struct {
	mu       sync.RWMutex
	auctions map[string]*domain.Auction
	bids     map[string][]*domain.Bid   // auctionID -> bids in placement order
	payments map[string]*domain.Payment // auctionID -> payment
}

func NewLedger() *Ledger {
	return &Ledger{
		auctions: make(map[string]*domain.Auction),
		bids:     make(map[string][]*domain.Bid),
		payments: make(map[string]*domain.Payment),
	}
}

func (l *Ledger) CreateAuction(ctx context.Context, auction *domain.Auction) error {
	if err := ctx.Err(); err != nil {
		return mapCtxErr(err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.auctions[auction.ID]; exists {
		return fmt.Errorf("create auction %s: already exists: %w", auction.ID, domain.ErrInternal)
	}
	copied := *auction
	l.auctions[auction.ID] = &copied
	return nil
}

func (l *Ledger) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	if err := ctx.Err(); err != nil {
		return nil, mapCtxErr(err)
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	auction, ok := l.auctions[auctionID]
	if !ok {
		return nil, fmt.Errorf("get auction %s: %w", auctionID, domain.ErrAuctionNotFound)
	}
	copied := *auction
	return &copied, nil
}

func (l *Ledger) UpdateAuctionAtomically(ctx context.Context, auctionID string, fn domain.UpdateAuctionFn) (*domain.Auction, error) {
	if err := ctx.Err(); err != nil {
		return nil, mapCtxErr(err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.auctions[auctionID]
	if !ok {
		return nil, fmt.Errorf("update auction %s: %w", auctionID, domain.ErrAuctionNotFound)
	}

	// fn works on a copy; nothing is applied if it errors.
	working := *current
	bid, err := fn(&working)
	if err != nil {
		return nil, err
	}

	working.Version = current.Version + 1
	working.UpdatedAt = time.Now().UTC()
	l.auctions[auctionID] = &working
	if bid != nil {
		copied := *bid
		l.bids[auctionID] = append(l.bids[auctionID], &copied)
	}

	result := working
	return &result, nil
}

func (l *Ledger) GetBidsByAuction(ctx context.Context, auctionID string) ([]*domain.Bid, error) {
	if err := ctx.Err(); err != nil {
		return nil, mapCtxErr(err)
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	bids := make([]*domain.Bid, 0, len(l.bids[auctionID]))
	for _, bid := range l.bids[auctionID] {
		copied := *bid
		bids = append(bids, &copied)
	}
	sort.SliceStable(bids, func(i, j int) bool {
		return bids[i].PlacedAt.Before(bids[j].PlacedAt)
	})
	return bids, nil
}

func (l *Ledger) InsertPaymentIfAbsent(ctx context.Context, payment *domain.Payment) (*domain.Payment, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, mapCtxErr(err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.payments[payment.AuctionID]; ok {
		copied := *existing
		return &copied, false, nil
	}
	copied := *payment
	l.payments[payment.AuctionID] = &copied
	result := copied
	return &result, true, nil
}

func (l *Ledger) GetPaymentByAuction(ctx context.Context, auctionID string) (*domain.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, mapCtxErr(err)
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	payment, ok := l.payments[auctionID]
	if !ok {
		return nil, fmt.Errorf("get payment for auction %s: %w", auctionID, domain.ErrPaymentNotFound)
	}
	copied := *payment
	return &copied, nil
}

func (l *Ledger) ListOpenExpiredAuctions(ctx context.Context, now time.Time) ([]*domain.Auction, error) {
	if err := ctx.Err(); err != nil {
		return nil, mapCtxErr(err)
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	var expired []*domain.Auction
	for _, auction := range l.auctions {
		if auction.Status == domain.AuctionOpen && auction.Expired(now) {
			copied := *auction
			expired = append(expired, &copied)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].EndTime.Before(expired[j].EndTime)
	})
	return expired, nil
}

func mapCtxErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("ledger: %w", domain.ErrTimeout)
	}
	return err
}
