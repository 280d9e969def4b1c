package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/GlebTut/Auction-System-Project/internal/domain"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
)

const mysqlDuplicateEntry = 1062

// Ledger is the durable MySQL store of auctions, bids and payments.
// Per-auction atomicity comes from an optimistic version check on the
// auctions row; payment uniqueness from a unique key on payments.auction_id.
type Ledger struct {
	db *sql.DB
}

func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) CreateAuction(ctx context.Context, auction *domain.Auction) error {
	query := `
        INSERT INTO auctions (id, item_id, seller_id, starting_price, current_highest_bid,
            winning_buyer_id, start_time, end_time, status, version, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := l.db.ExecContext(ctx, query,
		auction.ID, auction.ItemID, auction.SellerID,
		auction.StartingPrice.String(), auction.CurrentHighestBid.String(),
		auction.WinningBuyerID, auction.StartTime, auction.EndTime,
		int(auction.Status), auction.Version, auction.CreatedAt, auction.UpdatedAt)
	return wrapErr("create auction", err)
}

func (l *Ledger) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	row := l.db.QueryRowContext(ctx, auctionColumns+` FROM auctions WHERE id = ?`, auctionID)
	auction, err := scanAuction(row)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("get auction %s", auctionID), err)
	}
	return auction, nil
}

// UpdateAuctionAtomically applies fn to the current auction record inside one
// transaction. The auction update and the bid insert, if fn returns one,
// commit together or not at all. A lost version race surfaces as ErrConflict.
func (l *Ledger) UpdateAuctionAtomically(ctx context.Context, auctionID string, fn domain.UpdateAuctionFn) (*domain.Auction, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapErr("begin update", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, auctionColumns+` FROM auctions WHERE id = ?`, auctionID)
	auction, err := scanAuction(row)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("read auction %s", auctionID), err)
	}

	baseVersion := auction.Version
	bid, err := fn(auction)
	if err != nil {
		return nil, err
	}

	auction.Version = baseVersion + 1
	auction.UpdatedAt = time.Now().UTC()

	res, err := tx.ExecContext(ctx, `
        UPDATE auctions
        SET current_highest_bid = ?, winning_buyer_id = ?, status = ?, version = ?, updated_at = ?
        WHERE id = ? AND version = ?`,
		auction.CurrentHighestBid.String(), auction.WinningBuyerID,
		int(auction.Status), auction.Version, auction.UpdatedAt,
		auctionID, baseVersion)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("update auction %s", auctionID), err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, wrapErr("rows affected", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("update auction %s: %w", auctionID, domain.ErrConflict)
	}

	if bid != nil {
		_, err = tx.ExecContext(ctx, `
            INSERT INTO bids (id, auction_id, buyer_id, amount, placed_at)
            VALUES (?, ?, ?, ?, ?)`,
			bid.ID, bid.AuctionID, bid.BuyerID, bid.Amount.String(), bid.PlacedAt)
		if err != nil {
			return nil, wrapErr(fmt.Sprintf("insert bid for auction %s", auctionID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapErr(fmt.Sprintf("commit auction %s", auctionID), err)
	}
	return auction, nil
}

func (l *Ledger) GetBidsByAuction(ctx context.Context, auctionID string) ([]*domain.Bid, error) {
	rows, err := l.db.QueryContext(ctx, `
        SELECT id, auction_id, buyer_id, amount, placed_at
        FROM bids WHERE auction_id = ?
        ORDER BY placed_at ASC, id ASC`, auctionID)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("list bids for auction %s", auctionID), err)
	}
	defer rows.Close()

	var bids []*domain.Bid
	for rows.Next() {
		var (
			bid    domain.Bid
			amount string
		)
		if err := rows.Scan(&bid.ID, &bid.AuctionID, &bid.BuyerID, &amount, &bid.PlacedAt); err != nil {
			return nil, wrapErr("scan bid", err)
		}
		if bid.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("bid %s: bad amount %q: %w", bid.ID, amount, domain.ErrInternal)
		}
		bids = append(bids, &bid)
	}
	return bids, wrapErr("iterate bids", rows.Err())
}

func (l *Ledger) InsertPaymentIfAbsent(ctx context.Context, payment *domain.Payment) (*domain.Payment, bool, error) {
	_, err := l.db.ExecContext(ctx, `
        INSERT INTO payments (id, auction_id, buyer_id, seller_id, amount, status, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		payment.ID, payment.AuctionID, payment.BuyerID, payment.SellerID,
		payment.Amount.String(), string(payment.Status), payment.CreatedAt)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
			existing, getErr := l.GetPaymentByAuction(ctx, payment.AuctionID)
			if getErr != nil {
				return nil, false, getErr
			}
			return existing, false, nil
		}
		return nil, false, wrapErr(fmt.Sprintf("insert payment for auction %s", payment.AuctionID), err)
	}
	return payment, true, nil
}

func (l *Ledger) GetPaymentByAuction(ctx context.Context, auctionID string) (*domain.Payment, error) {
	var (
		payment domain.Payment
		amount  string
		status  string
	)
	err := l.db.QueryRowContext(ctx, `
        SELECT id, auction_id, buyer_id, seller_id, amount, status, created_at
        FROM payments WHERE auction_id = ?`, auctionID).Scan(
		&payment.ID, &payment.AuctionID, &payment.BuyerID, &payment.SellerID,
		&amount, &status, &payment.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get payment for auction %s: %w", auctionID, domain.ErrPaymentNotFound)
	}
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("get payment for auction %s", auctionID), err)
	}
	if payment.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("payment %s: bad amount %q: %w", payment.ID, amount, domain.ErrInternal)
	}
	payment.Status = domain.PaymentStatus(status)
	return &payment, nil
}

func (l *Ledger) ListOpenExpiredAuctions(ctx context.Context, now time.Time) ([]*domain.Auction, error) {
	rows, err := l.db.QueryContext(ctx,
		auctionColumns+` FROM auctions WHERE status = ? AND end_time <= ?`,
		int(domain.AuctionOpen), now)
	if err != nil {
		return nil, wrapErr("list expired auctions", err)
	}
	defer rows.Close()

	var auctions []*domain.Auction
	for rows.Next() {
		auction, err := scanAuction(rows)
		if err != nil {
			return nil, wrapErr("scan auction", err)
		}
		auctions = append(auctions, auction)
	}
	return auctions, wrapErr("iterate auctions", rows.Err())
}

const auctionColumns = `
        SELECT id, item_id, seller_id, starting_price, current_highest_bid,
            winning_buyer_id, start_time, end_time, status, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAuction(row rowScanner) (*domain.Auction, error) {
	var (
		auction       domain.Auction
		startingPrice string
		highestBid    string
		status        int
	)
	err := row.Scan(&auction.ID, &auction.ItemID, &auction.SellerID,
		&startingPrice, &highestBid, &auction.WinningBuyerID,
		&auction.StartTime, &auction.EndTime, &status, &auction.Version,
		&auction.CreatedAt, &auction.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if auction.StartingPrice, err = decimal.NewFromString(startingPrice); err != nil {
		return nil, fmt.Errorf("auction %s: bad starting price %q: %w", auction.ID, startingPrice, domain.ErrInternal)
	}
	if auction.CurrentHighestBid, err = decimal.NewFromString(highestBid); err != nil {
		return nil, fmt.Errorf("auction %s: bad highest bid %q: %w", auction.ID, highestBid, domain.ErrInternal)
	}
	auction.Status = domain.AuctionStatus(status)
	return &auction, nil
}

// wrapErr maps driver-level failures onto the domain taxonomy. A nil err
// passes through untouched.
func wrapErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", op, domain.ErrAuctionNotFound)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, domain.ErrTimeout)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
