package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/GlebTut/Auction-System-Project/internal/domain"
	"github.com/GlebTut/Auction-System-Project/internal/services"
	"github.com/GlebTut/Auction-System-Project/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type AuctionHandler struct {
	lifecycle *services.AuctionLifecycleService
	log       logger.Logger
}

func NewAuctionHandler(lifecycle *services.AuctionLifecycleService, log logger.Logger) *AuctionHandler {
	return &AuctionHandler{
		lifecycle: lifecycle,
		log:       log,
	}
}

type CreateAuctionRequest struct {
	ItemID        string    `json:"item_id"`
	SellerID      string    `json:"seller_id"`
	StartingPrice string    `json:"starting_price"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
}

type PlaceBidRequest struct {
	BuyerID string `json:"buyer_id"`
	Amount  string `json:"amount"`
}

type AuctionResponse struct {
	AuctionID         string    `json:"auction_id"`
	ItemID            string    `json:"item_id"`
	SellerID          string    `json:"seller_id"`
	StartingPrice     string    `json:"starting_price"`
	CurrentHighestBid string    `json:"current_highest_bid"`
	WinningBuyerID    string    `json:"winning_buyer_id,omitempty"`
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time"`
	Status            string    `json:"status"`
}

type BidResponse struct {
	BidID     string    `json:"bid_id"`
	AuctionID string    `json:"auction_id"`
	BuyerID   string    `json:"buyer_id"`
	Amount    string    `json:"amount"`
	PlacedAt  time.Time `json:"placed_at"`
}

type PaymentResponse struct {
	PaymentID string `json:"payment_id"`
	AuctionID string `json:"auction_id"`
	BuyerID   string `json:"buyer_id"`
	SellerID  string `json:"seller_id"`
	Amount    string `json:"amount"`
	Status    string `json:"status"`
}

func (h *AuctionHandler) CreateAuction(c echo.Context) error {
	var req CreateAuctionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	startingPrice, err := decimal.NewFromString(req.StartingPrice)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid starting price"})
	}
	if req.ItemID == "" || req.SellerID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "item_id and seller_id are required"})
	}
	if !req.EndTime.After(req.StartTime) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "end time must be after start time"})
	}
	if !startingPrice.IsPositive() {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "starting price must be positive"})
	}

	auction, err := h.lifecycle.CreateAuction(c.Request().Context(),
		req.ItemID, req.SellerID, startingPrice, req.StartTime, req.EndTime)
	if err != nil {
		h.log.Error("Failed to create auction", "error", err)
		return h.writeError(c, err)
	}

	return c.JSON(http.StatusCreated, toAuctionResponse(auction))
}

// GetAuction returns the auction's current state. Polling a single auction is
// also the on-demand close path: an expired auction is closed here without
// waiting for the next sweep.
func (h *AuctionHandler) GetAuction(c echo.Context) error {
	auctionID := c.Param("id")

	if _, err := h.lifecycle.CloseIfExpired(c.Request().Context(), auctionID); err != nil {
		h.log.Error("On-demand close failed", "auction_id", auctionID, "error", err)
	}

	auction, err := h.lifecycle.GetAuction(c.Request().Context(), auctionID)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, toAuctionResponse(auction))
}

func (h *AuctionHandler) PlaceBid(c echo.Context) error {
	auctionID := c.Param("id")

	var req PlaceBidRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.BuyerID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "buyer_id is required"})
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid bid amount"})
	}

	bid, err := h.lifecycle.PlaceBid(c.Request().Context(), auctionID, req.BuyerID, amount)
	if err != nil {
		return h.writeError(c, err)
	}

	return c.JSON(http.StatusCreated, BidResponse{
		BidID:     bid.ID,
		AuctionID: bid.AuctionID,
		BuyerID:   bid.BuyerID,
		Amount:    bid.Amount.String(),
		PlacedAt:  bid.PlacedAt,
	})
}

func (h *AuctionHandler) CloseAuction(c echo.Context) error {
	auctionID := c.Param("id")

	closed, err := h.lifecycle.CloseIfExpired(c.Request().Context(), auctionID)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"auction_id": auctionID,
		"closed":     closed,
	})
}

func (h *AuctionHandler) GetBidHistory(c echo.Context) error {
	auctionID := c.Param("id")

	bids, err := h.lifecycle.GetBidHistory(c.Request().Context(), auctionID)
	if err != nil {
		return h.writeError(c, err)
	}

	resp := make([]BidResponse, 0, len(bids))
	for _, bid := range bids {
		resp = append(resp, BidResponse{
			BidID:     bid.ID,
			AuctionID: bid.AuctionID,
			BuyerID:   bid.BuyerID,
			Amount:    bid.Amount.String(),
			PlacedAt:  bid.PlacedAt,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *AuctionHandler) GetPayment(c echo.Context) error {
	auctionID := c.Param("id")

	payment, err := h.lifecycle.GetPayment(c.Request().Context(), auctionID)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, PaymentResponse{
		PaymentID: payment.ID,
		AuctionID: payment.AuctionID,
		BuyerID:   payment.BuyerID,
		SellerID:  payment.SellerID,
		Amount:    payment.Amount.String(),
		Status:    string(payment.Status),
	})
}

func (h *AuctionHandler) writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrAuctionNotFound), errors.Is(err, domain.ErrPaymentNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrAuctionClosed):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrBidTooLow):
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrConflict):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrTimeout):
		return c.JSON(http.StatusGatewayTimeout, map[string]string{"error": err.Error()})
	default:
		h.log.Error("Internal error", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func toAuctionResponse(a *domain.Auction) AuctionResponse {
	return AuctionResponse{
		AuctionID:         a.ID,
		ItemID:            a.ItemID,
		SellerID:          a.SellerID,
		StartingPrice:     a.StartingPrice.String(),
		CurrentHighestBid: a.CurrentHighestBid.String(),
		WinningBuyerID:    a.WinningBuyerID,
		StartTime:         a.StartTime,
		EndTime:           a.EndTime,
		Status:            a.Status.String(),
	}
}
