package handlers

import (
	"net/http"

	"github.com/GlebTut/Auction-System-Project/internal/domain"
	ws "github.com/GlebTut/Auction-System-Project/internal/infrastructure/websocket"
	"github.com/GlebTut/Auction-System-Project/internal/services"
	"github.com/GlebTut/Auction-System-Project/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// WebSocketHandler upgrades viewer connections for a single auction. Viewers
// only receive broadcasts; bids go through the HTTP API.
type WebSocketHandler struct {
	lifecycle   *services.AuctionLifecycleService
	connManager *ws.ConnectionManager
	log         logger.Logger
}

func NewWebSocketHandler(lifecycle *services.AuctionLifecycleService,
	connManager *ws.ConnectionManager, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		lifecycle:   lifecycle,
		connManager: connManager,
		log:         log,
	}
}

func (h *WebSocketHandler) HandleConnection(c echo.Context) error {
	auctionID := c.Param("id")

	auction, err := h.lifecycle.GetAuction(c.Request().Context(), auctionID)
	if err != nil {
		h.log.Error("Failed to find auction", "auction_id", auctionID, "error", err)
		return c.JSON(http.StatusNotFound, map[string]string{"error": "auction not found"})
	}
	if auction.Status != domain.AuctionOpen { // closed auctions have nothing left to watch
		return c.JSON(http.StatusConflict, map[string]string{"error": "auction is closed"})
	}

	userID := c.QueryParam("user_id")
	if userID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_id required"})
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return nil
	}

	viewer := ws.NewConnection(conn, userID, auctionID, h.log)
	if err := h.connManager.RegisterConnection(userID, auctionID, viewer); err != nil {
		h.log.Error("Failed to register connection", "error", err)
		conn.Close()
		return nil
	}

	go h.readLoop(conn, userID, auctionID)
	return nil
}

// readLoop drains client frames (pings, close) until the connection drops.
func (h *WebSocketHandler) readLoop(conn *websocket.Conn, userID, auctionID string) {
	defer func() {
		h.connManager.UnregisterConnection(userID, auctionID)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
