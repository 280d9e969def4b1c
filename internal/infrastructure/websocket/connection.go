package websocket

import (
	"github.com/GlebTut/Auction-System-Project/pkg/logger"

	"github.com/gorilla/websocket"
)

// Connection wraps a single viewer's WebSocket connection.
type Connection struct {
	conn      *websocket.Conn
	userID    string
	auctionID string
	log       logger.Logger
}

func NewConnection(conn *websocket.Conn, userID, auctionID string, log logger.Logger) *Connection {
	return &Connection{
		conn:      conn,
		userID:    userID,
		auctionID: auctionID,
		log:       log,
	}
}

func (c *Connection) Send(message interface{}) error {
	return c.conn.WriteJSON(message)
}

func (c *Connection) Close() error {
	return c.conn.Close()
}

func (c *Connection) UserID() string {
	return c.userID
}

func (c *Connection) AuctionID() string {
	return c.auctionID
}
