package websocket

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
	writeTimeout   = 10 * time.Second
)

// Sync messages are addressed to a single connection. "hello" opens every
// session and "resync" follows once the connection has missed a broadcast;
// either way the client should reload whatever it shows.
const (
	syncEntity   = "sync"
	actionHello  = "hello"
	actionResync = "resync"
)

// Client is one connection, subscribed to the changes of one family.
type Client struct {
	hub      *Hub
	conn     *ws.Conn
	familyID int64
	memberID int64
	send     chan []byte

	// missed is set by the hub when a broadcast could not be queued.
	missed atomic.Bool
}

func NewClient(hub *Hub, conn *ws.Conn, familyID, memberID int64) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		familyID: familyID,
		memberID: memberID,
		send:     make(chan []byte, sendBufferSize),
	}
}

// Run registers the client and pumps messages until the connection closes.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		defer cancel()
		c.writePump(ctx)
	}()
	c.readPump(ctx)
}

// readPump only watches for the peer going away. Clients never write.
func (c *Client) readPump(ctx context.Context) {
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			c.hub.logger.Debug("client disconnected", "family_id", c.familyID, "member_id", c.memberID, "status", ws.CloseStatus(err))
			return
		}
	}
}

func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	if err := c.write(ctx, c.syncMessage(actionHello)); err != nil {
		return
	}

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.write(ctx, msg); err != nil {
				return
			}
			if c.missed.CompareAndSwap(true, false) {
				if err := c.write(ctx, c.syncMessage(actionResync)); err != nil {
					return
				}
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) write(ctx context.Context, msg []byte) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(wctx, ws.MessageText, msg)
}

func (c *Client) syncMessage(action string) []byte {
	data, _ := json.Marshal(NewMessage(c.familyID, syncEntity, action, c.memberID))
	return data
}
