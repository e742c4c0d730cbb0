package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBufferSize = 64
)

// Subscriptions tracks which runs a client is subscribed to.
type Subscriptions struct {
	runs map[string]bool
	mu   sync.RWMutex
}

// NewSubscriptions creates an empty Subscriptions set.
func NewSubscriptions() *Subscriptions {
	return &Subscriptions{runs: make(map[string]bool)}
}

// Client represents a WebSocket client connection subscribed to run trace events.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan *WSEvent

	id     string
	userID string
	subs   *Subscriptions
}

// NewClient creates a new Client instance.
func NewClient(id, userID string, hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan *WSEvent, sendBufferSize),
		id:     id,
		userID: userID,
		subs:   NewSubscriptions(),
	}
}

// readPump pumps commands from the WebSocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn().Str("client_id", c.id).Err(err).Msg("websocket unexpected close")
			}
			break
		}

		var cmd WSCommand
		if err := json.Unmarshal(message, &cmd); err != nil {
			c.sendResponse(NewErrorResponse("error", "invalid command format"))
			continue
		}
		c.handleCommand(&cmd)
	}
}

// writePump pumps trace events from the hub to the WebSocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.writeJSON(event); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleCommand(cmd *WSCommand) {
	switch cmd.Action {
	case CmdSubscribe:
		c.handleSubscribe(cmd)
	case CmdUnsubscribe:
		c.handleUnsubscribe(cmd)
	default:
		c.sendResponse(NewErrorResponse("error", "unknown command: "+cmd.Action))
	}
}

func (c *Client) handleSubscribe(cmd *WSCommand) {
	if cmd.RunID == "" {
		c.sendResponse(NewErrorResponse(CmdSubscribe, "run_id required"))
		return
	}
	c.hub.Subscribe(c, cmd.RunID)
	c.sendResponse(NewSuccessResponse(CmdSubscribe, "subscribed to run: "+cmd.RunID))
}

func (c *Client) handleUnsubscribe(cmd *WSCommand) {
	if cmd.RunID == "" {
		c.sendResponse(NewErrorResponse(CmdUnsubscribe, "run_id required"))
		return
	}
	c.hub.Unsubscribe(c, cmd.RunID)
	c.sendResponse(NewSuccessResponse(CmdUnsubscribe, "unsubscribed from run: "+cmd.RunID))
}

func (c *Client) sendResponse(resp *WSResponse) {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.writeJSON(resp)
}

func (c *Client) writeJSON(v interface{}) error {
	return c.conn.WriteJSON(v)
}
