package signal

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/videflow/videflow/internal/domain"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound message size. Enough for WebRTC SDP blobs.
	maxMessageSize = 64 * 1024
)

// Client wraps one websocket connection. The read pump feeds the hub loop;
// the write pump is the single writer of the socket, draining the buffered
// send channel so the loop never waits on a slow transport.
type Client struct {
	id       string
	identity domain.Identity
	hub      *Hub
	conn     *websocket.Conn
	send     chan domain.Event
	log      *slog.Logger
}

func NewClient(hub *Hub, conn *websocket.Conn, identity domain.Identity, sendBuffer int, log *slog.Logger) *Client {
	if sendBuffer <= 0 {
		sendBuffer = 32
	}
	return &Client{
		id:       uuid.New().String(),
		identity: identity,
		hub:      hub,
		conn:     conn,
		send:     make(chan domain.Event, sendBuffer),
		log:      log,
	}
}

func (c *Client) ID() string { return c.id }

func (c *Client) Identity() domain.Identity { return c.identity }

// Enqueue hands an event to the write pump without blocking. Fire-and-forget:
// a full buffer drops the event.
func (c *Client) Enqueue(ev domain.Event) bool {
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

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
		var ev domain.Event
		if err := c.conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Debug("websocket read failed", slog.String("conn_id", c.id), slog.String("error", err.Error()))
			}
			return
		}
		c.hub.events <- inbound{connID: c.id, event: ev}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
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
