package progress

import (
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/logger"
)

const (
	// CloseMessageCode is sent to clients when the broadcaster shuts down.
	CloseMessageCode = websocket.CloseNormalClosure
	sendBuffer       = 32
	writeTimeout     = 10 * time.Second
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Broadcaster serves a websocket endpoint streaming progress events to
// every connected client. New clients first receive the latest event.
type Broadcaster struct {
	upgrader websocket.Upgrader
	logger   logger.Logger

	mu      sync.Mutex
	clients map[*client]bool
	last    []byte
	closed  bool
}

func NewBroadcaster(log logger.Logger) *Broadcaster {
	if log == nil {
		log = logger.Nop{}
	}
	return &Broadcaster{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:  log,
		clients: make(map[*client]bool),
	}
}

// ServeHTTP upgrades the request and blocks until the client goes away.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("failed to upgrade progress client", "error", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	if !b.register(c) {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(CloseMessageCode, ""))
		conn.Close()
		return
	}
	go c.writeLoop()

	// Clients only listen; reading detects disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	b.unregister(c)
}

func (b *Broadcaster) register(c *client) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	if b.last != nil {
		c.send <- b.last
	}
	b.clients[c] = true
	b.logger.Debug("progress client connected", "remote", c.conn.RemoteAddr().String())
	return true
}

func (b *Broadcaster) unregister(c *client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.clients[c] {
		delete(b.clients, c)
		close(c.send)
	}
}

func (c *client) writeLoop() {
	defer c.conn.Close()
	for message := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(CloseMessageCode, ""))
}

// Publish sends e to every client. A client whose buffer is full misses
// the event.
func (b *Broadcaster) Publish(e Event) {
	message, err := json.Marshal(e)
	if err != nil {
		b.logger.Error("failed to encode progress event", "error", err)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = message
	for c := range b.clients {
		select {
		case c.send <- message:
		default:
			b.logger.Debug("dropping progress event for slow client")
		}
	}
}

// Func returns a Func publishing through b.
func (b *Broadcaster) Func() Func {
	return func(step, total int, description string, percentage int, detail string) {
		b.Publish(Event{Step: step, Total: total, Description: description, Percentage: percentage, Detail: detail})
	}
}

// Clients returns the number of connected clients.
func (b *Broadcaster) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Close disconnects every client and refuses new ones.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for c := range b.clients {
		delete(b.clients, c)
		close(c.send)
	}
}
