// Package websocket disseminates depth snapshots and trade reports to
// subscribed clients over framed text messages.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/luxfi/log"

	"github.com/marketwire/lob/pkg/lob"
)

const (
	subscribePrefix   = "subscribe:"
	unsubscribePrefix = "unsubscribe:"
)

// Config holds dissemination server tuning.
type Config struct {
	ReadBufferSize  int
	WriteBufferSize int
	MaxMessageSize  int64
	WriteTimeout    time.Duration
	PongTimeout     time.Duration
	PingPeriod      time.Duration

	// SnapshotRefresh re-emits snapshots for every subscribed symbol on
	// this interval. Zero disables periodic refresh.
	SnapshotRefresh time.Duration

	// BroadcastWorkers bounds fan-out parallelism. Batches for one symbol
	// always land on the same worker, so per-symbol ordering holds.
	BroadcastWorkers int
}

// DefaultConfig returns the default dissemination configuration.
func DefaultConfig() Config {
	return Config{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		MaxMessageSize:   4096,
		WriteTimeout:     10 * time.Second,
		PongTimeout:      60 * time.Second,
		PingPeriod:       54 * time.Second, // must be less than PongTimeout
		BroadcastWorkers: 1,
	}
}

// Server fans trade reports and snapshots out to connected clients. One hub
// goroutine owns the client set; each client serializes its own socket I/O
// on its readPump/writePump pair.
type Server struct {
	registry *lob.Registry
	logger   log.Logger
	cfg      Config
	upgrader websocket.Upgrader

	clients   map[*Client]bool
	clientsMu sync.RWMutex

	register   chan *Client
	unregister chan *Client
	workers    []chan tradeBatch

	subscriptions map[string]map[*Client]bool // symbol -> clients
	subMu         sync.RWMutex

	messagesOut uint64
	clientCount int32

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type tradeBatch struct {
	symbol string
	frame  []byte
}

// Client is one connected dissemination session.
type Client struct {
	id     string
	conn   *websocket.Conn
	server *Server
	send   chan []byte
	subs   map[string]bool

	// mu guards subs and the closed flag; closed makes enqueue a no-op
	// once the hub has shut the send channel.
	mu     sync.RWMutex
	closed bool
}

// NewServer creates a dissemination server over the given registry.
func NewServer(registry *lob.Registry, logger log.Logger, cfg Config) *Server {
	if cfg.BroadcastWorkers < 1 {
		cfg.BroadcastWorkers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		registry: registry,
		logger:   logger,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients:       make(map[*Client]bool),
		register:      make(chan *Client, 64),
		unregister:    make(chan *Client, 64),
		workers:       make([]chan tradeBatch, cfg.BroadcastWorkers),
		subscriptions: make(map[string]map[*Client]bool),
		ctx:           ctx,
		cancel:        cancel,
	}
	for i := range s.workers {
		s.workers[i] = make(chan tradeBatch, 256)
	}
	return s
}

// Start launches the hub and broadcast workers.
func (s *Server) Start() {
	s.wg.Add(1)
	go s.runHub()

	for _, ch := range s.workers {
		s.wg.Add(1)
		go s.runWorker(ch)
	}
}

// Stop closes every session and waits for the hub to drain.
func (s *Server) Stop() {
	s.logger.Info("stopping dissemination server")
	s.cancel()
	s.wg.Wait()
}

// PublishTrades renders one trade frame and fans it out to every session
// subscribed to symbol. Call order per symbol is delivery order.
func (s *Server) PublishTrades(symbol string, trades []lob.Trade) {
	if len(trades) == 0 {
		return
	}
	batch := tradeBatch{symbol: symbol, frame: []byte(RenderTrades(trades))}

	h := fnv.New32a()
	h.Write([]byte(symbol))
	worker := s.workers[h.Sum32()%uint32(len(s.workers))]

	select {
	case worker <- batch:
	case <-s.ctx.Done():
	}
}

func (s *Server) runHub() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			s.clientsMu.Lock()
			for client := range s.clients {
				client.closeSend()
				delete(s.clients, client)
			}
			s.clientsMu.Unlock()
			return

		case client := <-s.register:
			s.clientsMu.Lock()
			s.clients[client] = true
			s.clientsMu.Unlock()
			atomic.AddInt32(&s.clientCount, 1)
			s.logger.Debug("session connected", "id", client.id, "total", atomic.LoadInt32(&s.clientCount))

		case client := <-s.unregister:
			s.clientsMu.Lock()
			_, live := s.clients[client]
			if live {
				delete(s.clients, client)
			}
			s.clientsMu.Unlock()
			if live {
				s.unsubscribeAll(client)
				client.closeSend()
				atomic.AddInt32(&s.clientCount, -1)
				s.logger.Debug("session closed", "id", client.id, "total", atomic.LoadInt32(&s.clientCount))
			}
		}
	}
}

func (s *Server) runWorker(batches <-chan tradeBatch) {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case batch := <-batches:
			s.subMu.RLock()
			subscribers := make([]*Client, 0, len(s.subscriptions[batch.symbol]))
			for client := range s.subscriptions[batch.symbol] {
				subscribers = append(subscribers, client)
			}
			s.subMu.RUnlock()

			for _, client := range subscribers {
				client.enqueue(batch.frame)
			}
		}
	}
}

// HandleWS upgrades an HTTP request into a dissemination session.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		id:     fmt.Sprintf("session-%d-%d", time.Now().Unix(), time.Now().Nanosecond()),
		conn:   conn,
		server: s,
		send:   make(chan []byte, 256),
		subs:   make(map[string]bool),
	}

	select {
	case s.register <- client:
	case <-s.ctx.Done():
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// HandleHealth reports hub liveness and counters as JSON.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":   "healthy",
		"clients":  atomic.LoadInt32(&s.clientCount),
		"messages": atomic.LoadUint64(&s.messagesOut),
	})
}

// Stats returns connected session and outbound frame counters.
func (s *Server) Stats() (clients int32, messagesOut uint64) {
	return atomic.LoadInt32(&s.clientCount), atomic.LoadUint64(&s.messagesOut)
}

func (s *Server) subscribe(symbol string, client *Client) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.subscriptions[symbol] == nil {
		s.subscriptions[symbol] = make(map[*Client]bool)
	}
	s.subscriptions[symbol][client] = true
}

func (s *Server) unsubscribe(symbol string, client *Client) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if clients, ok := s.subscriptions[symbol]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(s.subscriptions, symbol)
		}
	}
}

func (s *Server) unsubscribeAll(client *Client) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for symbol, clients := range s.subscriptions {
		delete(clients, client)
		if len(clients) == 0 {
			delete(s.subscriptions, symbol)
		}
	}
}

// snapshotFrame renders the current depth snapshot for symbol, clamped to
// the symbol's configured dissemination depth.
func (s *Server) snapshotFrame(symbol string) ([]byte, bool) {
	book, ok := s.registry.Book(symbol)
	if !ok {
		return nil, false
	}
	depth := s.registry.Depth(symbol)
	return []byte(RenderSnapshot(book.Depth(), depth)), true
}

// readPump consumes request frames until the transport closes. Requests are
// plain text: "subscribe:<symbol>", "unsubscribe:<symbol>"; anything else is
// silently ignored.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.server.unregister <- c:
		case <-c.server.ctx.Done():
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.server.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.server.cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.server.cfg.PongTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.server.logger.Error("session read failed", "id", c.id, "error", err)
			}
			return
		}
		c.handleRequest(string(message))
	}
}

func (c *Client) handleRequest(request string) {
	switch {
	case strings.HasPrefix(request, subscribePrefix):
		symbol := request[len(subscribePrefix):]
		frame, ok := c.server.snapshotFrame(symbol)
		if !ok {
			return // unknown symbol: no-op
		}
		c.mu.Lock()
		c.subs[symbol] = true
		c.mu.Unlock()
		c.server.subscribe(symbol, c)
		c.enqueue(frame)

	case strings.HasPrefix(request, unsubscribePrefix):
		symbol := request[len(unsubscribePrefix):]
		c.mu.Lock()
		delete(c.subs, symbol)
		c.mu.Unlock()
		c.server.unsubscribe(symbol, c)
	}
	// Anything else is ignored.
}

// enqueue hands a frame to the session's writer. A session that cannot keep
// up is disconnected rather than blocking the fan-out.
func (c *Client) enqueue(frame []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.send <- frame:
	default:
		c.server.logger.Warn("session send buffer full, dropping session", "id", c.id)
		select {
		case c.server.unregister <- c:
		default:
		}
	}
}

// closeSend shuts the send channel exactly once; in-flight enqueues hold
// the read lock, so the close cannot race a channel send.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// writePump owns all writes on the connection: queued frames, pings, and
// the optional periodic snapshot refresh.
func (c *Client) writePump() {
	pings := time.NewTicker(c.server.cfg.PingPeriod)
	defer func() {
		pings.Stop()
		c.conn.Close()
	}()

	var refresh <-chan time.Time
	if c.server.cfg.SnapshotRefresh > 0 {
		ticker := time.NewTicker(c.server.cfg.SnapshotRefresh)
		defer ticker.Stop()
		refresh = ticker.C
	}

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.server.cfg.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
			atomic.AddUint64(&c.server.messagesOut, 1)

			// Drain whatever else is queued.
			for i := len(c.send); i > 0; i-- {
				frame, ok := <-c.send
				if !ok {
					c.conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
					return
				}
				atomic.AddUint64(&c.server.messagesOut, 1)
			}

		case <-refresh:
			c.mu.RLock()
			symbols := make([]string, 0, len(c.subs))
			for symbol := range c.subs {
				symbols = append(symbols, symbol)
			}
			c.mu.RUnlock()

			for _, symbol := range symbols {
				frame, ok := c.server.snapshotFrame(symbol)
				if !ok {
					continue // symbol was removed
				}
				c.conn.SetWriteDeadline(time.Now().Add(c.server.cfg.WriteTimeout))
				if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
					return
				}
				atomic.AddUint64(&c.server.messagesOut, 1)
			}

		case <-pings.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.server.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
