// Package dashboard provides a real-time WebSocket surface over the
// sync core.
//
// The server broadcasts connectivity transitions, sync pass results,
// queue depth changes and precache progress to connected clients. It is
// the reactive read surface a UI subscribes to instead of polling
// status.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// MessageType defines the type of dashboard message
type MessageType string

const (
	// MessageTypeStatus carries the full connectivity/queue snapshot
	MessageTypeStatus MessageType = "status"

	// MessageTypeSyncResult carries the outcome of one reconciliation pass
	MessageTypeSyncResult MessageType = "sync_result"

	// MessageTypeQueueUpdate indicates the pending queue depth changed
	MessageTypeQueueUpdate MessageType = "queue_update"

	// MessageTypePrecache carries precache warm progress
	MessageTypePrecache MessageType = "precache"
)

// Message represents a dashboard broadcast message
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// StatusFunc supplies the current status snapshot for newly connected
// clients. The server marshals whatever it returns.
type StatusFunc func() any

// Server manages WebSocket connections and broadcasts dashboard messages
type Server struct {
	addr     string
	status   StatusFunc
	listener net.Listener
	server   *http.Server
	started  time.Time

	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	broadcast chan Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// Config holds server configuration
type Config struct {
	// Port to listen on (default: 8787). Port 0 picks a free port;
	// Addr reports the bound address.
	Port int

	// Status supplies the snapshot sent to each client on connect.
	// May be nil.
	Status StatusFunc

	// Logger for server activity (default: stderr logger)
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Port:   8787,
		Logger: log.Default(),
	}
}

// NewServer creates a new dashboard WebSocket server
func NewServer(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:      fmt.Sprintf(":%d", config.Port),
		status:    config.Status,
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Message, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    config.Logger,
	}
}

// Start begins the HTTP server and WebSocket handler
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.started = time.Now()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/", s.handleRoot)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Dashboard server listening on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("Server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.wg.Wait()
	s.logger.Println("Dashboard server stopped")
	return nil
}

// Broadcast queues a message for delivery to all connected clients. It
// never blocks the caller; when the channel is full the message is
// dropped (clients resync from the next status broadcast).
func (s *Server) Broadcast(msg Message) {
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
	default:
		s.logger.Println("Warning: broadcast channel full, dropping message")
	}
}

// broadcastLoop drains the queue and fans each message out.
func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.broadcast:
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now()
			}
			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Printf("Failed to marshal message: %v", err)
				continue
			}
			s.fanOut(data)
		}
	}
}

// fanOut writes one encoded frame to every client. The client set is
// snapshotted first so a slow write never holds the lock against new
// connections; a client that fails its write is dropped.
func (s *Server) fanOut(data []byte) {
	s.clientsMu.RLock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for conn := range s.clients {
		conns = append(conns, conn)
	}
	s.clientsMu.RUnlock()

	for _, conn := range conns {
		if err := s.writeFrame(conn, data); err != nil {
			s.removeClient(conn)
		}
	}
}

// writeFrame sends one text frame with a bounded write deadline.
func (s *Server) writeFrame(conn *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}

// handleWebSocket upgrades HTTP connections to WebSocket
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	clientCount := len(s.clients)
	s.clientsMu.Unlock()

	s.logger.Printf("Client connected (total: %d)", clientCount)

	// A new client gets the current snapshot immediately so it never
	// renders from nothing while waiting for the next transition.
	if s.status != nil {
		if data, err := json.Marshal(s.status()); err == nil {
			welcome, _ := json.Marshal(Message{
				Type:      MessageTypeStatus,
				Timestamp: time.Now(),
				Data:      data,
			})
			_ = s.writeFrame(conn, welcome)
		}
	}

	go s.readLoop(conn)
}

// readLoop keeps the WebSocket connection alive and handles client
// disconnects. Client messages are ignored; this is a one-way feed.
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)

	for {
		if _, _, err := conn.Read(s.ctx); err != nil {
			return
		}
	}
}

// removeClient drops a connection. Idempotent: the read loop and a
// failed broadcast write can both report the same client.
func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	_, known := s.clients[conn]
	delete(s.clients, conn)
	remaining := len(s.clients)
	s.clientsMu.Unlock()

	if !known {
		return
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
	s.logger.Printf("Client disconnected (total: %d)", remaining)
}

// handleHealth reports liveness: uptime and how many clients are on
// the feed.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": s.ClientCount(),
		"uptime":  time.Since(s.started).Round(time.Second).String(),
	})
}

// handleStatus returns the current snapshot over plain HTTP, for
// clients that just want one poll instead of a socket.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		http.Error(w, "status not available", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.status())
}

// handleRoot lists the endpoints for anyone poking at the port with a
// browser.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html><head><title>stride</title></head>
<body>
<h1>stride sync daemon</h1>
<ul>
  <li><code>ws://%[1]s/ws</code> — live status/sync/queue/precache feed</li>
  <li><a href="/status">/status</a> — one-shot status snapshot</li>
  <li><a href="/health">/health</a> — liveness</li>
</ul>
</body></html>
`, r.Host)
}

// Addr returns the server's listening address
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the current number of connected clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}
