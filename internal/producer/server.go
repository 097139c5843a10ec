// ABOUTME: Demo producer server for the voice channel
// ABOUTME: Serves /ws/{name}, streams utterances to each connection and advertises over mDNS
package producer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lanlan-project/voicestage/internal/client"
	"github.com/lanlan-project/voicestage/internal/discovery"
)

var errConnClosed = errors.New("connection closed")

// Config holds server configuration
type Config struct {
	Addr       string
	Name       string
	Path       string
	EnableMDNS bool
	UseTUI     bool
	Stream     StreamConfig
}

// Server represents the demo producer
type Server struct {
	config   Config
	serverID string
	source   Source
	stats    *StreamStats

	upgrader websocket.Upgrader

	// HTTP server
	httpServer *http.Server
	mux        *http.ServeMux

	// Client management
	clients   map[string]*Client
	clientsMu sync.RWMutex

	mdnsManager *discovery.Manager
	tui         *ServerTUI

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Client represents a connected player
type Client struct {
	ID          string
	Conn        *websocket.Conn
	ConnectedAt time.Time

	sendChan chan Frame
	done     chan struct{}
}

// New creates a new server instance
func New(config Config, source Source) (*Server, error) {
	if config.Name == "" {
		return nil, fmt.Errorf("character name must not be empty")
	}
	if config.Path == "" {
		config.Path = "/ws"
	}
	if err := config.Stream.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		source:   source,
		stats:    &StreamStats{},
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			// Local network demo; browsers and native players are both accepted
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:  make(map[string]*Client),
		stopChan: make(chan struct{}),
	}
	s.mux.HandleFunc("GET "+config.Path+"/{name}", s.handleWebSocket)
	return s, nil
}

// Handler exposes the HTTP routes
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Stats returns the shared stream counters
func (s *Server) Stats() *StreamStats {
	return s.stats
}

// Start serves until Stop, the TUI quits, or the listener fails
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port

	if s.config.UseTUI {
		s.tui = NewServerTUI()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.tui.Start(s.config.Name, port, s.source.Title()); err != nil {
				log.Errorf("TUI error: %v", err)
			}
		}()
	}

	log.Infof("Producer starting: %s (ID: %s, mode: %s)", s.config.Name, s.serverID, s.config.Stream.Mode)

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        port,
			Path:        s.config.Path,
		})
		if err := s.mdnsManager.Advertise(); err != nil {
			log.Warnf("Failed to start mDNS advertisement: %v", err)
		}
	}

	s.httpServer = &http.Server{Handler: s.mux}

	errChan := make(chan error, 1)
	go func() {
		log.Infof("WebSocket server listening on %s", listener.Addr())
		if err := s.httpServer.Serve(listener); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	var tuiQuit <-chan struct{}
	if s.tui != nil {
		tuiQuit = s.tui.QuitChan()
	}

	refreshDone := make(chan struct{})
	if s.tui != nil {
		go s.refreshTUI(refreshDone)
	}

	var serverErr error
	select {
	case <-s.stopChan:
		log.Infof("Server shutting down...")
	case <-tuiQuit:
		log.Infof("TUI quit requested, shutting down...")
	case serverErr = <-errChan:
		log.Errorf("HTTP server error: %v", serverErr)
	}

	close(refreshDone)
	if s.tui != nil {
		s.tui.Stop()
	}
	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Warnf("HTTP server shutdown error: %v", err)
	}

	// Hijacked websocket connections are not closed by Shutdown
	s.closeClients()
	s.wg.Wait()
	log.Infof("Server stopped cleanly")

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// Stop stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// handleWebSocket upgrades /ws/{name} for the configured character only
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if name := r.PathValue("name"); name != s.config.Name {
		http.Error(w, fmt.Sprintf("unknown character %q", name), http.StatusNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("WebSocket upgrade error: %v", err)
		return
	}

	id := r.Header.Get(client.ClientIDHeader)
	if id == "" {
		id = uuid.New().String()
	}
	log.Infof("New connection from %s (client %s)", r.RemoteAddr, id)

	s.handleConnection(&Client{
		ID:          id,
		Conn:        conn,
		ConnectedAt: time.Now(),
		sendChan:    make(chan Frame, 64),
		done:        make(chan struct{}),
	})
}

// handleConnection streams to one player until it goes away
func (s *Server) handleConnection(c *Client) {
	defer c.Conn.Close()

	s.clientsMu.Lock()
	if old, ok := s.clients[c.ID]; ok {
		// A reconnecting player replaces its stale connection
		old.Conn.Close()
	}
	s.clients[c.ID] = c
	s.clientsMu.Unlock()
	s.updateTUI()

	ctx, cancel := context.WithCancel(context.Background())

	defer func() {
		cancel()
		close(c.done)
		s.clientsMu.Lock()
		if s.clients[c.ID] == c {
			delete(s.clients, c.ID)
		}
		s.clientsMu.Unlock()
		log.Infof("Client disconnected: %s", c.ID)
		s.updateTUI()
	}()

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.clientWriter(c)
	}()
	go func() {
		defer s.wg.Done()
		streamer := NewStreamer(s.config.Stream, s.source, s.stats)
		send := func(f Frame) error { return s.enqueue(ctx, c, f) }
		if err := streamer.Run(ctx, send); err != nil && !errors.Is(err, errConnClosed) {
			log.Warnf("Streaming to %s stopped: %v", c.ID, err)
		}
		s.updateTUI()
	}()

	// Player frames are not acted on; reading detects disconnects
	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warnf("WebSocket error: %v", err)
			}
			return
		}
		log.Debugf("Ignoring player frame from %s: %s", c.ID, data)
	}
}

// enqueue hands a frame to the writer, blocking until it is accepted
func (s *Server) enqueue(ctx context.Context, c *Client, f Frame) error {
	select {
	case c.sendChan <- f:
		return nil
	case <-c.done:
		return errConnClosed
	case <-ctx.Done():
		return errConnClosed
	}
}

// clientWriter sends frames to the client
func (s *Server) clientWriter(c *Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	const writeDeadline = 10 * time.Second

	for {
		select {
		case f := <-c.sendChan:
			c.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if f.Binary != nil {
				if err := c.Conn.WriteMessage(websocket.BinaryMessage, f.Binary); err != nil {
					log.Warnf("Error writing binary message: %v", err)
					return
				}
				continue
			}

			data, err := json.Marshal(f.Message)
			if err != nil {
				log.Errorf("Error marshaling message: %v", err)
				continue
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warnf("Error writing text message: %v", err)
				return
			}

		case <-ticker.C:
			if err := c.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeDeadline)); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}

func (s *Server) closeClients() {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for _, c := range s.clients {
		c.Conn.Close()
	}
}

// refreshTUI keeps the counters on screen current
func (s *Server) refreshTUI(done <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.updateTUI()
		case <-done:
			return
		}
	}
}

// updateTUI sends current server state to TUI
func (s *Server) updateTUI() {
	if s.tui == nil {
		return
	}

	s.clientsMu.RLock()
	clients := make([]ClientInfo, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, ClientInfo{
			ID:    c.ID,
			Since: c.ConnectedAt,
		})
	}
	s.clientsMu.RUnlock()

	s.tui.Update(ServerStatus{
		Clients:    clients,
		Utterances: s.stats.Utterances.Load(),
		Chunks:     s.stats.Chunks.Load(),
		BargeIns:   s.stats.BargeIns.Load(),
		Mode:       s.config.Stream.Mode,
	})
}
