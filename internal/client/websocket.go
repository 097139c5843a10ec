// ABOUTME: WebSocket client for the voice channel
// ABOUTME: Handles connection, reconnect backoff, sequencing and event routing
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/lanlan-project/voicestage/internal/protocol"
)

// ClientIDHeader carries the client id on the upgrade request
const ClientIDHeader = "X-Client-Id"

// ErrClosed is returned once Close has been called
var ErrClosed = errors.New("client closed")

// Config holds client configuration
type Config struct {
	ServerAddr string
	Name       string
	ClientID   string
	// Path prefix, the character name is appended
	Path             string
	HandshakeTimeout time.Duration
	// ReconnectDelay is the first retry delay, doubled up to MaxReconnectDelay
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	EventBuffer       int
}

// EventKind identifies an inbound event
type EventKind int

const (
	EventPCM EventKind = iota
	EventEncoded
	EventText
	EventUserActivity
	EventStatus
	EventExpression
	// EventNewMessage marks the start of a reply without carrying audio
	EventNewMessage
)

func (k EventKind) String() string {
	switch k {
	case EventPCM:
		return "pcm"
	case EventEncoded:
		return "encoded"
	case EventText:
		return "text"
	case EventUserActivity:
		return "user-activity"
	case EventStatus:
		return "status"
	case EventExpression:
		return "expression"
	case EventNewMessage:
		return "new-message"
	default:
		return "unknown"
	}
}

// Event is one inbound frame in arrival order. Binary and text frames
// share a channel so an isNewMessage marker is never overtaken by audio.
type Event struct {
	Kind         EventKind
	Payload      []byte // EventPCM
	Seq          uint64 // EventPCM
	AudioData    string // EventEncoded
	Text         string // EventText, EventStatus, EventExpression
	IsNewMessage bool
}

// Client represents a WebSocket client
type Client struct {
	config Config
	conn   *websocket.Conn
	mu     sync.RWMutex

	Events chan Event

	// seq numbers binary frames for the client's whole lifetime so a
	// reconnect mid-utterance never reuses a lower number
	seq atomic.Uint64

	connected    bool
	disconnected chan struct{}
	ctx          context.Context
	cancel       context.CancelFunc

	OnConnected    func()
	OnDisconnected func(err error)
}

// NewClient creates a new WebSocket client
func NewClient(config Config) *Client {
	if config.Path == "" {
		config.Path = "/ws"
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = 5 * time.Second
	}
	if config.ReconnectDelay <= 0 {
		config.ReconnectDelay = 3 * time.Second
	}
	if config.MaxReconnectDelay < config.ReconnectDelay {
		config.MaxReconnectDelay = 30 * time.Second
		if config.MaxReconnectDelay < config.ReconnectDelay {
			config.MaxReconnectDelay = config.ReconnectDelay
		}
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = 256
	}

	ctx, cancel := context.WithCancel(context.Background())
	closed := make(chan struct{})
	close(closed)

	return &Client{
		config:       config,
		Events:       make(chan Event, config.EventBuffer),
		disconnected: closed,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// URL returns the endpoint for the configured character
func (c *Client) URL() string {
	u := url.URL{
		Scheme: "ws",
		Host:   c.config.ServerAddr,
		Path:   c.config.Path + "/" + c.config.Name,
	}
	return u.String()
}

// Connect dials the server and starts the reader
func (c *Client) Connect(ctx context.Context) error {
	if c.ctx.Err() != nil {
		return ErrClosed
	}

	target := c.URL()
	log.Infof("Connecting to %s", target)

	dialer := websocket.Dialer{HandshakeTimeout: c.config.HandshakeTimeout}
	header := http.Header{}
	if c.config.ClientID != "" {
		header.Set(ClientIDHeader, c.config.ClientID)
	}

	conn, _, err := dialer.DialContext(ctx, target, header)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.disconnected = done
	c.mu.Unlock()

	if c.OnConnected != nil {
		c.OnConnected()
	}

	go c.readMessages(conn, done)
	return nil
}

// Disconnected is closed when the current connection's reader exits
func (c *Client) Disconnected() <-chan struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.disconnected
}

// Run keeps the client connected until ctx ends or Close is called,
// backing off exponentially between failed attempts.
func (c *Client) Run(ctx context.Context) error {
	delay := c.config.ReconnectDelay
	for {
		if err := c.Connect(ctx); err != nil {
			if errors.Is(err, ErrClosed) {
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			log.Warnf("Connection failed, retrying in %v: %v", delay, err)
		} else {
			delay = c.config.ReconnectDelay
			select {
			case <-c.Disconnected():
				log.Warnf("Connection lost, reconnecting in %v", delay)
			case <-ctx.Done():
				c.Close()
				return nil
			case <-c.ctx.Done():
				return nil
			}
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			c.Close()
			return nil
		case <-c.ctx.Done():
			return nil
		}

		delay *= 2
		if delay > c.config.MaxReconnectDelay {
			delay = c.config.MaxReconnectDelay
		}
	}
}

// readMessages reads and routes incoming frames for one connection
func (c *Client) readMessages(conn *websocket.Conn, done chan struct{}) {
	var readErr error
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.connected = false
		}
		c.mu.Unlock()
		conn.Close()
		close(done)
		if c.OnDisconnected != nil && c.ctx.Err() == nil {
			c.OnDisconnected(readErr)
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				log.Warnf("Read error: %v", err)
				readErr = err
			}
			return
		}

		var ok bool
		switch messageType {
		case websocket.BinaryMessage:
			ok = c.handleBinaryMessage(data)
		case websocket.TextMessage:
			ok = c.handleJSONMessage(data)
		default:
			ok = true
		}
		if !ok {
			return
		}
	}
}

// handleBinaryMessage stamps a PCM frame with the next sequence number
func (c *Client) handleBinaryMessage(data []byte) bool {
	seq := c.seq.Add(1) - 1
	log.Debugf("WebSocket: binary chunk seq=%d size=%d", seq, len(data))
	return c.emit(Event{Kind: EventPCM, Payload: data, Seq: seq})
}

// handleJSONMessage routes text frames
func (c *Client) handleJSONMessage(data []byte) bool {
	msg, err := protocol.Parse(data)
	if err != nil {
		log.Warnf("Ignoring message: %v", err)
		return true
	}

	switch msg.Type {
	case protocol.TypeCozyAudio:
		if msg.HasAudio() {
			return c.emit(Event{Kind: EventEncoded, AudioData: msg.AudioData, IsNewMessage: msg.IsNewMessage})
		}
		if msg.IsNewMessage {
			return c.emit(Event{Kind: EventNewMessage})
		}
		log.Debugf("Ignoring cozy_audio frame with format %q", msg.Format)
		return true
	case protocol.TypeGeminiResponse:
		return c.emit(Event{Kind: EventText, Text: msg.Text, IsNewMessage: msg.IsNewMessage})
	case protocol.TypeUserActivity:
		return c.emit(Event{Kind: EventUserActivity})
	case protocol.TypeStatus:
		return c.emit(Event{Kind: EventStatus, Text: msg.Message})
	case protocol.TypeExpression:
		return c.emit(Event{Kind: EventExpression, Text: msg.Message})
	}
	return true
}

func (c *Client) emit(ev Event) bool {
	select {
	case c.Events <- ev:
		return true
	case <-c.ctx.Done():
		return false
	}
}

// Close closes the connection and stops any reconnect loop
func (c *Client) Close() {
	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.conn.Close()
		log.Infof("Connection closed")
	}
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
