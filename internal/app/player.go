// ABOUTME: Main player application orchestration
// ABOUTME: Wires the connection, playback engine, avatar, metrics and UI together
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/lanlan-project/voicestage/internal/avatar"
	"github.com/lanlan-project/voicestage/internal/client"
	"github.com/lanlan-project/voicestage/internal/config"
	"github.com/lanlan-project/voicestage/internal/discovery"
	"github.com/lanlan-project/voicestage/internal/metrics"
	"github.com/lanlan-project/voicestage/internal/player"
	"github.com/lanlan-project/voicestage/internal/ui"
	"github.com/lanlan-project/voicestage/pkg/audio/output"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

const statsInterval = 250 * time.Millisecond

// Options holds settings that do not live in the config file
type Options struct {
	UseTUI   bool
	ClientID string
}

// Player represents the main player application
type Player struct {
	config   *config.Config
	options  Options
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	avatar   *avatar.Model
	mixer    *output.Mixer
	engine   *player.Engine
	controls *ui.Controls

	// mixerOpen is set once the engine has opened the device
	mixerOpen atomic.Bool

	tuiMu   sync.Mutex
	tuiProg *tea.Program
}

// New creates a player from a validated configuration
func New(cfg *config.Config, opts Options) (*Player, error) {
	backend, err := output.NewBackend(cfg.Output.Backend)
	if err != nil {
		return nil, err
	}
	if opts.ClientID == "" {
		opts.ClientID = uuid.New().String()
	}

	registry := prometheus.NewRegistry()
	p := &Player{
		config:   cfg,
		options:  opts,
		registry: registry,
		metrics:  metrics.New(registry),
		avatar:   avatar.NewModel(cfg.LipSync.Parameters...),
		mixer:    output.NewMixer(backend, cfg.Mixer()),
		controls: ui.NewControls(),
	}

	p.engine = player.NewEngine(cfg.Engine(), p.openDevice, p.avatar, p.metrics)
	p.engine.OnStatus = func(message string) {
		p.send(ui.StatusMsg{Status: message})
	}
	p.engine.OnError = func(err error) {
		log.Debug("Playback error", "err", err)
	}
	p.avatar.SetStateHandler(func(s avatar.State) {
		p.send(ui.StatusMsg{Expression: s.Expression})
	})

	return p, nil
}

// Engine exposes the playback engine
func (p *Player) Engine() *player.Engine {
	return p.engine
}

// Avatar exposes the animated model
func (p *Player) Avatar() *avatar.Model {
	return p.avatar
}

// Controls exposes the key-press channels
func (p *Player) Controls() *ui.Controls {
	return p.controls
}

// openDevice is the engine's lazy device opener
func (p *Player) openDevice() (player.Device, error) {
	if err := p.mixer.Open(); err != nil {
		return nil, err
	}
	p.mixerOpen.Store(true)
	return p.mixer, nil
}

// Run plays until ctx ends or the user quits
func (p *Player) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	if p.options.UseTUI {
		prog := ui.Run(p.controls, p.config.Server.Name)
		p.tuiMu.Lock()
		p.tuiProg = prog
		p.tuiMu.Unlock()

		g.Go(func() error {
			defer cancel()
			if _, err := prog.Run(); err != nil {
				return fmt.Errorf("TUI failed: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			prog.Quit()
			return nil
		})
	}

	g.Go(func() error { return p.engine.Run(ctx) })
	g.Go(func() error { return p.handleControls(ctx, cancel) })
	g.Go(func() error { return p.publishStats(ctx) })

	if addr := p.config.Metrics.Addr; addr != "" {
		g.Go(func() error { return p.serveMetrics(ctx, addr) })
	}

	g.Go(func() error {
		defer cancel()
		return p.connect(ctx)
	})

	err := g.Wait()

	if p.mixerOpen.Load() {
		if cerr := p.mixer.Close(); cerr != nil {
			log.Warn("Failed to close audio output", "err", cerr)
		}
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// connect resolves the producer then keeps the connection alive,
// routing events to the engine until ctx ends
func (p *Player) connect(ctx context.Context) error {
	server, err := p.resolve(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	connected := true
	disconnected := false
	c := client.NewClient(client.Config{
		ServerAddr:        server.Addr(),
		Name:              p.config.Server.Name,
		ClientID:          p.options.ClientID,
		Path:              server.Path,
		ReconnectDelay:    p.config.Server.ReconnectDelay,
		MaxReconnectDelay: p.config.Server.MaxReconnectDelay,
	})
	c.OnConnected = func() {
		log.Info("Connected to producer", "addr", server.Addr(), "name", p.config.Server.Name)
		p.send(ui.StatusMsg{Connected: &connected, ServerName: server.Name, Character: p.config.Server.Name})
	}
	c.OnDisconnected = func(err error) {
		p.metrics.Reconnect()
		p.send(ui.StatusMsg{Connected: &disconnected, Status: "reconnecting"})
	}
	defer c.Close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.Run(ctx) })
	g.Go(func() error {
		for {
			select {
			case ev := <-c.Events:
				p.handleEvent(ev)
			case <-ctx.Done():
				return nil
			}
		}
	})
	return g.Wait()
}

// resolve returns the configured producer or discovers one over mDNS
func (p *Player) resolve(ctx context.Context) (*discovery.ServerInfo, error) {
	if addr := p.config.Server.Addr; addr != "" {
		host, portStr, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid server address %q: %w", addr, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid server port %q: %w", portStr, err)
		}
		return &discovery.ServerInfo{
			Name: p.config.Server.Name,
			Host: host,
			Port: port,
			Path: p.config.Server.Path,
		}, nil
	}

	p.send(ui.StatusMsg{Status: "discovering producer"})
	log.Info("Browsing for producer", "name", p.config.Server.Name, "timeout", p.config.Server.DiscoverTimeout)

	mgr := discovery.NewManager(discovery.Config{ServiceName: p.config.Server.Name})
	defer mgr.Stop()

	ctx, cancel := context.WithTimeout(ctx, p.config.Server.DiscoverTimeout)
	defer cancel()

	for {
		server, err := mgr.Discover(ctx)
		if err != nil {
			return nil, err
		}
		if server.Name != p.config.Server.Name {
			log.Debug("Skipping producer for another character", "name", server.Name)
			continue
		}
		log.Info("Discovered producer", "addr", server.Addr(), "path", server.Path)
		return server, nil
	}
}

// handleEvent routes one inbound event
func (p *Player) handleEvent(ev client.Event) {
	switch ev.Kind {
	case client.EventPCM:
		p.engine.SubmitPCM(ev.Payload, ev.Seq)

	case client.EventEncoded:
		if ev.IsNewMessage {
			p.engine.Interrupt(player.ReasonNewMessage)
		}
		p.engine.SubmitEncoded(ev.AudioData)

	case client.EventNewMessage:
		p.engine.Interrupt(player.ReasonNewMessage)

	case client.EventText:
		if ev.IsNewMessage {
			p.engine.Interrupt(player.ReasonNewMessage)
		}
		p.send(ui.StatusMsg{NewMessage: ev.IsNewMessage, Transcript: ev.Text})

	case client.EventUserActivity:
		log.Info("User activity reported by producer, interrupting")
		p.engine.Interrupt(player.ReasonUserActivity)

	case client.EventStatus:
		p.send(ui.StatusMsg{Status: ev.Text})

	case client.EventExpression:
		p.avatar.SetExpression(ev.Text)

	default:
		log.Warn("Unhandled event", "kind", ev.Kind)
	}
}

// handleControls applies key presses from the UI
func (p *Player) handleControls(ctx context.Context, quit context.CancelFunc) error {
	for {
		select {
		case <-p.controls.BargeIn:
			log.Info("Barge-in requested")
			p.engine.Interrupt(player.ReasonUserActivity)
		case <-p.controls.Quit:
			quit()
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

// publishStats forwards engine snapshots to the UI
func (p *Player) publishStats(ctx context.Context) error {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.send(ui.StatsMsg(p.engine.Stats()))
		case <-ctx.Done():
			return nil
		}
	}
}

// serveMetrics exposes the Prometheus registry until ctx ends
func (p *Player) serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler(p.registry))
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Metrics listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// send delivers a message to the TUI when one is running
func (p *Player) send(msg tea.Msg) {
	p.tuiMu.Lock()
	prog := p.tuiProg
	p.tuiMu.Unlock()
	if prog != nil {
		prog.Send(msg)
	}
}
