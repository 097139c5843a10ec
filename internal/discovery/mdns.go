// ABOUTME: mDNS service discovery for voice channel producers
// ABOUTME: Handles both advertisement (producer side) and browsing (player side)
package discovery

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/mdns"
)

// ServiceType is the DNS-SD type producers advertise under
const ServiceType = "_voicestage._tcp"

// Config holds discovery configuration
type Config struct {
	ServiceName string
	Port        int
	// Path is published as a TXT record so players can build the URL
	Path string
	// QueryTimeout bounds each browse round
	QueryTimeout time.Duration
}

// Manager handles mDNS operations
type Manager struct {
	config  Config
	ctx     context.Context
	cancel  context.CancelFunc
	servers chan *ServerInfo
	browse  sync.Once
}

// ServerInfo describes a discovered producer
type ServerInfo struct {
	Name string
	Host string
	Port int
	Path string
}

// Addr returns host:port for dialing
func (s *ServerInfo) Addr() string {
	return net.JoinHostPort(s.Host, fmt.Sprintf("%d", s.Port))
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	if config.Path == "" {
		config.Path = "/ws"
	}
	if config.QueryTimeout <= 0 {
		config.QueryTimeout = 3 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
		servers: make(chan *ServerInfo, 10),
	}
}

// Advertise publishes this producer until Stop is called
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		[]string{"path=" + m.config.Path},
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	log.Infof("Advertising mDNS service: %s on port %d (type: %s)", m.config.ServiceName, m.config.Port, ServiceType)

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

// Browse searches for producers in the background. Repeat calls are no-ops.
func (m *Manager) Browse() {
	m.browse.Do(func() { go m.browseLoop() })
}

// browseLoop runs query rounds until Stop
func (m *Manager) browseLoop() {
	for m.ctx.Err() == nil {
		entries := make(chan *mdns.ServiceEntry, 10)
		forwarded := make(chan struct{})

		go func() {
			defer close(forwarded)
			for entry := range entries {
				server := serverFromEntry(entry)
				if server == nil {
					continue
				}

				log.Infof("Discovered producer: %s at %s", server.Name, server.Addr())

				select {
				case m.servers <- server:
				case <-m.ctx.Done():
				}
			}
		}()

		params := &mdns.QueryParam{
			Service: ServiceType,
			Domain:  "local",
			Timeout: m.config.QueryTimeout,
			Entries: entries,
		}

		if err := mdns.Query(params); err != nil {
			log.Warnf("mDNS query failed: %v", err)
		}
		close(entries)
		<-forwarded

		select {
		case <-m.ctx.Done():
		case <-time.After(time.Second):
		}
	}
}

// Servers returns the channel of discovered producers
func (m *Manager) Servers() <-chan *ServerInfo {
	return m.servers
}

// Discover browses until the first producer appears or ctx ends
func (m *Manager) Discover(ctx context.Context) (*ServerInfo, error) {
	m.Browse()
	select {
	case server := <-m.servers:
		return server, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("no producer found: %w", ctx.Err())
	}
}

// Stop stops the discovery manager
func (m *Manager) Stop() {
	m.cancel()
}

// serverFromEntry converts a query answer, preferring IPv4
func serverFromEntry(entry *mdns.ServiceEntry) *ServerInfo {
	var host string
	switch {
	case entry.AddrV4 != nil:
		host = entry.AddrV4.String()
	case entry.AddrV6 != nil:
		host = entry.AddrV6.String()
	default:
		return nil
	}

	server := &ServerInfo{
		Name: strings.TrimSuffix(entry.Name, "."+ServiceType+".local."),
		Host: host,
		Port: entry.Port,
		Path: "/ws",
	}
	for _, field := range entry.InfoFields {
		if path, ok := strings.CutPrefix(field, "path="); ok && path != "" {
			server.Path = path
		}
	}
	return server
}

// getLocalIPs returns local IP addresses
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
