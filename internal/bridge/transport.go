package bridge

import (
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"sync"

	"icc.tech/pktbridge/internal/core"
)

// maxUnixPath is the longest unix socket path accepted, matching the
// kernel's sun_path limit minus the trailing NUL.
const maxUnixPath = 107

// Endpoint is a parsed capture destination.
type Endpoint struct {
	// Network is "udp" or "unixgram".
	Network string
	// Address is host:port or a filesystem path.
	Address string
}

// String returns the administrative spelling of the endpoint.
func (e Endpoint) String() string { return e.Address }

// ParseEndpoint interprets spec as either a filesystem path (leading
// slash, unix datagram socket) or an ip:port pair (UDP). The host must
// be a literal IP address and the port in 1-65535.
func ParseEndpoint(spec string) (Endpoint, error) {
	if spec == "" {
		return Endpoint{}, fmt.Errorf("%w: empty spec", core.ErrBadEndpoint)
	}
	if strings.HasPrefix(spec, "/") {
		if len(spec) > maxUnixPath {
			return Endpoint{}, fmt.Errorf("%w: %d bytes (max %d)",
				core.ErrPathTooLong, len(spec), maxUnixPath)
		}
		return Endpoint{Network: "unixgram", Address: spec}, nil
	}

	host, portStr, err := net.SplitHostPort(spec)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %q", core.ErrBadEndpoint, spec)
	}
	if _, err := netip.ParseAddr(host); err != nil {
		return Endpoint{}, fmt.Errorf("%w: bad host %q", core.ErrBadEndpoint, host)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: bad port %q", core.ErrBadEndpoint, portStr)
	}
	if port < 1 || port > 65535 {
		return Endpoint{}, fmt.Errorf("%w: %d", core.ErrPortRange, port)
	}
	return Endpoint{Network: "udp", Address: spec}, nil
}

// Transport owns the outbound datagram socket. A send error marks the
// transport disconnected and closes the socket; there is no internal
// retry — reconnection happens only through an explicit Configure.
type Transport struct {
	mu        sync.Mutex
	conn      net.Conn
	endpoint  Endpoint
	connected bool
}

// NewTransport returns an unconnected transport.
func NewTransport() *Transport { return &Transport{} }

// Configure parses spec, opens a datagram socket to it and replaces any
// prior socket. On parse failure nothing is mutated; on dial failure
// the prior socket is already closed and the transport stays
// disconnected.
func (t *Transport) Configure(spec string) error {
	ep, err := ParseEndpoint(spec)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.closeLocked()
	conn, err := net.Dial(ep.Network, ep.Address)
	if err != nil {
		return fmt.Errorf("%w: dial %s %s: %v", core.ErrSocket, ep.Network, ep.Address, err)
	}
	t.conn = conn
	t.endpoint = ep
	t.connected = true
	slog.Info("bridge transport configured", "network", ep.Network, "endpoint", ep.Address)
	return nil
}

// Send writes one datagram to the peer, best effort. On failure the
// socket is closed and the transport marked disconnected; the caller
// drops the batch and counts it as lost.
func (t *Transport) Send(datagram []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected || t.conn == nil {
		return fmt.Errorf("pktbridge: transport not connected")
	}
	if _, err := t.conn.Write(datagram); err != nil {
		slog.Warn("bridge send failed, marking disconnected",
			"endpoint", t.endpoint.Address, "error", err)
		t.closeLocked()
		return fmt.Errorf("pktbridge: send to %s: %w", t.endpoint.Address, err)
	}
	return nil
}

// Connected reports whether a configured socket is open.
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// Endpoint returns the most recently configured endpoint; the zero
// Endpoint before the first Configure.
func (t *Transport) Endpoint() Endpoint {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.endpoint
}

// Teardown closes the socket if open. Idempotent.
func (t *Transport) Teardown() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeLocked()
}

func (t *Transport) closeLocked() {
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
	t.connected = false
}
