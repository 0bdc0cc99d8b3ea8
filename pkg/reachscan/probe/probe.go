// Package probe provides TCP connect reachability probes and the per-host
// port walk built on top of them.
//
// A probe is a single timed TCP connect. It never returns an error: refusals,
// timeouts, resets and unreachable networks all collapse to false.
package probe

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"
)

// DefaultTimeout is used when no timeout is specified.
const DefaultTimeout = 500 * time.Millisecond

// DebugLogger is a callback for debug logging.
// Set this to receive debug messages from probe operations.
var DebugLogger func(format string, args ...interface{})

func debugLog(format string, args ...interface{}) {
	if DebugLogger != nil {
		DebugLogger(format, args...)
	}
}

// Prober checks whether a TCP port on an address accepts connections.
// Implementations must be safe for concurrent use.
type Prober interface {
	Probe(ctx context.Context, addr netip.Addr, port uint16) bool
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, addr netip.Addr, port uint16) bool

// Probe calls f(ctx, addr, port).
func (f ProberFunc) Probe(ctx context.Context, addr netip.Addr, port uint16) bool {
	return f(ctx, addr, port)
}

// TCPProber probes with a full TCP connect.
type TCPProber struct {
	// Timeout per connect attempt.
	Timeout time.Duration

	// dial defaults to net.Dialer.DialContext with Timeout applied.
	dial func(ctx context.Context, network, address string) (net.Conn, error)
}

// NewTCPProber creates a TCP prober. A non-positive timeout selects DefaultTimeout.
func NewTCPProber(timeout time.Duration) *TCPProber {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &TCPProber{Timeout: timeout}
}

// Probe dials addr:port once and closes the connection immediately on success.
func (p *TCPProber) Probe(ctx context.Context, addr netip.Addr, port uint16) bool {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	target := netip.AddrPortFrom(addr, port).String()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dial := p.dial
	if dial == nil {
		dial = (&net.Dialer{Timeout: timeout}).DialContext
	}
	conn, err := dial(ctx, "tcp4", target)
	if err != nil {
		debugLog("%s: %v", target, err)
		return false
	}
	_ = conn.Close()
	debugLog("%s: open", target)
	return true
}

// Record is a reachable address together with the first port that answered.
type Record struct {
	Addr netip.Addr
	Port uint16
}

// Tag encodes the answering port, e.g. "port_443_open".
func (r Record) Tag() string {
	return fmt.Sprintf("port_%d_open", r.Port)
}

func (r Record) String() string {
	return r.Addr.String() + " " + r.Tag()
}

// ScanHost probes ports sequentially in the given order and returns the first
// port that answers. Remaining ports are not probed once one succeeds. The
// worst case for an unreachable host is len(ports) timeouts. Once ctx is done
// no further ports are tried and the host counts as unreachable.
func ScanHost(ctx context.Context, p Prober, addr netip.Addr, ports []uint16) (Record, bool) {
	for _, port := range ports {
		if ctx.Err() != nil {
			return Record{}, false
		}
		if p.Probe(ctx, addr, port) {
			return Record{Addr: addr, Port: port}, true
		}
	}
	return Record{}, false
}
