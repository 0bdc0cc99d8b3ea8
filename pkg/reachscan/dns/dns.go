// Package dns provides reverse DNS (PTR) lookups for reachable addresses.
package dns

import (
	"context"
	"net"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
	mapsutil "github.com/projectdiscovery/utils/maps"
)

// DefaultTimeout is the default timeout for DNS lookups.
const DefaultTimeout = 2 * time.Second

// DefaultWorkers is the default number of concurrent workers.
const DefaultWorkers = 64

// DefaultServer is used when no resolver is configured and none can be read
// from the system configuration.
const DefaultServer = "1.1.1.1:53"

// DebugLogger is a callback for debug logging.
// Set this to receive debug messages from DNS operations.
var DebugLogger func(format string, args ...interface{})

func debugLog(format string, args ...interface{}) {
	if DebugLogger != nil {
		DebugLogger(format, args...)
	}
}

// Result contains the result of a reverse DNS lookup.
type Result struct {
	Addr     netip.Addr
	Hostname string   // Primary hostname (first result)
	All      []string // All returned hostnames
	Error    error
}

// Resolver performs PTR lookups against a single DNS server.
type Resolver struct {
	// Server is a host:port pair.
	Server  string
	Timeout time.Duration
	Workers int
}

// NewResolver creates a resolver with defaults. An empty server selects
// SystemServer.
func NewResolver(server string) *Resolver {
	if server == "" {
		server = SystemServer()
	}
	return &Resolver{
		Server:  normalizeServer(server),
		Timeout: DefaultTimeout,
		Workers: DefaultWorkers,
	}
}

// SystemServer returns the first nameserver from /etc/resolv.conf, or
// DefaultServer when it cannot be read.
func SystemServer() string {
	conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(conf.Servers) == 0 {
		return DefaultServer
	}
	return net.JoinHostPort(conf.Servers[0], conf.Port)
}

// normalizeServer appends the default DNS port when none is given.
func normalizeServer(server string) string {
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}
	return net.JoinHostPort(strings.Trim(server, "[]"), "53")
}

// LookupAddr performs a reverse DNS (PTR) lookup for the given address.
func (r *Resolver) LookupAddr(ctx context.Context, addr netip.Addr) (*Result, error) {
	res := &Result{Addr: addr}

	name, err := dns.ReverseAddr(addr.String())
	if err != nil {
		res.Error = errors.Wrapf(err, "reverse name for %s", addr)
		return res, res.Error
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	lookupCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msg := new(dns.Msg)
	msg.SetQuestion(name, dns.TypePTR)
	client := &dns.Client{Net: "udp", Timeout: timeout}

	in, _, err := client.ExchangeContext(lookupCtx, msg, r.Server)
	if err != nil {
		res.Error = errors.Wrapf(err, "PTR %s via %s", name, r.Server)
		debugLog("%s: lookup failed: %v", addr, err)
		return res, res.Error
	}
	if in.Rcode != dns.RcodeSuccess {
		res.Error = errors.Errorf("PTR %s: %s", name, dns.RcodeToString[in.Rcode])
		debugLog("%s: %s", addr, dns.RcodeToString[in.Rcode])
		return res, res.Error
	}

	for _, rr := range in.Answer {
		if ptr, ok := rr.(*dns.PTR); ok {
			// Clean up trailing dots from DNS names
			res.All = append(res.All, strings.TrimSuffix(ptr.Ptr, "."))
		}
	}
	if len(res.All) > 0 {
		res.Hostname = res.All[0]
		debugLog("%s -> %s", addr, res.Hostname)
	}
	return res, nil
}

// LookupMultiple performs reverse DNS lookups on multiple addresses
// concurrently. The returned slice is index-aligned with addrs. Addresses
// that were not looked up before ctx ended carry ctx.Err().
func (r *Resolver) LookupMultiple(ctx context.Context, addrs []netip.Addr) []*Result {
	if len(addrs) == 0 {
		return nil
	}

	workers := r.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	found := mapsutil.NewSyncLockMap[netip.Addr, *Result]()
	var wg sync.WaitGroup
	pool, err := ants.NewPoolWithFunc(workers, func(item interface{}) {
		defer wg.Done()
		addr := item.(netip.Addr)
		res, _ := r.LookupAddr(ctx, addr)
		_ = found.Set(addr, res)
	})
	if err != nil {
		debugLog("worker pool: %v", err)
		return failAll(addrs, err)
	}
	defer pool.Release()

	seen := make(map[netip.Addr]struct{}, len(addrs))
	for _, addr := range addrs {
		if ctx.Err() != nil {
			break
		}
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		wg.Add(1)
		if err := pool.Invoke(addr); err != nil {
			wg.Done()
			debugLog("%s: not submitted: %v", addr, err)
		}
	}
	wg.Wait()

	results := make([]*Result, len(addrs))
	for i, addr := range addrs {
		if res, ok := found.Get(addr); ok {
			results[i] = res
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = errors.New("lookup not performed")
		}
		results[i] = &Result{Addr: addr, Error: err}
	}
	return results
}

func failAll(addrs []netip.Addr, err error) []*Result {
	results := make([]*Result, len(addrs))
	for i, addr := range addrs {
		results[i] = &Result{Addr: addr, Error: err}
	}
	return results
}
