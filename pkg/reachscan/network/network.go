// Package network provides IPv4 range parsing and deterministic address sampling.
package network

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"strings"

	"go4.org/netipx"
)

// spread is the divisor applied to the stride so that large ranges are
// sampled sparsely across their whole span instead of from the start.
const spread = 16

// DebugLogger is a callback for debug logging.
// Set this to receive debug messages from sampling operations.
var DebugLogger func(format string, args ...interface{})

func debugLog(format string, args ...interface{}) {
	if DebugLogger != nil {
		DebugLogger(format, args...)
	}
}

// InvalidRangeError reports a CIDR that cannot be used as a scan range.
type InvalidRangeError struct {
	CIDR   string
	Reason string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid range %q: %s", e.CIDR, e.Reason)
}

// Range is an IPv4 network range in CIDR notation.
type Range struct {
	prefix netip.Prefix
}

// ParseRange parses an IPv4 CIDR. Host bits must be zero.
func ParseRange(cidr string) (Range, error) {
	p, err := netip.ParsePrefix(strings.TrimSpace(cidr))
	if err != nil {
		return Range{}, &InvalidRangeError{CIDR: cidr, Reason: err.Error()}
	}
	if !p.Addr().Is4() {
		return Range{}, &InvalidRangeError{CIDR: cidr, Reason: "not an IPv4 range"}
	}
	if p.Masked() != p {
		return Range{}, &InvalidRangeError{CIDR: cidr, Reason: "host bits set"}
	}
	return Range{prefix: p}, nil
}

// ParseRanges parses every CIDR and fails on the first invalid one.
func ParseRanges(cidrs []string) ([]Range, error) {
	ranges := make([]Range, 0, len(cidrs))
	for _, c := range cidrs {
		r, err := ParseRange(c)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, r)
	}
	return ranges, nil
}

// MustParseRange is like ParseRange but panics on error.
func MustParseRange(cidr string) Range {
	r, err := ParseRange(cidr)
	if err != nil {
		panic(err)
	}
	return r
}

// Prefix returns the underlying prefix.
func (r Range) Prefix() netip.Prefix { return r.prefix }

func (r Range) String() string { return r.prefix.String() }

// Size returns the number of addresses in the range, network and broadcast included.
func (r Range) Size() uint64 {
	if !r.prefix.IsValid() {
		return 0
	}
	return uint64(1) << (32 - r.prefix.Bits())
}

// First returns the network address.
func (r Range) First() netip.Addr { return r.prefix.Addr() }

// Last returns the broadcast address.
func (r Range) Last() netip.Addr { return netipx.PrefixLastIP(r.prefix) }

// Contains reports whether addr lies inside the range.
func (r Range) Contains(addr netip.Addr) bool {
	return netipx.RangeOfPrefix(r.prefix).Contains(addr)
}

// Sample returns at most max evenly spaced addresses from r, starting at the
// network address. The stride is max(1, size/(count*16)) where count is
// min(max, size), so a /30 yields its first count addresses while a /8 is
// sampled across its whole span. The output is fully determined by its inputs.
func Sample(r Range, max int) []netip.Addr {
	if max <= 0 || !r.prefix.IsValid() {
		return nil
	}
	n := r.Size()
	count := uint64(max)
	if count > n {
		count = n
	}
	step := n / (count * spread)
	if step < 1 {
		step = 1
	}
	limit := count * step
	if limit > n {
		limit = n
	}

	base := addrToUint32(r.First())
	res := make([]netip.Addr, 0, count)
	for off := uint64(0); off < limit; off += step {
		res = append(res, uint32ToAddr(base+uint32(off)))
	}
	debugLog("%s: sampled %d of %d addresses (step %d)", r, len(res), n, step)
	return res
}

// SampleRanges samples every range and concatenates the results in range order.
func SampleRanges(ranges []Range, max int) []netip.Addr {
	var res []netip.Addr
	for _, r := range ranges {
		res = append(res, Sample(r, max)...)
	}
	return res
}

func addrToUint32(a netip.Addr) uint32 {
	b := a.As4()
	return binary.BigEndian.Uint32(b[:])
}

func uint32ToAddr(u uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], u)
	return netip.AddrFrom4(b)
}
