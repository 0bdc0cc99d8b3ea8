// Package fingerprint groups reachable addresses by the sum of their octets
// and pairs up records that share a sum.
package fingerprint

import (
	"net/netip"
	"strconv"

	"github.com/marcuoli/go-reachscan/pkg/reachscan/probe"
)

// MaxSum is the largest possible fingerprint (255*4).
const MaxSum = 1020

// Sum returns the sum of the four octets of an IPv4 address.
// Non-IPv4 addresses have no fingerprint and return -1.
func Sum(addr netip.Addr) int {
	if !addr.Is4() {
		return -1
	}
	b := addr.As4()
	return int(b[0]) + int(b[1]) + int(b[2]) + int(b[3])
}

// Group is a set of records sharing a fingerprint, in insertion order.
type Group struct {
	Sum     int
	Records []probe.Record
}

// Pair is two distinct records that share a fingerprint.
type Pair struct {
	First  probe.Record
	Second probe.Record
	Sum    int
}

// Label returns the match label written next to a pair.
func (p Pair) Label() string {
	return "equal_sum=" + strconv.Itoa(p.Sum)
}

// GroupRecords buckets records by fingerprint. Groups are returned in order of
// the first record carrying each sum; records keep their input order within a
// group. Records without a fingerprint are skipped.
func GroupRecords(records []probe.Record) []Group {
	index := make(map[int]int)
	var groups []Group
	for _, r := range records {
		sum := Sum(r.Addr)
		if sum < 0 {
			continue
		}
		i, ok := index[sum]
		if !ok {
			i = len(groups)
			index[sum] = i
			groups = append(groups, Group{Sum: sum})
		}
		groups[i].Records = append(groups[i].Records, r)
	}
	return groups
}

// Aggregate emits one pair per unordered (i, j), i < j, within every group of
// two or more records. Output order is group order, then i, then j.
func Aggregate(records []probe.Record) []Pair {
	var pairs []Pair
	for _, g := range GroupRecords(records) {
		pairs = append(pairs, pairsOf(g)...)
	}
	return pairs
}

// Pairs returns the pairs of a single group.
func (g Group) Pairs() []Pair {
	return pairsOf(g)
}

func pairsOf(g Group) []Pair {
	n := len(g.Records)
	if n < 2 {
		return nil
	}
	out := make([]Pair, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			out = append(out, Pair{First: g.Records[i], Second: g.Records[j], Sum: g.Sum})
		}
	}
	return out
}
