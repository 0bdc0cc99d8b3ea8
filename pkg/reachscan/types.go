// Package reachscan: Type aliases for the subpackage types that appear in the
// scanner API, so callers only need to import this package.
package reachscan

import (
	"github.com/marcuoli/go-reachscan/pkg/reachscan/fingerprint"
	"github.com/marcuoli/go-reachscan/pkg/reachscan/network"
	"github.com/marcuoli/go-reachscan/pkg/reachscan/probe"
	"github.com/marcuoli/go-reachscan/pkg/reachscan/scheduler"
)

// Record is an alias for probe.Record.
type Record = probe.Record

// Prober is an alias for probe.Prober.
type Prober = probe.Prober

// ProberFunc is an alias for probe.ProberFunc.
type ProberFunc = probe.ProberFunc

// Pair is an alias for fingerprint.Pair.
type Pair = fingerprint.Pair

// BatchProgress is an alias for scheduler.BatchProgress.
type BatchProgress = scheduler.BatchProgress

// InvalidRangeError is an alias for network.InvalidRangeError.
type InvalidRangeError = network.InvalidRangeError

// Fingerprint returns the octet sum of a record's address.
func Fingerprint(r Record) int {
	return fingerprint.Sum(r.Addr)
}
