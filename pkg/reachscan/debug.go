// Package reachscan: Debug logging support.
package reachscan

import (
	"sync"

	"github.com/marcuoli/go-reachscan/pkg/reachscan/dns"
	"github.com/marcuoli/go-reachscan/pkg/reachscan/network"
	"github.com/marcuoli/go-reachscan/pkg/reachscan/probe"
	"github.com/marcuoli/go-reachscan/pkg/reachscan/scheduler"
)

// DebugLevel represents the verbosity level for debug logging.
type DebugLevel int

const (
	// DebugOff disables all debug logging.
	DebugOff DebugLevel = iota
	// DebugBasic logs high-level operations (start/complete/errors).
	DebugBasic
	// DebugVerbose also logs every individual probe and lookup.
	DebugVerbose
)

// Component identifies the part of the scanner that produced a message.
type Component string

const (
	ComponentScan      Component = "scan"
	ComponentSampler   Component = "sampler"
	ComponentProbe     Component = "probe"
	ComponentScheduler Component = "scheduler"
	ComponentDNS       Component = "dns"
)

// DebugLogger is a callback function for debug logging.
type DebugLogger func(component Component, format string, args ...interface{})

var (
	debugLogger DebugLogger
	debugLevel  DebugLevel
	debugMu     sync.RWMutex
)

// SetDebugLogger sets a custom debug logger callback.
// Pass nil to disable debug logging.
func SetDebugLogger(logger DebugLogger) {
	debugMu.Lock()
	defer debugMu.Unlock()
	debugLogger = logger
}

// SetDebugLevel sets the debug verbosity level.
func SetDebugLevel(level DebugLevel) {
	debugMu.Lock()
	defer debugMu.Unlock()
	debugLevel = level
}

// GetDebugLevel returns the current debug level.
func GetDebugLevel() DebugLevel {
	debugMu.RLock()
	defer debugMu.RUnlock()
	return debugLevel
}

// debugLog logs a message if debug logging is enabled.
func debugLog(component Component, format string, args ...interface{}) {
	debugMu.RLock()
	logger := debugLogger
	level := debugLevel
	debugMu.RUnlock()

	if logger != nil && level >= DebugBasic {
		logger(component, format, args...)
	}
}

// debugLogVerbose logs a verbose message if verbose debug logging is enabled.
func debugLogVerbose(component Component, format string, args ...interface{}) {
	debugMu.RLock()
	logger := debugLogger
	level := debugLevel
	debugMu.RUnlock()

	if logger != nil && level >= DebugVerbose {
		logger(component, format, args...)
	}
}

// Subpackages log through the root logger. Probe and lookup messages are
// per address, so they only show at DebugVerbose.
func init() {
	network.DebugLogger = func(format string, args ...interface{}) {
		debugLog(ComponentSampler, format, args...)
	}
	scheduler.DebugLogger = func(format string, args ...interface{}) {
		debugLog(ComponentScheduler, format, args...)
	}
	probe.DebugLogger = func(format string, args ...interface{}) {
		debugLogVerbose(ComponentProbe, format, args...)
	}
	dns.DebugLogger = func(format string, args ...interface{}) {
		debugLogVerbose(ComponentDNS, format, args...)
	}
}
