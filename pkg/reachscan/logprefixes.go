// Package reachscan: Log prefix constants for consistent log tagging.
// These constants are exported so consumers can use them for consistent logging,
// but they are not required - consumers can use their own prefixes via SetDebugLogger.
package reachscan

// Log prefix constants for scanner components.
// Format follows [Component] or [Component:Subcomponent] pattern.
const (
	// Main scan prefix
	LogPrefixScan = "[Scan]"

	// Component-specific prefixes
	LogPrefixSampler   = "[Scan:Sampler]"
	LogPrefixProbe     = "[Scan:Probe]"
	LogPrefixScheduler = "[Scan:Scheduler]"
	LogPrefixDNS       = "[Scan:DNS]"

	// Debug prefix - use as "[DEBUG][Scan:*]" format
	LogPrefixDebug = "[DEBUG]"
)

// ComponentToPrefix returns the log prefix for a given component.
// This can be used by consumers who want consistent prefixes in their debug logger callback.
func ComponentToPrefix(component Component) string {
	switch component {
	case ComponentSampler:
		return LogPrefixSampler
	case ComponentProbe:
		return LogPrefixProbe
	case ComponentScheduler:
		return LogPrefixScheduler
	case ComponentDNS:
		return LogPrefixDNS
	default:
		return LogPrefixScan
	}
}
