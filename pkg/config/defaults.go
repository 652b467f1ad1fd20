package config

// Run defaults.
const (
	// DefaultWorkers of zero selects runtime.GOMAXPROCS.
	DefaultWorkers     = 0
	DefaultMaxFileSize = "1MB"
	DefaultSkipVendor  = true
	DefaultStrict      = false
)

// Logging defaults.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Cache defaults.
const (
	DefaultCacheEnabled = true
	DefaultCacheMaxSize = "64MB"
)

// Telemetry defaults.
const (
	DefaultTelemetryInsecure = false
	DefaultTelemetryVerbose  = false
	DefaultShutdownTimeout   = 5
)

// DefaultExclude lists globs never rewritten unless overridden.
var DefaultExclude = []string{".git", "node_modules", "testdata"}
