package config

// Repository defaults.
const (
	DefaultBranch   = ""
	DefaultCloneDir = ""
	// DefaultCommitCacheSize bounds the decoded commit cache.
	DefaultCommitCacheSize = "256MB"
)

// Mining defaults.
const (
	// DefaultWorkers of zero means one classifier worker per CPU.
	DefaultWorkers   = 0
	DefaultRulesFile = ""
	// DefaultCommentDetection matches comment line prefixes.
	DefaultCommentDetection = CommentDetectionMarkers
)

// DefaultCommentMarkers returns the line prefixes that mark a comment
// change for the documentation rule.
func DefaultCommentMarkers() []string {
	return []string{"#", "//"}
}

// State defaults.
const (
	DefaultStateDir      = ""
	DefaultStateCodec    = "json"
	DefaultStateCompress = false
)

// Logging defaults.
const (
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
	DefaultLogFile       = ""
	DefaultLogMaxSizeMB  = 50
	DefaultLogMaxBackups = 3
)

// Telemetry defaults.
const (
	DefaultOTLPEndpoint = ""
	DefaultOTLPInsecure = false
	DefaultOTLPHeaders  = ""
	DefaultSampleRatio  = 1.0
	DefaultTraceVerbose = false
	DefaultTraceDebug   = false
)
