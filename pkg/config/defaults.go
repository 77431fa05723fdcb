package config

// Repository defaults.
const (
	DefaultRepositoryPath  = "."
	DefaultDetectRenames   = false
	DefaultIncludeIgnored  = false
	DefaultOutputFormat    = FormatTable
	DefaultLogLevel        = "info"
	DefaultLogFormat       = LogFormatText
	DefaultOTLPInsecure    = false
	DefaultSampleRatio     = 1.0
	DefaultShutdownTimeout = 5
)

// Watch defaults.
const (
	DefaultWatchRecursive = true
	DefaultWatchGitignore = true
)

// DefaultWatchIgnore are the ignore paths of the watch command.
func DefaultWatchIgnore() []string {
	return []string{".git"}
}
