package constants

const (
	// ProgramName is the command name
	ProgramName = "bootimg"

	// ConfigFileName is the per-user default configuration, relative to the home directory
	ConfigFileName = ".bootimgrc"

	// DefaultConfigEnv names the environment variable holding a fallback config file
	DefaultConfigEnv = "BOOTIMG_DEFAULT_CONFIG"

	// SourceDateEpochEnv pins image timestamps for reproducible builds
	SourceDateEpochEnv = "SOURCE_DATE_EPOCH"

	// WarningColor used in warning texts
	WarningColor = "\033[1;33m%s\033[0m"
	// ErrorColor used in error texts
	ErrorColor = "\033[1;31m%s\033[0m"
)
