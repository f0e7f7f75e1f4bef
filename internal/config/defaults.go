package config

const (
	defaultStateDir         = "~/.local/share/rasterkit"
	defaultLogDir           = "~/.local/share/rasterkit/logs"
	defaultLogFormat        = "auto"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 30
	defaultPreviewMaxDim    = 1024
	defaultOnDecline        = OnDeclineRaw
	defaultStatsConcurrency = 4
	defaultCompression      = "none"
)

// Declined-correction policies for previews.
const (
	OnDeclineRaw   = "raw"
	OnDeclineBlock = "block"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Preview: Preview{
			MaxDimension: defaultPreviewMaxDim,
			OnDecline:    defaultOnDecline,
		},
		Inspect: Inspect{
			StatsConcurrency: defaultStatsConcurrency,
		},
		Export: Export{
			Compression: defaultCompression,
		},
	}
}
