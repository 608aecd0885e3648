package config

const (
	defaultAPIBaseURL            = "http://localhost:8000"
	defaultExtractPath           = "/upload"
	defaultExportPath            = "/export-to-sheets"
	defaultHealthPath            = "/health"
	defaultFormatsPath           = "/supported-formats"
	defaultRequestTimeoutSeconds = 45
	maxRequestTimeoutSeconds     = 600
	defaultUserAgent             = "dealdesk/0.1.0"
	defaultStateDir              = "~/.local/share/dealdesk"
	defaultLogDir                = "~/.local/share/dealdesk/logs"
	defaultSnapshotDir           = "~/.local/share/dealdesk/snapshots"
	defaultHistoryFile           = "history.db"
	defaultNotifyRequestTimeout  = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		API: API{
			BaseURL:               defaultAPIBaseURL,
			ExtractPath:           defaultExtractPath,
			ExportPath:            defaultExportPath,
			HealthPath:            defaultHealthPath,
			FormatsPath:           defaultFormatsPath,
			RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
			UserAgent:             defaultUserAgent,
		},
		Paths: Paths{
			StateDir:    defaultStateDir,
			LogDir:      defaultLogDir,
			SnapshotDir: defaultSnapshotDir,
		},
		History: History{
			Enabled: true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Extraction:     true,
			Export:         true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
