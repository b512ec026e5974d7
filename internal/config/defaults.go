package config

const (
	defaultDataDir              = "~/.local/share/pixora"
	defaultLogDir               = "~/.local/share/pixora/logs"
	defaultLogRetentionDays     = 14
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultAPIBind              = "127.0.0.1:7491"
	defaultModelBaseURL         = "https://staticimgly.com/@imgly/background-removal-data/1.7.0/dist/"
	defaultModelKey             = "/models/isnet_quint8"
	defaultModelFileName        = "isnet_quint8.onnx"
	defaultModelResolution      = 1024
	defaultModelDownloadTimeout = 600
	defaultQuality              = 85
	defaultStaleArtifactMinutes = 60
	defaultHistoryRetentionDays = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			ModelDir: defaultModelDir(),
			TempDir:  defaultTempDir(),
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Model: Model{
			BaseURL:         defaultModelBaseURL,
			Key:             defaultModelKey,
			FileName:        defaultModelFileName,
			Resolution:      defaultModelResolution,
			DownloadTimeout: defaultModelDownloadTimeout,
		},
		Pipeline: Pipeline{
			DefaultQuality:       defaultQuality,
			StaleArtifactMinutes: defaultStaleArtifactMinutes,
			HistoryRetentionDays: defaultHistoryRetentionDays,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
