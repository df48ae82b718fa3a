package config

const (
	defaultPublicDir               = "public"
	defaultUploadSubdir            = "uploads"
	defaultRenderSubdir            = "renders"
	defaultStateDir                = "~/.local/share/captioner/state"
	defaultLogDir                  = "~/.local/share/captioner/logs"
	defaultEnvFile                 = ".env"
	defaultAPIBind                 = "127.0.0.1:3000"
	defaultTranscriptionBackend    = "google"
	defaultTranscriptionLanguage   = "en-US"
	defaultCredentialsFile         = "key.json"
	defaultObjectPrefix            = "captioner/audio/"
	defaultPollIntervalSeconds     = 2
	defaultTranscriptionTimeout    = 600
	defaultWhisperXModel           = "large-v3"
	defaultFPS                     = 30
	defaultFallbackDurationSeconds = 10
	defaultCodec                   = "h264"
	defaultCompositionID           = "CaptionedVideo"
	defaultWidth                   = 1920
	defaultHeight                  = 1080
	defaultProbeCheckpoint         = 5
	defaultBundleCheckpoint        = 10
	defaultCompositionCheckpoint   = 20
	defaultMaxConcurrentRenders    = 1
	defaultOverlapPolicy           = "reject"
	defaultProgressBackend         = "file"
	defaultProgressRetentionSecs   = 5
	defaultProgressFileName        = ".render-progress.json"
	defaultProgressSQLiteName      = "progress.db"
	defaultRedisKeyPrefix          = "captioner:progress:"
	defaultUploadMaxBytes          = 100 * 1024 * 1024
	defaultNotifyTimeout           = 10
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"

	// PlaceholderProjectID is the value shipped in example env files; it counts as unset.
	PlaceholderProjectID = "your-project-id"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			PublicDir: defaultPublicDir,
			StateDir:  defaultStateDir,
			LogDir:    defaultLogDir,
			EnvFile:   defaultEnvFile,
			APIBind:   defaultAPIBind,
		},
		Transcription: Transcription{
			Backend:             defaultTranscriptionBackend,
			Language:            defaultTranscriptionLanguage,
			CredentialsFile:     defaultCredentialsFile,
			ObjectPrefix:        defaultObjectPrefix,
			PollIntervalSeconds: defaultPollIntervalSeconds,
			TimeoutSeconds:      defaultTranscriptionTimeout,
			WhisperXModel:       defaultWhisperXModel,
		},
		Render: Render{
			FPS:                     defaultFPS,
			FallbackDurationSeconds: defaultFallbackDurationSeconds,
			Codec:                   defaultCodec,
			CompositionID:           defaultCompositionID,
			Width:                   defaultWidth,
			Height:                  defaultHeight,
			ProbeCheckpoint:         defaultProbeCheckpoint,
			BundleCheckpoint:        defaultBundleCheckpoint,
			CompositionCheckpoint:   defaultCompositionCheckpoint,
			MaxConcurrent:           defaultMaxConcurrentRenders,
		},
		Captions: Captions{
			OverlapPolicy: defaultOverlapPolicy,
		},
		Progress: Progress{
			Backend:          defaultProgressBackend,
			RetentionSeconds: defaultProgressRetentionSecs,
			FileName:         defaultProgressFileName,
			RedisKeyPrefix:   defaultRedisKeyPrefix,
		},
		Upload: Upload{
			MaxBytes: defaultUploadMaxBytes,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
