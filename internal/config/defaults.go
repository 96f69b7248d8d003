package config

const (
	defaultConfigPath          = "~/.config/contentfactory/config.toml"
	defaultDataDir             = "~/.local/share/contentfactory"
	defaultAssetDir            = "~/.local/share/contentfactory/video-generator/public/assets"
	defaultOutputDir           = "~/.local/share/contentfactory/out"
	defaultLogDir              = "~/.local/share/contentfactory/logs"
	defaultLockDir             = "~/.local/share/contentfactory/locks"
	defaultAPIBind             = "127.0.0.1:7488"
	defaultLLMBaseURL          = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel            = "google/gemini-2.5-flash"
	defaultLLMReferer          = "https://github.com/contentfactory/contentfactory"
	defaultLLMTitle            = "Content Factory"
	defaultLLMTimeoutSeconds   = 120
	defaultLLMRetryAttempts    = 5
	defaultSceneCount          = 8
	defaultMaxRevisions        = 2
	defaultQualityThreshold    = 7
	defaultLongFormChannel     = "stock_replay"
	defaultMapChunkChars       = 400
	defaultPlaceholderFrames   = 150
	defaultGenerateTemperature = 0.7
	defaultReviewTemperature   = 0.3
	defaultReviseTemperature   = 0.8
	defaultMapTemperature      = 0.4
	defaultTTSBinary           = "edge-tts"
	defaultTTSVoice            = "zh-CN-YunxiNeural"
	defaultTTSTimeoutSeconds   = 300
	defaultRetryAttempts       = 3
	defaultImagePrimaryURL     = "https://image.pollinations.ai/prompt/"
	defaultImageFallbackURL    = "https://loremflickr.com"
	defaultImageFallbackTags   = "computer,technology,history"
	defaultImageWidth          = 1080
	defaultImageHeight         = 1920
	defaultImageConcurrency    = 4
	defaultImageTimeoutSeconds = 90
	defaultImageMinBytes       = 100
	defaultRenderProjectDir    = "~/.local/share/contentfactory/video-generator"
	defaultRenderComposition   = "HistoryVideo"
	defaultRenderFPS           = 30
	defaultRenderPadSeconds    = 1.0
	defaultRenderTimeout       = 1800
	defaultIngestChunkChars    = 100000
	defaultIngestTemperature   = 0.1
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			AssetDir:  defaultAssetDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			LockDir:   defaultLockDir,
			APIBind:   defaultAPIBind,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			RetryAttempts:  defaultLLMRetryAttempts,
		},
		Script: Script{
			SceneCount:          defaultSceneCount,
			MaxRevisions:        defaultMaxRevisions,
			QualityThreshold:    defaultQualityThreshold,
			LongFormChannels:    []string{defaultLongFormChannel},
			ChunkChars:          defaultMapChunkChars,
			PlaceholderFrames:   defaultPlaceholderFrames,
			GenerateTemperature: defaultGenerateTemperature,
			ReviewTemperature:   defaultReviewTemperature,
			ReviseTemperature:   defaultReviseTemperature,
			MapTemperature:      defaultMapTemperature,
		},
		TTS: TTS{
			Binary:         defaultTTSBinary,
			DefaultVoice:   defaultTTSVoice,
			TimeoutSeconds: defaultTTSTimeoutSeconds,
			RetryAttempts:  defaultRetryAttempts,
		},
		Images: Images{
			PrimaryURL:     defaultImagePrimaryURL,
			FallbackURL:    defaultImageFallbackURL,
			FallbackTags:   defaultImageFallbackTags,
			Width:          defaultImageWidth,
			Height:         defaultImageHeight,
			Concurrency:    defaultImageConcurrency,
			TimeoutSeconds: defaultImageTimeoutSeconds,
			RetryAttempts:  defaultRetryAttempts,
			MinBytes:       defaultImageMinBytes,
		},
		Render: Render{
			ProjectDir:     defaultRenderProjectDir,
			Composition:    defaultRenderComposition,
			FPS:            defaultRenderFPS,
			PadSeconds:     defaultRenderPadSeconds,
			TimeoutSeconds: defaultRenderTimeout,
		},
		Ingest: Ingest{
			ChunkChars:  defaultIngestChunkChars,
			Temperature: defaultIngestTemperature,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			Completed:      true,
			Errors:         true,
		},
		API: API{
			PollInterval:      5,
			WorkerConcurrency: 1,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
