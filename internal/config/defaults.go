package config

const (
	defaultIncomingDir         = "~/.local/share/lectern/incoming"
	defaultStagingDir          = "~/.local/share/lectern/staging"
	defaultOutputDir           = "~/.local/share/lectern/output"
	defaultLogDir              = "~/.local/share/lectern/logs"
	defaultAPIBind             = "127.0.0.1:7519"
	defaultFFmpegBinary        = "ffmpeg"
	defaultFFprobeBinary       = "ffprobe"
	defaultSceneThreshold      = 0.3
	defaultSimilarityThreshold = 0.9
	defaultMaxFrames           = 400
	defaultWhisperBinary       = "whisper"
	defaultWhisperModel        = "large-v3"
	defaultWhisperLanguage     = "en"
	defaultWhisperComputeType  = "float16"
	defaultTesseractBinary     = "tesseract"
	defaultSummarizerBaseURL   = "https://api.openai.com/v1"
	defaultSummarizerModel     = "gpt-4o-mini"
	defaultMaxInputTokens      = 6000
	defaultSummarizerTimeout   = 120
	defaultMaxConcurrentJobs   = 2
	defaultQueuePollInterval   = 5
	defaultErrorRetryInterval  = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			IncomingDir: defaultIncomingDir,
			StagingDir:  defaultStagingDir,
			OutputDir:   defaultOutputDir,
			LogDir:      defaultLogDir,
			APIBind:     defaultAPIBind,
		},
		Extraction: Extraction{
			FFmpegBinary:        defaultFFmpegBinary,
			FFprobeBinary:       defaultFFprobeBinary,
			SceneThreshold:      defaultSceneThreshold,
			SimilarityThreshold: defaultSimilarityThreshold,
			MaxFrames:           defaultMaxFrames,
		},
		Transcriber: Transcriber{
			Binary:      defaultWhisperBinary,
			Model:       defaultWhisperModel,
			Language:    defaultWhisperLanguage,
			ComputeType: defaultWhisperComputeType,
		},
		OCR: OCR{
			Binary:    defaultTesseractBinary,
			Languages: []string{"eng"},
		},
		Summarizer: Summarizer{
			BaseURL:        defaultSummarizerBaseURL,
			Model:          defaultSummarizerModel,
			MaxInputTokens: defaultMaxInputTokens,
			TimeoutSeconds: defaultSummarizerTimeout,
		},
		Workflow: Workflow{
			MaxConcurrentJobs:  defaultMaxConcurrentJobs,
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
