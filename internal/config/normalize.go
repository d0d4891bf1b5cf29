package config

import (
	"os"
	"strings"
)

func (c *Config) normalize() error {
	var err error
	if c.Paths.IncomingDir, err = expandPath(c.Paths.IncomingDir); err != nil {
		return err
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return err
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}

	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Extraction.FFmpegBinary = strings.TrimSpace(c.Extraction.FFmpegBinary)
	c.Extraction.FFprobeBinary = strings.TrimSpace(c.Extraction.FFprobeBinary)
	c.Transcriber.Binary = strings.TrimSpace(c.Transcriber.Binary)
	c.Transcriber.Model = strings.TrimSpace(c.Transcriber.Model)
	c.Transcriber.Language = strings.TrimSpace(c.Transcriber.Language)
	c.OCR.Binary = strings.TrimSpace(c.OCR.Binary)
	c.Summarizer.APIKey = strings.TrimSpace(c.Summarizer.APIKey)
	c.Summarizer.BaseURL = strings.TrimSpace(c.Summarizer.BaseURL)
	c.Summarizer.Model = strings.TrimSpace(c.Summarizer.Model)

	languages := make([]string, 0, len(c.OCR.Languages))
	for _, lang := range c.OCR.Languages {
		if trimmed := strings.TrimSpace(lang); trimmed != "" {
			languages = append(languages, trimmed)
		}
	}
	c.OCR.Languages = languages

	if c.Extraction.FFmpegBinary == "" {
		c.Extraction.FFmpegBinary = defaultFFmpegBinary
	}
	if c.Extraction.FFprobeBinary == "" {
		c.Extraction.FFprobeBinary = defaultFFprobeBinary
	}
	if c.Transcriber.Binary == "" {
		c.Transcriber.Binary = defaultWhisperBinary
	}
	if c.OCR.Binary == "" {
		c.OCR.Binary = defaultTesseractBinary
	}
	if len(c.OCR.Languages) == 0 {
		c.OCR.Languages = []string{"eng"}
	}
	if c.Summarizer.APIKey == "" {
		c.Summarizer.APIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}
	if c.Summarizer.BaseURL == "" {
		c.Summarizer.BaseURL = defaultSummarizerBaseURL
	}
	if c.Summarizer.Model == "" {
		c.Summarizer.Model = defaultSummarizerModel
	}
	if c.Summarizer.MaxInputTokens <= 0 {
		c.Summarizer.MaxInputTokens = defaultMaxInputTokens
	}
	if c.Summarizer.TimeoutSeconds <= 0 {
		c.Summarizer.TimeoutSeconds = defaultSummarizerTimeout
	}
	if c.Workflow.MaxConcurrentJobs <= 0 {
		c.Workflow.MaxConcurrentJobs = defaultMaxConcurrentJobs
	}
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = defaultLogFormat
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = defaultLogLevel
	}
	return nil
}
