package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateExtraction(); err != nil {
		return err
	}
	if err := c.validateSummarizer(); err != nil {
		return err
	}
	return c.validateWorkflow()
}

func (c *Config) validatePaths() error {
	if c.Paths.IncomingDir == "" {
		return errors.New("paths.incoming_dir is required")
	}
	if c.Paths.StagingDir == "" {
		return errors.New("paths.staging_dir is required")
	}
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir is required")
	}
	if c.Paths.IncomingDir == c.Paths.StagingDir {
		return errors.New("paths.incoming_dir and paths.staging_dir must differ")
	}
	return nil
}

func (c *Config) validateExtraction() error {
	if c.Extraction.SceneThreshold <= 0 || c.Extraction.SceneThreshold >= 1 {
		return fmt.Errorf("extraction.scene_threshold must be in (0, 1), got %g", c.Extraction.SceneThreshold)
	}
	if c.Extraction.SimilarityThreshold <= 0 || c.Extraction.SimilarityThreshold > 1 {
		return fmt.Errorf("extraction.similarity_threshold must be in (0, 1], got %g", c.Extraction.SimilarityThreshold)
	}
	if c.Extraction.MaxFrames <= 0 {
		return fmt.Errorf("extraction.max_frames must be positive, got %d", c.Extraction.MaxFrames)
	}
	return nil
}

func (c *Config) validateSummarizer() error {
	if c.Summarizer.MaxInputTokens < 256 {
		return fmt.Errorf("summarizer.max_input_tokens must be at least 256, got %d", c.Summarizer.MaxInputTokens)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.MaxConcurrentJobs < 1 {
		return fmt.Errorf("workflow.max_concurrent_jobs must be at least 1, got %d", c.Workflow.MaxConcurrentJobs)
	}
	return nil
}
