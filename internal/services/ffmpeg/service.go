// Package ffmpeg drives the ffmpeg and ffprobe binaries for audio
// extraction and scene-change key-frame sampling.
package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"lectern/internal/config"
)

// Service provides media extraction backed by ffmpeg and ffprobe.
type Service struct {
	cfg           config.Extraction
	commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewService creates an extraction service with the given configuration.
func NewService(cfg config.Extraction) *Service {
	return &Service{cfg: cfg}
}

// WithCommandRunner sets a custom command runner (for testing). The
// runner must return the combined stdout and stderr of the command.
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) ([]byte, error)) {
	s.commandRunner = runner
}

func (s *Service) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return output, nil
}

// ExtractAudio extracts the full audio stream as a mono 16kHz WAV file
// suitable for speech recognition.
func (s *Service) ExtractAudio(ctx context.Context, source, dest string) error {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	}
	if _, err := s.run(ctx, s.ffmpegBinary(), args...); err != nil {
		return fmt.Errorf("ffmpeg extract audio: %w", err)
	}
	return nil
}

func (s *Service) ffmpegBinary() string {
	if s.cfg.FFmpegBinary != "" {
		return s.cfg.FFmpegBinary
	}
	return "ffmpeg"
}

func (s *Service) ffprobeBinary() string {
	if s.cfg.FFprobeBinary != "" {
		return s.cfg.FFprobeBinary
	}
	return "ffprobe"
}

// HealthCheck verifies both binaries are resolvable.
func (s *Service) HealthCheck() error {
	for _, binary := range []string{s.ffmpegBinary(), s.ffprobeBinary()} {
		if _, err := exec.LookPath(binary); err != nil {
			return fmt.Errorf("binary %q not found in PATH: %w", binary, err)
		}
	}
	return nil
}
