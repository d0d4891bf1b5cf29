// Package tesseract wraps the tesseract OCR binary for extracting
// on-screen text from key frame images.
package tesseract

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"lectern/internal/config"
)

// DefaultBinary is used when no OCR binary is configured.
const DefaultBinary = "tesseract"

// DefaultLanguage is used when no OCR languages are configured.
const DefaultLanguage = "eng"

// Service provides tesseract OCR capabilities.
type Service struct {
	cfg           config.OCR
	commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewService creates a tesseract service with the given configuration.
func NewService(cfg config.OCR) *Service {
	return &Service{cfg: cfg}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) ([]byte, error)) {
	s.commandRunner = runner
}

func (s *Service) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	output, err := cmd.Output()
	if err != nil {
		detail := ""
		if exitErr, ok := err.(*exec.ExitError); ok {
			detail = strings.TrimSpace(string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("%s: %w: %s", name, err, detail)
	}
	return output, nil
}

func (s *Service) binary() string {
	if s.cfg.Binary != "" {
		return s.cfg.Binary
	}
	return DefaultBinary
}

func (s *Service) languages() string {
	if len(s.cfg.Languages) > 0 {
		return strings.Join(s.cfg.Languages, "+")
	}
	return DefaultLanguage
}

// RecognizeImage runs OCR on one image and returns the recognized text
// with surrounding whitespace trimmed. OCR noise on text-free frames
// commonly yields blank output, which callers treat as no text.
func (s *Service) RecognizeImage(ctx context.Context, imagePath string) (string, error) {
	if imagePath == "" {
		return "", fmt.Errorf("ocr: image path required")
	}
	output, err := s.run(ctx, s.binary(), imagePath, "stdout", "-l", s.languages())
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

// HealthCheck verifies the tesseract binary is resolvable.
func (s *Service) HealthCheck() error {
	if _, err := exec.LookPath(s.binary()); err != nil {
		return fmt.Errorf("tesseract binary %q not found: %w", s.binary(), err)
	}
	return nil
}
