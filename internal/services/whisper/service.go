// Package whisper wraps the whisper speech-to-text binary. The service
// runs the binary against an extracted WAV file, asks for JSON output,
// and parses the segment list the pipeline consumes.
package whisper

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"lectern/internal/config"
	"lectern/internal/media"
)

// DefaultBinary is used when no transcriber binary is configured.
const DefaultBinary = "whisper"

// DefaultModel is used when no model size is configured.
const DefaultModel = "base"

// Service provides whisper transcription capabilities.
type Service struct {
	cfg           config.Transcriber
	commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewService creates a whisper service with the given configuration.
func NewService(cfg config.Transcriber) *Service {
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
	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return output, nil
}

func (s *Service) binary() string {
	if s.cfg.Binary != "" {
		return s.cfg.Binary
	}
	return DefaultBinary
}

func (s *Service) model() string {
	if s.cfg.Model != "" {
		return s.cfg.Model
	}
	return DefaultModel
}

// Transcribe runs the whisper binary on a WAV file and returns the
// parsed speech segments. outputDir is where whisper writes its JSON
// output file, named after the audio file.
func (s *Service) Transcribe(ctx context.Context, audioPath, outputDir string) ([]media.SpeechSegment, error) {
	if audioPath == "" {
		return nil, fmt.Errorf("transcribe: audio path required")
	}
	if outputDir == "" {
		outputDir = filepath.Dir(audioPath)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("transcribe: ensure output dir: %w", err)
	}

	args := s.buildArgs(audioPath, outputDir)
	if _, err := s.run(ctx, s.binary(), args...); err != nil {
		return nil, fmt.Errorf("whisper: %w", err)
	}

	baseName := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	jsonPath := filepath.Join(outputDir, baseName+".json")
	segments, err := LoadSegments(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: %w", err)
	}
	return segments, nil
}

// buildArgs constructs the whisper command arguments.
func (s *Service) buildArgs(audioPath, outputDir string) []string {
	args := []string{
		audioPath,
		"--model", s.model(),
		"--output_dir", outputDir,
		"--output_format", "json",
	}
	if s.cfg.Language != "" {
		args = append(args, "--language", s.cfg.Language)
	}
	if s.cfg.ComputeType != "" {
		args = append(args, "--compute_type", s.cfg.ComputeType)
	}
	return args
}

// HealthCheck verifies the whisper binary is resolvable.
func (s *Service) HealthCheck() error {
	if _, err := exec.LookPath(s.binary()); err != nil {
		return fmt.Errorf("whisper binary %q not found: %w", s.binary(), err)
	}
	return nil
}

// whisperPayload is the JSON structure of whisper output.
type whisperPayload struct {
	Segments []media.SpeechSegment `json:"segments"`
}

// LoadSegments loads speech segments from a whisper JSON file. Segments
// are returned ordered by start time with empty-text entries dropped.
func LoadSegments(jsonPath string) ([]media.SpeechSegment, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, err
	}
	var payload whisperPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse whisper json: %w", err)
	}
	segments := make([]media.SpeechSegment, 0, len(payload.Segments))
	for _, seg := range payload.Segments {
		if strings.TrimSpace(seg.Text) == "" {
			continue
		}
		segments = append(segments, seg)
	}
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].Start < segments[j].Start
	})
	return segments, nil
}

// TranscriptText concatenates the trimmed segment texts for plain-text
// rendition of a transcript.
func TranscriptText(segments []media.SpeechSegment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
