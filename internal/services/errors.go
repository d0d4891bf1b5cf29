package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Stage failure markers, one per collaborator contract.
	ErrExtraction     = errors.New("extraction error")
	ErrTranscription  = errors.New("transcription error")
	ErrOCR            = errors.New("ocr error")
	ErrIntegration    = errors.New("integration error")
	ErrSummarization  = errors.New("summarization error")
	ErrBudgetExceeded = errors.New("summarizer budget exceeded")
	ErrRender         = errors.New("render error")

	// ErrEmptyInput tags an integration failure caused by an empty
	// frame stream. It always travels wrapped in ErrIntegration.
	ErrEmptyInput = errors.New("empty input")

	// Caller-facing markers for the core-exposed interface.
	ErrInvalidState = errors.New("invalid state")
	ErrNotReady     = errors.New("result not ready")
	ErrNotFound     = errors.New("not found")

	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrExternalTool  = errors.New("external tool error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailureMessage extracts the human-readable portion of a stage error for
// persistence on the job record: the marker prefix is dropped so operators
// read "transcribe: run whisper: ..." rather than the classification tag.
func FailureMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, marker := range []error{
		ErrExtraction, ErrTranscription, ErrOCR, ErrIntegration,
		ErrSummarization, ErrBudgetExceeded, ErrRender,
		ErrValidation, ErrConfiguration, ErrExternalTool,
	} {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(msg, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(msg, prefix))
		}
	}
	return strings.TrimSpace(msg)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
