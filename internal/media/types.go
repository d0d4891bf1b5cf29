// Package media holds the event stream types flowing through the
// pipeline: speech segments from transcription, key-frame records from
// extraction and OCR, and the chaptered unified transcript the
// integration stage produces.
package media

import (
	"fmt"
	"math"
	"strings"
)

// SpeechSegment is one transcribed utterance. Segments arrive ordered
// by Start and non-overlapping by contract of the transcriber.
type SpeechSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// FrameRecord is one deduplicated key frame with its OCR text.
// Timestamps are strictly increasing by contract of the extractor.
type FrameRecord struct {
	Timestamp float64 `json:"timestamp"`
	ImagePath string  `json:"image_path"`
	OCRText   string  `json:"ocr_text"`
}

// Chapter is a contiguous interval of the video anchored to one key
// frame, aggregating the speech that starts inside the interval.
// The final chapter's End is +Inf (serialized as -1, see MarshalJSON).
type Chapter struct {
	Index          int             `json:"index"`
	Start          float64         `json:"start"`
	End            float64         `json:"end"`
	Frame          FrameRecord     `json:"frame"`
	SpeechSegments []SpeechSegment `json:"speech_segments"`
	SpeechText     string          `json:"speech_text"`
	Summary        string          `json:"summary"`
}

// OpenEnded reports whether the chapter extends to end of media.
func (c Chapter) OpenEnded() bool {
	return math.IsInf(c.End, 1)
}

// Display returns the HH:MM:SS (or MM:SS) label for the chapter start.
func (c Chapter) Display() string {
	return FormatTimestamp(c.Start)
}

// ContentText joins the chapter's speech and on-screen text for
// summarization input.
func (c Chapter) ContentText() string {
	parts := make([]string, 0, 2)
	if text := strings.TrimSpace(c.SpeechText); text != "" {
		parts = append(parts, text)
	}
	if text := strings.TrimSpace(c.Frame.OCRText); text != "" {
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n")
}

// Empty reports whether the chapter carries no speech and no OCR text.
func (c Chapter) Empty() bool {
	return strings.TrimSpace(c.SpeechText) == "" && strings.TrimSpace(c.Frame.OCRText) == ""
}

// TranscriptMetadata describes the source and processing stats of a
// unified transcript.
type TranscriptMetadata struct {
	SourceFile        string  `json:"source_file"`
	Duration          float64 `json:"duration"`
	TotalFrames       int     `json:"total_frames"`
	ProcessingSeconds float64 `json:"processing_seconds"`
}

// UnifiedTranscript is the job's final structured artifact: metadata
// plus the ordered chapter sequence. It is created at integrate stage
// completion and read-only from summarize onward.
type UnifiedTranscript struct {
	Metadata       TranscriptMetadata `json:"metadata"`
	Chapters       []Chapter          `json:"chapters"`
	OverallSummary string             `json:"overall_summary,omitempty"`
}

// WordCount returns the total whitespace-separated word count across
// all chapter speech text.
func (u *UnifiedTranscript) WordCount() int {
	total := 0
	for _, chapter := range u.Chapters {
		total += len(strings.Fields(chapter.SpeechText))
	}
	return total
}

// FormatTimestamp renders seconds as HH:MM:SS, or MM:SS under an hour.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsInf(seconds, 1) || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int(seconds)
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}
