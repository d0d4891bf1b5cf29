package media_test

import (
	"math"
	"path/filepath"
	"testing"

	"lectern/internal/media"
)

func TestFormatTimestamp(t *testing.T) {
	cases := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00"},
		{59.9, "00:59"},
		{65, "01:05"},
		{3600, "01:00:00"},
		{3725, "01:02:05"},
		{-3, "00:00"},
		{math.Inf(1), "00:00"},
	}
	for _, tc := range cases {
		if got := media.FormatTimestamp(tc.seconds); got != tc.want {
			t.Fatalf("FormatTimestamp(%g) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}

func TestChapterContentText(t *testing.T) {
	chapter := media.Chapter{
		SpeechText: "welcome to the lecture",
		Frame:      media.FrameRecord{OCRText: "Slide 1: Introduction"},
	}
	want := "welcome to the lecture\nSlide 1: Introduction"
	if got := chapter.ContentText(); got != want {
		t.Fatalf("ContentText = %q, want %q", got, want)
	}

	empty := media.Chapter{Frame: media.FrameRecord{OCRText: "   "}}
	if !empty.Empty() {
		t.Fatal("expected chapter with blank text to be empty")
	}
}

func TestWordCount(t *testing.T) {
	transcript := media.UnifiedTranscript{
		Chapters: []media.Chapter{
			{SpeechText: "one two three"},
			{SpeechText: ""},
			{SpeechText: "  four  five "},
		},
	}
	if got := transcript.WordCount(); got != 5 {
		t.Fatalf("WordCount = %d, want 5", got)
	}
}

func TestTranscriptJSONRoundTripPreservesOpenEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artifacts", "unified.json")
	original := media.UnifiedTranscript{
		Metadata: media.TranscriptMetadata{SourceFile: "lecture.mp4", Duration: 901.5, TotalFrames: 2},
		Chapters: []media.Chapter{
			{
				Index: 0,
				Start: 0,
				End:   300,
				Frame: media.FrameRecord{Timestamp: 0, ImagePath: "frame_0000.jpg", OCRText: "Intro"},
				SpeechSegments: []media.SpeechSegment{
					{Start: 0, End: 50, Text: "hello"},
				},
				SpeechText: "hello",
			},
			{
				Index: 1,
				Start: 300,
				End:   math.Inf(1),
				Frame: media.FrameRecord{Timestamp: 300, ImagePath: "frame_0001.jpg"},
			},
		},
	}

	if err := media.SaveJSON(path, &original); err != nil {
		t.Fatalf("SaveJSON failed: %v", err)
	}

	var loaded media.UnifiedTranscript
	if err := media.LoadJSON(path, &loaded); err != nil {
		t.Fatalf("LoadJSON failed: %v", err)
	}

	if len(loaded.Chapters) != 2 {
		t.Fatalf("expected 2 chapters, got %d", len(loaded.Chapters))
	}
	if !loaded.Chapters[1].OpenEnded() {
		t.Fatalf("expected final chapter to stay open-ended, got end %g", loaded.Chapters[1].End)
	}
	if loaded.Chapters[0].End != 300 {
		t.Fatalf("expected bounded chapter end 300, got %g", loaded.Chapters[0].End)
	}
	if loaded.Metadata.SourceFile != "lecture.mp4" {
		t.Fatalf("unexpected metadata: %+v", loaded.Metadata)
	}
}
