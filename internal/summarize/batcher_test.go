package summarize_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"lectern/internal/logging"
	"lectern/internal/media"
	"lectern/internal/services"
	"lectern/internal/summarize"
)

type stubCompleter struct {
	mu       sync.Mutex
	calls    []call
	response func(system, user string) string
	err      error
}

type call struct {
	system string
	user   string
}

func (s *stubCompleter) Complete(_ context.Context, system, user string) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, call{system: system, user: user})
	s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	if s.response != nil {
		return s.response(system, user), nil
	}
	return "summary", nil
}

func (s *stubCompleter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func chapterWithSegments(index int, texts ...string) media.Chapter {
	segments := make([]media.SpeechSegment, len(texts))
	for i, text := range texts {
		segments[i] = media.SpeechSegment{Start: float64(i), End: float64(i) + 1, Text: text}
	}
	return media.Chapter{
		Index:          index,
		Start:          0,
		End:            100,
		SpeechSegments: segments,
		SpeechText:     strings.Join(texts, " "),
	}
}

func TestSmallChapterUsesSingleCall(t *testing.T) {
	client := &stubCompleter{}
	batcher := summarize.NewBatcher(client, 1000, logging.NewNop())

	transcript := &media.UnifiedTranscript{
		Chapters: []media.Chapter{chapterWithSegments(0, "short lecture content")},
	}
	report, err := batcher.SummarizeTranscript(context.Background(), transcript)
	if err != nil {
		t.Fatalf("SummarizeTranscript failed: %v", err)
	}
	// One map call for the chapter, one reduce call for the overall summary.
	if report.MapCalls != 1 {
		t.Errorf("map calls = %d, want 1", report.MapCalls)
	}
	if report.ReduceCalls != 1 {
		t.Errorf("reduce calls = %d, want 1", report.ReduceCalls)
	}
	if transcript.Chapters[0].Summary != "summary" {
		t.Errorf("chapter summary = %q", transcript.Chapters[0].Summary)
	}
	if transcript.OverallSummary != "summary" {
		t.Errorf("overall summary = %q", transcript.OverallSummary)
	}
}

func TestOversizedChapterSplitsAtSegmentBoundaries(t *testing.T) {
	// Budget of 25 tokens = 100 characters. Three 60-character segments
	// force three map blocks.
	segment := strings.Repeat("abcde ", 10)
	client := &stubCompleter{response: func(_, _ string) string { return "part" }}
	batcher := summarize.NewBatcher(client, 25, logging.NewNop())

	transcript := &media.UnifiedTranscript{
		Chapters: []media.Chapter{chapterWithSegments(0, segment, segment, segment)},
	}
	report, err := batcher.SummarizeTranscript(context.Background(), transcript)
	if err != nil {
		t.Fatalf("SummarizeTranscript failed: %v", err)
	}
	if report.MapCalls != 3 {
		t.Errorf("map calls = %d, want 3", report.MapCalls)
	}
	// One reduce merging the chapter partials, one for the overall summary.
	if report.ReduceCalls != 2 {
		t.Errorf("reduce calls = %d, want 2", report.ReduceCalls)
	}
	if len(report.Oversized) != 0 {
		t.Errorf("unexpected oversized report: %#v", report.Oversized)
	}

	// Segments must never be split mid-text: every map input contains
	// whole segments only.
	client.mu.Lock()
	defer client.mu.Unlock()
	for _, c := range client.calls[:3] {
		for _, line := range strings.Split(c.user, "\n") {
			if line != strings.TrimSpace(segment) {
				t.Errorf("map input carries a partial segment: %q", line)
			}
		}
	}
}

func TestOversizedSingleSegmentPassedWholeAndReported(t *testing.T) {
	big := strings.Repeat("x", 500) // 125 tokens against a budget of 25
	small := "short remark"
	client := &stubCompleter{response: func(_, _ string) string { return "part" }}
	batcher := summarize.NewBatcher(client, 25, logging.NewNop())

	transcript := &media.UnifiedTranscript{
		Chapters: []media.Chapter{chapterWithSegments(0, small, big)},
	}
	report, err := batcher.SummarizeTranscript(context.Background(), transcript)
	if err != nil {
		t.Fatalf("SummarizeTranscript failed: %v", err)
	}
	if len(report.Oversized) != 1 {
		t.Fatalf("oversized segments = %d, want 1", len(report.Oversized))
	}
	entry := report.Oversized[0]
	if entry.ChapterIndex != 0 || entry.Tokens != 125 {
		t.Errorf("unexpected oversized entry: %#v", entry)
	}

	// The oversized segment goes to the model untruncated.
	client.mu.Lock()
	defer client.mu.Unlock()
	found := false
	for _, c := range client.calls {
		if c.user == big {
			found = true
		}
	}
	if !found {
		t.Error("oversized segment was not passed whole")
	}
}

func TestReduceOverflowFailsWithoutRecursion(t *testing.T) {
	segment := strings.Repeat("abcde ", 10)
	// Partial summaries as large as the blocks guarantee the merged
	// input blows the budget.
	client := &stubCompleter{response: func(_, _ string) string { return strings.Repeat("y", 200) }}
	batcher := summarize.NewBatcher(client, 25, logging.NewNop())

	transcript := &media.UnifiedTranscript{
		Chapters: []media.Chapter{chapterWithSegments(0, segment, segment, segment)},
	}
	_, err := batcher.SummarizeTranscript(context.Background(), transcript)
	if err == nil {
		t.Fatal("expected budget error")
	}
	if !errors.Is(err, services.ErrBudgetExceeded) {
		t.Errorf("error should wrap ErrBudgetExceeded: %v", err)
	}
	// Three map calls and nothing after the failed merge check.
	if client.callCount() != 3 {
		t.Errorf("model calls = %d, want 3 (no recursive reduce)", client.callCount())
	}
}

func TestEmptyChaptersAreSkipped(t *testing.T) {
	client := &stubCompleter{}
	batcher := summarize.NewBatcher(client, 1000, logging.NewNop())

	transcript := &media.UnifiedTranscript{
		Chapters: []media.Chapter{
			{Index: 0, Start: 0, End: 10},
			chapterWithSegments(1, "actual content"),
		},
	}
	report, err := batcher.SummarizeTranscript(context.Background(), transcript)
	if err != nil {
		t.Fatalf("SummarizeTranscript failed: %v", err)
	}
	if report.MapCalls != 1 {
		t.Errorf("map calls = %d, want 1 (empty chapter skipped)", report.MapCalls)
	}
	if transcript.Chapters[0].Summary != "" {
		t.Errorf("empty chapter summary = %q, want empty", transcript.Chapters[0].Summary)
	}
}

func TestModelFailurePropagatesAsSummarizationError(t *testing.T) {
	client := &stubCompleter{err: fmt.Errorf("connection refused")}
	batcher := summarize.NewBatcher(client, 1000, logging.NewNop())

	transcript := &media.UnifiedTranscript{
		Chapters: []media.Chapter{chapterWithSegments(0, "content")},
	}
	_, err := batcher.SummarizeTranscript(context.Background(), transcript)
	if !errors.Is(err, services.ErrSummarization) {
		t.Errorf("error should wrap ErrSummarization: %v", err)
	}
}
