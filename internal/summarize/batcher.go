// Package summarize produces chapter and document summaries within a
// fixed model input budget using a two-level map-reduce.
package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"lectern/internal/logging"
	"lectern/internal/media"
	"lectern/internal/services"
)

// Completer is the single call the batcher needs from the language
// model client.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// OversizedSegment identifies a speech segment whose text alone exceeds
// the input budget. Such segments are passed to the model whole rather
// than truncated, and surfaced so callers can flag degraded quality.
type OversizedSegment struct {
	ChapterIndex int
	SegmentIndex int
	Tokens       int
}

// Report describes how a transcript was summarized.
type Report struct {
	MapCalls    int
	ReduceCalls int
	Oversized   []OversizedSegment
}

// Batcher splits chapter content into budget-sized blocks and merges
// partial summaries. The map-reduce depth is fixed at two: blocks are
// summarized once, and partial summaries are merged once. If the merged
// partials still exceed the budget, summarization fails rather than
// recursing.
type Batcher struct {
	client Completer
	budget int
	logger *slog.Logger
}

// NewBatcher constructs a Batcher with the given input token budget.
func NewBatcher(client Completer, maxInputTokens int, logger *slog.Logger) *Batcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	if maxInputTokens < 1 {
		maxInputTokens = 1
	}
	return &Batcher{client: client, budget: maxInputTokens, logger: logger}
}

// EstimateTokens approximates the model token count of a text. The
// four-characters-per-token heuristic tracks close enough for budget
// enforcement on English lecture material.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

const (
	chapterSystemPrompt = "You summarize a section of an educational video. " +
		"Write a concise study summary of the key points in 2-4 sentences. " +
		"Use only the provided transcript and slide text."
	mergeSystemPrompt = "You merge partial summaries of one section of an educational video " +
		"into a single coherent summary of 2-4 sentences. Do not add information."
	documentSystemPrompt = "You summarize an educational video from its chapter summaries. " +
		"Write a short overview paragraph of the main topics in order."
)

// SummarizeTranscript fills in every chapter summary and the overall
// document summary in place.
func (b *Batcher) SummarizeTranscript(ctx context.Context, transcript *media.UnifiedTranscript) (Report, error) {
	report := Report{}
	for i := range transcript.Chapters {
		chapter := &transcript.Chapters[i]
		if chapter.Empty() {
			chapter.Summary = ""
			continue
		}
		summary, err := b.summarizeChapter(ctx, chapter, &report)
		if err != nil {
			return report, err
		}
		chapter.Summary = summary
	}

	overall, err := b.summarizeDocument(ctx, transcript, &report)
	if err != nil {
		return report, err
	}
	transcript.OverallSummary = overall
	return report, nil
}

func (b *Batcher) summarizeChapter(ctx context.Context, chapter *media.Chapter, report *Report) (string, error) {
	content := chapter.ContentText()
	if EstimateTokens(content) <= b.budget {
		report.MapCalls++
		summary, err := b.client.Complete(ctx, chapterSystemPrompt, content)
		if err != nil {
			return "", services.Wrap(services.ErrSummarization, "summarize",
				fmt.Sprintf("chapter %d", chapter.Index), "model call failed", err)
		}
		return strings.TrimSpace(summary), nil
	}

	blocks := b.splitBlocks(chapter, report)
	b.logger.Debug("chapter over budget, splitting",
		logging.Int("chapter", chapter.Index),
		logging.Int("blocks", len(blocks)),
		logging.Int("tokens", EstimateTokens(content)),
	)

	partials := make([]string, 0, len(blocks))
	for i, block := range blocks {
		report.MapCalls++
		partial, err := b.client.Complete(ctx, chapterSystemPrompt, block)
		if err != nil {
			return "", services.Wrap(services.ErrSummarization, "summarize",
				fmt.Sprintf("chapter %d block %d", chapter.Index, i), "model call failed", err)
		}
		partials = append(partials, strings.TrimSpace(partial))
	}

	merged := strings.Join(partials, "\n\n")
	if EstimateTokens(merged) > b.budget {
		return "", services.Wrap(services.ErrBudgetExceeded, "summarize",
			fmt.Sprintf("chapter %d", chapter.Index),
			fmt.Sprintf("merged partial summaries estimate %d tokens against a budget of %d",
				EstimateTokens(merged), b.budget), nil)
	}
	report.ReduceCalls++
	summary, err := b.client.Complete(ctx, mergeSystemPrompt, merged)
	if err != nil {
		return "", services.Wrap(services.ErrSummarization, "summarize",
			fmt.Sprintf("chapter %d", chapter.Index), "merge call failed", err)
	}
	return strings.TrimSpace(summary), nil
}

// splitBlocks partitions chapter content into blocks under the budget,
// splitting only at segment boundaries. A single segment over the
// budget becomes its own block, passed whole.
func (b *Batcher) splitBlocks(chapter *media.Chapter, report *Report) []string {
	texts := make([]string, 0, len(chapter.SpeechSegments)+1)
	if ocr := strings.TrimSpace(chapter.Frame.OCRText); ocr != "" {
		texts = append(texts, ocr)
	}
	for _, segment := range chapter.SpeechSegments {
		if text := strings.TrimSpace(segment.Text); text != "" {
			texts = append(texts, text)
		}
	}

	var blocks []string
	var current []string
	currentTokens := 0
	flush := func() {
		if len(current) > 0 {
			blocks = append(blocks, strings.Join(current, "\n"))
			current = nil
			currentTokens = 0
		}
	}

	for i, text := range texts {
		tokens := EstimateTokens(text)
		if tokens > b.budget {
			flush()
			blocks = append(blocks, text)
			report.Oversized = append(report.Oversized, OversizedSegment{
				ChapterIndex: chapter.Index,
				SegmentIndex: i,
				Tokens:       tokens,
			})
			b.logger.Warn("segment exceeds input budget, passing whole",
				logging.Int("chapter", chapter.Index),
				logging.Int("segment", i),
				logging.Int("tokens", tokens),
			)
			continue
		}
		if currentTokens+tokens > b.budget {
			flush()
		}
		current = append(current, text)
		currentTokens += tokens
	}
	flush()
	return blocks
}

func (b *Batcher) summarizeDocument(ctx context.Context, transcript *media.UnifiedTranscript, report *Report) (string, error) {
	lines := make([]string, 0, len(transcript.Chapters))
	for _, chapter := range transcript.Chapters {
		if summary := strings.TrimSpace(chapter.Summary); summary != "" {
			lines = append(lines, fmt.Sprintf("[%s] %s", chapter.Display(), summary))
		}
	}
	if len(lines) == 0 {
		return "", nil
	}

	input := strings.Join(lines, "\n")
	if EstimateTokens(input) > b.budget {
		return "", services.Wrap(services.ErrBudgetExceeded, "summarize", "overall summary",
			fmt.Sprintf("chapter summaries estimate %d tokens against a budget of %d",
				EstimateTokens(input), b.budget), nil)
	}
	report.ReduceCalls++
	summary, err := b.client.Complete(ctx, documentSystemPrompt, input)
	if err != nil {
		return "", services.Wrap(services.ErrSummarization, "summarize", "overall summary",
			"model call failed", err)
	}
	return strings.TrimSpace(summary), nil
}
