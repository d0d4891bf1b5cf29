// Package integrate implements the timestamp integration engine: a
// pure, deterministic merge of the key-frame stream and the speech
// segment stream into an ordered chapter sequence.
package integrate

import (
	"math"
	"strings"

	"lectern/internal/media"
	"lectern/internal/services"
)

// Integrate maps ordered frames and ordered speech segments to the
// ordered chapter sequence. Chapter i spans
// [frames[i].Timestamp, frames[i+1].Timestamp); the final chapter is
// open-ended. A segment belongs to the chapter whose interval contains
// its start time; segments are never split across chapters. Segments
// starting before the first frame clamp into chapter 0.
//
// Both inputs are consumed with a single forward scan, O(frames +
// segments). Frames sharing a timestamp violate the extractor
// contract; the first occurrence keeps the interval up to the next
// distinct timestamp and later duplicates become zero-length empty
// chapters.
func Integrate(frames []media.FrameRecord, segments []media.SpeechSegment) ([]media.Chapter, error) {
	if len(frames) == 0 {
		return nil, services.Wrap(services.ErrIntegration, "integrate", "build chapters",
			"no key frames extracted", services.ErrEmptyInput)
	}

	chapters := make([]media.Chapter, len(frames))
	for i := 0; i < len(frames); {
		j := i + 1
		for j < len(frames) && frames[j].Timestamp == frames[i].Timestamp {
			j++
		}
		end := math.Inf(1)
		if j < len(frames) {
			end = frames[j].Timestamp
		}
		chapters[i] = media.Chapter{
			Index: i,
			Start: frames[i].Timestamp,
			End:   end,
			Frame: frames[i],
		}
		for k := i + 1; k < j; k++ {
			chapters[k] = media.Chapter{
				Index: k,
				Start: frames[k].Timestamp,
				End:   frames[k].Timestamp,
				Frame: frames[k],
			}
		}
		i = j
	}

	// Two-pointer assignment: the segment cursor only moves forward, so
	// each segment lands in exactly one chapter. Zero-length duplicate
	// chapters can never satisfy the bound and stay empty.
	seg := 0
	for i := range chapters {
		for seg < len(segments) && segments[seg].Start < chapters[i].End {
			chapters[i].SpeechSegments = append(chapters[i].SpeechSegments, segments[seg])
			seg++
		}
	}

	for i := range chapters {
		chapters[i].SpeechText = joinSegments(chapters[i].SpeechSegments)
	}

	return chapters, nil
}

func joinSegments(segments []media.SpeechSegment) string {
	if len(segments) == 0 {
		return ""
	}
	texts := make([]string, 0, len(segments))
	for _, segment := range segments {
		if text := strings.TrimSpace(segment.Text); text != "" {
			texts = append(texts, text)
		}
	}
	return strings.Join(texts, " ")
}
