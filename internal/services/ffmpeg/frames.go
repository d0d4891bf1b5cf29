package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"lectern/internal/media"
)

// showinfoPattern pulls the presentation timestamp out of ffmpeg
// showinfo filter log lines.
var showinfoPattern = regexp.MustCompile(`Parsed_showinfo.*\bn:\s*(\d+)\b.*\bpts_time:\s*([0-9]+(?:\.[0-9]+)?)`)

// ProbeDuration returns the container duration of a media file in seconds.
func (s *Service) ProbeDuration(ctx context.Context, source string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		source,
	}
	output, err := s.run(ctx, s.ffprobeBinary(), args...)
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w", err)
	}
	value := strings.TrimSpace(string(output))
	duration, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: parse %q: %w", value, err)
	}
	return duration, nil
}

// ExtractKeyFrames samples scene-change frames from the source video
// into outDir and returns one record per frame, ordered by timestamp.
// The first frame of the video is always included so the chapter
// timeline starts at zero.
func (s *Service) ExtractKeyFrames(ctx context.Context, source, outDir string) ([]media.FrameRecord, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("extract frames: ensure output dir: %w", err)
	}

	threshold := s.cfg.SceneThreshold
	if threshold <= 0 || threshold >= 1 {
		threshold = 0.3
	}

	pattern := filepath.Join(outDir, "frame_%05d.png")
	args := []string{
		"-y",
		"-hide_banner",
		"-i", source,
		"-vf", fmt.Sprintf("select='eq(n,0)+gt(scene,%g)',showinfo", threshold),
		"-fps_mode", "vfr",
		pattern,
	}
	output, err := s.run(ctx, s.ffmpegBinary(), args...)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg extract frames: %w", err)
	}

	frames, err := parseShowinfoFrames(string(output), outDir)
	if err != nil {
		return nil, err
	}
	if max := s.cfg.MaxFrames; max > 0 && len(frames) > max {
		frames = frames[:max]
	}
	return frames, nil
}

// parseShowinfoFrames maps showinfo log lines to frame records. The
// image2 muxer expands the %05d pattern with a 1-based sequence over
// the selected frames, so showinfo's 0-based n counter plus one is the
// written filename. This only holds while the ffmpeg invocation keeps
// default sequential numbering; flags such as -frame_pts would rename
// outputs by timestamp and break the mapping.
func parseShowinfoFrames(log, outDir string) ([]media.FrameRecord, error) {
	var frames []media.FrameRecord
	for _, line := range strings.Split(log, "\n") {
		match := showinfoPattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		index, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		ts, err := strconv.ParseFloat(match[2], 64)
		if err != nil {
			continue
		}
		frames = append(frames, media.FrameRecord{
			Timestamp: ts,
			ImagePath: filepath.Join(outDir, fmt.Sprintf("frame_%05d.png", index+1)),
		})
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("extract frames: no key frames detected in ffmpeg output")
	}
	sort.SliceStable(frames, func(i, j int) bool {
		return frames[i].Timestamp < frames[j].Timestamp
	})
	return frames, nil
}
