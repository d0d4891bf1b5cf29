package media

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// chapterWire mirrors Chapter for JSON, replacing the +Inf End of the
// final chapter with -1 (JSON has no infinity).
type chapterWire struct {
	Index          int             `json:"index"`
	Start          float64         `json:"start"`
	End            float64         `json:"end"`
	Frame          FrameRecord     `json:"frame"`
	SpeechSegments []SpeechSegment `json:"speech_segments"`
	SpeechText     string          `json:"speech_text"`
	Summary        string          `json:"summary"`
}

func (c Chapter) MarshalJSON() ([]byte, error) {
	wire := chapterWire{
		Index:          c.Index,
		Start:          c.Start,
		End:            c.End,
		Frame:          c.Frame,
		SpeechSegments: c.SpeechSegments,
		SpeechText:     c.SpeechText,
		Summary:        c.Summary,
	}
	if math.IsInf(c.End, 1) {
		wire.End = -1
	}
	return json.Marshal(wire)
}

func (c *Chapter) UnmarshalJSON(data []byte) error {
	var wire chapterWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	c.Index = wire.Index
	c.Start = wire.Start
	c.End = wire.End
	c.Frame = wire.Frame
	c.SpeechSegments = wire.SpeechSegments
	c.SpeechText = wire.SpeechText
	c.Summary = wire.Summary
	if wire.End < 0 {
		c.End = math.Inf(1)
	}
	return nil
}

// SaveJSON writes a stage artifact as indented JSON, creating parent
// directories as needed.
func SaveJSON(path string, value any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure artifact directory: %w", err)
	}
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write artifact %s: %w", path, err)
	}
	return nil
}

// LoadJSON reads a stage artifact written by SaveJSON.
func LoadJSON(path string, target any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read artifact %s: %w", path, err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decode artifact %s: %w", path, err)
	}
	return nil
}
