package main

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestRenderColumnsPadsShortRows(t *testing.T) {
	out := renderColumns(
		[]column{{title: "ID"}, {title: "Status"}, {title: "Progress", numeric: true}},
		[][]string{
			{"abc12345", "processing", "42%"},
			{"def67890"},
		},
	)
	if !strings.Contains(out, "abc12345") || !strings.Contains(out, "def67890") {
		t.Fatalf("expected both rows in output, got:\n%s", out)
	}
	lines := strings.Split(out, "\n")
	width := utf8.RuneCountInString(lines[0])
	for i, line := range lines {
		if got := utf8.RuneCountInString(line); got != width {
			t.Fatalf("line %d width %d, want %d:\n%s", i, got, width, out)
		}
	}
}

func TestRenderColumnsRightAlignsNumeric(t *testing.T) {
	out := renderColumns(
		[]column{{title: "Progress", numeric: true}},
		[][]string{{"7%"}},
	)
	header := -1
	value := -1
	for _, line := range strings.Split(out, "\n") {
		if idx := strings.Index(line, "Progress"); idx >= 0 {
			header = idx
		}
		if idx := strings.Index(line, "7%"); idx >= 0 {
			value = idx
		}
	}
	if header < 0 || value < 0 {
		t.Fatalf("missing header or value in output:\n%s", out)
	}
	if value <= header {
		t.Fatalf("expected right-aligned value past column %d, got column %d:\n%s", header, value, out)
	}
}

func TestRenderColumnsEmpty(t *testing.T) {
	if out := renderColumns(nil, nil); out != "" {
		t.Fatalf("expected empty output, got %q", out)
	}
}
