package tesseract_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"lectern/internal/config"
	"lectern/internal/services/tesseract"
)

func TestRecognizeImageTrimsOutput(t *testing.T) {
	svc := tesseract.NewService(config.OCR{
		Binary:    "tesseract",
		Languages: []string{"eng", "deu"},
	})

	var gotName string
	var gotArgs []string
	svc.WithCommandRunner(func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotName = name
		gotArgs = args
		return []byte("\nSlide 3: Sorting Algorithms\n\n"), nil
	})

	text, err := svc.RecognizeImage(context.Background(), "/frames/frame_00003.png")
	if err != nil {
		t.Fatalf("RecognizeImage failed: %v", err)
	}
	if text != "Slide 3: Sorting Algorithms" {
		t.Errorf("text = %q", text)
	}
	if gotName != "tesseract" {
		t.Errorf("binary = %q", gotName)
	}
	joined := strings.Join(gotArgs, " ")
	for _, want := range []string{"/frames/frame_00003.png", "stdout", "-l eng+deu"} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %s", want, joined)
		}
	}
}

func TestRecognizeImageDefaultsLanguage(t *testing.T) {
	svc := tesseract.NewService(config.OCR{})
	svc.WithCommandRunner(func(_ context.Context, _ string, args ...string) ([]byte, error) {
		if !strings.Contains(strings.Join(args, " "), "-l eng") {
			t.Errorf("default language missing: %v", args)
		}
		return []byte(""), nil
	})

	text, err := svc.RecognizeImage(context.Background(), "/frames/frame_00001.png")
	if err != nil {
		t.Fatalf("RecognizeImage failed: %v", err)
	}
	if text != "" {
		t.Errorf("text = %q, want empty", text)
	}
}

func TestRecognizeImagePropagatesFailure(t *testing.T) {
	svc := tesseract.NewService(config.OCR{})
	svc.WithCommandRunner(func(_ context.Context, _ string, _ ...string) ([]byte, error) {
		return nil, errors.New("exit status 1")
	})

	if _, err := svc.RecognizeImage(context.Background(), "/frames/frame_00001.png"); err == nil {
		t.Fatal("expected error from failed command")
	}
}

func TestRecognizeImageRequiresPath(t *testing.T) {
	svc := tesseract.NewService(config.OCR{})
	if _, err := svc.RecognizeImage(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty image path")
	}
}
