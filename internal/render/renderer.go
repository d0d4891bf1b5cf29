// Package render implements the generate_output pipeline stage: it
// turns the summarized transcript into a standalone HTML study
// document with the key frame images copied alongside.
package render

import (
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"

	"log/slog"

	"lectern/internal/config"
	"lectern/internal/jobs"
	"lectern/internal/logging"
	"lectern/internal/media"
	"lectern/internal/services"
	"lectern/internal/stage"
)

//go:embed document.tmpl
var documentTemplate string

// Renderer handles the generate_output stage.
type Renderer struct {
	cfg    *config.Config
	logger *slog.Logger
	tmpl   *template.Template
}

// NewRenderer constructs the generate_output stage handler.
func NewRenderer(cfg *config.Config, logger *slog.Logger) *Renderer {
	return &Renderer{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "renderer"),
		tmpl:   template.Must(template.New("document").Parse(documentTemplate)),
	}
}

// chapterView is the template-facing projection of one chapter.
type chapterView struct {
	Index      int
	Label      string
	Start      string
	End        string
	ImageRef   string
	OCRText    string
	SpeechText string
	Summary    string
}

type documentView struct {
	Title      string
	Duration   string
	Transcript *media.UnifiedTranscript
	Chapters   []chapterView
}

func (r *Renderer) Prepare(ctx context.Context, job *jobs.Job) error {
	if job.Artifacts.SummaryPath == "" {
		return services.Wrap(services.ErrValidation, "generate_output", "validate inputs", "no summarized transcript present; summarize must complete first", nil)
	}
	if err := os.MkdirAll(r.cfg.Paths.OutputDir, 0o755); err != nil {
		return services.Wrap(services.ErrRender, "generate_output", "ensure output directory", "cannot create output directory; check output_dir permissions", err)
	}
	return nil
}

func (r *Renderer) Execute(ctx context.Context, job *jobs.Job) error {
	logger := logging.WithContext(ctx, r.logger)

	var transcript media.UnifiedTranscript
	if err := media.LoadJSON(job.Artifacts.SummaryPath, &transcript); err != nil {
		return services.Wrap(services.ErrRender, "generate_output", "load transcript", "cannot read summarized transcript", err)
	}

	baseName := job.OutputBaseName()
	outPath := filepath.Join(r.cfg.Paths.OutputDir, baseName+".html")
	assetsDir := filepath.Join(r.cfg.Paths.OutputDir, baseName+"_files")

	view, err := r.buildView(job, &transcript, assetsDir)
	if err != nil {
		return err
	}

	out, err := os.Create(outPath)
	if err != nil {
		return services.Wrap(services.ErrRender, "generate_output", "create document", "cannot write output document; check output_dir permissions", err)
	}
	defer out.Close()
	if err := r.tmpl.Execute(out, view); err != nil {
		return services.Wrap(services.ErrRender, "generate_output", "render document", "template execution failed", err)
	}

	job.Artifacts.OutputPath = outPath
	logger.Info("study document rendered",
		logging.Int("chapters", len(transcript.Chapters)),
		logging.String("output", outPath))
	return nil
}

func (r *Renderer) buildView(job *jobs.Job, transcript *media.UnifiedTranscript, assetsDir string) (*documentView, error) {
	title := job.Title
	if title == "" {
		title = jobs.InferTitle(job.SourcePath)
	}

	chapters := make([]chapterView, 0, len(transcript.Chapters))
	for _, chapter := range transcript.Chapters {
		view := chapterView{
			Index:      chapter.Index,
			Label:      fmt.Sprintf("Chapter %d", chapter.Index+1),
			Start:      chapter.Display(),
			OCRText:    chapter.Frame.OCRText,
			SpeechText: chapter.SpeechText,
			Summary:    chapter.Summary,
		}
		if !chapter.OpenEnded() {
			view.End = media.FormatTimestamp(chapter.End)
		}
		if ref, err := copyFrameImage(chapter.Frame.ImagePath, assetsDir); err != nil {
			return nil, services.Wrap(services.ErrRender, "generate_output", "copy frame image", "cannot copy key frame into output assets", err)
		} else if ref != "" {
			view.ImageRef = filepath.ToSlash(filepath.Join(filepath.Base(assetsDir), ref))
		}
		chapters = append(chapters, view)
	}

	view := &documentView{
		Title:      title,
		Transcript: transcript,
		Chapters:   chapters,
	}
	if transcript.Metadata.Duration > 0 {
		view.Duration = media.FormatTimestamp(transcript.Metadata.Duration)
	}
	return view, nil
}

// copyFrameImage copies a staged frame into the document assets
// directory and returns the file name. A missing source image is not an
// error: the document simply omits the figure.
func copyFrameImage(imagePath, assetsDir string) (string, error) {
	if imagePath == "" {
		return "", nil
	}
	src, err := os.Open(imagePath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	defer src.Close()

	if err := os.MkdirAll(assetsDir, 0o755); err != nil {
		return "", err
	}
	name := filepath.Base(imagePath)
	dst, err := os.Create(filepath.Join(assetsDir, name))
	if err != nil {
		return "", err
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return "", err
	}
	return name, nil
}

func (r *Renderer) HealthCheck(ctx context.Context) stage.Health {
	if err := os.MkdirAll(r.cfg.Paths.OutputDir, 0o755); err != nil {
		return stage.Unhealthy("renderer", "output directory not writable: "+err.Error())
	}
	return stage.Healthy("renderer")
}
