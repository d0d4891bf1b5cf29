package jobs

import (
	"path/filepath"
	"strings"

	"lectern/internal/textutil"
)

// WorkspaceRoot returns the per-job staging directory rooted at base.
// Job IDs are UUIDs, so the segment needs no sanitization.
func (j *Job) WorkspaceRoot(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return ""
	}
	return filepath.Join(base, j.ID)
}

// OutputBaseName returns the filesystem-safe stem used for rendered
// documents, derived from the job title.
func (j *Job) OutputBaseName() string {
	name := textutil.SanitizeFileName(j.Title)
	if name == "" {
		name = j.ID
	}
	return strings.ReplaceAll(name, " ", "-")
}

// InferTitle derives a display title from a video filename: the
// extension is dropped and separator characters become spaces.
func InferTitle(sourcePath string) string {
	base := filepath.Base(sourcePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	replacer := strings.NewReplacer("_", " ", ".", " ")
	title := replacer.Replace(stem)
	return strings.Join(strings.Fields(title), " ")
}
