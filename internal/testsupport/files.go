package testsupport

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates path, and any missing parent directories, with exactly
// size bytes of filler content. Sizes below one still produce a one-byte file
// so callers always have something real to stat.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size < 1 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	if _, err := io.CopyN(f, filler{}, size); err != nil {
		f.Close()
		t.Fatalf("fill %s: %v", path, err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close %s: %v", path, err)
	}
}

// filler is an endless reader of a printable byte, so fixture files stay
// inspectable when a test leaves them on disk.
type filler struct{}

func (filler) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 'x'
	}
	return len(p), nil
}
