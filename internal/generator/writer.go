package generator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/mark3labs/ngrx-openapi-gen/internal/emitter"
)

// ErrOutputNotEmpty is returned by WriteFiles when the output directory has
// content and force is not set.
var ErrOutputNotEmpty = errors.New("output directory is not empty")

const fileMode os.FileMode = 0o644

// PlannedFile describes a file the writer intends to write.
type PlannedFile struct {
	RelPath string
	Size    int
	Mode    os.FileMode
}

// Plan lists files in path order without touching the disk.
func Plan(files []emitter.File) []PlannedFile {
	planned := make([]PlannedFile, 0, len(files))
	for _, f := range files {
		planned = append(planned, PlannedFile{RelPath: f.Path, Size: len(f.Content), Mode: fileMode})
	}
	sort.Slice(planned, func(i, j int) bool { return planned[i].RelPath < planned[j].RelPath })
	return planned
}

// WriteFiles writes files under outDir and returns the absolute output root.
// A non-empty outDir is refused unless force is set. Each file is written to
// a temp sibling first and renamed into place.
func WriteFiles(outDir string, files []emitter.File, force bool) (string, error) {
	abs, err := filepath.Abs(outDir)
	if err != nil {
		return "", fmt.Errorf("resolve out dir: %w", err)
	}
	if st, err := os.Stat(abs); err == nil && st.IsDir() && !force {
		entries, rerr := os.ReadDir(abs)
		if rerr == nil && len(entries) > 0 {
			return "", fmt.Errorf("%w: %q (use --force to overwrite)", ErrOutputNotEmpty, abs)
		}
	}
	for _, f := range files {
		p := filepath.Join(abs, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return "", fmt.Errorf("mkdir: %w", err)
		}
		tmp := p + ".tmp-" + time.Now().Format("20060102150405")
		if err := os.WriteFile(tmp, []byte(f.Content), fileMode); err != nil {
			return "", fmt.Errorf("write temp %s: %w", f.Path, err)
		}
		if err := os.Rename(tmp, p); err != nil {
			_ = os.Remove(tmp)
			return "", fmt.Errorf("rename %s: %w", f.Path, err)
		}
	}
	return abs, nil
}
