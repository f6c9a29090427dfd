package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// FileManager owns the directory where generated note exports are written.
type FileManager struct {
	baseDir   string
	exportDir string
}

func NewFileManager(baseDir string) (*FileManager, error) {
	fm := &FileManager{
		baseDir:   baseDir,
		exportDir: filepath.Join(baseDir, "exports"),
	}

	for _, dir := range []string{fm.baseDir, fm.exportDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir %s: %w", dir, err)
		}
	}

	return fm, nil
}

// ExportPath returns a fresh path for a notes PDF. Parts are sanitized
// so learner and course identities cannot escape the export directory.
func (fm *FileManager) ExportPath(parts ...string) string {
	clean := make([]string, 0, len(parts)+1)
	for _, p := range parts {
		p = strings.Trim(unsafeNameChars.ReplaceAllString(p, "-"), "-.")
		if p != "" {
			clean = append(clean, p)
		}
	}
	clean = append(clean, uuid.NewString())
	return filepath.Join(fm.exportDir, strings.Join(clean, "_")+".pdf")
}

func (fm *FileManager) Remove(path string) {
	if filepath.Dir(path) != fm.exportDir {
		return
	}
	_ = os.Remove(path)
}
