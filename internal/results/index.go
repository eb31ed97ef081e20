package results

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"

	"perfdash/internal/telemetry"
)

// minNameFields is the number of hyphen separated fields a structured result
// filename has at least: year, month, day.time, commit, branch.
const minNameFields = 5

// Layout describes where result files live on disk.
type Layout struct {
	Dir       string
	Extension string
}

// NewLayout returns a Layout, defaulting the extension.
func NewLayout(dir, ext string) Layout {
	if ext == "" {
		ext = DefaultExtension
	}
	return Layout{Dir: dir, Extension: ext}
}

// List returns the result files shown on the landing page. A missing or
// unreadable directory is logged and treated as empty.
func (l Layout) List() []string {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		telemetry.LogError("Failed to read results directory", err, "dir", l.Dir)
		return []string{}
	}

	files := lo.FilterMap(entries, func(e os.DirEntry, _ int) (string, bool) {
		name := e.Name()
		if !strings.HasSuffix(name, l.Extension) || len(strings.Split(name, "-")) < minNameFields {
			return "", false
		}
		if e.IsDir() {
			return "", false
		}
		if e.Type()&os.ModeSymlink != 0 {
			info, err := os.Stat(filepath.Join(l.Dir, name))
			if err != nil || info.IsDir() {
				return "", false
			}
		}
		return name, true
	})
	return files
}

// Names lists and parses the result files, skipping entries that pass the
// listing filter but are not valid structured names.
func (l Layout) Names() []Name {
	return lo.FilterMap(l.List(), func(file string, _ int) (Name, bool) {
		n, err := ParseName(file, l.Extension)
		return n, err == nil
	})
}

// Path returns the on-disk location of a result file.
func (l Layout) Path(n Name) string {
	return filepath.Join(l.Dir, n.File)
}

// Stat reports ErrNotFound unless the result file exists and is a regular file.
func (l Layout) Stat(n Name) error {
	path := l.Path(n)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrNotFound, path)
	}
	return nil
}
