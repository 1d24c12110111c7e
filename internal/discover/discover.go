// Package discover finds source files with a registered extractor in a
// workspace.
package discover

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/sayantanmandal1/function-dependency-warner/internal/lang"
)

// DefaultMaxFileSize is the size above which files are skipped.
const DefaultMaxFileSize = 1 << 20

// ErrTooLarge marks a file skipped for exceeding Options.MaxFileSize.
var ErrTooLarge = errors.New("file too large")

// FileEntry represents a discovered source file.
type FileEntry struct {
	Path     string // Relative to the workspace root, slash-separated
	Language string
	Size     int64
}

// Set is one discovery pass over a workspace.
type Set struct {
	Root  string
	Files []FileEntry
	// Warnings holds *ScanError values for entries that were skipped.
	Warnings []error
}

// Abs returns the absolute path of a file in the set.
func (s *Set) Abs(e FileEntry) string {
	return filepath.Join(s.Root, filepath.FromSlash(e.Path))
}

// ScanError reports a path the walk could not read or chose to skip.
type ScanError struct {
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s: %v", e.Path, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }

// Options controls which files are returned.
type Options struct {
	// Languages restricts results to the named languages. Empty means all.
	Languages []string
	// Exclude holds extra ignore patterns in .gitignore syntax.
	Exclude []string
	// MaxFileSize skips larger files. Zero means DefaultMaxFileSize,
	// negative disables the limit.
	MaxFileSize int64
}

// Lister returns the current workspace file set.
type Lister interface {
	List(ctx context.Context) (*Set, error)
}

// Walker lists files by walking Root on every call.
type Walker struct {
	Root    string
	Options Options
}

// List implements Lister.
func (w *Walker) List(ctx context.Context) (*Set, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Files(w.Root, w.Options)
}

var skipDirs = map[string]struct{}{
	"__pycache__":   {},
	"node_modules":  {},
	".git":          {},
	".hg":           {},
	".svn":          {},
	"venv":          {},
	".venv":         {},
	"env":           {},
	".env":          {},
	"build":         {},
	"dist":          {},
	"out":           {},
	"target":        {},
	".tox":          {},
	".mypy_cache":   {},
	".ruff_cache":   {},
	".pytest_cache": {},
	"egg-info":      {},
}

// Files discovers source files under root. An unreadable root is an error;
// unreadable subtrees and oversized files are skipped and recorded in
// Set.Warnings.
func Files(root string, opts Options) (*Set, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("discover: %s is not a directory", root)
	}

	langSet := make(map[string]struct{}, len(opts.Languages))
	for _, l := range opts.Languages {
		langSet[l] = struct{}{}
	}
	maxSize := opts.MaxFileSize
	if maxSize == 0 {
		maxSize = DefaultMaxFileSize
	}

	gitFiles := gitLsFiles(root)
	var gi *ignore.GitIgnore
	if gitFiles == nil {
		gi = loadGitignore(root)
	}
	var excl *ignore.GitIgnore
	if len(opts.Exclude) > 0 {
		excl = ignore.CompileIgnoreLines(opts.Exclude...)
	}

	set := &Set{Root: root}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			set.Warnings = append(set.Warnings, &ScanError{Path: relSlash(root, path), Err: err})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		name := d.Name()
		rel := relSlash(root, path)

		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if excl != nil && excl.MatchesPath(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") {
			return nil
		}

		// Skip symlinks
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		if gitFiles != nil {
			if _, ok := gitFiles[rel]; !ok {
				return nil
			}
		} else if gi != nil && gi.MatchesPath(rel) {
			return nil
		}
		if excl != nil && excl.MatchesPath(rel) {
			return nil
		}

		langName := lang.ForExtension(filepath.Ext(name))
		if langName == "" {
			return nil
		}
		if len(langSet) > 0 {
			if _, ok := langSet[langName]; !ok {
				return nil
			}
		}

		fi, err := d.Info()
		if err != nil {
			set.Warnings = append(set.Warnings, &ScanError{Path: rel, Err: err})
			return nil
		}
		if maxSize > 0 && fi.Size() > maxSize {
			set.Warnings = append(set.Warnings, &ScanError{
				Path: rel,
				Err:  fmt.Errorf("%w: %d bytes", ErrTooLarge, fi.Size()),
			})
			return nil
		}

		set.Files = append(set.Files, FileEntry{Path: rel, Language: langName, Size: fi.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}

	sort.Slice(set.Files, func(i, j int) bool {
		return set.Files[i].Path < set.Files[j].Path
	})

	return set, nil
}

func relSlash(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func gitLsFiles(root string) map[string]struct{} {
	gitDir := filepath.Join(root, ".git")
	info, err := os.Stat(gitDir)
	if err != nil || !info.IsDir() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	files := make(map[string]struct{})
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			files[line] = struct{}{}
		}
	}
	return files
}

func loadGitignore(root string) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}
