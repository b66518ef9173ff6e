package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/cptkit/cptconv/internal/config"
	"github.com/cptkit/cptconv/internal/errors"
)

// PathCheckMode indicates whether the path check is for reading or writing.
type PathCheckMode int

const (
	PathCheckRead  PathCheckMode = iota // input documents
	PathCheckWrite                      // converted output and reports
)

// AllowedExtensions lists the file extensions ValidatePath accepts.
var AllowedExtensions = []string{".gef", ".xml", ".md", ".html", ".json", ".yaml"}

// ValidatePath checks a path an operation is about to read or write:
//  1. no ".." components
//  2. extension in AllowedExtensions
//  3. when allowed_paths is set (and allow_unsafe_paths is not), the file
//     must sit DIRECTLY in one of those directories, not in a subdirectory
//  4. neither the file nor its parent directory is a symlink
//
// Requiring the file to be directly in an allowed directory leaves no
// intermediate component to swap between validation and open; O_NOFOLLOW
// covers the final component.
func ValidatePath(path string, mode PathCheckMode, cfg *config.Config) error {
	if path == "" {
		return errors.NewInvalidRequest("path is required")
	}
	if containsTraversal(path) {
		return errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}

	cleaned := filepath.Clean(path)
	if !slices.Contains(AllowedExtensions, strings.ToLower(filepath.Ext(cleaned))) {
		return errors.NewInvalidRequest(fmt.Sprintf("path must have one of the extensions %v", AllowedExtensions))
	}

	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}

	restricted := cfg != nil && !cfg.AllowUnsafePaths && len(cfg.AllowedPaths) > 0
	if restricted {
		allowedDirs, err := getAllowedDirs(cfg)
		if err != nil {
			return err
		}
		parentDir := filepath.Dir(absPath)
		if !slices.Contains(allowedDirs, parentDir) {
			return errors.NewInvalidRequest(
				fmt.Sprintf("file must be directly in an allowed directory (no subdirectories); allowed: %v",
					allowedDirs))
		}
		if isSymlink(parentDir) {
			return errors.NewInvalidRequest("parent directory must not be a symlink")
		}
	}

	if mode == PathCheckRead {
		if _, err := os.Stat(absPath); os.IsNotExist(err) {
			return errors.NewFileNotFound(path)
		}
	}

	// Symlinked files are rejected even with allow_unsafe_paths
	if isSymlink(absPath) {
		return errors.NewInvalidRequest("path must not be a symlink")
	}
	return nil
}

func isSymlink(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.Mode()&os.ModeSymlink != 0
}

// getAllowedDirs returns the absolute allowed_paths entries, cleaned, with
// symlinked entries resolved to their targets. Relative entries are ignored.
func getAllowedDirs(cfg *config.Config) ([]string, error) {
	var dirs []string
	for _, p := range cfg.AllowedPaths {
		if !filepath.IsAbs(p) {
			continue
		}
		dir := filepath.Clean(p)
		if isSymlink(dir) {
			resolved, err := filepath.EvalSymlinks(dir)
			if err != nil {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("cannot resolve symlink in allowed path: %v", err))
			}
			dir = resolved
		}
		dirs = append(dirs, dir)
	}
	return dirs, nil
}

// containsTraversal reports whether any path component is "..", splitting on
// both the OS separator and "/".
func containsTraversal(path string) bool {
	split := func(r rune) bool { return r == '/' || r == filepath.Separator }
	return slices.Contains(strings.FieldsFunc(path, split), "..")
}

// SanitizeForFilename turns a survey name into a safe file name stem:
// separators and ".." become dashes, control characters are dropped, runs of
// dashes collapse.
func SanitizeForFilename(s string) string {
	s = strings.NewReplacer("/", "-", "\\", "-", "..", "-").Replace(s)
	s = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	s = strings.Trim(s, "-")
	if s == "" {
		s = "unnamed"
	}
	return s
}
