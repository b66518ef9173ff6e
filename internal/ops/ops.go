package ops

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cptkit/cptconv/internal/config"
	"github.com/cptkit/cptconv/internal/convert"
	"github.com/cptkit/cptconv/internal/errors"
)

// MaxInputBytes caps the size of a document an operation reads.
const MaxInputBytes = 64 << 20

// newConversionID returns a ULID identifying one operation in the logs and
// its result.
func newConversionID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// readDocument validates and reads an input document.
func readDocument(path string, cfg *config.Config) ([]byte, error) {
	if err := ValidatePath(path, PathCheckRead, cfg); err != nil {
		return nil, err
	}
	f, err := openFileNoFollowRead(path)
	if err != nil {
		if _, ok := errors.As(err); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open %s: %w", path, err))
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxInputBytes+1))
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to read %s: %w", path, err))
	}
	if len(data) > MaxInputBytes {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("%s exceeds %d bytes", path, MaxInputBytes))
	}
	return data, nil
}

// writeFileAtomic validates path and writes data through a temp file and a
// rename, so a failed write never leaves partial output or clobbers an
// existing file.
func writeFileAtomic(path string, data []byte, cfg *config.Config) error {
	if err := ValidatePath(path, PathCheckWrite, cfg); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create output directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create output file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := file.Write(data); err != nil {
		return errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return errors.NewInternal(err)
	}
	// Close before rename (required on Windows)
	if err := file.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to close output file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlinked destination
	if isSymlink(path) {
		return errors.NewInvalidRequest("output path is a symlink")
	}

	// On Windows os.Rename fails when the destination exists; the existing file is kept.
	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(path); statErr == nil {
				return errors.NewInvalidRequest("output already exists; overwriting is not supported on Windows")
			}
		}
		return errors.NewInternal(fmt.Errorf("failed to finalize output: %w", err))
	}

	success = true
	return nil
}

// formatFromPath infers a document format from the file extension.
func formatFromPath(path string) (convert.Format, error) {
	f, ok := convert.ParseFormat(filepath.Ext(path))
	if !ok {
		return "", errors.NewInvalidRequest(fmt.Sprintf("cannot infer format of %s; use a .gef or .xml extension or name the format", path))
	}
	return f, nil
}

// resolveFormat returns the named format, or infers it from path when empty.
func resolveFormat(named convert.Format, path string) (convert.Format, error) {
	if named == "" {
		return formatFromPath(path)
	}
	f, ok := convert.ParseFormat(string(named))
	if !ok {
		return "", errors.NewUnsupportedConversion(string(named), "")
	}
	return f, nil
}

// opposite returns the other supported format.
func opposite(f convert.Format) convert.Format {
	if f == convert.FormatGEF {
		return convert.FormatXML
	}
	return convert.FormatGEF
}

// outputPath places the converted file next to the input, or in outDir when
// set, with the target extension.
func outputPath(in, outDir string, target convert.Format) string {
	dir := outDir
	if dir == "" {
		dir = filepath.Dir(in)
	}
	stem := SanitizeForFilename(strings.TrimSuffix(filepath.Base(in), filepath.Ext(in)))
	return filepath.Join(dir, stem+"."+string(target))
}
