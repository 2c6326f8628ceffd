package platform

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/charmap"
)

// File permissions
const (
	DefaultDirPermissions  = 0755
	DefaultFilePermissions = 0644
)

// Filename constraints
const (
	MaxFilenameLength = 255
	PartFilePrefix    = ".part-"
)

// invalidFilenameChars are rejected by at least one target filesystem
const invalidFilenameChars = `<>:"/\|?*`

// SanitizeFilename replaces characters that are unsafe in file names,
// strips trailing dots, and caps the length
func SanitizeFilename(name string) string {
	sanitized := strings.Map(func(r rune) rune {
		if strings.ContainsRune(invalidFilenameChars, r) {
			return '_'
		}
		return r
	}, name)

	sanitized = strings.TrimRight(sanitized, ".")

	runes := []rune(sanitized)
	if len(runes) > MaxFilenameLength {
		sanitized = string(runes[:MaxFilenameLength])
	}
	return sanitized
}

// FileExists reports whether path points to an existing file or directory
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// CreateDirectoryIfNotExists creates directory if it doesn't exist
func CreateDirectoryIfNotExists(dirPath string) error {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		return os.MkdirAll(dirPath, DefaultDirPermissions)
	}
	return nil
}

// CopyError reports a failure while streaming a body into the temp file. It
// is kept distinct so callers can retry stream interruptions without
// retrying genuine filesystem errors.
type CopyError struct {
	Err error
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("stream to temp file: %v", e.Err)
}

func (e *CopyError) Unwrap() error {
	return e.Err
}

// WriteFileAtomic streams r into a uniquely named temp file next to destPath
// and renames it into place only after the full body is flushed and synced.
// The destination never holds a partial file: on any error the temp file is
// removed and destPath is left untouched.
func WriteFileAtomic(destPath string, r io.Reader) (int64, error) {
	dir := filepath.Dir(destPath)
	if err := CreateDirectoryIfNotExists(dir); err != nil {
		return 0, fmt.Errorf("failed to create destination directory: %w", err)
	}

	tmpPath := filepath.Join(dir, PartFilePrefix+newPartSuffix())
	tmp, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, DefaultFilePermissions)
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}

	written, err := io.Copy(tmp, r)
	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return 0, &CopyError{Err: err}
	}

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to rename temp file: %w", err)
	}
	return written, nil
}

// newPartSuffix returns a unique temp-name component
func newPartSuffix() string {
	id, err := uuid.NewRandom()
	if err != nil {
		// Fallback to timestamp-based suffix
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return id.String()
}

// ReadHTMLFile reads an archive page and returns it as UTF-8. Exports from
// older accounts are windows-1251 encoded, so anything that is not already
// valid UTF-8 goes through the cp1251 decoder.
func ReadHTMLFile(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read page: %w", err)
	}

	if utf8.Valid(raw) {
		return string(raw), nil
	}

	decoded, err := charmap.Windows1251.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("failed to decode page %s: %w", path, err)
	}
	return string(decoded), nil
}
