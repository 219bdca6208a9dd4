// internal/logstore/logstore.go - Append-only per-check log files with
// compress-and-rotate support
package logstore

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	logSuffix     = ".log"
	archiveSuffix = ".gz.b64"
)

var (
	// ErrAppendFailed is returned when a log line could not be written.
	// The caller must not assume the entry landed.
	ErrAppendFailed = errors.New("failed to append to log")

	// ErrArchiveExists is returned by Compress when the destination
	// archive already exists. The existing archive is left untouched.
	ErrArchiveExists = errors.New("archive already exists")
)

// LogStore owns a directory of append-only .log files and their rotated
// .gz.b64 archives. A live log file is truncated in place after a
// successful compress, never renamed, so appenders keep writing to the
// same path without interruption.
type LogStore struct {
	baseDir string
}

func NewLogStore(baseDir string) (*LogStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return &LogStore{baseDir: baseDir}, nil
}

// Append writes line plus a trailing newline to the named log file,
// creating the file if it does not exist.
func (l *LogStore) Append(name, line string) error {
	f, err := os.OpenFile(filepath.Join(l.baseDir, name+logSuffix), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAppendFailed, err)
	}

	if _, err := f.WriteString(line + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("%w: %v", ErrAppendFailed, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrAppendFailed, err)
	}
	return nil
}

// List enumerates base-name log identifiers, optionally including
// previously rotated archives.
func (l *LogStore) List(includeCompressed bool) ([]string, error) {
	entries, err := os.ReadDir(l.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read log directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		switch {
		case strings.HasSuffix(name, logSuffix):
			names = append(names, strings.TrimSuffix(name, logSuffix))
		case strings.HasSuffix(name, archiveSuffix) && includeCompressed:
			names = append(names, strings.TrimSuffix(name, archiveSuffix))
		}
	}
	return names, nil
}

// Compress gzips the full contents of the source .log file and writes the
// result base64-encoded to a new archive file. It fails with
// ErrArchiveExists rather than overwrite an archive with the same name.
func (l *LogStore) Compress(logID, archiveID string) error {
	src, err := os.ReadFile(filepath.Join(l.baseDir, logID+logSuffix))
	if err != nil {
		return fmt.Errorf("failed to read log %s: %w", logID, err)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(src); err != nil {
		return fmt.Errorf("failed to compress log %s: %w", logID, err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to compress log %s: %w", logID, err)
	}

	dst, err := os.OpenFile(filepath.Join(l.baseDir, archiveID+archiveSuffix), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return ErrArchiveExists
		}
		return fmt.Errorf("failed to create archive %s: %w", archiveID, err)
	}

	if _, err := dst.WriteString(base64.StdEncoding.EncodeToString(buf.Bytes())); err != nil {
		dst.Close()
		return fmt.Errorf("failed to write archive %s: %w", archiveID, err)
	}
	return dst.Close()
}

// Decompress returns the original contents of a rotated archive. Used for
// audit read-back, not in the steady-state alerting path.
func (l *LogStore) Decompress(archiveID string) (string, error) {
	encoded, err := os.ReadFile(filepath.Join(l.baseDir, archiveID+archiveSuffix))
	if err != nil {
		return "", fmt.Errorf("failed to read archive %s: %w", archiveID, err)
	}

	raw, err := base64.StdEncoding.DecodeString(string(encoded))
	if err != nil {
		return "", fmt.Errorf("failed to decode archive %s: %w", archiveID, err)
	}

	gz, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("failed to decompress archive %s: %w", archiveID, err)
	}
	defer gz.Close()

	var out bytes.Buffer
	if _, err := out.ReadFrom(gz); err != nil {
		return "", fmt.Errorf("failed to decompress archive %s: %w", archiveID, err)
	}
	return out.String(), nil
}

// Truncate zeroes the live log file in place after a successful compress.
func (l *LogStore) Truncate(logID string) error {
	if err := os.Truncate(filepath.Join(l.baseDir, logID+logSuffix), 0); err != nil {
		return fmt.Errorf("failed to truncate log %s: %w", logID, err)
	}
	return nil
}
