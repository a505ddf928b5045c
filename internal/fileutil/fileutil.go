// Package fileutil handles upload staging and stale-file cleanup.
package fileutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// allowedExtensions is the upload allowlist. Audio formats are sent to
// providers as-is after normalization; mp4 and mkv are accepted because
// ffmpeg extracts their audio track.
var allowedExtensions = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".wav":  true,
	".ogg":  true,
	".webm": true,
	".mp4":  true,
	".mkv":  true,
}

// AllowedExtension reports whether the filename carries a supported media
// extension.
func AllowedExtension(filename string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// AllowedExtensions lists the supported extensions without the leading dot,
// sorted for display.
func AllowedExtensions() []string {
	return []string{"m4a", "mkv", "mp3", "mp4", "ogg", "wav", "webm"}
}

// SafeFilename strips any path components and control characters from an
// uploaded filename, falling back to a generated name when nothing usable
// remains.
func SafeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < 0x20, r == 0x7f, r == '/', r == '\\':
			// dropped
		default:
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" || cleaned == "." || cleaned == ".." {
		return "upload-" + uuid.NewString()
	}
	return cleaned
}

// StagePath builds a collision-free location for an upload under the
// staging directory, keyed by job ID so cleanup can find it later.
func StagePath(stagingDir string, jobID uuid.UUID, filename string) string {
	return filepath.Join(stagingDir, jobID.String()+"-"+SafeFilename(filename))
}

// Stage copies an upload into the staging directory and returns its new
// location.
func Stage(stagingDir string, jobID uuid.UUID, srcPath string) (string, error) {
	dst := StagePath(stagingDir, jobID, filepath.Base(srcPath))

	in, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("create staged file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return "", fmt.Errorf("stage upload: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("stage upload: %w", err)
	}
	return dst, nil
}

// RemoveOlderThan deletes regular files under dir whose modification time is
// before the age cutoff and returns how many were removed. Subdirectories
// are left alone.
func RemoveOlderThan(dir string, age time.Duration) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read directory %q: %w", dir, err)
	}

	cutoff := time.Now().Add(-age)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			return removed, fmt.Errorf("remove %q: %w", entry.Name(), err)
		}
		removed++
	}
	return removed, nil
}
