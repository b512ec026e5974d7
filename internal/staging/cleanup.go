// Package staging sweeps the temporary artifact directory for files that an
// earlier process left behind.
package staging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"pixora/internal/logging"
)

// CleanStaleResult contains the outcome of a stale artifact sweep.
type CleanStaleResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a file path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanStale removes artifacts in tempDir that belong to another process and
// are older than maxAge, plus abandoned temporary write files of any owner.
// Files owned by ownPID are never touched.
func CleanStale(ctx context.Context, tempDir string, ownPID int, maxAge time.Duration, logger *slog.Logger) CleanStaleResult {
	result := CleanStaleResult{}

	tempDir = strings.TrimSpace(tempDir)
	if tempDir == "" {
		return result
	}

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: tempDir, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)

	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		pid, isArtifact := ArtifactOwner(name)
		partial := isPartialWrite(name)
		if !isArtifact && !partial {
			continue
		}
		if isArtifact && pid == ownPID {
			continue
		}

		path := filepath.Join(tempDir, name)
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			if logger != nil {
				logger.Warn("failed to remove stale artifact",
					logging.String(logging.FieldArtifact, path),
					logging.Error(err),
					logging.String(logging.FieldEventType, "artifact_sweep_failed"),
					logging.String(logging.FieldErrorHint, "check paths.temp_dir permissions"),
					logging.String(logging.FieldImpact, "disk space not reclaimed"),
				)
			}
			continue
		}
		result.Removed = append(result.Removed, path)
		if logger != nil {
			logger.Debug("removed stale artifact",
				logging.String(logging.FieldArtifact, path),
				logging.Duration("age", time.Since(info.ModTime())),
				logging.String(logging.FieldEventType, "artifact_sweep"),
			)
		}
	}

	if logger != nil && len(result.Removed) > 0 {
		logger.Info("stale artifacts removed",
			logging.Int("count", len(result.Removed)),
			logging.String("dir", tempDir),
			logging.String(logging.FieldEventType, "artifact_sweep"),
		)
	}
	return result
}

// ArtifactOwner parses the owning process id out of a "{pid}-{counter}.{ext}"
// artifact name.
func ArtifactOwner(name string) (int, bool) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	pidPart, counterPart, ok := strings.Cut(stem, "-")
	if !ok || stem == name {
		return 0, false
	}
	pid, err := strconv.Atoi(pidPart)
	if err != nil || pid <= 0 {
		return 0, false
	}
	if _, err := strconv.ParseUint(counterPart, 10, 64); err != nil {
		return 0, false
	}
	return pid, true
}

// isPartialWrite matches the hidden temp files created by atomic writes.
func isPartialWrite(name string) bool {
	return strings.HasPrefix(name, ".") && strings.HasSuffix(name, ".tmp")
}

// Usage summarizes the files currently in the temp directory.
type Usage struct {
	Files int   `json:"files"`
	Bytes int64 `json:"bytes"`
}

// DirUsage counts regular files and their total size in dir. A missing
// directory is reported as empty.
func DirUsage(dir string) (Usage, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return Usage{}, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Usage{}, nil
		}
		return Usage{}, err
	}
	var usage Usage
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		usage.Files++
		usage.Bytes += info.Size()
	}
	return usage, nil
}
