// Package artifacts tracks the temporary files produced by the pipeline.
//
// Only paths registered here can be read back, persisted or exported, which
// keeps the HTTP API from becoming a general file reader. All bookkeeping runs
// under one poison-aware lock so a write-then-register sequence can never
// interleave with a deletion sweep.
package artifacts

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"pixora/internal/fileutil"
	"pixora/internal/imaging"
	"pixora/internal/logging"
	"pixora/internal/services"
)

// Artifact is a tracked temporary file.
type Artifact struct {
	Path      string    `json:"path"`
	SizeBytes int64     `json:"sizeBytes"`
	CreatedAt time.Time `json:"createdAt"`
}

// Registry owns the set of tracked artifact paths.
type Registry struct {
	dir     string
	pid     int
	counter atomic.Uint64
	lock    *services.Mutex
	entries map[string]Artifact
	logger  *slog.Logger
}

// NewRegistry returns an empty registry writing into dir.
func NewRegistry(dir string, logger *slog.Logger) *Registry {
	return &Registry{
		dir:     filepath.Clean(dir),
		pid:     os.Getpid(),
		lock:    services.NewMutex("artifact registry"),
		entries: make(map[string]Artifact),
		logger:  logging.NewComponentLogger(logger, "artifacts"),
	}
}

// Dir returns the directory artifacts are written to.
func (r *Registry) Dir() string {
	return r.dir
}

// Prefix returns the file name prefix owned by this process.
func (r *Registry) Prefix() string {
	return fmt.Sprintf("%d-", r.pid)
}

// nextPath allocates a fresh "{pid}-{counter}.{ext}" path.
func (r *Registry) nextPath(ext string) string {
	n := r.counter.Add(1) - 1
	return filepath.Join(r.dir, fmt.Sprintf("%d-%d.%s", r.pid, n, ext))
}

// Create writes data to a new artifact path and registers it.
func (r *Registry) Create(format imaging.Format, data []byte) (Artifact, error) {
	var art Artifact
	err := r.lock.Do(func() error {
		path := r.nextPath(format.Extension())
		if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
			return services.Wrap(services.ErrIO, "artifacts", "create", path, err)
		}
		art = Artifact{Path: path, SizeBytes: int64(len(data)), CreatedAt: time.Now().UTC()}
		r.entries[path] = art
		return nil
	})
	if err != nil {
		return Artifact{}, err
	}
	r.logger.Debug("artifact created",
		logging.String(logging.FieldArtifact, art.Path),
		logging.Int64("bytes", art.SizeBytes),
	)
	return art, nil
}

// Register tracks an existing file. Registering a tracked path is a no-op.
func (r *Registry) Register(path string) error {
	key := filepath.Clean(path)
	return r.lock.Do(func() error {
		if _, ok := r.entries[key]; ok {
			return nil
		}
		info, err := os.Stat(key)
		if err != nil {
			return services.Wrap(services.ErrIO, "artifacts", "register", key, err)
		}
		r.entries[key] = Artifact{Path: key, SizeBytes: info.Size(), CreatedAt: info.ModTime().UTC()}
		return nil
	})
}

// Tracked reports whether path is registered.
func (r *Registry) Tracked(path string) bool {
	key := filepath.Clean(path)
	tracked := false
	_ = r.lock.Do(func() error {
		_, tracked = r.entries[key]
		return nil
	})
	return tracked
}

// Lookup returns the tracked artifact for path or ErrUntracked.
func (r *Registry) Lookup(path string) (Artifact, error) {
	key := filepath.Clean(path)
	var art Artifact
	err := r.lock.Do(func() error {
		var ok bool
		art, ok = r.entries[key]
		if !ok {
			return services.Wrap(services.ErrUntracked, "artifacts", "lookup", key, nil)
		}
		return nil
	})
	return art, err
}

// Read returns the bytes of a tracked artifact.
func (r *Registry) Read(path string) ([]byte, error) {
	art, err := r.Lookup(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(art.Path)
	if err != nil {
		return nil, services.Wrap(services.ErrIO, "artifacts", "read", art.Path, err)
	}
	return data, nil
}

// ReadDataURL returns a tracked artifact as a data URL. The MIME type follows
// the file extension and defaults to jpeg.
func (r *Registry) ReadDataURL(path string) (string, error) {
	data, err := r.Read(path)
	if err != nil {
		return "", err
	}
	format, _ := imaging.FormatFromExtension(filepath.Ext(path))
	return imaging.FormatDataURL(data, format), nil
}

// Delete untracks the given paths and removes their files. Paths that are not
// tracked are ignored and files already gone are not an error. It returns the
// number of entries removed from the registry.
func (r *Registry) Delete(paths []string) (int, error) {
	targets := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		targets[filepath.Clean(p)] = struct{}{}
	}
	removed := 0
	err := r.lock.Do(func() error {
		for key := range targets {
			if _, ok := r.entries[key]; !ok {
				continue
			}
			delete(r.entries, key)
			removed++
			r.removeFile(key)
		}
		return nil
	})
	return removed, err
}

// DeleteAll untracks everything and removes the artifact directory with
// whatever it contains. A directory that is already gone is not an error.
func (r *Registry) DeleteAll() error {
	return r.lock.Do(func() error {
		clear(r.entries)
		if err := os.RemoveAll(r.dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return services.Wrap(services.ErrIO, "artifacts", "delete all", r.dir, err)
		}
		return nil
	})
}

func (r *Registry) removeFile(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.WarnWithContext(r.logger, "artifact delete failed", "artifact_delete_failed",
			logging.String(logging.FieldArtifact, path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on paths.temp_dir"),
			logging.String(logging.FieldImpact, "file remains until the stale sweep removes it"),
		)
	}
}

// List returns tracked artifacts, oldest first.
func (r *Registry) List() []Artifact {
	var out []Artifact
	_ = r.lock.Do(func() error {
		out = make([]Artifact, 0, len(r.entries))
		for _, art := range r.entries {
			out = append(out, art)
		}
		return nil
	})
	slices.SortFunc(out, func(a, b Artifact) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Path, b.Path)
	})
	return out
}

// Len returns the number of tracked artifacts.
func (r *Registry) Len() int {
	n := 0
	_ = r.lock.Do(func() error {
		n = len(r.entries)
		return nil
	})
	return n
}

// Persist copies a tracked artifact to dest and verifies the copy.
func (r *Registry) Persist(path, dest string) (int64, error) {
	art, err := r.Lookup(path)
	if err != nil {
		return 0, err
	}
	dest = strings.TrimSpace(dest)
	if dest == "" {
		return 0, services.Wrap(services.ErrValidation, "artifacts", "persist", "destination is required", nil)
	}
	if err := fileutil.CopyFileVerified(art.Path, dest); err != nil {
		return 0, services.Wrap(services.ErrIO, "artifacts", "persist", dest, err)
	}
	info, err := os.Stat(dest)
	if err != nil {
		return 0, services.Wrap(services.ErrIO, "artifacts", "persist", dest, err)
	}
	r.logger.Info("artifact saved",
		logging.String(logging.FieldArtifact, art.Path),
		logging.String("destination", dest),
		logging.Int64("bytes", info.Size()),
		logging.String(logging.FieldEventType, "artifact_persisted"),
	)
	return info.Size(), nil
}
