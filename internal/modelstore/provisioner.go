// Package modelstore makes sure the background-removal model is present on
// disk, downloading it from a chunked manifest when it is missing.
package modelstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/zeebo/blake3"

	"pixora/internal/events"
	"pixora/internal/fileutil"
	"pixora/internal/logging"
	"pixora/internal/services"
)

const (
	defaultDownloadTimeout = 10 * time.Minute
	lockRetryDelay         = 250 * time.Millisecond
	digestSuffix           = ".blake3"
	maxManifestBytes       = 4 << 20
)

// Options configures a Provisioner.
type Options struct {
	Path     string
	BaseURL  string
	Key      string
	Timeout  time.Duration
	Client   *http.Client
	Observer events.Observer
	Logger   *slog.Logger
}

// Provisioner resolves the model file, downloading it once when absent.
type Provisioner struct {
	path        string
	baseURL     string
	key         string
	client      *http.Client
	observer    events.Observer
	logger      *slog.Logger
	mu          sync.Mutex
	downloading atomic.Bool
}

// Status describes the model file on disk.
type Status struct {
	Path        string    `json:"path"`
	Present     bool      `json:"present"`
	SizeBytes   int64     `json:"sizeBytes"`
	ModTime     time.Time `json:"modTime,omitzero"`
	Digest      string    `json:"digest,omitempty"`
	Downloading bool      `json:"downloading"`
}

// New constructs a Provisioner.
func New(opts Options) *Provisioner {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultDownloadTimeout
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	observer := opts.Observer
	if observer == nil {
		observer = events.Nop{}
	}
	baseURL := strings.TrimSpace(opts.BaseURL)
	if baseURL != "" && !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Provisioner{
		path:     filepath.Clean(opts.Path),
		baseURL:  baseURL,
		key:      opts.Key,
		client:   client,
		observer: observer,
		logger:   logging.NewComponentLogger(opts.Logger, "modelstore"),
	}
}

// Path returns the canonical model location.
func (p *Provisioner) Path() string {
	return p.path
}

// Exists reports whether the model file is present.
func (p *Provisioner) Exists() bool {
	info, err := os.Stat(p.path)
	return err == nil && info.Mode().IsRegular()
}

// Status reports the model file state without downloading anything.
func (p *Provisioner) Status() (Status, error) {
	st := Status{Path: p.path, Downloading: p.downloading.Load()}
	info, err := os.Stat(p.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return st, nil
		}
		return st, services.Wrap(services.ErrIO, "modelstore", "status", "stat model", err)
	}
	st.Present = true
	st.SizeBytes = info.Size()
	st.ModTime = info.ModTime().UTC()
	if data, err := os.ReadFile(p.path + digestSuffix); err == nil {
		st.Digest = strings.TrimSpace(string(data))
	}
	return st, nil
}

// Ensure returns the model path, downloading the model first when it is
// missing. Concurrent callers in this process wait for a single download;
// other processes are excluded through a lock file beside the model.
func (p *Provisioner) Ensure(ctx context.Context) (string, error) {
	if p.Exists() {
		return p.path, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Exists() {
		return p.path, nil
	}

	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return "", services.Wrap(services.ErrIO, "modelstore", "prepare", "create model directory", err)
	}
	lock := flock.New(p.path + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return "", services.Wrap(services.ErrIO, "modelstore", "lock", "acquire download lock", err)
	}
	if !locked {
		return "", services.Wrap(services.ErrIO, "modelstore", "lock", "download lock unavailable", nil)
	}
	defer func() { _ = lock.Unlock() }()

	// Another process may have finished while we waited on the lock.
	if p.Exists() {
		return p.path, nil
	}

	p.downloading.Store(true)
	defer p.downloading.Store(false)

	p.observer.Emit(events.ModelDownloading, true)
	start := time.Now()
	p.logger.Info("downloading background removal model",
		logging.String("path", p.path),
		logging.String("key", p.key),
		logging.String(logging.FieldEventType, "model_download_started"),
	)

	digest, size, err := p.download(ctx)
	if err != nil {
		logging.ErrorWithContext(p.logger, "model download failed", "model_download_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check network access or model.base_url"),
		)
		return "", err
	}

	if err := fileutil.WriteFileAtomic(p.path+digestSuffix, []byte(digest+"\n"), 0o644); err != nil {
		logging.WarnWithContext(p.logger, "model digest not recorded", "model_digest_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "model status will not show a digest"),
		)
	}

	p.observer.Emit(events.ModelDownloaded, true)
	p.logger.Info("background removal model ready",
		logging.String("path", p.path),
		logging.Int64("bytes", size),
		logging.Duration("elapsed", time.Since(start)),
		logging.String(logging.FieldEventType, "model_download_completed"),
	)
	return p.path, nil
}

func (p *Provisioner) download(ctx context.Context) (string, int64, error) {
	manifestData, err := p.fetch(ctx, p.baseURL+"resources.json", maxManifestBytes)
	if err != nil {
		return "", 0, err
	}
	manifest, err := ParseManifest(manifestData)
	if err != nil {
		return "", 0, err
	}
	resource, err := manifest.Lookup(p.key)
	if err != nil {
		return "", 0, err
	}

	hasher := blake3.New()
	var total int64
	err = fileutil.WriteAtomic(p.path, 0o644, func(w io.Writer) error {
		out := io.MultiWriter(w, hasher)
		for i, chunk := range resource.Chunks {
			want, err := chunk.Len()
			if err != nil {
				return err
			}
			data, err := p.fetch(ctx, p.baseURL+chunk.Name, want+1)
			if err != nil {
				return err
			}
			if int64(len(data)) != want {
				return services.Wrap(services.ErrIntegrity, "modelstore", "download",
					fmt.Sprintf("chunk %d (%s) is %d bytes, manifest says %d", i, chunk.Name, len(data), want), nil)
			}
			if _, err := out.Write(data); err != nil {
				return services.Wrap(services.ErrIO, "modelstore", "download", "write chunk", err)
			}
			total += want
			p.logger.Debug("model chunk fetched",
				logging.Int("index", i),
				logging.Int("chunks", len(resource.Chunks)),
				logging.Int64("bytes", want),
			)
		}
		if total != resource.Size {
			return services.Wrap(services.ErrIntegrity, "modelstore", "download",
				fmt.Sprintf("assembled %d bytes, manifest says %d", total, resource.Size), nil)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, services.ErrIntegrity) || errors.Is(err, services.ErrIO) {
			return "", 0, err
		}
		return "", 0, services.Wrap(services.ErrIO, "modelstore", "download", "write model", err)
	}
	return fmt.Sprintf("%x", hasher.Sum(nil)), total, nil
}

// fetch GETs url and returns at most limit bytes of its body.
func (p *Provisioner) fetch(ctx context.Context, url string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrIO, "modelstore", "fetch", url, err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrIO, "modelstore", "fetch", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrIO, "modelstore", "fetch", fmt.Sprintf("%s: unexpected status %d", url, resp.StatusCode), nil)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, services.Wrap(services.ErrIO, "modelstore", "fetch", url, err)
	}
	return data, nil
}
