// Package export writes tracked artifacts into a zip archive for the user.
package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"pixora/internal/events"
	"pixora/internal/fileutil"
	"pixora/internal/services"
)

// readAhead bounds how many entries are loaded concurrently.
const readAhead = 4

// Entry pairs a source file with its name inside the archive.
type Entry struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// Summary describes a written archive.
type Summary struct {
	Path    string `json:"path"`
	Entries int    `json:"entries"`
	Bytes   int64  `json:"bytes"`
}

// WriteZip deflates entries into dest in order, emitting a zip-progress event
// after each one. The archive appears at dest only once it is complete.
// Callers are responsible for checking that every entry may be exported.
func WriteZip(ctx context.Context, entries []Entry, dest string, progress events.Observer) (Summary, error) {
	dest = strings.TrimSpace(dest)
	if dest == "" {
		return Summary{}, services.Wrap(services.ErrValidation, "export", "write zip", "destination is required", nil)
	}
	if len(entries) == 0 {
		return Summary{}, services.Wrap(services.ErrValidation, "export", "write zip", "no entries", nil)
	}
	if progress == nil {
		progress = events.Nop{}
	}

	contents, err := loadEntries(ctx, entries)
	if err != nil {
		return Summary{}, err
	}
	names := archiveNames(entries)

	modified := time.Now()
	err = fileutil.WriteAtomic(dest, 0o644, func(w io.Writer) error {
		zw := zip.NewWriter(w)
		for i, data := range contents {
			fw, err := zw.CreateHeader(&zip.FileHeader{
				Name:     names[i],
				Method:   zip.Deflate,
				Modified: modified,
			})
			if err != nil {
				return fmt.Errorf("add %s: %w", names[i], err)
			}
			if _, err := fw.Write(data); err != nil {
				return fmt.Errorf("write %s: %w", names[i], err)
			}
			progress.Emit(events.ExportProgress, events.Progress{Done: i + 1, Total: len(contents)})
		}
		return zw.Close()
	})
	if err != nil {
		return Summary{}, services.Wrap(services.ErrIO, "export", "write zip", dest, err)
	}

	info, err := os.Stat(dest)
	if err != nil {
		return Summary{}, services.Wrap(services.ErrIO, "export", "stat zip", dest, err)
	}
	return Summary{Path: dest, Entries: len(entries), Bytes: info.Size()}, nil
}

func loadEntries(ctx context.Context, entries []Entry) ([][]byte, error) {
	contents := make([][]byte, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(readAhead)
	for i, entry := range entries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(entry.Path)
			if err != nil {
				return services.Wrap(services.ErrIO, "export", "read entry", entry.Path, err)
			}
			contents[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return contents, nil
}

// archiveNames returns NFC-normalised, flat and unique names for entries.
// Missing names fall back to the source file name; repeats get a " (n)"
// suffix before the extension.
func archiveNames(entries []Entry) []string {
	seen := make(map[string]int, len(entries))
	names := make([]string, len(entries))
	for i, entry := range entries {
		name := sanitizeName(entry.Name)
		if name == "" {
			name = sanitizeName(filepath.Base(entry.Path))
		}
		if name == "" {
			name = fmt.Sprintf("image-%d", i+1)
		}
		key := strings.ToLower(name)
		if n := seen[key]; n > 0 {
			ext := filepath.Ext(name)
			name = fmt.Sprintf("%s (%d)%s", strings.TrimSuffix(name, ext), n+1, ext)
		}
		seen[key]++
		names[i] = name
	}
	return names
}

func sanitizeName(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, name)
	name = strings.TrimLeft(name, ".")
	return strings.TrimSpace(name)
}
