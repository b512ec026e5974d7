package export

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/klauspost/compress/zip"

	"pixora/internal/events"
	"pixora/internal/services"
)

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestWriteZipContentsAndProgress(t *testing.T) {
	src := t.TempDir()
	entries := []Entry{
		{Path: writeSource(t, src, "1-0.png", "first"), Name: "holiday.png"},
		{Path: writeSource(t, src, "1-1.png", "second"), Name: "holiday.png"},
		{Path: writeSource(t, src, "1-2.webp", "third"), Name: ""},
	}

	var (
		mu       sync.Mutex
		progress []events.Progress
	)
	obs := events.ObserverFunc(func(name string, payload any) {
		if name != events.ExportProgress {
			t.Errorf("unexpected event %s", name)
		}
		mu.Lock()
		progress = append(progress, payload.(events.Progress))
		mu.Unlock()
	})

	dest := filepath.Join(t.TempDir(), "out", "photos.zip")
	summary, err := WriteZip(context.Background(), entries, dest, obs)
	if err != nil {
		t.Fatalf("WriteZip: %v", err)
	}
	if summary.Entries != 3 || summary.Bytes <= 0 || summary.Path != dest {
		t.Fatalf("unexpected summary %#v", summary)
	}
	if len(progress) != 3 || progress[2] != (events.Progress{Done: 3, Total: 3}) {
		t.Fatalf("unexpected progress %#v", progress)
	}

	zr, err := zip.OpenReader(dest)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer zr.Close()

	want := map[string]string{
		"holiday.png":     "first",
		"holiday (2).png": "second",
		"1-2.webp":        "third",
	}
	if len(zr.File) != len(want) {
		t.Fatalf("expected %d files, got %d", len(want), len(zr.File))
	}
	for _, f := range zr.File {
		if f.Method != zip.Deflate {
			t.Fatalf("expected deflate for %s", f.Name)
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		if want[f.Name] != string(data) {
			t.Fatalf("entry %s: got %q", f.Name, data)
		}
	}
}

func TestWriteZipMissingSourceLeavesNoArchive(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "broken.zip")
	_, err := WriteZip(context.Background(), []Entry{{Path: "/does/not/exist.png", Name: "x.png"}}, dest, nil)
	if !errors.Is(err, services.ErrIO) {
		t.Fatalf("expected io error, got %v", err)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Fatalf("expected no archive, stat err=%v", statErr)
	}
}

func TestWriteZipValidation(t *testing.T) {
	if _, err := WriteZip(context.Background(), nil, "out.zip", nil); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty entries, got %v", err)
	}
	if _, err := WriteZip(context.Background(), []Entry{{Path: "a"}}, "  ", nil); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty destination, got %v", err)
	}
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"../../etc/passwd": "_.._etc_passwd",
		"a\\b.png":         "a_b.png",
		"  spaced.jpg ":    "spaced.jpg",
		"cafe\u0301.png":   "caf\u00e9.png",
		"...":              "",
	}
	for in, want := range cases {
		if got := sanitizeName(in); got != want {
			t.Errorf("sanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}
