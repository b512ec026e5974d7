package staging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pixora/internal/logging"
)

func touch(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	if age > 0 {
		old := time.Now().Add(-age)
		if err := os.Chtimes(path, old, old); err != nil {
			t.Fatalf("set time: %v", err)
		}
	}
	return path
}

func TestCleanStaleInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := CleanStale(context.Background(), dir, 1, time.Hour, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestCleanStaleRemovesOldForeignArtifacts(t *testing.T) {
	dir := t.TempDir()
	own := 4242

	oldForeign := touch(t, dir, "17-0.png", 2*time.Hour)
	recentForeign := touch(t, dir, "17-1.jpg", 0)
	oldOwn := touch(t, dir, fmt.Sprintf("%d-3.webp", own), 2*time.Hour)
	oldPartial := touch(t, dir, ".17-2.png.123.tmp", 2*time.Hour)
	unrelated := touch(t, dir, "notes.txt", 2*time.Hour)
	if err := os.Mkdir(filepath.Join(dir, "99-0.png"), 0o755); err != nil {
		t.Fatal(err)
	}

	result := CleanStale(context.Background(), dir, own, time.Hour, logging.NewNop())
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Removed) != 2 {
		t.Fatalf("expected 2 removals, got %v", result.Removed)
	}
	for _, gone := range []string{oldForeign, oldPartial} {
		if _, err := os.Stat(gone); !os.IsNotExist(err) {
			t.Fatalf("expected %s removed", gone)
		}
	}
	for _, kept := range []string{recentForeign, oldOwn, unrelated} {
		if _, err := os.Stat(kept); err != nil {
			t.Fatalf("expected %s kept: %v", kept, err)
		}
	}
}

func TestArtifactOwner(t *testing.T) {
	cases := []struct {
		name string
		pid  int
		ok   bool
	}{
		{"123-0.png", 123, true},
		{"123-45.jpg", 123, true},
		{"123-x.png", 0, false},
		{"abc-1.png", 0, false},
		{"0-1.png", 0, false},
		{"123-1", 0, false},
		{"photo.png", 0, false},
	}
	for _, tc := range cases {
		pid, ok := ArtifactOwner(tc.name)
		if pid != tc.pid || ok != tc.ok {
			t.Errorf("ArtifactOwner(%q) = %d,%v want %d,%v", tc.name, pid, ok, tc.pid, tc.ok)
		}
	}
}

func TestDirUsage(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "1-0.png", 0)
	touch(t, dir, "1-1.png", 0)
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	usage, err := DirUsage(dir)
	if err != nil {
		t.Fatalf("DirUsage: %v", err)
	}
	if usage.Files != 2 || usage.Bytes != 2 {
		t.Fatalf("unexpected usage %+v", usage)
	}
	if usage, err := DirUsage(filepath.Join(dir, "missing")); err != nil || usage.Files != 0 {
		t.Fatalf("expected empty usage for missing dir, got %+v %v", usage, err)
	}
}
