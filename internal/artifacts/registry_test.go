package artifacts_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"pixora/internal/artifacts"
	"pixora/internal/imaging"
	"pixora/internal/services"
)

func newRegistry(t *testing.T) *artifacts.Registry {
	t.Helper()
	return artifacts.NewRegistry(filepath.Join(t.TempDir(), "pixora"), nil)
}

func TestCreateAllocatesProcessScopedPaths(t *testing.T) {
	reg := newRegistry(t)
	first, err := reg.Create(imaging.FormatJPEG, []byte("one"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	second, err := reg.Create(imaging.FormatWebP, []byte("two!"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	wantFirst := filepath.Join(reg.Dir(), fmt.Sprintf("%d-0.jpg", os.Getpid()))
	wantSecond := filepath.Join(reg.Dir(), fmt.Sprintf("%d-1.webp", os.Getpid()))
	if first.Path != wantFirst || second.Path != wantSecond {
		t.Fatalf("unexpected paths %q %q", first.Path, second.Path)
	}
	if first.SizeBytes != 3 || second.SizeBytes != 4 {
		t.Fatalf("unexpected sizes %d %d", first.SizeBytes, second.SizeBytes)
	}
	if !strings.HasPrefix(filepath.Base(first.Path), reg.Prefix()) {
		t.Fatalf("expected prefix %q", reg.Prefix())
	}
	if reg.Len() != 2 {
		t.Fatalf("expected two tracked artifacts, got %d", reg.Len())
	}
}

func TestReadIsGatedByRegistration(t *testing.T) {
	reg := newRegistry(t)
	art, err := reg.Create(imaging.FormatPNG, []byte("png-bytes"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	data, err := reg.Read(art.Path)
	if err != nil || string(data) != "png-bytes" {
		t.Fatalf("Read: %q %v", data, err)
	}
	url, err := reg.ReadDataURL(art.Path)
	if err != nil || !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Fatalf("ReadDataURL: %q %v", url, err)
	}

	outside := filepath.Join(t.TempDir(), "secret.txt")
	if err := os.WriteFile(outside, []byte("secret"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Read(outside); !errors.Is(err, services.ErrUntracked) {
		t.Fatalf("expected untracked error, got %v", err)
	}
	if _, err := reg.Read(filepath.Join(reg.Dir(), "sub", "..", filepath.Base(art.Path))); err != nil {
		t.Fatalf("expected cleaned path to resolve: %v", err)
	}
}

func TestReadDataURLDefaultsToJPEG(t *testing.T) {
	reg := newRegistry(t)
	path := filepath.Join(t.TempDir(), "legacy.bin")
	if err := os.WriteFile(path, []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(path); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register(path); err != nil {
		t.Fatalf("Register twice: %v", err)
	}
	if reg.Len() != 1 {
		t.Fatalf("expected idempotent register, got %d entries", reg.Len())
	}
	url, err := reg.ReadDataURL(path)
	if err != nil || !strings.HasPrefix(url, "data:image/jpeg;base64,") {
		t.Fatalf("ReadDataURL: %q %v", url, err)
	}
}

func TestDeleteRemovesMatchingEntries(t *testing.T) {
	reg := newRegistry(t)
	a, _ := reg.Create(imaging.FormatPNG, []byte("a"))
	b, _ := reg.Create(imaging.FormatPNG, []byte("b"))

	if err := os.Remove(b.Path); err != nil {
		t.Fatal(err)
	}
	removed, err := reg.Delete([]string{a.Path, b.Path, "/not/tracked.png", ""})
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if removed != 2 || reg.Len() != 0 {
		t.Fatalf("expected both entries removed, removed=%d len=%d", removed, reg.Len())
	}
	if _, err := os.Stat(a.Path); !os.IsNotExist(err) {
		t.Fatalf("expected file removed, stat err=%v", err)
	}
	if _, err := reg.Read(a.Path); !errors.Is(err, services.ErrUntracked) {
		t.Fatalf("expected untracked after delete, got %v", err)
	}
}

func TestDeleteAllClearsRegistryAndDirectory(t *testing.T) {
	reg := newRegistry(t)
	var paths []string
	for i := 0; i < 2; i++ {
		art, err := reg.Create(imaging.FormatJPEG, []byte{byte(i)})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		paths = append(paths, art.Path)
	}
	if err := reg.DeleteAll(); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if reg.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", reg.Len())
	}
	for _, p := range paths {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Fatalf("expected %s removed", p)
		}
	}
	if _, err := os.Stat(reg.Dir()); !os.IsNotExist(err) {
		t.Fatalf("expected directory removed, stat err=%v", err)
	}
	if err := reg.DeleteAll(); err != nil {
		t.Fatalf("DeleteAll on missing dir: %v", err)
	}
}

func TestDeleteAllRemovesUntrackedContents(t *testing.T) {
	reg := newRegistry(t)
	if _, err := reg.Create(imaging.FormatJPEG, []byte("x")); err != nil {
		t.Fatal(err)
	}
	stray := []string{
		filepath.Join(reg.Dir(), "99999-0.jpg"),
		filepath.Join(reg.Dir(), ".99999-1.png.tmp"),
		filepath.Join(reg.Dir(), "nested", "left.png"),
	}
	for _, path := range stray {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("other process"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := reg.DeleteAll(); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if reg.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", reg.Len())
	}
	if _, err := os.Stat(reg.Dir()); !os.IsNotExist(err) {
		t.Fatalf("expected directory removed with its contents, stat err=%v", err)
	}

	art, err := reg.Create(imaging.FormatPNG, []byte("again"))
	if err != nil {
		t.Fatalf("Create after DeleteAll: %v", err)
	}
	if data, err := reg.Read(art.Path); err != nil || string(data) != "again" {
		t.Fatalf("Read after DeleteAll: %q, %v", data, err)
	}
}

func TestConcurrentCreateAndDeleteAll(t *testing.T) {
	reg := newRegistry(t)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := reg.Create(imaging.FormatPNG, []byte("data")); err != nil {
				t.Errorf("Create: %v", err)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = reg.DeleteAll()
	}()
	wg.Wait()

	for _, art := range reg.List() {
		if _, err := os.Stat(art.Path); err != nil {
			t.Fatalf("tracked artifact %s missing on disk: %v", art.Path, err)
		}
	}
}

func TestPersistCopiesTrackedArtifact(t *testing.T) {
	reg := newRegistry(t)
	art, err := reg.Create(imaging.FormatPNG, []byte("keep me"))
	if err != nil {
		t.Fatal(err)
	}
	dest := filepath.Join(t.TempDir(), "export", "photo.png")
	size, err := reg.Persist(art.Path, dest)
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if size != 7 {
		t.Fatalf("unexpected size %d", size)
	}
	if data, _ := os.ReadFile(dest); string(data) != "keep me" {
		t.Fatalf("unexpected content %q", data)
	}
	if _, err := reg.Persist("/etc/hosts", dest); !errors.Is(err, services.ErrUntracked) {
		t.Fatalf("expected untracked error, got %v", err)
	}
	if _, err := reg.Persist(art.Path, " "); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
