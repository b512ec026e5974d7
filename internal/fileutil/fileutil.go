// Package fileutil holds small filesystem helpers shared by the artifact,
// model and export code.
package fileutil

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"
)

// WriteFileAtomic writes data to a temporary file beside path and renames it
// into place, so readers never observe a partial file.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	return WriteAtomic(path, mode, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// WriteAtomic streams fill into a temporary file beside path and renames it
// into place once fill succeeds. The temporary file is removed on failure.
func WriteAtomic(path string, mode os.FileMode, fill func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if err := fill(tmp); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// HashFile returns the hex BLAKE3 digest of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashBytes returns the hex BLAKE3 digest of data.
func HashBytes(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// CopyFileVerified copies src to dst through a temporary file, then reads
// dst back and checks its size and BLAKE3 digest against the bytes taken
// from src. dst is removed when either check fails.
func CopyFileVerified(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	sum := blake3.New()
	var copied int64
	err = WriteAtomic(dst, 0o644, func(w io.Writer) error {
		n, copyErr := io.Copy(w, io.TeeReader(in, sum))
		copied = n
		return copyErr
	})
	if err != nil {
		return fmt.Errorf("copy %s: %w", filepath.Base(src), err)
	}

	if copied != info.Size() {
		_ = os.Remove(dst)
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", info.Size(), copied)
	}
	got, err := HashFile(dst)
	if err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("hash destination: %w", err)
	}
	if want := hex.EncodeToString(sum.Sum(nil)); got != want {
		_ = os.Remove(dst)
		return fmt.Errorf("copy hash mismatch: destination %s, source %s", got, want)
	}
	return nil
}
