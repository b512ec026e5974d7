package preflight

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

const sourceProbeTimeout = 10 * time.Second

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckRuntimeLibrary locates the ONNX Runtime shared library. An explicit
// path must exist; otherwise the loader search path is scanned for the
// platform's default library name.
func CheckRuntimeLibrary(configured string) Result {
	const name = "ONNX Runtime"
	result := Result{Name: name, Optional: true}

	if path := strings.TrimSpace(configured); path != "" {
		info, err := os.Stat(path)
		switch {
		case err != nil:
			result.Detail = fmt.Sprintf("%s not found (model.runtime_library)", path)
		case info.IsDir():
			result.Detail = fmt.Sprintf("%s is a directory", path)
		default:
			result.Passed = true
			result.Detail = path
		}
		return result
	}

	lib := runtimeLibraryName()
	if found, ok := findLibrary(lib, librarySearchDirs()); ok {
		result.Passed = true
		result.Detail = found
		return result
	}
	result.Detail = fmt.Sprintf("%s not found; set model.runtime_library or PIXORA_ORT_LIBRARY", lib)
	return result
}

// CheckModel reports whether the segmentation model is already on disk. A
// missing model is fetched on first use.
func CheckModel(path string) Result {
	result := Result{Name: "Model file", Optional: true}
	info, err := os.Stat(path)
	if err != nil {
		result.Detail = fmt.Sprintf("%s missing (downloaded on first background removal)", path)
		return result
	}
	if info.Size() == 0 {
		result.Detail = fmt.Sprintf("%s is empty", path)
		return result
	}
	result.Passed = true
	result.Detail = path
	return result
}

// CheckModelSource verifies that the chunk manifest can be fetched.
func CheckModelSource(ctx context.Context, client *http.Client, manifestURL string) Result {
	const name = "Model source"
	result := Result{Name: name, Optional: true}
	if client == nil {
		client = &http.Client{Timeout: sourceProbeTimeout}
	}

	checkCtx, cancel := context.WithTimeout(ctx, sourceProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, manifestURL, nil)
	if err != nil {
		result.Detail = fmt.Sprintf("invalid manifest url (%v)", err)
		return result
	}
	resp, err := client.Do(req)
	if err != nil {
		result.Detail = fmt.Sprintf("unreachable (%v)", err)
		return result
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		result.Detail = fmt.Sprintf("manifest request failed (%d)", resp.StatusCode)
		return result
	}
	result.Passed = true
	result.Detail = "Reachable"
	return result
}

func runtimeLibraryName() string {
	switch runtime.GOOS {
	case "darwin":
		return "libonnxruntime.dylib"
	case "windows":
		return "onnxruntime.dll"
	default:
		return "libonnxruntime.so"
	}
}

func librarySearchDirs() []string {
	var dirs []string
	for _, env := range []string{"LD_LIBRARY_PATH", "DYLD_LIBRARY_PATH"} {
		for _, dir := range filepath.SplitList(os.Getenv(env)) {
			if dir != "" {
				dirs = append(dirs, dir)
			}
		}
	}
	return append(dirs, "/usr/local/lib", "/usr/lib", "/usr/lib64", "/usr/lib/x86_64-linux-gnu", "/usr/lib/aarch64-linux-gnu", "/opt/homebrew/lib")
}

// findLibrary returns the first dir entry named lib or a versioned variant
// such as libonnxruntime.so.1.20.0.
func findLibrary(lib string, dirs []string) (string, bool) {
	for _, dir := range dirs {
		candidate := filepath.Join(dir, lib)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
		matches, _ := filepath.Glob(candidate + ".*")
		for _, match := range matches {
			if info, err := os.Stat(match); err == nil && !info.IsDir() {
				return match, true
			}
		}
	}
	return "", false
}
