// Package daemonctl launches and stops a background pixora daemon on behalf
// of the CLI. The daemon is found through its API for liveness and through
// its PID file for signalling.
package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"pixora/internal/api"
)

const pollInterval = 200 * time.Millisecond

// ErrDaemonNotRunning indicates no live daemon process was found.
var ErrDaemonNotRunning = errors.New("daemon not running")

// HealthChecker is the slice of the API client used to detect a live daemon.
type HealthChecker interface {
	Health(ctx context.Context) (api.HealthResponse, error)
}

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	Executable string
	ConfigPath string
	APIBind    string
	Diagnostic bool
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State StartState
	PID   int
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// Launch starts a detached `pixora serve` process in its own session and
// returns its PID. The daemon writes its own log files.
func Launch(opts LaunchOptions) (int, error) {
	if strings.TrimSpace(opts.Executable) == "" {
		return 0, fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"serve"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if bind := strings.TrimSpace(opts.APIBind); bind != "" {
		args = append(args, "--api", bind)
	}
	if opts.Diagnostic {
		args = append(args, "--diagnostic")
	}

	proc := exec.Command(opts.Executable, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return 0, fmt.Errorf("launch daemon: %w", err)
	}
	pid := proc.Process.Pid
	return pid, proc.Process.Release()
}

// WaitForHealthy polls the API until it answers or timeout elapses.
func WaitForHealthy(ctx context.Context, client HealthChecker, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	var lastErr error
	for {
		_, err := client.Health(waitCtx)
		if err == nil {
			return nil
		}
		lastErr = err
		select {
		case <-waitCtx.Done():
			if lastErr == nil {
				lastErr = waitCtx.Err()
			}
			return fmt.Errorf("daemon failed to start: %w", lastErr)
		case <-ticker.C:
		}
	}
}

// EnsureStarted launches the daemon unless its API already answers.
func EnsureStarted(ctx context.Context, client HealthChecker, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	if _, err := client.Health(ctx); err == nil {
		return StartResult{State: StartStateAlreadyRunning}, nil
	}
	pid, err := Launch(opts)
	if err != nil {
		return StartResult{}, err
	}
	if err := WaitForHealthy(ctx, client, waitTimeout); err != nil {
		return StartResult{PID: pid}, err
	}
	return StartResult{State: StartStateStarted, PID: pid}, nil
}

// ReadPID parses the daemon PID file. A missing file yields 0 and no error.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read daemon pid file %q: %w", path, err)
	}
	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return 0, nil
	}
	pid, err := strconv.Atoi(raw)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("daemon pid file %q holds %q", path, raw)
	}
	return pid, nil
}

// ProcessAlive reports whether pid names a live process.
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// StopAndTerminate sends SIGTERM to the daemon named by pidPath and waits up
// to gracePeriod for it to exit, then kills it. A PID file naming a dead
// process is removed and reported as ErrDaemonNotRunning.
func StopAndTerminate(pidPath string, gracePeriod time.Duration) (StopResult, error) {
	pid, err := ReadPID(pidPath)
	if err != nil {
		return StopResult{}, err
	}
	if pid == 0 {
		return StopResult{}, ErrDaemonNotRunning
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}
	if !ProcessAlive(pid) {
		_ = os.Remove(pidPath)
		return StopResult{PID: pid}, ErrDaemonNotRunning
	}

	result := StopResult{PID: pid}
	if err := unix.Kill(pid, unix.SIGTERM); err != nil && !errors.Is(err, unix.ESRCH) {
		return result, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}
	if waitForExit(pid, gracePeriod) {
		_ = os.Remove(pidPath)
		return result, nil
	}

	if err := unix.Kill(pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return result, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	waitForExit(pid, gracePeriod)
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return result, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	result.ForcedKill = true
	return result, nil
}

func waitForExit(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if !ProcessAlive(pid) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(pollInterval)
	}
}
