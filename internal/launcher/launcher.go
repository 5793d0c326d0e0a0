package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/code-winstaller/internal/domain/installer"
	"github.com/oshokin/code-winstaller/internal/logger"
)

// Options configures a Launcher.
type Options struct {
	// Args follow the installer path on the command line.
	Args []string
	// Stdout receives the installer's standard output. Defaults to os.Stdout.
	Stdout io.Writer
	// Stderr receives the installer's standard error. Defaults to os.Stderr.
	Stderr io.Writer
}

// Result describes a finished installer process.
type Result struct {
	// ExitCode is the installer's exit status, or -1 if it was killed by a signal.
	ExitCode int
}

// Launcher starts installer processes.
type Launcher struct {
	opts Options
	// processes lists running processes; replaced in tests.
	processes func() ([]ps.Process, error)
}

// New returns a Launcher with the given options.
func New(opts Options) *Launcher {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}

	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	return &Launcher{
		opts:      opts,
		processes: ps.Processes,
	}
}

// Launch runs the installer at path, waits for it to exit and reports its exit code.
// Failing to start the process wraps installer.ErrLaunch. A non-zero exit code
// is not an error.
func (l *Launcher) Launch(ctx context.Context, path string) (*Result, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve installer path: %w: %w", installer.ErrLaunch, err)
	}

	if err = l.EnsureNotRunning(ctx, filepath.Base(absPath)); err != nil {
		return nil, err
	}

	// Not bound to ctx: interrupting a silent install halfway leaves a broken installation.
	cmd := exec.Command(absPath, l.opts.Args...) //nolint:gosec,noctx // Path comes from the verified download.
	cmd.Stdout = l.opts.Stdout
	cmd.Stderr = l.opts.Stderr

	logger.InfoKV(ctx, "Starting installer", "path", absPath, "args", strings.Join(l.opts.Args, " "))

	if err = cmd.Start(); err != nil {
		return nil, fmt.Errorf("start installer: %w: %w", installer.ErrLaunch, err)
	}

	err = cmd.Wait()

	var exitErr *exec.ExitError

	switch {
	case err == nil, errors.As(err, &exitErr):
	case cmd.ProcessState != nil:
		logger.WarnKV(ctx, "Installer output was not fully forwarded", "error", err)
	default:
		return nil, fmt.Errorf("wait for installer: %w: %w", installer.ErrLaunch, err)
	}

	code := cmd.ProcessState.ExitCode()
	logger.Infof(ctx, "Installer exited with code %d", code)

	return &Result{ExitCode: code}, nil
}

// EnsureNotRunning fails with installer.ErrLaunch if a process named executable
// is already running. A process table that cannot be read does not block the launch.
func (l *Launcher) EnsureNotRunning(ctx context.Context, executable string) error {
	processList, err := l.processes()
	if err != nil {
		logger.WarnKV(ctx, "Unable to list running processes", "error", err)

		return nil
	}

	thisProcessID := os.Getpid()

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if !strings.EqualFold(process.Executable(), executable) {
			continue
		}

		return fmt.Errorf("%s is already running with pid %d: %w", executable, process.Pid(), installer.ErrLaunch)
	}

	return nil
}
