// Package pat runs the PAT model checker console as an external process.
package pat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/snow-ghost/patrefine/checker"
	"github.com/snow-ghost/patrefine/core"
)

// DefaultTimeout bounds a single checker invocation.
const DefaultTimeout = 300 * time.Second

// Config describes how to launch the checker.
type Config struct {
	// Command is the launcher, e.g. "mono". Empty runs Binary directly.
	Command string
	// Binary is the checker executable, e.g. "PAT3.Console.exe".
	Binary string
	// Module selects the checker language module, e.g. "-csp".
	Module string
	// AlternateArgs are appended for core.EngineAlternate.
	AlternateArgs []string
	Timeout       time.Duration
	Dir           string
}

// DefaultConfig returns the mono-hosted PAT console settings.
func DefaultConfig() Config {
	return Config{
		Command:       "mono",
		Binary:        "PAT3.Console.exe",
		Module:        "-csp",
		AlternateArgs: []string{"-engine", "1"},
		Timeout:       DefaultTimeout,
	}
}

// Runner implements core.Checker.
type Runner struct {
	cfg Config
}

// New creates a runner. A zero timeout uses DefaultTimeout.
func New(cfg Config) *Runner {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Runner{cfg: cfg}
}

var _ core.Checker = (*Runner)(nil)

// CommandLine returns the program and arguments for one invocation.
func (r *Runner) CommandLine(mode core.EngineMode, inputPath, outputPath string) (string, []string) {
	var args []string
	prog := r.cfg.Binary
	if r.cfg.Command != "" {
		prog = r.cfg.Command
		args = append(args, r.cfg.Binary)
	}
	if r.cfg.Module != "" {
		args = append(args, r.cfg.Module)
	}
	if mode == core.EngineAlternate {
		args = append(args, r.cfg.AlternateArgs...)
	}
	args = append(args, inputPath, outputPath)
	return prog, args
}

// Run executes the checker and waits for it. The whole process group is killed when
// the timeout elapses or ctx is cancelled.
func (r *Runner) Run(ctx context.Context, mode core.EngineMode, inputPath, outputPath string) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	prog, args := r.CommandLine(mode, inputPath, outputPath)
	cmd := exec.CommandContext(ctx, prog, args...)
	cmd.Dir = r.cfg.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	start := time.Now()
	err := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", core.ErrCheckerTimeout, r.cfg.Timeout)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &checker.ExitError{Code: exitErr.ExitCode(), Output: tail(buf.String(), 20)}
		}
		return fmt.Errorf("%w: %v", core.ErrCheckerFailed, err)
	}

	slog.DebugContext(ctx, "checker finished",
		"engine", mode.String(),
		"input", inputPath,
		"duration", time.Since(start))
	return nil
}

func tail(output string, maxLines int) string {
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return strings.Join(lines, "\n")
}
