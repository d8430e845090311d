// Package process implements the Process Runner: it spawns one external
// command, streams its stdout/stderr to files and bounded in-memory
// buffers simultaneously, enforces the task's wall-clock timeout, and
// reports the terminal TaskStatus.
//
// Grounded on turborepo's internal/process/child.go (credited there to
// hashicorp/consul-template/child/child.go): the graceful-signal-then-
// hard-kill-after-timeout shape and process-group management are carried
// over; the streaming-to-file-and-buffer loop is new, since turborepo's
// Child doesn't stream output at all (turbo's logstreamer wraps stdout
// separately). See DESIGN.md.
package process

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/reconctl/reconctl/internal/task"
)

// DefaultBufferCap is the per-stream in-memory capture cap (§3's "default
// 50 MiB"), applied uniformly regardless of the underlying on-disk file
// size, capping how much of a noisy tool's output stays in memory.
const DefaultBufferCap = 50 * 1024 * 1024

// DefaultKillGrace is how long a Runner waits after sending a graceful
// terminate signal before force-killing the process group.
const DefaultKillGrace = 5 * time.Second

// DefaultKillSplay bounds the random jitter before sending a terminate
// signal, so that many runners killed at once (e.g. on cancellation) don't
// all signal in the same instant.
const DefaultKillSplay = 250 * time.Millisecond

// Runner executes Tasks end-to-end. A Runner is not itself safe to reuse
// concurrently across Run calls that share an output path, but is
// otherwise stateless; one Runner instance is typically shared by the
// scheduler across all of a run's tasks.
type Runner struct {
	// ScriptDir is where descriptor commands ending in .sh are resolved,
	// if not given as an absolute path.
	ScriptDir string
	// BufferCap overrides DefaultBufferCap when positive.
	BufferCap int
	// KillGrace overrides DefaultKillGrace when positive.
	KillGrace time.Duration
	// Manager, if set, tracks this Runner's live children so they can all
	// be terminated together on cancellation or program exit.
	Manager *Manager
	Logger  hclog.Logger
}

func (r *Runner) bufferCap() int {
	if r.BufferCap > 0 {
		return r.BufferCap
	}
	return DefaultBufferCap
}

func (r *Runner) killGrace() time.Duration {
	if r.KillGrace > 0 {
		return r.KillGrace
	}
	return DefaultKillGrace
}

func (r *Runner) logger() hclog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return hclog.NewNullLogger()
}

// Run spawns t's command, streams both pipes to t.StdoutPath/StderrPath and
// bounded in-memory buffers, and waits under t.Timeout. It always returns a
// Result; it never panics the caller for a tool-level failure.
func (r *Runner) Run(ctx context.Context, t task.Task) task.Result {
	start := time.Now()
	log := r.logger().Named(t.ToolName)

	bin, err := r.resolveBinary(t.Command)
	if err != nil {
		return failResult(t, fmt.Errorf("tool not found: %w", err))
	}

	if err := os.MkdirAll(filepath.Dir(t.StdoutPath), 0o755); err != nil {
		return failResult(t, fmt.Errorf("creating output directory: %w", err))
	}
	stdoutFile, err := os.Create(t.StdoutPath)
	if err != nil {
		return failResult(t, fmt.Errorf("creating stdout file: %w", err))
	}
	defer stdoutFile.Close()
	stderrFile, err := os.Create(t.StderrPath)
	if err != nil {
		return failResult(t, fmt.Errorf("creating stderr file: %w", err))
	}
	defer stderrFile.Close()

	timeout := t.Timeout
	if timeout <= 0 {
		// task.New always stamps a positive timeout; this is only a
		// last-resort guard against a hand-built Task.
		timeout = 300 * time.Second
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	cmd := exec.Command(bin, t.Args...)
	setSetpgid(cmd)

	stdoutBuf := newBoundedBuffer(r.bufferCap())
	stderrBuf := newBoundedBuffer(r.bufferCap())
	cmd.Stdout = io.MultiWriter(stdoutFile, stdoutBuf)
	cmd.Stderr = io.MultiWriter(stderrFile, stderrBuf)

	if err := cmd.Start(); err != nil {
		return failResult(t, fmt.Errorf("starting process: %w", err))
	}
	untrack := r.Manager.track(cmd)
	defer untrack()

	exitCh := make(chan error, 1)
	go func() { exitCh <- cmd.Wait() }()

	select {
	case waitErr := <-exitCh:
		duration := time.Since(start)
		result := task.Result{
			TaskID:     t.ID,
			ToolName:   t.ToolName,
			Command:    t.CommandLine(),
			Stdout:     stdoutBuf.String(),
			Stderr:     stderrBuf.String(),
			StdoutPath: t.StdoutPath,
			StderrPath: t.StderrPath,
		}
		if waitErr != nil {
			if exitErr, ok := waitErr.(*exec.ExitError); ok {
				result.Status = task.Status{
					State:    task.StateCompleted,
					Duration: duration,
					ExitCode: exitErr.ExitCode(),
				}
				return result
			}
			result.Status = task.Status{State: task.StateFailed, Error: waitErr.Error()}
			return result
		}
		result.Status = task.Status{State: task.StateCompleted, Duration: duration, ExitCode: 0}
		return result

	case <-deadline.C:
		log.Debug("task exceeded timeout, terminating", "timeout", timeout)
		r.terminate(cmd)
		<-exitCh // drain, but ignore: result is TimedOut regardless
		return task.Result{
			TaskID:     t.ID,
			ToolName:   t.ToolName,
			Command:    t.CommandLine(),
			Stdout:     stdoutBuf.String(),
			Stderr:     stderrBuf.String(),
			StdoutPath: t.StdoutPath,
			StderrPath: t.StderrPath,
			Status:     task.Status{State: task.StateTimedOut},
		}

	case <-ctx.Done():
		log.Debug("task cancelled, terminating")
		r.terminate(cmd)
		<-exitCh
		return task.Result{
			TaskID:     t.ID,
			ToolName:   t.ToolName,
			Command:    t.CommandLine(),
			Stdout:     stdoutBuf.String(),
			Stderr:     stderrBuf.String(),
			StdoutPath: t.StdoutPath,
			StderrPath: t.StderrPath,
			Status:     task.Status{State: task.StateFailed, Error: "cancelled"},
		}
	}
}

// terminate signals the process group: SIGTERM (after a small random
// splay), then SIGKILL if it hasn't exited within the kill grace window.
// Grounded on child.go's kill()/randomSplay(), simplified to a single
// graceful-then-hard sequence since this domain has no restart/Stop
// distinction.
func (r *Runner) terminate(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	time.Sleep(time.Duration(rand.Int63n(int64(DefaultKillSplay) + 1)))
	pid := -cmd.Process.Pid // negative: signal the whole process group
	_ = syscall.Kill(pid, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		_, _ = cmd.Process.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(r.killGrace()):
		_ = syscall.Kill(pid, syscall.SIGKILL)
	}
}

func failResult(t task.Task, err error) task.Result {
	return task.Result{
		TaskID:   t.ID,
		ToolName: t.ToolName,
		Command:  t.CommandLine(),
		Status:   task.Status{State: task.StateFailed, Error: err.Error()},
	}
}

// resolveBinary implements §4.1 step 1: script-suffixed commands resolve
// under ScriptDir (or their own absolute path), PATH lookups otherwise. A
// resolved script is also checked for obviously dangerous inline patterns
// and marked executable.
func (r *Runner) resolveBinary(command string) (string, error) {
	if strings.HasSuffix(command, ".sh") {
		path := command
		if !filepath.IsAbs(path) {
			path = filepath.Join(r.ScriptDir, command)
		}
		info, err := os.Stat(path)
		if err != nil {
			return "", fmt.Errorf("script %q: %w", command, err)
		}
		if info.IsDir() {
			return "", fmt.Errorf("script %q is a directory", command)
		}
		contents, err := os.ReadFile(path)
		if err == nil {
			if reason, dangerous := looksDangerous(string(contents)); dangerous {
				return "", fmt.Errorf("script %q rejected: %s", command, reason)
			}
		}
		if err := os.Chmod(path, info.Mode()|0o111); err != nil {
			return "", fmt.Errorf("marking script %q executable: %w", command, err)
		}
		return path, nil
	}
	resolved, err := exec.LookPath(command)
	if err != nil {
		return "", err
	}
	return resolved, nil
}

var dangerousPatterns = []string{
	"rm -rf /",
	"curl | sh",
	"curl |sh",
	"wget | sh",
	":(){:|:&};:",
}

func looksDangerous(script string) (string, bool) {
	for _, p := range dangerousPatterns {
		if strings.Contains(script, p) {
			return fmt.Sprintf("contains unsafe pattern %q", p), true
		}
	}
	return "", false
}

func setSetpgid(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
