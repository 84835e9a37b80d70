// Package server manages the lifecycle of an external vrpn_server process:
// dynamic configuration generation, launch, readiness detection, and
// shutdown. LocalServer additionally owns the receivers attached to the
// server and runs the relay loop that turns incoming samples into events.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"sync"
	"syscall"
	"time"
)

// DefaultExe launches the server; the generated configuration file path is
// appended as the final argument.
var DefaultExe = []string{"vrpn_server", "-f"}

var (
	ErrAlreadyRunning = errors.New("server already running")
	ErrNotRunning     = errors.New("server not running")
	ErrNoReceivers    = errors.New("no receivers configured")
)

// Options configures how the server process is launched and when it is
// considered initialized.
type Options struct {
	// Exe is the command used to launch the server; the configuration file
	// path is appended. Defaults to DefaultExe.
	Exe []string

	// Args are extra arguments appended after the configuration file path.
	Args []string

	// Sentinel is a regular expression looked for in the server's stdout.
	// When set, the server is not considered initialized until it matches.
	Sentinel string

	// Timeout bounds the wait for the sentinel.
	Timeout time.Duration

	// Sleep is an additional grace period before the server is considered
	// initialized, applied after the sentinel is found if both are set.
	Sleep time.Duration
}

// Server runs a vrpn_server process. Its configuration file is generated
// from the device entries it is constructed with, written to a temporary
// file that lives only for the duration of Start.
type Server struct {
	configText []string
	opts       Options
	sentinel   *regexp.Regexp

	mu        sync.Mutex
	cmd       *exec.Cmd
	startedAt time.Time
	done      chan struct{}
}

// New builds a server from device configuration entries, one per device.
func New(configText []string, opts Options) (*Server, error) {
	if len(opts.Exe) == 0 {
		opts.Exe = DefaultExe
	}

	var sentinel *regexp.Regexp
	if opts.Sentinel != "" {
		var err error
		if sentinel, err = regexp.Compile(opts.Sentinel); err != nil {
			return nil, fmt.Errorf("bad sentinel: %w", err)
		}
	}

	return &Server{
		configText: configText,
		opts:       opts,
		sentinel:   sentinel,
	}, nil
}

// Running reports whether the server process is alive.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running()
}

func (s *Server) running() bool {
	if s.cmd == nil {
		return false
	}

	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Pid returns the server process id, or 0 if the server is not running.
func (s *Server) Pid() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running() {
		return 0
	}
	return s.cmd.Process.Pid
}

// Uptime is the time elapsed since initialization completed, or 0 if the
// server is not running.
func (s *Server) Uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running() || s.startedAt.IsZero() {
		return 0
	}
	return time.Since(s.startedAt)
}

// Start writes the configuration file, launches the server process, and
// waits for it to initialize. On any failure the process is killed and
// reaped before returning. A stopped server can be started again.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running() {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.mu.Unlock()

	file, err := os.CreateTemp("", "vrpn-*.cfg")
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	// The server reads its configuration during initialization, so the
	// file only needs to live for the duration of Start.
	defer os.Remove(file.Name())
	defer file.Close()

	lines := append([]string{
		"# VRPN server configuration file.",
		"# Automatically generated, do not edit.",
		"# If this still exists after the server has stopped,",
		"# something went wrong!",
	}, s.configText...)

	for _, line := range lines {
		if _, err := fmt.Fprintln(file, line); err != nil {
			return fmt.Errorf("failed to write config file: %w", err)
		}
	}

	slog.Info("wrote server config", "path", file.Name())
	for i, line := range lines {
		slog.Debug("server config", "line", i+1, "text", line)
	}

	args := append(s.opts.Exe[1:len(s.opts.Exe):len(s.opts.Exe)], file.Name())
	args = append(args, s.opts.Args...)
	cmd := exec.Command(s.opts.Exe[0], args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start server process: %w", err)
	}
	slog.Info("started server process", "pid", cmd.Process.Pid)

	done := make(chan struct{})
	ready := make(chan struct{})

	var monitors sync.WaitGroup

	monitors.Add(1)
	go func() {
		defer monitors.Done()
		_ = Monitor(stderr, func(line string) error {
			slog.Error("vrpn_server", "stderr", line)
			return nil
		})
	}()

	logLine := func(line string) {
		slog.Info("vrpn_server", "stdout", line)
	}

	monitors.Add(1)
	go func() {
		defer monitors.Done()

		// Consume stdout until the sentinel matches, then keep logging
		// for the life of the process.
		if s.sentinel != nil {
			if err := Monitor(stdout, untilMatch(s.sentinel, logLine)); errors.Is(err, ErrStopMonitor) {
				close(ready)
			}
		}
		_ = Monitor(stdout, func(line string) error {
			logLine(line)
			return nil
		})
	}()

	// Reap the process once both pipes have drained.
	go func() {
		monitors.Wait()
		_ = cmd.Wait()
		close(done)
	}()

	s.mu.Lock()
	s.cmd = cmd
	s.done = done
	s.startedAt = time.Time{}
	s.mu.Unlock()

	if s.sentinel != nil {
		waitCtx := ctx
		if s.opts.Timeout > 0 {
			var cancel context.CancelFunc
			waitCtx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
			defer cancel()
		}

		select {
		case <-ready:
		case <-done:
			return fmt.Errorf("server process exited with code %d before initialization completed", cmd.ProcessState.ExitCode())
		case <-waitCtx.Done():
			s.reap(cmd, done)
			return fmt.Errorf("timed out waiting for server readiness: %w", waitCtx.Err())
		}
	}

	if s.opts.Sleep > 0 {
		select {
		case <-time.After(s.opts.Sleep):
		case <-done:
		case <-ctx.Done():
			s.reap(cmd, done)
			return ctx.Err()
		}
	}

	select {
	case <-done:
		return fmt.Errorf("server process exited with code %d before initialization completed", cmd.ProcessState.ExitCode())
	default:
	}

	s.mu.Lock()
	s.startedAt = time.Now()
	s.mu.Unlock()

	slog.Info("server initialization completed", "pid", cmd.Process.Pid)
	return nil
}

// Stop terminates the server process with SIGTERM, or SIGKILL when kill is
// set, and returns its exit code.
func (s *Server) Stop(kill bool) (int, error) {
	s.mu.Lock()
	if !s.running() {
		s.mu.Unlock()
		return 0, ErrNotRunning
	}
	cmd, done := s.cmd, s.done
	s.mu.Unlock()

	sig, name := syscall.SIGTERM, "SIGTERM"
	if kill {
		sig, name = syscall.SIGKILL, "SIGKILL"
	}

	if err := cmd.Process.Signal(sig); err != nil {
		return 0, err
	}
	slog.Info("signaled server process", "signal", name, "pid", cmd.Process.Pid)

	<-done
	code := cmd.ProcessState.ExitCode()
	slog.Info("server process exited", "code", code)
	return code, nil
}

func (s *Server) reap(cmd *exec.Cmd, done chan struct{}) {
	_ = cmd.Process.Kill()
	<-done
}
