package vrpn

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
)

// Conn is a client-side connection to one device on a running server.
type Conn interface {
	// Recv drains any reports that arrived since the last call. It never
	// blocks; an empty slice means no new data.
	Recv() ([]*Report, error)
	Close() error
}

// Dialer produces a connection for a device endpoint (name@host).
type Dialer func(ctx context.Context, endpoint string) (Conn, error)

// DefaultClientExe is the VRPN console client used to attach to devices.
// It takes a device endpoint and prints one report per line.
var DefaultClientExe = []string{"vrpn_print_devices"}

// ErrConnClosed is returned by Recv after the connection is closed or the
// console client process exits.
var ErrConnClosed = errors.New("connection closed")

// PrintDevicesDialer returns a Dialer that attaches to a device by running
// the console client and parsing its stdout. Reports are buffered up to
// buffer entries; when the consumer falls behind, the oldest reports are
// dropped. A nil exe uses DefaultClientExe.
func PrintDevicesDialer(exe []string, buffer int) Dialer {
	if exe == nil {
		exe = DefaultClientExe
	}
	if buffer <= 0 {
		buffer = 1024
	}

	return func(ctx context.Context, endpoint string) (Conn, error) {
		args := append(exe[1:len(exe):len(exe)], endpoint)
		cmd := exec.CommandContext(ctx, exe[0], args...)

		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, err
		}
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("failed to start console client: %w", err)
		}
		slog.Debug("started console client", "endpoint", endpoint, "pid", cmd.Process.Pid)

		c := &printDevicesConn{
			endpoint: endpoint,
			cmd:      cmd,
			reports:  make(chan *Report, buffer),
			done:     make(chan struct{}),
		}

		go func() {
			scanner := bufio.NewScanner(stdout)
			for scanner.Scan() {
				r, err := ParseReport(scanner.Text())
				if err != nil {
					// The console client prints informational lines too.
					continue
				}
				c.push(r)
			}

			c.mu.Lock()
			c.exitErr = cmd.Wait()
			c.mu.Unlock()
			close(c.done)
		}()

		return c, nil
	}
}

type printDevicesConn struct {
	endpoint string
	cmd      *exec.Cmd
	reports  chan *Report
	done     chan struct{}

	mu      sync.Mutex
	closed  bool
	exitErr error
}

func (c *printDevicesConn) push(r *Report) {
	for {
		select {
		case c.reports <- r:
			return
		default:
		}

		// Full, drop the oldest report.
		select {
		case <-c.reports:
		default:
		}
	}
}

func (c *printDevicesConn) Recv() ([]*Report, error) {
	var reports []*Report
	for {
		select {
		case r := <-c.reports:
			reports = append(reports, r)
			continue
		default:
		}
		break
	}

	if len(reports) > 0 {
		return reports, nil
	}

	select {
	case <-c.done:
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			return nil, ErrConnClosed
		}
		if c.exitErr != nil {
			return nil, fmt.Errorf("console client for %s exited: %w", c.endpoint, c.exitErr)
		}
		return nil, fmt.Errorf("console client for %s exited: %w", c.endpoint, ErrConnClosed)
	default:
		return nil, nil
	}
}

func (c *printDevicesConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if err := c.cmd.Process.Kill(); err != nil {
		return err
	}

	// The scanner goroutine reaps the process.
	<-c.done
	return nil
}
