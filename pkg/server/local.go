package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hsharrison/govrpn/pkg/vrpn"
)

// LocalOptions configures a LocalServer.
type LocalOptions struct {
	Options

	// Host is the address receivers connect to. Defaults to localhost.
	Host string

	// Poll is the relay loop interval. Defaults to 1ms.
	Poll time.Duration

	// Dialer attaches receivers to the server. Defaults to
	// vrpn.PrintDevicesDialer(nil, 0).
	Dialer vrpn.Dialer
}

// LocalServer is a Server with direct access to its devices: it generates
// the server configuration from the receivers themselves, connects them
// once the server is initialized, and runs the relay loop that delivers
// their events.
type LocalServer struct {
	*Server

	receivers []*vrpn.Receiver
	host      string
	poll      time.Duration
	dial      vrpn.Dialer

	loopCancel context.CancelFunc
	loopDone   chan struct{}
	errs       chan error
}

// NewLocal builds a local server managing the given receivers. The
// configuration handed to the server process reflects exactly these
// receivers; an empty set is rejected.
func NewLocal(receivers []*vrpn.Receiver, opts LocalOptions) (*LocalServer, error) {
	if len(receivers) == 0 {
		return nil, ErrNoReceivers
	}

	configText := make([]string, len(receivers))
	for i, r := range receivers {
		configText[i] = r.ConfigText()
	}

	srv, err := New(configText, opts.Options)
	if err != nil {
		return nil, err
	}

	if opts.Host == "" {
		opts.Host = "localhost"
	}
	if opts.Poll <= 0 {
		opts.Poll = time.Millisecond
	}
	if opts.Dialer == nil {
		opts.Dialer = vrpn.PrintDevicesDialer(nil, 0)
	}

	return &LocalServer{
		Server:    srv,
		receivers: receivers,
		host:      opts.Host,
		poll:      opts.Poll,
		dial:      opts.Dialer,
		errs:      make(chan error, 1),
	}, nil
}

func (l *LocalServer) Receivers() []*vrpn.Receiver {
	return l.receivers
}

// Errors surfaces failures detected while the relay loop is running, such
// as the server process exiting underneath it.
func (l *LocalServer) Errors() <-chan error {
	return l.errs
}

// Start starts the server process, connects every receiver, and launches
// the relay loop. If any receiver fails to connect, everything started so
// far is torn down.
func (l *LocalServer) Start(ctx context.Context) error {
	if err := l.Server.Start(ctx); err != nil {
		return err
	}

	for _, r := range l.receivers {
		if err := r.Connect(ctx, l.host, l.dial); err != nil {
			l.closeReceivers()
			if _, stopErr := l.Server.Stop(true); stopErr != nil {
				slog.Warn("failed to stop server after connect error", "error", stopErr)
			}
			return err
		}
		slog.Info("connected receiver", "receiver", r.String())
	}

	l.mu.Lock()
	done := l.done
	l.mu.Unlock()

	loopCtx, cancel := context.WithCancel(context.Background())
	l.loopCancel = cancel
	l.loopDone = make(chan struct{})
	go l.relay(loopCtx, done)

	return nil
}

// relay ticks at the poll interval and drives every connected receiver's
// mainloop. Event delivery happens synchronously on this goroutine.
func (l *LocalServer) relay(ctx context.Context, done <-chan struct{}) {
	defer close(l.loopDone)

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			slog.Error("server process exited unexpectedly")
			select {
			case l.errs <- fmt.Errorf("server process exited unexpectedly"):
			default:
			}
			return
		case <-ticker.C:
			for _, r := range l.receivers {
				if !r.Connected() {
					continue
				}
				if err := r.Mainloop(); err != nil {
					slog.Warn("receiver mainloop failed", "receiver", r.Name(), "error", err)
				}
			}
		}
	}
}

// Stop stops the relay loop, closes receiver connections, and terminates
// the server process.
func (l *LocalServer) Stop(kill bool) (int, error) {
	if l.loopCancel != nil {
		l.loopCancel()
		<-l.loopDone
		l.loopCancel = nil
	}

	l.closeReceivers()
	return l.Server.Stop(kill)
}

func (l *LocalServer) closeReceivers() {
	for _, r := range l.receivers {
		if err := r.Close(); err != nil {
			slog.Warn("failed to close receiver", "receiver", r.Name(), "error", err)
		}
	}
}
