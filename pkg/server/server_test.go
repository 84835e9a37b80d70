package server

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/hsharrison/govrpn/pkg/vrpn"
	"github.com/stretchr/testify/assert"
)

// catServer behaves like a dummy vrpn_server: it prints its configuration
// file and then stays alive until signaled. The config file path arrives
// as $0, because the Server appends it after the exe args.
var catServer = []string{"/bin/sh", "-c", `cat -- "$0" && sleep 30`}

func TestServerStartStop(t *testing.T) {
	srv, err := New([]string{"vrpn_Tracker_NULL\ttest\t1\t60"}, Options{
		Exe:      catServer,
		Sentinel: `Tracker_NULL`,
		Timeout:  5 * time.Second,
	})
	assert.NoError(t, err)

	assert.False(t, srv.Running())
	assert.Equal(t, 0, srv.Pid())

	assert.NoError(t, srv.Start(context.Background()))
	assert.True(t, srv.Running())
	assert.Greater(t, srv.Pid(), 0)

	time.Sleep(10 * time.Millisecond)
	assert.Greater(t, srv.Uptime(), time.Duration(0))

	_, err = srv.Stop(false)
	assert.NoError(t, err)
	assert.False(t, srv.Running())
	assert.Equal(t, time.Duration(0), srv.Uptime())

	_, err = srv.Stop(false)
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestServerStartTwice(t *testing.T) {
	srv, err := New([]string{"ready"}, Options{
		Exe:      catServer,
		Sentinel: `ready`,
		Timeout:  5 * time.Second,
	})
	assert.NoError(t, err)

	assert.NoError(t, srv.Start(context.Background()))
	defer srv.Stop(true) // nolint: errcheck

	assert.ErrorIs(t, srv.Start(context.Background()), ErrAlreadyRunning)
}

func TestServerRestart(t *testing.T) {
	srv, err := New([]string{"ready"}, Options{
		Exe:      catServer,
		Sentinel: `ready`,
		Timeout:  5 * time.Second,
	})
	assert.NoError(t, err)

	assert.NoError(t, srv.Start(context.Background()))
	_, err = srv.Stop(false)
	assert.NoError(t, err)

	assert.NoError(t, srv.Start(context.Background()))
	_, err = srv.Stop(false)
	assert.NoError(t, err)
}

func TestServerSentinelTimeout(t *testing.T) {
	srv, err := New([]string{"silence"}, Options{
		Exe:      []string{"/bin/sh", "-c", `sleep 30`},
		Sentinel: `never appears`,
		Timeout:  100 * time.Millisecond,
	})
	assert.NoError(t, err)

	err = srv.Start(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, srv.Running())
}

func TestServerExitBeforeReady(t *testing.T) {
	srv, err := New([]string{"doomed"}, Options{
		Exe:      []string{"/bin/sh", "-c", `exit 3`},
		Sentinel: `never appears`,
		Timeout:  5 * time.Second,
	})
	assert.NoError(t, err)

	err = srv.Start(context.Background())
	assert.ErrorContains(t, err, "exited with code 3")
	assert.False(t, srv.Running())
}

func TestServerExitDuringSleep(t *testing.T) {
	srv, err := New([]string{"doomed"}, Options{
		Exe:   []string{"/bin/sh", "-c", `exit 0`},
		Sleep: 500 * time.Millisecond,
	})
	assert.NoError(t, err)

	err = srv.Start(context.Background())
	assert.ErrorContains(t, err, "before initialization completed")
	assert.False(t, srv.Running())
}

func TestServerBadSentinel(t *testing.T) {
	_, err := New(nil, Options{Sentinel: `(`})
	assert.Error(t, err)
}

type scriptedConn struct {
	batches [][]*vrpn.Report
	closed  bool
}

func (c *scriptedConn) Recv() ([]*vrpn.Report, error) {
	if len(c.batches) == 0 {
		return nil, nil
	}

	batch := c.batches[0]
	c.batches = c.batches[1:]
	return batch, nil
}

func (c *scriptedConn) Close() error {
	c.closed = true
	return nil
}

func TestNewLocalNoReceivers(t *testing.T) {
	_, err := NewLocal(nil, LocalOptions{})
	assert.ErrorIs(t, err, ErrNoReceivers)
}

func TestLocalServerRelay(t *testing.T) {
	tracker := vrpn.NewTestTracker(2, 60)

	conn := &scriptedConn{batches: [][]*vrpn.Report{
		{
			{Class: vrpn.Tracker, Sensor: 0},
			{Class: vrpn.Tracker, Sensor: 1},
		},
	}}

	srv, err := NewLocal([]*vrpn.Receiver{tracker}, LocalOptions{
		Options: Options{
			Exe:      catServer,
			Sentinel: `Tracker_NULL`,
			Timeout:  5 * time.Second,
		},
		Poll: time.Millisecond,
		Dialer: func(ctx context.Context, endpoint string) (vrpn.Conn, error) {
			return conn, nil
		},
	})
	assert.NoError(t, err)

	received := make(chan *vrpn.Report, 10)
	tracker.Handle(vrpn.EventInput, func(r *vrpn.Report) {
		received <- r
	})

	assert.NoError(t, srv.Start(context.Background()))
	assert.True(t, tracker.Connected())

	for i := 0; i < 2; i++ {
		select {
		case r := <-received:
			assert.Equal(t, tracker.Name(), r.Receiver)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for relayed report")
		}
	}

	_, err = srv.Stop(false)
	assert.NoError(t, err)
	assert.True(t, conn.closed)
	assert.False(t, tracker.Connected())

	select {
	case err := <-srv.Errors():
		t.Fatalf("unexpected relay error: %v", err)
	default:
	}
}

func TestLocalServerConnectFailure(t *testing.T) {
	tracker := vrpn.NewTestTracker(1, 60)

	srv, err := NewLocal([]*vrpn.Receiver{tracker}, LocalOptions{
		Options: Options{
			Exe:      catServer,
			Sentinel: `Tracker_NULL`,
			Timeout:  5 * time.Second,
		},
		Dialer: func(ctx context.Context, endpoint string) (vrpn.Conn, error) {
			return nil, fmt.Errorf("no route to device")
		},
	})
	assert.NoError(t, err)

	err = srv.Start(context.Background())
	assert.ErrorContains(t, err, "no route to device")
	assert.False(t, srv.Running())
}

func TestLocalServerSurfacesProcessExit(t *testing.T) {
	tracker := vrpn.NewTestTracker(1, 60)

	srv, err := NewLocal([]*vrpn.Receiver{tracker}, LocalOptions{
		Options: Options{
			// Exits shortly after printing the config.
			Exe:      []string{"/bin/sh", "-c", `cat -- "$0"`},
			Sentinel: `Tracker_NULL`,
			Timeout:  5 * time.Second,
		},
		Poll: time.Millisecond,
		Dialer: func(ctx context.Context, endpoint string) (vrpn.Conn, error) {
			return &scriptedConn{}, nil
		},
	})
	assert.NoError(t, err)

	if err := srv.Start(context.Background()); err != nil {
		// The process may exit before initialization completes; that is
		// also a correctly surfaced failure.
		assert.ErrorContains(t, err, "before initialization completed")
		return
	}

	select {
	case err := <-srv.Errors():
		assert.ErrorContains(t, err, "exited unexpectedly")
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for relay error")
	}

	_, err = srv.Stop(false)
	assert.ErrorIs(t, err, ErrNotRunning)
}
