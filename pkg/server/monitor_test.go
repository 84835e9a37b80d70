package server

import (
	"errors"
	"regexp"
	"strings"
	"testing"
)

func appender(items *[]string, stopAt string) func(string) error {
	return func(line string) error {
		if line == stopAt {
			return ErrStopMonitor
		}
		*items = append(*items, line)
		return nil
	}
}

func TestMonitorStopsAtSentinel(t *testing.T) {
	feed := strings.NewReader("0\n1\n2\n3\n4\n")

	var items []string
	if err := Monitor(feed, appender(&items, "3")); !errors.Is(err, ErrStopMonitor) {
		t.Fatal(err)
	}

	if got := strings.Join(items, ","); got != "0,1,2" {
		t.Fatalf("expected 0,1,2, got %s", got)
	}
}

func TestMonitorRunsToEndOfStream(t *testing.T) {
	feed := strings.NewReader("0\n1\n2\n")

	var items []string
	if err := Monitor(feed, appender(&items, "30")); err != nil {
		t.Fatal(err)
	}

	if len(items) != 3 {
		t.Fatalf("expected all 3 lines, got %d", len(items))
	}
}

func TestMonitorPropagatesError(t *testing.T) {
	feed := strings.NewReader("0\n1\n")
	boom := errors.New("boom")

	err := Monitor(feed, func(line string) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestUntilMatch(t *testing.T) {
	var logged []string
	fn := untilMatch(regexp.MustCompile(`ready`), func(line string) {
		logged = append(logged, line)
	})

	if err := fn("starting up"); err != nil {
		t.Fatalf("expected nil before match, got %v", err)
	}
	if err := fn("server ready"); !errors.Is(err, ErrStopMonitor) {
		t.Fatalf("expected ErrStopMonitor on match, got %v", err)
	}

	if len(logged) != 2 {
		t.Fatalf("expected both lines logged, got %d", len(logged))
	}
}
