package server

import (
	"bufio"
	"errors"
	"io"
	"regexp"
)

// ErrStopMonitor stops a monitor before its stream ends.
var ErrStopMonitor = errors.New("stop monitor")

// Monitor calls fn on every line read from r, returning fn's error as soon
// as it yields one. It returns nil when the stream ends; a monitor stopped
// early by fn returns ErrStopMonitor, letting callers tell the two apart.
func Monitor(r io.Reader, fn func(line string) error) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := fn(scanner.Text()); err != nil {
			return err
		}
	}

	return scanner.Err()
}

// untilMatch returns a monitor function that logs every line and stops the
// monitor once the pattern matches.
func untilMatch(pattern *regexp.Regexp, log func(line string)) func(string) error {
	return func(line string) error {
		if log != nil {
			log(line)
		}
		if pattern.MatchString(line) {
			return ErrStopMonitor
		}
		return nil
	}
}
