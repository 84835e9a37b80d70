package vrpn

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Class is the kind of device a receiver represents, mirroring the VRPN
// client-side object classes.
type Class int

const (
	Tracker Class = iota
	Button
	Dial
	Analog
	Text
)

func (c Class) String() string {
	switch c {
	case Tracker:
		return "tracker"
	case Button:
		return "button"
	case Dial:
		return "dial"
	case Analog:
		return "analog"
	case Text:
		return "text"
	default:
		panic(fmt.Sprintf("invalid class: %d", c))
	}
}

// ParseClass is the inverse of Class.String.
func ParseClass(s string) (Class, error) {
	switch strings.ToLower(s) {
	case "tracker":
		return Tracker, nil
	case "button":
		return Button, nil
	case "dial":
		return Dial, nil
	case "analog":
		return Analog, nil
	case "text":
		return Text, nil
	default:
		return 0, fmt.Errorf("unrecognized class: %s", s)
	}
}

// Report is one data sample from a device. Only the fields relevant to the
// report's class are set.
type Report struct {
	Receiver string    `json:"receiver"`
	Class    Class     `json:"class"`
	Sensor   int       `json:"sensor"`
	Time     time.Time `json:"time"`

	// tracker
	Pos  [3]float64 `json:"pos,omitempty"`
	Quat [4]float64 `json:"quat,omitempty"`

	// button
	State int `json:"state,omitempty"`

	// dial, in revolutions
	Delta float64 `json:"delta,omitempty"`

	// analog
	Channels []float64 `json:"channels,omitempty"`

	// text
	Message string `json:"message,omitempty"`
}

// ErrUnrecognizedReport is returned by ParseReport for lines that do not
// match any known report format. Callers skip such lines, the console
// client prints informational output interleaved with reports.
var ErrUnrecognizedReport = errors.New("unrecognized report line")

// Line formats printed by the vrpn console client, one report per line.
var (
	trackerPattern = regexp.MustCompile(`^Tracker\s+(\S+?)@\S+, sensor (\d+):\s*pos \(([^)]*)\); quat \(([^)]*)\)`)
	buttonPattern  = regexp.MustCompile(`^Button\s+(\S+?)@\S+, number (\d+), state (\d+)`)
	dialPattern    = regexp.MustCompile(`^Dial\s+(\S+?)@\S+, dial (\d+), delta ([-+0-9.eE]+)`)
	analogPattern  = regexp.MustCompile(`^Analog\s+(\S+?)@\S+:\s*(.*?)\s*\((\d+) chans\)`)
	textPattern    = regexp.MustCompile(`^Text\s+(\S+?)@\S+:\s*(.*)`)
)

// ParseReport parses one line of console client output into a Report. The
// report's Time is set to the current wall time, the wire format does not
// carry timestamps.
func ParseReport(line string) (*Report, error) {
	now := time.Now()

	if m := trackerPattern.FindStringSubmatch(line); m != nil {
		sensor, _ := strconv.Atoi(m[2])
		pos, err := parseFloats(m[3], 3)
		if err != nil {
			return nil, fmt.Errorf("bad tracker pos: %w", err)
		}
		quat, err := parseFloats(m[4], 4)
		if err != nil {
			return nil, fmt.Errorf("bad tracker quat: %w", err)
		}
		r := &Report{Receiver: m[1], Class: Tracker, Sensor: sensor, Time: now}
		copy(r.Pos[:], pos)
		copy(r.Quat[:], quat)
		return r, nil
	}

	if m := buttonPattern.FindStringSubmatch(line); m != nil {
		number, _ := strconv.Atoi(m[2])
		state, _ := strconv.Atoi(m[3])
		return &Report{Receiver: m[1], Class: Button, Sensor: number, State: state, Time: now}, nil
	}

	if m := dialPattern.FindStringSubmatch(line); m != nil {
		number, _ := strconv.Atoi(m[2])
		delta, err := strconv.ParseFloat(m[3], 64)
		if err != nil {
			return nil, fmt.Errorf("bad dial delta: %w", err)
		}
		return &Report{Receiver: m[1], Class: Dial, Sensor: number, Delta: delta, Time: now}, nil
	}

	if m := analogPattern.FindStringSubmatch(line); m != nil {
		n, _ := strconv.Atoi(m[3])
		channels, err := parseFloats(m[2], n)
		if err != nil {
			return nil, fmt.Errorf("bad analog channels: %w", err)
		}
		return &Report{Receiver: m[1], Class: Analog, Channels: channels, Time: now}, nil
	}

	if m := textPattern.FindStringSubmatch(line); m != nil {
		return &Report{Receiver: m[1], Class: Text, Message: m[2], Time: now}, nil
	}

	return nil, ErrUnrecognizedReport
}

func parseFloats(s string, n int) ([]float64, error) {
	fields := strings.Split(s, ",")
	if len(fields) != n {
		return nil, fmt.Errorf("expected %d values, got %d", n, len(fields))
	}

	values := make([]float64, n)
	for i, field := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}

	return values, nil
}
