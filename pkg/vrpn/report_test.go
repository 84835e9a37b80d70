package vrpn

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseReport(t *testing.T) {
	for _, tc := range []struct {
		name string
		line string
		want *Report
	}{
		{
			name: "tracker",
			line: "Tracker abc123@localhost, sensor 1: pos (-0.001, 0.002, 0.003); quat (0, 0, 0, 1)",
			want: &Report{
				Receiver: "abc123",
				Class:    Tracker,
				Sensor:   1,
				Pos:      [3]float64{-0.001, 0.002, 0.003},
				Quat:     [4]float64{0, 0, 0, 1},
			},
		},
		{
			name: "button",
			line: "Button abc123@localhost, number 3, state 1",
			want: &Report{
				Receiver: "abc123",
				Class:    Button,
				Sensor:   3,
				State:    1,
			},
		},
		{
			name: "dial",
			line: "Dial abc123@localhost, dial 0, delta 0.25",
			want: &Report{
				Receiver: "abc123",
				Class:    Dial,
				Sensor:   0,
				Delta:    0.25,
			},
		},
		{
			name: "analog",
			line: "Analog abc123@localhost: 0.1, 0.2, 0.3 (3 chans)",
			want: &Report{
				Receiver: "abc123",
				Class:    Analog,
				Channels: []float64{0.1, 0.2, 0.3},
			},
		},
		{
			name: "text",
			line: "Text abc123@localhost: device is warming up",
			want: &Report{
				Receiver: "abc123",
				Class:    Text,
				Message:  "device is warming up",
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseReport(tc.line)
			assert.NoError(t, err)

			assert.False(t, got.Time.IsZero())
			got.Time = tc.want.Time

			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseReportUnrecognized(t *testing.T) {
	for _, line := range []string{
		"",
		"vrpn: connection established",
		"Opened device abc123@localhost",
		"Tracker with no endpoint",
	} {
		_, err := ParseReport(line)
		if !errors.Is(err, ErrUnrecognizedReport) {
			t.Errorf("expected ErrUnrecognizedReport for %q, got %v", line, err)
		}
	}
}

func TestParseReportMalformed(t *testing.T) {
	// Matches the tracker pattern but with a truncated position.
	_, err := ParseReport("Tracker abc@localhost, sensor 0: pos (1, 2); quat (0, 0, 0, 1)")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnrecognizedReport)
}

func TestClassRoundTrip(t *testing.T) {
	for _, class := range []Class{Tracker, Button, Dial, Analog, Text} {
		got, err := ParseClass(class.String())
		assert.NoError(t, err)
		assert.Equal(t, class, got)
	}

	_, err := ParseClass("gamepad")
	assert.Error(t, err)
}
