package vrpn

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrAlreadyConnected = errors.New("receiver already connected")
	ErrNotConnected     = errors.New("receiver not connected")
)

// Device describes one device entry in the server configuration file. Most
// callers use the typed constructors in devices.go instead of filling this
// in by hand; see the sample vrpn.cfg shipped with VRPN for the arguments
// each device type takes.
type Device struct {
	// Type is the device name as recognized by the server configuration
	// file, e.g. "vrpn_Tracker_NULL".
	Type string

	// Class selects the client-side object used to attach to the device.
	Class Class

	// Sensors is the number of per-sensor dispatchers to create.
	Sensors int

	// Args is the argument list for the device's configuration line.
	Args []string

	// ExtraLines are additional configuration lines, e.g. commands to send
	// to the device at startup.
	ExtraLines []string

	// Continuation joins configuration lines with a trailing backslash,
	// required by some device types.
	Continuation bool
}

// Receiver is one hardware input device. It relays every sample the server
// reports for the device as an EventInput event, and routes samples to
// per-sensor dispatchers by sensor (or button/dial) number.
type Receiver struct {
	Dispatcher

	device  Device
	name    string
	sensors []*Sensor

	conn Conn
}

// NewReceiver builds a receiver for the given device. The receiver's name
// is generated randomly and uniquely identifies it in the server
// configuration and on the wire.
func NewReceiver(device Device) *Receiver {
	id := uuid.New()

	r := &Receiver{
		device: device,
		name:   hex.EncodeToString(id[:]),
	}

	r.sensors = make([]*Sensor, device.Sensors)
	for i := range r.sensors {
		r.sensors[i] = &Sensor{parent: r.String(), number: i}
	}

	return r
}

func (r *Receiver) Name() string {
	return r.name
}

func (r *Receiver) Class() Class {
	return r.device.Class
}

func (r *Receiver) DeviceType() string {
	return r.device.Type
}

// Connected reports whether the receiver has been attached to a server.
func (r *Receiver) Connected() bool {
	return r.conn != nil
}

// ConfigText is the server configuration file entry for this device. The
// first line is the device type, name, and arguments joined by tabs;
// additional lines follow.
func (r *Receiver) ConfigText() string {
	first := append([]string{r.device.Type, r.name}, r.device.Args...)

	lines := []string{strings.Join(first, "\t")}
	lines = append(lines, r.device.ExtraLines...)

	joiner := "\n"
	if r.device.Continuation {
		joiner = "\\\n"
	}
	return strings.Join(lines, joiner) + "\n"
}

// Connect attaches the receiver to a running server via dial. A receiver
// can be connected at most once at a time.
func (r *Receiver) Connect(ctx context.Context, host string, dial Dialer) error {
	if r.conn != nil {
		return ErrAlreadyConnected
	}

	conn, err := dial(ctx, fmt.Sprintf("%s@%s", r.name, host))
	if err != nil {
		return fmt.Errorf("failed to connect %s: %w", r, err)
	}

	r.conn = conn
	return nil
}

// Mainloop drains pending reports from the connection and dispatches an
// EventInput event for each, on the receiver and on the sensor the report
// addresses. Call it regularly to ensure data is delivered promptly.
func (r *Receiver) Mainloop() error {
	if r.conn == nil {
		return ErrNotConnected
	}

	reports, err := r.conn.Recv()
	if err != nil {
		return err
	}

	for _, report := range reports {
		report.Receiver = r.name
		r.Dispatch(EventInput, report)

		if report.Sensor >= 0 && report.Sensor < len(r.sensors) {
			r.sensors[report.Sensor].Dispatch(EventInput, report)
		}
	}

	return nil
}

// Close detaches the receiver from the server. A closed receiver can be
// connected again.
func (r *Receiver) Close() error {
	if r.conn == nil {
		return nil
	}

	err := r.conn.Close()
	r.conn = nil
	return err
}

// NumSensors is the number of per-sensor dispatchers.
func (r *Receiver) NumSensors() int {
	return len(r.sensors)
}

// Sensor returns the dispatcher for sensor i. It panics if i is out of
// range.
func (r *Receiver) Sensor(i int) *Sensor {
	return r.sensors[i]
}

func (r *Receiver) Sensors() []*Sensor {
	return r.sensors
}

func (r *Receiver) String() string {
	return fmt.Sprintf("%s %s (%s)", r.device.Type, r.name, r.device.Class)
}

// Sensor is a per-sensor event dispatcher. Sensors are created by their
// parent receiver, never directly.
type Sensor struct {
	Dispatcher

	parent string
	number int
}

func (s *Sensor) Number() int {
	return s.number
}

func (s *Sensor) String() string {
	return fmt.Sprintf("sensor #%d of %s", s.number, s.parent)
}
