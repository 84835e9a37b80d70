package vrpn

import "strconv"

// NewTestTracker builds a tracker that reports identity information for
// each of its sensors at the given rate in Hz.
func NewTestTracker(sensors int, rate float64) *Receiver {
	return NewReceiver(Device{
		Type:    "vrpn_Tracker_NULL",
		Class:   Tracker,
		Sensors: sensors,
		Args:    []string{strconv.Itoa(sensors), formatFloat(rate)},
	})
}

// NewTestButton builds a button device that toggles each of its buttons at
// the given rate in Hz.
func NewTestButton(buttons int, rate float64) *Receiver {
	return NewReceiver(Device{
		Type:    "vrpn_Button_Example",
		Class:   Button,
		Sensors: buttons,
		Args:    []string{strconv.Itoa(buttons), formatFloat(rate)},
	})
}

// NewTestDial builds a dial device that spins each of its dials at spinRate
// revolutions per second, reporting at reportRate Hz.
func NewTestDial(dials int, spinRate, reportRate float64) *Receiver {
	return NewReceiver(Device{
		Type:    "vrpn_Dial_Example",
		Class:   Dial,
		Sensors: dials,
		Args:    []string{strconv.Itoa(dials), formatFloat(spinRate), formatFloat(reportRate)},
	})
}

// NewPolhemusLibertyLatus builds a Polhemus Liberty Latus high-speed
// tracker with the given number of wireless markers. Extra configuration
// lines hold commands to send to the device at startup.
func NewPolhemusLibertyLatus(markers int, extraLines ...string) *Receiver {
	return NewReceiver(Device{
		Type:    "vrpn_Tracker_LibertyHS",
		Class:   Tracker,
		Sensors: markers,
		// Second argument is the baud rate, which has no effect on this
		// device; 115200 is a sensible value.
		Args:         []string{strconv.Itoa(markers), "115200"},
		ExtraLines:   extraLines,
		Continuation: true,
	})
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
