package vrpn

// EventInput fires whenever a receiver, or one of its sensors, gets a new
// sample from the server.
const EventInput = "input"

// Handler handles one dispatched report.
type Handler func(*Report)

// Dispatcher delivers named events to registered handlers. Delivery is
// synchronous, in registration order, on the goroutine that calls Dispatch.
// A Dispatcher is not safe for concurrent use; handlers are expected to be
// registered before the relay loop starts.
type Dispatcher struct {
	handlers map[string][]Handler
}

// Handle registers h for the named event.
func (d *Dispatcher) Handle(event string, h Handler) {
	if d.handlers == nil {
		d.handlers = map[string][]Handler{}
	}
	d.handlers[event] = append(d.handlers[event], h)
}

// Dispatch invokes every handler registered for the named event and returns
// the number of handlers invoked. Dispatching an event with no handlers is
// a no-op.
func (d *Dispatcher) Dispatch(event string, r *Report) int {
	handlers := d.handlers[event]
	for _, h := range handlers {
		h(r)
	}

	return len(handlers)
}
