package vrpn

import (
	"testing"
)

func TestDispatchInRegistrationOrder(t *testing.T) {
	d := &Dispatcher{}

	var order []int
	for i := 0; i < 3; i++ {
		i := i
		d.Handle(EventInput, func(r *Report) {
			order = append(order, i)
		})
	}

	n := d.Dispatch(EventInput, &Report{})
	if n != 3 {
		t.Fatalf("expected 3 handlers invoked, got %d", n)
	}

	for i, got := range order {
		if got != i {
			t.Errorf("handler %d ran out of order: %v", i, order)
		}
	}
}

func TestDispatchNoHandlers(t *testing.T) {
	d := &Dispatcher{}

	if n := d.Dispatch(EventInput, &Report{}); n != 0 {
		t.Fatalf("expected no handlers invoked, got %d", n)
	}
	if n := d.Dispatch("unknown", &Report{}); n != 0 {
		t.Fatalf("expected no handlers invoked for unknown event, got %d", n)
	}
}

func TestDispatchSelectsEvent(t *testing.T) {
	d := &Dispatcher{}

	input := 0
	other := 0
	d.Handle(EventInput, func(r *Report) { input++ })
	d.Handle("other", func(r *Report) { other++ })

	d.Dispatch(EventInput, &Report{})

	if input != 1 || other != 0 {
		t.Fatalf("expected only input handler to run, got input=%d other=%d", input, other)
	}
}
