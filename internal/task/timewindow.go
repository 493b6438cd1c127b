package task

import "fmt"

// Window selects the active simulation-time interval of a time-window leaf.
type Window struct {
	start, end float64
	duration   float64
	lazy       bool
}

// Between is the fixed window [start, end).
func Between(start, end float64) Window {
	return Window{start: start, end: end}
}

// For is a window of the given length starting at the simulation time of
// each activation.
func For(duration float64) Window {
	return Window{duration: duration, lazy: true}
}

func (w Window) resolve(now float64) (start, end float64, err error) {
	start, end = w.start, w.end
	if w.lazy {
		start, end = now, now+w.duration
	}
	if start > end {
		return 0, 0, fmt.Errorf("%w: [%g, %g)", ErrInvalidTimeWindow, start, end)
	}
	return start, end, nil
}

// WindowOption configures a time-window leaf.
type WindowOption func(*timeWindow)

// OnInitialise runs fn at the start of every activation.
func OnInitialise(fn func()) WindowOption {
	return func(w *timeWindow) { w.onInit = fn }
}

// OnTerminate runs fn once whenever the leaf leaves Running.
func OnTerminate(fn func()) WindowOption {
	return func(w *timeWindow) { w.onTerminate = fn }
}

type timeWindow struct {
	clock       Clock
	action      func()
	window      Window
	start, end  float64
	onInit      func()
	onTerminate func()
}

// NewTimeWindow returns a leaf that waits for the window to open, calls
// action on every tick inside it, and succeeds once the window has closed.
// Fixed windows are checked here; lazy ones at each activation.
func NewTimeWindow(name string, clock Clock, action func(), window Window, opts ...WindowOption) (*Task, error) {
	if !window.lazy {
		if _, _, err := window.resolve(0); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	w := &timeWindow{clock: clock, action: action, window: window}
	for _, opt := range opts {
		opt(w)
	}
	return New(name, w), nil
}

func (w *timeWindow) Initialise() error {
	start, end, err := w.window.resolve(w.clock.SimTime())
	if err != nil {
		return err
	}
	w.start, w.end = start, end
	if w.onInit != nil {
		w.onInit()
	}
	return nil
}

func (w *timeWindow) Update() (Status, error) {
	now := w.clock.SimTime()
	switch {
	case now < w.start:
		return Running, nil
	case now < w.end:
		if w.action != nil {
			w.action()
		}
		return Running, nil
	default:
		return Success, nil
	}
}

func (w *timeWindow) Terminate(Status) {
	if w.onTerminate != nil {
		w.onTerminate()
	}
}
