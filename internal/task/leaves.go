package task

import "fmt"

// NewTrigger succeeds on the first tick where predicate holds.
func NewTrigger(name string, predicate func() bool) *Task {
	return New(name, Funcs{
		OnUpdate: func() (Status, error) {
			if predicate() {
				return Success, nil
			}
			return Running, nil
		},
	})
}

// NewIdle never finishes. It keeps a Parallel running until stopped.
func NewIdle(name string) *Task {
	return New(name, Funcs{
		OnUpdate: func() (Status, error) { return Running, nil },
	})
}

// Const returns a value source that always yields v.
func Const(v float64) func() float64 {
	return func() float64 { return v }
}

// NewSetControl writes value() to control on every tick and succeeds on the
// tick where until holds. The write happens before the check.
func NewSetControl(name string, controls Controls, control string, value func() float64, until func() bool) *Task {
	return New(name, Funcs{
		OnUpdate: func() (Status, error) {
			controls.SetControl(control, value())
			if until() {
				return Success, nil
			}
			return Running, nil
		},
	})
}

// NewDoublet commands +amplitude on control for half the period, then
// -amplitude for the other half. The control is set to zero whenever the
// doublet leaves Running, including when a parent stops it mid-way.
func NewDoublet(name string, clock Clock, controls Controls, control string, amplitude, period float64) (*Task, error) {
	if !(period > 0) {
		return nil, fmt.Errorf("%s: %w: period %g", name, ErrInvalidTimeWindow, period)
	}
	half := period / 2

	up, err := NewTimeWindow(name+".up", clock,
		func() { controls.SetControl(control, amplitude) },
		For(half),
	)
	if err != nil {
		return nil, err
	}
	down, err := NewTimeWindow(name+".down", clock,
		func() { controls.SetControl(control, -amplitude) },
		For(half),
	)
	if err != nil {
		return nil, err
	}
	return New(name, &doublet{
		sequence: &sequence{children: []*Task{up, down}},
		zero:     func() { controls.SetControl(control, 0) },
	}), nil
}

type doublet struct {
	*sequence
	zero func()
}

func (d *doublet) Terminate(s Status) {
	d.sequence.Terminate(s)
	d.zero()
}
