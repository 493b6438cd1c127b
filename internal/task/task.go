// Package task is a small behaviour-tree executor for scripting missions
// against the simulation clock. Nodes are ticked once per physics step.
package task

import (
	"errors"
	"fmt"
)

// Status is the result of ticking a node.
type Status int

const (
	Invalid Status = iota
	Running
	Success
	Failure
)

func (s Status) String() string {
	switch s {
	case Invalid:
		return "INVALID"
	case Running:
		return "RUNNING"
	case Success:
		return "SUCCESS"
	case Failure:
		return "FAILURE"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// ErrInvalidTimeWindow is returned when a window would end before it starts.
var ErrInvalidTimeWindow = errors.New("invalid time window")

// Clock reads the simulation time in seconds.
type Clock interface {
	SimTime() float64
}

// Controls writes physics control inputs.
type Controls interface {
	SetControl(name string, value float64)
}

// Behaviour is the lifecycle a node runs.
//
// Initialise is called on the first tick of an activation, Update on every
// tick while running, and Terminate exactly once when the node leaves
// Running. Terminate receives Invalid when the node is stopped by its parent.
type Behaviour interface {
	Initialise() error
	Update() (Status, error)
	Terminate(Status)
}

// Task is a node in the tree.
type Task struct {
	name      string
	behaviour Behaviour
	status    Status
}

// New wraps a behaviour in a node.
func New(name string, b Behaviour) *Task {
	return &Task{name: name, behaviour: b}
}

func (t *Task) Name() string   { return t.name }
func (t *Task) Status() Status { return t.status }

// Tick runs one step of the node's lifecycle. An error from Initialise or
// Update fails the node; Terminate still runs if it was Running.
func (t *Task) Tick() (Status, error) {
	if t.status != Running {
		if err := t.behaviour.Initialise(); err != nil {
			t.status = Failure
			return Failure, fmt.Errorf("%s: %w", t.name, err)
		}
		t.status = Running
	}

	st, err := t.behaviour.Update()
	if err != nil {
		t.status = Failure
		t.behaviour.Terminate(Failure)
		return Failure, fmt.Errorf("%s: %w", t.name, err)
	}

	t.status = st
	if st != Running {
		t.behaviour.Terminate(st)
	}
	return st, nil
}

// Stop interrupts a running node. Nodes not running are only reset.
func (t *Task) Stop() {
	if t.status == Running {
		t.behaviour.Terminate(Invalid)
	}
	t.status = Invalid
}

// Funcs adapts plain functions to Behaviour. Nil fields are no-ops;
// a nil OnUpdate succeeds immediately.
type Funcs struct {
	OnInitialise func() error
	OnUpdate     func() (Status, error)
	OnTerminate  func(Status)
}

func (f Funcs) Initialise() error {
	if f.OnInitialise == nil {
		return nil
	}
	return f.OnInitialise()
}

func (f Funcs) Update() (Status, error) {
	if f.OnUpdate == nil {
		return Success, nil
	}
	return f.OnUpdate()
}

func (f Funcs) Terminate(s Status) {
	if f.OnTerminate != nil {
		f.OnTerminate(s)
	}
}
