package mission

import (
	"log/slog"
	"sync"
	"time"
)

// Run describes the mission currently being stepped.
type Run struct {
	Name    string
	Step    int
	SimTime float64
	Started time.Time
}

// Context holds the current run state, shared between the runner and the
// logging handler.
type Context struct {
	mu  sync.RWMutex
	run Run
}

// NewContext creates a new Context with default values
func NewContext() *Context {
	return &Context{run: Run{Name: "No mission loaded"}}
}

// GetRun returns a copy of the current run
func (mc *Context) GetRun() Run {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.run
}

// Start begins a new run, resetting step and time
func (mc *Context) Start(name string, now time.Time) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.run = Run{Name: name, Started: now}
}

// Advance records the step just completed
func (mc *Context) Advance(step int, simTime float64) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.run.Step = step
	mc.run.SimTime = simTime
}

// LogAttrs returns the run fields attached to every log record.
func (mc *Context) LogAttrs() []slog.Attr {
	r := mc.GetRun()
	return []slog.Attr{
		slog.String("mission", r.Name),
		slog.Int("step", r.Step),
		slog.Float64("simTime", r.SimTime),
	}
}
