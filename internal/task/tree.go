package task

import "log/slog"

// Tree drives a root node until it finishes.
type Tree struct {
	root   *Task
	status Status
	err    error
	ticks  int
	logger *slog.Logger
}

// NewTree wraps root. A nil logger uses slog.Default.
func NewTree(root *Task, logger *slog.Logger) *Tree {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tree{root: root, logger: logger.With("component", "task", "tree", root.Name())}
}

// Tick ticks the root once. After the root has finished, Tick returns the
// final status and error without ticking again.
func (t *Tree) Tick() (Status, error) {
	if t.Done() {
		return t.status, t.err
	}

	st, err := t.root.Tick()
	t.ticks++
	if st != t.status {
		t.logger.Debug("Tree status changed", "from", t.status, "to", st, "tick", t.ticks)
	}
	t.status = st
	t.err = err

	if err != nil {
		t.logger.Error("Mission tree aborted", "error", err, "tick", t.ticks)
	} else if st != Running {
		t.logger.Info("Mission tree finished", "status", st, "ticks", t.ticks)
	}
	return st, err
}

func (t *Tree) Status() Status { return t.status }

// Err returns the error that aborted the tree, if any.
func (t *Tree) Err() error { return t.err }

// Ticks returns how many times the root has been ticked.
func (t *Tree) Ticks() int { return t.ticks }

// Done reports whether the root reached Success or Failure.
func (t *Tree) Done() bool {
	return t.status == Success || t.status == Failure
}

// Stop interrupts the root if it is still running.
func (t *Tree) Stop() {
	if t.Done() {
		return
	}
	t.root.Stop()
	t.status = t.root.Status()
}
