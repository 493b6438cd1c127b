package task

// Policy decides when a Parallel finishes.
type Policy int

const (
	// SuccessOnAll succeeds once every child has succeeded and fails as
	// soon as one child fails.
	SuccessOnAll Policy = iota
	// SuccessOnOne succeeds as soon as one child succeeds and fails once
	// every child has failed.
	SuccessOnOne
)

type sequence struct {
	children []*Task
	current  int
}

// NewSequence ticks children in order. A child that is Running or failed
// stops the scan; the sequence succeeds when the last child succeeds.
func NewSequence(name string, children ...*Task) *Task {
	return New(name, &sequence{children: children})
}

func (s *sequence) Initialise() error {
	s.current = 0
	for _, c := range s.children {
		c.Stop()
	}
	return nil
}

func (s *sequence) Update() (Status, error) {
	for s.current < len(s.children) {
		st, err := s.children[s.current].Tick()
		if err != nil {
			return Failure, err
		}
		if st != Success {
			return st, nil
		}
		s.current++
	}
	return Success, nil
}

func (s *sequence) Terminate(Status) {
	for _, c := range s.children {
		c.Stop()
	}
}

type parallel struct {
	policy    Policy
	children  []*Task
	succeeded []bool
	failed    []bool
}

// NewParallel ticks every unfinished child each tick. A child that has
// already finished in the current activation is not ticked again.
func NewParallel(name string, policy Policy, children ...*Task) *Task {
	return New(name, &parallel{
		policy:    policy,
		children:  children,
		succeeded: make([]bool, len(children)),
		failed:    make([]bool, len(children)),
	})
}

func (p *parallel) Initialise() error {
	for i, c := range p.children {
		c.Stop()
		p.succeeded[i] = false
		p.failed[i] = false
	}
	return nil
}

func (p *parallel) Update() (Status, error) {
	successes, failures := 0, 0
	for i, c := range p.children {
		if p.succeeded[i] {
			successes++
			continue
		}
		if p.failed[i] {
			failures++
			continue
		}

		st, err := c.Tick()
		if err != nil {
			return Failure, err
		}
		switch st {
		case Success:
			p.succeeded[i] = true
			successes++
		case Failure:
			p.failed[i] = true
			failures++
		}
	}

	n := len(p.children)
	switch p.policy {
	case SuccessOnOne:
		if successes > 0 {
			return Success, nil
		}
		if failures == n {
			return Failure, nil
		}
	default:
		if failures > 0 {
			return Failure, nil
		}
		if successes == n {
			return Success, nil
		}
	}
	return Running, nil
}

// Terminate stops children that are still running.
func (p *parallel) Terminate(Status) {
	for _, c := range p.children {
		if c.Status() == Running {
			c.Stop()
		}
	}
}
