package task

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t float64 }

func (c *fakeClock) SimTime() float64 { return c.t }

type fakeControls struct {
	values map[string]float64
	writes int
}

func newFakeControls() *fakeControls {
	return &fakeControls{values: make(map[string]float64)}
}

func (c *fakeControls) SetControl(name string, v float64) {
	c.values[name] = v
	c.writes++
}

// recorder is a leaf that returns a scripted status and counts lifecycle calls.
type recorder struct {
	result     Status
	inits      int
	updates    int
	terminated []Status
	initErr    error
	updateErr  error
}

func (r *recorder) Initialise() error       { r.inits++; return r.initErr }
func (r *recorder) Update() (Status, error) { r.updates++; return r.result, r.updateErr }
func (r *recorder) Terminate(s Status)      { r.terminated = append(r.terminated, s) }

func TestTask_Lifecycle(t *testing.T) {
	r := &recorder{result: Running}
	node := New("leaf", r)
	assert.Equal(t, Invalid, node.Status())

	st, err := node.Tick()
	require.NoError(t, err)
	assert.Equal(t, Running, st)
	node.Tick()
	assert.Equal(t, 1, r.inits, "initialise only on entry")
	assert.Equal(t, 2, r.updates)
	assert.Empty(t, r.terminated)

	r.result = Success
	st, _ = node.Tick()
	assert.Equal(t, Success, st)
	assert.Equal(t, []Status{Success}, r.terminated)

	// Re-entry initialises again.
	r.result = Running
	node.Tick()
	assert.Equal(t, 2, r.inits)
}

func TestTask_StopTerminatesOnlyRunning(t *testing.T) {
	r := &recorder{result: Running}
	node := New("leaf", r)

	node.Stop()
	assert.Empty(t, r.terminated)

	node.Tick()
	node.Stop()
	assert.Equal(t, []Status{Invalid}, r.terminated)
	assert.Equal(t, Invalid, node.Status())
}

func TestTask_Errors(t *testing.T) {
	boom := errors.New("boom")

	r := &recorder{initErr: boom}
	st, err := New("leaf", r).Tick()
	assert.Equal(t, Failure, st)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, r.updates)
	assert.Empty(t, r.terminated)

	r = &recorder{updateErr: boom}
	st, err = New("leaf", r).Tick()
	assert.Equal(t, Failure, st)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []Status{Failure}, r.terminated)
}

func TestSequence_ShortCircuitsOnFailure(t *testing.T) {
	a := &recorder{result: Success}
	b := &recorder{result: Failure}
	c := &recorder{result: Success}
	seq := NewSequence("seq", New("a", a), New("b", b), New("c", c))

	st, err := seq.Tick()
	require.NoError(t, err)
	assert.Equal(t, Failure, st)
	assert.Equal(t, 1, a.updates)
	assert.Equal(t, 1, b.updates)
	assert.Zero(t, c.inits, "third leaf never ticked")
	assert.Zero(t, c.updates)
}

func TestSequence_AdvancesAcrossTicks(t *testing.T) {
	a := &recorder{result: Running}
	b := &recorder{result: Success}
	seq := NewSequence("seq", New("a", a), New("b", b))

	st, _ := seq.Tick()
	assert.Equal(t, Running, st)
	assert.Zero(t, b.updates)

	a.result = Success
	st, _ = seq.Tick()
	assert.Equal(t, Success, st)
	assert.Equal(t, 1, b.updates)

	// A finished sequence restarts from the first child.
	a.result = Running
	st, _ = seq.Tick()
	assert.Equal(t, Running, st)
	assert.Equal(t, 3, a.updates)
}

func TestSequence_Empty(t *testing.T) {
	st, err := NewSequence("empty").Tick()
	require.NoError(t, err)
	assert.Equal(t, Success, st)
}

func TestParallel_AllSuccessWaitsForSlowestWindow(t *testing.T) {
	clock := &fakeClock{}
	short, err := NewTimeWindow("short", clock, nil, For(1))
	require.NoError(t, err)
	long, err := NewTimeWindow("long", clock, nil, For(3))
	require.NoError(t, err)
	par := NewParallel("par", SuccessOnAll, short, long)

	var finishedAt float64 = -1
	for clock.t = 0; clock.t <= 5; clock.t += 0.5 {
		st, err := par.Tick()
		require.NoError(t, err)
		if st == Success {
			finishedAt = clock.t
			break
		}
		if clock.t >= 1 {
			assert.Equal(t, Success, short.Status())
		}
	}
	assert.Equal(t, 3.0, finishedAt, "succeeds on the tick the second child succeeds")
}

func TestParallel_FinishedChildrenNotReticked(t *testing.T) {
	done := &recorder{result: Success}
	busy := &recorder{result: Running}
	par := NewParallel("par", SuccessOnAll, New("done", done), New("busy", busy))

	for i := 0; i < 3; i++ {
		st, _ := par.Tick()
		assert.Equal(t, Running, st)
	}
	assert.Equal(t, 1, done.updates)
	assert.Equal(t, 3, busy.updates)
}

func TestParallel_SuccessOnOneStopsOthers(t *testing.T) {
	done := &recorder{result: Success}
	busy := &recorder{result: Running}
	par := NewParallel("par", SuccessOnOne, New("busy", busy), New("done", done))

	st, err := par.Tick()
	require.NoError(t, err)
	assert.Equal(t, Success, st)
	assert.Equal(t, []Status{Invalid}, busy.terminated, "running sibling stopped")
}

func TestParallel_FailurePolicies(t *testing.T) {
	bad := &recorder{result: Failure}
	busy := &recorder{result: Running}
	st, _ := NewParallel("all", SuccessOnAll, New("bad", bad), New("busy", busy)).Tick()
	assert.Equal(t, Failure, st)

	a := &recorder{result: Failure}
	b := &recorder{result: Failure}
	st, _ = NewParallel("one", SuccessOnOne, New("a", a), New("b", b)).Tick()
	assert.Equal(t, Failure, st)
}

func TestParallel_WithIdleNeverFinishesOnAll(t *testing.T) {
	par := NewParallel("par", SuccessOnAll, NewIdle("idle"), NewTrigger("now", func() bool { return true }))
	for i := 0; i < 5; i++ {
		st, _ := par.Tick()
		assert.Equal(t, Running, st)
	}
}

func TestTimeWindow_LazyWindowFromClock(t *testing.T) {
	clock := &fakeClock{t: 10}
	calls, terminates := 0, 0
	leaf, err := NewTimeWindow("window", clock, func() { calls++ }, For(5),
		OnTerminate(func() { terminates++ }))
	require.NoError(t, err)

	st, _ := leaf.Tick()
	assert.Equal(t, Running, st)
	assert.Equal(t, 1, calls)

	clock.t = 14.9
	st, _ = leaf.Tick()
	assert.Equal(t, Running, st)
	assert.Equal(t, 2, calls)

	clock.t = 15.0
	st, _ = leaf.Tick()
	assert.Equal(t, Success, st)
	assert.Equal(t, 2, calls, "action not invoked once the window closed")
	assert.Equal(t, 1, terminates)
}

func TestTimeWindow_RecomputedOnReentry(t *testing.T) {
	clock := &fakeClock{t: 0}
	inits := 0
	w, err := NewTimeWindow("window", clock, nil, For(2), OnInitialise(func() { inits++ }))
	require.NoError(t, err)
	leaf := w.behaviour.(*timeWindow)

	w.Tick()
	assert.Equal(t, 0.0, leaf.start)
	assert.Equal(t, 2.0, leaf.end)

	clock.t = 2
	st, _ := w.Tick()
	require.Equal(t, Success, st)

	clock.t = 7
	w.Tick()
	assert.Equal(t, 7.0, leaf.start)
	assert.Equal(t, 9.0, leaf.end)
	assert.Equal(t, 2, inits)
}

func TestTimeWindow_WaitsForFixedStart(t *testing.T) {
	clock := &fakeClock{t: 0}
	calls := 0
	leaf, err := NewTimeWindow("window", clock, func() { calls++ }, Between(2, 4))
	require.NoError(t, err)

	st, _ := leaf.Tick()
	assert.Equal(t, Running, st)
	assert.Zero(t, calls)

	clock.t = 2
	leaf.Tick()
	assert.Equal(t, 1, calls)

	clock.t = 4
	st, _ = leaf.Tick()
	assert.Equal(t, Success, st)
}

func TestTimeWindow_InvalidWindowRejected(t *testing.T) {
	clock := &fakeClock{}

	_, err := NewTimeWindow("fixed", clock, nil, Between(5, 2))
	assert.ErrorIs(t, err, ErrInvalidTimeWindow)

	leaf, err := NewTimeWindow("lazy", clock, nil, For(-3))
	require.NoError(t, err)
	st, err := leaf.Tick()
	assert.Equal(t, Failure, st)
	assert.ErrorIs(t, err, ErrInvalidTimeWindow)

	_, err = NewTimeWindow("empty", clock, nil, Between(3, 3))
	assert.NoError(t, err)
}

func TestTrigger(t *testing.T) {
	ready := false
	trig := NewTrigger("gear up", func() bool { return ready })

	st, _ := trig.Tick()
	assert.Equal(t, Running, st)

	ready = true
	st, _ = trig.Tick()
	assert.Equal(t, Success, st)
}

func TestSetControl_WritesUntilConditionHolds(t *testing.T) {
	controls := newFakeControls()
	n := 0
	leaf := NewSetControl("throttle", controls, "fcs/throttle-cmd-norm", Const(0.8), func() bool {
		n++
		return n >= 3
	})

	for i := 0; i < 3; i++ {
		leaf.Tick()
	}
	assert.Equal(t, Success, leaf.Status())
	assert.Equal(t, 3, controls.writes)
	assert.Equal(t, 0.8, controls.values["fcs/throttle-cmd-norm"])
}

func TestDoublet(t *testing.T) {
	clock := &fakeClock{t: 10}
	controls := newFakeControls()
	const elevator = "fcs/elevator-cmd-norm"

	d, err := NewDoublet("pitch doublet", clock, controls, elevator, 0.2, 2)
	require.NoError(t, err)

	type sample struct {
		t    float64
		want float64
		st   Status
	}
	for _, s := range []sample{
		{10.0, 0.2, Running},
		{10.5, 0.2, Running},
		{11.0, -0.2, Running},
		{11.9, -0.2, Running},
		{12.0, 0, Success},
	} {
		clock.t = s.t
		st, err := d.Tick()
		require.NoError(t, err)
		assert.Equal(t, s.st, st, "t=%v", s.t)
		assert.Equal(t, s.want, controls.values[elevator], "t=%v", s.t)
	}
}

func TestDoublet_StoppedMidwayZeroesControl(t *testing.T) {
	clock := &fakeClock{t: 0}
	controls := newFakeControls()
	d, err := NewDoublet("yaw", clock, controls, "fcs/rudder-cmd-norm", 0.1, 4)
	require.NoError(t, err)

	d.Tick()
	clock.t = 2.5
	d.Tick()
	assert.Equal(t, -0.1, controls.values["fcs/rudder-cmd-norm"])

	d.Stop()
	assert.Equal(t, 0.0, controls.values["fcs/rudder-cmd-norm"])
}

func TestDoublet_StoppedInFirstHalfZeroesControl(t *testing.T) {
	clock := &fakeClock{t: 0}
	controls := newFakeControls()
	const elevator = "fcs/elevator-cmd-norm"
	d, err := NewDoublet("pitch", clock, controls, elevator, 0.3, 4)
	require.NoError(t, err)

	d.Tick()
	clock.t = 1
	d.Tick()
	assert.Equal(t, 0.3, controls.values[elevator])

	d.Stop()
	assert.Equal(t, 0.0, controls.values[elevator])
	assert.Equal(t, Invalid, d.Status())
}

func TestDoublet_RejectsNonPositivePeriod(t *testing.T) {
	controls := newFakeControls()
	for _, period := range []float64{0, -2, math.NaN()} {
		_, err := NewDoublet("pitch", &fakeClock{}, controls, "fcs/elevator-cmd-norm", 0.3, period)
		assert.ErrorIs(t, err, ErrInvalidTimeWindow, "period %v", period)
	}
	assert.Zero(t, controls.writes)
}

func TestTree(t *testing.T) {
	ready := false
	tree := NewTree(NewSequence("mission",
		NewTrigger("ready", func() bool { return ready }),
		NewTrigger("go", func() bool { return true }),
	), nil)

	st, err := tree.Tick()
	require.NoError(t, err)
	assert.Equal(t, Running, st)
	assert.False(t, tree.Done())

	ready = true
	st, _ = tree.Tick()
	assert.Equal(t, Success, st)
	assert.True(t, tree.Done())

	// Finished trees are not ticked again.
	st, _ = tree.Tick()
	assert.Equal(t, Success, st)
	assert.Equal(t, 2, tree.Ticks())
}

func TestTree_AbortsOnError(t *testing.T) {
	clock := &fakeClock{}
	bad, err := NewTimeWindow("bad", clock, nil, For(-1))
	require.NoError(t, err)
	tree := NewTree(NewSequence("mission", bad), nil)

	st, err := tree.Tick()
	assert.Equal(t, Failure, st)
	assert.ErrorIs(t, err, ErrInvalidTimeWindow)
	assert.True(t, tree.Done())
	assert.ErrorIs(t, tree.Err(), ErrInvalidTimeWindow)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "RUNNING", Running.String())
	assert.Equal(t, "Status(9)", Status(9).String())
}
