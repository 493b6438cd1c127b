// Package mission runs the fixed-step loop that ticks the task tree,
// advances physics and publishes telemetry.
package mission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/metric"

	intotel "github.com/OCAP2/simbridge/internal/otel"
	"github.com/OCAP2/simbridge/internal/physics"
	"github.com/OCAP2/simbridge/internal/task"
	"github.com/OCAP2/simbridge/pkg/core"
)

const instrumentationName = "github.com/OCAP2/simbridge/internal/mission"

// DefaultDt is the physics step in seconds.
const DefaultDt = 1.0 / 30

// SnapshotPublisher sends a snapshot to observers. *telemetry.Publisher
// satisfies it.
type SnapshotPublisher interface {
	Publish(core.SimulationSnapshot) error
}

// Source produces the current state of one entity.
type Source func() core.EntityState

// ModelSource reads an entity state from physics outputs. datumM is added
// to the model's sea-level altitude; extra names are copied into the
// additional fields under their property names.
func ModelSource(model physics.Model, datumM float64, extra ...string) Source {
	return func() core.EntityState {
		s := core.EntityState{
			Latitude:  model.Output(physics.LatitudeDeg),
			Longitude: model.Output(physics.LongitudeDeg),
			HeightM:   model.Output(physics.AltitudeM) + datumM,
			RollRad:   model.Output(physics.RollRad),
			PitchRad:  model.Output(physics.PitchRad),
			YawRad:    model.Output(physics.YawRad),
		}
		if len(extra) > 0 {
			s.Additional = make(map[string]any, len(extra))
			for _, name := range extra {
				s.Additional[name] = model.Output(name)
			}
		}
		return s
	}
}

// Config configures a Runner.
type Config struct {
	Name     string
	Dt       float64 // seconds of simulation time per step
	Realtime bool    // sleep so steps track wall-clock time
	MaxSteps int     // zero runs until the tree finishes
}

// Runner owns one mission loop. It is not safe for concurrent use.
type Runner struct {
	cfg       Config
	model     physics.Model
	tree      *task.Tree
	publisher SnapshotPublisher
	sources   map[string]Source
	run       *Context
	logger    *slog.Logger

	steps      int
	suppressed int

	stepCounter       metric.Int64Counter
	suppressedCounter metric.Int64Counter
	stepDuration      metric.Float64Histogram
}

// NewRunner creates a runner. tree and publisher may be nil.
func NewRunner(cfg Config, model physics.Model, tree *task.Tree, publisher SnapshotPublisher, run *Context, logger *slog.Logger) *Runner {
	if cfg.Dt <= 0 {
		cfg.Dt = DefaultDt
	}
	if cfg.Name == "" {
		cfg.Name = "mission"
	}
	if run == nil {
		run = NewContext()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		cfg:       cfg,
		model:     model,
		tree:      tree,
		publisher: publisher,
		sources:   make(map[string]Source),
		run:       run,
		logger:    logger.With("component", "mission"),

		stepCounter:       intotel.Counter(instrumentationName, "mission.steps", "Physics steps taken"),
		suppressedCounter: intotel.Counter(instrumentationName, "mission.steps.suppressed", "Steps whose snapshot was not published"),
		stepDuration:      intotel.Histogram(instrumentationName, "mission.step.duration", "Wall time per step", "ms"),
	}
}

// AddSource registers an entity published on every step.
func (r *Runner) AddSource(name string, s Source) {
	r.sources[name] = s
}

// Snapshot builds the current snapshot without publishing it.
func (r *Runner) Snapshot() core.SimulationSnapshot {
	states := make(map[string]core.EntityState, len(r.sources))
	for name, src := range r.sources {
		states[name] = src()
	}
	return core.NewSnapshot(r.model.SimTime(), states)
}

// Step runs one tick of the tree, one physics step and one publish. A
// snapshot with non-finite values is not published; the step still counts.
// Only task errors are returned.
func (r *Runner) Step() error {
	start := time.Now()
	ctx := context.Background()

	if r.tree != nil && !r.tree.Done() {
		if _, err := r.tree.Tick(); err != nil {
			return fmt.Errorf("mission %s: %w", r.cfg.Name, err)
		}
	}

	r.model.Advance(r.cfg.Dt)
	r.steps++
	step := r.steps
	r.run.Advance(step, r.model.SimTime())
	r.stepCounter.Add(ctx, 1)

	snap := r.Snapshot()
	if err := snap.Validate(); err != nil {
		r.suppressed++
		r.suppressedCounter.Add(ctx, 1)
		r.logger.Warn("Physics output invalid, not publishing", "step", step, "error", err)
		return nil
	}

	if r.publisher != nil {
		if err := r.publisher.Publish(snap); err != nil {
			if errors.Is(err, core.ErrInvalidPhysicsOutput) {
				r.suppressed++
				r.suppressedCounter.Add(ctx, 1)
			}
			r.logger.Warn("Telemetry publish failed", "step", step, "error", err)
		}
	}

	r.stepDuration.Record(ctx, float64(time.Since(start).Microseconds())/1000)
	return nil
}

// Run steps until the tree finishes, MaxSteps is reached, ctx is cancelled
// or a task fails with an error.
func (r *Runner) Run(ctx context.Context) error {
	if !r.model.RunInitialConditions() {
		return errors.New("physics model rejected initial conditions")
	}
	r.run.Start(r.cfg.Name, time.Now())
	r.logger.Info("Mission started", "name", r.cfg.Name, "dt", r.cfg.Dt, "entities", r.entityNames())

	interval := time.Duration(r.cfg.Dt * float64(time.Second))
	var ticker *time.Ticker
	if r.cfg.Realtime {
		ticker = time.NewTicker(interval)
		defer ticker.Stop()
	}

	for {
		if err := ctx.Err(); err != nil {
			r.stopTree()
			return err
		}
		if err := r.Step(); err != nil {
			return err
		}
		if r.tree != nil && r.tree.Done() {
			r.logger.Info("Mission finished", "status", r.tree.Status(), "steps", r.Steps(), "suppressed", r.Suppressed())
			return nil
		}
		if r.cfg.MaxSteps > 0 && r.Steps() >= r.cfg.MaxSteps {
			r.stopTree()
			r.logger.Info("Mission step limit reached", "steps", r.Steps())
			return nil
		}
		if ticker != nil {
			select {
			case <-ctx.Done():
				r.stopTree()
				return ctx.Err()
			case <-ticker.C:
			}
		}
	}
}

func (r *Runner) stopTree() {
	if r.tree != nil {
		r.tree.Stop()
	}
}

func (r *Runner) entityNames() []string {
	names := make([]string, 0, len(r.sources))
	for n := range r.sources {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Steps returns the number of physics steps taken.
func (r *Runner) Steps() int { return r.steps }

// Suppressed returns how many steps were not published.
func (r *Runner) Suppressed() int { return r.suppressed }
