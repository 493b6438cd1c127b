package mission

import (
	"github.com/OCAP2/simbridge/internal/control"
	"github.com/OCAP2/simbridge/internal/physics"
	"github.com/OCAP2/simbridge/internal/task"
)

// ScriptConfig shapes the demo flight. Zero fields take their defaults.
type ScriptConfig struct {
	ClimbFor       float64 // seconds of nose-up climb
	ClimbElevator  float64
	DoubletPeriod  float64
	DoubletAmp     float64
	TurnFor        float64 // seconds spent rolling in, then the same holding wings level
	TurnAileron    float64
	CruiseThrottle float64
	Dt             float64 // physics step the wings-level PID runs at
}

// Wings-level gains on roll error in radians.
const (
	levelKp = 1.5
	levelKi = 0.05
	levelKd = 0.02
)

// DefaultScriptConfig is a ten-second profile.
func DefaultScriptConfig() ScriptConfig {
	return ScriptConfig{
		ClimbFor:       5,
		ClimbElevator:  0.2,
		DoubletPeriod:  2,
		DoubletAmp:     0.3,
		TurnFor:        1.5,
		TurnAileron:    0.3,
		CruiseThrottle: 0.75,
		Dt:             DefaultDt,
	}
}

// Script builds the scripted flight: a climb window, an elevator doublet,
// then a turn flown in parallel with a throttle hold. The turn rolls in on a
// fixed aileron and rolls out under a PID holding zero bank.
func Script(model physics.Model, cfg ScriptConfig) (*task.Task, error) {
	def := DefaultScriptConfig()
	if cfg.ClimbFor <= 0 {
		cfg.ClimbFor = def.ClimbFor
	}
	if cfg.DoubletPeriod <= 0 {
		cfg.DoubletPeriod = def.DoubletPeriod
	}
	if cfg.TurnFor <= 0 {
		cfg.TurnFor = def.TurnFor
	}
	if cfg.ClimbElevator == 0 {
		cfg.ClimbElevator = def.ClimbElevator
	}
	if cfg.DoubletAmp == 0 {
		cfg.DoubletAmp = def.DoubletAmp
	}
	if cfg.TurnAileron == 0 {
		cfg.TurnAileron = def.TurnAileron
	}
	if cfg.CruiseThrottle == 0 {
		cfg.CruiseThrottle = def.CruiseThrottle
	}
	if cfg.Dt <= 0 {
		cfg.Dt = def.Dt
	}

	climb, err := task.NewTimeWindow("climb", model,
		func() {
			model.SetControl(physics.ThrottleCmd, 1)
			model.SetControl(physics.ElevatorCmd, cfg.ClimbElevator)
		},
		task.For(cfg.ClimbFor),
		task.OnInitialise(func() { model.SetControl(physics.GearCmd, 0) }),
		task.OnTerminate(func() { model.SetControl(physics.ElevatorCmd, 0) }),
	)
	if err != nil {
		return nil, err
	}

	doublet, err := task.NewDoublet("pitch-doublet", model, model, physics.ElevatorCmd, cfg.DoubletAmp, cfg.DoubletPeriod)
	if err != nil {
		return nil, err
	}

	rollIn, err := task.NewTimeWindow("roll-in", model,
		func() { model.SetControl(physics.AileronCmd, cfg.TurnAileron) },
		task.For(cfg.TurnFor),
	)
	if err != nil {
		return nil, err
	}
	level := control.NewPID(levelKp, levelKi, levelKd, cfg.Dt)
	wingsLevel, err := task.NewTimeWindow("wings-level", model,
		func() { model.SetControl(physics.AileronCmd, level.Step(0, model.Output(physics.RollRad))) },
		task.For(cfg.TurnFor),
		task.OnInitialise(level.Reset),
		task.OnTerminate(func() { model.SetControl(physics.AileronCmd, 0) }),
	)
	if err != nil {
		return nil, err
	}
	throttle, err := task.NewTimeWindow("throttle-hold", model,
		func() { model.SetControl(physics.ThrottleCmd, cfg.CruiseThrottle) },
		task.For(2*cfg.TurnFor),
	)
	if err != nil {
		return nil, err
	}

	turn := task.NewParallel("turn", task.SuccessOnAll,
		task.NewSequence("roll", rollIn, wingsLevel),
		throttle,
	)
	return task.NewSequence("scripted-flight", climb, doublet, turn), nil
}
