// Package physics defines the flight-dynamics collaborator the mission loop
// drives, and a deterministic kinematic model for local runs.
package physics

// Property names follow the flight-dynamics property tree.
const (
	SimTimeSec = "simulation/sim-time-sec"

	LatitudeDeg  = "position/lat-geod-deg"
	LongitudeDeg = "position/long-gc-deg"
	AltitudeM    = "position/h-sl-meters"

	RollRad  = "attitude/roll-rad"
	PitchRad = "attitude/pitch-rad"
	YawRad   = "attitude/psi-rad"

	AirspeedMps = "velocities/vt-mps"
	ClimbMps    = "velocities/h-dot-mps"

	ElevatorCmd = "fcs/elevator-cmd-norm"
	AileronCmd  = "fcs/aileron-cmd-norm"
	RudderCmd   = "fcs/rudder-cmd-norm"
	ThrottleCmd = "fcs/throttle-cmd-norm"
	GearCmd     = "gear/gear-cmd-norm"
	GearPos     = "gear/gear-pos-norm"
)

// Model is a flight-dynamics engine advanced in fixed steps.
type Model interface {
	// Advance integrates the model by dt seconds of simulation time.
	Advance(dt float64)
	SetControl(name string, value float64)
	// Output reads a property. Unknown properties read as zero.
	Output(name string) float64
	SimTime() float64
	// RunInitialConditions resets the model to its initial state.
	RunInitialConditions() bool
}
