package physics

import (
	"math"
	"sync"
)

const (
	earthRadiusM = 6378137.0
	gravity      = 9.80665
)

// KinematicConfig sets the initial state and response limits.
type KinematicConfig struct {
	Latitude, Longitude, Altitude float64 // deg, deg, m
	Heading                       float64 // rad, clockwise from north
	Airspeed                      float64 // m/s

	MaxRollRate  float64 // rad/s at full aileron
	MaxPitchRate float64 // rad/s at full elevator
	MaxYawRate   float64 // rad/s at full rudder
	MaxThrust    float64 // m/s^2 at full throttle
	Drag         float64 // per meter; deceleration = Drag * v^2
	GearRate     float64 // gear travel per second
}

// DefaultKinematicConfig is a light jet cruising at 150 m/s.
func DefaultKinematicConfig() KinematicConfig {
	return KinematicConfig{
		Latitude:     52.0,
		Longitude:    4.0,
		Altitude:     1000,
		Airspeed:     150,
		MaxRollRate:  1.5,
		MaxPitchRate: 0.5,
		MaxYawRate:   0.2,
		MaxThrust:    12,
		Drag:         12.0 / (250 * 250),
		GearRate:     0.25,
	}
}

// Kinematic is a point-mass model: controls set body rates directly and the
// velocity vector follows the attitude. It is deterministic for a given
// sequence of controls and steps.
type Kinematic struct {
	mu    sync.Mutex
	cfg   KinematicConfig
	props map[string]float64
}

func NewKinematic(cfg KinematicConfig) *Kinematic {
	k := &Kinematic{cfg: cfg}
	k.RunInitialConditions()
	return k
}

func (k *Kinematic) RunInitialConditions() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.props = map[string]float64{
		SimTimeSec:   0,
		LatitudeDeg:  k.cfg.Latitude,
		LongitudeDeg: k.cfg.Longitude,
		AltitudeM:    k.cfg.Altitude,
		YawRad:       wrapPi(k.cfg.Heading),
		AirspeedMps:  k.cfg.Airspeed,
		GearCmd:      1,
		GearPos:      1,
	}
	return true
}

func (k *Kinematic) SetControl(name string, value float64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.props[name] = value
}

func (k *Kinematic) Output(name string) float64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.props[name]
}

func (k *Kinematic) SimTime() float64 {
	return k.Output(SimTimeSec)
}

func (k *Kinematic) Advance(dt float64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	p := k.props

	aileron := clamp(p[AileronCmd], -1, 1)
	elevator := clamp(p[ElevatorCmd], -1, 1)
	rudder := clamp(p[RudderCmd], -1, 1)
	throttle := clamp(p[ThrottleCmd], 0, 1)

	roll := wrapPi(p[RollRad] + aileron*k.cfg.MaxRollRate*dt)
	pitch := clamp(p[PitchRad]+elevator*k.cfg.MaxPitchRate*dt, -math.Pi/2+0.01, math.Pi/2-0.01)

	v := p[AirspeedMps]
	turn := rudder * k.cfg.MaxYawRate
	if v > 1 {
		turn += gravity * math.Tan(roll) / v
	}
	yaw := wrapPi(p[YawRad] + turn*dt)

	accel := throttle*k.cfg.MaxThrust - k.cfg.Drag*v*v - gravity*math.Sin(pitch)
	v = math.Max(0, v+accel*dt)

	horizontal := v * math.Cos(pitch)
	north := horizontal * math.Cos(yaw) * dt
	east := horizontal * math.Sin(yaw) * dt
	climb := v * math.Sin(pitch)

	lat := p[LatitudeDeg]
	p[LatitudeDeg] = lat + north/earthRadiusM*180/math.Pi
	p[LongitudeDeg] = p[LongitudeDeg] + east/(earthRadiusM*math.Cos(lat*math.Pi/180))*180/math.Pi
	p[AltitudeM] += climb * dt

	p[RollRad] = roll
	p[PitchRad] = pitch
	p[YawRad] = yaw
	p[AirspeedMps] = v
	p[ClimbMps] = climb

	gear := p[GearPos]
	target := clamp(p[GearCmd], 0, 1)
	step := k.cfg.GearRate * dt
	switch {
	case gear < target:
		gear = math.Min(target, gear+step)
	case gear > target:
		gear = math.Max(target, gear-step)
	}
	p[GearPos] = gear

	p[SimTimeSec] += dt
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// wrapPi maps a to [-pi, pi]. Non-finite angles become NaN.
func wrapPi(a float64) float64 {
	return math.Remainder(a, 2*math.Pi)
}
