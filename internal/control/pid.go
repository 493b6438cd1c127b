// Package control holds feedback controllers used by mission scripts to
// hold a target attitude or altitude.
package control

import "math"

const (
	DefaultDt    = 0.03
	errorSamples = 10
)

// PID is a proportional-integral-derivative controller over a sliding window
// of the last ten errors. Its output is clipped to [-1, 1] so it can drive a
// normalised control surface directly.
type PID struct {
	Kp, Ki, Kd float64
	Dt         float64

	errs []float64
}

// NewPID creates a controller. A non-positive dt uses DefaultDt.
func NewPID(kp, ki, kd, dt float64) *PID {
	if dt <= 0 {
		dt = DefaultDt
	}
	return &PID{Kp: kp, Ki: ki, Kd: kd, Dt: dt, errs: make([]float64, 0, errorSamples)}
}

// Step records the error between target and current and returns the
// control output. With a single sample the derivative is zero and the
// integral is that sample alone.
func (c *PID) Step(target, current float64) float64 {
	e := target - current
	if len(c.errs) == errorSamples {
		copy(c.errs, c.errs[1:])
		c.errs = c.errs[:errorSamples-1]
	}
	c.errs = append(c.errs, e)

	var de, ie float64
	if n := len(c.errs); n >= 2 {
		de = (c.errs[n-1] - c.errs[n-2]) / c.Dt
		for _, v := range c.errs {
			ie += v
		}
		ie *= c.Dt
	} else {
		ie = e * c.Dt
	}

	out := c.Kp*e + c.Ki*ie + c.Kd*de
	return math.Max(-1, math.Min(1, out))
}

// Reset clears the error window.
func (c *PID) Reset() {
	c.errs = c.errs[:0]
}
