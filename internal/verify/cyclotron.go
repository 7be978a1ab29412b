// Package verify checks simulated ensembles against the closed-form
// cyclotron trajectory and against each other.
package verify

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/emsim/internal/ensemble"
	"github.com/san-kum/emsim/internal/pusher"
	"github.com/san-kum/emsim/internal/vec"
)

// ErrMismatch indicates an ensemble outside the allowed tolerance.
var ErrMismatch = errors.New("verify: result mismatch")

// MismatchError reports the first particle that failed a check.
type MismatchError struct {
	Index     int
	Deviation float64
	Tolerance float64
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("verify: particle %d deviates by %g (tolerance %g)", e.Index, e.Deviation, e.Tolerance)
}

func (e *MismatchError) Unwrap() error { return ErrMismatch }

// Cyclotron is the analytic motion of a charge starting at Origin with
// velocity (V0, 0, 0) in E = (0, E0, 0), B = (0, 0, B0).
type Cyclotron struct {
	Constants pusher.Constants
	E0, B0    float64
	V0        float64
	Origin    vec.Vec3
}

// DefaultCyclotron is the electron setup: E0 = -0.005, B0 = 1, V0 = 0.01c.
func DefaultCyclotron() Cyclotron {
	k := pusher.ElectronConstants()
	return Cyclotron{
		Constants: k,
		E0:        -0.005,
		B0:        1.0,
		V0:        1e-2 * k.LightSpeed,
	}
}

func (c Cyclotron) Fields() pusher.Fields {
	return pusher.Fields{
		E: vec.New(0, c.E0, 0),
		B: vec.New(0, 0, c.B0),
	}
}

func (c Cyclotron) Initial() ensemble.Particle {
	return ensemble.Particle{Position: c.Origin, Velocity: vec.New(c.V0, 0, 0)}
}

// Particles returns n copies of the initial state.
func (c Cyclotron) Particles(n int) []ensemble.Particle {
	ps := make([]ensemble.Particle, n)
	for i := range ps {
		ps[i] = c.Initial()
	}
	return ps
}

// Omega is the signed gyrofrequency qB/(mc).
func (c Cyclotron) Omega() float64 {
	k := c.Constants
	return k.Charge * c.B0 / (k.Mass * k.LightSpeed)
}

// Drift is the E×B drift speed b = -E0/B0 * c.
func (c Cyclotron) Drift() float64 {
	return -c.E0 / c.B0 * c.Constants.LightSpeed
}

// Tolerance is the acceptance radius used by the reference check, 1e-4 c.
func (c Cyclotron) Tolerance() float64 {
	return 1e-4 * c.Constants.LightSpeed
}

// At returns the analytic position and velocity at time t.
func (c Cyclotron) At(t float64) (vec.Vec3, vec.Vec3) {
	w := c.Omega()
	b := c.Drift()
	a := c.V0 + b
	sin, cos := math.Sincos(w * t)

	r := vec.New(a/w*sin-b*t, a/w*(cos-1), 0).Add(c.Origin)
	v := vec.New(a*cos-b, -a*sin, 0)
	return r, v
}

// Deviation returns the largest distance, over all particles and over both
// position and velocity, between e and the analytic state at t.
func (c Cyclotron) Deviation(e ensemble.Ensemble, t float64) (float64, int) {
	rWant, vWant := c.At(t)
	worst, at := 0.0, -1
	for i := 0; i < e.Len(); i++ {
		p, err := e.Particle(i)
		if err != nil {
			continue
		}
		d := math.Max(vec.Dist(rWant, p.Position), vec.Dist(vWant, p.Velocity))
		if d > worst || math.IsNaN(d) {
			worst, at = d, i
			if math.IsNaN(d) {
				break
			}
		}
	}
	return worst, at
}

// Check fails with a *MismatchError when any particle is further than eps
// from the analytic state at t. eps <= 0 selects Tolerance().
func (c Cyclotron) Check(e ensemble.Ensemble, t, eps float64) error {
	if eps <= 0 {
		eps = c.Tolerance()
	}
	d, at := c.Deviation(e, t)
	if d > eps || math.IsNaN(d) {
		return &MismatchError{Index: at, Deviation: d, Tolerance: eps}
	}
	return nil
}
