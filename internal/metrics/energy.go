// Package metrics holds sim.Metric implementations for particle ensembles.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/emsim/internal/ensemble"
)

// KineticEnergy averages the total non-relativistic kinetic energy
// (1/2) m |v|^2 over all observations, in erg.
type KineticEnergy struct {
	name    string
	mass    float64
	samples int
	total   float64
}

func NewKineticEnergy(mass float64) *KineticEnergy {
	return &KineticEnergy{name: "kinetic_energy", mass: mass}
}

func (k *KineticEnergy) Name() string { return k.name }

func (k *KineticEnergy) Observe(e ensemble.Ensemble, t float64) {
	k.total += Kinetic(e, k.mass)
	k.samples++
}

func (k *KineticEnergy) Value() float64 {
	if k.samples == 0 {
		return 0
	}
	return k.total / float64(k.samples)
}

func (k *KineticEnergy) Reset() {
	k.total = 0
	k.samples = 0
}

// EnergyDrift is the largest relative change of total kinetic energy
// from the first observation. A pure magnetic field does no work, so
// under one this measures integration error.
type EnergyDrift struct {
	name     string
	mass     float64
	initial  float64
	maxDrift float64
	samples  int
}

func NewEnergyDrift(mass float64) *EnergyDrift {
	return &EnergyDrift{name: "energy_drift", mass: mass}
}

func (d *EnergyDrift) Name() string { return d.name }

func (d *EnergyDrift) Observe(e ensemble.Ensemble, t float64) {
	energy := Kinetic(e, d.mass)
	if d.samples == 0 {
		d.initial = energy
	}
	d.samples++

	if d.initial != 0 {
		drift := math.Abs(energy-d.initial) / math.Abs(d.initial)
		d.maxDrift = math.Max(d.maxDrift, drift)
	}
}

func (d *EnergyDrift) Value() float64 { return d.maxDrift }

func (d *EnergyDrift) Reset() {
	d.initial = 0
	d.maxDrift = 0
	d.samples = 0
}

// Kinetic returns the total kinetic energy of e.
func Kinetic(e ensemble.Ensemble, mass float64) float64 {
	if b, ok := e.(ensemble.Bulk); ok {
		s := b.Spans()
		return 0.5 * mass * (floats.Dot(s.Vx, s.Vx) + floats.Dot(s.Vy, s.Vy) + floats.Dot(s.Vz, s.Vz))
	}
	sum := 0.0
	for i := 0; i < e.Len(); i++ {
		v, err := e.Velocity(i)
		if err != nil {
			continue
		}
		sum += v.NormSq()
	}
	return 0.5 * mass * sum
}
