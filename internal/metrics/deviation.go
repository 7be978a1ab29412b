package metrics

import (
	"math"

	"github.com/san-kum/emsim/internal/ensemble"
	"github.com/san-kum/emsim/internal/verify"
)

// Deviation tracks the worst distance from the closed-form cyclotron
// orbit and keeps the per-observation series for plotting.
type Deviation struct {
	name   string
	oracle verify.Cyclotron
	worst  float64
	series []float64
}

func NewDeviation(oracle verify.Cyclotron) *Deviation {
	return &Deviation{name: "max_deviation", oracle: oracle}
}

func (d *Deviation) Name() string { return d.name }

func (d *Deviation) Observe(e ensemble.Ensemble, t float64) {
	dev, _ := d.oracle.Deviation(e, t)
	d.series = append(d.series, dev)
	if dev > d.worst || math.IsNaN(dev) {
		d.worst = dev
	}
}

func (d *Deviation) Value() float64 { return d.worst }

func (d *Deviation) Reset() {
	d.worst = 0
	d.series = d.series[:0]
}

// Series returns the deviation at each observation, oldest first.
func (d *Deviation) Series() []float64 {
	return append([]float64(nil), d.series...)
}

func (d *Deviation) Tolerance() float64 { return d.oracle.Tolerance() }

// Passed reports whether every observation stayed within the oracle's
// tolerance.
func (d *Deviation) Passed() bool {
	return !math.IsNaN(d.worst) && d.worst <= d.Tolerance()
}
