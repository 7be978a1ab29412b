package metrics

import (
	"math"

	"github.com/san-kum/emsim/internal/ensemble"
)

// MaxBeta is the largest |v|/c seen. The pusher is non-relativistic, so
// values approaching 1 mean the run has left its valid regime.
type MaxBeta struct {
	name       string
	lightSpeed float64
	max        float64
}

func NewMaxBeta(lightSpeed float64) *MaxBeta {
	return &MaxBeta{name: "max_beta", lightSpeed: lightSpeed}
}

func (m *MaxBeta) Name() string {
	return m.name
}

func (m *MaxBeta) Observe(e ensemble.Ensemble, t float64) {
	for i := 0; i < e.Len(); i++ {
		v, err := e.Velocity(i)
		if err != nil {
			continue
		}
		m.max = math.Max(m.max, v.Norm()/m.lightSpeed)
	}
}

func (m *MaxBeta) Value() float64 {
	return m.max
}

func (m *MaxBeta) Reset() {
	m.max = 0
}
