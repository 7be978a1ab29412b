package metrics

import (
	"github.com/san-kum/emsim/internal/ensemble"
)

// Stability is the fraction of observations in which every particle stays
// finite and within radius of the origin.
type Stability struct {
	name       string
	radius     float64
	violations int
	samples    int
}

func NewStability(radius float64) *Stability {
	return &Stability{
		name:   "stability",
		radius: radius,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(e ensemble.Ensemble, t float64) {
	s.samples++
	for i := 0; i < e.Len(); i++ {
		p, err := e.Particle(i)
		if err != nil || !p.Position.IsValid() || !p.Velocity.IsValid() || p.Position.Norm() > s.radius {
			s.violations++
			break
		}
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}
