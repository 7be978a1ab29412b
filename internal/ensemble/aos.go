package ensemble

import (
	"fmt"

	"github.com/san-kum/emsim/internal/vec"
)

// AoS keeps one interleaved record per particle. Reading a whole particle
// touches a single cache line; walking one component strides by the record
// size. It is the baseline layout and does not implement [Bulk].
type AoS struct {
	records []Particle
}

func NewAoS(particles []Particle) *AoS {
	records := make([]Particle, len(particles))
	copy(records, particles)
	return &AoS{records: records}
}

func (a *AoS) Len() int       { return len(a.records) }
func (a *AoS) Layout() Layout { return LayoutAoS }

func (a *AoS) Position(i int) (vec.Vec3, error) {
	if err := checkIndex(i, len(a.records)); err != nil {
		return vec.Vec3{}, err
	}
	return a.records[i].Position, nil
}

func (a *AoS) Velocity(i int) (vec.Vec3, error) {
	if err := checkIndex(i, len(a.records)); err != nil {
		return vec.Vec3{}, err
	}
	return a.records[i].Velocity, nil
}

func (a *AoS) SetPosition(i int, r vec.Vec3) error {
	if err := checkIndex(i, len(a.records)); err != nil {
		return err
	}
	a.records[i].Position = r
	return nil
}

func (a *AoS) SetVelocity(i int, v vec.Vec3) error {
	if err := checkIndex(i, len(a.records)); err != nil {
		return err
	}
	a.records[i].Velocity = v
	return nil
}

func (a *AoS) Particle(i int) (Particle, error) {
	if err := checkIndex(i, len(a.records)); err != nil {
		return Particle{}, err
	}
	return a.records[i], nil
}

// Records returns the backing record slice. It aliases the ensemble.
func (a *AoS) Records() []Particle {
	return a.records
}

// Materialize repacks the records into a freshly allocated SoA copy.
// It costs 6*N float64s and one pass over the records; writes to the copy are
// not visible until passed to Scatter.
func (a *AoS) Materialize() Spans {
	s := makeSpans(len(a.records))
	for i, p := range a.records {
		s.Rx[i], s.Ry[i], s.Rz[i] = p.Position.X, p.Position.Y, p.Position.Z
		s.Vx[i], s.Vy[i], s.Vz[i] = p.Velocity.X, p.Velocity.Y, p.Velocity.Z
	}
	return s
}

// Scatter writes spans produced by Materialize back into the records.
func (a *AoS) Scatter(s Spans) error {
	if !s.valid() || s.Len() != len(a.records) {
		return fmt.Errorf("%w: got %d, want %d", ErrSpanLength, s.Len(), len(a.records))
	}
	for i := range a.records {
		a.records[i].Position = vec.Vec3{X: s.Rx[i], Y: s.Ry[i], Z: s.Rz[i]}
		a.records[i].Velocity = vec.Vec3{X: s.Vx[i], Y: s.Vy[i], Z: s.Vz[i]}
	}
	return nil
}
