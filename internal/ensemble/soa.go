package ensemble

import (
	"fmt"

	"github.com/san-kum/emsim/internal/vec"
)

// SoA keeps each component in its own contiguous slice. The six slices are
// carved from a single allocation.
type SoA struct {
	s Spans
}

func NewSoA(particles []Particle) *SoA {
	s := makeSpans(len(particles))
	for i, p := range particles {
		s.Rx[i], s.Ry[i], s.Rz[i] = p.Position.X, p.Position.Y, p.Position.Z
		s.Vx[i], s.Vy[i], s.Vz[i] = p.Velocity.X, p.Velocity.Y, p.Velocity.Z
	}
	return &SoA{s: s}
}

func (a *SoA) Len() int       { return len(a.s.Rx) }
func (a *SoA) Layout() Layout { return LayoutSoA }

// Spans returns the backing slices without copying.
func (a *SoA) Spans() Spans { return a.s }

func (a *SoA) Position(i int) (vec.Vec3, error) {
	if err := checkIndex(i, a.Len()); err != nil {
		return vec.Vec3{}, err
	}
	return vec.Vec3{X: a.s.Rx[i], Y: a.s.Ry[i], Z: a.s.Rz[i]}, nil
}

func (a *SoA) Velocity(i int) (vec.Vec3, error) {
	if err := checkIndex(i, a.Len()); err != nil {
		return vec.Vec3{}, err
	}
	return vec.Vec3{X: a.s.Vx[i], Y: a.s.Vy[i], Z: a.s.Vz[i]}, nil
}

func (a *SoA) SetPosition(i int, r vec.Vec3) error {
	if err := checkIndex(i, a.Len()); err != nil {
		return err
	}
	a.s.Rx[i], a.s.Ry[i], a.s.Rz[i] = r.X, r.Y, r.Z
	return nil
}

func (a *SoA) SetVelocity(i int, v vec.Vec3) error {
	if err := checkIndex(i, a.Len()); err != nil {
		return err
	}
	a.s.Vx[i], a.s.Vy[i], a.s.Vz[i] = v.X, v.Y, v.Z
	return nil
}

func (a *SoA) Particle(i int) (Particle, error) {
	if err := checkIndex(i, a.Len()); err != nil {
		return Particle{}, err
	}
	return Particle{
		Position: vec.Vec3{X: a.s.Rx[i], Y: a.s.Ry[i], Z: a.s.Rz[i]},
		Velocity: vec.Vec3{X: a.s.Vx[i], Y: a.s.Vy[i], Z: a.s.Vz[i]},
	}, nil
}

// Chunked is SoA storage tagged with a block length. The backing memory is
// identical to [SoA]; only the traversal differs.
type Chunked struct {
	*SoA
	blockLen int
}

// NewChunked fails with ErrConfiguration when blockLen <= 0. A block length
// that does not divide len(particles) is fine: the last block is shorter.
func NewChunked(particles []Particle, blockLen int) (*Chunked, error) {
	if blockLen <= 0 {
		return nil, fmt.Errorf("%w: block length must be positive, got %d", ErrConfiguration, blockLen)
	}
	return &Chunked{SoA: NewSoA(particles), blockLen: blockLen}, nil
}

func (c *Chunked) Layout() Layout { return LayoutChunked }
func (c *Chunked) BlockLen() int  { return c.blockLen }

// Blocks returns the number of blocks, counting a short remainder block.
func (c *Chunked) Blocks() int {
	return (c.Len() + c.blockLen - 1) / c.blockLen
}
