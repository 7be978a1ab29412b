package ensemble

import (
	"fmt"
	"strings"

	"github.com/san-kum/emsim/internal/vec"
)

// DefaultBlockLen is the chunk length used when none is configured.
const DefaultBlockLen = 32

// Particle is a materialised copy of one particle's state.
type Particle struct {
	Position vec.Vec3 `json:"position" yaml:"position"`
	Velocity vec.Vec3 `json:"velocity" yaml:"velocity"`
}

// Ensemble is the layout-independent contract. N is fixed at construction.
type Ensemble interface {
	Len() int
	Layout() Layout
	Position(i int) (vec.Vec3, error)
	Velocity(i int) (vec.Vec3, error)
	SetPosition(i int, r vec.Vec3) error
	SetVelocity(i int, v vec.Vec3) error
	Particle(i int) (Particle, error)
}

// Bulk is implemented by layouts that can hand out their component storage
// directly. The returned spans alias the ensemble's buffers.
type Bulk interface {
	Ensemble
	Spans() Spans
}

// Blocked is implemented by layouts that want the integrator to walk them in
// fixed-length blocks.
type Blocked interface {
	Bulk
	BlockLen() int
}

// Spans holds six equal-length component slices.
type Spans struct {
	Rx, Ry, Rz []float64
	Vx, Vy, Vz []float64
}

func (s Spans) Len() int { return len(s.Rx) }

// Slice returns the sub-spans [lo, hi). The result aliases s.
func (s Spans) Slice(lo, hi int) Spans {
	return Spans{
		Rx: s.Rx[lo:hi], Ry: s.Ry[lo:hi], Rz: s.Rz[lo:hi],
		Vx: s.Vx[lo:hi], Vy: s.Vy[lo:hi], Vz: s.Vz[lo:hi],
	}
}

func (s Spans) valid() bool {
	n := len(s.Rx)
	return len(s.Ry) == n && len(s.Rz) == n &&
		len(s.Vx) == n && len(s.Vy) == n && len(s.Vz) == n
}

func makeSpans(n int) Spans {
	buf := make([]float64, 6*n)
	return Spans{
		Rx: buf[0*n : 1*n : 1*n],
		Ry: buf[1*n : 2*n : 2*n],
		Rz: buf[2*n : 3*n : 3*n],
		Vx: buf[3*n : 4*n : 4*n],
		Vy: buf[4*n : 5*n : 5*n],
		Vz: buf[5*n : 6*n : 6*n],
	}
}

type Layout int

const (
	LayoutAoS Layout = iota
	LayoutSoA
	LayoutChunked
)

var layoutNames = map[Layout]string{
	LayoutAoS:     "aos",
	LayoutSoA:     "soa",
	LayoutChunked: "chunked",
}

func (l Layout) String() string {
	if name, ok := layoutNames[l]; ok {
		return name
	}
	return fmt.Sprintf("layout(%d)", int(l))
}

// Layouts lists every layout in declaration order.
func Layouts() []Layout {
	return []Layout{LayoutAoS, LayoutSoA, LayoutChunked}
}

func ParseLayout(s string) (Layout, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for l, n := range layoutNames {
		if n == name {
			return l, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLayout, s)
}

type options struct {
	blockLen int
}

type Option func(*options)

// WithBlockLen sets the chunk length. Only the chunked layout uses it.
func WithBlockLen(n int) Option {
	return func(o *options) { o.blockLen = n }
}

// New copies particles into a fresh ensemble of the requested layout.
func New(layout Layout, particles []Particle, opts ...Option) (Ensemble, error) {
	o := options{blockLen: DefaultBlockLen}
	for _, opt := range opts {
		opt(&o)
	}

	switch layout {
	case LayoutAoS:
		return NewAoS(particles), nil
	case LayoutSoA:
		return NewSoA(particles), nil
	case LayoutChunked:
		return NewChunked(particles, o.blockLen)
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownLayout, layout)
	}
}

// Snapshot copies every particle out of e.
func Snapshot(e Ensemble) []Particle {
	out := make([]Particle, e.Len())
	for i := range out {
		out[i], _ = e.Particle(i)
	}
	return out
}

// Clone deep-copies e into a new ensemble with the same layout and block length.
func Clone(e Ensemble) (Ensemble, error) {
	var opts []Option
	if b, ok := e.(Blocked); ok {
		opts = append(opts, WithBlockLen(b.BlockLen()))
	}
	return New(e.Layout(), Snapshot(e), opts...)
}

var (
	_ Ensemble = (*AoS)(nil)
	_ Bulk     = (*SoA)(nil)
	_ Blocked  = (*Chunked)(nil)
)
