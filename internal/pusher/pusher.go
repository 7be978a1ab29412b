package pusher

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/emsim/internal/ensemble"
)

// recordStore is satisfied by layouts that expose interleaved records.
type recordStore interface {
	Records() []ensemble.Particle
}

type kernel int

const (
	kernelAccessors kernel = iota
	kernelRecords
	kernelSpans
	kernelBlocks
)

func (k kernel) String() string {
	switch k {
	case kernelRecords:
		return "records"
	case kernelSpans:
		return "spans"
	case kernelBlocks:
		return "blocks"
	default:
		return "accessors"
	}
}

// Pusher owns the field configuration for a run and mutates one ensemble.
// It does not own the ensemble's lifetime.
type Pusher struct {
	cfg    Config
	ens    ensemble.Ensemble
	kernel kernel

	blockLen int
	ranges   [][2]int
	arenas   []*arena
}

// New validates cfg and binds it to ens.
func New(cfg Config, ens ensemble.Ensemble) (*Pusher, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if ens == nil {
		return nil, fmt.Errorf("%w: nil ensemble", ErrConfiguration)
	}
	if cfg.Workers == 0 {
		cfg.Workers = 1
	}

	p := &Pusher{cfg: cfg, ens: ens}

	align := 1
	switch e := ens.(type) {
	case ensemble.Blocked:
		p.kernel = kernelBlocks
		p.blockLen = e.BlockLen()
		if p.blockLen <= 0 {
			return nil, fmt.Errorf("%w: block length must be positive, got %d", ErrConfiguration, p.blockLen)
		}
		align = p.blockLen
	case ensemble.Bulk:
		p.kernel = kernelSpans
	case recordStore:
		p.kernel = kernelRecords
	default:
		p.kernel = kernelAccessors
	}

	workers := cfg.Workers
	if p.kernel == kernelAccessors {
		// arbitrary implementations make no promise about concurrent setters
		workers = 1
	}
	p.ranges = splitRange(ens.Len(), workers, align)

	if p.kernel == kernelBlocks {
		p.arenas = make([]*arena, len(p.ranges))
		for i := range p.arenas {
			p.arenas[i] = newArena(p.blockLen)
		}
	}

	return p, nil
}

func (p *Pusher) Fields() Fields              { return p.cfg.Fields }
func (p *Pusher) Constants() Constants        { return p.cfg.Constants }
func (p *Pusher) Ensemble() ensemble.Ensemble { return p.ens }
func (p *Pusher) Kernel() string              { return p.kernel.String() }

// Partitions is the number of ranges one Step fans out over.
func (p *Pusher) Partitions() int { return len(p.ranges) }

// Step advances every particle by dt. A dt that is zero, negative, NaN or
// infinite is rejected before any particle is touched.
func (p *Pusher) Step(dt float64) error {
	if !(dt > 0) || !finite(dt) {
		return fmt.Errorf("%w: got %g", ErrInvalidTimeStep, dt)
	}
	c := newCoeffs(p.cfg.Fields, p.cfg.Constants, dt)

	switch p.kernel {
	case kernelBlocks:
		s := p.ens.(ensemble.Bulk).Spans()
		return p.fanOut(func(w, lo, hi int) error {
			stepBlocks(&c, p.arenas[w], s.Slice(lo, hi), p.blockLen)
			return nil
		})
	case kernelSpans:
		s := p.ens.(ensemble.Bulk).Spans()
		return p.fanOut(func(_, lo, hi int) error {
			stepSpans(&c, s.Slice(lo, hi))
			return nil
		})
	case kernelRecords:
		recs := p.ens.(recordStore).Records()
		return p.fanOut(func(_, lo, hi int) error {
			stepRecords(&c, recs[lo:hi])
			return nil
		})
	default:
		return p.fanOut(func(_, lo, hi int) error {
			return stepAccessors(&c, p.ens, lo, hi)
		})
	}
}

// fanOut runs fn once per range. A single range runs on the calling goroutine.
func (p *Pusher) fanOut(fn func(w, lo, hi int) error) error {
	if len(p.ranges) <= 1 {
		for w, r := range p.ranges {
			if err := fn(w, r[0], r[1]); err != nil {
				return err
			}
		}
		return nil
	}

	var g errgroup.Group
	g.SetLimit(len(p.ranges))
	for w, r := range p.ranges {
		g.Go(func() error {
			return fn(w, r[0], r[1])
		})
	}
	return g.Wait()
}

// splitRange cuts [0, n) into at most workers contiguous ranges whose
// boundaries fall on multiples of align.
func splitRange(n, workers, align int) [][2]int {
	if n == 0 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}
	if align < 1 {
		align = 1
	}

	units := (n + align - 1) / align
	if workers > units {
		workers = units
	}
	perWorker := (units + workers - 1) / workers

	ranges := make([][2]int, 0, workers)
	for lo := 0; lo < n; lo += perWorker * align {
		hi := lo + perWorker*align
		if hi > n {
			hi = n
		}
		ranges = append(ranges, [2]int{lo, hi})
	}
	return ranges
}
