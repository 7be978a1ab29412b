package verify

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/emsim/internal/ensemble"
)

// Diff summarises how far apart two ensembles are.
type Diff struct {
	// MaxAbs is the largest absolute component difference.
	MaxAbs float64
	// MaxRel is MaxAbs of each component array divided by that array's
	// largest magnitude, maximised over the six arrays.
	MaxRel float64
	// Identical is true when every component matches bit for bit.
	Identical bool
}

// Compare measures the component-wise distance between a and b, which may
// use different layouts.
func Compare(a, b ensemble.Ensemble) (Diff, error) {
	if a.Len() != b.Len() {
		return Diff{}, fmt.Errorf("%w: lengths %d and %d", ErrMismatch, a.Len(), b.Len())
	}

	sa, sb := spansOf(a), spansOf(b)
	pairs := [][2][]float64{
		{sa.Rx, sb.Rx}, {sa.Ry, sb.Ry}, {sa.Rz, sb.Rz},
		{sa.Vx, sb.Vx}, {sa.Vy, sb.Vy}, {sa.Vz, sb.Vz},
	}

	d := Diff{Identical: true}
	if a.Len() == 0 {
		return d, nil
	}
	inf := math.Inf(1)
	for _, p := range pairs {
		x, y := p[0], p[1]
		if !floats.Same(x, y) {
			d.Identical = false
		}
		abs := floats.Distance(x, y, inf)
		scale := math.Max(floats.Norm(x, inf), floats.Norm(y, inf))
		rel := abs
		if scale > 0 {
			rel = abs / scale
		}
		d.MaxAbs = math.Max(d.MaxAbs, abs)
		d.MaxRel = math.Max(d.MaxRel, rel)
	}
	return d, nil
}

// Equivalent fails with ErrMismatch when Compare reports MaxRel above tol.
func Equivalent(a, b ensemble.Ensemble, tol float64) error {
	d, err := Compare(a, b)
	if err != nil {
		return err
	}
	if d.MaxRel > tol || math.IsNaN(d.MaxRel) {
		return fmt.Errorf("%w: %s vs %s relative difference %g exceeds %g",
			ErrMismatch, a.Layout(), b.Layout(), d.MaxRel, tol)
	}
	return nil
}

// spansOf returns component arrays for any layout, copying only when the
// layout has no bulk access.
func spansOf(e ensemble.Ensemble) ensemble.Spans {
	switch x := e.(type) {
	case ensemble.Bulk:
		return x.Spans()
	case *ensemble.AoS:
		return x.Materialize()
	}
	tmp := ensemble.NewSoA(ensemble.Snapshot(e))
	return tmp.Spans()
}
