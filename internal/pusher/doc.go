// Package pusher advances a charged-particle ensemble through a constant,
// uniform electromagnetic field with a fourth-order Runge-Kutta step.
//
// A [Pusher] is written once against the [ensemble.Ensemble] contract and
// picks the fastest kernel the ensemble supports:
//
//   - [ensemble.Blocked]: blocked kernel with a reusable per-worker scratch arena
//   - [ensemble.Bulk]: fused scalar loop over the six component spans
//   - AoS records: vector arithmetic on interleaved records
//   - anything else: per-particle accessor calls
//
// Every kernel evaluates the same expressions in the same order, so layouts
// agree to rounding.
//
// # Example
//
//	ens, _ := ensemble.New(ensemble.LayoutSoA, particles)
//	p, _ := pusher.New(pusher.Config{
//	    Fields:    pusher.Fields{E: vec.New(0, -0.005, 0), B: vec.New(0, 0, 1)},
//	    Constants: pusher.ElectronConstants(),
//	}, ens)
//	for i := 0; i < 256; i++ {
//	    if err := p.Step(1e-10); err != nil { ... }
//	}
//
// # Position update
//
// The position ladder is built from the pre-step velocity alone
// (j1 = v, j2 = v + dt/2*j1, ...), not from the acceleration. This is kept
// as-is because every layout must reproduce it; it is not an energy-consistent
// integration of dr/dt = v.
//
// # Thread Safety
//
// Step must not be called concurrently on the same Pusher or ensemble.
// With Workers > 1 a single Step fans out internally over disjoint ranges.
package pusher
