// Package ensemble stores the positions and velocities of N charged particles
// behind one access contract, whatever the memory layout.
//
// Three layouts are provided:
//
//   - [AoS]: one slice of interleaved (position, velocity) records
//   - [SoA]: six parallel slices, one per component
//   - [Chunked]: the SoA backing store plus a block length the integrator
//     uses to bound its working set
//
// Every layout implements [Ensemble]. Faster paths are exposed through the
// optional [Bulk] and [Blocked] capabilities, which callers discover with a
// type assertion:
//
//	ens, _ := ensemble.New(ensemble.LayoutChunked, particles, ensemble.WithBlockLen(32))
//	if b, ok := ens.(ensemble.Bulk); ok {
//	    s := b.Spans() // borrowed, valid while ens is alive
//	}
//
// # Thread Safety
//
// Ensembles are NOT safe for concurrent mutation. Writers touching disjoint
// index ranges of the same spans are fine; anything else must be serialised
// by the caller.
package ensemble
