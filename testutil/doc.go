// Package testutil provides testing utilities for bumpspace.
//
// This package is intended for use in tests, benchmarks and the stress
// tool only. It provides deterministic object-size generation and a
// Mutator that allocates through TLABs the way a runtime thread would.
//
// # Object Sizes
//
//	rng := testutil.NewRNG(seed)
//	sizes := rng.ObjectSizes(1000, 16, 256)
//
// # Allocation
//
//	m := &testutil.Mutator{Space: s, Thread: th, TLABSize: 4096, Class: 1}
//	addrs, err := m.AllocAll(sizes)
package testutil
