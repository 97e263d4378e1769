// Package mem provides address arithmetic helpers.
//
// # Alignment
//
// All helpers operate on power-of-two alignments and are branch free.
package mem
