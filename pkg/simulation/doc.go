// Package simulation validates candidate policies by shadow-replaying
// resolved forecast outcomes under both the baseline and the candidate
// weight sets and comparing the weighted hit rates.
//
// The simulator only promises the pass/fail contract the proposal
// engine depends on; the replay itself is deliberately simple.
package simulation
