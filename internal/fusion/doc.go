// Package fusion combines per-channel emotion estimates into one weighted
// verdict. Everything here is pure: no clock, no state, no I/O.
package fusion
