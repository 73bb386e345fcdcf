// Package sim drives the shallow-water time stepping.
//
// A Simulator owns the double-buffered grid state and the bathymetry, and
// composes boundary passes with kernel invocations into one Euler or RK2
// sub-step at a time:
//
//	RK2:   K(cur -> scr, stage 0); BC(scr); K(scr -> cur, stage 1); BC(cur)
//	Euler: K(cur -> scr, stage 0); swap;    BC(cur)
//
// The kernel never reads a halo that has not been refreshed since the
// buffer was last written. Only one goroutine may drive a Simulator.
package sim
