// Package kernel defines the finite-volume sub-step the simulator drives.
//
// An [Invoker] reads one buffer triple and writes a complete new interior
// into another. It assumes the input halo is already valid and never
// touches halo cells itself. Stage 0 writes out = in + dt*R(in). Stage 1
// blends with what the output buffer already holds:
//
//	out = 0.5*(out + in + dt*R(in))
//
// which, with the simulator's buffer ordering, realises a two-stage
// Runge-Kutta step.
package kernel

import (
	"errors"
	"fmt"

	"github.com/AndresSepulveda/gpu-ocean/internal/bathymetry"
	"github.com/AndresSepulveda/gpu-ocean/internal/boundary"
	"github.com/AndresSepulveda/gpu-ocean/internal/grid"
	"github.com/AndresSepulveda/gpu-ocean/internal/wind"
)

var ErrInvalidStage = errors.New("kernel: stage must be 0 or 1")

// Params is the argument bundle for one invocation. The simulator builds
// it once and derives per-call copies with WithStage.
type Params struct {
	Nx, Ny int
	Gx, Gy int
	Dx, Dy float64

	G     float64
	F     float64
	R     float64
	Theta float64

	Wind     wind.Stress
	Boundary boundary.Classification

	Dt    float64
	T     float64
	Stage int
}

// WithStage returns a copy with the per-invocation fields set.
func (p Params) WithStage(stage int, t, dt float64) Params {
	p.Stage = stage
	p.T = t
	p.Dt = dt
	return p
}

type Invoker interface {
	Advance(p Params, in, out grid.Triple, bathy *bathymetry.Store) error
}

// Func adapts a plain function to Invoker.
type Func func(p Params, in, out grid.Triple, bathy *bathymetry.Store) error

func (f Func) Advance(p Params, in, out grid.Triple, bathy *bathymetry.Store) error {
	return f(p, in, out, bathy)
}

// Blend applies the stage update for one value. outOld is what the output
// buffer held before the call; it only matters for stage 1.
func Blend(stage int, outOld, in, residual, dt float32) float32 {
	if stage == 1 {
		return 0.5 * (outOld + (in + dt*residual))
	}
	return in + dt*residual
}

// CheckArgs validates what every implementation relies on.
func CheckArgs(p Params, in, out grid.Triple) error {
	if p.Stage != 0 && p.Stage != 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidStage, p.Stage)
	}
	for _, t := range []grid.Triple{in, out} {
		for _, f := range t.Fields() {
			if f == nil || f.Data == nil {
				return grid.ErrReleased
			}
			if f.Nx != p.Nx || f.Ny != p.Ny || f.Gx != p.Gx || f.Gy != p.Gy {
				return fmt.Errorf("%w: buffer %dx%d, kernel configured for %dx%d", grid.ErrDimensionMismatch, f.Nx, f.Ny, p.Nx, p.Ny)
			}
		}
	}
	return nil
}
