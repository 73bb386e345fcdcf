package experiment

import (
	"math"

	"github.com/AndresSepulveda/gpu-ocean/internal/boundary"
	"github.com/AndresSepulveda/gpu-ocean/internal/config"
	"github.com/AndresSepulveda/gpu-ocean/internal/grid"
	"github.com/AndresSepulveda/gpu-ocean/internal/sim"
)

// SimConfig converts a scenario into the simulator's configuration.
func SimConfig(cfg *config.Config) (sim.Config, error) {
	cond, err := cfg.Conditions()
	if err != nil {
		return sim.Config{}, err
	}
	stress, err := cfg.Wind.Stress()
	if err != nil {
		return sim.Config{}, err
	}
	return sim.Config{
		Nx: cfg.Grid.Nx, Ny: cfg.Grid.Ny,
		Dx: cfg.Grid.Dx, Dy: cfg.Grid.Dy,
		Dt:                 cfg.Scheme.Dt,
		G:                  cfg.Physics.G,
		F:                  cfg.Physics.F,
		R:                  cfg.Physics.R,
		Theta:              cfg.Physics.Theta,
		UseRK2:             cfg.UseRK2(),
		Wind:               stress,
		Boundary:           cond,
		H0AsWaterElevation: cfg.Initial.AsElevation,
	}, nil
}

// fold maps a coordinate outside [0, 1] back into the domain, wrapping on
// periodic axes and mirroring otherwise, so the bottom in the halo agrees
// with what the boundary pass puts there.
func fold(v float64, wrap bool) float64 {
	switch {
	case wrap:
		return v - math.Floor(v)
	case v < 0:
		return -v
	case v > 1:
		return 2 - v
	}
	return v
}

// InitialConditions samples the scenario's shapes on the effective grid.
// The surface is handed over as elevation when the scenario asks for it,
// otherwise as depth against the same cell-centre bottom the simulator
// derives.
func (r *Registry) InitialConditions(cfg *config.Config, sc sim.Config) (sim.InitialConditions, error) {
	bottom, err := r.GetBottom(cfg.Bathymetry.Kind)
	if err != nil {
		return sim.InitialConditions{}, err
	}
	surface, err := r.GetSurface(cfg.Initial.Kind)
	if err != nil {
		return sim.InitialConditions{}, err
	}

	nx, ny := sim.EffectiveDims(sc.Nx, sc.Ny, sc.Boundary)
	cls := boundary.Classify(sc.Boundary)
	wrapX, wrapY := cls.PeriodicX(), cls.PeriodicY()
	g := grid.GhostCells
	cells := &grid.Field{Nx: nx, Ny: ny, Gx: g, Gy: g}
	corners := &grid.Field{Nx: nx + 1, Ny: ny + 1, Gx: g, Gy: g}

	bi := make([]float32, corners.Len())
	for j := 0; j < corners.Rows(); j++ {
		for i := 0; i < corners.Pitch(); i++ {
			x := fold(float64(i-g)/float64(nx), wrapX)
			y := fold(float64(j-g)/float64(ny), wrapY)
			bi[corners.Index(i, j)] = float32(bottom(cfg.Bathymetry, x, y))
		}
	}
	corners.Data = bi

	ic := sim.InitialConditions{
		H:  make([]float32, cells.Len()),
		HU: make([]float32, cells.Len()),
		HV: make([]float32, cells.Len()),
		Bi: bi,
	}
	for j := 0; j < cells.Rows(); j++ {
		for i := 0; i < cells.Pitch(); i++ {
			x := fold((float64(i-g)+0.5)/float64(nx), wrapX)
			y := fold((float64(j-g)+0.5)/float64(ny), wrapY)
			w := float32(surface(cfg.Initial, x, y))
			if cfg.Initial.AsElevation {
				ic.H[cells.Index(i, j)] = w
				continue
			}
			bm := 0.25 * (corners.At(i, j) + corners.At(i+1, j) + corners.At(i, j+1) + corners.At(i+1, j+1))
			ic.H[cells.Index(i, j)] = max(w-bm, 0)
		}
	}
	return ic, nil
}
