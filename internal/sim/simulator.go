package sim

import (
	"fmt"
	"io"
	"math"

	"github.com/charmbracelet/log"

	"github.com/AndresSepulveda/gpu-ocean/internal/bathymetry"
	"github.com/AndresSepulveda/gpu-ocean/internal/boundary"
	"github.com/AndresSepulveda/gpu-ocean/internal/compute"
	"github.com/AndresSepulveda/gpu-ocean/internal/grid"
	"github.com/AndresSepulveda/gpu-ocean/internal/kernel"
	"github.com/AndresSepulveda/gpu-ocean/internal/wind"
)

const (
	// substepTolerance is the fraction of dt below which a leftover
	// interval is rounding error rather than a sub-step.
	substepTolerance = 1e-9

	maxSubsteps = math.MaxInt32
)

type Simulator struct {
	cfg    Config
	nx, ny int

	state  *grid.State
	bathy  *bathymetry.Store
	bc     *boundary.Applicator
	kernel kernel.Invoker
	params kernel.Params
	scheme scheme

	backend compute.Backend
	log     *log.Logger

	t           float64
	asElevation bool
	released    bool
}

// New validates cfg, expands the grid for sponge layers, allocates both
// buffer sets and the bathymetry on the backend and uploads ic.
func New(cfg Config, ic InitialConditions, k kernel.Invoker, opts ...Option) (*Simulator, error) {
	if k == nil {
		return nil, fmt.Errorf("%w: kernel is required", ErrInvalidConfig)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Wind == nil {
		cfg.Wind = wind.None{}
	}

	s := &Simulator{cfg: cfg, kernel: k, scheme: pickScheme(cfg.UseRK2)}
	for _, opt := range opts {
		opt(s)
	}
	if s.backend == nil {
		s.backend = compute.GetBackend()
	}
	if s.log == nil {
		s.log = log.New(io.Discard)
	}

	s.nx, s.ny = EffectiveDims(cfg.Nx, cfg.Ny, cfg.Boundary)
	g := grid.GhostCells

	bc, err := boundary.NewApplicator(cfg.Boundary, s.nx, s.ny, g, g)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	s.bc = bc

	s.state, err = grid.NewState(s.backend, s.nx, s.ny, g, g, ic.H, ic.HU, ic.HV)
	if err != nil {
		return nil, fmt.Errorf("sim: grid state: %w", err)
	}
	s.bathy, err = bathymetry.New(s.backend, s.nx, s.ny, g, g, ic.Bi)
	if err != nil {
		s.state.Release()
		return nil, fmt.Errorf("sim: bathymetry: %w", err)
	}

	if cfg.H0AsWaterElevation {
		// Both sets hold the upload; convert both so the scratch halo never
		// carries elevation.
		for _, t := range []grid.Triple{s.state.Current(), s.state.Scratch()} {
			if err := s.bathy.WaterElevationToDepth(t.H); err != nil {
				s.release()
				return nil, fmt.Errorf("sim: elevation to depth: %w", err)
			}
		}
		s.asElevation = true
	}

	s.params = kernel.Params{
		Nx: s.nx, Ny: s.ny, Gx: g, Gy: g,
		Dx: cfg.Dx, Dy: cfg.Dy,
		G: cfg.G, F: cfg.F, R: cfg.R, Theta: cfg.Theta,
		Wind:     cfg.Wind,
		Boundary: bc.Classification(),
	}

	s.log.Debug("simulator ready",
		"nx", s.nx, "ny", s.ny,
		"requested", fmt.Sprintf("%dx%d", cfg.Nx, cfg.Ny),
		"boundary", bc.Classification(),
		"boundary_code", bc.Classification().Code(),
		"scheme", s.scheme.name(),
		"backend", s.backend.Name())
	return s, nil
}

// Step advances the simulation by tEnd and returns the new clock value.
// Sub-step i is min(dt, tEnd-i*dt) long, so only the last one is clipped.
// A remainder within substepTolerance*dt of zero counts as done. A tEnd
// <= 0 only refreshes the halo.
func (s *Simulator) Step(tEnd float64) (float64, error) {
	if s.released {
		return s.t, grid.ErrReleased
	}
	if math.IsNaN(tEnd) || math.IsInf(tEnd, 0) {
		return s.t, fmt.Errorf("%w: %v", ErrInvalidTime, tEnd)
	}
	dt := s.cfg.Dt
	if tEnd/dt > maxSubsteps {
		return s.t, fmt.Errorf("%w: %v needs more than %d sub-steps of %v", ErrInvalidTime, tEnd, maxSubsteps, dt)
	}

	if err := s.bc.ApplyTo(s.state.Current()); err != nil {
		return s.t, &StepError{Substep: 0, Time: s.t, Stage: "boundary", Wrapped: err}
	}

	for i := 0; ; i++ {
		remaining := tEnd - float64(i)*dt
		if remaining <= substepTolerance*dt {
			break
		}
		localDt := math.Min(dt, remaining)
		if stage, err := s.scheme.advance(s, s.t, localDt); err != nil {
			return s.t, &StepError{Substep: i, Time: s.t, Stage: stage, Wrapped: err}
		}
		s.t += localDt
	}
	return s.t, nil
}

// Download returns interior copies of H, HU and HV. When the simulator was
// built with H0AsWaterElevation, H is surface elevation. The conversion
// goes through the scratch H buffer; the authoritative state is not
// written.
func (s *Simulator) Download() (h, hu, hv [][]float32, err error) {
	if s.released {
		return nil, nil, nil, grid.ErrReleased
	}
	if !s.asElevation {
		return s.state.Download()
	}
	cur, scr := s.state.Current(), s.state.Scratch()
	if err := s.bathy.WaterDepthToElevation(scr.H, cur.H); err != nil {
		return nil, nil, nil, err
	}
	return s.state.DownloadTriple(grid.Triple{H: scr.H, HU: cur.HU, HV: cur.HV})
}

// DownloadBathymetry returns the interior corner and cell-centre bottom
// elevations.
func (s *Simulator) DownloadBathymetry() (bi, bm [][]float32, err error) {
	if s.released {
		return nil, nil, grid.ErrReleased
	}
	return s.bathy.Download()
}

func (s *Simulator) Time() float64                           { return s.t }
func (s *Simulator) Dims() (nx, ny int)                      { return s.nx, s.ny }
func (s *Simulator) Config() Config                          { return s.cfg }
func (s *Simulator) Classification() boundary.Classification { return s.params.Boundary }

// CleanUp releases the device buffers. It is safe to call more than once;
// afterwards Step and Download return grid.ErrReleased.
func (s *Simulator) CleanUp() error {
	if s.released {
		return nil
	}
	s.release()
	s.log.Debug("simulator released", "t", s.t)
	return nil
}

func (s *Simulator) release() {
	s.state.Release()
	s.bathy.Release()
	s.asElevation = false
	s.released = true
}
