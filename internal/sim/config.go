package sim

import (
	"fmt"
	"math"

	"github.com/AndresSepulveda/gpu-ocean/internal/boundary"
	"github.com/AndresSepulveda/gpu-ocean/internal/grid"
	"github.com/AndresSepulveda/gpu-ocean/internal/wind"
)

// Config holds the construction parameters. Physical constants are
// forwarded to the kernel untouched; only the structure is validated.
type Config struct {
	Nx, Ny int
	Dx, Dy float64
	Dt     float64

	G     float64 // gravitational acceleration
	F     float64 // Coriolis parameter
	R     float64 // bottom friction
	Theta float64 // flux limiter

	UseRK2   bool
	Wind     wind.Stress
	Boundary boundary.Conditions

	// H0AsWaterElevation marks the supplied H as surface elevation. It is
	// converted to depth on construction and back on Download.
	H0AsWaterElevation bool
}

// InitialConditions are padded row-major fields sized for the effective
// dimensions returned by EffectiveDims: H, HU and HV hold
// (nx+6)*(ny+6) values and Bi holds (nx+7)*(ny+7) corner values.
type InitialConditions struct {
	H, HU, HV []float32
	Bi        []float32
}

// EffectiveDims returns the interior size after sponge expansion. With a
// sponge or flow-relaxation edge the sponge cells replace the ghost
// cells and the rest of the layer is added to the interior.
func EffectiveDims(nx, ny int, cond boundary.Conditions) (int, int) {
	if !cond.IsSponge() {
		return nx, ny
	}
	sc := cond.SpongeCells
	nx += sc[boundary.East] + sc[boundary.West] - 2*grid.GhostCells
	ny += sc[boundary.North] + sc[boundary.South] - 2*grid.GhostCells
	return nx, ny
}

func (c Config) validate() error {
	if c.Nx < 1 || c.Ny < 1 {
		return fmt.Errorf("%w: grid must be at least 1x1, got %dx%d", ErrInvalidConfig, c.Nx, c.Ny)
	}
	for _, v := range []struct {
		name string
		val  float64
	}{{"dx", c.Dx}, {"dy", c.Dy}, {"dt", c.Dt}} {
		if !(v.val > 0) || math.IsInf(v.val, 0) {
			return fmt.Errorf("%w: %s must be positive and finite, got %g", ErrInvalidConfig, v.name, v.val)
		}
	}
	if err := c.Boundary.Validate(grid.GhostCells); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
