package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/AndresSepulveda/gpu-ocean/internal/boundary"
	"github.com/AndresSepulveda/gpu-ocean/internal/grid"
	"github.com/AndresSepulveda/gpu-ocean/internal/wind"
)

const (
	DefaultNx       = 64
	DefaultNy       = 64
	DefaultDx       = 200.0
	DefaultDy       = 200.0
	DefaultDt       = 2.0
	DefaultDuration = 600.0
	DefaultEvery    = 60.0
	DefaultG        = 9.81
	DefaultF        = 1.2e-4
	DefaultTheta    = 1.3
	DefaultDepth    = 10.0
)

var ErrInvalid = errors.New("config: invalid scenario")

type Config struct {
	Name       string           `yaml:"name"`
	Grid       GridConfig       `yaml:"grid"`
	Physics    PhysicsConfig    `yaml:"physics"`
	Scheme     SchemeConfig     `yaml:"scheme"`
	Boundary   BoundaryConfig   `yaml:"boundary"`
	Wind       wind.Params      `yaml:"wind"`
	Initial    InitialConfig    `yaml:"initial"`
	Bathymetry BathymetryConfig `yaml:"bathymetry"`
}

type GridConfig struct {
	Nx int     `yaml:"nx"`
	Ny int     `yaml:"ny"`
	Dx float64 `yaml:"dx"`
	Dy float64 `yaml:"dy"`
}

type PhysicsConfig struct {
	G     float64 `yaml:"g"`
	F     float64 `yaml:"f"`
	R     float64 `yaml:"r"`
	Theta float64 `yaml:"theta"`
}

type SchemeConfig struct {
	Integrator string  `yaml:"integrator"` // rk2 or euler
	Dt         float64 `yaml:"dt"`
	Duration   float64 `yaml:"duration"`
	Every      float64 `yaml:"every"` // simulated seconds between outputs
}

type BoundaryConfig struct {
	North       string          `yaml:"north"`
	East        string          `yaml:"east"`
	South       string          `yaml:"south"`
	West        string          `yaml:"west"`
	SpongeCells [4]int          `yaml:"sponge_cells"` // north, east, south, west
	Reference   ReferenceConfig `yaml:"reference"`
}

type ReferenceConfig struct {
	H  float64 `yaml:"h"`
	HU float64 `yaml:"hu"`
	HV float64 `yaml:"hv"`
}

// InitialConfig describes the initial surface elevation relative to the
// reference level. Positions are fractions of the domain. With AsElevation
// the field is handed to the simulator as elevation; otherwise it is
// converted to depth before upload.
type InitialConfig struct {
	Kind        string  `yaml:"kind"` // flat, bump, dam
	Amplitude   float64 `yaml:"amplitude"`
	Radius      float64 `yaml:"radius"`
	X           float64 `yaml:"x"`
	Y           float64 `yaml:"y"`
	AsElevation bool    `yaml:"as_elevation"`
}

// BathymetryConfig shapes the bottom. Depth is the deepest point below the
// reference level; Height is how far the feature rises from there.
type BathymetryConfig struct {
	Kind   string  `yaml:"kind"` // flat, slope, bowl, ridge
	Depth  float64 `yaml:"depth"`
	Height float64 `yaml:"height"`
}

func DefaultConfig() *Config {
	return &Config{
		Name: "default",
		Grid: GridConfig{Nx: DefaultNx, Ny: DefaultNy, Dx: DefaultDx, Dy: DefaultDy},
		Physics: PhysicsConfig{
			G:     DefaultG,
			F:     DefaultF,
			Theta: DefaultTheta,
		},
		Scheme: SchemeConfig{
			Integrator: "rk2",
			Dt:         DefaultDt,
			Duration:   DefaultDuration,
			Every:      DefaultEvery,
		},
		Boundary: BoundaryConfig{North: "wall", East: "wall", South: "wall", West: "wall"},
		Wind:     wind.Params{Type: "none"},
		Initial: InitialConfig{
			Kind:      "bump",
			Amplitude: 0.5,
			Radius:    0.1,
			X:         0.5,
			Y:         0.5,
		},
		Bathymetry: BathymetryConfig{Kind: "flat", Depth: DefaultDepth},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) UseRK2() bool { return c.Scheme.Integrator != "euler" }

// Conditions converts the boundary block. Sponge widths are validated
// against the ghost width by the simulator.
func (c *Config) Conditions() (boundary.Conditions, error) {
	var cond boundary.Conditions
	for _, e := range []struct {
		name string
		dst  *boundary.Type
	}{
		{c.Boundary.North, &cond.North},
		{c.Boundary.East, &cond.East},
		{c.Boundary.South, &cond.South},
		{c.Boundary.West, &cond.West},
	} {
		t, err := boundary.ParseType(e.name)
		if err != nil {
			return cond, err
		}
		*e.dst = t
	}
	cond.SpongeCells = c.Boundary.SpongeCells
	ref := c.Boundary.Reference
	cond.Reference = boundary.Reference{H: float32(ref.H), HU: float32(ref.HU), HV: float32(ref.HV)}
	return cond, nil
}

func (c *Config) Validate() error {
	if c.Grid.Nx < 1 || c.Grid.Ny < 1 {
		return fmt.Errorf("%w: grid %dx%d", ErrInvalid, c.Grid.Nx, c.Grid.Ny)
	}
	if c.Grid.Dx <= 0 || c.Grid.Dy <= 0 {
		return fmt.Errorf("%w: grid spacing must be positive", ErrInvalid)
	}
	if c.Scheme.Dt <= 0 {
		return fmt.Errorf("%w: dt must be positive, got %g", ErrInvalid, c.Scheme.Dt)
	}
	if c.Scheme.Duration < 0 || c.Scheme.Every < 0 {
		return fmt.Errorf("%w: duration and output interval must not be negative", ErrInvalid)
	}
	switch c.Scheme.Integrator {
	case "rk2", "euler":
	default:
		return fmt.Errorf("%w: unknown integrator %q", ErrInvalid, c.Scheme.Integrator)
	}
	switch c.Initial.Kind {
	case "flat", "bump", "dam":
	default:
		return fmt.Errorf("%w: unknown initial condition %q", ErrInvalid, c.Initial.Kind)
	}
	switch c.Bathymetry.Kind {
	case "flat", "slope", "bowl", "ridge":
	default:
		return fmt.Errorf("%w: unknown bathymetry %q", ErrInvalid, c.Bathymetry.Kind)
	}
	if c.Bathymetry.Depth <= 0 {
		return fmt.Errorf("%w: bathymetry depth must be positive", ErrInvalid)
	}
	if c.Bathymetry.Height < 0 || c.Bathymetry.Height >= c.Bathymetry.Depth {
		return fmt.Errorf("%w: bathymetry height %g must lie in [0, %g)", ErrInvalid, c.Bathymetry.Height, c.Bathymetry.Depth)
	}
	cond, err := c.Conditions()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := cond.Validate(grid.GhostCells); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := c.Wind.Stress(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}
