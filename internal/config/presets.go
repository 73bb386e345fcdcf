package config

import (
	"sort"

	"github.com/AndresSepulveda/gpu-ocean/internal/wind"
)

func preset(name string, edit func(c *Config)) *Config {
	c := DefaultConfig()
	c.Name = name
	edit(c)
	return c
}

var Presets = map[string]*Config{
	"bump": preset("bump", func(c *Config) {}),

	"geostrophic": preset("geostrophic", func(c *Config) {
		c.Physics.F = 1e-3
		c.Scheme.Duration = 3600
		c.Scheme.Every = 300
		c.Initial = InitialConfig{Kind: "bump", Amplitude: 1, Radius: 0.15, X: 0.5, Y: 0.5}
	}),

	"dam_break": preset("dam_break", func(c *Config) {
		c.Grid = GridConfig{Nx: 100, Ny: 20, Dx: 100, Dy: 100}
		c.Scheme.Dt = 1
		c.Scheme.Duration = 300
		c.Scheme.Every = 30
		c.Physics.F = 0
		c.Initial = InitialConfig{Kind: "dam", Amplitude: 3, X: 0.5}
		c.Bathymetry.Depth = 5
	}),

	"channel": preset("channel", func(c *Config) {
		c.Grid = GridConfig{Nx: 96, Ny: 32, Dx: 250, Dy: 250}
		c.Boundary = BoundaryConfig{North: "wall", East: "periodic", South: "wall", West: "periodic"}
		c.Physics.R = 1e-4
		c.Wind = wind.Params{Type: "uniform", Tau0: 0.1, Rho: 1025}
		c.Initial = InitialConfig{Kind: "flat"}
		c.Bathymetry = BathymetryConfig{Kind: "ridge", Depth: 20, Height: 4}
	}),

	"periodic": preset("periodic", func(c *Config) {
		c.Boundary = BoundaryConfig{North: "periodic", East: "periodic", South: "periodic", West: "periodic"}
		c.Initial.X, c.Initial.Y = 0.3, 0.6
	}),

	"shelf": preset("shelf", func(c *Config) {
		c.Scheme.Integrator = "euler"
		c.Scheme.Dt = 1
		c.Bathymetry = BathymetryConfig{Kind: "slope", Depth: 30, Height: 25}
		c.Initial = InitialConfig{Kind: "bump", Amplitude: 0.5, Radius: 0.08, X: 0.7, Y: 0.5, AsElevation: true}
	}),

	"sponge": preset("sponge", func(c *Config) {
		c.Boundary = BoundaryConfig{
			North: "sponge", East: "sponge", South: "sponge", West: "sponge",
			SpongeCells: [4]int{10, 10, 10, 10},
		}
		c.Bathymetry = BathymetryConfig{Kind: "bowl", Depth: 15, Height: 5}
		c.Initial = InitialConfig{Kind: "bump", Amplitude: 0.5, Radius: 0.1, X: 0.5, Y: 0.5, AsElevation: true}
	}),

	"relaxation": preset("relaxation", func(c *Config) {
		c.Boundary = BoundaryConfig{
			North: "periodic", East: "flow_relaxation", South: "periodic", West: "flow_relaxation",
			SpongeCells: [4]int{3, 8, 3, 8},
			Reference:   ReferenceConfig{H: 10},
		}
		c.Initial.X = 0.35
	}),
}

// GetPreset returns a copy of the named scenario, or nil.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	c := *cfg
	return &c
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
