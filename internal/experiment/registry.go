package experiment

import (
	"fmt"
	"math"
	"sort"

	"github.com/AndresSepulveda/gpu-ocean/internal/compute"
	"github.com/AndresSepulveda/gpu-ocean/internal/config"
	"github.com/AndresSepulveda/gpu-ocean/internal/kernel"
)

// Shapes take domain fractions x, y in [0, 1] (ghost cells fall slightly
// outside) and return a height in metres relative to the reference level.
type (
	BottomShape  func(c config.BathymetryConfig, x, y float64) float64
	SurfaceShape func(c config.InitialConfig, x, y float64) float64
)

type Registry struct {
	kernels  map[string]func(compute.Backend) kernel.Invoker
	bottoms  map[string]BottomShape
	surfaces map[string]SurfaceShape
}

func NewRegistry() *Registry {
	r := &Registry{
		kernels:  make(map[string]func(compute.Backend) kernel.Invoker),
		bottoms:  make(map[string]BottomShape),
		surfaces: make(map[string]SurfaceShape),
	}

	r.kernels["rusanov"] = func(b compute.Backend) kernel.Invoker { return kernel.NewRusanov(b) }

	r.bottoms["flat"] = func(c config.BathymetryConfig, x, y float64) float64 {
		return -c.Depth
	}
	r.bottoms["slope"] = func(c config.BathymetryConfig, x, y float64) float64 {
		return -c.Depth + c.Height*clamp01(x)
	}
	r.bottoms["bowl"] = func(c config.BathymetryConfig, x, y float64) float64 {
		d2 := ((x-0.5)*(x-0.5) + (y-0.5)*(y-0.5)) / 0.25
		return -c.Depth + c.Height*math.Min(1, d2)
	}
	r.bottoms["ridge"] = func(c config.BathymetryConfig, x, y float64) float64 {
		d := (x - 0.5) / 0.1
		return -c.Depth + c.Height*math.Exp(-d*d)
	}

	r.surfaces["flat"] = func(c config.InitialConfig, x, y float64) float64 {
		return 0
	}
	r.surfaces["bump"] = func(c config.InitialConfig, x, y float64) float64 {
		if c.Radius <= 0 {
			return 0
		}
		d2 := ((x-c.X)*(x-c.X) + (y-c.Y)*(y-c.Y)) / (c.Radius * c.Radius)
		return c.Amplitude * math.Exp(-d2)
	}
	r.surfaces["dam"] = func(c config.InitialConfig, x, y float64) float64 {
		if x < c.X {
			return c.Amplitude
		}
		return 0
	}

	return r
}

func (r *Registry) GetKernel(name string, b compute.Backend) (kernel.Invoker, error) {
	fn, ok := r.kernels[name]
	if !ok {
		return nil, fmt.Errorf("unknown kernel: %s", name)
	}
	return fn(b), nil
}

func (r *Registry) GetBottom(name string) (BottomShape, error) {
	fn, ok := r.bottoms[name]
	if !ok {
		return nil, fmt.Errorf("unknown bathymetry: %s", name)
	}
	return fn, nil
}

func (r *Registry) GetSurface(name string) (SurfaceShape, error) {
	fn, ok := r.surfaces[name]
	if !ok {
		return nil, fmt.Errorf("unknown initial condition: %s", name)
	}
	return fn, nil
}

func (r *Registry) ListKernels() []string {
	names := make([]string, 0, len(r.kernels))
	for name := range r.kernels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
