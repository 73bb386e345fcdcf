// Package experiment turns a scenario into a running simulation and
// collects diagnostics at a fixed output interval.
package experiment

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/charmbracelet/log"

	"github.com/AndresSepulveda/gpu-ocean/internal/compute"
	"github.com/AndresSepulveda/gpu-ocean/internal/config"
	"github.com/AndresSepulveda/gpu-ocean/internal/metrics"
	"github.com/AndresSepulveda/gpu-ocean/internal/sim"
)

// Observer is called with every output, including the initial one.
type Observer func(index int, snap *metrics.Snapshot) error

type Result struct {
	Samples []metrics.Sample
	Metrics map[string]float64
	Final   *metrics.Snapshot
	Time    float64
}

type Experiment struct {
	cfg       *config.Config
	registry  *Registry
	kernel    string
	backend   compute.Backend
	log       *log.Logger
	simulator *sim.Simulator
	metrics   []metrics.Metric
	observers []Observer
	outputs   int
	samples   []metrics.Sample
}

type Option func(*Experiment)

func WithBackend(b compute.Backend) Option { return func(e *Experiment) { e.backend = b } }
func WithLogger(l *log.Logger) Option      { return func(e *Experiment) { e.log = l } }

// WithKernel selects a registered kernel by name. The default is rusanov.
func WithKernel(name string) Option { return func(e *Experiment) { e.kernel = name } }

func New(cfg *config.Config, opts ...Option) *Experiment {
	e := &Experiment{cfg: cfg, registry: NewRegistry(), kernel: "rusanov"}
	for _, opt := range opts {
		opt(e)
	}
	if e.backend == nil {
		e.backend = compute.GetBackend()
	}
	if e.log == nil {
		e.log = log.New(io.Discard)
	}
	return e
}

// Setup validates the scenario, builds the fields and allocates the
// simulator. Metrics are reset and observe the initial state.
func (e *Experiment) Setup(ms []metrics.Metric) error {
	if err := e.cfg.Validate(); err != nil {
		return err
	}
	sc, err := SimConfig(e.cfg)
	if err != nil {
		return err
	}
	ic, err := e.registry.InitialConditions(e.cfg, sc)
	if err != nil {
		return err
	}
	k, err := e.registry.GetKernel(e.kernel, e.backend)
	if err != nil {
		return err
	}
	e.simulator, err = sim.New(sc, ic, k, sim.WithBackend(e.backend), sim.WithLogger(e.log))
	if err != nil {
		return fmt.Errorf("experiment %s: %w", e.cfg.Name, err)
	}

	e.metrics = ms
	for _, m := range e.metrics {
		m.Reset()
	}
	e.outputs = 0
	e.samples = nil

	nx, ny := e.simulator.Dims()
	e.log.Info("scenario ready", "name", e.cfg.Name, "nx", nx, "ny", ny,
		"boundary", e.simulator.Classification(), "backend", e.backend.Name())
	return nil
}

func (e *Experiment) AddObserver(o Observer) { e.observers = append(e.observers, o) }

// Simulator is nil before Setup.
func (e *Experiment) Simulator() *sim.Simulator { return e.simulator }

func (e *Experiment) Config() *config.Config { return e.cfg }

// Snapshot downloads the current state. H is always depth; Eta is the
// surface elevation.
func (e *Experiment) Snapshot() (*metrics.Snapshot, error) {
	if e.simulator == nil {
		return nil, fmt.Errorf("experiment not setup")
	}
	h, hu, hv, err := e.simulator.Download()
	if err != nil {
		return nil, err
	}
	_, bm, err := e.simulator.DownloadBathymetry()
	if err != nil {
		return nil, err
	}

	eta := make([][]float32, len(h))
	for j := range h {
		eta[j] = make([]float32, len(h[j]))
		for i := range h[j] {
			if e.cfg.Initial.AsElevation {
				eta[j][i] = h[j][i]
				h[j][i] -= bm[j][i]
			} else {
				eta[j][i] = h[j][i] + bm[j][i]
			}
		}
	}

	return &metrics.Snapshot{
		T: e.simulator.Time(),
		H: h, HU: hu, HV: hv,
		Eta: eta,
		Bm:  bm,
		Dx:  e.cfg.Grid.Dx, Dy: e.cfg.Grid.Dy,
		Dt: e.cfg.Scheme.Dt,
		G:  e.cfg.Physics.G,
	}, nil
}

// Advance steps the simulation by interval and records one output. An
// interval of zero records the current state without stepping.
func (e *Experiment) Advance(interval float64) (*metrics.Snapshot, error) {
	if e.simulator == nil {
		return nil, fmt.Errorf("experiment not setup")
	}
	if interval > 0 {
		if _, err := e.simulator.Step(interval); err != nil {
			return nil, err
		}
	}
	snap, err := e.Snapshot()
	if err != nil {
		return nil, err
	}

	for _, m := range e.metrics {
		m.Observe(snap)
	}
	e.samples = append(e.samples, metrics.Sampled(snap))
	for _, o := range e.observers {
		if err := o(e.outputs, snap); err != nil {
			return nil, err
		}
	}
	e.outputs++
	return snap, nil
}

// Run records the initial state and then one output every Scheme.Every
// simulated seconds until Scheme.Duration. A zero interval yields only the
// initial and final outputs. Cancellation is checked between outputs.
func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	if e.simulator == nil {
		return nil, fmt.Errorf("experiment not setup")
	}

	snap, err := e.Advance(0)
	if err != nil {
		return nil, err
	}

	duration := e.cfg.Scheme.Duration
	every := e.cfg.Scheme.Every
	if every <= 0 {
		every = duration
	}
	// Count outputs instead of accumulating the clock so the last interval
	// is not lost to rounding.
	n := 0
	if duration > 0 {
		n = int(math.Ceil(duration/every - 1e-9))
	}
	done := 0.0
	for k := 1; k <= n; k++ {
		select {
		case <-ctx.Done():
			return e.result(snap), ctx.Err()
		default:
		}

		next := math.Min(float64(k)*every, duration)
		snap, err = e.Advance(next - done)
		if err != nil {
			return e.result(snap), err
		}
		done = next
		e.log.Debug("output", "index", e.outputs-1, "t", snap.T)
	}

	res := e.result(snap)
	e.log.Info("run finished", "t", res.Time, "outputs", len(res.Samples),
		"mass_drift", res.Metrics["mass_drift"], "max_cfl", res.Metrics["max_cfl"])
	return res, nil
}

func (e *Experiment) result(final *metrics.Snapshot) *Result {
	res := &Result{
		Samples: e.samples,
		Metrics: make(map[string]float64, len(e.metrics)),
		Final:   final,
		Time:    e.simulator.Time(),
	}
	for _, m := range e.metrics {
		res.Metrics[m.Name()] = m.Value()
	}
	return res
}

// Close releases the simulator. Safe to call more than once.
func (e *Experiment) Close() error {
	if e.simulator == nil {
		return nil
	}
	return e.simulator.CleanUp()
}
