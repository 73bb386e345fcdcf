package metrics

import "math"

// Drift tracks the largest relative departure of a conserved quantity
// from its first observed value.
type Drift struct {
	name     string
	quantity func(*Snapshot) float64
	initial  float64
	maxDrift float64
	samples  int
}

func NewMassDrift() *Drift {
	return &Drift{name: "mass_drift", quantity: TotalMass}
}

func NewEnergyDrift() *Drift {
	return &Drift{name: "energy_drift", quantity: TotalEnergy}
}

func (d *Drift) Name() string { return d.name }

func (d *Drift) Observe(s *Snapshot) {
	q := d.quantity(s)
	if d.samples == 0 {
		d.initial = q
	}
	d.samples++

	if d.initial != 0 {
		drift := math.Abs(q-d.initial) / math.Abs(d.initial)
		d.maxDrift = math.Max(d.maxDrift, drift)
	}
}

func (d *Drift) Value() float64 { return d.maxDrift }

func (d *Drift) Reset() {
	d.initial = 0
	d.maxDrift = 0
	d.samples = 0
}

// MaxCFL is the largest Courant number seen.
type MaxCFL struct {
	max float64
}

func NewMaxCFL() *MaxCFL { return &MaxCFL{} }

func (m *MaxCFL) Name() string { return "max_cfl" }

func (m *MaxCFL) Observe(s *Snapshot) {
	_, cfl := Speeds(s)
	m.max = math.Max(m.max, cfl)
}

func (m *MaxCFL) Value() float64 { return m.max }
func (m *MaxCFL) Reset()         { m.max = 0 }
