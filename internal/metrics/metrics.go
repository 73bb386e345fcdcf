// Package metrics computes diagnostics on downloaded fields. Every
// function expects depth (not elevation) in Snapshot.H.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// dryDepth matches the kernel's threshold below which velocity is zero.
const dryDepth = 1e-5

// Snapshot is one output of a run: interior fields plus what is needed to
// turn them into physical quantities.
type Snapshot struct {
	T         float64
	H, HU, HV [][]float32
	Eta       [][]float32 // surface elevation, H + Bm
	Bm        [][]float32
	Dx, Dy    float64
	Dt        float64
	G         float64
}

type Metric interface {
	Name() string
	Observe(s *Snapshot)
	Value() float64
	Reset()
}

// Default returns the metrics every run reports.
func Default() []Metric {
	return []Metric{NewMassDrift(), NewEnergyDrift(), NewMaxCFL(), NewStability(1)}
}

// Sample is the row stored for every output.
type Sample struct {
	T        float64
	Mass     float64
	Energy   float64
	MaxSpeed float64
	MaxCFL   float64
}

func Sampled(s *Snapshot) Sample {
	speed, cfl := Speeds(s)
	return Sample{T: s.T, Mass: TotalMass(s), Energy: TotalEnergy(s), MaxSpeed: speed, MaxCFL: cfl}
}

// TotalMass is the water volume in m^3.
func TotalMass(s *Snapshot) float64 {
	row := make([]float64, 0, rowLen(s))
	total := 0.0
	for j := range s.H {
		row = row[:0]
		for _, h := range s.H[j] {
			row = append(row, float64(h))
		}
		total += floats.Sum(row)
	}
	return total * s.Dx * s.Dy
}

// TotalEnergy is kinetic plus available potential energy per unit
// density, with potential energy measured from the reference level.
func TotalEnergy(s *Snapshot) float64 {
	row := make([]float64, 0, rowLen(s))
	total := 0.0
	for j := range s.H {
		row = row[:0]
		for i := range s.H[j] {
			h := float64(s.H[j][i])
			w := h + float64(s.Bm[j][i])
			e := 0.5 * s.G * w * w
			if h > dryDepth {
				hu, hv := float64(s.HU[j][i]), float64(s.HV[j][i])
				e += 0.5 * (hu*hu + hv*hv) / h
			}
			row = append(row, e)
		}
		total += floats.Sum(row)
	}
	return total * s.Dx * s.Dy
}

// Speeds returns the largest flow speed and the largest Courant number
// (|u|+sqrt(gh))*dt/dx over both directions.
func Speeds(s *Snapshot) (maxSpeed, maxCFL float64) {
	speeds := make([]float64, 0, rowLen(s))
	cfls := make([]float64, 0, rowLen(s))
	for j := range s.H {
		speeds, cfls = speeds[:0], cfls[:0]
		for i := range s.H[j] {
			h := float64(s.H[j][i])
			if h <= dryDepth {
				continue
			}
			u, v := float64(s.HU[j][i])/h, float64(s.HV[j][i])/h
			c := math.Sqrt(s.G * h)
			speeds = append(speeds, math.Hypot(u, v))
			cfls = append(cfls, math.Max((math.Abs(u)+c)*s.Dt/s.Dx, (math.Abs(v)+c)*s.Dt/s.Dy))
		}
		if len(speeds) > 0 {
			maxSpeed = math.Max(maxSpeed, floats.Max(speeds))
			maxCFL = math.Max(maxCFL, floats.Max(cfls))
		}
	}
	return maxSpeed, maxCFL
}

// Finite reports whether every value in the snapshot is a number.
func Finite(s *Snapshot) bool {
	for _, field := range [][][]float32{s.H, s.HU, s.HV} {
		for _, row := range field {
			for _, v := range row {
				f := float64(v)
				if math.IsNaN(f) || math.IsInf(f, 0) {
					return false
				}
			}
		}
	}
	return true
}

func rowLen(s *Snapshot) int {
	if len(s.H) == 0 {
		return 0
	}
	return len(s.H[0])
}
