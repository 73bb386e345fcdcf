// Package wind provides surface stress models forwarded to the kernel.
package wind

import (
	"fmt"
	"math"
	"strings"
)

// Stress returns the kinematic surface stress (tau / rho_water, m^2/s^2)
// at position (x, y) metres and time t seconds.
type Stress interface {
	Tau(x, y, t float64) (tx, ty float64)
}

type None struct{}

func (None) Tau(_, _, _ float64) (float64, float64) { return 0, 0 }

// Uniform blows with constant magnitude Tau0 (N/m^2) in direction Alpha
// (radians, counter-clockwise from east) over water of density Rho.
type Uniform struct {
	Tau0  float64
	Rho   float64
	Alpha float64
}

func (u Uniform) Tau(_, _, _ float64) (float64, float64) {
	if u.Rho <= 0 {
		return 0, 0
	}
	s := u.Tau0 / u.Rho
	return s * math.Cos(u.Alpha), s * math.Sin(u.Alpha)
}

// Params is the serialisable form used by configuration files.
type Params struct {
	Type  string  `yaml:"type"`
	Tau0  float64 `yaml:"tau0"`
	Rho   float64 `yaml:"rho"`
	Alpha float64 `yaml:"alpha"`
}

func (p Params) Stress() (Stress, error) {
	switch strings.ToLower(p.Type) {
	case "", "none":
		return None{}, nil
	case "uniform":
		rho := p.Rho
		if rho == 0 {
			rho = 1025
		}
		return Uniform{Tau0: p.Tau0, Rho: rho, Alpha: p.Alpha}, nil
	}
	return nil, fmt.Errorf("wind: unknown stress type %q", p.Type)
}
