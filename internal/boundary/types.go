package boundary

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidConditions = errors.New("boundary: invalid conditions")

// Type is the condition on one edge. The numeric values match the codes
// kernels expect.
type Type int

const (
	Wall            Type = 1
	Periodic        Type = 2
	NumericalSponge Type = 3
	FlowRelaxation  Type = 4
)

func (t Type) String() string {
	switch t {
	case Wall:
		return "wall"
	case Periodic:
		return "periodic"
	case NumericalSponge:
		return "sponge"
	case FlowRelaxation:
		return "flow_relaxation"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// IsSponge reports whether the edge carries a relaxation layer.
func (t Type) IsSponge() bool { return t == NumericalSponge || t == FlowRelaxation }

func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "wall", "reflective":
		return Wall, nil
	case "periodic":
		return Periodic, nil
	case "sponge", "numerical_sponge":
		return NumericalSponge, nil
	case "flow_relaxation", "frs":
		return FlowRelaxation, nil
	}
	return 0, fmt.Errorf("%w: unknown boundary type %q", ErrInvalidConditions, s)
}

// Edge indices into Conditions.SpongeCells.
const (
	North = iota
	East
	South
	West
)

// Reference is the external state flow-relaxation edges relax toward.
type Reference struct {
	H, HU, HV float32
}

// Conditions is the per-edge boundary configuration.
type Conditions struct {
	North, East, South, West Type
	// SpongeCells holds the layer widths ordered north, east, south, west.
	SpongeCells [4]int
	Reference   Reference
}

// DefaultConditions is walls on every edge.
func DefaultConditions() Conditions {
	return Conditions{North: Wall, East: Wall, South: Wall, West: Wall}
}

func (c Conditions) Edges() [4]Type { return [4]Type{c.North, c.East, c.South, c.West} }

// IsSponge reports whether any edge carries a relaxation layer. When it
// does, the grid is widened by the sponge cells.
func (c Conditions) IsSponge() bool {
	for _, t := range c.Edges() {
		if t.IsSponge() {
			return true
		}
	}
	return false
}

// Validate checks the combination is one the applicator can realise.
func (c Conditions) Validate(ghost int) error {
	for k, t := range c.Edges() {
		if t < Wall || t > FlowRelaxation {
			return fmt.Errorf("%w: edge %d has type %v", ErrInvalidConditions, k, t)
		}
	}
	if (c.North == Periodic) != (c.South == Periodic) {
		return fmt.Errorf("%w: north/south periodicity must be paired", ErrInvalidConditions)
	}
	if (c.East == Periodic) != (c.West == Periodic) {
		return fmt.Errorf("%w: east/west periodicity must be paired", ErrInvalidConditions)
	}
	for k, n := range c.SpongeCells {
		if n < 0 {
			return fmt.Errorf("%w: negative sponge width %d on edge %d", ErrInvalidConditions, n, k)
		}
		if c.IsSponge() && n < ghost {
			return fmt.Errorf("%w: sponge width %d on edge %d is narrower than the %d ghost cells", ErrInvalidConditions, n, k, ghost)
		}
	}
	return nil
}

// Classification is the closed set of periodicity layouts a kernel
// specialises on. It is derived once from Conditions.
type Classification int

const (
	Default Classification = iota
	PeriodicBoth
	PeriodicNorthSouth
	PeriodicEastWest
)

func Classify(c Conditions) Classification {
	switch {
	case c.North == Periodic && c.East == Periodic:
		return PeriodicBoth
	case c.North == Periodic:
		return PeriodicNorthSouth
	case c.East == Periodic:
		return PeriodicEastWest
	default:
		return Default
	}
}

// Code is the integer form passed to device kernels.
func (c Classification) Code() int32 {
	switch c {
	case PeriodicBoth:
		return 2
	case PeriodicNorthSouth:
		return 3
	case PeriodicEastWest:
		return 4
	default:
		return 1
	}
}

func (c Classification) String() string {
	switch c {
	case PeriodicBoth:
		return "periodic-both"
	case PeriodicNorthSouth:
		return "periodic-north-south"
	case PeriodicEastWest:
		return "periodic-east-west"
	default:
		return "default"
	}
}

// PeriodicX reports whether the east/west edges wrap.
func (c Classification) PeriodicX() bool { return c == PeriodicBoth || c == PeriodicEastWest }

// PeriodicY reports whether the north/south edges wrap.
func (c Classification) PeriodicY() bool { return c == PeriodicBoth || c == PeriodicNorthSouth }
