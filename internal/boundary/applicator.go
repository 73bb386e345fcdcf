package boundary

import (
	"fmt"

	"github.com/AndresSepulveda/gpu-ocean/internal/grid"
)

// Applicator fills halo and sponge cells of a buffer triple in place. It
// holds no simulation state: conditions, classification and geometry are
// captured at construction.
//
// Every rule writes cells as a function of cells it does not write, so
// ApplyTo is idempotent.
type Applicator struct {
	cond  Conditions
	class Classification
	nx    int
	ny    int
	gx    int
	gy    int
}

// NewApplicator builds an applicator for an nx x ny interior (after any
// sponge widening) with gx, gy ghost cells.
func NewApplicator(cond Conditions, nx, ny, gx, gy int) (*Applicator, error) {
	ghost := gx
	if gy > ghost {
		ghost = gy
	}
	if err := cond.Validate(ghost); err != nil {
		return nil, err
	}
	if nx < gx || ny < gy {
		return nil, fmt.Errorf("%w: interior %dx%d is smaller than the ghost width", ErrInvalidConditions, nx, ny)
	}
	return &Applicator{
		cond:  cond,
		class: Classify(cond),
		nx:    nx,
		ny:    ny,
		gx:    gx,
		gy:    gy,
	}, nil
}

func (a *Applicator) Conditions() Conditions         { return a.cond }
func (a *Applicator) Classification() Classification { return a.class }

// axis describes one sweep direction. line runs along the edge normal,
// pos along the edge.
type axis struct {
	lines  int
	n      int
	ghost  int
	first  int
	last   int
	normal int
	get    func(f *grid.Field, line, pos int) float32
	set    func(f *grid.Field, line, pos int, v float32)
}

// ApplyTo applies north/south first over interior columns, then east/west
// over the full padded height so corners take their values from the
// already-filled ghost rows.
func (a *Applicator) ApplyTo(t grid.Triple) error {
	for _, f := range t.Fields() {
		if f == nil || f.Data == nil {
			return grid.ErrReleased
		}
		if f.Nx != a.nx || f.Ny != a.ny || f.Gx != a.gx || f.Gy != a.gy {
			return fmt.Errorf("%w: buffer %dx%d does not match boundary grid %dx%d", grid.ErrDimensionMismatch, f.Nx, f.Ny, a.nx, a.ny)
		}
	}

	rows := axis{
		lines:  a.ny + 2*a.gy,
		n:      a.ny,
		ghost:  a.gy,
		first:  a.gx,
		last:   a.gx + a.nx,
		normal: 2,
		get:    func(f *grid.Field, line, pos int) float32 { return f.At(pos, line) },
		set:    func(f *grid.Field, line, pos int, v float32) { f.Set(pos, line, v) },
	}
	cols := axis{
		lines:  a.nx + 2*a.gx,
		n:      a.nx,
		ghost:  a.gx,
		first:  0,
		last:   a.ny + 2*a.gy,
		normal: 1,
		get:    func(f *grid.Field, line, pos int) float32 { return f.At(line, pos) },
		set:    func(f *grid.Field, line, pos int, v float32) { f.Set(line, pos, v) },
	}

	a.applyEdge(t, a.cond.South, a.cond.SpongeCells[South], rows, false)
	a.applyEdge(t, a.cond.North, a.cond.SpongeCells[North], rows, true)
	a.applyEdge(t, a.cond.West, a.cond.SpongeCells[West], cols, false)
	a.applyEdge(t, a.cond.East, a.cond.SpongeCells[East], cols, true)
	return nil
}

func (a *Applicator) applyEdge(t grid.Triple, typ Type, width int, ax axis, high bool) {
	// d is the distance from the outer edge of the padded grid.
	line := func(d int) int {
		if high {
			return ax.lines - 1 - d
		}
		return d
	}
	ref := [3]float32{a.cond.Reference.H, a.cond.Reference.HU, a.cond.Reference.HV}

	for k, f := range t.Fields() {
		sign := float32(1)
		if k == ax.normal {
			sign = -1
		}

		for pos := ax.first; pos < ax.last; pos++ {
			switch typ {
			case Wall:
				for d := 0; d < ax.ghost; d++ {
					ax.set(f, line(d), pos, sign*ax.get(f, line(2*ax.ghost-1-d), pos))
				}
			case Periodic:
				for d := 0; d < ax.ghost; d++ {
					ax.set(f, line(d), pos, ax.get(f, line(d+ax.n), pos))
				}
			case NumericalSponge, FlowRelaxation:
				if width < 1 {
					continue
				}
				outer, start := ax.get(f, line(0), pos), 1
				if typ == FlowRelaxation {
					outer, start = ref[k], 0
				}
				anchor := ax.get(f, line(width), pos)
				for d := start; d < width; d++ {
					w := float32(d) / float32(width)
					ax.set(f, line(d), pos, outer+(anchor-outer)*w)
				}
			}
		}
	}
}
