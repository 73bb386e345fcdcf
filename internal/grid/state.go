package grid

import (
	"errors"
	"fmt"

	"github.com/AndresSepulveda/gpu-ocean/internal/compute"
)

// GhostCells is the halo width on every edge.
const GhostCells = 3

var (
	ErrInvalidDimensions = errors.New("grid: invalid dimensions")
	ErrDimensionMismatch = errors.New("grid: buffer size does not match dimensions")
	ErrReleased          = errors.New("grid: state already released")
)

// State is the double-buffered conserved-variable storage. Which buffer set
// is authoritative is tracked by index; callers never hold on to a set
// across a Swap.
type State struct {
	nx, ny  int
	gx, gy  int
	buffers [2]Triple
	current int

	backend  compute.Backend
	released bool
}

// NewState allocates both buffer sets on backend and uploads h0, hu0, hv0
// into each. The inputs are padded row-major arrays of
// (nx+2gx)*(ny+2gy) values.
func NewState(backend compute.Backend, nx, ny, gx, gy int, h0, hu0, hv0 []float32) (*State, error) {
	if nx < 1 || ny < 1 || gx < 0 || gy < 0 {
		return nil, fmt.Errorf("%w: nx=%d ny=%d ghost=(%d,%d)", ErrInvalidDimensions, nx, ny, gx, gy)
	}
	want := (nx + 2*gx) * (ny + 2*gy)
	for _, in := range []struct {
		name string
		data []float32
	}{{"h0", h0}, {"hu0", hu0}, {"hv0", hv0}} {
		if len(in.data) != want {
			return nil, fmt.Errorf("%w: %s has %d values, want %d", ErrDimensionMismatch, in.name, len(in.data), want)
		}
	}

	s := &State{nx: nx, ny: ny, gx: gx, gy: gy, backend: backend}
	for b := range s.buffers {
		for k, src := range [][]float32{h0, hu0, hv0} {
			data, err := backend.Alloc(want)
			if err != nil {
				s.free()
				return nil, fmt.Errorf("grid: allocating buffer set %d: %w", b, err)
			}
			copy(data, src)
			f := &Field{Nx: nx, Ny: ny, Gx: gx, Gy: gy, Data: data}
			switch k {
			case 0:
				s.buffers[b].H = f
			case 1:
				s.buffers[b].HU = f
			case 2:
				s.buffers[b].HV = f
			}
		}
	}
	return s, nil
}

func (s *State) Dims() (nx, ny int) { return s.nx, s.ny }
func (s *State) Current() Triple    { return s.buffers[s.current] }
func (s *State) Scratch() Triple    { return s.buffers[1-s.current] }

// Swap exchanges the authoritative and scratch roles. No data moves.
func (s *State) Swap() { s.current = 1 - s.current }

// Download copies the interior of the authoritative buffers to the host.
func (s *State) Download() (h, hu, hv [][]float32, err error) {
	return s.DownloadTriple(s.Current())
}

// DownloadTriple crops an arbitrary triple, for callers that assemble the
// output from more than one buffer set.
func (s *State) DownloadTriple(t Triple) (h, hu, hv [][]float32, err error) {
	if s.released {
		return nil, nil, nil, ErrReleased
	}
	return t.H.Interior(), t.HU.Interior(), t.HV.Interior(), nil
}

// Release returns both buffer sets to the backend. Later calls are no-ops.
func (s *State) Release() {
	if s.released {
		return
	}
	s.free()
	s.released = true
}

func (s *State) free() {
	for b := range s.buffers {
		for _, f := range []**Field{&s.buffers[b].H, &s.buffers[b].HU, &s.buffers[b].HV} {
			if *f != nil {
				s.backend.Free((*f).Data)
				(*f).Data = nil
				*f = nil
			}
		}
	}
}
