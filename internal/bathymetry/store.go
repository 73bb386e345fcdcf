// Package bathymetry holds the bottom topography of a simulation.
//
// B is the bottom elevation relative to the reference level, negative below
// it. Water depth h and surface elevation w are related by w = h + B, using
// the cell-centre value Bm.
package bathymetry

import (
	"fmt"

	"github.com/AndresSepulveda/gpu-ocean/internal/compute"
	"github.com/AndresSepulveda/gpu-ocean/internal/grid"
)

// Store keeps Bi on cell corners and the derived cell-centre field Bm. Both
// are fixed after construction. Topography values are not validated.
type Store struct {
	Bi *grid.Field
	Bm *grid.Field

	backend  compute.Backend
	released bool
}

// New uploads the corner field bi, which must cover
// (nx+1+2gx)*(ny+1+2gy) corners, and derives Bm for every cell.
func New(backend compute.Backend, nx, ny, gx, gy int, bi []float32) (*Store, error) {
	if nx < 1 || ny < 1 {
		return nil, fmt.Errorf("%w: nx=%d ny=%d", grid.ErrInvalidDimensions, nx, ny)
	}
	biField := &grid.Field{Nx: nx + 1, Ny: ny + 1, Gx: gx, Gy: gy}
	if len(bi) != biField.Len() {
		return nil, fmt.Errorf("%w: Bi has %d values, want %d", grid.ErrDimensionMismatch, len(bi), biField.Len())
	}
	bmField := &grid.Field{Nx: nx, Ny: ny, Gx: gx, Gy: gy}

	biData, err := backend.Alloc(biField.Len())
	if err != nil {
		return nil, fmt.Errorf("bathymetry: allocating Bi: %w", err)
	}
	bmData, err := backend.Alloc(bmField.Len())
	if err != nil {
		backend.Free(biData)
		return nil, fmt.Errorf("bathymetry: allocating Bm: %w", err)
	}
	copy(biData, bi)
	biField.Data = biData
	bmField.Data = bmData

	s := &Store{Bi: biField, Bm: bmField, backend: backend}
	s.initBm()
	return s, nil
}

func (s *Store) initBm() {
	bi, bm := s.Bi, s.Bm
	for j := 0; j < bm.Rows(); j++ {
		for i := 0; i < bm.Pitch(); i++ {
			sum := bi.At(i, j) + bi.At(i+1, j) + bi.At(i, j+1) + bi.At(i+1, j+1)
			bm.Set(i, j, 0.25*sum)
		}
	}
}

// WaterElevationToDepth converts h in place from surface elevation to depth.
func (s *Store) WaterElevationToDepth(h *grid.Field) error {
	if err := s.check(h); err != nil {
		return err
	}
	for idx, b := range s.Bm.Data {
		h.Data[idx] -= b
	}
	return nil
}

// WaterDepthToElevation writes the elevation of depth field src into dst.
// src is only read.
func (s *Store) WaterDepthToElevation(dst, src *grid.Field) error {
	if err := s.check(dst); err != nil {
		return err
	}
	if err := s.check(src); err != nil {
		return err
	}
	for idx, b := range s.Bm.Data {
		dst.Data[idx] = src.Data[idx] + b
	}
	return nil
}

func (s *Store) check(f *grid.Field) error {
	if s.released {
		return grid.ErrReleased
	}
	if f == nil || len(f.Data) != len(s.Bm.Data) {
		return fmt.Errorf("%w: field does not match bathymetry grid", grid.ErrDimensionMismatch)
	}
	return nil
}

// Download returns the interior corners ((ny+1) x (nx+1)) and cell centres (ny x nx).
func (s *Store) Download() (bi, bm [][]float32, err error) {
	if s.released {
		return nil, nil, grid.ErrReleased
	}
	return s.Bi.Interior(), s.Bm.Interior(), nil
}

// Release frees both fields. Later calls are no-ops.
func (s *Store) Release() {
	if s.released {
		return
	}
	s.backend.Free(s.Bi.Data)
	s.backend.Free(s.Bm.Data)
	s.Bi.Data, s.Bm.Data = nil, nil
	s.released = true
}
