package kernel

import (
	"fmt"
	"math"

	"github.com/AndresSepulveda/gpu-ocean/internal/bathymetry"
	"github.com/AndresSepulveda/gpu-ocean/internal/compute"
	"github.com/AndresSepulveda/gpu-ocean/internal/grid"
)

// dryDepth is the depth below which a cell carries no velocity.
const dryDepth = 1e-5

// Rusanov is a first-order reference scheme: local Lax-Friedrichs fluxes,
// with the depth dissipation taken on the surface elevation and a centred
// bed-slope source so a lake at rest stays at rest. Coriolis, linear bottom
// friction and wind stress are explicit sources. Theta is accepted but
// unused since there is no reconstruction step.
type Rusanov struct {
	backend compute.Backend
}

func NewRusanov(backend compute.Backend) *Rusanov {
	return &Rusanov{backend: backend}
}

func (r *Rusanov) Advance(p Params, in, out grid.Triple, bathy *bathymetry.Store) error {
	if err := CheckArgs(p, in, out); err != nil {
		return err
	}
	if bathy == nil || bathy.Bm == nil || bathy.Bm.Data == nil {
		return fmt.Errorf("kernel: bathymetry not available: %w", grid.ErrReleased)
	}
	if p.Dx <= 0 || p.Dy <= 0 {
		return fmt.Errorf("kernel: grid spacing must be positive, got dx=%g dy=%g", p.Dx, p.Dy)
	}

	c := cellConsts{
		g:     float32(p.G),
		f:     float32(p.F),
		r:     float32(p.R),
		dt:    float32(p.Dt),
		invDx: float32(1 / p.Dx),
		invDy: float32(1 / p.Dy),
	}

	r.backend.ParallelRows(p.Ny, func(start, end int) {
		for jj := start; jj < end; jj++ {
			j := jj + p.Gy
			y := (float64(jj) + 0.5) * p.Dy
			for i := p.Gx; i < p.Gx+p.Nx; i++ {
				x := (float64(i-p.Gx) + 0.5) * p.Dx
				tx, ty := 0.0, 0.0
				if p.Wind != nil {
					tx, ty = p.Wind.Tau(x, y, p.T)
				}
				r0, r1, r2 := c.residual(in, bathy.Bm, i, j, float32(tx), float32(ty))

				idx := in.H.Index(i, j)
				out.H.Data[idx] = Blend(p.Stage, out.H.Data[idx], in.H.Data[idx], r0, c.dt)
				out.HU.Data[idx] = Blend(p.Stage, out.HU.Data[idx], in.HU.Data[idx], r1, c.dt)
				out.HV.Data[idx] = Blend(p.Stage, out.HV.Data[idx], in.HV.Data[idx], r2, c.dt)
			}
		}
	})
	return nil
}

type cellConsts struct {
	g, f, r      float32
	dt           float32
	invDx, invDy float32
}

type cell struct {
	h, hu, hv, b float32
}

func load(q grid.Triple, bm *grid.Field, i, j int) cell {
	idx := q.H.Index(i, j)
	return cell{q.H.Data[idx], q.HU.Data[idx], q.HV.Data[idx], bm.Data[idx]}
}

func (c cellConsts) residual(q grid.Triple, bm *grid.Field, i, j int, tx, ty float32) (float32, float32, float32) {
	cc := load(q, bm, i, j)
	w := load(q, bm, i-1, j)
	e := load(q, bm, i+1, j)
	s := load(q, bm, i, j-1)
	n := load(q, bm, i, j+1)

	fw0, fw1, fw2 := c.faceX(w, cc)
	fe0, fe1, fe2 := c.faceX(cc, e)
	gs0, gs1, gs2 := c.faceY(s, cc)
	gn0, gn1, gn2 := c.faceY(cc, n)

	r0 := -(fe0-fw0)*c.invDx - (gn0-gs0)*c.invDy
	r1 := -(fe1-fw1)*c.invDx - (gn1-gs1)*c.invDy
	r2 := -(fe2-fw2)*c.invDx - (gn2-gs2)*c.invDy

	// bed slope, evaluated with the same neighbours as the pressure flux
	r1 -= c.g * 0.5 * (e.h + w.h) * (e.b - w.b) * 0.5 * c.invDx
	r2 -= c.g * 0.5 * (n.h + s.h) * (n.b - s.b) * 0.5 * c.invDy

	r1 += c.f * cc.hv
	r2 -= c.f * cc.hu

	if cc.h > dryDepth {
		r1 += tx - c.r*cc.hu/cc.h
		r2 += ty - c.r*cc.hv/cc.h
	}
	return r0, r1, r2
}

func (c cellConsts) physX(q cell) (f0, f1, f2, speed float32) {
	if q.h <= dryDepth {
		p := float32(0)
		if q.h > 0 {
			p = 0.5 * c.g * q.h * q.h
		}
		return 0, p, 0, c.celerity(q.h)
	}
	u, v := q.hu/q.h, q.hv/q.h
	return q.hu, q.hu*u + 0.5*c.g*q.h*q.h, q.hu * v, abs32(u) + c.celerity(q.h)
}

func (c cellConsts) physY(q cell) (f0, f1, f2, speed float32) {
	if q.h <= dryDepth {
		p := float32(0)
		if q.h > 0 {
			p = 0.5 * c.g * q.h * q.h
		}
		return 0, 0, p, c.celerity(q.h)
	}
	u, v := q.hu/q.h, q.hv/q.h
	return q.hv, q.hv * u, q.hv*v + 0.5*c.g*q.h*q.h, abs32(v) + c.celerity(q.h)
}

func (c cellConsts) faceX(l, r cell) (float32, float32, float32) {
	l0, l1, l2, sl := c.physX(l)
	r0, r1, r2, sr := c.physX(r)
	a := max32(sl, sr)
	return 0.5*(l0+r0) - 0.5*a*((r.h+r.b)-(l.h+l.b)),
		0.5*(l1+r1) - 0.5*a*(r.hu-l.hu),
		0.5*(l2+r2) - 0.5*a*(r.hv-l.hv)
}

func (c cellConsts) faceY(l, r cell) (float32, float32, float32) {
	l0, l1, l2, sl := c.physY(l)
	r0, r1, r2, sr := c.physY(r)
	a := max32(sl, sr)
	return 0.5*(l0+r0) - 0.5*a*((r.h+r.b)-(l.h+l.b)),
		0.5*(l1+r1) - 0.5*a*(r.hu-l.hu),
		0.5*(l2+r2) - 0.5*a*(r.hv-l.hv)
}

func (c cellConsts) celerity(h float32) float32 {
	if h <= 0 {
		return 0
	}
	return float32(math.Sqrt(float64(c.g * h)))
}

func abs32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
