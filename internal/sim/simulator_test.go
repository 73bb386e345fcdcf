package sim

import (
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/AndresSepulveda/gpu-ocean/internal/bathymetry"
	"github.com/AndresSepulveda/gpu-ocean/internal/boundary"
	"github.com/AndresSepulveda/gpu-ocean/internal/compute"
	"github.com/AndresSepulveda/gpu-ocean/internal/grid"
	"github.com/AndresSepulveda/gpu-ocean/internal/kernel"
)

var _ = Describe("Simulator", func() {
	var (
		backend *compute.CPUBackend
		rec     *recorder
	)

	BeforeEach(func() {
		backend = compute.NewCPUBackend()
		rec = &recorder{}
	})

	newSim := func(cfg Config, ic InitialConditions, k kernel.Invoker) *Simulator {
		s, err := New(cfg, ic, k, WithBackend(backend))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(s.CleanUp)
		return s
	}

	newRecorded := func(cfg Config) *Simulator {
		s := newSim(cfg, icFor(cfg, flat), rec)
		rec.bc = s.bc
		return s
	}

	Describe("construction", func() {
		DescribeTable("rejects structurally invalid configurations",
			func(mutate func(*Config)) {
				cfg := baseConfig(8, 8)
				mutate(&cfg)
				_, err := New(cfg, icFor(baseConfig(8, 8), flat), rec, WithBackend(backend))
				Expect(err).To(MatchError(ErrInvalidConfig))
				Expect(backend.InUse()).To(BeZero())
			},
			Entry("zero nx", func(c *Config) { c.Nx = 0 }),
			Entry("negative ny", func(c *Config) { c.Ny = -2 }),
			Entry("zero dx", func(c *Config) { c.Dx = 0 }),
			Entry("NaN dy", func(c *Config) { c.Dy = math.NaN() }),
			Entry("negative dt", func(c *Config) { c.Dt = -1 }),
			Entry("infinite dt", func(c *Config) { c.Dt = math.Inf(1) }),
			Entry("unpaired periodic edge", func(c *Config) { c.Boundary.North = boundary.Periodic }),
			Entry("sponge narrower than the halo", func(c *Config) {
				c.Boundary.North = boundary.NumericalSponge
				c.Boundary.SpongeCells = [4]int{2, 3, 3, 3}
			}),
		)

		It("requires a kernel", func() {
			cfg := baseConfig(8, 8)
			_, err := New(cfg, icFor(cfg, flat), nil, WithBackend(backend))
			Expect(err).To(MatchError(ErrInvalidConfig))
		})

		It("rejects fields that do not match the padded size", func() {
			cfg := baseConfig(8, 8)
			ic := icFor(cfg, flat)
			ic.HU = ic.HU[:len(ic.HU)-1]
			_, err := New(cfg, ic, rec, WithBackend(backend))
			Expect(err).To(MatchError(grid.ErrDimensionMismatch))
			Expect(backend.InUse()).To(BeZero())
		})

		It("rejects a corner field sized like a cell field", func() {
			cfg := baseConfig(8, 8)
			ic := icFor(cfg, flat)
			ic.Bi = ic.H
			_, err := New(cfg, ic, rec, WithBackend(backend))
			Expect(err).To(MatchError(grid.ErrDimensionMismatch))
			Expect(backend.InUse()).To(BeZero())
		})

		It("surfaces allocation failure as out of memory and frees what it took", func() {
			cfg := baseConfig(10, 10)
			cell := int64((10 + 2*ghost) * (10 + 2*ghost) * 4)
			for _, limit := range []int64{2 * cell, 6*cell + cell/2} {
				small := compute.NewCPUBackendWithLimit(limit)
				_, err := New(cfg, icFor(cfg, flat), rec, WithBackend(small))
				Expect(err).To(MatchError(compute.ErrOutOfMemory))
				Expect(small.InUse()).To(BeZero())
			}
		})

		It("reports the configured scheme inputs to the kernel", func() {
			cfg := baseConfig(8, 6)
			cfg.Boundary = boundary.Conditions{North: boundary.Periodic, South: boundary.Periodic, East: boundary.Wall, West: boundary.Wall}
			var got kernel.Params
			s := newSim(cfg, icFor(cfg, flat), kernel.Func(func(p kernel.Params, in, out grid.Triple, _ *bathymetry.Store) error {
				got = p
				return nil
			}))
			_, err := s.Step(1)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Nx).To(Equal(8))
			Expect(got.Ny).To(Equal(6))
			Expect(got.G).To(Equal(9.81))
			Expect(got.Theta).To(Equal(1.3))
			Expect(got.Boundary).To(Equal(boundary.PeriodicNorthSouth))
			Expect(got.Wind).NotTo(BeNil())
		})
	})

	Describe("Step", func() {
		It("keeps the clock monotonic and equal to the requested total", func() {
			s := newRecorded(baseConfig(8, 8))
			prev := s.Time()
			total := 0.0
			for _, dtEnd := range []float64{0.5, 2, 0, 3.25, 1} {
				t, err := s.Step(dtEnd)
				Expect(err).NotTo(HaveOccurred())
				Expect(t).To(BeNumerically(">=", prev))
				total += dtEnd
				Expect(t).To(BeNumerically("~", total, 1e-12))
				prev = t
			}
		})

		It("clips the final sub-step to the remaining interval", func() {
			s := newRecorded(baseConfig(8, 8))
			t, err := s.Step(2.5)
			Expect(err).NotTo(HaveOccurred())
			Expect(t).To(Equal(2.5))

			Expect(rec.calls).To(HaveLen(3))
			Expect(rec.calls[0].dt).To(Equal(1.0))
			Expect(rec.calls[1].dt).To(Equal(1.0))
			Expect(rec.calls[2].dt).To(Equal(0.5))
			Expect([]float64{rec.calls[0].t, rec.calls[1].t, rec.calls[2].t}).To(Equal([]float64{0, 1, 2}))
		})

		It("does not add a zero-length sub-step when tEnd is a multiple of dt", func() {
			s := newRecorded(baseConfig(8, 8))
			_, err := s.Step(2)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.calls).To(HaveLen(2))
		})

		It("handles intervals shorter than dt with a single clipped sub-step", func() {
			s := newRecorded(baseConfig(8, 8))
			_, err := s.Step(0.25)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.calls).To(HaveLen(1))
			Expect(rec.calls[0].dt).To(Equal(0.25))
		})

		DescribeTable("does not add a rounding-sized sub-step when dt is not exact in binary",
			func(dt, tEnd float64, substeps int, useRK2 bool) {
				cfg := baseConfig(8, 8)
				cfg.Dt = dt
				cfg.UseRK2 = useRK2
				s := newRecorded(cfg)

				t, err := s.Step(tEnd)
				Expect(err).NotTo(HaveOccurred())
				Expect(t).To(BeNumerically("~", tEnd, 1e-12))

				perSubstep := 1
				if useRK2 {
					perSubstep = 2
				}
				Expect(rec.calls).To(HaveLen(substeps * perSubstep))
				for _, c := range rec.calls {
					Expect(c.dt).To(BeNumerically("~", dt, 1e-12))
				}
			},
			Entry("dt 0.1 to 0.8, euler", 0.1, 0.8, 8, false),
			Entry("dt 0.1 to 0.8, rk2", 0.1, 0.8, 8, true),
			Entry("dt 0.1 to 1.0, euler", 0.1, 1.0, 10, false),
			Entry("dt 0.1 to 1.0, rk2", 0.1, 1.0, 10, true),
			Entry("dt 0.3 to 0.9, euler", 0.3, 0.9, 3, false),
			Entry("dt 0.3 to 0.9, rk2", 0.3, 0.9, 3, true),
		)

		It("clips a ragged remainder after inexact sub-steps", func() {
			cfg := baseConfig(8, 8)
			cfg.Dt = 0.1
			s := newRecorded(cfg)
			_, err := s.Step(0.25)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.calls).To(HaveLen(3))
			Expect(rec.calls[2].dt).To(BeNumerically("~", 0.05, 1e-12))
		})

		It("rejects an end time needing more sub-steps than an int32 holds", func() {
			s := newRecorded(baseConfig(8, 8))
			t, err := s.Step(1e10)
			Expect(err).To(MatchError(ErrInvalidTime))
			Expect(t).To(BeZero())
			Expect(rec.calls).To(BeEmpty())
		})

		DescribeTable("a zero or negative interval leaves the state alone but refreshes the halo",
			func(tEnd float64) {
				cfg := baseConfig(8, 8)
				cfg.Boundary = boundary.Conditions{North: boundary.Periodic, South: boundary.Periodic, East: boundary.Periodic, West: boundary.Periodic}
				s := newSim(cfg, icFor(cfg, bump(8, 8)), rec)
				rec.bc = s.bc
				before, _, _, err := s.Download()
				Expect(err).NotTo(HaveOccurred())

				t, err := s.Step(tEnd)
				Expect(err).NotTo(HaveOccurred())
				Expect(t).To(BeZero())
				Expect(rec.calls).To(BeEmpty())
				Expect(haloIsFixedPoint(s)).To(BeTrue())

				after, _, _, err := s.Download()
				Expect(err).NotTo(HaveOccurred())
				Expect(after).To(Equal(before))
			},
			Entry("zero", 0.0),
			Entry("negative", -3.0),
			Entry("negative fraction of dt", -0.5),
		)

		It("rejects a NaN or infinite end time", func() {
			s := newRecorded(baseConfig(8, 8))
			for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
				_, err := s.Step(bad)
				Expect(err).To(MatchError(ErrInvalidTime))
			}
			Expect(rec.calls).To(BeEmpty())
		})

		It("orders RK2 stages through scratch and back without swapping", func() {
			cfg := baseConfig(8, 8)
			cfg.UseRK2 = true
			s := newRecorded(cfg)
			cur, scr := s.state.Current().H, s.state.Scratch().H

			_, err := s.Step(2)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.calls).To(HaveLen(4))
			for k := 0; k < 4; k += 2 {
				stage0, stage1 := rec.calls[k], rec.calls[k+1]
				Expect(stage0.stage).To(Equal(0))
				Expect(stage0.in).To(BeIdenticalTo(cur))
				Expect(stage0.out).To(BeIdenticalTo(scr))
				Expect(stage1.stage).To(Equal(1))
				Expect(stage1.in).To(BeIdenticalTo(scr))
				Expect(stage1.out).To(BeIdenticalTo(cur))
				Expect(stage1.t).To(Equal(stage0.t))
			}
			Expect(s.state.Current().H).To(BeIdenticalTo(cur))
		})

		It("flips buffer parity on every Euler sub-step", func() {
			s := newRecorded(baseConfig(8, 8))
			a, b := s.state.Current().H, s.state.Scratch().H

			_, err := s.Step(1)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.state.Current().H).To(BeIdenticalTo(b))

			_, err = s.Step(2)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.state.Current().H).To(BeIdenticalTo(b))
			Expect(rec.calls[1].in).To(BeIdenticalTo(b))
			Expect(rec.calls[2].in).To(BeIdenticalTo(a))

			_, err = s.Step(0.5)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.state.Current().H).To(BeIdenticalTo(a))
		})

		DescribeTable("never hands the kernel a stale halo",
			func(useRK2 bool) {
				cfg := baseConfig(10, 9)
				cfg.UseRK2 = useRK2
				cfg.Boundary = boundary.Conditions{North: boundary.Wall, South: boundary.Wall, East: boundary.Periodic, West: boundary.Periodic}
				s := newRecorded(cfg)
				_, err := s.Step(3.5)
				Expect(err).NotTo(HaveOccurred())
				Expect(rec.calls).NotTo(BeEmpty())
				for k, c := range rec.calls {
					Expect(c.haloValid).To(BeTrue(), "kernel call %d", k)
				}
				Expect(haloIsFixedPoint(s)).To(BeTrue())
			},
			Entry("euler", false),
			Entry("rk2", true),
		)

		DescribeTable("integrates a constant tendency exactly",
			func(useRK2 bool) {
				cfg := baseConfig(6, 6)
				cfg.UseRK2 = useRK2
				s := newRecorded(cfg)
				_, err := s.Step(2.5)
				Expect(err).NotTo(HaveOccurred())
				h, hu, _, err := s.Download()
				Expect(err).NotTo(HaveOccurred())
				for j := range h {
					for i := range h[j] {
						Expect(h[j][i]).To(Equal(float32(12.5)))
						Expect(hu[j][i]).To(BeZero())
					}
				}
			},
			Entry("euler", false),
			Entry("rk2", true),
		)

		It("matches one direct kernel sub-step in Euler mode", func() {
			cfg := baseConfig(12, 10)
			ic := icFor(cfg, bump(12, 10))
			k := kernel.NewRusanov(backend)
			s := newSim(cfg, ic, k)
			_, err := s.Step(cfg.Dt)
			Expect(err).NotTo(HaveOccurred())
			got, _, _, err := s.Download()
			Expect(err).NotTo(HaveOccurred())

			ref, err := grid.NewState(backend, 12, 10, ghost, ghost, ic.H, ic.HU, ic.HV)
			Expect(err).NotTo(HaveOccurred())
			defer ref.Release()
			Expect(s.bc.ApplyTo(ref.Current())).To(Succeed())
			Expect(k.Advance(s.params.WithStage(0, 0, cfg.Dt), ref.Current(), ref.Scratch(), s.bathy)).To(Succeed())
			ref.Swap()
			Expect(s.bc.ApplyTo(ref.Current())).To(Succeed())
			want, _, _, err := ref.Download()
			Expect(err).NotTo(HaveOccurred())

			Expect(got).To(Equal(want))
		})

		It("wraps kernel failures with the sub-step that raised them", func() {
			cfg := baseConfig(8, 8)
			cfg.UseRK2 = true
			rec.failAt = 4
			s := newRecorded(cfg)

			_, err := s.Step(5)
			Expect(err).To(MatchError(errKernel))
			var stepErr *StepError
			Expect(errors.As(err, &stepErr)).To(BeTrue())
			Expect(stepErr.Substep).To(Equal(1))
			Expect(stepErr.Time).To(Equal(1.0))
			Expect(stepErr.Stage).To(Equal("kernel stage 1"))
			Expect(rec.calls).To(HaveLen(4))
		})
	})

	Describe("boundary handling", func() {
		periodic := boundary.Periodic
		wall := boundary.Wall
		sponge := boundary.NumericalSponge
		frs := boundary.FlowRelaxation

		DescribeTable("sponge expansion across every classification",
			func(cond boundary.Conditions, wantNx, wantNy int, wantClass boundary.Classification) {
				for _, useRK2 := range []bool{false, true} {
					cfg := baseConfig(20, 20)
					cfg.Boundary = cond
					cfg.Boundary.Reference = boundary.Reference{H: 10}
					cfg.UseRK2 = useRK2

					rec = &recorder{}
					s := newRecorded(cfg)
					nx, ny := s.Dims()
					Expect(nx).To(Equal(wantNx))
					Expect(ny).To(Equal(wantNy))
					Expect(s.Classification()).To(Equal(wantClass))

					t, err := s.Step(2.5)
					Expect(err).NotTo(HaveOccurred())
					Expect(t).To(Equal(2.5))
					calls := 3
					if useRK2 {
						calls = 6
					}
					Expect(rec.calls).To(HaveLen(calls))
					for k, c := range rec.calls {
						Expect(c.haloValid).To(BeTrue(), "kernel call %d", k)
					}
					Expect(haloIsFixedPoint(s)).To(BeTrue())

					h, _, _, err := s.Download()
					Expect(err).NotTo(HaveOccurred())
					Expect(h).To(HaveLen(wantNy))
					Expect(h[0]).To(HaveLen(wantNx))

					Expect(s.CleanUp()).To(Succeed())
				}
			},
			Entry("walls", boundary.Conditions{North: wall, East: wall, South: wall, West: wall}, 20, 20, boundary.Default),
			Entry("periodic both", boundary.Conditions{North: periodic, East: periodic, South: periodic, West: periodic}, 20, 20, boundary.PeriodicBoth),
			Entry("periodic north-south", boundary.Conditions{North: periodic, East: wall, South: periodic, West: wall}, 20, 20, boundary.PeriodicNorthSouth),
			Entry("periodic east-west", boundary.Conditions{North: wall, East: periodic, South: wall, West: periodic}, 20, 20, boundary.PeriodicEastWest),
			Entry("sponge everywhere", boundary.Conditions{North: sponge, East: sponge, South: sponge, West: sponge, SpongeCells: [4]int{10, 10, 10, 10}}, 34, 34, boundary.Default),
			Entry("sponge north-south, periodic east-west", boundary.Conditions{North: sponge, East: periodic, South: sponge, West: periodic, SpongeCells: [4]int{8, 3, 6, 3}}, 20, 28, boundary.PeriodicEastWest),
			Entry("flow relaxation east-west, periodic north-south", boundary.Conditions{North: periodic, East: frs, South: periodic, West: frs, SpongeCells: [4]int{3, 7, 3, 5}}, 26, 20, boundary.PeriodicNorthSouth),
			Entry("mixed sponge and walls", boundary.Conditions{North: sponge, East: wall, South: frs, West: wall, SpongeCells: [4]int{6, 3, 9, 3}}, 20, 29, boundary.Default),
		)

		DescribeTable("leaves an idempotent halo after stepping the reference kernel",
			func(cond boundary.Conditions, useRK2 bool) {
				cfg := baseConfig(16, 12)
				cfg.Boundary = cond
				cfg.Boundary.Reference = boundary.Reference{H: 10}
				cfg.UseRK2 = useRK2
				nx, ny := EffectiveDims(cfg.Nx, cfg.Ny, cfg.Boundary)
				s := newSim(cfg, icFor(cfg, bump(nx, ny)), kernel.NewRusanov(backend))

				_, err := s.Step(10)
				Expect(err).NotTo(HaveOccurred())
				Expect(haloIsFixedPoint(s)).To(BeTrue())
			},
			Entry("walls, euler", boundary.DefaultConditions(), false),
			Entry("periodic, rk2", boundary.Conditions{North: periodic, East: periodic, South: periodic, West: periodic}, true),
			Entry("sponge, rk2", boundary.Conditions{North: sponge, East: sponge, South: sponge, West: sponge, SpongeCells: [4]int{5, 5, 5, 5}}, true),
			Entry("flow relaxation, euler", boundary.Conditions{North: frs, East: wall, South: frs, West: wall, SpongeCells: [4]int{4, 3, 4, 3}}, false),
		)
	})

	Describe("download", func() {
		elevation := func(i, j int) float32 { return 0.125 * float32((i+2*j)%5) }
		bottom := func(i, j int) float32 { return -10 - 0.25*float32((3*i+j)%4) }

		newElevationSim := func(useRK2 bool) *Simulator {
			cfg := baseConfig(9, 7)
			cfg.UseRK2 = useRK2
			cfg.H0AsWaterElevation = true
			ic := icFor(cfg, elevation)
			ic.Bi = padded(10, 8, bottom)
			return newSim(cfg, ic, kernel.NewRusanov(backend))
		}

		It("round-trips elevation before any step", func() {
			s := newElevationSim(false)
			h, _, _, err := s.Download()
			Expect(err).NotTo(HaveOccurred())
			for j := range h {
				for i := range h[j] {
					Expect(h[j][i]).To(Equal(elevation(i+ghost, j+ghost)))
				}
			}
		})

		It("stores depth internally", func() {
			s := newElevationSim(false)
			_, bm, err := s.DownloadBathymetry()
			Expect(err).NotTo(HaveOccurred())
			depth := s.state.Current().H
			for j := range bm {
				for i := range bm[j] {
					Expect(depth.At(i+ghost, j+ghost)).To(Equal(elevation(i+ghost, j+ghost) - bm[j][i]))
				}
			}
		})

		DescribeTable("never writes the authoritative buffers",
			func(asElevation bool) {
				cfg := baseConfig(9, 7)
				cfg.H0AsWaterElevation = asElevation
				s := newSim(cfg, icFor(cfg, bump(9, 7)), kernel.NewRusanov(backend))
				_, err := s.Step(4)
				Expect(err).NotTo(HaveOccurred())

				snapshot := s.state.Current().Clone()
				first, firstHU, firstHV, err := s.Download()
				Expect(err).NotTo(HaveOccurred())
				second, secondHU, secondHV, err := s.Download()
				Expect(err).NotTo(HaveOccurred())

				Expect(triplesEqual(snapshot, s.state.Current())).To(BeTrue())
				Expect(second).To(Equal(first))
				Expect(secondHU).To(Equal(firstHU))
				Expect(secondHV).To(Equal(firstHV))

				first[0][0] = -999
				third, _, _, err := s.Download()
				Expect(err).NotTo(HaveOccurred())
				Expect(third[0][0]).NotTo(Equal(float32(-999)))
			},
			Entry("depth", false),
			Entry("elevation", true),
		)

		It("does not let download perturb later steps", func() {
			run := func(download bool) [][]float32 {
				s := newElevationSim(true)
				for n := 0; n < 3; n++ {
					_, err := s.Step(1.5)
					Expect(err).NotTo(HaveOccurred())
					if download {
						_, _, _, err = s.Download()
						Expect(err).NotTo(HaveOccurred())
					}
				}
				h, _, _, err := s.Download()
				Expect(err).NotTo(HaveOccurred())
				return h
			}
			Expect(run(true)).To(Equal(run(false)))
		})

		It("returns the interior bathymetry", func() {
			s := newElevationSim(false)
			bi, bm, err := s.DownloadBathymetry()
			Expect(err).NotTo(HaveOccurred())
			Expect(bi).To(HaveLen(8))
			Expect(bi[0]).To(HaveLen(10))
			Expect(bm).To(HaveLen(7))
			Expect(bm[0]).To(HaveLen(9))
			Expect(bi[2][3]).To(Equal(bottom(3+ghost, 2+ghost)))
		})
	})

	Describe("CleanUp", func() {
		It("is idempotent and returns memory to the backend", func() {
			cfg := baseConfig(8, 8)
			s, err := New(cfg, icFor(cfg, flat), rec, WithBackend(backend))
			Expect(err).NotTo(HaveOccurred())
			Expect(backend.InUse()).To(BeNumerically(">", 0))

			Expect(s.CleanUp()).To(Succeed())
			Expect(s.CleanUp()).To(Succeed())
			Expect(backend.InUse()).To(BeZero())
		})

		It("turns later operations into released errors", func() {
			cfg := baseConfig(8, 8)
			cfg.H0AsWaterElevation = true
			s, err := New(cfg, icFor(cfg, flat), rec, WithBackend(backend))
			Expect(err).NotTo(HaveOccurred())
			Expect(s.CleanUp()).To(Succeed())

			_, err = s.Step(1)
			Expect(err).To(MatchError(grid.ErrReleased))
			_, _, _, err = s.Download()
			Expect(err).To(MatchError(grid.ErrReleased))
			_, _, err = s.DownloadBathymetry()
			Expect(err).To(MatchError(grid.ErrReleased))
			Expect(s.asElevation).To(BeFalse())
			Expect(rec.calls).To(BeEmpty())
		})
	})
})
