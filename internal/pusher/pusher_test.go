package pusher_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/emsim/internal/ensemble"
	"github.com/san-kum/emsim/internal/pusher"
	"github.com/san-kum/emsim/internal/vec"
	"github.com/san-kum/emsim/internal/verify"
)

const equivalenceTol = 1e-10

// opaque hides every optional capability so the accessor kernel runs.
type opaque struct {
	ensemble.Ensemble
}

func build(layout ensemble.Layout, ps []ensemble.Particle, block int) ensemble.Ensemble {
	ens, err := ensemble.New(layout, ps, ensemble.WithBlockLen(block))
	Expect(err).NotTo(HaveOccurred())
	return ens
}

func run(ens ensemble.Ensemble, cfg pusher.Config, dt float64, steps int) *pusher.Pusher {
	p, err := pusher.New(cfg, ens)
	Expect(err).NotTo(HaveOccurred())
	for i := 0; i < steps; i++ {
		Expect(p.Step(dt)).To(Succeed())
	}
	return p
}

// mixed spreads particles over velocity space so every component of every
// stage is non-trivial.
func mixed(n int, speed float64) []ensemble.Particle {
	ps := make([]ensemble.Particle, n)
	for i := range ps {
		a := float64(i) * 0.37
		ps[i] = ensemble.Particle{
			Position: vec.New(math.Cos(a), math.Sin(2*a), 0.1*float64(i)),
			Velocity: vec.New(speed*math.Cos(a), speed*math.Sin(a), speed*0.3*math.Cos(3*a)),
		}
	}
	return ps
}

func skewedConfig() pusher.Config {
	return pusher.Config{
		Fields: pusher.Fields{
			E: vec.New(0.01, -0.005, 0.002),
			B: vec.New(0.2, -0.4, 1.0),
		},
		Constants: pusher.ElectronConstants(),
	}
}

var _ = Describe("Pusher", func() {
	Describe("construction", func() {
		var ens ensemble.Ensemble

		BeforeEach(func() {
			ens = ensemble.NewSoA(mixed(4, 1e8))
		})

		DescribeTable("rejects invalid configuration",
			func(mutate func(*pusher.Config)) {
				cfg := skewedConfig()
				mutate(&cfg)
				_, err := pusher.New(cfg, ens)
				Expect(err).To(MatchError(pusher.ErrConfiguration))
			},
			Entry("zero mass", func(c *pusher.Config) { c.Constants.Mass = 0 }),
			Entry("negative mass", func(c *pusher.Config) { c.Constants.Mass = -1 }),
			Entry("zero light speed", func(c *pusher.Config) { c.Constants.LightSpeed = 0 }),
			Entry("negative light speed", func(c *pusher.Config) { c.Constants.LightSpeed = -3e10 }),
			Entry("NaN charge", func(c *pusher.Config) { c.Constants.Charge = math.NaN() }),
			Entry("infinite mass", func(c *pusher.Config) { c.Constants.Mass = math.Inf(1) }),
			Entry("NaN field", func(c *pusher.Config) { c.Fields.B.Y = math.NaN() }),
			Entry("negative workers", func(c *pusher.Config) { c.Workers = -2 }),
		)

		It("rejects a nil ensemble", func() {
			_, err := pusher.New(skewedConfig(), nil)
			Expect(err).To(MatchError(pusher.ErrConfiguration))
		})

		It("accepts a neutral particle", func() {
			cfg := skewedConfig()
			cfg.Constants.Charge = 0
			_, err := pusher.New(cfg, ens)
			Expect(err).NotTo(HaveOccurred())
		})

		DescribeTable("selects the kernel from the ensemble's capabilities",
			func(ens func() ensemble.Ensemble, want string) {
				p, err := pusher.New(skewedConfig(), ens())
				Expect(err).NotTo(HaveOccurred())
				Expect(p.Kernel()).To(Equal(want))
			},
			Entry("aos", func() ensemble.Ensemble { return ensemble.NewAoS(mixed(3, 1)) }, "records"),
			Entry("soa", func() ensemble.Ensemble { return ensemble.NewSoA(mixed(3, 1)) }, "spans"),
			Entry("chunked", func() ensemble.Ensemble { return build(ensemble.LayoutChunked, mixed(3, 1), 2) }, "blocks"),
			Entry("opaque", func() ensemble.Ensemble { return opaque{ensemble.NewSoA(mixed(3, 1))} }, "accessors"),
		)

		It("keeps its configuration", func() {
			cfg := skewedConfig()
			p, err := pusher.New(cfg, ens)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Fields()).To(Equal(cfg.Fields))
			Expect(p.Constants()).To(Equal(cfg.Constants))
			Expect(p.Ensemble()).To(BeIdenticalTo(ens))
		})
	})

	Describe("cyclotron oracle", func() {
		const (
			steps = 256
			dt    = 1e-10
		)

		DescribeTable("matches the closed-form trajectory",
			func(layout ensemble.Layout, block, workers int) {
				c := verify.DefaultCyclotron()
				ens := build(layout, c.Particles(100), block)
				cfg := pusher.Config{Fields: c.Fields(), Constants: c.Constants, Workers: workers}

				run(ens, cfg, dt, steps)

				Expect(c.Check(ens, steps*dt, 0)).To(Succeed())
				dev, _ := c.Deviation(ens, steps*dt)
				Expect(dev).To(BeNumerically("<", c.Tolerance()))
			},
			Entry("aos", ensemble.LayoutAoS, 0, 1),
			Entry("soa", ensemble.LayoutSoA, 0, 1),
			Entry("chunked 16", ensemble.LayoutChunked, 16, 1),
			Entry("chunked 32", ensemble.LayoutChunked, 32, 1),
			Entry("chunked 64", ensemble.LayoutChunked, 64, 1),
			Entry("chunked 32, 4 workers", ensemble.LayoutChunked, 32, 4),
			Entry("soa, 3 workers", ensemble.LayoutSoA, 0, 3),
		)

		It("stays well inside the tolerance", func() {
			c := verify.DefaultCyclotron()
			ens := ensemble.NewSoA(c.Particles(1))
			run(ens, pusher.Config{Fields: c.Fields(), Constants: c.Constants}, dt, steps)

			// the ladder is first order in position, still orders of magnitude below 1e-4 c
			dev, _ := c.Deviation(ens, steps*dt)
			Expect(dev).To(BeNumerically("<", 1e-2*c.Tolerance()))
		})
	})

	Describe("layout equivalence", func() {
		It("agrees across every layout after many steps", func() {
			ps := mixed(257, 3e8)
			cfg := skewedConfig()

			ref := run(build(ensemble.LayoutSoA, ps, 0), cfg, 1e-11, 500).Ensemble()

			others := map[string]ensemble.Ensemble{
				"aos":        build(ensemble.LayoutAoS, ps, 0),
				"chunked16":  build(ensemble.LayoutChunked, ps, 16),
				"chunked32":  build(ensemble.LayoutChunked, ps, 32),
				"chunked64":  build(ensemble.LayoutChunked, ps, 64),
				"chunked1":   build(ensemble.LayoutChunked, ps, 1),
				"chunked300": build(ensemble.LayoutChunked, ps, 300),
				"opaque":     opaque{build(ensemble.LayoutSoA, ps, 0)},
			}
			for name, ens := range others {
				run(ens, cfg, 1e-11, 500)
				Expect(verify.Equivalent(ref, ens, equivalenceTol)).To(Succeed(), name)
			}
		})

		It("handles a remainder block", func() {
			ps := mixed(100, 2e8)
			cfg := skewedConfig()

			soa := run(build(ensemble.LayoutSoA, ps, 0), cfg, 1e-11, 64).Ensemble()
			chunked := run(build(ensemble.LayoutChunked, ps, 32), cfg, 1e-11, 64).Ensemble()

			Expect(chunked.(*ensemble.Chunked).Blocks()).To(Equal(4))
			Expect(verify.Equivalent(soa, chunked, equivalenceTol)).To(Succeed())

			// the four trailing particles moved
			for i := 96; i < 100; i++ {
				got, err := chunked.Particle(i)
				Expect(err).NotTo(HaveOccurred())
				Expect(got).NotTo(Equal(ps[i]))
			}
		})

		It("agrees under a varying dt sequence", func() {
			ps := mixed(50, 1e8)
			cfg := skewedConfig()
			dts := []float64{1e-11, 3e-11, 5e-12, 2e-11, 1e-10}

			var ens []ensemble.Ensemble
			for _, l := range ensemble.Layouts() {
				e := build(l, ps, 8)
				p, err := pusher.New(cfg, e)
				Expect(err).NotTo(HaveOccurred())
				for _, dt := range dts {
					Expect(p.Step(dt)).To(Succeed())
				}
				ens = append(ens, e)
			}
			Expect(verify.Equivalent(ens[0], ens[1], equivalenceTol)).To(Succeed())
			Expect(verify.Equivalent(ens[1], ens[2], equivalenceTol)).To(Succeed())
		})
	})

	Describe("determinism", func() {
		DescribeTable("repeated runs are bit-identical",
			func(layout ensemble.Layout, workers int) {
				ps := mixed(130, 1e8)
				cfg := skewedConfig()
				cfg.Workers = workers

				a := run(build(layout, ps, 16), cfg, 2e-11, 100).Ensemble()
				b := run(build(layout, ps, 16), cfg, 2e-11, 100).Ensemble()

				Expect(ensemble.Snapshot(a)).To(Equal(ensemble.Snapshot(b)))
			},
			Entry("aos", ensemble.LayoutAoS, 1),
			Entry("soa", ensemble.LayoutSoA, 1),
			Entry("chunked", ensemble.LayoutChunked, 1),
			Entry("chunked, 4 workers", ensemble.LayoutChunked, 4),
		)

		DescribeTable("worker count does not change the result",
			func(layout ensemble.Layout) {
				ps := mixed(201, 1e8)
				serial := skewedConfig()
				parallel := skewedConfig()
				parallel.Workers = 5

				a := run(build(layout, ps, 16), serial, 2e-11, 50).Ensemble()
				b := run(build(layout, ps, 16), parallel, 2e-11, 50).Ensemble()

				d, err := verify.Compare(a, b)
				Expect(err).NotTo(HaveOccurred())
				Expect(d.Identical).To(BeTrue())
			},
			Entry("aos", ensemble.LayoutAoS),
			Entry("soa", ensemble.LayoutSoA),
			Entry("chunked", ensemble.LayoutChunked),
		)
	})

	Describe("degenerate field", func() {
		It("leaves velocity untouched and follows the velocity ladder", func() {
			ps := mixed(20, 5)
			cfg := pusher.Config{Constants: pusher.ElectronConstants()}
			const dt = 0.5

			for _, l := range ensemble.Layouts() {
				ens := run(build(l, ps, 7), cfg, dt, 1).Ensemble()

				for i, p0 := range ps {
					got, err := ens.Particle(i)
					Expect(err).NotTo(HaveOccurred())
					Expect(got.Velocity).To(Equal(p0.Velocity), l.String())

					// j-ladder with zero acceleration: dt*v*(1 + dt/2 + dt^2/6 + dt^3/24)
					f := dt * (1 + dt/2 + dt*dt/6 + dt*dt*dt/24)
					want := p0.Position.Add(p0.Velocity.Scale(f))
					Expect(vec.Dist(got.Position, want)).To(BeNumerically("<=", 1e-12*(1+want.Norm())), l.String())
				}
			}
		})

		It("reduces to r + dt*v as dt goes to zero", func() {
			ps := mixed(5, 3)
			cfg := pusher.Config{Constants: pusher.ElectronConstants()}
			const dt = 1e-9

			ens := run(build(ensemble.LayoutSoA, ps, 0), cfg, dt, 1).Ensemble()
			for i, p0 := range ps {
				got, _ := ens.Position(i)
				want := p0.Position.Add(p0.Velocity.Scale(dt))
				Expect(vec.Dist(got, want)).To(BeNumerically("<=", 1e-14))
			}
		})
	})

	Describe("time step validation", func() {
		DescribeTable("rejects non-positive or non-finite dt without touching state",
			func(dt float64) {
				for _, l := range ensemble.Layouts() {
					ps := mixed(10, 1e8)
					ens := build(l, ps, 4)
					p, err := pusher.New(skewedConfig(), ens)
					Expect(err).NotTo(HaveOccurred())

					Expect(p.Step(dt)).To(MatchError(pusher.ErrInvalidTimeStep))
					Expect(ensemble.Snapshot(ens)).To(Equal(ps))
				}
			},
			Entry("zero", 0.0),
			Entry("negative", -1e-10),
			Entry("NaN", math.NaN()),
			Entry("+Inf", math.Inf(1)),
		)

		It("is a no-op on an empty ensemble", func() {
			p, err := pusher.New(skewedConfig(), ensemble.NewSoA(nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Partitions()).To(Equal(0))
			Expect(p.Step(1e-10)).To(Succeed())
		})
	})
})
