// Package experiment assembles an ensemble, a pusher and a runner from a
// config.Config.
package experiment

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/san-kum/emsim/internal/config"
	"github.com/san-kum/emsim/internal/ensemble"
	"github.com/san-kum/emsim/internal/metrics"
	"github.com/san-kum/emsim/internal/pusher"
	"github.com/san-kum/emsim/internal/sim"
	"github.com/san-kum/emsim/internal/vec"
	"github.com/san-kum/emsim/internal/verify"
)

type Experiment struct {
	cfg       *config.Config
	ens       ensemble.Ensemble
	pusher    *pusher.Pusher
	runner    *sim.Runner
	deviation *metrics.Deviation

	logger       *log.Logger
	registry     *Registry
	observeEvery int
}

type Option func(*Experiment)

func WithLogger(l *log.Logger) Option {
	return func(e *Experiment) { e.logger = l }
}

func WithRegistry(r *Registry) Option {
	return func(e *Experiment) { e.registry = r }
}

// WithObserveEvery thins metric observations to every n steps.
func WithObserveEvery(n int) Option {
	return func(e *Experiment) { e.observeEvery = n }
}

// New validates cfg and builds every component. cfg is copied.
func New(cfg *config.Config, opts ...Option) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Experiment{cfg: cfg.Clone()}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = NewRegistry()
	}

	layout, _ := e.cfg.Layout()
	ens, err := e.registry.GetLayout(layout.String(), e.cfg.Particles(), e.cfg.Ensemble.BlockLen)
	if err != nil {
		return nil, err
	}
	e.ens = ens

	p, err := pusher.New(e.cfg.PusherConfig(), ens)
	if err != nil {
		return nil, err
	}
	e.pusher = p

	e.runner = sim.New(p, sim.WithLogger(e.logger), sim.WithMetrics(e.registry.DefaultMetrics(e.cfg)...))
	if oracle, ok := Oracle(e.cfg); ok {
		e.deviation = metrics.NewDeviation(oracle)
		e.runner.AddMetric(e.deviation)
	}

	return e, nil
}

func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	return e.runner.Run(ctx, e.SimConfig())
}

func (e *Experiment) SimConfig() sim.Config {
	return sim.Config{
		Dt:            e.cfg.Run.Dt,
		Steps:         e.cfg.Run.Steps,
		ObserveEvery:  e.observeEvery,
		ValidateState: true,
	}
}

func (e *Experiment) Config() *config.Config      { return e.cfg }
func (e *Experiment) Ensemble() ensemble.Ensemble { return e.ens }
func (e *Experiment) Pusher() *pusher.Pusher      { return e.pusher }
func (e *Experiment) Runner() *sim.Runner         { return e.runner }

// Deviation is the oracle metric, or nil when the setup has no closed form.
func (e *Experiment) Deviation() *metrics.Deviation { return e.deviation }

// Describe is a one-line summary for logs.
func (e *Experiment) Describe() string {
	s := fmt.Sprintf("%s n=%d kernel=%s partitions=%d", e.ens.Layout(), e.ens.Len(), e.pusher.Kernel(), e.pusher.Partitions())
	if b, ok := e.ens.(ensemble.Blocked); ok {
		s += fmt.Sprintf(" block=%d", b.BlockLen())
	}
	return s
}

// Oracle returns the closed-form cyclotron solution matching cfg, if any:
// E along y, B along z, every particle starting from the same state with
// velocity along x.
func Oracle(cfg *config.Config) (verify.Cyclotron, bool) {
	f, en := cfg.Field, cfg.Ensemble
	switch {
	case f.Ex != 0 || f.Ez != 0 || f.Bx != 0 || f.By != 0 || f.Bz == 0:
		return verify.Cyclotron{}, false
	case en.Spread != 0 || len(en.Initial) > 0:
		return verify.Cyclotron{}, false
	case en.VY != 0 || en.VZ != 0:
		return verify.Cyclotron{}, false
	case cfg.Constants.Charge == 0:
		return verify.Cyclotron{}, false
	}

	return verify.Cyclotron{
		Constants: cfg.ParticleConstants(),
		E0:        f.Ey,
		B0:        f.Bz,
		V0:        en.VX,
		Origin:    vec.New(en.X, en.Y, en.Z),
	}, true
}
