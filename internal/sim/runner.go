package sim

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/charmbracelet/log"

	"github.com/san-kum/emsim/internal/ensemble"
)

type Runner struct {
	stepper   Stepper
	metrics   []Metric
	observers []Observer
	logger    *log.Logger
}

type Option func(*Runner)

// WithLogger sets the logger for run progress. The default discards.
func WithLogger(l *log.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithMetrics(ms ...Metric) Option {
	return func(r *Runner) { r.metrics = append(r.metrics, ms...) }
}

func New(s Stepper, opts ...Option) *Runner {
	r := &Runner{
		stepper:   s,
		metrics:   make([]Metric, 0),
		observers: make([]Observer, 0),
		logger:    log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) AddMetric(m Metric)     { r.metrics = append(r.metrics, m) }
func (r *Runner) AddObserver(o Observer) { r.observers = append(r.observers, o) }

// Run takes cfg.Steps steps of cfg.Dt. On cancellation or a step failure it
// returns the partial result together with the error.
func (r *Runner) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	every := cfg.ObserveEvery
	if every == 0 {
		every = 1
	}

	ens := r.stepper.Ensemble()
	result := &Result{
		StepTimes: make([]time.Duration, 0, cfg.Steps),
		Metrics:   make(map[string]float64),
	}

	for _, m := range r.metrics {
		m.Reset()
	}

	r.logger.Debug("run starting", "layout", ens.Layout(), "particles", ens.Len(), "steps", cfg.Steps, "dt", cfg.Dt)

	t := 0.0
	r.observe(0, ens, t)

	start := time.Now()
	var runErr error
	for i := 0; i < cfg.Steps; i++ {
		select {
		case <-ctx.Done():
			runErr = ctx.Err()
		default:
		}
		if runErr != nil {
			break
		}

		stepStart := time.Now()
		if err := r.stepper.Step(cfg.Dt); err != nil {
			runErr = &SimError{Step: i, Time: t, Wrapped: err}
			break
		}
		result.StepTimes = append(result.StepTimes, time.Since(stepStart))

		t = float64(i+1) * cfg.Dt
		result.StepsTaken++

		if cfg.ValidateState {
			if idx := firstInvalid(ens); idx >= 0 {
				runErr = &SimError{Step: i, Time: t, Wrapped: fmt.Errorf("%w: particle %d", ErrInvalidState, idx)}
				break
			}
		}

		if (i+1)%every == 0 || i == cfg.Steps-1 {
			r.observe(i+1, ens, t)
		}
	}
	result.Elapsed = time.Since(start)
	result.Time = t

	for _, m := range r.metrics {
		result.Metrics[m.Name()] = m.Value()
	}

	if runErr != nil {
		r.logger.Warn("run stopped", "step", result.StepsTaken, "err", runErr)
		return result, runErr
	}
	r.logger.Debug("run finished", "steps", result.StepsTaken, "elapsed", result.Elapsed,
		"steps/s", result.StepsPerSecond())
	return result, nil
}

func (r *Runner) observe(step int, e ensemble.Ensemble, t float64) {
	for _, m := range r.metrics {
		m.Observe(e, t)
	}
	for _, obs := range r.observers {
		obs.OnStep(step, e, t)
	}
}

func validateConfig(cfg Config) error {
	if !(cfg.Dt > 0) || math.IsInf(cfg.Dt, 0) {
		return fmt.Errorf("%w: dt must be positive and finite, got %g", ErrInvalidConfig, cfg.Dt)
	}
	if cfg.Steps < 0 {
		return fmt.Errorf("%w: steps must be non-negative, got %d", ErrInvalidConfig, cfg.Steps)
	}
	if cfg.ObserveEvery < 0 {
		return fmt.Errorf("%w: observe interval must be non-negative, got %d", ErrInvalidConfig, cfg.ObserveEvery)
	}
	return nil
}

// firstInvalid returns the index of a non-finite particle, or -1.
func firstInvalid(e ensemble.Ensemble) int {
	if b, ok := e.(ensemble.Bulk); ok {
		s := b.Spans()
		for _, arr := range [][]float64{s.Rx, s.Ry, s.Rz, s.Vx, s.Vy, s.Vz} {
			for i, x := range arr {
				if math.IsNaN(x) || math.IsInf(x, 0) {
					return i
				}
			}
		}
		return -1
	}
	for i := 0; i < e.Len(); i++ {
		p, err := e.Particle(i)
		if err != nil || !p.Position.IsValid() || !p.Velocity.IsValid() {
			return i
		}
	}
	return -1
}
