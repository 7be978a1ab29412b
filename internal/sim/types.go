// Package sim drives a pusher through a run: it steps, times each step,
// feeds metrics and observers, and honours cancellation between steps.
package sim

import (
	"errors"
	"fmt"
	"time"

	"github.com/san-kum/emsim/internal/ensemble"
)

var (
	// ErrInvalidConfig indicates run parameters that cannot be executed.
	ErrInvalidConfig = errors.New("sim: invalid run configuration")

	// ErrInvalidState indicates a particle with a NaN or Inf component.
	ErrInvalidState = errors.New("sim: invalid state (NaN or Inf detected)")
)

// Stepper advances an ensemble by one time step. *pusher.Pusher satisfies it.
type Stepper interface {
	Step(dt float64) error
	Ensemble() ensemble.Ensemble
}

type Metric interface {
	Name() string
	Observe(e ensemble.Ensemble, t float64)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(step int, e ensemble.Ensemble, t float64)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(step int, e ensemble.Ensemble, t float64)

func (f ObserverFunc) OnStep(step int, e ensemble.Ensemble, t float64) { f(step, e, t) }

type Config struct {
	Dt    float64
	Steps int

	// ObserveEvery feeds metrics and observers every n steps; 0 means 1.
	// The initial and final states are always observed.
	ObserveEvery int

	// ValidateState scans the ensemble after every step and stops the
	// run at the first non-finite component.
	ValidateState bool
}

type Result struct {
	StepsTaken int
	Time       float64
	Elapsed    time.Duration
	StepTimes  []time.Duration
	Metrics    map[string]float64
}

// StepsPerSecond is the step throughput over the stepping time only.
func (r *Result) StepsPerSecond() float64 {
	d := r.stepping()
	if d <= 0 {
		return 0
	}
	return float64(r.StepsTaken) / d.Seconds()
}

func (r *Result) stepping() time.Duration {
	var sum time.Duration
	for _, d := range r.StepTimes {
		sum += d
	}
	return sum
}

// SimError locates a failure inside a run.
type SimError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *SimError) Error() string {
	return fmt.Sprintf("step %d (t=%g): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimError) Unwrap() error { return e.Wrapped }
