package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/emsim/internal/config"
	"github.com/san-kum/emsim/internal/ensemble"
	"github.com/san-kum/emsim/internal/metrics"
	"github.com/san-kum/emsim/internal/sim"
)

// stabilityRadius bounds the region a healthy run stays inside, in cm.
const stabilityRadius = 1e12

type Registry struct {
	layouts map[string]func(ps []ensemble.Particle, blockLen int) (ensemble.Ensemble, error)
	metrics map[string]func(cfg *config.Config) sim.Metric
}

func NewRegistry() *Registry {
	r := &Registry{
		layouts: make(map[string]func([]ensemble.Particle, int) (ensemble.Ensemble, error)),
		metrics: make(map[string]func(*config.Config) sim.Metric),
	}

	for _, l := range ensemble.Layouts() {
		r.layouts[l.String()] = func(ps []ensemble.Particle, blockLen int) (ensemble.Ensemble, error) {
			return ensemble.New(l, ps, ensemble.WithBlockLen(blockLen))
		}
	}

	r.metrics["kinetic_energy"] = func(cfg *config.Config) sim.Metric {
		return metrics.NewKineticEnergy(cfg.Constants.Mass)
	}
	r.metrics["energy_drift"] = func(cfg *config.Config) sim.Metric {
		return metrics.NewEnergyDrift(cfg.Constants.Mass)
	}
	r.metrics["stability"] = func(cfg *config.Config) sim.Metric {
		return metrics.NewStability(stabilityRadius)
	}
	r.metrics["max_beta"] = func(cfg *config.Config) sim.Metric {
		return metrics.NewMaxBeta(cfg.Constants.LightSpeed)
	}

	return r
}

func (r *Registry) GetLayout(name string, ps []ensemble.Particle, blockLen int) (ensemble.Ensemble, error) {
	fn, ok := r.layouts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ensemble.ErrUnknownLayout, name)
	}
	return fn(ps, blockLen)
}

func (r *Registry) GetMetric(name string, cfg *config.Config) (sim.Metric, error) {
	fn, ok := r.metrics[name]
	if !ok {
		return nil, fmt.Errorf("unknown metric: %s", name)
	}
	return fn(cfg), nil
}

func (r *Registry) ListLayouts() []string {
	return sortedKeys(r.layouts)
}

func (r *Registry) ListMetrics() []string {
	return sortedKeys(r.metrics)
}

// DefaultMetrics returns one instance of every registered metric.
func (r *Registry) DefaultMetrics(cfg *config.Config) []sim.Metric {
	ms := make([]sim.Metric, 0, len(r.metrics))
	for _, name := range r.ListMetrics() {
		ms = append(ms, r.metrics[name](cfg))
	}
	return ms
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
