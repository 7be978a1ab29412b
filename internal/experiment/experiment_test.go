package experiment

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/san-kum/emsim/internal/config"
	"github.com/san-kum/emsim/internal/ensemble"
	"github.com/san-kum/emsim/internal/verify"
)

func mustPreset(t *testing.T, name string) *config.Config {
	t.Helper()
	cfg, err := config.GetPreset(name)
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestExperimentCyclotron(t *testing.T) {
	for _, layout := range []string{"aos", "soa", "chunked"} {
		t.Run(layout, func(t *testing.T) {
			cfg := mustPreset(t, "cyclotron")
			cfg.Ensemble.Layout = layout
			cfg.Ensemble.Particles = 40
			cfg.Ensemble.BlockLen = 16

			exp, err := New(cfg, WithObserveEvery(64))
			if err != nil {
				t.Fatalf("setup failed: %v", err)
			}
			if exp.Deviation() == nil {
				t.Fatal("expected the cyclotron oracle to be attached")
			}

			result, err := exp.Run(context.Background())
			if err != nil {
				t.Fatalf("run failed: %v", err)
			}
			if result.StepsTaken != 256 {
				t.Errorf("expected 256 steps, got %d", result.StepsTaken)
			}
			if !exp.Deviation().Passed() {
				t.Errorf("deviation %g exceeds tolerance", exp.Deviation().Value())
			}
			if len(exp.Deviation().Series()) != 5 {
				t.Errorf("expected 5 observations, got %d", len(exp.Deviation().Series()))
			}
			for _, name := range []string{"kinetic_energy", "energy_drift", "stability", "max_beta", "max_deviation"} {
				if _, ok := result.Metrics[name]; !ok {
					t.Errorf("metric %s missing", name)
				}
			}
			if err := verify.DefaultCyclotron().Check(exp.Ensemble(), result.Time, 0); err != nil {
				t.Errorf("final state: %v", err)
			}
		})
	}
}

func TestExperimentCopiesConfig(t *testing.T) {
	cfg := mustPreset(t, "free")
	exp, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Run.Steps = 1

	if exp.Config().Run.Steps == 1 {
		t.Error("experiment shares the caller's config")
	}
}

func TestExperimentInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Run.Dt = 0

	if _, err := New(cfg); !errors.Is(err, config.ErrInvalid) {
		t.Errorf("expected config.ErrInvalid, got %v", err)
	}
}

func TestExperimentDescribe(t *testing.T) {
	cfg := mustPreset(t, "bench")
	cfg.Ensemble.Particles = 100

	exp, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	got := exp.Describe()
	for _, want := range []string{"chunked", "n=100", "kernel=blocks", "block=32", "partitions=4"} {
		if !strings.Contains(got, want) {
			t.Errorf("Describe() = %q, missing %q", got, want)
		}
	}
}

func TestOracle(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   bool
	}{
		{"default", func(*config.Config) {}, true},
		{"shifted origin", func(c *config.Config) { c.Ensemble.X = 5 }, true},
		{"tilted B", func(c *config.Config) { c.Field.Bx = 0.1 }, false},
		{"E along x", func(c *config.Config) { c.Field.Ex = 0.1 }, false},
		{"no B", func(c *config.Config) { c.Field.Bz = 0 }, false},
		{"spread", func(c *config.Config) { c.Ensemble.Spread = 1 }, false},
		{"vy", func(c *config.Config) { c.Ensemble.VY = 1 }, false},
		{"neutral", func(c *config.Config) { c.Constants.Charge = 0 }, false},
		{"explicit particles", func(c *config.Config) {
			c.Ensemble.Initial = []config.ParticleConfig{{}}
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mutate(cfg)
			c, ok := Oracle(cfg)
			if ok != tt.want {
				t.Fatalf("Oracle() ok = %v, want %v", ok, tt.want)
			}
			if ok && c.Origin.X != cfg.Ensemble.X {
				t.Errorf("origin not carried over: %v", c.Origin)
			}
		})
	}
}

func TestOracleMatchesDefault(t *testing.T) {
	c, ok := Oracle(config.DefaultConfig())
	if !ok {
		t.Fatal("default config should have an oracle")
	}
	if c != verify.DefaultCyclotron() {
		t.Errorf("Oracle() = %+v, want %+v", c, verify.DefaultCyclotron())
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	layouts := r.ListLayouts()
	if len(layouts) != 3 {
		t.Fatalf("expected 3 layouts, got %v", layouts)
	}
	for _, name := range layouts {
		ens, err := r.GetLayout(name, make([]ensemble.Particle, 5), 2)
		if err != nil {
			t.Errorf("layout %s: %v", name, err)
			continue
		}
		if ens.Layout().String() != name || ens.Len() != 5 {
			t.Errorf("layout %s built %s with %d particles", name, ens.Layout(), ens.Len())
		}
	}

	if _, err := r.GetLayout("aosoa", nil, 1); !errors.Is(err, ensemble.ErrUnknownLayout) {
		t.Errorf("expected ErrUnknownLayout, got %v", err)
	}

	cfg := config.DefaultConfig()
	if _, err := r.GetMetric("stability", cfg); err != nil {
		t.Error(err)
	}
	if _, err := r.GetMetric("nonexistent", cfg); err == nil {
		t.Error("expected error for unknown metric")
	}
	if got := len(r.DefaultMetrics(cfg)); got != len(r.ListMetrics()) {
		t.Errorf("expected %d default metrics, got %d", len(r.ListMetrics()), got)
	}
}
