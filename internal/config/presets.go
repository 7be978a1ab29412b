package config

import (
	"fmt"
	"sort"

	"github.com/san-kum/emsim/internal/ensemble"
)

type preset struct {
	description string
	build       func() *Config
}

var presets = map[string]preset{
	"cyclotron": {
		description: "electron in crossed E and B fields, checked against the closed-form orbit",
		build: func() *Config {
			cfg := DefaultConfig()
			cfg.Ensemble.Particles = 1024
			return cfg
		},
	},
	"trio": {
		description: "three electrons from rest, against the drift and along x",
		build: func() *Config {
			cfg := DefaultConfig()
			cfg.Ensemble.Particles = 0
			cfg.Ensemble.Initial = []ParticleConfig{
				{},
				{Velocity: [3]float64{-3 * DefaultV0, -3 * DefaultV0, 0}},
				{Velocity: [3]float64{DefaultV0, 0, 0}},
			}
			cfg.Run.Steps = 20000
			return cfg
		},
	},
	"drift": {
		description: "electron launched at the E×B drift velocity, which it keeps",
		build: func() *Config {
			cfg := DefaultConfig()
			cfg.Ensemble.VX = DefaultE0 / DefaultB0 * cfg.Constants.LightSpeed
			cfg.Ensemble.Particles = 256
			return cfg
		},
	},
	"free": {
		description: "no field; particles coast",
		build: func() *Config {
			cfg := DefaultConfig()
			cfg.Field = FieldConfig{}
			cfg.Ensemble.Particles = 256
			cfg.Ensemble.Spread = 1e7
			cfg.Ensemble.Seed = 1
			return cfg
		},
	},
	"bench": {
		description: "65536 electrons in chunked storage, four workers",
		build: func() *Config {
			cfg := DefaultConfig()
			cfg.Ensemble.Layout = ensemble.LayoutChunked.String()
			cfg.Ensemble.BlockLen = 32
			cfg.Ensemble.Particles = 1 << 16
			cfg.Ensemble.Spread = 1e6
			cfg.Ensemble.Seed = 42
			cfg.Run.Steps = 100
			cfg.Run.Workers = 4
			return cfg
		},
	},
}

// GetPreset returns a fresh copy of the named preset.
func GetPreset(name string) (*Config, error) {
	p, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownPreset, name, ListPresets())
	}
	return p.build(), nil
}

func ListPresets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns the one-line summary of a preset, or "" if unknown.
func Describe(name string) string {
	return presets[name].description
}
