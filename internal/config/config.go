package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/exp/rand"
	"gopkg.in/gcfg.v1"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/emsim/internal/ensemble"
	"github.com/san-kum/emsim/internal/pusher"
	"github.com/san-kum/emsim/internal/vec"
)

const (
	DefaultDt        = 1e-10
	DefaultSteps     = 256
	DefaultE0        = -0.005
	DefaultB0        = 1.0
	DefaultParticles = 1
	DefaultV0        = 1e-2 * pusher.LightSpeed
)

var (
	ErrInvalid       = errors.New("config: invalid value")
	ErrUnknownPreset = errors.New("config: unknown preset")
	ErrFormat        = errors.New("config: unsupported file format")
)

// Config describes one run. The same struct is read from YAML and from
// gcfg (INI) files; gcfg sections map onto the top-level fields.
type Config struct {
	Field     FieldConfig     `yaml:"field"`
	Constants ConstantsConfig `yaml:"constants"`
	Ensemble  EnsembleConfig  `yaml:"ensemble"`
	Run       RunConfig       `yaml:"run"`
}

type FieldConfig struct {
	Ex float64 `yaml:"ex"`
	Ey float64 `yaml:"ey"`
	Ez float64 `yaml:"ez"`
	Bx float64 `yaml:"bx"`
	By float64 `yaml:"by"`
	Bz float64 `yaml:"bz"`
}

type ConstantsConfig struct {
	Charge     float64 `yaml:"charge"`
	Mass       float64 `yaml:"mass"`
	LightSpeed float64 `yaml:"light_speed" gcfg:"light-speed"`
}

type EnsembleConfig struct {
	Layout    string `yaml:"layout"`
	BlockLen  int    `yaml:"block_len" gcfg:"block-len"`
	Particles int    `yaml:"particles"`

	// Starting state shared by every particle.
	X  float64 `yaml:"x"`
	Y  float64 `yaml:"y"`
	Z  float64 `yaml:"z"`
	VX float64 `yaml:"vx"`
	VY float64 `yaml:"vy"`
	VZ float64 `yaml:"vz"`

	// Spread jitters each velocity component uniformly in [-Spread, Spread].
	Spread float64 `yaml:"spread"`
	Seed   int64   `yaml:"seed"`

	// Initial lists explicit particles, repeated cyclically up to Particles.
	// It overrides the shared starting state and is YAML only.
	Initial []ParticleConfig `yaml:"initial,omitempty" gcfg:"-"`
}

type ParticleConfig struct {
	Position [3]float64 `yaml:"r"`
	Velocity [3]float64 `yaml:"v"`
}

type RunConfig struct {
	Dt      float64 `yaml:"dt"`
	Steps   int     `yaml:"steps"`
	Workers int     `yaml:"workers"`
}

func DefaultConfig() *Config {
	return &Config{
		Field: FieldConfig{Ey: DefaultE0, Bz: DefaultB0},
		Constants: ConstantsConfig{
			Charge:     pusher.ElectronCharge,
			Mass:       pusher.ElectronMass,
			LightSpeed: pusher.LightSpeed,
		},
		Ensemble: EnsembleConfig{
			Layout:    ensemble.LayoutSoA.String(),
			BlockLen:  ensemble.DefaultBlockLen,
			Particles: DefaultParticles,
			VX:        DefaultV0,
		},
		Run: RunConfig{
			Dt:      DefaultDt,
			Steps:   DefaultSteps,
			Workers: 1,
		},
	}
}

// Load reads a config file, choosing the decoder from the extension.
// Values absent from the file keep their defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case ".gcfg", ".ini", ".conf":
		if err := gcfg.ReadFileInto(cfg, path); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrFormat, filepath.Ext(path))
	}

	return cfg, nil
}

// Save writes cfg as YAML, or as gcfg when path ends in .gcfg/.ini/.conf.
func Save(path string, cfg *Config) error {
	var data []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var err error
		data, err = yaml.Marshal(cfg)
		if err != nil {
			return err
		}
	case ".gcfg", ".ini", ".conf":
		if len(cfg.Ensemble.Initial) > 0 {
			return fmt.Errorf("%w: explicit initial particles need YAML", ErrFormat)
		}
		data = []byte(cfg.iniText())
	default:
		return fmt.Errorf("%w: %q", ErrFormat, filepath.Ext(path))
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) iniText() string {
	var b strings.Builder
	f, k, e, r := c.Field, c.Constants, c.Ensemble, c.Run
	fmt.Fprintf(&b, "[field]\nex = %g\ney = %g\nez = %g\nbx = %g\nby = %g\nbz = %g\n\n",
		f.Ex, f.Ey, f.Ez, f.Bx, f.By, f.Bz)
	fmt.Fprintf(&b, "[constants]\ncharge = %g\nmass = %g\nlight-speed = %g\n\n",
		k.Charge, k.Mass, k.LightSpeed)
	fmt.Fprintf(&b, "[ensemble]\nlayout = %s\nblock-len = %d\nparticles = %d\n", e.Layout, e.BlockLen, e.Particles)
	fmt.Fprintf(&b, "x = %g\ny = %g\nz = %g\nvx = %g\nvy = %g\nvz = %g\n", e.X, e.Y, e.Z, e.VX, e.VY, e.VZ)
	fmt.Fprintf(&b, "spread = %g\nseed = %d\n\n", e.Spread, e.Seed)
	fmt.Fprintf(&b, "[run]\ndt = %g\nsteps = %d\nworkers = %d\n", r.Dt, r.Steps, r.Workers)
	return b.String()
}

// Validate reports the first field that cannot describe a run.
func (c *Config) Validate() error {
	check := []struct {
		ok   bool
		name string
		val  any
	}{
		{finite(c.Field.Ex, c.Field.Ey, c.Field.Ez, c.Field.Bx, c.Field.By, c.Field.Bz), "field", c.Field},
		{finite(c.Constants.Charge), "constants.charge", c.Constants.Charge},
		{finite(c.Constants.Mass) && c.Constants.Mass > 0, "constants.mass", c.Constants.Mass},
		{finite(c.Constants.LightSpeed) && c.Constants.LightSpeed > 0, "constants.light_speed", c.Constants.LightSpeed},
		{c.Ensemble.Particles >= 0, "ensemble.particles", c.Ensemble.Particles},
		{finite(c.Ensemble.X, c.Ensemble.Y, c.Ensemble.Z), "ensemble position", vec.New(c.Ensemble.X, c.Ensemble.Y, c.Ensemble.Z)},
		{finite(c.Ensemble.VX, c.Ensemble.VY, c.Ensemble.VZ), "ensemble velocity", vec.New(c.Ensemble.VX, c.Ensemble.VY, c.Ensemble.VZ)},
		{finite(c.Ensemble.Spread) && c.Ensemble.Spread >= 0, "ensemble.spread", c.Ensemble.Spread},
		{finite(c.Run.Dt) && c.Run.Dt > 0, "run.dt", c.Run.Dt},
		{c.Run.Steps >= 0, "run.steps", c.Run.Steps},
		{c.Run.Workers >= 0, "run.workers", c.Run.Workers},
	}
	for _, ch := range check {
		if !ch.ok {
			return fmt.Errorf("%w: %s = %v", ErrInvalid, ch.name, ch.val)
		}
	}

	layout, err := c.Layout()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if layout == ensemble.LayoutChunked && c.Ensemble.BlockLen <= 0 {
		return fmt.Errorf("%w: ensemble.block_len = %d", ErrInvalid, c.Ensemble.BlockLen)
	}
	for i, p := range c.Ensemble.Initial {
		if !finite(p.Position[:]...) || !finite(p.Velocity[:]...) {
			return fmt.Errorf("%w: ensemble.initial[%d] is not finite", ErrInvalid, i)
		}
	}
	return nil
}

func (c *Config) Layout() (ensemble.Layout, error) {
	return ensemble.ParseLayout(c.Ensemble.Layout)
}

func (c *Config) Fields() pusher.Fields {
	f := c.Field
	return pusher.Fields{
		E: vec.New(f.Ex, f.Ey, f.Ez),
		B: vec.New(f.Bx, f.By, f.Bz),
	}
}

func (c *Config) ParticleConstants() pusher.Constants {
	return pusher.Constants{
		Charge:     c.Constants.Charge,
		Mass:       c.Constants.Mass,
		LightSpeed: c.Constants.LightSpeed,
	}
}

func (c *Config) PusherConfig() pusher.Config {
	return pusher.Config{
		Fields:    c.Fields(),
		Constants: c.ParticleConstants(),
		Workers:   c.Run.Workers,
	}
}

// Particles builds the initial conditions. The result depends only on the
// config, so equal configs produce equal ensembles.
func (c *Config) Particles() []ensemble.Particle {
	e := c.Ensemble
	n := e.Particles
	if n == 0 {
		n = len(e.Initial)
	}

	ps := make([]ensemble.Particle, n)
	for i := range ps {
		if len(e.Initial) > 0 {
			p := e.Initial[i%len(e.Initial)]
			ps[i] = ensemble.Particle{
				Position: vec.New(p.Position[0], p.Position[1], p.Position[2]),
				Velocity: vec.New(p.Velocity[0], p.Velocity[1], p.Velocity[2]),
			}
			continue
		}
		ps[i] = ensemble.Particle{
			Position: vec.New(e.X, e.Y, e.Z),
			Velocity: vec.New(e.VX, e.VY, e.VZ),
		}
	}

	if e.Spread > 0 {
		rnd := rand.New(rand.NewSource(uint64(e.Seed)))
		jitter := func() float64 { return e.Spread * (2*rnd.Float64() - 1) }
		for i := range ps {
			ps[i].Velocity.AddAssign(vec.New(jitter(), jitter(), jitter()))
		}
	}
	return ps
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	cp := *c
	if c.Ensemble.Initial != nil {
		cp.Ensemble.Initial = append([]ParticleConfig(nil), c.Ensemble.Initial...)
	}
	return &cp
}

func finite(xs ...float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
