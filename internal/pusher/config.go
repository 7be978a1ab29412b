package pusher

import (
	"fmt"
	"math"

	"github.com/san-kum/emsim/internal/vec"
)

// CGS electron constants.
const (
	ElectronCharge = -4.80320427e-10
	ElectronMass   = 9.10938215e-28
	LightSpeed     = 29979245800.0
)

// Fields is the constant, uniform electromagnetic field.
type Fields struct {
	E vec.Vec3
	B vec.Vec3
}

// Constants are the per-run physical constants.
type Constants struct {
	Charge     float64
	Mass       float64
	LightSpeed float64
}

func ElectronConstants() Constants {
	return Constants{
		Charge:     ElectronCharge,
		Mass:       ElectronMass,
		LightSpeed: LightSpeed,
	}
}

type Config struct {
	Fields    Fields
	Constants Constants

	// Workers bounds the goroutines used by one Step. 0 and 1 both mean
	// run on the calling goroutine.
	Workers int
}

func (c Config) validate() error {
	k := c.Constants
	if !finite(k.Charge) || !finite(k.Mass) || !finite(k.LightSpeed) {
		return fmt.Errorf("%w: constants must be finite", ErrConfiguration)
	}
	if k.Mass <= 0 {
		return fmt.Errorf("%w: mass must be positive, got %g", ErrConfiguration, k.Mass)
	}
	if k.LightSpeed <= 0 {
		return fmt.Errorf("%w: light speed must be positive, got %g", ErrConfiguration, k.LightSpeed)
	}
	if !c.Fields.E.IsValid() || !c.Fields.B.IsValid() {
		return fmt.Errorf("%w: field components must be finite", ErrConfiguration)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be non-negative, got %d", ErrConfiguration, c.Workers)
	}
	return nil
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
