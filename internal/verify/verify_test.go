package verify

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/emsim/internal/ensemble"
	"github.com/san-kum/emsim/internal/vec"
)

func TestCyclotron_InitialState(t *testing.T) {
	c := DefaultCyclotron()
	r, v := c.At(0)

	assert.Equal(t, c.Origin, r)
	assert.InDelta(t, c.V0, v.X, 1e-6)
	assert.Equal(t, 0.0, v.Y)
	assert.Equal(t, 0.0, v.Z)
	assert.Equal(t, c.Initial().Velocity, vec.New(c.V0, 0, 0))
}

func TestCyclotron_Constants(t *testing.T) {
	c := DefaultCyclotron()

	// electrons gyrate with negative signed frequency
	assert.Less(t, c.Omega(), 0.0)
	assert.InDelta(t, -1.7588e7, c.Omega(), 1e4)
	assert.InDelta(t, 0.005*c.Constants.LightSpeed, c.Drift(), 1e-3)
	assert.InDelta(t, 1e-4*29979245800.0, c.Tolerance(), 1e-6)

	f := c.Fields()
	assert.Equal(t, vec.New(0, -0.005, 0), f.E)
	assert.Equal(t, vec.New(0, 0, 1), f.B)
}

func TestCyclotron_SpeedAboutDriftIsConstant(t *testing.T) {
	c := DefaultCyclotron()
	a := c.V0 + c.Drift()

	for _, tm := range []float64{0, 1e-9, 2.56e-8, 1e-6} {
		_, v := c.At(tm)
		gyro := v.Add(vec.New(c.Drift(), 0, 0))
		assert.InDelta(t, a, gyro.Norm(), a*1e-12, "t=%g", tm)
	}
}

func TestCyclotron_OriginShift(t *testing.T) {
	c := DefaultCyclotron()
	c.Origin = vec.New(1, 2, 3)

	r, _ := c.At(1e-9)
	c0 := DefaultCyclotron()
	r0, _ := c0.At(1e-9)
	assert.InDelta(t, 0, vec.Dist(r, r0.Add(vec.New(1, 2, 3))), 1e-12)
}

func TestCyclotron_Check(t *testing.T) {
	c := DefaultCyclotron()
	ens := ensemble.NewSoA(c.Particles(8))

	require.NoError(t, c.Check(ens, 0, 0))

	dev, _ := c.Deviation(ens, 0)
	assert.Equal(t, 0.0, dev)

	require.NoError(t, ens.SetVelocity(5, vec.New(c.V0, 2*c.Tolerance(), 0)))

	err := c.Check(ens, 0, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMismatch)

	var me *MismatchError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, 5, me.Index)
	assert.InDelta(t, 2*c.Tolerance(), me.Deviation, 1)

	// a looser explicit tolerance accepts it
	require.NoError(t, c.Check(ens, 0, 3*c.Tolerance()))
}

func TestCyclotron_CheckNaN(t *testing.T) {
	c := DefaultCyclotron()
	ens := ensemble.NewAoS(c.Particles(3))
	require.NoError(t, ens.SetPosition(1, vec.New(math.NaN(), 0, 0)))

	assert.ErrorIs(t, c.Check(ens, 0, 0), ErrMismatch)
}

func particles(n int) []ensemble.Particle {
	ps := make([]ensemble.Particle, n)
	for i := range ps {
		f := float64(i + 1)
		ps[i] = ensemble.Particle{
			Position: vec.New(f, -f, 0.5*f),
			Velocity: vec.New(10*f, 0, -f),
		}
	}
	return ps
}

func TestCompare_AcrossLayouts(t *testing.T) {
	ps := particles(10)
	aos := ensemble.NewAoS(ps)
	soa := ensemble.NewSoA(ps)
	chunked, err := ensemble.NewChunked(ps, 3)
	require.NoError(t, err)

	for _, pair := range [][2]ensemble.Ensemble{{aos, soa}, {soa, chunked}, {aos, chunked}} {
		d, err := Compare(pair[0], pair[1])
		require.NoError(t, err)
		assert.True(t, d.Identical)
		assert.Equal(t, 0.0, d.MaxAbs)
		assert.Equal(t, 0.0, d.MaxRel)
		assert.NoError(t, Equivalent(pair[0], pair[1], 0))
	}
}

func TestCompare_Differences(t *testing.T) {
	ps := particles(4)
	a := ensemble.NewSoA(ps)
	b := ensemble.NewAoS(ps)

	// largest |vx| is 40; nudge it by 4 -> relative 0.1
	require.NoError(t, b.SetVelocity(3, vec.New(44, 0, -4)))

	d, err := Compare(a, b)
	require.NoError(t, err)
	assert.False(t, d.Identical)
	assert.InDelta(t, 4, d.MaxAbs, 1e-12)
	assert.InDelta(t, 4.0/44.0, d.MaxRel, 1e-12)

	assert.ErrorIs(t, Equivalent(a, b, 1e-3), ErrMismatch)
	assert.NoError(t, Equivalent(a, b, 0.5))
}

func TestCompare_LengthMismatch(t *testing.T) {
	_, err := Compare(ensemble.NewSoA(particles(2)), ensemble.NewSoA(particles(3)))
	assert.ErrorIs(t, err, ErrMismatch)
}

func TestCompare_Empty(t *testing.T) {
	d, err := Compare(ensemble.NewSoA(nil), ensemble.NewAoS(nil))
	require.NoError(t, err)
	assert.True(t, d.Identical)
}
