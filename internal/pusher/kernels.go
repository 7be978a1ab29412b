package pusher

import (
	"github.com/san-kum/emsim/internal/ensemble"
	"github.com/san-kum/emsim/internal/vec"
)

// coeffs holds everything a kernel needs for one step.
type coeffs struct {
	dt, halfDt, h6 float64
	qm, invC       float64
	e, b           vec.Vec3
}

func newCoeffs(f Fields, k Constants, dt float64) coeffs {
	return coeffs{
		dt:     dt,
		halfDt: 0.5 * dt,
		h6:     dt / 6,
		qm:     k.Charge / k.Mass,
		invC:   1 / k.LightSpeed,
		e:      f.E,
		b:      f.B,
	}
}

func (c *coeffs) accel(v vec.Vec3) vec.Vec3 {
	return c.e.Add(vec.Cross(v, c.b).Scale(c.invC)).Scale(c.qm)
}

// advance returns the post-step (r, v). Both ladders read only the
// pre-step v.
func (c *coeffs) advance(r, v vec.Vec3) (vec.Vec3, vec.Vec3) {
	j1 := v
	j2 := v.Add(j1.Scale(c.halfDt))
	j3 := v.Add(j2.Scale(c.halfDt))
	j4 := v.Add(j3.Scale(c.dt))
	rNew := r.Add(j1.Add(j2.Scale(2)).Add(j3.Scale(2)).Add(j4).Scale(c.h6))

	k1 := c.accel(v)
	k2 := c.accel(v.Add(k1.Scale(c.halfDt)))
	k3 := c.accel(v.Add(k2.Scale(c.halfDt)))
	k4 := c.accel(v.Add(k3.Scale(c.dt)))
	vNew := v.Add(k1.Add(k2.Scale(2)).Add(k3.Scale(2)).Add(k4).Scale(c.h6))

	return rNew, vNew
}

func stepRecords(c *coeffs, recs []ensemble.Particle) {
	for i := range recs {
		p := &recs[i]
		p.Position, p.Velocity = c.advance(p.Position, p.Velocity)
	}
}

func stepAccessors(c *coeffs, e ensemble.Ensemble, lo, hi int) error {
	for i := lo; i < hi; i++ {
		r, err := e.Position(i)
		if err != nil {
			return err
		}
		v, err := e.Velocity(i)
		if err != nil {
			return err
		}
		r, v = c.advance(r, v)
		if err := e.SetPosition(i, r); err != nil {
			return err
		}
		if err := e.SetVelocity(i, v); err != nil {
			return err
		}
	}
	return nil
}

// stepSpans is the fused per-particle loop over SoA storage.
func stepSpans(c *coeffs, s ensemble.Spans) {
	ex, ey, ez := c.e.X, c.e.Y, c.e.Z
	bx, by, bz := c.b.X, c.b.Y, c.b.Z
	qm, invC := c.qm, c.invC
	dt, halfDt, h6 := c.dt, c.halfDt, c.h6

	rx, ry, rz := s.Rx, s.Ry[:len(s.Rx)], s.Rz[:len(s.Rx)]
	vx, vy, vz := s.Vx[:len(s.Rx)], s.Vy[:len(s.Rx)], s.Vz[:len(s.Rx)]

	for i := range rx {
		x, y, z := vx[i], vy[i], vz[i]

		// position ladder
		j2x, j2y, j2z := x+x*halfDt, y+y*halfDt, z+z*halfDt
		j3x, j3y, j3z := x+j2x*halfDt, y+j2y*halfDt, z+j2z*halfDt
		j4x, j4y, j4z := x+j3x*dt, y+j3y*dt, z+j3z*dt

		rx[i] += (x + j2x*2 + j3x*2 + j4x) * h6
		ry[i] += (y + j2y*2 + j3y*2 + j4y) * h6
		rz[i] += (z + j2z*2 + j3z*2 + j4z) * h6

		// velocity ladder
		k1x := (ex + (y*bz-z*by)*invC) * qm
		k1y := (ey + (z*bx-x*bz)*invC) * qm
		k1z := (ez + (x*by-y*bx)*invC) * qm

		tx, ty, tz := x+k1x*halfDt, y+k1y*halfDt, z+k1z*halfDt
		k2x := (ex + (ty*bz-tz*by)*invC) * qm
		k2y := (ey + (tz*bx-tx*bz)*invC) * qm
		k2z := (ez + (tx*by-ty*bx)*invC) * qm

		tx, ty, tz = x+k2x*halfDt, y+k2y*halfDt, z+k2z*halfDt
		k3x := (ex + (ty*bz-tz*by)*invC) * qm
		k3y := (ey + (tz*bx-tx*bz)*invC) * qm
		k3z := (ez + (tx*by-ty*bx)*invC) * qm

		tx, ty, tz = x+k3x*dt, y+k3y*dt, z+k3z*dt
		k4x := (ex + (ty*bz-tz*by)*invC) * qm
		k4y := (ey + (tz*bx-tx*bz)*invC) * qm
		k4z := (ez + (tx*by-ty*bx)*invC) * qm

		vx[i] = x + (k1x+k2x*2+k3x*2+k4x)*h6
		vy[i] = y + (k1y+k2y*2+k3y*2+k4y)*h6
		vz[i] = z + (k1z+k2z*2+k3z*2+k4z)*h6
	}
}

// arena is the stage scratch for one block: four stage values per axis.
type arena struct {
	buf  []float64
	size int
}

func newArena(blockLen int) *arena {
	return &arena{buf: make([]float64, 12*blockLen), size: blockLen}
}

// stages returns the k1..k4 slices for each axis, trimmed to n <= size.
func (a *arena) stages(n int) (x, y, z [4][]float64) {
	for s := 0; s < 4; s++ {
		x[s] = a.buf[(3*s+0)*a.size : (3*s+0)*a.size+n]
		y[s] = a.buf[(3*s+1)*a.size : (3*s+1)*a.size+n]
		z[s] = a.buf[(3*s+2)*a.size : (3*s+2)*a.size+n]
	}
	return
}

// stepBlocks walks s in blocks of blockLen; the last block may be short.
func stepBlocks(c *coeffs, a *arena, s ensemble.Spans, blockLen int) {
	n := s.Len()
	for lo := 0; lo < n; lo += blockLen {
		hi := lo + blockLen
		if hi > n {
			hi = n
		}
		stepBlock(c, a, s.Slice(lo, hi))
	}
}

func stepBlock(c *coeffs, a *arena, s ensemble.Spans) {
	ex, ey, ez := c.e.X, c.e.Y, c.e.Z
	bx, by, bz := c.b.X, c.b.Y, c.b.Z
	qm, invC := c.qm, c.invC
	dt, halfDt, h6 := c.dt, c.halfDt, c.h6

	n := s.Len()
	kx, ky, kz := a.stages(n)
	rx, ry, rz := s.Rx, s.Ry, s.Rz
	vx, vy, vz := s.Vx, s.Vy, s.Vz

	// position ladder
	for i := 0; i < n; i++ {
		x, y, z := vx[i], vy[i], vz[i]
		kx[0][i], ky[0][i], kz[0][i] = x, y, z
		kx[1][i], ky[1][i], kz[1][i] = x+x*halfDt, y+y*halfDt, z+z*halfDt
		kx[2][i], ky[2][i], kz[2][i] = x+kx[1][i]*halfDt, y+ky[1][i]*halfDt, z+kz[1][i]*halfDt
		kx[3][i], ky[3][i], kz[3][i] = x+kx[2][i]*dt, y+ky[2][i]*dt, z+kz[2][i]*dt
	}
	for i := 0; i < n; i++ {
		rx[i] += (kx[0][i] + kx[1][i]*2 + kx[2][i]*2 + kx[3][i]) * h6
		ry[i] += (ky[0][i] + ky[1][i]*2 + ky[2][i]*2 + ky[3][i]) * h6
		rz[i] += (kz[0][i] + kz[1][i]*2 + kz[2][i]*2 + kz[3][i]) * h6
	}

	// velocity ladder
	for i := 0; i < n; i++ {
		x, y, z := vx[i], vy[i], vz[i]

		k1x := (ex + (y*bz-z*by)*invC) * qm
		k1y := (ey + (z*bx-x*bz)*invC) * qm
		k1z := (ez + (x*by-y*bx)*invC) * qm
		kx[0][i], ky[0][i], kz[0][i] = k1x, k1y, k1z

		tx, ty, tz := x+k1x*halfDt, y+k1y*halfDt, z+k1z*halfDt
		k2x := (ex + (ty*bz-tz*by)*invC) * qm
		k2y := (ey + (tz*bx-tx*bz)*invC) * qm
		k2z := (ez + (tx*by-ty*bx)*invC) * qm
		kx[1][i], ky[1][i], kz[1][i] = k2x, k2y, k2z

		tx, ty, tz = x+k2x*halfDt, y+k2y*halfDt, z+k2z*halfDt
		k3x := (ex + (ty*bz-tz*by)*invC) * qm
		k3y := (ey + (tz*bx-tx*bz)*invC) * qm
		k3z := (ez + (tx*by-ty*bx)*invC) * qm
		kx[2][i], ky[2][i], kz[2][i] = k3x, k3y, k3z

		tx, ty, tz = x+k3x*dt, y+k3y*dt, z+k3z*dt
		kx[3][i] = (ex + (ty*bz-tz*by)*invC) * qm
		ky[3][i] = (ey + (tz*bx-tx*bz)*invC) * qm
		kz[3][i] = (ez + (tx*by-ty*bx)*invC) * qm
	}
	for i := 0; i < n; i++ {
		vx[i] += (kx[0][i] + kx[1][i]*2 + kx[2][i]*2 + kx[3][i]) * h6
		vy[i] += (ky[0][i] + ky[1][i]*2 + ky[2][i]*2 + ky[3][i]) * h6
		vz[i] += (kz[0][i] + kz[1][i]*2 + kz[2][i]*2 + kz[3][i]) * h6
	}
}
