// Package vec provides the three-component float64 vector used in every
// particle hot loop.
//
// Vec3 is a plain value: methods take and return copies and never allocate,
// so the compiler can keep the components in registers.
package vec

import (
	"fmt"
	"math"
)

type Vec3 struct {
	X, Y, Z float64
}

func New(x, y, z float64) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

func (a Vec3) Add(b Vec3) Vec3 {
	return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z}
}

func (a Vec3) Sub(b Vec3) Vec3 {
	return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z}
}

func (a Vec3) Scale(c float64) Vec3 {
	return Vec3{a.X * c, a.Y * c, a.Z * c}
}

// Div divides every component by c. Division by zero follows IEEE 754.
func (a Vec3) Div(c float64) Vec3 {
	return Vec3{a.X / c, a.Y / c, a.Z / c}
}

func (a Vec3) Neg() Vec3 {
	return Vec3{-a.X, -a.Y, -a.Z}
}

func (a *Vec3) AddAssign(b Vec3) {
	a.X += b.X
	a.Y += b.Y
	a.Z += b.Z
}

func (a *Vec3) SubAssign(b Vec3) {
	a.X -= b.X
	a.Y -= b.Y
	a.Z -= b.Z
}

func (a *Vec3) ScaleAssign(c float64) {
	a.X *= c
	a.Y *= c
	a.Z *= c
}

func (a Vec3) NormSq() float64 {
	return a.X*a.X + a.Y*a.Y + a.Z*a.Z
}

func (a Vec3) Norm() float64 {
	return math.Sqrt(a.NormSq())
}

// IsValid reports whether no component is NaN or Inf.
func (a Vec3) IsValid() bool {
	for _, c := range [3]float64{a.X, a.Y, a.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

func (a Vec3) String() string {
	return fmt.Sprintf("(%g, %g, %g)", a.X, a.Y, a.Z)
}

func Cross(a, b Vec3) Vec3 {
	return Vec3{
		a.Y*b.Z - a.Z*b.Y,
		a.Z*b.X - a.X*b.Z,
		a.X*b.Y - a.Y*b.X,
	}
}

func Dot(a, b Vec3) float64 {
	return a.X*b.X + a.Y*b.Y + a.Z*b.Z
}

// Dist is the Euclidean distance between a and b.
func Dist(a, b Vec3) float64 {
	return a.Sub(b).Norm()
}
