package box2d

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

///////////////////////////////////////////////////////////////////////////////
///////////////////////////////////////////////////////////////////////////////
///////////////////////////////////////////////////////////////////////////////
// b2Math.h
///////////////////////////////////////////////////////////////////////////////
///////////////////////////////////////////////////////////////////////////////
///////////////////////////////////////////////////////////////////////////////

/// A 2D column vector. Coordinates are single precision, like the native
/// broad-phase they are handed to.
type B2Vec2 = mgl32.Vec2

func MakeB2Vec2(xIn, yIn float32) B2Vec2 {
	return B2Vec2{xIn, yIn}
}

/// This function is used to ensure that a floating point number is not a NaN or infinity.
func B2IsValid(x float32) bool {
	f := float64(x)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func B2Vec2IsValid(v B2Vec2) bool {
	return B2IsValid(v[0]) && B2IsValid(v[1])
}

func B2Vec2Add(a, b B2Vec2) B2Vec2 {
	return a.Add(b)
}

func B2Vec2Sub(a, b B2Vec2) B2Vec2 {
	return a.Sub(b)
}

func B2Vec2MulScalar(s float32, v B2Vec2) B2Vec2 {
	return v.Mul(s)
}

func B2Vec2Dot(a, b B2Vec2) float32 {
	return a.Dot(b)
}

/// Perform the cross product on a scalar and a vector. In 2D this produces
/// a vector.
func B2Vec2CrossScalarVector(s float32, a B2Vec2) B2Vec2 {
	return B2Vec2{-s * a[1], s * a[0]}
}

func B2Vec2Abs(a B2Vec2) B2Vec2 {
	return B2Vec2{mgl32.Abs(a[0]), mgl32.Abs(a[1])}
}

func B2Vec2Min(a, b B2Vec2) B2Vec2 {
	return B2Vec2{min(a[0], b[0]), min(a[1], b[1])}
}

func B2Vec2Max(a, b B2Vec2) B2Vec2 {
	return B2Vec2{max(a[0], b[0]), max(a[1], b[1])}
}
