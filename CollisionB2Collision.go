package box2d

import (
	"fmt"
)

///////////////////////////////////////////////////////////////////////////////
///////////////////////////////////////////////////////////////////////////////
///////////////////////////////////////////////////////////////////////////////
// B2Collision.h
///////////////////////////////////////////////////////////////////////////////
///////////////////////////////////////////////////////////////////////////////
///////////////////////////////////////////////////////////////////////////////

// Ray-cast input data. The ray extends from p1 to p1 + maxFraction * (p2 - p1).
type B2RayCastInput struct {
	P1, P2      B2Vec2
	MaxFraction float32
}

func MakeB2RayCastInput() B2RayCastInput {
	return B2RayCastInput{
		P1:          MakeB2Vec2(0, 0),
		P2:          MakeB2Vec2(0, 0),
		MaxFraction: 0,
	}
}

func NewB2RayCastInput() *B2RayCastInput {
	res := MakeB2RayCastInput()
	return &res
}

// Ray-cast output data. The ray hits at p1 + fraction * (p2 - p1), where p1 and p2
// come from b2RayCastInput.
type B2RayCastOutput struct {
	Normal   B2Vec2
	Fraction float32
}

func MakeB2RayCastOutput() B2RayCastOutput {
	return B2RayCastOutput{
		Normal:   MakeB2Vec2(0, 0),
		Fraction: 0,
	}
}

// An axis aligned bounding box.
type B2AABB struct {
	LowerBound B2Vec2 // the lower vertex
	UpperBound B2Vec2 // the upper vertex
}

func MakeB2AABB() B2AABB {
	return B2AABB{
		LowerBound: MakeB2Vec2(0, 0),
		UpperBound: MakeB2Vec2(0, 0),
	}
}

func NewB2AABB() *B2AABB {
	res := MakeB2AABB()
	return &res
}

func MakeB2AABBFromBounds(lowerX, lowerY, upperX, upperY float32) B2AABB {
	return B2AABB{
		LowerBound: MakeB2Vec2(lowerX, lowerY),
		UpperBound: MakeB2Vec2(upperX, upperY),
	}
}

// Get the center of the AABB.
func (bb B2AABB) GetCenter() B2Vec2 {
	return B2Vec2MulScalar(
		0.5,
		B2Vec2Add(bb.LowerBound, bb.UpperBound),
	)
}

// Get the extents of the AABB (half-widths).
func (bb B2AABB) GetExtents() B2Vec2 {
	return B2Vec2MulScalar(
		0.5,
		B2Vec2Sub(bb.UpperBound, bb.LowerBound),
	)
}

// Get the perimeter length
func (bb B2AABB) GetPerimeter() float32 {
	wx := bb.UpperBound[0] - bb.LowerBound[0]
	wy := bb.UpperBound[1] - bb.LowerBound[1]
	return 2.0 * (wx + wy)
}

// Combine an AABB into this one.
func (bb *B2AABB) CombineInPlace(aabb B2AABB) {
	bb.LowerBound = B2Vec2Min(bb.LowerBound, aabb.LowerBound)
	bb.UpperBound = B2Vec2Max(bb.UpperBound, aabb.UpperBound)
}

// Combine two AABBs into this one.
func (bb *B2AABB) CombineTwoInPlace(aabb1, aabb2 B2AABB) {
	bb.LowerBound = B2Vec2Min(aabb1.LowerBound, aabb2.LowerBound)
	bb.UpperBound = B2Vec2Max(aabb1.UpperBound, aabb2.UpperBound)
}

func B2AABBUnion(a, b B2AABB) B2AABB {
	res := MakeB2AABB()
	res.CombineTwoInPlace(a, b)
	return res
}

// Does this aabb contain the provided AABB.
func (bb B2AABB) Contains(aabb B2AABB) bool {
	return (bb.LowerBound[0] <= aabb.LowerBound[0] &&
		bb.LowerBound[1] <= aabb.LowerBound[1] &&
		aabb.UpperBound[0] <= bb.UpperBound[0] &&
		aabb.UpperBound[1] <= bb.UpperBound[1])
}

func (bb B2AABB) IsValid() bool {
	d := B2Vec2Sub(bb.UpperBound, bb.LowerBound)
	valid := d[0] >= 0.0 && d[1] >= 0.0
	valid = valid && B2Vec2IsValid(bb.LowerBound) && B2Vec2IsValid(bb.UpperBound)
	return valid
}

// Grow the box by margin on every side.
func (bb B2AABB) Extend(margin float32) B2AABB {
	r := MakeB2Vec2(margin, margin)
	return B2AABB{
		LowerBound: B2Vec2Sub(bb.LowerBound, r),
		UpperBound: B2Vec2Add(bb.UpperBound, r),
	}
}

// Stretch the box toward where the displacement will carry it.
// Only the leading side on each axis grows.
func (bb B2AABB) Predict(displacement B2Vec2, multiplier float32) B2AABB {
	d := B2Vec2MulScalar(multiplier, displacement)
	res := bb

	if d[0] < 0.0 {
		res.LowerBound[0] += d[0]
	} else {
		res.UpperBound[0] += d[0]
	}

	if d[1] < 0.0 {
		res.LowerBound[1] += d[1]
	} else {
		res.UpperBound[1] += d[1]
	}

	return res
}

func (bb B2AABB) String() string {
	return fmt.Sprintf("[(%g, %g), (%g, %g)]",
		bb.LowerBound[0], bb.LowerBound[1], bb.UpperBound[0], bb.UpperBound[1])
}

func B2TestOverlapBoundingBoxes(a, b B2AABB) bool {

	d1 := B2Vec2Sub(b.LowerBound, a.UpperBound)
	d2 := B2Vec2Sub(a.LowerBound, b.UpperBound)

	if d1[0] > 0.0 || d1[1] > 0.0 {
		return false
	}

	if d2[0] > 0.0 || d2[1] > 0.0 {
		return false
	}

	return true
}

// From Real-time Collision Detection, p179.
func (bb B2AABB) RayCast(output *B2RayCastOutput, input B2RayCastInput) bool {
	var tmin float32 = -B2_maxFloat
	var tmax float32 = B2_maxFloat

	p := input.P1
	d := B2Vec2Sub(input.P2, input.P1)
	absD := B2Vec2Abs(d)

	normal := MakeB2Vec2(0, 0)

	for i := 0; i < 2; i++ {
		if absD[i] < B2_epsilon {
			// Parallel.
			if p[i] < bb.LowerBound[i] || bb.UpperBound[i] < p[i] {
				return false
			}
		} else {
			inv_d := 1.0 / d[i]
			t1 := (bb.LowerBound[i] - p[i]) * inv_d
			t2 := (bb.UpperBound[i] - p[i]) * inv_d

			// Sign of the normal vector.
			var s float32 = -1.0

			if t1 > t2 {
				t1, t2 = t2, t1
				s = 1.0
			}

			// Push the min up
			if t1 > tmin {
				normal = MakeB2Vec2(0, 0)
				normal[i] = s
				tmin = t1
			}

			// Pull the max down
			tmax = min(tmax, t2)

			if tmin > tmax {
				return false
			}
		}
	}

	// Does the ray start inside the box?
	// Does the ray intersect beyond the max fraction?
	if tmin < 0.0 || input.MaxFraction < tmin {
		return false
	}

	// Intersection.
	output.Fraction = tmin
	output.Normal = normal
	return true
}
