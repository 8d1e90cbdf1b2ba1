package box2d

import (
	"math"
	"testing"
)

func TestAABBUnionAndPerimeter(t *testing.T) {
	a := MakeB2AABBFromBounds(0, 0, 2, 3)
	b := MakeB2AABBFromBounds(-1, 1, 1, 5)

	u := B2AABBUnion(a, b)
	if u != MakeB2AABBFromBounds(-1, 0, 2, 5) {
		t.Fatalf("union = %v", u)
	}
	if p := a.GetPerimeter(); p != 10 {
		t.Fatalf("perimeter = %v, want 10", p)
	}

	c := a
	c.CombineInPlace(b)
	if c != u {
		t.Fatalf("CombineInPlace = %v, want %v", c, u)
	}
	if !u.Contains(a) || !u.Contains(b) {
		t.Fatalf("union %v does not contain its inputs", u)
	}
	if a.Contains(u) {
		t.Fatalf("%v should not contain %v", a, u)
	}
	if center := a.GetCenter(); center != MakeB2Vec2(1, 1.5) {
		t.Fatalf("center = %v", center)
	}
	if extents := a.GetExtents(); extents != MakeB2Vec2(1, 1.5) {
		t.Fatalf("extents = %v", extents)
	}
}

func TestAABBOverlapIsInclusive(t *testing.T) {
	a := MakeB2AABBFromBounds(0, 0, 1, 1)

	cases := []struct {
		name string
		b    B2AABB
		want bool
	}{
		{"inside", MakeB2AABBFromBounds(0.25, 0.25, 0.75, 0.75), true},
		{"touching edge", MakeB2AABBFromBounds(1, 0, 2, 1), true},
		{"touching corner", MakeB2AABBFromBounds(1, 1, 2, 2), true},
		{"apart on x", MakeB2AABBFromBounds(1.5, 0, 2, 1), false},
		{"apart on y", MakeB2AABBFromBounds(0, -2, 1, -0.5), false},
		{"overlap on x only", MakeB2AABBFromBounds(0.5, 3, 2, 4), false},
	}

	for _, tc := range cases {
		if got := B2TestOverlapBoundingBoxes(a, tc.b); got != tc.want {
			t.Errorf("%s: overlap(a, b) = %v, want %v", tc.name, got, tc.want)
		}
		if got := B2TestOverlapBoundingBoxes(tc.b, a); got != tc.want {
			t.Errorf("%s: overlap(b, a) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestAABBExtendAndPredict(t *testing.T) {
	a := MakeB2AABBFromBounds(0, 0, 1, 1)

	fat := a.Extend(0.5)
	if fat != MakeB2AABBFromBounds(-0.5, -0.5, 1.5, 1.5) {
		t.Fatalf("extend = %v", fat)
	}

	right := fat.Predict(MakeB2Vec2(1, 0), 2)
	if right != MakeB2AABBFromBounds(-0.5, -0.5, 3.5, 1.5) {
		t.Fatalf("predict right = %v", right)
	}

	downLeft := fat.Predict(MakeB2Vec2(-0.5, -1), 2)
	if downLeft != MakeB2AABBFromBounds(-1.5, -2.5, 1.5, 1.5) {
		t.Fatalf("predict down-left = %v", downLeft)
	}

	if still := fat.Predict(MakeB2Vec2(0, 0), 2); still != fat {
		t.Fatalf("zero displacement changed the box: %v", still)
	}
}

func TestAABBIsValid(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))

	cases := []struct {
		aabb B2AABB
		want bool
	}{
		{MakeB2AABBFromBounds(0, 0, 1, 1), true},
		{MakeB2AABBFromBounds(1, 1, 1, 1), true},
		{MakeB2AABBFromBounds(2, 0, 1, 1), false},
		{MakeB2AABBFromBounds(0, 2, 1, 1), false},
		{MakeB2AABBFromBounds(nan, 0, 1, 1), false},
		{MakeB2AABBFromBounds(0, 0, inf, 1), false},
	}

	for i, tc := range cases {
		if got := tc.aabb.IsValid(); got != tc.want {
			t.Errorf("case %d: IsValid(%v) = %v, want %v", i, tc.aabb, got, tc.want)
		}
	}
}

func TestAABBRayCast(t *testing.T) {
	box := MakeB2AABBFromBounds(1, -1, 3, 1)

	input := MakeB2RayCastInput()
	input.P1 = MakeB2Vec2(0, 0)
	input.P2 = MakeB2Vec2(4, 0)
	input.MaxFraction = 1

	output := MakeB2RayCastOutput()
	if !box.RayCast(&output, input) {
		t.Fatal("expected a hit")
	}
	if output.Fraction != 0.25 {
		t.Fatalf("fraction = %v, want 0.25", output.Fraction)
	}
	if output.Normal != MakeB2Vec2(-1, 0) {
		t.Fatalf("normal = %v, want (-1, 0)", output.Normal)
	}

	input.MaxFraction = 0.2
	if box.RayCast(&output, input) {
		t.Fatal("hit beyond max fraction")
	}

	input.MaxFraction = 1
	input.P1 = MakeB2Vec2(0, 2)
	input.P2 = MakeB2Vec2(4, 2)
	if box.RayCast(&output, input) {
		t.Fatal("parallel ray outside the slab should miss")
	}
}
