package box2d

import (
	"fmt"
	"math"
)

// @file
// Settings that can be overriden for your application
//

func B2Assert(a bool) {
	if !a {
		panic("B2Assert")
	}
}

const B2_maxFloat = math.MaxFloat32
const B2_epsilon = math.SmallestNonzeroFloat32

// Tunable Constants

// You can use this to change the length scale used by your game.
// For example for inches you could use 39.4.
const B2_lengthUnitsPerMeter = 1.0

// Dynamic tree

/// This is used to fatten AABBs in the dynamic tree. This allows proxies
/// to move by a small amount without triggering a tree adjustment.
/// This is in meters.
const B2_aabbExtension = 0.1 * B2_lengthUnitsPerMeter

/// This is used to fatten AABBs in the dynamic tree. This is used to predict
/// the future position based on the current displacement.
/// This is a dimensionless multiplier.
const B2_aabbMultiplier = 2.0

/// Node ids cross the native boundary as 32 bit integers.
const B2_maxNodeCount = math.MaxInt32

const B2_initialNodeCapacity = 16
const B2_initialMoveCapacity = 16
const B2_initialPairCapacity = 16

// Per instance overrides of the fattening constants.
type B2TreeSettings struct {
	AABBExtension  float32
	AABBMultiplier float32
}

func MakeB2DefaultTreeSettings() B2TreeSettings {
	return B2TreeSettings{
		AABBExtension:  B2_aabbExtension,
		AABBMultiplier: B2_aabbMultiplier,
	}
}

func (s B2TreeSettings) Validate() error {
	if !b2ValidSetting(s.AABBExtension) {
		return fmt.Errorf("%w: aabb extension %v", ErrInvalidSettings, s.AABBExtension)
	}
	if !b2ValidSetting(s.AABBMultiplier) {
		return fmt.Errorf("%w: aabb multiplier %v", ErrInvalidSettings, s.AABBMultiplier)
	}
	return nil
}

// Invalid fields fall back to the defaults.
func (s B2TreeSettings) sanitized() B2TreeSettings {
	def := MakeB2DefaultTreeSettings()
	if !b2ValidSetting(s.AABBExtension) {
		s.AABBExtension = def.AABBExtension
	}
	if !b2ValidSetting(s.AABBMultiplier) {
		s.AABBMultiplier = def.AABBMultiplier
	}
	return s
}

func b2ValidSetting(v float32) bool {
	return v >= 0.0 && !math.IsInf(float64(v), 1)
}
