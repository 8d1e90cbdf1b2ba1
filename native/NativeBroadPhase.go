package native

import (
	"fmt"

	box2d "github.com/jbox2d/box2d"
	log "github.com/sirupsen/logrus"
)

var phases handleTable[box2d.B2BroadPhase]

// AABB2 carries fat bounds back to the host.
type AABB2 struct {
	Lx, Ly, Ux, Uy float32
}

func makeAABB2(aabb box2d.B2AABB) AABB2 {
	return AABB2{
		Lx: aabb.LowerBound.X(),
		Ly: aabb.LowerBound.Y(),
		Ux: aabb.UpperBound.X(),
		Uy: aabb.UpperBound.Y(),
	}
}

// BroadPhaseJNI is the host side object of a native broad-phase.
// NativeAddress is zero until CreateNative and after FreeNative.
type BroadPhaseJNI struct {
	NativeAddress int64

	env      *Env
	settings box2d.B2TreeSettings
}

// NewBroadPhaseJNI creates a host object and its native broad-phase.
func NewBroadPhaseJNI(env *Env) *BroadPhaseJNI {
	return NewBroadPhaseJNIWithSettings(env, box2d.MakeB2DefaultTreeSettings())
}

func NewBroadPhaseJNIWithSettings(env *Env, settings box2d.B2TreeSettings) *BroadPhaseJNI {
	bp := &BroadPhaseJNI{env: env, settings: settings}
	if err := bp.CreateNative(); err != nil {
		// A fresh object cannot already own a handle.
		panic(err)
	}
	return bp
}

func (bp *BroadPhaseJNI) CreateNative() error {
	if bp.NativeAddress != 0 {
		return fmt.Errorf("%w: %d", ErrHandleInUse, bp.NativeAddress)
	}
	phase := box2d.MakeB2BroadPhaseWithSettings(bp.settings)
	bp.NativeAddress = phases.put(&phase)
	phase.SetUserDataReleaser(bp.env.releaser("broadphase", bp.NativeAddress))

	log.WithField("handle", bp.NativeAddress).Debug("created native broad-phase")
	return nil
}

// FreeNative releases the reference of every live proxy, then the instance.
func (bp *BroadPhaseJNI) FreeNative() error {
	phase, err := phases.get(bp.NativeAddress)
	if err != nil {
		return err
	}

	count := phase.GetProxyCount()
	if err := phase.Free(); err != nil {
		return err
	}
	if _, err := phases.remove(bp.NativeAddress); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"handle":  bp.NativeAddress,
		"proxies": count,
	}).Debug("freed native broad-phase")
	bp.NativeAddress = 0
	return nil
}

func (bp *BroadPhaseJNI) phase() (*box2d.B2BroadPhase, error) {
	return phases.get(bp.NativeAddress)
}

func (bp *BroadPhaseJNI) CreateProxy(lowerX, lowerY, upperX, upperY float32, userData interface{}) (int32, error) {
	phase, err := bp.phase()
	if err != nil {
		return box2d.E_nullProxy, err
	}

	bounds := box2d.MakeB2AABBFromBounds(lowerX, lowerY, upperX, upperY)
	ref := bp.env.NewGlobalRef(userData)
	id, err := phase.CreateProxy(bounds, ref)
	if err != nil {
		_ = bp.env.DeleteGlobalRef(ref)
		return box2d.E_nullProxy, err
	}
	return int32(id), nil
}

// DestroyProxy releases the proxy's global reference exactly once.
func (bp *BroadPhaseJNI) DestroyProxy(proxy int32) error {
	phase, err := bp.phase()
	if err != nil {
		return err
	}
	return phase.DestroyProxy(int(proxy))
}

func (bp *BroadPhaseJNI) MoveProxy(proxy int32, lowerX, lowerY, upperX, upperY, dispX, dispY float32) error {
	phase, err := bp.phase()
	if err != nil {
		return err
	}
	bounds := box2d.MakeB2AABBFromBounds(lowerX, lowerY, upperX, upperY)
	return phase.MoveProxy(int(proxy), bounds, box2d.MakeB2Vec2(dispX, dispY))
}

func (bp *BroadPhaseJNI) TouchProxy(proxy int32) error {
	phase, err := bp.phase()
	if err != nil {
		return err
	}
	return phase.TouchProxy(int(proxy))
}

func (bp *BroadPhaseJNI) GetUserData(proxy int32) (interface{}, error) {
	phase, err := bp.phase()
	if err != nil {
		return nil, err
	}
	data, err := phase.GetUserData(int(proxy))
	if err != nil {
		return nil, err
	}
	return bp.env.resolveUserData(data)
}

func (bp *BroadPhaseJNI) GetFat(proxy int32) (AABB2, error) {
	phase, err := bp.phase()
	if err != nil {
		return AABB2{}, err
	}
	aabb, err := phase.GetFatAABB(int(proxy))
	if err != nil {
		return AABB2{}, err
	}
	return makeAABB2(aabb), nil
}

func (bp *BroadPhaseJNI) TestOverlap(proxyA, proxyB int32) (bool, error) {
	phase, err := bp.phase()
	if err != nil {
		return false, err
	}
	return phase.TestOverlap(int(proxyA), int(proxyB))
}

func (bp *BroadPhaseJNI) GetProxyCount() (int32, error) {
	phase, err := bp.phase()
	if err != nil {
		return 0, err
	}
	return int32(phase.GetProxyCount()), nil
}

// UpdatePairs reports every new pair with the host objects of both proxies.
// A nil callback leaves the pending moves untouched.
func (bp *BroadPhaseJNI) UpdatePairs(callback PairCallback) error {
	if callback == nil {
		return nil
	}
	phase, err := bp.phase()
	if err != nil {
		return err
	}
	helper := pairCallbackHelper{env: bp.env, callback: callback, handle: bp.NativeAddress}
	return phase.UpdatePairs(helper.addPair)
}

func (bp *BroadPhaseJNI) Query(callback TreeCallback, lowerX, lowerY, upperX, upperY float32) error {
	if callback == nil {
		return nil
	}
	phase, err := bp.phase()
	if err != nil {
		return err
	}
	bounds := box2d.MakeB2AABBFromBounds(lowerX, lowerY, upperX, upperY)
	helper := treeCallbackHelper{callback: callback}
	return phase.Query(helper.queryCallback, bounds)
}

func (bp *BroadPhaseJNI) Raycast(callback RaycastWrapper, p1x, p1y, p2x, p2y, maxFraction float32) error {
	if callback == nil {
		return nil
	}
	phase, err := bp.phase()
	if err != nil {
		return err
	}
	helper := treeRaycastHelper{callback: callback}
	input := box2d.MakeB2RayCastInput()
	input.P1 = box2d.MakeB2Vec2(p1x, p1y)
	input.P2 = box2d.MakeB2Vec2(p2x, p2y)
	input.MaxFraction = maxFraction
	return phase.RayCast(helper.rayCastCallback, input)
}

func (bp *BroadPhaseJNI) GetTreeHeight() (int32, error) {
	phase, err := bp.phase()
	if err != nil {
		return 0, err
	}
	return int32(phase.GetTreeHeight()), nil
}

func (bp *BroadPhaseJNI) GetTreeBalance() (int32, error) {
	phase, err := bp.phase()
	if err != nil {
		return 0, err
	}
	return int32(phase.GetTreeBalance()), nil
}

func (bp *BroadPhaseJNI) GetTreeQuality() (float32, error) {
	phase, err := bp.phase()
	if err != nil {
		return 0, err
	}
	return phase.GetTreeQuality(), nil
}
