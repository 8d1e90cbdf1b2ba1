package native

import (
	"fmt"

	box2d "github.com/jbox2d/box2d"
	log "github.com/sirupsen/logrus"
)

var trees handleTable[box2d.B2DynamicTree]

// DynamicTreeJNI is the host side object of a bare native dynamic tree.
type DynamicTreeJNI struct {
	NativeAddress int64

	env *Env
}

func NewDynamicTreeJNI(env *Env) *DynamicTreeJNI {
	tree := &DynamicTreeJNI{env: env}
	if err := tree.CreateNativeTree(); err != nil {
		panic(err)
	}
	return tree
}

func (t *DynamicTreeJNI) CreateNativeTree() error {
	if t.NativeAddress != 0 {
		return fmt.Errorf("%w: %d", ErrHandleInUse, t.NativeAddress)
	}
	tree := box2d.NewB2DynamicTree()
	t.NativeAddress = trees.put(tree)
	tree.SetUserDataReleaser(t.env.releaser("tree", t.NativeAddress))

	log.WithField("handle", t.NativeAddress).Debug("created native dynamic tree")
	return nil
}

// FreeNative releases the reference of every live proxy, then the instance.
func (t *DynamicTreeJNI) FreeNative() error {
	tree, err := trees.get(t.NativeAddress)
	if err != nil {
		return err
	}

	count := tree.GetProxyCount()
	if err := tree.Free(); err != nil {
		return err
	}
	if _, err := trees.remove(t.NativeAddress); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"handle":  t.NativeAddress,
		"proxies": count,
	}).Debug("freed native dynamic tree")
	t.NativeAddress = 0
	return nil
}

func (t *DynamicTreeJNI) tree() (*box2d.B2DynamicTree, error) {
	return trees.get(t.NativeAddress)
}

func (t *DynamicTreeJNI) CreateProxy(lowerX, lowerY, upperX, upperY float32, userData interface{}) (int32, error) {
	tree, err := t.tree()
	if err != nil {
		return box2d.B2_nullNode, err
	}

	bounds := box2d.MakeB2AABBFromBounds(lowerX, lowerY, upperX, upperY)
	ref := t.env.NewGlobalRef(userData)
	id, err := tree.CreateProxy(bounds, ref)
	if err != nil {
		_ = t.env.DeleteGlobalRef(ref)
		return box2d.B2_nullNode, err
	}
	return int32(id), nil
}

func (t *DynamicTreeJNI) DestroyProxy(proxy int32) error {
	tree, err := t.tree()
	if err != nil {
		return err
	}
	return tree.DestroyProxy(int(proxy))
}

// MoveProxy reports whether the proxy was reinserted.
func (t *DynamicTreeJNI) MoveProxy(proxy int32, lowerX, lowerY, upperX, upperY, dispX, dispY float32) (bool, error) {
	tree, err := t.tree()
	if err != nil {
		return false, err
	}
	bounds := box2d.MakeB2AABBFromBounds(lowerX, lowerY, upperX, upperY)
	return tree.MoveProxy(int(proxy), bounds, box2d.MakeB2Vec2(dispX, dispY))
}

func (t *DynamicTreeJNI) GetUserData(proxy int32) (interface{}, error) {
	tree, err := t.tree()
	if err != nil {
		return nil, err
	}
	data, err := tree.GetUserData(int(proxy))
	if err != nil {
		return nil, err
	}
	return t.env.resolveUserData(data)
}

func (t *DynamicTreeJNI) GetFat(proxy int32) (AABB2, error) {
	tree, err := t.tree()
	if err != nil {
		return AABB2{}, err
	}
	aabb, err := tree.GetFatAABB(int(proxy))
	if err != nil {
		return AABB2{}, err
	}
	return makeAABB2(aabb), nil
}

func (t *DynamicTreeJNI) Query(callback TreeCallback, lowerX, lowerY, upperX, upperY float32) error {
	if callback == nil {
		return nil
	}
	tree, err := t.tree()
	if err != nil {
		return err
	}
	bounds := box2d.MakeB2AABBFromBounds(lowerX, lowerY, upperX, upperY)
	helper := treeCallbackHelper{callback: callback}
	return tree.Query(helper.queryCallback, bounds)
}

func (t *DynamicTreeJNI) Raycast(callback RaycastWrapper, p1x, p1y, p2x, p2y, maxFraction float32) error {
	if callback == nil {
		return nil
	}
	tree, err := t.tree()
	if err != nil {
		return err
	}
	helper := treeRaycastHelper{callback: callback}
	input := box2d.MakeB2RayCastInput()
	input.P1 = box2d.MakeB2Vec2(p1x, p1y)
	input.P2 = box2d.MakeB2Vec2(p2x, p2y)
	input.MaxFraction = maxFraction
	return tree.RayCast(helper.rayCastCallback, input)
}

// ComputeHeight walks the tree instead of trusting the cached heights.
func (t *DynamicTreeJNI) ComputeHeight() (int32, error) {
	tree, err := t.tree()
	if err != nil {
		return 0, err
	}
	return int32(tree.ComputeHeight()), nil
}

func (t *DynamicTreeJNI) GetHeight() (int32, error) {
	tree, err := t.tree()
	if err != nil {
		return 0, err
	}
	return int32(tree.GetHeight()), nil
}

func (t *DynamicTreeJNI) GetMaxBalance() (int32, error) {
	tree, err := t.tree()
	if err != nil {
		return 0, err
	}
	return int32(tree.GetMaxBalance()), nil
}

func (t *DynamicTreeJNI) GetAreaRatio() (float32, error) {
	tree, err := t.tree()
	if err != nil {
		return 0, err
	}
	return tree.GetAreaRatio(), nil
}

func (t *DynamicTreeJNI) GetInsertionCount() (int32, error) {
	tree, err := t.tree()
	if err != nil {
		return 0, err
	}
	return int32(tree.GetInsertionCount()), nil
}
