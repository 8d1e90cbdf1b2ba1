package native

import (
	box2d "github.com/jbox2d/box2d"
	log "github.com/sirupsen/logrus"
)

// TreeCallback receives every proxy overlapping a query region.
// Returning false stops the query.
type TreeCallback interface {
	TreeCallback(proxyID int32) bool
}

// RaycastWrapper receives every proxy reached by a ray and returns the new
// max fraction: 0 stops, maxFraction continues, anything in between clips.
type RaycastWrapper interface {
	Callback(p1x, p1y, p2x, p2y, maxFraction float32, nodeID int32) float32
}

// PairCallback receives the host objects of each new broad-phase pair.
type PairCallback interface {
	AddPair(userDataA, userDataB interface{})
}

type TreeCallbackFunc func(proxyID int32) bool

func (f TreeCallbackFunc) TreeCallback(proxyID int32) bool {
	return f(proxyID)
}

type RaycastFunc func(p1x, p1y, p2x, p2y, maxFraction float32, nodeID int32) float32

func (f RaycastFunc) Callback(p1x, p1y, p2x, p2y, maxFraction float32, nodeID int32) float32 {
	return f(p1x, p1y, p2x, p2y, maxFraction, nodeID)
}

type PairCallbackFunc func(userDataA, userDataB interface{})

func (f PairCallbackFunc) AddPair(userDataA, userDataB interface{}) {
	f(userDataA, userDataB)
}

// The helpers below live for one traversal: the host target is bound once
// when the call starts and reused for every invocation.

type treeCallbackHelper struct {
	callback TreeCallback
}

func (h treeCallbackHelper) queryCallback(proxyId int) bool {
	return h.callback.TreeCallback(int32(proxyId))
}

type treeRaycastHelper struct {
	callback RaycastWrapper
}

func (h treeRaycastHelper) rayCastCallback(input box2d.B2RayCastInput, nodeId int) float32 {
	p1 := input.P1
	p2 := input.P2
	return h.callback.Callback(p1.X(), p1.Y(), p2.X(), p2.Y(), input.MaxFraction, int32(nodeId))
}

type pairCallbackHelper struct {
	env      *Env
	callback PairCallback
	handle   int64
}

func (h pairCallbackHelper) addPair(userData1 interface{}, userData2 interface{}) {
	obj1, err := h.env.resolveUserData(userData1)
	if err != nil {
		log.WithField("handle", h.handle).WithError(err).Error("dropping pair")
		return
	}
	obj2, err := h.env.resolveUserData(userData2)
	if err != nil {
		log.WithField("handle", h.handle).WithError(err).Error("dropping pair")
		return
	}
	h.callback.AddPair(obj1, obj2)
}
