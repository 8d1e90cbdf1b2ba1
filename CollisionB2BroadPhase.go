package box2d

import (
	"fmt"
	"sort"
)

type B2BroadPhaseAddPairCallback func(userDataA interface{}, userDataB interface{})

type B2Pair struct {
	ProxyIdA int
	ProxyIdB int

	// Slot generations at the time the pair was found.
	GenerationA uint32
	GenerationB uint32
}

const E_nullProxy = -1

/// The broad-phase is used for computing pairs and performing volume queries and ray casts.
/// This broad-phase does not persist pairs. Instead, this reports potentially new pairs.
/// It is up to the client to consume the new pairs and to track subsequent overlap.
///
/// A proxy id is in the move buffer exactly once while its moved flag is set.
type B2BroadPhase struct {
	M_tree B2DynamicTree

	M_proxyCount int

	M_moveBuffer []int
	M_pairBuffer []B2Pair

	M_queryProxyId int

	// Set while UpdatePairs runs.
	M_updating bool
}

// Sorts the pair buffer so pairs are reported in id order.
type PairByLessThan []B2Pair

func (a PairByLessThan) Len() int      { return len(a) }
func (a PairByLessThan) Swap(i, j int) { a[i], a[j] = a[j], a[i] }
func (a PairByLessThan) Less(i, j int) bool {
	if a[i].ProxyIdA < a[j].ProxyIdA {
		return true
	}

	if a[i].ProxyIdA == a[j].ProxyIdA {
		return a[i].ProxyIdB < a[j].ProxyIdB
	}

	return false
}

func (bp B2BroadPhase) GetUserData(proxyId int) (interface{}, error) {
	return bp.M_tree.GetUserData(proxyId)
}

/// Test overlap of fat AABBs.
func (bp B2BroadPhase) TestOverlap(proxyIdA int, proxyIdB int) (bool, error) {
	aabbA, err := bp.M_tree.GetFatAABB(proxyIdA)
	if err != nil {
		return false, err
	}
	aabbB, err := bp.M_tree.GetFatAABB(proxyIdB)
	if err != nil {
		return false, err
	}
	return B2TestOverlapBoundingBoxes(aabbA, aabbB), nil
}

func (bp B2BroadPhase) GetFatAABB(proxyId int) (B2AABB, error) {
	return bp.M_tree.GetFatAABB(proxyId)
}

func (bp B2BroadPhase) GetProxyCount() int {
	return bp.M_proxyCount
}

func (bp B2BroadPhase) GetTreeHeight() int {
	return bp.M_tree.GetHeight()
}

func (bp B2BroadPhase) GetTreeBalance() int {
	return bp.M_tree.GetMaxBalance()
}

func (bp B2BroadPhase) GetTreeQuality() float32 {
	return bp.M_tree.GetAreaRatio()
}

func (bp B2BroadPhase) Validate() error {
	return bp.M_tree.Validate()
}

/// Update the pairs. This results in pair callbacks. This can only add pairs.
///
/// Every moved proxy is queried before any callback runs, and the moved flags
/// are cleared at that point. Callbacks may then create, destroy, move or touch
/// proxies: pairs whose proxy went away are skipped and new moves are kept
/// for the next update.
func (bp *B2BroadPhase) UpdatePairs(addPairCallback B2BroadPhaseAddPairCallback) error {
	if bp.M_updating {
		return ErrBroadPhaseLocked
	}
	if addPairCallback == nil {
		return nil
	}

	bp.M_updating = true
	defer func() { bp.M_updating = false }()

	// Reset pair buffer
	bp.M_pairBuffer = bp.M_pairBuffer[:0]

	// Perform tree queries for all moving proxies.
	moves := bp.M_moveBuffer
	for _, proxyId := range moves {
		bp.M_queryProxyId = proxyId
		if proxyId == E_nullProxy {
			continue
		}

		// We have to query the tree with the fat AABB so that
		// we don't fail to create a pair that may touch later.
		fatAABB := bp.M_tree.M_nodes[proxyId].Aabb

		// Query tree, create pairs and add them pair buffer.
		// Stored fat AABBs are always valid.
		err := bp.M_tree.Query(bp.queryCallback, fatAABB)
		B2Assert(err == nil)
	}
	bp.M_queryProxyId = E_nullProxy

	// Clear move flags
	for _, proxyId := range moves {
		if proxyId == E_nullProxy {
			continue
		}
		bp.M_tree.ClearMoved(proxyId)
	}

	// Reset move buffer
	bp.M_moveBuffer = bp.M_moveBuffer[:0]

	sort.Sort(PairByLessThan(bp.M_pairBuffer))

	// Send pairs to caller
	for i := 0; i < len(bp.M_pairBuffer); i++ {
		primaryPair := bp.M_pairBuffer[i]
		if !bp.isCurrent(primaryPair.ProxyIdA, primaryPair.GenerationA) ||
			!bp.isCurrent(primaryPair.ProxyIdB, primaryPair.GenerationB) {
			// Destroyed by an earlier callback.
			continue
		}

		userDataA := bp.M_tree.M_nodes[primaryPair.ProxyIdA].UserData
		userDataB := bp.M_tree.M_nodes[primaryPair.ProxyIdB].UserData

		addPairCallback(userDataA, userDataB)
	}

	return nil
}

func (bp B2BroadPhase) isCurrent(proxyId int, generation uint32) bool {
	return bp.M_tree.isLiveLeaf(proxyId) && bp.M_tree.generation(proxyId) == generation
}

///////////////////////////////////////////////////////////////////////////////
///////////////////////////////////////////////////////////////////////////////
///////////////////////////////////////////////////////////////////////////////
// BroadPhase.cpp
///////////////////////////////////////////////////////////////////////////////
///////////////////////////////////////////////////////////////////////////////
///////////////////////////////////////////////////////////////////////////////

func MakeB2BroadPhase() B2BroadPhase {
	return MakeB2BroadPhaseWithSettings(MakeB2DefaultTreeSettings())
}

func MakeB2BroadPhaseWithSettings(settings B2TreeSettings) B2BroadPhase {
	return B2BroadPhase{
		M_tree:       MakeB2DynamicTreeWithSettings(settings),
		M_proxyCount: 0,

		M_pairBuffer: make([]B2Pair, 0, B2_initialPairCapacity),
		M_moveBuffer: make([]int, 0, B2_initialMoveCapacity),

		M_queryProxyId: E_nullProxy,
	}
}

func NewB2BroadPhase() *B2BroadPhase {
	res := MakeB2BroadPhase()
	return &res
}

func (bp *B2BroadPhase) SetUserDataReleaser(releaser B2TreeUserDataReleaser) {
	bp.M_tree.SetUserDataReleaser(releaser)
}

/// Create a proxy with an initial AABB. Pairs are not reported until
/// UpdatePairs is called.
func (bp *B2BroadPhase) CreateProxy(aabb B2AABB, userData interface{}) (int, error) {
	proxyId, err := bp.M_tree.CreateProxy(aabb, userData)
	if err != nil {
		return E_nullProxy, err
	}
	bp.M_proxyCount++
	bp.bufferMove(proxyId)
	return proxyId, nil
}

/// Destroy a proxy. It is up to the client to remove any pairs.
func (bp *B2BroadPhase) DestroyProxy(proxyId int) error {
	if err := bp.M_tree.DestroyProxy(proxyId); err != nil {
		return err
	}
	bp.unBufferMove(proxyId)
	bp.M_proxyCount--
	return nil
}

/// Call MoveProxy as many times as you like, then when you are done
/// call UpdatePairs to finalized the proxy pairs (for your time step).
func (bp *B2BroadPhase) MoveProxy(proxyId int, aabb B2AABB, displacement B2Vec2) error {
	buffered := bp.M_tree.WasMoved(proxyId)
	moved, err := bp.M_tree.MoveProxy(proxyId, aabb, displacement)
	if err != nil {
		return err
	}
	if moved && !buffered {
		bp.bufferMove(proxyId)
	}
	return nil
}

/// Call to trigger a re-processing of it's pairs on the next call to UpdatePairs.
func (bp *B2BroadPhase) TouchProxy(proxyId int) error {
	if err := bp.M_tree.checkProxy(proxyId); err != nil {
		return err
	}
	if !bp.M_tree.WasMoved(proxyId) {
		bp.M_tree.SetMoved(proxyId)
		bp.bufferMove(proxyId)
	}
	return nil
}

func (bp *B2BroadPhase) bufferMove(proxyId int) {
	bp.M_moveBuffer = append(bp.M_moveBuffer, proxyId)
}

func (bp *B2BroadPhase) unBufferMove(proxyId int) {
	for i := range bp.M_moveBuffer {
		if bp.M_moveBuffer[i] == proxyId {
			bp.M_moveBuffer[i] = E_nullProxy
		}
	}
}

// This is called from B2DynamicTree.Query when we are gathering pairs.
func (bp *B2BroadPhase) queryCallback(proxyId int) bool {

	// A proxy cannot form a pair with itself.
	if proxyId == bp.M_queryProxyId {
		return true
	}

	moved := bp.M_tree.M_nodes[proxyId].Moved
	if moved && proxyId > bp.M_queryProxyId {
		// Both proxies are moving. Avoid duplicate pairs.
		return true
	}

	proxyIdA := min(proxyId, bp.M_queryProxyId)
	proxyIdB := max(proxyId, bp.M_queryProxyId)
	bp.M_pairBuffer = append(bp.M_pairBuffer, B2Pair{
		ProxyIdA:    proxyIdA,
		ProxyIdB:    proxyIdB,
		GenerationA: bp.M_tree.generation(proxyIdA),
		GenerationB: bp.M_tree.generation(proxyIdB),
	})

	return true
}

/// Query an AABB for overlapping proxies. The callback
/// is called for each proxy that overlaps the supplied AABB.
func (bp *B2BroadPhase) Query(callback B2TreeQueryCallback, aabb B2AABB) error {
	return bp.M_tree.Query(callback, aabb)
}

/// Ray-cast against the proxies in the tree.
func (bp *B2BroadPhase) RayCast(callback B2TreeRayCastCallback, input B2RayCastInput) error {
	return bp.M_tree.RayCast(callback, input)
}

/// Shift the world origin. Useful for large worlds.
func (bp *B2BroadPhase) ShiftOrigin(newOrigin B2Vec2) error {
	return bp.M_tree.ShiftOrigin(newOrigin)
}

func (bp *B2BroadPhase) Iterate(visitor func(userData interface{})) {
	bp.M_tree.Iterate(visitor)
}

/// Release every proxy's user data through the releaser and empty the broad-phase.
func (bp *B2BroadPhase) Free() error {
	if bp.M_updating {
		return fmt.Errorf("%w: free", ErrBroadPhaseLocked)
	}
	if err := bp.M_tree.Free(); err != nil {
		return err
	}
	bp.M_proxyCount = 0
	bp.M_moveBuffer = bp.M_moveBuffer[:0]
	bp.M_pairBuffer = bp.M_pairBuffer[:0]
	return nil
}
