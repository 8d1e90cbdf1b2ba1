package box2d

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	log "github.com/sirupsen/logrus"
)

/// Called for each leaf overlapping the query region. Return false to
/// terminate the query.
type B2TreeQueryCallback func(nodeId int) bool

/// Called for each leaf the ray segment reaches. The return value is the new
/// max fraction: 0 (or less) terminates, input.MaxFraction continues unclipped,
/// anything in between clips the ray.
type B2TreeRayCastCallback func(input B2RayCastInput, nodeId int) float32

/// Receives the user data of a leaf exactly once, when the leaf is destroyed
/// or the tree is freed.
type B2TreeUserDataReleaser func(userData interface{})

const B2_nullNode = -1

type B2TreeNode struct {

	/// Enlarged AABB
	Aabb B2AABB

	UserData interface{}

	// union
	// {
	Parent int
	Next   int
	//};

	Child1 int
	Child2 int

	// leaf = 0, free node = -1
	Height int

	// Leaf only. Set on creation and reinsertion, cleared by the pair update.
	Moved bool

	// Bumped each time the slot is allocated.
	Generation uint32
}

func (node B2TreeNode) IsLeaf() bool {
	return node.Child1 == B2_nullNode
}

/// A dynamic AABB tree broad-phase, inspired by Nathanael Presson's btDbvt.
/// A dynamic tree arranges data in a binary tree to accelerate
/// queries such as volume queries and ray casts. Leafs are proxies
/// with an AABB. In the tree we expand the proxy AABB by the aabb extension
/// so that the proxy AABB is bigger than the client object. This allows the client
/// object to move by small amounts without triggering a tree update.
///
/// Nodes are pooled and relocatable, so we use node indices rather than pointers.
///
/// A tree is not safe for concurrent use. Callbacks may read from the tree
/// but must not create, destroy or move proxies while a traversal is running;
/// such calls fail with ErrTreeLocked.
type B2DynamicTree struct {
	M_root int

	M_nodes        []B2TreeNode
	M_nodeCount    int
	M_nodeCapacity int

	M_freeList int

	M_proxyCount     int
	M_insertionCount int

	M_settings B2TreeSettings
	M_releaser B2TreeUserDataReleaser

	// Number of traversals in progress.
	M_lockCount int
}

///////////////////////////////////////////////////////////////////////////////
///////////////////////////////////////////////////////////////////////////////
///////////////////////////////////////////////////////////////////////////////
// B2DynamicTree.cpp
///////////////////////////////////////////////////////////////////////////////
///////////////////////////////////////////////////////////////////////////////
///////////////////////////////////////////////////////////////////////////////

func MakeB2DynamicTree() B2DynamicTree {
	return MakeB2DynamicTreeWithSettings(MakeB2DefaultTreeSettings())
}

func MakeB2DynamicTreeWithSettings(settings B2TreeSettings) B2DynamicTree {
	tree := B2DynamicTree{}
	tree.M_settings = settings.sanitized()
	tree.reset()
	return tree
}

func NewB2DynamicTree() *B2DynamicTree {
	res := MakeB2DynamicTree()
	return &res
}

func (tree *B2DynamicTree) reset() {
	tree.M_root = B2_nullNode

	tree.M_nodeCapacity = B2_initialNodeCapacity
	tree.M_nodeCount = 0
	tree.M_nodes = make([]B2TreeNode, tree.M_nodeCapacity)

	// Build a linked list for the free list.
	for i := 0; i < tree.M_nodeCapacity-1; i++ {
		tree.M_nodes[i].Next = i + 1
		tree.M_nodes[i].Height = -1
	}

	tree.M_nodes[tree.M_nodeCapacity-1].Next = B2_nullNode
	tree.M_nodes[tree.M_nodeCapacity-1].Height = -1
	tree.M_freeList = 0

	tree.M_proxyCount = 0
	tree.M_insertionCount = 0
}

/// Install the hook that receives user data when a leaf goes away.
func (tree *B2DynamicTree) SetUserDataReleaser(releaser B2TreeUserDataReleaser) {
	tree.M_releaser = releaser
}

func (tree B2DynamicTree) GetSettings() B2TreeSettings {
	return tree.M_settings
}

func (tree B2DynamicTree) IsLocked() bool {
	return tree.M_lockCount > 0
}

func (tree B2DynamicTree) isLiveLeaf(proxyId int) bool {
	if proxyId < 0 || proxyId >= tree.M_nodeCapacity {
		return false
	}
	node := &tree.M_nodes[proxyId]
	return node.Height == 0 && node.IsLeaf()
}

func (tree B2DynamicTree) checkProxy(proxyId int) error {
	if !tree.isLiveLeaf(proxyId) {
		return fmt.Errorf("%w: %d", ErrInvalidProxy, proxyId)
	}
	return nil
}

func (tree B2DynamicTree) checkUnlocked(op string) error {
	if tree.M_lockCount > 0 {
		return fmt.Errorf("%w: %s", ErrTreeLocked, op)
	}
	return nil
}

// Allocate a node from the pool. Grow the pool if necessary.
func (tree *B2DynamicTree) allocateNode() int {

	// Expand the node pool as needed.
	if tree.M_freeList == B2_nullNode {
		B2Assert(tree.M_nodeCount == tree.M_nodeCapacity)

		if tree.M_nodeCapacity >= B2_maxNodeCount {
			panic(ErrNodeExhausted)
		}
		capacity := min(tree.M_nodeCapacity*2, B2_maxNodeCount)

		// The free list is empty. Rebuild a bigger pool.
		tree.M_nodes = append(tree.M_nodes, make([]B2TreeNode, capacity-tree.M_nodeCapacity)...)
		tree.M_nodeCapacity = capacity

		// Build a linked list for the free list. The parent
		// pointer becomes the "next" pointer.
		for i := tree.M_nodeCount; i < tree.M_nodeCapacity-1; i++ {
			tree.M_nodes[i].Next = i + 1
			tree.M_nodes[i].Height = -1
		}

		tree.M_nodes[tree.M_nodeCapacity-1].Next = B2_nullNode
		tree.M_nodes[tree.M_nodeCapacity-1].Height = -1
		tree.M_freeList = tree.M_nodeCount
	}

	// Peel a node off the free list.
	nodeId := tree.M_freeList
	node := &tree.M_nodes[nodeId]
	tree.M_freeList = node.Next
	node.Parent = B2_nullNode
	node.Next = B2_nullNode
	node.Child1 = B2_nullNode
	node.Child2 = B2_nullNode
	node.Height = 0
	node.UserData = nil
	node.Moved = false
	node.Generation++
	tree.M_nodeCount++

	return nodeId
}

// Return a node to the pool.
func (tree *B2DynamicTree) freeNode(nodeId int) {
	B2Assert(0 <= nodeId && nodeId < tree.M_nodeCapacity)
	B2Assert(0 < tree.M_nodeCount)
	node := &tree.M_nodes[nodeId]
	node.Next = tree.M_freeList
	node.Height = -1
	node.UserData = nil
	node.Moved = false
	tree.M_freeList = nodeId
	tree.M_nodeCount--
}

// Create a proxy in the tree as a leaf node. We return the index
// of the node instead of a pointer so that we can grow
// the node pool.
func (tree *B2DynamicTree) CreateProxy(aabb B2AABB, userData interface{}) (int, error) {
	if err := tree.checkUnlocked("create proxy"); err != nil {
		return B2_nullNode, err
	}
	if !aabb.IsValid() {
		return B2_nullNode, fmt.Errorf("%w: %v", ErrDegenerateAABB, aabb)
	}

	proxyId := tree.allocateNode()

	// Fatten the aabb.
	node := &tree.M_nodes[proxyId]
	node.Aabb = aabb.Extend(tree.M_settings.AABBExtension)
	node.UserData = userData
	node.Height = 0
	node.Moved = true

	tree.insertLeaf(proxyId)
	tree.M_proxyCount++

	return proxyId, nil
}

/// Destroy a proxy. The releaser sees the user data before the id is recycled.
func (tree *B2DynamicTree) DestroyProxy(proxyId int) error {
	if err := tree.checkUnlocked("destroy proxy"); err != nil {
		return err
	}
	if err := tree.checkProxy(proxyId); err != nil {
		return err
	}

	tree.removeLeaf(proxyId)
	tree.M_proxyCount--

	userData := tree.M_nodes[proxyId].UserData
	tree.M_nodes[proxyId].UserData = nil

	// The slot goes back to the pool even if the releaser panics.
	defer tree.freeNode(proxyId)

	if tree.M_releaser != nil {
		tree.M_lockCount++
		defer func() { tree.M_lockCount-- }()
		tree.M_releaser(userData)
	}
	return nil
}

/// Move a proxy with a swepted AABB. If the proxy has moved outside of its fattened AABB,
/// then the proxy is removed from the tree and re-inserted. Otherwise
/// the function returns immediately.
/// @return true if the proxy was re-inserted.
func (tree *B2DynamicTree) MoveProxy(proxyId int, aabb B2AABB, displacement B2Vec2) (bool, error) {
	if err := tree.checkUnlocked("move proxy"); err != nil {
		return false, err
	}
	if err := tree.checkProxy(proxyId); err != nil {
		return false, err
	}
	if !aabb.IsValid() {
		return false, fmt.Errorf("%w: %v", ErrDegenerateAABB, aabb)
	}
	if !B2Vec2IsValid(displacement) {
		return false, fmt.Errorf("%w: displacement %v", ErrDegenerateAABB, displacement)
	}

	if tree.M_nodes[proxyId].Aabb.Contains(aabb) {
		return false, nil
	}

	tree.removeLeaf(proxyId)

	// Extend AABB, then predict AABB displacement.
	b := aabb.Extend(tree.M_settings.AABBExtension).Predict(displacement, tree.M_settings.AABBMultiplier)

	tree.M_nodes[proxyId].Aabb = b
	tree.M_nodes[proxyId].Moved = true

	tree.insertLeaf(proxyId)

	return true, nil
}

func (tree B2DynamicTree) GetUserData(proxyId int) (interface{}, error) {
	if err := tree.checkProxy(proxyId); err != nil {
		return nil, err
	}
	return tree.M_nodes[proxyId].UserData, nil
}

func (tree B2DynamicTree) GetFatAABB(proxyId int) (B2AABB, error) {
	if err := tree.checkProxy(proxyId); err != nil {
		return MakeB2AABB(), err
	}
	return tree.M_nodes[proxyId].Aabb, nil
}

func (tree B2DynamicTree) WasMoved(proxyId int) bool {
	if !tree.isLiveLeaf(proxyId) {
		return false
	}
	return tree.M_nodes[proxyId].Moved
}

func (tree *B2DynamicTree) ClearMoved(proxyId int) {
	if tree.isLiveLeaf(proxyId) {
		tree.M_nodes[proxyId].Moved = false
	}
}

func (tree *B2DynamicTree) SetMoved(proxyId int) {
	if tree.isLiveLeaf(proxyId) {
		tree.M_nodes[proxyId].Moved = true
	}
}

func (tree B2DynamicTree) generation(proxyId int) uint32 {
	return tree.M_nodes[proxyId].Generation
}

/// Query an AABB for overlapping proxies. The callback
/// is called for each proxy that overlaps the supplied AABB.
func (tree *B2DynamicTree) Query(queryCallback B2TreeQueryCallback, aabb B2AABB) error {
	if !aabb.IsValid() {
		return fmt.Errorf("%w: %v", ErrDegenerateAABB, aabb)
	}

	tree.M_lockCount++
	defer func() { tree.M_lockCount-- }()

	stack := MakeB2GrowableStack()
	stack.Push(tree.M_root)

	for stack.GetCount() > 0 {
		nodeId := stack.Pop()
		if nodeId == B2_nullNode {
			continue
		}

		node := &tree.M_nodes[nodeId]

		if B2TestOverlapBoundingBoxes(node.Aabb, aabb) {
			if node.IsLeaf() {
				proceed := queryCallback(nodeId)
				if !proceed {
					return nil
				}
			} else {
				stack.Push(node.Child1)
				stack.Push(node.Child2)
			}
		}
	}

	return nil
}

/// Ray-cast against the proxies in the tree. This relies on the callback
/// to perform a exact ray-cast in the case were the proxy contains a shape.
/// The callback also performs the any collision filtering. This has performance
/// roughly equal to k * log(n), where k is the number of collisions and n is the
/// number of proxies in the tree.
func (tree *B2DynamicTree) RayCast(rayCastCallback B2TreeRayCastCallback, input B2RayCastInput) error {
	p1 := input.P1
	p2 := input.P2
	r := B2Vec2Sub(p2, p1)
	if B2Vec2Dot(r, r) <= 0.0 || !B2Vec2IsValid(r) {
		return fmt.Errorf("%w: %v -> %v", ErrDegenerateRay, p1, p2)
	}
	r = r.Normalize()

	tree.M_lockCount++
	defer func() { tree.M_lockCount-- }()

	// v is perpendicular to the segment.
	v := B2Vec2CrossScalarVector(1.0, r)
	abs_v := B2Vec2Abs(v)

	// Separating axis for segment (Gino, p80).
	// |dot(v, p1 - c)| > dot(|v|, h)

	maxFraction := input.MaxFraction

	// Build a bounding box for the segment.
	segmentAABB := MakeB2AABB()
	{
		t := B2Vec2Add(p1, B2Vec2MulScalar(maxFraction, B2Vec2Sub(p2, p1)))
		segmentAABB.LowerBound = B2Vec2Min(p1, t)
		segmentAABB.UpperBound = B2Vec2Max(p1, t)
	}

	stack := MakeB2GrowableStack()
	stack.Push(tree.M_root)

	for stack.GetCount() > 0 {
		nodeId := stack.Pop()
		if nodeId == B2_nullNode {
			continue
		}

		node := &tree.M_nodes[nodeId]

		if !B2TestOverlapBoundingBoxes(node.Aabb, segmentAABB) {
			continue
		}

		// Separating axis for segment (Gino, p80).
		// |dot(v, p1 - c)| > dot(|v|, h)
		c := node.Aabb.GetCenter()
		h := node.Aabb.GetExtents()

		separation := mgl32.Abs(B2Vec2Dot(v, B2Vec2Sub(p1, c))) - B2Vec2Dot(abs_v, h)
		if separation > 0.0 {
			continue
		}

		if node.IsLeaf() {
			subInput := MakeB2RayCastInput()
			subInput.P1 = input.P1
			subInput.P2 = input.P2
			subInput.MaxFraction = maxFraction

			value := rayCastCallback(subInput, nodeId)

			if value <= 0.0 {
				// The client has terminated the ray cast.
				return nil
			}

			if value < maxFraction {
				// Update segment bounding box.
				maxFraction = value
				t := B2Vec2Add(p1, B2Vec2MulScalar(maxFraction, B2Vec2Sub(p2, p1)))
				segmentAABB.LowerBound = B2Vec2Min(p1, t)
				segmentAABB.UpperBound = B2Vec2Max(p1, t)
			}
		} else {
			stack.Push(node.Child1)
			stack.Push(node.Child2)
		}
	}

	return nil
}

/// Visit the user data of every proxy once.
func (tree *B2DynamicTree) Iterate(visitor func(userData interface{})) {
	tree.M_lockCount++
	defer func() { tree.M_lockCount-- }()

	for i := 0; i < tree.M_nodeCapacity; i++ {
		if tree.isLiveLeaf(i) {
			visitor(tree.M_nodes[i].UserData)
		}
	}
}

/// Release every proxy's user data and drop the node pool. The tree is empty
/// and usable afterwards.
func (tree *B2DynamicTree) Free() error {
	if err := tree.checkUnlocked("free"); err != nil {
		return err
	}
	if tree.M_releaser != nil {
		tree.Iterate(tree.M_releaser)
	}
	tree.reset()
	return nil
}

func (tree *B2DynamicTree) insertLeaf(leaf int) {
	tree.M_insertionCount++

	if tree.M_root == B2_nullNode {
		tree.M_root = leaf
		tree.M_nodes[tree.M_root].Parent = B2_nullNode
		return
	}

	// Find the best sibling for this node
	leafAABB := tree.M_nodes[leaf].Aabb
	index := tree.M_root
	for !tree.M_nodes[index].IsLeaf() {
		child1 := tree.M_nodes[index].Child1
		child2 := tree.M_nodes[index].Child2

		area := tree.M_nodes[index].Aabb.GetPerimeter()

		combinedArea := B2AABBUnion(tree.M_nodes[index].Aabb, leafAABB).GetPerimeter()

		// Cost of creating a new parent for this node and the new leaf
		cost := 2.0 * combinedArea

		// Minimum cost of pushing the leaf further down the tree
		inheritanceCost := 2.0 * (combinedArea - area)

		// Cost of descending into child1 and child2
		cost1 := tree.descendCost(child1, leafAABB) + inheritanceCost
		cost2 := tree.descendCost(child2, leafAABB) + inheritanceCost

		// Descend according to the minimum cost. Pairing the leaf with a
		// subtree taller than one would leave an imbalance the rotations
		// on the way back up cannot repair.
		if cost < cost1 && cost < cost2 && tree.M_nodes[index].Height <= 1 {
			break
		}

		// Descend
		if cost1 < cost2 {
			index = child1
		} else {
			index = child2
		}
	}

	sibling := index

	// Create a new parent.
	oldParent := tree.M_nodes[sibling].Parent
	newParent := tree.allocateNode()
	tree.M_nodes[newParent].Parent = oldParent
	tree.M_nodes[newParent].UserData = nil
	tree.M_nodes[newParent].Aabb = B2AABBUnion(leafAABB, tree.M_nodes[sibling].Aabb)
	tree.M_nodes[newParent].Height = tree.M_nodes[sibling].Height + 1

	if oldParent != B2_nullNode {
		// The sibling was not the root.
		if tree.M_nodes[oldParent].Child1 == sibling {
			tree.M_nodes[oldParent].Child1 = newParent
		} else {
			tree.M_nodes[oldParent].Child2 = newParent
		}
	} else {
		// The sibling was the root.
		tree.M_root = newParent
	}

	tree.M_nodes[newParent].Child1 = sibling
	tree.M_nodes[newParent].Child2 = leaf
	tree.M_nodes[sibling].Parent = newParent
	tree.M_nodes[leaf].Parent = newParent

	// Walk back up the tree fixing heights and AABBs
	tree.refitAncestors(tree.M_nodes[leaf].Parent)
}

func (tree B2DynamicTree) descendCost(child int, leafAABB B2AABB) float32 {
	aabb := B2AABBUnion(leafAABB, tree.M_nodes[child].Aabb)
	if tree.M_nodes[child].IsLeaf() {
		return aabb.GetPerimeter()
	}

	oldArea := tree.M_nodes[child].Aabb.GetPerimeter()
	newArea := aabb.GetPerimeter()
	return newArea - oldArea
}

func (tree *B2DynamicTree) removeLeaf(leaf int) {
	if leaf == tree.M_root {
		tree.M_root = B2_nullNode
		return
	}

	parent := tree.M_nodes[leaf].Parent
	grandParent := tree.M_nodes[parent].Parent
	sibling := tree.M_nodes[parent].Child1
	if sibling == leaf {
		sibling = tree.M_nodes[parent].Child2
	}

	if grandParent != B2_nullNode {
		// Destroy parent and connect sibling to grandParent.
		if tree.M_nodes[grandParent].Child1 == parent {
			tree.M_nodes[grandParent].Child1 = sibling
		} else {
			tree.M_nodes[grandParent].Child2 = sibling
		}
		tree.M_nodes[sibling].Parent = grandParent
		tree.freeNode(parent)

		// Adjust ancestor bounds.
		tree.refitAncestors(grandParent)
	} else {
		tree.M_root = sibling
		tree.M_nodes[sibling].Parent = B2_nullNode
		tree.freeNode(parent)
	}

	tree.M_nodes[leaf].Parent = B2_nullNode
}

func (tree *B2DynamicTree) refitAncestors(index int) {
	for index != B2_nullNode {
		index = tree.balance(index)

		child1 := tree.M_nodes[index].Child1
		child2 := tree.M_nodes[index].Child2

		B2Assert(child1 != B2_nullNode)
		B2Assert(child2 != B2_nullNode)

		tree.M_nodes[index].Height = 1 + max(tree.M_nodes[child1].Height, tree.M_nodes[child2].Height)
		tree.M_nodes[index].Aabb.CombineTwoInPlace(tree.M_nodes[child1].Aabb, tree.M_nodes[child2].Aabb)

		index = tree.M_nodes[index].Parent
	}
}

// Perform a left or right rotation if node A is imbalanced.
// Returns the new root index.
func (tree *B2DynamicTree) balance(iA int) int {
	B2Assert(iA != B2_nullNode)

	A := &tree.M_nodes[iA]
	if A.IsLeaf() || A.Height < 2 {
		return iA
	}

	iB := A.Child1
	iC := A.Child2
	B2Assert(0 <= iB && iB < tree.M_nodeCapacity)
	B2Assert(0 <= iC && iC < tree.M_nodeCapacity)

	B := &tree.M_nodes[iB]
	C := &tree.M_nodes[iC]

	balance := C.Height - B.Height

	// Rotate C up
	if balance > 1 {
		iF := C.Child1
		iG := C.Child2
		B2Assert(0 <= iF && iF < tree.M_nodeCapacity)
		B2Assert(0 <= iG && iG < tree.M_nodeCapacity)
		F := &tree.M_nodes[iF]
		G := &tree.M_nodes[iG]

		// Swap A and C
		C.Child1 = iA
		C.Parent = A.Parent
		A.Parent = iC

		// A's old parent should point to C
		tree.replaceChild(C.Parent, iA, iC)

		// Rotate
		if F.Height > G.Height {
			C.Child2 = iF
			A.Child2 = iG
			G.Parent = iA
			A.Aabb.CombineTwoInPlace(B.Aabb, G.Aabb)
			C.Aabb.CombineTwoInPlace(A.Aabb, F.Aabb)

			A.Height = 1 + max(B.Height, G.Height)
			C.Height = 1 + max(A.Height, F.Height)
		} else {
			C.Child2 = iG
			A.Child2 = iF
			F.Parent = iA
			A.Aabb.CombineTwoInPlace(B.Aabb, F.Aabb)
			C.Aabb.CombineTwoInPlace(A.Aabb, G.Aabb)

			A.Height = 1 + max(B.Height, F.Height)
			C.Height = 1 + max(A.Height, G.Height)
		}

		return iC
	}

	// Rotate B up
	if balance < -1 {
		iD := B.Child1
		iE := B.Child2
		B2Assert(0 <= iD && iD < tree.M_nodeCapacity)
		B2Assert(0 <= iE && iE < tree.M_nodeCapacity)

		D := &tree.M_nodes[iD]
		E := &tree.M_nodes[iE]

		// Swap A and B
		B.Child1 = iA
		B.Parent = A.Parent
		A.Parent = iB

		// A's old parent should point to B
		tree.replaceChild(B.Parent, iA, iB)

		// Rotate
		if D.Height > E.Height {
			B.Child2 = iD
			A.Child1 = iE
			E.Parent = iA
			A.Aabb.CombineTwoInPlace(C.Aabb, E.Aabb)
			B.Aabb.CombineTwoInPlace(A.Aabb, D.Aabb)

			A.Height = 1 + max(C.Height, E.Height)
			B.Height = 1 + max(A.Height, D.Height)
		} else {
			B.Child2 = iE
			A.Child1 = iD
			D.Parent = iA
			A.Aabb.CombineTwoInPlace(C.Aabb, D.Aabb)
			B.Aabb.CombineTwoInPlace(A.Aabb, E.Aabb)

			A.Height = 1 + max(C.Height, D.Height)
			B.Height = 1 + max(A.Height, E.Height)
		}

		return iB
	}

	return iA
}

func (tree *B2DynamicTree) replaceChild(parent, oldChild, newChild int) {
	if parent == B2_nullNode {
		tree.M_root = newChild
		return
	}

	if tree.M_nodes[parent].Child1 == oldChild {
		tree.M_nodes[parent].Child1 = newChild
	} else {
		B2Assert(tree.M_nodes[parent].Child2 == oldChild)
		tree.M_nodes[parent].Child2 = newChild
	}
}

/// Get the height of the binary tree in O(1) time.
func (tree B2DynamicTree) GetHeight() int {
	if tree.M_root == B2_nullNode {
		return 0
	}

	return tree.M_nodes[tree.M_root].Height
}

/// Get the ratio of the sum of the node areas to the root area.
func (tree B2DynamicTree) GetAreaRatio() float32 {
	if tree.M_root == B2_nullNode {
		return 0.0
	}

	root := &tree.M_nodes[tree.M_root]
	rootArea := root.Aabb.GetPerimeter()
	if rootArea <= 0.0 {
		// Only point proxies with no fattening.
		return 0.0
	}

	var totalArea float32 = 0.0
	for i := 0; i < tree.M_nodeCapacity; i++ {
		node := &tree.M_nodes[i]
		if node.Height < 0 {
			// Free node in pool
			continue
		}

		totalArea += node.Aabb.GetPerimeter()
	}

	return totalArea / rootArea
}

/// Get the maximum balance of an node in the tree. The balance is the difference
/// in height of the two children of a node.
func (tree B2DynamicTree) GetMaxBalance() int {
	maxBalance := 0
	for i := 0; i < tree.M_nodeCapacity; i++ {
		node := &tree.M_nodes[i]
		if node.Height <= 1 {
			continue
		}

		B2Assert(!node.IsLeaf())

		child1 := node.Child1
		child2 := node.Child2
		balance := tree.M_nodes[child2].Height - tree.M_nodes[child1].Height
		if balance < 0 {
			balance = -balance
		}
		maxBalance = max(maxBalance, balance)
	}

	return maxBalance
}

// Compute the height of a sub-tree.
func (tree B2DynamicTree) computeHeight(nodeId int) int {
	B2Assert(0 <= nodeId && nodeId < tree.M_nodeCapacity)
	node := &tree.M_nodes[nodeId]

	if node.IsLeaf() {
		return 0
	}

	height1 := tree.computeHeight(node.Child1)
	height2 := tree.computeHeight(node.Child2)
	return 1 + max(height1, height2)
}

/// Compute the height of the tree by walking it, ignoring the cached heights.
func (tree B2DynamicTree) ComputeHeight() int {
	if tree.M_root == B2_nullNode {
		return 0
	}
	return tree.computeHeight(tree.M_root)
}

func (tree B2DynamicTree) GetInsertionCount() int {
	return tree.M_insertionCount
}

func (tree B2DynamicTree) GetProxyCount() int {
	return tree.M_proxyCount
}

func (tree B2DynamicTree) validateStructure(index int) error {
	if index == B2_nullNode {
		return nil
	}

	node := &tree.M_nodes[index]

	if index == tree.M_root && node.Parent != B2_nullNode {
		return tree.invalid(index, "root has a parent")
	}

	child1 := node.Child1
	child2 := node.Child2

	if node.IsLeaf() {
		if child2 != B2_nullNode || node.Height != 0 {
			return tree.invalid(index, "malformed leaf")
		}
		return nil
	}

	if child1 < 0 || child1 >= tree.M_nodeCapacity || child2 < 0 || child2 >= tree.M_nodeCapacity {
		return tree.invalid(index, "child out of range")
	}

	if tree.M_nodes[child1].Parent != index || tree.M_nodes[child2].Parent != index {
		return tree.invalid(index, "child does not point back to parent")
	}

	if err := tree.validateStructure(child1); err != nil {
		return err
	}
	return tree.validateStructure(child2)
}

func (tree B2DynamicTree) validateMetrics(index int) error {
	if index == B2_nullNode {
		return nil
	}

	node := &tree.M_nodes[index]

	child1 := node.Child1
	child2 := node.Child2

	if node.IsLeaf() {
		return nil
	}

	height1 := tree.M_nodes[child1].Height
	height2 := tree.M_nodes[child2].Height
	height := 1 + max(height1, height2)
	if node.Height != height {
		return tree.invalid(index, "stale height")
	}

	if height1-height2 > 1 || height2-height1 > 1 {
		return tree.invalid(index, "height imbalance")
	}

	aabb := B2AABBUnion(tree.M_nodes[child1].Aabb, tree.M_nodes[child2].Aabb)
	if aabb.LowerBound != node.Aabb.LowerBound || aabb.UpperBound != node.Aabb.UpperBound {
		return tree.invalid(index, "aabb is not the union of its children")
	}

	if err := tree.validateMetrics(child1); err != nil {
		return err
	}
	return tree.validateMetrics(child2)
}

func (tree B2DynamicTree) invalid(index int, reason string) error {
	node := &tree.M_nodes[index]
	log.WithFields(log.Fields{
		"node":   index,
		"parent": node.Parent,
		"child1": node.Child1,
		"child2": node.Child2,
		"height": node.Height,
	}).Error("dynamic tree invariant violated: ", reason)
	return fmt.Errorf("dynamic tree node %d: %s", index, reason)
}

/// Validate this tree: structure, heights, balance, unioned AABBs and the
/// free list. The first violation is logged and returned.
func (tree B2DynamicTree) Validate() error {
	if err := tree.validateStructure(tree.M_root); err != nil {
		return err
	}
	if err := tree.validateMetrics(tree.M_root); err != nil {
		return err
	}

	freeCount := 0
	freeIndex := tree.M_freeList
	for freeIndex != B2_nullNode {
		if freeIndex < 0 || freeIndex >= tree.M_nodeCapacity || freeCount > tree.M_nodeCapacity {
			return fmt.Errorf("dynamic tree free list is corrupt at %d", freeIndex)
		}
		freeIndex = tree.M_nodes[freeIndex].Next
		freeCount++
	}

	if tree.GetHeight() != tree.ComputeHeight() {
		return fmt.Errorf("dynamic tree cached height %d, computed %d", tree.GetHeight(), tree.ComputeHeight())
	}

	if tree.M_nodeCount+freeCount != tree.M_nodeCapacity {
		return fmt.Errorf("dynamic tree node count %d + free %d != capacity %d",
			tree.M_nodeCount, freeCount, tree.M_nodeCapacity)
	}

	return nil
}

/// Shift the world origin. Useful for large worlds.
/// The shift formula is: position -= newOrigin
func (tree *B2DynamicTree) ShiftOrigin(newOrigin B2Vec2) error {
	if err := tree.checkUnlocked("shift origin"); err != nil {
		return err
	}
	for i := 0; i < tree.M_nodeCapacity; i++ {
		tree.M_nodes[i].Aabb.LowerBound = B2Vec2Sub(tree.M_nodes[i].Aabb.LowerBound, newOrigin)
		tree.M_nodes[i].Aabb.UpperBound = B2Vec2Sub(tree.M_nodes[i].Aabb.UpperBound, newOrigin)
	}
	return nil
}
