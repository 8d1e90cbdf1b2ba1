package box2d

import "errors"

// Proxy errors
var (
	// ErrInvalidProxy indicates a proxy id that does not name a live leaf.
	ErrInvalidProxy = errors.New("invalid proxy id")

	// ErrDegenerateAABB indicates bounds with lower > upper or a non-finite component.
	ErrDegenerateAABB = errors.New("degenerate aabb")

	// ErrDegenerateRay indicates a ray cast with coincident end points.
	ErrDegenerateRay = errors.New("degenerate ray")
)

// Resource errors
var (
	// ErrNodeExhausted indicates the node pool cannot grow any further.
	// It is raised as a panic since it implies unbounded proxy creation.
	ErrNodeExhausted = errors.New("dynamic tree node pool exhausted")
)

// Reentrancy errors
var (
	// ErrTreeLocked indicates a mutation from inside a query or ray cast callback.
	ErrTreeLocked = errors.New("dynamic tree is locked by a traversal")

	// ErrBroadPhaseLocked indicates UpdatePairs was called from inside a pair callback.
	ErrBroadPhaseLocked = errors.New("broad-phase is locked by a pair update")
)

// Configuration errors
var (
	// ErrInvalidSettings indicates a negative or non-finite fattening setting.
	ErrInvalidSettings = errors.New("invalid tree settings")
)
