package box2d

/// A growable LIFO stack of node ids used by the tree traversals.
/// The backing array starts with B2_stackSize slots and doubles on demand.
const B2_stackSize = 256

type B2GrowableStack struct {
	stack []int
}

func MakeB2GrowableStack() B2GrowableStack {
	return B2GrowableStack{
		stack: make([]int, 0, B2_stackSize),
	}
}

func (s B2GrowableStack) GetCount() int {
	return len(s.stack)
}

func (s *B2GrowableStack) Push(element int) {
	s.stack = append(s.stack, element)
}

// Pop panics on an empty stack.
func (s *B2GrowableStack) Pop() int {
	B2Assert(len(s.stack) > 0)
	last := len(s.stack) - 1
	element := s.stack[last]
	s.stack = s.stack[:last]
	return element
}
