// Package interval provides an augmented interval tree for stabbing and
// overlap queries over closed ranges.
//
// The tree is a red-black tree ordered by the low endpoint where each node
// also stores the largest high endpoint of its subtree, so queries prune
// subtrees that end before the query starts. Insert is O(log N) and queries
// are O(log N + k) for k results.
package interval

import (
	"cmp"
	"iter"
)

// Interval is a closed range [Low, High] carrying a Value.
type Interval[K cmp.Ordered, V any] struct {
	Low   K
	High  K
	Value V
}

// Tree is an insert-only interval tree. It is not safe for concurrent writes.
type Tree[K cmp.Ordered, V any] struct {
	root *node[K, V]
	size int
}

type node[K cmp.Ordered, V any] struct {
	iv          Interval[K, V]
	maxHigh     K
	left, right *node[K, V]
	parent      *node[K, V]
	red         bool
}

// New creates an empty tree.
func New[K cmp.Ordered, V any]() *Tree[K, V] {
	return &Tree[K, V]{}
}

// Len returns the number of intervals.
func (t *Tree[K, V]) Len() int {
	return t.size
}

// Insert adds [low, high] with value. Ranges with low > high are ignored.
func (t *Tree[K, V]) Insert(low, high K, value V) {
	if low > high {
		return
	}

	n := &node[K, V]{
		iv:      Interval[K, V]{Low: low, High: high, Value: value},
		maxHigh: high,
		red:     true,
	}

	t.attach(n)
	t.rebalance(n)
	t.size++
}

// Overlapping yields the intervals overlapping [low, high] in low-endpoint order.
func (t *Tree[K, V]) Overlapping(low, high K) iter.Seq[Interval[K, V]] {
	return func(yield func(Interval[K, V]) bool) {
		walk(t.root, low, high, yield)
	}
}

// walk visits the subtree in order and reports false once yield asks to stop.
func walk[K cmp.Ordered, V any](n *node[K, V], low, high K, yield func(Interval[K, V]) bool) bool {
	if n == nil || n.maxHigh < low {
		return true
	}

	if !walk(n.left, low, high, yield) {
		return false
	}

	if n.iv.Low > high {
		return true
	}

	if n.iv.High >= low && !yield(n.iv) {
		return false
	}

	return walk(n.right, low, high, yield)
}

// attach inserts n as a leaf, ordered by Low then High.
func (t *Tree[K, V]) attach(n *node[K, V]) {
	if t.root == nil {
		t.root = n

		return
	}

	cur := t.root

	for {
		if n.iv.High > cur.maxHigh {
			cur.maxHigh = n.iv.High
		}

		goLeft := n.iv.Low < cur.iv.Low || (n.iv.Low == cur.iv.Low && n.iv.High < cur.iv.High)

		next := &cur.right
		if goLeft {
			next = &cur.left
		}

		if *next == nil {
			*next = n
			n.parent = cur

			return
		}

		cur = *next
	}
}

// rebalance restores the red-black properties after attaching n.
func (t *Tree[K, V]) rebalance(n *node[K, V]) {
	for n != t.root && isRed(n.parent) {
		parent := n.parent

		grand := parent.parent
		if grand == nil {
			break
		}

		leftSide := parent == grand.left

		uncle := grand.left
		if leftSide {
			uncle = grand.right
		}

		if isRed(uncle) {
			parent.red = false
			uncle.red = false
			grand.red = true
			n = grand

			continue
		}

		inner := parent.left
		if leftSide {
			inner = parent.right
		}

		if n == inner {
			t.rotate(parent, leftSide)
			n, parent = parent, n
		}

		parent.red = false
		grand.red = true
		t.rotate(grand, !leftSide)
	}

	t.root.red = false
}

// rotate turns n left when left is true, right otherwise, and fixes maxHigh.
func (t *Tree[K, V]) rotate(n *node[K, V], left bool) {
	var pivot *node[K, V]

	if left {
		pivot = n.right
		n.right = pivot.left

		if pivot.left != nil {
			pivot.left.parent = n
		}

		pivot.left = n
	} else {
		pivot = n.left
		n.left = pivot.right

		if pivot.right != nil {
			pivot.right.parent = n
		}

		pivot.right = n
	}

	pivot.parent = n.parent

	switch {
	case n.parent == nil:
		t.root = pivot
	case n == n.parent.left:
		n.parent.left = pivot
	default:
		n.parent.right = pivot
	}

	n.parent = pivot

	n.refresh()
	pivot.refresh()
}

func (n *node[K, V]) refresh() {
	m := n.iv.High

	if n.left != nil {
		m = max(m, n.left.maxHigh)
	}

	if n.right != nil {
		m = max(m, n.right.maxHigh)
	}

	n.maxHigh = m
}

func isRed[K cmp.Ordered, V any](n *node[K, V]) bool {
	return n != nil && n.red
}
