package bounds

import (
	"container/heap"

	"github.com/danielpatrickdp/gatekeeper/internal/interval"
)

// #region node

// node is one candidate sub-window of the argument domain.
// span is the closed step range it covers; bound is the value range its
// steps can still attain.
type node struct {
	span  interval.Interval
	bound interval.Interval
	seq   int // insertion order, breaks priority ties
}

// #endregion node

// #region worklist

// worklist is a deduplicating priority queue of nodes. Supremum searches pop
// the largest upper bound first; infimum searches the smallest lower bound.
// Equal priorities pop in insertion order. A worklist belongs to exactly one
// search and is never shared.
type worklist struct {
	kind  interval.BoundType
	items []node
	seen  map[interval.Interval]struct{}
	next  int
}

func newWorklist(kind interval.BoundType) *worklist {
	return &worklist{
		kind: kind,
		seen: make(map[interval.Interval]struct{}),
	}
}

// push adds a node unless a node with the same span was already queued.
func (w *worklist) push(span, bound interval.Interval) bool {
	if _, dup := w.seen[span]; dup {
		return false
	}
	w.seen[span] = struct{}{}
	heap.Push(w, node{span: span, bound: bound, seq: w.next})
	w.next++
	return true
}

// pop removes the most promising node.
func (w *worklist) pop() (node, bool) {
	if len(w.items) == 0 {
		return node{}, false
	}
	return heap.Pop(w).(node), true
}

// peek returns the most promising node without removing it.
func (w *worklist) peek() (node, bool) {
	if len(w.items) == 0 {
		return node{}, false
	}
	return w.items[0], true
}

func (w *worklist) size() int { return len(w.items) }

// #endregion worklist

// #region heap-interface

func (w *worklist) Len() int { return len(w.items) }

func (w *worklist) Less(i, j int) bool {
	a, b := w.items[i], w.items[j]
	switch w.kind {
	case interval.Infimum:
		if a.bound.Lower() != b.bound.Lower() {
			return a.bound.Lower() < b.bound.Lower()
		}
	default:
		if a.bound.Upper() != b.bound.Upper() {
			return a.bound.Upper() > b.bound.Upper()
		}
	}
	return a.seq < b.seq
}

func (w *worklist) Swap(i, j int) { w.items[i], w.items[j] = w.items[j], w.items[i] }

func (w *worklist) Push(x any) { w.items = append(w.items, x.(node)) }

func (w *worklist) Pop() any {
	old := w.items
	n := len(old)
	item := old[n-1]
	w.items = old[:n-1]
	return item
}

// #endregion heap-interface
