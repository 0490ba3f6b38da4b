package keeper

import "container/heap"

// itemQueue orders pending items by (ResolvedAtTick, Sequence), the order
// required at drain time. container/heap is the standard library's
// priority queue.
type itemQueue []*Item

func (q itemQueue) Len() int { return len(q) }

func (q itemQueue) Less(i, j int) bool {
	if q[i].ResolvedAtTick != q[j].ResolvedAtTick {
		return q[i].ResolvedAtTick < q[j].ResolvedAtTick
	}
	return q[i].Sequence < q[j].Sequence
}

func (q itemQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *itemQueue) Push(x any) { *q = append(*q, x.(*Item)) }

func (q *itemQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}

var _ = heap.Interface(&itemQueue{})
