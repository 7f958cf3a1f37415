package scene

import "github.com/bits-and-blooms/bitset"

// FrameQueue collects nodes awaiting their end-of-frame recompute. A node
// queued several times within a frame is called once. Storage is reused
// across frames.
type FrameQueue struct {
	pending bitset.BitSet
	queue   []FrameListener
}

// Add queues l unless it is already pending.
func (q *FrameQueue) Add(l FrameListener) {
	id := uint(l.NodeBase().ID())
	if q.pending.Test(id) {
		return
	}
	q.pending.Set(id)
	q.queue = append(q.queue, l)
}

// Len returns the number of pending listeners.
func (q *FrameQueue) Len() int { return len(q.queue) }

// Drain calls FrameComplete on every pending listener in queue order and
// empties the queue. Listeners queued during the drain run in the next frame.
func (q *FrameQueue) Drain() int {
	batch := q.queue
	n := len(batch)
	q.queue = q.queue[len(q.queue):]
	q.pending.ClearAll()
	for i, l := range batch {
		l.FrameComplete()
		batch[i] = nil
	}
	if len(q.queue) == 0 {
		q.queue = batch[:0]
	}
	return n
}
