package replay

import "container/heap"

// Event is one instant on the merged timeline: every record, across all
// streams, whose world time equals TimeMs exactly. No bucketing or
// rounding is applied; timestamps group only on exact equality.
type Event struct {
	TimeMs  float64
	Records map[string]Record
}

// streamCursor is one heap entry: the next unvisited record of one
// stream, keyed by its world time.
type streamCursor struct {
	worldMs float64
	name    string
	index   int
}

// cursorHeap is a min-heap of stream cursors ordered by world time.
// Equal world times break ties by name then index so traversal order is
// deterministic across runs.
type cursorHeap []streamCursor

func (h cursorHeap) Len() int { return len(h) }
func (h cursorHeap) Less(i, j int) bool {
	if h[i].worldMs != h[j].worldMs {
		return h[i].worldMs < h[j].worldMs
	}
	if h[i].name != h[j].name {
		return h[i].name < h[j].name
	}
	return h[i].index < h[j].index
}
func (h cursorHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *cursorHeap) Push(x any)   { *h = append(*h, x.(streamCursor)) }
func (h *cursorHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}

// EventIterator merges all streams into one chronological event
// sequence via a k-way heap merge. It visits every record exactly once,
// in non-decreasing world-time order, grouping exact-equal world
// timestamps into a single event. A single iterator is one-pass;
// Manager.Events returns a fresh one per call.
type EventIterator struct {
	streams map[string]*Stream
	heap    cursorHeap
}

func newEventIterator(streams map[string]*Stream) *EventIterator {
	it := &EventIterator{streams: streams}
	for name, s := range streams {
		if s.Len() == 0 {
			continue
		}
		it.heap = append(it.heap, streamCursor{
			worldMs: s.worldTime(0),
			name:    name,
			index:   0,
		})
	}
	heap.Init(&it.heap)
	return it
}

// Next yields the next event on the merged timeline, or false once all
// streams are drained.
func (it *EventIterator) Next() (Event, bool) {
	if it.heap.Len() == 0 {
		return Event{}, false
	}

	first := heap.Pop(&it.heap).(streamCursor)
	ev := Event{
		TimeMs:  first.worldMs,
		Records: map[string]Record{first.name: it.streams[first.name].Record(first.index)},
	}
	it.pushNext(first)

	// Fold in every further cursor whose world time coincides exactly.
	// A stream with repeated equal timestamps overwrites its own slot in
	// the event map, but its cursor still advances record by record.
	for it.heap.Len() > 0 && it.heap[0].worldMs == first.worldMs {
		c := heap.Pop(&it.heap).(streamCursor)
		ev.Records[c.name] = it.streams[c.name].Record(c.index)
		it.pushNext(c)
	}

	return ev, true
}

// Drain consumes the rest of the iterator into a slice. Mostly useful
// for tools and tests; large replays should step with Next.
func (it *EventIterator) Drain() []Event {
	var events []Event
	for {
		ev, ok := it.Next()
		if !ok {
			return events
		}
		events = append(events, ev)
	}
}

func (it *EventIterator) pushNext(c streamCursor) {
	s := it.streams[c.name]
	next := c.index + 1
	if next >= s.Len() {
		return
	}
	heap.Push(&it.heap, streamCursor{
		worldMs: s.worldTime(next),
		name:    c.name,
		index:   next,
	})
}
