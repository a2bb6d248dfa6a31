package alarm

import (
	"container/heap"
	"time"
)

type event struct {
	triggerAt time.Time
	payload   Payload
}

// eventHeap implements container/heap.Interface, earliest trigger first.
type eventHeap []event

func (h eventHeap) Len() int           { return len(h) }
func (h eventHeap) Less(i, j int) bool { return h[i].triggerAt.Before(h[j].triggerAt) }
func (h eventHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(event))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// removeByID drops the event for id, returning whether one existed.
func (h *eventHeap) removeByID(id int64) bool {
	for i, e := range *h {
		if e.payload.ScheduleID == id {
			heap.Remove(h, i)
			return true
		}
	}
	return false
}

func (h eventHeap) find(id int64) (event, bool) {
	for _, e := range h {
		if e.payload.ScheduleID == id {
			return e, true
		}
	}
	return event{}, false
}
