package kernel

// messageHeap is a min-heap of *Message ordered by (DeliveryDT, SeqNo),
// giving every message a total order even when two fall at the same
// datetime. Grounded on the teacher's internal/engine/eventloop.go
// eventHeap, generalized from domain.Event to the kernel's own Message.
type messageHeap []*Message

func (h messageHeap) Len() int      { return len(h) }
func (h messageHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h messageHeap) Less(i, j int) bool {
	if h[i].DeliveryDT != h[j].DeliveryDT {
		return h[i].DeliveryDT < h[j].DeliveryDT
	}
	return h[i].SeqNo < h[j].SeqNo
}

func (h *messageHeap) Push(x any) {
	*h = append(*h, x.(*Message))
}

func (h *messageHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
