package memorystore

// History is a fixed-capacity FIFO of spread samples.
// Appending past capacity evicts the oldest sample. Not safe for concurrent use on its own;
// the owning store entry guards it.
type History struct {
	buf   []SpreadSample
	start int
	size  int
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = HistoryCapacity
	}
	return &History{buf: make([]SpreadSample, capacity)}
}

// Append adds s as the newest sample.
func (h *History) Append(s SpreadSample) {
	if h.size < len(h.buf) {
		h.buf[(h.start+h.size)%len(h.buf)] = s
		h.size++
		return
	}
	h.buf[h.start] = s
	h.start = (h.start + 1) % len(h.buf)
}

func (h *History) Len() int {
	return h.size
}

// Samples returns a copy ordered oldest first.
func (h *History) Samples() []SpreadSample {
	out := make([]SpreadSample, h.size)
	for i := 0; i < h.size; i++ {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}
