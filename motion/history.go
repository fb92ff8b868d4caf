package motion

// HistorySize is the number of samples kept for classification.
const HistorySize = 30

// History is a fixed-size ring of samples that drops the oldest on overflow.
type History struct {
	buf   [HistorySize]Sample
	start int
	n     int
}

func (h *History) Push(s Sample) {
	if h.n < HistorySize {
		h.buf[(h.start+h.n)%HistorySize] = s
		h.n++
		return
	}
	h.buf[h.start] = s
	h.start = (h.start + 1) % HistorySize
}

func (h *History) Len() int { return h.n }

// Last returns a copy of the newest n samples, oldest first.
func (h *History) Last(n int) []Sample {
	if n > h.n {
		n = h.n
	}
	out := make([]Sample, n)
	off := h.n - n
	for i := 0; i < n; i++ {
		out[i] = h.buf[(h.start+off+i)%HistorySize]
	}
	return out
}

func (h *History) Reset() {
	h.start = 0
	h.n = 0
}
