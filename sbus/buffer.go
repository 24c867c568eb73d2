package sbus

// Half selects one of the two receive buffers.
type Half uint8

const (
	HalfA Half = iota
	HalfB
)

func (h Half) other() Half { return h ^ 1 }

// DoubleBuffer is the receive arena. The active half belongs to the transport
// and must not be decoded; the other half is ready once Swap hands it over.
type DoubleBuffer struct {
	bufs   [2][BufferSize]byte
	active Half
	count  int
}

func (d *DoubleBuffer) Active() Half { return d.active }

// Transferred is the number of bytes written into the active half since the last swap.
func (d *DoubleBuffer) Transferred() int { return d.count }

// Write copies p into the active half. Bytes past the capacity are dropped.
func (d *DoubleBuffer) Write(p []byte) int {
	n := copy(d.bufs[d.active][d.count:], p)
	d.count += n
	return n
}

// Swap hands the active half to the caller, re-arms the counter and points
// the transport at the other half. ok reports whether n matched a whole frame.
func (d *DoubleBuffer) Swap(n int) (ready []byte, ok bool) {
	filled := d.active
	d.count = 0
	d.active = filled.other()
	if n != FrameLength {
		return nil, false
	}
	return d.bufs[filled][:FrameLength], true
}

func (d *DoubleBuffer) Reset() {
	*d = DoubleBuffer{}
}
