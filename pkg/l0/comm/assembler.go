package comm

import "github.com/golang/glog"

// AssemblerState is the state of an Assembler.
type AssemblerState int

const (
	// StateCollecting means no frame is ready.
	StateCollecting AssemblerState = iota
	// StateFrameReady means a frame is decoded and waits for TakeFrame.
	StateFrameReady
)

// String implements fmt.Stringer.
func (s AssemblerState) String() string {
	if s == StateFrameReady {
		return "frame-ready"
	}
	return "collecting"
}

// DefaultBufferSize fits the largest frame.
const DefaultBufferSize = MaxFrameSize

// Assembler collects bytes from a Transport into frames.
// It's owned by a single link and must not be used concurrently.
type Assembler struct {
	Layout Layout
	// CarryOver keeps an incomplete frame in the buffer for the next Poll
	// instead of discarding all buffered bytes.
	CarryOver bool

	buf   []byte
	size  int
	next  int // end of the ready frame in buf
	state AssemblerState
	frame *Frame
}

// NewAssembler creates an Assembler with the default buffer size.
func NewAssembler(layout Layout) *Assembler {
	return NewAssemblerSize(layout, DefaultBufferSize)
}

// NewAssemblerSize creates an Assembler with a buffer of size bytes.
func NewAssemblerSize(layout Layout, size int) *Assembler {
	return &Assembler{
		Layout:    layout,
		CarryOver: true,
		buf:       make([]byte, size),
	}
}

// State gets the current state.
func (a *Assembler) State() AssemblerState {
	return a.state
}

// Buffered returns the bytes currently collected.
func (a *Assembler) Buffered() []byte {
	return a.buf[:a.size]
}

// Reset discards buffered bytes and any ready frame.
func (a *Assembler) Reset() {
	a.size, a.next, a.state, a.frame = 0, 0, StateCollecting, nil
}

// Poll drains all available bytes from t and tries to decode a frame.
// Bytes beyond the buffer capacity are dropped. It returns true when a frame
// is ready. A frame error means the buffered bytes were discarded; it's
// recoverable. Any other error comes from the transport.
// With CarryOver, broken candidates are skipped so a valid frame behind
// them is still found, and only an incomplete frame which can fit in the
// buffer is kept.
func (a *Assembler) Poll(t Transport) (bool, error) {
	if a.state == StateFrameReady {
		return true, nil
	}
	var dropped int
	for t.Available() > 0 {
		b, err := t.ReadByte()
		if err != nil {
			return false, err
		}
		if a.size < len(a.buf) {
			a.buf[a.size] = b
			a.size++
		} else {
			dropped++
		}
	}
	if dropped > 0 {
		glog.Warningf("receive buffer full, %d bytes dropped", dropped)
	}
	if a.size == 0 {
		return false, nil
	}

	if !a.CarryOver {
		f, off, err := a.Layout.decode(a.buf[:a.size])
		if err == nil {
			a.ready(f, off)
			return true, nil
		}
		glog.V(2).Infof("discard %d bytes: %v", a.size, err)
		a.size = 0
		return false, err
	}

	f, off, keep, err := a.scan()
	if f != nil {
		a.ready(f, off)
		return true, nil
	}
	if keep >= 0 {
		a.size = copy(a.buf, a.buf[keep:a.size])
		glog.V(4).Infof("incomplete frame, %d bytes kept", a.size)
		return false, nil
	}
	glog.V(2).Infof("discard %d bytes: %v", a.size, err)
	a.size = 0
	return false, err
}

// scan finds the first complete frame, skipping candidates which fail the
// tail or checksum check, or whose length can't fit. keep is the offset of
// the first incomplete candidate which can still complete, or -1.
// err is the first error found when no frame is complete, a head with a
// length which can't fit counts as noise (ErrHeadNotFound).
func (a *Assembler) scan() (f *Frame, off, keep int, err error) {
	keep = -1
	for start := 0; ; start = off + 1 {
		var e error
		f, off, e = a.Layout.decode(a.buf[start:a.size])
		if e == nil {
			off += start
			f.Offset = off
			return f, off, keep, nil
		}
		if e == ErrHeadNotFound {
			if err == nil {
				err = e
			}
			return nil, -1, keep, err
		}
		off += start
		if e == ErrTruncatedFrame {
			if !a.completes(off) {
				// the length can't fit, it's noise.
				glog.V(2).Infof("head at %d skipped: length %d", off, a.buf[off+2])
			} else if keep < 0 {
				keep = off
			}
			continue
		}
		glog.V(2).Infof("frame at %d skipped: %v", off, e)
		if err == nil {
			err = e
		}
	}
}

// completes tells if the candidate frame at off fits in the buffer.
func (a *Assembler) completes(off int) bool {
	if off+2 >= a.size {
		return true
	}
	n := int(a.buf[off+2])
	return n <= a.Layout.maxReceiveData() && rxOverhead+n <= len(a.buf)
}

func (a *Assembler) ready(f *Frame, off int) {
	a.frame, a.state = f, StateFrameReady
	a.next = off + f.Size()
}

// TakeFrame returns the ready frame and starts collecting again.
// With CarryOver, bytes received after the frame are kept for the next Poll.
func (a *Assembler) TakeFrame() (*Frame, error) {
	if a.state != StateFrameReady {
		return nil, ErrNotReady
	}
	f, size := a.frame, 0
	if a.CarryOver && a.next < a.size {
		size = copy(a.buf, a.buf[a.next:a.size])
	}
	a.Reset()
	a.size = size
	return f, nil
}
