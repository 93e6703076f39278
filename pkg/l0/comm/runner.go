package comm

import (
	"context"
	"strings"
	"time"

	"github.com/golang/glog"
)

const (
	// DefaultTimeout is the time waiting for a reply after a command is written.
	DefaultTimeout = 3000 * time.Millisecond
	// DefaultSettle lets the rest of a burst arrive (57 bytes at 57600-8N1).
	DefaultSettle = 10 * time.Millisecond
	// DefaultPollInterval is the interval checking for available bytes.
	DefaultPollInterval = time.Millisecond

	// MaxTimeOnAir caps the time on air reported for an uplink.
	MaxTimeOnAir = 3000 * time.Millisecond
	// ReceiveWindows covers RX1 (1s) and RX2 (2s) after the uplink.
	ReceiveWindows = 2000 * time.Millisecond

	// StatusOK prefixes the status of an accepted transmit.
	StatusOK = "TX OK"
)

// Request is a command to send.
type Request struct {
	Type      byte
	Payload   []byte
	Confirmed bool
	// Port is only used by transmit commands.
	Port byte
}

// Result is the reply of a command.
type Result struct {
	Frame  *Frame
	Status string
}

// Runner writes commands and waits for replies.
// It's not reentrant: one exchange must complete before the next one starts.
type Runner struct {
	Transport Transport
	Assembler *Assembler
	Clock     Clock

	Timeout      time.Duration
	Settle       time.Duration
	PollInterval time.Duration

	downlinks []*Frame
}

// NewRunner creates a Runner with default timings.
func NewRunner(t Transport, layout Layout) *Runner {
	return &Runner{
		Transport:    t,
		Assembler:    NewAssembler(layout),
		Clock:        SystemClock,
		Timeout:      DefaultTimeout,
		Settle:       DefaultSettle,
		PollInterval: DefaultPollInterval,
	}
}

// Write encodes and writes a command without waiting for a reply.
func (r *Runner) Write(req *Request) error {
	b, err := r.Assembler.Layout.Encode(req.Type, req.Payload, req.Confirmed, req.Port)
	if err != nil {
		return err
	}
	_, err = r.Transport.Write(b)
	return err
}

// Exchange writes a command and returns the first reply frame.
// Downlinks received meanwhile are queued, see TakeDownlink.
func (r *Runner) Exchange(ctx context.Context, req *Request) (*Frame, error) {
	b, err := r.Assembler.Layout.Encode(req.Type, req.Payload, req.Confirmed, req.Port)
	if err != nil {
		return nil, err
	}
	deadline := r.now().Add(r.timeout())
	if _, err = r.Transport.Write(b); err != nil {
		return nil, err
	}
	glog.V(2).Infof("command %#02x sent, %d bytes", req.Type, len(b))
	for {
		f, err := r.receive(req.Type)
		if err == ErrHeadNotFound {
			// only noise so far, the reply may still come.
			err = nil
		}
		if err != nil || f != nil {
			return f, err
		}
		if err = r.waitAvailable(ctx, deadline); err != nil {
			return nil, err
		}
		if err = r.sleep(ctx, r.settle()); err != nil {
			return nil, err
		}
	}
}

// SendAndAwait writes a command and classifies the reply status.
// A status not starting with StatusOK is returned as *RejectedError
// along with the result.
func (r *Runner) SendAndAwait(ctx context.Context, req *Request) (*Result, error) {
	f, err := r.Exchange(ctx, req)
	if err != nil {
		return nil, err
	}
	res := &Result{Frame: f, Status: f.Status()}
	if !strings.HasPrefix(res.Status, StatusOK) {
		return res, &RejectedError{Status: res.Status}
	}
	return res, nil
}

// SendAndAwaitDownlink is SendAndAwait followed by waiting for the receive
// windows. It returns how long it waited for data. The data is left for
// the next Poll.
func (r *Runner) SendAndAwaitDownlink(ctx context.Context, req *Request, timeOnAir time.Duration) (time.Duration, *Result, error) {
	res, err := r.SendAndAwait(ctx, req)
	if err != nil {
		return 0, res, err
	}
	if len(r.downlinks) > 0 {
		return 0, res, nil
	}
	if timeOnAir > MaxTimeOnAir {
		timeOnAir = MaxTimeOnAir
	}
	start := r.now()
	err = r.waitAvailable(ctx, start.Add(timeOnAir+ReceiveWindows))
	if err == ErrTimeout {
		err = nil
	}
	return r.now().Sub(start), res, err
}

// TakeDownlink returns a downlink received during an exchange, or nil.
func (r *Runner) TakeDownlink() *Frame {
	if len(r.downlinks) == 0 {
		return nil
	}
	f := r.downlinks[0]
	r.downlinks = r.downlinks[1:]
	return f
}

// PendingDownlinks returns the number of queued downlinks.
func (r *Runner) PendingDownlinks() int {
	return len(r.downlinks)
}

// receive returns the reply to cmd if there's one in the transport or
// the assembler buffer. Replies to other commands are late replies of
// earlier exchanges and dropped.
func (r *Runner) receive(cmd byte) (*Frame, error) {
	for {
		ready, err := r.Assembler.Poll(r.Transport)
		if err != nil || !ready {
			return nil, err
		}
		f, err := r.Assembler.TakeFrame()
		if err != nil {
			return nil, err
		}
		if f.IsDownlink() {
			glog.V(2).Infof("downlink received while waiting reply, %d bytes", len(f.Data))
			r.queueDownlink(f)
			continue
		}
		if f.Command() != cmd {
			glog.Warningf("reply %#02x not for command %#02x dropped: %q", f.Type, cmd, f.Status())
			continue
		}
		return f, nil
	}
}

// queueDownlink keeps a downlink for TakeDownlink. Downlinks without
// RSSI/SNR are dropped.
func (r *Runner) queueDownlink(f *Frame) {
	if _, err := f.Report(); err != nil {
		glog.Warningf("downlink dropped: %v", err)
		return
	}
	r.downlinks = append(r.downlinks, f)
}

func (r *Runner) waitAvailable(ctx context.Context, deadline time.Time) error {
	if r.Transport.Available() > 0 {
		return nil
	}
	ticker := time.NewTicker(r.pollInterval())
	defer ticker.Stop()
	for r.Transport.Available() == 0 {
		if !r.now().Before(deadline) {
			return ErrTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func (r *Runner) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func (r *Runner) now() time.Time {
	if r.Clock == nil {
		return time.Now()
	}
	return r.Clock.Now()
}

func (r *Runner) timeout() time.Duration {
	if r.Timeout <= 0 {
		return DefaultTimeout
	}
	return r.Timeout
}

func (r *Runner) settle() time.Duration {
	if r.Settle < 0 {
		return 0
	}
	return r.Settle
}

func (r *Runner) pollInterval() time.Duration {
	if r.PollInterval <= 0 {
		return DefaultPollInterval
	}
	return r.PollInterval
}
