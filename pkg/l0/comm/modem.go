package comm

import (
	"context"
	"time"

	"github.com/golang/glog"
)

// Modem provides the high level operations on a LoRa module link.
// Like Runner, it's used by a single goroutine.
type Modem struct {
	Runner *Runner
}

// NewModem creates a Modem using the default timings.
func NewModem(t Transport, layout Layout) *Modem {
	return &Modem{Runner: NewRunner(t, layout)}
}

// Poll collects received bytes and tells if any downlink can be read.
// Frame errors are recoverable, the broken bytes are already discarded.
func (m *Modem) Poll(ctx context.Context) (bool, error) {
	r := m.Runner
	if len(r.downlinks) > 0 {
		return true, nil
	}
	if r.Transport.Available() == 0 && len(r.Assembler.Buffered()) == 0 {
		return false, nil
	}
	if err := r.sleep(ctx, r.settle()); err != nil {
		return false, err
	}
	for {
		ready, err := r.Assembler.Poll(r.Transport)
		if err != nil || !ready {
			return len(r.downlinks) > 0, err
		}
		f, err := r.Assembler.TakeFrame()
		if err != nil {
			return false, err
		}
		if f.IsDownlink() {
			r.queueDownlink(f)
		} else {
			glog.Warningf("unexpected reply %#02x dropped: %q", f.Type, f.Status())
		}
	}
}

// Available polls and returns the payload size of the next downlink,
// 0 if none received.
func (m *Modem) Available(ctx context.Context) (int, error) {
	ready, err := m.Poll(ctx)
	if !ready {
		return 0, err
	}
	rpt, err := m.Runner.downlinks[0].Report()
	if err != nil {
		return 0, err
	}
	return len(rpt.Payload), nil
}

// Receive returns the next downlink report.
func (m *Modem) Receive() (*Report, error) {
	f := m.Runner.TakeDownlink()
	if f == nil {
		return nil, ErrNotReady
	}
	return f.Report()
}

// Read copies the payload of the next downlink into p.
// The payload is truncated if p is too small.
func (m *Modem) Read(p []byte) (int, error) {
	rpt, err := m.Receive()
	if err != nil {
		return 0, err
	}
	return copy(p, rpt.Payload), nil
}

// ReadReport is Read also returning the RSSI and SNR of the downlink.
func (m *Modem) ReadReport(p []byte) (n int, rssi int16, snr int8, err error) {
	rpt, err := m.Receive()
	if err != nil {
		return 0, 0, 0, err
	}
	return copy(p, rpt.Payload), rpt.RSSI, rpt.SNR, nil
}

// Write sends an unconfirmed uplink on DefaultPort without waiting.
func (m *Modem) Write(payload []byte) error {
	return m.WriteTo(payload, false, DefaultPort)
}

// WriteTo sends an uplink without waiting.
func (m *Modem) WriteTo(payload []byte, confirmed bool, port byte) error {
	return m.Runner.Write(uplink(payload, confirmed, port))
}

// WriteStatus sends an uplink and waits for the module's status.
func (m *Modem) WriteStatus(ctx context.Context, payload []byte, confirmed bool, port byte) (*Result, error) {
	return m.Runner.SendAndAwait(ctx, uplink(payload, confirmed, port))
}

// WriteAndWait sends an uplink, waits for the status, and then waits
// for a downlink in the receive windows. It returns the time waited
// in the receive windows.
func (m *Modem) WriteAndWait(ctx context.Context, payload []byte, confirmed bool, port byte, timeOnAir time.Duration) (time.Duration, *Result, error) {
	return m.Runner.SendAndAwaitDownlink(ctx, uplink(payload, confirmed, port), timeOnAir)
}

// Command sends a command and returns the reply. The status is not
// interpreted.
func (m *Modem) Command(ctx context.Context, cmd byte, payload []byte) (*Result, error) {
	f, err := m.Runner.Exchange(ctx, &Request{Type: cmd, Payload: payload})
	if err != nil {
		return nil, err
	}
	return &Result{Frame: f, Status: f.Status()}, nil
}

// Version queries the module firmware version.
func (m *Modem) Version(ctx context.Context) (string, error) {
	res, err := m.Command(ctx, CmdVersion, nil)
	if err != nil {
		return "", err
	}
	return res.Status, nil
}

// JoinState queries the LoRaWAN join state.
func (m *Modem) JoinState(ctx context.Context) (string, error) {
	res, err := m.Command(ctx, CmdJoinState, nil)
	if err != nil {
		return "", err
	}
	return res.Status, nil
}

func uplink(payload []byte, confirmed bool, port byte) *Request {
	return &Request{Type: CmdSendPort, Payload: payload, Confirmed: confirmed, Port: port}
}
