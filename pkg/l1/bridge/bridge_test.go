package bridge

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/lora.go/pkg/l0/comm"
	"github.com/robotalks/lora.go/pkg/l1/comm/mqtt"
	"github.com/robotalks/lora.go/pkg/l1/msgs"
)

type fakeTransport struct {
	reply []byte

	lock   sync.Mutex
	rx     []byte
	writes [][]byte
}

func (t *fakeTransport) Available() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return len(t.rx)
}

func (t *fakeTransport) ReadByte() (byte, error) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if len(t.rx) == 0 {
		return 0, io.EOF
	}
	b := t.rx[0]
	t.rx = t.rx[1:]
	return b, nil
}

func (t *fakeTransport) Write(p []byte) (int, error) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.writes = append(t.writes, append([]byte(nil), p...))
	t.rx = append(t.rx, t.reply...)
	return len(p), nil
}

func (t *fakeTransport) inject(p []byte) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.rx = append(t.rx, p...)
}

func (t *fakeTransport) written() [][]byte {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.writes
}

type published struct {
	topic   string
	payload []byte
}

type fakeQueue struct {
	pubCh chan published
}

func (q *fakeQueue) Publish(topic string, payload []byte) error {
	q.pubCh <- published{topic: topic, payload: payload}
	return nil
}

func (q *fakeQueue) Sub(topic string, handler mqtt.Handler) *mqtt.Subscription {
	return nil
}

func (q *fakeQueue) expect(t *testing.T, topic string, msg proto.Message) {
	select {
	case p := <-q.pubCh:
		require.Equal(t, topic, p.topic)
		require.NoError(t, msgs.Decode(p.payload, msg))
	case <-time.After(2 * time.Second):
		t.Fatalf("nothing published on %s", topic)
	}
}

func startBridge(t *testing.T, tr *fakeTransport) (*Bridge, *fakeQueue) {
	m := comm.NewModem(tr, comm.RichLayout)
	m.Runner.Timeout = 200 * time.Millisecond
	m.Runner.Settle = time.Millisecond
	q := &fakeQueue{pubCh: make(chan published, 8)}
	b := New(m, q, "gw1")
	b.PollInterval = 5 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.Equal(t, context.Canceled, <-done)
	})
	return b, q
}

func TestBridgeDownlink(t *testing.T) {
	tr := &fakeTransport{}
	tr.inject([]byte{0x00, 0x01})
	tr.inject((&comm.Frame{Type: comm.TypeDownlink, Data: []byte{'o', 'k', 0xff, 0x9c, 0xfb}}).Bytes())
	_, q := startBridge(t, tr)

	var dl msgs.Downlink
	q.expect(t, "gw1/downlink", &dl)
	require.Equal(t, "gw1", dl.Gateway)
	require.Equal(t, []byte("ok"), dl.Payload)
	require.Equal(t, int32(-100), dl.Rssi)
	require.Equal(t, int32(-5), dl.Snr)
	require.NotZero(t, dl.ReceivedAtMs)
}

func TestBridgeUplink(t *testing.T) {
	tr := &fakeTransport{reply: (&comm.Frame{Type: comm.Reply(comm.CmdSendPort), Data: []byte("TX OK")}).Bytes()}
	b, q := startBridge(t, tr)

	data, err := msgs.Encode(&msgs.Uplink{Seq: 7, Payload: []byte("x"), Confirmed: true, Port: 5})
	require.NoError(t, err)
	b.HandleUplink("gw1/uplink", data)

	var res msgs.UplinkResult
	q.expect(t, "gw1/result", &res)
	require.Equal(t, msgs.UplinkResult{Seq: 7, Ok: true, Status: "TX OK"}, res)
	expected, err := comm.RichLayout.Encode(comm.CmdSendPort, []byte("x"), true, 5)
	require.NoError(t, err)
	require.Equal(t, [][]byte{expected}, tr.written())
}

func TestBridgeUplinkInvalid(t *testing.T) {
	tr := &fakeTransport{}
	b, q := startBridge(t, tr)

	b.HandleUplink("gw1/uplink", []byte{0xff, 0xff})

	data, err := msgs.Encode(&msgs.Uplink{Seq: 8, Payload: []byte("x"), Port: 200})
	require.NoError(t, err)
	b.HandleUplink("gw1/uplink", data)

	var res msgs.UplinkResult
	q.expect(t, "gw1/result", &res)
	require.Equal(t, uint32(8), res.Seq)
	require.False(t, res.Ok)
	require.NotEmpty(t, res.Error)
	require.Empty(t, tr.written())
}

func TestBridgeUplinkTimeout(t *testing.T) {
	tr := &fakeTransport{}
	b, q := startBridge(t, tr)

	data, err := msgs.Encode(&msgs.Uplink{Seq: 9, Payload: []byte("x")})
	require.NoError(t, err)
	b.HandleUplink("gw1/uplink", data)

	var res msgs.UplinkResult
	q.expect(t, "gw1/result", &res)
	require.Equal(t, msgs.UplinkResult{Seq: 9, Error: comm.ErrTimeout.Error()}, res)
	require.Len(t, tr.written(), 1)
}
