package msgs

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/lora.go/pkg/l0/comm"
)

func TestDownlink(t *testing.T) {
	at := time.Unix(1700000000, 5e8)
	m := NewDownlink("gw1", &comm.Report{Payload: []byte{1, 2}, RSSI: -100, SNR: -7}, at)
	require.Equal(t, int32(-100), m.Rssi)
	require.Equal(t, int32(-7), m.Snr)
	require.Equal(t, int64(1700000000500), m.ReceivedAtMs)

	b, err := Encode(m)
	require.NoError(t, err)
	var decoded Downlink
	require.NoError(t, Decode(b, &decoded))
	require.Equal(t, m, &decoded)
}

func TestUplinkRequest(t *testing.T) {
	req, err := (&Uplink{Payload: []byte("x"), Confirmed: true}).Request()
	require.NoError(t, err)
	require.Equal(t, comm.CmdSendPort, req.Type)
	require.Equal(t, comm.DefaultPort, req.Port)
	require.True(t, req.Confirmed)

	req, err = (&Uplink{Port: 20}).Request()
	require.NoError(t, err)
	require.Equal(t, byte(20), req.Port)

	_, err = (&Uplink{Port: 300}).Request()
	var argErr *comm.ArgumentError
	require.True(t, errors.As(err, &argErr))
	require.Equal(t, "port", argErr.Arg)

	require.Equal(t, 1500*time.Millisecond, (&Uplink{TimeOnAirMs: 1500}).TimeOnAir())
}

func TestUplinkResult(t *testing.T) {
	r := NewUplinkResult(3, &comm.Result{Status: "TX OK"}, 1200*time.Millisecond, nil)
	require.Equal(t, &UplinkResult{Seq: 3, Ok: true, Status: "TX OK", WaitMs: 1200}, r)

	r = NewUplinkResult(4, &comm.Result{Status: "TX FAIL"}, 0, &comm.RejectedError{Status: "TX FAIL"})
	require.False(t, r.Ok)
	require.Equal(t, "TX FAIL", r.Status)
	require.Equal(t, `module rejected: "TX FAIL"`, r.Error)

	r = NewUplinkResult(5, nil, 0, comm.ErrTimeout)
	require.Equal(t, &UplinkResult{Seq: 5, Error: "reply timeout"}, r)
}
