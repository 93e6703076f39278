package comm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	testCases := []struct {
		name      string
		layout    Layout
		cmd       byte
		payload   []byte
		confirmed bool
		port      byte
		expect    []byte
	}{
		{
			"rich unconfirmed", RichLayout, CmdSend, []byte{0x01, 0x02}, false, 100,
			[]byte{0xff, 0x3c, 0x02, 0x04, 0x00, 0x64, 0x01, 0x02, 0x6d, 0x0d},
		},
		{
			"rich confirmed", RichLayout, CmdSendPort, []byte{0xaa}, true, 1,
			[]byte{0xff, 0x3c, 0x04, 0x03, 0x01, 0x01, 0xaa, 0xb3, 0x0d},
		},
		{
			"rich empty", RichLayout, CmdSendPort, nil, false, 199,
			[]byte{0xff, 0x3c, 0x04, 0x02, 0x00, 0xc7, 0xcd, 0x0d},
		},
		{
			"rich query", RichLayout, CmdVersion, nil, false, 0,
			[]byte{0xff, 0x3c, 0x01, 0x00, 0x01, 0x0d},
		},
		{
			"minimal", MinimalLayout, CmdSendPort, []byte{0x01, 0x02}, true, 0,
			[]byte{0xff, 0x3c, 0x04, 0x02, 0x01, 0x02, 0x09, 0x0d},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := tc.layout.Encode(tc.cmd, tc.payload, tc.confirmed, tc.port)
			require.NoError(t, err)
			require.Equal(t, tc.expect, b)
		})
	}
}

func TestEncodeChecksumCoversTypeToPayload(t *testing.T) {
	b, err := RichLayout.Encode(CmdSend, []byte{0x01, 0x02}, false, 100)
	require.NoError(t, err)
	require.Equal(t, byte(4), b[3])
	require.Equal(t, []byte{0x00, 0x64}, b[4:6])
	require.Equal(t, Checksum([]byte{0x02, 0x04, 0x00, 0x64, 0x01, 0x02}), b[8])
}

func TestEncodeErrors(t *testing.T) {
	testCases := []struct {
		name    string
		layout  Layout
		cmd     byte
		payload []byte
		port    byte
		arg     string
	}{
		{"unknown command", RichLayout, 0, nil, 100, "type"},
		{"reply type", RichLayout, Reply(CmdSend), nil, 100, "type"},
		{"downlink type", RichLayout, TypeDownlink, nil, 100, "type"},
		{"too large", RichLayout, CmdSend, make([]byte, 223), 100, "payload"},
		{"too large query", RichLayout, CmdAppKey, make([]byte, 225), 0, "payload"},
		{"too large minimal", MinimalLayout, CmdSend, make([]byte, 201), 0, "payload"},
		{"port zero", RichLayout, CmdSend, []byte{1}, 0, "port"},
		{"port too large", RichLayout, CmdSendPort, []byte{1}, 200, "port"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := tc.layout.Encode(tc.cmd, tc.payload, false, tc.port)
			require.Nil(t, b)
			var encErr *EncodeError
			require.True(t, errors.As(err, &encErr))
			var argErr *ArgumentError
			require.True(t, errors.As(err, &argErr))
			require.Equal(t, tc.arg, argErr.Arg)
		})
	}
}

func TestEncodeCapacity(t *testing.T) {
	for _, layout := range []Layout{RichLayout, MinimalLayout} {
		max := layout.MaxUserPayload(CmdSendPort)
		b, err := layout.Encode(CmdSendPort, make([]byte, max), false, DefaultPort)
		require.NoError(t, err)
		require.Len(t, b, layout.MaxPayload+txOverhead)
		_, err = layout.Encode(CmdSendPort, make([]byte, max+1), false, DefaultPort)
		require.Error(t, err)
	}
	require.Equal(t, 222, RichLayout.MaxUserPayload(CmdSend))
	require.Equal(t, 224, RichLayout.MaxUserPayload(CmdVersion))
	require.Equal(t, 200, MinimalLayout.MaxUserPayload(CmdSend))
}

func TestRoundTrip(t *testing.T) {
	for size := 0; size <= RichLayout.MaxUserPayload(CmdSend); size += 17 {
		payload := make([]byte, size)
		for i := range payload {
			payload[i] = byte(i*7 + size)
		}
		for _, cmd := range []byte{CmdSend, CmdSendPort} {
			confirmed, port := size%2 == 0, byte(1+size%199)
			b, err := RichLayout.Encode(cmd, payload, confirmed, port)
			require.NoError(t, err)
			f, err := RichLayout.Decode(b)
			require.NoError(t, err)
			require.Equal(t, cmd, f.Type)
			require.Equal(t, 1, f.Offset)
			u, err := f.Uplink(RichLayout)
			require.NoError(t, err)
			require.Equal(t, confirmed, u.Confirmed)
			require.Equal(t, port, u.Port)
			require.Equal(t, payload, u.Payload)
		}
	}
}

func TestChecksumSensitivity(t *testing.T) {
	payload := []byte("hello lora")
	b, err := RichLayout.Encode(CmdSendPort, payload, true, 10)
	require.NoError(t, err)
	// metadata and payload
	for i := 4; i < len(b)-2; i++ {
		for _, delta := range []byte{1, 0x10, 0x80, 0xff} {
			corrupted := append([]byte(nil), b...)
			corrupted[i] += delta
			_, err := RichLayout.Decode(corrupted)
			require.Truef(t, errors.Is(err, ErrChecksumMismatch), "byte[%d]+%#02x: %v", i, delta, err)
		}
	}
	// type replaced by another valid type
	corrupted := append([]byte(nil), b...)
	corrupted[2] = CmdSend
	_, err = RichLayout.Decode(corrupted)
	require.True(t, errors.Is(err, ErrChecksumMismatch))
}

func TestDecodeErrors(t *testing.T) {
	valid := downlinkFrame(0x01, 0x02, 0xff, 0x9c, 0xf6)
	testCases := []struct {
		name   string
		layout Layout
		raw    []byte
		err    error
	}{
		{"empty", RichLayout, nil, ErrHeadNotFound},
		{"garbage", RichLayout, []byte{0x00, 0x01, 0x3c, 0x3c, 0x00, 0x0d}, ErrHeadNotFound},
		{"unknown type", RichLayout, []byte{0x3c, 0x40, 0x00, 0x40, 0x0d}, ErrHeadNotFound},
		{"reply in minimal", MinimalLayout, replyFrame(CmdSend, "TX OK"), ErrHeadNotFound},
		{"head only", RichLayout, []byte{0x3c, 0xc0}, ErrTruncatedFrame},
		{"short", RichLayout, valid[:len(valid)-1], ErrTruncatedFrame},
		{"long length", RichLayout, []byte{0x3c, 0xc0, 0xf0, 0x01, 0x02, 0x03, 0x0d}, ErrTruncatedFrame},
		{"tail", RichLayout, append(append([]byte(nil), valid[:len(valid)-1]...), 0x0a), ErrTailMismatch},
		{"checksum", RichLayout, append(append([]byte(nil), valid[:len(valid)-2]...), 0x00, 0x0d), ErrChecksumMismatch},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := tc.layout.Decode(tc.raw)
			require.Nil(t, f)
			require.True(t, errors.Is(err, tc.err), "unexpected error: %v", err)
			require.True(t, IsFrameError(err))
		})
	}
}

func TestDecodeSkipsNoise(t *testing.T) {
	raw := append([]byte{0x00, 0x3c, 0x41, 0xff, 0x0d}, downlinkFrame(0x10, 0x00, 0x20, 0x05)...)
	f, err := RichLayout.Decode(append(raw, 0x55, 0x66))
	require.NoError(t, err)
	require.Equal(t, 5, f.Offset)
	require.True(t, f.IsDownlink())
	require.False(t, f.IsReply())
	require.Equal(t, []byte{0x10, 0x00, 0x20, 0x05}, f.Data)
	require.Equal(t, 9, f.Size())
}

func TestReport(t *testing.T) {
	f, err := RichLayout.Decode(downlinkFrame(0xa1, 0xb2, 0xff, 0x9c, 0xf6))
	require.NoError(t, err)
	rpt, err := f.Report()
	require.NoError(t, err)
	require.Equal(t, []byte{0xa1, 0xb2}, rpt.Payload)
	require.Equal(t, int16(-100), rpt.RSSI)
	require.Equal(t, int8(-10), rpt.SNR)

	f, err = RichLayout.Decode(downlinkFrame(0x00, 0x2a, 0x07))
	require.NoError(t, err)
	rpt, err = f.Report()
	require.NoError(t, err)
	require.Empty(t, rpt.Payload)
	require.Equal(t, int16(42), rpt.RSSI)
	require.Equal(t, int8(7), rpt.SNR)

	for size := 0; size < 3; size++ {
		f, err = RichLayout.Decode(downlinkFrame(make([]byte, size)...))
		require.NoError(t, err)
		_, err = f.Report()
		require.True(t, errors.Is(err, ErrShortReport))
	}
}

func TestFrameStatus(t *testing.T) {
	f, err := RichLayout.Decode(replyFrame(CmdSendPort, "TX OK\r\n"))
	require.NoError(t, err)
	require.True(t, f.IsReply())
	require.Equal(t, CmdSendPort, f.Command())
	require.Equal(t, "TX OK", f.Status())

	f, err = RichLayout.Decode(replyFrame(CmdVersion, ""))
	require.NoError(t, err)
	require.Equal(t, "", f.Status())
}

func TestValidTypes(t *testing.T) {
	for cmd := CmdVersion; cmd <= CmdChannel; cmd++ {
		require.True(t, IsCommand(cmd))
		require.True(t, IsValidType(cmd))
		require.True(t, IsValidType(Reply(cmd)))
	}
	require.True(t, IsValidType(TypeDownlink))
	for _, typ := range []byte{0, 12, 0x80, 0x8c, 0x40, 0xff} {
		require.False(t, IsValidType(typ), "type %#02x", typ)
	}
}
