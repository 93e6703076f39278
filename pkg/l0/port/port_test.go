package port

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

func TestConfigIsRemote(t *testing.T) {
	testCases := []struct {
		device string
		remote bool
	}{
		{"/dev/ttyUSB0", false},
		{"COM3", false},
		{"ws://localhost:8080/lora", true},
		{"wss://gw.example.com/lora", true},
	}
	for _, tc := range testCases {
		c := &Config{Device: tc.device}
		require.Equal(t, tc.remote, c.IsRemote(), tc.device)
	}
}

func TestOpenNoDevice(t *testing.T) {
	_, err := Open(&Config{})
	require.Error(t, err)
}

func TestDialWebsocket(t *testing.T) {
	srv := httptest.NewServer(websocket.Handler(func(conn *websocket.Conn) {
		io.Copy(conn, conn)
	}))
	defer srv.Close()

	rw, err := Open(&Config{Device: "ws" + srv.URL[len("http"):]})
	require.NoError(t, err)
	defer rw.Close()

	_, err = rw.Write([]byte{0xff, 0x3c, 0x01, 0x00, 0x01, 0x0d})
	require.NoError(t, err)
	buf := make([]byte, 16)
	n, err := io.ReadAtLeast(rw, buf, 6)
	require.NoError(t, err)
	require.Equal(t, []byte{0xff, 0x3c, 0x01, 0x00, 0x01, 0x0d}, buf[:n])
}
