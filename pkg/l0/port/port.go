// Package port opens the byte stream a LoRa module is attached to.
package port

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang/glog"
	"go.bug.st/serial"
	"golang.org/x/net/websocket"
)

// DefaultBaudRate is the UART speed of the LoRa module.
const DefaultBaudRate = 57600

// readTimeout lets the reader notice cancellation on an idle serial port.
const readTimeout = 100 * time.Millisecond

// Config specifies how to open the link.
type Config struct {
	// Device is a serial device path (e.g. /dev/ttyUSB0), or a
	// ws:// or wss:// URL of a remote serial server.
	Device   string
	BaudRate int
	// Origin is used by websocket connections.
	Origin string
}

// IsRemote tells if Device is a websocket URL.
func (c *Config) IsRemote() bool {
	return strings.HasPrefix(c.Device, "ws://") || strings.HasPrefix(c.Device, "wss://")
}

// Open opens the link specified by the config.
func Open(c *Config) (io.ReadWriteCloser, error) {
	if c.Device == "" {
		return nil, fmt.Errorf("device not specified")
	}
	if c.IsRemote() {
		conn, err := DialWebsocket(c.Device, c.Origin)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
	p, err := OpenSerial(c.Device, c.BaudRate)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// OpenSerial opens a serial device with 8N1.
func OpenSerial(device string, baudRate int) (serial.Port, error) {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}
	p, err := serial.Open(device, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", device, err)
	}
	if err = p.SetReadTimeout(readTimeout); err != nil {
		p.Close()
		return nil, fmt.Errorf("set read timeout %s: %w", device, err)
	}
	if err = p.ResetInputBuffer(); err != nil {
		glog.Warningf("reset input buffer %s: %v", device, err)
	}
	glog.Infof("opened %s at %d baud", device, baudRate)
	return p, nil
}

// DialWebsocket connects to a remote serial server exchanging raw
// bytes in binary frames.
func DialWebsocket(url, origin string) (*websocket.Conn, error) {
	if origin == "" {
		origin = "http://localhost/"
	}
	conn, err := websocket.Dial(url, "", origin)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	conn.PayloadType = websocket.BinaryFrame
	glog.Infof("connected %s", url)
	return conn, nil
}
