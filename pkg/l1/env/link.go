package env

import (
	"context"
	"io"

	"github.com/robotalks/lora.go/pkg/l0/comm"
	"github.com/robotalks/lora.go/pkg/l0/port"
)

// Link is an opened connection to the LoRa module.
// Run must be running while the Modem is used.
type Link struct {
	Modem  *comm.Modem
	Stream *comm.Stream
}

// NewLink wraps an opened port.
func (c *Config) NewLink(rw io.ReadWriter) (*Link, error) {
	layout, err := c.FrameLayout()
	if err != nil {
		return nil, err
	}
	stream := comm.NewStream(rw)
	modem := comm.NewModem(stream, layout)
	modem.Runner.Assembler.CarryOver = !c.DiscardPartial
	if c.Timeout.Duration > 0 {
		modem.Runner.Timeout = c.Timeout.Duration
	}
	return &Link{Modem: modem, Stream: stream}, nil
}

// Open opens the device and creates the Link.
func (c *Config) Open() (*Link, error) {
	rw, err := port.Open(c.PortConfig())
	if err != nil {
		return nil, err
	}
	link, err := c.NewLink(rw)
	if err != nil {
		rw.Close()
		return nil, err
	}
	return link, nil
}

// Run implements framework.Runnable. It closes the device when done.
func (l *Link) Run(ctx context.Context) error {
	return l.Stream.Run(ctx)
}

// Name implements framework.Named.
func (l *Link) Name() string {
	return "link"
}
