// Package lora exposes the LoRa module operations as shell commands.
package lora

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/lora.go/pkg/cli/sh"
	"github.com/robotalks/lora.go/pkg/l0/comm"
)

// DownlinkOutput is the printed form of a downlink.
type DownlinkOutput struct {
	Payload string `json:"payload"`
	RSSI    int16  `json:"rssi"`
	SNR     int8   `json:"snr"`
}

// String prints the payload in hex.
func (o *DownlinkOutput) String() string {
	return fmt.Sprintf("RX %s rssi=%d snr=%d", o.Payload, o.RSSI, o.SNR)
}

// ResultOutput is the printed form of a reply.
type ResultOutput struct {
	Type   byte   `json:"type"`
	Status string `json:"status"`
	Data   string `json:"data,omitempty"`
	WaitMs int64  `json:"wait_ms,omitempty"`
}

// UplinkArgs are the parsed arguments of send and wait.
type UplinkArgs struct {
	Confirmed bool
	Port      byte
	Payload   []byte
	TimeOnAir time.Duration
}

// ParsePayload parses 0x prefixed hex, or takes the text as is.
func ParsePayload(s string) ([]byte, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		data, err := hex.DecodeString(s[2:])
		if err != nil {
			return nil, fmt.Errorf("Invalid DATA: %v", err)
		}
		return data, nil
	}
	return []byte(s), nil
}

// ParseUplinkArgs parses [-c] PORT [TOA(ms)] DATA...
func ParseUplinkArgs(args []string, withTimeOnAir bool) (*UplinkArgs, error) {
	var u UplinkArgs
	if len(args) > 0 && args[0] == "-c" {
		u.Confirmed, args = true, args[1:]
	}
	if len(args) < 1 {
		return nil, fmt.Errorf("PORT required")
	}
	port, err := strconv.ParseUint(args[0], 10, 8)
	if err != nil {
		return nil, fmt.Errorf("Invalid PORT: %v", err)
	}
	u.Port, args = byte(port), args[1:]
	if withTimeOnAir {
		if len(args) < 1 {
			return nil, fmt.Errorf("TOA required")
		}
		ms, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("Invalid TOA: %v", err)
		}
		u.TimeOnAir, args = time.Duration(ms)*time.Millisecond, args[1:]
	}
	if len(args) < 1 {
		return nil, fmt.Errorf("DATA required")
	}
	if u.Payload, err = ParsePayload(strings.Join(args, " ")); err != nil {
		return nil, err
	}
	return &u, nil
}

// ParseType parses a frame type in decimal or 0x prefixed hex.
func ParseType(s string) (byte, error) {
	val, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("Invalid TYPE: %v", err)
	}
	if !comm.IsCommand(byte(val)) {
		return 0, fmt.Errorf("Invalid TYPE: %#02x is not a command", val)
	}
	return byte(val), nil
}

func resultOutput(res *comm.Result, wait time.Duration) *ResultOutput {
	out := &ResultOutput{Status: res.Status, WaitMs: int64(wait / time.Millisecond)}
	if res.Frame != nil {
		out.Type = res.Frame.Type
		out.Data = hex.EncodeToString(res.Frame.Data)
	}
	return out
}

func printResult(c *ishell.Context, res *comm.Result, wait time.Duration) {
	out := resultOutput(res, wait)
	text := out.Status
	if wait > 0 {
		text += fmt.Sprintf(" (waited %v)", wait)
	}
	sh.Output(c, out, text)
}

// printDownlinks prints all received downlinks and returns the count.
func printDownlinks(c *ishell.Context) int {
	m := sh.ModemFrom(c)
	if _, err := m.Poll(sh.ContextFrom(c)); err != nil {
		c.Err(err)
	}
	var count int
	for {
		rpt, err := m.Receive()
		if err == comm.ErrNotReady {
			return count
		}
		if err != nil {
			c.Err(err)
			continue
		}
		count++
		out := &DownlinkOutput{Payload: hex.EncodeToString(rpt.Payload), RSSI: rpt.RSSI, SNR: rpt.SNR}
		sh.Output(c, out, out.String())
	}
}

func statusCmd(name, help string, query func(c *ishell.Context) (string, error)) ishell.Cmd {
	return ishell.Cmd{
		Name: name,
		Help: help,
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			status, err := query(c)
			if err != nil {
				c.Err(err)
				return
			}
			sh.Output(c, map[string]string{"status": status}, status)
		}),
	}
}

var (
	// VersionCmd queries the firmware version.
	VersionCmd = statusCmd("version", "", func(c *ishell.Context) (string, error) {
		return sh.ModemFrom(c).Version(sh.ContextFrom(c))
	})

	// JoinCmd queries the join state.
	JoinCmd = statusCmd("join", "", func(c *ishell.Context) (string, error) {
		return sh.ModemFrom(c).JoinState(sh.ContextFrom(c))
	})

	// SendCmd sends an uplink and waits for the status.
	SendCmd = ishell.Cmd{
		Name:    "send",
		Aliases: []string{"s"},
		Help:    "[-c] PORT DATA|0xHEX",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			args, err := ParseUplinkArgs(c.Args, false)
			if err != nil {
				c.Err(err)
				return
			}
			res, err := sh.ModemFrom(c).WriteStatus(sh.ContextFrom(c), args.Payload, args.Confirmed, args.Port)
			if res != nil {
				printResult(c, res, 0)
			}
			if err != nil {
				c.Err(err)
			}
		}),
	}

	// WaitCmd sends an uplink and waits for downlinks in the receive windows.
	WaitCmd = ishell.Cmd{
		Name:    "wait",
		Aliases: []string{"w"},
		Help:    "[-c] PORT TOA(ms) DATA|0xHEX",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			args, err := ParseUplinkArgs(c.Args, true)
			if err != nil {
				c.Err(err)
				return
			}
			wait, res, err := sh.ModemFrom(c).WriteAndWait(sh.ContextFrom(c),
				args.Payload, args.Confirmed, args.Port, args.TimeOnAir)
			if res != nil {
				printResult(c, res, wait)
			}
			if err != nil {
				c.Err(err)
				return
			}
			printDownlinks(c)
		}),
	}

	// RecvCmd prints received downlinks.
	RecvCmd = ishell.Cmd{
		Name:    "recv",
		Aliases: []string{"r"},
		Help:    "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if printDownlinks(c) == 0 && !sh.ShellFrom(c).OutputJSON {
				c.Println("No downlinks")
			}
		}),
	}

	// RawCmd sends a command frame and prints the reply.
	RawCmd = ishell.Cmd{
		Name: "raw",
		Help: "TYPE [HEX]",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("TYPE required"))
				return
			}
			cmd, err := ParseType(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			var payload []byte
			if len(c.Args) > 1 {
				if payload, err = hex.DecodeString(c.Args[1]); err != nil {
					c.Err(fmt.Errorf("Invalid HEX: %v", err))
					return
				}
			}
			res, err := sh.ModemFrom(c).Command(sh.ContextFrom(c), cmd, payload)
			if err != nil {
				c.Err(err)
				return
			}
			printResult(c, res, 0)
		}),
	}

	// ListenCmd prints downlinks for a period.
	ListenCmd = ishell.Cmd{
		Name:    "listen",
		Aliases: []string{"l"},
		Help:    "SECONDS",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			period := 10 * time.Second
			if len(c.Args) > 0 {
				secs, err := strconv.ParseFloat(c.Args[0], 64)
				if err != nil || secs <= 0 {
					c.Err(fmt.Errorf("Invalid SECONDS: %s", c.Args[0]))
					return
				}
				period = time.Duration(secs * float64(time.Second))
			}
			ctx := sh.ContextFrom(c)
			deadline := time.After(period)
			ticker := time.NewTicker(50 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-deadline:
					return
				case <-ticker.C:
					printDownlinks(c)
				}
			}
		}),
	}
)

func init() {
	sh.AddCmds(
		&VersionCmd,
		&JoinCmd,
		&SendCmd,
		&WaitCmd,
		&RecvCmd,
		&RawCmd,
		&ListenCmd,
	)
}
