package comm

import (
	"bytes"
	"fmt"
)

// Frame markers.
const (
	Wake byte = 0xff
	Head byte = 0x3c
	Tail byte = 0x0d
)

// Command codes sent from host to module.
const (
	CmdVersion byte = iota + 1
	CmdSend
	CmdJoinState
	CmdSendPort
	CmdClass
	CmdAppEUI
	CmdAppKey
	CmdADR
	CmdTxPower
	CmdDataRate
	CmdChannel
)

const (
	// ReplyFlag is set in the type of a reply to a command.
	ReplyFlag byte = 0x80
	// TypeDownlink is the type of unsolicited downlink/wake frames.
	TypeDownlink byte = 0xc0
)

const (
	// MaxPayloadSize is the max size of data (payload+metadata) in a frame.
	// It's 222 bytes of payload at SF7~9 plus confirmed flag and port.
	MaxPayloadSize = 222 + 2
	// MinimalPayloadSize is the max data size in the minimal layout.
	MinimalPayloadSize = 200
	// MaxFrameSize is the size of the largest frame on the wire.
	MaxFrameSize = txOverhead + MaxPayloadSize

	// MinPort and MaxPort define the valid application port range.
	MinPort byte = 1
	MaxPort byte = 199
	// DefaultPort is used when the caller doesn't specify one.
	DefaultPort byte = 100

	txOverhead = 6 // wake+head+type+len+cs+tail
	rxOverhead = 5 // head+type+len+cs+tail
	reportSize = 3 // rssi(2)+snr(1)
	metaSize   = 2 // confirmed+port
)

// Reply returns the reply type of a command.
func Reply(cmd byte) byte {
	return cmd | ReplyFlag
}

// IsCommand tells if t is a host to module command code.
func IsCommand(t byte) bool {
	return t >= CmdVersion && t <= CmdChannel
}

// IsValidType tells if t is any type defined by the protocol.
func IsValidType(t byte) bool {
	return t == TypeDownlink || IsCommand(t&^ReplyFlag)
}

// IsTransmit tells if the command sends RF data and carries metadata.
func IsTransmit(cmd byte) bool {
	return cmd == CmdSend || cmd == CmdSendPort
}

// Layout configures the framing variant.
type Layout struct {
	// MetadataLen is the number of metadata bytes (confirmed flag and port)
	// preceding the payload of transmit commands. Either 0 or 2.
	MetadataLen int
	// MaxPayload limits the data size (metadata+payload) of an encoded frame.
	MaxPayload int
	// DownlinkOnly restricts decoding to downlink frames.
	DownlinkOnly bool
}

var (
	// RichLayout carries confirmed flag and port, and decodes all types.
	RichLayout = Layout{MetadataLen: metaSize, MaxPayload: MaxPayloadSize}
	// MinimalLayout has no metadata and only decodes downlinks.
	MinimalLayout = Layout{MaxPayload: MinimalPayloadSize, DownlinkOnly: true}
)

func (l Layout) maxData() int {
	if l.MaxPayload <= 0 || l.MaxPayload > 0xff {
		return 0xff
	}
	return l.MaxPayload
}

// maxReceiveData bounds LEN of a received frame: the largest payload
// followed by RSSI/SNR.
func (l Layout) maxReceiveData() int {
	return l.maxData() + reportSize
}

// metadataLen gets the metadata size for a frame type.
func (l Layout) metadataLen(cmd byte) int {
	if IsTransmit(cmd &^ ReplyFlag) {
		return l.MetadataLen
	}
	return 0
}

// MaxUserPayload is the max payload size of a command.
func (l Layout) MaxUserPayload(cmd byte) int {
	return l.maxData() - l.metadataLen(cmd)
}

// Encode builds a TX frame, including the leading wake byte.
// confirmed and port are only used by transmit commands when
// the layout carries metadata.
func (l Layout) Encode(cmd byte, payload []byte, confirmed bool, port byte) ([]byte, error) {
	if !IsCommand(cmd) {
		return nil, &EncodeError{Type: cmd, Err: &ArgumentError{Arg: "type", Reason: "unknown command"}}
	}
	meta := l.metadataLen(cmd)
	size := len(payload) + meta
	if size > l.maxData() {
		return nil, &EncodeError{Type: cmd, Err: &ArgumentError{
			Arg:    "payload",
			Reason: fmt.Sprintf("%d bytes exceeds %d", len(payload), l.maxData()-meta),
		}}
	}
	if meta > 0 && (port < MinPort || port > MaxPort) {
		return nil, &EncodeError{Type: cmd, Err: &ArgumentError{
			Arg:    "port",
			Reason: fmt.Sprintf("%d not in [%d, %d]", port, MinPort, MaxPort),
		}}
	}

	b := make([]byte, size+txOverhead)
	b[0], b[1], b[2], b[3] = Wake, Head, cmd, byte(size)
	if meta > 0 {
		if confirmed {
			b[4] = 1
		}
		b[5] = port
	}
	copy(b[4+meta:], payload)
	b[4+size] = Checksum(b[2 : 4+size])
	b[5+size] = Tail
	return b, nil
}

// Decode finds and validates the first frame in raw.
func (l Layout) Decode(raw []byte) (*Frame, error) {
	f, _, err := l.decode(raw)
	return f, err
}

func (l Layout) accepts(t byte) bool {
	if l.DownlinkOnly {
		return t == TypeDownlink
	}
	return IsValidType(t)
}

// findHead returns the offset of the first head followed by an accepted type.
func (l Layout) findHead(raw []byte) int {
	for i := 0; i+1 < len(raw); i++ {
		if raw[i] == Head && l.accepts(raw[i+1]) {
			return i
		}
	}
	return -1
}

// decode also returns the offset of the candidate head, or -1 if not found.
func (l Layout) decode(raw []byte) (*Frame, int, error) {
	off := l.findHead(raw)
	if off < 0 {
		return nil, off, ErrHeadNotFound
	}
	if off+rxOverhead > len(raw) {
		return nil, off, ErrTruncatedFrame
	}
	csPos := off + 3 + int(raw[off+2])
	if csPos+1 >= len(raw) {
		return nil, off, ErrTruncatedFrame
	}
	if raw[csPos+1] != Tail {
		return nil, off, ErrTailMismatch
	}
	if cs := Checksum(raw[off+1 : csPos]); cs != raw[csPos] {
		return nil, off, fmt.Errorf("%w: got %#02x, want %#02x", ErrChecksumMismatch, raw[csPos], cs)
	}
	f := &Frame{
		Type:   raw[off+1],
		Data:   append([]byte(nil), raw[off+3:csPos]...),
		Offset: off,
	}
	return f, off, nil
}

// Checksum calculates the 8-bit additive checksum.
func Checksum(bufs ...[]byte) (sum byte) {
	for _, buf := range bufs {
		for _, b := range buf {
			sum += b
		}
	}
	return
}

// Frame is a decoded frame.
type Frame struct {
	Type byte
	Data []byte
	// Offset is the position of the head in the decoded buffer.
	Offset int
}

// Size is the number of bytes the frame occupies on the wire (RX form).
func (f *Frame) Size() int {
	return len(f.Data) + rxOverhead
}

// Bytes encodes the frame in RX form, without the wake byte.
func (f *Frame) Bytes() []byte {
	b := make([]byte, f.Size())
	b[0], b[1], b[2] = Head, f.Type, byte(len(f.Data))
	copy(b[3:], f.Data)
	b[len(b)-2] = Checksum(b[1 : len(b)-2])
	b[len(b)-1] = Tail
	return b
}

// IsReply tells if it's a reply to a command.
func (f *Frame) IsReply() bool {
	return f.Type != TypeDownlink && f.Type&ReplyFlag != 0
}

// IsDownlink tells if it's an unsolicited downlink/wake frame.
func (f *Frame) IsDownlink() bool {
	return f.Type == TypeDownlink
}

// Command returns the command code without the reply flag.
func (f *Frame) Command() byte {
	if f.IsDownlink() {
		return 0
	}
	return f.Type &^ ReplyFlag
}

// Status returns the status text carried by a reply.
func (f *Frame) Status() string {
	return string(bytes.TrimRight(f.Data, "\x00\r\n"))
}

// Report is the content of a radio receive frame.
type Report struct {
	Payload []byte
	RSSI    int16
	SNR     int8
}

// Report splits the data into payload and the trailing RSSI/SNR.
func (f *Frame) Report() (*Report, error) {
	n := len(f.Data) - reportSize
	if n < 0 {
		return nil, fmt.Errorf("%w: length %d", ErrShortReport, len(f.Data))
	}
	return &Report{
		Payload: f.Data[:n],
		RSSI:    int16(uint16(f.Data[n])<<8 | uint16(f.Data[n+1])),
		SNR:     int8(f.Data[n+2]),
	}, nil
}

// Uplink is the content of a transmit command frame.
type Uplink struct {
	Confirmed bool
	Port      byte
	Payload   []byte
}

// Uplink splits a transmit frame encoded with layout l.
func (f *Frame) Uplink(l Layout) (*Uplink, error) {
	meta := l.metadataLen(f.Type)
	if len(f.Data) < meta {
		return nil, fmt.Errorf("%w: length %d less than metadata", ErrTruncatedFrame, len(f.Data))
	}
	u := &Uplink{Payload: f.Data[meta:]}
	if meta > 0 {
		u.Confirmed, u.Port = f.Data[0] != 0, f.Data[1]
	}
	return u, nil
}
