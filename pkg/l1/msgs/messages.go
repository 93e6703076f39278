package msgs

import (
	"fmt"
	"time"

	"github.com/golang/protobuf/proto"

	"github.com/robotalks/lora.go/pkg/l0/comm"
)

// Downlink mirrors lora.v1.Downlink.
type Downlink struct {
	Gateway      string `protobuf:"bytes,1,opt,name=gateway,proto3" json:"gateway,omitempty"`
	Payload      []byte `protobuf:"bytes,2,opt,name=payload,proto3" json:"payload,omitempty"`
	Rssi         int32  `protobuf:"zigzag32,3,opt,name=rssi,proto3" json:"rssi,omitempty"`
	Snr          int32  `protobuf:"zigzag32,4,opt,name=snr,proto3" json:"snr,omitempty"`
	ReceivedAtMs int64  `protobuf:"varint,5,opt,name=received_at_ms,json=receivedAtMs,proto3" json:"received_at_ms,omitempty"`
}

func (m *Downlink) Reset()         { *m = Downlink{} }
func (m *Downlink) String() string { return proto.CompactTextString(m) }
func (*Downlink) ProtoMessage()    {}

// NewDownlink creates a Downlink from a received report.
func NewDownlink(gateway string, rpt *comm.Report, at time.Time) *Downlink {
	return &Downlink{
		Gateway:      gateway,
		Payload:      rpt.Payload,
		Rssi:         int32(rpt.RSSI),
		Snr:          int32(rpt.SNR),
		ReceivedAtMs: at.UnixNano() / int64(time.Millisecond),
	}
}

// Uplink mirrors lora.v1.Uplink.
type Uplink struct {
	Seq         uint32 `protobuf:"varint,1,opt,name=seq,proto3" json:"seq,omitempty"`
	Payload     []byte `protobuf:"bytes,2,opt,name=payload,proto3" json:"payload,omitempty"`
	Confirmed   bool   `protobuf:"varint,3,opt,name=confirmed,proto3" json:"confirmed,omitempty"`
	Port        uint32 `protobuf:"varint,4,opt,name=port,proto3" json:"port,omitempty"`
	TimeOnAirMs uint32 `protobuf:"varint,5,opt,name=time_on_air_ms,json=timeOnAirMs,proto3" json:"time_on_air_ms,omitempty"`
}

func (m *Uplink) Reset()         { *m = Uplink{} }
func (m *Uplink) String() string { return proto.CompactTextString(m) }
func (*Uplink) ProtoMessage()    {}

// Request converts the Uplink into a transmit command.
// Port 0 means comm.DefaultPort.
func (m *Uplink) Request() (*comm.Request, error) {
	port := m.Port
	if port == 0 {
		port = uint32(comm.DefaultPort)
	}
	if port > 0xff {
		return nil, &comm.ArgumentError{Arg: "port", Reason: fmt.Sprintf("%d out of range", port)}
	}
	return &comm.Request{
		Type:      comm.CmdSendPort,
		Payload:   m.Payload,
		Confirmed: m.Confirmed,
		Port:      byte(port),
	}, nil
}

// TimeOnAir returns the time on air reported by the application.
func (m *Uplink) TimeOnAir() time.Duration {
	return time.Duration(m.TimeOnAirMs) * time.Millisecond
}

// UplinkResult mirrors lora.v1.UplinkResult.
type UplinkResult struct {
	Seq    uint32 `protobuf:"varint,1,opt,name=seq,proto3" json:"seq,omitempty"`
	Ok     bool   `protobuf:"varint,2,opt,name=ok,proto3" json:"ok,omitempty"`
	Status string `protobuf:"bytes,3,opt,name=status,proto3" json:"status,omitempty"`
	Error  string `protobuf:"bytes,4,opt,name=error,proto3" json:"error,omitempty"`
	WaitMs uint32 `protobuf:"varint,5,opt,name=wait_ms,json=waitMs,proto3" json:"wait_ms,omitempty"`
}

func (m *UplinkResult) Reset()         { *m = UplinkResult{} }
func (m *UplinkResult) String() string { return proto.CompactTextString(m) }
func (*UplinkResult) ProtoMessage()    {}

// NewUplinkResult builds the result of an uplink.
func NewUplinkResult(seq uint32, res *comm.Result, wait time.Duration, err error) *UplinkResult {
	r := &UplinkResult{Seq: seq, Ok: err == nil, WaitMs: uint32(wait / time.Millisecond)}
	if res != nil {
		r.Status = res.Status
	}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// Encode serializes a message.
func Encode(msg proto.Message) ([]byte, error) {
	return proto.Marshal(msg)
}

// Decode parses data into msg.
func Decode(data []byte, msg proto.Message) error {
	return proto.Unmarshal(data, msg)
}
