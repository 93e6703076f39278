// Package bridge forwards traffic between a LoRa module and MQTT.
package bridge

import (
	"context"
	"time"

	"github.com/golang/glog"
	"github.com/golang/protobuf/proto"

	"github.com/robotalks/lora.go/pkg/l0/comm"
	"github.com/robotalks/lora.go/pkg/l1/comm/mqtt"
	"github.com/robotalks/lora.go/pkg/l1/msgs"
)

// Topics relative to the gateway.
const (
	TopicDownlink = "downlink"
	TopicUplink   = "uplink"
	TopicResult   = "result"
)

// Defaults.
const (
	DefaultPollInterval = 50 * time.Millisecond
	DefaultQueueSize    = 16
)

// Queue is the part of mqtt.Queue used by Bridge.
type Queue interface {
	Publish(topic string, payload []byte) error
	Sub(topic string, handler mqtt.Handler) *mqtt.Subscription
}

// Bridge publishes downlinks and transmits uplinks.
// The Modem is only used by the goroutine running Bridge.
type Bridge struct {
	Modem        *comm.Modem
	Queue        Queue
	Gateway      string
	PollInterval time.Duration

	uplinks chan *msgs.Uplink
}

// New creates a Bridge.
func New(modem *comm.Modem, queue Queue, gateway string) *Bridge {
	return &Bridge{
		Modem:        modem,
		Queue:        queue,
		Gateway:      gateway,
		PollInterval: DefaultPollInterval,
		uplinks:      make(chan *msgs.Uplink, DefaultQueueSize),
	}
}

// Topic returns the topic of the gateway.
func (b *Bridge) Topic(name string) string {
	return b.Gateway + "/" + name
}

// Name implements framework.Named.
func (b *Bridge) Name() string {
	return "bridge"
}

// Run implements framework.Runnable.
func (b *Bridge) Run(ctx context.Context) error {
	if sub := b.Queue.Sub(b.Topic(TopicUplink), b.HandleUplink); sub != nil {
		defer sub.Close()
	}
	interval := b.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	glog.Infof("bridge %s started", b.Gateway)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case up := <-b.uplinks:
			if err := b.transmit(ctx, up); err != nil {
				return err
			}
		case <-ticker.C:
		}
		if err := b.forwardDownlinks(ctx); err != nil {
			return err
		}
	}
}

// HandleUplink decodes an Uplink and queues it for transmission.
func (b *Bridge) HandleUplink(topic string, payload []byte) {
	up := &msgs.Uplink{}
	if err := msgs.Decode(payload, up); err != nil {
		glog.Warningf("%s: bad uplink: %v", topic, err)
		return
	}
	select {
	case b.uplinks <- up:
	default:
		glog.Warningf("%s: queue full, uplink %d dropped", topic, up.Seq)
	}
}

func (b *Bridge) transmit(ctx context.Context, up *msgs.Uplink) error {
	var (
		res  *comm.Result
		wait time.Duration
	)
	req, err := up.Request()
	if err == nil {
		if up.TimeOnAirMs > 0 {
			wait, res, err = b.Modem.Runner.SendAndAwaitDownlink(ctx, req, up.TimeOnAir())
		} else {
			res, err = b.Modem.Runner.SendAndAwait(ctx, req)
		}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		glog.Warningf("uplink %d: %v", up.Seq, err)
	} else {
		glog.V(1).Infof("uplink %d: %s", up.Seq, res.Status)
	}
	return b.publish(TopicResult, msgs.NewUplinkResult(up.Seq, res, wait, err))
}

func (b *Bridge) forwardDownlinks(ctx context.Context) error {
	_, err := b.Modem.Poll(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !comm.IsFrameError(err) {
			return err
		}
		glog.Warningf("receive: %v", err)
	}
	for {
		rpt, err := b.Modem.Receive()
		if err == comm.ErrNotReady {
			return nil
		}
		if err != nil {
			glog.Warningf("downlink: %v", err)
			continue
		}
		glog.V(1).Infof("downlink %d bytes rssi=%d snr=%d", len(rpt.Payload), rpt.RSSI, rpt.SNR)
		if err := b.publish(TopicDownlink, msgs.NewDownlink(b.Gateway, rpt, time.Now())); err != nil {
			return err
		}
	}
}

// publish only fails on encoding, broker errors are logged.
func (b *Bridge) publish(name string, msg proto.Message) error {
	data, err := msgs.Encode(msg)
	if err != nil {
		return err
	}
	if err := b.Queue.Publish(b.Topic(name), data); err != nil {
		glog.Errorf("publish %s: %v", name, err)
	}
	return nil
}
