package main

//go-build: CGO_ENABLED=0

import (
	"flag"

	"github.com/golang/glog"

	fx "github.com/robotalks/lora.go/pkg/framework"
	"github.com/robotalks/lora.go/pkg/l1/bridge"
	"github.com/robotalks/lora.go/pkg/l1/comm/mqtt"
	"github.com/robotalks/lora.go/pkg/l1/env"
)

func init() {
	env.SetupFlags()
}

func main() {
	flag.Parse()

	conf, err := env.Load()
	if err != nil {
		glog.Exit(err)
	}
	q, err := mqtt.NewQueueFromURL(conf.MQTTURL)
	if err != nil {
		glog.Exit(err)
	}
	if err = q.Connect(); err != nil {
		glog.Exitf("connect %s: %v", conf.MQTTURL, err)
	}
	defer q.Close()

	link, err := conf.Open()
	if err != nil {
		glog.Exit(err)
	}
	b := bridge.New(link.Modem, q, conf.Gateway())
	b.PollInterval = conf.PollInterval.Duration

	fx.NewRunner().
		HandleSignals().
		Go(link, b).
		WaitOrFail()
}
