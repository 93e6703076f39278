package main

import (
	"encoding/hex"
	"flag"
	"log"
	"os"
	"path"

	"github.com/golang/protobuf/proto"

	"github.com/robotalks/lora.go/pkg/l1/comm/mqtt"
	"github.com/robotalks/lora.go/pkg/l1/msgs"
)

var (
	mqttURL = "mqtt://localhost:1883/lora/"
)

func init() {
	if val := os.Getenv("LORA_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
}

func messageFor(topic string) proto.Message {
	switch path.Base(topic) {
	case "downlink":
		return &msgs.Downlink{}
	case "uplink":
		return &msgs.Uplink{}
	case "result":
		return &msgs.UplinkResult{}
	}
	return nil
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	if err = q.Connect(); err != nil {
		log.Fatalln(err)
	}

	q.Sub("#", mqtt.Handler(func(topic string, payload []byte) {
		msg := messageFor(topic)
		if msg == nil {
			log.Printf("%s: %s", topic, hex.EncodeToString(payload))
			return
		}
		if err := msgs.Decode(payload, msg); err != nil {
			log.Printf("%s: bad message: %v", topic, err)
			return
		}
		log.Printf("%s: %s", topic, msg.String())
	}))
	<-(chan struct{})(nil)
}
