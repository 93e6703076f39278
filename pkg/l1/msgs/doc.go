// Package msgs provides the messages a gateway exchanges over MQTT.
package msgs

// Messages are encoded in protobuf wire format, see lora.proto.
//
// Producer: gateway (Downlink, UplinkResult), application (Uplink)
// Consumer: application (Downlink, UplinkResult), gateway (Uplink)
