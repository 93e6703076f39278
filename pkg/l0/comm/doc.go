// Package comm provides L0 protocol support.
package comm

// L0 protocol is communicated between the host and a RimeLink LoRa module
// over a UART link. The module already runs the LoRaWAN stack; the host
// only exchanges short command/response frames with it:
//
//   TX: 0xFF 0x3C TYPE LEN [CONFIRMED PORT] PAYLOAD CS 0x0D
//   RX: 0x3C TYPE LEN PAYLOAD CS 0x0D
//
// CS is the 8-bit sum of TYPE, LEN and the data bytes. It only detects
// short burst corruption; there is no CRC.
//
// Replies carry TYPE = 0x80|command. Downlinks and wake notifications are
// sent by the module unsolicited with TYPE = 0xC0 and end with RSSI (2 bytes,
// big-endian) and SNR (1 byte).
//
// Producer: LoRa module firmware
// Consumer: host
