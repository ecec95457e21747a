package flowercare

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

// Payload layouts are little-endian throughout.
const (
	sensorPayloadLen   = 16
	firmwarePayloadLen = 2
)

// historyEntryCommand builds the history-control command addressing entry
// i: 0xA1 followed by the index as little-endian uint16.
func historyEntryCommand(i uint16) []byte {
	return []byte{0xA1, byte(i), byte(i >> 8)}
}

// decodeSensorReading decodes the realtime/history sensor layout:
//
//	[0:2)  temperature, signed tenths of °C
//	[2]    reserved
//	[3:7)  brightness, lux
//	[7]    moisture, percent
//	[8:10) conductivity, µS/cm
//	[10:)  reserved
func decodeSensorReading(data []byte) (SensorReading, error) {
	const op = "decode sensor data"
	if len(data) < sensorPayloadLen {
		return SensorReading{}, &Error{Kind: KindParsing, Op: op,
			Msg: fmt.Sprintf("invalid data length %d, expected at least %d", len(data), sensorPayloadLen)}
	}
	r := SensorReading{
		Temperature:  float64(int16(binary.LittleEndian.Uint16(data[0:2]))) / 10,
		Brightness:   binary.LittleEndian.Uint32(data[3:7]),
		Moisture:     data[7],
		Conductivity: binary.LittleEndian.Uint16(data[8:10]),
	}
	if err := r.Validate(); err != nil {
		return SensorReading{}, &Error{Kind: KindParsing, Op: op, Msg: "value out of range", Err: err}
	}
	return r, nil
}

// decodeFirmwareBattery decodes the firmware/battery payload: battery
// percent, a reserved byte, then a NUL-terminated ASCII firmware string.
func decodeFirmwareBattery(data []byte) (battery int, firmware string, err error) {
	const op = "decode firmware/battery"
	if len(data) < firmwarePayloadLen {
		return 0, "", &Error{Kind: KindParsing, Op: op,
			Msg: fmt.Sprintf("invalid data length %d, expected at least %d", len(data), firmwarePayloadLen)}
	}
	battery = int(data[0])
	if battery > 100 {
		return 0, "", &Error{Kind: KindParsing, Op: op,
			Msg: fmt.Sprintf("battery level %d%% outside [0, 100]", battery)}
	}
	fw := data[2:]
	if i := bytes.IndexByte(fw, 0); i >= 0 {
		fw = fw[:i]
	}
	return battery, string(fw), nil
}

// decodeHistoryCount reads the entry count from a history-control payload.
// A payload shorter than two bytes carries no count.
func decodeHistoryCount(data []byte) (int, bool) {
	if len(data) < 2 {
		return 0, false
	}
	return int(binary.LittleEndian.Uint16(data[0:2])), true
}

// decodeHistoryEntry decodes one history record: a 32-bit offset in
// seconds relative to bootRef, followed by the sensor layout.
func decodeHistoryEntry(data []byte, bootRef time.Time) (HistoricalEntry, error) {
	const op = "decode history entry"
	if len(data) < sensorPayloadLen {
		return HistoricalEntry{}, &Error{Kind: KindParsing, Op: op,
			Msg: fmt.Sprintf("invalid data length %d, expected at least %d", len(data), sensorPayloadLen)}
	}
	offset := binary.LittleEndian.Uint32(data[0:4])
	reading, err := decodeSensorReading(data[4:])
	if err != nil {
		return HistoricalEntry{}, err
	}
	ts := bootRef.Add(time.Duration(offset) * time.Second)
	reading.Timestamp = ts
	return HistoricalEntry{Timestamp: ts, Reading: reading}, nil
}
