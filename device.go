package flowercare

import (
	"bytes"
	"context"
	"encoding/binary"
	"log/slog"
	"sync"
	"time"
)

// State is the session state of a Device.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	return []string{"Disconnected", "Connecting", "Connected"}[s]
}

// Device is one discovered Flower Care sensor together with its GATT
// session. The session must be driven by a single logical caller at a
// time: the wire protocol is strictly request-then-response, and
// interleaved operations from two goroutines would corrupt the exchange.
type Device struct {
	transport Transport
	name      string
	address   string

	now func() time.Time // wall clock, swappable in tests

	mu    sync.Mutex
	state State
	conn  Conn
}

// NewDevice creates a device handle from a discovered advertisement.
func NewDevice(t Transport, adv Advertisement) *Device {
	name := adv.Name
	if name == "" {
		name = "Unknown"
	}
	return &Device{
		transport: t,
		name:      name,
		address:   adv.Address,
		now:       time.Now,
	}
}

// Name returns the advertised device name.
func (d *Device) Name() string { return d.name }

// Address returns the BLE address the device was discovered under.
func (d *Device) Address() string { return d.address }

// State returns the current session state.
func (d *Device) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Connect opens the GATT connection. A failure reverts the session to
// Disconnected. Connecting an already-connected device is a no-op.
func (d *Device) Connect(ctx context.Context) error {
	d.mu.Lock()
	if d.state != StateDisconnected {
		d.mu.Unlock()
		return nil
	}
	d.state = StateConnecting
	d.mu.Unlock()

	conn, err := d.transport.Connect(ctx, d.address)
	if err != nil {
		d.reset()
		return &Error{Kind: KindConnection, Op: "connect", Msg: "failed to connect to " + d.address, Err: err}
	}

	d.mu.Lock()
	d.conn = conn
	d.state = StateConnected
	d.mu.Unlock()
	slog.Debug("[flowercare] connected", "address", d.address)
	return nil
}

// Disconnect releases the connection and returns the session to
// Disconnected. It is idempotent: disconnecting a disconnected device
// does nothing.
func (d *Device) Disconnect() error {
	d.mu.Lock()
	conn := d.conn
	d.conn = nil
	d.state = StateDisconnected
	d.mu.Unlock()

	if conn == nil {
		return nil
	}
	if err := conn.Disconnect(); err != nil {
		return &Error{Kind: KindConnection, Op: "disconnect", Msg: "failed to disconnect from " + d.address, Err: err}
	}
	slog.Debug("[flowercare] disconnected", "address", d.address)
	return nil
}

// WithConnection connects, runs fn, and disconnects on every exit path —
// success, early return, or failure.
func (d *Device) WithConnection(ctx context.Context, fn func(*Device) error) error {
	if err := d.Connect(ctx); err != nil {
		return err
	}
	defer d.Disconnect()
	return fn(d)
}

// reset drops the session back to Disconnected without touching the
// transport.
func (d *Device) reset() {
	d.mu.Lock()
	d.state = StateDisconnected
	d.conn = nil
	d.mu.Unlock()
}

// connected returns the live connection, or a connection error naming op.
func (d *Device) connected(op string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateConnected || d.conn == nil {
		return nil, &Error{Kind: KindConnection, Op: op, Msg: "device not connected"}
	}
	return d.conn, nil
}

func (d *Device) writeCommand(op, uuid string, cmd []byte) error {
	conn, err := d.connected(op)
	if err != nil {
		return err
	}
	if err := conn.WriteCharacteristic(uuid, cmd); err != nil {
		return &Error{Kind: KindDevice, Op: op, Msg: "failed to write command", Err: err}
	}
	return nil
}

func (d *Device) readCharacteristic(op, uuid string) ([]byte, error) {
	conn, err := d.connected(op)
	if err != nil {
		return nil, err
	}
	data, err := conn.ReadCharacteristic(uuid)
	if err != nil {
		return nil, &Error{Kind: KindDevice, Op: op, Msg: "failed to read characteristic", Err: err}
	}
	return data, nil
}

// ReadSensorData switches the sensor into realtime mode and reads one live
// measurement. The reading is timestamped with the local clock.
func (d *Device) ReadSensorData() (SensorReading, error) {
	const op = "read sensor data"
	if err := d.writeCommand(op, charModeChange, cmdRealtimeData); err != nil {
		return SensorReading{}, err
	}
	data, err := d.readCharacteristic(op, charSensorData)
	if err != nil {
		return SensorReading{}, err
	}
	reading, err := decodeSensorReading(data)
	if err != nil {
		return SensorReading{}, err
	}
	reading.Timestamp = d.now()
	slog.Debug("[flowercare] sensor reading", "address", d.address, "reading", reading.String())
	return reading, nil
}

// BlinkLED makes the sensor blink its indicator light, to identify one
// device among several.
func (d *Device) BlinkLED() error {
	return d.writeCommand("blink led", charModeChange, cmdBlinkLED)
}

// Info reads the device name and firmware/battery characteristics. Each
// read is attempted independently and a failure is replaced with a
// fallback — the advertised name, absent firmware and battery — so Info
// never fails.
func (d *Device) Info() DeviceInfo {
	const op = "device info"
	info := DeviceInfo{Name: d.name, Address: d.address}

	if data, err := d.readCharacteristic(op, charDeviceName); err != nil {
		slog.Debug("[flowercare] device name read failed, using advertised name", "address", d.address, "error", err)
	} else if name := string(bytes.TrimRight(data, "\x00")); name != "" {
		info.Name = name
	}

	if data, err := d.readCharacteristic(op, charFirmwareBattery); err != nil {
		slog.Debug("[flowercare] firmware/battery read failed", "address", d.address, "error", err)
	} else if battery, firmware, err := decodeFirmwareBattery(data); err != nil {
		slog.Debug("[flowercare] firmware/battery payload invalid", "address", d.address, "error", err)
	} else {
		info.BatteryLevel = &battery
		info.FirmwareVersion = firmware
	}
	return info
}

// History fetches the on-device measurement log. Failures after the
// session check are suppressed: the fetch stops at the first bad read or
// undecodable entry and returns everything decoded before it, possibly
// nothing. It fails only when the device is not connected.
func (d *Device) History() ([]HistoricalEntry, error) {
	const op = "historical data"
	if _, err := d.connected(op); err != nil {
		return nil, err
	}
	entries := []HistoricalEntry{}

	// One epoch read per fetch anchors every entry's relative offset. The
	// characteristic reports seconds since device boot, so the boot
	// reference is the local clock minus the device uptime.
	epochData, err := d.readCharacteristic(op, charEpochTime)
	if err != nil || len(epochData) < 4 {
		slog.Warn("[flowercare] epoch read failed, no history available", "address", d.address, "error", err)
		return entries, nil
	}
	deviceSeconds := binary.LittleEndian.Uint32(epochData[0:4])
	bootRef := d.now().Add(-time.Duration(deviceSeconds) * time.Second)

	if err := d.writeCommand(op, charHistoryControl, cmdHistoryReadInit); err != nil {
		slog.Warn("[flowercare] history init failed", "address", d.address, "error", err)
		return entries, nil
	}
	countData, err := d.readCharacteristic(op, charHistoryControl)
	if err != nil {
		slog.Warn("[flowercare] history count read failed", "address", d.address, "error", err)
		return entries, nil
	}
	count, ok := decodeHistoryCount(countData)
	if !ok {
		slog.Warn("[flowercare] history count payload too short", "address", d.address, "length", len(countData))
		return entries, nil
	}
	slog.Info("[flowercare] reading history", "address", d.address, "entries", count)

	// Entries are read one at a time in index order, each attempted
	// exactly once. The first failure ends the fetch with what we have.
	for i := 0; i < count; i++ {
		if err := d.writeCommand(op, charHistoryControl, historyEntryCommand(uint16(i))); err != nil {
			slog.Warn("[flowercare] history fetch stopped", "address", d.address, "index", i, "error", err)
			break
		}
		data, err := d.readCharacteristic(op, charHistoryData)
		if err != nil {
			slog.Warn("[flowercare] history fetch stopped", "address", d.address, "index", i, "error", err)
			break
		}
		entry, err := decodeHistoryEntry(data, bootRef)
		if err != nil {
			slog.Warn("[flowercare] history fetch stopped", "address", d.address, "index", i, "error", err)
			break
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
