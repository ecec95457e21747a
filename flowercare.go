// Package flowercare implements a client for the Xiaomi Flower Care BLE
// plant sensor. It discovers sensors by advertisement, manages one GATT
// session per device, and speaks the vendor command/response protocol to
// read live measurements, device metadata, and the on-device history log.
package flowercare

import "context"

// Vendor advertisement service UUID. A sensor that does not advertise its
// name still advertises this service.
const AdvertisementUUID = "0000fe95-0000-1000-8000-00805f9b34fb"

// DeviceNamePrefix is the advertised-name prefix used by Flower Care
// sensors, matched case-insensitively during discovery.
const DeviceNamePrefix = "Flower care"

// GATT characteristic UUIDs of the vendor protocol.
const (
	charDeviceName      = "00002a00-0000-1000-8000-00805f9b34fb"
	charModeChange      = "00001a00-0000-1000-8000-00805f9b34fb"
	charSensorData      = "00001a01-0000-1000-8000-00805f9b34fb"
	charFirmwareBattery = "00001a02-0000-1000-8000-00805f9b34fb"
	charHistoryControl  = "00001a10-0000-1000-8000-00805f9b34fb"
	charHistoryData     = "00001a11-0000-1000-8000-00805f9b34fb"
	charEpochTime       = "00001a12-0000-1000-8000-00805f9b34fb"
)

// Commands written to the mode-change and history-control characteristics.
var (
	cmdRealtimeData    = []byte{0xA0, 0x1F}
	cmdBlinkLED        = []byte{0xFD, 0xFF}
	cmdHistoryReadInit = []byte{0xA0, 0x00}
)

// Advertisement is one observed BLE advertisement.
type Advertisement struct {
	Name         string
	Address      string
	RSSI         int
	ServiceUUIDs []string
}

// Conn represents an active GATT connection to a peripheral.
type Conn interface {
	// ReadCharacteristic reads the current value of a characteristic.
	ReadCharacteristic(uuid string) ([]byte, error)
	// WriteCharacteristic writes data to a characteristic.
	WriteCharacteristic(uuid string, data []byte) error
	// Disconnect terminates the connection.
	Disconnect() error
}

// Transport abstracts the BLE adapter so scanner and session logic can be
// tested against doubles.
type Transport interface {
	// Enable powers on the BLE adapter.
	Enable() error
	// Scan streams advertisements to onAdv until ctx is done, then stops
	// the underlying listener and returns. onAdv is invoked sequentially
	// from the scanning goroutine.
	Scan(ctx context.Context, onAdv func(Advertisement)) error
	// Connect establishes a connection to the peripheral with the given
	// address.
	Connect(ctx context.Context, address string) (Conn, error)
}
