package flowercare

import (
	"context"
	"fmt"
	"strings"

	"tinygo.org/x/bluetooth"
)

// BluetoothTransport is the production Transport backed by
// tinygo.org/x/bluetooth (BlueZ on Linux, CoreBluetooth on macOS, WinRT
// on Windows). On macOS, device addresses are CoreBluetooth UUIDs rather
// than MAC addresses.
type BluetoothTransport struct {
	adapter    *bluetooth.Adapter
	vendorUUID bluetooth.UUID
}

// NewBluetoothTransport creates a transport on the platform's default
// adapter.
func NewBluetoothTransport() (*BluetoothTransport, error) {
	uuid, err := bluetooth.ParseUUID(AdvertisementUUID)
	if err != nil {
		return nil, fmt.Errorf("flowercare: parse vendor UUID: %w", err)
	}
	return &BluetoothTransport{
		adapter:    bluetooth.DefaultAdapter,
		vendorUUID: uuid,
	}, nil
}

func (t *BluetoothTransport) Enable() error {
	return t.adapter.Enable()
}

func (t *BluetoothTransport) Scan(ctx context.Context, onAdv func(Advertisement)) error {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			t.adapter.StopScan()
		case <-done:
		}
	}()

	err := t.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		adv := Advertisement{
			Name:    result.LocalName(),
			Address: result.Address.String(),
			RSSI:    int(result.RSSI),
		}
		// The advertisement payload API only answers membership queries,
		// and the vendor UUID is the only one discovery cares about.
		if result.HasServiceUUID(t.vendorUUID) {
			adv.ServiceUUIDs = []string{AdvertisementUUID}
		}
		onAdv(adv)
	})
	close(done)

	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("flowercare: scan: %w", err)
	}
	return nil
}

func (t *BluetoothTransport) Connect(ctx context.Context, address string) (Conn, error) {
	var addr bluetooth.Address
	addr.Set(address)

	// The underlying Connect blocks with its own timeout; wrap it so our
	// ctx cancellation returns immediately.
	type connectResult struct {
		device bluetooth.Device
		err    error
	}
	ch := make(chan connectResult, 1)
	go func() {
		device, err := t.adapter.Connect(addr, bluetooth.ConnectionParams{})
		ch <- connectResult{device, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("flowercare: connect to %s: %w", address, ctx.Err())
	case result := <-ch:
		if result.err != nil {
			return nil, fmt.Errorf("flowercare: connect to %s: %w", address, result.err)
		}
		return &bluetoothConn{device: result.device}, nil
	}
}

// Compile-time check that BluetoothTransport implements Transport.
var _ Transport = (*BluetoothTransport)(nil)

type bluetoothConn struct {
	device bluetooth.Device
	chars  map[string]bluetooth.DeviceCharacteristic
}

// characteristic resolves a characteristic by UUID, discovering and
// caching the full GATT table on first use. The vendor spreads its
// characteristics over several services, so discovery is unfiltered.
func (c *bluetoothConn) characteristic(uuid string) (bluetooth.DeviceCharacteristic, error) {
	if c.chars == nil {
		svcs, err := c.device.DiscoverServices(nil)
		if err != nil {
			return bluetooth.DeviceCharacteristic{}, fmt.Errorf("flowercare: discover services: %w", err)
		}
		c.chars = make(map[string]bluetooth.DeviceCharacteristic)
		for _, svc := range svcs {
			chars, err := svc.DiscoverCharacteristics(nil)
			if err != nil {
				continue
			}
			for _, char := range chars {
				c.chars[strings.ToLower(char.UUID().String())] = char
			}
		}
	}
	char, ok := c.chars[strings.ToLower(uuid)]
	if !ok {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("flowercare: characteristic %s not found", uuid)
	}
	return char, nil
}

func (c *bluetoothConn) ReadCharacteristic(uuid string) ([]byte, error) {
	char, err := c.characteristic(uuid)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 255)
	n, err := char.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (c *bluetoothConn) WriteCharacteristic(uuid string, data []byte) error {
	char, err := c.characteristic(uuid)
	if err != nil {
		return err
	}
	_, err = char.WriteWithoutResponse(data)
	return err
}

func (c *bluetoothConn) Disconnect() error {
	return c.device.Disconnect()
}
