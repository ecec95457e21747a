package flowercare

import (
	"context"
	"errors"
	"testing"
	"time"
)

const scanWindow = 20 * time.Millisecond

func TestScanDeduplicatesByAddress(t *testing.T) {
	transport := newMockTransport()
	transport.advs = []Advertisement{
		{Name: "Flower care", Address: "AA:BB:CC:DD:EE:FF"},
		{Name: "Flower care", Address: "aa:bb:cc:dd:ee:ff"}, // same device, folded case
		{Name: "Flower care", Address: "AA:BB:CC:DD:EE:FF"},
		{Name: "Flower care", Address: "11:22:33:44:55:66"},
	}
	scanner := NewScanner(transport)

	devices, err := scanner.Scan(context.Background(), scanWindow)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("Scan() = %d devices, want 2", len(devices))
	}
	// First occurrence wins.
	if devices[0].Address() != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("devices[0].Address() = %q, want first-seen casing", devices[0].Address())
	}
}

func TestScanFilter(t *testing.T) {
	tests := []struct {
		name string
		adv  Advertisement
		want bool
	}{
		{"name match", Advertisement{Name: "Flower care A1B2"}, true},
		{"name match case-insensitive", Advertisement{Name: "FLOWER CARE"}, true},
		{"uuid match, no name", Advertisement{ServiceUUIDs: []string{AdvertisementUUID}}, true},
		{"uuid match case-insensitive", Advertisement{Name: "other", ServiceUUIDs: []string{"0000FE95-0000-1000-8000-00805F9B34FB"}}, true},
		{"no match", Advertisement{Name: "other", ServiceUUIDs: []string{"0000180f-0000-1000-8000-00805f9b34fb"}}, false},
		{"empty advertisement", Advertisement{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.adv.Address = "AA:BB:CC:DD:EE:FF"
			transport := newMockTransport()
			transport.advs = []Advertisement{tt.adv}
			scanner := NewScanner(transport)

			devices, err := scanner.Scan(context.Background(), scanWindow)
			if err != nil {
				t.Fatalf("Scan() error = %v", err)
			}
			if got := len(devices) == 1; got != tt.want {
				t.Errorf("discovered = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScanExpiredContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	scanner := NewScanner(newMockTransport())

	_, err := scanner.Scan(ctx, scanWindow)
	if !IsKind(err, KindTimeout) {
		t.Errorf("Scan() error = %v, want timeout kind", err)
	}
}

func TestScanTransportFailure(t *testing.T) {
	transport := newMockTransport()
	transport.scanErr = errors.New("adapter gone")
	scanner := NewScanner(transport)

	_, err := scanner.Scan(context.Background(), scanWindow)
	if !IsKind(err, KindDevice) {
		t.Errorf("Scan() error = %v, want device kind", err)
	}
}

func TestFindByAddress(t *testing.T) {
	transport := newMockTransport()
	transport.advs = []Advertisement{
		{Name: "Flower care", Address: "AA:BB:CC:DD:EE:FF"},
		{Name: "Flower care", Address: "11:22:33:44:55:66"},
	}
	scanner := NewScanner(transport)

	device, err := scanner.FindByAddress(context.Background(), "aa:bb:cc:dd:ee:ff", scanWindow)
	if err != nil {
		t.Fatalf("FindByAddress() error = %v", err)
	}
	if device == nil || device.Address() != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("FindByAddress() = %v, want AA:BB:CC:DD:EE:FF", device)
	}

	device, err = scanner.FindByAddress(context.Background(), "00:00:00:00:00:00", scanWindow)
	if err != nil {
		t.Fatalf("FindByAddress() error = %v", err)
	}
	if device != nil {
		t.Errorf("FindByAddress() = %v, want nil for unknown address", device)
	}
}

func TestScanContinuousDeduplicates(t *testing.T) {
	transport := newMockTransport()
	transport.advs = []Advertisement{
		{Name: "Flower care", Address: "AA:BB:CC:DD:EE:FF"},
		{Name: "Flower care", Address: "AA:BB:CC:DD:EE:FF"},
	}
	scanner := NewScanner(transport)

	ctx, cancel := context.WithTimeout(context.Background(), scanWindow)
	defer cancel()
	var found []*Device
	err := scanner.ScanContinuous(ctx, func(d *Device) {
		found = append(found, d)
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("ScanContinuous() error = %v, want deadline exceeded", err)
	}
	if len(found) != 1 {
		t.Errorf("callback ran %d times, want 1", len(found))
	}
}

func TestScanContinuousCancellation(t *testing.T) {
	scanner := NewScanner(newMockTransport())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- scanner.ScanContinuous(ctx, func(*Device) {})
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("ScanContinuous() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("ScanContinuous did not return after cancellation")
	}
}
