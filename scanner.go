package flowercare

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Scanner discovers Flower Care sensors by BLE advertisement.
type Scanner struct {
	transport Transport
}

// NewScanner creates a scanner on the given transport.
func NewScanner(t Transport) *Scanner {
	return &Scanner{transport: t}
}

// matches reports whether an advertisement belongs to a Flower Care
// sensor. The name prefix is checked first, the vendor service UUID
// second; either suffices.
func matches(adv Advertisement) bool {
	if len(adv.Name) >= len(DeviceNamePrefix) && strings.EqualFold(adv.Name[:len(DeviceNamePrefix)], DeviceNamePrefix) {
		return true
	}
	for _, uuid := range adv.ServiceUUIDs {
		if strings.EqualFold(uuid, AdvertisementUUID) {
			return true
		}
	}
	return false
}

// Scan discovers sensors for the given duration. Repeat advertisements
// from one address produce a single device; the first occurrence wins.
func (s *Scanner) Scan(ctx context.Context, timeout time.Duration) ([]*Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Kind: KindTimeout, Op: "scan",
			Msg: fmt.Sprintf("scan timeout after %s", timeout), Err: err}
	}
	scanCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var devices []*Device
	seen := make(map[string]bool)
	err := s.transport.Scan(scanCtx, func(adv Advertisement) {
		if !matches(adv) {
			return
		}
		key := strings.ToLower(adv.Address)
		if seen[key] {
			return
		}
		seen[key] = true
		slog.Info("[flowercare] discovered device", "name", adv.Name, "address", adv.Address, "rssi", adv.RSSI)
		devices = append(devices, NewDevice(s.transport, adv))
	})
	if err != nil && scanCtx.Err() == nil {
		return nil, &Error{Kind: KindDevice, Op: "scan", Msg: "scan failed", Err: err}
	}
	return devices, nil
}

// FindByAddress scans for up to timeout and returns the sensor whose
// address equals address case-insensitively, or nil when none appears.
func (s *Scanner) FindByAddress(ctx context.Context, address string, timeout time.Duration) (*Device, error) {
	devices, err := s.Scan(ctx, timeout)
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		if strings.EqualFold(d.Address(), address) {
			return d, nil
		}
	}
	return nil, nil
}

// ScanContinuous pushes every newly-discovered sensor to callback until
// ctx is cancelled, with the same filter and dedup semantics as Scan.
// Cancellation stops the underlying listener and is returned to the
// caller as ctx's error.
func (s *Scanner) ScanContinuous(ctx context.Context, callback func(*Device)) error {
	seen := make(map[string]bool)
	err := s.transport.Scan(ctx, func(adv Advertisement) {
		if !matches(adv) {
			return
		}
		key := strings.ToLower(adv.Address)
		if seen[key] {
			return
		}
		seen[key] = true
		slog.Info("[flowercare] discovered device", "name", adv.Name, "address", adv.Address, "rssi", adv.RSSI)
		callback(NewDevice(s.transport, adv))
	})
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return &Error{Kind: KindDevice, Op: "scan", Msg: "scan failed", Err: err}
	}
	return nil
}
