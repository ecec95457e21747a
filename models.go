package flowercare

import (
	"fmt"
	"time"
)

// SensorReading is one live or logged measurement.
type SensorReading struct {
	Temperature  float64   // °C, tenths precision
	Brightness   uint32    // lux
	Moisture     uint8     // percent
	Conductivity uint16    // µS/cm
	Timestamp    time.Time // zero when no capture time is known
}

// Validate checks the documented value ranges. Brightness and conductivity
// are unsigned on the wire and cannot go out of range.
func (r SensorReading) Validate() error {
	if r.Temperature < -50 || r.Temperature > 100 {
		return fmt.Errorf("temperature %.1f°C outside [-50, 100]", r.Temperature)
	}
	if r.Moisture > 100 {
		return fmt.Errorf("moisture %d%% outside [0, 100]", r.Moisture)
	}
	return nil
}

func (r SensorReading) String() string {
	return fmt.Sprintf("Temperature: %.1f°C, Brightness: %d lux, Moisture: %d%%, Conductivity: %d µS/cm",
		r.Temperature, r.Brightness, r.Moisture, r.Conductivity)
}

// DeviceInfo is the metadata of a sensor. FirmwareVersion and BatteryLevel
// are absent when the corresponding characteristic could not be read.
type DeviceInfo struct {
	Name            string
	Address         string
	FirmwareVersion string
	BatteryLevel    *int
}

func (i DeviceInfo) String() string {
	firmware := "unknown"
	if i.FirmwareVersion != "" {
		firmware = i.FirmwareVersion
	}
	battery := "unknown"
	if i.BatteryLevel != nil {
		battery = fmt.Sprintf("%d%%", *i.BatteryLevel)
	}
	return fmt.Sprintf("Device: %s (%s), Firmware: %s, Battery: %s", i.Name, i.Address, firmware, battery)
}

// HistoricalEntry is one record of the on-device measurement log.
type HistoricalEntry struct {
	Timestamp time.Time
	Reading   SensorReading
}

func (e HistoricalEntry) String() string {
	return fmt.Sprintf("%s: %s", e.Timestamp.Format(time.RFC3339), e.Reading)
}
