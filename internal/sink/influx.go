// Package sink persists sensor readings to external stores.
package sink

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/plantsense/flowercare"
)

// InfluxSink writes readings as points to an InfluxDB 2.x bucket.
type InfluxSink struct {
	client      influxdb2.Client
	write       api.WriteAPIBlocking
	measurement string
}

// NewInfluxSink connects to InfluxDB and verifies the server is healthy.
func NewInfluxSink(url, token, org, bucket, measurement string) (*InfluxSink, error) {
	client := influxdb2.NewClient(url, token)
	health, err := client.Health(context.Background())
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("sink: connect to influxdb: %w", err)
	}
	if health.Status != "pass" {
		client.Close()
		msg := ""
		if health.Message != nil {
			msg = *health.Message
		}
		return nil, fmt.Errorf("sink: influxdb health check failed: %s", msg)
	}
	if measurement == "" {
		measurement = "flowercare"
	}
	return &InfluxSink{
		client:      client,
		write:       client.WriteAPIBlocking(org, bucket),
		measurement: measurement,
	}, nil
}

// WriteReading records one sensor reading for the given device.
func (s *InfluxSink) WriteReading(ctx context.Context, address, name string, r flowercare.SensorReading) error {
	point := influxdb2.NewPoint(
		s.measurement,
		map[string]string{"address": address, "device": name},
		map[string]interface{}{
			"temperature":  r.Temperature,
			"brightness":   int64(r.Brightness),
			"moisture":     int64(r.Moisture),
			"conductivity": int64(r.Conductivity),
		},
		r.Timestamp,
	)
	if err := s.write.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("sink: write point: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}
