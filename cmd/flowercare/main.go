// Command flowercare discovers Xiaomi Flower Care plant sensors and talks
// to them: live readings, device info, LED identification, history export,
// and continuous monitoring with an optional InfluxDB sink.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/plantsense/flowercare"
	"github.com/plantsense/flowercare/internal/config"
	"github.com/plantsense/flowercare/internal/sink"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ~/.config/flowercare/config.yaml)")
	address := flag.String("address", "", "sensor address (default: from config, or first discovered)")
	out := flag.String("out", "", "CSV output path for the history command")
	interval := flag.Duration("interval", 0, "poll interval for the monitor command (default: from config)")
	watch := flag.Bool("watch", false, "scan continuously until interrupted (scan command)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}
	setupLogging(cfg.LogLevel)

	// Secrets come from the environment, .env included, so the token
	// never has to live in the config file.
	_ = godotenv.Load()
	if token := os.Getenv("INFLUXDB_TOKEN"); token != "" {
		cfg.Influx.Token = token
	}

	if *address == "" {
		*address = cfg.Device.Address
	}
	if *interval <= 0 {
		*interval = cfg.Monitor.Interval()
	}

	transport, err := flowercare.NewBluetoothTransport()
	if err != nil {
		log.Fatalf("bluetooth: %v", err)
	}
	if err := transport.Enable(); err != nil {
		log.Fatalf("bluetooth: enable adapter: %v", err)
	}
	scanner := flowercare.NewScanner(transport)
	ctx := context.Background()

	switch cmd := flag.Arg(0); cmd {
	case "scan":
		err = runScan(ctx, scanner, cfg.Scan.Timeout(), *watch)
	case "read":
		err = withDevice(ctx, scanner, cfg, *address, runRead)
	case "info":
		err = withDevice(ctx, scanner, cfg, *address, runInfo)
	case "blink":
		err = withDevice(ctx, scanner, cfg, *address, runBlink)
	case "history":
		err = withDevice(ctx, scanner, cfg, *address, func(d *flowercare.Device) error {
			return runHistory(d, *out)
		})
	case "monitor":
		err = runMonitor(ctx, scanner, cfg, *address, *interval)
	default:
		log.Printf("unknown command %q", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", flag.Arg(0), err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: flowercare [flags] <command>

Commands:
  scan      discover nearby sensors
  read      read a live measurement
  info      show device name, firmware and battery
  blink     blink the indicator LED
  history   fetch the on-device measurement log
  monitor   poll readings until interrupted

Flags:
`)
	flag.PrintDefaults()
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		log.Printf("Config loaded from %s", defaultPath)
		return cfg, nil
	}

	return config.Default(), nil
}

func runScan(ctx context.Context, scanner *flowercare.Scanner, timeout time.Duration, watch bool) error {
	if watch {
		ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		log.Println("Scanning continuously, Ctrl+C to stop...")
		err := scanner.ScanContinuous(ctx, func(d *flowercare.Device) {
			log.Printf("Found %s (%s)", d.Name(), d.Address())
		})
		if err == context.Canceled {
			return nil
		}
		return err
	}

	log.Printf("Scanning for %s...", timeout)
	devices, err := scanner.Scan(ctx, timeout)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		log.Println("No sensors found")
		return nil
	}
	for _, d := range devices {
		log.Printf("Found %s (%s)", d.Name(), d.Address())
	}
	return nil
}

// withDevice resolves the target sensor, opens a scoped session and runs
// fn inside it. The connection is released on every exit path.
func withDevice(ctx context.Context, scanner *flowercare.Scanner, cfg *config.Config, address string, fn func(*flowercare.Device) error) error {
	device, err := resolveDevice(ctx, scanner, cfg, address)
	if err != nil {
		return err
	}
	log.Printf("Connecting to %s (%s)...", device.Name(), device.Address())
	return device.WithConnection(ctx, fn)
}

func resolveDevice(ctx context.Context, scanner *flowercare.Scanner, cfg *config.Config, address string) (*flowercare.Device, error) {
	if address != "" {
		device, err := scanner.FindByAddress(ctx, address, cfg.Scan.Timeout())
		if err != nil {
			return nil, err
		}
		if device == nil {
			return nil, fmt.Errorf("sensor %s not found within %s", address, cfg.Scan.Timeout())
		}
		return device, nil
	}

	devices, err := scanner.Scan(ctx, cfg.Scan.Timeout())
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("no sensors found within %s", cfg.Scan.Timeout())
	}
	return devices[0], nil
}

func runRead(d *flowercare.Device) error {
	reading, err := d.ReadSensorData()
	if err != nil {
		return err
	}
	log.Println(reading)
	return nil
}

func runInfo(d *flowercare.Device) error {
	log.Println(d.Info())
	return nil
}

func runBlink(d *flowercare.Device) error {
	log.Println("Blinking LED...")
	return d.BlinkLED()
}

func runHistory(d *flowercare.Device, out string) error {
	entries, err := d.History()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		log.Println("No historical data available")
		return nil
	}
	log.Printf("Fetched %d entries", len(entries))

	if out == "" {
		for _, e := range entries {
			log.Println(e)
		}
		return nil
	}
	if err := writeCSV(out, entries); err != nil {
		return err
	}
	log.Printf("Historical data saved to %s", out)
	return nil
}

func writeCSV(path string, entries []flowercare.HistoricalEntry) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"timestamp", "temperature", "brightness", "moisture", "conductivity"}); err != nil {
		return err
	}
	for _, e := range entries {
		record := []string{
			e.Timestamp.Format(time.RFC3339),
			strconv.FormatFloat(e.Reading.Temperature, 'f', 1, 64),
			strconv.FormatUint(uint64(e.Reading.Brightness), 10),
			strconv.FormatUint(uint64(e.Reading.Moisture), 10),
			strconv.FormatUint(uint64(e.Reading.Conductivity), 10),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func runMonitor(ctx context.Context, scanner *flowercare.Scanner, cfg *config.Config, address string, interval time.Duration) error {
	device, err := resolveDevice(ctx, scanner, cfg, address)
	if err != nil {
		return err
	}

	var store *sink.InfluxSink
	if cfg.Influx.Enabled() {
		store, err = sink.NewInfluxSink(cfg.Influx.URL, cfg.Influx.Token, cfg.Influx.Org, cfg.Influx.Bucket, cfg.Influx.Measurement)
		if err != nil {
			return err
		}
		defer store.Close()
		log.Printf("Writing readings to InfluxDB at %s", cfg.Influx.URL)
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	log.Printf("Monitoring %s every %s, Ctrl+C to stop...", device.Address(), interval)

	for ctx.Err() == nil {
		err := device.WithConnection(ctx, func(d *flowercare.Device) error {
			for {
				reading, err := d.ReadSensorData()
				if err != nil {
					return err
				}
				log.Printf("%s: %s", d.Name(), reading)
				if store != nil {
					if err := store.WriteReading(ctx, d.Address(), d.Name(), reading); err != nil {
						slog.Warn("failed to store reading", "error", err)
					}
				}
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(interval):
				}
			}
		})
		if ctx.Err() != nil {
			break
		}
		if err != nil {
			slog.Warn("monitor session failed, retrying", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(5 * time.Second):
			}
		}
	}
	log.Println("Monitor stopped")
	return nil
}
