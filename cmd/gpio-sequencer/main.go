// Command gpio-sequencer drives a bank of GPIO output lines from a digital
// input or a temperature sensor and publishes what it sees to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/gpio-sequencer/internal/config"
	"github.com/sweeney/gpio-sequencer/internal/engine"
	"github.com/sweeney/gpio-sequencer/internal/gpio"
	"github.com/sweeney/gpio-sequencer/internal/mqtt"
	"github.com/sweeney/gpio-sequencer/internal/status"
	"github.com/sweeney/gpio-sequencer/internal/web"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (empty uses the program preset)")
	program := flag.String("program", string(config.ProgramBlink), "Preset when the config file names none: blink, count or thermo")
	driver := flag.String("driver", "", "GPIO driver: gpiocdev, periph, rpio or sim")
	chip := flag.String("chip", "", "GPIO chip for the gpiocdev driver")
	broker := flag.String("broker", "", "MQTT broker address (empty to disable)")
	httpAddr := flag.String("http", "", "HTTP status address (empty to disable)")
	mdns := flag.Bool("mdns", false, "Advertise the HTTP status page over mDNS")
	maxCycles := flag.Uint64("max-cycles", 0, "Stop after this many cycles (0 runs until interrupted)")
	printState := flag.Bool("print-state", false, "Print current input state and exit")

	flag.Parse()

	cfg, err := config.Load(*configPath, config.Program(*program))
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "driver":
			cfg.Driver = *driver
		case "chip":
			cfg.Chip = *chip
		case "broker":
			cfg.MQTT.Broker = *broker
		case "http":
			cfg.HTTP = *httpAddr
		case "mdns":
			cfg.MDNS = *mdns
		case "max-cycles":
			cfg.MaxCycles = *maxCycles
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *printState); err != nil {
		log.Printf("fatal: %v", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, printState bool) error {
	ec, err := cfg.Engine()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	hw, err := openHardware(cfg)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer hw.Close()

	if printState {
		return printInput(os.Stdout, hw, ec.Input)
	}

	var publisher mqtt.Publisher = mqtt.NopPublisher{}
	var mqttStatus mqtt.ConnectionStatus
	if cfg.MQTT.Broker != "" {
		p, err := mqtt.NewRealPublisher(mqtt.Options{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			Program:     string(cfg.Program),
		})
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer p.Close()
		publisher, mqttStatus = p, p
	}

	sc := statusConfig(cfg)
	sc.RunID = uuid.NewString()
	tracker := status.NewTracker(time.Now(), sc)
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	if cfg.HTTP != "" {
		srv := web.New(cfg.HTTP, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP)

		if cfg.MDNS {
			withdraw, err := web.Advertise("gpio-sequencer "+string(cfg.Program), cfg.HTTP, []string{
				"program=" + string(cfg.Program),
				"run_id=" + sc.RunID,
				"path=/index.json",
			})
			if err != nil {
				log.Printf("mdns: %v", err)
			} else {
				defer withdraw()
			}
		}
	}

	log.Printf("started: run=%s program=%s driver=%s outputs=%v broker=%q", sc.RunID, cfg.Program, cfg.Driver, cfg.Outputs, cfg.MQTT.Broker)

	return runSequencer(ctx, hw, ec, cfg.Program, publisher, mqttStatus, tracker, engine.RealClock{}, os.Stdout)
}

// runSequencer owns one engine lifetime: initialize, announce, run until
// stopped, then report how it ended. It returns an error only for faults.
func runSequencer(ctx context.Context, hw gpio.Hardware, ec engine.Config, program config.Program, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, clock engine.Clock, out io.Writer) error {
	rep := &reporter{out: out, tracker: tracker, publisher: publisher, mqttStatus: mqttStatus}

	eng, err := engine.Initialize(hw, ec, engine.WithClock(clock), engine.WithReporter(rep))
	if err != nil {
		tracker.SetStopped(err.Error(), nil)
		publishSystem(publisher, mqttStatus, tracker, "FAULT", err.Error())
		return err
	}

	publishSystem(publisher, mqttStatus, tracker, "STARTUP", "")
	printBanner(out, program, ec)

	err = eng.Run(ctx)

	switch {
	case isFault(err):
		tracker.SetStopped(err.Error(), eng.Lines())
		publishSystem(publisher, mqttStatus, tracker, "FAULT", err.Error())
	case errors.Is(err, engine.ErrCancelled):
		fmt.Fprintln(out, "\nProgram stopped by user.")
		tracker.SetStopped("", eng.Lines())
		publishSystem(publisher, mqttStatus, tracker, "SHUTDOWN", "interrupted")
	default:
		tracker.SetStopped("", eng.Lines())
		publishSystem(publisher, mqttStatus, tracker, "SHUTDOWN", "completed")
	}
	fmt.Fprintln(out, "GPIO cleanup done. Exiting safely.")

	if isFault(err) {
		return err
	}
	return nil
}

// isFault reports whether err from Run is anything other than a clean stop.
// A teardown failure after cancellation still counts.
func isFault(err error) bool {
	if err == nil {
		return false
	}
	var hwErr *engine.HardwareIOError
	if errors.As(err, &hwErr) {
		return true
	}
	return !errors.Is(err, engine.ErrCancelled)
}

func publishSystem(publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, event, reason string) {
	if mqttStatus != nil {
		tracker.SetMQTTConnected(mqttStatus.IsConnected())
	}
	snap := tracker.Snapshot()
	e := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := publisher.PublishSystem(e); err != nil {
		log.Printf("failed to publish %s event: %v", event, err)
	} else {
		log.Printf("published %s event", event)
	}
}

func printBanner(out io.Writer, program config.Program, ec engine.Config) {
	switch program {
	case config.ProgramBlink:
		if ec.Burst > 0 {
			fmt.Fprintf(out, "All LEDs ON for %v at start...\n", ec.Burst)
		}
		fmt.Fprintln(out, "Starting LED blink sequence. Press Ctrl+C to stop.")
	case config.ProgramCount:
		fmt.Fprintln(out, "System Initialized...")
		fmt.Fprintln(out, "\nObject Detection using IR Sensor")
		fmt.Fprintln(out, "---------------------------------")
		fmt.Fprintln(out)
	case config.ProgramThermo:
		fmt.Fprintln(out, "Starting temperature monitor. Press Ctrl+C to stop.")
	}
}

// printInput reads the configured input once without claiming any outputs.
func printInput(out io.Writer, hw gpio.Hardware, in engine.InputSource) error {
	switch in.Kind {
	case engine.InputDigital:
		h, err := hw.ConfigureInput(in.Pin, in.Pull)
		if err != nil {
			return fmt.Errorf("configure input: %w", err)
		}
		defer h.Release()
		level, err := h.Read()
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		fmt.Fprintf(out, "GPIO%d: %s\n", in.Pin, levelString(level))
	case engine.InputScalar:
		s, err := hw.ConfigureSensor(in.SensorID)
		if err != nil {
			return fmt.Errorf("configure sensor: %w", err)
		}
		defer s.Release()
		v, err := s.Read()
		if err != nil {
			return fmt.Errorf("read sensor: %w", err)
		}
		fmt.Fprintf(out, "%s: %.2f °C\n", s.ID(), v)
	default:
		fmt.Fprintln(out, "no input configured")
	}
	return nil
}

func openHardware(cfg config.Config) (gpio.Hardware, error) {
	switch cfg.Driver {
	case config.DriverGPIOCDev:
		return gpio.NewChip(cfg.Chip, cfg.Sensor.W1Dir)
	case config.DriverPeriph:
		return gpio.NewPeriph(cfg.Sensor.W1Dir)
	case config.DriverRPIO:
		return gpio.NewRPIO(cfg.Sensor.W1Dir)
	case config.DriverSim:
		return gpio.NewFake(cfg.Sim.Samples, cfg.Sim.Values), nil
	}
	return nil, fmt.Errorf("unknown driver %q", cfg.Driver)
}

func statusConfig(cfg config.Config) status.Config {
	sc := status.Config{
		Program:     string(cfg.Program),
		Driver:      cfg.Driver,
		Outputs:     append([]int(nil), cfg.Outputs...),
		PollMs:      cfg.Delays.Poll.Milliseconds(),
		Broker:      cfg.MQTT.Broker,
		HTTPAddr:    cfg.HTTP,
		TopicPrefix: cfg.MQTT.TopicPrefix,
	}
	if cfg.Program == config.ProgramThermo {
		t := cfg.Threshold
		sc.Threshold = &t
	}
	return sc
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

func levelString(high bool) string {
	if high {
		return "HIGH"
	}
	return "LOW"
}
