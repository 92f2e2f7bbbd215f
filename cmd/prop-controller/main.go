// Command prop-controller watches eight sensor inputs and plays relay
// sequences on an I2C expander when a mapped input fires.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sweeney/prop-controller/internal/config"
	"github.com/sweeney/prop-controller/internal/dispatch"
	"github.com/sweeney/prop-controller/internal/events"
	"github.com/sweeney/prop-controller/internal/expander"
	"github.com/sweeney/prop-controller/internal/gpio"
	"github.com/sweeney/prop-controller/internal/i2c"
	"github.com/sweeney/prop-controller/internal/logging"
	"github.com/sweeney/prop-controller/internal/logic"
	"github.com/sweeney/prop-controller/internal/monitor"
	"github.com/sweeney/prop-controller/internal/mqtt"
	"github.com/sweeney/prop-controller/internal/relay"
	"github.com/sweeney/prop-controller/internal/show"
	"github.com/sweeney/prop-controller/internal/status"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// heartbeatCheck is how often runLoop checks whether a heartbeat is due.
const heartbeatCheck = time.Second

type options struct {
	configPath string
	logLevel   string
	broker     string
	heartbeat  time.Duration
	allOff     bool
	printState bool

	// set records which flags were given explicitly.
	set map[string]bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Path to YAML config file (empty for defaults)")
	flag.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	flag.StringVar(&opts.broker, "broker", "", `MQTT broker for diagnostics, e.g. "tcp://192.168.1.200:1883" (overrides config)`)
	flag.DurationVar(&opts.heartbeat, "heartbeat", 0, "Heartbeat interval, 0 to disable (overrides config)")
	flag.BoolVar(&opts.allOff, "all-off", false, "Turn every relay off and exit")
	flag.BoolVar(&opts.printState, "print-state", false, "Print the relay output register and exit")

	flag.Parse()

	opts.set = make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })

	if err := run(opts); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// loadConfig loads the file and applies explicit flag overrides.
func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.set["log-level"] {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.set["broker"] {
		cfg.MQTT.Broker = opts.broker
	}
	if opts.set["heartbeat"] {
		cfg.MQTT.Heartbeat = opts.heartbeat
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func run(opts options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// One-shot modes talk to the expander only.
	if opts.allOff || opts.printState {
		return runOneShot(cfg, opts)
	}

	table := show.Table()
	tracker := status.NewTracker(time.Now(), status.Config{
		DebounceMs:    cfg.Inputs.Debounce.Milliseconds(),
		HeartbeatMs:   cfg.MQTT.Heartbeat.Milliseconds(),
		QueueCapacity: cfg.Events.Capacity,
		Triggers:      len(table),
		I2CDevice:     cfg.I2C.Device,
		I2CAddress:    cfg.I2C.Address,
		Broker:        cfg.MQTT.Broker,
	})

	// The base logger never forwards to MQTT; the publisher logs through it.
	baseLog := logging.New(cfg.Logging, version)
	logger := baseLog

	var (
		publisher  mqtt.Publisher
		mqttStatus mqtt.ConnectionStatus
		forwarder  *mqtt.Forwarder
	)
	if cfg.MQTT.Broker != "" {
		pub, err := mqtt.NewRealPublisher(mqtt.Options{
			Broker:             cfg.MQTT.Broker,
			ClientID:           cfg.MQTT.ClientID,
			Topics:             mqtt.NewTopics(cfg.MQTT.TopicPrefix),
			BufferSize:         cfg.MQTT.QueueSize,
			OnConnectionChange: tracker.SetMQTTConnected,
		}, baseLog)
		if err != nil {
			baseLog.Error("mqtt diagnostics disabled", "error", err)
		} else {
			defer pub.Close()
			publisher, mqttStatus = pub, pub
			forwarder = mqtt.NewForwarder(pub, cfg.MQTT.QueueSize, baseLog)
			logger = logging.New(cfg.Logging, version,
				mqtt.NewHandler(forwarder, logging.ParseLevel(cfg.MQTT.Level)))
		}
	}

	exec, closeBus := openRelays(cfg, logger)
	defer closeBus()

	if err := exec.Init(); err != nil {
		// Keep monitoring: every sequence will log its own bus error.
		logger.Error("relay controller init failed", "error", err)
	} else {
		tracker.SetDriverReady(true)
	}
	tracker.SetRelays(exec.Shadow())

	if err := table.Validate(); err != nil {
		logger.Warn("trigger table problem", "error", err)
	}
	logger.Info("trigger configurations loaded", "count", len(table))

	lines, err := gpio.RequestLines(cfg.GPIO.Chip, cfg.GPIO.Lines, gpio.Options{
		Bias:      gpio.Bias(cfg.GPIO.Bias),
		ActiveLow: cfg.GPIO.ActiveLow,
	})
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer func() {
		for _, l := range lines {
			l.Close()
		}
	}()

	// Diagnostics outlive the control tasks so shutdown logs still go out.
	fwdCtx, fwdCancel := context.WithCancel(context.Background())
	fwdDone := make(chan struct{})
	if forwarder != nil {
		go func() {
			forwarder.Run(fwdCtx)
			close(fwdDone)
		}()
	} else {
		close(fwdDone)
	}
	defer func() {
		fwdCancel()
		<-fwdDone
	}()

	ch := events.New(cfg.Events.Capacity)
	disp := dispatch.New(table, exec, logger, tracker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	for i, line := range lines {
		m := monitor.New(line, logic.InputID(i), cfg.Inputs.Debounce, ch, logger, tracker)
		g.Go(func() error { return m.Run(gctx) })
	}
	g.Go(func() error { return disp.Run(gctx, ch) })

	stop := func() error {
		cancel()
		return g.Wait()
	}

	if publisher != nil {
		snap := tracker.Snapshot()
		startup := mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      "STARTUP",
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
		}
		if err := publisher.PublishSystem(startup); err != nil {
			logger.Warn("failed to publish startup event", "error", err)
		}
	}

	logger.Info("started",
		"inputs", len(lines),
		"debounce", cfg.Inputs.Debounce.String(),
		"queue", cfg.Events.Capacity,
		"expander", fmt.Sprintf("%s@0x%02x", cfg.I2C.Device, cfg.I2C.Address),
		"heartbeat", cfg.MQTT.Heartbeat.String())

	ticker := time.NewTicker(heartbeatCheck)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(loopDeps{
		publisher:  publisher,
		mqttStatus: mqttStatus,
		tracker:    tracker,
		relays:     exec,
		log:        logger,
		stop:       stop,
	}, cfg.MQTT.Heartbeat, time.Now, ticker.C, sigCh)
}

// openRelays opens the bus and wraps the expander. A bus that cannot be
// opened is logged and replaced by one that fails every write, so the
// inputs are still monitored.
func openRelays(cfg *config.Config, logger *logging.Logger) (*relay.Executor, func()) {
	var bus i2c.Bus
	rb, err := i2c.Open(cfg.I2C.Device, cfg.I2C.Timeout)
	if err != nil {
		logger.Error("open i2c bus", "device", cfg.I2C.Device, "error", err)
		bus = i2c.Unavailable(err)
	} else {
		bus = rb
	}
	exec := relay.NewExecutor(expander.New(bus, cfg.I2C.Address), logger)
	return exec, func() { bus.Close() }
}

func runOneShot(cfg *config.Config, opts options) error {
	bus, err := i2c.Open(cfg.I2C.Device, cfg.I2C.Timeout)
	if err != nil {
		return fmt.Errorf("open i2c bus: %w", err)
	}
	defer bus.Close()

	exec := relay.NewExecutor(expander.New(bus, cfg.I2C.Address), logging.Discard())

	if opts.allOff {
		if err := exec.Init(); err != nil {
			return err
		}
		fmt.Println("all relays off")
		return nil
	}

	mask, err := exec.ReadOutputs()
	if err != nil {
		return fmt.Errorf("read outputs: %w", err)
	}
	fmt.Print(formatRelays(mask))
	return nil
}

// formatRelays renders an output mask one relay per line.
func formatRelays(mask uint8) string {
	s := fmt.Sprintf("outputs: %08b\n", mask)
	for i := 0; i < logic.NumOutputs; i++ {
		state := "OFF"
		if mask&(1<<i) != 0 {
			state = "ON"
		}
		s += fmt.Sprintf("%s: %s\n", logic.OutputID(i), state)
	}
	return s
}

// relayControl is the part of the executor the shutdown path needs.
type relayControl interface {
	AllOff() error
	Shadow() uint8
}

type loopDeps struct {
	publisher  mqtt.Publisher        // nil when MQTT is disabled
	mqttStatus mqtt.ConnectionStatus // nil when MQTT is disabled
	tracker    *status.Tracker
	relays     relayControl
	log        *logging.Logger
	stop       func() error // cancels the control tasks and waits for them
}

func runLoop(d loopDeps, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			reason := signalName(s)
			d.log.Info("shutting down", "signal", reason)

			if err := d.stop(); err != nil {
				d.log.Error("task exited with error", "error", err)
			}
			if err := d.relays.AllOff(); err != nil {
				d.log.Error("failed to turn relays off", "error", err)
			}
			d.tracker.SetRelays(d.relays.Shadow())

			d.publishSystem("SHUTDOWN", reason, now())
			return nil

		case t := <-tick:
			if !d.tracker.CheckHeartbeat(t, heartbeat) {
				continue
			}
			snap := d.tracker.Snapshot()
			d.log.Info("heartbeat",
				"uptime", snap.Uptime().Round(time.Second).String(),
				"accepted", snap.Dispatch.Accepted,
				"cooling_down", snap.Dispatch.CoolingDown,
				"completed", snap.Dispatch.Completed,
				"failed", snap.Dispatch.Failed,
				"relays", fmt.Sprintf("%08b", snap.Relays))
			d.publishSystem("HEARTBEAT", "", t)
		}
	}
}

func (d loopDeps) publishSystem(event, reason string, ts time.Time) {
	if d.publisher == nil {
		return
	}
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
	snap := d.tracker.Snapshot()
	ev := mqtt.SystemEvent{
		Timestamp:  ts,
		Event:      event,
		Reason:     reason,
		Retained:   event != "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := d.publisher.PublishSystem(ev); err != nil {
		d.log.Warn("failed to publish system event", "event", event, "error", err)
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}
