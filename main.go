package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"midi-bridge/bus"
	"midi-bridge/config"
	"midi-bridge/mediation"
	"midi-bridge/midi"
	"midi-bridge/theme"
	"midi-bridge/tui"
)

const appName = "midi-bridge"

// Version is set at build time.
var Version = "dev"

// publisher is either a broker connection or the disabled stand-in.
type publisher interface {
	Run(ctx context.Context, in <-chan bus.Message)
	Status() bus.Status
	Close() error
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

func run() error {
	cli, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := loadConfig(cli.ConfigPath)
	if err != nil {
		return err
	}
	cli.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cli.ListPorts {
		return listPorts()
	}

	logger, closeLog, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	reg := prometheus.NewRegistry()
	metrics, err := bus.NewMetrics(reg)
	if err != nil {
		return err
	}
	if cfg.Metrics.Addr != "" {
		stopMetrics := serveMetrics(cfg.Metrics.Addr, reg, logger)
		defer stopMetrics()
	}

	engine, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}

	ins, err := midi.InPorts()
	if err != nil {
		return err
	}
	ports, err := midi.SelectPorts(ins, cfg.MIDI.Ports)
	if err != nil {
		for _, p := range midi.Describe(ins) {
			fmt.Fprintf(os.Stderr, "  %d: %s\n", p.Index, p.Name)
		}
		return err
	}

	queue := mediation.NewQueue(cfg.MIDI.QueueSize, logger, metrics.InboundDrop)
	var stops []func()
	stopListeners := func() {
		for _, stop := range stops {
			stop()
		}
	}
	for _, p := range ports {
		engine.AddPort(p.Index, p.Name)
		stop, err := midi.Listen(p.Index, ins[p.Index], queue)
		if err != nil {
			stopListeners()
			return err
		}
		stops = append(stops, stop)
		logger.Info("listening", zap.Int("port", p.Index), zap.String("name", p.Name))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	names := make([]string, 0, len(ports))
	for _, p := range ports {
		names = append(names, p.Name)
	}
	watcher := midi.NewWatcher(names)
	go watcher.Run(ctx)
	go func() {
		for change := range watcher.Events() {
			logger.Warn("MIDI port "+change.Type.String(), zap.String("name", change.Name))
		}
	}()

	pub, err := connectBus(ctx, cfg, logger, metrics)
	if err != nil {
		stopListeners()
		return err
	}

	out := make(chan bus.Message, cfg.Bus.Buffer)
	pubDone := make(chan struct{})
	go func() {
		// Keep publishing what is queued after a shutdown signal.
		pub.Run(context.WithoutCancel(ctx), out)
		close(pubDone)
	}()

	var runErr error
	stopped := make(chan struct{})
	notify := make(chan error, 1)
	go func() {
		err := engine.Run(context.Background(), queue.C(), out)
		runErr = err
		notify <- err
		close(stopped)
	}()

	if cfg.UI.Headless {
		logger.Info("running headless")
		select {
		case <-ctx.Done():
		case <-stopped:
		}
	} else {
		if err := runUI(ctx, cfg, engine, pub, notify); err != nil {
			logger.Error("ui failed", zap.Error(err))
		}
	}

	logger.Info("shutting down")
	stopListeners()
	queue.Close()
	<-stopped
	close(out)
	<-pubDone
	if err := pub.Close(); err != nil {
		logger.Warn("closing bus connection", zap.Error(err))
	}

	return runErr
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}

func listPorts() error {
	ins, err := midi.InPorts()
	if err != nil {
		return err
	}
	if len(ins) == 0 {
		return midi.ErrNoPorts
	}
	for _, p := range midi.Describe(ins) {
		fmt.Printf("%d: %s\n", p.Index, p.Name)
	}
	return nil
}

func buildEngine(cfg *config.Config, logger *zap.Logger) (*mediation.Engine, error) {
	scope, err := mediation.ParseKeyScope(cfg.MIDI.KeyScope)
	if err != nil {
		return nil, err
	}
	mode := mediation.Absolute
	if cfg.MIDI.Relative {
		mode = mediation.Relative
	}

	var mappings mediation.MappingTable
	switch {
	case cfg.Knobs.Disable:
		logger.Info("knob mapping disabled")
	case cfg.Knobs.MappingsFile != "":
		mappings, err = mediation.LoadMappingsFile(cfg.Knobs.MappingsFile)
	default:
		mappings, err = mediation.DefaultMappings()
	}
	if err != nil {
		return nil, err
	}

	return mediation.New(logger, mediation.Options{
		Mode:          mode,
		KeyScope:      scope,
		MonitorLength: cfg.UI.MonitorLength,
		Mappings:      mappings,
	}), nil
}

func connectBus(ctx context.Context, cfg *config.Config, logger *zap.Logger, metrics *bus.Metrics) (publisher, error) {
	if cfg.Bus.Disable {
		logger.Info("bus disabled, messages are discarded")
		return bus.Discard{Log: logger}, nil
	}
	return bus.Connect(ctx, bus.Config{
		URL:            cfg.Bus.URL,
		Role:           cfg.Bus.Role,
		ID:             cfg.Bus.ID,
		Username:       cfg.Bus.Username,
		Password:       cfg.Bus.Password,
		Stream:         cfg.Bus.Stream,
		ReconnectWait:  time.Duration(cfg.Bus.ReconnectWait),
		PublishTimeout: time.Duration(cfg.Bus.PublishTimeout),
	}, logger, metrics)
}

func runUI(ctx context.Context, cfg *config.Config, engine *mediation.Engine, pub publisher, done <-chan error) error {
	palette := theme.Default()
	if cfg.UI.Palette != "" {
		p, err := theme.LoadGPL(cfg.UI.Palette)
		if err != nil {
			return err
		}
		palette = p
	}

	m := tui.NewModel(engine, pub, theme.New(palette), done)
	p := tea.NewProgram(m, tea.WithAltScreen())

	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	_, err := p.Run()
	return err
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", bus.Handler(reg))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
