package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/eltechnic0/arduino-control/internal/config"
	"github.com/eltechnic0/arduino-control/internal/device"
	"github.com/eltechnic0/arduino-control/internal/logging"
	"github.com/eltechnic0/arduino-control/internal/panel"
	"github.com/eltechnic0/arduino-control/internal/tui"
)

const usage = `arduino-control: control panel for a serial-connected Arduino

Usage:
  arduino-control [serve] [-config path]   run the web panel (default)
  arduino-control tui [-config path]       run the terminal panel
  arduino-control init [-config path]      write the default config.yaml
  arduino-control help                     show this help
`

func main() {
	mode := "serve"
	args := os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		mode, args = args[0], args[1:]
	}

	fs := flag.NewFlagSet(mode, flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.yaml")
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	fs.Parse(args)

	var err error
	switch mode {
	case "serve":
		err = runServe(*configPath)
	case "tui":
		err = runTUI(*configPath)
	case "init":
		err = runInit(*configPath)
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", mode, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "arduino-control: %v\n", err)
		os.Exit(1)
	}
}

// app holds the components shared by both panels.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	logs    *logging.Buffer
	client  *device.Client
	ctrl    *panel.Controller
	watcher *device.Watcher
	closeFn func() error
}

func setup(configPath string, terminal bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	// The TUI owns the terminal, so console logs are only kept in the buffer.
	logCfg := cfg.Logger
	if terminal && (logCfg.Output == "" || logCfg.Output == "stderr" || logCfg.Output == "stdout") {
		logCfg.Output = os.DevNull
	}
	logs := logging.NewBuffer(cfg.Logger.Buffer)
	log, closeFn, err := logging.New(logCfg, logs)
	if err != nil {
		return nil, err
	}

	client := device.NewClient(cfg.Device, log)
	ctrl := panel.NewController(client, cfg.Panel, log)
	watcher := device.NewWatcher(client, cfg.Device.StatusInterval, log)
	watcher.BeforePoll = ctrl.IssueSeq
	watcher.OnStatus = ctrl.ApplyStatus

	log.Info().
		Str("config", cfg.ConfigPath).
		Str("backend", cfg.Device.BaseURL).
		Dur("status_interval", cfg.Device.StatusInterval).
		Msg("arduino-control starting")

	return &app{
		cfg:     cfg,
		log:     log,
		logs:    logs,
		client:  client,
		ctrl:    ctrl,
		watcher: watcher,
		closeFn: closeFn,
	}, nil
}

func runServe(configPath string) error {
	a, err := setup(configPath, false)
	if err != nil {
		return err
	}
	defer a.closeFn()

	server := panel.NewServer(a.cfg, a.ctrl, a.client, a.watcher, a.logs, a.log)
	a.watcher.Start()
	defer a.watcher.Stop()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	fmt.Printf("Panel on http://localhost:%d, backend %s\n", a.cfg.Server.Port, a.cfg.Device.BaseURL)
	fmt.Println("Press Ctrl+C to stop")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case s := <-sig:
		a.log.Info().Str("signal", s.String()).Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

func runTUI(configPath string) error {
	a, err := setup(configPath, true)
	if err != nil {
		return err
	}
	defer a.closeFn()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	model := tui.New(ctx, a.ctrl, tui.Options{
		FlashTimeout:   a.cfg.Panel.FlashTimeout,
		RequestTimeout: a.cfg.Device.Timeout,
	})
	prog := tea.NewProgram(model, tea.WithAltScreen())

	unsubscribe := a.ctrl.Subscribe(func(v panel.View) { prog.Send(tui.ViewMsg{View: v}) })
	defer unsubscribe()
	a.watcher.Start()
	defer a.watcher.Stop()

	_, err = prog.Run()
	return err
}

// runInit writes the defaults to path, refusing to replace an existing file.
func runInit(path string) error {
	if path == "" {
		path = "config.yaml"
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := config.Default().Save(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	fmt.Printf("Wrote default configuration to %s\n", path)
	return nil
}
