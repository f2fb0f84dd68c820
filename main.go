package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/shazow/autojoin/internal/config"
	"github.com/shazow/autojoin/internal/log"
	"github.com/shazow/autojoin/internal/tui"
	"github.com/shazow/autojoin/wifi"
)

var (
	// Version is the version of the application. It is set at build time.
	Version string = "dev"
)

// app holds what the subcommands share: the flags of the root command and
// the state opened from them.
type app struct {
	stdout, stderr io.Writer

	configPath  *string
	theme       *string
	version     *bool
	logLevel    *string
	radioName   *string
	iface       *string
	storagePath *string

	cfg     config.Config
	store   *wifi.CredentialStore
	radio   wifi.Radio
	logs    *log.Handler
	logger  *slog.Logger
	closers []io.Closer
}

// openStore and openRadio are called by the subcommands that need them, so
// that credential edits work without a wireless device.
func (a *app) openStore() error {
	storage, closer, err := OpenStorage(a.cfg)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	a.closers = append(a.closers, closer)
	a.store = wifi.NewCredentialStore(storage, a.logger)
	a.store.Load()
	return nil
}

func (a *app) openRadio() error {
	var err error
	a.radio, err = GetRadio(a.cfg, a.logger)
	return err
}

// setup loads the config and theme and initializes logging, once the flags
// are parsed.
func (a *app) setup() error {
	cfg, err := config.Load(*a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyFlags(&cfg, *a.logLevel, *a.radioName, *a.iface, *a.storagePath)
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	if err := tui.LoadThemeFile(*a.theme); err != nil {
		return fmt.Errorf("failed to load theme: %w", err)
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	a.logs = log.Init(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))
	a.logger = slog.Default()
	return nil
}

func (a *app) close() {
	for _, c := range a.closers {
		c.Close()
	}
	a.closers = nil
}

func newRootCommand(a *app) *ffcli.Command {
	rootFlagSet := flag.NewFlagSet("autojoin", flag.ContinueOnError)
	a.configPath = rootFlagSet.String("config", "", "path to config toml file (env: AUTOJOIN_CONFIG)")
	a.theme = rootFlagSet.String("theme", "", "path to theme toml file (env: AUTOJOIN_THEME)")
	a.version = rootFlagSet.Bool("version", false, "display version")
	a.logLevel = rootFlagSet.String("log-level", "", "log level: debug, info, warn or error (env: AUTOJOIN_LOG_LEVEL)")
	a.radioName = rootFlagSet.String("radio", "", "radio driver: auto, networkmanager, wpa or mock (env: AUTOJOIN_RADIO)")
	a.iface = rootFlagSet.String("interface", "", "wireless interface (env: AUTOJOIN_INTERFACE)")
	a.storagePath = rootFlagSet.String("storage-path", "", "where credentials are kept (env: AUTOJOIN_STORAGE_PATH)")

	listFlagSet := flag.NewFlagSet("list", flag.ContinueOnError)
	listJSON := listFlagSet.Bool("json", false, "output in JSON format")
	listCmd := &ffcli.Command{
		Name:      "list",
		ShortHelp: "List configured networks",
		FlagSet:   listFlagSet,
		Exec: func(ctx context.Context, args []string) error {
			if err := a.openStore(); err != nil {
				return err
			}
			return runList(a.stdout, *listJSON, a.store)
		},
	}

	addFlagSet := flag.NewFlagSet("add", flag.ContinueOnError)
	addPassphrase := addFlagSet.String("passphrase", "", "passphrase for the network, empty for open networks")
	addCmd := &ffcli.Command{
		Name:       "add",
		ShortUsage: "autojoin add [-passphrase <passphrase>] <ssid>",
		ShortHelp:  "Add a network",
		FlagSet:    addFlagSet,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("add requires an ssid")
			}
			if err := a.openStore(); err != nil {
				return err
			}
			return runAdd(a.stdout, args[0], *addPassphrase, a.store)
		},
	}

	removeCmd := &ffcli.Command{
		Name:       "remove",
		ShortUsage: "autojoin remove <ssid>",
		ShortHelp:  "Remove a network",
		Exec: func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("remove requires an ssid")
			}
			if err := a.openStore(); err != nil {
				return err
			}
			return runRemove(a.stdout, args[0], a.store)
		},
	}

	showCmd := &ffcli.Command{
		Name:       "show",
		ShortUsage: "autojoin show <ssid>",
		ShortHelp:  "Show a network with a QR code to share it",
		Exec: func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("show requires an ssid")
			}
			if err := a.openStore(); err != nil {
				return err
			}
			return runShow(a.stdout, args[0], a.store)
		},
	}

	scanFlagSet := flag.NewFlagSet("scan", flag.ContinueOnError)
	scanJSON := scanFlagSet.Bool("json", false, "output in JSON format")
	scanCmd := &ffcli.Command{
		Name:      "scan",
		ShortHelp: "Scan for visible networks",
		FlagSet:   scanFlagSet,
		Exec: func(ctx context.Context, args []string) error {
			if err := a.openRadio(); err != nil {
				return err
			}
			return runScan(ctx, a.stdout, a.radio, scanOptions{
				JSON:     *scanJSON,
				MaxPolls: a.cfg.MaxScanPolls,
				Interval: a.cfg.TickInterval,
			}, a.logger)
		},
	}

	connectFlagSet := flag.NewFlagSet("connect", flag.ContinueOnError)
	connectTimeout := connectFlagSet.Int("timeout", 0, "ticks each network gets to connect, 0 uses the config")
	connectCmd := &ffcli.Command{
		Name:      "connect",
		ShortHelp: "Join the strongest configured network in range",
		FlagSet:   connectFlagSet,
		Exec: func(ctx context.Context, args []string) error {
			if err := a.openStore(); err != nil {
				return err
			}
			if err := a.openRadio(); err != nil {
				return err
			}
			timeout := a.cfg.TimeoutTicks
			if *connectTimeout > 0 {
				timeout = *connectTimeout
			}
			return runConnect(ctx, a.stdout, a.radio, a.store, connectOptions{
				Timeout:  timeout,
				MaxPolls: a.cfg.MaxScanPolls,
				Interval: a.cfg.TickInterval,
			}, a.logger)
		},
	}

	runCmd := &ffcli.Command{
		Name:      "run",
		ShortHelp: "Keep the device connected and serve the configuration portal",
		Exec: func(ctx context.Context, args []string) error {
			if err := a.openStore(); err != nil {
				return err
			}
			if err := a.openRadio(); err != nil {
				return err
			}
			a.logger.Info("starting", "version", Version, "listen", a.cfg.Listen, "radio", a.cfg.Radio)
			return runDaemon(ctx, a.cfg, a.radio, a.store, a.logs, a.logger)
		},
	}

	return &ffcli.Command{
		ShortUsage:  "autojoin [flags] <subcommand> [args...]",
		FlagSet:     rootFlagSet,
		Options:     []ff.Option{ff.WithEnvVarPrefix("AUTOJOIN")},
		Subcommands: []*ffcli.Command{listCmd, addCmd, removeCmd, showCmd, scanCmd, connectCmd, runCmd},
		Exec: func(ctx context.Context, args []string) error {
			// The TUI owns the terminal, so records only go to the log pane.
			level, _ := log.ParseLevel(a.cfg.LogLevel)
			log.Init(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: level}))
			a.logger = slog.Default()

			if err := a.openStore(); err != nil {
				return err
			}
			if err := a.openRadio(); err != nil {
				return err
			}
			return runTUI(a.cfg, a.radio, a.store)
		},
	}
}

// run parses args, then dispatches to the selected subcommand, or the TUI
// when there is none.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{stdout: stdout, stderr: stderr}
	root := newRootCommand(a)
	if err := root.Parse(args); err != nil {
		return err
	}

	if *a.version {
		fmt.Fprintln(stdout, Version)
		return nil
	}

	if err := a.setup(); err != nil {
		return err
	}
	defer a.close()

	return root.Run(ctx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if errors.Is(err, flag.ErrHelp) {
		// Usage was already printed by the flag set.
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// applyFlags overrides cfg with the flags that were set.
func applyFlags(cfg *config.Config, logLevel, radio, iface, storagePath string) {
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if radio != "" {
		cfg.Radio = radio
	}
	if iface != "" {
		cfg.Interface = iface
	}
	if storagePath != "" {
		cfg.StoragePath = storagePath
	}
}
