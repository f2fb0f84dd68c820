package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/shazow/autojoin/internal/config"
	"github.com/shazow/autojoin/internal/device"
	"github.com/shazow/autojoin/internal/log"
	"github.com/shazow/autojoin/internal/metrics"
	"github.com/shazow/autojoin/internal/portal"
	"github.com/shazow/autojoin/internal/tui"
	"github.com/shazow/autojoin/wifi"
)

func runTUI(cfg config.Config, radio wifi.Radio, store *wifi.CredentialStore) error {
	m := tui.NewModel(radio, store, tui.Options{
		TickInterval: cfg.TickInterval,
		TimeoutTicks: cfg.TimeoutTicks,
		MaxScanPolls: cfg.MaxScanPolls,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())

	// Forward log records to the program so they show in the log pane. Send
	// is a no-op once the program has exited.
	logCh := make(chan tea.Msg, 16)
	log.SetOutput(logCh)
	defer log.SetOutput(nil)
	go func() {
		for msg := range logCh {
			p.Send(msg)
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}

type listEntry struct {
	SSID    string `json:"ssid"`
	Secured bool   `json:"secured"`
}

func runList(w io.Writer, asJSON bool, store *wifi.CredentialStore) error {
	creds := store.List()
	if asJSON {
		entries := make([]listEntry, 0, len(creds))
		for _, c := range creds {
			entries = append(entries, listEntry{SSID: c.SSID, Secured: c.Secret != ""})
		}
		return json.NewEncoder(w).Encode(entries)
	}

	for _, c := range creds {
		kind := "open"
		if c.Secret != "" {
			kind = "passphrase"
		}
		fmt.Fprintf(w, "%s\t%s\n", c.SSID, kind)
	}
	return nil
}

func runAdd(w io.Writer, ssid, passphrase string, store *wifi.CredentialStore) error {
	if err := store.Put(wifi.Credential{SSID: ssid, Secret: passphrase}); err != nil {
		return fmt.Errorf("failed to add network: %w", err)
	}
	if err := store.Save(); err != nil {
		return fmt.Errorf("failed to save networks: %w", err)
	}
	fmt.Fprintf(w, "Added %s (%d of %d bytes used)\n", ssid, store.Size(), wifi.MaxStorageSize)
	return nil
}

func runRemove(w io.Writer, ssid string, store *wifi.CredentialStore) error {
	if !store.Remove(ssid) {
		return fmt.Errorf("network not found: %s", ssid)
	}
	if err := store.Save(); err != nil {
		return fmt.Errorf("failed to save networks: %w", err)
	}
	fmt.Fprintf(w, "Removed %s\n", ssid)
	return nil
}

func runShow(w io.Writer, ssid string, store *wifi.CredentialStore) error {
	c, ok := store.Get(ssid)
	if !ok {
		return fmt.Errorf("network not found: %s", ssid)
	}

	security := wifi.SecurityOpen
	if c.Secret != "" {
		security = wifi.SecurityWPA2
	}
	fmt.Fprintf(w, "SSID: %s\n", c.SSID)
	fmt.Fprintf(w, "Passphrase: %s\n", c.Secret)

	code, err := GenerateWifiQRCode(c.SSID, c.Secret, security, false)
	if err != nil {
		return fmt.Errorf("failed to generate QR code: %w", err)
	}
	fmt.Fprintln(w)
	fmt.Fprint(w, code)
	return nil
}

// pacer waits for the next tick, or not at all when interval is zero.
type pacer struct {
	ticker *time.Ticker
}

func newPacer(interval time.Duration) *pacer {
	if interval <= 0 {
		return &pacer{}
	}
	return &pacer{ticker: time.NewTicker(interval)}
}

func (p *pacer) wait(ctx context.Context) error {
	if p.ticker == nil {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ticker.C:
		return nil
	}
}

func (p *pacer) stop() {
	if p.ticker != nil {
		p.ticker.Stop()
	}
}

type scanOptions struct {
	JSON     bool
	MaxPolls int
	Interval time.Duration
}

// scan runs one scan to completion, polling once per tick.
func scan(ctx context.Context, radio wifi.Radio, opts scanOptions, logger *slog.Logger) ([]wifi.ScanResult, error) {
	scanner := wifi.NewScanner(radio, opts.MaxPolls, logger)
	if err := scanner.Start(); err != nil {
		return nil, fmt.Errorf("failed to start scan: %w", err)
	}
	p := newPacer(opts.Interval)
	defer p.stop()
	for !scanner.Poll() {
		if err := p.wait(ctx); err != nil {
			return nil, err
		}
	}
	return scanner.Collect(), nil
}

type scanEntry struct {
	SSID     string `json:"ssid"`
	Signal   int    `json:"signal"`
	Security string `json:"security"`
	Channel  int    `json:"channel"`
}

func runScan(ctx context.Context, w io.Writer, radio wifi.Radio, opts scanOptions, logger *slog.Logger) error {
	results, err := scan(ctx, radio, opts, logger)
	if err != nil {
		return err
	}
	wifi.SortScanResults(results)

	if opts.JSON {
		entries := make([]scanEntry, 0, len(results))
		for _, r := range results {
			entries = append(entries, scanEntry{SSID: r.SSID, Signal: r.Signal, Security: r.Security.String(), Channel: r.Channel})
		}
		return json.NewEncoder(w).Encode(entries)
	}

	for _, r := range results {
		fmt.Fprintf(w, "%s\t%d dBm\t%s\tch %d\n", r.SSID, r.Signal, r.Security, r.Channel)
	}
	return nil
}

type connectOptions struct {
	Timeout  int
	MaxPolls int
	Interval time.Duration
}

// runConnect scans, ranks the configured networks and associates with the
// best one that comes up.
func runConnect(ctx context.Context, w io.Writer, radio wifi.Radio, store *wifi.CredentialStore, opts connectOptions, logger *slog.Logger) error {
	if store.Len() == 0 {
		return fmt.Errorf("no networks configured: %w", wifi.ErrNotFound)
	}

	results, err := scan(ctx, radio, scanOptions{MaxPolls: opts.MaxPolls, Interval: opts.Interval}, logger)
	if err != nil {
		return err
	}
	candidates := wifi.Rank(store.List(), results)
	if len(candidates) == 0 {
		return fmt.Errorf("none of the %d configured networks are visible: %w", store.Len(), wifi.ErrNotFound)
	}

	last := ""
	progress := func(ticks, budget int, ssid string) bool {
		if ssid != last {
			fmt.Fprintf(w, "Trying %s (%d/%d ticks)\n", ssid, ticks, budget)
			last = ssid
		}
		return ctx.Err() == nil
	}
	a := wifi.NewAssociation(radio, candidates, opts.Timeout,
		wifi.WithProgress(progress),
		wifi.WithLogger(logger),
	)

	p := newPacer(opts.Interval)
	defer p.stop()
	for {
		switch a.Tick(radio.LinkStatus()) {
		case wifi.StatusConnected:
			c, _ := a.Current()
			fmt.Fprintf(w, "Connected to %s\n", c.SSID)
			return nil
		case wifi.StatusFailure:
			if err := ctx.Err(); err != nil {
				return err
			}
			return fmt.Errorf("could not join any of %d networks: %w", len(candidates), wifi.ErrOperationFailed)
		}
		// Cancellation is noticed by the progress callback on the next tick.
		_ = p.wait(ctx)
	}
}

// runDaemon runs the provisioner on the device loop and serves the
// configuration portal until ctx is done.
func runDaemon(ctx context.Context, cfg config.Config, radio wifi.Radio, store *wifi.CredentialStore, logs *log.Handler, logger *slog.Logger) error {
	m, err := metrics.New(nil)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	prov := device.NewProvisioner(radio, store, device.Options{
		TimeoutTicks: cfg.TimeoutTicks,
		MaxScanPolls: cfg.MaxScanPolls,
		Metrics:      m,
		Logger:       logger,
	})
	prov.Start()
	loop := device.NewLoop(cfg.TickInterval, prov.Tick, logger)

	srv := portal.New(&portal.Config{
		Loop:        loop,
		Provisioner: prov,
		Logs:        logs.Lines,
		Metrics:     m.Handler(),
		Logger:      logger,
	})
	l, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Listen, err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(ctx)
	})
	g.Go(func() error {
		return srv.Serve(ctx, l)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
