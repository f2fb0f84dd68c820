package device

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/shazow/autojoin/internal/metrics"
	"github.com/shazow/autojoin/wifi"
)

// State is the provisioning phase of the device.
type State int

const (
	StateIdle State = iota
	StateScanning
	StateAssociating
	StateConnected
	// StatePortal means no network could be joined and the device waits to
	// be configured.
	StatePortal
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateAssociating:
		return "associating"
	case StateConnected:
		return "connected"
	case StatePortal:
		return "portal"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Options configures a Provisioner.
type Options struct {
	// TimeoutTicks is the per-candidate association timeout.
	TimeoutTicks int
	// MaxScanPolls bounds how long a scan may take, in ticks.
	MaxScanPolls int
	// Progress, if set, is called with association progress every tick. It
	// can cancel the run by returning false.
	Progress wifi.ProgressFunc
	// OnStateChange, if set, is called after every state transition.
	OnStateChange func(from, to State)

	Metrics *metrics.Collector
	Logger  *slog.Logger
}

// Provisioner is the boot-time policy around the association engine: load
// the known networks, scan, rank, associate, and fall back to the
// configuration portal when nothing can be joined.
//
// All methods must be called from the goroutine running the Loop, e.g. by
// using Tick as the Loop's TickFunc and Loop.Do for everything else.
type Provisioner struct {
	radio   wifi.Radio
	store   *wifi.CredentialStore
	scanner *wifi.Scanner
	opts    Options
	logger  *slog.Logger

	state    State
	assoc    *wifi.Association
	cancel   bool
	link     wifi.Status
	connSSID string

	lastScan   []wifi.ScanResult
	lastScanAt time.Time
	now        time.Time
}

// NewProvisioner returns an idle Provisioner. Call Start to begin.
func NewProvisioner(radio wifi.Radio, store *wifi.CredentialStore, opts Options) *Provisioner {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Provisioner{
		radio:   radio,
		store:   store,
		scanner: wifi.NewScanner(radio, opts.MaxScanPolls, opts.Logger),
		opts:    opts,
		logger:  opts.Logger,
	}
}

// State returns the current provisioning state.
func (p *Provisioner) State() State {
	return p.state
}

// Start loads the known networks and begins scanning for them, or opens the
// portal right away if there are none.
func (p *Provisioner) Start() {
	p.store.Load()
	p.opts.Metrics.SetCredentials(p.store.Len())
	if p.store.Len() == 0 {
		p.logger.Info("no networks configured")
		p.setState(StatePortal)
		return
	}
	p.setState(StateScanning)
}

// Tick advances the provisioner by one quantum.
func (p *Provisioner) Tick(now time.Time) {
	p.now = now

	switch p.state {
	case StateScanning:
		p.tickScan()
	case StateAssociating:
		p.link = p.radio.LinkStatus()
		p.tickAssociation()
	case StateConnected:
		p.link = p.radio.LinkStatus()
		if p.link == wifi.StatusFailure {
			p.logger.Warn("link lost, rescanning", "ssid", p.connSSID)
			p.connSSID = ""
			p.setState(StateScanning)
			break
		}
		p.pollScan()
	case StatePortal, StateIdle:
		// Serve scans requested through Scan.
		p.pollScan()
	}
}

func (p *Provisioner) tickScan() {
	if !p.scanner.Running() {
		if err := p.scanner.Start(); err != nil {
			p.logger.Error("failed to start scan", "error", err)
			p.setState(StatePortal)
			return
		}
		p.opts.Metrics.ScanStarted()
	}
	results, ok := p.pollScan()
	if !ok {
		return
	}

	candidates := wifi.Rank(p.store.List(), results)
	if len(candidates) == 0 {
		p.logger.Info("none of the configured networks are visible", "visible", len(results))
		p.setState(StatePortal)
		return
	}
	p.logger.Info("trying networks", "candidates", len(candidates), "best", candidates[0].SSID)

	p.cancel = false
	p.assoc = wifi.NewAssociation(p.radio, candidates, p.opts.TimeoutTicks,
		wifi.WithProgress(p.progress),
		wifi.WithObserver(p.opts.Metrics),
		wifi.WithLogger(p.logger),
	)
	p.setState(StateAssociating)
}

// pollScan collects a finished scan into the cache.
func (p *Provisioner) pollScan() ([]wifi.ScanResult, bool) {
	if !p.scanner.Poll() {
		return nil, false
	}
	if p.scanner.TimedOut() {
		p.opts.Metrics.ScanTimedOut()
	} else {
		p.opts.Metrics.ScanCompleted()
	}
	results := p.scanner.Collect()
	p.lastScan = results
	p.lastScanAt = p.now
	return results, true
}

func (p *Provisioner) tickAssociation() {
	switch p.assoc.Tick(p.link) {
	case wifi.StatusConnected:
		c, _ := p.assoc.Current()
		p.connSSID = c.SSID
		p.setState(StateConnected)
	case wifi.StatusFailure:
		p.logger.Warn("could not join any configured network")
		p.setState(StatePortal)
	}
}

func (p *Provisioner) progress(ticks, budget int, ssid string) bool {
	if p.cancel {
		return false
	}
	if p.opts.Progress != nil {
		return p.opts.Progress(ticks, budget, ssid)
	}
	return true
}

func (p *Provisioner) setState(to State) {
	from := p.state
	if from == to {
		return
	}
	p.state = to
	p.logger.Info("state changed", "from", from, "to", to)
	if p.opts.OnStateChange != nil {
		p.opts.OnStateChange(from, to)
	}
}

// Status is a snapshot of the provisioner as plain data.
type Status struct {
	State       State          `json:"state"`
	Link        wifi.Status    `json:"link"`
	SSID        string         `json:"ssid,omitempty"`
	Credentials int            `json:"credentials"`
	Association *wifi.Progress `json:"association,omitempty"`
	LastScan    *time.Time     `json:"lastScan,omitempty"`
}

// Status returns a snapshot of the provisioner.
func (p *Provisioner) Status() Status {
	s := Status{
		State:       p.state,
		Link:        p.link,
		SSID:        p.connSSID,
		Credentials: p.store.Len(),
	}
	if p.assoc != nil {
		progress := p.assoc.Progress()
		s.Association = &progress
	}
	if !p.lastScanAt.IsZero() {
		t := p.lastScanAt
		s.LastScan = &t
	}
	return s
}

// Credentials lists the configured networks.
func (p *Provisioner) Credentials() []wifi.Credential {
	return p.store.List()
}

// AddCredential stores a new network and persists the store. Nothing changes
// if it can't be persisted.
func (p *Provisioner) AddCredential(ssid, secret string) error {
	if err := p.store.Put(wifi.Credential{SSID: ssid, Secret: secret}); err != nil {
		return err
	}
	if err := p.store.Save(); err != nil {
		p.store.Remove(ssid)
		return err
	}
	p.opts.Metrics.SetCredentials(p.store.Len())
	p.logger.Info("network added", "ssid", ssid)
	return nil
}

// RemoveCredential forgets a network and persists the store.
func (p *Provisioner) RemoveCredential(ssid string) error {
	c, ok := p.store.Get(ssid)
	if !ok {
		return fmt.Errorf("network %q: %w", ssid, wifi.ErrNotFound)
	}
	p.store.Remove(ssid)
	if err := p.store.Save(); err != nil {
		p.store.Put(c)
		return err
	}
	p.opts.Metrics.SetCredentials(p.store.Len())
	p.logger.Info("network removed", "ssid", ssid)
	return nil
}

// RemoveCredentialAt forgets the network at index i of Credentials.
func (p *Provisioner) RemoveCredentialAt(i int) (string, error) {
	list := p.store.List()
	if i < 0 || i >= len(list) {
		return "", fmt.Errorf("network #%d: %w", i, wifi.ErrNotFound)
	}
	ssid := list[i].SSID
	return ssid, p.RemoveCredential(ssid)
}

// Scan returns the most recent scan results and whether a fresh scan is in
// progress, starting one if the radio is free. The radio is not scanned while
// an association is running.
func (p *Provisioner) Scan() ([]wifi.ScanResult, bool) {
	if p.state == StateAssociating || p.state == StateScanning {
		return p.lastScan, p.state == StateScanning
	}
	if err := p.Rescan(); err != nil {
		p.logger.Warn("failed to start scan", "error", err)
		return p.lastScan, false
	}
	return p.lastScan, true
}

// Rescan starts a scan outside of an association run; results show up in
// Scan once a later tick collects them. It is a no-op while a scan is
// already running.
func (p *Provisioner) Rescan() error {
	if p.state == StateAssociating || p.state == StateScanning {
		return fmt.Errorf("radio is busy %s: %w", p.state, wifi.ErrNotAvailable)
	}
	if p.scanner.Running() {
		return nil
	}
	if err := p.scanner.Start(); err != nil {
		return err
	}
	p.opts.Metrics.ScanStarted()
	return nil
}

// Connect abandons whatever is going on and starts a new association run
// with a fresh scan.
func (p *Provisioner) Connect() {
	if p.state == StateAssociating {
		p.assoc.Cancel()
	}
	if p.state == StateConnected {
		if err := p.radio.Disassociate(); err != nil {
			p.logger.Warn("failed to disassociate", "error", err)
		}
		p.connSSID = ""
	}
	// A scan already in flight for the portal is reused.
	p.setState(StateScanning)
}

// Cancel stops a running association through its progress callback; the
// next tick reports failure and opens the portal. It reports whether there
// was a run to cancel.
func (p *Provisioner) Cancel() bool {
	if p.state != StateAssociating {
		return false
	}
	p.cancel = true
	return true
}

// FinishConfiguration leaves the portal and tries the configured networks
// again. It reports whether the device was in the portal.
func (p *Provisioner) FinishConfiguration() bool {
	if p.state != StatePortal && p.state != StateIdle {
		return false
	}
	p.logger.Info("configuration finished")
	p.Connect()
	return true
}
