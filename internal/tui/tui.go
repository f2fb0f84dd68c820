// Package tui is an interactive monitor for the association engine: it scans,
// ranks the configured networks and joins the best one while showing what the
// radio sees.
package tui

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/shazow/autojoin/internal/log"
	"github.com/shazow/autojoin/wifi"
)

// Options configures the monitor.
type Options struct {
	TickInterval time.Duration
	TimeoutTicks int
	MaxScanPolls int
	Logger       *slog.Logger
}

type phase int

const (
	phaseIdle phase = iota
	phaseScanning
	phaseAssociating
	phaseConnected
	phaseFailed
)

func (p phase) String() string {
	switch p {
	case phaseScanning:
		return "scanning"
	case phaseAssociating:
		return "associating"
	case phaseConnected:
		return "connected"
	case phaseFailed:
		return "failed"
	default:
		return "idle"
	}
}

// tickMsg drives the engine, one per tick interval.
type tickMsg time.Time

type keyMap struct {
	Rescan  key.Binding
	Connect key.Binding
	Cancel  key.Binding
	Quit    key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Rescan, k.Connect, k.Cancel, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var defaultKeys = keyMap{
	Rescan:  key.NewBinding(key.WithKeys("r", "s"), key.WithHelp("r", "rescan")),
	Connect: key.NewBinding(key.WithKeys("c", "enter"), key.WithHelp("c", "connect")),
	Cancel:  key.NewBinding(key.WithKeys("x", "esc"), key.WithHelp("x", "cancel")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// maxLogLines is how many log lines the log pane shows.
const maxLogLines = 5

// Model is the bubbletea model of the monitor. The engine only ever runs
// inside Update, so it needs no locking.
type Model struct {
	radio  wifi.Radio
	store  *wifi.CredentialStore
	opts   Options
	logger *slog.Logger

	scanner       *wifi.Scanner
	assoc         *wifi.Association
	phase         phase
	joinAfterScan bool
	cancelled     bool

	results   []wifi.ScanResult
	lastScan  time.Time
	connected string
	status    string

	// Reported by the association's progress callback.
	ticks, budget int
	trying        string

	logs []string

	spinner  spinner.Model
	progress progress.Model
	help     help.Model
	keys     keyMap
	width    int
	now      func() time.Time
}

// NewModel creates the starting state of the monitor.
func NewModel(radio wifi.Radio, store *wifi.CredentialStore, opts Options) *Model {
	if opts.TickInterval <= 0 {
		opts.TickInterval = 100 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(CurrentTheme.Primary)

	return &Model{
		radio:    radio,
		store:    store,
		opts:     opts,
		logger:   opts.Logger,
		scanner:  wifi.NewScanner(radio, opts.MaxScanPolls, opts.Logger),
		spinner:  s,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage(), progress.WithWidth(40)),
		help:     help.New(),
		keys:     defaultKeys,
		now:      time.Now,
	}
}

// Init starts joining when networks are configured, or a plain scan
// otherwise.
func (m *Model) Init() tea.Cmd {
	if m.store.Len() > 0 {
		m.connect()
	} else {
		m.rescan()
	}
	return tea.Batch(m.spinner.Tick, m.tick())
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.opts.TickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles all incoming messages and updates the model accordingly.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		m.progress.Width = min(msg.Width-4, 60)
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Rescan):
			m.rescan()
		case key.Matches(msg, m.keys.Connect):
			m.connect()
		case key.Matches(msg, m.keys.Cancel):
			m.cancel()
		}
	case tickMsg:
		m.step(time.Time(msg))
		return m, m.tick()
	case log.LogMsg:
		m.logs = append(m.logs, log.FormatRecord(slog.Record(msg)))
		if len(m.logs) > maxLogLines {
			m.logs = m.logs[len(m.logs)-maxLogLines:]
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// rescan starts a scan without joining anything afterwards. A connected link
// stays up and is watched again once the scan is collected.
func (m *Model) rescan() {
	if m.phase == phaseAssociating {
		m.status = "Busy joining, cancel first"
		return
	}
	if m.startScan() {
		m.joinAfterScan = false
	}
}

// connect scans and then joins the best configured network in range,
// dropping the current link first.
func (m *Model) connect() {
	if m.phase == phaseAssociating {
		return
	}
	if m.store.Len() == 0 {
		m.phase = phaseIdle
		m.status = "No networks configured, add one with 'autojoin add'"
		return
	}
	if m.phase == phaseConnected {
		if err := m.radio.Disassociate(); err != nil {
			m.logger.Warn("failed to disassociate", "error", err)
		}
		m.connected = ""
	}
	if m.startScan() {
		m.joinAfterScan = true
	}
}

func (m *Model) startScan() bool {
	if err := m.scanner.Start(); err != nil {
		m.phase = phaseFailed
		m.status = fmt.Sprintf("Scan failed: %v", err)
		return false
	}
	m.phase = phaseScanning
	m.status = ""
	return true
}

func (m *Model) cancel() {
	if m.phase == phaseAssociating {
		m.cancelled = true
	}
}

func (m *Model) onProgress(ticks, budget int, ssid string) bool {
	m.ticks = ticks
	m.budget = budget
	m.trying = ssid
	return !m.cancelled
}

// step advances the engine by one tick.
func (m *Model) step(now time.Time) {
	switch m.phase {
	case phaseScanning:
		if !m.scanner.Poll() {
			return
		}
		timedOut := m.scanner.TimedOut()
		results := m.scanner.Collect()
		wifi.SortScanResults(results)
		m.results = results
		m.lastScan = now
		if timedOut {
			m.status = "Scan timed out"
		}
		if !m.joinAfterScan {
			m.phase = phaseIdle
			if m.connected != "" {
				m.phase = phaseConnected
			}
			return
		}

		candidates := wifi.Rank(m.store.List(), results)
		if len(candidates) == 0 {
			m.phase = phaseFailed
			m.status = "None of the configured networks are in range"
			return
		}
		m.cancelled = false
		m.ticks, m.budget, m.trying = 0, 0, ""
		m.assoc = wifi.NewAssociation(m.radio, candidates, m.opts.TimeoutTicks,
			wifi.WithProgress(m.onProgress),
			wifi.WithLogger(m.logger),
		)
		m.phase = phaseAssociating

	case phaseAssociating:
		switch m.assoc.Tick(m.radio.LinkStatus()) {
		case wifi.StatusConnected:
			c, _ := m.assoc.Current()
			m.connected = c.SSID
			m.phase = phaseConnected
			m.status = ""
		case wifi.StatusFailure:
			m.phase = phaseFailed
			if m.cancelled {
				m.status = "Cancelled"
			} else {
				m.status = "Could not join any configured network"
			}
		}

	case phaseConnected:
		if m.radio.LinkStatus() == wifi.StatusFailure {
			m.phase = phaseIdle
			m.status = fmt.Sprintf("Lost connection to '%s'", m.connected)
			m.connected = ""
		}
	}
}
