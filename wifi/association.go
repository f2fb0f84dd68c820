package wifi

import "log/slog"

// Phase is where the association is with the current candidate.
type Phase int

const (
	// PhaseNotTrying means no join request is outstanding; the next tick
	// issues one for the candidate under the cursor.
	PhaseNotTrying Phase = iota
	// PhaseAwaitingLink means a join was accepted and we are waiting for the
	// link to come up.
	PhaseAwaitingLink
)

func (p Phase) String() string {
	switch p {
	case PhaseNotTrying:
		return "not-trying"
	case PhaseAwaitingLink:
		return "awaiting-link"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// ProgressFunc is consulted on every tick that acts on a candidate, with the
// ticks consumed so far across all candidates, the total tick budget and the
// SSID being tried. Returning false cancels the run.
type ProgressFunc func(ticks, budget int, ssid string) bool

// Observer is notified of association events, e.g. to count them.
type Observer interface {
	JoinAttempted(c Candidate)
	JoinRejected(c Candidate, err error)
	LinkFailed(c Candidate)
	LinkTimedOut(c Candidate)
	Finished(result Status)
}

// AssociationOption configures an Association.
type AssociationOption func(*Association)

// WithProgress installs a progress callback. Without one the run is never
// cancelled through the callback.
func WithProgress(fn ProgressFunc) AssociationOption {
	return func(a *Association) {
		a.progress = fn
	}
}

// WithObserver installs an event observer.
func WithObserver(o Observer) AssociationOption {
	return func(a *Association) {
		a.observer = o
	}
}

// WithLogger sets the logger, slog.Default() otherwise.
func WithLogger(logger *slog.Logger) AssociationOption {
	return func(a *Association) {
		a.logger = logger
	}
}

// Association tries ranked candidates one at a time until one connects or all
// of them have failed. It never blocks: the caller drives it by calling Tick
// once per time quantum with a fresh LinkStatus reading, and all waiting shows
// up as StatusIdle results.
//
// Each candidate gets its own timeout, counted in ticks, so one listed but
// unreachable network can't starve the ones after it.
//
// An Association is a single run and is not safe for concurrent use; Tick
// must only be called from one goroutine at a time. Start a new run with a
// new Association.
type Association struct {
	joiner     Joiner
	candidates []Candidate
	timeout    int
	progress   ProgressFunc
	observer   Observer
	logger     *slog.Logger

	cursor  int
	phase   Phase
	elapsed int
	ticks   int

	result    Status
	done      bool
	cancelled bool
}

// NewAssociation prepares a run over candidates, which are copied. timeout is
// the number of ticks each accepted join gets to bring the link up; values
// below 1 are raised to 1.
func NewAssociation(joiner Joiner, candidates []Candidate, timeout int, opts ...AssociationOption) *Association {
	if timeout < 1 {
		timeout = 1
	}
	a := &Association{
		joiner:     joiner,
		candidates: append([]Candidate(nil), candidates...),
		timeout:    timeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// Budget is the most ticks the run can take before it is exhausted: each
// candidate gets one tick for the join request plus its timeout. Exhaustion
// itself is reported as StatusFailure on the tick after the budget, so a run
// that never connects ends on tick Budget()+1.
func (a *Association) Budget() int {
	return len(a.candidates) * (a.timeout + 1)
}

// Candidates returns a copy of the candidates in the order they are tried.
func (a *Association) Candidates() []Candidate {
	return append([]Candidate(nil), a.candidates...)
}

// Current returns the candidate under the cursor, or false once exhausted.
func (a *Association) Current() (Candidate, bool) {
	if a.cursor >= len(a.candidates) {
		return Candidate{}, false
	}
	return a.candidates[a.cursor], true
}

// Done reports whether the run reached a terminal result.
func (a *Association) Done() bool {
	return a.done
}

// Result is StatusIdle while the run is in progress, then its terminal result.
func (a *Association) Result() Status {
	return a.result
}

// Tick advances the run by one quantum. link is the radio's link status
// sampled for this tick; it is only looked at while awaiting a link.
//
// The result is StatusIdle while the run is in progress, StatusConnected once
// the current candidate's link is up, and StatusFailure once every candidate
// has been tried or the run was cancelled. Terminal results repeat on later
// ticks without touching the radio.
func (a *Association) Tick(link Status) Status {
	if a.done {
		return a.result
	}
	c, ok := a.Current()
	if !ok {
		a.finish(StatusFailure)
		a.logger.Info("no candidates left")
		return StatusFailure
	}

	if a.progress != nil && !a.progress(a.ticks, a.Budget(), c.SSID) {
		a.logger.Info("association cancelled", "ssid", c.SSID, "ticks", a.ticks)
		a.abort()
		return StatusFailure
	}
	a.ticks++

	switch a.phase {
	case PhaseNotTrying:
		a.notify(func(o Observer) { o.JoinAttempted(c) })
		if err := a.joiner.Join(c.SSID, c.Secret); err != nil {
			a.logger.Warn("join request rejected", "ssid", c.SSID, "error", err)
			a.notify(func(o Observer) { o.JoinRejected(c, err) })
			a.advance()
			return StatusIdle
		}
		a.logger.Debug("join requested", "ssid", c.SSID, "signal", c.Signal)
		a.phase = PhaseAwaitingLink
		a.elapsed = 0
		return StatusIdle

	case PhaseAwaitingLink:
		if link == StatusConnected {
			a.logger.Info("connected", "ssid", c.SSID, "ticks", a.ticks)
			a.finish(StatusConnected)
			return StatusConnected
		}
		if link == StatusFailure {
			a.logger.Info("link failed", "ssid", c.SSID, "elapsed", a.elapsed)
			a.notify(func(o Observer) { o.LinkFailed(c) })
			a.disassociate()
			a.advance()
			return StatusIdle
		}
		a.elapsed++
		if a.elapsed >= a.timeout {
			a.logger.Info("link timed out", "ssid", c.SSID, "timeout", a.timeout)
			a.notify(func(o Observer) { o.LinkTimedOut(c) })
			a.disassociate()
			a.advance()
		}
		return StatusIdle
	}
	return StatusIdle
}

// Cancel ends the run with StatusFailure, dropping any pending association.
// It does nothing once the run is done.
func (a *Association) Cancel() {
	if a.done {
		return
	}
	a.logger.Info("association cancelled")
	a.abort()
}

// Progress is a snapshot of an association run as plain data.
type Progress struct {
	Candidates int    `json:"candidates"`
	Cursor     int    `json:"cursor"`
	Current    string `json:"current,omitempty"`
	Phase      Phase  `json:"phase"`
	Elapsed    int    `json:"elapsed"`
	Timeout    int    `json:"timeout"`
	Ticks      int    `json:"ticks"`
	Budget     int    `json:"budget"`
	Result     Status `json:"result"`
	Done       bool   `json:"done"`
	Cancelled  bool   `json:"cancelled"`
}

// Progress returns a snapshot of the run.
func (a *Association) Progress() Progress {
	p := Progress{
		Candidates: len(a.candidates),
		Cursor:     a.cursor,
		Phase:      a.phase,
		Elapsed:    a.elapsed,
		Timeout:    a.timeout,
		Ticks:      a.ticks,
		Budget:     a.Budget(),
		Result:     a.result,
		Done:       a.done,
		Cancelled:  a.cancelled,
	}
	if c, ok := a.Current(); ok {
		p.Current = c.SSID
	}
	return p
}

func (a *Association) advance() {
	a.cursor++
	a.phase = PhaseNotTrying
	a.elapsed = 0
}

func (a *Association) abort() {
	if a.phase == PhaseAwaitingLink {
		a.disassociate()
		a.phase = PhaseNotTrying
	}
	a.cancelled = true
	a.finish(StatusFailure)
}

func (a *Association) finish(result Status) {
	a.result = result
	a.done = true
	a.notify(func(o Observer) { o.Finished(result) })
}

func (a *Association) disassociate() {
	if err := a.joiner.Disassociate(); err != nil {
		a.logger.Warn("failed to disassociate", "error", err)
	}
}

func (a *Association) notify(fn func(Observer)) {
	if a.observer != nil {
		fn(a.observer)
	}
}
