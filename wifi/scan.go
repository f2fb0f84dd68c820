package wifi

import "log/slog"

// DefaultMaxPolls is how many polls a scan gets before it is treated as
// finished with nothing visible.
const DefaultMaxPolls = 50

// Scanner wraps the radio's fire-and-poll scan interface:
//
//	s.Start()
//	for !s.Poll() {
//		// do other work, come back next tick
//	}
//	results := s.Collect()
//
// It never sleeps and is not safe for concurrent use.
type Scanner struct {
	driver   ScanDriver
	logger   *slog.Logger
	maxPolls int

	running  bool
	ready    bool
	timedOut bool
	polls    int
}

// NewScanner returns a Scanner for driver. maxPolls <= 0 selects
// DefaultMaxPolls.
func NewScanner(driver ScanDriver, maxPolls int, logger *slog.Logger) *Scanner {
	if maxPolls <= 0 {
		maxPolls = DefaultMaxPolls
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		driver:   driver,
		logger:   logger,
		maxPolls: maxPolls,
	}
}

// Start asks the driver for a scan. It is a no-op while a scan is running or
// its results have not been collected yet.
func (s *Scanner) Start() error {
	if s.running {
		return nil
	}
	if err := s.driver.StartScan(); err != nil {
		return err
	}
	s.running = true
	s.ready = false
	s.timedOut = false
	s.polls = 0
	s.logger.Debug("scan started")
	return nil
}

// Running reports whether a scan was started and not yet collected.
func (s *Scanner) Running() bool {
	return s.running
}

// Poll reports whether results are ready to Collect. It returns false when no
// scan was started.
func (s *Scanner) Poll() bool {
	if !s.running {
		return false
	}
	if s.ready {
		return true
	}

	s.polls++
	if s.driver.ScanDone() {
		s.ready = true
	} else if s.polls >= s.maxPolls {
		s.logger.Warn("scan did not finish, assuming no networks", "polls", s.polls)
		s.ready = true
		s.timedOut = true
	}
	return s.ready
}

// TimedOut reports whether the ready scan gave up on the driver. It is only
// meaningful between Poll returning true and Collect.
func (s *Scanner) TimedOut() bool {
	return s.timedOut
}

// Polls returns how many times the current scan has been polled.
func (s *Scanner) Polls() int {
	return s.polls
}

// Collect harvests the finished scan, deduplicated by SSID, and resets the
// Scanner so the next Start issues a fresh scan. It returns nil if the scan
// is not ready, timed out or the driver failed to deliver results.
func (s *Scanner) Collect() []ScanResult {
	if !s.running || !s.ready {
		return nil
	}
	timedOut := s.timedOut
	s.running = false
	s.ready = false
	s.timedOut = false

	if timedOut {
		return nil
	}
	results, err := s.driver.ScanResults()
	if err != nil {
		s.logger.Warn("failed to collect scan results", "error", err)
		return nil
	}
	results = DedupScanResults(results)
	s.logger.Debug("scan finished", "networks", len(results), "polls", s.polls)
	return results
}
