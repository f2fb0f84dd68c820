package wifi

// Status is the 3-valued link state reported by a radio, and also the result
// of a single association tick.
type Status int

const (
	// StatusIdle means not connected yet; keep waiting.
	StatusIdle Status = iota
	// StatusConnected means the link is up.
	StatusConnected
	// StatusFailure means the link went away or could not be established.
	StatusFailure
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnected:
		return "connected"
	case StatusFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Credential is a known network and its secret. An empty Secret denotes an
// open network.
type Credential struct {
	SSID   string
	Secret string
}

// ScanResult is one network seen during a scan.
type ScanResult struct {
	SSID     string
	Signal   int // dBm, larger is stronger
	Security SecurityType
	Channel  int
}

// Candidate is a credential paired with the signal it was seen at. It is a
// value copy, so changes to the store or the scan after ranking do not affect
// it.
type Candidate struct {
	SSID   string
	Secret string
	Signal int
}

// Joiner issues association requests against the radio.
type Joiner interface {
	// Join requests association with a network. A non-nil error means the
	// request itself was rejected (bad parameters, driver busy); it says
	// nothing about whether the link will come up.
	Join(ssid string, secret string) error
	// Disassociate drops any current or pending association.
	Disassociate() error
}

// LinkProber reports the current link status of the radio.
type LinkProber interface {
	LinkStatus() Status
}

// ScanDriver is the fire-and-poll scan interface of the radio.
type ScanDriver interface {
	// StartScan asks the driver to begin a scan. It must not block.
	StartScan() error
	// ScanDone reports whether the driver has results ready.
	ScanDone() bool
	// ScanResults harvests the results of the finished scan.
	ScanResults() ([]ScanResult, error)
}

// Radio is the single, exclusively owned wireless device.
type Radio interface {
	Joiner
	LinkProber
	ScanDriver
}
