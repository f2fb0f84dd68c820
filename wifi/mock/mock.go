package mock

import (
	"fmt"

	"github.com/shazow/autojoin/wifi"
)

// DefaultScanPolls is how many polls a mock scan takes to finish.
const DefaultScanPolls = 3

// DefaultConnectPolls is how many link polls a correct join stays idle for
// before the link comes up.
const DefaultConnectPolls = 5

// Radio is a scripted in-memory implementation of wifi.Radio.
//
// Without a script, a join to a visible network whose secret matches Secrets
// (or that is open) connects after ConnectPolls link polls; anything else
// fails after the same delay. Scripts in Links take precedence.
type Radio struct {
	Visible []wifi.ScanResult
	Secrets map[string]string

	// Links scripts the link status per SSID, one entry per LinkStatus call
	// after a join. The last entry repeats once the script runs out.
	Links map[string][]wifi.Status
	// JoinErrors rejects join requests for an SSID.
	JoinErrors map[string]error

	ScanPolls        int
	ConnectPolls     int
	StartScanError   error
	ScanResultsError error
	DisassociateErr  error

	// Joins records every accepted or rejected join request, in order.
	Joins          []string
	Disassociates  int
	ScansStarted   int
	LinkStatusCall int

	scanning  bool
	scanPolls int
	joined    string
	secret    string
	linkPolls int
}

// New returns a Radio with a list of fun wifi networks. Two of them are
// joinable: "Password is password" and "HideYoKidsHideYoWiFi".
func New() *Radio {
	return &Radio{
		Visible: []wifi.ScanResult{
			{SSID: "HideYoKidsHideYoWiFi", Signal: -48, Security: wifi.SecurityWPA2, Channel: 6},
			{SSID: "NeverGonnaGiveYouIP", Signal: -81, Security: wifi.SecurityWEP, Channel: 1},
			{SSID: "Unencrypted_Honeypot", Signal: -67, Security: wifi.SecurityOpen, Channel: 11},
			{SSID: "Dunder MiffLAN", Signal: -72, Security: wifi.SecurityWPA2, Channel: 36},
			{SSID: "Police Surveillance 2", Signal: -76, Security: wifi.SecurityWPA2, Channel: 6},
			{SSID: "I Believe Wi Can Fi", Signal: -88, Security: wifi.SecurityWEP, Channel: 1},
			{SSID: "Hot singles in your area", Signal: -59, Security: wifi.SecurityWPA3, Channel: 149},
			{SSID: "Password is password", Signal: -57, Security: wifi.SecurityWPAWPA2, Channel: 11},
			{SSID: "TacoBoutAGoodSignal", Signal: -31, Security: wifi.SecurityWPA2, Channel: 44},
			{SSID: "Multi-AP Network", Signal: -60, Security: wifi.SecurityWPA2, Channel: 1},
			{SSID: "Multi-AP Network", Signal: -70, Security: wifi.SecurityWPA2, Channel: 36},
			{SSID: "Multi-AP Network", Signal: -80, Security: wifi.SecurityWPA2, Channel: 48},
			{SSID: "Corp Net", Signal: -64, Security: wifi.SecurityWPA2Enterprise, Channel: 52},
		},
		Secrets: map[string]string{
			"Password is password": "password",
			"HideYoKidsHideYoWiFi": "hidden",
		},
		ScanPolls:    DefaultScanPolls,
		ConnectPolls: DefaultConnectPolls,
	}
}

// Scripted returns a Radio with no visible networks and no delays, for tests
// that script everything themselves.
func Scripted(visible ...wifi.ScanResult) *Radio {
	return &Radio{
		Visible:    visible,
		Links:      map[string][]wifi.Status{},
		JoinErrors: map[string]error{},
	}
}

func (r *Radio) StartScan() error {
	if r.StartScanError != nil {
		return r.StartScanError
	}
	r.ScansStarted++
	r.scanning = true
	r.scanPolls = 0
	return nil
}

func (r *Radio) ScanDone() bool {
	if !r.scanning {
		return false
	}
	r.scanPolls++
	return r.scanPolls > r.ScanPolls
}

func (r *Radio) ScanResults() ([]wifi.ScanResult, error) {
	if r.ScanResultsError != nil {
		return nil, r.ScanResultsError
	}
	if !r.scanning {
		return nil, fmt.Errorf("no scan results: %w", wifi.ErrNotAvailable)
	}
	r.scanning = false
	return append([]wifi.ScanResult(nil), r.Visible...), nil
}

func (r *Radio) Join(ssid string, secret string) error {
	r.Joins = append(r.Joins, ssid)
	if err, ok := r.JoinErrors[ssid]; ok && err != nil {
		return err
	}
	if ssid == "" {
		return fmt.Errorf("empty ssid: %w", wifi.ErrRejected)
	}
	r.joined = ssid
	r.secret = secret
	r.linkPolls = 0
	return nil
}

func (r *Radio) Disassociate() error {
	r.Disassociates++
	r.joined = ""
	r.secret = ""
	r.linkPolls = 0
	return r.DisassociateErr
}

func (r *Radio) LinkStatus() wifi.Status {
	r.LinkStatusCall++
	if r.joined == "" {
		return wifi.StatusIdle
	}
	r.linkPolls++

	if script, ok := r.Links[r.joined]; ok && len(script) > 0 {
		i := r.linkPolls - 1
		if i >= len(script) {
			i = len(script) - 1
		}
		return script[i]
	}

	if r.linkPolls <= r.ConnectPolls {
		return wifi.StatusIdle
	}
	if r.joinable() {
		return wifi.StatusConnected
	}
	return wifi.StatusFailure
}

func (r *Radio) joinable() bool {
	visible := false
	security := wifi.SecurityUnknown
	for _, v := range r.Visible {
		if v.SSID == r.joined {
			visible = true
			security = v.Security
			break
		}
	}
	if !visible || security.IsEnterprise() {
		return false
	}
	if !security.IsSecure() {
		return true
	}
	want, ok := r.Secrets[r.joined]
	return ok && want == r.secret
}
