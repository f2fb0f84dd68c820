// Package networkmanager drives a wireless device through NetworkManager over
// D-Bus.
package networkmanager

import (
	"fmt"
	"log/slog"

	gonetworkmanager "github.com/Wifx/gonetworkmanager/v3"
	"github.com/google/uuid"

	"github.com/shazow/autojoin/wifi"
)

// Key management bits of the AccessPoint WpaFlags and RsnFlags properties.
const (
	keyMgmtPSK   = 0x100
	keyMgmt8021X = 0x200
	keyMgmtSAE   = 0x400
	keyMgmtOWE   = 0x800
)

// Radio implements wifi.Radio on top of NetworkManager. Every method returns
// promptly: scans and activations are requested and then observed through
// device properties.
type Radio struct {
	NM        gonetworkmanager.NetworkManager
	Interface string

	logger *slog.Logger
	device gonetworkmanager.DeviceWireless

	scanning bool
	lastScan int64

	// Strongest access point per SSID from the last collected scan.
	aps      map[string]gonetworkmanager.AccessPoint
	security map[string]wifi.SecurityType

	profile    gonetworkmanager.Connection
	active     gonetworkmanager.ActiveConnection
	activating bool
	// pending is set by Join until the device state can be trusted to
	// describe the new activation rather than the connection before it.
	pending bool
}

var _ wifi.Radio = (*Radio)(nil)

// New connects to NetworkManager on the system bus. iface selects the
// wireless device by name; empty picks the first one.
func New(iface string, logger *slog.Logger) (*Radio, error) {
	nm, err := gonetworkmanager.NewNetworkManager()
	if err != nil {
		return nil, fmt.Errorf("failed to create network manager client: %w", wifi.ErrNotAvailable)
	}
	r := &Radio{
		NM:        nm,
		Interface: iface,
		logger:    logger,
	}
	if _, err := r.getWirelessDevice(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Radio) log() *slog.Logger {
	if r.logger == nil {
		return slog.Default()
	}
	return r.logger
}

func (r *Radio) getWirelessDevice() (gonetworkmanager.DeviceWireless, error) {
	if r.device != nil {
		return r.device, nil
	}

	devices, err := r.NM.GetDevices()
	if err != nil {
		return nil, err
	}
	for _, device := range devices {
		dev, ok := device.(gonetworkmanager.DeviceWireless)
		if !ok {
			continue
		}
		if r.Interface != "" {
			name, err := dev.GetPropertyInterface()
			if err != nil || name != r.Interface {
				continue
			}
		}
		r.device = dev
		return dev, nil
	}
	return nil, fmt.Errorf("no wireless device found: %w", wifi.ErrNotFound)
}

func (r *Radio) StartScan() error {
	enabled, err := r.NM.GetPropertyWirelessEnabled()
	if err != nil {
		return err
	}
	if !enabled {
		return wifi.ErrWirelessDisabled
	}
	dev, err := r.getWirelessDevice()
	if err != nil {
		return err
	}

	last, err := dev.GetPropertyLastScan()
	if err != nil {
		return err
	}
	if err := dev.RequestScan(); err != nil {
		return fmt.Errorf("scan request failed: %w", err)
	}
	r.lastScan = last
	r.scanning = true
	return nil
}

// ScanDone reports whether NetworkManager has finished a scan since
// StartScan, which shows as a new LastScan timestamp.
func (r *Radio) ScanDone() bool {
	if !r.scanning || r.device == nil {
		return false
	}
	last, err := r.device.GetPropertyLastScan()
	if err != nil {
		r.log().Debug("failed to read last scan", "error", err)
		return false
	}
	return last != r.lastScan
}

func (r *Radio) ScanResults() ([]wifi.ScanResult, error) {
	dev, err := r.getWirelessDevice()
	if err != nil {
		return nil, err
	}
	r.scanning = false

	accessPoints, err := dev.GetAccessPoints()
	if err != nil {
		return nil, err
	}

	r.aps = make(map[string]gonetworkmanager.AccessPoint)
	r.security = make(map[string]wifi.SecurityType)
	strongest := make(map[string]uint8)

	var results []wifi.ScanResult
	for _, ap := range accessPoints {
		ssid, err := ap.GetPropertySSID()
		if err != nil || ssid == "" {
			continue
		}
		strength, _ := ap.GetPropertyStrength()
		frequency, _ := ap.GetPropertyFrequency()
		security := apSecurity(ap)

		if s, ok := strongest[ssid]; !ok || strength > s {
			strongest[ssid] = strength
			r.aps[ssid] = ap
			r.security[ssid] = security
		}

		results = append(results, wifi.ScanResult{
			SSID:     ssid,
			Signal:   wifi.QualityToDBm(strength),
			Security: security,
			Channel:  wifi.ChannelFromFrequency(uint(frequency)),
		})
	}
	return results, nil
}

func apSecurity(ap gonetworkmanager.AccessPoint) wifi.SecurityType {
	flags, _ := ap.GetPropertyFlags()
	wpaFlags, _ := ap.GetPropertyWPAFlags()
	rsnFlags, _ := ap.GetPropertyRSNFlags()
	return securityFromFlags(uint32(flags), uint32(wpaFlags), uint32(rsnFlags))
}

func securityFromFlags(flags, wpaFlags, rsnFlags uint32) wifi.SecurityType {
	switch {
	case (wpaFlags|rsnFlags)&keyMgmt8021X != 0:
		return wifi.SecurityWPA2Enterprise
	case rsnFlags&keyMgmtSAE != 0 && rsnFlags&keyMgmtPSK != 0:
		return wifi.SecurityWPA2WPA3
	case rsnFlags&keyMgmtSAE != 0:
		return wifi.SecurityWPA3
	case rsnFlags&keyMgmtOWE != 0:
		return wifi.SecurityOWE
	case rsnFlags != 0 && wpaFlags != 0:
		return wifi.SecurityWPAWPA2
	case rsnFlags != 0:
		return wifi.SecurityWPA2
	case wpaFlags != 0:
		return wifi.SecurityWPA
	case flags&uint32(gonetworkmanager.Nm80211APFlagsPrivacy) != 0:
		return wifi.SecurityWEP
	default:
		return wifi.SecurityOpen
	}
}

// settings builds a throwaway connection profile for ssid.
func settings(ssid, secret, iface string, security wifi.SecurityType, hidden bool) map[string]map[string]interface{} {
	connection := map[string]map[string]interface{}{
		"connection": {
			"id":             ssid,
			"uuid":           uuid.New().String(),
			"type":           "802-11-wireless",
			"interface-name": iface,
			"autoconnect":    false,
		},
		"802-11-wireless": {
			"mode": "infrastructure",
			"ssid": []byte(ssid),
		},
		"ipv4": {"method": "auto"},
		"ipv6": {"method": "auto"},
	}
	if hidden {
		connection["802-11-wireless"]["hidden"] = true
	}

	switch {
	case secret == "" && !security.IsSecure():
	case security == wifi.SecurityWEP:
		connection["802-11-wireless"]["security"] = "802-11-wireless-security"
		connection["802-11-wireless-security"] = map[string]interface{}{
			"key-mgmt": "none",
			"wep-key0": secret,
		}
	case security == wifi.SecurityWPA3:
		connection["802-11-wireless"]["security"] = "802-11-wireless-security"
		connection["802-11-wireless-security"] = map[string]interface{}{
			"key-mgmt": "sae",
			"psk":      secret,
		}
	default:
		connection["802-11-wireless"]["security"] = "802-11-wireless-security"
		connection["802-11-wireless-security"] = map[string]interface{}{
			"key-mgmt": "wpa-psk",
			"psk":      secret,
		}
	}
	return connection
}

// Join asks NetworkManager to activate a new profile for ssid. Networks that
// did not show up in the last scan are joined as hidden networks.
func (r *Radio) Join(ssid string, secret string) error {
	dev, err := r.getWirelessDevice()
	if err != nil {
		return err
	}
	iface, _ := dev.GetPropertyInterface()

	ap, visible := r.aps[ssid]
	security, ok := r.security[ssid]
	if !ok {
		security = wifi.SecurityWPA2
		if secret == "" {
			security = wifi.SecurityOpen
		}
	}
	if security.IsEnterprise() {
		return fmt.Errorf("%s uses enterprise authentication: %w", ssid, wifi.ErrNotSupported)
	}
	connection := settings(ssid, secret, iface, security, !visible)

	var active gonetworkmanager.ActiveConnection
	if visible {
		active, err = r.NM.AddAndActivateWirelessConnection(connection, dev, ap)
	} else {
		active, err = r.NM.AddAndActivateConnection(connection, dev)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", wifi.ErrRejected, err)
	}

	r.forgetProfile()
	if profile, err := active.GetPropertyConnection(); err == nil {
		r.profile = profile
	}
	r.active = active
	r.activating = false
	r.pending = true
	return nil
}

// Disassociate disconnects the device and deletes the profile Join created.
func (r *Radio) Disassociate() error {
	r.activating = false
	r.pending = false
	r.active = nil
	dev, err := r.getWirelessDevice()
	if err != nil {
		return err
	}
	err = dev.Disconnect()
	r.forgetProfile()
	return err
}

func (r *Radio) forgetProfile() {
	if r.profile == nil {
		return
	}
	if err := r.profile.Delete(); err != nil {
		r.log().Debug("failed to delete connection profile", "error", err)
	}
	r.profile = nil
}

// LinkStatus maps the device state. A device that falls back to disconnected
// after an activation started has failed to join.
//
// Right after Join the device may still report the previous connection as
// activated, so activated only counts once the device has left that state or
// reports the activation Join started as its own.
func (r *Radio) LinkStatus() wifi.Status {
	if r.device == nil {
		return wifi.StatusIdle
	}
	state, err := r.device.GetPropertyState()
	if err != nil {
		r.log().Debug("failed to read device state", "error", err)
		return wifi.StatusIdle
	}
	if r.pending {
		if state == gonetworkmanager.NmDeviceStateActivated && !r.ownsDevice() {
			return wifi.StatusIdle
		}
		r.pending = false
	}
	return r.linkStatus(state)
}

// ownsDevice reports whether the device's active connection is the one Join
// started.
func (r *Radio) ownsDevice() bool {
	if r.active == nil {
		return false
	}
	current, err := r.device.GetPropertyActiveConnection()
	if err != nil || current == nil {
		return false
	}
	return current.GetPath() == r.active.GetPath()
}

func (r *Radio) linkStatus(state gonetworkmanager.NmDeviceState) wifi.Status {
	switch state {
	case gonetworkmanager.NmDeviceStateActivated:
		return wifi.StatusConnected
	case gonetworkmanager.NmDeviceStateFailed, gonetworkmanager.NmDeviceStateUnavailable:
		return wifi.StatusFailure
	case gonetworkmanager.NmDeviceStateDisconnected:
		if r.activating {
			return wifi.StatusFailure
		}
		return wifi.StatusIdle
	default:
		if state > gonetworkmanager.NmDeviceStateDisconnected && state < gonetworkmanager.NmDeviceStateActivated {
			// Between disconnected and activated means the activation is
			// under way. Deactivating is the old link going down.
			r.activating = true
		}
		return wifi.StatusIdle
	}
}
