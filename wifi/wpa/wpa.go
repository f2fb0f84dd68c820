// Package wpa drives a wireless interface through wpa_supplicant's D-Bus API.
package wpa

import (
	"log/slog"

	"github.com/go-errors/errors"
	"github.com/godbus/dbus/v5"

	"github.com/shazow/autojoin/wifi"
)

const (
	service       = "fi.w1.wpa_supplicant1"
	servicePath   = "/fi/w1/wpa_supplicant1"
	interfaceName = service + ".Interface"
	bssName       = service + ".BSS"
	propsGetAll   = "org.freedesktop.DBus.Properties.GetAll"
)

// object is the part of dbus.BusObject the radio needs.
type object interface {
	Call(method string, flags dbus.Flags, args ...interface{}) *dbus.Call
	GetProperty(p string) (dbus.Variant, error)
	Path() dbus.ObjectPath
}

type bus interface {
	Object(dest string, path dbus.ObjectPath) object
}

type systemBus struct {
	conn *dbus.Conn
}

func (b systemBus) Object(dest string, path dbus.ObjectPath) object {
	return b.conn.Object(dest, path)
}

// Radio implements wifi.Radio for one wpa_supplicant interface.
type Radio struct {
	bus    bus
	iface  object
	logger *slog.Logger

	scanning  bool
	handshake bool
}

var _ wifi.Radio = (*Radio)(nil)

// New looks up the wpa_supplicant interface ifname on the system bus.
func New(ifname string, logger *slog.Logger) (*Radio, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, errors.Errorf("could not connect to system bus: %w", wifi.ErrNotAvailable)
	}
	b := systemBus{conn: conn}

	call := b.Object(service, servicePath).Call(service+".GetInterface", 0, ifname)
	if call.Err != nil {
		return nil, errors.Errorf("could not find interface %v: %w", ifname, wifi.ErrNotFound)
	}
	var path dbus.ObjectPath
	if err := call.Store(&path); err != nil {
		return nil, errors.Errorf("could not store interface path: %v", err)
	}
	return newRadio(b, path, logger), nil
}

func newRadio(b bus, path dbus.ObjectPath, logger *slog.Logger) *Radio {
	if logger == nil {
		logger = slog.Default()
	}
	return &Radio{
		bus:    b,
		iface:  b.Object(service, path),
		logger: logger,
	}
}

func (r *Radio) StartScan() error {
	call := r.iface.Call(interfaceName+".Scan", 0, map[string]interface{}{
		"Type": "active",
	})
	if call.Err != nil {
		return errors.Errorf("could not scan: %v", call.Err)
	}
	r.scanning = true
	return nil
}

func (r *Radio) ScanDone() bool {
	if !r.scanning {
		return false
	}
	v, err := r.iface.GetProperty(interfaceName + ".Scanning")
	if err != nil {
		r.logger.Debug("could not read scanning property", "error", err)
		return false
	}
	scanning, ok := v.Value().(bool)
	return ok && !scanning
}

func (r *Radio) ScanResults() ([]wifi.ScanResult, error) {
	r.scanning = false

	v, err := r.iface.GetProperty(interfaceName + ".BSSs")
	if err != nil {
		return nil, errors.Errorf("could not get bsss: %v", err)
	}
	paths, ok := v.Value().([]dbus.ObjectPath)
	if !ok {
		return nil, errors.Errorf("could not convert bsss: %v", v)
	}

	var results []wifi.ScanResult
	for _, path := range paths {
		res, err := r.bss(path)
		if err != nil {
			r.logger.Debug("skipping bss", "path", path, "error", err)
			continue
		}
		if res.SSID == "" {
			continue
		}
		results = append(results, res)
	}
	return results, nil
}

func (r *Radio) bss(path dbus.ObjectPath) (wifi.ScanResult, error) {
	call := r.bus.Object(service, path).Call(propsGetAll, 0, bssName)
	if call.Err != nil {
		return wifi.ScanResult{}, errors.Errorf("could not get all properties: %v", call.Err)
	}
	if len(call.Body) == 0 {
		return wifi.ScanResult{}, errors.Errorf("empty reply")
	}
	props, ok := call.Body[0].(map[string]dbus.Variant)
	if !ok {
		return wifi.ScanResult{}, errors.Errorf("could not convert output")
	}
	return parseBSS(props)
}

func parseBSS(props map[string]dbus.Variant) (wifi.ScanResult, error) {
	res := wifi.ScanResult{}

	val, ok := props["SSID"]
	if !ok {
		return res, errors.Errorf("mandatory property SSID was missing")
	}
	ssid, ok := val.Value().([]byte)
	if !ok {
		return res, errors.Errorf("could not convert SSID to string: %v", val)
	}
	res.SSID = string(ssid)

	if val, ok := props["Signal"]; ok {
		if signal, ok := val.Value().(int16); ok {
			res.Signal = int(signal)
		}
	}
	if val, ok := props["Frequency"]; ok {
		if freq, ok := val.Value().(uint16); ok {
			res.Channel = wifi.ChannelFromFrequency(uint(freq))
		}
	}

	privacy := false
	if val, ok := props["Privacy"]; ok {
		privacy, _ = val.Value().(bool)
	}
	res.Security = security(keyMgmt(props, "WPA"), keyMgmt(props, "RSN"), privacy)
	return res, nil
}

// keyMgmt returns the KeyMgmt list of the WPA or RSN property.
func keyMgmt(props map[string]dbus.Variant, name string) []string {
	val, ok := props[name]
	if !ok {
		return nil
	}
	dict, ok := val.Value().(map[string]dbus.Variant)
	if !ok {
		return nil
	}
	mgmt, ok := dict["KeyMgmt"]
	if !ok {
		return nil
	}
	list, _ := mgmt.Value().([]string)
	return list
}

func security(wpa, rsn []string, privacy bool) wifi.SecurityType {
	has := func(list []string, prefix string) bool {
		for _, s := range list {
			if len(s) >= len(prefix) && s[:len(prefix)] == prefix {
				return true
			}
		}
		return false
	}

	switch {
	case has(wpa, "wpa-eap") || has(rsn, "wpa-eap"):
		return wifi.SecurityWPA2Enterprise
	case has(rsn, "sae") && has(rsn, "wpa-psk"):
		return wifi.SecurityWPA2WPA3
	case has(rsn, "sae"):
		return wifi.SecurityWPA3
	case has(rsn, "owe"):
		return wifi.SecurityOWE
	case len(wpa) > 0 && len(rsn) > 0:
		return wifi.SecurityWPAWPA2
	case len(rsn) > 0:
		return wifi.SecurityWPA2
	case len(wpa) > 0:
		return wifi.SecurityWPA
	case privacy:
		return wifi.SecurityWEP
	default:
		return wifi.SecurityOpen
	}
}

// Join replaces every configured network with one for ssid and selects it.
func (r *Radio) Join(ssid string, secret string) error {
	call := r.iface.Call(interfaceName+".RemoveAllNetworks", 0)
	if call.Err != nil {
		return errors.Errorf("could not remove all networks: %v", call.Err)
	}

	args := map[string]interface{}{
		"ssid": ssid,
	}
	if secret != "" {
		args["psk"] = secret
	} else {
		args["key_mgmt"] = "NONE"
	}

	call = r.iface.Call(interfaceName+".AddNetwork", 0, args)
	if call.Err != nil {
		return errors.Errorf("could not add network %v: %w", ssid, wifi.ErrRejected)
	}
	var path dbus.ObjectPath
	if err := call.Store(&path); err != nil {
		return errors.Errorf("could not store value: %v", err)
	}

	call = r.iface.Call(interfaceName+".SelectNetwork", 0, path)
	if call.Err != nil {
		return errors.Errorf("could not select network %v: %w", ssid, wifi.ErrRejected)
	}
	r.handshake = false
	return nil
}

func (r *Radio) Disassociate() error {
	r.handshake = false
	call := r.iface.Call(interfaceName+".Disconnect", 0)
	if call.Err != nil {
		return errors.Errorf("could not disconnect: %v", call.Err)
	}
	return nil
}

// LinkStatus maps the interface State. Falling back to disconnected after a
// key handshake started means the key was refused.
func (r *Radio) LinkStatus() wifi.Status {
	v, err := r.iface.GetProperty(interfaceName + ".State")
	if err != nil {
		r.logger.Debug("could not read state", "error", err)
		return wifi.StatusIdle
	}
	state, _ := v.Value().(string)
	return r.linkStatus(state)
}

func (r *Radio) linkStatus(state string) wifi.Status {
	switch state {
	case "completed":
		return wifi.StatusConnected
	case "inactive", "interface_disabled":
		return wifi.StatusFailure
	case "4way_handshake", "group_handshake":
		r.handshake = true
		return wifi.StatusIdle
	case "disconnected":
		if r.handshake {
			return wifi.StatusFailure
		}
		return wifi.StatusIdle
	default:
		return wifi.StatusIdle
	}
}
