package wpa

import (
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shazow/autojoin/wifi"
)

type fakeObject struct {
	path  dbus.ObjectPath
	props map[string]dbus.Variant
	// replies by method name
	replies map[string]*dbus.Call
	calls   []string
	args    [][]interface{}
}

func (o *fakeObject) Call(method string, _ dbus.Flags, args ...interface{}) *dbus.Call {
	o.calls = append(o.calls, method)
	o.args = append(o.args, args)
	if c, ok := o.replies[method]; ok {
		return c
	}
	return &dbus.Call{}
}

func (o *fakeObject) GetProperty(p string) (dbus.Variant, error) {
	v, ok := o.props[p]
	if !ok {
		return dbus.Variant{}, errors.New("no such property")
	}
	return v, nil
}

func (o *fakeObject) Path() dbus.ObjectPath { return o.path }

type fakeBus struct {
	objects map[dbus.ObjectPath]*fakeObject
}

func (b *fakeBus) Object(_ string, path dbus.ObjectPath) object {
	o, ok := b.objects[path]
	if !ok {
		o = &fakeObject{path: path}
		b.objects[path] = o
	}
	return o
}

func bssReply(props map[string]interface{}) *dbus.Call {
	vs := make(map[string]dbus.Variant, len(props))
	for k, v := range props {
		vs[k] = dbus.MakeVariant(v)
	}
	return &dbus.Call{Body: []interface{}{vs}}
}

func newTestRadio() (*Radio, *fakeObject, *fakeBus) {
	iface := &fakeObject{
		path:    "/fi/w1/wpa_supplicant1/Interfaces/0",
		props:   map[string]dbus.Variant{},
		replies: map[string]*dbus.Call{},
	}
	b := &fakeBus{objects: map[dbus.ObjectPath]*fakeObject{iface.path: iface}}
	return newRadio(b, iface.path, nil), iface, b
}

func TestScan(t *testing.T) {
	r, iface, b := newTestRadio()
	assert.False(t, r.ScanDone(), "no scan started")

	require.NoError(t, r.StartScan())
	assert.Equal(t, []string{interfaceName + ".Scan"}, iface.calls)
	assert.Equal(t, map[string]interface{}{"Type": "active"}, iface.args[0][0])

	iface.props[interfaceName+".Scanning"] = dbus.MakeVariant(true)
	assert.False(t, r.ScanDone())
	iface.props[interfaceName+".Scanning"] = dbus.MakeVariant(false)
	assert.True(t, r.ScanDone())

	iface.props[interfaceName+".BSSs"] = dbus.MakeVariant([]dbus.ObjectPath{"/bss/1", "/bss/2", "/bss/3"})
	b.objects["/bss/1"] = &fakeObject{replies: map[string]*dbus.Call{propsGetAll: bssReply(map[string]interface{}{
		"SSID":      []byte("home"),
		"Signal":    int16(-52),
		"Frequency": uint16(2437),
		"Privacy":   true,
		"RSN":       map[string]dbus.Variant{"KeyMgmt": dbus.MakeVariant([]string{"wpa-psk"})},
	})}}
	b.objects["/bss/2"] = &fakeObject{replies: map[string]*dbus.Call{propsGetAll: bssReply(map[string]interface{}{
		"SSID": []byte(""),
	})}}
	b.objects["/bss/3"] = &fakeObject{replies: map[string]*dbus.Call{propsGetAll: {Err: errors.New("gone")}}}

	results, err := r.ScanResults()
	require.NoError(t, err)
	assert.Equal(t, []wifi.ScanResult{
		{SSID: "home", Signal: -52, Security: wifi.SecurityWPA2, Channel: 6},
	}, results)
	assert.False(t, r.ScanDone(), "collected")
}

func TestScanError(t *testing.T) {
	r, iface, _ := newTestRadio()
	iface.replies[interfaceName+".Scan"] = &dbus.Call{Err: errors.New("busy")}
	assert.Error(t, r.StartScan())
	assert.False(t, r.ScanDone())

	_, err := r.ScanResults()
	assert.Error(t, err, "no BSSs property")
}

func TestJoin(t *testing.T) {
	r, iface, _ := newTestRadio()
	iface.replies[interfaceName+".AddNetwork"] = &dbus.Call{Body: []interface{}{dbus.ObjectPath("/net/0")}}

	require.NoError(t, r.Join("home", "hunter22"))
	assert.Equal(t, []string{
		interfaceName + ".RemoveAllNetworks",
		interfaceName + ".AddNetwork",
		interfaceName + ".SelectNetwork",
	}, iface.calls)
	assert.Equal(t, map[string]interface{}{"ssid": "home", "psk": "hunter22"}, iface.args[1][0])
	assert.Equal(t, dbus.ObjectPath("/net/0"), iface.args[2][0])

	require.NoError(t, r.Join("cafe", ""))
	assert.Equal(t, map[string]interface{}{"ssid": "cafe", "key_mgmt": "NONE"}, iface.args[4][0])

	iface.replies[interfaceName+".AddNetwork"] = &dbus.Call{Err: errors.New("invalid psk")}
	assert.ErrorIs(t, r.Join("home", "short"), wifi.ErrRejected)

	require.NoError(t, r.Disassociate())
	assert.Equal(t, interfaceName+".Disconnect", iface.calls[len(iface.calls)-1])
}

func TestLinkStatus(t *testing.T) {
	r, iface, _ := newTestRadio()
	assert.Equal(t, wifi.StatusIdle, r.LinkStatus(), "unreadable state")

	steps := []struct {
		state string
		want  wifi.Status
	}{
		{"disconnected", wifi.StatusIdle},
		{"scanning", wifi.StatusIdle},
		{"associating", wifi.StatusIdle},
		{"4way_handshake", wifi.StatusIdle},
		{"disconnected", wifi.StatusFailure},
		{"completed", wifi.StatusConnected},
		{"inactive", wifi.StatusFailure},
	}
	for i, step := range steps {
		iface.props[interfaceName+".State"] = dbus.MakeVariant(step.state)
		assert.Equal(t, step.want, r.LinkStatus(), "step %d: %s", i, step.state)
	}
}

func TestSecurity(t *testing.T) {
	tests := []struct {
		name    string
		wpa     []string
		rsn     []string
		privacy bool
		want    wifi.SecurityType
	}{
		{"open", nil, nil, false, wifi.SecurityOpen},
		{"wep", nil, nil, true, wifi.SecurityWEP},
		{"wpa", []string{"wpa-psk"}, nil, true, wifi.SecurityWPA},
		{"wpa2", nil, []string{"wpa-psk"}, true, wifi.SecurityWPA2},
		{"mixed", []string{"wpa-psk"}, []string{"wpa-psk"}, true, wifi.SecurityWPAWPA2},
		{"wpa3", nil, []string{"sae"}, true, wifi.SecurityWPA3},
		{"transition", nil, []string{"wpa-psk", "sae"}, true, wifi.SecurityWPA2WPA3},
		{"enterprise", nil, []string{"wpa-eap"}, true, wifi.SecurityWPA2Enterprise},
		{"owe", nil, []string{"owe"}, false, wifi.SecurityOWE},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, security(tt.wpa, tt.rsn, tt.privacy))
		})
	}
}
