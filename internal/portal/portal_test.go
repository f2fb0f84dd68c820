package portal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shazow/autojoin/internal/device"
	"github.com/shazow/autojoin/internal/metrics"
	"github.com/shazow/autojoin/wifi"
	"github.com/shazow/autojoin/wifi/mock"
)

type memStorage struct {
	data []byte
}

func (m *memStorage) Load() ([]byte, error) { return m.data, nil }

func (m *memStorage) Save(data []byte) error {
	m.data = append([]byte(nil), data...)
	return nil
}

func newTestPortal(t *testing.T, radio wifi.Radio) *Portal {
	t.Helper()

	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	store := wifi.NewCredentialStore(&memStorage{}, nil)
	prov := device.NewProvisioner(radio, store, device.Options{
		TimeoutTicks: 1000,
		Metrics:      m,
	})
	prov.Start()
	loop := device.NewLoop(time.Millisecond, prov.Tick, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		loop.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return New(&Config{
		Loop:        loop,
		Provisioner: prov,
		Logs:        func() []string { return []string{"hello"} },
		Metrics:     m.Handler(),
	})
}

func request(t *testing.T, p *Portal, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestConfigList(t *testing.T) {
	p := newTestPortal(t, mock.Scripted())

	rec := request(t, p, http.MethodGet, "/api/wifi/configlist", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = request(t, p, http.MethodPost, "/api/wifi/add", `{"apName":"home","apPass":"secret"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = request(t, p, http.MethodPost, "/api/wifi/add", `{"apName":"cafe"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = request(t, p, http.MethodGet, "/api/wifi/configlist", "")
	assert.JSONEq(t, `[
		{"id": 0, "apName": "cafe", "apPass": false},
		{"id": 1, "apName": "home", "apPass": true}
	]`, rec.Body.String())
}

func TestAddErrors(t *testing.T) {
	p := newTestPortal(t, mock.Scripted())
	require.Equal(t, http.StatusOK, request(t, p, http.MethodPost, "/api/wifi/add", `{"apName":"home"}`).Code)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"duplicate", `{"apName":"home","apPass":"x"}`, http.StatusConflict},
		{"empty name", `{"apName":"","apPass":"x"}`, http.StatusBadRequest},
		{"long name", `{"apName":"` + strings.Repeat("a", 33) + `"}`, http.StatusBadRequest},
		{"malformed", `{"apName":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := request(t, p, http.MethodPost, "/api/wifi/add", tt.body)
			assert.Equal(t, tt.code, rec.Code)

			var res errorResponse
			decodeBody(t, rec, &res)
			assert.NotEmpty(t, res.Error)
		})
	}
}

func TestRemove(t *testing.T) {
	p := newTestPortal(t, mock.Scripted())
	for _, ssid := range []string{"a", "b", "c"} {
		require.Equal(t, http.StatusOK, request(t, p, http.MethodPost, "/api/wifi/add", `{"apName":"`+ssid+`"}`).Code)
	}

	rec := request(t, p, http.MethodDelete, "/api/wifi/apName", `{"apName":"b"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	var msg messageResponse
	decodeBody(t, rec, &msg)
	assert.Equal(t, "removed b", msg.Message)

	rec = request(t, p, http.MethodPost, "/api/wifi/apName", `{"apName":"b"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = request(t, p, http.MethodPost, "/api/wifi/id", `{"id":1}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &msg)
	assert.Equal(t, "removed c", msg.Message)

	assert.Equal(t, http.StatusNotFound, request(t, p, http.MethodPost, "/api/wifi/id", `{"id":7}`).Code)
	assert.Equal(t, http.StatusBadRequest, request(t, p, http.MethodPost, "/api/wifi/id", `{}`).Code)

	rec = request(t, p, http.MethodGet, "/api/wifi/configlist", "")
	assert.JSONEq(t, `[{"id": 0, "apName": "a", "apPass": false}]`, rec.Body.String())
}

func TestScan(t *testing.T) {
	p := newTestPortal(t, mock.Scripted(
		wifi.ScanResult{SSID: "weak", Signal: -80, Security: wifi.SecurityWPA2, Channel: 6},
		wifi.ScanResult{SSID: "strong", Signal: -30, Security: wifi.SecurityOpen, Channel: 11},
		wifi.ScanResult{SSID: "strong", Signal: -60, Security: wifi.SecurityOpen, Channel: 1},
	))

	var res scanResponse
	assert.Eventually(t, func() bool {
		rec := request(t, p, http.MethodGet, "/api/wifi/scan", "")
		res = scanResponse{}
		decodeBody(t, rec, &res)
		return len(res.Networks) > 0
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []network{
		{SSID: "strong", RSSI: -30, EncryptionType: wifi.SecurityOpen, Security: "OPEN", Channel: 11},
		{SSID: "weak", RSSI: -80, EncryptionType: wifi.SecurityWPA2, Security: "WPA2-PSK", Channel: 6},
	}, res.Networks)
}

func TestStatus(t *testing.T) {
	p := newTestPortal(t, mock.Scripted())

	rec := request(t, p, http.MethodGet, "/api/wifi/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var res map[string]any
	decodeBody(t, rec, &res)
	assert.Equal(t, "portal", res["state"])
	assert.Equal(t, "idle", res["link"])
	assert.Equal(t, []any{"hello"}, res["logs"])
	assert.Contains(t, res, "heap")
}

func TestFinishConfiguration(t *testing.T) {
	radio := mock.Scripted(wifi.ScanResult{SSID: "home", Signal: -40})
	radio.Links["home"] = []wifi.Status{wifi.StatusIdle}
	p := newTestPortal(t, radio)

	assert.Equal(t, http.StatusConflict, request(t, p, http.MethodPost, "/api/wifi/cancel", "").Code)
	require.Equal(t, http.StatusOK, request(t, p, http.MethodPost, "/api/wifi/add", `{"apName":"home","apPass":"pw"}`).Code)
	require.Equal(t, http.StatusOK, request(t, p, http.MethodPost, "/api/wifi/softAp/stop", "").Code)

	state := func() string {
		var res map[string]any
		decodeBody(t, request(t, p, http.MethodGet, "/api/wifi/status", ""), &res)
		return res["state"].(string)
	}
	assert.Eventually(t, func() bool { return state() == "associating" }, time.Second, time.Millisecond)
	assert.Equal(t, http.StatusConflict, request(t, p, http.MethodPost, "/api/wifi/softAp/stop", "").Code)

	require.Equal(t, http.StatusOK, request(t, p, http.MethodPost, "/api/wifi/cancel", "").Code)
	assert.Eventually(t, func() bool { return state() == "portal" }, time.Second, time.Millisecond)
}

func TestMetrics(t *testing.T) {
	p := newTestPortal(t, mock.Scripted())

	rec := request(t, p, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "autojoin_credentials 0")
}

func TestMethodNotAllowed(t *testing.T) {
	p := newTestPortal(t, mock.Scripted())
	assert.Equal(t, http.StatusMethodNotAllowed, request(t, p, http.MethodGet, "/api/wifi/add", "").Code)
}
