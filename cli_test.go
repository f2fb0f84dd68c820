package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shazow/autojoin/internal/config"
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

func newStore(t *testing.T, creds ...wifi.Credential) (*wifi.CredentialStore, *memStorage) {
	t.Helper()
	storage := &memStorage{}
	store := wifi.NewCredentialStore(storage, nil)
	for _, c := range creds {
		if err := store.Put(c); err != nil {
			t.Fatalf("Put(%q) failed: %v", c.SSID, err)
		}
	}
	return store, storage
}

func lines(output string) []string {
	normalizedOutput := strings.TrimSpace(strings.ReplaceAll(output, "\r\n", "\n"))
	if normalizedOutput == "" {
		return nil
	}
	return strings.Split(normalizedOutput, "\n")
}

func TestRunList(t *testing.T) {
	store, _ := newStore(t,
		wifi.Credential{SSID: "office", Secret: "hunter22"},
		wifi.Credential{SSID: "cafe"},
	)
	var buf bytes.Buffer

	if err := runList(&buf, false, store); err != nil {
		t.Fatalf("runList() failed: %v", err)
	}

	expectedLines := []string{
		"cafe\topen",
		"office\tpassphrase",
	}
	got := lines(buf.String())
	if len(got) != len(expectedLines) {
		t.Fatalf("runList() output has wrong number of lines. got=%d, want=%d\n---\n%s\n---", len(got), len(expectedLines), buf.String())
	}
	for i, expectedLine := range expectedLines {
		if got[i] != expectedLine {
			t.Errorf("runList() output line %d wrong. got=%q, want=%q", i, got[i], expectedLine)
		}
	}

	buf.Reset()
	if err := runList(&buf, true, store); err != nil {
		t.Fatalf("runList() with json failed: %v", err)
	}
	want := `[{"ssid":"cafe","secured":false},{"ssid":"office","secured":true}]`
	if strings.TrimSpace(buf.String()) != want {
		t.Errorf("runList() json output wrong. got=%q, want=%q", buf.String(), want)
	}
	if strings.Contains(buf.String(), "hunter22") {
		t.Errorf("runList() leaked a passphrase: %q", buf.String())
	}
}

func TestRunAddRemove(t *testing.T) {
	store, storage := newStore(t)
	var buf bytes.Buffer

	if err := runAdd(&buf, "home", "secret", store); err != nil {
		t.Fatalf("runAdd() failed: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "Added home") {
		t.Errorf("runAdd() output wrong. got=%q", buf.String())
	}
	if !strings.Contains(string(storage.data), `"home"`) {
		t.Errorf("runAdd() did not save. got=%q", storage.data)
	}

	if err := runAdd(&buf, "home", "other", store); !errors.Is(err, wifi.ErrExists) {
		t.Errorf("runAdd() with duplicate ssid: got=%v, want %v", err, wifi.ErrExists)
	}
	if err := runAdd(&buf, strings.Repeat("x", 33), "", store); !errors.Is(err, wifi.ErrInvalid) {
		t.Errorf("runAdd() with long ssid: got=%v, want %v", err, wifi.ErrInvalid)
	}

	buf.Reset()
	if err := runRemove(&buf, "home", store); err != nil {
		t.Fatalf("runRemove() failed: %v", err)
	}
	if buf.String() != "Removed home\n" {
		t.Errorf("runRemove() output wrong. got=%q", buf.String())
	}
	if string(storage.data) != "[]" {
		t.Errorf("runRemove() did not save. got=%q", storage.data)
	}
	if err := runRemove(&buf, "home", store); err == nil {
		t.Errorf("runRemove() with unknown network should fail")
	}
}

func TestRunShow(t *testing.T) {
	store, _ := newStore(t, wifi.Credential{SSID: "home", Secret: "password123"})
	var buf bytes.Buffer

	if err := runShow(&buf, "home", store); err != nil {
		t.Fatalf("runShow() with found network failed: %v", err)
	}
	output := buf.String()
	if !strings.Contains(output, "SSID: home") {
		t.Errorf("runShow() output missing SSID. got=%q", output)
	}
	if !strings.Contains(output, "Passphrase: password123") {
		t.Errorf("runShow() output missing passphrase. got=%q", output)
	}

	buf.Reset()
	if err := runShow(&buf, "nope", store); err == nil {
		t.Errorf("runShow() with unknown network should fail")
	}
}

func TestRunScan(t *testing.T) {
	radio := mock.Scripted(
		wifi.ScanResult{SSID: "weak", Signal: -80, Security: wifi.SecurityWPA2, Channel: 6},
		wifi.ScanResult{SSID: "strong", Signal: -30, Security: wifi.SecurityOpen, Channel: 11},
		wifi.ScanResult{SSID: "weak", Signal: -70, Security: wifi.SecurityWPA2, Channel: 36},
	)
	var buf bytes.Buffer

	if err := runScan(context.Background(), &buf, radio, scanOptions{MaxPolls: 5}, nil); err != nil {
		t.Fatalf("runScan() failed: %v", err)
	}
	expectedLines := []string{
		"strong\t-30 dBm\tOPEN\tch 11",
		"weak\t-70 dBm\tWPA2-PSK\tch 36",
	}
	got := lines(buf.String())
	if strings.Join(got, "\n") != strings.Join(expectedLines, "\n") {
		t.Errorf("runScan() output wrong.\ngot:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(expectedLines, "\n"))
	}

	buf.Reset()
	radio.StartScanError = errors.New("radio off")
	if err := runScan(context.Background(), &buf, radio, scanOptions{}, nil); err == nil {
		t.Errorf("runScan() should fail when the scan can't start")
	}
}

func TestRunConnect(t *testing.T) {
	radio := mock.Scripted(
		wifi.ScanResult{SSID: "home", Signal: -40},
		wifi.ScanResult{SSID: "office", Signal: -60},
		wifi.ScanResult{SSID: "stranger", Signal: -20},
	)
	radio.Links["home"] = []wifi.Status{wifi.StatusIdle, wifi.StatusFailure}
	radio.Links["office"] = []wifi.Status{wifi.StatusIdle, wifi.StatusConnected}
	store, _ := newStore(t,
		wifi.Credential{SSID: "home", Secret: "a"},
		wifi.Credential{SSID: "office", Secret: "b"},
	)
	var buf bytes.Buffer

	if err := runConnect(context.Background(), &buf, radio, store, connectOptions{Timeout: 5}, nil); err != nil {
		t.Fatalf("runConnect() failed: %v", err)
	}
	got := lines(buf.String())
	if len(got) != 3 || !strings.HasPrefix(got[0], "Trying home") || !strings.HasPrefix(got[1], "Trying office") || got[2] != "Connected to office" {
		t.Errorf("runConnect() output wrong. got=%q", got)
	}
	if strings.Join(radio.Joins, ",") != "home,office" {
		t.Errorf("runConnect() joined wrong networks. got=%v", radio.Joins)
	}
}

func TestRunConnectFailure(t *testing.T) {
	radio := mock.Scripted(wifi.ScanResult{SSID: "home", Signal: -40})
	radio.Links["home"] = []wifi.Status{wifi.StatusIdle}
	var buf bytes.Buffer

	empty, _ := newStore(t)
	if err := runConnect(context.Background(), &buf, radio, empty, connectOptions{Timeout: 2}, nil); !errors.Is(err, wifi.ErrNotFound) {
		t.Errorf("runConnect() with no networks: got=%v, want %v", err, wifi.ErrNotFound)
	}

	invisible, _ := newStore(t, wifi.Credential{SSID: "office"})
	if err := runConnect(context.Background(), &buf, radio, invisible, connectOptions{Timeout: 2}, nil); !errors.Is(err, wifi.ErrNotFound) {
		t.Errorf("runConnect() with nothing visible: got=%v, want %v", err, wifi.ErrNotFound)
	}

	store, _ := newStore(t, wifi.Credential{SSID: "home"})
	if err := runConnect(context.Background(), &buf, radio, store, connectOptions{Timeout: 2}, nil); !errors.Is(err, wifi.ErrOperationFailed) {
		t.Errorf("runConnect() timing out: got=%v, want %v", err, wifi.ErrOperationFailed)
	}
	if radio.Disassociates != 1 {
		t.Errorf("runConnect() should drop the timed out join. got=%d disassociates", radio.Disassociates)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := runConnect(ctx, &buf, radio, store, connectOptions{Timeout: 2}, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("runConnect() cancelled: got=%v, want %v", err, context.Canceled)
	}
}

func TestApplyFlags(t *testing.T) {
	cfg := config.Default()
	applyFlags(&cfg, "debug", "", "wlan1", "")
	if cfg.LogLevel != "debug" || cfg.Interface != "wlan1" {
		t.Errorf("applyFlags() did not override. got=%+v", cfg)
	}
	if cfg.Radio != "auto" {
		t.Errorf("applyFlags() overrode an unset flag. got radio=%q", cfg.Radio)
	}
}

func TestRunCommands(t *testing.T) {
	dir := t.TempDir()
	storagePath := filepath.Join(dir, "wifi-aps.json")
	configPath := filepath.Join(dir, "autojoin.toml")
	if err := os.WriteFile(configPath, []byte(`tick_interval = "1ms"`), 0600); err != nil {
		t.Fatal(err)
	}

	autojoin := func(args ...string) (string, error) {
		t.Helper()
		var stdout, stderr bytes.Buffer
		base := []string{"-radio", "mock", "-storage-path", storagePath, "-config", configPath}
		err := run(context.Background(), append(base, args...), &stdout, &stderr)
		return stdout.String(), err
	}

	if _, err := autojoin("add", "-passphrase", "hunter22", "office"); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := autojoin("add", "cafe"); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	out, err := autojoin("list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	expectedLines := []string{"cafe\topen", "office\tpassphrase"}
	if got := lines(out); strings.Join(got, "\n") != strings.Join(expectedLines, "\n") {
		t.Errorf("list output mismatch. got=%q, want=%q", got, expectedLines)
	}

	out, err = autojoin("show", "office")
	if err != nil {
		t.Fatalf("show failed: %v", err)
	}
	if !strings.Contains(out, "Passphrase: hunter22") {
		t.Errorf("show output does not contain the passphrase:\n%s", out)
	}

	if _, err := autojoin("remove", "cafe"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if _, err := autojoin("remove", "cafe"); err == nil {
		t.Error("removing a missing network should fail")
	}

	out, err = autojoin("scan")
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if got := lines(out); len(got) == 0 || !strings.HasPrefix(got[0], "TacoBoutAGoodSignal\t") {
		t.Errorf("scan should list the strongest network first, got=%q", got)
	}

	if _, err := autojoin("add"); err == nil {
		t.Error("add without an ssid should fail")
	}
	if _, err := autojoin("list", "-bogus"); err == nil {
		t.Error("an undefined flag should fail")
	}
}

func TestRunEnvironment(t *testing.T) {
	storagePath := filepath.Join(t.TempDir(), "wifi-aps.json")
	t.Setenv("AUTOJOIN_STORAGE_PATH", storagePath)

	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), []string{"-radio", "mock", "add", "home"}, &stdout, &stderr); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	data, err := os.ReadFile(storagePath)
	if err != nil {
		t.Fatalf("credentials were not written to the env path: %v", err)
	}
	if !strings.Contains(string(data), `"home"`) {
		t.Errorf("stored credentials = %s", data)
	}
}

func TestRunVersionAndHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), []string{"-version"}, &stdout, &stderr); err != nil {
		t.Fatalf("-version failed: %v", err)
	}
	if got := strings.TrimSpace(stdout.String()); got != Version {
		t.Errorf("-version printed %q, want %q", got, Version)
	}

	stdout.Reset()
	err := run(context.Background(), []string{"-h"}, &stdout, &stderr)
	if !errors.Is(err, flag.ErrHelp) {
		t.Errorf("-h: got=%v, want %v", err, flag.ErrHelp)
	}
}
