package main

import (
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/shazow/autojoin/wifi"
)

// EscapeWifiString escapes the characters that are reserved in WIFI: fields.
func EscapeWifiString(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`;`, `\;`,
		`,`, `\,`,
		`:`, `\:`,
		`"`, `\"`,
	)
	return r.Replace(s)
}

// WifiQRString builds the WIFI: URI that phones understand when scanning a
// QR code.
func WifiQRString(ssid, password string, security wifi.SecurityType, isHidden bool) string {
	var b strings.Builder

	b.WriteString("WIFI:S:")
	b.WriteString(EscapeWifiString(ssid))
	b.WriteString(";")

	switch {
	case security == wifi.SecurityOpen, security == wifi.SecurityOWE:
		b.WriteString("T:nopass;")
	case security == wifi.SecurityWEP:
		b.WriteString("T:WEP;P:")
		b.WriteString(EscapeWifiString(password))
		b.WriteString(";")
	case security == wifi.SecurityWPA3:
		b.WriteString("T:SAE;P:")
		b.WriteString(EscapeWifiString(password))
		b.WriteString(";")
	case security.IsSecure() && !security.IsEnterprise():
		b.WriteString("T:WPA;P:")
		b.WriteString(EscapeWifiString(password))
		b.WriteString(";")
	case security == wifi.SecurityUnknown && password != "":
		// Don't set T if security is unknown, most readers will assume WPA.
		b.WriteString("P:")
		b.WriteString(EscapeWifiString(password))
		b.WriteString(";")
	}

	if isHidden {
		b.WriteString("H:true;")
	}
	b.WriteString(";")
	return b.String()
}

// GenerateWifiQRCode returns the terminal-friendly QR code for a network.
func GenerateWifiQRCode(ssid, password string, security wifi.SecurityType, isHidden bool) (string, error) {
	q, err := qrcode.New(WifiQRString(ssid, password, security, isHidden), qrcode.Medium)
	if err != nil {
		return "", err
	}
	return q.ToSmallString(false), nil
}
