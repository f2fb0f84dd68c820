package wifi

import (
	"fmt"
	"strings"
)

// SecurityType represents the security protocol of a network. The numeric
// values are the authentication mode codes used by the configuration portal.
type SecurityType int

// SecurityUnknown is used when the driver did not report a mode.
const SecurityUnknown SecurityType = -1

const (
	SecurityOpen SecurityType = iota
	SecurityWEP
	SecurityWPA
	SecurityWPA2
	SecurityWPAWPA2
	SecurityWPA2Enterprise
	SecurityWPA3
	SecurityWPA2WPA3
	SecurityWAPI
	SecurityOWE
)

var securityNames = []string{
	"OPEN",
	"WEP",
	"WPA-PSK",
	"WPA2-PSK",
	"WPA-WPA2-PSK",
	"WPA2-ENTERPRISE",
	"WPA3-PSK",
	"WPA2-WPA3-PSK",
	"WAPI-PSK",
	"OWE",
}

func (s SecurityType) String() string {
	if s < 0 || int(s) >= len(securityNames) {
		return "UNKNOWN"
	}
	return securityNames[s]
}

// IsSecure reports whether joining requires a secret.
func (s SecurityType) IsSecure() bool {
	return s != SecurityOpen && s != SecurityOWE && s != SecurityUnknown
}

// IsEnterprise reports whether the network needs 802.1X, which we can't join.
func (s SecurityType) IsEnterprise() bool {
	return s == SecurityWPA2Enterprise
}

// ParseSecurity parses a mode name as printed by String, case insensitive.
// The short aliases "open", "wep" and "wpa" are accepted too.
func ParseSecurity(name string) (SecurityType, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	switch n {
	case "WPA":
		return SecurityWPA, nil
	case "WPA2":
		return SecurityWPA2, nil
	case "WPA3":
		return SecurityWPA3, nil
	}
	for i, s := range securityNames {
		if s == n {
			return SecurityType(i), nil
		}
	}
	return SecurityUnknown, fmt.Errorf("unknown security type %q: %w", name, ErrInvalid)
}
