package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
)

// Color is a lipgloss color that can be decoded from TOML either as a single
// hex string or as a [light, dark] pair.
type Color struct {
	lipgloss.TerminalColor
}

// UnmarshalTOML implements toml.Unmarshaler.
func (c *Color) UnmarshalTOML(v interface{}) error {
	switch v := v.(type) {
	case string:
		c.TerminalColor = lipgloss.Color(v)
		return nil
	case []interface{}:
		if len(v) != 2 {
			return fmt.Errorf("adaptive color needs [light, dark], got %d values", len(v))
		}
		light, ok1 := v[0].(string)
		dark, ok2 := v[1].(string)
		if !ok1 || !ok2 {
			return fmt.Errorf("adaptive color values must be strings")
		}
		c.TerminalColor = lipgloss.AdaptiveColor{Light: light, Dark: dark}
		return nil
	}
	return fmt.Errorf("unsupported color value %v", v)
}

// hex resolves the color for the terminal background.
func (c Color) hex() string {
	switch v := c.TerminalColor.(type) {
	case lipgloss.Color:
		return string(v)
	case lipgloss.AdaptiveColor:
		if lipgloss.HasDarkBackground() {
			return v.Dark
		}
		return v.Light
	}
	return ""
}

func adaptive(light, dark string) Color {
	return Color{lipgloss.AdaptiveColor{Light: light, Dark: dark}}
}

// Theme contains the colors for the application.
type Theme struct {
	Primary  Color
	Subtle   Color
	Success  Color
	Error    Color
	Normal   Color
	Disabled Color
	Border   Color
	Saved    Color

	SignalHigh Color
	SignalLow  Color

	SavedIcon string
}

// CurrentTheme is the active theme for the application.
var CurrentTheme = NewDefaultTheme()

// NewDefaultTheme creates a new default theme.
func NewDefaultTheme() Theme {
	return Theme{
		Primary:  adaptive("#5A56E0", "#D359E3"), // Purple/Pink
		Subtle:   adaptive("#BDBDBD", "#616161"), // Gray
		Success:  adaptive("#388E3C", "#81C784"), // Green
		Error:    adaptive("#D32F2F", "#E57373"), // Red
		Normal:   adaptive("#212121", "#FFFFFF"), // Black/White
		Disabled: adaptive("#E0E0E0", "#424242"),
		Border:   adaptive("#BDBDBD", "#616161"),
		Saved:    adaptive("#1565C0", "#64B5F6"), // Blue

		SignalHigh: adaptive("#00B300", "#00FF00"),
		SignalLow:  adaptive("#D05F00", "#BC3C00"),

		SavedIcon: "★ ",
	}
}

// signalColor blends from SignalLow to SignalHigh by link quality in percent.
func (t Theme) signalColor(quality uint8) lipgloss.Color {
	start, err := colorful.Hex(t.SignalLow.hex())
	if err != nil {
		return lipgloss.Color(t.SignalLow.hex())
	}
	end, err := colorful.Hex(t.SignalHigh.hex())
	if err != nil {
		return lipgloss.Color(t.SignalHigh.hex())
	}
	p := float64(quality) / 100.0
	return lipgloss.Color(start.BlendRgb(end, p).Hex())
}
