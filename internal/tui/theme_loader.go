package tui

import (
	"errors"
	"io"
	"os"

	"github.com/BurntSushi/toml"
)

// themeFile represents the structure of the theme TOML file.
// We use pointers so we can distinguish between a missing value and an empty
// one. This allows users to override only the colors they want.
type themeFile struct {
	Primary    *Color  `toml:"Primary,omitempty"`
	Subtle     *Color  `toml:"Subtle,omitempty"`
	Success    *Color  `toml:"Success,omitempty"`
	Error      *Color  `toml:"Error,omitempty"`
	Normal     *Color  `toml:"Normal,omitempty"`
	Disabled   *Color  `toml:"Disabled,omitempty"`
	Border     *Color  `toml:"Border,omitempty"`
	Saved      *Color  `toml:"Saved,omitempty"`
	SignalHigh *Color  `toml:"SignalHigh,omitempty"`
	SignalLow  *Color  `toml:"SignalLow,omitempty"`
	SavedIcon  *string `toml:"SavedIcon,omitempty"`
}

// LoadTheme reads a theme from r over the default theme.
func LoadTheme(r io.Reader) (Theme, error) {
	if r == nil {
		return Theme{}, errors.New("no theme to read")
	}

	var tf themeFile
	if _, err := toml.NewDecoder(r).Decode(&tf); err != nil {
		return Theme{}, err
	}

	// Start with the default theme and override it with the loaded values.
	theme := NewDefaultTheme()
	set := func(dst *Color, src *Color) {
		if src != nil {
			*dst = *src
		}
	}
	set(&theme.Primary, tf.Primary)
	set(&theme.Subtle, tf.Subtle)
	set(&theme.Success, tf.Success)
	set(&theme.Error, tf.Error)
	set(&theme.Normal, tf.Normal)
	set(&theme.Disabled, tf.Disabled)
	set(&theme.Border, tf.Border)
	set(&theme.Saved, tf.Saved)
	set(&theme.SignalHigh, tf.SignalHigh)
	set(&theme.SignalLow, tf.SignalLow)
	if tf.SavedIcon != nil {
		theme.SavedIcon = *tf.SavedIcon
	}
	return theme, nil
}

// LoadThemeFile loads a theme from path and makes it the current theme.
// If the path is empty, it does nothing.
func LoadThemeFile(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	theme, err := LoadTheme(f)
	if err != nil {
		return err
	}
	CurrentTheme = theme
	return nil
}
