//go:build !linux && !mock

package main

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/shazow/autojoin/internal/config"
	"github.com/shazow/autojoin/wifi"
)

func getPlatformRadio(config.Config, *slog.Logger) (wifi.Radio, error) {
	return nil, fmt.Errorf("no radio driver for %s, use radio = \"mock\": %w", runtime.GOOS, wifi.ErrNotSupported)
}
