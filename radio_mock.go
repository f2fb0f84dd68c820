//go:build mock

package main

import (
	"log/slog"

	"github.com/shazow/autojoin/internal/config"
	"github.com/shazow/autojoin/wifi"
	"github.com/shazow/autojoin/wifi/mock"
)

func getPlatformRadio(config.Config, *slog.Logger) (wifi.Radio, error) {
	return mock.New(), nil
}
