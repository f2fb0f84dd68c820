//go:build linux && !mock

package main

import (
	"log/slog"

	"github.com/shazow/autojoin/internal/config"
	"github.com/shazow/autojoin/wifi"
	"github.com/shazow/autojoin/wifi/networkmanager"
	"github.com/shazow/autojoin/wifi/wpa"
)

func getPlatformRadio(cfg config.Config, logger *slog.Logger) (wifi.Radio, error) {
	switch cfg.Radio {
	case "networkmanager":
		return networkmanager.New(cfg.Interface, logger)
	case "wpa":
		return wpa.New(wpaInterface(cfg), logger)
	}

	r, err := networkmanager.New(cfg.Interface, logger)
	if err == nil {
		return r, nil
	}
	logger.Warn("failed to initialize networkmanager radio, falling back to wpa_supplicant", "error", err)
	return wpa.New(wpaInterface(cfg), logger)
}

func wpaInterface(cfg config.Config) string {
	if cfg.Interface == "" {
		return "wlan0"
	}
	return cfg.Interface
}
