package main

import (
	"io"
	"log/slog"

	"github.com/shazow/autojoin/internal/config"
	"github.com/shazow/autojoin/internal/store"
	"github.com/shazow/autojoin/wifi"
	"github.com/shazow/autojoin/wifi/mock"
)

// GetRadio opens the radio driver selected by cfg.Radio.
func GetRadio(cfg config.Config, logger *slog.Logger) (wifi.Radio, error) {
	if cfg.Radio == "mock" {
		return mock.New(), nil
	}
	return getPlatformRadio(cfg, logger)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenStorage opens the credential storage selected by cfg.Storage. The
// returned closer must be closed when done.
func OpenStorage(cfg config.Config) (wifi.Storage, io.Closer, error) {
	if cfg.Storage == "bolt" {
		b, err := store.OpenBolt(cfg.StoragePath)
		if err != nil {
			return nil, nil, err
		}
		return b, b, nil
	}
	return store.NewFile(cfg.StoragePath), nopCloser{}, nil
}
