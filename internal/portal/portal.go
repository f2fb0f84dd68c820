// Package portal serves the configuration API used to add and remove
// networks while the device has no connection.
package portal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/shazow/autojoin/internal/device"
)

type Config struct {
	Loop        *device.Loop
	Provisioner *device.Provisioner
	// Logs returns recent log lines for the status page.
	Logs func() []string
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	Logger  *slog.Logger
}

// Portal is the HTTP handler of the configuration API. Handlers do their work
// on the device loop, so the provisioner is never touched concurrently.
type Portal struct {
	loop   *device.Loop
	prov   *device.Provisioner
	logs   func() []string
	router *mux.Router
	log    *slog.Logger
}

func New(config *Config) *Portal {
	p := &Portal{
		loop:   config.Loop,
		prov:   config.Provisioner,
		logs:   config.Logs,
		router: mux.NewRouter(),
		log:    config.Logger,
	}
	if p.log == nil {
		p.log = slog.Default()
	}
	if p.logs == nil {
		p.logs = func() []string { return nil }
	}

	api := p.router.PathPrefix("/api/wifi").Subrouter()
	api.Handle("/configlist", p.handleGetConfigList()).Methods(http.MethodGet)
	api.Handle("/scan", p.handleGetScan()).Methods(http.MethodGet)
	api.Handle("/status", p.handleGetStatus()).Methods(http.MethodGet)
	api.Handle("/add", p.handlePostAdd()).Methods(http.MethodPost)
	api.Handle("/apName", p.handleRemoveByName()).Methods(http.MethodPost, http.MethodDelete)
	api.Handle("/id", p.handleRemoveByID()).Methods(http.MethodPost)
	api.Handle("/softAp/stop", p.handlePostStop()).Methods(http.MethodPost)
	api.Handle("/connect", p.handlePostConnect()).Methods(http.MethodPost)
	api.Handle("/cancel", p.handlePostCancel()).Methods(http.MethodPost)

	if config.Metrics != nil {
		p.router.Handle("/metrics", config.Metrics).Methods(http.MethodGet)
	}

	return p
}

func (p *Portal) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.router.ServeHTTP(w, r)
}

// Serve accepts connections on l until ctx is done.
func (p *Portal) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           p.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			p.log.Warn("portal shutdown", "error", err)
		}
	}()

	p.log.Info("portal listening", "addr", l.Addr().String())
	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("unable to serve portal: %w", err)
	}
	return nil
}

// do runs fn on the device loop on behalf of r.
func (p *Portal) do(w http.ResponseWriter, r *http.Request, fn func()) bool {
	if err := p.loop.Do(r.Context(), fn); err != nil {
		p.jsonError(w, "device is busy", http.StatusServiceUnavailable)
		return false
	}
	return true
}
