package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"shadowledger/internal/shared/config"
	"shadowledger/internal/shared/middleware"
)

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Handler      http.Handler
	Addr         string
	TLSEnabled   bool
	CertPath     string
	KeyPath      string
	RedirectHTTP bool
	AllowedHosts []string
}

// StartServers starts the API server and, when TLS redirect is enabled, the
// plain HTTP redirect server. Listen failures are reported on the returned
// channel; ErrServerClosed is not.
func StartServers(scfg ServerConfig) (srv, redirectSrv *http.Server, errs <-chan error) {
	serveErrs := make(chan error, 2)

	srv = &http.Server{
		Addr:              scfg.Addr,
		Handler:           scfg.Handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Sends wait for the node to settle the payment.
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if scfg.TLSEnabled && scfg.RedirectHTTP {
		redirectSrv = createRedirectServer(scfg.AllowedHosts)
		go serve("HTTP redirect server", redirectSrv, func() error { return redirectSrv.ListenAndServe() }, serveErrs)
	}

	if scfg.TLSEnabled {
		go serve("HTTPS server", srv, func() error { return srv.ListenAndServeTLS(scfg.CertPath, scfg.KeyPath) }, serveErrs)
	} else {
		go serve("HTTP server", srv, func() error { return srv.ListenAndServe() }, serveErrs)
	}

	return srv, redirectSrv, serveErrs
}

func serve(name string, srv *http.Server, listen func() error, errs chan<- error) {
	log.Printf("%s starting on %s", name, srv.Addr)
	if err := listen(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errs <- fmt.Errorf("%s: %w", name, err)
	}
}

// GracefulShutdown stops accepting requests, drains the poller and closes
// the listener. In-flight ticks finish or time out before return.
func GracefulShutdown(srv, redirectSrv *http.Server, deps *Dependencies, timeout time.Duration) {
	log.Println("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if redirectSrv != nil {
		if err := redirectSrv.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down HTTP redirect server: %v", err)
		}
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Error shutting down main server: %v", err)
	}

	if deps.Listener != nil {
		deps.Listener.Stop()
	}
	if deps.Scheduler != nil {
		deps.Scheduler.Shutdown(timeout)
	}

	log.Println("Server stopped")
}

// createRedirectServer creates an HTTP server that redirects all requests to HTTPS.
func createRedirectServer(allowedHosts []string) *http.Server {
	return &http.Server{
		Addr:              ":80",
		Handler:           middleware.RequireHTTPS(allowedHosts)(http.NotFoundHandler()),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      5 * time.Second,
	}
}

// NewServerConfigFromConfig creates ServerConfig from application config.
func NewServerConfigFromConfig(handler http.Handler, cfg *config.Config) ServerConfig {
	return ServerConfig{
		Handler:      handler,
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		TLSEnabled:   cfg.TLS.Enabled,
		CertPath:     cfg.TLS.CertPath,
		KeyPath:      cfg.TLS.KeyPath,
		RedirectHTTP: cfg.TLS.RedirectHTTP,
		AllowedHosts: cfg.Server.AllowedHosts,
	}
}
