package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"creator-auth/internal/config"
	"creator-auth/internal/factory"
	"creator-auth/internal/handler"
	"creator-auth/internal/util"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		util.Fatal("Invalid configuration", util.ErrorField(err))
	}
	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)
	defer util.Sync()

	f, err := factory.NewFactory(cfg)
	if err != nil {
		if errors.Is(err, config.ErrConfiguration) {
			util.Fatal("Invalid configuration", util.ErrorField(err))
		}
		util.Fatal("Failed to initialize factory", util.ErrorField(err))
	}
	defer f.Close()

	router, err := setupRouter(f)
	if err != nil {
		util.Fatal("Failed to build router", util.ErrorField(err))
	}

	serverAddr := cfg.GetServerAddress()
	if cfg.Server.EnableTLS {
		serverAddr = fmt.Sprintf(":%d", cfg.Server.TLSPort)
	}

	server := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	if !cfg.Server.EnableTLS {
		util.Warn("Starting HTTP server - TLS is disabled",
			util.String("environment", cfg.Environment),
			util.Int("port", cfg.Server.Port),
		)
		startServer(f, server, nil)
		return
	}

	tlsManager := f.TLSManager()
	server.TLSConfig = tlsManager.TLSConfig()

	// ACME HTTP-01 challenges and the HTTPS redirect share the plain port.
	var challengeServer *http.Server
	if acm := tlsManager.AutocertManager(); acm != nil {
		challengeServer = &http.Server{
			Addr:              cfg.GetServerAddress(),
			Handler:           acm.HTTPHandler(nil),
			ReadHeaderTimeout: 5 * time.Second,
		}
	} else if cfg.IsProduction() && cfg.Server.AutoCert {
		util.Fatal("AutoCert manager is not available in production")
	}

	util.Info("Starting HTTPS server",
		util.String("environment", cfg.Environment),
		util.Int("port", cfg.Server.TLSPort),
		util.Bool("auto_cert", cfg.Server.AutoCert),
	)
	startServer(f, server, challengeServer)
}

// setupRouter creates the HTTP router with all handlers using Chi
func setupRouter(f *factory.Factory) (http.Handler, error) {
	cfg := f.Config()

	authService, err := f.ServiceFactory().AuthService()
	if err != nil {
		return nil, err
	}

	authHandler := handler.NewAuthHandler(authService, handler.CookieConfig{
		Name:   cfg.Auth.CookieName,
		Secure: cfg.Auth.CookieSecure,
		Domain: cfg.Auth.CookieDomain,
	}, util.Get())

	return handler.NewRouter(authHandler, handler.RouterOptions{
		RequireHTTPS: cfg.Server.EnableTLS,
		CORSOrigins:  cfg.Server.CORSOrigins,
	}, util.Get()), nil
}

func startServer(f *factory.Factory, server, challengeServer *http.Server) {
	tlsEnabled := server.TLSConfig != nil

	if challengeServer != nil {
		go func() {
			util.Info("Starting ACME challenge server", util.String("address", challengeServer.Addr))
			if err := challengeServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				util.Error("ACME challenge server failed", util.ErrorField(err))
			}
		}()
	}

	go func() {
		var err error
		if tlsEnabled {
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			util.Fatal("Server failed to start", util.ErrorField(err))
		}
	}()

	util.Info("Server started successfully",
		util.Bool("tls_enabled", tlsEnabled),
		util.String("address", server.Addr),
	)

	waitForShutdown(f, server, challengeServer)
}

func waitForShutdown(f *factory.Factory, servers ...*http.Server) {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	sig := <-signalChan
	util.Info("Received shutdown signal", util.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, srv := range servers {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(ctx); err != nil {
			util.Error("Failed to shutdown server gracefully", util.ErrorField(err))
		} else {
			util.Info("Server shutdown completed", util.String("address", srv.Addr))
		}
	}
	f.Close()
}
