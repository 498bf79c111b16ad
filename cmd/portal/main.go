package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/secdesk/abuse-portal/internal/config"
	"github.com/secdesk/abuse-portal/internal/gateway"
	"github.com/secdesk/abuse-portal/internal/infra"
	"github.com/secdesk/abuse-portal/internal/server"
	"github.com/secdesk/abuse-portal/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to portal.yaml (optional)")
	listenAddr := flag.String("listen", "", "HTTP listen address (overrides config)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	var rateStore store.RateStore
	if cfg.RateStorePath != "" {
		rateStore, err = store.NewSQLiteStore(ctx, cfg.RateStorePath)
		if err != nil {
			log.Fatalf("Failed to open rate store: %v", err)
		}
	} else {
		rateStore = store.NewMemoryStore()
	}
	defer rateStore.Close()

	reporting := gateway.NewReportingClient(cfg.ReportAPIURL)
	security := gateway.NewSecurityClient(cfg.SecurityAPIURL)

	srv := server.NewServer(server.Config{
		ListenAddr:        cfg.ListenAddr,
		BaseURL:           cfg.BaseURL,
		RateLimitPerMin:   cfg.RateLimitPerMin,
		SubmitDelay:       time.Duration(cfg.SubmitDelayMS) * time.Millisecond,
		OAuthClientID:     cfg.OAuthClientID,
		OAuthClientSecret: cfg.OAuthClientSecret,
		OAuthAuthURL:      cfg.OAuthAuthURL,
		OAuthTokenURL:     cfg.OAuthTokenURL,
		OAuthScopes:       cfg.OAuthScopes,
	}, reporting, security, rateStore, logger)
	defer srv.Stop()

	srv.SetEnricher(infra.NewEnricher(infra.NewRDAPClient(), infra.NewASNClient()))

	httpSrv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Handler(),
	}

	go func() {
		log.Printf("Listening on %s", cfg.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Shutdown error: %v", err)
	}
}
