package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketlens/app"
	"marketlens/internal"
	"marketlens/internal/api"
	"marketlens/internal/config"
	"marketlens/ports"
)

func main() {
	cfg, err := config.LoadWithEnvFile(".env")
	if err != nil {
		internal.DefaultLogger.Error("[API] configuration: %v", err)
		os.Exit(1)
	}
	logger := internal.NewLogger(internal.ParseLogLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Bootstrap(ctx, cfg, logger)
	if err != nil {
		logger.Error("[API] startup failed: %v", err)
		os.Exit(1)
	}
	defer rt.Close()

	var exports ports.ExportRepository
	if rt.Store != nil {
		exports = rt.Store
	}
	handler := api.NewHandler(rt.Service, exports, api.NewSelectionHub(30*time.Second, logger), logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           api.NewRouter(handler, cfg.Server.GinMode),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("[API] listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("[API] server failed: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("[API] shutdown: %v", err)
	}
	logger.Info("[API] stopped")
}
