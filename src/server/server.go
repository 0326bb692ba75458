package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"dailybuy/src/handler"
	"dailybuy/src/security"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	logger "github.com/sirupsen/logrus"
)

// NewRouter wires the public and trigger routes.
func NewRouter(cfg *Config, triggerTokenHash string) http.Handler {
	r := chi.NewRouter()
	// === Global Middleware ===
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error(" \"/health error")
		}
	})
	r.Handle("/metrics", promhttp.Handler())

	// Trigger routes
	r.Group(func(r chi.Router) {
		r.Use(allowCORS)
		r.Use(RequireTriggerToken(triggerTokenHash))
		if cfg.RequestTimeout > 0 {
			r.Use(middleware.Timeout(cfg.RequestTimeout))
		}

		for _, route := range []struct {
			path string
			h    http.HandlerFunc
		}{
			{"/daily-buy", handler.DailyBuyHandler()},
			{"/crypto-stats", handler.CryptoStatsHandler()},
			{"/accounts", handler.AccountsHandler()},
		} {
			r.Get(route.path, route.h)
			r.Post(route.path, route.h)
			r.Options(route.path, func(http.ResponseWriter, *http.Request) {})
		}
	})

	return r
}

// StartServer blocks until SIGINT or SIGTERM, then shuts down gracefully.
func StartServer(port string) {
	cfg := GetConfig()
	if port == "" {
		port = cfg.Port
	}

	addr := ":" + port
	srv := &http.Server{
		Addr:    addr,
		Handler: NewRouter(cfg, security.GetConfig().TriggerTokenHash),
	}

	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server crashed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}
}
