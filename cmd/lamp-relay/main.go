package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/PetoAdam/homenavi/lamp-relay/internal/config"
	"github.com/PetoAdam/homenavi/lamp-relay/internal/events"
	"github.com/PetoAdam/homenavi/lamp-relay/internal/httpapi"
	"github.com/PetoAdam/homenavi/lamp-relay/internal/observability"
	"github.com/PetoAdam/homenavi/lamp-relay/internal/telegram"
	"github.com/PetoAdam/homenavi/lamp-relay/internal/yandex"
)

const serviceName = "lamp-relay"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	setupLogger(cfg)

	shutdownObs, promHandler, tracer, err := observability.Setup(context.Background(), serviceName, cfg.OTLPEndpoint)
	if err != nil {
		slog.Error("observability init failed", "error", err)
		os.Exit(1)
	}
	defer shutdownObs()

	publisher := setupPublisher(cfg)
	defer publisher.Close()

	devices := yandex.New(cfg.YandexBaseURL, cfg.YandexToken, cfg.HTTPClientTimeout)
	messenger := telegram.New(cfg.TelegramToken, cfg.TelegramEndpoint, cfg.HTTPClientTimeout)
	srv := httpapi.NewServer(devices, messenger, publisher, httpapi.Options{
		DeviceID:      cfg.DeviceID,
		WebhookSecret: cfg.WebhookSecret,
		AllowedChatID: cfg.AllowedChatID,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(correlationID)
	r.Use(observability.Middleware(tracer))
	r.Handle("/metrics", promHandler)
	srv.RegisterRoutes(r)

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2*cfg.HTTPClientTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("lamp-relay started", "port", cfg.Port, "device_id", cfg.DeviceID, "allow_list", cfg.AllowedChatID != "")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down")
	if err := httpSrv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func setupLogger(cfg config.Config) {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// setupPublisher falls back to a no-op feed when the broker is absent or unreachable.
func setupPublisher(cfg config.Config) events.Publisher {
	if cfg.MQTTBrokerURL == "" {
		return events.Noop{}
	}
	p, err := events.NewMQTT(cfg.MQTTBrokerURL, cfg.MQTTTopicPrefix)
	if err != nil {
		slog.Error("mqtt unavailable, action events disabled", "error", err)
		return events.Noop{}
	}
	return p
}

func correlationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		corrID := r.Header.Get("X-Correlation-ID")
		if corrID == "" {
			corrID = uuid.NewString()
		}
		w.Header().Set("X-Correlation-ID", corrID)
		next.ServeHTTP(w, r)
	})
}
