package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, a := range envAliases {
		for _, e := range a.envs {
			t.Setenv(e, "")
		}
	}
}

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("TG_TOKEN", "123:abc")
	t.Setenv("TG_SECRET", "s3cret")
	t.Setenv("YANDEX_TOKEN", "ya-token")
	t.Setenv("YANDEX_DEVICE_ID", "lamp-1")
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("unexpected port %q", cfg.Port)
	}
	if cfg.HTTPClientTimeout != 10*time.Second {
		t.Fatalf("unexpected timeout %v", cfg.HTTPClientTimeout)
	}
	if cfg.YandexBaseURL != "https://api.iot.yandex.net" {
		t.Fatalf("unexpected yandex url %q", cfg.YandexBaseURL)
	}
	if cfg.TelegramEndpoint != "https://api.telegram.org/bot%s/%s" {
		t.Fatalf("unexpected telegram endpoint %q", cfg.TelegramEndpoint)
	}
	if cfg.AllowedChatID != "" || cfg.MQTTBrokerURL != "" {
		t.Fatalf("optional settings should be empty: %+v", cfg)
	}
	if cfg.LogLevel != slog.LevelInfo || cfg.LogFormat != "text" {
		t.Fatalf("unexpected log settings: %v %q", cfg.LogLevel, cfg.LogFormat)
	}
}

func TestLoadAliasesFirstNonEmptyWins(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "second")
	t.Setenv("BOT_TOKEN", "third")
	t.Setenv("TELEGRAM_WEBHOOK_SECRET", "hook")
	t.Setenv("YA_TOKEN", "")
	t.Setenv("YANDEX_OAUTH_TOKEN", "oauth")
	t.Setenv("DEVICE_ID", "dev-2")
	t.Setenv("YA_DEVICE_ID", "dev-3")
	t.Setenv("TG_ALLOWED_CHAT", "42")
	t.Setenv("CHAT_ID", "43")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TelegramToken != "second" {
		t.Fatalf("unexpected token %q", cfg.TelegramToken)
	}
	if cfg.WebhookSecret != "hook" {
		t.Fatalf("unexpected secret %q", cfg.WebhookSecret)
	}
	if cfg.YandexToken != "oauth" {
		t.Fatalf("unexpected yandex token %q", cfg.YandexToken)
	}
	if cfg.DeviceID != "dev-2" {
		t.Fatalf("unexpected device id %q", cfg.DeviceID)
	}
	if cfg.AllowedChatID != "42" {
		t.Fatalf("unexpected allowed chat %q", cfg.AllowedChatID)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	clearEnv(t)
	t.Setenv("TG_TOKEN", "123:abc")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing configuration")
	}
	for _, name := range []string{"TG_SECRET", "YANDEX_TOKEN", "YANDEX_DEVICE_ID"} {
		if !strings.Contains(err.Error(), name) {
			t.Fatalf("expected %s in error, got %q", name, err)
		}
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	clearEnv(t)
	setRequired(t)
	t.Setenv("LOG_LEVEL", "loud")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid log level")
	}

	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("HTTP_CLIENT_TIMEOUT", "0s")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for zero timeout")
	}

	t.Setenv("HTTP_CLIENT_TIMEOUT", "3s")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LogLevel != slog.LevelDebug || cfg.HTTPClientTimeout != 3*time.Second {
		t.Fatalf("unexpected values: %+v", cfg)
	}
}
