package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port string

	TelegramToken    string
	WebhookSecret    string
	AllowedChatID    string
	TelegramEndpoint string

	YandexToken   string
	DeviceID      string
	YandexBaseURL string

	HTTPClientTimeout time.Duration

	MQTTBrokerURL   string
	MQTTTopicPrefix string

	LogFormat    string
	LogLevel     slog.Level
	OTLPEndpoint string
}

// envAliases maps each key to the environment variables it accepts, in
// priority order. The first non-empty one wins.
var envAliases = []struct {
	key  string
	envs []string
}{
	{"port", []string{"PORT", "LAMP_RELAY_PORT"}},
	{"telegram_token", []string{"TG_TOKEN", "TELEGRAM_BOT_TOKEN", "BOT_TOKEN"}},
	{"webhook_secret", []string{"TG_SECRET", "TELEGRAM_SECRET", "TELEGRAM_WEBHOOK_SECRET"}},
	{"allowed_chat_id", []string{"ALLOWED_CHAT_ID", "TG_ALLOWED_CHAT", "CHAT_ID"}},
	{"telegram_endpoint", []string{"TELEGRAM_API_ENDPOINT"}},
	{"yandex_token", []string{"YANDEX_TOKEN", "YA_TOKEN", "YANDEX_OAUTH_TOKEN"}},
	{"device_id", []string{"YANDEX_DEVICE_ID", "DEVICE_ID", "YA_DEVICE_ID"}},
	{"yandex_base_url", []string{"YANDEX_API_URL"}},
	{"http_client_timeout", []string{"HTTP_CLIENT_TIMEOUT"}},
	{"mqtt_broker_url", []string{"MQTT_BROKER_URL"}},
	{"mqtt_topic_prefix", []string{"MQTT_TOPIC_PREFIX"}},
	{"log_format", []string{"LOG_FORMAT"}},
	{"log_level", []string{"LOG_LEVEL"}},
	{"otlp_endpoint", []string{"OTEL_EXPORTER_OTLP_ENDPOINT"}},
}

// Load resolves the configuration from the environment once.
func Load() (Config, error) {
	v := viper.New()
	v.SetDefault("port", "8080")
	v.SetDefault("telegram_endpoint", "https://api.telegram.org/bot%s/%s")
	v.SetDefault("yandex_base_url", "https://api.iot.yandex.net")
	v.SetDefault("http_client_timeout", "10s")
	v.SetDefault("mqtt_topic_prefix", "lamp-relay")
	v.SetDefault("log_format", "text")
	v.SetDefault("log_level", "info")

	for _, a := range envAliases {
		if err := v.BindEnv(append([]string{a.key}, a.envs...)...); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", a.key, err)
		}
	}

	cfg := Config{
		Port:              strings.TrimSpace(v.GetString("port")),
		TelegramToken:     strings.TrimSpace(v.GetString("telegram_token")),
		WebhookSecret:     v.GetString("webhook_secret"),
		AllowedChatID:     strings.TrimSpace(v.GetString("allowed_chat_id")),
		TelegramEndpoint:  v.GetString("telegram_endpoint"),
		YandexToken:       strings.TrimSpace(v.GetString("yandex_token")),
		DeviceID:          strings.TrimSpace(v.GetString("device_id")),
		YandexBaseURL:     v.GetString("yandex_base_url"),
		HTTPClientTimeout: v.GetDuration("http_client_timeout"),
		MQTTBrokerURL:     strings.TrimSpace(v.GetString("mqtt_broker_url")),
		MQTTTopicPrefix:   v.GetString("mqtt_topic_prefix"),
		LogFormat:         strings.ToLower(v.GetString("log_format")),
		OTLPEndpoint:      strings.TrimSpace(v.GetString("otlp_endpoint")),
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString("log_level"))); err != nil {
		return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	if cfg.HTTPClientTimeout <= 0 {
		return Config{}, errors.New("HTTP_CLIENT_TIMEOUT must be a positive duration")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every missing required setting at once.
func (c Config) Validate() error {
	var missing []string
	if c.TelegramToken == "" {
		missing = append(missing, "TG_TOKEN")
	}
	if c.WebhookSecret == "" {
		missing = append(missing, "TG_SECRET")
	}
	if c.YandexToken == "" {
		missing = append(missing, "YANDEX_TOKEN")
	}
	if c.DeviceID == "" {
		missing = append(missing, "YANDEX_DEVICE_ID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}
