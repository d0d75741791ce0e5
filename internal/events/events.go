package events

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/PetoAdam/homenavi/lamp-relay/internal/lamp"
)

// Sources of an applied action.
const (
	SourceAPI      = "api"
	SourceTelegram = "telegram"
)

// ActionEvent announces actions the gateway accepted.
type ActionEvent struct {
	ID       string        `json:"id"`
	Source   string        `json:"source"`
	DeviceID string        `json:"device_id"`
	Actions  []lamp.Action `json:"actions"`
	At       time.Time     `json:"at"`
}

func NewActionEvent(source, deviceID string, actions []lamp.Action) ActionEvent {
	return ActionEvent{
		ID:       uuid.NewString(),
		Source:   source,
		DeviceID: deviceID,
		Actions:  actions,
		At:       time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, ev ActionEvent) error
	Close()
}

// Noop drops every event. Used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, ActionEvent) error { return nil }
func (Noop) Close()                                     {}

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// MQTTPublisher writes events as JSON to <prefix>/actions.
type MQTTPublisher struct {
	cli   mqtt.Client
	topic string
}

func NewMQTT(brokerURL, topicPrefix string) (*MQTTPublisher, error) {
	u, err := url.Parse(brokerURL)
	if err != nil {
		return nil, fmt.Errorf("parse broker url: %w", err)
	}
	server, err := brokerAddress(u)
	if err != nil {
		return nil, err
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(server)
	opts.SetClientID("lamp-relay-" + uuid.NewString()[:8])
	opts.SetAutoReconnect(true)
	opts.OnConnect = func(mqtt.Client) { slog.Info("mqtt connected", "broker", u.Redacted()) }
	opts.OnConnectionLost = func(_ mqtt.Client, err error) { slog.Error("mqtt connection lost", "error", err) }
	if u.User != nil {
		pw, _ := u.User.Password()
		opts.SetUsername(u.User.Username())
		opts.SetPassword(pw)
	}
	if u.Scheme == "ssl" || u.Scheme == "tls" || u.Scheme == "wss" {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	return connect(mqtt.NewClient(opts), topicPrefix)
}

// connect waits for the first connection. On failure the client is stopped so
// auto-reconnect does not keep running behind the Noop fallback.
func connect(cli mqtt.Client, topicPrefix string) (*MQTTPublisher, error) {
	t := cli.Connect()
	if !t.WaitTimeout(connectTimeout) {
		cli.Disconnect(0)
		return nil, errors.New("mqtt connect timed out")
	}
	if err := t.Error(); err != nil {
		cli.Disconnect(0)
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return &MQTTPublisher{cli: cli, topic: Topic(topicPrefix)}, nil
}

// Topic is the action feed topic for prefix.
func Topic(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = "lamp-relay"
	}
	return prefix + "/actions"
}

func brokerAddress(u *url.URL) (string, error) {
	switch u.Scheme {
	case "mqtt", "tcp":
		return "tcp://" + u.Host, nil
	case "ssl", "tls":
		return "ssl://" + u.Host, nil
	case "ws", "wss":
		return u.Scheme + "://" + u.Host + u.Path, nil
	default:
		return "", fmt.Errorf("unsupported broker scheme %q", u.Scheme)
	}
}

func (p *MQTTPublisher) Publish(ctx context.Context, ev ActionEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	t := p.cli.Publish(p.topic, 0, false, payload)
	select {
	case <-t.Done():
		return t.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return errors.New("mqtt publish timed out")
	}
}

func (p *MQTTPublisher) Close() {
	p.cli.Disconnect(250)
}
