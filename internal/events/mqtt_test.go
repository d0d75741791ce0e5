package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/PetoAdam/homenavi/lamp-relay/internal/lamp"
)

type fakeToken struct {
	done     chan struct{}
	err      error
	timedOut bool
}

func completedToken(err error) *fakeToken {
	done := make(chan struct{})
	close(done)
	return &fakeToken{done: done, err: err}
}

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.timedOut }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// fakeClient implements the parts of mqtt.Client the publisher uses.
type fakeClient struct {
	mqtt.Client

	connectToken *fakeToken
	publishToken *fakeToken
	published    []published
	disconnects  int
}

func (c *fakeClient) Connect() mqtt.Token { return c.connectToken }

func (c *fakeClient) Disconnect(uint) { c.disconnects++ }

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.published = append(c.published, published{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	if c.publishToken != nil {
		return c.publishToken
	}
	return completedToken(nil)
}

func TestConnectPublishesActionEvents(t *testing.T) {
	cli := &fakeClient{connectToken: completedToken(nil)}
	p, err := connect(cli, "home/desk")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ev := NewActionEvent(SourceAPI, "lamp-1", []lamp.Action{lamp.Brightness(40)})
	if err := p.Publish(context.Background(), ev); err != nil {
		t.Fatalf("unexpected publish error: %v", err)
	}

	if len(cli.published) != 1 {
		t.Fatalf("expected one message, got %d", len(cli.published))
	}
	msg := cli.published[0]
	if msg.topic != "home/desk/actions" || msg.qos != 0 || msg.retained {
		t.Fatalf("unexpected publish %+v", msg)
	}
	var got ActionEvent
	if err := json.Unmarshal(msg.payload, &got); err != nil {
		t.Fatalf("payload is not an action event: %v", err)
	}
	if got.ID != ev.ID || got.Source != SourceAPI || got.DeviceID != "lamp-1" || len(got.Actions) != 1 {
		t.Fatalf("unexpected payload %s", msg.payload)
	}
	if got.Actions[0].State.Instance != lamp.InstanceBrightness || got.Actions[0].State.Value != float64(40) {
		t.Fatalf("unexpected action in payload %+v", got.Actions[0])
	}

	p.Close()
	if cli.disconnects != 1 {
		t.Fatalf("expected close to disconnect once, got %d", cli.disconnects)
	}
}

func TestConnectFailureStopsClient(t *testing.T) {
	cases := map[string]*fakeToken{
		"timeout": {done: make(chan struct{}), timedOut: true},
		"refused": completedToken(errors.New("connection refused")),
	}
	for name, tok := range cases {
		cli := &fakeClient{connectToken: tok}
		if _, err := connect(cli, ""); err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if cli.disconnects != 1 {
			t.Fatalf("%s: expected client to be disconnected, got %d", name, cli.disconnects)
		}
	}
}

func TestPublishReportsBrokerError(t *testing.T) {
	cli := &fakeClient{connectToken: completedToken(nil), publishToken: completedToken(errors.New("not connected"))}
	p, err := connect(cli, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Publish(context.Background(), NewActionEvent(SourceTelegram, "lamp-1", nil)); err == nil {
		t.Fatal("expected broker error")
	}
}

func TestPublishHonoursContext(t *testing.T) {
	cli := &fakeClient{connectToken: completedToken(nil), publishToken: &fakeToken{done: make(chan struct{})}}
	p, err := connect(cli, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Publish(ctx, NewActionEvent(SourceAPI, "lamp-1", nil)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
