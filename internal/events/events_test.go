package events

import (
	"context"
	"encoding/json"
	"net/url"
	"testing"

	"github.com/PetoAdam/homenavi/lamp-relay/internal/lamp"
)

func TestBrokerAddress(t *testing.T) {
	cases := map[string]string{
		"mqtt://mosquitto:1883":    "tcp://mosquitto:1883",
		"tcp://10.0.0.2:1883":      "tcp://10.0.0.2:1883",
		"tls://broker:8883":        "ssl://broker:8883",
		"wss://broker:443/mqtt":    "wss://broker:443/mqtt",
		"mqtt://user:pw@host:1883": "tcp://host:1883",
	}
	for raw, want := range cases {
		u, err := url.Parse(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		got, err := brokerAddress(u)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", raw, err)
		}
		if got != want {
			t.Fatalf("%q: got %q want %q", raw, got, want)
		}
	}

	u, _ := url.Parse("http://broker")
	if _, err := brokerAddress(u); err == nil {
		t.Fatal("expected error for http scheme")
	}
}

func TestTopic(t *testing.T) {
	if got := Topic("home/lamp/"); got != "home/lamp/actions" {
		t.Fatalf("unexpected topic %q", got)
	}
	if got := Topic(""); got != "lamp-relay/actions" {
		t.Fatalf("unexpected default topic %q", got)
	}
}

func TestActionEventJSON(t *testing.T) {
	ev := NewActionEvent(SourceTelegram, "lamp-1", []lamp.Action{lamp.Power(true)})
	if ev.ID == "" || ev.At.IsZero() {
		t.Fatalf("event missing id or timestamp: %+v", ev)
	}

	raw, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["source"] != "telegram" || got["device_id"] != "lamp-1" {
		t.Fatalf("unexpected payload: %s", raw)
	}
	actions, ok := got["actions"].([]any)
	if !ok || len(actions) != 1 {
		t.Fatalf("unexpected actions in payload: %s", raw)
	}
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = Noop{}
	if err := p.Publish(context.Background(), ActionEvent{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.Close()
}
