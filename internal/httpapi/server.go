package httpapi

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/PetoAdam/homenavi/lamp-relay/internal/events"
	"github.com/PetoAdam/homenavi/lamp-relay/internal/lamp"
	"github.com/PetoAdam/homenavi/lamp-relay/internal/yandex"
)

//go:embed assets/app.html
var appHTML []byte

// DeviceGateway is the subset of the IoT client the handlers use.
type DeviceGateway interface {
	LampState(ctx context.Context, deviceID string) (lamp.State, error)
	SubmitActions(ctx context.Context, deviceID string, actions []lamp.Action) (yandex.Result, error)
	Ping(ctx context.Context) (int, error)
}

type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

type Options struct {
	DeviceID      string
	WebhookSecret string
	// AllowedChatID restricts the bot to one chat; empty allows every chat.
	AllowedChatID string
}

type Server struct {
	devices   DeviceGateway
	messenger Messenger
	events    events.Publisher
	opts      Options
}

func NewServer(devices DeviceGateway, messenger Messenger, publisher events.Publisher, opts Options) *Server {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Server{devices: devices, messenger: messenger, events: publisher, opts: opts}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.NotFound(handleNotFound)
	r.MethodNotAllowed(handleNotFound)

	r.HandleFunc("/", handleRoot)
	r.Get("/app", handleApp)
	r.Get("/selftest", s.handleSelftest)
	r.Post("/tg", s.handleWebhook)

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
		r.NotFound(handleNotFound)
		r.MethodNotAllowed(handleNotFound)
		r.Get("/state", s.handleState)
		r.Post("/action", s.handleAction)
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(text))
}

type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found"})
}

func handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "ok")
}

func handleApp(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(appHTML)
}

type selftestResponse struct {
	YandexStatus int    `json:"yandex_status"`
	Error        string `json:"error,omitempty"`
}

func (s *Server) handleSelftest(w http.ResponseWriter, r *http.Request) {
	status, err := s.devices.Ping(r.Context())
	if err != nil {
		slog.Warn("selftest: yandex unreachable", "error", err)
		writeJSON(w, http.StatusBadGateway, selftestResponse{Error: "yandex_unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, selftestResponse{YandexStatus: status})
}

type stateResponse struct {
	OK bool `json:"ok"`
	lamp.State
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	st, err := s.devices.LampState(r.Context(), s.opts.DeviceID)
	if err != nil {
		if errors.Is(err, yandex.ErrDeviceNotFound) {
			slog.Warn("lamp state: device not in account", "device_id", s.opts.DeviceID)
		} else {
			slog.Warn("lamp state unavailable", "error", err)
		}
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{})
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{OK: true, State: st})
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	req, err := lamp.DecodeActionRequest(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad_json"})
		return
	}
	actions, err := req.Actions()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "no_actions"})
		return
	}

	res, err := s.devices.SubmitActions(r.Context(), s.opts.DeviceID, actions)
	if err != nil {
		slog.Warn("submit actions failed", "source", events.SourceAPI, "error", err)
	} else {
		s.publish(r.Context(), events.SourceAPI, actions)
	}
	writeJSON(w, http.StatusOK, res)
}

// publish announces applied actions. Failures never reach the caller.
func (s *Server) publish(ctx context.Context, source string, actions []lamp.Action) {
	ev := events.NewActionEvent(source, s.opts.DeviceID, actions)
	if err := s.events.Publish(ctx, ev); err != nil {
		slog.Warn("publish action event failed", "event_id", ev.ID, "error", err)
	}
}
