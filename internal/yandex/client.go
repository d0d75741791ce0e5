package yandex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/oauth2"

	"github.com/PetoAdam/homenavi/lamp-relay/internal/lamp"
	"github.com/PetoAdam/homenavi/lamp-relay/internal/observability"
)

const DefaultBaseURL = "https://api.iot.yandex.net"

const maxResponseBody = 64 << 10

var ErrDeviceNotFound = errors.New("device not found")

// StatusError is a non-2xx answer from the IoT API.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("yandex iot returned status %d", e.Status)
	}
	return fmt.Sprintf("yandex iot returned status %d: %s", e.Status, e.Body)
}

// Client talks to the Yandex smart-home API on behalf of one OAuth token.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL, token string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: &oauth2.Transport{Source: src},
		},
	}
}

// Result describes the gateway's answer to an action submission.
type Result struct {
	OK     bool   `json:"ok"`
	Status int    `json:"status"`
	Body   string `json:"body"`
}

// UserInfo fetches the account's device list.
func (c *Client) UserInfo(ctx context.Context) (*UserInfo, error) {
	ctx, span := otel.Tracer("lamp-relay").Start(ctx, "yandex.user_info")
	defer span.End()

	status, body, err := c.do(ctx, http.MethodGet, "/v1.0/user/info", nil)
	if err == nil && !isSuccess(status) {
		err = &StatusError{Status: status, Body: string(body)}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "user info failed")
		observability.ObserveGatewayCall("yandex", "user_info", err)
		return nil, err
	}

	var info UserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		err = fmt.Errorf("decode user info: %w", err)
		observability.ObserveGatewayCall("yandex", "user_info", err)
		return nil, err
	}
	observability.ObserveGatewayCall("yandex", "user_info", nil)
	return &info, nil
}

// Ping reports the HTTP status of the user info endpoint without decoding it.
func (c *Client) Ping(ctx context.Context) (int, error) {
	ctx, span := otel.Tracer("lamp-relay").Start(ctx, "yandex.ping")
	defer span.End()

	status, _, err := c.do(ctx, http.MethodGet, "/v1.0/user/info", nil)
	observability.ObserveGatewayCall("yandex", "ping", err)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	span.SetAttributes(attribute.Int("http.status_code", status))
	return status, nil
}

// LampState reads the current snapshot of deviceID.
func (c *Client) LampState(ctx context.Context, deviceID string) (lamp.State, error) {
	info, err := c.UserInfo(ctx)
	if err != nil {
		return lamp.State{}, err
	}
	dev, ok := info.Device(deviceID)
	if !ok {
		return lamp.State{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}
	return dev.LampState(), nil
}

type actionsRequest struct {
	Devices []deviceActions `json:"devices"`
}

type deviceActions struct {
	ID      string        `json:"id"`
	Actions []lamp.Action `json:"actions"`
}

// SubmitActions sends actions for deviceID. The returned Result is populated
// whenever the gateway answered, including non-2xx statuses; err is non-nil
// for transport failures and non-2xx statuses.
func (c *Client) SubmitActions(ctx context.Context, deviceID string, actions []lamp.Action) (Result, error) {
	ctx, span := otel.Tracer("lamp-relay").Start(ctx, "yandex.devices_actions")
	defer span.End()
	span.SetAttributes(attribute.String("device.id", deviceID), attribute.Int("actions", len(actions)))

	payload, err := json.Marshal(actionsRequest{Devices: []deviceActions{{ID: deviceID, Actions: actions}}})
	if err != nil {
		return Result{}, fmt.Errorf("encode actions: %w", err)
	}

	status, body, err := c.do(ctx, http.MethodPost, "/v1.0/devices/actions", payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submit failed")
		observability.ObserveGatewayCall("yandex", "devices_actions", err)
		return Result{}, err
	}

	res := Result{OK: isSuccess(status), Status: status, Body: string(body)}
	if !res.OK {
		err = &StatusError{Status: status, Body: res.Body}
		span.SetStatus(codes.Error, "non-2xx status")
	}
	observability.ObserveGatewayCall("yandex", "devices_actions", err)
	return res, err
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
