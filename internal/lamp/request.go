package lamp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrNoActions is returned when an action request names no known field.
var ErrNoActions = errors.New("no actions provided")

// DecodeError reports a request body that is not a valid action request.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode action request: %v", e.Err) }

func (e *DecodeError) Unwrap() error { return e.Err }

// ActionRequest is the control panel's JSON patch. Absent fields are left alone.
type ActionRequest struct {
	On           *bool    `json:"on,omitempty"`
	Brightness   *float64 `json:"brightness,omitempty"`
	TemperatureK *float64 `json:"temperature_k,omitempty"`
}

const maxRequestBody = 64 << 10

// DecodeActionRequest reads a JSON object from r. A field with the wrong JSON
// type fails the whole request.
func DecodeActionRequest(r io.Reader) (ActionRequest, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxRequestBody))
	if err != nil {
		return ActionRequest{}, &DecodeError{Err: err}
	}
	var req ActionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return ActionRequest{}, &DecodeError{Err: err}
	}
	return req, nil
}

// Actions maps the present fields to capability actions, clamping numbers
// into their legal ranges.
func (r ActionRequest) Actions() ([]Action, error) {
	var actions []Action
	if r.On != nil {
		actions = append(actions, Power(*r.On))
	}
	if r.Brightness != nil {
		actions = append(actions, Brightness(ClampBrightness(*r.Brightness)))
	}
	if r.TemperatureK != nil {
		actions = append(actions, TemperatureK(ClampTemperatureK(*r.TemperatureK)))
	}
	if len(actions) == 0 {
		return nil, ErrNoActions
	}
	return actions, nil
}
