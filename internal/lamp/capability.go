package lamp

import (
	"math"
	"strings"
)

// Capability types in the Yandex smart-home vocabulary.
const (
	TypeOnOff        = "devices.capabilities.on_off"
	TypeRange        = "devices.capabilities.range"
	TypeColorSetting = "devices.capabilities.color_setting"
)

const (
	InstanceOn           = "on"
	InstanceBrightness   = "brightness"
	InstanceTemperatureK = "temperature_k"
	InstanceScene        = "scene"
)

const (
	MinBrightness   = 1
	MaxBrightness   = 100
	MinTemperatureK = 2700
	MaxTemperatureK = 6500
)

// Scenes lists the scene names the lamp accepts, in display order.
var Scenes = []string{"night", "reading"}

// Action is a single capability change sent to the device-control gateway.
type Action struct {
	Type  string      `json:"type"`
	State ActionState `json:"state"`
}

type ActionState struct {
	Instance string `json:"instance"`
	Value    any    `json:"value"`
}

func Power(on bool) Action {
	return Action{Type: TypeOnOff, State: ActionState{Instance: InstanceOn, Value: on}}
}

// Brightness builds a range action; v is clamped into [1,100].
func Brightness(v int) Action {
	v = clampInt(v, MinBrightness, MaxBrightness)
	return Action{Type: TypeRange, State: ActionState{Instance: InstanceBrightness, Value: v}}
}

// TemperatureK builds a color_setting action; v is clamped into [2700,6500].
func TemperatureK(v int) Action {
	v = clampInt(v, MinTemperatureK, MaxTemperatureK)
	return Action{Type: TypeColorSetting, State: ActionState{Instance: InstanceTemperatureK, Value: v}}
}

// Scene builds a color_setting scene action. ok is false for unknown names.
func Scene(name string) (Action, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, s := range Scenes {
		if s == name {
			return Action{Type: TypeColorSetting, State: ActionState{Instance: InstanceScene, Value: name}}, true
		}
	}
	return Action{}, false
}

// ClampBrightness rounds v to the nearest integer and clamps it into [1,100].
func ClampBrightness(v float64) int {
	return clampRound(v, MinBrightness, MaxBrightness)
}

// ClampTemperatureK rounds v to the nearest integer and clamps it into [2700,6500].
func ClampTemperatureK(v float64) int {
	return clampRound(v, MinTemperatureK, MaxTemperatureK)
}

func clampRound(v float64, lo, hi int) int {
	r := math.Round(v)
	if math.IsNaN(r) || r < float64(lo) {
		return lo
	}
	if r > float64(hi) {
		return hi
	}
	return int(r)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// State is the lamp snapshot served to the control panel.
type State struct {
	On           bool `json:"on"`
	Brightness   int  `json:"brightness"`
	TemperatureK int  `json:"temperature_k"`
}

// DefaultState fills capabilities the gateway did not report.
func DefaultState() State {
	return State{On: true, Brightness: MaxBrightness, TemperatureK: MinTemperatureK}
}
