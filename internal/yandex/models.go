package yandex

import (
	"github.com/PetoAdam/homenavi/lamp-relay/internal/lamp"
)

type UserInfo struct {
	Status    string   `json:"status"`
	RequestID string   `json:"request_id"`
	Devices   []Device `json:"devices"`
}

type Device struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Type         string       `json:"type"`
	Capabilities []Capability `json:"capabilities"`
}

type Capability struct {
	Type        string           `json:"type"`
	Retrievable bool             `json:"retrievable"`
	State       *CapabilityState `json:"state"`
}

type CapabilityState struct {
	Instance string `json:"instance"`
	Value    any    `json:"value"`
}

func (u *UserInfo) Device(id string) (Device, bool) {
	for _, d := range u.Devices {
		if d.ID == id {
			return d, true
		}
	}
	return Device{}, false
}

// LampState scans the capability list; capabilities without a reported state
// keep their defaults.
func (d Device) LampState() lamp.State {
	st := lamp.DefaultState()
	for _, c := range d.Capabilities {
		if c.State == nil {
			continue
		}
		switch {
		case c.Type == lamp.TypeOnOff:
			st.On = truthy(c.State.Value)
		case c.Type == lamp.TypeRange && c.State.Instance == lamp.InstanceBrightness:
			if v, ok := c.State.Value.(float64); ok {
				st.Brightness = lamp.ClampBrightness(v)
			}
		case c.Type == lamp.TypeColorSetting && c.State.Instance == lamp.InstanceTemperatureK:
			if v, ok := c.State.Value.(float64); ok {
				st.TemperatureK = lamp.ClampTemperatureK(v)
			}
		}
	}
	return st
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case nil:
		return false
	default:
		return true
	}
}
