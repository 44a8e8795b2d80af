package hue

import "fmt"

// Light is a light as reported by the bridge's v1 lights listing.
type Light struct {
	ID    int         `json:"-"`
	Name  string      `json:"name"`
	Type  string      `json:"type"`
	State LightStatus `json:"state"`
}

// LightStatus is the reported state of a light.
type LightStatus struct {
	On        bool  `json:"on"`
	Bri       uint8 `json:"bri"`
	Reachable bool  `json:"reachable"`
}

// LightState is a state change submitted to a single light.
// Builders return modified copies, so a LightState can be shared freely.
type LightState struct {
	On  bool   `json:"on"`
	Bri *uint8 `json:"bri,omitempty"`
}

// NewLightState returns an empty state change (light off, brightness untouched).
func NewLightState() LightState {
	return LightState{}
}

// WithOn returns a copy that switches the light on.
func (s LightState) WithOn() LightState {
	s.On = true
	return s
}

// WithOff returns a copy that switches the light off.
func (s LightState) WithOff() LightState {
	s.On = false
	return s
}

// WithBrightness returns a copy that also sets brightness.
func (s LightState) WithBrightness(bri uint8) LightState {
	s.Bri = &bri
	return s
}

// Brightness returns the requested brightness, if any.
func (s LightState) Brightness() (uint8, bool) {
	if s.Bri == nil {
		return 0, false
	}
	return *s.Bri, true
}

func (s LightState) String() string {
	if s.Bri == nil {
		return fmt.Sprintf("on=%t", s.On)
	}
	return fmt.Sprintf("on=%t bri=%d", s.On, *s.Bri)
}

// BridgeInfo identifies a bridge found on the network.
type BridgeInfo struct {
	ID      string
	Address string
	Source  string
}

// apiResult is one element of the array the v1 API returns for writes.
type apiResult struct {
	Success map[string]any `json:"success,omitempty"`
	Error   *APIError      `json:"error,omitempty"`
}
