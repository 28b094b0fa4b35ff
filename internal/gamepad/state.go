package gamepad

import (
	"encoding/json"
	"math"
)

// ButtonMask is the set of currently held buttons, one bit per Button.
type ButtonMask uint32

func MaskOf(bs ...Button) ButtonMask {
	var m ButtonMask
	for _, b := range bs {
		m = m.With(b)
	}
	return m
}

func (m ButtonMask) Has(b Button) bool { return b.Valid() && m&(1<<b) != 0 }
func (m ButtonMask) With(b Button) ButtonMask { return m | 1<<b }
func (m ButtonMask) Without(b Button) ButtonMask { return m &^ (1 << b) }

// Buttons lists the held buttons in enum order.
func (m ButtonMask) Buttons() []Button {
	var out []Button
	for b := ButtonNone + 1; b < buttonCount; b++ {
		if m.Has(b) {
			out = append(out, b)
		}
	}
	return out
}

func (m ButtonMask) MarshalJSON() ([]byte, error) {
	names := make([]string, 0, 4)
	for _, b := range m.Buttons() {
		names = append(names, b.String())
	}
	return json.Marshal(names)
}

func (m *ButtonMask) UnmarshalJSON(p []byte) error {
	var names []string
	if err := json.Unmarshal(p, &names); err != nil {
		return err
	}
	var out ButtonMask
	for _, n := range names {
		b, err := ParseButton(n)
		if err != nil {
			return err
		}
		out = out.With(b)
	}
	*m = out
	return nil
}

// DisplaySample holds the latest raw readings relevant to the viewer.
type DisplaySample struct {
	Controller             string
	Held                   ButtonMask
	LeftStick              Vector
	RightStick             Vector
	LeftTrigger            float64
	RightTrigger           float64
	TouchPosition          Vector
	TouchSecondaryPosition Vector
	IsTouching             bool
	IsSecondaryTouching    bool
}

// DisplayState is what the viewer renders. The Display* fields only move
// when the input leaves the deadzone around the last rendered value.
type DisplayState struct {
	Controller string     `json:"controller"`
	Held       ButtonMask `json:"held"`

	LeftStick    Vector  `json:"leftStick"`
	RightStick   Vector  `json:"rightStick"`
	LeftTrigger  float64 `json:"leftTrigger"`
	RightTrigger float64 `json:"rightTrigger"`

	DisplayLeftStick    Vector  `json:"displayLeftStick"`
	DisplayRightStick   Vector  `json:"displayRightStick"`
	DisplayLeftTrigger  float64 `json:"displayLeftTrigger"`
	DisplayRightTrigger float64 `json:"displayRightTrigger"`

	TouchPosition          Vector `json:"touchPosition"`
	TouchSecondaryPosition Vector `json:"touchSecondaryPosition"`
	IsTouching             bool   `json:"isTouching"`
	IsSecondaryTouching    bool   `json:"isSecondaryTouching"`
}

// Resolve applies sample to current and returns the new state. It has no
// side effects. Raw fields are always overwritten; display fields follow
// the sample only when the change exceeds deadzone. Touch state and held
// buttons are never filtered.
func Resolve(current DisplayState, sample DisplaySample, deadzone float64) DisplayState {
	next := current

	next.Controller = sample.Controller
	next.Held = sample.Held

	next.LeftStick = sample.LeftStick
	next.RightStick = sample.RightStick
	next.LeftTrigger = sample.LeftTrigger
	next.RightTrigger = sample.RightTrigger

	if sample.LeftStick.Dist(current.DisplayLeftStick) > deadzone {
		next.DisplayLeftStick = sample.LeftStick
	}
	if sample.RightStick.Dist(current.DisplayRightStick) > deadzone {
		next.DisplayRightStick = sample.RightStick
	}
	if math.Abs(sample.LeftTrigger-current.DisplayLeftTrigger) > deadzone {
		next.DisplayLeftTrigger = sample.LeftTrigger
	}
	if math.Abs(sample.RightTrigger-current.DisplayRightTrigger) > deadzone {
		next.DisplayRightTrigger = sample.RightTrigger
	}

	next.TouchPosition = sample.TouchPosition
	next.TouchSecondaryPosition = sample.TouchSecondaryPosition
	next.IsTouching = sample.IsTouching
	next.IsSecondaryTouching = sample.IsSecondaryTouching

	return next
}

type SticksDisplay struct {
	Left  Vector `json:"left"`
	Right Vector `json:"right"`
}

type TriggersDisplay struct {
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
}

type TouchDisplay struct {
	Position          Vector `json:"position"`
	SecondaryPosition Vector `json:"secondaryPosition"`
	Touching          bool   `json:"touching"`
	SecondaryTouching bool   `json:"secondaryTouching"`
}

// DeltaChanges carries only the rendered groups that changed.
type DeltaChanges struct {
	Controller *string          `json:"controller,omitempty"`
	Held       *ButtonMask      `json:"held,omitempty"`
	Sticks     *SticksDisplay   `json:"sticks,omitempty"`
	Triggers   *TriggersDisplay `json:"triggers,omitempty"`
	Touch      *TouchDisplay    `json:"touch,omitempty"`
}

func (d *DeltaChanges) IsEmpty() bool {
	return d.Controller == nil &&
		d.Held == nil &&
		d.Sticks == nil &&
		d.Triggers == nil &&
		d.Touch == nil
}

func touchOf(s DisplayState) TouchDisplay {
	return TouchDisplay{
		Position:          s.TouchPosition,
		SecondaryPosition: s.TouchSecondaryPosition,
		Touching:          s.IsTouching,
		SecondaryTouching: s.IsSecondaryTouching,
	}
}

// ComputeDelta compares the rendered fields of two states. Raw stick and
// trigger readings are ignored; they are already folded into the display
// fields by Resolve.
func ComputeDelta(old, new_ DisplayState) *DeltaChanges {
	d := &DeltaChanges{}

	if old.Controller != new_.Controller {
		d.Controller = &new_.Controller
	}
	if old.Held != new_.Held {
		d.Held = &new_.Held
	}
	if old.DisplayLeftStick != new_.DisplayLeftStick || old.DisplayRightStick != new_.DisplayRightStick {
		d.Sticks = &SticksDisplay{Left: new_.DisplayLeftStick, Right: new_.DisplayRightStick}
	}
	if old.DisplayLeftTrigger != new_.DisplayLeftTrigger || old.DisplayRightTrigger != new_.DisplayRightTrigger {
		d.Triggers = &TriggersDisplay{Left: new_.DisplayLeftTrigger, Right: new_.DisplayRightTrigger}
	}
	if t := touchOf(new_); touchOf(old) != t {
		d.Touch = &t
	}

	return d
}
