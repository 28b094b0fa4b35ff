// Package action defines the discrete results the engine hands to dispatch.
package action

import (
	"encoding/json"
	"fmt"

	"github.com/soar/padmapper/internal/gamepad"
	"github.com/soar/padmapper/internal/motion"
)

// Action is implemented by every result type.
type Action interface {
	Type() string
}

// SinglePress is a button pressed on its own, after chord suppression.
type SinglePress struct {
	Button gamepad.Button `json:"button"`
	Layer  string         `json:"layer,omitempty"` // layer that supplied the mapping, if any
}

type Chord struct {
	ID      string           `json:"id"`
	Buttons []gamepad.Button `json:"buttons"`
}

type Sequence struct {
	ID    string           `json:"id"`
	Steps []gamepad.Button `json:"steps"`
}

type Gesture struct {
	Kind motion.Kind `json:"kind"`
	Peak float64     `json:"peak"`
}

type TouchpadTap struct {
	Position gamepad.Vector `json:"position"`
}

type TouchpadLongTap struct {
	Position gamepad.Vector `json:"position"`
}

type TouchpadTwoFingerTap struct {
	Position gamepad.Vector `json:"position"`
}

type TouchpadTwoFingerLongTap struct {
	Position gamepad.Vector `json:"position"`
}

// TouchpadPan is cursor-style with one finger and a scroll with two.
type TouchpadPan struct {
	Delta   gamepad.Vector `json:"delta"`
	Fingers int            `json:"fingers"`
}

// TouchpadPinch carries the change in finger separation.
type TouchpadPinch struct {
	Delta float64 `json:"delta"`
}

type MomentumScroll struct {
	Delta gamepad.Vector `json:"delta"`
}

func (SinglePress) Type() string              { return "single_press" }
func (Chord) Type() string                    { return "chord" }
func (Sequence) Type() string                 { return "sequence" }
func (Gesture) Type() string                  { return "gesture" }
func (TouchpadTap) Type() string              { return "touchpad_tap" }
func (TouchpadLongTap) Type() string          { return "touchpad_long_tap" }
func (TouchpadTwoFingerTap) Type() string     { return "touchpad_two_finger_tap" }
func (TouchpadTwoFingerLongTap) Type() string { return "touchpad_two_finger_long_tap" }
func (TouchpadPan) Type() string              { return "touchpad_pan" }
func (TouchpadPinch) Type() string            { return "touchpad_pinch" }
func (MomentumScroll) Type() string           { return "momentum_scroll" }

// Envelope wraps an action with a type discriminator for JSON.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Marshal serializes an action into a JSON envelope.
func Marshal(a Action) ([]byte, error) {
	env, err := Wrap(a)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// Wrap builds the envelope for a without encoding the envelope itself.
func Wrap(a Action) (Envelope, error) {
	if a == nil {
		return Envelope{}, fmt.Errorf("marshal action: nil")
	}
	data, err := json.Marshal(a)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s: %w", a.Type(), err)
	}
	return Envelope{Type: a.Type(), Data: data}, nil
}

// Unmarshal decodes a JSON envelope into the concrete action type.
func Unmarshal(data []byte) (Action, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return env.Decode()
}

// Decode returns the concrete action held by the envelope.
func (env Envelope) Decode() (Action, error) {
	var a Action
	switch env.Type {
	case "single_press":
		a = &SinglePress{}
	case "chord":
		a = &Chord{}
	case "sequence":
		a = &Sequence{}
	case "gesture":
		a = &Gesture{}
	case "touchpad_tap":
		a = &TouchpadTap{}
	case "touchpad_long_tap":
		a = &TouchpadLongTap{}
	case "touchpad_two_finger_tap":
		a = &TouchpadTwoFingerTap{}
	case "touchpad_two_finger_long_tap":
		a = &TouchpadTwoFingerLongTap{}
	case "touchpad_pan":
		a = &TouchpadPan{}
	case "touchpad_pinch":
		a = &TouchpadPinch{}
	case "momentum_scroll":
		a = &MomentumScroll{}
	default:
		return nil, fmt.Errorf("unknown action type: %s", env.Type)
	}

	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, a); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", env.Type, err)
		}
	}
	return deref(a), nil
}

// deref turns the decode target back into the value type callers switch on.
func deref(a Action) Action {
	switch v := a.(type) {
	case *SinglePress:
		return *v
	case *Chord:
		return *v
	case *Sequence:
		return *v
	case *Gesture:
		return *v
	case *TouchpadTap:
		return *v
	case *TouchpadLongTap:
		return *v
	case *TouchpadTwoFingerTap:
		return *v
	case *TouchpadTwoFingerLongTap:
		return *v
	case *TouchpadPan:
		return *v
	case *TouchpadPinch:
		return *v
	case *MomentumScroll:
		return *v
	}
	return a
}
