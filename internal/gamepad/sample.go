package gamepad

import (
	"math"
	"time"
)

type Vector struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

func (v Vector) Add(o Vector) Vector { return Vector{X: v.X + o.X, Y: v.Y + o.Y} }
func (v Vector) Sub(o Vector) Vector { return Vector{X: v.X - o.X, Y: v.Y - o.Y} }
func (v Vector) Scale(k float64) Vector { return Vector{X: v.X * k, Y: v.Y * k} }
func (v Vector) Len() float64 { return math.Hypot(v.X, v.Y) }
func (v Vector) Dist(o Vector) float64 { return v.Sub(o).Len() }
func (v Vector) Midpoint(o Vector) Vector { return v.Add(o).Scale(0.5) }

// ButtonEvent is a single edge reported by the sample source.
type ButtonEvent struct {
	Button  Button    `json:"button" yaml:"button"`
	Pressed bool      `json:"pressed" yaml:"pressed"`
	At      time.Time `json:"at" yaml:"-"`
}

// Contact is one touchpad finger. Positions are normalized to -1..1.
type Contact struct {
	Touching bool   `json:"touching" yaml:"touching"`
	Position Vector `json:"position" yaml:"position"`
}

type TouchSample struct {
	Primary   Contact `json:"primary" yaml:"primary"`
	Secondary Contact `json:"secondary" yaml:"secondary"`
}

// Contact returns the contact for slot 0 (primary) or 1 (secondary).
func (t TouchSample) Contact(slot int) Contact {
	if slot == 1 {
		return t.Secondary
	}
	return t.Primary
}

// MotionRates are gyroscope angular rates in radians per second.
type MotionRates struct {
	Pitch float64 `json:"pitch" yaml:"pitch"`
	Roll  float64 `json:"roll" yaml:"roll"`
	Yaw   float64 `json:"yaw" yaml:"yaw"`
}

// Sample is everything the source observed during one poll tick.
type Sample struct {
	At           time.Time     `json:"at"`
	Controller   string        `json:"controller,omitempty"`
	Buttons      []ButtonEvent `json:"buttons,omitempty"`
	LeftStick    Vector        `json:"leftStick"`
	RightStick   Vector        `json:"rightStick"`
	LeftTrigger  float64       `json:"leftTrigger"`
	RightTrigger float64       `json:"rightTrigger"`
	Touch        TouchSample   `json:"touch"`
	Motion       MotionRates   `json:"motion"`
}

// Display extracts the fields the display smoothing policy consumes.
func (s Sample) Display() DisplaySample {
	return DisplaySample{
		Controller:             s.Controller,
		LeftStick:              s.LeftStick,
		RightStick:             s.RightStick,
		LeftTrigger:            s.LeftTrigger,
		RightTrigger:           s.RightTrigger,
		TouchPosition:          s.Touch.Primary.Position,
		TouchSecondaryPosition: s.Touch.Secondary.Position,
		IsTouching:             s.Touch.Primary.Touching,
		IsSecondaryTouching:    s.Touch.Secondary.Touching,
	}
}

// Elapsed returns to-from, treating a non-increasing delta as zero so that
// out-of-order or duplicate timestamps never produce negative durations.
func Elapsed(from, to time.Time) time.Duration {
	d := to.Sub(from)
	if d < 0 {
		return 0
	}
	return d
}
