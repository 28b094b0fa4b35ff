package gamepad

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func TestResolve_Deadzone(t *testing.T) {
	current := DisplayState{
		DisplayLeftStick:   Vector{X: 0, Y: 0},
		DisplayLeftTrigger: 0.25,
	}

	tests := []struct {
		name        string
		sample      DisplaySample
		wantStick   Vector
		wantTrigger float64
	}{
		{
			name:        "inside deadzone keeps display",
			sample:      DisplaySample{LeftStick: Vector{X: 0.1, Y: 0.1}, LeftTrigger: 0.3},
			wantStick:   Vector{},
			wantTrigger: 0.25,
		},
		{
			name:        "exactly at deadzone keeps display",
			sample:      DisplaySample{LeftStick: Vector{X: 0.25}, LeftTrigger: 0.5},
			wantStick:   Vector{},
			wantTrigger: 0.25,
		},
		{
			name:        "beyond deadzone follows sample",
			sample:      DisplaySample{LeftStick: Vector{X: 0.5, Y: -0.5}, LeftTrigger: 0.75},
			wantStick:   Vector{X: 0.5, Y: -0.5},
			wantTrigger: 0.75,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := Resolve(current, tt.sample, 0.25)
			assert.Equal(t, tt.sample.LeftStick, next.LeftStick, "raw stick always tracks")
			assert.Equal(t, tt.sample.LeftTrigger, next.LeftTrigger, "raw trigger always tracks")
			assert.Equal(t, tt.wantStick, next.DisplayLeftStick)
			assert.Equal(t, tt.wantTrigger, next.DisplayLeftTrigger)
		})
	}
}

func TestResolve_TouchIsNeverFiltered(t *testing.T) {
	current := DisplayState{TouchPosition: Vector{X: 0.1, Y: 0.1}, IsTouching: true}
	sample := DisplaySample{TouchPosition: Vector{X: 0.11, Y: 0.1}, IsTouching: true, IsSecondaryTouching: true}

	next := Resolve(current, sample, 0.5)
	assert.Equal(t, sample.TouchPosition, next.TouchPosition)
	assert.True(t, next.IsSecondaryTouching)
}

func TestResolve_DoesNotModifyCurrent(t *testing.T) {
	current := DisplayState{DisplayRightStick: Vector{X: 0.2}}
	Resolve(current, DisplaySample{RightStick: Vector{X: -0.9}}, 0.02)
	assert.Equal(t, Vector{X: 0.2}, current.DisplayRightStick)
}

func TestComputeDelta(t *testing.T) {
	base := DisplayState{Controller: "pad", Held: MaskOf(ButtonA)}

	assert.True(t, ComputeDelta(base, base).IsEmpty())

	rawOnly := base
	rawOnly.LeftStick = Vector{X: 0.01}
	assert.True(t, ComputeDelta(base, rawOnly).IsEmpty(), "raw readings are not rendered")

	held := base
	held.Held = MaskOf(ButtonA, ButtonB)
	d := ComputeDelta(base, held)
	require.NotNil(t, d.Held)
	assert.Equal(t, held.Held, *d.Held)
	assert.Nil(t, d.Sticks)
	assert.Nil(t, d.Touch)

	moved := base
	moved.DisplayRightTrigger = 1
	d = ComputeDelta(base, moved)
	require.NotNil(t, d.Triggers)
	assert.Equal(t, TriggersDisplay{Right: 1}, *d.Triggers)
}

func TestParseButton(t *testing.T) {
	tests := []struct {
		in   string
		want Button
	}{
		{"a", ButtonA},
		{"  Left_Bumper ", ButtonLeftBumper},
		{"lt", ButtonLeftTrigger},
		{"start", ButtonMenu},
		{"touchpad_two_finger_long_tap", ButtonTouchpadTwoFingerLongTap},
	}
	for _, tt := range tests {
		got, err := ParseButton(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"", "none", "turbo"} {
		_, err := ParseButton(bad)
		assert.Error(t, err, bad)
	}
}

func TestButtonNamesRoundTrip(t *testing.T) {
	for _, b := range AllButtons() {
		text, err := b.MarshalText()
		require.NoError(t, err)
		var back Button
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, b, back)
	}
	_, err := ButtonNone.MarshalText()
	assert.Error(t, err)
}

func TestButtonSetKey(t *testing.T) {
	assert.Equal(t, ButtonSetKey([]Button{ButtonA, ButtonB}), ButtonSetKey([]Button{ButtonB, ButtonA, ButtonB}))
	assert.NotEqual(t, ButtonSetKey([]Button{ButtonA, ButtonB}), ButtonSetKey([]Button{ButtonA, ButtonX}))
}

func TestButtonMask(t *testing.T) {
	m := MaskOf(ButtonY, ButtonA)
	assert.True(t, m.Has(ButtonA))
	assert.False(t, m.Has(ButtonB))
	assert.False(t, m.Has(ButtonNone))
	assert.Equal(t, []Button{ButtonA, ButtonY}, m.Buttons())

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `["a","y"]`, string(data))

	var back ButtonMask
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, m, back)
	assert.Error(t, json.Unmarshal([]byte(`["turbo"]`), &back))
}

func TestDiffButtons(t *testing.T) {
	assert.Nil(t, DiffButtons(MaskOf(ButtonA), MaskOf(ButtonA), t0))

	got := DiffButtons(MaskOf(ButtonA, ButtonX), MaskOf(ButtonB, ButtonX), t0)
	assert.Equal(t, []ButtonEvent{
		{Button: ButtonA, Pressed: false, At: t0},
		{Button: ButtonB, Pressed: true, At: t0},
	}, got)
}

func TestElapsed(t *testing.T) {
	assert.Equal(t, 10*time.Millisecond, Elapsed(t0, t0.Add(10*time.Millisecond)))
	assert.Zero(t, Elapsed(t0, t0))
	assert.Zero(t, Elapsed(t0.Add(time.Second), t0), "backwards timestamps count as no time")
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, -1.0, NormalizeAxis(-32768))
	assert.Equal(t, 1.0, NormalizeAxis(32767))
	assert.Zero(t, NormalizeAxis(0))

	assert.Zero(t, NormalizeTrigger(5, 5, 5))
	assert.Equal(t, 0.0, NormalizeTrigger(-100, 0, 100))
	assert.Equal(t, 1.0, NormalizeTrigger(200, 0, 100))
	assert.InDelta(t, 0.5, NormalizeTrigger(50, 0, 100), 1e-9)

	assert.Zero(t, ApplyDeadzone(0.04, 0.05))
	assert.Equal(t, 0.3, ApplyDeadzone(0.3, 0.05))
}

func TestGetMappingFallsBackToGeneric(t *testing.T) {
	assert.Same(t, genericMapping, GetMapping(0xdead, 0xbeef))
}

func TestSampleDisplay(t *testing.T) {
	s := Sample{
		Controller: "pad",
		LeftStick:  Vector{X: 0.3},
		Touch: TouchSample{
			Primary: Contact{Touching: true, Position: Vector{X: 0.5, Y: 0.5}},
		},
	}
	d := s.Display()
	assert.Equal(t, "pad", d.Controller)
	assert.Equal(t, Vector{X: 0.3}, d.LeftStick)
	assert.True(t, d.IsTouching)
	assert.Equal(t, Vector{X: 0.5, Y: 0.5}, d.TouchPosition)
	assert.False(t, d.IsSecondaryTouching)
}
