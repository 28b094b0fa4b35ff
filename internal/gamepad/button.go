package gamepad

import (
	"fmt"
	"sort"
	"strings"
)

// Button identifies a physical button or pad region on the controller.
type Button uint8

const (
	ButtonNone Button = iota
	ButtonA
	ButtonB
	ButtonX
	ButtonY
	ButtonLeftBumper
	ButtonRightBumper
	ButtonLeftTrigger
	ButtonRightTrigger
	ButtonDpadUp
	ButtonDpadDown
	ButtonDpadLeft
	ButtonDpadRight
	ButtonLeftThumbstick
	ButtonRightThumbstick
	ButtonMenu
	ButtonView
	ButtonHome
	ButtonShare
	ButtonTouchpadClick
	ButtonTouchpadTap
	ButtonTouchpadTwoFingerTap
	ButtonTouchpadLongTap
	ButtonTouchpadTwoFingerLongTap

	buttonCount
)

var buttonNames = [buttonCount]string{
	ButtonNone:                     "none",
	ButtonA:                        "a",
	ButtonB:                        "b",
	ButtonX:                        "x",
	ButtonY:                        "y",
	ButtonLeftBumper:               "left_bumper",
	ButtonRightBumper:              "right_bumper",
	ButtonLeftTrigger:              "left_trigger",
	ButtonRightTrigger:             "right_trigger",
	ButtonDpadUp:                   "dpad_up",
	ButtonDpadDown:                 "dpad_down",
	ButtonDpadLeft:                 "dpad_left",
	ButtonDpadRight:                "dpad_right",
	ButtonLeftThumbstick:           "left_thumbstick",
	ButtonRightThumbstick:          "right_thumbstick",
	ButtonMenu:                     "menu",
	ButtonView:                     "view",
	ButtonHome:                     "home",
	ButtonShare:                    "share",
	ButtonTouchpadClick:            "touchpad_click",
	ButtonTouchpadTap:              "touchpad_tap",
	ButtonTouchpadTwoFingerTap:     "touchpad_two_finger_tap",
	ButtonTouchpadLongTap:          "touchpad_long_tap",
	ButtonTouchpadTwoFingerLongTap: "touchpad_two_finger_long_tap",
}

// Aliases accepted by ParseButton in addition to the canonical names.
var buttonAliases = map[string]Button{
	"lb":     ButtonLeftBumper,
	"rb":     ButtonRightBumper,
	"lt":     ButtonLeftTrigger,
	"rt":     ButtonRightTrigger,
	"l3":     ButtonLeftThumbstick,
	"r3":     ButtonRightThumbstick,
	"start":  ButtonMenu,
	"select": ButtonView,
	"back":   ButtonView,
	"guide":  ButtonHome,
}

// AllButtons returns every real button, excluding ButtonNone.
func AllButtons() []Button {
	out := make([]Button, 0, buttonCount-1)
	for b := ButtonNone + 1; b < buttonCount; b++ {
		out = append(out, b)
	}
	return out
}

// Valid reports whether b is a known, non-empty button.
func (b Button) Valid() bool {
	return b > ButtonNone && b < buttonCount
}

func (b Button) String() string {
	if b < buttonCount {
		return buttonNames[b]
	}
	return fmt.Sprintf("button(%d)", uint8(b))
}

// IsTouchpadSynthetic reports whether b is produced by touchpad gesture
// recognition rather than a physical switch.
func (b Button) IsTouchpadSynthetic() bool {
	switch b {
	case ButtonTouchpadTap, ButtonTouchpadTwoFingerTap, ButtonTouchpadLongTap, ButtonTouchpadTwoFingerLongTap:
		return true
	}
	return false
}

// ParseButton resolves a canonical name or alias, case-insensitively.
func ParseButton(s string) (Button, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range buttonNames {
		if n == name && Button(i) != ButtonNone {
			return Button(i), nil
		}
	}
	if b, ok := buttonAliases[name]; ok {
		return b, nil
	}
	return ButtonNone, fmt.Errorf("unknown button %q", s)
}

func (b Button) MarshalText() ([]byte, error) {
	if !b.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid button %d", uint8(b))
	}
	return []byte(b.String()), nil
}

func (b *Button) UnmarshalText(p []byte) error {
	v, err := ParseButton(string(p))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// SortButtons orders buttons by their enum value, in place.
func SortButtons(bs []Button) {
	sort.Slice(bs, func(i, j int) bool { return bs[i] < bs[j] })
}

// ButtonSetKey returns an order-independent key for a set of buttons.
// Duplicates collapse, so {a, b} and {b, a, b} share a key.
func ButtonSetKey(bs []Button) string {
	sorted := make([]Button, len(bs))
	copy(sorted, bs)
	SortButtons(sorted)

	var sb strings.Builder
	var last Button
	for i, b := range sorted {
		if i > 0 && b == last {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('+')
		}
		sb.WriteString(b.String())
		last = b
	}
	return sb.String()
}
