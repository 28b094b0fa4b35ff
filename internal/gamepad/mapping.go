package gamepad

import (
	"math"
	"time"
)

// AxisTarget names the analog input a raw SDL axis feeds.
type AxisTarget uint8

const (
	AxisLeftX AxisTarget = iota
	AxisLeftY
	AxisRightX
	AxisRightY
	AxisLeftTrigger
	AxisRightTrigger
)

// AxisMapping defines how a raw axis index maps to an analog input.
type AxisMapping struct {
	Index  int32
	Target AxisTarget
	Invert bool
	// Trigger axes report a raw range. Some devices use -32768..32767, others 0..32767.
	RawMin int16
	RawMax int16
}

func (a AxisMapping) IsTrigger() bool {
	return a.Target == AxisLeftTrigger || a.Target == AxisRightTrigger
}

// ButtonMapping maps a raw button index to a Button.
type ButtonMapping struct {
	Index  int32
	Target Button
}

// DeviceMapping holds the complete mapping for a specific device type.
type DeviceMapping struct {
	Name    string
	Axes    []AxisMapping
	Buttons []ButtonMapping
	HasHat  bool
	// Digital trigger buttons are synthesized when the analog value crosses this.
	TriggerPressThreshold float64
}

// NormalizeAxis converts a raw axis value (-32768..32767) to -1.0..1.0.
func NormalizeAxis(raw int16) float64 {
	v := float64(raw) / math.MaxInt16
	if v < -1.0 {
		v = -1.0
	}
	return v
}

// NormalizeTrigger converts a raw trigger value to 0.0..1.0.
func NormalizeTrigger(raw int16, rawMin, rawMax int16) float64 {
	if rawMax == rawMin {
		return 0
	}
	v := (float64(raw) - float64(rawMin)) / (float64(rawMax) - float64(rawMin))
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return v
}

// ApplyDeadzone returns 0 if the value is within the deadzone threshold.
func ApplyDeadzone(v float64, threshold float64) float64 {
	if math.Abs(v) < threshold {
		return 0
	}
	return v
}

var standardAxes = []AxisMapping{
	{Index: 0, Target: AxisLeftX},
	{Index: 1, Target: AxisLeftY, Invert: true},
	{Index: 2, Target: AxisRightX},
	{Index: 3, Target: AxisRightY, Invert: true},
	{Index: 4, Target: AxisLeftTrigger, RawMin: -32768, RawMax: 32767},
	{Index: 5, Target: AxisRightTrigger, RawMin: -32768, RawMax: 32767},
}

var xboxMapping = &DeviceMapping{
	Name: "xbox",
	Axes: standardAxes,
	Buttons: []ButtonMapping{
		{Index: 0, Target: ButtonA},
		{Index: 1, Target: ButtonB},
		{Index: 2, Target: ButtonX},
		{Index: 3, Target: ButtonY},
		{Index: 4, Target: ButtonLeftBumper},
		{Index: 5, Target: ButtonRightBumper},
		{Index: 6, Target: ButtonView},
		{Index: 7, Target: ButtonMenu},
		{Index: 8, Target: ButtonLeftThumbstick},
		{Index: 9, Target: ButtonRightThumbstick},
		{Index: 10, Target: ButtonHome},
		{Index: 11, Target: ButtonShare},
	},
	HasHat:                true,
	TriggerPressThreshold: 0.5,
}

var playstationMapping = &DeviceMapping{
	Name: "playstation",
	Axes: standardAxes,
	Buttons: []ButtonMapping{
		{Index: 0, Target: ButtonA},    // Cross
		{Index: 1, Target: ButtonB},    // Circle
		{Index: 2, Target: ButtonX},    // Square
		{Index: 3, Target: ButtonY},    // Triangle
		{Index: 4, Target: ButtonView}, // Share / Create
		{Index: 5, Target: ButtonHome}, // PS
		{Index: 6, Target: ButtonMenu}, // Options
		{Index: 7, Target: ButtonLeftThumbstick},
		{Index: 8, Target: ButtonRightThumbstick},
		{Index: 9, Target: ButtonLeftBumper},   // L1
		{Index: 10, Target: ButtonRightBumper}, // R1
		{Index: 15, Target: ButtonTouchpadClick},
	},
	HasHat:                true,
	TriggerPressThreshold: 0.5,
}

var switchProMapping = &DeviceMapping{
	Name: "switch_pro",
	Axes: standardAxes[:4],
	Buttons: []ButtonMapping{
		{Index: 0, Target: ButtonA},
		{Index: 1, Target: ButtonB},
		{Index: 2, Target: ButtonX},
		{Index: 3, Target: ButtonY},
		{Index: 4, Target: ButtonLeftBumper},
		{Index: 5, Target: ButtonRightBumper},
		{Index: 6, Target: ButtonLeftTrigger},
		{Index: 7, Target: ButtonRightTrigger},
		{Index: 8, Target: ButtonView},
		{Index: 9, Target: ButtonMenu},
		{Index: 10, Target: ButtonLeftThumbstick},
		{Index: 11, Target: ButtonRightThumbstick},
		{Index: 12, Target: ButtonHome},
		{Index: 13, Target: ButtonShare},
	},
	HasHat: true,
}

var genericMapping = &DeviceMapping{
	Name: "generic",
	Axes: standardAxes,
	Buttons: []ButtonMapping{
		{Index: 0, Target: ButtonA},
		{Index: 1, Target: ButtonB},
		{Index: 2, Target: ButtonX},
		{Index: 3, Target: ButtonY},
		{Index: 4, Target: ButtonLeftBumper},
		{Index: 5, Target: ButtonRightBumper},
		{Index: 6, Target: ButtonView},
		{Index: 7, Target: ButtonMenu},
		{Index: 8, Target: ButtonLeftThumbstick},
		{Index: 9, Target: ButtonRightThumbstick},
		{Index: 10, Target: ButtonHome},
	},
	HasHat:                true,
	TriggerPressThreshold: 0.5,
}

type deviceKey struct {
	VendorID  uint16
	ProductID uint16
}

var knownDevices = map[deviceKey]*DeviceMapping{
	// Microsoft Xbox controllers
	{0x045E, 0x028E}: xboxMapping, // Xbox 360
	{0x045E, 0x02FF}: xboxMapping, // Xbox One
	{0x045E, 0x0B12}: xboxMapping, // Xbox Series X|S
	{0x045E, 0x0B13}: xboxMapping, // Xbox Series X|S (wireless)
	// Sony PlayStation controllers
	{0x054C, 0x0CE6}: playstationMapping, // DualSense
	{0x054C, 0x0DF2}: playstationMapping, // DualSense Edge
	{0x054C, 0x09CC}: playstationMapping, // DualShock 4 v2
	{0x054C, 0x05C4}: playstationMapping, // DualShock 4 v1
	// Nintendo Switch Pro Controller
	{0x057E, 0x2009}: switchProMapping,
}

// GetMapping returns the mapping for a device identified by vendor/product ID,
// falling back to the generic layout.
func GetMapping(vendorID, productID uint16) *DeviceMapping {
	key := deviceKey{VendorID: vendorID, ProductID: productID}
	if m, ok := knownDevices[key]; ok {
		return m
	}
	return genericMapping
}

// DiffButtons turns two held-button snapshots into press/release edges,
// in enum order, all stamped with at.
func DiffButtons(prev, next ButtonMask, at time.Time) []ButtonEvent {
	changed := prev ^ next
	if changed == 0 {
		return nil
	}
	var out []ButtonEvent
	for b := ButtonNone + 1; b < buttonCount; b++ {
		if !changed.Has(b) {
			continue
		}
		out = append(out, ButtonEvent{Button: b, Pressed: next.Has(b), At: at})
	}
	return out
}
