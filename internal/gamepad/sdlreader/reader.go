// Package sdlreader polls controllers through the SDL3 joystick API. It is
// the only package that loads SDL, so everything else runs without it.
package sdlreader

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/jupiterrider/purego-sdl3/sdl"

	"github.com/soar/padmapper/internal/gamepad"
)

const (
	stickDeadzone       = 0.05
	hatUp         uint8 = 0x01
	hatRight      uint8 = 0x02
	hatDown       uint8 = 0x04
	hatLeft       uint8 = 0x08
)

type joystickInfo struct {
	joystick *sdl.Joystick
	mapping  *gamepad.DeviceMapping
	name     string
	id       sdl.JoystickID
}

// Reader polls the SDL3 joystick API and emits one Sample per tick.
// The joystick API exposes buttons, sticks and triggers only; touchpad and
// motion fields stay zero.
type Reader struct {
	joysticks    map[sdl.JoystickID]*joystickInfo
	activeID     sdl.JoystickID // the first connected joystick
	hasActive    bool
	pollInterval time.Duration
	samples      chan gamepad.Sample
	emitter      *gamepad.Emitter
	logger       *slog.Logger
	onInit       func()
}

func NewReader(pollHz int, logger *slog.Logger) *Reader {
	if pollHz <= 0 {
		pollHz = 120
	}
	samples := make(chan gamepad.Sample, 64)
	return &Reader{
		joysticks:    make(map[sdl.JoystickID]*joystickInfo),
		pollInterval: time.Second / time.Duration(pollHz),
		samples:      samples,
		emitter:      gamepad.NewEmitter(samples, logger),
		logger:       logger,
	}
}

// Samples returns the channel on which samples are sent.
func (r *Reader) Samples() <-chan gamepad.Sample {
	return r.samples
}

// OnInit registers fn to run on the reader thread right after SDL is
// initialized. SDL replaces process-wide handlers during init, so anything
// that must win over it is installed here. Call before Run.
func (r *Reader) OnInit(fn func()) {
	r.onInit = fn
}

// Run initializes SDL and runs the event+polling loop on the current thread.
func (r *Reader) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if !sdl.Init(sdl.InitJoystick) {
		return fmt.Errorf("sdl init: %s", sdl.GetError())
	}
	defer sdl.Quit()

	if r.onInit != nil {
		r.onInit()
	}
	r.logger.Info("SDL3 joystick subsystem initialized", "poll_interval", r.pollInterval)

	for _, id := range sdl.GetJoysticks() {
		r.openJoystick(id)
	}

	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return nil
		default:
		}

		r.processEvents()
		r.pollState()
		sdl.DelayNS(uint64(r.pollInterval.Nanoseconds()))
	}
}

func (r *Reader) processEvents() {
	var event sdl.Event
	for sdl.PollEvent(&event) {
		switch event.Type() {
		case sdl.EventJoystickAdded:
			r.openJoystick(event.JDevice().Which)

		case sdl.EventJoystickRemoved:
			r.removeJoystick(event.JDevice().Which)

		case sdl.EventJoystickButtonDown, sdl.EventJoystickButtonUp:
			be := event.JButton()
			r.logger.Debug("raw button", "index", be.Button, "joystick", be.Which)
		}
	}
}

func (r *Reader) openJoystick(instanceID sdl.JoystickID) {
	if _, exists := r.joysticks[instanceID]; exists {
		return
	}

	js := sdl.OpenJoystick(instanceID)
	if js == nil {
		r.logger.Warn("failed to open joystick", "id", instanceID, "error", sdl.GetError())
		return
	}

	jsID := sdl.GetJoystickID(js)
	vendorID := sdl.GetJoystickVendor(js)
	productID := sdl.GetJoystickProduct(js)
	name := sdl.GetJoystickName(js)
	mapping := gamepad.GetMapping(vendorID, productID)

	r.joysticks[jsID] = &joystickInfo{
		joystick: js,
		mapping:  mapping,
		name:     name,
		id:       jsID,
	}

	r.logger.Info("joystick connected",
		"name", name,
		"vid", fmt.Sprintf("%04X", vendorID),
		"pid", fmt.Sprintf("%04X", productID),
		"mapping", mapping.Name,
		"axes", sdl.GetNumJoystickAxes(js),
		"buttons", sdl.GetNumJoystickButtons(js),
		"hats", sdl.GetNumJoystickHats(js))

	if !r.hasActive {
		r.activeID = jsID
		r.hasActive = true
		r.logger.Info("active joystick set", "name", name, "id", jsID)
	}
}

func (r *Reader) removeJoystick(instanceID sdl.JoystickID) {
	info, exists := r.joysticks[instanceID]
	if !exists {
		return
	}

	r.logger.Info("joystick disconnected", "name", info.name)
	sdl.CloseJoystick(info.joystick)
	delete(r.joysticks, instanceID)

	if !r.hasActive || r.activeID != instanceID {
		return
	}
	r.hasActive = false

	// Release everything the old device held so no button stays stuck.
	r.emitter.Emit(gamepad.Sample{At: time.Now()}, 0)

	for id, js := range r.joysticks {
		if sdl.JoystickConnected(js.joystick) {
			r.activeID = id
			r.hasActive = true
			r.logger.Info("active joystick switched", "name", js.name, "id", id)
			break
		}
	}
}

func (r *Reader) closeAll() {
	for id, info := range r.joysticks {
		sdl.CloseJoystick(info.joystick)
		delete(r.joysticks, id)
	}
}

func (r *Reader) pollState() {
	if !r.hasActive {
		// A release refused at disconnect is retried until it lands.
		if r.emitter.Held() != 0 {
			r.emitter.Emit(gamepad.Sample{At: time.Now()}, 0)
		}
		return
	}

	info, exists := r.joysticks[r.activeID]
	if !exists || !sdl.JoystickConnected(info.joystick) {
		return
	}

	js := info.joystick
	mapping := info.mapping
	now := time.Now()
	s := gamepad.Sample{At: now, Controller: info.name}

	for _, am := range mapping.Axes {
		raw := sdl.GetJoystickAxis(js, am.Index)
		if am.IsTrigger() {
			val := gamepad.NormalizeTrigger(raw, am.RawMin, am.RawMax)
			if am.Target == gamepad.AxisLeftTrigger {
				s.LeftTrigger = val
			} else {
				s.RightTrigger = val
			}
			continue
		}
		val := gamepad.NormalizeAxis(raw)
		if am.Invert {
			val = -val
		}
		val = gamepad.ApplyDeadzone(val, stickDeadzone)
		switch am.Target {
		case gamepad.AxisLeftX:
			s.LeftStick.X = val
		case gamepad.AxisLeftY:
			s.LeftStick.Y = val
		case gamepad.AxisRightX:
			s.RightStick.X = val
		case gamepad.AxisRightY:
			s.RightStick.Y = val
		}
	}

	var held gamepad.ButtonMask
	numButtons := sdl.GetNumJoystickButtons(js)
	for _, bm := range mapping.Buttons {
		if bm.Index >= numButtons {
			continue
		}
		if sdl.GetJoystickButton(js, bm.Index) {
			held = held.With(bm.Target)
		}
	}

	if mapping.TriggerPressThreshold > 0 {
		if s.LeftTrigger >= mapping.TriggerPressThreshold {
			held = held.With(gamepad.ButtonLeftTrigger)
		}
		if s.RightTrigger >= mapping.TriggerPressThreshold {
			held = held.With(gamepad.ButtonRightTrigger)
		}
	}

	if mapping.HasHat && sdl.GetNumJoystickHats(js) > 0 {
		hat := sdl.GetJoystickHat(js, 0)
		if hat&hatUp != 0 {
			held = held.With(gamepad.ButtonDpadUp)
		}
		if hat&hatRight != 0 {
			held = held.With(gamepad.ButtonDpadRight)
		}
		if hat&hatDown != 0 {
			held = held.With(gamepad.ButtonDpadDown)
		}
		if hat&hatLeft != 0 {
			held = held.With(gamepad.ButtonDpadLeft)
		}
	}

	r.emitter.Emit(s, held)
}
