// Package touchpad classifies touchpad contacts into taps, long taps, pans
// and pinches, and continues two-finger pans with decaying momentum after
// the fingers lift.
package touchpad

import (
	"fmt"
	"math"
	"time"

	"github.com/soar/padmapper/internal/gamepad"
)

// Config holds recognizer thresholds. Distances are in normalized pad units
// (the pad spans -1..1 on each axis); velocities are units per second.
type Config struct {
	TapMaxDuration     time.Duration
	TapMaxMovement     float64
	LongTapThreshold   time.Duration
	LongTapMaxMovement float64

	TwoFingerWindow      time.Duration
	TwoFingerMinDistance float64

	// Two-finger motion is a pinch when |radial| > |lateral| * PinchRatio.
	PinchRatio         float64
	ClassificationLock time.Duration
	// Weight of the newest sample in the exponential velocity average.
	VelocitySmoothing float64

	MomentumHz            int
	MomentumDecay         float64
	MomentumStartVelocity float64
	MomentumStopVelocity  float64
	MomentumMaxIdle       time.Duration
	// The last finger must lift within this of the last pan movement for
	// momentum to start.
	MomentumLiftWindow time.Duration
}

func DefaultConfig() Config {
	return Config{
		TapMaxDuration:        250 * time.Millisecond,
		TapMaxMovement:        0.05,
		LongTapThreshold:      500 * time.Millisecond,
		LongTapMaxMovement:    0.03,
		TwoFingerWindow:       150 * time.Millisecond,
		TwoFingerMinDistance:  0.15,
		PinchRatio:            1.5,
		ClassificationLock:    150 * time.Millisecond,
		VelocitySmoothing:     0.35,
		MomentumHz:            120,
		MomentumDecay:         0.92,
		MomentumStartVelocity: 0.6,
		MomentumStopVelocity:  0.05,
		MomentumMaxIdle:       1500 * time.Millisecond,
		MomentumLiftWindow:    100 * time.Millisecond,
	}
}

// TickInterval is the period of the momentum ticker.
func (c Config) TickInterval() time.Duration {
	if c.MomentumHz <= 0 {
		return time.Second / 120
	}
	return time.Second / time.Duration(c.MomentumHz)
}

type Kind uint8

const (
	KindTap Kind = iota
	KindLongTap
	KindTwoFingerTap
	KindTwoFingerLongTap
	KindPan
	KindPinch
	KindMomentum
)

var kindNames = [...]string{
	KindTap:              "tap",
	KindLongTap:          "long_tap",
	KindTwoFingerTap:     "two_finger_tap",
	KindTwoFingerLongTap: "two_finger_long_tap",
	KindPan:              "pan",
	KindPinch:            "pinch",
	KindMomentum:         "momentum",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("touch(%d)", uint8(k))
}

// Button returns the synthetic button a tap kind maps through, if any.
func (k Kind) Button() (gamepad.Button, bool) {
	switch k {
	case KindTap:
		return gamepad.ButtonTouchpadTap, true
	case KindLongTap:
		return gamepad.ButtonTouchpadLongTap, true
	case KindTwoFingerTap:
		return gamepad.ButtonTouchpadTwoFingerTap, true
	case KindTwoFingerLongTap:
		return gamepad.ButtonTouchpadTwoFingerLongTap, true
	}
	return gamepad.ButtonNone, false
}

// Event is one recognized gesture. Delta is set for pans and momentum,
// Pinch for pinches (positive when the fingers spread), Position for taps.
type Event struct {
	Kind     Kind
	Delta    gamepad.Vector
	Pinch    float64
	Fingers  int
	Position gamepad.Vector
	At       time.Time
}

// Deltas smaller than this are float noise, not motion.
const epsilon = 1e-9

type contactState struct {
	active   bool
	start    time.Time
	pos      gamepad.Vector
	prev     gamepad.Vector
	movement float64
}

type mode uint8

const (
	modeUndecided mode = iota
	modePan
	modePinch
)

type momentumState struct {
	active   bool
	velocity gamepad.Vector
	lastMove time.Time
}

// Recognizer is not safe for concurrent use; the owner serializes Process
// and Tick.
type Recognizer struct {
	cfg      Config
	contacts [2]contactState

	// Per gesture, from first contact down to last contact up.
	inGesture    bool
	gestureStart time.Time
	maxContacts  int
	twoFinger    bool // second contact qualified for two-finger taps
	moved        bool
	longTapFired bool
	mode         mode
	lockUntil    time.Time
	velocity     gamepad.Vector
	lastSample   time.Time
	lastMove     time.Time

	momentum momentumState
}

func New(cfg Config) *Recognizer {
	return &Recognizer{cfg: cfg}
}

// Process consumes one touch sample and returns the gestures it completes.
func (r *Recognizer) Process(touch gamepad.TouchSample, ts time.Time) []Event {
	var out []Event

	if r.momentum.active && (touch.Primary.Touching || touch.Secondary.Touching) {
		r.momentum = momentumState{}
	}

	released := false
	for slot := range r.contacts {
		c := touch.Contact(slot)
		s := &r.contacts[slot]
		switch {
		case c.Touching && !s.active:
			r.begin(slot, c.Position, ts)
		case c.Touching:
			s.prev = s.pos
			s.pos = c.Position
			s.movement += s.pos.Dist(s.prev)
		case s.active:
			s.active = false
			released = true
		}
	}

	if !r.inGesture {
		return nil
	}

	switch n := r.activeCount(); {
	case n == 1 && r.maxContacts == 1:
		out = r.oneFinger(out, ts)
	case n == 2:
		out = r.twoFingers(out, ts)
	case n == 1 && r.mode == modePan:
		// A finger left behind after a scroll is not scrolling.
		r.trackVelocity(gamepad.Vector{}, ts)
	}

	out = r.checkLongTap(out, ts)

	if released && r.activeCount() == 0 {
		out = r.end(out, ts)
	}
	r.lastSample = ts
	return out
}

func (r *Recognizer) begin(slot int, pos gamepad.Vector, ts time.Time) {
	if !r.inGesture {
		r.resetGesture()
		r.inGesture = true
		r.gestureStart = ts
		r.lastSample = ts
	}
	r.contacts[slot] = contactState{active: true, start: ts, pos: pos, prev: pos}

	if n := r.activeCount(); n > r.maxContacts {
		r.maxContacts = n
	}
	if r.activeCount() == 2 {
		other := r.contacts[1-slot]
		r.twoFinger = gamepad.Elapsed(other.start, ts) <= r.cfg.TwoFingerWindow &&
			pos.Dist(other.pos) >= r.cfg.TwoFingerMinDistance
	}
}

func (r *Recognizer) oneFinger(out []Event, ts time.Time) []Event {
	s := r.primaryActive()
	if !r.moved && s.movement > r.cfg.TapMaxMovement {
		r.moved = true
		r.mode = modePan
	}
	if !r.moved {
		return out
	}
	if d := s.pos.Sub(s.prev); d.Len() > 0 {
		out = append(out, Event{Kind: KindPan, Delta: d, Fingers: 1, At: ts})
	}
	return out
}

func (r *Recognizer) twoFingers(out []Event, ts time.Time) []Event {
	a, b := &r.contacts[0], &r.contacts[1]
	if !r.moved && (a.movement > r.cfg.TapMaxMovement || b.movement > r.cfg.TapMaxMovement) {
		r.moved = true
	}

	lateral := a.pos.Midpoint(b.pos).Sub(a.prev.Midpoint(b.prev))
	radial := a.pos.Dist(b.pos) - a.prev.Dist(b.prev)
	if math.Abs(radial) < epsilon {
		radial = 0
	}
	if lateral.Len() < epsilon {
		lateral = gamepad.Vector{}
	}

	if !r.moved {
		return out
	}

	if !ts.Before(r.lockUntil) && (lateral.Len() > 0 || radial != 0) {
		next := modePan
		if math.Abs(radial) > lateral.Len()*r.cfg.PinchRatio {
			next = modePinch
		}
		if next != r.mode {
			r.mode = next
			r.lockUntil = ts.Add(r.cfg.ClassificationLock)
			r.velocity = gamepad.Vector{}
		}
	}

	switch r.mode {
	case modePinch:
		if radial != 0 {
			out = append(out, Event{Kind: KindPinch, Pinch: radial, Fingers: 2, At: ts})
		}
	case modePan:
		r.trackVelocity(lateral, ts)
		if lateral.Len() > 0 {
			out = append(out, Event{Kind: KindPan, Delta: lateral, Fingers: 2, At: ts})
		}
	}
	return out
}

// trackVelocity folds the latest lateral delta into an exponential moving
// average. Stationary samples pull the average toward zero.
func (r *Recognizer) trackVelocity(delta gamepad.Vector, ts time.Time) {
	dt := gamepad.Elapsed(r.lastSample, ts)
	if dt <= 0 {
		return
	}
	inst := delta.Scale(1 / dt.Seconds())
	alpha := r.cfg.VelocitySmoothing
	r.velocity = r.velocity.Scale(1 - alpha).Add(inst.Scale(alpha))
	if delta.Len() > 0 {
		r.lastMove = ts
	}
}

func (r *Recognizer) checkLongTap(out []Event, ts time.Time) []Event {
	if r.longTapFired || r.moved {
		return out
	}
	n := r.activeCount()
	if n == 0 || n != r.maxContacts {
		return out
	}
	for _, s := range r.contacts {
		if !s.active {
			continue
		}
		if gamepad.Elapsed(s.start, ts) < r.cfg.LongTapThreshold || s.movement > r.cfg.LongTapMaxMovement {
			return out
		}
	}

	switch {
	case n == 1:
		r.longTapFired = true
		out = append(out, Event{Kind: KindLongTap, Fingers: 1, Position: r.primaryActive().pos, At: ts})
	case r.twoFinger:
		r.longTapFired = true
		mid := r.contacts[0].pos.Midpoint(r.contacts[1].pos)
		out = append(out, Event{Kind: KindTwoFingerLongTap, Fingers: 2, Position: mid, At: ts})
	}
	return out
}

func (r *Recognizer) end(out []Event, ts time.Time) []Event {
	defer r.resetGesture()

	if !r.moved && !r.longTapFired && gamepad.Elapsed(r.gestureStart, ts) <= r.cfg.TapMaxDuration {
		a, b := r.contacts[0], r.contacts[1]
		switch {
		case r.maxContacts == 1:
			s := a
			if s.start.IsZero() {
				s = b
			}
			if s.movement <= r.cfg.TapMaxMovement {
				out = append(out, Event{Kind: KindTap, Fingers: 1, Position: s.pos, At: ts})
			}
		case r.twoFinger && a.movement <= r.cfg.TapMaxMovement && b.movement <= r.cfg.TapMaxMovement:
			out = append(out, Event{Kind: KindTwoFingerTap, Fingers: 2, Position: a.pos.Midpoint(b.pos), At: ts})
		}
	}

	if r.mode == modePan && r.maxContacts == 2 &&
		r.velocity.Len() >= r.cfg.MomentumStartVelocity &&
		gamepad.Elapsed(r.lastMove, ts) <= r.cfg.MomentumLiftWindow {
		r.momentum = momentumState{active: true, velocity: r.velocity, lastMove: r.lastMove}
	}
	return out
}

// Tick advances momentum by one ticker period. It returns false when no
// momentum is running or it has just stopped.
func (r *Recognizer) Tick(now time.Time) (Event, bool) {
	m := &r.momentum
	if !m.active {
		return Event{}, false
	}
	if m.velocity.Len() < r.cfg.MomentumStopVelocity || gamepad.Elapsed(m.lastMove, now) > r.cfg.MomentumMaxIdle {
		*m = momentumState{}
		return Event{}, false
	}
	delta := m.velocity.Scale(r.cfg.TickInterval().Seconds())
	m.velocity = m.velocity.Scale(r.cfg.MomentumDecay)
	return Event{Kind: KindMomentum, Delta: delta, Fingers: 2, At: now}, true
}

// Momentum reports whether momentum scrolling is running.
func (r *Recognizer) Momentum() bool {
	return r.momentum.active
}

func (r *Recognizer) Reset() {
	r.resetGesture()
	r.momentum = momentumState{}
}

func (r *Recognizer) resetGesture() {
	r.contacts = [2]contactState{}
	r.inGesture = false
	r.gestureStart = time.Time{}
	r.maxContacts = 0
	r.twoFinger = false
	r.moved = false
	r.longTapFired = false
	r.mode = modeUndecided
	r.lockUntil = time.Time{}
	r.velocity = gamepad.Vector{}
	r.lastSample = time.Time{}
	r.lastMove = time.Time{}
}

func (r *Recognizer) activeCount() int {
	n := 0
	for _, s := range r.contacts {
		if s.active {
			n++
		}
	}
	return n
}

func (r *Recognizer) primaryActive() *contactState {
	if r.contacts[0].active {
		return &r.contacts[0]
	}
	return &r.contacts[1]
}
