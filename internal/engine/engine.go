// Package engine runs every detector against one sample stream and turns
// their results into resolved firings.
//
// The engine is the single owner of detector and profile state. Every
// exported method takes e.mu for its whole body; that is the only
// critical section, so a sample tick, a momentum tick and a profile edit
// never interleave.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soar/padmapper/internal/action"
	"github.com/soar/padmapper/internal/chord"
	"github.com/soar/padmapper/internal/gamepad"
	"github.com/soar/padmapper/internal/motion"
	"github.com/soar/padmapper/internal/profile"
	"github.com/soar/padmapper/internal/sequence"
	"github.com/soar/padmapper/internal/touchpad"
)

type Config struct {
	Deadzone          float64
	ChordWindow       time.Duration
	SequenceTolerance time.Duration
	MaxLayers         int
	Motion            motion.Config
	Touchpad          touchpad.Config
	// Capacity of the firing and display channels.
	Buffer int
}

func DefaultConfig() Config {
	return Config{
		Deadzone:          0.02,
		ChordWindow:       50 * time.Millisecond,
		SequenceTolerance: 50 * time.Millisecond,
		MaxLayers:         profile.DefaultMaxLayers,
		Motion:            motion.DefaultConfig(),
		Touchpad:          touchpad.DefaultConfig(),
		Buffer:            256,
	}
}

// ProfileSummary is a read-only view of one managed profile.
type ProfileSummary struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Active  bool      `json:"active"`
	Default bool      `json:"default"`
}

type Engine struct {
	mu     sync.Mutex
	cfg    Config
	logger *slog.Logger

	profiles *profile.Manager
	resolver *profile.Resolver

	chords    *chord.Detector
	sequences *sequence.Detector
	motion    *motion.Detector
	touch     *touchpad.Recognizer

	held     gamepad.ButtonMask
	display  gamepad.DisplayState
	lastAt   time.Time
	lastWall time.Time

	firings  chan Firing
	displays chan gamepad.DisplayState
}

func New(cfg Config, profiles *profile.Manager, logger *slog.Logger) *Engine {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	e := &Engine{
		cfg:      cfg,
		logger:   logger,
		profiles: profiles,
		firings:  make(chan Firing, cfg.Buffer),
		displays: make(chan gamepad.DisplayState, cfg.Buffer),
	}
	e.motion = motion.New(cfg.Motion)
	e.touch = touchpad.New(cfg.Touchpad)
	e.bindProfile()
	return e
}

// Firings returns the channel resolved firings are published on. Firings
// are dropped when nobody keeps up.
func (e *Engine) Firings() <-chan Firing { return e.firings }

// Displays returns the channel display-state changes are published on.
func (e *Engine) Displays() <-chan gamepad.DisplayState { return e.displays }

// bindProfile points the resolver at the active profile and rebuilds the
// pattern detectors from it. Caller holds e.mu or is the constructor.
func (e *Engine) bindProfile() {
	e.resolver = profile.NewResolver(e.profiles.Active(), e.cfg.MaxLayers)
	e.rebuildDetectors()
}

func (e *Engine) rebuildDetectors() {
	p := e.resolver.Profile()

	chords := make([]chord.Chord, 0, len(p.Chords))
	for _, c := range p.Chords {
		chords = append(chords, chord.Chord{ID: c.ID.String(), Buttons: c.Buttons})
	}
	e.chords = chord.New(chords, e.cfg.ChordWindow)

	seqs := make([]sequence.Sequence, 0, len(p.Sequences))
	for _, s := range p.Sequences {
		seqs = append(seqs, sequence.Sequence{ID: s.ID.String(), Steps: s.Steps, StepTimeout: s.StepTimeout})
	}
	e.sequences = sequence.New(seqs, e.cfg.SequenceTolerance)
}

// HandleSample runs one poll tick through every detector and returns the
// resulting firings, which are also published on Firings.
func (e *Engine) HandleSample(s gamepad.Sample) []Firing {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastAt = s.At
	e.lastWall = time.Now()

	var out []Firing
	for _, ev := range s.Buttons {
		if !ev.Button.Valid() {
			continue
		}
		ts := ev.At
		if ts.IsZero() {
			ts = s.At
		}
		// Deferred singles that ran out before this edge go first.
		for _, b := range e.chords.Expire(ts) {
			out = e.single(out, b, ts)
		}
		if ev.Pressed {
			out = e.press(out, ev.Button, ts)
		} else {
			out = e.release(out, ev.Button, ts)
		}
	}

	for _, b := range e.chords.Expire(s.At) {
		out = e.single(out, b, s.At)
	}

	for _, r := range e.motion.ProcessAll(s.Motion, s.At) {
		out = e.gesture(out, r)
	}

	for _, ev := range e.touch.Process(s.Touch, s.At) {
		out = e.touchEvent(out, ev)
	}

	e.updateDisplay(s)
	e.publish(out)
	return out
}

func (e *Engine) press(out []Firing, b gamepad.Button, ts time.Time) []Firing {
	e.held = e.held.With(b)
	if e.resolver.ButtonDown(b) {
		e.logger.Debug("layer activator", "button", b, "active", len(e.resolver.ActiveLayers()))
		return out
	}

	completed := e.sequences.ProcessAll(b, ts)
	r := e.chords.Press(b, ts)

	switch r.Outcome {
	case chord.Fired:
		// A chord beats any sequence completing on the same press.
		if len(completed) > 0 {
			e.logger.Debug("sequence completion discarded for chord", "chord", r.Chord.ID, "sequences", len(completed))
		}
		return e.chordFiring(out, r.Chord, ts)
	case chord.Passthrough:
		out = e.single(out, b, ts)
	}

	for _, s := range completed {
		out = e.sequenceFiring(out, s, ts)
	}
	return out
}

func (e *Engine) release(out []Firing, b gamepad.Button, ts time.Time) []Firing {
	e.held = e.held.Without(b)
	if e.resolver.ButtonUp(b) {
		return out
	}
	if e.chords.Release(b) {
		out = e.single(out, b, ts)
	}
	return out
}

func (e *Engine) fire(out []Firing, a action.Action, m *profile.Mapping, at time.Time) []Firing {
	return append(out, Firing{Action: a, Mapping: m, ProfileID: e.resolver.Profile().ID, At: at})
}

func (e *Engine) single(out []Firing, b gamepad.Button, at time.Time) []Firing {
	a := action.SinglePress{Button: b}
	m, layer, ok := e.resolver.ResolveButton(b)
	if !ok {
		return e.fire(out, a, nil, at)
	}
	if layer != nil {
		a.Layer = layer.Name
	}
	return e.fire(out, a, &m, at)
}

func (e *Engine) chordFiring(out []Firing, c chord.Chord, at time.Time) []Firing {
	a := action.Chord{ID: c.ID, Buttons: c.Buttons}
	id, err := uuid.Parse(c.ID)
	if err != nil {
		return e.fire(out, a, nil, at)
	}
	cm, ok := e.resolver.ResolveChord(id)
	if !ok {
		return e.fire(out, a, nil, at)
	}
	return e.fire(out, a, &cm.Mapping, at)
}

func (e *Engine) sequenceFiring(out []Firing, s sequence.Sequence, at time.Time) []Firing {
	a := action.Sequence{ID: s.ID, Steps: s.Steps}
	id, err := uuid.Parse(s.ID)
	if err != nil {
		return e.fire(out, a, nil, at)
	}
	sm, ok := e.resolver.ResolveSequence(id)
	if !ok {
		return e.fire(out, a, nil, at)
	}
	return e.fire(out, a, &sm.Mapping, at)
}

func (e *Engine) gesture(out []Firing, r motion.Result) []Firing {
	a := action.Gesture{Kind: r.Kind, Peak: r.Peak}
	if m, ok := e.resolver.ResolveGesture(r.Kind); ok {
		return e.fire(out, a, &m, r.At)
	}
	return e.fire(out, a, nil, r.At)
}

func (e *Engine) touchEvent(out []Firing, ev touchpad.Event) []Firing {
	var a action.Action
	switch ev.Kind {
	case touchpad.KindTap:
		a = action.TouchpadTap{Position: ev.Position}
	case touchpad.KindLongTap:
		a = action.TouchpadLongTap{Position: ev.Position}
	case touchpad.KindTwoFingerTap:
		a = action.TouchpadTwoFingerTap{Position: ev.Position}
	case touchpad.KindTwoFingerLongTap:
		a = action.TouchpadTwoFingerLongTap{Position: ev.Position}
	case touchpad.KindPan:
		return e.fire(out, action.TouchpadPan{Delta: ev.Delta, Fingers: ev.Fingers}, nil, ev.At)
	case touchpad.KindPinch:
		return e.fire(out, action.TouchpadPinch{Delta: ev.Pinch}, nil, ev.At)
	case touchpad.KindMomentum:
		return e.fire(out, action.MomentumScroll{Delta: ev.Delta}, nil, ev.At)
	default:
		return out
	}

	// Taps resolve through their synthetic buttons, so layers apply.
	b, _ := ev.Kind.Button()
	if m, _, ok := e.resolver.ResolveButton(b); ok {
		return e.fire(out, a, &m, ev.At)
	}
	return e.fire(out, a, nil, ev.At)
}

func (e *Engine) updateDisplay(s gamepad.Sample) {
	ds := s.Display()
	ds.Held = e.held
	next := gamepad.Resolve(e.display, ds, e.cfg.Deadzone)
	changed := !gamepad.ComputeDelta(e.display, next).IsEmpty()
	e.display = next
	if !changed {
		return
	}
	select {
	case e.displays <- next:
	default:
	}
}

func (e *Engine) publish(out []Firing) {
	for _, f := range out {
		select {
		case e.firings <- f:
		default:
			e.logger.Debug("firing dropped, dispatch not keeping up", "action", f.Action.Type())
		}
	}
}

// Tick advances momentum scrolling at now.
func (e *Engine) Tick(now time.Time) (Firing, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ev, ok := e.touch.Tick(now)
	if !ok {
		return Firing{}, false
	}
	out := e.touchEvent(nil, ev)
	e.publish(out)
	return out[0], true
}

// sampleClock maps wall time onto the sample timeline so momentum ticks
// line up with sample timestamps, including replayed ones.
func (e *Engine) sampleClock(wall time.Time) time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastAt.IsZero() {
		return wall
	}
	return e.lastAt.Add(gamepad.Elapsed(e.lastWall, wall))
}

// Run consumes samples and drives the momentum ticker until ctx ends or
// samples is closed.
func (e *Engine) Run(ctx context.Context, samples <-chan gamepad.Sample) error {
	ticker := time.NewTicker(e.cfg.Touchpad.TickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s, ok := <-samples:
			if !ok {
				return nil
			}
			e.HandleSample(s)
		case now := <-ticker.C:
			e.Tick(e.sampleClock(now))
		}
	}
}

// Reset drops all in-flight detector state and releases momentary layers.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reset("reset")
}

// FocusLost is Reset for when the foreground application changes.
func (e *Engine) FocusLost() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reset("focus lost")
}

func (e *Engine) reset(reason string) {
	e.chords.Reset()
	e.sequences.Reset()
	e.motion.Reset()
	e.touch.Reset()
	e.resolver.ReleaseMomentary()
	e.logger.Info("detectors reset", "reason", reason)
}

// SelectProfile activates the profile with id and resets every detector.
func (e *Engine) SelectProfile(id uuid.UUID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.profiles.SetActive(id) {
		e.logger.Warn("unknown profile", "id", id)
		return false
	}
	e.bindProfile()
	e.reset("profile switch")
	e.logger.Info("profile selected", "id", id, "name", e.resolver.Profile().Name)
	return true
}

// ReplaceProfiles swaps in a new profile set, e.g. after a config reload.
func (e *Engine) ReplaceProfiles(profiles []*profile.Profile) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.profiles.Replace(profiles)
	e.bindProfile()
	e.reset("profiles replaced")
}

// UpdateConfig applies new thresholds. Deferred single presses are emitted
// under the old config, then every detector starts over.
func (e *Engine) UpdateConfig(cfg Config) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []Firing
	for _, b := range e.chords.Flush() {
		out = e.single(out, b, e.lastAt)
	}

	cfg.Buffer = e.cfg.Buffer
	e.cfg = cfg
	e.motion = motion.New(cfg.Motion)
	e.touch = touchpad.New(cfg.Touchpad)
	e.bindProfile()
	e.reset("config updated")
	e.publish(out)
}

// Mutate runs fn against the active profile's resolver. When fn reports a
// change, chord and sequence detectors are rebuilt from the profile. Held
// and deferred chord members carry over; a deferred press whose button
// left every chord is emitted as a single right away.
func (e *Engine) Mutate(fn func(r *profile.Resolver) bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !fn(e.resolver) {
		return false
	}
	prev := e.chords
	e.rebuildDetectors()
	var out []Firing
	for _, b := range e.chords.Carry(prev) {
		out = e.single(out, b, e.lastAt)
	}
	e.publish(out)
	return true
}

// ActiveProfile returns a copy of the active profile.
func (e *Engine) ActiveProfile() *profile.Profile {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resolver.Profile().Clone()
}

// Profiles lists every managed profile.
func (e *Engine) Profiles() []ProfileSummary {
	e.mu.Lock()
	defer e.mu.Unlock()

	active := e.resolver.Profile().ID
	var out []ProfileSummary
	for _, p := range e.profiles.Profiles() {
		out = append(out, ProfileSummary{ID: p.ID, Name: p.Name, Active: p.ID == active, Default: p.IsDefault})
	}
	return out
}

// Display returns the current display state.
func (e *Engine) Display() gamepad.DisplayState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.display
}

// Replay feeds samples through the engine on their own timeline. Momentum
// is ticked between samples as Run would, and after the last sample until
// it stops. Every firing is handed to emit in order.
func (e *Engine) Replay(samples []gamepad.Sample, emit func(Firing)) {
	interval := e.cfg.Touchpad.TickInterval()
	var last time.Time
	for _, s := range samples {
		if !last.IsZero() {
			for t := last.Add(interval); t.Before(s.At); t = t.Add(interval) {
				if f, ok := e.Tick(t); ok {
					emit(f)
				}
			}
		}
		for _, f := range e.HandleSample(s) {
			emit(f)
		}
		last = s.At
	}
	if last.IsZero() {
		return
	}
	for t := last.Add(interval); ; t = t.Add(interval) {
		f, ok := e.Tick(t)
		if !ok {
			return
		}
		emit(f)
	}
}
