package engine

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soar/padmapper/internal/action"
	"github.com/soar/padmapper/internal/gamepad"
	"github.com/soar/padmapper/internal/motion"
	"github.com/soar/padmapper/internal/profile"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func ms(n int) time.Time { return t0.Add(time.Duration(n) * time.Millisecond) }

func newEngine(t *testing.T, profiles ...*profile.Profile) *Engine {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(DefaultConfig(), profile.NewManager(profiles), logger)
}

func press(at time.Time, bs ...gamepad.Button) gamepad.Sample {
	s := gamepad.Sample{At: at}
	for _, b := range bs {
		s.Buttons = append(s.Buttons, gamepad.ButtonEvent{Button: b, Pressed: true, At: at})
	}
	return s
}

func release(at time.Time, bs ...gamepad.Button) gamepad.Sample {
	s := gamepad.Sample{At: at}
	for _, b := range bs {
		s.Buttons = append(s.Buttons, gamepad.ButtonEvent{Button: b, At: at})
	}
	return s
}

func feed(e *Engine, samples ...gamepad.Sample) []Firing {
	var out []Firing
	for _, s := range samples {
		out = append(out, e.HandleSample(s)...)
	}
	return out
}

func ofType[T action.Action](fs []Firing) []Firing {
	var out []Firing
	for _, f := range fs {
		if _, ok := f.Action.(T); ok {
			out = append(out, f)
		}
	}
	return out
}

func TestChordFiresOnceWithoutSinglePresses(t *testing.T) {
	e := newEngine(t)
	var chordID uuid.UUID
	require.True(t, e.Mutate(func(r *profile.Resolver) bool {
		c, ok := r.AddChord([]gamepad.Button{gamepad.ButtonA, gamepad.ButtonB}, profile.Mapping{KeyCode: 10})
		chordID = c.ID
		return ok
	}))

	fs := feed(e,
		press(ms(0), gamepad.ButtonA),
		press(ms(20), gamepad.ButtonB),
		gamepad.Sample{At: ms(200)},
		release(ms(300), gamepad.ButtonA),
		release(ms(310), gamepad.ButtonB),
	)

	require.Len(t, fs, 1)
	c, ok := fs[0].Action.(action.Chord)
	require.True(t, ok)
	assert.Equal(t, chordID.String(), c.ID)
	require.NotNil(t, fs[0].Mapping)
	assert.Equal(t, uint16(10), fs[0].Mapping.KeyCode)
	assert.Equal(t, ms(20), fs[0].At)
	assert.Equal(t, e.ActiveProfile().ID, fs[0].ProfileID)
}

func TestChordMemberFlushedAfterWindow(t *testing.T) {
	e := newEngine(t)
	e.Mutate(func(r *profile.Resolver) bool {
		_, ok := r.AddChord([]gamepad.Button{gamepad.ButtonA, gamepad.ButtonB}, profile.Mapping{KeyCode: 10})
		return ok
	})

	fs := feed(e, press(ms(0), gamepad.ButtonA))
	assert.Empty(t, fs, "chord member is deferred")

	fs = feed(e, gamepad.Sample{At: ms(60)})
	require.Len(t, fs, 1)
	assert.Equal(t, action.SinglePress{Button: gamepad.ButtonA}, fs[0].Action)
	assert.Nil(t, fs[0].Mapping)
}

func TestChordMemberFlushedOnQuickRelease(t *testing.T) {
	e := newEngine(t)
	e.Mutate(func(r *profile.Resolver) bool {
		r.SetButtonMapping(gamepad.ButtonA, profile.Mapping{KeyCode: 1})
		_, ok := r.AddChord([]gamepad.Button{gamepad.ButtonA, gamepad.ButtonB}, profile.Mapping{KeyCode: 10})
		return ok
	})

	fs := feed(e, press(ms(0), gamepad.ButtonA), release(ms(10), gamepad.ButtonA))
	require.Len(t, fs, 1)
	assert.Equal(t, action.SinglePress{Button: gamepad.ButtonA}, fs[0].Action)
	require.NotNil(t, fs[0].Mapping)
	assert.Equal(t, uint16(1), fs[0].Mapping.KeyCode)
}

func TestSinglePressPassthrough(t *testing.T) {
	e := newEngine(t)
	e.Mutate(func(r *profile.Resolver) bool {
		return r.SetButtonMapping(gamepad.ButtonX, profile.Mapping{KeyCode: 7})
	})

	fs := feed(e, press(ms(0), gamepad.ButtonX, gamepad.ButtonY))
	require.Len(t, fs, 2)
	require.NotNil(t, fs[0].Mapping)
	assert.Equal(t, uint16(7), fs[0].Mapping.KeyCode)
	assert.Equal(t, action.SinglePress{Button: gamepad.ButtonY}, fs[1].Action)
	assert.Nil(t, fs[1].Mapping, "unmapped presses are still reported")
}

func TestMomentaryLayer(t *testing.T) {
	e := newEngine(t)
	e.Mutate(func(r *profile.Resolver) bool {
		r.SetButtonMapping(gamepad.ButtonA, profile.Mapping{KeyCode: 1})
		l, ok := r.CreateLayer("Shift", gamepad.ButtonLeftBumper, profile.LayerMomentary)
		require.True(t, ok)
		return r.SetLayerMapping(l.ID, gamepad.ButtonA, profile.Mapping{KeyCode: 99})
	})

	fs := feed(e, press(ms(0), gamepad.ButtonLeftBumper))
	assert.Empty(t, fs, "activator is consumed")

	fs = feed(e, press(ms(100), gamepad.ButtonA), release(ms(150), gamepad.ButtonA))
	require.Len(t, fs, 1)
	assert.Equal(t, action.SinglePress{Button: gamepad.ButtonA, Layer: "Shift"}, fs[0].Action)
	assert.Equal(t, uint16(99), fs[0].Mapping.KeyCode)

	fs = feed(e, release(ms(200), gamepad.ButtonLeftBumper), press(ms(300), gamepad.ButtonA))
	require.Len(t, fs, 1)
	assert.Equal(t, action.SinglePress{Button: gamepad.ButtonA}, fs[0].Action)
	assert.Equal(t, uint16(1), fs[0].Mapping.KeyCode)
}

func TestSequenceFires(t *testing.T) {
	e := newEngine(t)
	e.Mutate(func(r *profile.Resolver) bool {
		_, ok := r.AddSequence(
			[]gamepad.Button{gamepad.ButtonDpadUp, gamepad.ButtonDpadUp, gamepad.ButtonDpadDown},
			300*time.Millisecond, profile.Mapping{Command: "konami"})
		return ok
	})

	fs := feed(e,
		press(ms(0), gamepad.ButtonDpadUp), release(ms(50), gamepad.ButtonDpadUp),
		press(ms(100), gamepad.ButtonDpadUp), release(ms(150), gamepad.ButtonDpadUp),
		press(ms(200), gamepad.ButtonDpadDown),
	)

	assert.Len(t, ofType[action.SinglePress](fs), 3)
	seqs := ofType[action.Sequence](fs)
	require.Len(t, seqs, 1)
	assert.Equal(t, "konami", seqs[0].Mapping.Command)
	assert.Equal(t, ms(200), seqs[0].At)
}

func TestChordBeatsSequenceOnSamePress(t *testing.T) {
	e := newEngine(t)
	e.Mutate(func(r *profile.Resolver) bool {
		r.AddChord([]gamepad.Button{gamepad.ButtonA, gamepad.ButtonB}, profile.Mapping{KeyCode: 10})
		_, ok := r.AddSequence([]gamepad.Button{gamepad.ButtonA, gamepad.ButtonB}, time.Second, profile.Mapping{KeyCode: 20})
		return ok
	})

	fs := feed(e, press(ms(0), gamepad.ButtonA), press(ms(20), gamepad.ButtonB))
	require.Len(t, fs, 1)
	assert.IsType(t, action.Chord{}, fs[0].Action)
	assert.Empty(t, ofType[action.Sequence](fs))
}

func TestGestureFiring(t *testing.T) {
	e := newEngine(t)
	e.Mutate(func(r *profile.Resolver) bool {
		r.SetGestureMapping(motion.KindTiltBack, profile.Mapping{KeyCode: 5})
		return true
	})

	fs := feed(e,
		gamepad.Sample{At: ms(0), Motion: gamepad.MotionRates{Pitch: 4}},
		gamepad.Sample{At: ms(50), Motion: gamepad.MotionRates{Pitch: 0.5}},
	)
	require.Len(t, fs, 1)
	g, ok := fs[0].Action.(action.Gesture)
	require.True(t, ok)
	assert.Equal(t, motion.KindTiltBack, g.Kind)
	assert.InDelta(t, 4.0, g.Peak, 1e-9)
	assert.Equal(t, uint16(5), fs[0].Mapping.KeyCode)
}

func TestTouchTapResolvesThroughSyntheticButton(t *testing.T) {
	e := newEngine(t)
	e.Mutate(func(r *profile.Resolver) bool {
		return r.SetButtonMapping(gamepad.ButtonTouchpadTap, profile.Mapping{KeyCode: 42})
	})

	touching := gamepad.Sample{At: ms(0)}
	touching.Touch.Primary = gamepad.Contact{Touching: true, Position: gamepad.Vector{X: 0.2, Y: -0.1}}

	fs := feed(e, touching, gamepad.Sample{At: ms(100)})
	require.Len(t, fs, 1)
	tap, ok := fs[0].Action.(action.TouchpadTap)
	require.True(t, ok)
	assert.Equal(t, gamepad.Vector{X: 0.2, Y: -0.1}, tap.Position)
	assert.Equal(t, uint16(42), fs[0].Mapping.KeyCode)
}

func TestResetDropsPendingChordMembers(t *testing.T) {
	e := newEngine(t)
	e.Mutate(func(r *profile.Resolver) bool {
		_, ok := r.AddChord([]gamepad.Button{gamepad.ButtonA, gamepad.ButtonB}, profile.Mapping{KeyCode: 10})
		return ok
	})

	feed(e, press(ms(0), gamepad.ButtonA))
	e.Reset()
	fs := feed(e, release(ms(10), gamepad.ButtonA), gamepad.Sample{At: ms(500)})
	assert.Empty(t, fs)
}

func addABChord(e *Engine) {
	e.Mutate(func(r *profile.Resolver) bool {
		_, ok := r.AddChord([]gamepad.Button{gamepad.ButtonA, gamepad.ButtonB}, profile.Mapping{KeyCode: 10})
		return ok
	})
}

func singles(fs []Firing) []gamepad.Button {
	var out []gamepad.Button
	for _, f := range ofType[action.SinglePress](fs) {
		out = append(out, f.Action.(action.SinglePress).Button)
	}
	return out
}

func TestExpiredChordMemberPrecedesLaterPress(t *testing.T) {
	e := newEngine(t)
	addABChord(e)

	fs := feed(e, press(ms(0), gamepad.ButtonA), press(ms(60), gamepad.ButtonX))
	assert.Equal(t, []gamepad.Button{gamepad.ButtonA, gamepad.ButtonX}, singles(fs))
	assert.Equal(t, ms(60), fs[0].At)

	// Same ordering when both edges arrive in one sample.
	e.Reset()
	s := press(ms(1000), gamepad.ButtonB)
	s.Buttons = append(s.Buttons, gamepad.ButtonEvent{Button: gamepad.ButtonY, Pressed: true, At: ms(1080)})
	s.At = ms(1080)
	fs = feed(e, s)
	assert.Equal(t, []gamepad.Button{gamepad.ButtonB, gamepad.ButtonY}, singles(fs))
}

func TestMutateKeepsDeferredChordMember(t *testing.T) {
	e := newEngine(t)
	addABChord(e)

	require.Empty(t, feed(e, press(ms(0), gamepad.ButtonA)))
	require.True(t, e.Mutate(func(r *profile.Resolver) bool {
		return r.SetButtonMapping(gamepad.ButtonY, profile.Mapping{KeyCode: 5})
	}))

	fs := feed(e, gamepad.Sample{At: ms(100)}, release(ms(200), gamepad.ButtonA))
	assert.Equal(t, []gamepad.Button{gamepad.ButtonA}, singles(fs))
}

func TestMutateKeepsHeldChordMember(t *testing.T) {
	e := newEngine(t)
	addABChord(e)

	feed(e, press(ms(0), gamepad.ButtonA))
	e.Mutate(func(r *profile.Resolver) bool {
		return r.SetButtonMapping(gamepad.ButtonY, profile.Mapping{KeyCode: 5})
	})

	fs := feed(e, press(ms(20), gamepad.ButtonB))
	require.Len(t, fs, 1)
	assert.IsType(t, action.Chord{}, fs[0].Action)
}

func TestMutateEmitsPressThatLeftEveryChord(t *testing.T) {
	e := newEngine(t)
	var id uuid.UUID
	e.Mutate(func(r *profile.Resolver) bool {
		c, ok := r.AddChord([]gamepad.Button{gamepad.ButtonA, gamepad.ButtonB}, profile.Mapping{KeyCode: 10})
		id = c.ID
		return ok
	})

	feed(e, press(ms(0), gamepad.ButtonA))
	require.True(t, e.Mutate(func(r *profile.Resolver) bool { return r.RemoveChord(id) }))

	select {
	case f := <-e.Firings():
		assert.Equal(t, action.SinglePress{Button: gamepad.ButtonA}, f.Action)
	default:
		t.Fatal("deferred press was not emitted")
	}
	assert.Empty(t, feed(e, gamepad.Sample{At: ms(100)}, release(ms(200), gamepad.ButtonA)))
}

func TestUpdateConfigFlushesDeferredAndResets(t *testing.T) {
	e := newEngine(t)
	addABChord(e)
	e.Mutate(func(r *profile.Resolver) bool {
		l, _ := r.CreateLayer("Shift", gamepad.ButtonLeftBumper, profile.LayerMomentary)
		return r.SetLayerMapping(l.ID, gamepad.ButtonX, profile.Mapping{KeyCode: 99})
	})

	feed(e, press(ms(0), gamepad.ButtonLeftBumper), press(ms(10), gamepad.ButtonA))
	cfg := DefaultConfig()
	cfg.ChordWindow = 80 * time.Millisecond
	e.UpdateConfig(cfg)

	select {
	case f := <-e.Firings():
		assert.Equal(t, action.SinglePress{Button: gamepad.ButtonA}, f.Action)
	default:
		t.Fatal("deferred press was not emitted")
	}

	// The momentary layer was released by the reset.
	fs := feed(e, press(ms(100), gamepad.ButtonX))
	require.Len(t, fs, 1)
	assert.Nil(t, fs[0].Mapping)
	assert.Empty(t, feed(e, release(ms(120), gamepad.ButtonA)))
}

func TestFocusLostReleasesMomentaryLayers(t *testing.T) {
	e := newEngine(t)
	e.Mutate(func(r *profile.Resolver) bool {
		l, _ := r.CreateLayer("Shift", gamepad.ButtonLeftBumper, profile.LayerMomentary)
		return r.SetLayerMapping(l.ID, gamepad.ButtonA, profile.Mapping{KeyCode: 99})
	})

	feed(e, press(ms(0), gamepad.ButtonLeftBumper))
	e.FocusLost()

	fs := feed(e, press(ms(100), gamepad.ButtonA))
	require.Len(t, fs, 1)
	assert.Nil(t, fs[0].Mapping)
}

func TestSelectProfile(t *testing.T) {
	a, b := profile.New("Desktop"), profile.New("Game")
	b.Buttons = map[gamepad.Button]profile.Mapping{gamepad.ButtonA: {KeyCode: 3}}
	e := newEngine(t, a, b)

	assert.Equal(t, "Desktop", e.ActiveProfile().Name)
	assert.False(t, e.SelectProfile(uuid.New()))

	require.True(t, e.SelectProfile(b.ID))
	assert.Equal(t, "Game", e.ActiveProfile().Name)

	fs := feed(e, press(ms(0), gamepad.ButtonA))
	require.Len(t, fs, 1)
	assert.Equal(t, uint16(3), fs[0].Mapping.KeyCode)
	assert.Equal(t, b.ID, fs[0].ProfileID)

	list := e.Profiles()
	require.Len(t, list, 2)
	assert.False(t, list[0].Active)
	assert.True(t, list[1].Active)
	assert.True(t, list[0].Default)
}

func TestReplaceProfilesRebuildsDetectors(t *testing.T) {
	e := newEngine(t)
	p := profile.New("Reloaded")
	r := profile.NewResolver(p, 0)
	r.AddChord([]gamepad.Button{gamepad.ButtonX, gamepad.ButtonY}, profile.Mapping{KeyCode: 11})

	e.ReplaceProfiles([]*profile.Profile{p})
	fs := feed(e, press(ms(0), gamepad.ButtonX, gamepad.ButtonY))
	require.Len(t, fs, 1)
	assert.IsType(t, action.Chord{}, fs[0].Action)
}

func TestDisplayPublishedOnChange(t *testing.T) {
	e := newEngine(t)

	e.HandleSample(gamepad.Sample{At: ms(0), LeftStick: gamepad.Vector{X: 0.5}})
	select {
	case ds := <-e.Displays():
		assert.Equal(t, gamepad.Vector{X: 0.5}, ds.DisplayLeftStick)
	default:
		t.Fatal("no display state published")
	}

	// Inside the deadzone nothing rendered changes.
	e.HandleSample(gamepad.Sample{At: ms(10), LeftStick: gamepad.Vector{X: 0.51}})
	select {
	case <-e.Displays():
		t.Fatal("unexpected display state")
	default:
	}
	assert.Equal(t, gamepad.Vector{X: 0.51}, e.Display().LeftStick)

	e.HandleSample(press(ms(20), gamepad.ButtonA))
	ds := <-e.Displays()
	assert.True(t, ds.Held.Has(gamepad.ButtonA))
}

func TestFiringsChannel(t *testing.T) {
	e := newEngine(t)
	e.HandleSample(press(ms(0), gamepad.ButtonMenu))

	select {
	case f := <-e.Firings():
		assert.Equal(t, action.SinglePress{Button: gamepad.ButtonMenu}, f.Action)
	default:
		t.Fatal("no firing published")
	}
}

func TestRunStopsWhenSamplesClose(t *testing.T) {
	e := newEngine(t)
	samples := make(chan gamepad.Sample, 2)
	samples <- press(ms(0), gamepad.ButtonA)
	close(samples)

	require.NoError(t, e.Run(context.Background(), samples))
	f := <-e.Firings()
	assert.Equal(t, action.SinglePress{Button: gamepad.ButtonA}, f.Action)
}

func TestRunStopsOnCancel(t *testing.T) {
	e := newEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, e.Run(ctx, make(chan gamepad.Sample)), context.Canceled)
}

func TestFiringJSON(t *testing.T) {
	f := Firing{
		Action:    action.Chord{ID: "c1", Buttons: []gamepad.Button{gamepad.ButtonA, gamepad.ButtonB}},
		Mapping:   &profile.Mapping{KeyCode: 10},
		ProfileID: uuid.New(),
		At:        t0,
	}
	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"chord"`)

	var back Firing
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, f.Action, back.Action)
	assert.Equal(t, f.ProfileID, back.ProfileID)
	assert.Equal(t, uint16(10), back.Mapping.KeyCode)
}

func touch(at time.Time, contacts ...gamepad.Vector) gamepad.Sample {
	s := gamepad.Sample{At: at}
	if len(contacts) > 0 {
		s.Touch.Primary = gamepad.Contact{Touching: true, Position: contacts[0]}
	}
	if len(contacts) > 1 {
		s.Touch.Secondary = gamepad.Contact{Touching: true, Position: contacts[1]}
	}
	return s
}

func TestReplayTicksMomentumToCompletion(t *testing.T) {
	e := newEngine(t)
	samples := []gamepad.Sample{
		touch(ms(0), gamepad.Vector{X: -0.3}, gamepad.Vector{X: 0.3}),
		touch(ms(10), gamepad.Vector{X: -0.2}, gamepad.Vector{X: 0.4}),
		touch(ms(20), gamepad.Vector{X: -0.1}, gamepad.Vector{X: 0.5}),
		touch(ms(30)),
	}

	var got []Firing
	e.Replay(samples, func(f Firing) { got = append(got, f) })

	assert.Len(t, ofType[action.TouchpadPan](got), 2)
	momentum := ofType[action.MomentumScroll](got)
	require.NotEmpty(t, momentum)
	for _, f := range momentum {
		assert.True(t, f.At.After(ms(30)), "momentum ticks follow the lift")
	}
	_, ok := e.Tick(momentum[len(momentum)-1].At.Add(time.Second))
	assert.False(t, ok, "momentum stopped")
}

func TestReplayEmpty(t *testing.T) {
	e := newEngine(t)
	called := false
	e.Replay(nil, func(Firing) { called = true })
	assert.False(t, called)
}
