// Package chord recognizes sets of buttons pressed together within a time
// window and defers the single presses of chord members until it is known
// whether they complete a chord.
package chord

import (
	"sort"
	"time"

	"github.com/soar/padmapper/internal/gamepad"
)

// Chord is a configured button set. Identity is the button-set content.
type Chord struct {
	ID      string
	Buttons []gamepad.Button
}

// Outcome tells the caller what to do with a button-down.
type Outcome uint8

const (
	// Passthrough means the button belongs to no chord and its single press
	// is emitted now.
	Passthrough Outcome = iota
	// Deferred means the single press is held back until Release or Expire.
	Deferred
	// Fired means a chord completed and the member single presses are
	// suppressed.
	Fired
)

// Result is the outcome of one Press. Chord is set only when Fired.
type Result struct {
	Outcome Outcome
	Chord   Chord
}

type entry struct {
	chord Chord
	mask  gamepad.ButtonMask
}

// Detector tracks held chord members and their deferred single presses.
// It is not safe for concurrent use.
type Detector struct {
	window  time.Duration
	chords  []entry
	members gamepad.ButtonMask

	held    map[gamepad.Button]time.Time
	pending map[gamepad.Button]time.Time
	fired   map[string]bool
}

// New builds a detector. Chords with fewer than two distinct buttons are
// ignored; duplicate button sets keep the first one.
func New(chords []Chord, window time.Duration) *Detector {
	d := &Detector{
		window:  window,
		held:    make(map[gamepad.Button]time.Time),
		pending: make(map[gamepad.Button]time.Time),
		fired:   make(map[string]bool),
	}
	seen := make(map[gamepad.ButtonMask]bool)
	for _, c := range chords {
		mask := gamepad.MaskOf(c.Buttons...)
		if len(mask.Buttons()) < 2 || seen[mask] {
			continue
		}
		seen[mask] = true
		d.chords = append(d.chords, entry{chord: c, mask: mask})
		d.members |= mask
	}
	// Larger chords first so {a,b,c} wins over {a,b} when both complete.
	sort.SliceStable(d.chords, func(i, j int) bool {
		return len(d.chords[i].mask.Buttons()) > len(d.chords[j].mask.Buttons())
	})
	return d
}

// IsMember reports whether b is part of any configured chord.
func (d *Detector) IsMember(b gamepad.Button) bool {
	return d.members.Has(b)
}

// Press records a button-down at ts.
func (d *Detector) Press(b gamepad.Button, ts time.Time) Result {
	if _, ok := d.held[b]; !ok {
		d.held[b] = ts
	}

	for _, e := range d.chords {
		if !e.mask.Has(b) || d.fired[e.chord.ID] {
			continue
		}
		if !d.complete(e.mask) {
			continue
		}
		d.fired[e.chord.ID] = true
		for _, m := range e.mask.Buttons() {
			delete(d.pending, m)
		}
		return Result{Outcome: Fired, Chord: e.chord}
	}

	if d.members.Has(b) {
		d.pending[b] = ts
		return Result{Outcome: Deferred}
	}
	return Result{Outcome: Passthrough}
}

// complete reports whether every member of mask is held and the member
// presses span no more than the window.
func (d *Detector) complete(mask gamepad.ButtonMask) bool {
	var first, last time.Time
	for i, m := range mask.Buttons() {
		at, ok := d.held[m]
		if !ok {
			return false
		}
		if i == 0 || at.Before(first) {
			first = at
		}
		if i == 0 || at.After(last) {
			last = at
		}
	}
	return gamepad.Elapsed(first, last) <= d.window
}

// Release records a button-up. It reports true when b still had a deferred
// single press, which the caller should now emit. Chords containing b stop
// tracking and may fire again once re-pressed.
func (d *Detector) Release(b gamepad.Button) bool {
	delete(d.held, b)
	for _, e := range d.chords {
		if e.mask.Has(b) {
			delete(d.fired, e.chord.ID)
		}
	}
	if _, ok := d.pending[b]; ok {
		delete(d.pending, b)
		return true
	}
	return false
}

// Expire returns deferred single presses whose window has run out by now,
// in button order.
func (d *Detector) Expire(now time.Time) []gamepad.Button {
	var out []gamepad.Button
	for b, at := range d.pending {
		if gamepad.Elapsed(at, now) > d.window {
			out = append(out, b)
			delete(d.pending, b)
		}
	}
	gamepad.SortButtons(out)
	return out
}

// Pending reports whether b has a deferred single press.
func (d *Detector) Pending(b gamepad.Button) bool {
	_, ok := d.pending[b]
	return ok
}

// Flush returns every deferred single press in button order and forgets
// them. Held buttons stay tracked.
func (d *Detector) Flush() []gamepad.Button {
	out := make([]gamepad.Button, 0, len(d.pending))
	for b := range d.pending {
		out = append(out, b)
	}
	clear(d.pending)
	gamepad.SortButtons(out)
	return out
}

// Carry moves the in-flight state of prev into d after the chord set
// changed. Held buttons and deferred presses keep their timestamps, and
// chords that already fired stay fired while they still exist. Deferred
// presses of buttons that no longer belong to any chord are returned in
// button order for the caller to emit as singles.
func (d *Detector) Carry(prev *Detector) []gamepad.Button {
	for b, at := range prev.held {
		d.held[b] = at
	}
	var orphans []gamepad.Button
	for b, at := range prev.pending {
		if d.members.Has(b) {
			d.pending[b] = at
		} else {
			orphans = append(orphans, b)
		}
	}
	for _, e := range d.chords {
		if prev.fired[e.chord.ID] {
			d.fired[e.chord.ID] = true
		}
	}
	gamepad.SortButtons(orphans)
	return orphans
}

func (d *Detector) Reset() {
	clear(d.held)
	clear(d.pending)
	clear(d.fired)
}
