// Package sequence recognizes ordered multi-step button presses.
package sequence

import (
	"time"

	"github.com/soar/padmapper/internal/gamepad"
)

// Sequence is an ordered run of button presses. StepTimeout bounds the gap
// between consecutive steps.
type Sequence struct {
	ID          string
	Steps       []gamepad.Button
	StepTimeout time.Duration
}

type progress struct {
	step int
	last time.Time
}

// Detector tracks every configured sequence independently. Tolerance is
// added to each sequence's step timeout.
type Detector struct {
	sequences []Sequence
	progress  []progress
	tolerance time.Duration
}

// New builds a detector. Sequences with fewer than two steps are ignored.
func New(sequences []Sequence, tolerance time.Duration) *Detector {
	d := &Detector{tolerance: tolerance}
	for _, s := range sequences {
		if len(s.Steps) < 2 {
			continue
		}
		d.sequences = append(d.sequences, s)
	}
	d.progress = make([]progress, len(d.sequences))
	return d
}

// Process feeds one button-down and returns the first sequence it completes.
func (d *Detector) Process(b gamepad.Button, ts time.Time) (Sequence, bool) {
	done := d.ProcessAll(b, ts)
	if len(done) == 0 {
		return Sequence{}, false
	}
	return done[0], true
}

// ProcessAll feeds one button-down and returns every sequence it completes,
// in configuration order.
func (d *Detector) ProcessAll(b gamepad.Button, ts time.Time) []Sequence {
	var done []Sequence
	for i, s := range d.sequences {
		p := &d.progress[i]

		if p.step > 0 && gamepad.Elapsed(p.last, ts) > s.StepTimeout+d.tolerance {
			p.step = 0
		}

		switch {
		case s.Steps[p.step] == b:
			p.step++
			p.last = ts
		case s.Steps[0] == b:
			p.step = 1
			p.last = ts
		default:
			p.step = 0
		}

		if p.step == len(s.Steps) {
			p.step = 0
			done = append(done, s)
		}
	}
	return done
}

// Step returns how many steps of the sequence with id have been matched.
func (d *Detector) Step(id string) int {
	for i, s := range d.sequences {
		if s.ID == id {
			return d.progress[i].step
		}
	}
	return 0
}

func (d *Detector) Reset() {
	clear(d.progress)
}
