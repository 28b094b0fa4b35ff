// Package replay feeds scripted controller input to the engine. A script
// is a YAML list of ticks at offsets from the start of the replay:
//
//	controller: Test Pad
//	ticks:
//	  - at: 0s
//	    press: [a]
//	  - at: 20ms
//	    press: [b]
//	    left_stick: {x: 0.4, y: 0}
//	  - at: 300ms
//	    release: [a, b]
//
// Analog, touch and motion fields keep their previous value when a tick
// leaves them out.
package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/soar/padmapper/internal/gamepad"
)

var ErrEmptyScript = errors.New("replay script has no ticks")

type Script struct {
	Controller string `yaml:"controller"`
	Ticks      []Tick `yaml:"ticks"`
}

type Tick struct {
	At           time.Duration        `yaml:"at"`
	Press        []gamepad.Button     `yaml:"press,flow,omitempty"`
	Release      []gamepad.Button     `yaml:"release,flow,omitempty"`
	LeftStick    *gamepad.Vector      `yaml:"left_stick,omitempty"`
	RightStick   *gamepad.Vector      `yaml:"right_stick,omitempty"`
	LeftTrigger  *float64             `yaml:"left_trigger,omitempty"`
	RightTrigger *float64             `yaml:"right_trigger,omitempty"`
	Touch        *gamepad.TouchSample `yaml:"touch,omitempty"`
	Motion       *gamepad.MotionRates `yaml:"motion,omitempty"`
}

// Decode reads a script, rejecting unknown fields.
func Decode(r io.Reader) (*Script, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var s Script
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyScript
		}
		return nil, fmt.Errorf("decode replay script: %w", err)
	}
	if len(s.Ticks) == 0 {
		return nil, ErrEmptyScript
	}
	for i, t := range s.Ticks {
		if t.At < 0 {
			return nil, fmt.Errorf("tick %d: negative offset %s", i, t.At)
		}
		for _, b := range slices.Concat(t.Press, t.Release) {
			if b.IsTouchpadSynthetic() {
				return nil, fmt.Errorf("tick %d: %s is recognized from touch input, script the touch instead", i, b)
			}
		}
	}
	return &s, nil
}

func LoadFile(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay script: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Samples expands the script into samples timed from start.
func (s *Script) Samples(start time.Time) []gamepad.Sample {
	out := make([]gamepad.Sample, 0, len(s.Ticks))
	cur := gamepad.Sample{Controller: s.Controller}
	var held gamepad.ButtonMask

	for _, t := range s.Ticks {
		at := start.Add(t.At)
		cur.At = at
		cur.Buttons = nil

		for _, b := range t.Press {
			if b.Valid() && !held.Has(b) {
				held = held.With(b)
				cur.Buttons = append(cur.Buttons, gamepad.ButtonEvent{Button: b, Pressed: true, At: at})
			}
		}
		for _, b := range t.Release {
			if held.Has(b) {
				held = held.Without(b)
				cur.Buttons = append(cur.Buttons, gamepad.ButtonEvent{Button: b, At: at})
			}
		}

		if t.LeftStick != nil {
			cur.LeftStick = *t.LeftStick
		}
		if t.RightStick != nil {
			cur.RightStick = *t.RightStick
		}
		if t.LeftTrigger != nil {
			cur.LeftTrigger = *t.LeftTrigger
		}
		if t.RightTrigger != nil {
			cur.RightTrigger = *t.RightTrigger
		}
		if t.Touch != nil {
			cur.Touch = *t.Touch
		}
		if t.Motion != nil {
			cur.Motion = *t.Motion
		}
		out = append(out, cur)
	}
	return out
}

// Source replays a script as a gamepad.Source. The sample channel is
// closed when the script ends.
type Source struct {
	script   *Script
	realtime bool
	logger   *slog.Logger
	samples  chan gamepad.Sample
	now      func() time.Time
}

// NewSource replays script. With realtime set, ticks are spaced by their
// offsets; otherwise they are sent as fast as the consumer takes them.
func NewSource(script *Script, realtime bool, logger *slog.Logger) *Source {
	return &Source{
		script:   script,
		realtime: realtime,
		logger:   logger,
		samples:  make(chan gamepad.Sample, 64),
		now:      time.Now,
	}
}

func (s *Source) Samples() <-chan gamepad.Sample {
	return s.samples
}

func (s *Source) Run(ctx context.Context) error {
	defer close(s.samples)

	start := s.now()
	samples := s.script.Samples(start)
	s.logger.Info("replay started", "ticks", len(samples), "realtime", s.realtime)

	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for _, sample := range samples {
		if s.realtime {
			timer.Reset(time.Until(sample.At))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s.samples <- sample:
		}
	}
	s.logger.Info("replay finished", "ticks", len(samples))
	return nil
}
