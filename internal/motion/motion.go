// Package motion recognizes quick tilt and steer flicks from gyroscope
// angular rates.
package motion

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/soar/padmapper/internal/gamepad"
)

type Kind uint8

const (
	KindTiltForward Kind = iota
	KindTiltBack
	KindSteerLeft
	KindSteerRight
)

var kindNames = [...]string{
	KindTiltForward: "tilt_forward",
	KindTiltBack:    "tilt_back",
	KindSteerLeft:   "steer_left",
	KindSteerRight:  "steer_right",
}

// AllKinds lists every gesture kind.
func AllKinds() []Kind {
	return []Kind{KindTiltForward, KindTiltBack, KindSteerLeft, KindSteerRight}
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("gesture(%d)", uint8(k))
}

func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range kindNames {
		if n == name {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown gesture %q", s)
}

func (k Kind) MarshalText() ([]byte, error) {
	if int(k) >= len(kindNames) {
		return nil, fmt.Errorf("cannot marshal invalid gesture %d", uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(p []byte) error {
	v, err := ParseKind(string(p))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Config holds the thresholds shared by both axes. Velocities are in
// radians per second.
type Config struct {
	ActivationThreshold float64
	MinPeakVelocity     float64
	CompletionRatio     float64
	MaxDuration         time.Duration
}

func DefaultConfig() Config {
	return Config{
		ActivationThreshold: 1.5,
		MinPeakVelocity:     3.0,
		CompletionRatio:     0.3,
		MaxDuration:         400 * time.Millisecond,
	}
}

type Result struct {
	Kind Kind
	Peak float64
	At   time.Time
}

type axis uint8

const (
	axisPitch axis = iota
	axisRoll
)

type phase uint8

const (
	phaseIdle phase = iota
	phaseTracking
	phasePeaked
)

type axisState struct {
	phase phase
	peak  float64
	sign  float64
	start time.Time
}

// Detector runs one state machine per axis; the two never share state.
type Detector struct {
	cfg  Config
	axes [2]axisState
}

func New(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// ProcessAll evaluates pitch then roll and returns zero, one or two results.
func (d *Detector) ProcessAll(rates gamepad.MotionRates, ts time.Time) []Result {
	var out []Result
	if r, ok := d.step(axisPitch, rates.Pitch, ts); ok {
		out = append(out, r)
	}
	if r, ok := d.step(axisRoll, rates.Roll, ts); ok {
		out = append(out, r)
	}
	return out
}

// Process is ProcessAll returning only the first result.
func (d *Detector) Process(rates gamepad.MotionRates, ts time.Time) (Result, bool) {
	out := d.ProcessAll(rates, ts)
	if len(out) == 0 {
		return Result{}, false
	}
	return out[0], true
}

func (d *Detector) Reset() {
	d.axes = [2]axisState{}
}

func (d *Detector) step(a axis, v float64, ts time.Time) (Result, bool) {
	s := &d.axes[a]
	mag := math.Abs(v)

	switch s.phase {
	case phaseIdle:
		if mag <= d.cfg.ActivationThreshold {
			return Result{}, false
		}
		*s = axisState{phase: phaseTracking, peak: mag, sign: math.Copysign(1, v), start: ts}
		if s.peak >= d.cfg.MinPeakVelocity {
			s.phase = phasePeaked
		}

	case phaseTracking:
		if gamepad.Elapsed(s.start, ts) > d.cfg.MaxDuration {
			*s = axisState{}
			return Result{}, false
		}
		s.track(v, mag)
		if s.peak >= d.cfg.MinPeakVelocity {
			s.phase = phasePeaked
		}

	case phasePeaked:
		s.track(v, mag)
		if mag <= s.peak*d.cfg.CompletionRatio {
			r := Result{Kind: kindFor(a, s.sign), Peak: s.peak, At: ts}
			*s = axisState{}
			return r, true
		}
	}
	return Result{}, false
}

func (s *axisState) track(v, mag float64) {
	if mag > s.peak {
		s.peak = mag
		s.sign = math.Copysign(1, v)
	}
}

// Positive pitch tilts the top of the controller back; negative roll
// steers left.
func kindFor(a axis, sign float64) Kind {
	if a == axisPitch {
		if sign > 0 {
			return KindTiltBack
		}
		return KindTiltForward
	}
	if sign < 0 {
		return KindSteerLeft
	}
	return KindSteerRight
}
