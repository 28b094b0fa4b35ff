// Package config loads padmapper settings from a config file, PADMAPPER_*
// environment variables and command-line flags.
//
// Defaults and validation live here so the rest of the code can assume a
// well-formed Config.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/soar/padmapper/internal/engine"
	"github.com/soar/padmapper/internal/logging"
	"github.com/soar/padmapper/internal/motion"
	"github.com/soar/padmapper/internal/profile"
	"github.com/soar/padmapper/internal/touchpad"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Input     InputConfig     `mapstructure:"input" yaml:"input"`
	Detection DetectionConfig `mapstructure:"detection" yaml:"detection"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch" yaml:"dispatch"`
	Profiles  []ProfileFile   `mapstructure:"profiles" yaml:"profiles,omitempty"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
	// Minify the embedded viewer assets before serving them.
	Minify bool `mapstructure:"minify" yaml:"minify"`
	Tray   bool `mapstructure:"tray" yaml:"tray"`
}

const (
	SourceSDL    = "sdl"
	SourceReplay = "replay"
)

type InputConfig struct {
	Source     string `mapstructure:"source" yaml:"source"`
	PollHz     int    `mapstructure:"poll_hz" yaml:"poll_hz"`
	ReplayFile string `mapstructure:"replay_file" yaml:"replay_file,omitempty"`
	// Replay at recorded speed instead of as fast as possible.
	Realtime bool `mapstructure:"realtime" yaml:"realtime"`
}

type DetectionConfig struct {
	Deadzone          float64        `mapstructure:"deadzone" yaml:"deadzone"`
	ChordWindow       time.Duration  `mapstructure:"chord_window" yaml:"chord_window"`
	SequenceTolerance time.Duration  `mapstructure:"sequence_tolerance" yaml:"sequence_tolerance"`
	MaxLayers         int            `mapstructure:"max_layers" yaml:"max_layers"`
	Motion            MotionConfig   `mapstructure:"motion" yaml:"motion"`
	Touchpad          TouchpadConfig `mapstructure:"touchpad" yaml:"touchpad"`
}

// MotionConfig maps 1:1 to motion.Config.
type MotionConfig struct {
	ActivationThreshold float64       `mapstructure:"activation_threshold" yaml:"activation_threshold"`
	MinPeakVelocity     float64       `mapstructure:"min_peak_velocity" yaml:"min_peak_velocity"`
	CompletionRatio     float64       `mapstructure:"completion_ratio" yaml:"completion_ratio"`
	MaxDuration         time.Duration `mapstructure:"max_duration" yaml:"max_duration"`
}

// TouchpadConfig maps 1:1 to touchpad.Config.
type TouchpadConfig struct {
	TapMaxDuration        time.Duration `mapstructure:"tap_max_duration" yaml:"tap_max_duration"`
	TapMaxMovement        float64       `mapstructure:"tap_max_movement" yaml:"tap_max_movement"`
	LongTapThreshold      time.Duration `mapstructure:"long_tap_threshold" yaml:"long_tap_threshold"`
	LongTapMaxMovement    float64       `mapstructure:"long_tap_max_movement" yaml:"long_tap_max_movement"`
	TwoFingerWindow       time.Duration `mapstructure:"two_finger_window" yaml:"two_finger_window"`
	TwoFingerMinDistance  float64       `mapstructure:"two_finger_min_distance" yaml:"two_finger_min_distance"`
	PinchRatio            float64       `mapstructure:"pinch_ratio" yaml:"pinch_ratio"`
	ClassificationLock    time.Duration `mapstructure:"classification_lock" yaml:"classification_lock"`
	VelocitySmoothing     float64       `mapstructure:"velocity_smoothing" yaml:"velocity_smoothing"`
	MomentumHz            int           `mapstructure:"momentum_hz" yaml:"momentum_hz"`
	MomentumDecay         float64       `mapstructure:"momentum_decay" yaml:"momentum_decay"`
	MomentumStartVelocity float64       `mapstructure:"momentum_start_velocity" yaml:"momentum_start_velocity"`
	MomentumStopVelocity  float64       `mapstructure:"momentum_stop_velocity" yaml:"momentum_stop_velocity"`
	MomentumMaxIdle       time.Duration `mapstructure:"momentum_max_idle" yaml:"momentum_max_idle"`
	MomentumLiftWindow    time.Duration `mapstructure:"momentum_lift_window" yaml:"momentum_lift_window"`
}

type DispatchConfig struct {
	Buffer         int           `mapstructure:"buffer" yaml:"buffer"`
	WebhookTimeout time.Duration `mapstructure:"webhook_timeout" yaml:"webhook_timeout"`
	// Log every firing at info level.
	LogFirings bool `mapstructure:"log_firings" yaml:"log_firings"`
}

// Default returns a fully populated Config. Detection thresholds come from
// the detector packages so there is one source of truth.
func Default() Config {
	ec := engine.DefaultConfig()
	mc := ec.Motion
	tc := ec.Touchpad
	return Config{
		Log: LogConfig{Level: "info", Format: string(logging.FormatText)},
		Server: ServerConfig{
			Enabled: true,
			Addr:    "127.0.0.1:8080",
			Minify:  true,
		},
		Input: InputConfig{
			Source: SourceSDL,
			PollHz: 250,
		},
		Detection: DetectionConfig{
			Deadzone:          ec.Deadzone,
			ChordWindow:       ec.ChordWindow,
			SequenceTolerance: ec.SequenceTolerance,
			MaxLayers:         ec.MaxLayers,
			Motion: MotionConfig{
				ActivationThreshold: mc.ActivationThreshold,
				MinPeakVelocity:     mc.MinPeakVelocity,
				CompletionRatio:     mc.CompletionRatio,
				MaxDuration:         mc.MaxDuration,
			},
			Touchpad: TouchpadConfig{
				TapMaxDuration:        tc.TapMaxDuration,
				TapMaxMovement:        tc.TapMaxMovement,
				LongTapThreshold:      tc.LongTapThreshold,
				LongTapMaxMovement:    tc.LongTapMaxMovement,
				TwoFingerWindow:       tc.TwoFingerWindow,
				TwoFingerMinDistance:  tc.TwoFingerMinDistance,
				PinchRatio:            tc.PinchRatio,
				ClassificationLock:    tc.ClassificationLock,
				VelocitySmoothing:     tc.VelocitySmoothing,
				MomentumHz:            tc.MomentumHz,
				MomentumDecay:         tc.MomentumDecay,
				MomentumStartVelocity: tc.MomentumStartVelocity,
				MomentumStopVelocity:  tc.MomentumStopVelocity,
				MomentumMaxIdle:       tc.MomentumMaxIdle,
				MomentumLiftWindow:    tc.MomentumLiftWindow,
			},
		},
		Dispatch: DispatchConfig{
			Buffer:         ec.Buffer,
			WebhookTimeout: 2 * time.Second,
		},
	}
}

// Engine converts the detection settings into engine configuration.
func (c Config) Engine() engine.Config {
	d := c.Detection
	return engine.Config{
		Deadzone:          d.Deadzone,
		ChordWindow:       d.ChordWindow,
		SequenceTolerance: d.SequenceTolerance,
		MaxLayers:         d.MaxLayers,
		Motion: motion.Config{
			ActivationThreshold: d.Motion.ActivationThreshold,
			MinPeakVelocity:     d.Motion.MinPeakVelocity,
			CompletionRatio:     d.Motion.CompletionRatio,
			MaxDuration:         d.Motion.MaxDuration,
		},
		Touchpad: touchpad.Config{
			TapMaxDuration:        d.Touchpad.TapMaxDuration,
			TapMaxMovement:        d.Touchpad.TapMaxMovement,
			LongTapThreshold:      d.Touchpad.LongTapThreshold,
			LongTapMaxMovement:    d.Touchpad.LongTapMaxMovement,
			TwoFingerWindow:       d.Touchpad.TwoFingerWindow,
			TwoFingerMinDistance:  d.Touchpad.TwoFingerMinDistance,
			PinchRatio:            d.Touchpad.PinchRatio,
			ClassificationLock:    d.Touchpad.ClassificationLock,
			VelocitySmoothing:     d.Touchpad.VelocitySmoothing,
			MomentumHz:            d.Touchpad.MomentumHz,
			MomentumDecay:         d.Touchpad.MomentumDecay,
			MomentumStartVelocity: d.Touchpad.MomentumStartVelocity,
			MomentumStopVelocity:  d.Touchpad.MomentumStopVelocity,
			MomentumMaxIdle:       d.Touchpad.MomentumMaxIdle,
			MomentumLiftWindow:    d.Touchpad.MomentumLiftWindow,
		},
		Buffer: c.Dispatch.Buffer,
	}
}

// BuildProfiles converts every configured profile.
func (c Config) BuildProfiles() ([]*profile.Profile, error) {
	out := make([]*profile.Profile, 0, len(c.Profiles))
	for i, pf := range c.Profiles {
		p, err := pf.ToProfile(c.Detection.MaxLayers)
		if err != nil {
			return nil, fmt.Errorf("profiles[%d]: %w", i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func invalid(field, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidConfig, field, fmt.Sprintf(format, args...))
}

// Validate reports every problem found, joined.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, field, format string, args ...any) {
		if !ok {
			errs = append(errs, invalid(field, format, args...))
		}
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, invalid("log.level", "%v", err))
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		errs = append(errs, invalid("log.format", "%v", err))
	}

	check(!c.Server.Enabled || c.Server.Addr != "", "server.addr", "required when the server is enabled")

	switch c.Input.Source {
	case SourceSDL:
		check(c.Input.PollHz > 0 && c.Input.PollHz <= 1000, "input.poll_hz", "must be in 1..1000, got %d", c.Input.PollHz)
	case SourceReplay:
		check(c.Input.ReplayFile != "", "input.replay_file", "required for the replay source")
	default:
		errs = append(errs, invalid("input.source", "unknown source %q (valid: sdl, replay)", c.Input.Source))
	}

	d := c.Detection
	check(d.Deadzone >= 0 && d.Deadzone < 1, "detection.deadzone", "must be in [0, 1), got %v", d.Deadzone)
	check(d.ChordWindow > 0, "detection.chord_window", "must be positive")
	check(d.SequenceTolerance >= 0, "detection.sequence_tolerance", "cannot be negative")
	check(d.MaxLayers > 0, "detection.max_layers", "must be positive")

	m := d.Motion
	check(m.ActivationThreshold > 0, "detection.motion.activation_threshold", "must be positive")
	check(m.MinPeakVelocity >= m.ActivationThreshold, "detection.motion.min_peak_velocity", "must be at least the activation threshold")
	check(m.CompletionRatio > 0 && m.CompletionRatio < 1, "detection.motion.completion_ratio", "must be in (0, 1)")
	check(m.MaxDuration > 0, "detection.motion.max_duration", "must be positive")

	t := d.Touchpad
	check(t.TapMaxDuration > 0, "detection.touchpad.tap_max_duration", "must be positive")
	check(t.LongTapThreshold > t.TapMaxDuration, "detection.touchpad.long_tap_threshold", "must exceed tap_max_duration")
	check(t.LongTapMaxMovement <= t.TapMaxMovement, "detection.touchpad.long_tap_max_movement", "cannot exceed tap_max_movement")
	check(t.PinchRatio >= 1, "detection.touchpad.pinch_ratio", "must be at least 1")
	check(t.VelocitySmoothing > 0 && t.VelocitySmoothing <= 1, "detection.touchpad.velocity_smoothing", "must be in (0, 1]")
	check(t.MomentumHz > 0, "detection.touchpad.momentum_hz", "must be positive")
	check(t.MomentumDecay > 0 && t.MomentumDecay < 1, "detection.touchpad.momentum_decay", "must be in (0, 1)")
	check(t.MomentumLiftWindow > 0, "detection.touchpad.momentum_lift_window", "must be positive")
	check(t.MomentumStopVelocity < t.MomentumStartVelocity, "detection.touchpad.momentum_stop_velocity", "must be below momentum_start_velocity")

	check(c.Dispatch.Buffer > 0, "dispatch.buffer", "must be positive")
	check(c.Dispatch.WebhookTimeout > 0, "dispatch.webhook_timeout", "must be positive")

	if _, err := c.BuildProfiles(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
