package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvPrefix  = "PADMAPPER"
	configName = "padmapper"
)

// NewViper returns a viper instance with padmapper defaults and
// environment lookup installed. Nested keys map to variables by replacing
// dots with underscores: detection.chord_window is
// PADMAPPER_DETECTION_CHORD_WINDOW.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("log.level", c.Log.Level)
	v.SetDefault("log.format", c.Log.Format)

	v.SetDefault("server.enabled", c.Server.Enabled)
	v.SetDefault("server.addr", c.Server.Addr)
	v.SetDefault("server.minify", c.Server.Minify)
	v.SetDefault("server.tray", c.Server.Tray)

	v.SetDefault("input.source", c.Input.Source)
	v.SetDefault("input.poll_hz", c.Input.PollHz)
	v.SetDefault("input.replay_file", c.Input.ReplayFile)
	v.SetDefault("input.realtime", c.Input.Realtime)

	d := c.Detection
	v.SetDefault("detection.deadzone", d.Deadzone)
	v.SetDefault("detection.chord_window", d.ChordWindow)
	v.SetDefault("detection.sequence_tolerance", d.SequenceTolerance)
	v.SetDefault("detection.max_layers", d.MaxLayers)

	v.SetDefault("detection.motion.activation_threshold", d.Motion.ActivationThreshold)
	v.SetDefault("detection.motion.min_peak_velocity", d.Motion.MinPeakVelocity)
	v.SetDefault("detection.motion.completion_ratio", d.Motion.CompletionRatio)
	v.SetDefault("detection.motion.max_duration", d.Motion.MaxDuration)

	t := d.Touchpad
	v.SetDefault("detection.touchpad.tap_max_duration", t.TapMaxDuration)
	v.SetDefault("detection.touchpad.tap_max_movement", t.TapMaxMovement)
	v.SetDefault("detection.touchpad.long_tap_threshold", t.LongTapThreshold)
	v.SetDefault("detection.touchpad.long_tap_max_movement", t.LongTapMaxMovement)
	v.SetDefault("detection.touchpad.two_finger_window", t.TwoFingerWindow)
	v.SetDefault("detection.touchpad.two_finger_min_distance", t.TwoFingerMinDistance)
	v.SetDefault("detection.touchpad.pinch_ratio", t.PinchRatio)
	v.SetDefault("detection.touchpad.classification_lock", t.ClassificationLock)
	v.SetDefault("detection.touchpad.velocity_smoothing", t.VelocitySmoothing)
	v.SetDefault("detection.touchpad.momentum_hz", t.MomentumHz)
	v.SetDefault("detection.touchpad.momentum_decay", t.MomentumDecay)
	v.SetDefault("detection.touchpad.momentum_start_velocity", t.MomentumStartVelocity)
	v.SetDefault("detection.touchpad.momentum_stop_velocity", t.MomentumStopVelocity)
	v.SetDefault("detection.touchpad.momentum_max_idle", t.MomentumMaxIdle)
	v.SetDefault("detection.touchpad.momentum_lift_window", t.MomentumLiftWindow)

	v.SetDefault("dispatch.buffer", c.Dispatch.Buffer)
	v.SetDefault("dispatch.webhook_timeout", c.Dispatch.WebhookTimeout)
	v.SetDefault("dispatch.log_firings", c.Dispatch.LogFirings)
}

// BindFlags registers the override flags on fs and binds them to v.
func BindFlags(fs *pflag.FlagSet, v *viper.Viper) error {
	d := Default()
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.String("log-format", d.Log.Format, "log format (text, json)")
	fs.String("addr", d.Server.Addr, "viewer server listen address")
	fs.Bool("server", d.Server.Enabled, "serve the viewer and websocket hub")
	fs.Bool("tray", d.Server.Tray, "show a system tray icon")
	fs.String("source", d.Input.Source, "sample source (sdl, replay)")
	fs.Int("poll-hz", d.Input.PollHz, "controller poll frequency")
	fs.Float64("deadzone", d.Detection.Deadzone, "display smoothing deadzone")
	fs.Duration("chord-window", d.Detection.ChordWindow, "maximum spread of chord presses")

	bindings := map[string]string{
		"log.level":              "log-level",
		"log.format":             "log-format",
		"server.addr":            "addr",
		"server.enabled":         "server",
		"server.tray":            "tray",
		"input.source":           "source",
		"input.poll_hz":          "poll-hz",
		"detection.deadzone":     "deadzone",
		"detection.chord_window": "chord-window",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}
	return nil
}

// Load reads path, or searches the working directory and the user config
// directory for padmapper.{yaml,json,toml} when path is empty. A missing
// config file is only an error when path was given.
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, configName))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	return decode(v)
}

func decode(v *viper.Viper) (Config, error) {
	var c Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&c, hook); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Watch reloads the config file whenever it changes on disk and hands
// every valid result to onChange. Invalid edits are logged and skipped so
// the running configuration stays in place.
func Watch(v *viper.Viper, logger *slog.Logger, onChange func(Config)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		c, err := decode(v)
		if err != nil {
			logger.Warn("config reload rejected", "file", e.Name, "error", err)
			return
		}
		logger.Info("config reloaded", "file", e.Name)
		onChange(c)
	})
	v.WatchConfig()
}
