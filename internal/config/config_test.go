package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/soar/padmapper/internal/engine"
	"github.com/soar/padmapper/internal/gamepad"
	"github.com/soar/padmapper/internal/motion"
	"github.com/soar/padmapper/internal/profile"
)

const sampleConfig = `
log:
  level: debug
input:
  source: replay
  replay_file: session.yaml
detection:
  chord_window: 80ms
  motion:
    max_duration: 300ms
profiles:
  - name: Desktop
    default: true
    buttons:
      a: {key_code: 36}
      menu: {command: launcher}
    chords:
      - buttons: [left_bumper, right_bumper]
        key_code: 10
        modifiers: [cmd]
    sequences:
      - steps: [dpad_up, dpad_up, dpad_down]
        step_timeout: 300ms
        command: konami
    gestures:
      tilt_back: {key_code: 5}
    layers:
      - name: Shift
        activator: lt
        mode: toggle
        buttons:
          a: {key_code: 99}
  - name: Game
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "padmapper.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestDefaultEngineMatchesDetectors(t *testing.T) {
	assert.Equal(t, engine.DefaultConfig(), Default().Engine())
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
		{"source", func(c *Config) { c.Input.Source = "midi" }},
		{"replay without file", func(c *Config) { c.Input.Source = SourceReplay }},
		{"poll rate", func(c *Config) { c.Input.PollHz = 0 }},
		{"chord window", func(c *Config) { c.Detection.ChordWindow = 0 }},
		{"deadzone", func(c *Config) { c.Detection.Deadzone = 1.5 }},
		{"completion ratio", func(c *Config) { c.Detection.Motion.CompletionRatio = 1 }},
		{"long tap movement", func(c *Config) { c.Detection.Touchpad.LongTapMaxMovement = 0.5 }},
		{"momentum decay", func(c *Config) { c.Detection.Touchpad.MomentumDecay = 1 }},
		{"momentum lift window", func(c *Config) { c.Detection.Touchpad.MomentumLiftWindow = 0 }},
		{"webhook timeout", func(c *Config) { c.Dispatch.WebhookTimeout = 0 }},
		{"bad profile", func(c *Config) { c.Profiles = []ProfileFile{{Name: ""}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			assert.ErrorIs(t, c.Validate(), ErrInvalidConfig)
		})
	}
}

func TestLoadFile(t *testing.T) {
	c, err := Load(NewViper(), writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, SourceReplay, c.Input.Source)
	assert.Equal(t, 80*time.Millisecond, c.Detection.ChordWindow)
	assert.Equal(t, 300*time.Millisecond, c.Detection.Motion.MaxDuration)
	assert.Equal(t, Default().Detection.Touchpad, c.Detection.Touchpad, "unset keys keep defaults")

	profiles, err := c.BuildProfiles()
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	p := profiles[0]
	assert.Equal(t, "Desktop", p.Name)
	assert.True(t, p.IsDefault)
	assert.Equal(t, uint16(36), p.Buttons[gamepad.ButtonA].KeyCode)
	assert.Equal(t, "launcher", p.Buttons[gamepad.ButtonMenu].Command)

	require.Len(t, p.Chords, 1)
	assert.Equal(t, []gamepad.Button{gamepad.ButtonLeftBumper, gamepad.ButtonRightBumper}, p.Chords[0].Buttons)
	assert.Equal(t, profile.Mapping{KeyCode: 10, Modifiers: []string{"cmd"}}, p.Chords[0].Mapping)

	require.Len(t, p.Sequences, 1)
	assert.Equal(t, []gamepad.Button{gamepad.ButtonDpadUp, gamepad.ButtonDpadUp, gamepad.ButtonDpadDown}, p.Sequences[0].Steps)
	assert.Equal(t, 300*time.Millisecond, p.Sequences[0].StepTimeout)
	assert.Equal(t, "konami", p.Sequences[0].Mapping.Command)

	assert.Equal(t, uint16(5), p.Gestures[motion.KindTiltBack].KeyCode)

	require.Len(t, p.Layers, 1)
	assert.Equal(t, gamepad.ButtonLeftTrigger, p.Layers[0].Activator)
	assert.Equal(t, profile.LayerToggle, p.Layers[0].Mode)
	assert.Equal(t, uint16(99), p.Layers[0].Buttons[gamepad.ButtonA].KeyCode)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PADMAPPER_DETECTION_CHORD_WINDOW", "120ms")
	t.Setenv("PADMAPPER_SERVER_ADDR", ":9999")

	c, err := Load(NewViper(), writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, 120*time.Millisecond, c.Detection.ChordWindow)
	assert.Equal(t, ":9999", c.Server.Addr)
}

func TestLoadFlagOverride(t *testing.T) {
	v := NewViper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, BindFlags(fs, v))
	require.NoError(t, fs.Parse([]string{"--chord-window=90ms", "--log-level=warn"}))

	c, err := Load(v, writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, 90*time.Millisecond, c.Detection.ChordWindow)
	assert.Equal(t, "warn", c.Log.Level)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(NewViper(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalid(t *testing.T) {
	_, err := Load(NewViper(), writeConfig(t, "detection:\n  chord_window: 0s\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestProfileRoundTrip(t *testing.T) {
	p := profile.New("Round Trip")
	p.IsDefault = true
	r := profile.NewResolver(p, 4)
	r.SetButtonMapping(gamepad.ButtonX, profile.Mapping{KeyCode: 7, Modifiers: []string{"shift"}})
	r.SetButtonMapping(gamepad.ButtonTouchpadTap, profile.Mapping{Webhook: "http://localhost/tap"})
	_, ok := r.AddChord([]gamepad.Button{gamepad.ButtonB, gamepad.ButtonA}, profile.Mapping{KeyCode: 10})
	require.True(t, ok)
	_, ok = r.AddSequence([]gamepad.Button{gamepad.ButtonY, gamepad.ButtonY, gamepad.ButtonX}, 250*time.Millisecond, profile.Mapping{Command: "combo"})
	require.True(t, ok)
	r.SetGestureMapping(motion.KindSteerLeft, profile.Mapping{KeyCode: 123})
	shift, ok := r.CreateLayer("Shift", gamepad.ButtonLeftBumper, profile.LayerMomentary)
	require.True(t, ok)
	r.SetLayerMapping(shift.ID, gamepad.ButtonA, profile.Mapping{KeyCode: 99})
	_, ok = r.CreateLayer("Spare", gamepad.ButtonNone, profile.LayerToggle)
	require.True(t, ok)

	data, err := yaml.Marshal(FromProfile(p))
	require.NoError(t, err)

	var pf ProfileFile
	require.NoError(t, yaml.Unmarshal(data, &pf))
	back, err := pf.ToProfile(4)
	require.NoError(t, err)

	assert.Equal(t, p, back)
}

func TestProfileIDStableByName(t *testing.T) {
	a, err := ProfileFile{Name: "Desktop"}.ToProfile(4)
	require.NoError(t, err)
	b, err := ProfileFile{Name: "Desktop"}.ToProfile(4)
	require.NoError(t, err)
	c, err := ProfileFile{Name: "Game"}.ToProfile(4)
	require.NoError(t, err)

	assert.Equal(t, a.ID, b.ID)
	assert.NotEqual(t, a.ID, c.ID)
}

func TestToProfileRejects(t *testing.T) {
	ab := []gamepad.Button{gamepad.ButtonA, gamepad.ButtonB}
	tests := []struct {
		name string
		pf   ProfileFile
	}{
		{"unknown button", ProfileFile{Name: "p", Buttons: map[string]profile.Mapping{"turbo": {}}}},
		{"button alias twice", ProfileFile{Name: "p", Buttons: map[string]profile.Mapping{"lt": {}, "left_trigger": {}}}},
		{"single button chord", ProfileFile{Name: "p", Chords: []ChordFile{{Buttons: []gamepad.Button{gamepad.ButtonA, gamepad.ButtonA}}}}},
		{"duplicate chord", ProfileFile{Name: "p", Chords: []ChordFile{{Buttons: ab}, {Buttons: []gamepad.Button{gamepad.ButtonB, gamepad.ButtonA}}}}},
		{"short sequence", ProfileFile{Name: "p", Sequences: []SequenceFile{{Steps: ab[:1], StepTimeout: time.Second}}}},
		{"sequence timeout", ProfileFile{Name: "p", Sequences: []SequenceFile{{Steps: ab}}}},
		{"unknown gesture", ProfileFile{Name: "p", Gestures: map[string]profile.Mapping{"shake": {}}}},
		{"shared activator", ProfileFile{Name: "p", Layers: []LayerFile{{Name: "1", Activator: "lb"}, {Name: "2", Activator: "left_bumper"}}}},
		{"too many layers", ProfileFile{Name: "p", Layers: []LayerFile{{Name: "1"}, {Name: "2"}, {Name: "3"}}}},
		{"bad id", ProfileFile{Name: "p", ID: "not-a-uuid"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.pf.ToProfile(2)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}
