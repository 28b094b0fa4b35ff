package main

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/soar/padmapper/internal/action"
	"github.com/soar/padmapper/internal/config"
	"github.com/soar/padmapper/internal/engine"
	"github.com/soar/padmapper/internal/gamepad"
)

const testConfig = `
log:
  level: error
profiles:
  - name: Desktop
    default: true
    buttons:
      a: {key_code: 36}
    chords:
      - buttons: [lb, rb]
        key_code: 10
`

const testScript = `
ticks:
  - at: 0s
    press: [lb]
  - at: 10ms
    press: [rb]
    left_stick: {x: 0.5, y: 0}
  - at: 100ms
    release: [lb, rb]
  - at: 200ms
    press: [a]
  - at: 250ms
    release: [a]
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root, err := newRootCmd()
	require.NoError(t, err)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err = root.Execute()
	return out.String(), err
}

func TestReplayCommand(t *testing.T) {
	cfg := writeFile(t, "padmapper.yaml", testConfig)
	script := writeFile(t, "script.yaml", testScript)

	out, err := execute(t, "replay", "--config", cfg, script)
	require.NoError(t, err)

	var firings []engine.Firing
	sc := bufio.NewScanner(bytes.NewBufferString(out))
	for sc.Scan() {
		var f engine.Firing
		require.NoError(t, f.UnmarshalJSON(sc.Bytes()))
		firings = append(firings, f)
	}
	require.Len(t, firings, 2)

	c, ok := firings[0].Action.(action.Chord)
	require.True(t, ok, "got %T", firings[0].Action)
	assert.Equal(t, []gamepad.Button{gamepad.ButtonLeftBumper, gamepad.ButtonRightBumper}, c.Buttons)
	assert.Equal(t, uint16(10), firings[0].Mapping.KeyCode)

	assert.Equal(t, action.SinglePress{Button: gamepad.ButtonA}, firings[1].Action)
	assert.Equal(t, uint16(36), firings[1].Mapping.KeyCode)
}

func TestReplayCommandMissingScript(t *testing.T) {
	cfg := writeFile(t, "padmapper.yaml", testConfig)
	_, err := execute(t, "replay", "--config", cfg, filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestCheckCommand(t *testing.T) {
	cfg := writeFile(t, "padmapper.yaml", testConfig)

	out, err := execute(t, "check", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "ok")
	assert.Contains(t, out, "* ")
	assert.Contains(t, out, "Desktop")
	assert.Contains(t, out, "chords=1")
}

func TestCheckCommandExport(t *testing.T) {
	cfg := writeFile(t, "padmapper.yaml", testConfig)

	out, err := execute(t, "check", "--export", "--config", cfg)
	require.NoError(t, err)

	var doc struct {
		Profiles []config.ProfileFile `yaml:"profiles"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	require.Len(t, doc.Profiles, 1)
	assert.Equal(t, "Desktop", doc.Profiles[0].Name)
	assert.NotEmpty(t, doc.Profiles[0].ID)
	require.Len(t, doc.Profiles[0].Chords, 1)
	assert.NotEmpty(t, doc.Profiles[0].Chords[0].ID)
	assert.Equal(t, uint16(10), doc.Profiles[0].Chords[0].KeyCode)
}

func TestCheckCommandInvalid(t *testing.T) {
	cfg := writeFile(t, "padmapper.yaml", "detection:\n  chord_window: 0s\n")
	_, err := execute(t, "check", "--config", cfg)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestHostAddr(t *testing.T) {
	assert.Equal(t, "localhost:8080", hostAddr(":8080"))
	assert.Equal(t, "127.0.0.1:9000", hostAddr("127.0.0.1:9000"))
}
