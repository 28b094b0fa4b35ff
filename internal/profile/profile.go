// Package profile holds button mappings, layers and profiles, and resolves
// a detected pattern to the mapping it triggers.
package profile

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soar/padmapper/internal/gamepad"
	"github.com/soar/padmapper/internal/motion"
)

// Mapping is what a pattern resolves to. The engine never executes it;
// dispatch sinks interpret the fields they understand.
type Mapping struct {
	KeyCode     uint16   `json:"keyCode,omitempty" yaml:"key_code,omitempty" mapstructure:"key_code"`
	Modifiers   []string `json:"modifiers,omitempty" yaml:"modifiers,omitempty" mapstructure:"modifiers"`
	Command     string   `json:"command,omitempty" yaml:"command,omitempty" mapstructure:"command"`
	Webhook     string   `json:"webhook,omitempty" yaml:"webhook,omitempty" mapstructure:"webhook"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
}

func (m Mapping) IsZero() bool {
	return m.KeyCode == 0 && len(m.Modifiers) == 0 && m.Command == "" && m.Webhook == "" && m.Description == ""
}

type ChordMapping struct {
	ID      uuid.UUID
	Buttons []gamepad.Button
	Mapping Mapping
}

// Key is the order-independent identity of the chord's button set.
func (c ChordMapping) Key() string {
	return gamepad.ButtonSetKey(c.Buttons)
}

type SequenceMapping struct {
	ID          uuid.UUID
	Steps       []gamepad.Button
	StepTimeout time.Duration
	Mapping     Mapping
}

type LayerMode uint8

const (
	// LayerMomentary is active while its activator is held.
	LayerMomentary LayerMode = iota
	// LayerToggle flips on each activator press.
	LayerToggle
)

func (m LayerMode) String() string {
	if m == LayerToggle {
		return "toggle"
	}
	return "momentary"
}

func ParseLayerMode(s string) (LayerMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "momentary", "hold":
		return LayerMomentary, nil
	case "toggle":
		return LayerToggle, nil
	}
	return LayerMomentary, fmt.Errorf("unknown layer mode %q", s)
}

func (m LayerMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *LayerMode) UnmarshalText(p []byte) error {
	v, err := ParseLayerMode(string(p))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Layer overlays button mappings while active. Activator is ButtonNone
// when the layer has none.
type Layer struct {
	ID        uuid.UUID
	Name      string
	Activator gamepad.Button
	Mode      LayerMode
	Buttons   map[gamepad.Button]Mapping
}

func (l Layer) HasActivator() bool {
	return l.Activator != gamepad.ButtonNone
}

func (l Layer) clone() Layer {
	l.Buttons = cloneButtons(l.Buttons)
	return l
}

type Profile struct {
	ID        uuid.UUID
	Name      string
	IsDefault bool
	Buttons   map[gamepad.Button]Mapping
	Chords    []ChordMapping
	Sequences []SequenceMapping
	Gestures  map[motion.Kind]Mapping
	Layers    []Layer
}

// New returns an empty profile with a fresh id.
func New(name string) *Profile {
	return &Profile{
		ID:       uuid.New(),
		Name:     name,
		Buttons:  make(map[gamepad.Button]Mapping),
		Gestures: make(map[motion.Kind]Mapping),
	}
}

// Clone returns a deep copy.
func (p *Profile) Clone() *Profile {
	c := *p
	c.Buttons = cloneButtons(p.Buttons)
	c.Gestures = make(map[motion.Kind]Mapping, len(p.Gestures))
	for k, m := range p.Gestures {
		c.Gestures[k] = m
	}
	c.Chords = make([]ChordMapping, len(p.Chords))
	for i, ch := range p.Chords {
		ch.Buttons = append([]gamepad.Button(nil), ch.Buttons...)
		c.Chords[i] = ch
	}
	c.Sequences = make([]SequenceMapping, len(p.Sequences))
	for i, s := range p.Sequences {
		s.Steps = append([]gamepad.Button(nil), s.Steps...)
		c.Sequences[i] = s
	}
	c.Layers = make([]Layer, len(p.Layers))
	for i, l := range p.Layers {
		c.Layers[i] = l.clone()
	}
	return &c
}

func (p *Profile) layerIndex(id uuid.UUID) int {
	for i, l := range p.Layers {
		if l.ID == id {
			return i
		}
	}
	return -1
}

// activatorOwner returns the index of the layer claiming b, or -1.
func (p *Profile) activatorOwner(b gamepad.Button) int {
	if b == gamepad.ButtonNone {
		return -1
	}
	for i, l := range p.Layers {
		if l.Activator == b {
			return i
		}
	}
	return -1
}

func cloneButtons(in map[gamepad.Button]Mapping) map[gamepad.Button]Mapping {
	out := make(map[gamepad.Button]Mapping, len(in))
	for b, m := range in {
		out[b] = m
	}
	return out
}
