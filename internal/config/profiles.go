package config

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/soar/padmapper/internal/gamepad"
	"github.com/soar/padmapper/internal/motion"
	"github.com/soar/padmapper/internal/profile"
)

// ProfileFile is the on-disk shape of a profile. Mapping fields sit inline
// next to the pattern they belong to:
//
//	chords:
//	  - buttons: [a, b]
//	    key_code: 10
type ProfileFile struct {
	ID        string                     `mapstructure:"id" yaml:"id,omitempty"`
	Name      string                     `mapstructure:"name" yaml:"name"`
	Default   bool                       `mapstructure:"default" yaml:"default,omitempty"`
	Buttons   map[string]profile.Mapping `mapstructure:"buttons" yaml:"buttons,omitempty"`
	Chords    []ChordFile                `mapstructure:"chords" yaml:"chords,omitempty"`
	Sequences []SequenceFile             `mapstructure:"sequences" yaml:"sequences,omitempty"`
	Gestures  map[string]profile.Mapping `mapstructure:"gestures" yaml:"gestures,omitempty"`
	Layers    []LayerFile                `mapstructure:"layers" yaml:"layers,omitempty"`
}

type ChordFile struct {
	ID      string           `mapstructure:"id" yaml:"id,omitempty"`
	Buttons []gamepad.Button `mapstructure:"buttons" yaml:"buttons,flow"`

	profile.Mapping `mapstructure:",squash" yaml:",inline"`
}

type SequenceFile struct {
	ID          string           `mapstructure:"id" yaml:"id,omitempty"`
	Steps       []gamepad.Button `mapstructure:"steps" yaml:"steps,flow"`
	StepTimeout time.Duration    `mapstructure:"step_timeout" yaml:"step_timeout"`

	profile.Mapping `mapstructure:",squash" yaml:",inline"`
}

type LayerFile struct {
	ID   string `mapstructure:"id" yaml:"id,omitempty"`
	Name string `mapstructure:"name" yaml:"name"`
	// Empty when the layer has no activator.
	Activator string                     `mapstructure:"activator" yaml:"activator,omitempty"`
	Mode      profile.LayerMode          `mapstructure:"mode" yaml:"mode"`
	Buttons   map[string]profile.Mapping `mapstructure:"buttons" yaml:"buttons,omitempty"`
}

// profileNamespace seeds ids for profiles that do not carry one, so the
// same name maps to the same id across reloads.
var profileNamespace = uuid.MustParse("8c1f6a8e-4c5b-4f61-9d0e-2b7f3a9c5d10")

func parseID(s string, fallback func() uuid.UUID) (uuid.UUID, error) {
	if s == "" {
		return fallback(), nil
	}
	return uuid.Parse(s)
}

func parseButtonMap(field string, in map[string]profile.Mapping) (map[gamepad.Button]profile.Mapping, error) {
	out := make(map[gamepad.Button]profile.Mapping, len(in))
	for name, m := range in {
		b, err := gamepad.ParseButton(name)
		if err != nil {
			return nil, invalid(field, "%v", err)
		}
		if _, dup := out[b]; dup {
			return nil, invalid(field, "button %s mapped twice", b)
		}
		out[b] = m
	}
	return out, nil
}

func buttonMapFile(in map[gamepad.Button]profile.Mapping) map[string]profile.Mapping {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]profile.Mapping, len(in))
	for b, m := range in {
		out[b.String()] = m
	}
	return out
}

// ToProfile converts and validates a file profile. It enforces the same
// invariants as the resolver: chords of two or more distinct buttons with
// unique button sets, sequences of two or more steps, exclusive layer
// activators and at most maxLayers layers.
func (pf ProfileFile) ToProfile(maxLayers int) (*profile.Profile, error) {
	if pf.Name == "" {
		return nil, invalid("name", "required")
	}
	id, err := parseID(pf.ID, func() uuid.UUID { return uuid.NewSHA1(profileNamespace, []byte(pf.Name)) })
	if err != nil {
		return nil, invalid("id", "%v", err)
	}

	p := &profile.Profile{ID: id, Name: pf.Name, IsDefault: pf.Default}

	if p.Buttons, err = parseButtonMap("buttons", pf.Buttons); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for i, cf := range pf.Chords {
		field := fmt.Sprintf("chords[%d]", i)
		mask := gamepad.MaskOf(cf.Buttons...)
		buttons := mask.Buttons()
		if len(buttons) < 2 {
			return nil, invalid(field, "a chord needs at least two distinct buttons")
		}
		key := gamepad.ButtonSetKey(buttons)
		if seen[key] {
			return nil, invalid(field, "button set %s already mapped", key)
		}
		seen[key] = true
		cid, err := parseID(cf.ID, uuid.New)
		if err != nil {
			return nil, invalid(field+".id", "%v", err)
		}
		p.Chords = append(p.Chords, profile.ChordMapping{ID: cid, Buttons: buttons, Mapping: cf.Mapping})
	}

	for i, sf := range pf.Sequences {
		field := fmt.Sprintf("sequences[%d]", i)
		if len(sf.Steps) < 2 {
			return nil, invalid(field, "a sequence needs at least two steps")
		}
		if sf.StepTimeout <= 0 {
			return nil, invalid(field+".step_timeout", "must be positive")
		}
		sid, err := parseID(sf.ID, uuid.New)
		if err != nil {
			return nil, invalid(field+".id", "%v", err)
		}
		p.Sequences = append(p.Sequences, profile.SequenceMapping{
			ID:          sid,
			Steps:       append([]gamepad.Button(nil), sf.Steps...),
			StepTimeout: sf.StepTimeout,
			Mapping:     sf.Mapping,
		})
	}

	p.Gestures = make(map[motion.Kind]profile.Mapping, len(pf.Gestures))
	for name, m := range pf.Gestures {
		k, err := motion.ParseKind(name)
		if err != nil {
			return nil, invalid("gestures", "%v", err)
		}
		p.Gestures[k] = m
	}

	if len(pf.Layers) > maxLayers {
		return nil, invalid("layers", "%d layers exceed the limit of %d", len(pf.Layers), maxLayers)
	}
	activators := make(map[gamepad.Button]string)
	for i, lf := range pf.Layers {
		field := fmt.Sprintf("layers[%d]", i)
		lid, err := parseID(lf.ID, uuid.New)
		if err != nil {
			return nil, invalid(field+".id", "%v", err)
		}
		l := profile.Layer{ID: lid, Name: lf.Name, Mode: lf.Mode}
		if lf.Activator != "" {
			if l.Activator, err = gamepad.ParseButton(lf.Activator); err != nil {
				return nil, invalid(field+".activator", "%v", err)
			}
			if owner, taken := activators[l.Activator]; taken {
				return nil, invalid(field+".activator", "%s already activates layer %q", l.Activator, owner)
			}
			activators[l.Activator] = lf.Name
		}
		if l.Buttons, err = parseButtonMap(field+".buttons", lf.Buttons); err != nil {
			return nil, err
		}
		p.Layers = append(p.Layers, l)
	}

	return p, nil
}

// FromProfile converts a profile back to its file shape. ids are always
// written so the conversion round-trips.
func FromProfile(p *profile.Profile) ProfileFile {
	pf := ProfileFile{
		ID:      p.ID.String(),
		Name:    p.Name,
		Default: p.IsDefault,
		Buttons: buttonMapFile(p.Buttons),
	}
	for _, c := range p.Chords {
		pf.Chords = append(pf.Chords, ChordFile{
			ID:      c.ID.String(),
			Buttons: append([]gamepad.Button(nil), c.Buttons...),
			Mapping: c.Mapping,
		})
	}
	for _, s := range p.Sequences {
		pf.Sequences = append(pf.Sequences, SequenceFile{
			ID:          s.ID.String(),
			Steps:       append([]gamepad.Button(nil), s.Steps...),
			StepTimeout: s.StepTimeout,
			Mapping:     s.Mapping,
		})
	}
	if len(p.Gestures) > 0 {
		pf.Gestures = make(map[string]profile.Mapping, len(p.Gestures))
		for k, m := range p.Gestures {
			pf.Gestures[k.String()] = m
		}
	}
	for _, l := range p.Layers {
		lf := LayerFile{
			ID:      l.ID.String(),
			Name:    l.Name,
			Mode:    l.Mode,
			Buttons: buttonMapFile(l.Buttons),
		}
		if l.HasActivator() {
			lf.Activator = l.Activator.String()
		}
		pf.Layers = append(pf.Layers, lf)
	}
	return pf
}
