package profile

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/soar/padmapper/internal/gamepad"
	"github.com/soar/padmapper/internal/motion"
)

const DefaultMaxLayers = 4

// Resolver owns one profile's mutation operations and layer activation
// state. Mutations that fail report false and leave the profile untouched.
// A Resolver is not safe for concurrent use.
type Resolver struct {
	profile   *Profile
	maxLayers int
	// Active layer ids in activation order; the last one has priority.
	active []uuid.UUID
}

func NewResolver(p *Profile, maxLayers int) *Resolver {
	if maxLayers <= 0 {
		maxLayers = DefaultMaxLayers
	}
	if p.Buttons == nil {
		p.Buttons = make(map[gamepad.Button]Mapping)
	}
	if p.Gestures == nil {
		p.Gestures = make(map[motion.Kind]Mapping)
	}
	for i := range p.Layers {
		if p.Layers[i].Buttons == nil {
			p.Layers[i].Buttons = make(map[gamepad.Button]Mapping)
		}
	}
	return &Resolver{profile: p, maxLayers: maxLayers}
}

func (r *Resolver) Profile() *Profile { return r.profile }

func (r *Resolver) MaxLayers() int { return r.maxLayers }

// Layers

// CreateLayer appends a layer. It fails when the profile already holds
// MaxLayers layers or activator is claimed by another layer.
func (r *Resolver) CreateLayer(name string, activator gamepad.Button, mode LayerMode) (Layer, bool) {
	p := r.profile
	if len(p.Layers) >= r.maxLayers || !validActivator(activator) {
		return Layer{}, false
	}
	if p.activatorOwner(activator) >= 0 {
		return Layer{}, false
	}
	l := Layer{
		ID:        uuid.New(),
		Name:      name,
		Activator: activator,
		Mode:      mode,
		Buttons:   make(map[gamepad.Button]Mapping),
	}
	p.Layers = append(p.Layers, l)
	return l.clone(), true
}

func (r *Resolver) Layer(id uuid.UUID) (Layer, bool) {
	i := r.profile.layerIndex(id)
	if i < 0 {
		return Layer{}, false
	}
	return r.profile.Layers[i].clone(), true
}

func (r *Resolver) Layers() []Layer {
	out := make([]Layer, len(r.profile.Layers))
	for i, l := range r.profile.Layers {
		out[i] = l.clone()
	}
	return out
}

// SetLayerActivator assigns b (or clears with ButtonNone). Assigning a
// button claimed by another layer fails and changes neither layer.
func (r *Resolver) SetLayerActivator(id uuid.UUID, b gamepad.Button) bool {
	p := r.profile
	i := p.layerIndex(id)
	if i < 0 || !validActivator(b) {
		return false
	}
	if owner := p.activatorOwner(b); owner >= 0 && owner != i {
		return false
	}
	if p.Layers[i].Activator != b {
		r.deactivate(id)
	}
	p.Layers[i].Activator = b
	return true
}

func (r *Resolver) RenameLayer(id uuid.UUID, name string) bool {
	i := r.profile.layerIndex(id)
	if i < 0 {
		return false
	}
	r.profile.Layers[i].Name = name
	return true
}

// UpdateLayer replaces the layer with l.ID, keeping its identity. The
// activator exclusivity rule applies.
func (r *Resolver) UpdateLayer(l Layer) bool {
	p := r.profile
	i := p.layerIndex(l.ID)
	if i < 0 || !validActivator(l.Activator) {
		return false
	}
	if owner := p.activatorOwner(l.Activator); owner >= 0 && owner != i {
		return false
	}
	if p.Layers[i].Activator != l.Activator || p.Layers[i].Mode != l.Mode {
		r.deactivate(l.ID)
	}
	l = l.clone()
	if l.Buttons == nil {
		l.Buttons = make(map[gamepad.Button]Mapping)
	}
	p.Layers[i] = l
	return true
}

// DeleteLayer removes the layer and its mappings.
func (r *Resolver) DeleteLayer(id uuid.UUID) bool {
	p := r.profile
	i := p.layerIndex(id)
	if i < 0 {
		return false
	}
	r.deactivate(id)
	p.Layers = slices.Delete(p.Layers, i, i+1)
	return true
}

func (r *Resolver) SetLayerMapping(id uuid.UUID, b gamepad.Button, m Mapping) bool {
	i := r.profile.layerIndex(id)
	if i < 0 || !b.Valid() {
		return false
	}
	r.profile.Layers[i].Buttons[b] = m
	return true
}

func (r *Resolver) RemoveLayerMapping(id uuid.UUID, b gamepad.Button) bool {
	i := r.profile.layerIndex(id)
	if i < 0 {
		return false
	}
	if _, ok := r.profile.Layers[i].Buttons[b]; !ok {
		return false
	}
	delete(r.profile.Layers[i].Buttons, b)
	return true
}

// Base mappings

func (r *Resolver) SetButtonMapping(b gamepad.Button, m Mapping) bool {
	if !b.Valid() {
		return false
	}
	r.profile.Buttons[b] = m
	return true
}

func (r *Resolver) RemoveButtonMapping(b gamepad.Button) bool {
	if _, ok := r.profile.Buttons[b]; !ok {
		return false
	}
	delete(r.profile.Buttons, b)
	return true
}

// AddChord adds a chord mapping. Chords need two distinct buttons, and a
// button set may only be mapped once.
func (r *Resolver) AddChord(buttons []gamepad.Button, m Mapping) (ChordMapping, bool) {
	mask := gamepad.MaskOf(buttons...)
	if len(mask.Buttons()) < 2 {
		return ChordMapping{}, false
	}
	c := ChordMapping{ID: uuid.New(), Buttons: mask.Buttons(), Mapping: m}
	for _, existing := range r.profile.Chords {
		if existing.Key() == c.Key() {
			return ChordMapping{}, false
		}
	}
	r.profile.Chords = append(r.profile.Chords, c)
	return c, true
}

func (r *Resolver) UpdateChordMapping(id uuid.UUID, m Mapping) bool {
	for i := range r.profile.Chords {
		if r.profile.Chords[i].ID == id {
			r.profile.Chords[i].Mapping = m
			return true
		}
	}
	return false
}

func (r *Resolver) RemoveChord(id uuid.UUID) bool {
	for i, c := range r.profile.Chords {
		if c.ID == id {
			r.profile.Chords = slices.Delete(r.profile.Chords, i, i+1)
			return true
		}
	}
	return false
}

// AddSequence adds a sequence mapping of at least two steps.
func (r *Resolver) AddSequence(steps []gamepad.Button, stepTimeout time.Duration, m Mapping) (SequenceMapping, bool) {
	if len(steps) < 2 || stepTimeout <= 0 {
		return SequenceMapping{}, false
	}
	for _, b := range steps {
		if !b.Valid() {
			return SequenceMapping{}, false
		}
	}
	s := SequenceMapping{
		ID:          uuid.New(),
		Steps:       append([]gamepad.Button(nil), steps...),
		StepTimeout: stepTimeout,
		Mapping:     m,
	}
	r.profile.Sequences = append(r.profile.Sequences, s)
	return s, true
}

func (r *Resolver) UpdateSequenceMapping(id uuid.UUID, m Mapping) bool {
	for i := range r.profile.Sequences {
		if r.profile.Sequences[i].ID == id {
			r.profile.Sequences[i].Mapping = m
			return true
		}
	}
	return false
}

func (r *Resolver) RemoveSequence(id uuid.UUID) bool {
	for i, s := range r.profile.Sequences {
		if s.ID == id {
			r.profile.Sequences = slices.Delete(r.profile.Sequences, i, i+1)
			return true
		}
	}
	return false
}

func (r *Resolver) SetGestureMapping(k motion.Kind, m Mapping) {
	r.profile.Gestures[k] = m
}

func (r *Resolver) RemoveGestureMapping(k motion.Kind) bool {
	if _, ok := r.profile.Gestures[k]; !ok {
		return false
	}
	delete(r.profile.Gestures, k)
	return true
}

// Activation

// ButtonDown updates layer activation and reports whether b is a layer
// activator. Activator presses are consumed and never map to an action.
func (r *Resolver) ButtonDown(b gamepad.Button) bool {
	i := r.profile.activatorOwner(b)
	if i < 0 {
		return false
	}
	l := r.profile.Layers[i]
	if l.Mode == LayerToggle && r.IsActive(l.ID) {
		r.deactivate(l.ID)
		return true
	}
	r.deactivate(l.ID)
	r.active = append(r.active, l.ID)
	return true
}

// ButtonUp ends a momentary layer and reports whether b is an activator.
func (r *Resolver) ButtonUp(b gamepad.Button) bool {
	i := r.profile.activatorOwner(b)
	if i < 0 {
		return false
	}
	if l := r.profile.Layers[i]; l.Mode == LayerMomentary {
		r.deactivate(l.ID)
	}
	return true
}

func (r *Resolver) IsActive(id uuid.UUID) bool {
	return slices.Contains(r.active, id)
}

// ActiveLayers returns active layer ids, highest priority first.
func (r *Resolver) ActiveLayers() []uuid.UUID {
	out := slices.Clone(r.active)
	slices.Reverse(out)
	return out
}

// ReleaseMomentary deactivates every momentary layer. Toggled layers stay.
func (r *Resolver) ReleaseMomentary() {
	r.active = slices.DeleteFunc(r.active, func(id uuid.UUID) bool {
		i := r.profile.layerIndex(id)
		return i < 0 || r.profile.Layers[i].Mode == LayerMomentary
	})
}

func validActivator(b gamepad.Button) bool {
	return b == gamepad.ButtonNone || b.Valid()
}

func (r *Resolver) deactivate(id uuid.UUID) {
	r.active = slices.DeleteFunc(r.active, func(a uuid.UUID) bool { return a == id })
}

// Resolution

// ResolveButton looks b up in the active layers, most recently activated
// first, then in the base mappings. The returned layer is nil for a base
// mapping.
func (r *Resolver) ResolveButton(b gamepad.Button) (Mapping, *Layer, bool) {
	for k := len(r.active) - 1; k >= 0; k-- {
		i := r.profile.layerIndex(r.active[k])
		if i < 0 {
			continue
		}
		if m, ok := r.profile.Layers[i].Buttons[b]; ok {
			l := r.profile.Layers[i].clone()
			return m, &l, true
		}
	}
	m, ok := r.profile.Buttons[b]
	return m, nil, ok
}

func (r *Resolver) ResolveChord(id uuid.UUID) (ChordMapping, bool) {
	for _, c := range r.profile.Chords {
		if c.ID == id {
			return c, true
		}
	}
	return ChordMapping{}, false
}

func (r *Resolver) ResolveSequence(id uuid.UUID) (SequenceMapping, bool) {
	for _, s := range r.profile.Sequences {
		if s.ID == id {
			return s, true
		}
	}
	return SequenceMapping{}, false
}

func (r *Resolver) ResolveGesture(k motion.Kind) (Mapping, bool) {
	m, ok := r.profile.Gestures[k]
	return m, ok
}
