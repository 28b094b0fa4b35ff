package profile

import (
	"slices"

	"github.com/google/uuid"
)

// Manager holds the profile set with exactly one active and exactly one
// default profile. It is not safe for concurrent use.
type Manager struct {
	profiles []*Profile
	active   uuid.UUID
}

// NewManager takes ownership of profiles. The first profile marked default
// stays default and any later marks are cleared; with none marked, the
// first profile becomes default. An empty set gets a fresh "Default"
// profile. The default profile starts active.
func NewManager(profiles []*Profile) *Manager {
	m := &Manager{}
	for _, p := range profiles {
		if p == nil {
			continue
		}
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		m.profiles = append(m.profiles, p)
	}
	if len(m.profiles) == 0 {
		m.profiles = append(m.profiles, New("Default"))
	}

	def := slices.IndexFunc(m.profiles, func(p *Profile) bool { return p.IsDefault })
	if def < 0 {
		def = 0
	}
	for i, p := range m.profiles {
		p.IsDefault = i == def
	}
	m.active = m.profiles[def].ID
	return m
}

func (m *Manager) Profiles() []*Profile {
	return slices.Clone(m.profiles)
}

func (m *Manager) Get(id uuid.UUID) (*Profile, bool) {
	i := m.index(id)
	if i < 0 {
		return nil, false
	}
	return m.profiles[i], true
}

func (m *Manager) Active() *Profile {
	p, _ := m.Get(m.active)
	return p
}

func (m *Manager) Default() *Profile {
	for _, p := range m.profiles {
		if p.IsDefault {
			return p
		}
	}
	return m.profiles[0]
}

// SetActive switches the active profile. It reports false for an unknown id.
func (m *Manager) SetActive(id uuid.UUID) bool {
	if m.index(id) < 0 {
		return false
	}
	m.active = id
	return true
}

// SetDefault moves the default mark to id.
func (m *Manager) SetDefault(id uuid.UUID) bool {
	if m.index(id) < 0 {
		return false
	}
	for _, p := range m.profiles {
		p.IsDefault = p.ID == id
	}
	return true
}

// Add appends p. It fails when the id is already taken. A profile added
// with IsDefault set takes over the default mark.
func (m *Manager) Add(p *Profile) bool {
	if p == nil || m.index(p.ID) >= 0 {
		return false
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.profiles = append(m.profiles, p)
	if p.IsDefault {
		m.SetDefault(p.ID)
	}
	return true
}

// Remove deletes a profile. The last profile cannot be removed. Removing
// the default moves the mark to the first remaining profile; removing the
// active one activates the default.
func (m *Manager) Remove(id uuid.UUID) bool {
	i := m.index(id)
	if i < 0 || len(m.profiles) == 1 {
		return false
	}
	wasDefault := m.profiles[i].IsDefault
	m.profiles = slices.Delete(m.profiles, i, i+1)
	if wasDefault {
		m.profiles[0].IsDefault = true
	}
	if m.active == id {
		m.active = m.Default().ID
	}
	return true
}

// Replace swaps in a new profile set, keeping the active profile when its
// id survives and falling back to the new default otherwise.
func (m *Manager) Replace(profiles []*Profile) {
	active := m.active
	*m = *NewManager(profiles)
	if m.index(active) >= 0 {
		m.active = active
	}
}

func (m *Manager) index(id uuid.UUID) int {
	return slices.IndexFunc(m.profiles, func(p *Profile) bool { return p.ID == id })
}
