package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/soar/padmapper/internal/action"
	"github.com/soar/padmapper/internal/profile"
)

// Firing is one resolved action handed to dispatch. Mapping is nil when
// the active profile maps nothing to the pattern.
type Firing struct {
	Action    action.Action
	Mapping   *profile.Mapping
	ProfileID uuid.UUID
	At        time.Time
}

type firingJSON struct {
	Action    action.Envelope  `json:"action"`
	Mapping   *profile.Mapping `json:"mapping,omitempty"`
	ProfileID uuid.UUID        `json:"profileId"`
	At        time.Time        `json:"at"`
}

func (f Firing) MarshalJSON() ([]byte, error) {
	env, err := action.Wrap(f.Action)
	if err != nil {
		return nil, err
	}
	return json.Marshal(firingJSON{Action: env, Mapping: f.Mapping, ProfileID: f.ProfileID, At: f.At})
}

func (f *Firing) UnmarshalJSON(p []byte) error {
	var raw firingJSON
	if err := json.Unmarshal(p, &raw); err != nil {
		return err
	}
	a, err := raw.Action.Decode()
	if err != nil {
		return fmt.Errorf("decode firing action: %w", err)
	}
	*f = Firing{Action: a, Mapping: raw.Mapping, ProfileID: raw.ProfileID, At: raw.At}
	return nil
}
