package hub

import (
	"time"

	"github.com/google/uuid"

	"github.com/soar/padmapper/internal/engine"
	"github.com/soar/padmapper/internal/gamepad"
	"github.com/soar/padmapper/internal/profile"
)

// Server to client message types.
const (
	TypeFull            = "full"
	TypeDelta           = "delta"
	TypeFiring          = "firing"
	TypeProfiles        = "profiles"
	TypeProfileSelected = "profile_selected"
	TypeProfileUpdated  = "profile_updated"
	TypeError           = "error"
)

// Client to server commands.
const (
	CmdSelectProfile = "select_profile"
	CmdListProfiles  = "list_profiles"
	CmdReset         = "reset"
	CmdFocusLost     = "focus_lost"

	// Edits of the active profile.
	CmdCreateLayer       = "create_layer"
	CmdRenameLayer       = "rename_layer"
	CmdSetLayerActivator = "set_layer_activator"
	CmdDeleteLayer       = "delete_layer"
	CmdSetLayerMapping   = "set_layer_mapping"
	CmdSetButtonMapping  = "set_button_mapping"
	CmdAddChord          = "add_chord"
)

// WSMessage is a message sent from server to client.
type WSMessage struct {
	Type      string                   `json:"type"`
	Seq       int64                    `json:"seq"`       // ordering across full/delta/firing
	Timestamp int64                    `json:"timestamp"` // unix milliseconds
	Data      *gamepad.DisplayState    `json:"data,omitempty"`
	Changes   *gamepad.DeltaChanges    `json:"changes,omitempty"`
	Firing    *engine.Firing           `json:"firing,omitempty"`
	Profiles  []engine.ProfileSummary  `json:"profiles,omitempty"`
	ProfileID *uuid.UUID               `json:"profileId,omitempty"`
	Command   string                   `json:"command,omitempty"`
	ID        *uuid.UUID               `json:"id,omitempty"` // layer or chord created by Command
	Error     string                   `json:"error,omitempty"`
}

func newMessage(typ string, seq int64) *WSMessage {
	return &WSMessage{Type: typ, Seq: seq, Timestamp: time.Now().UnixMilli()}
}

// NewFullMessage carries the complete display state.
func NewFullMessage(seq int64, state *gamepad.DisplayState) *WSMessage {
	m := newMessage(TypeFull, seq)
	m.Data = state
	return m
}

// NewDeltaMessage carries only the rendered groups that changed.
func NewDeltaMessage(seq int64, changes *gamepad.DeltaChanges) *WSMessage {
	m := newMessage(TypeDelta, seq)
	m.Changes = changes
	return m
}

func NewFiringMessage(seq int64, f *engine.Firing) *WSMessage {
	m := newMessage(TypeFiring, seq)
	m.Firing = f
	return m
}

func NewProfilesMessage(profiles []engine.ProfileSummary) *WSMessage {
	m := newMessage(TypeProfiles, 0)
	m.Profiles = profiles
	return m
}

// NewProfileSelectedMessage confirms a select_profile command.
func NewProfileSelectedMessage(id uuid.UUID, profiles []engine.ProfileSummary) *WSMessage {
	m := newMessage(TypeProfileSelected, 0)
	m.ProfileID = &id
	m.Profiles = profiles
	return m
}

// NewProfileUpdatedMessage confirms a profile edit. id is nil unless the
// command created a layer or chord.
func NewProfileUpdatedMessage(cmd string, id *uuid.UUID) *WSMessage {
	m := newMessage(TypeProfileUpdated, 0)
	m.Command = cmd
	m.ID = id
	return m
}

func NewErrorMessage(err string) *WSMessage {
	m := newMessage(TypeError, 0)
	m.Error = err
	return m
}

// ClientMessage is a command sent from the client to the server. A
// set_layer_activator without Button clears the activator.
type ClientMessage struct {
	Type      string            `json:"type"`
	ProfileID string            `json:"profileId,omitempty"`
	LayerID   string            `json:"layerId,omitempty"`
	Name      string            `json:"name,omitempty"`
	Mode      profile.LayerMode `json:"mode,omitempty"`
	Button    gamepad.Button    `json:"button,omitempty"`
	Buttons   []gamepad.Button  `json:"buttons,omitempty"`
	Mapping   *profile.Mapping  `json:"mapping,omitempty"`
}
