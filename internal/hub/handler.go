package hub

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lxzan/gws"

	"github.com/soar/padmapper/internal/engine"
	"github.com/soar/padmapper/internal/profile"
)

// Controller is the engine surface viewers may drive.
type Controller interface {
	SelectProfile(id uuid.UUID) bool
	Reset()
	FocusLost()
	Profiles() []engine.ProfileSummary
	Mutate(fn func(r *profile.Resolver) bool) bool
}

const sessionClient = "client"

// Handler implements gws.Event for viewer connections.
type Handler struct {
	hub         *Hub
	broadcaster *Broadcaster
	controller  Controller
	logger      *slog.Logger
}

func NewHandler(h *Hub, b *Broadcaster, ctrl Controller, logger *slog.Logger) *Handler {
	return &Handler{hub: h, broadcaster: b, controller: ctrl, logger: logger}
}

func (h *Handler) OnOpen(socket *gws.Conn) {
	c := NewClient(socket)
	socket.Session().Store(sessionClient, c)
	h.Open(c)
	go c.WritePump()
}

// Open registers c and sends it the current state and profile list.
func (h *Handler) Open(c *Client) {
	h.hub.Register(c)
	h.broadcaster.SendInitialState(c)
	h.hub.Send(c, NewProfilesMessage(h.controller.Profiles()))
}

func (h *Handler) OnClose(socket *gws.Conn, err error) {
	if c := clientOf(socket); c != nil {
		h.logger.Debug("connection closed", "client", c.id, "error", err)
		h.hub.Unregister(c)
	}
}

func (h *Handler) OnPing(socket *gws.Conn, payload []byte) {
	_ = socket.WritePong(payload)
}

func (h *Handler) OnPong(socket *gws.Conn, payload []byte) {}

func (h *Handler) OnMessage(socket *gws.Conn, message *gws.Message) {
	defer message.Close()
	if c := clientOf(socket); c != nil {
		h.Handle(c, message.Bytes())
	}
}

func clientOf(socket *gws.Conn) *Client {
	v, ok := socket.Session().Load(sessionClient)
	if !ok {
		return nil
	}
	c, _ := v.(*Client)
	return c
}

// Handle executes one client command.
func (h *Handler) Handle(c *Client, data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.logger.Warn("parse client message", "client", c.id, "error", err)
		h.hub.Send(c, NewErrorMessage("malformed message"))
		return
	}

	switch msg.Type {
	case CmdSelectProfile:
		id, err := uuid.Parse(msg.ProfileID)
		if err != nil || !h.controller.SelectProfile(id) {
			h.logger.Warn("select profile failed", "client", c.id, "profile", msg.ProfileID)
			h.hub.Send(c, NewErrorMessage(fmt.Sprintf("unknown profile %q", msg.ProfileID)))
			return
		}
		h.hub.Send(c, NewProfileSelectedMessage(id, h.controller.Profiles()))
		h.logger.Info("client switched profile", "client", c.id, "profile", id)

	case CmdListProfiles:
		h.hub.Send(c, NewProfilesMessage(h.controller.Profiles()))

	case CmdReset:
		h.controller.Reset()

	case CmdFocusLost:
		h.controller.FocusLost()

	case CmdCreateLayer, CmdRenameLayer, CmdSetLayerActivator, CmdDeleteLayer,
		CmdSetLayerMapping, CmdSetButtonMapping, CmdAddChord:
		h.edit(c, msg)

	default:
		h.hub.Send(c, NewErrorMessage(fmt.Sprintf("unknown command %q", msg.Type)))
	}
}

// edit applies one profile edit through the controller. Rejected edits
// leave the profile untouched and answer with an error.
func (h *Handler) edit(c *Client, msg ClientMessage) {
	var layerID uuid.UUID
	switch msg.Type {
	case CmdRenameLayer, CmdSetLayerActivator, CmdDeleteLayer, CmdSetLayerMapping:
		id, err := uuid.Parse(msg.LayerID)
		if err != nil {
			h.hub.Send(c, NewErrorMessage(fmt.Sprintf("%s: invalid layer id %q", msg.Type, msg.LayerID)))
			return
		}
		layerID = id
	}

	var m profile.Mapping
	if msg.Mapping != nil {
		m = *msg.Mapping
	}

	var created *uuid.UUID
	ok := h.controller.Mutate(func(r *profile.Resolver) bool {
		switch msg.Type {
		case CmdCreateLayer:
			l, ok := r.CreateLayer(msg.Name, msg.Button, msg.Mode)
			if ok {
				created = &l.ID
			}
			return ok
		case CmdRenameLayer:
			return r.RenameLayer(layerID, msg.Name)
		case CmdSetLayerActivator:
			return r.SetLayerActivator(layerID, msg.Button)
		case CmdDeleteLayer:
			return r.DeleteLayer(layerID)
		case CmdSetLayerMapping:
			return r.SetLayerMapping(layerID, msg.Button, m)
		case CmdSetButtonMapping:
			return r.SetButtonMapping(msg.Button, m)
		case CmdAddChord:
			cm, ok := r.AddChord(msg.Buttons, m)
			if ok {
				created = &cm.ID
			}
			return ok
		}
		return false
	})
	if !ok {
		h.logger.Warn("profile edit rejected", "client", c.id, "command", msg.Type)
		h.hub.Send(c, NewErrorMessage(fmt.Sprintf("%s rejected", msg.Type)))
		return
	}
	h.logger.Info("profile edited", "client", c.id, "command", msg.Type)
	h.hub.Send(c, NewProfileUpdatedMessage(msg.Type, created))
}
