//go:build nosdl

package main

import (
	"errors"
	"log/slog"

	"github.com/soar/padmapper/internal/gamepad"
)

// Builds tagged nosdl never load libSDL3; only replay input is available.
var errNoJoystick = errors.New("built without joystick support (nosdl), set input.source to replay")

func newJoystickSource(int, *slog.Logger, func()) (gamepad.Source, error) {
	return nil, errNoJoystick
}
