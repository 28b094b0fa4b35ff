//go:build !nosdl

package main

import (
	"log/slog"

	"github.com/soar/padmapper/internal/gamepad"
	"github.com/soar/padmapper/internal/gamepad/sdlreader"
)

func newJoystickSource(pollHz int, logger *slog.Logger, onInit func()) (gamepad.Source, error) {
	r := sdlreader.NewReader(pollHz, logger)
	r.OnInit(onInit)
	return r, nil
}
