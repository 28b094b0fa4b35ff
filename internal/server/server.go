package server

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/lxzan/gws"

	"github.com/soar/padmapper/internal/engine"
	"github.com/soar/padmapper/internal/gamepad"
	"github.com/soar/padmapper/internal/hub"
)

const maxClientMessage = 4 << 10

// StateProvider is the read-only engine view exposed over HTTP.
type StateProvider interface {
	Profiles() []engine.ProfileSummary
	Display() gamepad.DisplayState
}

type Options struct {
	Addr   string
	Minify bool
}

type Server struct {
	opts       Options
	handler    http.Handler
	logger     *slog.Logger
	httpServer *http.Server
}

// New builds the viewer server: the websocket hub at /ws, a small JSON API
// and the frontend assets at /.
func New(events *hub.Handler, state StateProvider, frontendFS fs.FS, opts Options, logger *slog.Logger) (*Server, error) {
	static, err := loadAssets(frontendFS, opts.Minify)
	if err != nil {
		return nil, err
	}

	upgrader := gws.NewUpgrader(events, &gws.ServerOption{
		ReadMaxPayloadSize: maxClientMessage,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", handleWebSocket(upgrader, logger))
	mux.HandleFunc("GET /api/profiles", handleProfiles(state))
	mux.HandleFunc("GET /api/state", handleState(state))
	mux.Handle("/", static)

	return &Server{
		opts:    opts,
		handler: mux,
		logger:  logger,
		httpServer: &http.Server{
			Addr:              opts.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) ListenAndServe() error {
	s.logger.Info("HTTP server listening", "addr", s.opts.Addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
