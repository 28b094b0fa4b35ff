package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/soar/padmapper/internal/config"
	"github.com/soar/padmapper/internal/console"
	"github.com/soar/padmapper/internal/dispatch"
	"github.com/soar/padmapper/internal/engine"
	"github.com/soar/padmapper/internal/gamepad"
	"github.com/soar/padmapper/internal/hub"
	"github.com/soar/padmapper/internal/logging"
	"github.com/soar/padmapper/internal/profile"
	"github.com/soar/padmapper/internal/replay"
	"github.com/soar/padmapper/internal/server"
	"github.com/soar/padmapper/internal/tray"
)

const shutdownTimeout = 5 * time.Second

// newSource picks the sample source. onInit runs on the joystick reader
// thread once SDL is up.
func newSource(cfg config.Config, logger *slog.Logger, onInit func()) (gamepad.Source, error) {
	switch cfg.Input.Source {
	case config.SourceReplay:
		script, err := replay.LoadFile(cfg.Input.ReplayFile)
		if err != nil {
			return nil, err
		}
		return replay.NewSource(script, cfg.Input.Realtime, logging.Component(logger, "replay")), nil
	default:
		return newJoystickSource(cfg.Input.PollHz, logging.Component(logger, "gamepad"), onInit)
	}
}

func (c *cli) runService(ctx context.Context) error {
	cfg, logger, err := c.load()
	if err != nil {
		return err
	}
	profiles, err := cfg.BuildProfiles()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eng := engine.New(cfg.Engine(), profile.NewManager(profiles), logging.Component(logger, "engine"))

	rearm := console.OnInterrupt(cancel, logger)
	src, err := newSource(cfg, logger, rearm)
	if err != nil {
		return err
	}

	webhooks := dispatch.NewWebhookSink(cfg.Dispatch.WebhookTimeout, 0, logging.Component(logger, "webhook"))
	sinks := []dispatch.Sink{
		dispatch.NewLogSink(logging.Component(logger, "firings"), cfg.Dispatch.LogFirings),
		webhooks,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ignoreCanceled(src.Run(gctx))
	})
	g.Go(func() error {
		err := eng.Run(gctx, src.Samples())
		if err == nil {
			logger.Info("sample source finished")
		}
		return ignoreCanceled(err)
	})

	if cfg.Server.Enabled {
		h := hub.NewHub(logging.Component(logger, "hub"))
		b := hub.NewBroadcaster(h, eng.Displays(), logging.Component(logger, "broadcast"))
		events := hub.NewHandler(h, b, eng, logging.Component(logger, "ws"))
		srv, err := server.New(events, eng, getFrontendFS(), server.Options{
			Addr:   cfg.Server.Addr,
			Minify: cfg.Server.Minify,
		}, logging.Component(logger, "http"))
		if err != nil {
			return err
		}
		sinks = append(sinks, b)

		g.Go(func() error {
			h.Run(gctx)
			return nil
		})
		g.Go(func() error {
			b.Run(gctx)
			return nil
		})
		g.Go(func() error {
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		logger.Info("padmapper started", "url", "http://"+hostAddr(cfg.Server.Addr))
	}

	pump := dispatch.NewPump(logging.Component(logger, "dispatch"), sinks...)
	g.Go(func() error {
		return ignoreCanceled(pump.Run(gctx, eng.Firings()))
	})

	if c.v.ConfigFileUsed() != "" {
		config.Watch(c.v, logging.Component(logger, "config"), func(next config.Config) {
			profiles, err := next.BuildProfiles()
			if err != nil {
				logger.Warn("reloaded profiles rejected", "error", err)
				return
			}
			eng.UpdateConfig(next.Engine())
			eng.ReplaceProfiles(profiles)
		})
	}

	if cfg.Server.Tray || !console.Interactive() {
		t := tray.New("http://"+hostAddr(cfg.Server.Addr), tray.Actions{
			Reset:         eng.Reset,
			SelectProfile: eng.SelectProfile,
			Profiles:      eng.Profiles,
			Shutdown:      cancel,
		}, logging.Component(logger, "tray"))
		go t.Run()
		defer t.Quit()
	} else {
		logger.Info("press Ctrl+C to exit")
	}

	err = g.Wait()
	if cerr := webhooks.Close(); cerr != nil {
		logger.Warn("webhook deliveries failed at shutdown", "error", cerr)
	}
	logger.Info("padmapper stopped")
	return err
}
