package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/soar/padmapper/internal/config"
	"github.com/soar/padmapper/internal/logging"
)

type cli struct {
	v          *viper.Viper
	configPath string
}

func newRootCmd() (*cobra.Command, error) {
	c := &cli{v: config.NewViper()}

	root := &cobra.Command{
		Use:   "padmapper",
		Short: "padmapper - controller chords, sequences and gestures mapped to actions",
		Long: `padmapper reads a game controller, recognizes chords, button sequences,
motion gestures and touchpad gestures, and resolves them through the active
profile and its layers into actions.

Without a subcommand it runs the recognizer together with the browser viewer
at the configured address. Firings are logged and posted to any webhook the
mapping names.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runService(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "config file (default: padmapper.yaml in . or the user config dir)")
	if err := config.BindFlags(flags, c.v); err != nil {
		return nil, err
	}

	run := &cobra.Command{
		Use:   "run",
		Short: "Run the recognizer and viewer (the default)",
		Args:  cobra.NoArgs,
		RunE:  root.RunE,
	}
	root.AddCommand(run, c.newReplayCmd(), c.newWatchCmd(), c.newCheckCmd())
	return root, nil
}

func (c *cli) load() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(c.v, c.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr), nil
}

// hostAddr turns a listen address into one a local client can dial.
func hostAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func main() {
	root, err := newRootCmd()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = root.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
