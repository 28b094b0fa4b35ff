package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/soar/padmapper/internal/engine"
	"github.com/soar/padmapper/internal/logging"
	"github.com/soar/padmapper/internal/profile"
	"github.com/soar/padmapper/internal/replay"
)

func (c *cli) newReplayCmd() *cobra.Command {
	var pretty bool
	cmd := &cobra.Command{
		Use:   "replay <script>",
		Short: "Run a recorded input script through the recognizer and print every firing",
		Long: `replay feeds a YAML input script through the configured profiles on the
script's own timeline, without a controller or the viewer, and writes each
firing to stdout as one JSON object per line.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := c.load()
			if err != nil {
				return err
			}
			profiles, err := cfg.BuildProfiles()
			if err != nil {
				return err
			}
			script, err := replay.LoadFile(args[0])
			if err != nil {
				return err
			}

			eng := engine.New(cfg.Engine(), profile.NewManager(profiles), logging.Component(logger, "engine"))
			enc := json.NewEncoder(cmd.OutOrStdout())
			if pretty {
				enc.SetIndent("", "  ")
			}

			samples := script.Samples(time.Now())
			var count int
			var encErr error
			eng.Replay(samples, func(f engine.Firing) {
				count++
				if encErr == nil {
					encErr = enc.Encode(f)
				}
			})
			logger.Info("replay finished", "samples", len(samples), "firings", count)
			return encErr
		},
	}
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent JSON output")
	return cmd
}
