package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/soar/padmapper/internal/config"
)

func (c *cli) newCheckCmd() *cobra.Command {
	var export bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and list its profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := c.load()
			if err != nil {
				return err
			}
			profiles, err := cfg.BuildProfiles()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if export {
				files := make([]config.ProfileFile, 0, len(profiles))
				for _, p := range profiles {
					files = append(files, config.FromProfile(p))
				}
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(struct {
					Profiles []config.ProfileFile `yaml:"profiles"`
				}{files}); err != nil {
					return err
				}
				return enc.Close()
			}

			if used := c.v.ConfigFileUsed(); used != "" {
				fmt.Fprintf(out, "config %s ok\n", used)
			} else {
				fmt.Fprintln(out, "no config file, defaults ok")
			}
			for _, p := range profiles {
				marker := " "
				if p.IsDefault {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s  %s  buttons=%d chords=%d sequences=%d gestures=%d layers=%d\n",
					marker, p.ID, p.Name, len(p.Buttons), len(p.Chords), len(p.Sequences), len(p.Gestures), len(p.Layers))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&export, "export", false, "print the profiles as YAML with their resolved ids")
	return cmd
}
