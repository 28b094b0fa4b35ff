package main

import (
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/soar/padmapper/internal/hub"
)

func (c *cli) newWatchCmd() *cobra.Command {
	var (
		url       string
		state     bool
		profileID string
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print firings from a running padmapper",
		Long: `watch connects to the websocket hub of a running padmapper and prints each
message as a JSON line. Display updates are skipped unless --state is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				cfg, _, err := c.load()
				if err != nil {
					return err
				}
				url = "ws://" + hostAddr(cfg.Server.Addr) + "/ws"
			}

			conn, _, err := websocket.DefaultDialer.DialContext(cmd.Context(), url, nil)
			if err != nil {
				return fmt.Errorf("dial %s: %w", url, err)
			}
			defer conn.Close()

			go func() {
				<-cmd.Context().Done()
				conn.Close()
			}()

			if profileID != "" {
				if err := conn.WriteJSON(hub.ClientMessage{Type: hub.CmdSelectProfile, ProfileID: profileID}); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			for {
				_, data, err := conn.ReadMessage()
				if err != nil {
					if cmd.Context().Err() != nil {
						return nil
					}
					return err
				}
				var head struct {
					Type string `json:"type"`
				}
				if err := json.Unmarshal(data, &head); err != nil {
					continue
				}
				if !state && (head.Type == hub.TypeFull || head.Type == hub.TypeDelta) {
					continue
				}
				fmt.Fprintln(out, string(data))
			}
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "websocket URL (default: derived from --addr)")
	cmd.Flags().BoolVar(&state, "state", false, "also print full and delta display messages")
	cmd.Flags().StringVar(&profileID, "select", "", "select this profile id before watching")
	return cmd
}
