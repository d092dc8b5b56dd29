package ui

import (
	"github.com/forest-guardian/canasat/internal/server"
	"github.com/spf13/cobra"
)

func newServeCommand(a *app) *cobra.Command {
	var addr, mapsDir string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the generated maps with health and metrics endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = a.cfg.ServeAddr
			}
			if mapsDir == "" {
				mapsDir = a.cfg.MapsDir
			}
			PrintInfo(cmd.OutOrStdout(), "Serving "+mapsDir+" on "+addr)
			return server.New(server.Config{Addr: addr, MapsDir: mapsDir}, a.metrics, a.logger).Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default serve_addr)")
	cmd.Flags().StringVar(&mapsDir, "maps-dir", "", "directory to serve (default maps_dir)")
	return cmd
}
