package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/GoCodeAlone/extpoint/config"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the 'serve' command, which boots the demo graph
// and serves the debug endpoint until interrupted. With --config, runtime
// diagnostics follow changes to the file.
func NewServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Boot the demo graph and serve the debug endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			cfg.Debug.Enabled = true

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := newDemoContext(cfg)
			if err != nil {
				return err
			}
			if err := app.Refresh(ctx); err != nil {
				return err
			}
			if *configPath != "" {
				go func() {
					if err := app.WatchConfig(ctx, *configPath); err != nil {
						cmd.PrintErrln("config watch:", err)
					}
				}()
			}
			return app.ServeDebug(ctx)
		},
	}
}
