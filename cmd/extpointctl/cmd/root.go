package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/GoCodeAlone/extpoint/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Version information
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// PrintVersion prints version information
func PrintVersion() string {
	return fmt.Sprintf("extpointctl v%s (commit: %s, built on: %s)", Version, Commit, Date)
}

// NewRootCommand creates the root command for the extpointctl application
func NewRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "extpointctl",
		Short: "extpointctl - inspect extension-point bootstrap",
		Long: `extpointctl boots a container with the extpoint orchestrator and reports
which hooks ran, in which order, and which instance processors were installed.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (.yaml, .yml or .toml)")

	cmd.AddCommand(NewConfigCommand(&configPath))
	cmd.AddCommand(NewInspectCommand(&configPath))
	cmd.AddCommand(NewServeCommand(&configPath))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), PrintVersion())
		},
	})
	return cmd
}

// NewConfigCommand creates the 'config' command, which prints the effective
// configuration after defaults, file and environment overrides.
func NewConfigCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			return enc.Close()
		},
	}
}

// NewInspectCommand creates the 'inspect' command, which boots the demo
// graph and prints the bootstrap report as JSON.
func NewInspectCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Boot the demo graph and print the bootstrap report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			ctx, err := newDemoContext(cfg)
			if err != nil {
				return err
			}
			if err := ctx.Refresh(cmd.Context()); err != nil {
				return err
			}
			out := struct {
				Report      any `json:"report"`
				Processors  any `json:"processors"`
				Definitions any `json:"definitions"`
			}{ctx.Report(), ctx.Processors(), ctx.Definitions()}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}
