// Package cmd implements the pricewatch command-line interface: one
// subcommand per pipeline role plus operational helpers.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raulshma/tech-ticker-sub007/internal/bootstrap"
	infraconfig "github.com/raulshma/tech-ticker-sub007/internal/infrastructure/config"
)

const defaultConfigFile = "config.yml"

// version is set at build time with -ldflags.
var version = "dev"

// cfgFile holds the path to the configuration file.
var cfgFile string

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "pricewatch",
		Short:         "Asynchronous price scraping pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $CONFIG_PATH or ./"+defaultConfigFile+")")

	for _, role := range bootstrap.AllRoles {
		root.AddCommand(roleCommand(role))
	}
	root.AddCommand(runCommand())
	root.AddCommand(historyCommand())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pricewatch version %s\n", version)
		},
	})
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().ExecuteContext(context.Background())
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return infraconfig.GetConfigPath(defaultConfigFile)
}

var roleDescriptions = map[bootstrap.Role]string{
	bootstrap.RoleScheduler:  "Dispatch scrape commands for due mappings",
	bootstrap.RoleExecutor:   "Execute scrape commands",
	bootstrap.RoleCorrelator: "Apply scrape outcomes to the schedule",
	bootstrap.RoleNormalizer: "Validate and normalize raw price points",
	bootstrap.RoleRecorder:   "Append normalized price points to history",
	bootstrap.RoleAPI:        "Serve the read-only HTTP API",
}

func roleCommand(role bootstrap.Role) *cobra.Command {
	return &cobra.Command{
		Use:   string(role),
		Short: roleDescriptions[role],
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return bootstrap.Start(configPath(), role)
		},
	}
}

func runCommand() *cobra.Command {
	var roles string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run several roles in one process",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			parsed, err := bootstrap.ParseRoles(roles)
			if err != nil {
				return err
			}
			return bootstrap.Start(configPath(), parsed...)
		},
	}
	cmd.Flags().StringVar(&roles, "roles", "all", "comma-separated roles to run, or \"all\"")
	return cmd
}
