package app

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Ilia01/assembla2gh/internal/utils"
)

var (
	rootCmd = &cobra.Command{
		Use:           "assembla2gh",
		Short:         "Move an Assembla space export into GitHub issues",
		Long:          "assembla2gh replays an Assembla export through the gh CLI so every ticket keeps its number as a GitHub issue.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(configureLogger(verbose))
			if noColor {
				utils.SetColor(false)
			}
		},
	}

	verbose    bool
	noColor    bool
	configFile string

	migrateHandler    = handleMigrate
	scanHandler       = handleScan
	configShowHandler = handleConfigShow
	configSetHandler  = handleConfigSet
	configInitHandler = handleConfigInit
	configPathHandler = handleConfigPath
)

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default ~/.assembla2gh/config.toml)")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(configCmd)
}

func configureLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

type migrateOptions struct {
	Input  string
	Repo   string
	Update bool
	// DryRun is nil when the flag was not given.
	DryRun *bool
}

var (
	migrateOpts   = migrateOptions{}
	migrateDryRun bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create milestones, labels and issues from an export",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := migrateOpts
		if cmd.Flags().Changed("dry-run") {
			dryRun := migrateDryRun
			opts.DryRun = &dryRun
		}
		return migrateHandler(cmd, opts)
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan <export-file>",
	Short: "Count the records in an export without migrating",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return scanHandler(cmd, args[0])
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowHandler(cmd)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return configSetHandler(cmd, args[0], args[1])
	},
}

var configInitForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitHandler(cmd, configInitForce)
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config path",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configPathHandler(cmd)
	},
}

func init() {
	migrateCmd.Flags().StringVarP(&migrateOpts.Input, "input", "i", "", "Export file to read")
	migrateCmd.Flags().StringVarP(&migrateOpts.Repo, "repo", "r", "", "Target repository as owner/name")
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "Print what would be done without calling gh")
	migrateCmd.Flags().BoolVar(&migrateOpts.Update, "update", false, "Edit existing issues instead of creating them")

	configInitCmd.Flags().BoolVarP(&configInitForce, "force", "f", false, "Overwrite an existing file")

	configCmd.AddCommand(configShowCmd, configSetCmd, configInitCmd, configPathCmd)
}
