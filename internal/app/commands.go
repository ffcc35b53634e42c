package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ilia01/assembla2gh/internal/assembla"
	"github.com/Ilia01/assembla2gh/internal/config"
	"github.com/Ilia01/assembla2gh/internal/github"
	"github.com/Ilia01/assembla2gh/internal/markup"
	"github.com/Ilia01/assembla2gh/internal/migrate"
	"github.com/Ilia01/assembla2gh/internal/utils"
)

var (
	runnerFactory = func(binary string) github.Runner {
		return github.NewCLI(binary)
	}

	operatorInput io.Reader = os.Stdin
)

func handleMigrate(cmd *cobra.Command, opts migrateOptions) error {
	out := cmd.OutOrStdout()
	settings, _, err := loadSettings()
	if err != nil {
		return err
	}
	if opts.Input != "" {
		settings.Migration.Input = opts.Input
	}
	if opts.Repo != "" {
		settings.Migration.Repo = opts.Repo
	}
	if opts.Update {
		settings.Migration.Mode = config.ModeUpdate
	}
	if opts.DryRun != nil {
		settings.Migration.DryRun = *opts.DryRun
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	exp, err := assembla.ReadFile(settings.Migration.Input)
	if err != nil {
		return err
	}
	printCounts(out, exp.Counts)

	ds, err := assembla.Build(exp, assembla.Options{
		Users:        settings.Users,
		GitHubUsers:  settings.GitHubUsers,
		CloseReasons: settings.CloseReasons,
		Priorities:   settings.Priorities,
		UTCOffset:    settings.Migration.UTCOffset.Duration,
		Rewriter:     markup.NewRewriter(settings.Migration.Repo),
	})
	if err != nil {
		return err
	}

	executor := github.NewExecutor(runnerFactory(settings.Migration.GHBinary), executorOptions(settings, out))
	if executor.DryRun() {
		fmt.Fprintln(out, utils.Yellow(utils.Bold("Dry run: no gh commands will be executed")))
	}

	migrator := migrate.New(ds, executor, migrate.Options{
		Repo:            settings.Migration.Repo,
		OutputDir:       settings.Migration.OutputDir,
		MilestoneOffset: settings.Migration.MilestoneOffset,
		Update:          settings.Migration.Mode == config.ModeUpdate,
		Logger:          slog.Default(),
	}, out)

	started := time.Now()
	if err := migrator.Run(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(out, utils.Green(utils.Bold(fmt.Sprintf("✓ Migrated %d tickets to %s in %s", len(ds.Tickets), settings.Migration.Repo, time.Since(started).Round(time.Second)))))
	return nil
}

func executorOptions(settings *config.Settings, out io.Writer) github.ExecutorOptions {
	opts := github.ExecutorOptions{
		DryRun:          settings.Migration.DryRun,
		ThrottleEvery:   settings.Throttle.Every,
		ThrottlePause:   settings.Throttle.Pause.Duration,
		RateLimitMarker: settings.Throttle.RateLimitMarker,
		MaxRetries:      settings.Throttle.MaxRetries,
		RetryInterval:   settings.Throttle.RetryInterval.Duration,
		Logger:          slog.Default(),
	}
	if settings.Throttle.Interactive {
		opts.WaitForOperator = func(ctx context.Context) error {
			return utils.WaitForEnter(ctx, operatorInput, out, "GitHub is rate limiting. Press Enter to retry...")
		}
	}
	return opts
}

func handleScan(cmd *cobra.Command, path string) error {
	exp, err := assembla.ReadFile(path)
	if err != nil {
		return err
	}
	printCounts(cmd.OutOrStdout(), exp.Counts)
	return nil
}

func printCounts(out io.Writer, counts []assembla.TagCount) {
	fmt.Fprintln(out, utils.Cyan(utils.Bold("Records in export")))
	for _, c := range counts {
		fmt.Fprintf(out, "  %s %s\n", utils.Dim(c.Tag+":"), utils.BrightWhite(strconv.Itoa(c.Count)))
	}
}

func handleConfigShow(cmd *cobra.Command) error {
	settings, path, err := loadSettings()
	if err != nil {
		return err
	}
	printConfig(cmd.OutOrStdout(), settings, path)
	return nil
}

func handleConfigSet(cmd *cobra.Command, key, value string) error {
	settings, path, err := loadSettings()
	if err != nil {
		return err
	}
	if err := updateConfigValue(settings, key, value); err != nil {
		return err
	}
	if err := settings.Save(path); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), utils.Green(utils.Bold(fmt.Sprintf("✓ Updated %s to: %s", key, value))))
	return nil
}

func handleConfigInit(cmd *cobra.Command, force bool) error {
	path, err := settingsPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	}
	if err := config.Default().Save(path); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), utils.Green(utils.Bold("✓ Configuration written to "+path)))
	fmt.Fprintln(cmd.OutOrStdout(), utils.Dim("Set migration.repo and fill in the [users] table before migrating."))
	return nil
}

func handleConfigPath(cmd *cobra.Command) error {
	path, err := settingsPath()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func settingsPath() (string, error) {
	if configFile != "" {
		return configFile, nil
	}
	return config.ConfigPath()
}

// loadSettings falls back to the defaults when the default config file is
// missing. A file named with --config must exist.
func loadSettings() (*config.Settings, string, error) {
	path, err := settingsPath()
	if err != nil {
		return nil, "", err
	}
	settings, err := config.Load(path)
	if err != nil {
		if !errors.Is(err, config.ErrConfigNotFound) {
			return nil, "", err
		}
		if configFile != "" {
			return nil, "", fmt.Errorf("configuration not found at %s. Run 'assembla2gh config init' first", path)
		}
		settings = config.Default()
	}
	if err := settings.ApplyEnv(); err != nil {
		return nil, "", err
	}
	return settings, path, nil
}

func printConfig(out io.Writer, settings *config.Settings, path string) {
	fmt.Fprintln(out, utils.Cyan(utils.Bold("Current Configuration")))
	fmt.Fprintln(out, utils.Dim(path))
	fmt.Fprintln(out)

	m := settings.Migration
	fmt.Fprintln(out, utils.Bold("[migration]"))
	printValue(out, "repo", m.Repo)
	printValue(out, "input", m.Input)
	printValue(out, "output_dir", m.OutputDir)
	printValue(out, "utc_offset", m.UTCOffset.String())
	printValue(out, "dry_run", strconv.FormatBool(m.DryRun))
	printValue(out, "milestone_offset", strconv.Itoa(m.MilestoneOffset))
	printValue(out, "mode", m.Mode)
	printValue(out, "gh_binary", m.GHBinary)

	th := settings.Throttle
	fmt.Fprintln(out)
	fmt.Fprintln(out, utils.Bold("[throttle]"))
	printValue(out, "every", strconv.Itoa(th.Every))
	printValue(out, "pause", th.Pause.String())
	printValue(out, "rate_limit_marker", th.RateLimitMarker)
	printValue(out, "max_retries", strconv.Itoa(th.MaxRetries))
	printValue(out, "retry_interval", th.RetryInterval.String())
	printValue(out, "interactive", strconv.FormatBool(th.Interactive))

	printTable(out, "users", settings.Users)
	printTable(out, "github_users", settings.GitHubUsers)
	printTable(out, "close_reasons", settings.CloseReasons)
	printTable(out, "priorities", settings.Priorities)
}

func printValue(out io.Writer, key, value string) {
	fmt.Fprintf(out, "  %s %s\n", utils.Dim(key+":"), utils.BrightWhite(value))
}

func printTable(out io.Writer, name string, table map[string]string) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, utils.Bold("["+name+"]"))
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		printValue(out, k, table[k])
	}
}

func updateConfigValue(settings *config.Settings, key, value string) error {
	section, field, ok := strings.Cut(key, ".")
	if !ok || field == "" {
		return errors.New("invalid key format. Use section.field (e.g., migration.repo)")
	}

	switch section {
	case "migration":
		return setMigrationValue(&settings.Migration, field, value)
	case "throttle":
		return setThrottleValue(&settings.Throttle, field, value)
	case "users":
		settings.Users[field] = value
	case "github_users":
		settings.GitHubUsers[field] = value
	case "close_reasons":
		settings.CloseReasons[field] = value
	case "priorities":
		settings.Priorities[field] = value
	default:
		return fmt.Errorf("unknown section: %s", section)
	}
	return nil
}

func setMigrationValue(m *config.Migration, field, value string) error {
	var err error
	switch field {
	case "repo":
		m.Repo = value
	case "input":
		m.Input = value
	case "output_dir":
		m.OutputDir = value
	case "utc_offset":
		err = m.UTCOffset.UnmarshalText([]byte(value))
	case "dry_run":
		m.DryRun, err = strconv.ParseBool(value)
	case "milestone_offset":
		m.MilestoneOffset, err = strconv.Atoi(value)
	case "mode":
		if value != config.ModeCreate && value != config.ModeUpdate {
			return fmt.Errorf("mode must be %s or %s", config.ModeCreate, config.ModeUpdate)
		}
		m.Mode = value
	case "gh_binary":
		m.GHBinary = value
	default:
		return fmt.Errorf("unknown migration field: %s", field)
	}
	if err != nil {
		return fmt.Errorf("migration.%s: %w", field, err)
	}
	return nil
}

func setThrottleValue(th *config.Throttle, field, value string) error {
	var err error
	switch field {
	case "every":
		th.Every, err = strconv.Atoi(value)
	case "pause":
		err = th.Pause.UnmarshalText([]byte(value))
	case "rate_limit_marker":
		th.RateLimitMarker = value
	case "max_retries":
		th.MaxRetries, err = strconv.Atoi(value)
	case "retry_interval":
		err = th.RetryInterval.UnmarshalText([]byte(value))
	case "interactive":
		th.Interactive, err = strconv.ParseBool(value)
	default:
		return fmt.Errorf("unknown throttle field: %s", field)
	}
	if err != nil {
		return fmt.Errorf("throttle.%s: %w", field, err)
	}
	return nil
}
