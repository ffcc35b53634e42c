package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Ilia01/assembla2gh/internal/config"
	"github.com/Ilia01/assembla2gh/internal/github"
)

const exportFixture = `ticket_statuses:fields, ["id","space_tool_id","name","state"]
ticket_statuses, [11,1,"New","1"]
ticket_statuses, [12,1,"Fixed","0"]
milestones, [50,"2023-01-31","Alpha",0,0,"u1",0,"first",1,"2023-02-01"]
tickets, [100,1,"u1","u1",0,"One",2,"first ticket","2023-01-02T03:04:05","2023-01-03T03:04:05",50,0,0,0,0,0,0,0,0,12,0,0,0,"1.5"]
tickets, [101,3,"u1","null",0,"Three",3,"see https://app.assembla.com/spaces/acme/tickets/1","2023-01-02T03:04:05","2023-01-03T03:04:05",null,0,0,0,0,0,0,0,0,11,0,0,0,"0.0"]
ticket_comments, [1,100,"u1",0,"2023-01-02T05:00:00","nice"]
workflow_property_vals, [1,100,"Ticket",1,"bug"]
`

func TestMigrateCommandFlags(t *testing.T) {
	resetFlags(t)
	var got migrateOptions
	restore := swapMigrateHandler(func(cmd *cobra.Command, opts migrateOptions) error {
		got = opts
		return nil
	})
	defer restore()

	if _, err := executeCLI("migrate", "--input", "dump.txt", "--repo", "acme/widgets", "--update", "--dry-run"); err != nil {
		t.Fatalf("migrate command failed: %v", err)
	}
	if got.Input != "dump.txt" || got.Repo != "acme/widgets" || !got.Update {
		t.Fatalf("flags not passed correctly: %+v", got)
	}
	if got.DryRun == nil || !*got.DryRun {
		t.Fatalf("dry run flag not passed")
	}
}

func TestMigrateCommandLeavesDryRunUnset(t *testing.T) {
	resetFlags(t)
	var got migrateOptions
	restore := swapMigrateHandler(func(cmd *cobra.Command, opts migrateOptions) error {
		got = opts
		return nil
	})
	defer restore()

	if _, err := executeCLI("migrate"); err != nil {
		t.Fatalf("migrate command failed: %v", err)
	}
	if got.DryRun != nil {
		t.Fatalf("dry run should come from config when the flag is absent")
	}
}

func TestScanCommandInvokesHandler(t *testing.T) {
	resetFlags(t)
	called := false
	restore := swapScanHandler(func(cmd *cobra.Command, path string) error {
		called = true
		if path != "export.txt" {
			t.Fatalf("unexpected path: %s", path)
		}
		return nil
	})
	defer restore()

	if _, err := executeCLI("scan", "export.txt"); err != nil {
		t.Fatalf("scan command failed: %v", err)
	}
	if !called {
		t.Fatalf("handler not called")
	}
	if _, err := executeCLI("scan"); err == nil {
		t.Fatalf("scan without a file should fail")
	}
}

func TestConfigSetCommand(t *testing.T) {
	resetFlags(t)
	called := false
	restore := swapConfigSetHandler(func(cmd *cobra.Command, key, value string) error {
		called = true
		if key != "migration.repo" || value != "acme/widgets" {
			t.Fatalf("unexpected args %s %s", key, value)
		}
		return nil
	})
	defer restore()

	if _, err := executeCLI("config", "set", "migration.repo", "acme/widgets"); err != nil {
		t.Fatalf("config set failed: %v", err)
	}
	if !called {
		t.Fatalf("handler not called")
	}
}

func TestUpdateConfigValue(t *testing.T) {
	settings := config.Default()
	updates := map[string]string{
		"migration.repo":             "acme/widgets",
		"migration.utc_offset":       "-2h",
		"migration.milestone_offset": "4",
		"throttle.every":             "12",
		"throttle.interactive":       "false",
		"users.u1":                   "Mannan",
		"github_users.u1":            "MannanM",
		"close_reasons.Duplicate":    "not planned",
	}
	for key, value := range updates {
		if err := updateConfigValue(settings, key, value); err != nil {
			t.Fatalf("update %s: %v", key, err)
		}
	}
	if settings.Migration.Repo != "acme/widgets" || settings.Migration.UTCOffset.Duration != -2*time.Hour {
		t.Fatalf("migration not updated: %+v", settings.Migration)
	}
	if settings.Migration.MilestoneOffset != 4 || settings.Throttle.Every != 12 || settings.Throttle.Interactive {
		t.Fatalf("numbers not updated: %+v %+v", settings.Migration, settings.Throttle)
	}
	if settings.Users["u1"] != "Mannan" || settings.GitHubUsers["u1"] != "MannanM" || settings.CloseReasons["Duplicate"] != "not planned" {
		t.Fatalf("tables not updated")
	}

	for _, key := range []string{"repo", "jira.url", "migration.colour", "throttle.every"} {
		value := "x"
		if err := updateConfigValue(settings, key, value); err == nil {
			t.Fatalf("expected error for %s=%s", key, value)
		}
	}
	if err := updateConfigValue(settings, "migration.mode", "merge"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestConfigInitShowAndPath(t *testing.T) {
	resetFlags(t)
	path := filepath.Join(t.TempDir(), "config.toml")

	if _, err := executeCLI("--config", path, "config", "init"); err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if _, err := executeCLI("--config", path, "config", "init"); err == nil {
		t.Fatalf("init should refuse to overwrite")
	}
	if _, err := executeCLI("--config", path, "config", "init", "--force"); err != nil {
		t.Fatalf("forced init failed: %v", err)
	}

	out, err := executeCLI("--config", path, "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	for _, want := range []string{"[migration]", "dry_run: true", "every: 9", "null: Unassigned", "Invalid: not planned"} {
		if !strings.Contains(out, want) {
			t.Fatalf("show output missing %q:\n%s", want, out)
		}
	}

	out, err = executeCLI("--config", path, "config", "path")
	if err != nil {
		t.Fatalf("config path failed: %v", err)
	}
	if strings.TrimSpace(out) != path {
		t.Fatalf("unexpected path output: %q", out)
	}
}

func TestMissingExplicitConfig(t *testing.T) {
	resetFlags(t)
	_, err := executeCLI("--config", filepath.Join(t.TempDir(), "absent.toml"), "config", "show")
	if err == nil || !strings.Contains(err.Error(), "config init") {
		t.Fatalf("expected init hint, got %v", err)
	}
}

func TestMigrateRequiresRepo(t *testing.T) {
	resetFlags(t)
	t.Setenv("HOME", t.TempDir())
	chdir(t, t.TempDir())

	_, err := executeCLI("migrate", "--input", "export.txt")
	if err == nil || !strings.Contains(err.Error(), "migration.repo") {
		t.Fatalf("expected repo validation error, got %v", err)
	}
}

func TestEndToEndMigration(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	chdir(t, dir)

	exportPath := filepath.Join(dir, "export.txt")
	if err := os.WriteFile(exportPath, []byte(exportFixture), 0o644); err != nil {
		t.Fatalf("write export: %v", err)
	}

	settings := config.Default()
	settings.Migration.Repo = "acme/widgets"
	settings.Migration.Input = exportPath
	settings.Migration.OutputDir = filepath.Join(dir, "Tickets")
	settings.Throttle.Pause = config.Duration{}
	settings.Users["u1"] = "Mannan"
	settings.GitHubUsers["u1"] = "MannanM"
	cfgPath := filepath.Join(dir, "config.toml")
	if err := settings.Save(cfgPath); err != nil {
		t.Fatalf("failed to save settings: %v", err)
	}

	runner := &fakeRunner{}
	restore := swapRunnerFactory(func(binary string) github.Runner {
		if binary != "gh" {
			t.Fatalf("unexpected binary: %s", binary)
		}
		return runner
	})
	defer restore()

	out, err := executeCLI("--config", cfgPath, "migrate", "--dry-run=false")
	if err != nil {
		t.Fatalf("migrate failed: %v", err)
	}

	var lines []string
	for _, call := range runner.calls {
		lines = append(lines, strings.Join(call[:2], " "))
	}
	want := []string{
		"api repos/acme/widgets/milestones",
		"label create",
		"issue create",
		"issue close",
		"issue create",
		"issue close",
		"issue create",
		"api repos/acme/widgets/milestones/1",
	}
	if strings.Join(lines, "\n") != strings.Join(want, "\n") {
		t.Fatalf("unexpected gh calls:\n%s", strings.Join(lines, "\n"))
	}

	three := runner.calls[6]
	if !strings.Contains(strings.Join(three, " "), "https://github.com/acme/widgets/issues/1") {
		t.Fatalf("ticket link not rewritten: %v", three)
	}
	if _, err := os.Stat(filepath.Join(dir, "Tickets", "0001.md")); err != nil {
		t.Fatalf("snapshot missing: %v", err)
	}
	for _, want := range []string{"tickets: 2", "No ticket found with the given ID = 2", "Migrated 2 tickets to acme/widgets"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestEndToEndDryRun(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("HOME", dir)
	t.Setenv("ASSEMBLA2GH_REPO", "acme/widgets")

	if err := os.WriteFile(filepath.Join(dir, "export.txt"), []byte(exportFixture), 0o644); err != nil {
		t.Fatalf("write export: %v", err)
	}

	runner := &fakeRunner{}
	restore := swapRunnerFactory(func(string) github.Runner { return runner })
	defer restore()

	// unknown reporter u1 fails before anything is emitted
	if _, err := executeCLI("migrate"); err == nil || !strings.Contains(err.Error(), "unknown user") {
		t.Fatalf("expected unknown user error, got %v", err)
	}

	if _, err := executeCLI("config", "set", "users.u1", "Mannan"); err != nil {
		t.Fatalf("config set failed: %v", err)
	}
	out, err := executeCLI("migrate")
	if err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	if len(runner.calls) != 0 {
		t.Fatalf("dry run should not run gh: %v", runner.calls)
	}
	if !strings.Contains(out, "Dry run") {
		t.Fatalf("dry run not announced:\n%s", out)
	}
}

type fakeRunner struct {
	calls [][]string
}

func (f *fakeRunner) Run(ctx context.Context, args ...string) (string, error) {
	f.calls = append(f.calls, args)
	if args[0] == "api" && strings.HasSuffix(args[1], "/milestones") {
		return `{"number":1,"title":"Alpha"}`, nil
	}
	return "", nil
}

func executeCLI(args ...string) (string, error) {
	var out bytes.Buffer
	rootCmd.SetArgs(append([]string{"--no-color"}, args...))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(bytes.NewBuffer(nil))
	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(t *testing.T) {
	t.Helper()
	configFile = ""
	verbose = false
	migrateOpts = migrateOptions{}
	migrateDryRun = false
	configInitForce = false
	unchange := func(flag *pflag.Flag) { flag.Changed = false }
	rootCmd.PersistentFlags().VisitAll(unchange)
	migrateCmd.Flags().VisitAll(unchange)
	configInitCmd.Flags().VisitAll(unchange)
	operatorInput = strings.NewReader("")
}

func swapMigrateHandler(fn func(*cobra.Command, migrateOptions) error) func() {
	orig := migrateHandler
	migrateHandler = fn
	return func() { migrateHandler = orig }
}

func swapScanHandler(fn func(*cobra.Command, string) error) func() {
	orig := scanHandler
	scanHandler = fn
	return func() { scanHandler = orig }
}

func swapConfigSetHandler(fn func(*cobra.Command, string, string) error) func() {
	orig := configSetHandler
	configSetHandler = fn
	return func() { configSetHandler = orig }
}

func swapRunnerFactory(fn func(string) github.Runner) func() {
	orig := runnerFactory
	runnerFactory = fn
	return func() { runnerFactory = orig }
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir %s: %v", dir, err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore wd %s: %v", prev, err)
		}
	})
}
