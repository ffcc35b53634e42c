package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

var ErrConfigNotFound = errors.New("configuration not found")

const (
	ModeCreate = "create"
	ModeUpdate = "update"

	envPrefix = "ASSEMBLA2GH_"
)

// Duration is a time.Duration written in TOML as "10h" or "60s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Settings struct {
	Migration    Migration         `toml:"migration"`
	Throttle     Throttle          `toml:"throttle"`
	Users        map[string]string `toml:"users"`
	GitHubUsers  map[string]string `toml:"github_users"`
	CloseReasons map[string]string `toml:"close_reasons"`
	Priorities   map[string]string `toml:"priorities"`
}

type Migration struct {
	Repo            string   `toml:"repo"`
	Input           string   `toml:"input"`
	OutputDir       string   `toml:"output_dir"`
	UTCOffset       Duration `toml:"utc_offset"`
	DryRun          bool     `toml:"dry_run"`
	MilestoneOffset int      `toml:"milestone_offset"`
	Mode            string   `toml:"mode"`
	GHBinary        string   `toml:"gh_binary"`
}

type Throttle struct {
	Every           int      `toml:"every"`
	Pause           Duration `toml:"pause"`
	RateLimitMarker string   `toml:"rate_limit_marker"`
	MaxRetries      int      `toml:"max_retries"`
	RetryInterval   Duration `toml:"retry_interval"`
	Interactive     bool     `toml:"interactive"`
}

// Default is the configuration used when no file is present. Dry run is on
// so a first run only rehearses the migration.
func Default() *Settings {
	return &Settings{
		Migration: Migration{
			Input:     "export.txt",
			OutputDir: "Tickets",
			UTCOffset: Duration{10 * time.Hour},
			DryRun:    true,
			Mode:      ModeCreate,
			GHBinary:  "gh",
		},
		Throttle: Throttle{
			Every:           9,
			Pause:           Duration{time.Minute},
			RateLimitMarker: "was submitted too quickly",
			MaxRetries:      10,
			RetryInterval:   Duration{time.Minute},
			Interactive:     true,
		},
		Users:        map[string]string{"null": "Unassigned"},
		GitHubUsers:  map[string]string{},
		CloseReasons: map[string]string{"Invalid": "not planned"},
		Priorities: map[string]string{
			"1": "Highest",
			"2": "High",
			"3": "Medium",
			"4": "Low",
			"5": "Lowest",
		},
	}
}

// Load reads path on top of the defaults. Tables in the file add to the
// default tables rather than replacing them.
func Load(path string) (*Settings, error) {
	settings := Default()
	if _, err := toml.DecodeFile(path, settings); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if _, ok := settings.Users["null"]; !ok {
		settings.Users["null"] = "Unassigned"
	}
	return settings, nil
}

// ApplyEnv loads a .env file if present and lets ASSEMBLA2GH_REPO,
// ASSEMBLA2GH_INPUT and ASSEMBLA2GH_DRY_RUN override the file.
func (s *Settings) ApplyEnv() error {
	_ = godotenv.Load()

	if v := os.Getenv(envPrefix + "REPO"); v != "" {
		s.Migration.Repo = v
	}
	if v := os.Getenv(envPrefix + "INPUT"); v != "" {
		s.Migration.Input = v
	}
	if v := os.Getenv(envPrefix + "DRY_RUN"); v != "" {
		dryRun, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sDRY_RUN: %w", envPrefix, err)
		}
		s.Migration.DryRun = dryRun
	}
	return nil
}

func (s *Settings) Validate() error {
	owner, name, ok := strings.Cut(s.Migration.Repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("migration.repo must be owner/name, got %q", s.Migration.Repo)
	}
	if s.Migration.Input == "" {
		return errors.New("migration.input is required")
	}
	switch s.Migration.Mode {
	case ModeCreate, ModeUpdate:
	default:
		return fmt.Errorf("migration.mode must be %q or %q, got %q", ModeCreate, ModeUpdate, s.Migration.Mode)
	}
	if s.Migration.MilestoneOffset < 0 {
		return errors.New("migration.milestone_offset cannot be negative")
	}
	if s.Throttle.Every < 0 || s.Throttle.MaxRetries < 0 {
		return errors.New("throttle.every and throttle.max_retries cannot be negative")
	}
	if len(s.Priorities) == 0 {
		return errors.New("priorities table is empty")
	}
	return nil
}

func (s *Settings) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	defer file.Close()

	if err := toml.NewEncoder(file).Encode(s); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".assembla2gh"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}
