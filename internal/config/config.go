// Package config loads lurchy's layered configuration.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/tailscale/hujson"

	"github.com/calvinalkan/lurch/pkg/lurch"
)

// Config holds all configuration options.
type Config struct {
	// Table options
	Capacity  int    `json:"capacity"`
	Ordering  string `json:"ordering"`
	Limit     int    `json:"limit"`
	HashSize  int    `json:"hash_size"`
	SlabSize  int    `json:"slab_size"`
	LockCount int    `json:"lock_count"`

	// Logging
	LogLevel           string `json:"log_level"`
	EventLog           string `json:"event_log,omitempty"`
	EventLogMaxSizeMB  int    `json:"event_log_max_size_mb"`
	EventLogMaxBackups int    `json:"event_log_max_backups"`
	EventLogMaxAgeDays int    `json:"event_log_max_age_days"`

	// REPL
	HistoryFile string `json:"history_file,omitempty"`

	// Resolved (computed, not serialized)
	EffectiveCwd string `json:"-"`

	// Sources tracks which config files were loaded (for diagnostics)
	Sources Sources `json:"-"`
}

// Sources tracks which config files were loaded.
type Sources struct {
	Global  string // Path to global config if loaded, empty otherwise
	Project string // Path to project or explicit config if loaded, empty otherwise
}

// fileConfig is what a single file may set. Pointers distinguish "absent"
// from an explicit zero so a later layer can reset an earlier one.
type fileConfig struct {
	Capacity           *int    `json:"capacity"               toml:"capacity"`
	Ordering           *string `json:"ordering"               toml:"ordering"`
	Limit              *int    `json:"limit"                  toml:"limit"`
	HashSize           *int    `json:"hash_size"              toml:"hash_size"`
	SlabSize           *int    `json:"slab_size"              toml:"slab_size"`
	LockCount          *int    `json:"lock_count"             toml:"lock_count"`
	LogLevel           *string `json:"log_level"              toml:"log_level"`
	EventLog           *string `json:"event_log"              toml:"event_log"`
	EventLogMaxSizeMB  *int    `json:"event_log_max_size_mb"  toml:"event_log_max_size_mb"`
	EventLogMaxBackups *int    `json:"event_log_max_backups"  toml:"event_log_max_backups"`
	EventLogMaxAgeDays *int    `json:"event_log_max_age_days" toml:"event_log_max_age_days"`
	HistoryFile        *string `json:"history_file"           toml:"history_file"`
}

// LogLevels are the accepted log_level values, lowest first.
var LogLevels = []string{"debug", "info", "notice", "warning", "error"}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Capacity:           1024,
		Ordering:           lurch.Insertion.String(),
		LogLevel:           "notice",
		EventLogMaxSizeMB:  10,
		EventLogMaxBackups: 3,
		EventLogMaxAgeDays: 7,
	}
}

// Project config file names, in lookup order.
const (
	FileNameJSON = ".lurchy.json"
	FileNameTOML = ".lurchy.toml"
)

// globalPath returns $XDG_CONFIG_HOME/lurchy/config.json, falling back to
// ~/.config/lurchy/config.json. Empty if neither variable is set.
func globalPath(env map[string]string) string {
	if xdgConfig := env["XDG_CONFIG_HOME"]; xdgConfig != "" {
		return filepath.Join(xdgConfig, "lurchy", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "lurchy", "config.json")
	}

	return ""
}

// Overrides are values from CLI flags. nil means not given.
type Overrides struct {
	Capacity *int
	Ordering *string
	Limit    *int
	LogLevel *string
}

// LoadInput holds the inputs for Load.
type LoadInput struct {
	WorkDirOverride string            // -C/--cwd flag value; if empty, os.Getwd() is used
	ConfigPath      string            // -c/--config flag value
	Env             map[string]string // environment variables
	Overrides       Overrides
}

// Load loads configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config
// 3. Project config file (.lurchy.json or .lurchy.toml, if present)
// 4. Explicit config file via ConfigPath (replaces 3)
// 5. CLI overrides.
//
// File paths in the returned Config are absolute.
func Load(input LoadInput) (Config, error) {
	workDir := input.WorkDirOverride
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	cfg := Default()

	if p := globalPath(input.Env); p != "" {
		fc, loaded, err := loadFile(p, false)
		if err != nil {
			return Config{}, err
		}

		if loaded {
			cfg.Sources.Global = p
			cfg = merge(cfg, fc)
		}
	}

	fc, projectPath, err := loadProject(workDir, input.ConfigPath)
	if err != nil {
		return Config{}, err
	}

	cfg.Sources.Project = projectPath
	cfg = merge(cfg, fc)

	cfg = applyOverrides(cfg, input.Overrides)

	err = Validate(cfg)
	if err != nil {
		return Config{}, err
	}

	cfg.EffectiveCwd = workDir
	cfg.EventLog = absPath(workDir, cfg.EventLog)
	cfg.HistoryFile = absPath(workDir, cfg.HistoryFile)

	return cfg, nil
}

func absPath(workDir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}

	return filepath.Join(workDir, p)
}

func loadProject(workDir, configPath string) (fileConfig, string, error) {
	if configPath != "" {
		p := absPath(workDir, configPath)

		_, statErr := os.Stat(p)
		if statErr != nil {
			return fileConfig{}, "", fmt.Errorf("%w: %s", ErrConfigFileNotFound, configPath)
		}

		fc, _, err := loadFile(p, true)
		if err != nil {
			return fileConfig{}, "", err
		}

		return fc, p, nil
	}

	for _, name := range []string{FileNameJSON, FileNameTOML} {
		p := filepath.Join(workDir, name)

		fc, loaded, err := loadFile(p, false)
		if err != nil {
			return fileConfig{}, "", err
		}

		if loaded {
			return fc, p, nil
		}
	}

	return fileConfig{}, "", nil
}

// loadFile reads and parses one config file. Files ending in .toml are
// TOML; everything else is JSON with comments and trailing commas allowed.
func loadFile(path string, mustExist bool) (fileConfig, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return fileConfig{}, false, nil
		}

		return fileConfig{}, false, fmt.Errorf("%w: %s", ErrConfigFileRead, path)
	}

	var fc fileConfig

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		fc, err = parseTOML(data)
	} else {
		fc, err = parseJSONC(data)
	}

	if err != nil {
		return fileConfig{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	return fc, true, nil
}

func parseJSONC(data []byte) (fileConfig, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fileConfig{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var fc fileConfig

	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.DisallowUnknownFields()

	err = dec.Decode(&fc)
	if err != nil {
		return fileConfig{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return fc, nil
}

func parseTOML(data []byte) (fileConfig, error) {
	var fc fileConfig

	md, err := toml.Decode(string(data), &fc)
	if err != nil {
		return fileConfig{}, fmt.Errorf("invalid TOML: %w", err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fileConfig{}, fmt.Errorf("unknown key %q", undecoded[0].String())
	}

	return fc, nil
}

func merge(base Config, overlay fileConfig) Config {
	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}

	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}

	setInt(&base.Capacity, overlay.Capacity)
	setString(&base.Ordering, overlay.Ordering)
	setInt(&base.Limit, overlay.Limit)
	setInt(&base.HashSize, overlay.HashSize)
	setInt(&base.SlabSize, overlay.SlabSize)
	setInt(&base.LockCount, overlay.LockCount)
	setString(&base.LogLevel, overlay.LogLevel)
	setString(&base.EventLog, overlay.EventLog)
	setInt(&base.EventLogMaxSizeMB, overlay.EventLogMaxSizeMB)
	setInt(&base.EventLogMaxBackups, overlay.EventLogMaxBackups)
	setInt(&base.EventLogMaxAgeDays, overlay.EventLogMaxAgeDays)
	setString(&base.HistoryFile, overlay.HistoryFile)

	return base
}

func applyOverrides(cfg Config, o Overrides) Config {
	return merge(cfg, fileConfig{
		Capacity: o.Capacity,
		Ordering: o.Ordering,
		Limit:    o.Limit,
		LogLevel: o.LogLevel,
	})
}

// Validate checks value ranges and cross-field constraints.
func Validate(cfg Config) error {
	ordering, err := lurch.ParseOrdering(cfg.Ordering)
	if err != nil {
		return fmt.Errorf("%w: ordering %q must be one of none, insertion, modified, access", ErrConfigInvalid, cfg.Ordering)
	}

	for name, v := range map[string]int{
		"capacity":               cfg.Capacity,
		"limit":                  cfg.Limit,
		"hash_size":              cfg.HashSize,
		"slab_size":              cfg.SlabSize,
		"lock_count":             cfg.LockCount,
		"event_log_max_size_mb":  cfg.EventLogMaxSizeMB,
		"event_log_max_backups":  cfg.EventLogMaxBackups,
		"event_log_max_age_days": cfg.EventLogMaxAgeDays,
	} {
		if v < 0 {
			return fmt.Errorf("%w: %s must be >= 0, got %d", ErrConfigInvalid, name, v)
		}
	}

	if cfg.Limit > 0 && ordering == lurch.None {
		return fmt.Errorf("%w: limit requires an ordering other than none", ErrConfigInvalid)
	}

	if !slices.Contains(LogLevels, cfg.LogLevel) {
		return fmt.Errorf("%w: log_level %q must be one of %s", ErrConfigInvalid, cfg.LogLevel, strings.Join(LogLevels, ", "))
	}

	return nil
}

// TableOrdering returns the parsed ordering. Valid after Validate.
func (c Config) TableOrdering() lurch.Ordering {
	o, _ := lurch.ParseOrdering(c.Ordering)

	return o
}
