// Package config loads funcwarn settings from defaults, a TOML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/sayantanmandal1/function-dependency-warner/internal/graph"
)

// FileName is the config file looked up in the workspace root.
const FileName = ".funcwarn.toml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FUNCWARN_"

// Formats accepted for report output.
var Formats = []string{"text", "json", "toon"}

// Config holds every tunable.
type Config struct {
	// DependencyFile is the dependency document, relative to Root unless
	// absolute.
	DependencyFile string   `toml:"dependency_file"`
	Root           string   `toml:"root"`
	Exclude        []string `toml:"exclude"`
	Direction      string   `toml:"direction"`

	Workers      int    `toml:"workers"`
	MaxFileSize  int64  `toml:"max_file_size"`
	CacheEntries int    `toml:"cache_entries"`
	CacheDir     string `toml:"cache_dir"`
	Debounce     string `toml:"debounce"`

	Backfill      bool `toml:"backfill"`
	MaxDependents int  `toml:"max_dependents"`
	MaxDepth      int  `toml:"max_depth"`

	Format string `toml:"format"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Root:         ".",
		Exclude:      []string{"node_modules/"},
		Direction:    string(graph.Affects),
		Workers:      runtime.GOMAXPROCS(0),
		MaxFileSize:  1 << 20,
		CacheEntries: 10000,
		Debounce:     "300ms",
		Backfill:     true,
		Format:       "text",
	}
}

// Load builds a Config from defaults, then the TOML file at path (or
// FileName under root when path is empty and the file exists), then the
// environment. A .env file in the working directory is loaded into the
// environment first if present; a malformed one is an error.
func Load(path, root string) (Config, error) {
	cfg := Default()
	if root != "" {
		cfg.Root = root
	}

	explicit := path != ""
	if !explicit {
		path = filepath.Join(cfg.Root, FileName)
	}
	if err := cfg.mergeFile(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return cfg, err
		}
	}

	if err := loadDotenv(".env"); err != nil {
		return cfg, err
	}
	if err := cfg.mergeEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// loadDotenv sets variables from the dotenv file at path without
// overriding ones already set. A missing file is not an error.
func loadDotenv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("parse %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

func (c *Config) mergeEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	integer := func(key string, dst *int) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
		return nil
	}

	str("DEPENDENCY_FILE", &c.DependencyFile)
	str("ROOT", &c.Root)
	str("DIRECTION", &c.Direction)
	str("CACHE_DIR", &c.CacheDir)
	str("DEBOUNCE", &c.Debounce)
	str("FORMAT", &c.Format)

	if v, ok := lookup(EnvPrefix + "EXCLUDE"); ok {
		c.Exclude = splitList(v)
	}
	if v, ok := lookup(EnvPrefix + "BACKFILL"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sBACKFILL: %w", EnvPrefix, err)
		}
		c.Backfill = b
	}
	if v, ok := lookup(EnvPrefix + "MAX_FILE_SIZE"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sMAX_FILE_SIZE: %w", EnvPrefix, err)
		}
		c.MaxFileSize = n
	}
	for key, dst := range map[string]*int{
		"WORKERS":        &c.Workers,
		"CACHE_ENTRIES":  &c.CacheEntries,
		"MAX_DEPENDENTS": &c.MaxDependents,
		"MAX_DEPTH":      &c.MaxDepth,
	} {
		if err := integer(key, dst); err != nil {
			return err
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, err := graph.ParseDirection(c.Direction); err != nil {
		return err
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.CacheEntries < 0 {
		return fmt.Errorf("cache_entries must not be negative, got %d", c.CacheEntries)
	}
	if c.MaxDependents < 0 {
		return fmt.Errorf("max_dependents must not be negative, got %d", c.MaxDependents)
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max_depth must not be negative, got %d", c.MaxDepth)
	}
	if _, err := c.DebounceDuration(); err != nil {
		return err
	}
	for _, f := range Formats {
		if c.Format == f {
			return nil
		}
	}
	return fmt.Errorf("unknown format %q (want one of %s)", c.Format, strings.Join(Formats, ", "))
}

// DebounceDuration parses Debounce. Empty means zero.
func (c *Config) DebounceDuration() (time.Duration, error) {
	if c.Debounce == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Debounce)
	if err != nil {
		return 0, fmt.Errorf("debounce: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("debounce must not be negative, got %s", c.Debounce)
	}
	return d, nil
}

// DependencyPath resolves DependencyFile against Root. It returns "" when
// no dependency file is configured.
func (c *Config) DependencyPath() string {
	if c.DependencyFile == "" {
		return ""
	}
	if filepath.IsAbs(c.DependencyFile) {
		return c.DependencyFile
	}
	return filepath.Join(c.Root, c.DependencyFile)
}

// Starter is the commented config written by "funcwarn init".
const Starter = `# funcwarn configuration

# Dependency document (JSON or YAML), relative to root.
dependency_file = "dependencies.json"

# How "A": ["B"] is read:
#   "affects"    changing A may affect B
#   "depends-on" A depends on B, so changing B may affect A
direction = "affects"

# Extra ignore patterns in .gitignore syntax.
exclude = ["node_modules/"]

# Files larger than this many bytes are skipped.
max_file_size = 1048576

# Heuristic second pass for functions the extractors miss.
backfill = true

# Watch mode waits this long after the last change before re-running.
debounce = "300ms"

# Output format: "text", "json" or "toon".
format = "text"
`
