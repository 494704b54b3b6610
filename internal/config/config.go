package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/saveenergy/sockreport/internal/logging"
)

// Test kinds decide which chart panels a report feeds.
const (
	KindPingPong   = "pingpong"
	KindUnderLoad  = "underload"
	KindThroughput = "throughput"
)

// Default test names, shared by the dual and single board suites so the two
// runs can be paired by name.
const (
	TestPingPongDefault = "Ping-Pong (Default)"
	TestPingPong64      = "Ping-Pong (64B)"
	TestPingPong512     = "Ping-Pong (512B)"
	TestPingPong1472    = "Ping-Pong (1472B)"
	TestUnderLoad       = "Under Load"
	TestThroughput      = "Throughput"
)

type Test struct {
	Name         string `yaml:"name"`
	File         string `yaml:"file"`
	Kind         string `yaml:"kind"`
	PayloadBytes int    `yaml:"payload_bytes,omitempty"`
}

type Suite struct {
	Label string `yaml:"label"`
	Dir   string `yaml:"dir,omitempty"`
	Tests []Test `yaml:"tests"`
}

// Names returns the test names in suite order.
func (s Suite) Names() []string {
	names := make([]string, len(s.Tests))
	for i, t := range s.Tests {
		names[i] = t.Name
	}
	return names
}

// Lookup finds a test by name.
func (s Suite) Lookup(name string) (Test, bool) {
	for _, t := range s.Tests {
		if t.Name == name {
			return t, true
		}
	}
	return Test{}, false
}

type Config struct {
	Title    string `yaml:"title"`
	Route    string `yaml:"route,omitempty"`
	Protocol string `yaml:"protocol,omitempty"`

	Dual   Suite `yaml:"dual"`
	Single Suite `yaml:"single"`

	SummaryOutput    string `yaml:"summary_output,omitempty"`
	ComparisonOutput string `yaml:"comparison_output,omitempty"`
	ImageWidth       int    `yaml:"image_width,omitempty"`
	ImageHeight      int    `yaml:"image_height,omitempty"`

	Concurrency int `yaml:"concurrency,omitempty"`

	Archive       bool   `yaml:"archive,omitempty"`
	DataDir       string `yaml:"data_dir,omitempty"`
	MaxStoredRuns int    `yaml:"max_stored_runs,omitempty"`

	LogLevel string `yaml:"log_level,omitempty"`
	NoColor  bool   `yaml:"no_color,omitempty"`
}

func pingPongTests(prefix string) []Test {
	return []Test{
		{Name: TestPingPongDefault, File: prefix + "pingpong_udp.txt", Kind: KindPingPong, PayloadBytes: 14},
		{Name: TestPingPong64, File: prefix + "pingpong_64B.txt", Kind: KindPingPong, PayloadBytes: 64},
		{Name: TestPingPong512, File: prefix + "pingpong_512B.txt", Kind: KindPingPong, PayloadBytes: 512},
		{Name: TestPingPong1472, File: prefix + "pingpong_1472B.txt", Kind: KindPingPong, PayloadBytes: 1472},
		{Name: TestUnderLoad, File: prefix + "underload_udp.txt", Kind: KindUnderLoad},
		{Name: TestThroughput, File: prefix + "throughput_udp.txt", Kind: KindThroughput},
	}
}

func DefaultConfig() *Config {
	return &Config{
		Title:            "LAN9662 Dual-Board Network Performance",
		Route:            "192.168.1.2 → LAN9662-1 → LAN9662-2 → 192.168.1.3",
		Protocol:         "UDP",
		Dual:             Suite{Label: "Dual Board", Dir: ".", Tests: pingPongTests("sockperf_")},
		Single:           Suite{Label: "Single Board", Dir: ".", Tests: pingPongTests("sockperf_single_")},
		SummaryOutput:    "test_results_visualization.png",
		ComparisonOutput: "comparison_dual_vs_single.png",
		ImageWidth:       1800,
		ImageHeight:      1100,
		Concurrency:      4,
		Archive:          false,
		DataDir:          "./data",
		MaxStoredRuns:    1000,
		LogLevel:         "info",
	}
}

// DefaultPath is $XDG_CONFIG_HOME/sockreport/config.yaml, or "" when no home
// directory can be determined.
func DefaultPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "sockreport", "config.yaml")
}

// Load builds the effective configuration: defaults, then the YAML file at
// path (explicit paths must exist; the default path is optional), then
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		if err := cfg.LoadFile(path, explicit); err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile merges the YAML file at path over c. Suites given in the file
// replace the default suites wholesale.
func (c *Config) LoadFile(path string, mustExist bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	logging.Debug("config file loaded", logging.F("path", path))
	return nil
}

func (c *Config) LoadFromEnv() error {
	if dir := os.Getenv("SOCKREPORT_DIR"); dir != "" {
		c.Dual.Dir = dir
		c.Single.Dir = dir
	}
	if dir := os.Getenv("SOCKREPORT_DUAL_DIR"); dir != "" {
		c.Dual.Dir = dir
	}
	if dir := os.Getenv("SOCKREPORT_SINGLE_DIR"); dir != "" {
		c.Single.Dir = dir
	}
	if out := os.Getenv("SOCKREPORT_OUTPUT"); out != "" {
		c.SummaryOutput = out
	}
	if out := os.Getenv("SOCKREPORT_COMPARISON_OUTPUT"); out != "" {
		c.ComparisonOutput = out
	}
	if n := os.Getenv("SOCKREPORT_CONCURRENCY"); n != "" {
		v, err := strconv.Atoi(n)
		if err != nil || v <= 0 {
			return fmt.Errorf("invalid SOCKREPORT_CONCURRENCY %q: must be a positive integer", n)
		}
		c.Concurrency = v
	}
	if archive := os.Getenv("SOCKREPORT_ARCHIVE"); archive != "" {
		switch strings.ToLower(archive) {
		case "1", "true", "yes":
			c.Archive = true
		case "0", "false", "no":
			c.Archive = false
		default:
			return fmt.Errorf("invalid SOCKREPORT_ARCHIVE %q: must be true or false", archive)
		}
	}
	if dataDir := os.Getenv("SOCKREPORT_DATA_DIR"); dataDir != "" {
		c.DataDir = dataDir
	}
	if max := os.Getenv("SOCKREPORT_MAX_STORED_RUNS"); max != "" {
		m, err := strconv.Atoi(max)
		if err != nil || m <= 0 {
			return fmt.Errorf("invalid SOCKREPORT_MAX_STORED_RUNS %q: must be a positive integer", max)
		}
		c.MaxStoredRuns = m
	}
	if level := os.Getenv("SOCKREPORT_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
	if os.Getenv("NO_COLOR") != "" {
		c.NoColor = true
	}
	return nil
}

func (c *Config) Validate() error {
	if err := validateSuite("dual", c.Dual); err != nil {
		return err
	}
	if err := validateSuite("single", c.Single); err != nil {
		return err
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be > 0")
	}
	if c.ImageWidth < 300 || c.ImageHeight < 200 {
		return fmt.Errorf("image size %dx%d too small (min 300x200)", c.ImageWidth, c.ImageHeight)
	}
	if c.SummaryOutput == "" || c.ComparisonOutput == "" {
		return fmt.Errorf("output paths cannot be empty")
	}
	if c.Archive && c.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty when archiving")
	}
	if c.MaxStoredRuns <= 0 {
		return fmt.Errorf("max stored runs must be > 0")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

func validateSuite(which string, s Suite) error {
	if len(s.Tests) == 0 {
		return fmt.Errorf("%s suite has no tests", which)
	}
	seen := make(map[string]bool, len(s.Tests))
	for i, t := range s.Tests {
		if t.Name == "" {
			return fmt.Errorf("%s suite test %d has no name", which, i)
		}
		if t.File == "" {
			return fmt.Errorf("%s suite test %q has no file", which, t.Name)
		}
		if seen[t.Name] {
			return fmt.Errorf("%s suite lists test %q twice", which, t.Name)
		}
		seen[t.Name] = true
		switch t.Kind {
		case KindPingPong, KindUnderLoad, KindThroughput:
		default:
			return fmt.Errorf("%s suite test %q: invalid kind %q (must be pingpong, underload or throughput)", which, t.Name, t.Kind)
		}
		if t.PayloadBytes < 0 {
			return fmt.Errorf("%s suite test %q: payload bytes must be >= 0", which, t.Name)
		}
	}
	return nil
}

// ArchivePath is the sqlite file of the run archive.
func (c *Config) ArchivePath() string {
	return filepath.Join(c.DataDir, "runs.db")
}

// Subtitle is the dashboard subtitle: protocol and route, when set.
func (c *Config) Subtitle() string {
	parts := make([]string, 0, 2)
	if c.Protocol != "" {
		parts = append(parts, c.Protocol)
	}
	if c.Route != "" {
		parts = append(parts, c.Route)
	}
	return strings.Join(parts, "  |  ")
}
