// Package config loads and validates the optional .salttest YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for harness configuration.
const (
	DefaultTarget          = "minion"
	DefaultFunctionTimeout = 25 * time.Second
	DefaultMaxRecords      = 50
	DefaultMaxOutput       = 1 << 20 // 1 MB
)

// DefaultNoneReturners lists remote functions whose None reply is a valid
// answer rather than a lost one.
var DefaultNoneReturners = []string{
	"file.chown",
	"file.chgrp",
	"ssh.recv_known_host",
}

// Config holds the parsed .salttest configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version            int          `yaml:"version"`
	Target             string       `yaml:"target"`           // minion id invoked by the wrapper
	ConfigDir          string       `yaml:"config_dir"`       // salt configuration directory (-c flag)
	RawFunctionTimeout int          `yaml:"function_timeout"` // seconds
	RawRunTimeout      int          `yaml:"run_timeout"`      // seconds; 0 means unbounded
	RawMaxRecords      int          `yaml:"max_records"`
	RawMaxOutput       int          `yaml:"max_output"` // bytes
	PathPrefix         []string     `yaml:"path_prefix"`          // prepended to the child search path
	NoneReturners      []string     `yaml:"known_none_returners"` // overrides DefaultNoneReturners
	Scripts            ScriptConfig `yaml:"scripts"`
	SSH                SSHConfig    `yaml:"ssh"`
}

// ScriptConfig controls where CLI entry scripts live and how they are generated.
type ScriptConfig struct {
	Dir      string `yaml:"dir"`      // default: <repo root>/scripts
	Coverage bool   `yaml:"coverage"` // generate coverage-collecting entry scripts
}

// SSHConfig holds the salt-ssh key and roster locations.
type SSHConfig struct {
	Priv   string `yaml:"priv"`   // default: <config_dir>/key_test
	Roster string `yaml:"roster"` // default: <config_dir>/roster
}

// TargetName returns the configured target minion id or the default.
func (c *Config) TargetName() string {
	if c.Target != "" {
		return c.Target
	}
	return DefaultTarget
}

// FunctionTimeout returns the bounded wait applied to wrapper invocations.
func (c *Config) FunctionTimeout() time.Duration {
	if c.RawFunctionTimeout > 0 {
		return time.Duration(c.RawFunctionTimeout) * time.Second
	}
	return DefaultFunctionTimeout
}

// RunTimeout returns the wall-clock bound for direct CLI runs.
// Zero means no deadline is enforced.
func (c *Config) RunTimeout() time.Duration {
	if c.RawRunTimeout > 0 {
		return time.Duration(c.RawRunTimeout) * time.Second
	}
	return 0
}

// MaxRecords returns the execution record store capacity.
func (c *Config) MaxRecords() int {
	if c.RawMaxRecords > 0 {
		return c.RawMaxRecords
	}
	return DefaultMaxRecords
}

// MaxOutputBytes returns the per-stream capture cap or the default.
func (c *Config) MaxOutputBytes() int {
	if c.RawMaxOutput > 0 {
		return c.RawMaxOutput
	}
	return DefaultMaxOutput
}

// KnownNoneReturners returns the allowlist of functions that may return None.
func (c *Config) KnownNoneReturners() []string {
	if len(c.NoneReturners) > 0 {
		return c.NoneReturners
	}
	return DefaultNoneReturners
}

// SSHPriv returns the salt-ssh private key path.
func (c *Config) SSHPriv() string {
	if c.SSH.Priv != "" {
		return c.SSH.Priv
	}
	return filepath.Join(c.ConfigDir, "key_test")
}

// SSHRoster returns the salt-ssh roster file path.
func (c *Config) SSHRoster() string {
	if c.SSH.Roster != "" {
		return c.SSH.Roster
	}
	return filepath.Join(c.ConfigDir, "roster")
}

// ScriptDir returns the entry script directory, resolved against root
// when the configured value is relative.
func (c *Config) ScriptDir(root string) string {
	dir := c.Scripts.Dir
	if dir == "" {
		dir = "scripts"
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(root, dir)
}

// LoadResult holds the parsed config and the discovered repository root.
type LoadResult struct {
	Config   *Config
	RepoRoot string // directory containing go.mod; falls back to workspace
}

// Load reads the .salttest file from the repository root.
// The repository root is discovered by walking upward from workspace
// looking for go.mod. If no .salttest file exists, a default Config is returned.
func Load(workspace string) (*LoadResult, error) {
	root, err := findRepoRoot(workspace)
	if err != nil {
		// No go.mod found; use workspace as root.
		root = workspace
	}

	path := filepath.Join(root, ".salttest")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &LoadResult{Config: &Config{}, RepoRoot: root}, nil
		}
		return nil, fmt.Errorf("reading .salttest: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing .salttest: %w", err)
	}
	return &LoadResult{Config: cfg, RepoRoot: root}, nil
}

// findRepoRoot walks upward from dir looking for a directory containing go.mod.
func findRepoRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
