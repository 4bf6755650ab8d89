package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_FromRepoRoot(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/test\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	conf := "version: 1\ntarget: sub_minion\nfunction_timeout: 90\nconfig_dir: /tmp/salt-conf\n"
	if err := os.WriteFile(filepath.Join(dir, ".salttest"), []byte(conf), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.RepoRoot != dir {
		t.Errorf("RepoRoot = %q, want %q", res.RepoRoot, dir)
	}
	if res.Config.TargetName() != "sub_minion" {
		t.Errorf("TargetName = %q, want %q", res.Config.TargetName(), "sub_minion")
	}
	if res.Config.FunctionTimeout() != 90*time.Second {
		t.Errorf("FunctionTimeout = %v, want 90s", res.Config.FunctionTimeout())
	}
}

func TestLoad_FromSubdirectory(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/test\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, ".salttest"), []byte("version: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	sub := filepath.Join(root, "pkg", "foo")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	res, err := Load(sub)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.RepoRoot != root {
		t.Errorf("RepoRoot = %q, want %q", res.RepoRoot, root)
	}
	if res.Config.Version != 2 {
		t.Errorf("Config.Version = %d, want 2", res.Config.Version)
	}
}

func TestLoad_NoGoMod(t *testing.T) {
	dir := t.TempDir()

	res, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.RepoRoot != dir {
		t.Errorf("RepoRoot = %q, want %q (fallback to workspace)", res.RepoRoot, dir)
	}
	if res.Config.Target != "" {
		t.Errorf("expected default config, got Target = %q", res.Config.Target)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/test\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Config.Version != 0 {
		t.Errorf("expected default config, got Version = %d", res.Config.Version)
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/test\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".salttest"), []byte("target: [unclosed\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(dir); err == nil {
		t.Error("expected parse error for malformed .salttest")
	}
}

func TestConfig_Defaults(t *testing.T) {
	cfg := &Config{}

	if got := cfg.TargetName(); got != DefaultTarget {
		t.Errorf("TargetName = %q, want %q", got, DefaultTarget)
	}
	if got := cfg.FunctionTimeout(); got != DefaultFunctionTimeout {
		t.Errorf("FunctionTimeout = %v, want %v", got, DefaultFunctionTimeout)
	}
	if got := cfg.RunTimeout(); got != 0 {
		t.Errorf("RunTimeout = %v, want 0", got)
	}
	if got := cfg.MaxRecords(); got != DefaultMaxRecords {
		t.Errorf("MaxRecords = %d, want %d", got, DefaultMaxRecords)
	}
	if got := cfg.KnownNoneReturners(); len(got) != 3 || got[0] != "file.chown" {
		t.Errorf("KnownNoneReturners = %v, want defaults", got)
	}
}

func TestConfig_Overrides(t *testing.T) {
	cfg := &Config{
		ConfigDir:     "/etc/salt-tests",
		NoneReturners: []string{"custom.noop"},
	}

	if got := cfg.SSHPriv(); got != filepath.Join("/etc/salt-tests", "key_test") {
		t.Errorf("SSHPriv = %q, want key_test under config dir", got)
	}
	if got := cfg.SSHRoster(); got != filepath.Join("/etc/salt-tests", "roster") {
		t.Errorf("SSHRoster = %q, want roster under config dir", got)
	}
	if got := cfg.KnownNoneReturners(); len(got) != 1 || got[0] != "custom.noop" {
		t.Errorf("KnownNoneReturners = %v, want configured override", got)
	}
}

func TestConfig_ScriptDir(t *testing.T) {
	cfg := &Config{}
	if got := cfg.ScriptDir("/repo"); got != filepath.Join("/repo", "scripts") {
		t.Errorf("ScriptDir = %q, want scripts under root", got)
	}

	cfg.Scripts.Dir = "/opt/bin"
	if got := cfg.ScriptDir("/repo"); got != "/opt/bin" {
		t.Errorf("ScriptDir = %q, want absolute value kept", got)
	}
}
