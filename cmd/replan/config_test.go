package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/replanhq/replan/internal/config"
	"github.com/spf13/viper"
)

func TestLoadConfig_ReadsSettings(t *testing.T) {
	repoRoot := t.TempDir()
	if err := writeTestFile(filepath.Join(repoRoot, defaultConfigPath), `{
  "session": "sprint-12",
  "planner": {"agent": "claude", "model": "opus", "self_check": false},
  "embedder": {"provider": "ollama", "model": "embeddinggemma"},
  "ranking": {"boost_threshold": 0.8, "penalty_threshold": 0.2},
  "web": {"listen": ":7400", "toggle_debounce_ms": 250},
  "retention": {"keep_last": 5, "keep_days": 7}
}`); err != nil {
		t.Fatalf("write config: %v", err)
	}

	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("config", defaultConfigPath)

	cfg, err := loadConfig(repoRoot)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Session != "sprint-12" {
		t.Fatalf("session = %q, want %q", cfg.Session, "sprint-12")
	}
	if cfg.Planner.Agent != "claude" || cfg.Planner.Model != "opus" {
		t.Fatalf("planner = %+v, want claude/opus", cfg.Planner)
	}
	if cfg.Planner.SelfCheck == nil || *cfg.Planner.SelfCheck {
		t.Fatalf("planner.self_check = %v, want false", cfg.Planner.SelfCheck)
	}
	if cfg.Ranking.BoostThreshold != 0.8 || cfg.Ranking.PenaltyThreshold != 0.2 {
		t.Fatalf("ranking = %+v, want 0.8/0.2", cfg.Ranking)
	}
	if cfg.Web.Listen != ":7400" || cfg.Web.ToggleDebounceMS != 250 {
		t.Fatalf("web = %+v, want :7400/250", cfg.Web)
	}
	if cfg.Retention.KeepLast != 5 || cfg.Retention.KeepDays != 7 {
		t.Fatalf("retention = %+v, want 5/7", cfg.Retention)
	}
}

func TestLoadConfig_RejectsInvertedThresholds(t *testing.T) {
	repoRoot := t.TempDir()
	if err := writeTestFile(filepath.Join(repoRoot, defaultConfigPath), `{
  "planner": {"agent": "claude"},
  "ranking": {"boost_threshold": 0.2, "penalty_threshold": 0.7}
}`); err != nil {
		t.Fatalf("write config: %v", err)
	}

	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("config", defaultConfigPath)

	if _, err := loadConfig(repoRoot); err == nil {
		t.Fatal("loadConfig accepted boost threshold below penalty threshold")
	}
}

func TestSessionName_FlagOverridesConfig(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("session", "override")

	cfg := configWithSession("configured")
	if got := sessionName(cfg); got != "override" {
		t.Fatalf("sessionName = %q, want %q", got, "override")
	}
}

func TestSessionName_FallsBackToConfigThenDefault(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	if got := sessionName(configWithSession("configured")); got != "configured" {
		t.Fatalf("sessionName = %q, want %q", got, "configured")
	}
	if got := sessionName(configWithSession("")); got != "default" {
		t.Fatalf("sessionName = %q, want %q", got, "default")
	}
}

func configWithSession(s string) config.Config {
	return config.Config{Session: s}
}

func writeTestFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
