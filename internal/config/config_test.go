package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validSettings() map[string]any {
	return map[string]any{
		"session": "default",
		"planner": map[string]any{
			"agent": "claude",
			"model": "claude-sonnet-4-5",
		},
		"embedder": map[string]any{
			"provider": "ollama",
			"endpoint": "http://localhost:11434",
			"model":    "embeddinggemma",
		},
		"ranking": map[string]any{
			"boost_threshold":   0.7,
			"penalty_threshold": 0.3,
		},
		"web": map[string]any{
			"listen":             "127.0.0.1:7420",
			"toggle_debounce_ms": 1000,
		},
		"retention": map[string]any{
			"keep_last": 10,
			"keep_days": 30,
		},
	}
}

func TestValidateSettings_AllowsOllamaEmbedderWithoutKey(t *testing.T) {
	t.Parallel()

	if err := ValidateSettings(validSettings()); err != nil {
		t.Fatalf("ValidateSettings returned error: %v", err)
	}
}

func TestValidateSettings_AllowsGenAIEmbedderWithAPIKeyEnv(t *testing.T) {
	t.Parallel()

	settings := validSettings()
	settings["embedder"] = map[string]any{
		"provider":    "genai",
		"model":       "gemini-embedding-001",
		"api_key_env": "GEMINI_API_KEY",
	}

	if err := ValidateSettings(settings); err != nil {
		t.Fatalf("ValidateSettings returned error: %v", err)
	}
}

func TestValidateSettings_RejectsGenAIEmbedderWithoutAPIKey(t *testing.T) {
	t.Parallel()

	settings := validSettings()
	settings["embedder"] = map[string]any{
		"provider": "genai",
		"model":    "gemini-embedding-001",
	}

	if err := ValidateSettings(settings); err == nil {
		t.Fatal("ValidateSettings returned nil error, want error")
	}
}

func TestValidateSettings_RejectsUnknownEmbeddingProvider(t *testing.T) {
	t.Parallel()

	settings := validSettings()
	settings["embedder"] = map[string]any{
		"provider": "word2vec",
	}

	if err := ValidateSettings(settings); err == nil {
		t.Fatal("ValidateSettings returned nil error, want error")
	}
}

func TestValidateSettings_RejectsPlannerWithoutAgentOrCmd(t *testing.T) {
	t.Parallel()

	settings := validSettings()
	settings["planner"] = map[string]any{
		"model": "claude-sonnet-4-5",
	}

	if err := ValidateSettings(settings); err == nil {
		t.Fatal("ValidateSettings returned nil error, want error")
	}
}

func TestValidateSettings_RejectsOutOfRangeThreshold(t *testing.T) {
	t.Parallel()

	settings := validSettings()
	settings["ranking"] = map[string]any{
		"boost_threshold": 1.5,
	}

	if err := ValidateSettings(settings); err == nil {
		t.Fatal("ValidateSettings returned nil error, want error")
	}
}

func TestValidateFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	good := filepath.Join(dir, "config.json")
	if err := os.WriteFile(good, []byte(`{"planner":{"agent":"codex"},"embedder":{"provider":"ollama"}}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := ValidateFile(good); err != nil {
		t.Fatalf("ValidateFile returned error: %v", err)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"embedder":{"provider":"genai"}}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := ValidateFile(bad); err == nil {
		t.Fatal("ValidateFile returned nil error, want error")
	}

	if err := ValidateFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatal("ValidateFile returned nil error, want error for missing file")
	}
}
