// Package config provides configuration loading and management for replan.
package config

// DefaultSession is the session used when none is configured.
const DefaultSession = "default"

// Config is the root configuration.
type Config struct {
	Session   string          `json:"session,omitempty"   mapstructure:"session"`
	Planner   PlannerConfig   `json:"planner"             mapstructure:"planner"`
	Embedder  EmbedderConfig  `json:"embedder"            mapstructure:"embedder"`
	Ranking   RankingConfig   `json:"ranking,omitempty"   mapstructure:"ranking"`
	Web       WebConfig       `json:"web,omitempty"       mapstructure:"web"`
	Retention RetentionPolicy `json:"retention,omitempty" mapstructure:"retention"`
}

// PlannerConfig describes how to run the planning agent.
type PlannerConfig struct {
	Agent     string   `json:"agent"                mapstructure:"agent"`
	Cmd       []string `json:"cmd,omitempty"        mapstructure:"cmd"`
	Model     string   `json:"model,omitempty"      mapstructure:"model"`
	UseTTY    *bool    `json:"use_tty,omitempty"    mapstructure:"use_tty"`
	SelfCheck *bool    `json:"self_check,omitempty" mapstructure:"self_check"`
}

// EmbedderConfig describes the embedding backend.
type EmbedderConfig struct {
	Provider  string `json:"provider"              mapstructure:"provider"`
	Model     string `json:"model,omitempty"       mapstructure:"model"`
	Endpoint  string `json:"endpoint,omitempty"    mapstructure:"endpoint"`
	APIKey    string `json:"api_key,omitempty"     mapstructure:"api_key"`
	APIKeyEnv string `json:"api_key_env,omitempty" mapstructure:"api_key_env"`
}

// RankingConfig tunes reflection-driven confidence adjustment.
type RankingConfig struct {
	BoostThreshold   float64 `json:"boost_threshold,omitempty"   mapstructure:"boost_threshold"`
	PenaltyThreshold float64 `json:"penalty_threshold,omitempty" mapstructure:"penalty_threshold"`
}

// WebConfig configures the local plan server.
type WebConfig struct {
	Listen           string `json:"listen,omitempty"             mapstructure:"listen"`
	ToggleDebounceMS int    `json:"toggle_debounce_ms,omitempty" mapstructure:"toggle_debounce_ms"`
}

// RetentionPolicy defines how many superseded baselines to keep.
type RetentionPolicy struct {
	KeepLast int `json:"keep_last,omitempty" mapstructure:"keep_last"`
	KeepDays int `json:"keep_days,omitempty" mapstructure:"keep_days"`
}
