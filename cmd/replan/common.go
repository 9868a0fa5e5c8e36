package main

import (
	"database/sql"
	"os"
	"path/filepath"

	"github.com/replanhq/replan/internal/config"
	"github.com/replanhq/replan/internal/db"
	"github.com/replanhq/replan/internal/embedding"
	"github.com/replanhq/replan/internal/engine"
	"github.com/replanhq/replan/internal/logging"
	"github.com/replanhq/replan/internal/planner"
	"github.com/replanhq/replan/internal/store"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func openDB() (*sql.DB, string, func(), error) {
	repoRoot, err := os.Getwd()
	if err != nil {
		return nil, "", func() {}, err
	}
	replanDir := filepath.Join(repoRoot, ".replan")
	if err := os.MkdirAll(replanDir, 0o755); err != nil {
		return nil, "", func() {}, err
	}
	storeDB, err := db.Open(db.DefaultPath(repoRoot))
	if err != nil {
		return nil, "", func() {}, err
	}
	return storeDB, repoRoot, func() { _ = storeDB.Close() }, nil
}

// buildEngine assembles the planning engine from an open database and config.
// A misconfigured embedder degrades to nil so read paths and full planning
// keep working without the similarity signal.
func buildEngine(storeDB *sql.DB, repoRoot string, cfg config.Config) (*engine.Engine, error) {
	emb, err := embedding.FromConfig(cfg.Embedder)
	if err != nil {
		log.Warn().Err(err).Msg("embedder unavailable; continuing without similarity signal")
		emb = nil
	}
	pl, err := planner.NewExecPlanner(repoRoot, cfg.Planner)
	if err != nil {
		return nil, err
	}
	return engine.New(logging.Component("engine"), cfg, store.New(storeDB), emb, pl), nil
}

func sessionName(cfg config.Config) string {
	if s := viper.GetString("session"); s != "" {
		return s
	}
	if cfg.Session != "" {
		return cfg.Session
	}
	return config.DefaultSession
}

func replanDir(repoRoot string) string {
	return filepath.Join(repoRoot, ".replan")
}
