package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/replanhq/replan/internal/db"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a replan project",
		Long:  "Initialize a replan project by creating the .replan directory, migrating the database, and installing a default config.",
		RunE: func(cmd *cobra.Command, args []string) error {
			repoRoot, err := os.Getwd()
			if err != nil {
				return err
			}

			dir := replanDir(repoRoot)
			log.Info().Str("dir", dir).Msg("creating replan directory")
			if err := os.MkdirAll(filepath.Join(dir, "plans"), 0o755); err != nil {
				return fmt.Errorf("create plans dir: %w", err)
			}
			if err := os.MkdirAll(filepath.Join(dir, "locks"), 0o755); err != nil {
				return fmt.Errorf("create locks dir: %w", err)
			}

			log.Info().Msg("migrating database")
			storeDB, err := db.Open(db.DefaultPath(repoRoot))
			if err != nil {
				return err
			}
			_ = storeDB.Close()

			configPath := filepath.Join(dir, "config.json")
			if _, err := os.Stat(configPath); err == nil {
				log.Info().Msg("config.json already exists, skipping")
			} else {
				log.Info().Str("path", configPath).Msg("installing default config")
				data, err := json.MarshalIndent(defaultSettings(), "", "  ")
				if err != nil {
					return fmt.Errorf("marshal default config: %w", err)
				}
				if err := os.WriteFile(configPath, data, 0o644); err != nil {
					return fmt.Errorf("write default config: %w", err)
				}
			}

			fmt.Println("replan initialized successfully")
			return nil
		},
	}
}

func defaultSettings() map[string]any {
	return map[string]any{
		"session": "default",
		"planner": map[string]any{
			"agent": "claude",
		},
		"embedder": map[string]any{
			"provider": "ollama",
			"model":    "embeddinggemma",
		},
		"ranking": map[string]any{
			"boost_threshold":   0.7,
			"penalty_threshold": 0.3,
		},
		"web": map[string]any{
			"listen":             ":7350",
			"toggle_debounce_ms": 1000,
		},
		"retention": map[string]any{
			"keep_last": 20,
			"keep_days": 30,
		},
	}
}
