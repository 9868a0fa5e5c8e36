package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/replanhq/replan/internal/engine"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func reflectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reflect",
		Short: "Manage reflections",
		Long:  "Manage reflections: short statements of what you learned mid-session that nudge task confidence without a full re-plan.",
	}
	cmd.AddCommand(reflectAddCmd())
	cmd.AddCommand(reflectListCmd())
	cmd.AddCommand(reflectToggleCmd("on", true))
	cmd.AddCommand(reflectToggleCmd("off", false))
	return cmd
}

func reflectAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <text>",
		Short: "Add a reflection",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			eng, sess, closeFn, err := readOnlyEngine()
			if err != nil {
				return err
			}
			defer closeFn()

			r, err := eng.AddReflection(cmd.Context(), sess, text)
			if err != nil {
				return err
			}
			log.Info().Msgf("reflection %s added", r.ID)
			return nil
		},
	}
}

func reflectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List reflections",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, sess, closeFn, err := readOnlyEngine()
			if err != nil {
				return err
			}
			defer closeFn()

			reflections, err := eng.ListReflections(cmd.Context(), sess)
			if err != nil {
				return err
			}
			if len(reflections) == 0 {
				log.Info().Msg("no reflections")
				return nil
			}
			for _, r := range reflections {
				state := "off"
				if r.IsActive {
					state = "on"
				}
				_, _ = io.WriteString(os.Stdout, fmt.Sprintf("%s\t%s\t%s\n", r.ID, state, r.Text))
			}
			return nil
		},
	}
}

func reflectToggleCmd(use string, active bool) *cobra.Command {
	short := "Activate a reflection and readjust the plan"
	if !active {
		short = "Deactivate a reflection and readjust the plan"
	}
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			storeDB, repoRoot, closeFn, err := openDB()
			if err != nil {
				return err
			}
			defer closeFn()
			cfg, err := loadConfig(repoRoot)
			if err != nil {
				return err
			}
			sess := sessionName(cfg)

			lock, err := engine.AcquireSessionLock(replanDir(repoRoot), sess)
			if err != nil {
				return err
			}
			defer lock.Release()

			eng, err := buildEngine(storeDB, repoRoot, cfg)
			if err != nil {
				return err
			}
			r, plan, err := eng.ToggleReflection(cmd.Context(), sess, args[0], active)
			if err != nil {
				return err
			}
			if plan == nil {
				log.Info().Msgf("reflection %s %s", r.ID, use)
				return nil
			}
			log.Info().Msgf("reflection %s %s: %d boosted, %d penalized",
				r.ID, use, plan.Metadata.BoostedCount, plan.Metadata.PenalizedCount)
			return nil
		},
	}
}
