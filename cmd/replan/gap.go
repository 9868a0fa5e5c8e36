package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/replanhq/replan/internal/engine"
	"github.com/replanhq/replan/internal/graph"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func gapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gap",
		Short: "Fill gaps in the task graph",
	}
	cmd.AddCommand(gapFillCmd())
	return cmd
}

func gapFillCmd() *cobra.Command {
	var rawTasks []string
	cmd := &cobra.Command{
		Use:   "fill <predecessor-id> <successor-id>",
		Short: "Insert bridging tasks between two tasks",
		Long: "Insert a chain of bridging tasks between a predecessor and a successor, " +
			"rewiring the successor's dependency and splicing the new tasks into the active baseline. " +
			"Use " + graph.StartOfPlan + " as the predecessor to insert at the start of the plan.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bridging, err := parseBridgingTasks(rawTasks)
			if err != nil {
				return err
			}
			if len(bridging) == 0 {
				return fmt.Errorf("at least one --task is required")
			}

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
			gap := graph.Gap{PredecessorID: args[0], SuccessorID: args[1]}
			_, inserted, err := eng.InsertGapTasks(cmd.Context(), sess, gap, bridging)
			if err != nil {
				return err
			}
			log.Info().Msgf("inserted %d bridging tasks: %s", len(inserted), strings.Join(inserted, ", "))
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&rawTasks, "task", nil, `bridging task as "<hours>:<text>" (repeatable, in order)`)
	return cmd
}

// parseBridgingTasks parses "<hours>:<text>" flag values.
func parseBridgingTasks(raw []string) ([]graph.BridgingTask, error) {
	tasks := make([]graph.BridgingTask, 0, len(raw))
	for _, r := range raw {
		hoursPart, textPart, ok := strings.Cut(r, ":")
		if !ok {
			return nil, fmt.Errorf("invalid --task %q: want \"<hours>:<text>\"", r)
		}
		hours, err := strconv.ParseFloat(strings.TrimSpace(hoursPart), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid --task %q: bad hours: %w", r, err)
		}
		t := graph.BridgingTask{Text: strings.TrimSpace(textPart), EstimatedHours: hours}
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("invalid --task %q: %w", r, err)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}
