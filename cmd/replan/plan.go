package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/replanhq/replan/internal/engine"
	"github.com/replanhq/replan/internal/model"
	"github.com/replanhq/replan/internal/reconcile"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	boostStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	penaltyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

func planCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Run and inspect plans",
	}
	cmd.AddCommand(planRunCmd())
	cmd.AddCommand(planShowCmd())
	cmd.AddCommand(planDiffCmd())
	cmd.AddCommand(planOrderCmd())
	cmd.AddCommand(planAdjustCmd())
	cmd.AddCommand(planStatusCmd())
	return cmd
}

func planRunCmd() *cobra.Command {
	var goal string
	cmd := &cobra.Command{
		Use:          "run",
		Short:        "Run a full planning pass",
		Long:         "Run a full planning pass over the task corpus with the configured agent, superseding any previous baseline for the session.",
		SilenceUsage: true,
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
			ctx := cmd.Context()

			lock, err := engine.AcquireSessionLock(replanDir(repoRoot), sess)
			if err != nil {
				return err
			}
			defer lock.Release()

			if err := reconcile.Run(ctx, storeDB, replanDir(repoRoot)); err != nil {
				return err
			}

			eng, err := buildEngine(storeDB, repoRoot, cfg)
			if err != nil {
				return err
			}
			rec, err := eng.RunFullPlan(ctx, sess, goal)
			if err != nil {
				return err
			}

			tasks, err := eng.Tasks(ctx, sess)
			if err != nil {
				return err
			}
			printRanking(os.Stdout, rec.OrderedTaskIDs, rec.ConfidenceScores, nil, taskTexts(tasks))
			log.Info().Msgf("baseline %s planned with %d tasks", rec.ID, len(rec.OrderedTaskIDs))
			return nil
		},
	}
	cmd.Flags().StringVar(&goal, "goal", "", "planning goal (empty inherits the previous baseline's goal)")
	return cmd
}

func planShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current adjusted plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, sess, closeFn, err := readOnlyEngine()
			if err != nil {
				return err
			}
			defer closeFn()
			ctx := cmd.Context()

			plan, rec, err := eng.CurrentPlan(ctx, sess)
			if err != nil {
				return err
			}
			tasks, err := eng.Tasks(ctx, sess)
			if err != nil {
				return err
			}

			fmt.Println(headerStyle.Render(fmt.Sprintf("session %s · baseline %s", sess, rec.ID)))
			if plan.Metadata.Warning != "" {
				fmt.Println(warnStyle.Render(plan.Metadata.Warning))
			}
			printRanking(os.Stdout, plan.OrderedTaskIDs, plan.ConfidenceScores, moveIndex(plan.Diff), taskTexts(tasks))
			return nil
		},
	}
}

func planDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff",
		Short: "Show how the adjusted plan differs from the baseline",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, sess, closeFn, err := readOnlyEngine()
			if err != nil {
				return err
			}
			defer closeFn()

			plan, _, err := eng.CurrentPlan(cmd.Context(), sess)
			if err != nil {
				return err
			}
			if len(plan.Diff.Moved) == 0 && len(plan.Diff.Filtered) == 0 {
				fmt.Println("No rank changes.")
				return nil
			}
			for _, mv := range plan.Diff.Moved {
				arrow := boostStyle.Render("↑")
				if mv.To > mv.From {
					arrow = penaltyStyle.Render("↓")
				}
				fmt.Printf("%s %s: %d → %d (%s)\n", arrow, mv.TaskID, mv.From, mv.To, mv.Reason)
			}
			for _, f := range plan.Diff.Filtered {
				fmt.Printf("%s %s: %s\n", penaltyStyle.Render("✗"), f.TaskID, f.Reason)
			}
			return nil
		},
	}
}

func planOrderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "order",
		Short: "Show the dependency-respecting execution order",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, sess, closeFn, err := readOnlyEngine()
			if err != nil {
				return err
			}
			defer closeFn()
			ctx := cmd.Context()

			order, err := eng.ExecutionOrder(ctx, sess)
			if err != nil {
				return err
			}
			tasks, err := eng.Tasks(ctx, sess)
			if err != nil {
				return err
			}
			texts := taskTexts(tasks)
			for i, id := range order {
				fmt.Printf("%d.\t%s\t%s\n", i+1, id, texts[id])
			}
			return nil
		},
	}
}

func planAdjustCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "adjust",
		Short: "Recompute the adjusted plan from active reflections",
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
			ctx := cmd.Context()

			lock, err := engine.AcquireSessionLock(replanDir(repoRoot), sess)
			if err != nil {
				return err
			}
			defer lock.Release()

			eng, err := buildEngine(storeDB, repoRoot, cfg)
			if err != nil {
				return err
			}
			plan, err := eng.AdjustPlan(ctx, sess)
			if err != nil {
				return err
			}
			tasks, err := eng.Tasks(ctx, sess)
			if err != nil {
				return err
			}

			if plan.Metadata.Warning != "" {
				log.Warn().Msg(plan.Metadata.Warning)
			}
			printRanking(os.Stdout, plan.OrderedTaskIDs, plan.ConfidenceScores, moveIndex(plan.Diff), taskTexts(tasks))
			log.Info().Msgf("plan adjusted: %d boosted, %d penalized (%d active reflections)",
				plan.Metadata.BoostedCount, plan.Metadata.PenalizedCount, plan.Metadata.ActiveReflectionCount)
			return nil
		},
	}
}

func planStatusCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show session status",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, sess, closeFn, err := readOnlyEngine()
			if err != nil {
				return err
			}
			defer closeFn()

			status, err := eng.PlanStatus(cmd.Context(), sess)
			if err != nil {
				return err
			}
			if asJSON {
				data, err := json.MarshalIndent(status, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}
			printStatus(os.Stdout, status)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print status as JSON")
	return cmd
}

// readOnlyEngine opens the database and assembles the engine for commands
// that never invoke the planning agent.
func readOnlyEngine() (*engine.Engine, string, func(), error) {
	storeDB, repoRoot, closeFn, err := openDB()
	if err != nil {
		return nil, "", func() {}, err
	}
	cfg, err := loadConfig(repoRoot)
	if err != nil {
		closeFn()
		return nil, "", func() {}, err
	}
	eng, err := buildEngine(storeDB, repoRoot, cfg)
	if err != nil {
		closeFn()
		return nil, "", func() {}, err
	}
	return eng, sessionName(cfg), closeFn, nil
}

func printRanking(w io.Writer, ordered []string, scores map[string]float64, moves map[string]model.RankMove, texts map[string]string) {
	for i, id := range ordered {
		marker := ""
		if mv, ok := moves[id]; ok {
			if mv.To < mv.From {
				marker = " " + boostStyle.Render(fmt.Sprintf("↑%d", mv.From-mv.To))
			} else if mv.To > mv.From {
				marker = " " + penaltyStyle.Render(fmt.Sprintf("↓%d", mv.To-mv.From))
			}
		}
		fmt.Fprintf(w, "%2d. [%.2f] %s  %s%s\n", i+1, scores[id], id, texts[id], marker)
	}
}

func printStatus(w io.Writer, status engine.Status) {
	fmt.Fprintf(w, "session:     %s\n", status.Session)
	fmt.Fprintf(w, "tasks:       %d\n", status.TaskCount)
	fmt.Fprintf(w, "reflections: %d active / %d total\n", status.ActiveReflectionCount, status.ReflectionCount)
	if status.Baseline == nil {
		fmt.Fprintln(w, "baseline:    none (run `replan plan run`)")
		return
	}
	b := status.Baseline
	age := "age unknown"
	if b.AgeHours != nil {
		age = fmt.Sprintf("%.1fh old", *b.AgeHours)
	}
	flags := ""
	if b.Expired {
		flags = " " + warnStyle.Render("[expired]")
	} else if b.Stale {
		flags = " " + warnStyle.Render("[stale]")
	}
	goal := ""
	if b.Goal != "" {
		goal = fmt.Sprintf(" goal=%q", b.Goal)
	}
	fmt.Fprintf(w, "baseline:    %s (%d tasks, %s)%s%s\n", b.ID, b.TaskCount, age, goal, flags)
	adjusted := "no"
	if status.HasAdjusted {
		adjusted = "yes"
	}
	fmt.Fprintf(w, "adjusted:    %s\n", adjusted)
}

func taskTexts(tasks []model.Task) map[string]string {
	texts := make(map[string]string, len(tasks))
	for _, t := range tasks {
		texts[t.ID] = t.Text
	}
	return texts
}

func moveIndex(diff model.PlanDiff) map[string]model.RankMove {
	if len(diff.Moved) == 0 {
		return nil
	}
	moves := make(map[string]model.RankMove, len(diff.Moved))
	for _, mv := range diff.Moved {
		moves[mv.TaskID] = mv
	}
	return moves
}
