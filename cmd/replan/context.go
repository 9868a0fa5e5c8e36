package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/replanhq/replan/internal/planctx"
	"github.com/spf13/cobra"
)

func contextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Inspect the incremental planning context",
	}
	cmd.AddCommand(contextShowCmd())
	return cmd
}

func contextShowCmd() *cobra.Command {
	var render bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show what the next full planning pass would send to the agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, sess, closeFn, err := readOnlyEngine()
			if err != nil {
				return err
			}
			defer closeFn()

			pctx, err := eng.BuildContext(cmd.Context(), sess)
			if err != nil {
				return err
			}
			md := contextMarkdown(sess, pctx)
			if !render {
				fmt.Print(md)
				return nil
			}
			renderer, err := glamour.NewTermRenderer(
				glamour.WithAutoStyle(),
				glamour.WithWordWrap(100),
			)
			if err != nil {
				return fmt.Errorf("markdown renderer: %w", err)
			}
			out, err := renderer.Render(md)
			if err != nil {
				return fmt.Errorf("render context: %w", err)
			}
			fmt.Print(out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&render, "render", false, "render as styled markdown")
	return cmd
}

func contextMarkdown(session string, pctx planctx.Context) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Planning context for session %s\n\n", session)
	if pctx.IsFirstRun {
		sb.WriteString("First run: the full corpus goes to the planner.\n\n")
	}
	sb.WriteString("## Baseline\n\n")
	sb.WriteString(planctx.FormatBaseline(pctx.Baseline))
	sb.WriteString("\n\n## New tasks\n\n")
	sb.WriteString(planctx.FormatNewTasks(pctx.NewTasks))
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "%d of %d tasks are new; estimated prompt savings ~%d tokens.\n",
		len(pctx.NewTasks), len(pctx.AllTasks), pctx.TokenSavingsEstimate)
	return sb.String()
}
