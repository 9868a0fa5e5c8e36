package planctx

import (
	"fmt"
	"strings"

	"github.com/replanhq/replan/internal/model"
)

// maxFormattedDocs caps the document list in the rendered baseline block;
// the remainder collapses into a "(N more)" suffix.
const maxFormattedDocs = 10

// FormatBaseline renders the baseline summary as a short natural-language
// block for the planner prompt and the reasoning trace. Pure formatting, no
// side effects.
func FormatBaseline(b *BaselineSummary) string {
	if b == nil {
		return "No previous baseline."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Previous baseline covers %d tasks across %d documents", b.TaskCount, b.DocumentCount)
	if b.AgeHours != nil {
		fmt.Fprintf(&sb, " (created %.0f hours ago)", *b.AgeHours)
	}
	sb.WriteString(".\n")
	fmt.Fprintf(&sb, "Documents: %s", formatDocumentIDs(b.DocumentIDs))
	if len(b.RepresentativeTaskIDs) > 0 {
		fmt.Fprintf(&sb, "\nRepresentative tasks: %s", strings.Join(b.RepresentativeTaskIDs, ", "))
	}
	return sb.String()
}

func formatDocumentIDs(ids []string) string {
	if len(ids) == 0 {
		return "none"
	}
	if len(ids) <= maxFormattedDocs {
		return strings.Join(ids, ", ")
	}
	shown := strings.Join(ids[:maxFormattedDocs], ", ")
	return fmt.Sprintf("%s (%d more)", shown, len(ids)-maxFormattedDocs)
}

// FormatNewTasks renders the new tasks as newline-delimited compact records.
func FormatNewTasks(tasks []model.Task) string {
	if len(tasks) == 0 {
		return "No new tasks."
	}
	lines := make([]string, len(tasks))
	for i, t := range tasks {
		line := fmt.Sprintf("[%s] %s (%.1fh)", t.ID, t.Text, t.EstimatedHours)
		if t.DocumentID != "" {
			line += " doc=" + t.DocumentID
		}
		if t.LNOCategory != "" {
			line += " category=" + t.LNOCategory
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}
