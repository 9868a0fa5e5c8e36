package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/replanhq/replan/internal/graph"
	"github.com/replanhq/replan/internal/model"
	"github.com/replanhq/replan/internal/store"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func taskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage the task corpus",
	}
	cmd.AddCommand(taskAddCmd())
	cmd.AddCommand(taskListCmd())
	cmd.AddCommand(taskShowCmd())
	cmd.AddCommand(taskImportCmd())
	cmd.AddCommand(taskExportCmd())
	return cmd
}

func taskAddCmd() *cobra.Command {
	var id string
	var hours float64
	var dependsOn []string
	var documentID string
	var category string

	cmd := &cobra.Command{
		Use:   "add <text>",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return fmt.Errorf("task text is required")
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
			st := store.New(storeDB)
			sess := sessionName(cfg)
			ctx := cmd.Context()

			tasks, err := st.ListTasks(ctx, sess)
			if err != nil {
				return err
			}
			if id == "" {
				id = nextTaskID(tasks)
			}
			t := model.Task{
				ID:             id,
				Text:           text,
				EstimatedHours: hours,
				DependsOn:      dependsOn,
				DocumentID:     documentID,
				Source:         "manual",
				LNOCategory:    category,
				CreatedAt:      time.Now().UTC().Format(time.RFC3339),
			}
			if err := t.Validate(); err != nil {
				return err
			}
			if err := checkGraph(append(tasks, t)); err != nil {
				return err
			}
			if err := st.UpsertTasks(ctx, sess, []model.Task{t}); err != nil {
				return err
			}
			log.Info().Msgf("task %s added", t.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "task id (defaults to the next free numeric id)")
	cmd.Flags().Float64Var(&hours, "hours", 1, "estimated hours")
	cmd.Flags().StringSliceVar(&dependsOn, "depends-on", nil, "task id this task depends on (repeatable)")
	cmd.Flags().StringVar(&documentID, "doc", "", "source document id")
	cmd.Flags().StringVar(&category, "category", "", "LNO category (leverage|neutral|overhead)")
	return cmd
}

func taskListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tasks",
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
			st := store.New(storeDB)

			tasks, err := st.ListTasks(cmd.Context(), sessionName(cfg))
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				log.Info().Msg("no tasks")
				return nil
			}
			for _, t := range tasks {
				deps := "-"
				if len(t.DependsOn) > 0 {
					deps = strings.Join(t.DependsOn, ",")
				}
				category := t.LNOCategory
				if category == "" {
					category = "-"
				}
				_, _ = io.WriteString(os.Stdout, fmt.Sprintf("%s\t%.1fh\t%s\t%s\t%s\n", t.ID, t.EstimatedHours, category, deps, t.Text))
			}
			return nil
		},
	}
}

func taskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task as JSON",
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
			st := store.New(storeDB)

			t, err := st.GetTask(cmd.Context(), sessionName(cfg), args[0])
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(t, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}
}

func taskImportCmd() *cobra.Command {
	var replace bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import tasks from a YAML file",
		Long:  "Import tasks from a YAML file with a top-level tasks list. By default imported tasks are merged into the corpus; --replace discards the existing corpus first.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			imported, err := readTaskFile(args[0])
			if err != nil {
				return err
			}
			if len(imported) == 0 {
				return fmt.Errorf("%s contains no tasks", args[0])
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
			st := store.New(storeDB)
			sess := sessionName(cfg)
			ctx := cmd.Context()

			if replace {
				if err := checkGraph(imported); err != nil {
					return err
				}
				if err := st.ReplaceTasks(ctx, sess, imported); err != nil {
					return err
				}
				log.Info().Msgf("imported %d tasks (corpus replaced)", len(imported))
				return nil
			}

			existing, err := st.ListTasks(ctx, sess)
			if err != nil {
				return err
			}
			if err := checkGraph(mergeTasks(existing, imported)); err != nil {
				return err
			}
			if err := st.UpsertTasks(ctx, sess, imported); err != nil {
				return err
			}
			log.Info().Msgf("imported %d tasks", len(imported))
			return nil
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "replace the existing corpus instead of merging")
	return cmd
}

func taskExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Export tasks to YAML",
		Args:  cobra.MaximumNArgs(1),
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
			st := store.New(storeDB)

			tasks, err := st.ListTasks(cmd.Context(), sessionName(cfg))
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(taskFile{Tasks: tasks})
			if err != nil {
				return fmt.Errorf("marshal tasks: %w", err)
			}
			if len(args) == 0 {
				fmt.Print(string(data))
				return nil
			}
			if err := os.WriteFile(args[0], data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", args[0], err)
			}
			log.Info().Msgf("exported %d tasks to %s", len(tasks), args[0])
			return nil
		},
	}
}

// taskFile is the YAML import/export document.
type taskFile struct {
	Tasks []model.Task `yaml:"tasks"`
}

func readTaskFile(path string) ([]model.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var file taskFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	seen := make(map[string]bool, len(file.Tasks))
	for i := range file.Tasks {
		t := &file.Tasks[i]
		if t.ID == "" {
			return nil, fmt.Errorf("tasks[%d]: id is required", i)
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("tasks[%d]: duplicate id %q", i, t.ID)
		}
		seen[t.ID] = true
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("tasks[%d] (%s): %w", i, t.ID, err)
		}
		if t.Source == "" {
			t.Source = "import"
		}
		if t.CreatedAt == "" {
			t.CreatedAt = now
		}
	}
	return file.Tasks, nil
}

// checkGraph rejects corpora with self, unknown, or circular dependencies
// before they reach the store.
func checkGraph(tasks []model.Task) error {
	ids := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		ids[t.ID] = true
	}
	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			if dep == t.ID {
				return fmt.Errorf("task %s depends on itself", t.ID)
			}
			if !ids[dep] {
				return fmt.Errorf("task %s depends on unknown task %q", t.ID, dep)
			}
		}
	}
	if graph.DetectCycle(tasks) {
		return graph.ErrCircularDependency
	}
	return nil
}

func mergeTasks(existing, incoming []model.Task) []model.Task {
	merged := make([]model.Task, 0, len(existing)+len(incoming))
	replaced := make(map[string]bool, len(incoming))
	for _, t := range incoming {
		replaced[t.ID] = true
	}
	for _, t := range existing {
		if !replaced[t.ID] {
			merged = append(merged, t)
		}
	}
	return append(merged, incoming...)
}

// nextTaskID allocates the next zero-padded numeric id, matching the scheme
// gap filling uses.
func nextTaskID(tasks []model.Task) string {
	width := 3
	next := 0
	for _, t := range tasks {
		v, err := strconv.Atoi(t.ID)
		if err != nil {
			continue
		}
		if v > next {
			next = v
		}
		if len(t.ID) > width {
			width = len(t.ID)
		}
	}
	return fmt.Sprintf("%0*d", width, next+1)
}
