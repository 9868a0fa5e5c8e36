package planner

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/metalagman/ainvoke/adk"
	"github.com/rs/zerolog/log"

	"github.com/replanhq/replan/internal/adkexec"
	"github.com/replanhq/replan/internal/config"
	"github.com/replanhq/replan/internal/logging"
)

// ExecPlanner runs an agent CLI (claude, codex, gemini, or a custom command)
// as the full-planning collaborator.
type ExecPlanner struct {
	root string
	cfg  config.PlannerConfig
	cmd  []string
}

// NewExecPlanner creates a planner running under root (artifacts go to
// root/.replan/plans). The command is resolved from cfg up front so a
// misconfigured agent fails before any expensive work.
func NewExecPlanner(root string, cfg config.PlannerConfig) (*ExecPlanner, error) {
	cmd, err := resolveCommand(cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve planner command: %w", err)
	}
	return &ExecPlanner{
		root: root,
		cfg:  cfg,
		cmd:  cmd,
	}, nil
}

func resolveCommand(cfg config.PlannerConfig) ([]string, error) {
	if len(cfg.Cmd) > 0 {
		return append([]string(nil), cfg.Cmd...), nil
	}
	var cmd []string
	switch cfg.Agent {
	case "claude":
		cmd = []string{"claude"}
	case "codex":
		cmd = []string{"codex"}
	case "gemini":
		cmd = []string{"gemini"}
	case "":
		return nil, fmt.Errorf("planner agent is not configured (set agent or cmd)")
	default:
		return nil, fmt.Errorf("unsupported planner agent %q (use claude, codex, gemini, or set cmd)", cfg.Agent)
	}
	if model := strings.TrimSpace(cfg.Model); model != "" {
		cmd = append(cmd, "--model", model)
	}
	return cmd, nil
}

// Plan invokes the planning agent with req and returns the validated result
// along with the run directory holding the invocation artifacts.
func (p *ExecPlanner) Plan(ctx context.Context, req Request) (*Result, string, error) {
	if err := req.Validate(); err != nil {
		return nil, "", err
	}

	runDir, err := p.newRunDir()
	if err != nil {
		return nil, "", err
	}

	stdoutFile, stderrFile, closeLogs, err := openLogFiles(runDir)
	if err != nil {
		return nil, "", err
	}
	defer closeLogs()
	stdoutWriter, stderrWriter := agentOutputWriters(logging.DebugEnabled(), stdoutFile, stderrFile)

	prompt := buildPlanPrompt()
	if err := os.WriteFile(filepath.Join(runDir, "logs", "prompt.txt"), []byte(prompt), 0o644); err != nil {
		return nil, "", fmt.Errorf("write prompt log: %w", err)
	}

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, "", fmt.Errorf("marshal request: %w", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, "input.json"), reqJSON, 0o644); err != nil {
		return nil, "", fmt.Errorf("write input.json: %w", err)
	}

	execAgent, err := adk.NewExecAgent(
		"replan_plan",
		"Replan prioritization agent",
		p.cmd,
		adk.WithExecAgentPrompt(prompt),
		adk.WithExecAgentInputSchema(planInputSchema),
		adk.WithExecAgentOutputSchema(planOutputSchema),
		adk.WithExecAgentRunDir(runDir),
		adk.WithExecAgentUseTTY(p.cfg.UseTTY != nil && *p.cfg.UseTTY),
		adk.WithExecAgentStdout(stdoutWriter),
		adk.WithExecAgentStderr(stderrWriter),
	)
	if err != nil {
		return nil, "", fmt.Errorf("create planning exec agent: %w", err)
	}

	out, err := adkexec.Invoke(ctx, adkexec.Input{
		AppName: "replan-plan",
		Agent:   execAgent,
		Message: string(reqJSON),
	})
	if err != nil {
		return nil, "", fmt.Errorf("planning agent run failed: %w", err)
	}
	lastOut := []byte(out)
	if len(lastOut) == 0 {
		return nil, "", fmt.Errorf("planning agent produced empty output")
	}

	res, err := parsePlanResult(lastOut)
	if err != nil {
		return nil, "", err
	}
	if err := res.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid plan result: %w", err)
	}

	outJSON, err := json.MarshalIndent(res, "", "  ")
	if err == nil {
		if writeErr := os.WriteFile(filepath.Join(runDir, "output.json"), outJSON, 0o644); writeErr != nil {
			log.Warn().Err(writeErr).Msg("failed to write planning output.json")
		}
	}

	return &res, runDir, nil
}

func (p *ExecPlanner) newRunDir() (string, error) {
	sfx, err := randomHex(3)
	if err != nil {
		return "", fmt.Errorf("generate planning run id: %w", err)
	}
	runID := fmt.Sprintf("%s-%s", time.Now().UTC().Format("20060102-150405"), sfx)
	runDir := filepath.Join(p.root, ".replan", "plans", runID)
	if err := os.MkdirAll(filepath.Join(runDir, "logs"), 0o755); err != nil {
		return "", fmt.Errorf("create planning logs dir: %w", err)
	}
	return runDir, nil
}

// agentOutputWriters tees agent output to the console when debug logging is
// on. Both streams go to stderr so stdout stays clean.
func agentOutputWriters(debugEnabled bool, stdoutLog, stderrLog io.Writer) (io.Writer, io.Writer) {
	if !debugEnabled {
		return stdoutLog, stderrLog
	}
	return io.MultiWriter(stdoutLog, os.Stderr), io.MultiWriter(stderrLog, os.Stderr)
}

func openLogFiles(runDir string) (*os.File, *os.File, func(), error) {
	stdoutFile, err := os.OpenFile(filepath.Join(runDir, "logs", "stdout.txt"), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open planning stdout log: %w", err)
	}
	stderrFile, err := os.OpenFile(filepath.Join(runDir, "logs", "stderr.txt"), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		_ = stdoutFile.Close()
		return nil, nil, nil, fmt.Errorf("open planning stderr log: %w", err)
	}
	closeFn := func() {
		_ = stdoutFile.Close()
		_ = stderrFile.Close()
	}
	return stdoutFile, stderrFile, closeFn, nil
}

func parsePlanResult(out []byte) (Result, error) {
	raw := out
	if !json.Valid(raw) {
		extracted, ok := extractJSON(out)
		if !ok {
			return Result{}, fmt.Errorf("planning output is not valid JSON")
		}
		raw = extracted
	}
	if err := ValidateResultJSON(raw); err != nil {
		return Result{}, err
	}
	var res Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return Result{}, fmt.Errorf("parse planning output: %w", err)
	}
	return res, nil
}

// extractJSON pulls the first balanced top-level JSON object out of agent
// output that wraps it in prose or fencing.
func extractJSON(out []byte) ([]byte, bool) {
	start := bytes.IndexByte(out, '{')
	if start < 0 {
		return nil, false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(out); i++ {
		c := out[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				candidate := out[start : i+1]
				if json.Valid(candidate) {
					return candidate, true
				}
				return nil, false
			}
		}
	}
	return nil, false
}

func randomHex(bytesLen int) (string, error) {
	buf := make([]byte, bytesLen)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func buildPlanPrompt() string {
	return strings.TrimSpace(`
You are replan's prioritization agent.
Your job is to turn a task corpus into one full execution plan:
1) order the tasks you include by priority, prerequisites first
2) score your confidence in each task's placement
3) explain what you included, excluded, and corrected

Rules:
- Output ONLY valid JSON matching the provided schema.
- Do not include markdown, comments, or prose outside JSON.
- ordered_task_ids must only reference task ids from the request, without duplicates.
- Never place a task before a task it depends on.
- confidence_scores must cover every included task id with a value in [0,1].
- Exclude a task only with a reason in exclusion_reasons.
- When a baseline summary is provided, keep unchanged tasks stably ordered and
  describe any reordering of them in corrections_made.
- When review_notes are present, treat them as corrections from your previous
  pass and address each one.
`)
}
