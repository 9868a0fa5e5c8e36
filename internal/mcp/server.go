// Package mcp exposes replan operations as MCP tools over stdio, so a
// planning agent can mutate the task graph and read plan state mid-session.
package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/replanhq/replan/internal/config"
	"github.com/replanhq/replan/internal/engine"
	"github.com/replanhq/replan/internal/graph"
	"github.com/replanhq/replan/internal/model"
	"github.com/replanhq/replan/internal/planctx"
)

// Server wires the planning engine into an MCP stdio server.
type Server struct {
	logger  zerolog.Logger
	engine  *engine.Engine
	session string
	version string
}

// NewServer creates an MCP server bound to the configured session.
func NewServer(logger zerolog.Logger, eng *engine.Engine, cfg config.Config, version string) *Server {
	session := cfg.Session
	if session == "" {
		session = config.DefaultSession
	}
	return &Server{
		logger:  logger.With().Str("component", "mcp").Logger(),
		engine:  eng,
		session: session,
		version: version,
	}
}

// Run serves MCP over stdio until the context is canceled or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	srv := mcp.NewServer(&mcp.Implementation{Name: "replan", Version: s.version}, nil)
	s.register(srv)
	s.logger.Info().Str("session", s.session).Msg("mcp server listening on stdio")
	return srv.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) register(srv *mcp.Server) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "insert_bridging_tasks",
		Description: "Insert bridging tasks into a dependency gap between two tasks, splicing them into the current plan without a full re-plan",
	}, s.insertBridgingTasks)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "toggle_reflection",
		Description: "Activate or deactivate a reflection and recompute the adjusted plan",
	}, s.toggleReflection)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "adjust_plan",
		Description: "Recompute the reflection-adjusted plan from the active baseline",
	}, s.adjustPlan)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "build_context",
		Description: "Build the incremental planning context: baseline summary plus tasks not covered by the last full run",
	}, s.buildContext)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "plan_status",
		Description: "Report the session's planning state: corpus size, reflections, and baseline freshness",
	}, s.planStatus)
}

func (s *Server) sessionOf(session string) string {
	if session != "" {
		return session
	}
	return s.session
}

type insertArgs struct {
	Session       string             `json:"session,omitempty" jsonschema:"session name, defaults to the configured session"`
	PredecessorID string             `json:"predecessor_id" jsonschema:"task id before the gap, or 000 for the start of the plan"`
	SuccessorID   string             `json:"successor_id" jsonschema:"task id after the gap"`
	Tasks         []bridgingTaskArgs `json:"tasks" jsonschema:"bridging tasks to insert, in execution order"`
}

type bridgingTaskArgs struct {
	Text           string  `json:"text"`
	EstimatedHours float64 `json:"estimated_hours"`
}

type insertResult struct {
	InsertedIDs []string `json:"inserted_ids"`
	TaskCount   int      `json:"task_count"`
}

func (s *Server) insertBridgingTasks(ctx context.Context, _ *mcp.CallToolRequest, args insertArgs) (*mcp.CallToolResult, insertResult, error) {
	gap := graph.Gap{PredecessorID: args.PredecessorID, SuccessorID: args.SuccessorID}
	bridging := make([]graph.BridgingTask, len(args.Tasks))
	for i, t := range args.Tasks {
		bridging[i] = graph.BridgingTask{Text: t.Text, EstimatedHours: t.EstimatedHours}
	}

	updated, ids, err := s.engine.InsertGapTasks(ctx, s.sessionOf(args.Session), gap, bridging)
	if err != nil {
		return nil, insertResult{}, err
	}
	return nil, insertResult{InsertedIDs: ids, TaskCount: len(updated)}, nil
}

type toggleArgs struct {
	Session      string `json:"session,omitempty" jsonschema:"session name, defaults to the configured session"`
	ReflectionID string `json:"reflection_id"`
	Active       bool   `json:"active"`
}

type toggleResult struct {
	Reflection model.Reflection    `json:"reflection"`
	Adjusted   *model.AdjustedPlan `json:"adjusted_plan,omitempty"`
}

func (s *Server) toggleReflection(ctx context.Context, _ *mcp.CallToolRequest, args toggleArgs) (*mcp.CallToolResult, toggleResult, error) {
	r, adjusted, err := s.engine.ToggleReflection(ctx, s.sessionOf(args.Session), args.ReflectionID, args.Active)
	if err != nil {
		return nil, toggleResult{}, err
	}
	return nil, toggleResult{Reflection: r, Adjusted: adjusted}, nil
}

type adjustArgs struct {
	Session string `json:"session,omitempty" jsonschema:"session name, defaults to the configured session"`
}

func (s *Server) adjustPlan(ctx context.Context, _ *mcp.CallToolRequest, args adjustArgs) (*mcp.CallToolResult, *model.AdjustedPlan, error) {
	adjusted, err := s.engine.AdjustPlan(ctx, s.sessionOf(args.Session))
	if err != nil {
		return nil, nil, err
	}
	return nil, adjusted, nil
}

type contextArgs struct {
	Session string `json:"session,omitempty" jsonschema:"session name, defaults to the configured session"`
}

func (s *Server) buildContext(ctx context.Context, _ *mcp.CallToolRequest, args contextArgs) (*mcp.CallToolResult, planctx.Context, error) {
	pctx, err := s.engine.BuildContext(ctx, s.sessionOf(args.Session))
	if err != nil {
		return nil, planctx.Context{}, err
	}
	return nil, pctx, nil
}

type statusArgs struct {
	Session string `json:"session,omitempty" jsonschema:"session name, defaults to the configured session"`
}

func (s *Server) planStatus(ctx context.Context, _ *mcp.CallToolRequest, args statusArgs) (*mcp.CallToolResult, engine.Status, error) {
	status, err := s.engine.PlanStatus(ctx, s.sessionOf(args.Session))
	if err != nil {
		return nil, engine.Status{}, err
	}
	return nil, status, nil
}
