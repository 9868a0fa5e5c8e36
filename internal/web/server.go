// Package web provides the JSON API and dashboard for replan.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/replanhq/replan/internal/config"
	"github.com/replanhq/replan/internal/engine"
	"github.com/replanhq/replan/internal/graph"
	"github.com/replanhq/replan/internal/model"
	"github.com/replanhq/replan/internal/rank"
	"github.com/replanhq/replan/internal/store"
)

// Server exposes the planning engine over HTTP.
type Server struct {
	logger   zerolog.Logger
	engine   *engine.Engine
	session  string
	debounce *debouncer
}

// NewServer creates a new web server. Reflection toggles are debounced per
// session; a zero toggle_debounce_ms means one second.
func NewServer(logger zerolog.Logger, eng *engine.Engine, cfg config.Config) (*Server, error) {
	session := cfg.Session
	if session == "" {
		session = config.DefaultSession
	}
	delay := time.Duration(cfg.Web.ToggleDebounceMS) * time.Millisecond
	if cfg.Web.ToggleDebounceMS == 0 {
		delay = time.Second
	}
	return &Server{
		logger:   logger.With().Str("component", "web").Logger(),
		engine:   eng,
		session:  session,
		debounce: newDebouncer(delay),
	}, nil
}

//go:embed templates/*.html
var templatesFS embed.FS

// Routes returns the router for the API and the dashboard.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.handleIndex)
	mux.HandleFunc("GET /api/plan", s.handlePlan)
	mux.HandleFunc("GET /api/plan/diff", s.handleDiff)
	mux.HandleFunc("GET /api/plan/order", s.handleOrder)
	mux.HandleFunc("POST /api/plan/run", s.handleRun)
	mux.HandleFunc("POST /api/plan/adjust", s.handleAdjust)
	mux.HandleFunc("GET /api/context", s.handleContext)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/tasks", s.handleTasks)
	mux.HandleFunc("GET /api/reflections", s.handleReflections)
	mux.HandleFunc("POST /api/reflections", s.handleAddReflection)
	mux.HandleFunc("POST /api/reflections/{id}/toggle", s.handleToggleReflection)
	mux.HandleFunc("POST /api/gaps", s.handleGaps)
	return mux
}

func (s *Server) sessionFrom(r *http.Request) string {
	if v := r.URL.Query().Get("session"); v != "" {
		return v
	}
	return s.session
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	session := s.sessionFrom(r)
	plan, rec, err := s.engine.CurrentPlan(r.Context(), session)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session":  session,
		"baseline": rec,
		"plan":     plan,
	})
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	plan, _, err := s.engine.CurrentPlan(r.Context(), s.sessionFrom(r))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan.Diff)
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.engine.ExecutionOrder(r.Context(), s.sessionFrom(r))
	if err != nil {
		if errors.Is(err, graph.ErrCircularDependency) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Goal string `json:"goal"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	rec, err := s.engine.RunFullPlan(r.Context(), s.sessionFrom(r), req.Goal)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleAdjust(w http.ResponseWriter, r *http.Request) {
	plan, err := s.engine.AdjustPlan(r.Context(), s.sessionFrom(r))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	pctx, err := s.engine.BuildContext(r.Context(), s.sessionFrom(r))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.engine.PlanStatus(r.Context(), s.sessionFrom(r))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.engine.Tasks(r.Context(), s.sessionFrom(r))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (s *Server) handleReflections(w http.ResponseWriter, r *http.Request) {
	reflections, err := s.engine.ListReflections(r.Context(), s.sessionFrom(r))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reflections": reflections})
}

func (s *Server) handleAddReflection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "reflection text is required")
		return
	}

	reflection, err := s.engine.AddReflection(r.Context(), s.sessionFrom(r), req.Text)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reflection)
}

// handleToggleReflection flips the flag immediately and schedules one
// readjustment per session after the debounce window, so a burst of toggles
// recomputes once.
func (s *Server) handleToggleReflection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	session := s.sessionFrom(r)
	reflection, err := s.engine.SetReflectionActive(r.Context(), session, r.PathValue("id"), req.Active)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	s.debounce.trigger(session, func() {
		if _, err := s.engine.AdjustPlan(context.Background(), session); err != nil {
			if errors.Is(err, rank.ErrNoBaseline) || errors.Is(err, rank.ErrBaselineExpired) {
				s.logger.Debug().Err(err).Msg("debounced readjustment skipped")
				return
			}
			s.logger.Warn().Err(err).Msg("debounced readjustment failed")
		}
	})
	writeJSON(w, http.StatusAccepted, reflection)
}

func (s *Server) handleGaps(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PredecessorID string               `json:"predecessor_id"`
		SuccessorID   string               `json:"successor_id"`
		Tasks         []graph.BridgingTask `json:"tasks"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	gap := graph.Gap{PredecessorID: req.PredecessorID, SuccessorID: req.SuccessorID}
	if err := gap.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	for i := range req.Tasks {
		if err := req.Tasks[i].Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	updated, newIDs, err := s.engine.InsertGapTasks(r.Context(), s.sessionFrom(r), gap, req.Tasks)
	if err != nil {
		if errors.Is(err, graph.ErrCircularDependency) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"inserted": newIDs,
		"tasks":    updated,
	})
}

func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, rank.ErrNoBaseline),
		errors.Is(err, rank.ErrBaselineExpired),
		errors.Is(err, engine.ErrNoTasks):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// indexView is the data handed to the dashboard template.
type indexView struct {
	Session     string
	Status      engine.Status
	HasPlan     bool
	Rows        []planRow
	Reflections []model.Reflection
}

type planRow struct {
	Rank       int
	TaskID     string
	Text       string
	Category   string
	Confidence float64
	Was        int
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	tmpl, err := template.ParseFS(templatesFS, "templates/index.html")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	view, err := s.buildIndexView(r.Context(), s.sessionFrom(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := tmpl.Execute(w, view); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) buildIndexView(ctx context.Context, session string) (indexView, error) {
	status, err := s.engine.PlanStatus(ctx, session)
	if err != nil {
		return indexView{}, err
	}
	reflections, err := s.engine.ListReflections(ctx, session)
	if err != nil {
		return indexView{}, err
	}

	view := indexView{Session: session, Status: status, Reflections: reflections}

	plan, _, err := s.engine.CurrentPlan(ctx, session)
	if errors.Is(err, rank.ErrNoBaseline) {
		return view, nil
	}
	if err != nil {
		return indexView{}, err
	}
	view.HasPlan = true

	tasks, err := s.engine.Tasks(ctx, session)
	if err != nil {
		return indexView{}, err
	}
	byID := make(map[string]model.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	was := make(map[string]int, len(plan.Diff.Moved))
	for _, m := range plan.Diff.Moved {
		was[m.TaskID] = m.From
	}

	view.Rows = make([]planRow, len(plan.OrderedTaskIDs))
	for i, id := range plan.OrderedTaskIDs {
		t := byID[id]
		view.Rows[i] = planRow{
			Rank:       i + 1,
			TaskID:     id,
			Text:       t.Text,
			Category:   t.LNOCategory,
			Confidence: plan.ConfidenceScores[id],
			Was:        was[id],
		}
	}
	return view, nil
}
