package planner

import (
	"reflect"
	"strings"
	"testing"

	"github.com/replanhq/replan/internal/config"
)

func TestResolveCommand(t *testing.T) {
	t.Parallel()

	explicit, err := resolveCommand(config.PlannerConfig{Cmd: []string{"my-agent", "--json"}, Agent: "claude"})
	if err != nil {
		t.Fatalf("resolveCommand returned error: %v", err)
	}
	if !reflect.DeepEqual(explicit, []string{"my-agent", "--json"}) {
		t.Fatalf("explicit cmd = %v, want it to win over agent preset", explicit)
	}

	preset, err := resolveCommand(config.PlannerConfig{Agent: "codex"})
	if err != nil {
		t.Fatalf("resolveCommand returned error: %v", err)
	}
	if !reflect.DeepEqual(preset, []string{"codex"}) {
		t.Fatalf("preset cmd = %v, want [codex]", preset)
	}

	withModel, err := resolveCommand(config.PlannerConfig{Agent: "claude", Model: "claude-sonnet-4-5"})
	if err != nil {
		t.Fatalf("resolveCommand returned error: %v", err)
	}
	if !reflect.DeepEqual(withModel, []string{"claude", "--model", "claude-sonnet-4-5"}) {
		t.Fatalf("cmd with model = %v", withModel)
	}

	if _, err := resolveCommand(config.PlannerConfig{Agent: "hal9000"}); err == nil {
		t.Fatal("resolveCommand returned nil error, want error for unknown agent")
	}
	if _, err := resolveCommand(config.PlannerConfig{}); err == nil {
		t.Fatal("resolveCommand returned nil error, want error for empty config")
	}
}

func TestExtractJSON(t *testing.T) {
	t.Parallel()

	wrapped := []byte("Here is the plan:\n```json\n{\"confidence\": 0.9, \"note\": \"a } in a string\"}\n```\nDone.")
	got, ok := extractJSON(wrapped)
	if !ok {
		t.Fatal("extractJSON failed on prose-wrapped output")
	}
	if string(got) != `{"confidence": 0.9, "note": "a } in a string"}` {
		t.Fatalf("extracted = %s", got)
	}

	nested := []byte(`prefix {"outer": {"inner": [1, 2]}} suffix`)
	got, ok = extractJSON(nested)
	if !ok || string(got) != `{"outer": {"inner": [1, 2]}}` {
		t.Fatalf("extractJSON(nested) = %s, ok=%v", got, ok)
	}

	if _, ok := extractJSON([]byte("no json here at all")); ok {
		t.Fatal("extractJSON reported success on output without JSON")
	}
	if _, ok := extractJSON([]byte(`{"unbalanced": true`)); ok {
		t.Fatal("extractJSON reported success on unbalanced braces")
	}
}

func TestParsePlanResult(t *testing.T) {
	t.Parallel()

	direct := []byte(`{
		"ordered_task_ids": ["002", "001"],
		"confidence_scores": {"001": 0.8, "002": 0.9},
		"confidence": 0.85
	}`)
	res, err := parsePlanResult(direct)
	if err != nil {
		t.Fatalf("parsePlanResult returned error: %v", err)
	}
	if !reflect.DeepEqual(res.OrderedTaskIDs, []string{"002", "001"}) {
		t.Fatalf("ordered ids = %v, want [002 001]", res.OrderedTaskIDs)
	}

	wrapped := append([]byte("The plan follows.\n"), direct...)
	res, err = parsePlanResult(wrapped)
	if err != nil {
		t.Fatalf("parsePlanResult(wrapped) returned error: %v", err)
	}
	if res.Confidence != 0.85 {
		t.Fatalf("confidence = %v, want 0.85", res.Confidence)
	}

	// Schema gate: structurally valid JSON that misses required fields.
	_, err = parsePlanResult([]byte(`{"ordered_task_ids": ["001"]}`))
	if err == nil {
		t.Fatal("parsePlanResult returned nil error, want schema violation")
	}
	if !strings.Contains(err.Error(), "confidence") {
		t.Fatalf("error = %q, want mention of missing confidence", err)
	}

	if _, err := parsePlanResult([]byte("total nonsense")); err == nil {
		t.Fatal("parsePlanResult returned nil error, want error for non-JSON output")
	}
}
