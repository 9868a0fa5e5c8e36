package planner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const (
	planInputSchema = `{
  "type":"object",
  "properties":{
    "goal":{"type":"string"},
    "baseline_summary":{"type":"string"},
    "new_tasks":{
      "type":"array",
      "items":{
        "type":"object",
        "properties":{
          "task_id":{"type":"string"},
          "task_text":{"type":"string"},
          "document_id":{"type":"string"},
          "source":{"type":"string"},
          "lno_category":{"type":"string"}
        },
        "required":["task_id","task_text"],
        "additionalProperties":false
      }
    },
    "active_reflections":{"type":"array","items":{"type":"string"}},
    "review_notes":{"type":"string"}
  },
  "required":["goal","baseline_summary","new_tasks"],
  "additionalProperties":false
}`
	planOutputSchema = `{
  "type":"object",
  "properties":{
    "ordered_task_ids":{"type":"array","items":{"type":"string"},"minItems":1},
    "confidence_scores":{
      "type":"object",
      "additionalProperties":{"type":"number","minimum":0,"maximum":1}
    },
    "inclusion_reasons":{
      "type":"object",
      "additionalProperties":{"type":"string"}
    },
    "exclusion_reasons":{
      "type":"object",
      "additionalProperties":{"type":"string"}
    },
    "corrections_made":{"type":"string"},
    "confidence":{"type":"number","minimum":0,"maximum":1}
  },
  "required":["ordered_task_ids","confidence_scores","confidence"],
  "additionalProperties":false
}`
)

// ValidateResultJSON checks raw planning agent output against the result
// schema before it is trusted, naming every violated path.
func ValidateResultJSON(raw []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(planOutputSchema)
	documentLoader := gojsonschema.NewBytesLoader(raw)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("validate plan result schema: %w", err)
	}
	if result.Valid() {
		return nil
	}

	errs := make([]string, 0, len(result.Errors()))
	for _, schemaErr := range result.Errors() {
		errs = append(errs, schemaErr.String())
	}
	sort.Strings(errs)

	return fmt.Errorf("plan result schema validation failed: %s", strings.Join(errs, "; "))
}
