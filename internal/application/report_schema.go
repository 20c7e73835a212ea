package application

import (
	"fmt"

	"github.com/kaptinlin/jsonschema"

	"threatgate/internal/domain"
)

// threatModelSchema constrains the structured output a generation
// collaborator returns for threat-model requests. Unknown top-level keys
// are rejected so prompt-injected extra fields never reach callers.
const threatModelSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": false,
  "required": ["scope_summary", "cia", "aaa", "key_controls", "residual_risk_rating", "assumptions"],
  "properties": {
    "scope_summary": {"type": "string", "minLength": 1},
    "cia": {
      "type": "object",
      "additionalProperties": false,
      "required": ["confidentiality", "integrity", "availability"],
      "properties": {
        "confidentiality": {"$ref": "#/$defs/riskList"},
        "integrity": {"$ref": "#/$defs/riskList"},
        "availability": {"$ref": "#/$defs/riskList"}
      }
    },
    "aaa": {
      "type": "object",
      "additionalProperties": false,
      "required": ["authentication", "authorization", "accounting"],
      "properties": {
        "authentication": {"$ref": "#/$defs/riskList"},
        "authorization": {"$ref": "#/$defs/riskList"},
        "accounting": {"$ref": "#/$defs/riskList"}
      }
    },
    "key_controls": {"type": "array", "items": {"type": "string"}},
    "residual_risk_rating": {"type": "string", "enum": ["low", "medium", "high", "critical"]},
    "assumptions": {"type": "array", "items": {"type": "string"}},
    "sources": {"type": "array", "items": {"type": "string"}}
  },
  "$defs": {
    "riskList": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["risk", "impact", "likelihood", "mitigations"],
        "properties": {
          "risk": {"type": "string", "minLength": 1},
          "impact": {"type": "string"},
          "likelihood": {"type": "string", "enum": ["low", "medium", "high"]},
          "mitigations": {"type": "array", "items": {"type": "string"}}
        }
      }
    }
  }
}`

// ReportValidator checks generator output against the threat-model report
// schema before the pipeline trusts it.
type ReportValidator struct {
	schema *jsonschema.Schema
}

func NewReportValidator() (*ReportValidator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	schema, err := compiler.Compile([]byte(threatModelSchema))
	if err != nil {
		return nil, fmt.Errorf("compile report schema: %w", err)
	}
	return &ReportValidator{schema: schema}, nil
}

// Validate returns a wrapped domain.ErrInvalidInput when data does not
// conform to the report schema.
func (v *ReportValidator) Validate(data []byte) error {
	result := v.schema.ValidateJSON(data)
	if result.IsValid() {
		return nil
	}
	return fmt.Errorf("%w: report schema validation failed: %v", domain.ErrInvalidInput, result.Errors)
}
