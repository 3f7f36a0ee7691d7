package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const candidateRecordSchema = `{
  "type": "object",
  "properties": {
    "name": {"type": ["string", "null"]},
    "totalExperienceYears": {"type": ["number", "string", "null"]},
    "skills": {"type": ["array", "null"], "items": {"type": "string"}},
    "summary": {"type": ["string", "null"]},
    "education": {"type": ["string", "null"]},
    "discipline": {"type": ["string", "null"]},
    "industry": {"type": ["string", "null"]},
    "companies": {"type": ["string", "null"]}
  }
}`

const comparisonSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["name", "score"],
    "properties": {
      "name": {"type": ["string", "null"]},
      "score": {"type": "integer", "minimum": 0, "maximum": 100},
      "justification": {"type": ["string", "null"]}
    }
  }
}`

var recordSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return compileSchema("candidate.json", candidateRecordSchema)
})

var resultSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return compileSchema("comparison.json", comparisonSchema)
})

func compileSchema(name, src string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader([]byte(src))); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// validateAgainst checks raw JSON against a compiled schema.
func validateAgainst(load func() (*jsonschema.Schema, error), data []byte) error {
	schema, err := load()
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
