package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

const legacySchemaURL = "legacy-todos.schema.json"

const legacySchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["title"],
    "properties": {
      "id": {"type": "string"},
      "title": {"type": "string"},
      "recurrenceTag": {"type": ["string", "null"]},
      "note": {"type": "string"},
      "completed": {"type": "boolean"},
      "dueDate": {"type": ["string", "null"]},
      "createdAt": {"type": "string"},
      "updatedAt": {"type": "string"}
    }
  }
}`

var (
	legacySchemaOnce     sync.Once
	legacySchemaCompiled *jsonschema.Schema
	legacySchemaErr      error
)

func compiledLegacySchema() (*jsonschema.Schema, error) {
	legacySchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(legacySchemaURL, strings.NewReader(legacySchema)); err != nil {
			legacySchemaErr = fmt.Errorf("add legacy schema: %w", err)
			return
		}
		legacySchemaCompiled, legacySchemaErr = compiler.Compile(legacySchemaURL)
	})
	return legacySchemaCompiled, legacySchemaErr
}

// DecodeLegacyPayload validates an exported todo array against the legacy
// schema and decodes it. Shape problems are reported as ErrValidation with
// the offending location.
func DecodeLegacyPayload(data []byte) ([]LegacyTodo, error) {
	schema, err := compiledLegacySchema()
	if err != nil {
		return nil, err
	}

	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: legacy payload is not valid JSON: %v", ErrValidation, err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, legacySchemaError(err)
	}

	var payload []LegacyTodo
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode legacy payload: %v", ErrValidation, err)
	}
	return payload, nil
}

func legacySchemaError(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	leaf := firstLeafCause(ve)
	location := strings.TrimPrefix(leaf.InstanceLocation, "/")
	if location == "" {
		location = "(root)"
	}
	return fmt.Errorf("%w: legacy payload at %s: %s", ErrValidation, location, leaf.Message)
}

func firstLeafCause(ve *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return ve
}
