package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaCache compiles each tool's declared JSONSchema once and reuses it
// across calls, since compilation allocates a non-trivial amount and
// Validate runs on every dispatch.
var (
	schemaCacheMu sync.Mutex
	schemaCache   = map[string]*jsonschema.Schema{}
)

// compileSchema converts our JSONSchema value into a compiled
// santhosh-tekuri/jsonschema Schema.
func compileSchema(toolName string, s *JSONSchema) (*jsonschema.Schema, error) {
	schemaCacheMu.Lock()
	defer schemaCacheMu.Unlock()
	if cached, ok := schemaCache[toolName]; ok {
		return cached, nil
	}
	if s == nil {
		return nil, nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal schema for %s: %w", toolName, err)
	}
	url := "mem://tools/" + toolName + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource for %s: %w", toolName, err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema for %s: %w", toolName, err)
	}
	schemaCache[toolName] = compiled
	return compiled, nil
}

// CoerceInput converts string-typed argument values into the shapes the
// tool's schema declares. The XML and caret dialects carry every
// parameter as text ("[\"a\",\"b\"]", "42", "true"); the declared schema
// is what says which of those are really arrays, objects, numbers, or
// booleans, so deserialization happens here at the dispatch boundary.
// Values that fail to parse are left as strings for schema validation to
// report.
func CoerceInput(schema *JSONSchema, args map[string]any) map[string]any {
	if schema == nil || schema.Properties == nil {
		return args
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		prop, declared := schema.Properties[k]
		s, isString := v.(string)
		if !declared || !isString || prop.Type == "string" || prop.Type == "" {
			out[k] = v
			continue
		}
		var parsed any
		if err := json.Unmarshal([]byte(s), &parsed); err != nil {
			out[k] = v
			continue
		}
		out[k] = parsed
	}
	return out
}

// ValidateAgainstSchema validates args against a tool's declared input
// schema. A nil schema matches anything (a tool that declares no
// parameters).
func ValidateAgainstSchema(toolName string, schema *JSONSchema, args map[string]any) error {
	compiled, err := compileSchema(toolName, schema)
	if err != nil {
		return err
	}
	if compiled == nil {
		return nil
	}
	// jsonschema validates decoded-JSON shapes (map[string]interface{},
	// []interface{}, float64, ...); round-trip through encoding/json so
	// Go-native values (e.g. a plain int placed by a test) normalize the
	// same way a real tool_use input parsed off the wire would.
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshal args: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("unmarshal args: %w", err)
	}
	if err := compiled.Validate(decoded); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
