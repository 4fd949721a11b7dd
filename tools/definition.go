package tools

import (
	"bytes"
	"encoding/json"
	"fmt"

	schemagen "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/KamdynS/claimreview/llm"
)

// Definition is a function the model may call. Parameters is the schema
// advertised to the provider; arguments are checked against a separate,
// more lenient validation schema reflected from the same Go type.
type Definition struct {
	name        string
	description string
	params      map[string]any
	validator   *jsonschema.Schema
}

// Option adjusts the advertised parameter schema only.
type Option func(schema map[string]any)

// Require marks top-level properties as required in the advertised schema.
func Require(fields ...string) Option {
	return func(schema map[string]any) {
		req, _ := schema["required"].([]any)
		for _, f := range fields {
			req = append(req, f)
		}
		schema["required"] = req
	}
}

// Enum constrains a top-level string property in the advertised schema.
func Enum(field string, values ...string) Option {
	return func(schema map[string]any) {
		props, _ := schema["properties"].(map[string]any)
		prop, _ := props[field].(map[string]any)
		if prop == nil {
			return
		}
		enum := make([]any, len(values))
		for i, v := range values {
			enum[i] = v
		}
		prop["enum"] = enum
	}
}

// NewDefinition reflects args (a struct value) into the advertised and
// validation schemas.
func NewDefinition(name, description string, args any, opts ...Option) (*Definition, error) {
	if name == "" {
		return nil, fmt.Errorf("tool name cannot be empty")
	}
	advertised, err := schemaMap((&schemagen.Reflector{AllowAdditionalProperties: false, DoNotReference: true, Anonymous: true}).Reflect(args))
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", name, err)
	}
	delete(advertised, "$schema")
	delete(advertised, "$id")
	for _, opt := range opts {
		opt(advertised)
	}

	raw, err := json.Marshal((&schemagen.Reflector{AllowAdditionalProperties: true, DoNotReference: true, Anonymous: true}).Reflect(args))
	if err != nil {
		return nil, fmt.Errorf("tool %s: marshal schema: %w", name, err)
	}
	compiler := jsonschema.NewCompiler()
	url := name + ".json"
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource for %q: %w", name, err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema for %q: %w", name, err)
	}
	return &Definition{name: name, description: description, params: advertised, validator: compiled}, nil
}

func schemaMap(s *schemagen.Schema) (map[string]any, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	return out, nil
}

func (d *Definition) Name() string           { return d.name }
func (d *Definition) Description() string    { return d.description }
func (d *Definition) Schema() map[string]any { return d.params }

// Validate checks a decoded argument value against the validation schema.
func (d *Definition) Validate(v any) error {
	if err := d.validator.Validate(v); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

// ToLLMTool converts a Definition into an llm.Tool.
func (d *Definition) ToLLMTool() llm.Tool {
	return llm.Tool{Type: "function", Function: llm.ToolFunction{Name: d.name, Description: d.description, Parameters: d.params}}
}

// FromRegistry builds llm.Tool definitions for the named tools, or for every
// registered tool when no names are given. Unknown names are skipped.
func FromRegistry(reg Registry, names ...string) []llm.Tool {
	if reg == nil {
		return nil
	}
	if len(names) == 0 {
		names = reg.List()
	}
	out := make([]llm.Tool, 0, len(names))
	for _, n := range names {
		if t, ok := reg.Get(n); ok {
			out = append(out, llm.Tool{Type: "function", Function: llm.ToolFunction{Name: t.Name(), Description: t.Description(), Parameters: t.Schema()}})
		}
	}
	return out
}
