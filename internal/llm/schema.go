package llm

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

func newReflector() *jsonschema.Reflector {
	return &jsonschema.Reflector{DoNotReference: true}
}

// SchemaFor reflects the JSON Schema of T. Field names follow json tags;
// enums and descriptions come from jsonschema tags.
func SchemaFor[T any](name, description string) (Schema, error) {
	var zero T
	s := newReflector().Reflect(&zero)
	return toSchema(name, description, s)
}

// KeyedSchema describes an object with exactly the given keys, each holding a
// value shaped like T. It is used when the property names are only known at
// runtime, e.g. one verdict per prize slug.
func KeyedSchema[T any](name, description string, keys []string) (Schema, error) {
	var zero T
	item := newReflector().Reflect(&zero)
	item.Version = ""
	item.ID = ""

	props := orderedmap.New[string, *jsonschema.Schema]()
	for _, k := range keys {
		props.Set(k, item)
	}
	s := &jsonschema.Schema{
		Type:                 "object",
		Properties:           props,
		Required:             append([]string(nil), keys...),
		AdditionalProperties: jsonschema.FalseSchema,
	}
	return toSchema(name, description, s)
}

func toSchema(name, description string, s *jsonschema.Schema) (Schema, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return Schema{}, fmt.Errorf("marshal schema %s: %w", name, err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Schema{}, fmt.Errorf("decode schema %s: %w", name, err)
	}
	delete(m, "$schema")
	delete(m, "$id")
	return Schema{Name: name, Description: description, JSON: m}, nil
}

// properties returns the schema's properties and required list, the shape
// tool-use APIs take for their input schema.
func (s Schema) properties() (any, []string) {
	var required []string
	switch r := s.JSON["required"].(type) {
	case []any:
		for _, v := range r {
			if str, ok := v.(string); ok {
				required = append(required, str)
			}
		}
	case []string:
		required = r
	}
	return s.JSON["properties"], required
}

// String renders the schema as indented JSON for embedding in prompts.
func (s Schema) String() string {
	data, err := json.MarshalIndent(s.JSON, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
