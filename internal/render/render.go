// Package render turns schema fragments into TypeScript source expressions.
//
// The type renderer and the zod validator renderer share one dispatch over
// spec.SchemaKind and differ only in the syntax they emit, so the two
// renderings of a schema always have the same structure.
package render

import (
	"strings"

	"github.com/mark3labs/ngrx-openapi-gen/internal/naming"
	"github.com/mark3labs/ngrx-openapi-gen/internal/spec"
)

// DefaultModelSuffix is appended to every generated model type name.
const DefaultModelSuffix = "Model"

// Config is threaded explicitly through every renderer and builder.
type Config struct {
	// ModelSuffix is appended to referenced type names (Flight -> FlightModel).
	ModelSuffix string
	// IndentString is one level of indentation.
	IndentString string
}

// DefaultConfig returns the "Model" suffix and two-space indentation.
func DefaultConfig() Config {
	return Config{ModelSuffix: DefaultModelSuffix, IndentString: "  "}
}

func (c Config) normalized() Config {
	if c.IndentString == "" {
		c.IndentString = "  "
	}
	return c
}

// Renderer renders a schema fragment to a source expression. Indent is the
// nesting level of the expression's first line and only affects layout.
type Renderer interface {
	Render(s *spec.SchemaOrRef) string
	RenderIndented(s *spec.SchemaOrRef, indent int) string
}

// ModelName returns the generated type name for a component schema.
func (c Config) ModelName(schemaName string) string {
	return naming.ToPascalCase(schemaName) + c.ModelSuffix
}

// SchemaConstName returns the validator constant name for a component schema.
func (c Config) SchemaConstName(schemaName string) string {
	return c.ModelName(schemaName) + "Schema"
}

type field struct {
	name     string
	expr     string
	required bool
}

// syntax is the target-specific half of a renderer.
type syntax interface {
	ref(schemaName string) string
	unknown() string
	str() string
	num() string
	boolean() string
	array(elem string) string
	record(value string) string
	sealed() string
	object(fields []field, indent, baseIndent string) string
	intersection(members []string) string
	union(members []string) string
	enum(values []any) string
	nullable(expr string) string
}

type walker struct {
	cfg Config
	syn syntax
}

func (w walker) render(s *spec.SchemaOrRef, indent int) string {
	if s == nil {
		return w.syn.unknown()
	}

	var out string
	switch s.Kind {
	case spec.RefSchema:
		name, ok := spec.ExtractSchemaName(s.Ref)
		if !ok {
			return w.syn.unknown()
		}
		return w.syn.ref(name)
	case spec.AllOfSchema:
		out = w.combine(s.Members, indent, w.syn.intersection)
	case spec.OneOfSchema, spec.AnyOfSchema:
		out = w.combine(s.Members, indent, w.syn.union)
	case spec.EnumSchema:
		if len(s.Enum) == 0 {
			out = w.syn.unknown()
		} else {
			out = w.syn.enum(s.Enum)
		}
	case spec.StringSchema:
		out = w.syn.str()
	case spec.NumberSchema, spec.IntegerSchema:
		out = w.syn.num()
	case spec.BooleanSchema:
		out = w.syn.boolean()
	case spec.ArraySchema:
		if s.Items == nil {
			out = w.syn.array(w.syn.unknown())
		} else {
			out = w.syn.array(w.render(s.Items, indent))
		}
	case spec.ObjectSchema:
		out = w.object(s, indent)
	case spec.UnknownSchema:
		out = w.syn.unknown()
	default:
		out = w.syn.unknown()
	}

	if s.Nullable {
		return w.syn.nullable(out)
	}
	return out
}

func (w walker) combine(members []*spec.SchemaOrRef, indent int, join func([]string) string) string {
	rendered := make([]string, 0, len(members))
	for _, m := range members {
		rendered = append(rendered, w.render(m, indent))
	}
	switch len(rendered) {
	case 0:
		return w.syn.unknown()
	case 1:
		return rendered[0]
	default:
		return join(rendered)
	}
}

func (w walker) object(s *spec.SchemaOrRef, indent int) string {
	if len(s.Properties) == 0 {
		switch s.Additional {
		case spec.AdditionalForbidden:
			return w.syn.sealed()
		case spec.AdditionalTyped:
			return w.syn.record(w.render(s.AdditionalSchema, indent))
		default:
			return w.syn.record(w.syn.unknown())
		}
	}

	fields := make([]field, 0, len(s.Properties))
	for _, p := range s.Properties {
		fields = append(fields, field{
			name:     naming.FormatPropertyName(p.Name),
			expr:     w.render(p.Schema, indent+1),
			required: s.IsRequired(p.Name),
		})
	}
	return w.syn.object(fields,
		strings.Repeat(w.cfg.IndentString, indent+1),
		strings.Repeat(w.cfg.IndentString, indent))
}
