package spec

import (
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

// SchemaKind tags the variant held by a SchemaOrRef.
type SchemaKind int

const (
	UnknownSchema SchemaKind = iota
	RefSchema
	StringSchema
	NumberSchema
	IntegerSchema
	BooleanSchema
	ArraySchema
	ObjectSchema
	EnumSchema
	AllOfSchema
	OneOfSchema
	AnyOfSchema
)

var schemaKindNames = map[SchemaKind]string{
	UnknownSchema: "unknown",
	RefSchema:     "ref",
	StringSchema:  "string",
	NumberSchema:  "number",
	IntegerSchema: "integer",
	BooleanSchema: "boolean",
	ArraySchema:   "array",
	ObjectSchema:  "object",
	EnumSchema:    "enum",
	AllOfSchema:   "allOf",
	OneOfSchema:   "oneOf",
	AnyOfSchema:   "anyOf",
}

func (k SchemaKind) String() string {
	if s, ok := schemaKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("SchemaKind(%d)", int(k))
}

// MarshalText renders the kind by name in debug dumps.
func (k SchemaKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// AdditionalMode captures the three meanings of additionalProperties.
type AdditionalMode int

const (
	AdditionalUnset AdditionalMode = iota
	AdditionalAllowed
	AdditionalForbidden
	AdditionalTyped
)

func (m AdditionalMode) MarshalText() ([]byte, error) {
	switch m {
	case AdditionalAllowed:
		return []byte("allowed"), nil
	case AdditionalForbidden:
		return []byte("forbidden"), nil
	case AdditionalTyped:
		return []byte("typed"), nil
	default:
		return []byte("unset"), nil
	}
}

// Property is one declared object property, kept in source order.
type Property struct {
	Name   string       `json:"name"`
	Schema *SchemaOrRef `json:"schema"`
}

// SchemaOrRef is either a named reference or an inline schema fragment.
// Kind selects which fields are meaningful:
//
//	RefSchema                    Ref
//	ArraySchema                  Items (nil when items is absent)
//	ObjectSchema                 Properties, Required, Additional, AdditionalSchema
//	EnumSchema                   Enum
//	AllOf/OneOf/AnyOfSchema      Members
//
// Nullable applies to every inline kind. Type keeps the declared type
// keyword, which the parser uses to classify response shapes.
type SchemaOrRef struct {
	Kind             SchemaKind     `json:"kind"`
	Ref              string         `json:"ref,omitempty"`
	Type             string         `json:"type,omitempty"`
	Format           string         `json:"format,omitempty"`
	Nullable         bool           `json:"nullable,omitempty"`
	Description      string         `json:"description,omitempty"`
	Items            *SchemaOrRef   `json:"items,omitempty"`
	Properties       []Property     `json:"properties,omitempty"`
	Required         []string       `json:"required,omitempty"`
	Additional       AdditionalMode `json:"additional,omitempty"`
	AdditionalSchema *SchemaOrRef   `json:"additionalSchema,omitempty"`
	Enum             []any          `json:"enum,omitempty"`
	Members          []*SchemaOrRef `json:"members,omitempty"`
	Extensions       map[string]any `json:"extensions,omitempty"`
}

// Reference builds a RefSchema.
func Reference(ref string) *SchemaOrRef {
	return &SchemaOrRef{Kind: RefSchema, Ref: ref}
}

// Primitive builds a bare primitive schema such as {type: string}.
func Primitive(typ string) *SchemaOrRef {
	s := &SchemaOrRef{Type: typ}
	switch typ {
	case "string":
		s.Kind = StringSchema
	case "number":
		s.Kind = NumberSchema
	case "integer":
		s.Kind = IntegerSchema
	case "boolean":
		s.Kind = BooleanSchema
	}
	return s
}

// IsRef reports whether s is a named reference.
func (s *SchemaOrRef) IsRef() bool { return s != nil && s.Kind == RefSchema }

// SchemaRefs returns the component schema names referenced anywhere inside s,
// in first-seen order without duplicates. References are not followed.
func (s *SchemaOrRef) SchemaRefs() []string {
	var out []string
	seen := map[string]struct{}{}
	var visit func(*SchemaOrRef)
	visit = func(s *SchemaOrRef) {
		if s == nil {
			return
		}
		if s.IsRef() {
			if name, ok := ExtractSchemaName(s.Ref); ok {
				if _, dup := seen[name]; !dup {
					seen[name] = struct{}{}
					out = append(out, name)
				}
			}
			return
		}
		visit(s.Items)
		for _, p := range s.Properties {
			visit(p.Schema)
		}
		visit(s.AdditionalSchema)
		for _, m := range s.Members {
			visit(m)
		}
	}
	visit(s)
	return out
}

// IsRequired reports whether name appears in the object's required list.
func (s *SchemaOrRef) IsRequired(name string) bool {
	for _, r := range s.Required {
		if r == name {
			return true
		}
	}
	return false
}

// FromSchemaRef converts a kin-openapi schema into the closed model. node is
// the YAML node the schema was decoded from and only supplies property
// order; it may be nil, in which case properties are sorted by name.
// Conversion stops at references, so reference cycles terminate.
func FromSchemaRef(ref *openapi3.SchemaRef, node *yaml.Node) *SchemaOrRef {
	if ref == nil {
		return nil
	}
	if ref.Ref != "" {
		return Reference(ref.Ref)
	}
	return fromSchema(ref.Value, node)
}

func fromSchema(s *openapi3.Schema, node *yaml.Node) *SchemaOrRef {
	if s == nil {
		return &SchemaOrRef{Kind: UnknownSchema}
	}
	out := &SchemaOrRef{
		Type:        declaredType(s),
		Format:      s.Format,
		Nullable:    s.Nullable,
		Description: s.Description,
		Extensions:  s.Extensions,
	}

	switch {
	case len(s.AllOf) > 0:
		out.Kind = AllOfSchema
		out.Members = convertMembers(s.AllOf, mappingValue(node, "allOf"))
	case len(s.OneOf) > 0:
		out.Kind = OneOfSchema
		out.Members = convertMembers(s.OneOf, mappingValue(node, "oneOf"))
	case len(s.AnyOf) > 0:
		out.Kind = AnyOfSchema
		out.Members = convertMembers(s.AnyOf, mappingValue(node, "anyOf"))
	case len(s.Enum) > 0:
		out.Kind = EnumSchema
		out.Enum = append([]any(nil), s.Enum...)
	default:
		switch out.Type {
		case "string":
			out.Kind = StringSchema
		case "number":
			out.Kind = NumberSchema
		case "integer":
			out.Kind = IntegerSchema
		case "boolean":
			out.Kind = BooleanSchema
		case "array":
			out.Kind = ArraySchema
			if s.Items != nil {
				out.Items = FromSchemaRef(s.Items, mappingValue(node, "items"))
			}
		case "object":
			out.Kind = ObjectSchema
		default:
			if hasObjectShape(s, node) {
				out.Kind = ObjectSchema
			}
		}
	}

	if out.Kind == ObjectSchema {
		fillObject(out, s, node)
	}
	return out
}

func fillObject(out *SchemaOrRef, s *openapi3.Schema, node *yaml.Node) {
	propsNode := mappingValue(node, "properties")
	for _, name := range orderedKeys(s.Properties, propsNode) {
		out.Properties = append(out.Properties, Property{
			Name:   name,
			Schema: FromSchemaRef(s.Properties[name], mappingValue(propsNode, name)),
		})
	}
	out.Required = append([]string(nil), s.Required...)

	ap := s.AdditionalProperties
	switch {
	case ap.Schema != nil:
		out.Additional = AdditionalTyped
		out.AdditionalSchema = FromSchemaRef(ap.Schema, mappingValue(node, "additionalProperties"))
	case ap.Has != nil && *ap.Has:
		out.Additional = AdditionalAllowed
	case ap.Has != nil:
		out.Additional = AdditionalForbidden
	}
}

func convertMembers(refs openapi3.SchemaRefs, node *yaml.Node) []*SchemaOrRef {
	members := make([]*SchemaOrRef, 0, len(refs))
	for i, r := range refs {
		if m := FromSchemaRef(r, sequenceItem(node, i)); m != nil {
			members = append(members, m)
		}
	}
	return members
}

func declaredType(s *openapi3.Schema) string {
	if s.Type == nil {
		return ""
	}
	for _, t := range s.Type.Slice() {
		if t != openapi3.TypeNull {
			return t
		}
	}
	return ""
}

func hasObjectShape(s *openapi3.Schema, node *yaml.Node) bool {
	if len(s.Properties) > 0 {
		return true
	}
	if s.AdditionalProperties.Has != nil || s.AdditionalProperties.Schema != nil {
		return true
	}
	return mappingValue(node, "properties") != nil || mappingValue(node, "additionalProperties") != nil
}
