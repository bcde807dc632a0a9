package spec

import (
	"regexp"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

var (
	schemaRefRe    = regexp.MustCompile(`#/components/schemas/(.+)$`)
	parameterRefRe = regexp.MustCompile(`#/components/parameters/(.+)$`)
)

// ExtractSchemaName returns the component name of a schema reference.
func ExtractSchemaName(ref string) (string, bool) {
	m := schemaRefRe.FindStringSubmatch(ref)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ExtractParameterName returns the component name of a parameter reference.
func ExtractParameterName(ref string) (string, bool) {
	m := parameterRefRe.FindStringSubmatch(ref)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// SchemaRef returns the canonical reference string for a component schema.
func SchemaRef(name string) string {
	return "#/components/schemas/" + name
}

// SchemaResolver looks up component schemas by name. Lookups that miss return
// nil or the empty string; they never fail.
type SchemaResolver struct {
	schemas map[string]*SchemaOrRef
	names   []string
}

// NewSchemaResolver converts every component schema once. root is the source
// YAML tree and may be nil.
func NewSchemaResolver(doc *openapi3.T, root *yaml.Node) *SchemaResolver {
	r := &SchemaResolver{schemas: map[string]*SchemaOrRef{}}
	if doc == nil || doc.Components == nil {
		return r
	}
	schemasNode := nodePath(root, "components", "schemas")
	for _, name := range orderedKeys(doc.Components.Schemas, schemasNode) {
		if s := FromSchemaRef(doc.Components.Schemas[name], mappingValue(schemasNode, name)); s != nil {
			r.schemas[name] = s
			r.names = append(r.names, name)
		}
	}
	return r
}

// ResolveRef returns the inline schema a reference names. References to
// references are not followed.
func (r *SchemaResolver) ResolveRef(ref string) *SchemaOrRef {
	name, ok := ExtractSchemaName(ref)
	if !ok {
		return nil
	}
	return r.SchemaObject(name)
}

// SchemaObject returns the named component schema when it is inline.
func (r *SchemaResolver) SchemaObject(name string) *SchemaOrRef {
	s, ok := r.schemas[name]
	if !ok || s.IsRef() {
		return nil
	}
	return s
}

// SchemaNames returns the component schema names in sorted order.
func (r *SchemaResolver) SchemaNames() []string {
	out := append([]string(nil), r.names...)
	sort.Strings(out)
	return out
}

// BuildPropertySpecs flattens an object schema into property descriptors in
// declaration order. A property that is a bare reference borrows the
// description of its target.
func (r *SchemaResolver) BuildPropertySpecs(s *SchemaOrRef) []PropertySpec {
	if s == nil {
		return nil
	}
	props := make([]PropertySpec, 0, len(s.Properties))
	for _, p := range s.Properties {
		desc := ""
		if p.Schema.IsRef() {
			if target := r.ResolveRef(p.Schema.Ref); target != nil {
				desc = target.Description
			}
		} else if p.Schema != nil {
			desc = p.Schema.Description
		}
		props = append(props, PropertySpec{
			Name:        p.Name,
			Schema:      p.Schema,
			Optional:    !s.IsRequired(p.Name),
			Description: desc,
		})
	}
	return props
}

// InferPrimaryKey picks the identity field of a schema, checking in order:
// a schema-level x-primary-key naming the field, a property flagged with
// x-primary-key, a property called "id", and a property called
// "<schemaName>Id". Name comparisons ignore case.
func (r *SchemaResolver) InferPrimaryKey(schemaName string) string {
	s := r.SchemaObject(schemaName)
	if s == nil {
		return ""
	}
	if v, ok := s.Extensions["x-primary-key"].(string); ok {
		return v
	}
	for _, p := range s.Properties {
		if p.Schema == nil || p.Schema.IsRef() {
			continue
		}
		if truthy(p.Schema.Extensions["x-primary-key"]) {
			return p.Name
		}
	}
	for _, p := range s.Properties {
		if strings.EqualFold(p.Name, "id") {
			return p.Name
		}
	}
	for _, p := range s.Properties {
		if strings.EqualFold(p.Name, schemaName+"id") {
			return p.Name
		}
	}
	return ""
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case float64:
		return val != 0
	case int:
		return val != 0
	default:
		return true
	}
}
