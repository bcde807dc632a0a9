package render

import (
	"strconv"
	"strings"

	"github.com/mark3labs/ngrx-openapi-gen/internal/emitter"
	"github.com/mark3labs/ngrx-openapi-gen/internal/spec"
)

// ValidatorRenderer renders zod validator expressions. References become
// z.lazy indirections to the target's schema constant, so entities may
// reference each other in any order and in cycles.
type ValidatorRenderer struct {
	w walker
}

var _ Renderer = (*ValidatorRenderer)(nil)

func NewValidatorRenderer(cfg Config) *ValidatorRenderer {
	cfg = cfg.normalized()
	return &ValidatorRenderer{w: walker{cfg: cfg, syn: zodSyntax{cfg: cfg}}}
}

func (r *ValidatorRenderer) Render(s *spec.SchemaOrRef) string { return r.w.render(s, 0) }

func (r *ValidatorRenderer) RenderIndented(s *spec.SchemaOrRef, indent int) string {
	return r.w.render(s, indent)
}

type zodSyntax struct{ cfg Config }

func (z zodSyntax) ref(name string) string {
	return "z.lazy(() => " + z.cfg.SchemaConstName(name) + ")"
}

func (zodSyntax) unknown() string { return "z.unknown()" }
func (zodSyntax) str() string { return "z.string()" }
func (zodSyntax) num() string { return "z.number()" }
func (zodSyntax) boolean() string { return "z.boolean()" }
func (zodSyntax) array(elem string) string { return "z.array(" + elem + ")" }
func (zodSyntax) sealed() string { return "z.object({})" }
func (zodSyntax) nullable(expr string) string { return expr + ".nullable()" }

func (zodSyntax) record(value string) string {
	return "z.record(z.string(), " + value + ")"
}

// intersection folds left because z.intersection takes exactly two schemas.
func (zodSyntax) intersection(m []string) string {
	out := m[0]
	for _, next := range m[1:] {
		out = "z.intersection(" + out + ", " + next + ")"
	}
	return out
}

func (zodSyntax) union(m []string) string {
	return "z.union([" + strings.Join(m, ", ") + "])"
}

func (zodSyntax) object(fields []field, indent, baseIndent string) string {
	var b strings.Builder
	b.WriteString("z.object({\n")
	for _, f := range fields {
		b.WriteString(indent)
		b.WriteString(f.name)
		b.WriteString(": ")
		b.WriteString(f.expr)
		if !f.required {
			b.WriteString(".optional()")
		}
		b.WriteString(",\n")
	}
	b.WriteString(baseIndent)
	b.WriteString("})")
	return b.String()
}

// enum uses z.enum when every value is a string and a union of literals
// otherwise.
func (zodSyntax) enum(values []any) string {
	allStrings := true
	for _, v := range values {
		if _, ok := v.(string); !ok {
			allStrings = false
			break
		}
	}
	if allStrings {
		quoted := make([]string, 0, len(values))
		for _, v := range values {
			quoted = append(quoted, emitter.Quote(v.(string)))
		}
		return "z.enum([" + strings.Join(quoted, ", ") + "])"
	}

	lits := make([]string, 0, len(values))
	for _, v := range values {
		lits = append(lits, zodLiteral(v))
	}
	if len(lits) == 1 {
		return lits[0]
	}
	return "z.union([" + strings.Join(lits, ", ") + "])"
}

func zodLiteral(v any) string {
	switch val := v.(type) {
	case nil:
		return "z.null()"
	case string:
		return "z.literal(" + emitter.Quote(val) + ")"
	case bool:
		return "z.literal(" + strconv.FormatBool(val) + ")"
	default:
		if n, ok := number(val); ok {
			return "z.literal(" + n + ")"
		}
		return "z.unknown()"
	}
}
