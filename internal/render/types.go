package render

import (
	"strconv"
	"strings"

	"github.com/mark3labs/ngrx-openapi-gen/internal/emitter"
	"github.com/mark3labs/ngrx-openapi-gen/internal/spec"
)

// TypeRenderer renders static TypeScript type expressions.
type TypeRenderer struct {
	w walker
}

var _ Renderer = (*TypeRenderer)(nil)

// NewTypeRenderer returns a TypeRenderer using cfg.
func NewTypeRenderer(cfg Config) *TypeRenderer {
	cfg = cfg.normalized()
	return &TypeRenderer{w: walker{cfg: cfg, syn: typeSyntax{cfg: cfg}}}
}

// Render renders s at indentation level zero. A nil schema is unknown.
func (r *TypeRenderer) Render(s *spec.SchemaOrRef) string { return r.w.render(s, 0) }

// RenderIndented renders s as if it started at the given indentation level.
func (r *TypeRenderer) RenderIndented(s *spec.SchemaOrRef, indent int) string {
	return r.w.render(s, indent)
}

type typeSyntax struct{ cfg Config }

func (t typeSyntax) ref(name string) string { return t.cfg.ModelName(name) }
func (typeSyntax) unknown() string { return "unknown" }
func (typeSyntax) str() string { return "string" }
func (typeSyntax) num() string { return "number" }
func (typeSyntax) boolean() string { return "boolean" }
func (typeSyntax) array(elem string) string { return "Array<" + elem + ">" }
func (typeSyntax) record(value string) string { return "Record<string, " + value + ">" }
func (typeSyntax) sealed() string { return "{}" }
func (typeSyntax) nullable(expr string) string { return expr + " | null" }
func (typeSyntax) intersection(m []string) string {
	grouped := make([]string, len(m))
	for i, expr := range m {
		grouped[i] = groupUnion(expr)
	}
	return strings.Join(grouped, " & ")
}
func (typeSyntax) union(m []string) string { return strings.Join(m, " | ") }

func (typeSyntax) object(fields []field, indent, baseIndent string) string {
	var b strings.Builder
	b.WriteString("{\n")
	for _, f := range fields {
		b.WriteString(indent)
		b.WriteString(f.name)
		if !f.required {
			b.WriteString("?")
		}
		b.WriteString(": ")
		b.WriteString(f.expr)
		b.WriteString(";\n")
	}
	b.WriteString(baseIndent)
	b.WriteString("}")
	return b.String()
}

func (typeSyntax) enum(values []any) string {
	lits := make([]string, 0, len(values))
	for _, v := range values {
		lits = append(lits, typeLiteral(v))
	}
	return strings.Join(lits, " | ")
}

func typeLiteral(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return emitter.Quote(val)
	case bool:
		return strconv.FormatBool(val)
	default:
		if n, ok := number(val); ok {
			return n
		}
		return "unknown"
	}
}

// number formats JSON numbers the way JavaScript prints them.
func number(v any) (string, bool) {
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32), true
	case int:
		return strconv.Itoa(n), true
	case int64:
		return strconv.FormatInt(n, 10), true
	case uint64:
		return strconv.FormatUint(n, 10), true
	default:
		return "", false
	}
}

// groupUnion parenthesizes expr when it is a union at its top level, since
// & binds tighter than | in TypeScript.
func groupUnion(expr string) string {
	depth := 0
	inString := false
	for i := 0; i < len(expr); i++ {
		c := expr[i]
		if inString {
			switch c {
			case '\\':
				i++
			case '\'':
				inString = false
			}
			continue
		}
		switch c {
		case '\'':
			inString = true
		case '(', '{', '[', '<':
			depth++
		case ')', '}', ']', '>':
			depth--
		case '|':
			if depth == 0 {
				return "(" + expr + ")"
			}
		}
	}
	return expr
}
