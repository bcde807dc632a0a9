// Package emitter holds the TypeScript source helpers shared by the entity
// and store emitters.
package emitter

import (
	"strings"
)

// File is one generated artifact. Path is relative to the API output root
// and always uses forward slashes.
type File struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Import is a named import declaration.
type Import struct {
	Names    []string
	From     string
	TypeOnly bool
}

func (i Import) String() string {
	var b strings.Builder
	b.WriteString("import ")
	if i.TypeOnly {
		b.WriteString("type ")
	}
	b.WriteString("{ ")
	b.WriteString(strings.Join(i.Names, ", "))
	b.WriteString(" } from '")
	b.WriteString(i.From)
	b.WriteString("';")
	return b.String()
}

// Imports renders declarations one per line, in order.
func Imports(imports []Import) string {
	lines := make([]string, 0, len(imports))
	for _, imp := range imports {
		lines = append(lines, imp.String())
	}
	return strings.Join(lines, "\n")
}

// DocComment renders a JSDoc block at the given indentation. Single-line text
// stays on one line. Empty text renders nothing.
func DocComment(text, indent string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	if len(lines) == 1 {
		return indent + "/** " + escapeDoc(text) + " */\n"
	}
	var b strings.Builder
	b.WriteString(indent + "/**\n")
	for _, l := range lines {
		l = strings.TrimRight(l, " \t")
		if l == "" {
			b.WriteString(indent + " *\n")
			continue
		}
		b.WriteString(indent + " * " + escapeDoc(l) + "\n")
	}
	b.WriteString(indent + " */\n")
	return b.String()
}

func escapeDoc(s string) string {
	return strings.ReplaceAll(s, "*/", "*\\/")
}

// Quote renders s as a single-quoted string literal.
func Quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`)
	return "'" + r.Replace(s) + "'"
}

// Writer builds indented source text line by line.
type Writer struct {
	b      strings.Builder
	unit   string
	level  int
	indent string
}

// NewWriter returns a Writer that indents by unit per level.
func NewWriter(unit string) *Writer {
	if unit == "" {
		unit = "  "
	}
	return &Writer{unit: unit}
}

// Line writes one line at the current indentation. Embedded newlines are
// split and each piece is indented; empty pieces stay empty.
func (w *Writer) Line(s string) *Writer {
	for _, l := range strings.Split(s, "\n") {
		if l != "" {
			w.b.WriteString(w.indent)
			w.b.WriteString(l)
		}
		w.b.WriteByte('\n')
	}
	return w
}

// Blank writes an empty line.
func (w *Writer) Blank() *Writer {
	w.b.WriteByte('\n')
	return w
}

// Indent runs fn one level deeper.
func (w *Writer) Indent(fn func()) *Writer {
	w.level++
	w.indent = strings.Repeat(w.unit, w.level)
	fn()
	w.level--
	w.indent = strings.Repeat(w.unit, w.level)
	return w
}

// String returns the text written so far without its final newline.
func (w *Writer) String() string {
	return strings.TrimSuffix(w.b.String(), "\n")
}
