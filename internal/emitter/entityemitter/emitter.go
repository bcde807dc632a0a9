// Package entityemitter renders one TypeScript model file per entity.
package entityemitter

import (
	"fmt"
	"strings"

	"github.com/mark3labs/ngrx-openapi-gen/internal/emitter"
	"github.com/mark3labs/ngrx-openapi-gen/internal/naming"
	"github.com/mark3labs/ngrx-openapi-gen/internal/render"
	genspec "github.com/mark3labs/ngrx-openapi-gen/internal/spec"
)

// Location is where an entity's model file lives.
type Location struct {
	DomainPath string
	EntitySlug string
}

// Index maps entity names to model file locations across every domain. It
// must be complete before any entity or store file is rendered.
type Index map[string]Location

// BuildIndex records every entity of every domain. When two domains declare
// the same entity the later domain wins.
func BuildIndex(domains []genspec.DomainSpec) Index {
	idx := Index{}
	for _, d := range domains {
		domainPath := naming.ToKebabCase(d.Name)
		for _, e := range d.Entities {
			idx[e.Name] = Location{DomainPath: domainPath, EntitySlug: naming.ToKebabCase(e.Name)}
		}
	}
	return idx
}

// ImportPath returns the module specifier that reaches target's model file
// from a model file in fromDomain's entities folder.
func ImportPath(fromDomain string, target Location) string {
	if fromDomain == target.DomainPath {
		return "./" + target.EntitySlug + ".model"
	}
	depth := len(strings.Split(fromDomain+"/entities", "/"))
	return strings.Repeat("../", depth) + target.DomainPath + "/entities/" + target.EntitySlug + ".model"
}

// FilePath returns the model file path of an entity relative to the API root.
func FilePath(domainPath, entityName string) string {
	return domainPath + "/entities/" + naming.ToKebabCase(entityName) + ".model.ts"
}

// PrimaryKeyConst returns the name of an entity's primary-key constant.
func PrimaryKeyConst(entityName string) string {
	return naming.ToConstantCase(entityName) + "_PRIMARY_KEY"
}

// Options controls model rendering.
type Options struct {
	Render render.Config
	// Zod adds a zod schema constant next to each interface.
	Zod bool
}

// Emitter renders entity model files.
type Emitter struct {
	cfg        render.Config
	zod        bool
	types      *render.TypeRenderer
	validators *render.ValidatorRenderer
}

// New returns an Emitter for opts.
func New(opts Options) *Emitter {
	cfg := opts.Render
	if cfg.IndentString == "" {
		cfg.IndentString = "  "
	}
	return &Emitter{
		cfg:        cfg,
		zod:        opts.Zod,
		types:      render.NewTypeRenderer(cfg),
		validators: render.NewValidatorRenderer(cfg),
	}
}

// EmitDomain renders every entity of d.
func (e *Emitter) EmitDomain(d genspec.DomainSpec, idx Index) []emitter.File {
	domainPath := naming.ToKebabCase(d.Name)
	files := make([]emitter.File, 0, len(d.Entities))
	for _, ent := range d.Entities {
		files = append(files, e.Emit(ent, domainPath, idx))
	}
	return files
}

// Emit renders a single entity living in domainPath.
func (e *Emitter) Emit(ent genspec.EntitySpec, domainPath string, idx Index) emitter.File {
	var sections []string

	refs := e.referencedEntities(ent, idx)
	var imports []emitter.Import
	for _, name := range refs {
		imports = append(imports, emitter.Import{
			Names:    []string{e.cfg.ModelName(name)},
			From:     ImportPath(domainPath, idx[name]),
			TypeOnly: true,
		})
	}
	if e.zod {
		imports = append(imports, emitter.Import{Names: []string{"z"}, From: "zod"})
		for _, name := range refs {
			imports = append(imports, emitter.Import{
				Names: []string{e.cfg.SchemaConstName(name)},
				From:  ImportPath(domainPath, idx[name]),
			})
		}
	}
	if len(imports) > 0 {
		sections = append(sections, emitter.Imports(imports))
	}

	sections = append(sections, e.renderInterface(ent))
	if e.zod {
		sections = append(sections, e.renderSchemaConst(ent))
	}
	if ent.PrimaryKey != "" {
		sections = append(sections, fmt.Sprintf("export const %s = %s as const;", PrimaryKeyConst(ent.Name), emitter.Quote(ent.PrimaryKey)))
	}
	sections = append(sections, "// Schema reference: "+ent.SchemaRef)

	return emitter.File{
		Path:    FilePath(domainPath, ent.Name),
		Content: strings.Join(sections, "\n\n") + "\n",
	}
}

// referencedEntities lists the indexed entities the properties of ent refer
// to, excluding ent itself.
func (e *Emitter) referencedEntities(ent genspec.EntitySpec, idx Index) []string {
	self := e.cfg.ModelName(ent.Name)
	var out []string
	seen := map[string]struct{}{}
	for _, p := range ent.Properties {
		for _, name := range render.CollectModelRefs(p.Schema) {
			if e.cfg.ModelName(name) == self {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			if _, ok := idx[name]; !ok {
				continue
			}
			out = append(out, name)
		}
	}
	return out
}

func (e *Emitter) renderInterface(ent genspec.EntitySpec) string {
	name := e.cfg.ModelName(ent.Name)
	indent := e.cfg.IndentString

	if len(ent.Properties) == 0 {
		return "export interface " + name + " {\n" + indent + "[key: string]: unknown;\n}"
	}

	var b strings.Builder
	doc := "Auto-generated model for " + ent.Name + " entity."
	if ent.Description != "" {
		doc = ent.Description + "\n\n" + doc
	}
	b.WriteString(emitter.DocComment(doc, ""))
	b.WriteString("export interface " + name + " {\n")
	for _, p := range ent.Properties {
		b.WriteString(emitter.DocComment(p.Description, indent))
		b.WriteString(indent)
		b.WriteString(naming.FormatPropertyName(p.Name))
		if p.Optional {
			b.WriteString("?")
		}
		b.WriteString(": ")
		b.WriteString(e.types.RenderIndented(p.Schema, 1))
		b.WriteString(";\n")
	}
	b.WriteString("}")
	return b.String()
}

func (e *Emitter) renderSchemaConst(ent genspec.EntitySpec) string {
	obj := &genspec.SchemaOrRef{Kind: genspec.ObjectSchema, Type: "object"}
	for _, p := range ent.Properties {
		obj.Properties = append(obj.Properties, genspec.Property{Name: p.Name, Schema: p.Schema})
		if !p.Optional {
			obj.Required = append(obj.Required, p.Name)
		}
	}
	// The annotation lets a schema refer to itself through z.lazy under strict mode.
	return "export const " + e.cfg.SchemaConstName(ent.Name) + ": z.ZodType<" + e.cfg.ModelName(ent.Name) + "> = " + e.validators.Render(obj) + ";"
}
