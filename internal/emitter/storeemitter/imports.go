package storeemitter

import (
	"sort"
	"strings"

	"github.com/mark3labs/ngrx-openapi-gen/internal/emitter"
	"github.com/mark3labs/ngrx-openapi-gen/internal/emitter/entityemitter"
	"github.com/mark3labs/ngrx-openapi-gen/internal/naming"
	"github.com/mark3labs/ngrx-openapi-gen/internal/render"
	genspec "github.com/mark3labs/ngrx-openapi-gen/internal/spec"
)

const tokenModule = "../../api-base-path.token"

func (e *Emitter) imports(p *plan, idx entityemitter.Index) []emitter.Import {
	imports := []emitter.Import{{Names: []string{"inject"}, From: "@angular/core"}}
	if p.hasResources() {
		imports = append(imports, emitter.Import{Names: []string{"httpResource"}, From: "@angular/common/http"})
	}
	if e.opts.Zod {
		imports = append(imports, emitter.Import{Names: []string{"z"}, From: "zod"})
	}

	signals := []string{"signalStore", "withProps"}
	if p.hasMethods() {
		signals = append(signals, "patchState", "withMethods")
	}
	if p.hasState() {
		signals = append(signals, "withState")
	}
	sort.Strings(signals)
	imports = append(imports, emitter.Import{Names: signals, From: "@ngrx/signals"})

	var toolkit []string
	if p.hasResources() {
		toolkit = append(toolkit, "withResource")
	}
	if p.hasMutations() {
		toolkit = append(toolkit, "withMutations", "httpMutation")
	}
	if len(toolkit) > 0 {
		sort.Strings(toolkit)
		imports = append(imports, emitter.Import{Names: toolkit, From: "@angular-architects/ngrx-toolkit"})
	}

	imports = append(imports, emitter.Import{Names: []string{e.opts.BasePathToken}, From: tokenModule})

	domainPath := naming.ToKebabCase(p.domain.Name)
	local := map[string]struct{}{}
	for _, ent := range p.domain.Entities {
		local[e.cfg.ModelName(ent.Name)] = struct{}{}
		imports = append(imports, e.modelImports(ent.Name, "../entities/"+naming.ToKebabCase(ent.Name)+".model")...)
	}
	for _, name := range e.operationRefs(p) {
		if _, ok := local[e.cfg.ModelName(name)]; ok {
			continue
		}
		local[e.cfg.ModelName(name)] = struct{}{}
		imports = append(imports, e.modelImports(name, modelModule(domainPath, name, idx))...)
	}
	return imports
}

// modelImports imports a model type and, in zod mode, its validator.
func (e *Emitter) modelImports(name, from string) []emitter.Import {
	typeImport := emitter.Import{Names: []string{e.cfg.ModelName(name)}, From: from, TypeOnly: true}
	if !e.opts.Zod {
		return []emitter.Import{typeImport}
	}
	return []emitter.Import{{Names: []string{e.cfg.SchemaConstName(name)}, From: from}, typeImport}
}

// modelModule locates a model file from a store in domainPath. Models missing
// from the index are assumed to live next to the domain's own entities.
func modelModule(domainPath, name string, idx entityemitter.Index) string {
	loc, ok := idx[name]
	if !ok || loc.DomainPath == domainPath {
		slug := naming.ToKebabCase(name)
		if ok {
			slug = loc.EntitySlug
		}
		return "../entities/" + slug + ".model"
	}
	return "../../" + loc.DomainPath + "/entities/" + loc.EntitySlug + ".model"
}

// operationRefs lists component schemas named by any parameter, request or
// response schema the store renders.
func (e *Emitter) operationRefs(p *plan) []string {
	var out []string
	seen := map[string]struct{}{}
	add := func(s *genspec.SchemaOrRef) {
		for _, name := range render.CollectModelRefs(s) {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	for _, r := range p.resources {
		for _, q := range r.op.QueryParams {
			add(q.Schema)
		}
		if r.op.Entity == nil {
			add(r.op.ResponseSchema)
		}
	}
	for _, s := range p.selections {
		if len(s.op.PathParams) > 0 {
			add(s.op.PathParams[0].Schema)
		}
	}
	for _, op := range p.mutations {
		for _, q := range op.PathParams {
			add(q.Schema)
		}
		add(op.RequestBody)
		add(op.ResponseSchema)
	}
	return out
}

// typeAliases declares one params type per bodiless mutation with path
// params. Aliases are deduplicated by name.
func (e *Emitter) typeAliases(ops []genspec.OperationSpec) string {
	var aliases []string
	seen := map[string]struct{}{}
	for _, op := range ops {
		if len(op.PathParams) == 0 || op.Method.HasBody() {
			continue
		}
		name := paramsTypeName(op)
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		w := emitter.NewWriter(e.cfg.IndentString)
		w.Line("export type " + name + " = {")
		w.Indent(func() {
			for _, f := range e.pathFields(op.PathParams) {
				w.Line(f + ";")
			}
		})
		w.Line("};")
		aliases = append(aliases, w.String())
	}
	return strings.Join(aliases, "\n\n")
}

// paramsTypeName names the path-params alias of a mutation.
// Example: DELETE /flights/{id} on Flight -> "FlightByIdParams"
func paramsTypeName(op genspec.OperationSpec) string {
	if op.Entity != nil {
		return naming.ToPascalCase(op.Entity.Name) + paramSuffix(op.PathParams) + "Params"
	}
	if op.OperationID != "" {
		return naming.ToPascalCase(op.OperationID) + "Params"
	}
	return naming.ToPascalCase(pathDerivedName(op)) + "Params"
}

// paramSuffix builds "ById" or "ByUserIdAndTaskId".
func paramSuffix(params []genspec.ParamSpec) string {
	if len(params) == 0 {
		return ""
	}
	names := make([]string, 0, len(params))
	for _, p := range params {
		names = append(names, naming.ToPascalCase(p.Name))
	}
	return "By" + strings.Join(names, "And")
}
