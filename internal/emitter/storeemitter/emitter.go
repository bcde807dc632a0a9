// Package storeemitter renders one NgRx signal store per domain.
//
// A store is assembled from independent feature blocks (props, state,
// resources, methods, mutations). A block whose content would be empty is
// left out of the signalStore call entirely.
package storeemitter

import (
	"strings"

	"github.com/mark3labs/ngrx-openapi-gen/internal/emitter"
	"github.com/mark3labs/ngrx-openapi-gen/internal/emitter/entityemitter"
	"github.com/mark3labs/ngrx-openapi-gen/internal/naming"
	"github.com/mark3labs/ngrx-openapi-gen/internal/render"
	genspec "github.com/mark3labs/ngrx-openapi-gen/internal/spec"
)

// Options controls store rendering.
type Options struct {
	// BasePathToken names the injection token that supplies the API base URL.
	BasePathToken string
	Render        render.Config
	// Zod attaches validator parse steps to resources and mutations.
	Zod bool
	// PreferEntityNames names mutations create/update/remove + entity before
	// falling back to the declared operationId.
	PreferEntityNames bool
}

// Emitter renders store files.
type Emitter struct {
	opts       Options
	cfg        render.Config
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
		opts:       opts,
		cfg:        cfg,
		types:      render.NewTypeRenderer(cfg),
		validators: render.NewValidatorRenderer(cfg),
	}
}

// FilePath returns the store file path of a domain relative to the API root.
func FilePath(domainName string) string {
	slug := naming.ToKebabCase(domainName)
	return slug + "/application/" + slug + ".store.ts"
}

// StoreName returns the exported store constant of a domain.
func StoreName(domainName string) string {
	return naming.ToPascalCase(domainName) + "Store"
}

type collectionResource struct {
	op genspec.OperationSpec
	// key is the resource name inside withResource.
	key string
	// paramsSlot is the state slot holding query params, empty when the
	// collection takes none.
	paramsSlot string
}

type paramsSlot struct {
	key    string
	setter string
	shape  string
}

type selection struct {
	op     genspec.OperationSpec
	entity string
	idType string
}

// plan is the partition of a domain's operations the builders run over.
type plan struct {
	domain      genspec.DomainSpec
	collections []genspec.OperationSpec
	resources   []collectionResource
	params      []paramsSlot
	selections  []selection
	mutations   []genspec.OperationSpec
}

func (p *plan) hasResources() bool { return len(p.resources) > 0 || len(p.selections) > 0 }
func (p *plan) hasState() bool { return len(p.params) > 0 || len(p.selections) > 0 }
func (p *plan) hasMethods() bool { return len(p.params) > 0 || len(p.selections) > 0 }
func (p *plan) hasMutations() bool { return len(p.mutations) > 0 }

func (e *Emitter) partition(d genspec.DomainSpec) *plan {
	p := &plan{
		domain:      d,
		collections: d.OperationsOfKind(genspec.Collection),
		mutations:   d.OperationsOfKind(genspec.Mutation),
	}

	for _, op := range p.collections {
		if op.Entity == nil && op.ResponseSchema == nil {
			continue
		}
		r := collectionResource{op: op, key: collectionKey(op)}
		if op.Entity != nil && len(op.QueryParams) > 0 {
			r.paramsSlot = r.key + "Params"
			p.params = append(p.params, paramsSlot{
				key:    r.paramsSlot,
				setter: "set" + naming.Pluralize(op.Entity.Name) + "Params",
				shape:  e.queryShape(op.QueryParams),
			})
		}
		p.resources = append(p.resources, r)
	}

	seen := map[string]struct{}{}
	for _, op := range d.OperationsOfKind(genspec.Detail) {
		if op.Entity == nil {
			continue
		}
		if _, dup := seen[op.Entity.Name]; dup {
			continue
		}
		seen[op.Entity.Name] = struct{}{}
		idType := "string"
		if len(op.PathParams) > 0 {
			idType = e.types.Render(op.PathParams[0].Schema)
		}
		p.selections = append(p.selections, selection{op: op, entity: naming.ToPascalCase(op.Entity.Name), idType: idType})
	}
	return p
}

// collectionKey names a list resource after its entity, else after the
// operation or the trailing path segment.
func collectionKey(op genspec.OperationSpec) string {
	if op.Entity != nil {
		return naming.ToCamelCase(naming.Pluralize(op.Entity.Name))
	}
	if op.OperationID != "" {
		return naming.ToCamelCase(op.OperationID)
	}
	return naming.ToCamelCase(resourceNameFromPath(op.Path))
}

// resourceNameFromPath returns the last static path segment.
// Example: "/api/v1/categories/{id}" -> "categories"
func resourceNameFromPath(path string) string {
	segments := staticSegments(path)
	if len(segments) == 0 {
		return "items"
	}
	return segments[len(segments)-1]
}

func staticSegments(path string) []string {
	var out []string
	for _, s := range strings.Split(path, "/") {
		if s == "" || strings.HasPrefix(s, "{") {
			continue
		}
		out = append(out, s)
	}
	return out
}

// urlExpression interpolates path parameters from the named variable.
// Example: "/flights/{flight_id}" -> "/flights/${input.flightId}"
func urlExpression(path string, params []genspec.ParamSpec, variable string) string {
	for _, p := range params {
		path = strings.ReplaceAll(path, "{"+p.Name+"}", "${"+variable+"."+naming.ToCamelCase(p.Name)+"}")
	}
	return path
}

func baseURL(path string) string {
	return "`${store._baseUrl}" + path + "`"
}

// Emit renders the store file of d. idx locates models referenced across
// domains and must already hold every entity of the run.
func (e *Emitter) Emit(d genspec.DomainSpec, idx entityemitter.Index) emitter.File {
	p := e.partition(d)
	names := e.mutationNames(p.mutations)

	sections := []string{emitter.Imports(e.imports(p, idx))}
	if aliases := e.typeAliases(p.mutations); aliases != "" {
		sections = append(sections, aliases)
	}
	sections = append(sections, e.storeDeclaration(d.Name, p, names))

	return emitter.File{
		Path:    FilePath(d.Name),
		Content: strings.Join(sections, "\n\n") + "\n",
	}
}

func (e *Emitter) storeDeclaration(domainName string, p *plan, names []string) string {
	features := []string{e.buildProps()}
	if p.hasState() {
		features = append(features, e.buildState(p))
	}
	if p.hasResources() {
		features = append(features, e.buildResources(p))
	}
	if p.hasMethods() {
		features = append(features, e.buildMethods(p))
	}
	if p.hasMutations() {
		features = append(features, e.buildMutations(p, names))
	}

	w := emitter.NewWriter(e.cfg.IndentString)
	w.Line("export const " + StoreName(domainName) + " = signalStore(")
	w.Indent(func() {
		w.Line("{ providedIn: 'root' },")
		for _, f := range features {
			w.Blank()
			w.Line(f + ",")
		}
	})
	w.Line(");")
	return w.String()
}

// block renders open, one member per entry one level deeper, and end.
// Members end with a comma and are separated by a blank line when spaced.
func (e *Emitter) block(open string, members []string, end string, spaced bool) string {
	w := emitter.NewWriter(e.cfg.IndentString)
	w.Line(open)
	w.Indent(func() {
		for i, m := range members {
			if spaced && i > 0 {
				w.Blank()
			}
			w.Line(m + ",")
		}
	})
	w.Line(end)
	return w.String()
}

// queryShape renders the inline object type of a collection's query params.
// Keys keep their wire names so the object can be sent as-is.
func (e *Emitter) queryShape(params []genspec.ParamSpec) string {
	fields := make([]string, 0, len(params))
	for _, p := range params {
		opt := "?"
		if p.Required {
			opt = ""
		}
		fields = append(fields, naming.FormatPropertyName(p.Name)+opt+": "+e.types.Render(p.Schema))
	}
	return "{ " + strings.Join(fields, "; ") + " }"
}

// pathFields renders path params as camelCase fields, matching urlExpression.
func (e *Emitter) pathFields(params []genspec.ParamSpec) []string {
	fields := make([]string, 0, len(params))
	for _, p := range params {
		fields = append(fields, naming.ToCamelCase(p.Name)+": "+e.types.Render(p.Schema))
	}
	return fields
}
