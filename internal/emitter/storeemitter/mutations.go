package storeemitter

import (
	"strconv"
	"strings"

	"github.com/mark3labs/ngrx-openapi-gen/internal/emitter"
	"github.com/mark3labs/ngrx-openapi-gen/internal/naming"
	genspec "github.com/mark3labs/ngrx-openapi-gen/internal/spec"
)

func (e *Emitter) buildMutations(p *plan, names []string) string {
	members := make([]string, 0, len(p.mutations))
	for i, op := range p.mutations {
		members = append(members, e.mutation(op, names[i], reloadTarget(op, p.resources)))
	}
	return e.block("withMutations((store) => ({", members, "}))", true)
}

func (e *Emitter) mutation(op genspec.OperationSpec, name, reload string) string {
	hasPath := len(op.PathParams) > 0
	hasBody := op.Method.HasBody()
	output := e.outputType(op)

	arg := "()"
	if hasPath || hasBody {
		arg = "(input)"
	}

	w := emitter.NewWriter(e.cfg.IndentString)
	if doc := operationDoc(op); doc != "" {
		w.Line(strings.TrimSuffix(emitter.DocComment(doc, ""), "\n"))
	}
	w.Line(name + ": httpMutation<" + e.inputType(op) + ", " + output + ">({")
	w.Indent(func() {
		w.Line("request: " + arg + " => ({")
		w.Indent(func() {
			w.Line("url: " + baseURL(urlExpression(op.Path, op.PathParams, "input")) + ",")
			w.Line("method: '" + strings.ToUpper(string(op.Method)) + "',")
			if hasBody {
				if hasPath {
					w.Line("body: input.body,")
				} else {
					w.Line("body: input,")
				}
			}
		})
		w.Line("}),")
		if v := e.outputValidator(op, output); e.opts.Zod && v != "" {
			w.Line("parse: (data: unknown) => " + v + ".parse(data),")
		}
		if reload != "" {
			w.Line("onSuccess: () => {")
			w.Indent(func() {
				w.Line("store._" + reload + "Reload();")
			})
			w.Line("},")
		}
	})
	w.Line("})")
	return w.String()
}

func operationDoc(op genspec.OperationSpec) string {
	parts := make([]string, 0, 2)
	for _, s := range []string{op.Summary, op.Description} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}

// inputType is a path-param record, the request body, both merged, or
// void/unknown when neither is present.
func (e *Emitter) inputType(op genspec.OperationSpec) string {
	hasPath := len(op.PathParams) > 0
	switch {
	case op.Method.HasBody() && hasPath:
		body := "body?: unknown"
		if op.RequestBody != nil {
			body = "body: " + e.types.Render(op.RequestBody)
		}
		return "{ " + strings.Join(e.pathFields(op.PathParams), "; ") + "; " + body + " }"
	case op.Method.HasBody() && op.RequestBody != nil:
		return e.types.Render(op.RequestBody)
	case op.Method.HasBody():
		return "unknown"
	case hasPath:
		return paramsTypeName(op)
	default:
		return "void"
	}
}

// outputType is the declared response type, else void for DELETE, else the
// entity model, else void.
func (e *Emitter) outputType(op genspec.OperationSpec) string {
	switch {
	case op.ResponseSchema != nil:
		return e.types.Render(op.ResponseSchema)
	case op.Method == genspec.DELETE:
		return "void"
	case op.Entity != nil:
		return e.cfg.ModelName(op.Entity.Name)
	default:
		return "void"
	}
}

func (e *Emitter) outputValidator(op genspec.OperationSpec, output string) string {
	if output == "void" {
		return ""
	}
	if op.ResponseSchema == nil {
		return e.cfg.SchemaConstName(op.Entity.Name)
	}
	if op.ResponseSchema.IsRef() {
		if name, ok := genspec.ExtractSchemaName(op.ResponseSchema.Ref); ok {
			return e.cfg.SchemaConstName(name)
		}
	}
	return e.validators.Render(op.ResponseSchema)
}

// reloadTarget picks the list resource refreshed after a successful write:
// the collection of the same entity, else the domain's first collection.
func reloadTarget(op genspec.OperationSpec, resources []collectionResource) string {
	if len(resources) == 0 {
		return ""
	}
	if op.Entity != nil {
		for _, r := range resources {
			if r.op.Entity != nil && r.op.Entity.Name == op.Entity.Name {
				return r.key
			}
		}
	}
	return resources[0].key
}

// mutationNames applies the naming policy to every mutation of a domain and
// keeps the names unique. The default policy prefers the declared
// operationId, then create/update/remove + entity, then a name derived from
// the method and path. PreferEntityNames moves the entity convention first.
func (e *Emitter) mutationNames(ops []genspec.OperationSpec) []string {
	names := make([]string, 0, len(ops))
	used := map[string]struct{}{}
	for _, op := range ops {
		id, verb, path := naming.ToCamelCase(op.OperationID), entityVerbName(op), pathDerivedName(op)
		candidates := []string{id, verb, path}
		if e.opts.PreferEntityNames {
			candidates = []string{verb, id, path}
		}
		name := pickName(candidates, used)
		used[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

func pickName(candidates []string, used map[string]struct{}) string {
	first := ""
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if first == "" {
			first = c
		}
		if _, taken := used[c]; !taken {
			return c
		}
	}
	for n := 2; ; n++ {
		c := first + strconv.Itoa(n)
		if _, taken := used[c]; !taken {
			return c
		}
	}
}

// entityVerbName returns create/update/remove + entity, or "" when the
// operation has no entity or its method has no conventional verb.
func entityVerbName(op genspec.OperationSpec) string {
	if op.Entity == nil {
		return ""
	}
	entity := naming.ToPascalCase(op.Entity.Name)
	switch op.Method {
	case genspec.POST:
		return "create" + entity
	case genspec.PUT, genspec.PATCH:
		return "update" + entity
	case genspec.DELETE:
		return "remove" + entity
	}
	return ""
}

// pathDerivedName joins the method, the static path segments and the path
// params.
// Example: DELETE /cache/{key} -> "deleteCacheByKey"
func pathDerivedName(op genspec.OperationSpec) string {
	words := append([]string{string(op.Method)}, staticSegments(op.Path)...)
	if suffix := paramSuffix(op.PathParams); suffix != "" {
		words = append(words, suffix)
	}
	return naming.ToCamelCase(strings.Join(words, " "))
}
