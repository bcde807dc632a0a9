package storeemitter

import (
	"strings"

	"github.com/mark3labs/ngrx-openapi-gen/internal/emitter"
	"github.com/mark3labs/ngrx-openapi-gen/internal/naming"
)

func (e *Emitter) buildProps() string {
	return e.block("withProps(() => ({", []string{"_baseUrl: inject(" + e.opts.BasePathToken + ")"}, "}))", false)
}

// buildState emits one params slot per parameterised collection and one
// selection slot per detail entity.
func (e *Emitter) buildState(p *plan) string {
	var slots []string
	for _, s := range p.params {
		slots = append(slots, s.key+": {} as "+s.shape)
	}
	for _, s := range p.selections {
		slots = append(slots, "selected"+s.entity+"Id: undefined as "+s.idType+" | undefined")
	}
	return e.block("withState({", slots, "})", false)
}

func (e *Emitter) buildResources(p *plan) string {
	var members []string
	for _, r := range p.resources {
		members = append(members, e.collectionResource(r))
	}
	for _, s := range p.selections {
		members = append(members, e.detailResource(s))
	}
	return e.block("withResource((store) => ({", members, "}))", true)
}

func (e *Emitter) collectionResource(r collectionResource) string {
	var typ, parse string
	if r.op.Entity != nil {
		typ = e.cfg.ModelName(r.op.Entity.Name) + "[]"
		parse = "z.array(" + e.cfg.SchemaConstName(r.op.Entity.Name) + ")"
	} else {
		typ = e.types.Render(r.op.ResponseSchema)
		parse = e.validators.Render(r.op.ResponseSchema)
	}

	w := emitter.NewWriter(e.cfg.IndentString)
	w.Line(r.key + ": httpResource<" + typ + ">(")
	w.Indent(func() {
		if r.paramsSlot != "" {
			w.Line("() => ({")
			w.Indent(func() {
				w.Line("url: " + baseURL(r.op.Path) + ",")
				w.Line("params: store." + r.paramsSlot + "(),")
			})
			w.Line("}),")
		} else {
			w.Line("() => " + baseURL(r.op.Path) + ",")
		}
		e.resourceOptions(w, "[]", parse)
	})
	w.Line(")")
	return w.String()
}

// detailResource yields undefined without a request while nothing is
// selected.
func (e *Emitter) detailResource(s selection) string {
	idParam := "id"
	if len(s.op.PathParams) > 0 {
		idParam = s.op.PathParams[0].Name
	}
	path := strings.Replace(s.op.Path, "{"+idParam+"}", "${id}", 1)
	entity := s.op.Entity.Name

	w := emitter.NewWriter(e.cfg.IndentString)
	w.Line(naming.ToCamelCase(entity) + "Detail: httpResource<" + e.cfg.ModelName(entity) + " | undefined>(")
	w.Indent(func() {
		w.Line("() => {")
		w.Indent(func() {
			w.Line("const id = store.selected" + s.entity + "Id();")
			w.Line("return id === undefined ? undefined : " + baseURL(path) + ";")
		})
		w.Line("},")
		e.resourceOptions(w, "undefined", e.cfg.SchemaConstName(entity))
	})
	w.Line(")")
	return w.String()
}

// resourceOptions writes the httpResource options object. The parse step is
// the only line that depends on validator mode.
func (e *Emitter) resourceOptions(w *emitter.Writer, defaultValue, validator string) {
	w.Line("{")
	w.Indent(func() {
		w.Line("defaultValue: " + defaultValue + ",")
		if e.opts.Zod {
			w.Line("parse: (data: unknown) => " + validator + ".parse(data),")
		}
	})
	w.Line("},")
}

func (e *Emitter) buildMethods(p *plan) string {
	var methods []string
	for _, s := range p.params {
		methods = append(methods, e.setter(s.setter, "params: "+s.shape, s.key+": params"))
	}
	for _, s := range p.selections {
		methods = append(methods, e.setter("select"+s.entity, "id: "+s.idType+" | undefined", "selected"+s.entity+"Id: id"))
	}
	return e.block("withMethods((store) => ({", methods, "}))", true)
}

func (e *Emitter) setter(name, arg, patch string) string {
	w := emitter.NewWriter(e.cfg.IndentString)
	w.Line(name + "(" + arg + "): void {")
	w.Indent(func() {
		w.Line("patchState(store, { " + patch + " });")
	})
	w.Line("}")
	return w.String()
}
