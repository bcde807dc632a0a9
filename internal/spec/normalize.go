package spec

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"github.com/mark3labs/ngrx-openapi-gen/internal/naming"
)

// DefaultDomain collects operations that have neither tags nor a static path
// segment.
const DefaultDomain = "Default"

// methodOrder is the order operations of one path item are visited in.
var methodOrder = []HttpMethod{GET, PUT, POST, DELETE, PATCH, OPTIONS, HEAD, TRACE}

// BuildOption configures how the ApiSpec is built from an OpenAPI doc.
type BuildOption func(*buildConfig)

type buildConfig struct {
	apiName       string
	basePathToken string
	includeTags   map[string]struct{}
	excludeTags   map[string]struct{}
	methods       map[HttpMethod]struct{}
	pathRes       []*regexp.Regexp
	logger        Logger
}

// WithApiName sets the API name. Without it the name is derived from
// info.title.
func WithApiName(name string) BuildOption {
	return func(c *buildConfig) { c.apiName = strings.TrimSpace(name) }
}

// WithBasePathToken overrides the derived base-path token identifier.
func WithBasePathToken(token string) BuildOption {
	return func(c *buildConfig) { c.basePathToken = strings.TrimSpace(token) }
}

// WithLogger routes parser diagnostics to l.
func WithLogger(l Logger) BuildOption {
	return func(c *buildConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithIncludeTags keeps only operations that belong to at least one of the
// given domains. Untagged operations match through their derived domain.
func WithIncludeTags(tags []string) BuildOption {
	return func(c *buildConfig) {
		if len(tags) == 0 {
			return
		}
		if c.includeTags == nil {
			c.includeTags = make(map[string]struct{}, len(tags))
		}
		for _, t := range tags {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			c.includeTags[t] = struct{}{}
		}
	}
}

// WithExcludeTags removes operations that belong to any of the given domains.
func WithExcludeTags(tags []string) BuildOption {
	return func(c *buildConfig) {
		if len(tags) == 0 {
			return
		}
		if c.excludeTags == nil {
			c.excludeTags = make(map[string]struct{}, len(tags))
		}
		for _, t := range tags {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			c.excludeTags[t] = struct{}{}
		}
	}
}

// WithMethods keeps only operations using one of the provided HTTP methods.
func WithMethods(methods []HttpMethod) BuildOption {
	return func(c *buildConfig) {
		if len(methods) == 0 {
			return
		}
		if c.methods == nil {
			c.methods = make(map[HttpMethod]struct{}, len(methods))
		}
		for _, m := range methods {
			c.methods[HttpMethod(strings.ToLower(string(m)))] = struct{}{}
		}
	}
}

// WithPathPatterns keeps only operations whose path matches at least one of
// the provided regular expressions. An invalid pattern matches nothing.
func WithPathPatterns(patterns []string) BuildOption {
	return func(c *buildConfig) {
		for _, p := range patterns {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			re, err := regexp.Compile(p)
			if err != nil {
				re = regexp.MustCompile("a^$")
			}
			c.pathRes = append(c.pathRes, re)
		}
	}
}

// BuildApiSpec converts a loaded document into the semantic model. It only
// fails on a nil document; malformed operations degrade to the most
// conservative classification and the walk continues.
func BuildApiSpec(ctx context.Context, doc *Document, opts ...BuildOption) (*ApiSpec, error) {
	if doc == nil || doc.OpenAPI == nil {
		return nil, errors.New("nil document")
	}

	cfg := &buildConfig{logger: NopLogger{}}
	for _, opt := range opts {
		opt(cfg)
	}

	p := newParser(doc.OpenAPI, parseSourceRoot(doc.Raw), cfg)
	return p.parse(ctx)
}

type shape int

const (
	shapeVoid shape = iota
	shapePrimitive
	shapeObject
	shapeArray
)

// responseDescriptor summarizes the success payload of an operation.
type responseDescriptor struct {
	shape      shape
	schemaName string
	schema     *SchemaOrRef
}

// domainBuilder accumulates one domain, dropping duplicates.
type domainBuilder struct {
	name       string
	operations []OperationSpec
	keys       map[string]struct{}
	entities   map[string]EntitySpec
}

func newDomainBuilder(name string) *domainBuilder {
	return &domainBuilder{
		name:     name,
		keys:     map[string]struct{}{},
		entities: map[string]EntitySpec{},
	}
}

// addOperation registers op unless an equivalent one is already present:
// collections are keyed by entity name, everything else by method and path.
func (b *domainBuilder) addOperation(op OperationSpec) bool {
	key := string(op.Method) + ":" + op.Path
	if op.Kind == Collection && op.Entity != nil {
		key = "collection:" + op.Entity.Name
	}
	if _, dup := b.keys[key]; dup {
		return false
	}
	b.keys[key] = struct{}{}
	b.operations = append(b.operations, op)
	return true
}

func (b *domainBuilder) addEntity(e EntitySpec) {
	if _, ok := b.entities[e.Name]; !ok {
		b.entities[e.Name] = e
	}
}

func (b *domainBuilder) build() DomainSpec {
	entities := make([]EntitySpec, 0, len(b.entities))
	for _, e := range b.entities {
		entities = append(entities, e)
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i].Name < entities[j].Name })
	return DomainSpec{
		Name:       b.name,
		Entities:   entities,
		Operations: append([]OperationSpec(nil), b.operations...),
	}
}

type parser struct {
	doc      *openapi3.T
	root     *yaml.Node
	cfg      *buildConfig
	log      Logger
	resolver *SchemaResolver
	params   openapi3.ParametersMap
	domains  map[string]*domainBuilder
}

func newParser(doc *openapi3.T, root *yaml.Node, cfg *buildConfig) *parser {
	p := &parser{
		doc:      doc,
		root:     root,
		cfg:      cfg,
		log:      cfg.logger,
		resolver: NewSchemaResolver(doc, root),
		domains:  map[string]*domainBuilder{},
	}
	if doc.Components != nil {
		p.params = doc.Components.Parameters
	}
	return p
}

func (p *parser) parse(ctx context.Context) (*ApiSpec, error) {
	pathsNode := nodePath(p.root, "paths")
	items := p.doc.Paths.Map()
	for _, path := range orderedKeys(items, pathsNode) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		item := items[path]
		if item == nil {
			continue
		}
		itemNode := mappingValue(pathsNode, path)
		for _, method := range methodOrder {
			op := item.GetOperation(strings.ToUpper(string(method)))
			if op == nil || !p.allowMethod(method) || !p.allowPath(path) {
				continue
			}
			p.processOperation(path, method, item, op, mappingValue(itemNode, string(method)))
		}
	}

	names := make([]string, 0, len(p.domains))
	for name := range p.domains {
		names = append(names, name)
	}
	sort.Strings(names)
	p.registerReferencedSchemas(names)
	domains := make([]DomainSpec, 0, len(names))
	for _, name := range names {
		domains = append(domains, p.domains[name].build())
	}

	apiName := p.cfg.apiName
	if apiName == "" && p.doc.Info != nil {
		apiName = naming.NormalizeAPIName(p.doc.Info.Title)
	}
	if apiName == "" {
		apiName = naming.NormalizeAPIName("")
	}
	token := p.cfg.basePathToken
	if token == "" {
		token = naming.ToConstantCase(apiName) + "_BASE_PATH"
	}
	title, version := apiName, "1.0.0"
	if p.doc.Info != nil {
		if t := strings.TrimSpace(p.doc.Info.Title); t != "" {
			title = t
		}
		if v := strings.TrimSpace(p.doc.Info.Version); v != "" {
			version = v
		}
	}

	return &ApiSpec{
		ApiName:       apiName,
		Title:         title,
		Version:       version,
		BasePathToken: token,
		Domains:       domains,
	}, nil
}

// registerReferencedSchemas adds every component schema reachable from a
// domain's entities or operation schemas that no domain registers yet, so
// every generated reference has a model file. A schema is placed in the first
// domain, in name order, that reaches it.
func (p *parser) registerReferencedSchemas(domainNames []string) {
	known := map[string]struct{}{}
	for _, b := range p.domains {
		for name := range b.entities {
			known[name] = struct{}{}
		}
	}

	for _, domainName := range domainNames {
		b := p.domains[domainName]
		var pending []string
		enqueue := func(s *SchemaOrRef) {
			for _, name := range s.SchemaRefs() {
				if _, ok := known[name]; ok {
					continue
				}
				known[name] = struct{}{}
				pending = append(pending, name)
			}
		}

		entityNames := make([]string, 0, len(b.entities))
		for name := range b.entities {
			entityNames = append(entityNames, name)
		}
		sort.Strings(entityNames)
		for _, name := range entityNames {
			for _, prop := range b.entities[name].Properties {
				enqueue(prop.Schema)
			}
		}
		for _, op := range b.operations {
			for _, param := range op.PathParams {
				enqueue(param.Schema)
			}
			for _, param := range op.QueryParams {
				enqueue(param.Schema)
			}
			enqueue(op.RequestBody)
			enqueue(op.ResponseSchema)
		}

		for len(pending) > 0 {
			name := pending[0]
			pending = pending[1:]
			e, ok := p.entitySpec(name)
			if !ok {
				continue
			}
			p.log.Debug("registering referenced schema", "domain", domainName, "schema", name)
			b.addEntity(e)
			for _, prop := range e.Properties {
				enqueue(prop.Schema)
			}
		}
	}
}

func (p *parser) processOperation(path string, method HttpMethod, item *openapi3.PathItem, op *openapi3.Operation, opNode *yaml.Node) {
	tags := resolveTags(op.Tags, path)
	if !p.allowTags(tags) {
		p.log.Debug("operation filtered by tags", "method", method, "path", path)
		return
	}

	requestBody := p.requestBodySchema(op.RequestBody, mappingValue(opNode, "requestBody"))
	descriptor := p.responseDescriptor(op, mappingValue(opNode, "responses"), requestBody)
	kind := resolveKind(method, descriptor)

	entityName := descriptor.schemaName
	if entityName == "" && kind == Mutation && descriptor.shape == shapeVoid {
		entityName = p.inferEntityFromPath(path)
	}

	params := p.parameters(item, op)
	spec := OperationSpec{
		OperationID:        strings.TrimSpace(op.OperationID),
		Method:             method,
		Path:               path,
		Kind:               kind,
		PathParams:         filterParams(params, InPath),
		QueryParams:        filterParams(params, InQuery),
		RequestBody:        requestBody,
		ResponseSchema:     descriptor.schema,
		Summary:            strings.TrimSpace(op.Summary),
		Description:        strings.TrimSpace(op.Description),
		SuccessStatusCodes: successStatusCodes(op),
	}
	if entityName != "" {
		spec.Entity = &EntityRef{Name: entityName, SchemaRef: SchemaRef(entityName)}
	}
	p.log.Debug("classified operation", "method", method, "path", path, "kind", kind, "entity", entityName)

	var entities []EntitySpec
	if entityName != "" {
		if e, ok := p.entitySpec(entityName); ok {
			entities = append(entities, e)
		}
	}
	if requestBody.IsRef() {
		if name, ok := ExtractSchemaName(requestBody.Ref); ok {
			if e, ok := p.entitySpec(name); ok {
				entities = append(entities, e)
			}
		}
	}

	for _, tag := range tags {
		b, ok := p.domains[tag]
		if !ok {
			b = newDomainBuilder(tag)
			p.domains[tag] = b
		}
		if !b.addOperation(spec) {
			p.log.Warn("dropping duplicate operation", "domain", tag, "method", method, "path", path, "operationId", spec.OperationID)
		}
		for _, e := range entities {
			b.addEntity(e)
		}
	}
}

func resolveTags(tags []string, path string) []string {
	var out []string
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	if len(out) > 0 {
		return out
	}
	if segs := staticSegments(path); len(segs) > 0 {
		return []string{naming.Capitalize(segs[0])}
	}
	return []string{DefaultDomain}
}

func staticSegments(path string) []string {
	var out []string
	for _, s := range strings.Split(path, "/") {
		if s != "" && !strings.HasPrefix(s, "{") {
			out = append(out, s)
		}
	}
	return out
}

func resolveKind(method HttpMethod, d responseDescriptor) OperationKind {
	if method == GET {
		switch d.shape {
		case shapeArray:
			return Collection
		case shapeObject:
			return Detail
		}
	}
	return Mutation
}

// responseDescriptor scans the 2xx responses in declaration order and takes
// the first non-void payload, falling back to the request body.
func (p *parser) responseDescriptor(op *openapi3.Operation, respNode *yaml.Node, requestBody *SchemaOrRef) responseDescriptor {
	responses := op.Responses.Map()
	for _, status := range orderedKeys(responses, respNode) {
		if !strings.HasPrefix(status, "2") {
			continue
		}
		ref := responses[status]
		if ref == nil || ref.Value == nil {
			continue
		}
		node := mappingValue(respNode, status)
		if ref.Ref != "" {
			node = nodeAtPointer(p.root, ref.Ref)
		}
		schema := p.jsonSchema(ref.Value.Content, mappingValue(node, "content"))
		if schema == nil {
			continue
		}
		if d := p.describe(schema); d.shape != shapeVoid {
			return d
		}
	}
	if requestBody != nil {
		return p.describe(requestBody)
	}
	return responseDescriptor{shape: shapeVoid}
}

func (p *parser) describe(s *SchemaOrRef) responseDescriptor {
	if s.IsRef() {
		name, ok := ExtractSchemaName(s.Ref)
		if !ok {
			p.log.Warn("unresolvable schema reference", "ref", s.Ref)
			return responseDescriptor{shape: shapeVoid}
		}
		return responseDescriptor{shape: shapeObject, schemaName: name, schema: s}
	}
	if s.Kind == ArraySchema && s.Items != nil {
		d := responseDescriptor{shape: shapeArray, schema: s}
		if s.Items.IsRef() {
			d.schemaName, _ = ExtractSchemaName(s.Items.Ref)
		}
		return d
	}
	switch {
	case s.Type == "object":
		return responseDescriptor{shape: shapeObject, schema: s}
	case s.Type != "":
		return responseDescriptor{shape: shapePrimitive, schema: s}
	}
	return responseDescriptor{shape: shapeVoid}
}

// jsonSchema picks the schema of the first JSON-ish media type, or of the
// first media type when none is JSON.
func (p *parser) jsonSchema(content openapi3.Content, node *yaml.Node) *SchemaOrRef {
	if len(content) == 0 {
		return nil
	}
	keys := orderedKeys(content, node)
	chosen := keys[0]
	for _, k := range keys {
		if k == "application/json" || strings.HasSuffix(k, "+json") || k == "text/json" {
			chosen = k
			break
		}
	}
	mt := content[chosen]
	if mt == nil {
		return nil
	}
	return FromSchemaRef(mt.Schema, mappingValue(mappingValue(node, chosen), "schema"))
}

// requestBodySchema returns the body payload schema. A body that references a
// component schema directly resolves to that schema's inline definition.
func (p *parser) requestBodySchema(ref *openapi3.RequestBodyRef, node *yaml.Node) *SchemaOrRef {
	if ref == nil {
		return nil
	}
	if ref.Ref != "" {
		if name, ok := ExtractSchemaName(ref.Ref); ok {
			s := p.resolver.SchemaObject(name)
			if s == nil {
				p.log.Warn("unresolvable request body reference", "ref", ref.Ref)
			}
			return s
		}
		node = nodeAtPointer(p.root, ref.Ref)
	}
	if ref.Value == nil {
		p.log.Warn("unresolvable request body reference", "ref", ref.Ref)
		return nil
	}
	return p.jsonSchema(ref.Value.Content, mappingValue(node, "content"))
}

// parameters merges path-item parameters with operation parameters. An
// operation parameter replaces a path-item parameter with the same name and
// location.
func (p *parser) parameters(item *openapi3.PathItem, op *openapi3.Operation) []ParamSpec {
	var out []ParamSpec
	index := map[string]int{}
	add := func(refs openapi3.Parameters) {
		for _, ref := range refs {
			param := p.resolveParameter(ref, 0)
			if param == nil {
				continue
			}
			spec := toParamSpec(param)
			key := string(spec.Location) + ":" + spec.Name
			if i, ok := index[key]; ok {
				out[i] = spec
				continue
			}
			index[key] = len(out)
			out = append(out, spec)
		}
	}
	add(item.Parameters)
	add(op.Parameters)
	return out
}

const maxParameterHops = 16

func (p *parser) resolveParameter(ref *openapi3.ParameterRef, depth int) *openapi3.Parameter {
	if ref == nil {
		return nil
	}
	if ref.Value != nil {
		return ref.Value
	}
	name, ok := ExtractParameterName(ref.Ref)
	if !ok || depth >= maxParameterHops {
		p.log.Warn("unresolvable parameter reference", "ref", ref.Ref)
		return nil
	}
	target, ok := p.params[name]
	if !ok {
		p.log.Warn("unresolvable parameter reference", "ref", ref.Ref)
		return nil
	}
	return p.resolveParameter(target, depth+1)
}

func toParamSpec(param *openapi3.Parameter) ParamSpec {
	loc := InQuery
	switch ParamLocation(param.In) {
	case InPath, InQuery, InHeader, InCookie:
		loc = ParamLocation(param.In)
	}
	schema := FromSchemaRef(param.Schema, nil)
	if schema == nil {
		schema = Primitive("string")
	}
	return ParamSpec{
		Name:        param.Name,
		Location:    loc,
		Schema:      schema,
		Required:    param.Required,
		Description: strings.TrimSpace(param.Description),
	}
}

func filterParams(params []ParamSpec, loc ParamLocation) []ParamSpec {
	out := []ParamSpec{}
	for _, p := range params {
		if p.Location == loc {
			out = append(out, p)
		}
	}
	return out
}

func successStatusCodes(op *openapi3.Operation) []string {
	codes := []string{}
	for status := range op.Responses.Map() {
		if strings.HasPrefix(status, "2") {
			codes = append(codes, status)
		}
	}
	sort.Strings(codes)
	return codes
}

// inferEntityFromPath matches the singular form of the last static path
// segment against the component schema names, ignoring case.
func (p *parser) inferEntityFromPath(path string) string {
	segs := staticSegments(path)
	if len(segs) == 0 {
		return ""
	}
	candidate := naming.ToPascalCase(naming.Singularize(segs[len(segs)-1]))
	for _, name := range p.resolver.SchemaNames() {
		if strings.EqualFold(name, candidate) || strings.EqualFold(naming.ToPascalCase(name), candidate) {
			return name
		}
	}
	return ""
}

func (p *parser) entitySpec(name string) (EntitySpec, bool) {
	s := p.resolver.SchemaObject(name)
	if s == nil {
		p.log.Warn("unresolvable schema reference", "ref", SchemaRef(name))
		return EntitySpec{}, false
	}
	return EntitySpec{
		Name:        name,
		SchemaRef:   SchemaRef(name),
		PrimaryKey:  p.resolver.InferPrimaryKey(name),
		Properties:  p.resolver.BuildPropertySpecs(s),
		Description: s.Description,
	}, true
}

func (p *parser) allowMethod(m HttpMethod) bool {
	if len(p.cfg.methods) == 0 {
		return true
	}
	_, ok := p.cfg.methods[m]
	return ok
}

func (p *parser) allowPath(path string) bool {
	if len(p.cfg.pathRes) == 0 {
		return true
	}
	for _, re := range p.cfg.pathRes {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

func (p *parser) allowTags(tags []string) bool {
	if len(p.cfg.includeTags) > 0 {
		ok := false
		for _, t := range tags {
			if _, yes := p.cfg.includeTags[t]; yes {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	for _, t := range tags {
		if _, blocked := p.cfg.excludeTags[t]; blocked {
			return false
		}
	}
	return true
}
