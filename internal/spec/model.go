package spec

import "strings"

// Semantic model produced by BuildApiSpec and consumed read-only by the
// generators. Values are built once per run and never mutated afterwards.

type HttpMethod string

const (
	GET     HttpMethod = "get"
	PUT     HttpMethod = "put"
	POST    HttpMethod = "post"
	DELETE  HttpMethod = "delete"
	PATCH   HttpMethod = "patch"
	OPTIONS HttpMethod = "options"
	HEAD    HttpMethod = "head"
	TRACE   HttpMethod = "trace"
)

// ParseHttpMethod accepts a method name in any case.
func ParseHttpMethod(s string) (HttpMethod, bool) {
	m := HttpMethod(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case GET, PUT, POST, DELETE, PATCH, OPTIONS, HEAD, TRACE:
		return m, true
	}
	return "", false
}

// HasBody reports whether requests with this method carry a body.
func (m HttpMethod) HasBody() bool {
	return m == POST || m == PUT || m == PATCH
}

// OperationKind is derived from the method and the success response shape.
type OperationKind string

const (
	Collection OperationKind = "collection"
	Detail     OperationKind = "detail"
	Mutation   OperationKind = "mutation"
)

type ParamLocation string

const (
	InPath   ParamLocation = "path"
	InQuery  ParamLocation = "query"
	InHeader ParamLocation = "header"
	InCookie ParamLocation = "cookie"
)

// EntityRef points at an entity without copying its body.
type EntityRef struct {
	Name      string `json:"name"`
	SchemaRef string `json:"schemaRef"`
}

// PropertySpec is one field of an entity. Optional is false iff the owning
// schema lists Name as required.
type PropertySpec struct {
	Name        string       `json:"name"`
	Schema      *SchemaOrRef `json:"schema"`
	Optional    bool         `json:"optional"`
	Description string       `json:"description,omitempty"`
}

// ParamSpec is an operation parameter after reference resolution.
type ParamSpec struct {
	Name        string        `json:"name"`
	Location    ParamLocation `json:"location"`
	Schema      *SchemaOrRef  `json:"schema"`
	Required    bool          `json:"required"`
	Description string        `json:"description,omitempty"`
}

// EntitySpec is a named data shape. PrimaryKey is empty when no identity
// field could be inferred.
type EntitySpec struct {
	Name        string         `json:"name"`
	SchemaRef   string         `json:"schemaRef"`
	PrimaryKey  string         `json:"primaryKey,omitempty"`
	Properties  []PropertySpec `json:"properties"`
	Description string         `json:"description,omitempty"`
}

// OperationSpec is one HTTP operation. OperationID is empty when the
// document does not declare one.
type OperationSpec struct {
	OperationID        string        `json:"operationId"`
	Method             HttpMethod    `json:"method"`
	Path               string        `json:"path"`
	Kind               OperationKind `json:"kind"`
	Entity             *EntityRef    `json:"entity,omitempty"`
	PathParams         []ParamSpec   `json:"pathParams"`
	QueryParams        []ParamSpec   `json:"queryParams"`
	RequestBody        *SchemaOrRef  `json:"requestBody,omitempty"`
	ResponseSchema     *SchemaOrRef  `json:"responseSchema,omitempty"`
	Summary            string        `json:"summary,omitempty"`
	Description        string        `json:"description,omitempty"`
	SuccessStatusCodes []string      `json:"successStatusCodes"`
}

// DomainSpec groups entities and operations. Entities are unique by name and
// sorted; operations keep document order.
type DomainSpec struct {
	Name       string          `json:"name"`
	Entities   []EntitySpec    `json:"entities"`
	Operations []OperationSpec `json:"operations"`
}

// OperationsOfKind returns the domain's operations of kind k in order.
func (d DomainSpec) OperationsOfKind(k OperationKind) []OperationSpec {
	var out []OperationSpec
	for _, op := range d.Operations {
		if op.Kind == k {
			out = append(out, op)
		}
	}
	return out
}

// ApiSpec is the root artifact handed to every generator.
type ApiSpec struct {
	ApiName       string       `json:"apiName"`
	Title         string       `json:"title"`
	Version       string       `json:"version"`
	BasePathToken string       `json:"basePathToken"`
	Domains       []DomainSpec `json:"domains"`
}
