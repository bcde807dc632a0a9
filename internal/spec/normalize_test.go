package spec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const flightSpec = `openapi: 3.0.3
info:
  title: Flight Booking API
  version: "2.1.0"
paths:
  /flights:
    get:
      operationId: listFlights
      tags: [Flight]
      parameters:
        - $ref: '#/components/parameters/FromParam'
        - name: to
          in: query
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema:
                type: array
                items:
                  $ref: '#/components/schemas/Flight'
    post:
      operationId: createFlight
      summary: Create a flight
      tags: [Flight]
      requestBody:
        content:
          application/json:
            schema:
              $ref: '#/components/schemas/CreateFlight'
      responses:
        "201":
          description: created
          content:
            application/json:
              schema:
                $ref: '#/components/schemas/Flight'
  /flights/search:
    get:
      tags: [Flight]
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema:
                type: array
                items:
                  $ref: '#/components/schemas/Flight'
  /flights/{id}:
    parameters:
      - name: id
        in: path
        required: true
        schema:
          type: string
    get:
      tags: [Flight]
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema:
                $ref: '#/components/schemas/Flight'
        "404":
          description: missing
    delete:
      tags: [Flight]
      responses:
        "204":
          description: gone
  /flights/count:
    get:
      tags: [Flight]
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema:
                type: integer
  /bookings:
    get:
      responses:
        "200":
          description: ok
          content:
            application/vnd.api+json:
              schema:
                type: array
                items:
                  $ref: '#/components/schemas/Booking'
  /{tenant}:
    get:
      responses:
        "200":
          description: ok
components:
  parameters:
    FromParam:
      name: from
      in: query
      schema:
        type: string
  schemas:
    Flight:
      type: object
      description: A scheduled flight.
      required: [id, from]
      properties:
        id:
          type: string
        to:
          type: string
        from:
          type: string
        delayed:
          type: boolean
    CreateFlight:
      type: object
      properties:
        from:
          type: string
    Booking:
      type: object
      properties:
        bookingId:
          type: integer
        flight:
          $ref: '#/components/schemas/Flight'
`

func buildFlightSpec(t *testing.T, opts ...BuildOption) *ApiSpec {
	t.Helper()
	doc, err := LoadData([]byte(flightSpec))
	require.NoError(t, err)
	api, err := BuildApiSpec(context.Background(), doc, opts...)
	require.NoError(t, err)
	return api
}

func findDomain(t *testing.T, api *ApiSpec, name string) DomainSpec {
	t.Helper()
	for _, d := range api.Domains {
		if d.Name == name {
			return d
		}
	}
	t.Fatalf("domain %q not found", name)
	return DomainSpec{}
}

func findOperation(t *testing.T, d DomainSpec, method HttpMethod, path string) OperationSpec {
	t.Helper()
	for _, op := range d.Operations {
		if op.Method == method && op.Path == path {
			return op
		}
	}
	t.Fatalf("operation %s %s not found in %s", method, path, d.Name)
	return OperationSpec{}
}

func TestBuildApiSpec_Metadata(t *testing.T) {
	t.Parallel()
	api := buildFlightSpec(t)

	assert.Equal(t, "FlightBookingAPI", api.ApiName)
	assert.Equal(t, "Flight Booking API", api.Title)
	assert.Equal(t, "2.1.0", api.Version)
	assert.Equal(t, "FLIGHT_BOOKING_API_BASE_PATH", api.BasePathToken)

	api = buildFlightSpec(t, WithApiName("Travel"), WithBasePathToken("TRAVEL_URL"))
	assert.Equal(t, "Travel", api.ApiName)
	assert.Equal(t, "TRAVEL_URL", api.BasePathToken)
}

func TestBuildApiSpec_DomainsSortedWithFallbacks(t *testing.T) {
	t.Parallel()
	api := buildFlightSpec(t)

	var names []string
	for _, d := range api.Domains {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"Bookings", "Default", "Flight"}, names)
}

func TestBuildApiSpec_Classification(t *testing.T) {
	t.Parallel()
	flight := findDomain(t, buildFlightSpec(t), "Flight")

	tests := []struct {
		name   string
		method HttpMethod
		path   string
		kind   OperationKind
		entity string
	}{
		{"array of refs is a collection", GET, "/flights", Collection, "Flight"},
		{"single ref is a detail", GET, "/flights/{id}", Detail, "Flight"},
		{"post is always a mutation", POST, "/flights", Mutation, "Flight"},
		{"bodiless delete infers entity from path", DELETE, "/flights/{id}", Mutation, "Flight"},
		{"primitive get is a mutation without entity", GET, "/flights/count", Mutation, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := findOperation(t, flight, tt.method, tt.path)
			assert.Equal(t, tt.kind, op.Kind)
			if tt.entity == "" {
				assert.Nil(t, op.Entity)
				return
			}
			require.NotNil(t, op.Entity)
			assert.Equal(t, tt.entity, op.Entity.Name)
			assert.Equal(t, "#/components/schemas/"+tt.entity, op.Entity.SchemaRef)
		})
	}
}

func TestBuildApiSpec_DeleteWithoutBodyHasNoResponseSchema(t *testing.T) {
	t.Parallel()
	flight := findDomain(t, buildFlightSpec(t), "Flight")
	op := findOperation(t, flight, DELETE, "/flights/{id}")

	assert.Nil(t, op.ResponseSchema)
	assert.Equal(t, []string{"204"}, op.SuccessStatusCodes)
	assert.Empty(t, op.OperationID)
}

func TestBuildApiSpec_DeduplicatesCollectionsByEntity(t *testing.T) {
	t.Parallel()
	flight := findDomain(t, buildFlightSpec(t), "Flight")

	collections := flight.OperationsOfKind(Collection)
	require.Len(t, collections, 1)
	assert.Equal(t, "/flights", collections[0].Path)
}

func TestDomainBuilder_DeduplicatesMethodAndPath(t *testing.T) {
	t.Parallel()
	b := newDomainBuilder("Flight")

	assert.True(t, b.addOperation(OperationSpec{Method: POST, Path: "/flights", Kind: Mutation, OperationID: "a"}))
	assert.False(t, b.addOperation(OperationSpec{Method: POST, Path: "/flights", Kind: Mutation, OperationID: "b"}))
	assert.True(t, b.addOperation(OperationSpec{Method: PUT, Path: "/flights", Kind: Mutation}))

	d := b.build()
	require.Len(t, d.Operations, 2)
	assert.Equal(t, "a", d.Operations[0].OperationID)
}

func TestBuildApiSpec_Parameters(t *testing.T) {
	t.Parallel()
	flight := findDomain(t, buildFlightSpec(t), "Flight")

	list := findOperation(t, flight, GET, "/flights")
	require.Len(t, list.QueryParams, 2)
	assert.Equal(t, "from", list.QueryParams[0].Name)
	assert.Equal(t, "to", list.QueryParams[1].Name)
	assert.Equal(t, StringSchema, list.QueryParams[1].Schema.Kind, "missing schema defaults to string")
	assert.Empty(t, list.PathParams)

	detail := findOperation(t, flight, GET, "/flights/{id}")
	require.Len(t, detail.PathParams, 1)
	assert.Equal(t, "id", detail.PathParams[0].Name)
	assert.True(t, detail.PathParams[0].Required)
}

func TestBuildApiSpec_RequestBodyEntities(t *testing.T) {
	t.Parallel()
	flight := findDomain(t, buildFlightSpec(t), "Flight")

	create := findOperation(t, flight, POST, "/flights")
	require.NotNil(t, create.RequestBody)
	assert.Equal(t, "#/components/schemas/CreateFlight", create.RequestBody.Ref)
	assert.Equal(t, "Create a flight", create.Summary)

	var names []string
	for _, e := range flight.Entities {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"CreateFlight", "Flight"}, names)
}

func TestBuildApiSpec_EntityProperties(t *testing.T) {
	t.Parallel()
	flight := findDomain(t, buildFlightSpec(t), "Flight")

	var entity EntitySpec
	for _, e := range flight.Entities {
		if e.Name == "Flight" {
			entity = e
		}
	}
	assert.Equal(t, "id", entity.PrimaryKey)
	assert.Equal(t, "A scheduled flight.", entity.Description)

	var order []string
	optional := map[string]bool{}
	for _, p := range entity.Properties {
		order = append(order, p.Name)
		optional[p.Name] = p.Optional
	}
	assert.Equal(t, []string{"id", "to", "from", "delayed"}, order, "declaration order is kept")
	assert.False(t, optional["id"])
	assert.False(t, optional["from"])
	assert.True(t, optional["to"])
}

func TestBuildApiSpec_UntaggedUsesFirstSegment(t *testing.T) {
	t.Parallel()
	bookings := findDomain(t, buildFlightSpec(t), "Bookings")

	op := findOperation(t, bookings, GET, "/bookings")
	assert.Equal(t, Collection, op.Kind, "+json media types are read")
	require.Len(t, bookings.Entities, 1)
	assert.Equal(t, "Booking", bookings.Entities[0].Name)
	assert.Equal(t, "bookingId", bookings.Entities[0].PrimaryKey)
}

func TestBuildApiSpec_TagFilters(t *testing.T) {
	t.Parallel()

	api := buildFlightSpec(t, WithIncludeTags([]string{"Bookings"}))
	require.Len(t, api.Domains, 1)
	assert.Equal(t, "Bookings", api.Domains[0].Name)

	api = buildFlightSpec(t, WithExcludeTags([]string{"Flight", "Default"}))
	require.Len(t, api.Domains, 1)
	assert.Equal(t, "Bookings", api.Domains[0].Name)
}

func TestBuildApiSpec_MethodAndPathFilters(t *testing.T) {
	t.Parallel()

	api := buildFlightSpec(t, WithMethods([]HttpMethod{DELETE}))
	require.Len(t, api.Domains, 1)
	require.Len(t, api.Domains[0].Operations, 1)
	assert.Equal(t, DELETE, api.Domains[0].Operations[0].Method)

	api = buildFlightSpec(t, WithPathPatterns([]string{`^/bookings$`}))
	require.Len(t, api.Domains, 1)
	assert.Equal(t, "Bookings", api.Domains[0].Name)
}

func TestBuildApiSpec_LogsDroppedDuplicates(t *testing.T) {
	t.Parallel()
	rec := &recordingLogger{}
	buildFlightSpec(t, WithLogger(rec))

	assert.Contains(t, rec.warnings, "dropping duplicate operation")
}

func TestBuildApiSpec_NilDocument(t *testing.T) {
	t.Parallel()
	_, err := BuildApiSpec(context.Background(), nil)
	assert.Error(t, err)
}

type recordingLogger struct {
	NopLogger
	warnings []string
}

func (r *recordingLogger) Warn(msg string, _ ...any) { r.warnings = append(r.warnings, msg) }

const nestedSchemasSpec = `openapi: 3.0.3
info:
  title: Tree API
  version: "1.0.0"
paths:
  /nodes:
    get:
      tags: [Node]
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema:
                type: array
                items:
                  $ref: '#/components/schemas/Node'
  /owners:
    get:
      tags: [Owner]
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema:
                type: array
                items:
                  $ref: '#/components/schemas/Owner'
components:
  schemas:
    Node:
      type: object
      properties:
        id:
          type: string
        children:
          type: array
          items:
            $ref: '#/components/schemas/Node'
        tag:
          $ref: '#/components/schemas/Tag'
        owner:
          $ref: '#/components/schemas/Owner'
    Tag:
      type: object
      properties:
        label:
          $ref: '#/components/schemas/Label'
    Label:
      type: object
      properties:
        text:
          type: string
    Owner:
      type: object
      properties:
        id:
          type: string
`

func TestBuildApiSpec_RegistersPropertyOnlySchemas(t *testing.T) {
	t.Parallel()
	doc, err := LoadData([]byte(nestedSchemasSpec))
	require.NoError(t, err)
	api, err := BuildApiSpec(context.Background(), doc)
	require.NoError(t, err)

	entityNames := func(d DomainSpec) []string {
		var out []string
		for _, e := range d.Entities {
			out = append(out, e.Name)
		}
		return out
	}
	assert.Equal(t, []string{"Label", "Node", "Tag"}, entityNames(findDomain(t, api, "Node")))
	assert.Equal(t, []string{"Owner"}, entityNames(findDomain(t, api, "Owner")))
}

func TestSchemaRefs(t *testing.T) {
	t.Parallel()
	s := &SchemaOrRef{Kind: ObjectSchema, Properties: []Property{
		{Name: "a", Schema: Reference(SchemaRef("A"))},
		{Name: "b", Schema: &SchemaOrRef{Kind: ArraySchema, Items: Reference(SchemaRef("B"))}},
		{Name: "c", Schema: &SchemaOrRef{Kind: AllOfSchema, Members: []*SchemaOrRef{Reference(SchemaRef("A")), Reference(SchemaRef("C"))}}},
		{Name: "p", Schema: Reference("#/components/parameters/P")},
	}}
	assert.Equal(t, []string{"A", "B", "C"}, s.SchemaRefs())

	var none *SchemaOrRef
	assert.Empty(t, none.SchemaRefs())
}

func TestParseHttpMethod(t *testing.T) {
	t.Parallel()
	m, ok := ParseHttpMethod(" PATCH ")
	assert.True(t, ok)
	assert.Equal(t, PATCH, m)

	_, ok = ParseHttpMethod("fetch")
	assert.False(t, ok)
}
