// Package generator runs the full pipeline: a loaded OpenAPI document is
// parsed into an ApiSpec, and the ApiSpec is rendered into model, store and
// token files rooted under the kebab-cased API name.
package generator

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/mark3labs/ngrx-openapi-gen/internal/emitter"
	"github.com/mark3labs/ngrx-openapi-gen/internal/emitter/entityemitter"
	"github.com/mark3labs/ngrx-openapi-gen/internal/emitter/storeemitter"
	"github.com/mark3labs/ngrx-openapi-gen/internal/naming"
	"github.com/mark3labs/ngrx-openapi-gen/internal/render"
	genspec "github.com/mark3labs/ngrx-openapi-gen/internal/spec"
)

// TokenFileName is the base-path token file at the root of every API folder.
const TokenFileName = "api-base-path.token.ts"

// Options controls parsing and rendering.
type Options struct {
	ApiName       string // derived from info.title when empty
	BasePathToken string // derived from ApiName when empty
	ModelSuffix   string // defaults to render.DefaultModelSuffix
	Zod           bool
	// PreferEntityNames switches the mutation naming policy to
	// create/update/remove + entity first.
	PreferEntityNames bool
	IncludeTags       []string
	ExcludeTags       []string
	Methods           []genspec.HttpMethod
	// PathPatterns are regular expressions matched against path templates.
	PathPatterns []string
	Logger       genspec.Logger
}

// Generator is safe for concurrent use; it holds no per-run state.
type Generator struct {
	opts   Options
	render render.Config
}

// New returns a Generator for opts.
func New(opts Options) *Generator {
	cfg := render.DefaultConfig()
	if opts.ModelSuffix != "" {
		cfg.ModelSuffix = opts.ModelSuffix
	}
	if opts.Logger == nil {
		opts.Logger = genspec.NopLogger{}
	}
	return &Generator{opts: opts, render: cfg}
}

// ParseDocument builds the ApiSpec for doc.
func (g *Generator) ParseDocument(ctx context.Context, doc *genspec.Document) (*genspec.ApiSpec, error) {
	api, err := genspec.BuildApiSpec(ctx, doc,
		genspec.WithApiName(g.opts.ApiName),
		genspec.WithBasePathToken(g.opts.BasePathToken),
		genspec.WithIncludeTags(g.opts.IncludeTags),
		genspec.WithExcludeTags(g.opts.ExcludeTags),
		genspec.WithMethods(g.opts.Methods),
		genspec.WithPathPatterns(g.opts.PathPatterns),
		genspec.WithLogger(g.opts.Logger),
	)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return api, nil
}

// GenerateCode renders every file for api: the token file, then each
// domain's models in domain order, then each domain's store. The entity index
// is complete before any domain is rendered; domains are then rendered
// concurrently and reassembled in order, so output is deterministic.
func (g *Generator) GenerateCode(ctx context.Context, api *genspec.ApiSpec) ([]emitter.File, error) {
	if api == nil {
		return nil, errors.New("generate code: nil ApiSpec")
	}
	root := naming.ToKebabCase(api.ApiName)
	idx := entityemitter.BuildIndex(api.Domains)

	entities := entityemitter.New(entityemitter.Options{Render: g.render, Zod: g.opts.Zod})
	stores := storeemitter.New(storeemitter.Options{
		BasePathToken:     api.BasePathToken,
		Render:            g.render,
		Zod:               g.opts.Zod,
		PreferEntityNames: g.opts.PreferEntityNames,
	})

	models := make([][]emitter.File, len(api.Domains))
	storeFiles := make([]emitter.File, len(api.Domains))
	eg, ctx := errgroup.WithContext(ctx)
	for i, d := range api.Domains {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			models[i] = entities.EmitDomain(d, idx)
			storeFiles[i] = stores.Emit(d, idx)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}

	files := []emitter.File{TokenFile(api.BasePathToken)}
	for _, m := range models {
		files = append(files, m...)
	}
	files = append(files, storeFiles...)
	for i := range files {
		files[i].Path = root + "/" + files[i].Path
	}
	return files, nil
}

// Generate parses doc and renders its files. The ApiSpec is returned as well
// so callers can dump it.
func (g *Generator) Generate(ctx context.Context, doc *genspec.Document) (*genspec.ApiSpec, []emitter.File, error) {
	api, err := g.ParseDocument(ctx, doc)
	if err != nil {
		return nil, nil, err
	}
	files, err := g.GenerateCode(ctx, api)
	if err != nil {
		return nil, nil, err
	}
	return api, files, nil
}

// TokenFile declares the injection token that supplies the API base URL.
func TokenFile(token string) emitter.File {
	doc := emitter.DocComment("Injection token for the API base path.\n"+
		"Provide this token in your application to configure the base URL for API requests.\n"+
		"\n"+
		"@example\n"+
		"```typescript\n"+
		"providers: [\n"+
		"  { provide: "+token+", useValue: 'https://api.example.com' }\n"+
		"]\n"+
		"```", "")
	content := emitter.Imports([]emitter.Import{{Names: []string{"InjectionToken"}, From: "@angular/core"}}) +
		"\n\n" + doc +
		"export const " + token + " = new InjectionToken<string>(" + emitter.Quote(token) + ");\n"
	return emitter.File{Path: TokenFileName, Content: content}
}
