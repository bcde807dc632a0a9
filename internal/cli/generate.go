package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/mark3labs/ngrx-openapi-gen/internal/generator"
	"github.com/mark3labs/ngrx-openapi-gen/internal/naming"
	genspec "github.com/mark3labs/ngrx-openapi-gen/internal/spec"
)

// defaultApiName is used when neither the flag, the document title nor the
// input file name yield a usable name.
const defaultApiName = "GeneratedApi"

// GenerateConfig captures all inputs that influence the generate command after
// merging defaults, config file values, and CLI overrides.
type GenerateConfig struct {
	Input             string
	Output            string
	ApiName           string
	BasePathToken     string
	ModelSuffix       string
	Zod               bool
	PreferEntityNames bool
	IncludeTags       []string
	ExcludeTags       []string
	Methods           []string
	Paths             []string
	AllowFileRefs     bool
	DebugSpec         string
	ConfigPath        string
	DryRun            bool
	Force             bool
	Verbose           bool
}

func defaultGenerateConfig() GenerateConfig {
	return GenerateConfig{}
}

var generateRunner = runGenerate

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate models and signal stores from an OpenAPI document",
		Long: "Generate TypeScript models and NgRx Signal Stores from an OpenAPI 3.0 document. " +
			"Options can be provided via flags, config files, or defaults.",
		Example: strings.TrimSpace(`  ngrx-openapi-gen generate -i openapi.yaml -o ./src/app/api --zod
  ngrx-openapi-gen --config ngrx-openapi-gen.yaml generate --force --dry-run`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveGenerateConfig(cmd)
			if err != nil {
				return err
			}
			return generateRunner(cmd.Context(), cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.StringP("input", "i", "", "Path or URL to the OpenAPI 3.0 document")
	flags.StringP("output", "o", "", "Output directory (required unless --dry-run)")
	flags.String("api-name", "", "API name; derived from info.title when omitted")
	flags.String("base-path-token", "", "Injection token name for the base URL; derived from the API name when omitted")
	flags.String("model-suffix", "", "Suffix appended to model type names (default \"Model\")")
	flags.Bool("zod", false, "Emit zod schemas and validate responses at runtime")
	flags.Bool("prefer-entity-names", false, "Name mutations create/update/remove + entity before falling back to the operationId")
	flags.StringSlice("include-tags", nil, "Only include operations with these tags")
	flags.StringSlice("exclude-tags", nil, "Exclude operations with these tags")
	flags.StringSlice("methods", nil, "Only include operations using these HTTP methods")
	flags.StringArray("paths", nil, "Only include paths matching this regular expression (repeatable)")
	flags.Bool("allow-file-refs", false, "Follow file-based $refs in documents fetched over HTTP")
	flags.String("debug-spec", "", "Write the intermediate ApiSpec as JSON to this path")
	flags.Bool("dry-run", false, "Preview generated files without writing them")
	flags.Bool("force", false, "Overwrite a non-empty output directory")

	return cmd
}

func resolveGenerateConfig(cmd *cobra.Command) (*GenerateConfig, error) {
	cfg := defaultGenerateConfig()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	configPath = strings.TrimSpace(configPath)
	if configPath != "" {
		cfg.ConfigPath = configPath
		if err := applyGenerateConfigFromFile(&cfg, configPath); err != nil {
			return nil, err
		}
	}

	if err := applyGenerateFlagOverrides(cmd.Flags(), &cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyGenerateFlagOverrides(flags *pflag.FlagSet, cfg *GenerateConfig) error {
	strs := map[string]*string{
		"input":           &cfg.Input,
		"output":          &cfg.Output,
		"api-name":        &cfg.ApiName,
		"base-path-token": &cfg.BasePathToken,
		"model-suffix":    &cfg.ModelSuffix,
		"debug-spec":      &cfg.DebugSpec,
	}
	for name, dst := range strs {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = strings.TrimSpace(value)
	}

	bools := map[string]*bool{
		"zod":                 &cfg.Zod,
		"prefer-entity-names": &cfg.PreferEntityNames,
		"allow-file-refs":     &cfg.AllowFileRefs,
		"dry-run":             &cfg.DryRun,
		"force":               &cfg.Force,
		"verbose":             &cfg.Verbose,
	}
	for name, dst := range bools {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetBool(name)
		if err != nil {
			return err
		}
		*dst = value
	}

	if flags.Changed("include-tags") {
		value, err := flags.GetStringSlice("include-tags")
		if err != nil {
			return err
		}
		cfg.IncludeTags = sanitizeTags(value)
	}
	if flags.Changed("exclude-tags") {
		value, err := flags.GetStringSlice("exclude-tags")
		if err != nil {
			return err
		}
		cfg.ExcludeTags = sanitizeTags(value)
	}
	if flags.Changed("methods") {
		value, err := flags.GetStringSlice("methods")
		if err != nil {
			return err
		}
		cfg.Methods = sanitizeTags(value)
	}
	if flags.Changed("paths") {
		value, err := flags.GetStringArray("paths")
		if err != nil {
			return err
		}
		cfg.Paths = sanitizeTags(value)
	}

	return nil
}

func (c *GenerateConfig) normalize() {
	c.Input = strings.TrimSpace(c.Input)
	c.Output = strings.TrimSpace(c.Output)
	c.ApiName = strings.TrimSpace(c.ApiName)
	c.BasePathToken = strings.TrimSpace(c.BasePathToken)
	c.ModelSuffix = strings.TrimSpace(c.ModelSuffix)
	c.DebugSpec = strings.TrimSpace(c.DebugSpec)
	c.IncludeTags = sanitizeTags(c.IncludeTags)
	c.ExcludeTags = sanitizeTags(c.ExcludeTags)
	c.Methods = sanitizeTags(c.Methods)
	c.Paths = sanitizeTags(c.Paths)
}

func (c *GenerateConfig) validate() error {
	if c.Input == "" {
		return newUsageError("generate: --input is required (set via flag or config file)")
	}
	if c.Output == "" && !c.DryRun {
		return newUsageError("Output directory is required unless --dry-run is used.")
	}
	if c.ModelSuffix != "" && !naming.IsValidIdentifier(c.ModelSuffix) {
		return newUsageError(fmt.Sprintf("generate: --model-suffix %q is not a valid identifier", c.ModelSuffix))
	}
	if c.BasePathToken != "" && !naming.IsValidIdentifier(c.BasePathToken) {
		return newUsageError(fmt.Sprintf("generate: --base-path-token %q is not a valid identifier", c.BasePathToken))
	}

	overlap := intersect(c.IncludeTags, c.ExcludeTags)
	if len(overlap) > 0 {
		return newUsageError(fmt.Sprintf("generate: include/exclude tags overlap: %s", strings.Join(overlap, ", ")))
	}
	if _, err := c.httpMethods(); err != nil {
		return err
	}
	for _, p := range c.Paths {
		if _, err := regexp.Compile(p); err != nil {
			return wrapUsageError(fmt.Sprintf("generate: --paths %q is not a valid regular expression: %v", p, err), err)
		}
	}

	return nil
}

// httpMethods converts Methods, rejecting names that are not HTTP methods.
func (c *GenerateConfig) httpMethods() ([]genspec.HttpMethod, error) {
	var out []genspec.HttpMethod
	for _, name := range c.Methods {
		m, ok := genspec.ParseHttpMethod(name)
		if !ok {
			return nil, newUsageError(fmt.Sprintf("generate: --methods %q is not an HTTP method", name))
		}
		out = append(out, m)
	}
	return out, nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func runGenerate(ctx context.Context, cfg *GenerateConfig, out, errOut io.Writer) error {
	logger := newLogger(errOut, cfg.Verbose)

	doc, err := genspec.Load(ctx, cfg.Input, genspec.WithAllowFileRefs(cfg.AllowFileRefs))
	if err != nil {
		var se *genspec.SpecError
		if errors.As(err, &se) {
			msg := se.Message
			if !strings.HasPrefix(msg, "spec: ") {
				msg = "spec: " + msg
			}
			if se.Location != "" {
				msg = fmt.Sprintf("%s\nLocation: %s", msg, se.Location)
			}
			if se.JSONPointer != "" {
				msg = fmt.Sprintf("%s\nPointer: %s", msg, se.JSONPointer)
			}
			return wrapUsageError(msg, err)
		}
		return err
	}
	logger.Debug("loaded document", "location", doc.Location, "format", doc.Format)

	methods, err := cfg.httpMethods()
	if err != nil {
		return err
	}
	gen := generator.New(generator.Options{
		ApiName:           determineApiName(cfg, doc),
		BasePathToken:     cfg.BasePathToken,
		ModelSuffix:       cfg.ModelSuffix,
		Zod:               cfg.Zod,
		PreferEntityNames: cfg.PreferEntityNames,
		IncludeTags:       cfg.IncludeTags,
		ExcludeTags:       cfg.ExcludeTags,
		Methods:           methods,
		PathPatterns:      cfg.Paths,
		Logger:            genspec.NewSlogLogger(logger),
	})
	api, err := gen.ParseDocument(ctx, doc)
	if err != nil {
		return err
	}
	files, err := gen.GenerateCode(ctx, api)
	if err != nil {
		return err
	}
	logger.Debug("generated files", "api", api.ApiName, "domains", len(api.Domains), "files", len(files))

	if cfg.Zod {
		fmt.Fprintln(out, "ℹ Zod validation enabled. Make sure to install zod in your project:")
		fmt.Fprintln(out, "  npm install zod")
	}

	if cfg.DebugSpec != "" {
		if err := writeDebugSpec(cfg.DebugSpec, api); err != nil {
			return err
		}
		fmt.Fprintf(out, "ApiSpec written to %s\n", cfg.DebugSpec)
	}

	if cfg.DryRun {
		fmt.Fprintln(out, "Dry run – no files written.")
		generator.PrintPlan(out, files)
		generator.PrintSummary(out, files, true, "")
		return nil
	}

	root, err := generator.WriteFiles(cfg.Output, files, cfg.Force)
	if err != nil {
		return wrapOutputError(err, cfg.Output)
	}
	fmt.Fprintf(out, "Wrote %d files to %s\n", len(files), root)
	generator.PrintSummary(out, files, false, root)
	return nil
}

// determineApiName prefers the flag, then the document title, then the input
// file name without extension.
func determineApiName(cfg *GenerateConfig, doc *genspec.Document) string {
	if cfg.ApiName != "" {
		return cfg.ApiName
	}
	if doc != nil && doc.OpenAPI != nil && doc.OpenAPI.Info != nil && hasAlnum(doc.OpenAPI.Info.Title) {
		return naming.NormalizeAPIName(doc.OpenAPI.Info.Title)
	}
	base := filepath.Base(cfg.Input)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if hasAlnum(base) {
		return naming.NormalizeAPIName(base)
	}
	return defaultApiName
}

func hasAlnum(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))
	}) >= 0
}

func writeDebugSpec(path string, api *genspec.ApiSpec) error {
	data, err := json.MarshalIndent(api, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ApiSpec: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return wrapOutputError(fmt.Errorf("mkdir: %w", err), path)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return wrapOutputError(err, path)
	}
	return nil
}

func wrapOutputError(err error, outDir string) error {
	// Provide clearer guidance for common FS failures.
	if errors.Is(err, generator.ErrOutputNotEmpty) {
		return wrapUsageError(fmt.Sprintf("output error for %s: %s", outDir, err), err)
	}
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "permission") || strings.Contains(lower, "read-only") || strings.Contains(lower, "mkdir") || strings.Contains(lower, "rename") {
		return wrapUsageError(fmt.Sprintf("output error for %s: %s\nHint: choose a different --output or use --force when appropriate.", outDir, err), err)
	}
	return err
}

func sanitizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func intersect(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(a))
	for _, item := range a {
		set[item] = struct{}{}
	}
	var result []string
	for _, item := range b {
		if _, ok := set[item]; ok {
			result = append(result, item)
		}
	}
	return result
}

func applyGenerateConfigFromFile(cfg *GenerateConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return newUsageError(fmt.Sprintf("read config file %q: %v", path, err))
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return newUsageError(fmt.Sprintf("parse config file %q: %v", path, err))
	}

	for key, value := range raw {
		if err := applyConfigField(cfg, normalizeKey(key), value); err != nil {
			if errors.Is(err, errUnknownField) {
				return newUsageError(fmt.Sprintf("config file %q: unknown field %q", path, key))
			}
			return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
		}
	}

	return nil
}

var errUnknownField = errors.New("unknown field")

func applyConfigField(cfg *GenerateConfig, key string, value any) error {
	var str *string
	var flag *bool
	var list *[]string
	switch key {
	case "input":
		str = &cfg.Input
	case "output", "out":
		str = &cfg.Output
	case "apiname":
		str = &cfg.ApiName
	case "basepathtoken":
		str = &cfg.BasePathToken
	case "modelsuffix":
		str = &cfg.ModelSuffix
	case "debugspec":
		str = &cfg.DebugSpec
	case "zod":
		flag = &cfg.Zod
	case "preferentitynames":
		flag = &cfg.PreferEntityNames
	case "allowfilerefs":
		flag = &cfg.AllowFileRefs
	case "dryrun":
		flag = &cfg.DryRun
	case "force":
		flag = &cfg.Force
	case "verbose":
		flag = &cfg.Verbose
	case "includetags":
		list = &cfg.IncludeTags
	case "excludetags":
		list = &cfg.ExcludeTags
	case "methods":
		list = &cfg.Methods
	case "paths":
		list = &cfg.Paths
	default:
		return errUnknownField
	}

	switch {
	case str != nil:
		v, err := valueAsString(value)
		if err != nil {
			return err
		}
		*str = v
	case flag != nil:
		v, err := valueAsBool(value)
		if err != nil {
			return err
		}
		*flag = v
	default:
		v, err := valueAsStringSlice(value)
		if err != nil {
			return err
		}
		*list = sanitizeTags(v)
	}
	return nil
}

func normalizeKey(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	lowered = strings.ReplaceAll(lowered, "-", "")
	lowered = strings.ReplaceAll(lowered, "_", "")
	return lowered
}

func valueAsString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

func valueAsStringSlice(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, nil
		}
		return splitAndTrim(val), nil
	case []any:
		items := make([]string, 0, len(val))
		for idx, elem := range val {
			str, err := valueAsString(elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", idx, err)
			}
			if str != "" {
				items = append(items, str)
			}
		}
		return items, nil
	default:
		return nil, fmt.Errorf("expected string or list, got %T", v)
	}
}

func valueAsBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "t", "1", "yes", "y":
			return true, nil
		case "false", "f", "0", "no", "n", "":
			return false, nil
		default:
			return false, fmt.Errorf("invalid boolean value %q", val)
		}
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}
