package spec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// ErrorCode categorizes loader errors for clearer handling and messaging.
type ErrorCode string

const (
	InputError      ErrorCode = "InputError"
	NetworkError    ErrorCode = "NetworkError"
	ParseError      ErrorCode = "ParseError"
	ValidationError ErrorCode = "ValidationError"
)

// SpecError is a structured error with optional location and JSON Pointer.
type SpecError struct {
	Code        ErrorCode
	Message     string
	Location    string // file path or URL
	JSONPointer string // e.g. "#/paths/~1pets/get"
	Cause       error
}

func (e *SpecError) Error() string { return e.Message }
func (e *SpecError) Unwrap() error { return e.Cause }

// Format is the serialization of a source document.
type Format string

const (
	FormatUnknown Format = ""
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
)

// Document is a loaded OpenAPI v3 document together with the bytes it was
// decoded from.
type Document struct {
	OpenAPI  *openapi3.T
	Raw      []byte
	Format   Format
	Location string
}

// Settings configures loader behavior.
type Settings struct {
	// HTTPTimeout bounds each HTTP request.
	HTTPTimeout time.Duration
	// MaxRetries for transient HTTP failures (>=500, 429, or network errors).
	MaxRetries int
	// BackoffBase is the base delay for exponential backoff.
	BackoffBase time.Duration
	// AllowFileRefs permits file-based external refs for documents fetched
	// over HTTP. Local files always allow them.
	AllowFileRefs bool
}

// DefaultSettings returns recommended defaults.
func DefaultSettings() Settings {
	return Settings{
		HTTPTimeout: 10 * time.Second,
		MaxRetries:  3,
		BackoffBase: 200 * time.Millisecond,
	}
}

// Option mutates Settings.
type Option func(*Settings)

func WithHTTPTimeout(d time.Duration) Option { return func(s *Settings) { s.HTTPTimeout = d } }
func WithMaxRetries(n int) Option { return func(s *Settings) { s.MaxRetries = n } }
func WithBackoffBase(d time.Duration) Option { return func(s *Settings) { s.BackoffBase = d } }
func WithAllowFileRefs(allow bool) Option { return func(s *Settings) { s.AllowFileRefs = allow } }

// Load reads an OpenAPI v3.0 document from a filesystem path or an
// http/https URL. The format is taken from the file extension, then from the
// response Content-Type, and otherwise detected by trying JSON before YAML.
func Load(ctx context.Context, input string, opts ...Option) (*Document, error) {
	if strings.TrimSpace(input) == "" {
		return nil, &SpecError{Code: InputError, Message: "spec: input is empty"}
	}

	settings := DefaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}

	u, uerr := url.Parse(input)
	isURL := uerr == nil && u.Scheme != "" && u.Host != ""

	if isURL {
		scheme := strings.ToLower(u.Scheme)
		if scheme == "file" {
			return nil, &SpecError{Code: InputError, Message: "spec: file:// URLs are blocked; pass a local path instead", Location: input}
		}
		if scheme != "http" && scheme != "https" {
			return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("spec: unsupported URL scheme %q (only http/https allowed)", scheme), Location: input}
		}

		raw, contentType, err := fetchWithRetry(ctx, input, settings)
		if err != nil {
			return nil, &SpecError{Code: NetworkError, Message: fmt.Sprintf("fetch %s: %v", input, err), Location: input, Cause: err}
		}
		format := formatFromExtension(u.Path)
		if format == FormatUnknown {
			format = formatFromContentType(contentType)
		}
		return decode(raw, format, input, u, newLoader(settings, false))
	}

	abs, err := filepath.Abs(input)
	if err != nil {
		return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("resolve path: %v", err), Location: input, Cause: err}
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("read file %s: %v", abs, err), Location: abs, Cause: err}
	}
	return decode(raw, formatFromExtension(abs), abs, &url.URL{Path: filepath.ToSlash(abs)}, newLoader(settings, true))
}

// LoadData decodes an in-memory document. External references are not
// followed.
func LoadData(data []byte) (*Document, error) {
	loader := openapi3.NewLoader()
	return decode(data, FormatUnknown, "", nil, loader)
}

func decode(raw []byte, format Format, location string, base *url.URL, loader *openapi3.Loader) (*Document, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil, &SpecError{Code: InputError, Message: "Provided OpenAPI document is empty.", Location: location}
	}

	resolved, err := checkSyntax([]byte(trimmed), format)
	if err != nil {
		return nil, &SpecError{Code: ParseError, Message: err.Error(), Location: location, Cause: err}
	}

	if err := checkVersion(raw); err != nil {
		return nil, &SpecError{Code: ValidationError, Message: err.Error(), Location: location, Cause: err}
	}

	var doc *openapi3.T
	if base != nil {
		doc, err = loader.LoadFromDataWithPath(raw, base)
	} else {
		doc, err = loader.LoadFromData(raw)
	}
	if err != nil {
		return nil, mapLoadErr(err, location)
	}
	return &Document{OpenAPI: doc, Raw: raw, Format: resolved, Location: location}, nil
}

// checkSyntax verifies the document parses in its declared format. With no
// declared format JSON is tried first, then YAML.
func checkSyntax(data []byte, format Format) (Format, error) {
	switch format {
	case FormatJSON:
		if !json.Valid(data) {
			var v any
			err := json.Unmarshal(data, &v)
			return format, fmt.Errorf("parse JSON: %w", err)
		}
		return format, nil
	case FormatYAML:
		var n yaml.Node
		if err := yaml.Unmarshal(data, &n); err != nil {
			return format, fmt.Errorf("parse YAML: %w", err)
		}
		return format, nil
	default:
		if json.Valid(data) {
			return FormatJSON, nil
		}
		var n yaml.Node
		if err := yaml.Unmarshal(data, &n); err != nil {
			return FormatUnknown, fmt.Errorf("Unable to parse OpenAPI document as JSON or YAML: %w", err)
		}
		return FormatYAML, nil
	}
}

func formatFromExtension(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatUnknown
	}
}

func formatFromContentType(ct string) Format {
	media, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return FormatUnknown
	}
	switch {
	case strings.HasSuffix(media, "json"):
		return FormatJSON
	case strings.Contains(media, "yaml"):
		return FormatYAML
	default:
		return FormatUnknown
	}
}

// checkVersion accepts OpenAPI 3.0.x only.
func checkVersion(data []byte) error {
	var root map[string]any
	if err := yaml.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("parse spec: %w", err)
	}
	if v, ok := root["openapi"]; ok {
		s := strings.TrimSpace(fmt.Sprint(v))
		switch {
		case strings.HasPrefix(s, "3.0"):
			return nil
		case strings.HasPrefix(s, "3."):
			return fmt.Errorf("spec: OpenAPI %s is not supported (expected 3.0.x)", s)
		}
	}
	if _, ok := root["swagger"]; ok {
		return errors.New("spec: Swagger/OpenAPI v2 documents are not supported (expected 'openapi: 3.0.x')")
	}
	return errors.New("spec: missing or unknown version (expected 'openapi: 3.0.x')")
}

func newLoader(settings Settings, rootIsFile bool) *openapi3.Loader {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true
	client := &http.Client{Timeout: settings.HTTPTimeout}
	allowFile := settings.AllowFileRefs || rootIsFile
	loader.ReadFromURIFunc = func(l *openapi3.Loader, uri *url.URL) ([]byte, error) {
		switch strings.ToLower(uri.Scheme) {
		case "", "file":
			if !allowFile {
				return nil, fmt.Errorf("blocked file ref: %s", uri.String())
			}
			path := uri.Path
			if path == "" {
				path = uri.Opaque
			}
			return os.ReadFile(filepath.FromSlash(path))
		case "http", "https":
			req, err := http.NewRequestWithContext(l.Context, http.MethodGet, uri.String(), nil)
			if err != nil {
				return nil, err
			}
			resp, err := client.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 400 {
				return nil, fmt.Errorf("http %d: %s", resp.StatusCode, uri.String())
			}
			return io.ReadAll(resp.Body)
		default:
			return nil, fmt.Errorf("unsupported ref scheme: %s", uri.Scheme)
		}
	}
	return loader
}

func fetchWithRetry(ctx context.Context, rawURL string, settings Settings) ([]byte, string, error) {
	client := &http.Client{Timeout: settings.HTTPTimeout}
	var lastErr error
	backoff := settings.BackoffBase
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	attempts := settings.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, "", err
		}
		req.Header.Set("Accept", "application/json, application/yaml;q=0.9, */*;q=0.5")
		resp, err := client.Do(req)
		if err == nil && resp.StatusCode < 300 {
			defer resp.Body.Close()
			body, rerr := io.ReadAll(resp.Body)
			return body, resp.Header.Get("Content-Type"), rerr
		}
		if err != nil {
			lastErr = err
		} else {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			resp.Body.Close()
			if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return nil, "", fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			}
			lastErr = fmt.Errorf("transient http error %d", resp.StatusCode)
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, "", ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	if lastErr == nil {
		lastErr = errors.New("fetch failed")
	}
	return nil, "", lastErr
}

func mapLoadErr(err error, location string) error {
	code := ValidationError
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "unmarshal") || strings.Contains(lower, "invalid character") || strings.Contains(lower, "parse") {
		code = ParseError
	}
	return &SpecError{Code: code, Message: err.Error(), Location: location, JSONPointer: extractJSONPointer(err), Cause: err}
}

var jsonPtrRe = regexp.MustCompile(`#/[^\s'"]+`)

func extractJSONPointer(err error) string {
	if err == nil {
		return ""
	}
	var me openapi3.MultiError
	if errors.As(err, &me) && len(me) > 0 {
		return extractJSONPointer(me[0])
	}
	var se *openapi3.SchemaError
	if errors.As(err, &se) {
		if parts := se.JSONPointer(); len(parts) > 0 {
			return "#/" + strings.Join(parts, "/")
		}
	}
	if m := jsonPtrRe.FindString(err.Error()); m != "" {
		return m
	}
	return ""
}
