package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

const minimalSpecYAML = "" +
	"openapi: 3.0.0\n" +
	"info:\n" +
	"  title: Test API\n" +
	"  version: '1.0.0'\n" +
	"paths:\n" +
	"  /pets:\n" +
	"    get:\n" +
	"      tags: [Pet]\n" +
	"      operationId: listPets\n" +
	"      responses:\n" +
	"        '200':\n" +
	"          description: ok\n" +
	"          content:\n" +
	"            application/json:\n" +
	"              schema:\n" +
	"                type: array\n" +
	"                items:\n" +
	"                  $ref: '#/components/schemas/Pet'\n" +
	"components:\n" +
	"  schemas:\n" +
	"    Pet:\n" +
	"      type: object\n" +
	"      properties:\n" +
	"        id:\n" +
	"          type: integer\n"

func writeSpec(t *testing.T, dir string) string {
	t.Helper()
	specPath := filepath.Join(dir, "spec.yaml")
	if err := os.WriteFile(specPath, []byte(minimalSpecYAML), 0o600); err != nil {
		t.Fatalf("write spec: %v", err)
	}
	return specPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestGeneratePipeline_DryRun(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	specPath := writeSpec(t, dir)
	outDir := filepath.Join(dir, "out")

	out, err := execute(t, "generate", "--input", specPath, "--output", outDir, "--dry-run")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	for _, want := range []string{
		"Dry run – no files written.",
		"Planned 3 files (",
		"  test-api/pet/entities/pet.model.ts\n",
		"Generation Summary",
		"✔ pet (2 files)",
		"  store test-api/pet/application/pet.store.ts",
		"Dry run complete – files were not written.",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got: %s", want, out)
		}
	}
	if strings.Contains(out, "npm install zod") {
		t.Fatalf("zod notice printed without --zod: %s", out)
	}
	if _, err := os.Stat(outDir); err == nil {
		t.Fatalf("expected no writes on dry-run")
	}
}

func TestGeneratePipeline_MethodFilter(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	specPath := writeSpec(t, dir)

	out, err := execute(t, "generate", "-i", specPath, "--dry-run", "--methods", "post")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "Planned 1 files (") || strings.Contains(out, "pet.store.ts") {
		t.Fatalf("expected only the token file, got: %s", out)
	}

	out, err = execute(t, "generate", "-i", specPath, "--dry-run", "--methods", "GET", "--paths", "^/pets$")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "test-api/pet/application/pet.store.ts") {
		t.Fatalf("expected pet store, got: %s", out)
	}
}

func TestGeneratePipeline_WritesFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	specPath := writeSpec(t, dir)
	outDir := filepath.Join(dir, "out")
	debugPath := filepath.Join(dir, "debug", "api-spec.json")

	out, err := execute(t, "generate", "-i", specPath, "-o", outDir, "--zod", "--debug-spec", debugPath)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "npm install zod") {
		t.Fatalf("expected zod notice, got: %s", out)
	}
	if !strings.Contains(out, "Wrote 3 files to") || !strings.Contains(out, "Output root: ") {
		t.Fatalf("unexpected output: %s", out)
	}

	store, err := os.ReadFile(filepath.Join(outDir, "test-api", "pet", "application", "pet.store.ts"))
	if err != nil {
		t.Fatalf("read store: %v", err)
	}
	if !strings.Contains(string(store), "export const PetStore = signalStore(") {
		t.Fatalf("unexpected store: %s", store)
	}
	if !strings.Contains(string(store), "parse: (data: unknown) => z.array(PetModelSchema).parse(data),") {
		t.Fatalf("expected zod parse in store: %s", store)
	}

	data, err := os.ReadFile(debugPath)
	if err != nil {
		t.Fatalf("read debug spec: %v", err)
	}
	var dumped map[string]any
	if err := json.Unmarshal(data, &dumped); err != nil {
		t.Fatalf("decode debug spec: %v", err)
	}
	if len(dumped) == 0 {
		t.Fatalf("empty debug spec")
	}

	// A second run refuses the now non-empty directory.
	if _, err := execute(t, "generate", "-i", specPath, "-o", outDir); err == nil {
		t.Fatalf("expected error for non-empty output without --force")
	}
	if _, err := execute(t, "generate", "-i", specPath, "-o", outDir, "--force"); err != nil {
		t.Fatalf("generate --force: %v", err)
	}
}

func TestGeneratePipeline_SpecError(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	specPath := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(specPath, []byte("swagger: '2.0'\ninfo: {title: x, version: '1'}\npaths: {}\n"), 0o600); err != nil {
		t.Fatalf("write spec: %v", err)
	}

	_, err := execute(t, "generate", "-i", specPath, "--dry-run")
	if err == nil {
		t.Fatalf("expected error for unsupported document")
	}
	if !strings.HasPrefix(err.Error(), "spec: ") || strings.Count(err.Error(), "spec: ") != 1 || !strings.Contains(err.Error(), "not supported") {
		t.Fatalf("expected spec error message, got %v", err)
	}
}
