package e2e

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/ngrx-openapi-gen/internal/cli"
)

const flightSpec = `openapi: 3.0.3
info:
  title: Flight Ops
  version: '1.0.0'
paths:
  /flights:
    get:
      tags: [Flight]
      operationId: listFlights
      parameters:
        - name: from
          in: query
          schema:
            type: string
      responses:
        '200':
          description: ok
          content:
            application/json:
              schema:
                type: array
                items:
                  $ref: '#/components/schemas/Flight'
    post:
      tags: [Flight]
      operationId: createFlight
      summary: Create a flight
      requestBody:
        content:
          application/json:
            schema:
              $ref: '#/components/schemas/Flight'
      responses:
        '201':
          description: created
          content:
            application/json:
              schema:
                $ref: '#/components/schemas/Flight'
  /flights/{id}:
    get:
      tags: [Flight]
      operationId: getFlight
      parameters:
        - name: id
          in: path
          required: true
          schema:
            type: string
      responses:
        '200':
          description: ok
          content:
            application/json:
              schema:
                $ref: '#/components/schemas/Flight'
    delete:
      tags: [Flight]
      operationId: deleteFlight
      parameters:
        - name: id
          in: path
          required: true
          schema:
            type: string
      responses:
        '204':
          description: gone
  /passengers:
    get:
      tags: [Passenger]
      operationId: listPassengers
      responses:
        '200':
          description: ok
          content:
            application/json:
              schema:
                type: array
                items:
                  $ref: '#/components/schemas/Passenger'
components:
  schemas:
    Flight:
      type: object
      required: [id, status]
      properties:
        id:
          type: string
        status:
          type: string
          enum: [scheduled, delayed]
        gate:
          type: string
          nullable: true
        connections:
          type: array
          items:
            $ref: '#/components/schemas/Flight'
    Passenger:
      type: object
      required: [id]
      properties:
        id:
          type: integer
        flight:
          $ref: '#/components/schemas/Flight'
        contact:
          allOf:
            - $ref: '#/components/schemas/Contact'
            - type: object
              properties:
                seat:
                  type: string
    Contact:
      type: object
      properties:
        email:
          type: string
        phone:
          type: string
          nullable: true
`

func writeTempSpec(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "flight-ops.yaml")
	if err := os.WriteFile(p, []byte(flightSpec), 0o600); err != nil {
		t.Fatalf("write spec: %v", err)
	}
	return p
}

func runCLI(t *testing.T, args ...string) {
	t.Helper()
	root := cli.NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		t.Fatalf("cli execute %v: %v", args, err)
	}
}

func digestDir(t *testing.T, dir string) (files []string, sum string) {
	t.Helper()
	contents := map[string][]byte{}
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		files = append(files, rel)
		contents[rel] = b
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", dir, err)
	}
	sort.Strings(files)
	h := sha256.New()
	for _, rel := range files {
		_, _ = h.Write([]byte(rel))
		_, _ = h.Write(contents[rel])
	}
	return files, hex.EncodeToString(h.Sum(nil))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(b)
}

func TestE2E_Generate_Deterministic(t *testing.T) {
	t.Parallel()
	spec := writeTempSpec(t)
	dir1 := t.TempDir()
	dir2 := t.TempDir()

	runCLI(t, "generate", "--input", spec, "--output", dir1, "--zod", "--force")
	runCLI(t, "generate", "--input", spec, "--output", dir2, "--zod", "--force")

	files1, sum1 := digestDir(t, dir1)
	files2, sum2 := digestDir(t, dir2)
	if !slices.Equal(files1, files2) || sum1 != sum2 {
		t.Fatalf("generated outputs differ between runs\nfiles1=%v\nfiles2=%v\nsum1=%s\nsum2=%s", files1, files2, sum1, sum2)
	}

	want := []string{
		"flight-ops/api-base-path.token.ts",
		"flight-ops/flight/application/flight.store.ts",
		"flight-ops/flight/entities/flight.model.ts",
		"flight-ops/passenger/application/passenger.store.ts",
		"flight-ops/passenger/entities/contact.model.ts",
		"flight-ops/passenger/entities/passenger.model.ts",
	}
	if !slices.Equal(files1, want) {
		t.Fatalf("unexpected file set:\n got %v\nwant %v", files1, want)
	}
}

func TestE2E_Generate_Layout(t *testing.T) {
	t.Parallel()
	spec := writeTempSpec(t)
	dir := t.TempDir()
	runCLI(t, "generate", "-i", spec, "-o", dir)

	token := readFile(t, filepath.Join(dir, "flight-ops", "api-base-path.token.ts"))
	if !strings.Contains(token, "export const FLIGHT_OPS_BASE_PATH = new InjectionToken<string>('FLIGHT_OPS_BASE_PATH');") {
		t.Fatalf("unexpected token file:\n%s", token)
	}

	store := readFile(t, filepath.Join(dir, "flight-ops", "flight", "application", "flight.store.ts"))
	for _, want := range []string{
		"import { FLIGHT_OPS_BASE_PATH } from '../../api-base-path.token';",
		"import type { FlightModel } from '../entities/flight.model';",
		"export const FlightStore = signalStore(",
		"flights: httpResource<FlightModel[]>(",
		"flightDetail: httpResource<FlightModel | undefined>(",
		"createFlight: httpMutation<FlightModel, FlightModel>({",
		"deleteFlight: httpMutation<FlightByIdParams, void>({",
		"store._flightsReload();",
	} {
		if !strings.Contains(store, want) {
			t.Errorf("flight store missing %q", want)
		}
	}

	model := readFile(t, filepath.Join(dir, "flight-ops", "passenger", "entities", "passenger.model.ts"))
	if !strings.Contains(model, "import type { FlightModel } from '../../flight/entities/flight.model';") {
		t.Fatalf("passenger model lacks cross-domain import:\n%s", model)
	}
	if !strings.Contains(model, "import type { ContactModel } from './contact.model';") {
		t.Fatalf("passenger model lacks contact import:\n%s", model)
	}
	if !strings.Contains(model, "contact?: ContactModel & {") {
		t.Fatalf("passenger model lacks contact intersection:\n%s", model)
	}
}

func TestE2E_ZodToggle(t *testing.T) {
	t.Parallel()
	spec := writeTempSpec(t)
	plain := t.TempDir()
	zod := t.TempDir()
	runCLI(t, "generate", "-i", spec, "-o", plain)
	runCLI(t, "generate", "-i", spec, "-o", zod, "--zod")

	files, _ := digestDir(t, plain)
	for _, rel := range files {
		if content := readFile(t, filepath.Join(plain, rel)); strings.Contains(content, "zod") {
			t.Errorf("%s mentions zod without --zod", rel)
		}
	}

	store := readFile(t, filepath.Join(zod, "flight-ops", "flight", "application", "flight.store.ts"))
	if !strings.Contains(store, "import { z } from 'zod';") {
		t.Errorf("zod store lacks zod import:\n%s", store)
	}
	if !strings.Contains(store, "parse: (data: unknown) => z.array(FlightModelSchema).parse(data),") {
		t.Errorf("zod store lacks collection parse:\n%s", store)
	}
	model := readFile(t, filepath.Join(zod, "flight-ops", "flight", "entities", "flight.model.ts"))
	if !strings.Contains(model, "export const FlightModelSchema: z.ZodType<FlightModel> = z.object({") {
		t.Errorf("zod model lacks schema:\n%s", model)
	}
	if !strings.Contains(model, "z.lazy(() => FlightModelSchema)") {
		t.Errorf("zod model lacks self reference:\n%s", model)
	}
}

// ambientModules declares the parts of the Angular, NgRx and zod APIs the
// generated sources use, so tsc can check them without node_modules.
const ambientModules = `declare module '@angular/core' {
  export class InjectionToken<T> {
    constructor(description: string);
    protected readonly _type: T;
  }
  export function inject<T>(token: InjectionToken<T>): T;
}

declare module '@angular/common/http' {
  export interface HttpResourceOptions<T> {
    defaultValue?: T;
    parse?: (data: unknown) => T;
  }
  export function httpResource<T>(request: () => unknown, options?: HttpResourceOptions<T>): unknown;
}

declare module '@ngrx/signals' {
  export function signalStore(...features: unknown[]): new () => unknown;
  export function withProps(factory: (store: any) => object): unknown;
  export function withState<S extends object>(state: S): unknown;
  export function withMethods(factory: (store: any) => object): unknown;
  export function patchState(store: unknown, ...updates: object[]): void;
}

declare module '@angular-architects/ngrx-toolkit' {
  export interface HttpMutationOptions<I, O> {
    request: (input: I) => { url: string; method: string; body?: unknown };
    parse?: (data: unknown) => O;
    onSuccess?: (result: O) => void;
  }
  export function withResource(factory: (store: any) => object): unknown;
  export function withMutations(factory: (store: any) => object): unknown;
  export function httpMutation<I, O>(options: HttpMutationOptions<I, O>): unknown;
}

declare module 'zod' {
  interface Schema<T> {
    parse(data: unknown): T;
    nullable(): Schema<T | null>;
    optional(): Schema<T | undefined>;
  }
  interface ZodApi {
    string(): Schema<string>;
    number(): Schema<number>;
    boolean(): Schema<boolean>;
    null(): Schema<null>;
    unknown(): Schema<unknown>;
    literal<T extends string | number | boolean>(value: T): Schema<T>;
    enum(values: readonly string[]): Schema<string>;
    array<T>(item: Schema<T>): Schema<T[]>;
    object(shape: Record<string, Schema<any>>): Schema<any>;
    record(key: Schema<string>, value: Schema<any>): Schema<Record<string, any>>;
    union(options: readonly Schema<any>[]): Schema<any>;
    intersection(left: Schema<any>, right: Schema<any>): Schema<any>;
    lazy<T>(getter: () => Schema<T>): Schema<T>;
  }
  export const z: ZodApi;
  export namespace z {
    export type ZodType<T> = Schema<T>;
  }
}
`

// TestE2E_TypeCheck compiles the generated sources with tsc in strict mode
// when NGRX_OPENAPI_GEN_E2E_ONLINE=1. A local tsc is preferred; otherwise npx
// fetches typescript. Compiler errors fail the test.
func TestE2E_TypeCheck(t *testing.T) {
	if os.Getenv("NGRX_OPENAPI_GEN_E2E_ONLINE") != "1" {
		t.Skip("set NGRX_OPENAPI_GEN_E2E_ONLINE=1 to type-check output")
	}
	name, prefix := "tsc", []string(nil)
	if !haveCmd("tsc") {
		if !haveCmd("npx") {
			t.Skip("neither tsc nor npx is on PATH")
		}
		name, prefix = "npx", []string{"--yes", "-p", "typescript", "tsc"}
	}

	spec := writeTempSpec(t)
	for _, mode := range []string{"plain", "zod"} {
		t.Run(mode, func(t *testing.T) {
			dir := t.TempDir()
			args := []string{"generate", "-i", spec, "-o", dir}
			if mode == "zod" {
				args = append(args, "--zod")
			}
			runCLI(t, args...)

			list, _ := digestDir(t, dir)
			stubs := filepath.Join(dir, "ambient.d.ts")
			if err := os.WriteFile(stubs, []byte(ambientModules), 0o600); err != nil {
				t.Fatalf("write ambient modules: %v", err)
			}
			files := []string{stubs}
			for _, rel := range list {
				files = append(files, filepath.Join(dir, filepath.FromSlash(rel)))
			}
			tscArgs := append(prefix, "--noEmit", "--strict", "--target", "es2022", "--module", "es2022", "--moduleResolution", "bundler")
			if err := runCmdWithTimeout(dir, 3*time.Minute, name, append(tscArgs, files...)...); err != nil {
				t.Fatalf("tsc rejected generated sources: %v", err)
			}
		})
	}
}

func haveCmd(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func runCmdWithTimeout(dir string, timeout time.Duration, name string, args ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return &execError{err: err, output: out.String()}
	}
	return nil
}

type execError struct {
	err    error
	output string
}

func (e *execError) Error() string { return e.err.Error() + ": " + e.output }
