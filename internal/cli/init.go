package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

const defaultConfigFile = "ngrx-openapi-gen.yaml"

// InitConfig captures the options for the init command.
type InitConfig struct {
	OutputPath string
	Force      bool
	Verbose    bool
}

var initRunner = runInit

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a sample ngrx-openapi-gen configuration file",
		Long:  "Scaffold a commented ngrx-openapi-gen configuration file that documents available options.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cmd.Flags().GetString("out")
			if err != nil {
				return err
			}
			force, err := cmd.Flags().GetBool("force")
			if err != nil {
				return err
			}
			verbose, err := cmd.Flags().GetBool("verbose")
			if err != nil {
				return err
			}
			cfg := &InitConfig{
				OutputPath: out,
				Force:      force,
				Verbose:    verbose,
			}
			return initRunner(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	cmd.Flags().String("out", defaultConfigFile, "Where to write the sample config file")
	cmd.Flags().Bool("force", false, "Overwrite the target file if it already exists")

	return cmd
}

func runInit(ctx context.Context, cfg *InitConfig, w io.Writer) error {
	_ = ctx

	out := strings.TrimSpace(cfg.OutputPath)
	if out == "" {
		out = defaultConfigFile
	}
	absPath, err := filepath.Abs(out)
	if err != nil {
		return fmt.Errorf("init: resolve output path: %w", err)
	}

	if st, err := os.Stat(absPath); err == nil && !cfg.Force && st.Mode().IsRegular() {
		return newUsageError(fmt.Sprintf("init: %q already exists (use --force to overwrite)", absPath))
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return wrapUsageError(fmt.Sprintf("init: cannot create parent directory: %v", err), err)
	}

	content := strings.TrimSpace(sampleConfigYAML) + "\n"

	tmp := absPath + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return wrapUsageError(fmt.Sprintf("init: cannot write temp file: %v\nHint: choose a different --out or check directory permissions.", err), err)
	}
	if err := os.Rename(tmp, absPath); err != nil {
		_ = os.Remove(tmp)
		return wrapUsageError(fmt.Sprintf("init: cannot place file at %s: %v", absPath, err), err)
	}
	fmt.Fprintf(w, "Wrote sample config to %s\n", absPath)
	return nil
}

// sampleConfigYAML documents every key the generate command accepts.
const sampleConfigYAML = `# ngrx-openapi-gen configuration (YAML)
# All fields are optional. Command-line flags override config values.

# Path or URL to the OpenAPI 3.0 document (http/https or local file).
# input: ./openapi.yaml

# Output directory. Required unless dryRun is set.
# output: ./src/app/api

# API name. Derived from info.title, then from the input file name.
# apiName: FlightApi

# Injection token that supplies the base URL. Defaults to <API_NAME>_BASE_PATH.
# basePathToken: FLIGHT_API_BASE_PATH

# Suffix appended to model type names.
# modelSuffix: Model

# Emit zod schemas and parse responses at runtime.
# zod: false

# Name mutations create/update/remove + entity before using the operationId.
# preferEntityNames: false

# Only include operations with these tags (comma-separated or list).
# includeTags: [Flight, Booking]

# Exclude operations with these tags (comma-separated or list).
# excludeTags: [internal]

# Only include operations using these HTTP methods.
# methods: [get, post]

# Only include paths matching one of these regular expressions.
# paths: ['^/flights']

# Follow file-based $refs in documents fetched over HTTP.
# allowFileRefs: false

# Write the intermediate ApiSpec as JSON to this path.
# debugSpec: ./api-spec.json

# Preview generated files without writing them.
# dryRun: false

# Overwrite a non-empty output directory.
# force: false

# Enable verbose logging.
# verbose: false
`
