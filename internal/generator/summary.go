package generator

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/mark3labs/ngrx-openapi-gen/internal/emitter"
)

// sharedGroup collects files that sit directly in the API folder.
const sharedGroup = "shared"

// Group is one domain's share of the generated files.
type Group struct {
	Name  string
	Paths []string
}

// Summarize groups file paths by domain, the first segment below the API
// folder. Groups and the paths in them are sorted.
func Summarize(files []emitter.File) []Group {
	byName := map[string][]string{}
	for _, f := range files {
		segments := strings.Split(f.Path, "/")
		group := sharedGroup
		if len(segments) > 2 {
			group = segments[1]
		}
		byName[group] = append(byName[group], f.Path)
	}
	groups := make([]Group, 0, len(byName))
	for name, paths := range byName {
		sort.Strings(paths)
		groups = append(groups, Group{Name: name, Paths: paths})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return groups
}

// Label classifies a generated path as model, store or file.
func Label(path string) string {
	switch {
	case strings.Contains(path, "/entities/"):
		return "model"
	case strings.Contains(path, "/application/"):
		return "store"
	default:
		return "file"
	}
}

// PrintSummary writes the grouped summary. outputRoot is empty for dry runs.
func PrintSummary(w io.Writer, files []emitter.File, dryRun bool, outputRoot string) {
	if len(files) == 0 {
		fmt.Fprintln(w, "No files generated.")
		return
	}
	fmt.Fprintln(w, "Generation Summary")
	for _, g := range Summarize(files) {
		fmt.Fprintf(w, "✔ %s (%d files)\n", g.Name, len(g.Paths))
		for _, p := range g.Paths {
			fmt.Fprintf(w, "  %-5s %s\n", Label(p), p)
		}
	}
	switch {
	case dryRun:
		fmt.Fprintln(w, "Dry run complete – files were not written.")
	case outputRoot != "":
		fmt.Fprintf(w, "Output root: %s\n", outputRoot)
	}
}

// PrintPlan lists the files a run would write with their sizes in bytes.
func PrintPlan(w io.Writer, files []emitter.File) {
	planned := Plan(files)
	total := 0
	for _, p := range planned {
		total += p.Size
	}
	fmt.Fprintf(w, "Planned %d files (%d bytes)\n", len(planned), total)
	for _, p := range planned {
		fmt.Fprintf(w, "  %s %7d  %s\n", p.Mode, p.Size, p.RelPath)
	}
}
