package spec

import (
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// kin-openapi decodes every JSON object into a Go map, which loses the order
// in which paths, responses, media types and properties were declared. The
// helpers below walk the raw YAML node tree alongside the decoded document to
// recover that order.

func parseSourceRoot(raw []byte) *yaml.Node {
	if len(raw) == 0 {
		return nil
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil
	}
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		return deref(doc.Content[0])
	}
	return deref(&doc)
}

func deref(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	n = deref(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return deref(n.Content[i+1])
		}
	}
	return nil
}

func mappingKeys(n *yaml.Node) []string {
	n = deref(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	keys := make([]string, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		keys = append(keys, n.Content[i].Value)
	}
	return keys
}

func sequenceItem(n *yaml.Node, i int) *yaml.Node {
	n = deref(n)
	if n == nil || n.Kind != yaml.SequenceNode || i < 0 || i >= len(n.Content) {
		return nil
	}
	return deref(n.Content[i])
}

func nodePath(n *yaml.Node, keys ...string) *yaml.Node {
	for _, k := range keys {
		if n == nil {
			return nil
		}
		n = mappingValue(n, k)
	}
	return n
}

// nodeAtPointer resolves a local reference such as
// "#/components/schemas/Flight" against root.
func nodeAtPointer(root *yaml.Node, ref string) *yaml.Node {
	idx := strings.Index(ref, "#/")
	if root == nil || idx != 0 {
		return nil
	}
	n := root
	for _, tok := range strings.Split(ref[2:], "/") {
		tok = strings.ReplaceAll(strings.ReplaceAll(tok, "~1", "/"), "~0", "~")
		switch deref(n).Kind {
		case yaml.SequenceNode:
			i, err := strconv.Atoi(tok)
			if err != nil {
				return nil
			}
			n = sequenceItem(n, i)
		default:
			n = mappingValue(n, tok)
		}
		if n == nil {
			return nil
		}
	}
	return n
}

// orderedKeys returns the keys of m in the order they appear in node. Keys
// missing from node follow in sorted order, so a nil node yields a fully
// sorted, deterministic result.
func orderedKeys[V any](m map[string]V, node *yaml.Node) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	seen := make(map[string]struct{}, len(m))
	for _, k := range mappingKeys(node) {
		if _, ok := m[k]; !ok {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	var rest []string
	for k := range m {
		if _, ok := seen[k]; !ok {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}
