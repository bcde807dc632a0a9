package render

import "github.com/mark3labs/ngrx-openapi-gen/internal/spec"

// CollectModelRefs returns the component schema names referenced anywhere
// inside s, in first-seen order and without duplicates. Traversal stops at
// references.
func CollectModelRefs(s *spec.SchemaOrRef) []string {
	return s.SchemaRefs()
}
