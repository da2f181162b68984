// Package jobtype holds the static registry of supported job types: which
// MIME types they accept, which sandbox image processes them, and which
// pure function turns a sandbox's raw metadata dump into the reported
// DocumentMetadata.
package jobtype

import (
	"strings"

	"github.com/TUD-CERT/docleaner/internal/metadata"
	"github.com/TUD-CERT/docleaner/internal/sandbox"
)

// Processor post-processes the raw metadata a sandbox's analyze step
// produced into the DocumentMetadata reported to callers — grouping
// fields, tagging them, and redacting values too large or unsafe to keep
// verbatim.
type Processor func(raw sandbox.RawMetadata) metadata.Document

// Type is one registered job type: a name, the image its sandbox uses, the
// MIME types it accepts, and its metadata Processor.
type Type struct {
	Name      string
	Image     string
	MimeTypes []string
	Process   Processor
}

// Accepts reports whether t handles the given MIME type.
func (t Type) Accepts(mimeType string) bool {
	for _, m := range t.MimeTypes {
		if strings.EqualFold(m, mimeType) {
			return true
		}
	}
	return false
}

// Registry is the ordered set of job types configured at boot. Lookup is a
// first-match linear scan, same as the plugin list it is built from.
type Registry struct {
	types []Type
}

// NewRegistry builds a Registry from the given types, in priority order.
func NewRegistry(types ...Type) *Registry {
	return &Registry{types: types}
}

// ByName returns the job type registered under name.
func (r *Registry) ByName(name string) (Type, bool) {
	for _, t := range r.types {
		if t.Name == name {
			return t, true
		}
	}
	return Type{}, false
}

// ByMimeType returns the first job type that accepts mimeType.
func (r *Registry) ByMimeType(mimeType string) (Type, bool) {
	for _, t := range r.types {
		if t.Accepts(mimeType) {
			return t, true
		}
	}
	return Type{}, false
}

// All returns every registered job type, in priority order.
func (r *Registry) All() []Type {
	return append([]Type(nil), r.types...)
}
