// Package sandbox runs a job's document transformation inside an isolated,
// single-use environment and reports back the cleaned document plus the
// before/after metadata extracted by the job type's own analyze binary.
package sandbox

import (
	"context"

	"github.com/TUD-CERT/docleaner/internal/job"
)

// RawMetadata is the unprocessed analyze-step output: a flat map of
// "Group:Name" tags found in the primary document, and the same for each
// embedded sub-document, keyed by an arbitrary name the analyze binary
// assigned it. It is shaped the way an exiftool-style dump reads, before
// any job type's Processor groups and tags it into a metadata.Document.
type RawMetadata struct {
	Primary map[string]interface{}            `json:"primary"`
	Embeds  map[string]map[string]interface{} `json:"embeds"`
	Signed  bool                              `json:"signed"`
}

// Result is everything a sandbox run produces. Success is false, never an
// error return, when the sandboxed transformation itself failed (bad
// input, a crashing analyze/process binary) — only infrastructure failures
// (the container runtime is unreachable, the image is missing) surface as
// an error from Process.
type Result struct {
	Success        bool
	Result         []byte
	MetadataSrc    RawMetadata
	MetadataResult RawMetadata
	Log            []string
}

// Sandbox executes one job's transformation against src using the given
// container image, with the job's field overrides forwarded as params.
type Sandbox interface {
	Process(ctx context.Context, image string, src []byte, params job.Params) (Result, error)
}
