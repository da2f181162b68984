// Package job defines the Job aggregate and its one-way lifecycle state
// machine: CREATED -> QUEUED -> RUNNING -> {SUCCESS, ERROR}.
package job

import (
	"time"

	"github.com/TUD-CERT/docleaner/internal/metadata"
)

// Status is a job's position in its lifecycle.
type Status int

const (
	Created Status = iota
	Queued
	Running
	Success
	Error
)

func (s Status) String() string {
	switch s {
	case Created:
		return "created"
	case Queued:
		return "queued"
	case Running:
		return "running"
	case Success:
		return "success"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is a final state no further transition leaves.
func (s Status) Terminal() bool {
	return s == Success || s == Error
}

// FieldOverride lets a caller pin a metadata field to a specific value
// instead of letting the job type's default processing decide, addressed
// by the field's "Group:Name" id.
type FieldOverride struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// Params carries the per-job processing options passed through to the
// sandbox, beyond the document bytes themselves.
type Params struct {
	Metadata []FieldOverride `json:"metadata,omitempty"`
}

// Job is one document-cleaning request and its accumulated state.
type Job struct {
	ID        string
	Name      string
	Type      string // job type id, e.g. "pdf"
	Params    Params
	SessionID string // empty if standalone

	Status Status
	Log    []string

	// SrcKey/ResultKey address the uploaded/cleaned document bytes in the
	// blob store; the Job row itself never carries raw payload bytes.
	SrcKey    string
	ResultKey string

	MetadataSrc    *metadata.Document
	MetadataResult *metadata.Document

	Created time.Time
	Updated time.Time
}

// AppendLog records a line in the job's execution log, used by the
// dispatcher to narrate sandbox progress.
func (j *Job) AppendLog(line string) {
	j.Log = append(j.Log, line)
}
