// Package repository defines the persistence contract job and session
// services run against, and an in-memory implementation for tests.
package repository

import (
	"time"

	"github.com/TUD-CERT/docleaner/internal/job"
	"github.com/TUD-CERT/docleaner/internal/metadata"
	"github.com/TUD-CERT/docleaner/internal/session"
)

// JobFilter narrows a FindJobs query. A zero value matches every job.
type JobFilter struct {
	SessionID     string
	HasStatus     bool
	Status        job.Status
	NotUpdatedFor time.Duration // zero means unset
}

// JobUpdate is a partial update to one job; nil fields are left untouched.
type JobUpdate struct {
	Status         *job.Status
	Result         []byte
	MetadataSrc    *metadata.Document
	MetadataResult *metadata.Document
	ClearPayload   bool // true clears Result/metadata fields instead of setting them
}

// Repository is the storage contract every backend (in-memory, SQL-backed)
// must satisfy. All operations are atomic at single-job/session grain; no
// cross-entity transactions are required.
type Repository interface {
	AddJob(src []byte, name, jobType string, params job.Params, sessionID string) (string, error)
	FindJob(id string) (*job.Job, error)
	// FindJobs returns summaries: Log/SrcKey/ResultKey/metadata are
	// stripped so callers never pay for a blob fetch they didn't ask for.
	FindJobs(filter JobFilter) ([]job.Job, error)
	UpdateJob(id string, update JobUpdate) error
	AddToJobLog(id string, line string) error
	DeleteJob(id string) error
	TotalJobCount() (int64, error)

	AddSession() (string, error)
	FindSession(id string) (*session.Session, error)
	FindSessions(notUpdatedFor time.Duration) ([]session.Session, error)
	DeleteSession(id string) error

	// JobsInSession returns every job belonging to sid, newest first.
	JobsInSession(sid string) ([]job.Job, error)
}
