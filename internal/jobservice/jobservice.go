// Package jobservice implements job lifecycle operations on top of a
// Repository, a Dispatcher and the FileIdentifier/Registry pair used to
// classify uploads.
package jobservice

import (
	"time"

	"github.com/TUD-CERT/docleaner/internal/apperr"
	"github.com/TUD-CERT/docleaner/internal/clock"
	"github.com/TUD-CERT/docleaner/internal/fileid"
	"github.com/TUD-CERT/docleaner/internal/job"
	"github.com/TUD-CERT/docleaner/internal/jobtype"
	"github.com/TUD-CERT/docleaner/internal/repository"
	"github.com/TUD-CERT/docleaner/internal/repository/blobstore"
)

// Queue is the subset of dispatcher.Dispatcher the service depends on,
// narrowed to an interface so tests can substitute a fake.
type Queue interface {
	Enqueue(id string) error
	Done(id string) <-chan struct{}
}

// Stats is the tuple returned by GetStats.
type Stats struct {
	Total   int64
	Created int
	Queued  int
	Running int
	Success int
	Error   int
}

// Service implements every job-scoped operation the core exposes. It holds
// its collaborators as explicit fields (no package-level globals).
type Service struct {
	Repo     repository.Repository
	Blobs    blobstore.Store
	Queue    Queue
	FileID   fileid.Identifier
	Registry *jobtype.Registry
	Clock    clock.Clock

	// PollInterval bounds how often Await re-checks a job that has no
	// dispatcher-registered completion channel, a safety net for jobs
	// whose id never reaches Queue.Done (e.g. restored from persistence
	// after a restart with no in-process dispatcher awareness).
	PollInterval time.Duration
}

const defaultPollInterval = 100 * time.Millisecond

func (s *Service) pollInterval() time.Duration {
	if s.PollInterval > 0 {
		return s.PollInterval
	}
	return defaultPollInterval
}

// Create classifies src's MIME type, finds the first matching JobType,
// persists a CREATED job and enqueues it. Returns the new id and the
// matched job type name.
func (s *Service) Create(src []byte, name string, params job.Params, sessionID string) (string, string, error) {
	mimeType := s.FileID.Identify(src)
	jt, ok := s.Registry.ByMimeType(mimeType)
	if !ok {
		return "", "", apperr.New(apperr.Unsupported, "unsupported document type: "+mimeType)
	}

	id, err := s.Repo.AddJob(src, name, jt.Name, params, sessionID)
	if err != nil {
		return "", "", err
	}
	if err := s.Queue.Enqueue(id); err != nil {
		return "", "", err
	}
	return id, jt.Name, nil
}

// Await blocks until job id reaches a terminal state, returning the
// terminal Job. Idempotent: calling it again on an already-terminal job
// returns immediately with the same result.
func (s *Service) Await(id string) (*job.Job, error) {
	j, err := s.Repo.FindJob(id)
	if err != nil {
		return nil, err
	}
	if j.Status.Terminal() {
		return j, nil
	}

	done := s.Queue.Done(id)
	ticker := time.NewTicker(s.pollInterval())
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return s.Repo.FindJob(id)
		case <-ticker.C:
			j, err := s.Repo.FindJob(id)
			if err != nil {
				return nil, err
			}
			if j.Status.Terminal() {
				return j, nil
			}
		}
	}
}

// Get returns the full Job (status, type, log, metadata, session id).
func (s *Service) Get(id string) (*job.Job, error) {
	return s.Repo.FindJob(id)
}

// GetResult returns the cleaned document bytes and its display name.
// Fails if the job is absent or not SUCCESS.
func (s *Service) GetResult(id string) ([]byte, string, error) {
	j, err := s.Repo.FindJob(id)
	if err != nil {
		return nil, "", err
	}
	if j.Status != job.Success {
		return nil, "", apperr.New(apperr.InvalidState, "job "+id+" is not in success state")
	}
	data, err := s.Blobs.Get(j.ResultKey)
	if err != nil {
		return nil, "", apperr.Wrap(apperr.IO, "fetch result blob", err)
	}
	return data, j.Name, nil
}

// GetSrc returns the originally uploaded document bytes and its name.
func (s *Service) GetSrc(id string) ([]byte, string, error) {
	j, err := s.Repo.FindJob(id)
	if err != nil {
		return nil, "", err
	}
	data, err := s.Blobs.Get(j.SrcKey)
	if err != nil {
		return nil, "", apperr.Wrap(apperr.IO, "fetch source blob", err)
	}
	return data, j.Name, nil
}

// GetJobs returns summaries for every job in the given status.
func (s *Service) GetJobs(status job.Status) ([]job.Job, error) {
	return s.Repo.FindJobs(repository.JobFilter{HasStatus: true, Status: status})
}

// GetStats returns the cumulative job counter plus a per-status breakdown
// of the current repository contents.
func (s *Service) GetStats() (Stats, error) {
	total, err := s.Repo.TotalJobCount()
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{Total: total}
	for _, st := range []job.Status{job.Created, job.Queued, job.Running, job.Success, job.Error} {
		jobs, err := s.Repo.FindJobs(repository.JobFilter{HasStatus: true, Status: st})
		if err != nil {
			return Stats{}, err
		}
		switch st {
		case job.Created:
			stats.Created = len(jobs)
		case job.Queued:
			stats.Queued = len(jobs)
		case job.Running:
			stats.Running = len(jobs)
		case job.Success:
			stats.Success = len(jobs)
		case job.Error:
			stats.Error = len(jobs)
		}
	}
	return stats, nil
}

// Delete removes a job. Fails if it is absent or not in a terminal state —
// the service refuses to kill work in flight.
func (s *Service) Delete(id string) error {
	j, err := s.Repo.FindJob(id)
	if err != nil {
		return err
	}
	if !j.Status.Terminal() {
		return apperr.New(apperr.InvalidState, "job "+id+" is not terminal")
	}
	return s.Repo.DeleteJob(id)
}

// Purge deletes every standalone (session-less), terminal job whose last
// update is older than purgeAfter, and returns the deleted ids.
func (s *Service) Purge(purgeAfter time.Duration) ([]string, error) {
	candidates, err := s.Repo.FindJobs(repository.JobFilter{NotUpdatedFor: purgeAfter})
	if err != nil {
		return nil, err
	}
	var deleted []string
	for _, j := range candidates {
		if j.SessionID != "" {
			continue
		}
		if !j.Status.Terminal() {
			continue
		}
		if err := s.Repo.DeleteJob(j.ID); err != nil {
			return deleted, err
		}
		deleted = append(deleted, j.ID)
	}
	return deleted, nil
}
