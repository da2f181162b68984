// Package sessionservice implements session lifecycle operations: grouping
// jobs, cascading deletes, and retention-based purging.
package sessionservice

import (
	"time"

	"github.com/TUD-CERT/docleaner/internal/apperr"
	"github.com/TUD-CERT/docleaner/internal/job"
	"github.com/TUD-CERT/docleaner/internal/repository"
)

// MemberSummary is one job's entry in a session's member list.
type MemberSummary struct {
	ID      string
	Created time.Time
	Updated time.Time
	Status  job.Status
	Type    string
}

// Details is the full answer to Get: session timestamps, aggregate counts
// and the ordered member list.
type Details struct {
	Created  time.Time
	Updated  time.Time
	Total    int
	Finished int
	Members  []MemberSummary
}

// Waiter is the subset of dispatcher.Dispatcher needed to await every
// member job of a session.
type Waiter interface {
	Done(id string) <-chan struct{}
}

// Service implements every session-scoped operation.
type Service struct {
	Repo repository.Repository
	Wait Waiter

	PollInterval time.Duration
}

const defaultPollInterval = 100 * time.Millisecond

func (s *Service) pollInterval() time.Duration {
	if s.PollInterval > 0 {
		return s.PollInterval
	}
	return defaultPollInterval
}

// Create starts a new, empty session and returns its id.
func (s *Service) Create() (string, error) {
	return s.Repo.AddSession()
}

// Get returns a session's timestamps and its member jobs, newest first.
func (s *Service) Get(id string) (Details, error) {
	sess, err := s.Repo.FindSession(id)
	if err != nil {
		return Details{}, err
	}
	jobs, err := s.Repo.JobsInSession(id)
	if err != nil {
		return Details{}, err
	}
	details := Details{Created: sess.Created, Updated: sess.Updated, Total: len(jobs)}
	for _, j := range jobs {
		if j.Status.Terminal() {
			details.Finished++
		}
		details.Members = append(details.Members, MemberSummary{
			ID:      j.ID,
			Created: j.Created,
			Updated: j.Updated,
			Status:  j.Status,
			Type:    j.Type,
		})
	}
	return details, nil
}

// Await blocks until every member job of sid is terminal.
func (s *Service) Await(id string) error {
	for {
		jobs, err := s.Repo.JobsInSession(id)
		if err != nil {
			return err
		}
		allTerminal := true
		var pending []string
		for _, j := range jobs {
			if !j.Status.Terminal() {
				allTerminal = false
				pending = append(pending, j.ID)
			}
		}
		if allTerminal {
			return nil
		}
		// Wait for the first pending job to finish, then re-check the
		// whole set — another member may have changed state meanwhile.
		select {
		case <-s.Wait.Done(pending[0]):
		case <-time.After(s.pollInterval()):
		}
	}
}

// Delete removes a session and all of its member jobs, failing if any
// member is still CREATED/QUEUED/RUNNING.
func (s *Service) Delete(id string) error {
	jobs, err := s.Repo.JobsInSession(id)
	if err != nil {
		return err
	}
	for _, j := range jobs {
		if !j.Status.Terminal() {
			return apperr.New(apperr.InvalidState, "session "+id+" has unfinished members")
		}
	}
	return s.Repo.DeleteSession(id)
}

// Purge deletes sessions whose last update is older than purgeAfter and
// that have no non-terminal members.
func (s *Service) Purge(purgeAfter time.Duration) ([]string, error) {
	candidates, err := s.Repo.FindSessions(purgeAfter)
	if err != nil {
		return nil, err
	}
	var deleted []string
	for _, sess := range candidates {
		jobs, err := s.Repo.JobsInSession(sess.ID)
		if err != nil {
			return deleted, err
		}
		hasActive := false
		for _, j := range jobs {
			if !j.Status.Terminal() {
				hasActive = true
				break
			}
		}
		if hasActive {
			continue
		}
		if err := s.Repo.DeleteSession(sess.ID); err != nil {
			return deleted, err
		}
		deleted = append(deleted, sess.ID)
	}
	return deleted, nil
}
