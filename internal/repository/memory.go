package repository

import (
	"sync"
	"time"

	"github.com/TUD-CERT/docleaner/internal/apperr"
	"github.com/TUD-CERT/docleaner/internal/clock"
	"github.com/TUD-CERT/docleaner/internal/identity"
	"github.com/TUD-CERT/docleaner/internal/job"
	"github.com/TUD-CERT/docleaner/internal/repository/blobstore"
	"github.com/TUD-CERT/docleaner/internal/session"
)

// Memory is an in-process Repository, used by tests and by the debug CLI.
// It still offloads src/result bytes to a blobstore.Store so test coverage
// exercises the same payload-addressing path production does.
type Memory struct {
	mu    sync.RWMutex
	clock clock.Clock
	blobs blobstore.Store

	jobs        map[string]*job.Job
	sessions    map[string]*session.Session
	totalJobs   int64
}

// NewMemory returns an empty Memory repository.
func NewMemory(clk clock.Clock, blobs blobstore.Store) *Memory {
	return &Memory{
		clock:    clk,
		blobs:    blobs,
		jobs:     map[string]*job.Job{},
		sessions: map[string]*session.Session{},
	}
}

func (m *Memory) AddJob(src []byte, name, jobType string, params job.Params, sessionID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sessionID != "" {
		if _, ok := m.sessions[sessionID]; !ok {
			return "", apperr.New(apperr.NotFound, "session "+sessionID)
		}
	}

	key, err := m.blobs.Put(src)
	if err != nil {
		return "", apperr.Wrap(apperr.IO, "store src blob", err)
	}

	now := m.clock.Now()
	id := identity.Generate()
	m.jobs[id] = &job.Job{
		ID:        id,
		Name:      name,
		Type:      jobType,
		Params:    params,
		SessionID: sessionID,
		Status:    job.Created,
		SrcKey:    key,
		Created:   now,
		Updated:   now,
	}
	m.totalJobs++
	if sessionID != "" {
		m.sessions[sessionID].Updated = now
	}
	return id, nil
}

func (m *Memory) FindJob(id string) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "job "+id)
	}
	cp := *j
	return &cp, nil
}

func (m *Memory) FindJobs(filter JobFilter) ([]job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if filter.SessionID != "" {
		if _, ok := m.sessions[filter.SessionID]; !ok {
			return nil, apperr.New(apperr.NotFound, "session "+filter.SessionID)
		}
	}

	var out []job.Job
	now := m.clock.Now()
	for _, j := range m.jobs {
		if filter.SessionID != "" && j.SessionID != filter.SessionID {
			continue
		}
		if filter.HasStatus && j.Status != filter.Status {
			continue
		}
		if filter.NotUpdatedFor > 0 && now.Sub(j.Updated) < filter.NotUpdatedFor {
			continue
		}
		summary := job.Job{
			ID:        j.ID,
			Name:      j.Name,
			Type:      j.Type,
			SessionID: j.SessionID,
			Status:    j.Status,
			Created:   j.Created,
			Updated:   j.Updated,
		}
		out = append(out, summary)
	}
	sortJobsByCreatedDesc(out)
	return out, nil
}

func (m *Memory) UpdateJob(id string, update JobUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return apperr.New(apperr.NotFound, "job "+id)
	}

	if update.ClearPayload {
		j.ResultKey = ""
		j.MetadataSrc = nil
		j.MetadataResult = nil
	}
	if update.Status != nil {
		j.Status = *update.Status
	}
	if update.Result != nil {
		key, err := m.blobs.Put(update.Result)
		if err != nil {
			return apperr.Wrap(apperr.IO, "store result blob", err)
		}
		j.ResultKey = key
	}
	if update.MetadataSrc != nil {
		j.MetadataSrc = update.MetadataSrc
	}
	if update.MetadataResult != nil {
		j.MetadataResult = update.MetadataResult
	}

	now := m.clock.Now()
	j.Updated = now
	if j.SessionID != "" {
		if s, ok := m.sessions[j.SessionID]; ok {
			s.Updated = now
		}
	}
	return nil
}

func (m *Memory) AddToJobLog(id string, line string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return apperr.New(apperr.NotFound, "job "+id)
	}
	j.AppendLog(line)
	return nil
}

func (m *Memory) DeleteJob(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return apperr.New(apperr.NotFound, "job "+id)
	}
	_ = m.blobs.Delete(j.SrcKey)
	if j.ResultKey != "" {
		_ = m.blobs.Delete(j.ResultKey)
	}
	delete(m.jobs, id)
	if j.SessionID != "" {
		if s, ok := m.sessions[j.SessionID]; ok {
			s.Updated = m.clock.Now()
		}
	}
	return nil
}

func (m *Memory) TotalJobCount() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalJobs, nil
}

func (m *Memory) AddSession() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	id := identity.Generate()
	m.sessions[id] = &session.Session{ID: id, Created: now, Updated: now}
	return id, nil
}

func (m *Memory) FindSession(id string) (*session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "session "+id)
	}
	cp := *s
	return &cp, nil
}

func (m *Memory) FindSessions(notUpdatedFor time.Duration) ([]session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := m.clock.Now()
	var out []session.Session
	for _, s := range m.sessions {
		if notUpdatedFor > 0 && now.Sub(s.Updated) < notUpdatedFor {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

func (m *Memory) DeleteSession(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return apperr.New(apperr.NotFound, "session "+id)
	}
	for jid, j := range m.jobs {
		if j.SessionID == id {
			_ = m.blobs.Delete(j.SrcKey)
			if j.ResultKey != "" {
				_ = m.blobs.Delete(j.ResultKey)
			}
			delete(m.jobs, jid)
		}
	}
	delete(m.sessions, id)
	return nil
}

func (m *Memory) JobsInSession(sid string) ([]job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.sessions[sid]; !ok {
		return nil, apperr.New(apperr.NotFound, "session "+sid)
	}
	var out []job.Job
	for _, j := range m.jobs {
		if j.SessionID == sid {
			out = append(out, *j)
		}
	}
	sortJobsByCreatedDesc(out)
	return out, nil
}

func sortJobsByCreatedDesc(jobs []job.Job) {
	for i := 1; i < len(jobs); i++ {
		for k := i; k > 0 && jobs[k].Created.After(jobs[k-1].Created); k-- {
			jobs[k], jobs[k-1] = jobs[k-1], jobs[k]
		}
	}
}
