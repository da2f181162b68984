package jobservice_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TUD-CERT/docleaner/internal/apperr"
	"github.com/TUD-CERT/docleaner/internal/clock"
	"github.com/TUD-CERT/docleaner/internal/dispatcher"
	"github.com/TUD-CERT/docleaner/internal/fileid"
	"github.com/TUD-CERT/docleaner/internal/job"
	"github.com/TUD-CERT/docleaner/internal/jobservice"
	"github.com/TUD-CERT/docleaner/internal/jobtype"
	"github.com/TUD-CERT/docleaner/internal/metadata"
	"github.com/TUD-CERT/docleaner/internal/repository"
	"github.com/TUD-CERT/docleaner/internal/repository/blobstore"
	"github.com/TUD-CERT/docleaner/internal/sandbox"
)

func noopProcess(raw sandbox.RawMetadata) metadata.Document {
	return metadata.NewDocument()
}

func newService(t *testing.T, sb sandbox.Sandbox) (*jobservice.Service, repository.Repository, *dispatcher.Dispatcher) {
	t.Helper()
	blobs := blobstore.NewMemory()
	repo := repository.NewMemory(clock.NewDummy(time.Now()), blobs)
	registry := jobtype.NewRegistry(jobtype.Type{
		Name:      "pdf",
		Image:     "docleaner-pdf:latest",
		MimeTypes: []string{"application/pdf"},
		Process:   noopProcess,
	})
	d := dispatcher.New(repo, blobs, registry, sb, 2)
	t.Cleanup(d.Shutdown)

	svc := &jobservice.Service{
		Repo:         repo,
		Blobs:        blobs,
		Queue:        d,
		FileID:       fileid.Magic{},
		Registry:     registry,
		Clock:        clock.System{},
		PollInterval: 10 * time.Millisecond,
	}
	return svc, repo, d
}

func pdfBytes() []byte {
	return []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")
}

func TestCreateAndAwaitHappyPath(t *testing.T) {
	sb := &sandbox.Dummy{Fixed: sandbox.Result{Success: true, Result: []byte("clean")}}
	svc, _, _ := newService(t, sb)

	id, typeName, err := svc.Create(pdfBytes(), "report.pdf", job.Params{}, "")
	require.NoError(t, err)
	assert.Equal(t, "pdf", typeName)

	j, err := svc.Await(id)
	require.NoError(t, err)
	assert.Equal(t, job.Success, j.Status)

	data, name, err := svc.GetResult(id)
	require.NoError(t, err)
	assert.Equal(t, []byte("clean"), data)
	assert.Equal(t, "report.pdf", name)
}

func TestCreateUnsupportedMimeType(t *testing.T) {
	sb := &sandbox.Dummy{Fixed: sandbox.Result{Success: true}}
	svc, _, _ := newService(t, sb)

	_, _, err := svc.Create([]byte("not a pdf at all"), "x.txt", job.Params{}, "")
	assert.True(t, apperr.Is(err, apperr.Unsupported))
}

func TestAwaitIsIdempotentOnTerminalJob(t *testing.T) {
	sb := &sandbox.Dummy{Fixed: sandbox.Result{Success: true, Result: []byte("clean")}}
	svc, _, _ := newService(t, sb)

	id, _, err := svc.Create(pdfBytes(), "report.pdf", job.Params{}, "")
	require.NoError(t, err)
	_, err = svc.Await(id)
	require.NoError(t, err)

	j, err := svc.Await(id)
	require.NoError(t, err)
	assert.Equal(t, job.Success, j.Status)
}

func TestGetResultFailsUntilSuccess(t *testing.T) {
	gate := make(chan struct{})
	sb := &sandbox.Dummy{Gate: gate, Fixed: sandbox.Result{Success: true, Result: []byte("clean")}}
	svc, _, _ := newService(t, sb)

	id, _, err := svc.Create(pdfBytes(), "report.pdf", job.Params{}, "")
	require.NoError(t, err)

	_, _, err = svc.GetResult(id)
	assert.True(t, apperr.Is(err, apperr.InvalidState))

	close(gate)
	_, err = svc.Await(id)
	require.NoError(t, err)

	data, _, err := svc.GetResult(id)
	require.NoError(t, err)
	assert.Equal(t, []byte("clean"), data)
}

func TestDeleteRefusesNonTerminalJob(t *testing.T) {
	gate := make(chan struct{})
	sb := &sandbox.Dummy{Gate: gate, Fixed: sandbox.Result{Success: true}}
	svc, _, _ := newService(t, sb)

	id, _, err := svc.Create(pdfBytes(), "report.pdf", job.Params{}, "")
	require.NoError(t, err)

	err = svc.Delete(id)
	assert.True(t, apperr.Is(err, apperr.InvalidState))

	close(gate)
	_, err = svc.Await(id)
	require.NoError(t, err)
	assert.NoError(t, svc.Delete(id))
}

func TestPurgeOnlyDeletesStandaloneTerminalJobsPastCutoff(t *testing.T) {
	sb := &sandbox.Dummy{Fixed: sandbox.Result{Success: true, Result: []byte("clean")}}
	blobs := blobstore.NewMemory()
	clk := clock.NewDummy(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	repo := repository.NewMemory(clk, blobs)
	registry := jobtype.NewRegistry(jobtype.Type{Name: "pdf", MimeTypes: []string{"application/pdf"}, Process: noopProcess})
	d := dispatcher.New(repo, blobs, registry, sb, 2)
	t.Cleanup(d.Shutdown)
	svc := &jobservice.Service{Repo: repo, Blobs: blobs, Queue: d, FileID: fileid.Magic{}, Registry: registry, Clock: clk, PollInterval: 10 * time.Millisecond}

	id, _, err := svc.Create(pdfBytes(), "old.pdf", job.Params{}, "")
	require.NoError(t, err)
	_, err = svc.Await(id)
	require.NoError(t, err)

	clk.Advance(48 * time.Hour)

	sid, err := repo.AddSession()
	require.NoError(t, err)
	sessionJobID, err := repo.AddJob(pdfBytes(), "member.pdf", "pdf", job.Params{}, sid)
	require.NoError(t, err)
	require.NoError(t, d.Enqueue(sessionJobID))
	_, err = svc.Await(sessionJobID)
	require.NoError(t, err)
	clk.Advance(48 * time.Hour)

	deleted, err := svc.Purge(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, deleted)

	_, err = repo.FindJob(sessionJobID)
	assert.NoError(t, err, "session member jobs are never purged standalone")
}

func TestGetStats(t *testing.T) {
	sb := &sandbox.Dummy{Fixed: sandbox.Result{Success: true, Result: []byte("clean")}}
	svc, _, _ := newService(t, sb)

	id, _, err := svc.Create(pdfBytes(), "report.pdf", job.Params{}, "")
	require.NoError(t, err)
	_, err = svc.Await(id)
	require.NoError(t, err)

	stats, err := svc.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)
	assert.Equal(t, 1, stats.Success)
}
