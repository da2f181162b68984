package sqlrepo_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TUD-CERT/docleaner/internal/apperr"
	"github.com/TUD-CERT/docleaner/internal/clock"
	"github.com/TUD-CERT/docleaner/internal/job"
	"github.com/TUD-CERT/docleaner/internal/metadata"
	"github.com/TUD-CERT/docleaner/internal/repository"
	"github.com/TUD-CERT/docleaner/internal/repository/blobstore"
	"github.com/TUD-CERT/docleaner/internal/repository/sqlrepo"
)

func newTestRepo(t *testing.T, clk clock.Clock) *sqlrepo.Repository {
	t.Helper()
	db, err := sqlrepo.Open(filepath.Join(t.TempDir(), "docleaner.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlrepo.New(db, blobstore.NewMemory(), clk)
}

func TestMigrationsSeedStatsRow(t *testing.T) {
	repo := newTestRepo(t, clock.NewDummy(time.Now()))
	total, err := repo.TotalJobCount()
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestAddFindUpdateJobRoundTrip(t *testing.T) {
	repo := newTestRepo(t, clock.NewDummy(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))

	id, err := repo.AddJob([]byte("pdf bytes"), "report.pdf", "pdf", job.Params{}, "")
	require.NoError(t, err)

	j, err := repo.FindJob(id)
	require.NoError(t, err)
	assert.Equal(t, job.Created, j.Status)
	assert.Equal(t, "report.pdf", j.Name)

	success := job.Success
	doc := metadata.NewDocument()
	require.NoError(t, repo.UpdateJob(id, repository.JobUpdate{
		Status:         &success,
		Result:         []byte("cleaned"),
		MetadataSrc:    &doc,
		MetadataResult: &doc,
	}))

	j, err = repo.FindJob(id)
	require.NoError(t, err)
	assert.Equal(t, job.Success, j.Status)
	require.NotNil(t, j.MetadataSrc)

	total, err := repo.TotalJobCount()
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestFindJobUnknown(t *testing.T) {
	repo := newTestRepo(t, clock.NewDummy(time.Now()))
	_, err := repo.FindJob("nope")
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestSessionCascadeDelete(t *testing.T) {
	repo := newTestRepo(t, clock.NewDummy(time.Now()))

	sid, err := repo.AddSession()
	require.NoError(t, err)
	jid, err := repo.AddJob([]byte("x"), "n", "pdf", job.Params{}, sid)
	require.NoError(t, err)

	jobs, err := repo.JobsInSession(sid)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)

	require.NoError(t, repo.DeleteSession(sid))

	_, err = repo.FindJob(jid)
	assert.True(t, apperr.Is(err, apperr.NotFound))
	_, err = repo.FindSession(sid)
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestAddToJobLogAppends(t *testing.T) {
	repo := newTestRepo(t, clock.NewDummy(time.Now()))
	id, err := repo.AddJob([]byte("x"), "n", "pdf", job.Params{}, "")
	require.NoError(t, err)

	require.NoError(t, repo.AddToJobLog(id, "step one"))
	require.NoError(t, repo.AddToJobLog(id, "step two"))

	j, err := repo.FindJob(id)
	require.NoError(t, err)
	assert.Equal(t, []string{"step one", "step two"}, j.Log)
}

func TestFindJobsFiltersByNotUpdatedFor(t *testing.T) {
	clk := clock.NewDummy(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	repo := newTestRepo(t, clk)

	oldID, err := repo.AddJob([]byte("x"), "old", "pdf", job.Params{}, "")
	require.NoError(t, err)
	clk.Advance(2 * time.Hour)
	_, err = repo.AddJob([]byte("y"), "new", "pdf", job.Params{}, "")
	require.NoError(t, err)

	stale, err := repo.FindJobs(repository.JobFilter{NotUpdatedFor: time.Hour})
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, oldID, stale[0].ID)
}
