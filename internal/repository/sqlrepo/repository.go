package sqlrepo

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/TUD-CERT/docleaner/internal/apperr"
	"github.com/TUD-CERT/docleaner/internal/clock"
	"github.com/TUD-CERT/docleaner/internal/identity"
	"github.com/TUD-CERT/docleaner/internal/job"
	"github.com/TUD-CERT/docleaner/internal/metadata"
	"github.com/TUD-CERT/docleaner/internal/repository"
	"github.com/TUD-CERT/docleaner/internal/repository/blobstore"
	"github.com/TUD-CERT/docleaner/internal/session"
)

// Repository is the production repository.Repository implementation.
type Repository struct {
	db    *sqlx.DB
	blobs blobstore.Store
	clock clock.Clock
	qb    sq.StatementBuilderType
}

// New wraps an already-migrated sqlx.DB.
func New(db *sqlx.DB, blobs blobstore.Store, clk clock.Clock) *Repository {
	return &Repository{
		db:    db,
		blobs: blobs,
		clock: clk,
		qb:    sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

type jobRow struct {
	ID             string         `db:"id"`
	Name           string         `db:"name"`
	Type           string         `db:"type"`
	Params         string         `db:"params"`
	SessionID      sql.NullString `db:"session_id"`
	Status         int            `db:"status"`
	Log            string         `db:"log"`
	SrcKey         string         `db:"src_key"`
	ResultKey      string         `db:"result_key"`
	MetadataSrc    sql.NullString `db:"metadata_src"`
	MetadataResult sql.NullString `db:"metadata_result"`
	Created        int64          `db:"created"`
	Updated        int64          `db:"updated"`
}

func (r *jobRow) toJob() (*job.Job, error) {
	var params job.Params
	if err := json.Unmarshal([]byte(r.Params), &params); err != nil {
		return nil, fmt.Errorf("sqlrepo: decode params: %w", err)
	}
	var logLines []string
	if err := json.Unmarshal([]byte(r.Log), &logLines); err != nil {
		return nil, fmt.Errorf("sqlrepo: decode log: %w", err)
	}
	j := &job.Job{
		ID:        r.ID,
		Name:      r.Name,
		Type:      r.Type,
		Params:    params,
		SessionID: r.SessionID.String,
		Status:    job.Status(r.Status),
		Log:       logLines,
		SrcKey:    r.SrcKey,
		ResultKey: r.ResultKey,
		Created:   time.Unix(r.Created, 0).UTC(),
		Updated:   time.Unix(r.Updated, 0).UTC(),
	}
	if r.MetadataSrc.Valid {
		var doc metadata.Document
		if err := json.Unmarshal([]byte(r.MetadataSrc.String), &doc); err != nil {
			return nil, fmt.Errorf("sqlrepo: decode metadata_src: %w", err)
		}
		j.MetadataSrc = &doc
	}
	if r.MetadataResult.Valid {
		var doc metadata.Document
		if err := json.Unmarshal([]byte(r.MetadataResult.String), &doc); err != nil {
			return nil, fmt.Errorf("sqlrepo: decode metadata_result: %w", err)
		}
		j.MetadataResult = &doc
	}
	return j, nil
}

func (r *Repository) AddJob(src []byte, name, jobType string, params job.Params, sessionID string) (string, error) {
	if sessionID != "" {
		if _, err := r.FindSession(sessionID); err != nil {
			return "", err
		}
	}

	key, err := r.blobs.Put(src)
	if err != nil {
		return "", apperr.Wrap(apperr.IO, "store src blob", err)
	}

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("sqlrepo: encode params: %w", err)
	}

	now := r.clock.Now().Unix()
	id := identity.Generate()

	tx, err := r.db.Beginx()
	if err != nil {
		return "", apperr.Wrap(apperr.IO, "begin tx", err)
	}
	defer tx.Rollback()

	q, args, err := r.qb.Insert("jobs").
		Columns("id", "name", "type", "params", "session_id", "status", "log", "src_key", "result_key", "created", "updated").
		Values(id, name, jobType, string(paramsJSON), nullable(sessionID), int(job.Created), "[]", key, "", now, now).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("sqlrepo: build insert: %w", err)
	}
	if _, err := tx.Exec(q, args...); err != nil {
		return "", apperr.Wrap(apperr.IO, "insert job", err)
	}

	if _, err := tx.Exec(`UPDATE stats SET total_jobs = total_jobs + 1 WHERE id = 1`); err != nil {
		return "", apperr.Wrap(apperr.IO, "bump total job count", err)
	}

	if sessionID != "" {
		if err := bumpSessionUpdated(tx, r.qb, sessionID, now); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", apperr.Wrap(apperr.IO, "commit", err)
	}
	return id, nil
}

func (r *Repository) FindJob(id string) (*job.Job, error) {
	q, args, err := r.qb.Select("id", "name", "type", "params", "session_id", "status", "log", "src_key", "result_key", "metadata_src", "metadata_result", "created", "updated").
		From("jobs").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlrepo: build select: %w", err)
	}
	var row jobRow
	if err := r.db.Get(&row, q, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.New(apperr.NotFound, "job "+id)
		}
		return nil, apperr.Wrap(apperr.IO, "find job", err)
	}
	return row.toJob()
}

func (r *Repository) FindJobs(filter repository.JobFilter) ([]job.Job, error) {
	if filter.SessionID != "" {
		if _, err := r.FindSession(filter.SessionID); err != nil {
			return nil, err
		}
	}

	query := r.qb.Select("id", "name", "type", "session_id", "status", "created", "updated").
		From("jobs").OrderBy("created DESC")
	if filter.SessionID != "" {
		query = query.Where(sq.Eq{"session_id": filter.SessionID})
	}
	if filter.HasStatus {
		query = query.Where(sq.Eq{"status": int(filter.Status)})
	}
	if filter.NotUpdatedFor > 0 {
		cutoff := r.clock.Now().Add(-filter.NotUpdatedFor).Unix()
		query = query.Where(sq.LtOrEq{"updated": cutoff})
	}
	q, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlrepo: build select: %w", err)
	}

	type summaryRow struct {
		ID        string         `db:"id"`
		Name      string         `db:"name"`
		Type      string         `db:"type"`
		SessionID sql.NullString `db:"session_id"`
		Status    int            `db:"status"`
		Created   int64          `db:"created"`
		Updated   int64          `db:"updated"`
	}
	var rows []summaryRow
	if err := r.db.Select(&rows, q, args...); err != nil {
		return nil, apperr.Wrap(apperr.IO, "find jobs", err)
	}

	out := make([]job.Job, 0, len(rows))
	for _, row := range rows {
		out = append(out, job.Job{
			ID:        row.ID,
			Name:      row.Name,
			Type:      row.Type,
			SessionID: row.SessionID.String,
			Status:    job.Status(row.Status),
			Created:   time.Unix(row.Created, 0).UTC(),
			Updated:   time.Unix(row.Updated, 0).UTC(),
		})
	}
	return out, nil
}

func (r *Repository) UpdateJob(id string, update repository.JobUpdate) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return apperr.Wrap(apperr.IO, "begin tx", err)
	}
	defer tx.Rollback()

	var current jobRow
	q, args, err := r.qb.Select("session_id").From("jobs").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("sqlrepo: build select: %w", err)
	}
	if err := tx.Get(&current, q, args...); err != nil {
		if err == sql.ErrNoRows {
			return apperr.New(apperr.NotFound, "job "+id)
		}
		return apperr.Wrap(apperr.IO, "find job for update", err)
	}

	now := r.clock.Now().Unix()
	set := r.qb.Update("jobs").Set("updated", now).Where(sq.Eq{"id": id})

	if update.ClearPayload {
		set = set.Set("result_key", "").Set("metadata_src", nil).Set("metadata_result", nil)
	}
	if update.Status != nil {
		set = set.Set("status", int(*update.Status))
	}
	if update.Result != nil {
		key, err := r.blobs.Put(update.Result)
		if err != nil {
			return apperr.Wrap(apperr.IO, "store result blob", err)
		}
		set = set.Set("result_key", key)
	}
	if update.MetadataSrc != nil {
		enc, err := json.Marshal(update.MetadataSrc)
		if err != nil {
			return fmt.Errorf("sqlrepo: encode metadata_src: %w", err)
		}
		set = set.Set("metadata_src", string(enc))
	}
	if update.MetadataResult != nil {
		enc, err := json.Marshal(update.MetadataResult)
		if err != nil {
			return fmt.Errorf("sqlrepo: encode metadata_result: %w", err)
		}
		set = set.Set("metadata_result", string(enc))
	}

	uq, uargs, err := set.ToSql()
	if err != nil {
		return fmt.Errorf("sqlrepo: build update: %w", err)
	}
	if _, err := tx.Exec(uq, uargs...); err != nil {
		return apperr.Wrap(apperr.IO, "update job", err)
	}

	if current.SessionID.Valid && current.SessionID.String != "" {
		if err := bumpSessionUpdated(tx, r.qb, current.SessionID.String, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.IO, "commit", err)
	}
	return nil
}

func (r *Repository) AddToJobLog(id string, line string) error {
	j, err := r.FindJob(id)
	if err != nil {
		return err
	}
	j.AppendLog(line)
	enc, err := json.Marshal(j.Log)
	if err != nil {
		return fmt.Errorf("sqlrepo: encode log: %w", err)
	}
	q, args, err := r.qb.Update("jobs").Set("log", string(enc)).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("sqlrepo: build update: %w", err)
	}
	if _, err := r.db.Exec(q, args...); err != nil {
		return apperr.Wrap(apperr.IO, "append job log", err)
	}
	return nil
}

func (r *Repository) DeleteJob(id string) error {
	j, err := r.FindJob(id)
	if err != nil {
		return err
	}

	tx, err := r.db.Beginx()
	if err != nil {
		return apperr.Wrap(apperr.IO, "begin tx", err)
	}
	defer tx.Rollback()

	q, args, err := r.qb.Delete("jobs").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("sqlrepo: build delete: %w", err)
	}
	if _, err := tx.Exec(q, args...); err != nil {
		return apperr.Wrap(apperr.IO, "delete job", err)
	}

	now := r.clock.Now().Unix()
	if j.SessionID != "" {
		if err := bumpSessionUpdated(tx, r.qb, j.SessionID, now); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.IO, "commit", err)
	}

	_ = r.blobs.Delete(j.SrcKey)
	if j.ResultKey != "" {
		_ = r.blobs.Delete(j.ResultKey)
	}
	return nil
}

func (r *Repository) TotalJobCount() (int64, error) {
	var total int64
	if err := r.db.Get(&total, `SELECT total_jobs FROM stats WHERE id = 1`); err != nil {
		return 0, apperr.Wrap(apperr.IO, "total job count", err)
	}
	return total, nil
}

func (r *Repository) AddSession() (string, error) {
	now := r.clock.Now().Unix()
	id := identity.Generate()
	q, args, err := r.qb.Insert("sessions").Columns("id", "created", "updated").Values(id, now, now).ToSql()
	if err != nil {
		return "", fmt.Errorf("sqlrepo: build insert: %w", err)
	}
	if _, err := r.db.Exec(q, args...); err != nil {
		return "", apperr.Wrap(apperr.IO, "insert session", err)
	}
	return id, nil
}

func (r *Repository) FindSession(id string) (*session.Session, error) {
	q, args, err := r.qb.Select("id", "created", "updated").From("sessions").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlrepo: build select: %w", err)
	}
	var row struct {
		ID      string `db:"id"`
		Created int64  `db:"created"`
		Updated int64  `db:"updated"`
	}
	if err := r.db.Get(&row, q, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.New(apperr.NotFound, "session "+id)
		}
		return nil, apperr.Wrap(apperr.IO, "find session", err)
	}
	return &session.Session{
		ID:      row.ID,
		Created: time.Unix(row.Created, 0).UTC(),
		Updated: time.Unix(row.Updated, 0).UTC(),
	}, nil
}

func (r *Repository) FindSessions(notUpdatedFor time.Duration) ([]session.Session, error) {
	query := r.qb.Select("id", "created", "updated").From("sessions")
	if notUpdatedFor > 0 {
		cutoff := r.clock.Now().Add(-notUpdatedFor).Unix()
		query = query.Where(sq.LtOrEq{"updated": cutoff})
	}
	q, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlrepo: build select: %w", err)
	}
	var rows []struct {
		ID      string `db:"id"`
		Created int64  `db:"created"`
		Updated int64  `db:"updated"`
	}
	if err := r.db.Select(&rows, q, args...); err != nil {
		return nil, apperr.Wrap(apperr.IO, "find sessions", err)
	}
	out := make([]session.Session, 0, len(rows))
	for _, row := range rows {
		out = append(out, session.Session{
			ID:      row.ID,
			Created: time.Unix(row.Created, 0).UTC(),
			Updated: time.Unix(row.Updated, 0).UTC(),
		})
	}
	return out, nil
}

func (r *Repository) DeleteSession(id string) error {
	if _, err := r.FindSession(id); err != nil {
		return err
	}

	// Read the members before opening the transaction: the pool holds a
	// single connection, which the transaction would otherwise occupy.
	members, err := r.JobsInSession(id)
	if err != nil {
		return err
	}

	tx, err := r.db.Beginx()
	if err != nil {
		return apperr.Wrap(apperr.IO, "begin tx", err)
	}
	defer tx.Rollback()

	q, args, err := r.qb.Delete("jobs").Where(sq.Eq{"session_id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("sqlrepo: build delete: %w", err)
	}
	if _, err := tx.Exec(q, args...); err != nil {
		return apperr.Wrap(apperr.IO, "delete session jobs", err)
	}

	sq2, sargs, err := r.qb.Delete("sessions").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("sqlrepo: build delete: %w", err)
	}
	if _, err := tx.Exec(sq2, sargs...); err != nil {
		return apperr.Wrap(apperr.IO, "delete session", err)
	}

	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.IO, "commit", err)
	}

	for _, j := range members {
		_ = r.blobs.Delete(j.SrcKey)
		if j.ResultKey != "" {
			_ = r.blobs.Delete(j.ResultKey)
		}
	}
	return nil
}

func (r *Repository) JobsInSession(sid string) ([]job.Job, error) {
	if _, err := r.FindSession(sid); err != nil {
		return nil, err
	}
	q, args, err := r.qb.Select("id", "name", "type", "session_id", "status", "created", "updated").
		From("jobs").Where(sq.Eq{"session_id": sid}).OrderBy("created DESC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlrepo: build select: %w", err)
	}
	var rows []struct {
		ID        string         `db:"id"`
		Name      string         `db:"name"`
		Type      string         `db:"type"`
		SessionID sql.NullString `db:"session_id"`
		Status    int            `db:"status"`
		Created   int64          `db:"created"`
		Updated   int64          `db:"updated"`
	}
	if err := r.db.Select(&rows, q, args...); err != nil {
		return nil, apperr.Wrap(apperr.IO, "jobs in session", err)
	}
	out := make([]job.Job, 0, len(rows))
	for _, row := range rows {
		out = append(out, job.Job{
			ID:        row.ID,
			Name:      row.Name,
			Type:      row.Type,
			SessionID: row.SessionID.String,
			Status:    job.Status(row.Status),
			Created:   time.Unix(row.Created, 0).UTC(),
			Updated:   time.Unix(row.Updated, 0).UTC(),
		})
	}
	return out, nil
}

func bumpSessionUpdated(tx *sqlx.Tx, qb sq.StatementBuilderType, sessionID string, at int64) error {
	q, args, err := qb.Update("sessions").Set("updated", at).Where(sq.Eq{"id": sessionID}).ToSql()
	if err != nil {
		return fmt.Errorf("sqlrepo: build update: %w", err)
	}
	if _, err := tx.Exec(q, args...); err != nil {
		return apperr.Wrap(apperr.IO, "bump session updated", err)
	}
	return nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
