// Package sqlrepo is the production repository.Repository backend: a
// jmoiron/sqlx handle over Masterminds/squirrel-built queries, instrumented
// with qustavo/sqlhooks and schema-migrated with golang-migrate. Job and
// session metadata, which is irregularly shaped, lives in JSON columns —
// the SQL-native stand-in for the document-database tier the contract
// describes.
package sqlrepo

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/qustavo/sqlhooks/v2"
)

// Open dials a sqlite3 database at path, registering a sqlhooks-wrapped
// driver (on the first call only) so every query is logged with its
// timing, then runs any pending migrations.
func Open(path string) (*sqlx.DB, error) {
	driverName := "sqlite3_docleaner"
	registered := false
	for _, name := range sql.Drivers() {
		if name == driverName {
			registered = true
			break
		}
	}
	if !registered {
		sql.Register(driverName, sqlhooks.Wrap(&sqlite3.SQLiteDriver{}, &queryHooks{}))
	}

	db, err := sqlx.Open(driverName, fmt.Sprintf("%s?_foreign_keys=on", path))
	if err != nil {
		return nil, fmt.Errorf("sqlrepo: open %s: %w", path, err)
	}
	// sqlite does not benefit from multiple writers; serialize via a
	// single connection rather than contend on its file lock.
	db.SetMaxOpenConns(1)

	if err := applyMigrations(db.DB); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
