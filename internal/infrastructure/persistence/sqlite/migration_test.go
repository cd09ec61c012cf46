package sqlite

import (
	"database/sql"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

func openTempDB(t *testing.T) *sql.DB {
	t.Helper()
	path := t.TempDir() + "/test.db"
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
		os.Remove(path)
	})
	return db
}

func TestMigration_NewDatabase(t *testing.T) {
	db := openTempDB(t)

	migrator := NewMigrator(db)
	require.NoError(t, migrator.Migrate())

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	require.GreaterOrEqual(t, count, 1)

	cols := map[string]bool{}
	rows, err := db.Query("PRAGMA table_info(files)")
	require.NoError(t, err)
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var dflt sql.NullString
		require.NoError(t, rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk))
		cols[name] = true
	}

	for _, want := range []string{
		"file_path", "content_hash", "fsm_state", "version",
		"remote_raw_id", "remote_store_doc_id",
		"intent_kind", "intent_started_at", "intent_steps_done",
		"failure_reason", "fsm_updated_at",
		"batch_run_id", "last_error_code", "ai_metadata_json",
	} {
		require.True(t, cols[want], "files table missing column %q", want)
	}
}

func TestMigration_Idempotent(t *testing.T) {
	db := openTempDB(t)

	migrator := NewMigrator(db)
	require.NoError(t, migrator.Migrate())
	require.NoError(t, migrator.Migrate())

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = 1").Scan(&count))
	require.Equal(t, 1, count)
}

func TestMigration_Version(t *testing.T) {
	db := openTempDB(t)
	migrator := NewMigrator(db)
	require.NoError(t, migrator.Migrate())

	v, err := migrator.Version()
	require.NoError(t, err)
	require.NotEqual(t, "none", v)
}
