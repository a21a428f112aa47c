package migrate

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "migrate.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestManager(t *testing.T, db *sql.DB, opts ...Option) *Manager {
	t.Helper()
	m, err := New(NewSQLConn(db), DialectSQLite, opts...)
	require.NoError(t, err)
	return m
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var count int
	err := db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name,
	).Scan(&count)
	require.NoError(t, err)
	return count > 0
}

// testChain builds a three-step chain of trivially reversible
// migrations for exercising partial upgrades and downgrades.
func testChain() []Migration {
	mk := func(revision, parent, table string) Migration {
		return Migration{
			Revision:    revision,
			Parent:      parent,
			Description: "create " + table,
			Up: map[Dialect][]string{
				DialectSQLite: {"CREATE TABLE " + table + " (id INTEGER PRIMARY KEY)"},
			},
			Down: map[Dialect][]string{
				DialectSQLite: {"DROP TABLE " + table},
			},
		}
	}
	return []Migration{
		mk("001_alpha", "", "alpha"),
		mk("002_beta", "001_alpha", "beta"),
		mk("003_gamma", "002_beta", "gamma"),
	}
}

func TestNewRejectsBrokenChain(t *testing.T) {
	db := openTestDB(t)
	broken := []Migration{
		{Revision: "001_alpha", Parent: ""},
		{Revision: "003_gamma", Parent: "002_beta"},
	}
	_, err := New(NewSQLConn(db), DialectSQLite, WithMigrations(broken))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "003_gamma")
}

func TestCurrentRevisionOnFreshDatabase(t *testing.T) {
	db := openTestDB(t)
	m := newTestManager(t, db)

	current, err := m.CurrentRevision(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "", current)

	pending, err := m.PendingRevisions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"001_cast_embeds"}, pending)
}

func TestUpgradeToHeadCreatesCastEmbeds(t *testing.T) {
	db := openTestDB(t)
	m := newTestManager(t, db)
	ctx := context.Background()

	require.NoError(t, m.Upgrade(ctx, "head"))
	assert.True(t, tableExists(t, db, "cast_embeds"))

	current, err := m.CurrentRevision(ctx)
	require.NoError(t, err)
	assert.Equal(t, "001_cast_embeds", current)

	pending, err := m.PendingRevisions(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// The unique constraint from the migration is live.
	_, err = db.Exec(
		"INSERT INTO cast_embeds (cast_hash, cast_fid, embed_index, embed_type, raw_embed_data) VALUES (?, ?, ?, ?, ?)",
		[]byte{1}, 7, 0, "url", "{}",
	)
	require.NoError(t, err)
	_, err = db.Exec(
		"INSERT INTO cast_embeds (cast_hash, cast_fid, embed_index, embed_type, raw_embed_data) VALUES (?, ?, ?, ?, ?)",
		[]byte{1}, 7, 0, "url", "{}",
	)
	assert.Error(t, err)
}

func TestUpgradeIsIdempotentAtHead(t *testing.T) {
	db := openTestDB(t)
	m := newTestManager(t, db)
	ctx := context.Background()

	require.NoError(t, m.Upgrade(ctx, ""))
	require.NoError(t, m.Upgrade(ctx, ""))

	current, err := m.CurrentRevision(ctx)
	require.NoError(t, err)
	assert.Equal(t, "001_cast_embeds", current)
}

func TestDowngradeToBaseDropsTable(t *testing.T) {
	db := openTestDB(t)
	m := newTestManager(t, db)
	ctx := context.Background()

	require.NoError(t, m.Upgrade(ctx, "head"))
	require.NoError(t, m.Downgrade(ctx, "base"))

	assert.False(t, tableExists(t, db, "cast_embeds"))
	current, err := m.CurrentRevision(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", current)
}

func TestPartialUpgradeAndDowngrade(t *testing.T) {
	db := openTestDB(t)
	m := newTestManager(t, db, WithMigrations(testChain()))
	ctx := context.Background()

	require.NoError(t, m.Upgrade(ctx, "002_beta"))
	assert.True(t, tableExists(t, db, "alpha"))
	assert.True(t, tableExists(t, db, "beta"))
	assert.False(t, tableExists(t, db, "gamma"))

	pending, err := m.PendingRevisions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"003_gamma"}, pending)

	require.NoError(t, m.Upgrade(ctx, "head"))
	assert.True(t, tableExists(t, db, "gamma"))

	// Downgrading to a revision leaves that revision applied.
	require.NoError(t, m.Downgrade(ctx, "001_alpha"))
	assert.True(t, tableExists(t, db, "alpha"))
	assert.False(t, tableExists(t, db, "beta"))
	assert.False(t, tableExists(t, db, "gamma"))

	current, err := m.CurrentRevision(ctx)
	require.NoError(t, err)
	assert.Equal(t, "001_alpha", current)
}

func TestUpgradeRejectsBackwardTarget(t *testing.T) {
	db := openTestDB(t)
	m := newTestManager(t, db, WithMigrations(testChain()))
	ctx := context.Background()

	require.NoError(t, m.Upgrade(ctx, "head"))
	err := m.Upgrade(ctx, "001_alpha")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Downgrade")
}

func TestUnknownRevision(t *testing.T) {
	db := openTestDB(t)
	m := newTestManager(t, db)

	err := m.Upgrade(context.Background(), "999_nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown revision")

	err = m.Downgrade(context.Background(), "999_nope")
	require.Error(t, err)
}

func TestHistory(t *testing.T) {
	db := openTestDB(t)
	m := newTestManager(t, db, WithMigrations(testChain()))

	history := m.History()
	require.Len(t, history, 3)
	assert.Equal(t, "001_alpha", history[0].Revision)
	assert.Equal(t, "", history[0].Parent)
	assert.Equal(t, "002_beta", history[1].Revision)
	assert.Equal(t, "001_alpha", history[1].Parent)
	assert.Equal(t, "create gamma", history[2].Description)
}
