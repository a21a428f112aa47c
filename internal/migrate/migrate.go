package migrate

import (
	"context"
	"fmt"
	"strings"
)

// Dialect selects the SQL flavor for migration statements.
type Dialect string

const (
	// DialectPostgres targets the production deployment.
	DialectPostgres Dialect = "postgres"

	// DialectSQLite targets local runs and tests.
	DialectSQLite Dialect = "sqlite"
)

// DefaultVersionTable is where the applied revision is tracked.
const DefaultVersionTable = "k3l_embeds_schema_version"

// Migration is one forward/backward schema transition. Revisions form a
// single linear chain ordered by Parent links.
type Migration struct {
	// Revision uniquely identifies this migration.
	Revision string

	// Parent is the revision this one builds on; empty for the root.
	Parent string

	// Description explains the transition.
	Description string

	// Up holds the forward statements per dialect. Statements may use
	// the {schema} placeholder, rendered as "<schema>." on Postgres and
	// as nothing on SQLite.
	Up map[Dialect][]string

	// Down holds the reverse statements per dialect.
	Down map[Dialect][]string
}

// HistoryEntry describes one migration for callers inspecting the chain.
type HistoryEntry struct {
	Revision    string `json:"revision"`
	Parent      string `json:"parent_revision"`
	Description string `json:"description"`
}

// Manager applies and reverses schema migrations against one database.
//
// The sync core depends on it only to guarantee that the normalized
// table and its uniqueness/index structure exist before a run.
type Manager struct {
	conn         Conn
	dialect      Dialect
	schema       string
	versionTable string
	migrations   []Migration
}

// Option configures a Manager.
type Option func(*Manager)

// WithSchema sets the Postgres schema holding both the normalized table
// and the version table. Ignored for SQLite.
func WithSchema(schema string) Option {
	return func(m *Manager) { m.schema = schema }
}

// WithVersionTable overrides the version tracking table name.
func WithVersionTable(name string) Option {
	return func(m *Manager) { m.versionTable = name }
}

// WithMigrations replaces the built-in migration chain. Used by tests.
func WithMigrations(migrations []Migration) Option {
	return func(m *Manager) { m.migrations = migrations }
}

// New creates a migration manager. The migration chain must be linear;
// New fails otherwise.
func New(conn Conn, dialect Dialect, opts ...Option) (*Manager, error) {
	m := &Manager{
		conn:         conn,
		dialect:      dialect,
		versionTable: DefaultVersionTable,
		migrations:   Registry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := validateChain(m.migrations); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return m, nil
}

func validateChain(migrations []Migration) error {
	parent := ""
	for i, mig := range migrations {
		if mig.Revision == "" {
			return fmt.Errorf("migration %d has no revision", i)
		}
		if mig.Parent != parent {
			return fmt.Errorf("migration %s has parent %q, want %q", mig.Revision, mig.Parent, parent)
		}
		parent = mig.Revision
	}
	return nil
}

// schemaPrefix renders the {schema} placeholder.
func (m *Manager) schemaPrefix() string {
	if m.dialect == DialectPostgres && m.schema != "" {
		return m.schema + "."
	}
	return ""
}

func (m *Manager) render(stmt string) string {
	return strings.ReplaceAll(stmt, "{schema}", m.schemaPrefix())
}

// placeholder returns the positional parameter marker for the dialect.
func (m *Manager) placeholder(n int) string {
	if m.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (m *Manager) qualifiedVersionTable() string {
	return m.schemaPrefix() + m.versionTable
}

func (m *Manager) ensureVersionTable(ctx context.Context) error {
	if m.dialect == DialectPostgres && m.schema != "" && m.schema != "public" {
		stmt := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", m.schema)
		if err := m.conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	stmt := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (revision VARCHAR(32) NOT NULL)",
		m.qualifiedVersionTable(),
	)
	if err := m.conn.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("create version table: %w", err)
	}
	return nil
}

// CurrentRevision returns the applied revision, or "" when no
// migrations have been applied.
func (m *Manager) CurrentRevision(ctx context.Context) (string, error) {
	if err := m.ensureVersionTable(ctx); err != nil {
		return "", err
	}
	query := fmt.Sprintf("SELECT revision FROM %s", m.qualifiedVersionTable())
	rev, found, err := m.conn.QueryValue(ctx, query)
	if err != nil {
		return "", fmt.Errorf("current revision: %w", err)
	}
	if !found {
		return "", nil
	}
	return rev, nil
}

// PendingRevisions returns, in apply order, the revisions not yet
// applied.
func (m *Manager) PendingRevisions(ctx context.Context) ([]string, error) {
	current, err := m.CurrentRevision(ctx)
	if err != nil {
		return nil, err
	}
	idx, err := m.indexAfter(current)
	if err != nil {
		return nil, err
	}
	pending := []string{}
	for _, mig := range m.migrations[idx:] {
		pending = append(pending, mig.Revision)
	}
	return pending, nil
}

// History returns the full chain, oldest first.
func (m *Manager) History() []HistoryEntry {
	out := make([]HistoryEntry, len(m.migrations))
	for i, mig := range m.migrations {
		out[i] = HistoryEntry{Revision: mig.Revision, Parent: mig.Parent, Description: mig.Description}
	}
	return out
}

// Upgrade applies migrations up to and including target. An empty
// target or "head" means the latest revision. Upgrading to the current
// revision is a no-op.
func (m *Manager) Upgrade(ctx context.Context, target string) error {
	if len(m.migrations) == 0 {
		return nil
	}
	if target == "" || target == "head" {
		target = m.migrations[len(m.migrations)-1].Revision
	}
	targetIdx, err := m.indexOf(target)
	if err != nil {
		return err
	}

	current, err := m.CurrentRevision(ctx)
	if err != nil {
		return err
	}
	startIdx, err := m.indexAfter(current)
	if err != nil {
		return err
	}
	if targetIdx+1 < startIdx {
		return fmt.Errorf("migrate: target %s is below current revision %s, use Downgrade", target, current)
	}

	for _, mig := range m.migrations[startIdx : targetIdx+1] {
		stmts, ok := mig.Up[m.dialect]
		if !ok {
			return fmt.Errorf("migrate: revision %s has no %s upgrade", mig.Revision, m.dialect)
		}
		for _, stmt := range stmts {
			if err := m.conn.Exec(ctx, m.render(stmt)); err != nil {
				return fmt.Errorf("migrate: upgrade to %s: %w", mig.Revision, err)
			}
		}
		if err := m.setRevision(ctx, mig.Revision); err != nil {
			return err
		}
	}
	return nil
}

// Downgrade reverses migrations down to target, which stays applied.
// An empty target or "base" reverses everything.
func (m *Manager) Downgrade(ctx context.Context, target string) error {
	if target == "head" {
		return fmt.Errorf("migrate: %q is not a valid downgrade target", target)
	}
	if target == "base" {
		target = ""
	}
	targetIdx := -1
	if target != "" {
		idx, err := m.indexOf(target)
		if err != nil {
			return err
		}
		targetIdx = idx
	}

	current, err := m.CurrentRevision(ctx)
	if err != nil {
		return err
	}
	if current == "" {
		return nil
	}
	currentIdx, err := m.indexOf(current)
	if err != nil {
		return err
	}
	if targetIdx > currentIdx {
		return fmt.Errorf("migrate: target %s is above current revision %s, use Upgrade", target, current)
	}

	for i := currentIdx; i > targetIdx; i-- {
		mig := m.migrations[i]
		stmts, ok := mig.Down[m.dialect]
		if !ok {
			return fmt.Errorf("migrate: revision %s has no %s downgrade", mig.Revision, m.dialect)
		}
		for _, stmt := range stmts {
			if err := m.conn.Exec(ctx, m.render(stmt)); err != nil {
				return fmt.Errorf("migrate: downgrade from %s: %w", mig.Revision, err)
			}
		}
		if err := m.setRevision(ctx, mig.Parent); err != nil {
			return err
		}
	}
	return nil
}

// setRevision replaces the single row of the version table; an empty
// revision clears it.
func (m *Manager) setRevision(ctx context.Context, revision string) error {
	table := m.qualifiedVersionTable()
	if err := m.conn.Exec(ctx, fmt.Sprintf("DELETE FROM %s", table)); err != nil {
		return fmt.Errorf("set revision: %w", err)
	}
	if revision == "" {
		return nil
	}
	stmt := fmt.Sprintf("INSERT INTO %s (revision) VALUES (%s)", table, m.placeholder(1))
	if err := m.conn.Exec(ctx, stmt, revision); err != nil {
		return fmt.Errorf("set revision: %w", err)
	}
	return nil
}

// indexOf resolves a known revision to its chain position.
func (m *Manager) indexOf(revision string) (int, error) {
	for i, mig := range m.migrations {
		if mig.Revision == revision {
			return i, nil
		}
	}
	return 0, fmt.Errorf("migrate: unknown revision %q", revision)
}

// indexAfter returns the chain position following the given revision;
// 0 when the revision is empty (nothing applied).
func (m *Manager) indexAfter(revision string) (int, error) {
	if revision == "" {
		return 0, nil
	}
	idx, err := m.indexOf(revision)
	if err != nil {
		return 0, err
	}
	return idx + 1, nil
}
