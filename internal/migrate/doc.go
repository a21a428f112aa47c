// Package migrate manages the schema of the normalized embed store as
// a linear chain of revisions, tracked in a single-row version table.
// It speaks both Postgres and SQLite through a minimal connection
// interface.
package migrate
