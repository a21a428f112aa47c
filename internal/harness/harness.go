package harness

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/astralblue/k3l-fcgraph-embeds/internal/embed"
	"github.com/astralblue/k3l-fcgraph-embeds/internal/store"
	"github.com/astralblue/k3l-fcgraph-embeds/internal/sync"
)

// Result holds the outcome of a scenario run.
type Result struct {
	// Sync is the run summary as reported by the synchronizer.
	Sync *sync.Result

	// Rows are the normalized rows left in the target table, ordered
	// by cast hash and embed index.
	Rows []sync.Row
}

// Run loads the scenario's casts into a fresh SQLite database, runs a
// full sync pass over it, and returns the summary together with the
// resulting rows.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "fcembeds-harness-*")
	if err != nil {
		return nil, fmt.Errorf("creating scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	st, err := store.OpenSQLite(filepath.Join(dir, "scenario.db"))
	if err != nil {
		return nil, fmt.Errorf("opening scratch database: %w", err)
	}
	defer st.Close()

	for i, fixture := range scenario.Casts {
		cast, err := fixtureCast(fixture)
		if err != nil {
			return nil, fmt.Errorf("casts[%d]: %w", i, err)
		}
		if err := st.InsertCast(ctx, cast); err != nil {
			return nil, fmt.Errorf("casts[%d]: %w", i, err)
		}
	}

	log := logrus.New()
	log.SetOutput(io.Discard)

	opts := sync.Options{Logger: log}
	if scenario.BatchSize > 0 {
		opts.BatchSize = scenario.BatchSize
	}
	if scenario.MinUpdatedAt != "" {
		// Validated at load time.
		opts.MinUpdatedAt, _ = time.Parse(time.RFC3339, scenario.MinUpdatedAt)
	}

	summary := sync.Run(ctx, st, st, opts)

	rows, err := st.AllEmbeds(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading normalized rows: %w", err)
	}

	return &Result{Sync: summary, Rows: rows}, nil
}

func fixtureCast(fixture CastFixture) (sync.Cast, error) {
	hash, err := embed.ParseHash(fixture.Hash)
	if err != nil {
		return sync.Cast{}, err
	}
	updatedAt, err := time.Parse(time.RFC3339, fixture.UpdatedAt)
	if err != nil {
		return sync.Cast{}, err
	}
	return sync.Cast{
		Hash:      hash,
		FID:       fixture.FID,
		Embeds:    fixture.Embeds,
		UpdatedAt: updatedAt.UTC(),
	}, nil
}
