package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/astralblue/k3l-fcgraph-embeds/internal/embed"
)

// Snapshot converts a scenario result into a deterministic map for
// canonical JSON serialization. Run-specific values (run id, wall-clock
// timestamps, error detail strings) are excluded so that snapshots stay
// stable across runs.
func Snapshot(scenarioName string, result *Result) map[string]any {
	rows := make([]any, len(result.Rows))
	for i, r := range result.Rows {
		row := map[string]any{
			"cast_fid":       r.CastFID,
			"cast_hash":      r.CastHash.String(),
			"embed_index":    r.EmbedIndex,
			"embed_type":     string(r.EmbedType),
			"raw_embed_data": r.RawEmbedData,
		}
		if r.EmbedType == embed.TypeCastID {
			row["quoted_cast_fid"] = r.QuotedCastFID
			row["quoted_cast_hash"] = r.QuotedCastHash.String()
		} else {
			row["url"] = r.URL
		}
		rows[i] = row
	}

	return map[string]any{
		"scenario_name": scenarioName,
		"summary": map[string]any{
			"casts_processed":  result.Sync.CastsProcessed,
			"embeds_extracted": result.Sync.EmbedsExtracted,
			"embeds_inserted":  result.Sync.EmbedsInserted,
			"errors":           result.Sync.Errors,
		},
		"rows": rows,
	}
}

// RunWithGolden executes a scenario and compares its snapshot against
// the golden file testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return err
	}

	snapshot, err := embed.MarshalCanonical(Snapshot(scenario.Name, result))
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, snapshot)

	return nil
}
