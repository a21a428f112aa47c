package cli

import (
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/astralblue/k3l-fcgraph-embeds/internal/store"
	"github.com/astralblue/k3l-fcgraph-embeds/internal/sync"
)

// Environment fallbacks for DSNs, so credentials can stay out of
// config files.
const (
	EnvSourceDSN = "FCEMBEDS_SOURCE_DSN"
	EnvTargetDSN = "FCEMBEDS_TARGET_DSN"
)

// Endpoint identifies one side of a sync job.
type Endpoint struct {
	DSN    string `json:"dsn"`
	Schema string `json:"schema"`
}

// Job is a fully resolved sync job configuration.
type Job struct {
	// Driver is "postgres" or "sqlite".
	Driver string `json:"driver"`

	// SQLitePath is the database file for the sqlite driver, which
	// reads casts and writes embeds in the same file.
	SQLitePath string `json:"sqlitePath"`

	Source Endpoint `json:"source"`
	Target Endpoint `json:"target"`

	BatchSize int `json:"batchSize"`

	// MinUpdatedAt is an RFC 3339 timestamp; empty means sync from
	// the beginning of time.
	MinUpdatedAt string `json:"minUpdatedAt"`
}

// DefaultJob returns a Job with all defaults applied and DSNs taken
// from the environment.
func DefaultJob() Job {
	return Job{
		Driver: "postgres",
		Source: Endpoint{
			DSN:    os.Getenv(EnvSourceDSN),
			Schema: store.DefaultSourceSchema,
		},
		Target: Endpoint{
			DSN:    os.Getenv(EnvTargetDSN),
			Schema: store.DefaultTargetSchema,
		},
		BatchSize: sync.DefaultBatchSize,
	}
}

// LoadJob reads a CUE config file and resolves it against the
// defaults. The job may live at the top level or under a "job" field.
func LoadJob(path string) (Job, error) {
	job := DefaultJob()

	data, err := os.ReadFile(path)
	if err != nil {
		return job, fmt.Errorf("reading config: %w", err)
	}

	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return job, fmt.Errorf("compiling config: %w", err)
	}

	if nested := value.LookupPath(cue.ParsePath("job")); nested.Exists() {
		value = nested
	}
	if err := value.Decode(&job); err != nil {
		return job, fmt.Errorf("decoding config: %w", err)
	}

	job.applyDefaults()
	return job, nil
}

func (j *Job) applyDefaults() {
	if j.Driver == "" {
		j.Driver = "postgres"
	}
	if j.Source.DSN == "" {
		j.Source.DSN = os.Getenv(EnvSourceDSN)
	}
	if j.Target.DSN == "" {
		j.Target.DSN = os.Getenv(EnvTargetDSN)
	}
	if j.Source.Schema == "" {
		j.Source.Schema = store.DefaultSourceSchema
	}
	if j.Target.Schema == "" {
		j.Target.Schema = store.DefaultTargetSchema
	}
	if j.BatchSize <= 0 {
		j.BatchSize = sync.DefaultBatchSize
	}
}

// Validate checks that the job is runnable.
func (j *Job) Validate() error {
	switch j.Driver {
	case "sqlite":
		if j.SQLitePath == "" {
			return fmt.Errorf("sqlite driver requires sqlitePath")
		}
	case "postgres":
		if j.Source.DSN == "" {
			return fmt.Errorf("postgres driver requires source.dsn or %s", EnvSourceDSN)
		}
		if j.Target.DSN == "" {
			return fmt.Errorf("postgres driver requires target.dsn or %s", EnvTargetDSN)
		}
	default:
		return fmt.Errorf("unknown driver %q: must be postgres or sqlite", j.Driver)
	}
	return nil
}

// MinUpdatedAtTime parses the watermark; the zero time when unset.
func (j *Job) MinUpdatedAtTime() (time.Time, error) {
	if j.MinUpdatedAt == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, j.MinUpdatedAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing minUpdatedAt: %w", err)
	}
	return t.UTC(), nil
}
