package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/astralblue/k3l-fcgraph-embeds/internal/embed"
)

// Scenario defines one end-to-end sync test case.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Casts are the source records to load before syncing.
	Casts []CastFixture `yaml:"casts"`

	// BatchSize overrides the sync batch size when positive.
	BatchSize int `yaml:"batch_size,omitempty"`

	// MinUpdatedAt is an optional RFC 3339 sync watermark.
	MinUpdatedAt string `yaml:"min_updated_at,omitempty"`
}

// CastFixture is one source cast row.
type CastFixture struct {
	// Hash is the cast content hash as 0x-prefixed hex.
	Hash string `yaml:"hash"`

	// FID is the author fid.
	FID int64 `yaml:"fid"`

	// Embeds is the raw payload: either a string stored verbatim
	// (exercising the tolerant parser) or a structured list stored as
	// strict JSON.
	Embeds any `yaml:"embeds"`

	// UpdatedAt is the source-side update time, RFC 3339.
	UpdatedAt string `yaml:"updated_at"`
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields
// are rejected so that typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Casts) == 0 {
		return fmt.Errorf("casts list is required and must be non-empty")
	}
	if s.MinUpdatedAt != "" {
		if _, err := time.Parse(time.RFC3339, s.MinUpdatedAt); err != nil {
			return fmt.Errorf("min_updated_at: %w", err)
		}
	}

	for i, c := range s.Casts {
		if _, err := embed.ParseHash(c.Hash); err != nil {
			return fmt.Errorf("casts[%d].hash: %w", i, err)
		}
		if c.FID <= 0 {
			return fmt.Errorf("casts[%d]: fid must be positive", i)
		}
		if c.UpdatedAt == "" {
			return fmt.Errorf("casts[%d]: updated_at is required", i)
		}
		if _, err := time.Parse(time.RFC3339, c.UpdatedAt); err != nil {
			return fmt.Errorf("casts[%d].updated_at: %w", i, err)
		}
	}
	return nil
}
