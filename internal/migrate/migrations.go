package migrate

// Registry returns the built-in migration chain for the normalized
// embed table, oldest first.
func Registry() []Migration {
	return []Migration{
		{
			Revision:    "001_cast_embeds",
			Parent:      "",
			Description: "create the normalized cast_embeds table and its indexes",
			Up: map[Dialect][]string{
				DialectPostgres: {
					`CREATE TABLE IF NOT EXISTS {schema}cast_embeds (
    id BIGSERIAL PRIMARY KEY,
    cast_hash BYTEA NOT NULL,
    cast_fid BIGINT NOT NULL,
    embed_index INTEGER NOT NULL,
    embed_type VARCHAR(16) NOT NULL,
    url TEXT,
    quoted_cast_hash BYTEA,
    quoted_cast_fid BIGINT,
    raw_embed_data TEXT NOT NULL,
    processed_at TIMESTAMP NOT NULL DEFAULT NOW(),
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
    UNIQUE (cast_hash, embed_index)
)`,
					`CREATE INDEX IF NOT EXISTS idx_cast_embeds_cast_hash ON {schema}cast_embeds(cast_hash)`,
					`CREATE INDEX IF NOT EXISTS idx_cast_embeds_cast_fid ON {schema}cast_embeds(cast_fid)`,
					`CREATE INDEX IF NOT EXISTS idx_cast_embeds_embed_type ON {schema}cast_embeds(embed_type)`,
					`CREATE INDEX IF NOT EXISTS idx_cast_embeds_processed_at ON {schema}cast_embeds(processed_at)`,
					`CREATE INDEX IF NOT EXISTS idx_cast_embeds_url_only ON {schema}cast_embeds(url)
    WHERE embed_type = 'url' AND url IS NOT NULL`,
					`CREATE INDEX IF NOT EXISTS idx_cast_embeds_quote_only
    ON {schema}cast_embeds(quoted_cast_hash, quoted_cast_fid)
    WHERE embed_type = 'cast_id' AND quoted_cast_hash IS NOT NULL`,
				},
				DialectSQLite: {
					`CREATE TABLE IF NOT EXISTS cast_embeds (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    cast_hash BLOB NOT NULL,
    cast_fid INTEGER NOT NULL,
    embed_index INTEGER NOT NULL,
    embed_type TEXT NOT NULL,
    url TEXT,
    quoted_cast_hash BLOB,
    quoted_cast_fid INTEGER,
    raw_embed_data TEXT NOT NULL,
    processed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (cast_hash, embed_index)
)`,
					`CREATE INDEX IF NOT EXISTS idx_cast_embeds_cast_hash ON cast_embeds(cast_hash)`,
					`CREATE INDEX IF NOT EXISTS idx_cast_embeds_cast_fid ON cast_embeds(cast_fid)`,
					`CREATE INDEX IF NOT EXISTS idx_cast_embeds_embed_type ON cast_embeds(embed_type)`,
					`CREATE INDEX IF NOT EXISTS idx_cast_embeds_processed_at ON cast_embeds(processed_at)`,
					`CREATE INDEX IF NOT EXISTS idx_cast_embeds_url_only ON cast_embeds(url)
    WHERE embed_type = 'url' AND url IS NOT NULL`,
					`CREATE INDEX IF NOT EXISTS idx_cast_embeds_quote_only
    ON cast_embeds(quoted_cast_hash, quoted_cast_fid)
    WHERE embed_type = 'cast_id' AND quoted_cast_hash IS NOT NULL`,
				},
			},
			Down: map[Dialect][]string{
				DialectPostgres: {
					`DROP TABLE IF EXISTS {schema}cast_embeds`,
				},
				DialectSQLite: {
					`DROP TABLE IF EXISTS cast_embeds`,
				},
			},
		},
	}
}
