// internal/store/schema.go
package store

// Schema is the ordered DDL applied by the server at startup and by the migrate tool.
// Properties reference their group with ON DELETE CASCADE; Groups.Delete also
// removes them explicitly inside one transaction.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		name          TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS search_groups (
		id          TEXT PRIMARY KEY,
		owner_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name        TEXT NOT NULL CHECK (btrim(name) <> ''),
		description TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_search_groups_owner ON search_groups(owner_id)`,
	`CREATE TABLE IF NOT EXISTS properties (
		id                TEXT PRIMARY KEY,
		search_group_id   TEXT NOT NULL REFERENCES search_groups(id) ON DELETE CASCADE,
		url               TEXT NOT NULL DEFAULT '',
		title             TEXT NOT NULL DEFAULT '',
		price             TEXT NOT NULL DEFAULT '',
		address           TEXT NOT NULL DEFAULT '',
		lat               DOUBLE PRECISION,
		lng               DOUBLE PRECISION,
		thumbnail         TEXT NOT NULL DEFAULT '',
		source_name       TEXT NOT NULL DEFAULT '',
		rating            SMALLINT NOT NULL DEFAULT 0 CHECK (rating BETWEEN 0 AND 5),
		status            TEXT NOT NULL DEFAULT 'interested',
		comments          TEXT NOT NULL DEFAULT '',
		contact_name      TEXT NOT NULL DEFAULT '',
		contact_phone     TEXT NOT NULL DEFAULT '',
		next_visit_at     TIMESTAMPTZ,
		favorite          BOOLEAN NOT NULL DEFAULT false,
		covered_area      DOUBLE PRECISION NOT NULL DEFAULT 0,
		uncovered_area    DOUBLE PRECISION NOT NULL DEFAULT 0,
		operation_type    TEXT NOT NULL DEFAULT '',
		property_type     TEXT NOT NULL DEFAULT '',
		floor_label       TEXT NOT NULL DEFAULT '',
		expenses          TEXT NOT NULL DEFAULT '',
		visit_reminded_at TIMESTAMPTZ,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_properties_group ON properties(search_group_id)`,
	`CREATE INDEX IF NOT EXISTS idx_properties_next_visit ON properties(next_visit_at) WHERE visit_reminded_at IS NULL`,
}
