// CLAUDE:SUMMARY Applies the marketintel SQL schema: companies, products, observations, reports, alerts.
package store

import "database/sql"

// Schema is the complete marketintel schema.
const Schema = `
-- Tracked companies. competitor_to points at the company this one competes against.
CREATE TABLE IF NOT EXISTS companies (
    id             TEXT PRIMARY KEY,
    name           TEXT NOT NULL,
    domain         TEXT NOT NULL DEFAULT '',
    industry       TEXT NOT NULL DEFAULT '',
    competitor_to  TEXT REFERENCES companies(id),
    active         INTEGER NOT NULL DEFAULT 1,
    created_at     INTEGER NOT NULL,
    updated_at     INTEGER NOT NULL,
    CHECK (competitor_to IS NULL OR competitor_to != id)
);
CREATE INDEX IF NOT EXISTS idx_companies_competitor ON companies(competitor_to);

-- Tracked products, owned by one company.
CREATE TABLE IF NOT EXISTS products (
    id           TEXT PRIMARY KEY,
    company_id   TEXT NOT NULL REFERENCES companies(id),
    name         TEXT NOT NULL,
    category     TEXT NOT NULL DEFAULT '',
    external_id  TEXT NOT NULL DEFAULT '',
    url          TEXT NOT NULL DEFAULT '',
    config_json  TEXT NOT NULL DEFAULT '{}',
    active       INTEGER NOT NULL DEFAULT 1,
    created_at   INTEGER NOT NULL,
    updated_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_products_company ON products(company_id);
CREATE INDEX IF NOT EXISTS idx_products_active ON products(active);

-- Observations: append-only time series of scraped facts.
CREATE TABLE IF NOT EXISTS observations (
    id             TEXT PRIMARY KEY,
    product_id     TEXT NOT NULL REFERENCES products(id),
    metric         TEXT NOT NULL,
    value          REAL,
    text_value     TEXT,
    source         TEXT NOT NULL DEFAULT '',
    metadata_json  TEXT NOT NULL DEFAULT '{}',
    collected_at   INTEGER NOT NULL,
    created_at     INTEGER NOT NULL,
    CHECK (value IS NOT NULL OR text_value IS NOT NULL),
    CHECK (collected_at <= created_at)
);
CREATE INDEX IF NOT EXISTS idx_observations_series ON observations(product_id, metric, collected_at);
CREATE INDEX IF NOT EXISTS idx_observations_time ON observations(collected_at);
CREATE INDEX IF NOT EXISTS idx_observations_source ON observations(source);

-- Reports. period_key is set for period-scoped kinds (daily, weekly, monthly)
-- and makes generation idempotent per company+kind+period.
CREATE TABLE IF NOT EXISTS reports (
    id             TEXT PRIMARY KEY,
    title          TEXT NOT NULL,
    kind           TEXT NOT NULL,
    company_id     TEXT NOT NULL REFERENCES companies(id),
    period_key     TEXT NOT NULL DEFAULT '',
    window_days    INTEGER NOT NULL DEFAULT 0,
    content_json   TEXT,
    format         TEXT NOT NULL DEFAULT 'json',
    status         TEXT NOT NULL DEFAULT 'pending',
    error          TEXT NOT NULL DEFAULT '',
    generated_at   INTEGER,
    scheduled_for  INTEGER,
    created_at     INTEGER NOT NULL,
    updated_at     INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_reports_period ON reports(company_id, kind, period_key)
    WHERE period_key != '';
CREATE INDEX IF NOT EXISTS idx_reports_company ON reports(company_id, created_at DESC);

-- Alerts raised on significant observation changes.
CREATE TABLE IF NOT EXISTS alerts (
    id              TEXT PRIMARY KEY,
    product_id      TEXT NOT NULL REFERENCES products(id),
    kind            TEXT NOT NULL,
    previous_value  REAL NOT NULL,
    current_value   REAL NOT NULL,
    change_percent  REAL NOT NULL,
    message         TEXT NOT NULL,
    created_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_alerts_product ON alerts(product_id, created_at DESC);
`

// ApplySchema creates all tables and indexes. Idempotent.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
