package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/chem-advisor/internal/db"
	"github.com/sells-group/chem-advisor/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"get_product":       `SELECT ` + pgProductColumns + ` FROM products WHERE id = $1`,
	"insert_run":        `INSERT INTO replacement_runs (id, original_product_id, request, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
	"update_run_status": `UPDATE replacement_runs SET status = $1, updated_at = $2 WHERE id = $3`,
	"get_run":           `SELECT ` + pgRunColumns + ` FROM replacement_runs WHERE id = $1`,
	"get_cached_search": `SELECT result FROM search_cache WHERE cache_key = $1 AND expires_at > now()`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS products (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	product_key    TEXT NOT NULL UNIQUE,
	name           TEXT NOT NULL,
	manufacturer   TEXT NOT NULL DEFAULT '',
	cas_number     TEXT NOT NULL DEFAULT '',
	chemical_name  TEXT NOT NULL DEFAULT '',
	category       TEXT NOT NULL DEFAULT '',
	description    TEXT NOT NULL DEFAULT '',
	is_active      BOOLEAN NOT NULL DEFAULT true,
	product_number TEXT NOT NULL DEFAULT '',
	source         TEXT NOT NULL DEFAULT 'catalog',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS replacement_runs (
	id                  TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	original_product_id TEXT NOT NULL,
	request             JSONB NOT NULL,
	original            JSONB,
	criteria            JSONB,
	status              TEXT NOT NULL DEFAULT 'queued',
	candidate_pool      INTEGER NOT NULL DEFAULT 0,
	candidates          JSONB,
	error               TEXT,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at        TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS search_cache (
	cache_key  TEXT PRIMARY KEY,
	query      TEXT NOT NULL,
	result     JSONB NOT NULL,
	cached_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_products_category ON products(lower(category));
CREATE INDEX IF NOT EXISTS idx_products_cas ON products(cas_number);
CREATE INDEX IF NOT EXISTS idx_runs_status ON replacement_runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_original ON replacement_runs(original_product_id);
CREATE INDEX IF NOT EXISTS idx_search_cache_expires_at ON search_cache(expires_at);
`

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Products ---

const pgProductColumns = `id, name, manufacturer, cas_number, chemical_name, category, description, is_active, product_number, source, created_at, updated_at`

// productUpsertColumns is the column order shared by UpsertProduct and the bulk path.
var productUpsertColumns = []string{
	"id", "product_key", "name", "manufacturer", "cas_number", "chemical_name", "category",
	"description", "is_active", "product_number", "source", "created_at", "updated_at",
}

func productRow(p *model.Product) []any {
	return []any{
		p.ID, p.Key(), p.Name, p.Manufacturer, p.CASNumber, p.ChemicalName, p.Category,
		p.Description, p.IsActive, p.ProductNumber, string(p.Source), p.CreatedAt, p.UpdatedAt,
	}
}

func (s *PostgresStore) UpsertProduct(ctx context.Context, p *model.Product) error {
	prepareProduct(p)
	err := s.pool.QueryRow(ctx,
		`INSERT INTO products (id, product_key, name, manufacturer, cas_number, chemical_name, category,
			description, is_active, product_number, source, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (product_key) DO UPDATE SET
			name = EXCLUDED.name, manufacturer = EXCLUDED.manufacturer,
			cas_number = EXCLUDED.cas_number, chemical_name = EXCLUDED.chemical_name,
			category = EXCLUDED.category, description = EXCLUDED.description,
			is_active = EXCLUDED.is_active, product_number = EXCLUDED.product_number,
			source = EXCLUDED.source, updated_at = EXCLUDED.updated_at
		 RETURNING id, created_at`,
		productRow(p)...,
	).Scan(&p.ID, &p.CreatedAt)
	return eris.Wrapf(err, "postgres: upsert product %s", p.Name)
}

// UpsertProducts merges products in bulk. Rows sharing a key keep the last one.
func (s *PostgresStore) UpsertProducts(ctx context.Context, products []model.Product) (int, error) {
	if len(products) == 0 {
		return 0, nil
	}

	seen := make(map[string]int, len(products))
	rows := make([][]any, 0, len(products))
	for i := range products {
		p := &products[i]
		prepareProduct(p)
		if idx, ok := seen[p.Key()]; ok {
			rows[idx] = productRow(p)
			continue
		}
		seen[p.Key()] = len(rows)
		rows = append(rows, productRow(p))
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "products",
		Columns:      productUpsertColumns,
		ConflictKeys: []string{"product_key"},
		UpdateCols: []string{
			"name", "manufacturer", "cas_number", "chemical_name", "category",
			"description", "is_active", "product_number", "source", "updated_at",
		},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert products")
	}
	return int(n), nil
}

func (s *PostgresStore) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgProductColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get product %s", id)
	}
	return p, nil
}

func (s *PostgresStore) ListProducts(ctx context.Context, filter ProductFilter) ([]model.Product, error) {
	query := `SELECT ` + pgProductColumns + ` FROM products WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Category != "" {
		query += fmt.Sprintf(` AND lower(category) = lower($%d)`, argIdx)
		args = append(args, filter.Category)
		argIdx++
	}
	if filter.Manufacturer != "" {
		query += fmt.Sprintf(` AND lower(manufacturer) = lower($%d)`, argIdx)
		args = append(args, filter.Manufacturer)
		argIdx++
	}
	if filter.Source != "" {
		query += fmt.Sprintf(` AND source = $%d`, argIdx)
		args = append(args, filter.Source)
		argIdx++
	}
	if filter.ActiveOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY name`

	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter.Limit))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	return s.queryProducts(ctx, query, args...)
}

func (s *PostgresStore) SearchProducts(ctx context.Context, query string, limit int) ([]model.Product, error) {
	q := strings.TrimSpace(query)
	return s.queryProducts(ctx,
		`SELECT `+pgProductColumns+` FROM products
		 WHERE name ILIKE $1 OR chemical_name ILIKE $1 OR manufacturer ILIKE $1 OR cas_number = $2
		 ORDER BY name LIMIT $3`,
		"%"+q+"%", q, listLimit(limit),
	)
}

func (s *PostgresStore) queryProducts(ctx context.Context, query string, args ...any) ([]model.Product, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query products")
	}
	defer rows.Close()

	var out []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan product")
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: query products iterate")
}

// --- Runs ---

const pgRunColumns = `id, request, original, criteria, status, candidate_pool, candidates, error, created_at, completed_at`

func (s *PostgresStore) CreateRun(ctx context.Context, req model.ReplacementRequest) (*model.ReplacementRun, error) {
	run := newRun(req)

	reqJSON, err := json.Marshal(run.Request)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal request")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO replacement_runs (id, original_product_id, request, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, req.OriginalProductID, reqJSON, string(run.Status), run.CreatedAt, run.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return run, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE replacement_runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, run *model.ReplacementRun) error {
	enc, err := encodeRun(run)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE replacement_runs SET original = $1, criteria = $2, candidates = $3, candidate_pool = $4,
			status = $5, updated_at = $6, completed_at = $7 WHERE id = $8`,
		enc.original, enc.criteria, enc.candidates, run.CandidatePool,
		string(model.RunStatusComplete), time.Now().UTC(), enc.completedAt, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", run.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", run.ID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, reason string) error {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE replacement_runs SET status = $1, error = $2, updated_at = $3, completed_at = $4 WHERE id = $5`,
		string(model.RunStatusFailed), reason, now, now, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.ReplacementRun, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgRunColumns+` FROM replacement_runs WHERE id = $1`, runID)
	r, err := scanPostgresRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.ReplacementRun, error) {
	query := `SELECT ` + pgRunColumns + ` FROM replacement_runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.OriginalProductID != "" {
		query += fmt.Sprintf(` AND original_product_id = $%d`, argIdx)
		args = append(args, filter.OriginalProductID)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter.Limit))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.ReplacementRun
	for rows.Next() {
		r, err := scanPostgresRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func scanPostgresRun(row scannable) (*model.ReplacementRun, error) {
	var (
		r                              model.ReplacementRun
		reqJSON                        []byte
		original, criteria, candidates []byte
		runErr                         *string
	)
	if err := row.Scan(&r.ID, &reqJSON, &original, &criteria, &r.Status, &r.CandidatePool,
		&candidates, &runErr, &r.CreatedAt, &r.CompletedAt); err != nil {
		return nil, err
	}
	if err := decodeRun(&r, reqJSON, original, criteria, candidates); err != nil {
		return nil, err
	}
	if runErr != nil {
		r.Error = *runErr
	}
	return &r, nil
}

// --- Search cache ---

func (s *PostgresStore) GetCachedSearch(ctx context.Context, key string) (*model.SearchResult, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT result FROM search_cache WHERE cache_key = $1 AND expires_at > now()`,
		key,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get cached search")
	}

	var r model.SearchResult
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal cached search")
	}
	return &r, nil
}

func (s *PostgresStore) SetCachedSearch(ctx context.Context, key string, r *model.SearchResult, ttl time.Duration) error {
	data, err := json.Marshal(r)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal search result")
	}
	now := time.Now().UTC()

	_, err = s.pool.Exec(ctx,
		`INSERT INTO search_cache (cache_key, query, result, cached_at, expires_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (cache_key) DO UPDATE SET
			query = EXCLUDED.query, result = EXCLUDED.result,
			cached_at = EXCLUDED.cached_at, expires_at = EXCLUDED.expires_at`,
		key, r.Query, data, now, now.Add(ttl),
	)
	return eris.Wrap(err, "postgres: set cached search")
}

func (s *PostgresStore) DeleteExpiredSearches(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM search_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired searches")
	}
	return int(tag.RowsAffected()), nil
}
