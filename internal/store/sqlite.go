package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/chem-advisor/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS products (
	id             TEXT PRIMARY KEY,
	product_key    TEXT NOT NULL UNIQUE,
	name           TEXT NOT NULL,
	manufacturer   TEXT NOT NULL DEFAULT '',
	cas_number     TEXT NOT NULL DEFAULT '',
	chemical_name  TEXT NOT NULL DEFAULT '',
	category       TEXT NOT NULL DEFAULT '',
	description    TEXT NOT NULL DEFAULT '',
	is_active      INTEGER NOT NULL DEFAULT 1,
	product_number TEXT NOT NULL DEFAULT '',
	source         TEXT NOT NULL DEFAULT 'catalog',
	created_at     DATETIME NOT NULL,
	updated_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS replacement_runs (
	id                  TEXT PRIMARY KEY,
	original_product_id TEXT NOT NULL,
	request             TEXT NOT NULL,
	original            TEXT,
	criteria            TEXT,
	status              TEXT NOT NULL DEFAULT 'queued',
	candidate_pool      INTEGER NOT NULL DEFAULT 0,
	candidates          TEXT,
	error               TEXT,
	created_at          DATETIME NOT NULL,
	updated_at          DATETIME NOT NULL,
	completed_at        DATETIME
);

CREATE TABLE IF NOT EXISTS search_cache (
	cache_key  TEXT PRIMARY KEY,
	query      TEXT NOT NULL,
	result     TEXT NOT NULL,
	cached_at  DATETIME NOT NULL,
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_products_category ON products(category);
CREATE INDEX IF NOT EXISTS idx_products_cas ON products(cas_number);
CREATE INDEX IF NOT EXISTS idx_runs_status ON replacement_runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_original ON replacement_runs(original_product_id);
CREATE INDEX IF NOT EXISTS idx_search_cache_expires_at ON search_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Products ---

const sqliteUpsertProduct = `
INSERT INTO products (id, product_key, name, manufacturer, cas_number, chemical_name, category,
	description, is_active, product_number, source, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (product_key) DO UPDATE SET
	name = excluded.name,
	manufacturer = excluded.manufacturer,
	cas_number = excluded.cas_number,
	chemical_name = excluded.chemical_name,
	category = excluded.category,
	description = excluded.description,
	is_active = excluded.is_active,
	product_number = excluded.product_number,
	source = excluded.source,
	updated_at = excluded.updated_at
RETURNING id, created_at`

const sqliteProductColumns = `id, name, manufacturer, cas_number, chemical_name, category, description,
	is_active, product_number, source, created_at, updated_at`

type execQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) UpsertProduct(ctx context.Context, p *model.Product) error {
	return upsertSQLiteProduct(ctx, s.db, p)
}

func upsertSQLiteProduct(ctx context.Context, q execQuerier, p *model.Product) error {
	prepareProduct(p)
	err := q.QueryRowContext(ctx, sqliteUpsertProduct,
		p.ID, p.Key(), p.Name, p.Manufacturer, p.CASNumber, p.ChemicalName, p.Category,
		p.Description, p.IsActive, p.ProductNumber, string(p.Source), p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID, &p.CreatedAt)
	return eris.Wrapf(err, "sqlite: upsert product %s", p.Name)
}

func (s *SQLiteStore) UpsertProducts(ctx context.Context, products []model.Product) (int, error) {
	if len(products) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	for i := range products {
		if err := upsertSQLiteProduct(ctx, tx, &products[i]); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit products")
	}
	return len(products), nil
}

func (s *SQLiteStore) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteProductColumns+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get product %s", id)
	}
	return p, nil
}

func (s *SQLiteStore) ListProducts(ctx context.Context, filter ProductFilter) ([]model.Product, error) {
	query := `SELECT ` + sqliteProductColumns + ` FROM products WHERE 1=1`
	var args []any

	if filter.Category != "" {
		query += ` AND lower(category) = lower(?)`
		args = append(args, filter.Category)
	}
	if filter.Manufacturer != "" {
		query += ` AND lower(manufacturer) = lower(?)`
		args = append(args, filter.Manufacturer)
	}
	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, filter.Source)
	}
	if filter.ActiveOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY name LIMIT ?`
	args = append(args, listLimit(filter.Limit))
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	return s.queryProducts(ctx, query, args...)
}

func (s *SQLiteStore) SearchProducts(ctx context.Context, query string, limit int) ([]model.Product, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	return s.queryProducts(ctx,
		`SELECT `+sqliteProductColumns+` FROM products
		 WHERE lower(name) LIKE ? OR lower(chemical_name) LIKE ? OR lower(manufacturer) LIKE ? OR cas_number = ?
		 ORDER BY name LIMIT ?`,
		pattern, pattern, pattern, strings.TrimSpace(query), listLimit(limit),
	)
}

func (s *SQLiteStore) queryProducts(ctx context.Context, query string, args ...any) ([]model.Product, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query products")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan product")
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: query products iterate")
}

// --- Runs ---

const sqliteRunColumns = `id, request, original, criteria, status, candidate_pool, candidates, error,
	created_at, completed_at`

func (s *SQLiteStore) CreateRun(ctx context.Context, req model.ReplacementRequest) (*model.ReplacementRun, error) {
	run := newRun(req)

	reqJSON, err := json.Marshal(run.Request)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal request")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO replacement_runs (id, original_product_id, request, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, req.OriginalProductID, string(reqJSON), string(run.Status), run.CreatedAt, run.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return run, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE replacement_runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, run *model.ReplacementRun) error {
	enc, err := encodeRun(run)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE replacement_runs SET original = ?, criteria = ?, candidates = ?, candidate_pool = ?,
			status = ?, updated_at = ?, completed_at = ? WHERE id = ?`,
		string(enc.original), string(enc.criteria), string(enc.candidates), run.CandidatePool,
		string(model.RunStatusComplete), time.Now().UTC(), enc.completedAt, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", run.ID)
	}
	return checkRowsAffected(res, "run", run.ID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, reason string) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE replacement_runs SET status = ?, error = ?, updated_at = ?, completed_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), reason, now, now, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.ReplacementRun, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteRunColumns+` FROM replacement_runs WHERE id = ?`, runID)
	r, err := scanSQLiteRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.ReplacementRun, error) {
	query := `SELECT ` + sqliteRunColumns + ` FROM replacement_runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.OriginalProductID != "" {
		query += ` AND original_product_id = ?`
		args = append(args, filter.OriginalProductID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, listLimit(filter.Limit))
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.ReplacementRun
	for rows.Next() {
		r, err := scanSQLiteRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// --- Search cache ---

func (s *SQLiteStore) GetCachedSearch(ctx context.Context, key string) (*model.SearchResult, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT result FROM search_cache WHERE cache_key = ? AND expires_at > ?`,
		key, time.Now().UTC(),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached search")
	}

	var r model.SearchResult
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal cached search")
	}
	return &r, nil
}

func (s *SQLiteStore) SetCachedSearch(ctx context.Context, key string, r *model.SearchResult, ttl time.Duration) error {
	data, err := json.Marshal(r)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal search result")
	}
	now := time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO search_cache (cache_key, query, result, cached_at, expires_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (cache_key) DO UPDATE SET
			query = excluded.query, result = excluded.result,
			cached_at = excluded.cached_at, expires_at = excluded.expires_at`,
		key, r.Query, string(data), now, now.Add(ttl),
	)
	return eris.Wrap(err, "sqlite: set cached search")
}

func (s *SQLiteStore) DeleteExpiredSearches(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM search_cache WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired searches")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanProduct(row scannable) (*model.Product, error) {
	var p model.Product
	var source string
	if err := row.Scan(&p.ID, &p.Name, &p.Manufacturer, &p.CASNumber, &p.ChemicalName, &p.Category,
		&p.Description, &p.IsActive, &p.ProductNumber, &source, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Source = model.ProductSource(source)
	return &p, nil
}

func scanSQLiteRun(row scannable) (*model.ReplacementRun, error) {
	var (
		r                              model.ReplacementRun
		reqJSON                        string
		original, criteria, candidates sql.NullString
		runErr                         sql.NullString
		completedAt                    sql.NullTime
	)
	if err := row.Scan(&r.ID, &reqJSON, &original, &criteria, &r.Status, &r.CandidatePool,
		&candidates, &runErr, &r.CreatedAt, &completedAt); err != nil {
		return nil, err
	}

	if err := decodeRun(&r, []byte(reqJSON), nullBytes(original), nullBytes(criteria), nullBytes(candidates)); err != nil {
		return nil, err
	}
	r.Error = runErr.String
	if completedAt.Valid {
		t := completedAt.Time
		r.CompletedAt = &t
	}
	return &r, nil
}

func nullBytes(ns sql.NullString) []byte {
	if !ns.Valid {
		return nil
	}
	return []byte(ns.String)
}

// prepareProduct assigns an ID and timestamps to a product about to be written.
func prepareProduct(p *model.Product) {
	now := time.Now().UTC()
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.Source == "" {
		p.Source = model.SourceCatalog
	}
}

func newRun(req model.ReplacementRequest) *model.ReplacementRun {
	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	return &model.ReplacementRun{
		ID:        uuid.New().String(),
		Request:   req,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
	}
}

type encodedRun struct {
	original    []byte
	criteria    []byte
	candidates  []byte
	completedAt time.Time
}

func encodeRun(run *model.ReplacementRun) (encodedRun, error) {
	var enc encodedRun
	var err error
	if enc.original, err = json.Marshal(run.Original); err != nil {
		return enc, err
	}
	if enc.criteria, err = json.Marshal(run.Criteria); err != nil {
		return enc, err
	}
	candidates := run.Candidates
	if candidates == nil {
		candidates = []model.ReplacementCandidate{}
	}
	if enc.candidates, err = json.Marshal(candidates); err != nil {
		return enc, err
	}
	enc.completedAt = time.Now().UTC()
	if run.CompletedAt != nil {
		enc.completedAt = *run.CompletedAt
	}
	return enc, nil
}

func decodeRun(r *model.ReplacementRun, reqJSON, original, criteria, candidates []byte) error {
	if err := json.Unmarshal(reqJSON, &r.Request); err != nil {
		return eris.Wrap(err, "unmarshal request")
	}
	if len(original) > 0 && string(original) != "null" {
		r.Original = &model.Product{}
		if err := json.Unmarshal(original, r.Original); err != nil {
			return eris.Wrap(err, "unmarshal original")
		}
	}
	if len(criteria) > 0 {
		if err := json.Unmarshal(criteria, &r.Criteria); err != nil {
			return eris.Wrap(err, "unmarshal criteria")
		}
	}
	if len(candidates) > 0 {
		if err := json.Unmarshal(candidates, &r.Candidates); err != nil {
			return eris.Wrap(err, "unmarshal candidates")
		}
	}
	return nil
}
