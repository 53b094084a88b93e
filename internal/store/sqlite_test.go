package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/chem-advisor/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedProducts(t *testing.T, st *SQLiteStore) []model.Product {
	t.Helper()
	products := []model.Product{
		{Name: "SIPERNAT 22", Manufacturer: "Evonik", CASNumber: "7631-86-9", ChemicalName: "Silicon dioxide", Category: "Precipitated Silica", IsActive: true},
		{Name: "ZEOSIL 1165MP", Manufacturer: "Solvay", CASNumber: "7631-86-9", ChemicalName: "Silicon dioxide", Category: "Precipitated Silica", IsActive: true},
		{Name: "AEROSIL 200", Manufacturer: "Evonik", CASNumber: "112945-52-5", ChemicalName: "Fumed silica", Category: "Fumed Silica", IsActive: false},
	}
	n, err := st.UpsertProducts(context.Background(), products)
	require.NoError(t, err)
	require.Equal(t, len(products), n)
	return products
}

// --- Products ---

func TestSQLite_UpsertProduct_AssignsIDAndKeepsItOnConflict(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	p := &model.Product{Name: "SIPERNAT 22", Manufacturer: "Evonik", Category: "Silica", IsActive: true}
	require.NoError(t, st.UpsertProduct(ctx, p))
	require.NotEmpty(t, p.ID)
	assert.Equal(t, model.SourceCatalog, p.Source)
	firstID := p.ID

	again := &model.Product{Name: "sipernat 22", Manufacturer: "EVONIK", Category: "Precipitated Silica", IsActive: true}
	require.NoError(t, st.UpsertProduct(ctx, again))
	assert.Equal(t, firstID, again.ID)

	got, err := st.GetProduct(ctx, firstID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Precipitated Silica", got.Category)
	assert.True(t, got.IsActive)
}

func TestSQLite_GetProduct_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.GetProduct(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_UpsertProducts_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)

	n, err := st.UpsertProducts(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSQLite_ListProducts(t *testing.T) {
	st := newTestSQLiteStore(t)
	seedProducts(t, st)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter ProductFilter
		want   []string
	}{
		{"all", ProductFilter{}, []string{"AEROSIL 200", "SIPERNAT 22", "ZEOSIL 1165MP"}},
		{"category case insensitive", ProductFilter{Category: "precipitated silica"}, []string{"SIPERNAT 22", "ZEOSIL 1165MP"}},
		{"manufacturer", ProductFilter{Manufacturer: "evonik"}, []string{"AEROSIL 200", "SIPERNAT 22"}},
		{"active only", ProductFilter{ActiveOnly: true}, []string{"SIPERNAT 22", "ZEOSIL 1165MP"}},
		{"limit and offset", ProductFilter{Limit: 1, Offset: 1}, []string{"SIPERNAT 22"}},
		{"no match", ProductFilter{Category: "Pigments"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := st.ListProducts(ctx, tt.filter)
			require.NoError(t, err)
			var names []string
			for _, p := range got {
				names = append(names, p.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestSQLite_SearchProducts(t *testing.T) {
	st := newTestSQLiteStore(t)
	seedProducts(t, st)
	ctx := context.Background()

	got, err := st.SearchProducts(ctx, "silicon", 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = st.SearchProducts(ctx, "112945-52-5", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "AEROSIL 200", got[0].Name)

	got, err = st.SearchProducts(ctx, "solvay", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ZEOSIL 1165MP", got[0].Name)
}

// --- Runs ---

func TestSQLite_RunLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	req := model.ReplacementRequest{OriginalProductID: "p-1", RequestedBy: "tester"}
	run, err := st.CreateRun(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusQueued, run.Status)
	assert.NotEmpty(t, run.ID)

	require.NoError(t, st.UpdateRunStatus(ctx, run.ID, model.RunStatusScoring))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.RunStatusScoring, got.Status)
	assert.Equal(t, "p-1", got.Request.OriginalProductID)
	assert.Nil(t, got.CompletedAt)

	completedAt := time.Now().UTC()
	run.Original = &model.Product{ID: "p-1", Name: "SIPERNAT 22"}
	run.CandidatePool = 3
	run.Candidates = []model.ReplacementCandidate{
		{Product: model.Product{ID: "p-2", Name: "ZEOSIL 1165MP"}},
	}
	run.CompletedAt = &completedAt
	require.NoError(t, st.CompleteRun(ctx, run))

	got, err = st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	require.NotNil(t, got.Original)
	assert.Equal(t, "SIPERNAT 22", got.Original.Name)
	assert.Equal(t, 3, got.CandidatePool)
	require.Len(t, got.Candidates, 1)
	assert.Equal(t, "ZEOSIL 1165MP", got.Candidates[0].Product.Name)
	assert.NotNil(t, got.CompletedAt)
}

func TestSQLite_FailRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, model.ReplacementRequest{OriginalProductID: "p-1"})
	require.NoError(t, err)
	require.NoError(t, st.FailRun(ctx, run.ID, "original product not found"))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Equal(t, "original product not found", got.Error)
	assert.NotNil(t, got.CompletedAt)
}

func TestSQLite_RunNotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	got, err := st.GetRun(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	err = st.UpdateRunStatus(ctx, "missing", model.RunStatusScoring)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")

	err = st.FailRun(ctx, "missing", "boom")
	require.Error(t, err)

	err = st.CompleteRun(ctx, &model.ReplacementRun{ID: "missing"})
	require.Error(t, err)
}

func TestSQLite_ListRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.CreateRun(ctx, model.ReplacementRequest{OriginalProductID: "p-1"})
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, model.ReplacementRequest{OriginalProductID: "p-2"})
	require.NoError(t, err)
	require.NoError(t, st.FailRun(ctx, a.ID, "boom"))

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	failed, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, a.ID, failed[0].ID)

	byProduct, err := st.ListRuns(ctx, RunFilter{OriginalProductID: "p-2"})
	require.NoError(t, err)
	require.Len(t, byProduct, 1)
	assert.Equal(t, "p-2", byProduct[0].Request.OriginalProductID)

	limited, err := st.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

// --- Search cache ---

func TestSQLite_SearchCache_SetAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	r := &model.SearchResult{Query: "precipitated silica", Content: "SIPERNAT 22 is a silica."}
	require.NoError(t, st.SetCachedSearch(ctx, "k1", r, time.Hour))

	got, err := st.GetCachedSearch(ctx, "k1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "precipitated silica", got.Query)
	assert.Equal(t, "SIPERNAT 22 is a silica.", got.Content)

	r.Content = "updated"
	require.NoError(t, st.SetCachedSearch(ctx, "k1", r, time.Hour))
	got, err = st.GetCachedSearch(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Content)
}

func TestSQLite_SearchCache_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.GetCachedSearch(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_SearchCache_ExpiredAndSwept(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetCachedSearch(ctx, "old", &model.SearchResult{Query: "old"}, -time.Hour))
	require.NoError(t, st.SetCachedSearch(ctx, "fresh", &model.SearchResult{Query: "fresh"}, time.Hour))

	got, err := st.GetCachedSearch(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, got)

	n, err := st.DeleteExpiredSearches(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err = st.GetCachedSearch(ctx, "fresh")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestSQLiteStore_ImplementsStore(t *testing.T) {
	var _ Store = (*SQLiteStore)(nil)
	var _ Store = (*PostgresStore)(nil)
}
