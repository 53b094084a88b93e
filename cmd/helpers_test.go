package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/chem-advisor/internal/config"
	"github.com/sells-group/chem-advisor/internal/model"
	"github.com/sells-group/chem-advisor/internal/replacement"
	"github.com/sells-group/chem-advisor/internal/store"
)

// testConfig returns a config backed by a fresh SQLite file.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Store: config.StoreConfig{
			Driver:     "sqlite",
			SQLitePath: filepath.Join(t.TempDir(), "test.db"),
		},
		Server:      config.ServerConfig{Port: 8080},
		Cache:       config.CacheConfig{Backend: "memory", TTLSecs: 60},
		Replacement: replacement.DefaultConfig(),
		Catalog:     config.CatalogConfig{BatchSize: 100, TempDir: t.TempDir()},
	}
}

// seedProducts writes products into the configured store.
func seedProducts(t *testing.T, products ...model.Product) {
	t.Helper()
	ctx := context.Background()
	st, err := openStore(ctx)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	n, err := st.UpsertProducts(ctx, products)
	require.NoError(t, err)
	require.Equal(t, len(products), n)
}

// withStore opens the configured store for assertions.
func withStore(t *testing.T, fn func(store.Store)) {
	t.Helper()
	st, err := openStore(context.Background())
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	fn(st)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
