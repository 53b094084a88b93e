package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/chem-advisor/internal/catalog"
	"github.com/sells-group/chem-advisor/internal/store"
	"github.com/sells-group/chem-advisor/pkg/notion"
)

var (
	importNotion     bool
	importActiveOnly bool
)

var importCmd = &cobra.Command{
	Use:   "import [source...]",
	Short: "Import products into the catalog",
	Long:  "Imports products from local .csv, .tsv and .xlsx files, http(s):// and ftp:// URLs, or notion:<database-id>. --notion imports the configured notion.product_db.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if len(args) == 0 && !importNotion {
			return eris.New("import: at least one source or --notion is required")
		}
		mode := "import"
		if importNotion {
			mode = "notion"
		}
		if err := cfg.Validate(mode); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		im := newImporter(st)

		var all []*catalog.ImportStats
		if importNotion {
			stats, err := im.ImportNotion(ctx, cfg.Notion.ProductDB, importActiveOnly)
			if err != nil {
				return eris.Wrap(err, "import notion")
			}
			all = append(all, stats)
		}
		for _, src := range args {
			stats, err := im.Import(ctx, src)
			if err != nil {
				return eris.Wrapf(err, "import %s", src)
			}
			all = append(all, stats)
		}

		formatImportStats(os.Stdout, all)
		return nil
	},
}

// newImporter builds a catalog importer with remote fetchers and, when a
// token is configured, the Notion source.
func newImporter(st store.Store) *catalog.Importer {
	timeout := time.Duration(cfg.Catalog.FetchTimeoutSecs) * time.Second
	opts := []catalog.Option{
		catalog.WithFetcher(catalog.SchemeFetcher{
			HTTP: catalog.NewHTTPFetcher(catalog.HTTPOptions{Timeout: timeout}),
			FTP:  catalog.NewFTPFetcher(catalog.FTPOptions{Timeout: timeout}),
		}),
		catalog.WithBatchSize(cfg.Catalog.BatchSize),
		catalog.WithTempDir(cfg.Catalog.TempDir),
	}
	if cfg.Notion.Token != "" {
		opts = append(opts, catalog.WithNotion(notion.NewClient(cfg.Notion.Token)))
	} else {
		zap.L().Debug("CHEMADVISOR_NOTION_TOKEN not set, notion sources disabled")
	}
	return catalog.NewImporter(st, opts...)
}

// formatImportStats writes one row per imported source to w.
func formatImportStats(out io.Writer, all []*catalog.ImportStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SOURCE\tROWS\tIMPORTED\tMISSING_NAME\tINVALID_CAS\tDURATION")
	_, _ = fmt.Fprintln(w, "------\t----\t--------\t------------\t-----------\t--------")
	for _, s := range all {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%s\n",
			s.Source,
			s.Rows,
			s.Imported,
			s.MissingName,
			s.InvalidCAS,
			s.Duration.Round(time.Millisecond),
		)
	}
	_ = w.Flush()
}

func init() {
	importCmd.Flags().BoolVar(&importNotion, "notion", false, "import the configured notion.product_db")
	importCmd.Flags().BoolVar(&importActiveOnly, "active-only", false, "skip inactive Notion products")
	rootCmd.AddCommand(importCmd)
}
