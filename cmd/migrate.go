package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply store migrations and prune expired search cache rows",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("import"); err != nil {
			return err
		}
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		pruned, err := st.DeleteExpiredSearches(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "migrate: prune search cache")
		}

		zap.L().Info("store migrated",
			zap.String("driver", cfg.Store.Driver),
			zap.Int("expired_searches_pruned", pruned),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
