package main

import (
	"github.com/spf13/cobra"

	"financialreader/pkg/core/store"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations to DATABASE_URL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := store.Migrate(cmd.Context(), a.cfg.Store.DatabaseURL); err != nil {
				return err
			}
			a.logger.Info("migrations applied")
			return nil
		},
	}
}
