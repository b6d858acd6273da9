// cmd/lockity/migrate.go
package main

import (
	"fmt"

	"github.com/dangerclosesec/lockity/internal/config"
	"github.com/dangerclosesec/lockity/internal/repository"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the relational schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		db, err := setupDatabase(cfg, verbose)
		if err != nil {
			return fmt.Errorf("setting up database: %w", err)
		}
		if err := repository.AutoMigrate(db); err != nil {
			return err
		}
		logger.Info("schema migrated", "database", cfg.Database.Name)
		return nil
	},
}
