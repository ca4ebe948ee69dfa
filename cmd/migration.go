package cmd

import (
	"errors"
	"fmt"
	"log"
	"strconv"

	"golang-options/config"
	"golang-options/pkg/postgres"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"
)

var migrationsPath string

// withMigrate opens the schema migrator against the configured database and
// closes it after fn.
func withMigrate(fn func(m *migrate.Migrate) error) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Store.Driver == storeDriverMemory {
		log.Fatalf("Migrations need a database, store.driver is %q", cfg.Store.Driver)
	}

	m, err := migrate.New(migrationsPath, postgres.DSN(cfg.DB))
	if err != nil {
		log.Fatalf("Failed to create migration instance: %v", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			log.Printf("Migration source error on close: %v\n", srcErr)
		}
		if dbErr != nil {
			log.Printf("Migration database error on close: %v\n", dbErr)
		}
	}()

	if err := fn(m); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("Migration failed: %v", err)
	}
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all available database migrations",
	Run: func(cmd *cobra.Command, args []string) {
		withMigrate(func(m *migrate.Migrate) error {
			return m.Up()
		})
		fmt.Println("Migration up finished.")
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert the last database migration",
	Run: func(cmd *cobra.Command, args []string) {
		withMigrate(func(m *migrate.Migrate) error {
			return m.Steps(-1)
		})
		fmt.Println("Migration down finished.")
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the applied schema version",
	Run: func(cmd *cobra.Command, args []string) {
		withMigrate(func(m *migrate.Migrate) error {
			version, dirty, err := m.Version()
			if errors.Is(err, migrate.ErrNilVersion) {
				fmt.Println("No migration applied.")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Printf("Schema version %d (dirty: %t)\n", version, dirty)
			return nil
		})
	},
}

var forceCmd = &cobra.Command{
	Use:   "force <version>",
	Short: "Mark a schema version as applied after fixing a failed migration by hand",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		version, err := strconv.Atoi(args[0])
		if err != nil {
			log.Fatalf("Invalid version %q: %v", args[0], err)
		}
		withMigrate(func(m *migrate.Migrate) error {
			return m.Force(version)
		})
		fmt.Printf("Schema forced to version %d.\n", version)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

func init() {
	migrateCmd.PersistentFlags().StringVar(&migrationsPath, "path", "file://migrations", "migrations source URL")
	migrateCmd.AddCommand(upCmd, downCmd, versionCmd, forceCmd)
}
