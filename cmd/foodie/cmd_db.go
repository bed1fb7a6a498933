package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/foodie/config"
	"github.com/shashiranjanraj/foodie/database/seeders"
	"github.com/shashiranjanraj/foodie/pkg/database"
	"github.com/shashiranjanraj/foodie/pkg/logger"
	"github.com/shashiranjanraj/foodie/pkg/migration"
)

var migrateSeedFlag bool

// withDB runs fn against a fresh connection that is closed afterwards.
// Database commands do not need Redis, storage or the payment provider,
// so they skip server.Bootstrap.
func withDB(fn func(cmd *cobra.Command, args []string, db *gorm.DB) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := config.Load(); err != nil {
			return err
		}
		if err := logger.Configure(); err != nil {
			return err
		}
		if err := database.Connect(); err != nil {
			return err
		}
		defer database.Close()
		return fn(cmd, args, database.DB)
	}
}

// foodie migrate [--seed]
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending migrations",
	RunE: withDB(func(cmd *cobra.Command, _ []string, db *gorm.DB) error {
		n, err := migration.New(db).WithOutput(os.Stdout).Run()
		if err != nil {
			return err
		}
		if n == 0 {
			fmt.Println("Nothing to migrate.")
		} else {
			fmt.Printf("✅ Applied %d migration(s).\n", n)
		}
		if migrateSeedFlag {
			return seeders.Run(cmd.Context(), db, os.Stdout)
		}
		return nil
	}),
}

// foodie migrate:rollback
var migrateRollbackCmd = &cobra.Command{
	Use:   "migrate:rollback",
	Short: "Undo the most recent batch of migrations",
	RunE: withDB(func(_ *cobra.Command, _ []string, db *gorm.DB) error {
		n, err := migration.New(db).WithOutput(os.Stdout).Rollback()
		if err != nil {
			return err
		}
		fmt.Printf("↩️  Rolled back %d migration(s).\n", n)
		return nil
	}),
}

// foodie migrate:status
var migrateStatusCmd = &cobra.Command{
	Use:   "migrate:status",
	Short: "Show which migrations have run",
	RunE: withDB(func(_ *cobra.Command, _ []string, db *gorm.DB) error {
		rows, err := migration.New(db).Status()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "MIGRATION\tBATCH\tSTATE")
		for _, r := range rows {
			batch, state := "-", "pending"
			if r.Ran {
				batch, state = fmt.Sprint(r.Batch), "ran"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, batch, state)
		}
		return w.Flush()
	}),
}

// foodie seed [name...]
var seedCmd = &cobra.Command{
	Use:       "seed [name...]",
	Short:     "Fill the database with sample data (every seeder when no name is given)",
	ValidArgs: seeders.Names(),
	RunE: withDB(func(cmd *cobra.Command, args []string, db *gorm.DB) error {
		return seeders.Run(cmd.Context(), db, os.Stdout, args...)
	}),
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateSeedFlag, "seed", false, "Run the seeders after migrating")
}
