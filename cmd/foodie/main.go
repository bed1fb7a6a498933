// Command foodie is the API server and its operator tooling: migrations,
// seeders, queue workers, the scheduler and admin accounts.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	_ "github.com/shashiranjanraj/foodie/database/migrations"
	_ "github.com/shashiranjanraj/foodie/database/seeders"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "foodie:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "foodie",
		Short:         "Food ordering API and operator tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddGroup(
		&cobra.Group{ID: "http", Title: "Serving:"},
		&cobra.Group{ID: "db", Title: "Database:"},
		&cobra.Group{ID: "work", Title: "Background work:"},
		&cobra.Group{ID: "admin", Title: "Administration:"},
	)

	add := func(group string, cmds ...*cobra.Command) {
		for _, c := range cmds {
			c.GroupID = group
			root.AddCommand(c)
		}
	}
	add("http", serveCmd, routeListCmd)
	add("db", migrateCmd, migrateRollbackCmd, migrateStatusCmd, seedCmd)
	add("work", queueWorkCmd, queueFailedCmd, queueRetryCmd, scheduleRunCmd)
	add("admin", createAdminCmd)
	return root
}
