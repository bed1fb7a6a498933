package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/foodie/app/routes"
	"github.com/shashiranjanraj/foodie/internal/kernel"
	"github.com/shashiranjanraj/foodie/internal/server"
)

// foodie serve
var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"run"},
	Short:   "Start the HTTP server with workers and scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Start(cmd.Context())
	},
}

// foodie route:list
var routeListCmd = &cobra.Command{
	Use:   "route:list",
	Short: "List all registered routes",
	RunE: func(cmd *cobra.Command, args []string) error {
		k := kernel.NewHTTPKernel(routes.Deps{})

		table := k.Router().Routes()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "METHOD\tPATH\tNAME")
		fmt.Fprintln(w, "------\t----\t----")
		for _, rt := range table {
			fmt.Fprintf(w, "%s\t%s\t%s\n", rt.Method, rt.Path, rt.Name)
		}
		return w.Flush()
	},
}
