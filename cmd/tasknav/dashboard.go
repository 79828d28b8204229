package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func dashboardCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Summarize your tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()
			if err := c.requireSession(); err != nil {
				return err
			}

			summary, err := c.app.Dashboard(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(c.out)
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}

			fmt.Fprintf(c.out, "Total tasks:     %d\n", summary.Total)
			fmt.Fprintf(c.out, "Completed:       %d\n", summary.Completed)
			fmt.Fprintf(c.out, "Due in 48 hours: %d\n", summary.DueSoon)
			fmt.Fprintln(c.out, "\nCompleted this week:")
			for _, day := range summary.Weekly {
				fmt.Fprintf(c.out, "  %s %-3d %s\n", day.Day, day.Count, strings.Repeat("#", day.Count))
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "output as JSON")
	return cmd
}
