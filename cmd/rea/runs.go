package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"rea/internal/domain"
	"rea/internal/recorder"
)

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded runs",
	}

	var (
		limit  int
		status string
		role   string
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := recorder.ListOptions{Limit: limit, Status: domain.RunStatus(status)}
			if role != "" {
				r, ok := domain.ParseRole(role)
				if !ok {
					return &domain.UnknownRoleError{Value: role}
				}
				opts.Role = r
			}
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.List(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTARTED\tROLE\tSTATUS\tTOKENS\tCOST\tTASK")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t$%.4f\t%s\n",
					r.ID, r.StartedAt.Local().Format(time.DateTime), roleName(r.Role), r.Status,
					r.Cost.TotalTokens, r.Cost.TotalCost, clip(r.Task, 60))
			}
			return tw.Flush()
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to show")
	list.Flags().StringVar(&status, "status", "", "filter by status")
	list.Flags().StringVar(&role, "role", "", "filter by role")

	var asJSON bool
	show := &cobra.Command{
		Use:   "show [id]",
		Short: "Show one run with its steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			rec, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !asJSON {
				fmt.Fprintf(out, "task: %s\n\n", rec.Task)
			}
			printRecord(out, rec, asJSON, true)
			return nil
		},
	}
	show.Flags().BoolVar(&asJSON, "json", false, "print as JSON")

	cmd.AddCommand(list, show)
	return cmd
}

func openStore() (*recorder.SQLiteStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return recorder.NewSQLiteStore(cfg.Recorder.DBPath, logger)
}

func roleName(r domain.Role) string {
	if r == "" {
		return "-"
	}
	return r.DisplayName()
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
