package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"rea/internal/domain"
)

func classifyCmd() *cobra.Command {
	var (
		strategy string
		role     string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "classify [task]",
		Short: "Show which role a task routes to, without running it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := taskText(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, appOptions{strategy: strategy, noTools: true})
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.classifier.ClassifyDetailed(cmd.Context(), domain.Task{Text: text, Role: role})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				scores := make(map[string]int, len(res.Scores))
				for r, n := range res.Scores {
					scores[string(r)] = n
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"role":   res.Profile.Role,
					"name":   res.Profile.Role.DisplayName(),
					"method": res.Method,
					"scores": scores,
					"reason": res.Reason,
					"tokens": res.Usage.TotalTokens,
				})
			}
			fmt.Fprintf(out, "role:   %s\n", res.Profile.Role.DisplayName())
			fmt.Fprintf(out, "method: %s\n", res.Method)
			if len(res.Scores) > 0 {
				roles := make([]domain.Role, 0, len(res.Scores))
				for r := range res.Scores {
					roles = append(roles, r)
				}
				sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
				fmt.Fprintln(out, "scores:")
				for _, r := range roles {
					fmt.Fprintf(out, "  %-16s %d\n", r.DisplayName(), res.Scores[r])
				}
			}
			if res.Reason != "" {
				fmt.Fprintf(out, "reason: %s\n", res.Reason)
			}
			if res.Usage.TotalTokens > 0 {
				fmt.Fprintf(out, "tokens: %d\n", res.Usage.TotalTokens)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&strategy, "strategy", "", "classifier strategy: llm, keyword or hybrid")
	cmd.Flags().StringVar(&role, "role", "", "role override to validate")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}
