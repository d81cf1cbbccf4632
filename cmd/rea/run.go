package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"rea/internal/domain"
)

type runFlags struct {
	role     string
	strategy string
	gate     string
	maxSteps int
	asJSON   bool
	verbose  bool
}

func (f *runFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.role, "role", "", "skip classification: product_owner, scrum_lead or peer_reviewer")
	cmd.Flags().StringVar(&f.strategy, "strategy", "", "classifier strategy: llm, keyword or hybrid")
	cmd.Flags().StringVar(&f.gate, "gate", "", "human gate: console, telegram, slack, discord or none")
	cmd.Flags().IntVar(&f.maxSteps, "max-steps", 0, "step budget (default general.maxSteps)")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print the run record as JSON")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "print every step")
}

func (f *runFlags) options() appOptions {
	return appOptions{strategy: f.strategy, maxSteps: f.maxSteps, gateMode: f.gate}
}

func runCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run [task]",
		Short: "Classify a task and run the agent on it",
		Long:  "Classifies the task into a role, runs the tool-using agent with that role's instructions and prints the final answer. Reads the task from stdin when no argument is given.",
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
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, f.options())
			if err != nil {
				return err
			}
			defer a.close()

			rec, runErr := a.runner.Run(ctx, domain.Task{Text: text, Role: f.role})
			if rec != nil {
				printRecord(cmd.OutOrStdout(), rec, f.asJSON, f.verbose)
			}
			return runErr
		},
	}
	f.bind(cmd)
	return cmd
}

func batchCmd() *cobra.Command {
	var (
		f           runFlags
		file        string
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "batch [task...]",
		Short: "Run several tasks concurrently",
		Long:  "Runs each task (one per argument, or one per non-empty line of --file) as an independent run, at most --concurrency at a time.",
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks := args
			if file != "" {
				lines, err := readTaskFile(file)
				if err != nil {
					return err
				}
				tasks = append(tasks, lines...)
			}
			if len(tasks) == 0 {
				return fmt.Errorf("no tasks given")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if concurrency <= 0 {
				concurrency = cfg.General.MaxConcurrentRuns
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, f.options())
			if err != nil {
				return err
			}
			defer a.close()

			records := make([]*domain.RunRecord, len(tasks))
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(concurrency)
			for i, text := range tasks {
				g.Go(func() error {
					rec, err := a.runner.Run(gctx, domain.Task{Text: text, Role: f.role})
					records[i] = rec
					if err != nil {
						logger.Error("run failed", "task", text, "err", err)
					}
					return nil
				})
			}
			_ = g.Wait()

			out := cmd.OutOrStdout()
			if f.asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}
			failed := 0
			for i, rec := range records {
				fmt.Fprintf(out, "=== [%d/%d] %s\n", i+1, len(tasks), tasks[i])
				if rec == nil {
					failed++
					fmt.Fprintln(out, "no record")
					continue
				}
				if rec.Status != domain.RunDone {
					failed++
				}
				printRecord(out, rec, false, f.verbose)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d runs did not finish", failed, len(tasks))
			}
			return nil
		},
	}
	f.bind(cmd)
	cmd.Flags().StringVarP(&file, "file", "f", "", "file with one task per line")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "parallel runs (default general.maxConcurrentRuns)")
	return cmd
}

// taskText joins the argument or reads stdin.
func taskText(args []string, in io.Reader) (string, error) {
	if len(args) > 0 {
		if t := strings.TrimSpace(args[0]); t != "" {
			return t, nil
		}
		return "", fmt.Errorf("task is empty")
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("read task: %w", err)
	}
	t := strings.TrimSpace(string(data))
	if t == "" {
		return "", fmt.Errorf("task is empty")
	}
	return t, nil
}

func readTaskFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open task file: %w", err)
	}
	defer f.Close()
	var tasks []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tasks = append(tasks, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read task file: %w", err)
	}
	return tasks, nil
}

func printRecord(w io.Writer, rec *domain.RunRecord, asJSON, verbose bool) {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(rec)
		return
	}
	if verbose {
		for _, s := range rec.Steps {
			fmt.Fprintf(w, "[step %d] %s", s.Index, s.ToolName)
			if len(s.Arguments) > 0 {
				args, _ := json.Marshal(s.Arguments)
				fmt.Fprintf(w, " %s", args)
			}
			fmt.Fprintf(w, " (%s)\n", s.Kind)
			if s.Reasoning != "" {
				fmt.Fprintf(w, "  thought: %s\n", s.Reasoning)
			}
			fmt.Fprintf(w, "  observation: %s\n", s.Observation)
		}
	}
	if rec.FinalAnswer != "" {
		fmt.Fprintln(w, rec.FinalAnswer)
	}
	if rec.Status != domain.RunDone {
		fmt.Fprintf(w, "\nstatus: %s", rec.Status)
		if rec.Error != "" {
			fmt.Fprintf(w, " (%s)", rec.Error)
		}
		fmt.Fprintln(w)
	}
	for _, warn := range rec.PolicyWarnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
	role := "-"
	if rec.Role != "" {
		role = rec.Role.DisplayName()
	}
	fmt.Fprintf(w, "\nrun %s  role: %s  steps: %d  tokens: %d  cost: $%.6f\n",
		rec.ID, role, len(rec.Steps), rec.Cost.TotalTokens, rec.Cost.TotalCost)
}
