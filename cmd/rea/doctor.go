package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"rea/internal/azdo"
	"rea/internal/config"
	"rea/internal/provider"
	"rea/internal/recorder"
	"rea/internal/role"
)

type checkTally struct {
	out                    io.Writer
	passed, warned, failed int
}

func (t *checkTally) pass(check, detail string) {
	fmt.Fprintf(t.out, "  [PASS] %-24s %s\n", check, detail)
	t.passed++
}

func (t *checkTally) fail(check, detail string) {
	fmt.Fprintf(t.out, "  [FAIL] %-24s %s\n", check, detail)
	t.failed++
}

func (t *checkTally) warn(check, detail string) {
	fmt.Fprintf(t.out, "  [WARN] %-24s %s\n", check, detail)
	t.warned++
}

func doctorCmd() *cobra.Command {
	var online bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your REA installation",
		Long: `Verifies that the configuration, providers, run database, workspace and
Azure DevOps settings are correctly set up. Reports pass/fail for each check.
With --online it also calls the model provider and Azure DevOps.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			t := &checkTally{out: cmd.OutOrStdout()}
			fmt.Fprintf(t.out, "REA Doctor v%s\n", version)
			fmt.Fprintf(t.out, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			if _, err := os.Stat(cfgPath); err != nil {
				t.fail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				fmt.Fprintf(t.out, "\nRun 'rea init' to create a default configuration.\n")
				return nil
			}
			t.pass("Config file", cfgPath)

			cfg, err := config.Load(cfgPath)
			if err != nil {
				t.fail("Config validation", err.Error())
				fmt.Fprintf(t.out, "\n%d passed, %d failed\n", t.passed, t.failed)
				return fmt.Errorf("%d check(s) failed", t.failed)
			}
			t.pass("Config validation", "valid")

			checkWorkspace(t, cfg.General.Workspace)
			if err := checkDatabase(cmd.Context(), cfg.Recorder.DBPath); err != nil {
				t.fail("Run database", err.Error())
			} else {
				t.pass("Run database", cfg.Recorder.DBPath)
			}
			checkProviders(cmd.Context(), t, cfg, online)

			if _, err := role.LoadProfiles(cfg.Classifier.ProfilesDir); err != nil {
				t.fail("Role profiles", err.Error())
			} else if cfg.Classifier.ProfilesDir != "" {
				t.pass("Role profiles", cfg.Classifier.ProfilesDir)
			} else {
				t.pass("Role profiles", "built-in")
			}

			checkAzureDevOps(cmd.Context(), t, cfg.AzureDevOps, online)

			if cfg.API.Enabled {
				if err := checkPort(cfg.API.Host, cfg.API.Port); err != nil {
					t.warn("API port", fmt.Sprintf("port %d may be in use: %v", cfg.API.Port, err))
				} else {
					t.pass("API port", fmt.Sprintf(":%d available", cfg.API.Port))
				}
			}

			if cfg.General.LogFile != "" {
				if err := os.MkdirAll(filepath.Dir(cfg.General.LogFile), 0o755); err != nil {
					t.warn("Log file", fmt.Sprintf("cannot create log directory: %v", err))
				} else {
					t.pass("Log file", cfg.General.LogFile)
				}
			}

			fmt.Fprintf(t.out, "\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Fprintf(t.out, "Results: %d passed, %d warnings, %d failed\n", t.passed, t.warned, t.failed)
			if t.failed > 0 {
				fmt.Fprintf(t.out, "\nPlease fix the failed checks before running REA.\n")
				return fmt.Errorf("%d check(s) failed", t.failed)
			}
			if t.warned > 0 {
				fmt.Fprintf(t.out, "\nREA should work but consider fixing the warnings.\n")
			} else {
				fmt.Fprintf(t.out, "\nAll checks passed! REA is ready to run.\n")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&online, "online", false, "also call the provider and Azure DevOps")
	return cmd
}

func checkWorkspace(t *checkTally, ws string) {
	if ws == "" {
		t.warn("Workspace", "not configured (using current directory)")
		return
	}
	info, err := os.Stat(ws)
	switch {
	case err != nil:
		t.fail("Workspace", fmt.Sprintf("not found: %s", ws))
	case !info.IsDir():
		t.fail("Workspace", fmt.Sprintf("not a directory: %s", ws))
	default:
		t.pass("Workspace", ws)
	}
}

// checkDatabase opens the run store, which applies pending migrations, and
// reads back the schema version.
func checkDatabase(ctx context.Context, dbPath string) error {
	store, err := recorder.NewSQLiteStore(dbPath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := store.List(ctx, recorder.ListOptions{Limit: 1}); err != nil {
		return fmt.Errorf("not readable: %w", err)
	}
	return nil
}

func checkProviders(ctx context.Context, t *checkTally, cfg *config.Config, online bool) {
	enabled := 0
	for name, p := range cfg.Providers {
		if !p.Enabled {
			continue
		}
		enabled++
		if p.APIKey == "" {
			t.warn("Provider: "+name, "enabled but no API key configured")
			continue
		}
		t.pass("Provider: "+name, "configured")
	}
	if enabled == 0 {
		t.fail("Providers", "no providers enabled")
		return
	}
	if !online {
		return
	}
	p, err := provider.NewFactory(cfg, logger).Build()
	if err != nil {
		t.fail("Provider reachable", err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := p.Healthy(ctx); err != nil {
		t.fail("Provider reachable", err.Error())
		return
	}
	t.pass("Provider reachable", p.Name())
}

func checkAzureDevOps(ctx context.Context, t *checkTally, ado config.AzureDevOpsConfig, online bool) {
	if !ado.Enabled {
		t.warn("Azure DevOps", "disabled (set AZURE_ORG_URL and PROJECT_NAME to enable)")
		return
	}
	if ado.PersonalAccessToken == "" {
		t.warn("Azure DevOps", "no personal access token configured")
	} else {
		t.pass("Azure DevOps", fmt.Sprintf("%s / %s", ado.OrganizationURL, ado.Project))
	}
	if !online {
		return
	}
	client, err := azdo.New(azdo.Config{
		OrganizationURL:     ado.OrganizationURL,
		PersonalAccessToken: ado.PersonalAccessToken,
		Project:             ado.Project,
		Timeout:             15 * time.Second,
		Logger:              logger,
	})
	if err != nil {
		t.fail("Azure DevOps reachable", err.Error())
		return
	}
	repos, err := client.ListRepositories(ctx)
	if err != nil {
		t.fail("Azure DevOps reachable", err.Error())
		return
	}
	t.pass("Azure DevOps reachable", fmt.Sprintf("%d repositories", len(repos)))
}

func checkPort(host string, port int) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return err
	}
	return ln.Close()
}
