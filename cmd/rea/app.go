package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"rea/internal/agent"
	"rea/internal/api"
	"rea/internal/azdo"
	"rea/internal/config"
	"rea/internal/domain"
	"rea/internal/gate"
	"rea/internal/metrics"
	"rea/internal/policy"
	"rea/internal/provider"
	"rea/internal/ratelimit"
	"rea/internal/recorder"
	"rea/internal/role"
	"rea/internal/telemetry"
	"rea/internal/tool"
)

// app is the wired object graph shared by the commands.
type app struct {
	cfg        *config.Config
	provider   domain.Provider
	registry   *tool.Registry
	classifier *role.Classifier
	store      *recorder.SQLiteStore
	runner     *agent.Runner
	events     *api.Hub
	closers    []func(context.Context) error
}

type appOptions struct {
	strategy string // overrides classifier.strategy
	maxSteps int    // overrides general.maxSteps
	gateMode string // overrides gate.mode
	noTools  bool   // classification only
	noRunner bool   // registry and classifier only
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	a := &app{cfg: cfg}
	ready := false
	defer func() {
		if !ready {
			a.close()
		}
	}()

	shutdown, err := telemetry.Init(ctx, cfg.Telemetry, version)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, shutdown)
	if reg, err := metrics.Collector.RegisterOTel(telemetry.Meter("rea")); err != nil {
		logger.Warn("otel metrics bridge disabled", "err", err)
	} else {
		a.closers = append(a.closers, func(context.Context) error { return reg.Unregister() })
	}

	prov, err := provider.NewFactory(cfg, logger).Build()
	if err != nil {
		return nil, fmt.Errorf("provider: %w", err)
	}
	a.provider = prov
	model := cfg.Providers[cfg.General.DefaultProvider].DefaultModel

	profiles, err := role.LoadProfiles(cfg.Classifier.ProfilesDir)
	if err != nil {
		return nil, err
	}
	var llmLimiter *ratelimit.Limiter
	if cfg.General.LLMRatePerMinute > 0 {
		llmLimiter = ratelimit.New(0, cfg.General.LLMRatePerMinute)
	}
	strategy := cfg.Classifier.Strategy
	if opts.strategy != "" {
		strategy = opts.strategy
	}
	a.classifier, err = role.New(role.Config{
		Strategy: strategy,
		Provider: prov,
		Model:    model,
		Profiles: profiles,
		Limiter:  llmLimiter,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	if opts.noTools {
		ready = true
		return a, nil
	}

	if a.registry, err = a.buildRegistry(ctx); err != nil {
		return nil, err
	}
	if opts.noRunner {
		ready = true
		return a, nil
	}

	a.store, err = recorder.NewSQLiteStore(cfg.Recorder.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("run store: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return a.store.Close() })

	gateCfg := cfg.Gate
	if opts.gateMode != "" {
		gateCfg.Mode = opts.gateMode
	}
	humanGate, err := gate.New(ctx, gateCfg, os.Stdin, os.Stderr, logger)
	if err != nil {
		return nil, fmt.Errorf("human gate: %w", err)
	}

	auditor, err := policy.NewAuditor(cfg.Policy, tool.ApprovalToolName, a.store, logger)
	if err != nil {
		return nil, err
	}

	a.events = api.NewHub(logger)
	maxSteps := cfg.General.MaxSteps
	if opts.maxSteps > 0 {
		maxSteps = opts.maxSteps
	}
	a.runner, err = agent.NewRunner(agent.RunnerConfig{
		Classifier: a.classifier,
		Loop: agent.LoopConfig{
			Provider:    prov,
			Tools:       a.registry,
			Gate:        humanGate,
			Auditor:     auditor,
			Limiter:     llmLimiter,
			Model:       model,
			MaxSteps:    maxSteps,
			MaxTokens:   cfg.General.MaxTokens,
			Temperature: cfg.General.Temperature,
			OnStep:      a.events.Publish,
			Logger:      logger,
		},
		Recorder: recorder.Multi{
			a.store,
			recorder.NewFileSink(cfg.Recorder.StepsDir, cfg.Recorder.CostFile),
			a.events,
		},
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	ready = true
	return a, nil
}

// buildRegistry registers the file tools, the Azure DevOps tools when
// configured, and the tools of every configured MCP server.
func (a *app) buildRegistry(ctx context.Context) (*tool.Registry, error) {
	cfg := a.cfg
	reg := tool.NewRegistry(logger)

	if err := os.MkdirAll(cfg.General.Workspace, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	reg.Register(
		tool.NewReadFileTool(cfg.General.Workspace),
		tool.NewWriteFileTool(cfg.General.Workspace),
		tool.NewListFilesTool(cfg.General.Workspace, cfg.Tools.OmitFolders),
	)

	if cfg.AzureDevOps.Enabled {
		ado := cfg.AzureDevOps
		client, err := azdo.New(azdo.Config{
			OrganizationURL:     ado.OrganizationURL,
			PersonalAccessToken: ado.PersonalAccessToken,
			Project:             ado.Project,
			Timeout:             time.Duration(ado.TimeoutSeconds) * time.Second,
			Limiter:             ratelimit.New(ado.Burst, ado.RequestsPerMinute),
			Logger:              logger,
		})
		if err != nil {
			return nil, err
		}
		reg.Register(tool.AzureDevOpsTools(client, ado.Team)...)
	}

	if cfg.MCP.Enabled {
		for _, s := range cfg.MCP.Servers {
			mc, err := tool.DialMCP(ctx, tool.MCPServerConfig{
				Name:      s.Name,
				Transport: s.Transport,
				Command:   s.Command,
				Args:      s.Args,
				URL:       s.URL,
				Env:       s.Env,
				Headers:   s.Headers,
			}, version, logger)
			if err != nil {
				logger.Warn("mcp server unavailable, skipping", "server", s.Name, "err", err)
				continue
			}
			a.closers = append(a.closers, func(context.Context) error { return mc.Close() })
			tools, err := mc.Tools(ctx)
			if err != nil {
				logger.Warn("mcp tool listing failed", "server", s.Name, "err", err)
				continue
			}
			reg.Register(tools...)
			logger.Info("mcp tools registered", "server", s.Name, "count", len(tools))
		}
	}
	return reg, nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
