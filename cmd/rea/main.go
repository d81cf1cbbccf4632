package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"rea/internal/config"
)

var (
	version    = "0.1.0"
	logger     = slog.Default()
	configPath string // overridable via --config flag
	logLevel   string // overrides general.logLevel
)

func main() {
	_ = godotenv.Load()
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:           "rea",
		Short:         "REA: role-routed engineering agent",
		Long:          "REA classifies an engineering task as product-owner, scrum-lead or peer-review work and runs a tool-using agent for it against Azure DevOps.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.rea/config.json)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(initCmd())
	root.AddCommand(runCmd())
	root.AddCommand(batchCmd())
	root.AddCommand(classifyCmd())
	root.AddCommand(toolsCmd())
	root.AddCommand(runsCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(configCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(backupCmd())
	root.AddCommand(restoreCmd())
	root.AddCommand(serviceCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

// loadConfig reads the config file, falling back to defaults when none exists,
// and reconfigures the logger from it.
func loadConfig() (*config.Config, error) {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		if _, statErr := os.Stat(cfgPath); !os.IsNotExist(statErr) {
			return nil, fmt.Errorf("load config: %w", err)
		}
		logger.Debug("config not found, using defaults", "path", cfgPath)
		cfg = config.Defaults()
		config.Finalize(cfg)
		if err := config.Validate(cfg); err != nil {
			return nil, fmt.Errorf("default config: %w", err)
		}
	}
	if logLevel != "" {
		cfg.General.LogLevel = logLevel
	}
	l, err := newLogger(cfg.General)
	if err != nil {
		return nil, err
	}
	logger = l
	slog.SetDefault(logger)
	return cfg, nil
}

// newLogger writes text to stderr, or JSON to general.logFile when set.
func newLogger(g config.GeneralConfig) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: parseLevel(g.LogLevel)}
	if g.LogFile == "" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	}
	f, err := openLogFile(g.LogFile)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewJSONHandler(f, opts)), nil
}

func openLogFile(path string) (io.Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
