package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration for REA.
type Config struct {
	General     GeneralConfig             `json:"general"`
	Providers   map[string]ProviderConfig `json:"providers"`
	Classifier  ClassifierConfig          `json:"classifier"`
	AzureDevOps AzureDevOpsConfig         `json:"azureDevOps"`
	Tools       ToolsConfig               `json:"tools"`
	Gate        GateConfig                `json:"gate"`
	Recorder    RecorderConfig            `json:"recorder"`
	Policy      PolicyConfig              `json:"policy"`
	MCP         MCPConfig                 `json:"mcp,omitempty"`
	API         APIConfig                 `json:"api"`
	Telemetry   TelemetryConfig           `json:"telemetry"`
}

type GeneralConfig struct {
	Workspace         string   `json:"workspace"`
	LogLevel          string   `json:"logLevel"`
	LogFile           string   `json:"logFile,omitempty"`
	MaxSteps          int      `json:"maxSteps"`
	DefaultProvider   string   `json:"defaultProvider"`
	FailoverChain     []string `json:"failoverChain,omitempty"`
	Temperature       float64  `json:"temperature"`
	MaxTokens         int      `json:"maxTokens"`
	MaxConcurrentRuns int      `json:"maxConcurrentRuns"`
	LLMRatePerMinute  float64  `json:"llmRatePerMinute,omitempty"`
}

type ProviderConfig struct {
	Enabled      bool   `json:"enabled"`
	Kind         string `json:"kind,omitempty"` // "openai" | "claude"; defaults to the provider name
	APIBase      string `json:"apiBase,omitempty"`
	APIKey       string `json:"apiKey,omitempty"`
	DefaultModel string `json:"defaultModel,omitempty"`
}

// ClassifierConfig selects how tasks are routed to a behavior profile.
type ClassifierConfig struct {
	Strategy    string `json:"strategy"` // "llm" | "keyword" | "hybrid"
	ProfilesDir string `json:"profilesDir,omitempty"`
}

type AzureDevOpsConfig struct {
	Enabled             bool    `json:"enabled"`
	OrganizationURL     string  `json:"organizationUrl"`
	PersonalAccessToken string  `json:"personalAccessToken,omitempty"`
	Project             string  `json:"project"`
	Team                string  `json:"team,omitempty"`
	RequestsPerMinute   float64 `json:"requestsPerMinute"`
	Burst               int     `json:"burst"`
	TimeoutSeconds      int     `json:"timeoutSeconds"`
}

type ToolsConfig struct {
	OmitFolders []string `json:"omitFolders"`
}

type GateConfig struct {
	Mode     string             `json:"mode"` // "console" | "telegram" | "slack" | "discord" | "none"
	Telegram TelegramGateConfig `json:"telegram,omitempty"`
	Slack    SlackGateConfig    `json:"slack,omitempty"`
	Discord  DiscordGateConfig  `json:"discord,omitempty"`
}

type TelegramGateConfig struct {
	Token  string `json:"token,omitempty"`
	ChatID int64  `json:"chatId,omitempty"`
}

type SlackGateConfig struct {
	BotToken    string `json:"botToken,omitempty"`
	ChannelID   string `json:"channelId,omitempty"`
	PollSeconds int    `json:"pollSeconds,omitempty"`
}

type DiscordGateConfig struct {
	Token       string `json:"token,omitempty"`
	ChannelID   string `json:"channelId,omitempty"`
	PollSeconds int    `json:"pollSeconds,omitempty"`
}

type RecorderConfig struct {
	DBPath   string `json:"dbPath"`
	StepsDir string `json:"stepsDir,omitempty"`
	CostFile string `json:"costFile,omitempty"`
}

// PolicyConfig configures the approval auditor. Patterns follow the
// literal-or-regex convention of policy.compilePatterns.
type PolicyConfig struct {
	AuditLog         bool     `json:"auditLog"`
	MutatingPatterns []string `json:"mutatingPatterns"`
}

// MCPConfig configures Model Context Protocol server connections.
// Tools from MCP servers are registered with the prefix mcp_<server>_<tool>.
type MCPConfig struct {
	Enabled bool             `json:"enabled"`
	Servers []MCPServerEntry `json:"servers,omitempty"`
}

type MCPServerEntry struct {
	Name      string            `json:"name"`
	Transport string            `json:"transport"` // "stdio" | "http"
	Command   string            `json:"command,omitempty"`
	Args      []string          `json:"args,omitempty"`
	URL       string            `json:"url,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
}

// APIConfig configures the run status API.
type APIConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
	Secret  string `json:"secret,omitempty"` // HMAC key for POST /runs
}

// TelemetryConfig configures OpenTelemetry tracing. Empty endpoint disables it.
type TelemetryConfig struct {
	Endpoint    string `json:"endpoint,omitempty"`
	Insecure    bool   `json:"insecure,omitempty"`
	ServiceName string `json:"serviceName,omitempty"`
}

// DefaultConfigDir returns the default config directory (~/.rea).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".rea"
	}
	return filepath.Join(home, ".rea")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = expandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	Finalize(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Finalize expands paths and fills empty credentials from the environment
// variables the tool has always honoured.
func Finalize(cfg *Config) {
	cfg.General.Workspace = expandPath(cfg.General.Workspace)
	cfg.General.LogFile = expandPath(cfg.General.LogFile)
	cfg.Recorder.DBPath = expandPath(cfg.Recorder.DBPath)
	cfg.Recorder.StepsDir = expandPath(cfg.Recorder.StepsDir)
	cfg.Recorder.CostFile = expandPath(cfg.Recorder.CostFile)
	cfg.Classifier.ProfilesDir = expandPath(cfg.Classifier.ProfilesDir)

	fromEnv(&cfg.AzureDevOps.OrganizationURL, "AZURE_ORG_URL")
	fromEnv(&cfg.AzureDevOps.PersonalAccessToken, "AZURE_DEVOPS_PERSONAL_ACCESS_TOKEN")
	fromEnv(&cfg.AzureDevOps.Project, "PROJECT_NAME")
	fromEnv(&cfg.Gate.Slack.BotToken, "SLACK_BOT_TOKEN")
	fromEnv(&cfg.Gate.Discord.Token, "DISCORD_BOT_TOKEN")
	fromEnv(&cfg.API.Secret, "REA_API_SECRET")
	if cfg.AzureDevOps.OrganizationURL != "" && cfg.AzureDevOps.Project != "" {
		cfg.AzureDevOps.Enabled = true
	}

	for name, pc := range cfg.Providers {
		switch providerKind(name, pc) {
		case "openai":
			fromEnv(&pc.APIKey, "OPENAI_API_KEY")
		case "claude":
			fromEnv(&pc.APIKey, "ANTHROPIC_API_KEY")
		}
		cfg.Providers[name] = pc
	}
}

// ProviderKind returns the implementation a provider entry should use.
func (pc ProviderConfig) ProviderKind(name string) string {
	return providerKind(name, pc)
}

func providerKind(name string, pc ProviderConfig) string {
	if pc.Kind != "" {
		return pc.Kind
	}
	return name
}

func fromEnv(dst *string, key string) {
	if *dst != "" {
		return
	}
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func expandPath(p string) string {
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return p
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(groups[1])
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	path = expandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.General.MaxSteps < 1 || cfg.General.MaxSteps > 200 {
		errs = append(errs, "general.maxSteps must be between 1 and 200")
	}
	if cfg.General.MaxConcurrentRuns < 1 || cfg.General.MaxConcurrentRuns > 32 {
		errs = append(errs, "general.maxConcurrentRuns must be between 1 and 32")
	}
	if cfg.General.Temperature < 0 || cfg.General.Temperature > 2 {
		errs = append(errs, "general.temperature must be between 0 and 2")
	}
	switch strings.ToLower(cfg.General.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	switch cfg.Classifier.Strategy {
	case "llm", "keyword", "hybrid":
	default:
		errs = append(errs, "classifier.strategy must be one of: llm, keyword, hybrid")
	}

	switch cfg.Gate.Mode {
	case "console", "none":
	case "telegram":
		if cfg.Gate.Telegram.Token == "" || cfg.Gate.Telegram.ChatID == 0 {
			errs = append(errs, "gate.telegram: token and chatId are required for telegram mode")
		}
	case "slack":
		if cfg.Gate.Slack.BotToken == "" || cfg.Gate.Slack.ChannelID == "" {
			errs = append(errs, "gate.slack: botToken and channelId are required for slack mode")
		}
	case "discord":
		if cfg.Gate.Discord.Token == "" || cfg.Gate.Discord.ChannelID == "" {
			errs = append(errs, "gate.discord: token and channelId are required for discord mode")
		}
	default:
		errs = append(errs, "gate.mode must be one of: console, telegram, slack, discord, none")
	}

	if cfg.API.Port < 0 || cfg.API.Port > 65535 {
		errs = append(errs, "api.port must be between 0 and 65535")
	}

	if cfg.AzureDevOps.Enabled {
		if cfg.AzureDevOps.OrganizationURL == "" {
			errs = append(errs, "azureDevOps.organizationUrl is required when enabled")
		}
		if cfg.AzureDevOps.Project == "" {
			errs = append(errs, "azureDevOps.project is required when enabled")
		}
	}
	if cfg.AzureDevOps.RequestsPerMinute < 0 {
		errs = append(errs, "azureDevOps.requestsPerMinute must be >= 0")
	}

	if _, ok := cfg.Providers[cfg.General.DefaultProvider]; !ok && cfg.General.DefaultProvider != "" {
		errs = append(errs, fmt.Sprintf("general.defaultProvider references unknown provider: %s", cfg.General.DefaultProvider))
	}
	for _, provName := range cfg.General.FailoverChain {
		if _, ok := cfg.Providers[provName]; !ok {
			errs = append(errs, fmt.Sprintf("general.failoverChain references unknown provider: %s", provName))
		}
	}
	for name, pc := range cfg.Providers {
		switch pc.ProviderKind(name) {
		case "openai", "claude":
		default:
			if pc.Enabled && pc.APIBase == "" {
				errs = append(errs, fmt.Sprintf("providers.%s: apiBase is required for OpenAI-compatible providers", name))
			}
		}
	}

	for _, s := range cfg.MCP.Servers {
		if s.Name == "" {
			errs = append(errs, "mcp.servers: name is required")
			continue
		}
		switch s.Transport {
		case "stdio":
			if s.Command == "" {
				errs = append(errs, fmt.Sprintf("mcp.servers.%s: command is required for stdio", s.Name))
			}
		case "http":
			if s.URL == "" {
				errs = append(errs, fmt.Sprintf("mcp.servers.%s: url is required for http", s.Name))
			}
		default:
			errs = append(errs, fmt.Sprintf("mcp.servers.%s: transport must be stdio or http", s.Name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}
