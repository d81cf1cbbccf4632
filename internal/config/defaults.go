package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			Workspace:         "~/.rea/workspace",
			LogLevel:          "info",
			MaxSteps:          20,
			DefaultProvider:   "openai",
			Temperature:       0,
			MaxTokens:         4096,
			MaxConcurrentRuns: 3,
			LLMRatePerMinute:  30,
		},
		Providers: map[string]ProviderConfig{
			"openai": {
				Enabled:      true,
				APIBase:      "https://api.openai.com/v1",
				DefaultModel: "gpt-4o",
			},
			"claude": {
				Enabled: false,
			},
		},
		Classifier: ClassifierConfig{
			Strategy: "llm",
		},
		AzureDevOps: AzureDevOpsConfig{
			RequestsPerMinute: 60,
			Burst:             5,
			TimeoutSeconds:    60,
		},
		Tools: ToolsConfig{
			OmitFolders: defaultOmitFolders(),
		},
		Gate: GateConfig{
			Mode: "console",
		},
		Recorder: RecorderConfig{
			DBPath:   "~/.rea/runs.db",
			StepsDir: "~/.rea/steps",
			CostFile: "~/.rea/cost_details.txt",
		},
		Policy: PolicyConfig{
			AuditLog:         true,
			MutatingPatterns: defaultMutatingPatterns(),
		},
		API: APIConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    8000,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "rea",
		},
	}
}

func defaultOmitFolders() []string {
	return []string{"node_modules", ".git", "__pycache__", "venv", ".venv", "env", ".env", "dump"}
}

// defaultMutatingPatterns match tool names that change external or local state.
func defaultMutatingPatterns() []string {
	return []string{
		`^wit_(create|update|add|link)`,
		`^repo_(create|update)`,
		`^pipelines_run`,
		`^write_file$`,
	}
}
