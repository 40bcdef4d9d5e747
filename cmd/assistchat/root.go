package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"AssistChat/internal/backend"
	"AssistChat/internal/cache"
	"AssistChat/internal/chatbot"
	"AssistChat/internal/config"
	"AssistChat/internal/conversation"
	"AssistChat/internal/prompt"
	"AssistChat/internal/telemetry"
	"AssistChat/internal/ui"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	var configPath string
	var flagValues config.Config

	cmd := &cobra.Command{
		Use:   "assistchat",
		Short: "Ask a local language model questions about your company information",
		Long: `assistchat answers questions from a static context file (company_info.txt
by default) using a locally served model. It runs as a terminal chat window,
or as a plain line-mode chat with --plain.

Settings are read from ~/.assistchat/config.toml (or --config) and can be
overridden with flags. API keys are read from the environment or a .env file.`,
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags(), configPath, flagValues)
			if err != nil {
				return err
			}
			return runChat(cmd.Context(), cfg)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to a TOML config file")
	pf.StringVar(&flagValues.Backend, "backend", config.BackendOllama, "LLM backend (ollama|openai|anthropic)")
	pf.StringVar(&flagValues.Model, "model", "", "Model name (default depends on the backend)")
	pf.StringVar(&flagValues.BaseURL, "base-url", "", "Backend endpoint (default depends on the backend)")

	f := cmd.Flags()
	f.IntVar(&flagValues.MaxTokens, "max-tokens", config.DefaultMaxTokens, "Maximum tokens to generate per reply")
	f.StringSliceVar(&flagValues.Stop, "stop", nil, "Stop markers (default: the prompt's role markers)")
	f.StringVar(&flagValues.ContextFile, "context-file", config.DefaultContextFile, "File with the static context to answer from")
	f.DurationVar(&flagValues.RequestTimeout, "timeout", 0, "Timeout for one generation (0 waits forever)")
	f.DurationVar(&flagValues.CacheTTL, "cache-ttl", 0, "Cache identical prompts for this long (0 disables)")
	f.StringVar(&flagValues.StatsDB, "stats-db", "", "SQLite file for generation stats (empty disables)")
	f.StringVar(&flagValues.LogDir, "log-dir", config.DefaultLogDir, "Directory for log, trace and metric files")
	f.BoolVar(&flagValues.Debug, "debug", false, "Enable debug logging")
	f.BoolVar(&flagValues.Plain, "plain", false, "Use line mode instead of the terminal UI")

	cmd.AddCommand(newModelsCmd(&configPath, &flagValues))
	return cmd
}

// loadConfig layers defaults, the config file and explicitly set flags
func loadConfig(flags *pflag.FlagSet, path string, values config.Config) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}
	set("backend", func() { cfg.Backend = values.Backend })
	set("model", func() { cfg.Model = values.Model })
	set("base-url", func() { cfg.BaseURL = values.BaseURL })
	set("max-tokens", func() { cfg.MaxTokens = values.MaxTokens })
	set("stop", func() { cfg.Stop = values.Stop })
	set("context-file", func() { cfg.ContextFile = values.ContextFile })
	set("timeout", func() { cfg.RequestTimeout = values.RequestTimeout })
	set("cache-ttl", func() { cfg.CacheTTL = values.CacheTTL })
	set("stats-db", func() { cfg.StatsDB = values.StatsDB })
	set("log-dir", func() { cfg.LogDir = values.LogDir })
	set("debug", func() { cfg.Debug = values.Debug })
	set("plain", func() { cfg.Plain = values.Plain })

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func apiKey(backendName string) string {
	switch backendName {
	case config.BackendAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	case config.BackendOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	}
	return ""
}

func runChat(ctx context.Context, cfg config.Config) error {
	// .env is optional
	_ = godotenv.Load()

	staticContext, err := config.LoadContext(cfg.ContextFile)
	if err != nil {
		return err
	}

	logger, closeLog, err := telemetry.InitLogger(cfg.LogDir, cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer closeLog()

	tracer, meter, cleanup, err := telemetry.InitTelemetry(ctx, cfg.LogDir, version)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer cleanup()

	var stats *telemetry.StatsStore
	if cfg.StatsDB != "" {
		stats, err = telemetry.InitDB(cfg.StatsDB)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer stats.Close()
	}

	gen, err := buildGenerator(cfg, tracer, meter, logger)
	if err != nil {
		return err
	}

	tmpl := prompt.Default
	if cfg.Preamble != "" {
		tmpl = tmpl.WithPreamble(cfg.Preamble)
	}
	conv := conversation.New(staticContext, gen,
		conversation.WithTemplate(tmpl),
		conversation.WithMaxTokens(cfg.MaxTokens),
		conversation.WithStop(cfg.Stop...),
		conversation.WithLogger(logger),
	)

	if cfg.Debug {
		logger.Debug("debug mode enabled")
	}

	runner := &chatbot.Runner{
		SessionID: conv.ID(),
		Backend:   cfg.Backend,
		Model:     cfg.Model,
		Tracer:    tracer,
		Stats:     stats,
		Logger:    logger,
	}

	if cfg.Plain {
		display := chatbot.NewConsoleDisplay(os.Stdout, !color.NoColor)
		fmt.Printf("Session: %s | Backend: %s (%s)\n", conv.ID(), cfg.Backend, cfg.Model)
		fmt.Println("Type /help for commands, /quit to exit")
		fmt.Println()
		return chatbot.NewChatBot(cfg, conv, display, runner, logger).Run(ctx, os.Stdin)
	}
	return ui.Run(ctx, conv, runner)
}

func buildGenerator(cfg config.Config, tracer trace.Tracer, meter metric.Meter, logger *slog.Logger) (backend.Generator, error) {
	base, err := backend.New(backend.SettingsFromConfig(cfg, apiKey(cfg.Backend)))
	if err != nil {
		return nil, err
	}

	var gen backend.Generator = backend.Instrument(base, cfg.Backend, cfg.Model, tracer, meter)
	if cfg.CacheTTL > 0 {
		gen = cache.New(gen, cfg.CacheTTL, logger)
	}
	return gen, nil
}

func newModelsCmd(configPath *string, flagValues *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models installed on the Ollama server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags(), *configPath, *flagValues)
			if err != nil {
				return err
			}
			if cfg.Backend != config.BackendOllama {
				return fmt.Errorf("models is only available with the ollama backend")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			models, err := backend.ListOllamaModels(ctx, &http.Client{}, cfg.BaseURL)
			if err != nil {
				return fmt.Errorf("failed to list Ollama models: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), chatbot.FormatModels(models, cfg.Model))
			return nil
		},
	}
}
