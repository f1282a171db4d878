package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	appI18n "github.com/Varun-Kachroo/RubrikAI/internal/i18n"
	"github.com/Varun-Kachroo/RubrikAI/internal/llm"
	"github.com/Varun-Kachroo/RubrikAI/internal/llm/prompts"
	"github.com/Varun-Kachroo/RubrikAI/internal/model"
	"github.com/Varun-Kachroo/RubrikAI/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rubrikai",
		Short:         "Rubric grading and academic-integrity analysis for written answers",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	serve := serveCmd()
	root.AddCommand(serve, importCmd(), gradeCmd(), analyzeCmd(), exportCmd(), userCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

// addCommonFlags registers the flags every subcommand understands.
func addCommonFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("db", "rubrikai.db", "SQLite database path")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

// addLLMFlags registers the grading oracle flags.
func addLLMFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("llm-provider", "openai", "Grading provider (openai, anthropic, none)")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for the grading provider")
	f.String("llm-model", "llama3.2", "Model name")
	f.String("mode", string(model.ModeModerate), "Evaluation mode (strict, moderate, lenient)")
	f.Int("workers", 4, "Concurrent grading calls")
	f.String("prompts-dir", "", "Directory with templates/*.txt overriding the built-in prompts")
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("RUBRIKAI")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("rubrikai")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/rubrikai")
	v.AddConfigPath("/etc/rubrikai")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func openStore(v *viper.Viper) (*store.Store, error) {
	db, err := store.New(v.GetString("db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func initI18n(lang string) error {
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	return nil
}

// newOracle builds the grading client named by --llm-provider. It returns
// nil for provider "none".
func newOracle(v *viper.Viper) (llm.Oracle, error) {
	fsys := prompts.Files
	if dir := v.GetString("prompts-dir"); dir != "" {
		if err := prompts.Load(os.DirFS(dir)); err != nil {
			return nil, fmt.Errorf("load prompts from %s: %w", dir, err)
		}
	} else if err := prompts.Load(fsys); err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	modelName := v.GetString("llm-model")
	switch provider := strings.ToLower(v.GetString("llm-provider")); provider {
	case "openai", "":
		slog.Info("grading with OpenAI-compatible endpoint", "url", v.GetString("llm-url"), "model", modelName)
		return llm.New(v.GetString("llm-url"), v.GetString("llm-key"), modelName), nil
	case "anthropic":
		key := v.GetString("llm-key")
		if key == "" || key == "ollama" {
			key = os.Getenv("ANTHROPIC_API_KEY")
		}
		if key == "" {
			return nil, fmt.Errorf("anthropic provider needs --llm-key or ANTHROPIC_API_KEY")
		}
		if !v.IsSet("llm-model") || modelName == "llama3.2" {
			modelName = "claude-sonnet-4-5"
		}
		slog.Info("grading with Anthropic", "model", modelName)
		return llm.NewAnthropic(key, modelName), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", provider)
	}
}

func parseMode(v *viper.Viper) (model.EvaluationMode, error) {
	mode := model.EvaluationMode(strings.ToLower(v.GetString("mode")))
	if !mode.IsValid() {
		return "", fmt.Errorf("invalid mode %q: want strict, moderate or lenient", mode)
	}
	return mode, nil
}

// outputWriter opens path for writing, or returns stdout for "" and "-".
func outputWriter(path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output file: %w", err)
	}
	return f, f.Close, nil
}
