package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dshills/prdforge/internal/api"
	"github.com/dshills/prdforge/internal/artifacts"
	"github.com/dshills/prdforge/internal/config"
	"github.com/dshills/prdforge/internal/generation"
	"github.com/dshills/prdforge/internal/llm"
	"github.com/dshills/prdforge/internal/notion"
	"github.com/dshills/prdforge/internal/repository/sqlite"
	"github.com/dshills/prdforge/internal/validator"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds the wired services shared by all subcommands.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	repo      *sqlite.SQLiteRepository
	generator *generation.Service
	artifacts *artifacts.Service
	notion    api.NotionExporter
}

func newRootCmd() *cobra.Command {
	var (
		dbPath string
		a      = &app{}
	)

	root := &cobra.Command{
		Use:           "prdforge",
		Short:         "Generate and version product management documents with an LLM",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dbPath != "" {
				cfg.DBPath = dbPath
			}
			return a.open(cfg, newLogger(os.Stderr, cfg.LogLevel))
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}
	root.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides PRDFORGE_DB_PATH)")

	root.AddCommand(
		newServeCmd(a),
		newGenerateCmd(a),
		newStatsCmd(a),
		newSeedCmd(a),
	)
	return root
}

// newLogger writes text to terminals and JSON everywhere else.
func newLogger(w *os.File, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if isatty.IsTerminal(w.Fd()) || isatty.IsCygwinTerminal(w.Fd()) {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h)
}

func (a *app) open(cfg config.Config, logger *slog.Logger) error {
	a.cfg = cfg
	a.logger = logger
	logger.Info("configuration loaded", cfg.LogAttrs()...)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	repo, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	a.repo = repo

	val, err := validator.New()
	if err != nil {
		return fmt.Errorf("load schemas: %w", err)
	}

	factory := llm.NewFactory(cfg.LLM, logger)
	if factory.Available() {
		logger.Info("llm factory initialized",
			"provider", string(factory.DefaultProvider()),
			"model", factory.DefaultModel(),
		)
	} else {
		logger.Warn("no LLM credentials configured; generation endpoints will fail")
	}

	a.generator, err = generation.NewService(factory, val, generation.Options{
		Timeout:   cfg.GenerationTimeout,
		MaxTokens: cfg.MaxTokens,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("create generation service: %w", err)
	}
	a.artifacts = artifacts.NewService(repo, val, a.generator, logger)

	if src := notionTokens(cfg); src != nil {
		a.notion = notion.NewClient(src, logger)
	}
	return nil
}

func notionTokens(cfg config.Config) notion.TokenSource {
	switch {
	case cfg.NotionToken != "":
		return notion.StaticToken(cfg.NotionToken)
	case cfg.NotionConnectorURL != "":
		return notion.NewCachedTokenSource(&notion.ConnectorSource{
			URL:       cfg.NotionConnectorURL,
			AuthToken: cfg.NotionConnectorToken,
		})
	}
	return nil
}

func (a *app) close() error {
	if a.repo == nil {
		return nil
	}
	err := a.repo.Close()
	a.repo = nil
	return err
}

func printf(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, format, args...)
}
