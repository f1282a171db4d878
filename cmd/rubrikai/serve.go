package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Varun-Kachroo/RubrikAI/internal/analysis"
	"github.com/Varun-Kachroo/RubrikAI/internal/handler"
	"github.com/Varun-Kachroo/RubrikAI/internal/model"
	"github.com/Varun-Kachroo/RubrikAI/internal/store"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	addCommonFlags(cmd)
	addLLMFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringP("lang", "l", "en", "Default response language (en, ru)")
	f.StringSlice("allowed-origins", []string{"*"}, "CORS allowed origins")
	f.Float64("threshold", 60, "Suspicious pair threshold for combined answers (percent)")
	f.Float64("question-threshold", 65, "Suspicious pair threshold for single questions (percent)")
	f.String("admin-password", "", "Initial admin password (or set RUBRIKAI_ADMIN_PASSWORD)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := seedAdmin(db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	lang := v.GetString("lang")
	if err := initI18n(lang); err != nil {
		return err
	}

	mode, err := parseMode(v)
	if err != nil {
		return err
	}
	oracle, err := newOracle(v)
	if err != nil {
		return fmt.Errorf("create grading client: %w", err)
	}
	if oracle == nil {
		slog.Warn("no grading provider configured, grading endpoints are disabled")
	}

	opts := analysis.DefaultOptions()
	opts.PairThreshold = v.GetFloat64("threshold")
	opts.QuestionPairThreshold = v.GetFloat64("question-threshold")
	opts.Workers = v.GetInt("workers")

	h := handler.New(db, oracle, handler.Config{
		Mode:           mode,
		Workers:        v.GetInt("workers"),
		Analysis:       opts,
		Lang:           lang,
		AllowedOrigins: v.GetStringSlice("allowed-origins"),
	})

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"addr", addr,
			"provider", v.GetString("llm-provider"),
			"model", v.GetString("llm-model"),
			"mode", mode,
			"lang", lang,
			"threshold", opts.PairThreshold,
			"question_threshold", opts.QuestionPairThreshold,
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func seedAdmin(db *store.Store, password string) error {
	count, err := db.UserCount()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		return fmt.Errorf("admin password is required: set --admin-password flag or RUBRIKAI_ADMIN_PASSWORD env var")
	}

	hash, err := handler.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	_, err = db.CreateUser(model.User{
		Username:     "admin",
		DisplayName:  "Administrator",
		PasswordHash: hash,
		Role:         model.UserRoleAdmin,
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	slog.Info("seeded default admin user", "username", "admin")
	return nil
}
