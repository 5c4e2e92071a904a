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

	"github.com/lysyi3m/subrelay/app/api"
	"github.com/lysyi3m/subrelay/app/cfg"
	"github.com/lysyi3m/subrelay/app/tasks"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "subrelay",
		Short:         "Relay new subreddit posts to Telegram and Discord",
		Version:       cfg.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(checkEnvCmd())
	rootCmd.AddCommand(pruneCmd())

	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

// Flags are parsed by go-flags so every subcommand accepts the same options and
// environment variables.
func configCommand(use, short string, run func(ctx context.Context, appCfg *cfg.Cfg, args []string) error) *cobra.Command {
	return &cobra.Command{
		Use:                use,
		Short:              short,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, rest, err := cfg.Parse(args)
			if err != nil {
				return err
			}
			if appCfg == nil {
				return nil
			}

			setupLogger(appCfg.Debug)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, appCfg, rest)
		},
	}
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

func serveCmd() *cobra.Command {
	return configCommand("serve", "Run the scheduler and the HTTP API", func(ctx context.Context, appCfg *cfg.Cfg, _ []string) error {
		slog.Info("Starting subrelay server", "version", appCfg.Version)

		app, err := newApp(ctx, appCfg)
		if err != nil {
			return err
		}
		defer app.Close()

		interval := time.Duration(appCfg.SchedulerInterval) * time.Second
		if interval <= 0 {
			interval = 300 * time.Second
		}

		scheduler := tasks.NewScheduler(interval, app.newRunTask)
		scheduler.Start()
		defer func() {
			scheduler.Stop()
			slog.Info("Background scheduler stopped")
		}()

		handler := api.NewHandler(api.HandlerOptions{
			Sources:     app.sources,
			SeenStore:   app.seenStore,
			Deliveries:  app.deliveries,
			Scheduler:   scheduler,
			NewRunTask:  app.newRunTask,
			SeenBackend: appCfg.SeenBackend,
			Version:     appCfg.Version,
		})

		httpServer := &http.Server{
			Addr:         ":" + appCfg.Port,
			Handler:      api.NewServer(handler, appCfg.APIAccessKey),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		}

		serverErrChan := make(chan error, 1)
		go func() {
			slog.Info("Starting HTTP server", "port", appCfg.Port, "interval", interval.String())
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
			}
		}()

		var serveErr error
		select {
		case <-ctx.Done():
			slog.Info("Shutdown signal received")
		case serveErr = <-serverErrChan:
			slog.Error("Server error", "error", serveErr)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server stopped")
		}

		return serveErr
	})
}

func runCmd() *cobra.Command {
	return configCommand("run", "Run one relay pass and exit", func(ctx context.Context, appCfg *cfg.Cfg, _ []string) error {
		app, err := newApp(ctx, appCfg)
		if err != nil {
			return err
		}
		defer app.Close()

		task := app.newRunTask()
		task.Start()
		return task.Execute(ctx)
	})
}

func checkEnvCmd() *cobra.Command {
	return configCommand("check-env", "Print the resolved configuration with secrets masked", func(ctx context.Context, appCfg *cfg.Cfg, _ []string) error {
		for _, kv := range appCfg.Masked() {
			fmt.Printf("%-22s %s\n", kv[0]+":", kv[1])
		}

		if len(appCfg.Subreddits) == 0 {
			fmt.Println("\nwarning: SUB_NAMES is empty, only YAML sources will be polled")
		}
		if appCfg.TelegramToken == "" && appCfg.DiscordWebhookURL == "" {
			fmt.Println("warning: no sink configured, accepted posts will only be logged")
		}
		return nil
	})
}

func pruneCmd() *cobra.Command {
	return configCommand("prune <subreddit>", "Clear the seen-set of one subreddit", func(ctx context.Context, appCfg *cfg.Cfg, args []string) error {
		if len(args) != 1 {
			return fmt.Errorf("prune expects exactly one subreddit, got %d arguments", len(args))
		}

		app, err := newApp(ctx, appCfg)
		if err != nil {
			return err
		}
		defer app.Close()

		task := tasks.NewPruneTask(args[0], 0, app.seenStore)
		task.Start()
		if err := task.Execute(ctx); err != nil {
			return err
		}

		fmt.Printf("removed %d seen ids from %s\n", task.Removed, args[0])
		return nil
	})
}
