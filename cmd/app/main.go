package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"TrendWatch/internal/di"
	"TrendWatch/internal/domain/models"
	"TrendWatch/pkg/config"
	"TrendWatch/pkg/server"
)

// errCycleFailed makes `run` exit non-zero without printing usage.
var errCycleFailed = errors.New("cycle failed")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errCycleFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "trendwatch",
		Short:         "Technical-indicator trading signal bot",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path")

	build := func() (*server.App, func(), error) {
		cfg, err := config.LoadWithEnv(configPath)
		if err != nil {
			return nil, nil, fmt.Errorf("config load failed: %w", err)
		}
		app, cleanup, err := di.InitializeApp(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("app initialization failed: %w", err)
		}
		return app, cleanup, nil
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run one evaluation cycle and exit",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				app, cleanup, err := build()
				if err != nil {
					return err
				}
				defer cleanup()

				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()

				res, err := app.RunOnce(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), res.Message)
				if res.StatusCode != http.StatusOK {
					return errCycleFailed
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "serve",
			Short: "Run cycles on a schedule and serve the HTTP API",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				app, cleanup, err := build()
				if err != nil {
					return err
				}
				defer cleanup()

				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				return app.Serve(ctx)
			},
		},
		&cobra.Command{
			Use:   "state SYMBOL",
			Short: "Print the persisted decision for a symbol",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				app, cleanup, err := build()
				if err != nil {
					return err
				}
				defer cleanup()

				st, err := app.State(context.Background(), args[0])
				if errors.Is(err, models.ErrStateNotFound) {
					return fmt.Errorf("no state recorded for %s", args[0])
				}
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(st.Record())
			},
		},
	)
	return root
}
