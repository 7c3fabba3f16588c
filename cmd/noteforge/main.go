// Command noteforge serves and reconciles the collaborative note
// service of SPEC_FULL.md.
//
// Grounded on steveyegge-beads/cmd/bd/main.go's rootCmd construction
// (cobra.Command with PersistentFlags, signal.NotifyContext for
// graceful shutdown) and its use of viper for config-file/env-var
// overlay, generalized from bd's many subcommands down to this
// service's two entry points.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/noteforge/noteforge/internal/config"
	"github.com/noteforge/noteforge/internal/contentstore"
	"github.com/noteforge/noteforge/internal/httpapi"
	"github.com/noteforge/noteforge/internal/indexworker"
	"github.com/noteforge/noteforge/internal/metadata"
	"github.com/noteforge/noteforge/internal/notecoordinator"
	"github.com/noteforge/noteforge/internal/reconciler"
	"github.com/noteforge/noteforge/internal/searchindex"
	"github.com/noteforge/noteforge/internal/telemetry"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "noteforge",
	Short: "noteforge - a collaborative, git-backed note service",
	Long:  `A collaborative note service storing bodies in a git-backed Content Store, facts in a relational Metadata Store, and a searchable projection in an inverted Search Index.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file (default: none, env vars and defaults only)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reconcileCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reconciler once, then serve the HTTP surface",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return runServe(ctx)
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run the reconciler once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		_, err := runReconcileOnce(ctx)
		return err
	},
}

type services struct {
	cfg  config.Config
	cs   *contentstore.GitStore
	ms   *metadata.SQLiteStore
	si   *searchindex.FTSIndex
	rc   *reconciler.Reconciler
	idx  *indexworker.Worker
	nc   *notecoordinator.Coordinator
	log  *slog.Logger
}

func bootstrap(ctx context.Context) (*services, func(context.Context) error, error) {
	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(log)

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{Enabled: true})
	if err != nil {
		return nil, nil, fmt.Errorf("init telemetry: %w", err)
	}

	cs, err := contentstore.Open(ctx, cfg.NoteDir())
	if err != nil {
		return nil, nil, fmt.Errorf("open content store: %w", err)
	}
	ms, err := metadata.Open(ctx, cfg.DBPath())
	if err != nil {
		return nil, nil, fmt.Errorf("open metadata store: %w", err)
	}
	si, err := searchindex.Open(ctx, cfg.IndexPath(), cfg.Synonyms)
	if err != nil {
		return nil, nil, fmt.Errorf("open search index: %w", err)
	}

	rc := reconciler.New(cs, ms, si, log)
	idx := indexworker.New(si, 256, log)

	mode := notecoordinator.MergeDisabled
	if cfg.MergeOnConflict {
		mode = notecoordinator.MergeAttempt
	}
	nc := notecoordinator.New(cs, ms, si, idx,
		notecoordinator.WithMergeMode(mode),
		notecoordinator.WithLogger(log),
		notecoordinator.WithFTSLimit(cfg.FTSLimit),
	)

	svc := &services{cfg: cfg, cs: cs, ms: ms, si: si, rc: rc, idx: idx, nc: nc, log: log}

	cleanup := func(ctx context.Context) error {
		var firstErr error
		if err := ms.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := si.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := shutdownTelemetry(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		return firstErr
	}
	return svc, cleanup, nil
}

func runReconcileOnce(ctx context.Context) (*services, error) {
	svc, cleanup, err := bootstrap(ctx)
	if err != nil {
		return nil, err
	}
	defer cleanup(ctx)

	result, err := svc.rc.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}
	svc.log.Info("reconcile complete",
		"inserted", result.Inserted,
		"moved", result.Moved,
		"refreshed", result.Refreshed,
		"disabled", result.Disabled,
		"reindexed", result.Reindexed,
		"index_errors", result.IndexErrors,
		"duplicates", len(result.Duplicates),
	)
	return svc, nil
}

func runServe(ctx context.Context) error {
	svc, cleanup, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer cleanup(context.Background())

	if _, err := svc.rc.Run(ctx); err != nil {
		return fmt.Errorf("startup reconcile: %w", err)
	}

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()
	go svc.idx.Run(workerCtx)

	go func() {
		debounce := time.Duration(svc.cfg.ReconcileDebounceMillis) * time.Millisecond
		if err := svc.rc.Watch(ctx, svc.cs.Root(), debounce); err != nil {
			svc.log.Error("reconciler watch exited", "error", err)
		}
	}()

	server := &http.Server{
		Addr:    svc.cfg.HTTPAddr,
		Handler: httpapi.NewRouter(svc.nc, svc.log),
	}

	serveErr := make(chan error, 1)
	go func() {
		svc.log.Info("noteforge listening", "addr", svc.cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-serveErr:
		return err
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
