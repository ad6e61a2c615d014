package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cardiocare/cardiocare/internal/api"
	"github.com/cardiocare/cardiocare/internal/app"
	"github.com/cardiocare/cardiocare/internal/config"
	"github.com/cardiocare/cardiocare/internal/platform/logging"
	"github.com/cardiocare/cardiocare/internal/platform/storage"
	"github.com/cardiocare/cardiocare/internal/shell"
	"github.com/cardiocare/cardiocare/internal/stubapi"
)

// keyLocation remembers the visible page of a file-backed tab between
// exec invocations.
const keyLocation = "cli_location"

func main() {
	rootCmd := &cobra.Command{
		Use:          "cardiocare",
		Short:        "CardioCare heart disease prediction client",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(shellCmd())
	rootCmd.AddCommand(execCmd())
	rootCmd.AddCommand(whoamiCmd())
	rootCmd.AddCommand(stubBackendCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// env bundles what every subcommand needs.
type env struct {
	cfg    *config.Config
	logger zerolog.Logger
}

func loadEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &env{cfg: cfg, logger: logging.New(cfg.Env, cfg.LogLevel)}, nil
}

// openDurable returns the store holding the session record. The returned
// func releases its resources.
func (e *env) openDurable(ctx context.Context) (storage.Store, func(), error) {
	switch e.cfg.StorageBackend {
	case config.BackendPostgres:
		pool, err := storage.NewPool(ctx, e.cfg.DatabaseURL, e.cfg.DBMaxConns, e.cfg.DBMinConns)
		if err != nil {
			return nil, nil, err
		}
		e.logger.Debug().Str("namespace", e.cfg.StateNamespace).Msg("using postgres session store")
		return storage.NewWriteThrough(storage.NewPGStoreFromPool(pool, e.cfg.StateNamespace)), pool.Close, nil
	default:
		path := filepath.Join(e.cfg.StateDir, "session.json")
		e.logger.Debug().Str("path", path).Msg("using file session store")
		return storage.NewWriteThrough(storage.NewFileStore(path)), func() {}, nil
	}
}

func (e *env) newApp(durable, ephemeral storage.Store) *app.App {
	var a *app.App
	client := api.New(e.cfg.APIBaseURL, func() string { return a.Session().Current().Token },
		api.WithLogger(e.logger),
	)
	a = app.New(app.Options{
		API:          client,
		Durable:      durable,
		Ephemeral:    ephemeral,
		Logger:       e.logger,
		ResultWindow: e.cfg.ResultWindow(),
		NoticeTTL:    e.cfg.NoticeTTL(),
	})
	return a
}

func shellCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive session in a fresh tab",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, _ := cmd.Flags().GetString("start")

			e, err := loadEnv()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			durable, closeFn, err := e.openDurable(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			a := e.newApp(durable, storage.NewMemoryStore())
			out := cmd.OutOrStdout()
			a.Start(ctx, start)
			a.Wait()
			if err := a.Render(out); err != nil {
				return err
			}
			return shell.New(a, out, e.logger).Run(ctx, cmd.InOrStdin(), "> ")
		},
	}
	cmd.Flags().String("start", "home", "Location to show first")
	return cmd
}

var tabName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// tabPath is the file holding the ephemeral state of a named tab.
func tabPath(stateDir, name string) (string, error) {
	if !tabName.MatchString(name) {
		return "", fmt.Errorf("tab name %q must be letters, digits, '-' or '_'", name)
	}
	return filepath.Join(stateDir, "tab-"+name+".json"), nil
}

func execCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec <command>...",
		Short: "Run shell commands against a named tab",
		Long: "Each argument is one shell command, for example:\n" +
			`  cardiocare exec "go login" "submit email=ann@example.com password=secret"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tab, _ := cmd.Flags().GetString("tab")

			e, err := loadEnv()
			if err != nil {
				return err
			}
			path, err := tabPath(e.cfg.StateDir, tab)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			durable, closeFn, err := e.openDurable(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			ephemeral := storage.NewWriteThrough(storage.NewFileStore(path))
			start, _, _ := ephemeral.Get(ctx, keyLocation)

			a := e.newApp(durable, ephemeral)
			a.Start(ctx, start)
			a.Wait()

			sh := shell.New(a, cmd.OutOrStdout(), e.logger)
			var runErr error
			for _, line := range args {
				if runErr = sh.Exec(ctx, line); runErr != nil {
					break
				}
			}
			if err := ephemeral.Set(ctx, keyLocation, string(a.Controller().Current())); err != nil {
				e.logger.Warn().Err(err).Msg("failed to remember tab location")
			}
			return runErr
		},
	}
	cmd.Flags().String("tab", "default", "Tab whose page and per-tab state are reused")
	return cmd
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			ctx := context.Background()
			durable, closeFn, err := e.openDurable(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			a := e.newApp(durable, storage.NewMemoryStore())
			a.Session().Load(ctx)
			out := cmd.OutOrStdout()
			sess := a.Session().Current()
			if !sess.Authenticated() {
				fmt.Fprintln(out, "not logged in")
				return nil
			}
			fmt.Fprintf(out, "role:    %s\n", sess.Role)
			if claims, ok := a.Session().Claims(); ok {
				fmt.Fprintf(out, "subject: %s\n", claims.Subject)
				if claims.ExpiresAt != nil {
					fmt.Fprintf(out, "expires: %s\n", claims.ExpiresAt.Time.Format(time.RFC3339))
				}
			}
			return nil
		},
	}
}

func stubBackendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stub-backend",
		Short: "Serve an in-memory CardioCare backend for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			return runStub(e)
		},
	}
}

func runStub(e *env) error {
	var key []byte
	if e.cfg.StubSigningKey != "" {
		decoded, err := hex.DecodeString(e.cfg.StubSigningKey)
		if err != nil {
			return fmt.Errorf("decode STUB_SIGNING_KEY: %w", err)
		}
		key = decoded
	}

	srv, err := stubapi.New(stubapi.Config{
		SigningKey: key,
		TokenTTL:   e.cfg.StubTokenTTL(),
	}, e.logger)
	if err != nil {
		return err
	}

	go func() {
		addr := ":" + e.cfg.StubPort
		if err := srv.Start(addr); err != nil && err != http.ErrServerClosed {
			e.logger.Fatal().Err(err).Msg("stub backend error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	e.logger.Info().Msg("shutting down stub backend")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		e.logger.Fatal().Err(err).Msg("stub backend shutdown failed")
	}
	e.logger.Info().Msg("stub backend stopped")
	return nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the postgres client_state table",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			if e.cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required")
			}

			ctx := context.Background()
			pool, err := storage.NewPool(ctx, e.cfg.DatabaseURL, e.cfg.DBMaxConns, e.cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := storage.NewPGStoreFromPool(pool, e.cfg.StateNamespace).Migrate(ctx); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "client_state table is ready.")
			return nil
		},
	}
}
