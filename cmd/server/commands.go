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

	"github.com/warp/sage-poster/api"
	"github.com/warp/sage-poster/config"
	"github.com/warp/sage-poster/engine"
	"github.com/warp/sage-poster/patch"
	"github.com/warp/sage-poster/poster"
	"github.com/warp/sage-poster/report"
	"github.com/warp/sage-poster/store/sqlite"
)

func newPoster(cfg *config.Config, opts poster.Options) *poster.Poster {
	opts.DataFile = cfg.Engine.DataFile
	opts.AppName = cfg.Engine.AppName
	opts.AppID = cfg.Engine.AppID
	opts.AppVersion = cfg.Engine.AppVersion
	return poster.New(sqlite.New(), opts)
}

// =============================================================================
// SERVE
// =============================================================================

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		p := newPoster(cfg, poster.Options{Logger: logger})
		router := api.NewRouter(api.NewHandler(p, cfg.Server.MaxBodyBytes), cfg.Server.AllowedOrigins)

		server := &http.Server{
			Addr:         cfg.Server.Addr(),
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("server starting", "addr", server.Addr, "data_file", cfg.Engine.DataFile)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case err := <-errCh:
			return fmt.Errorf("server failed: %w", err)
		case <-quit:
		}

		logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		logger.Info("server stopped")
		return nil
	},
}

// =============================================================================
// RUN
// =============================================================================

var runFlags struct {
	user      string
	password  string
	multiUser bool
	xlsx      string
}

var runCmd = &cobra.Command{
	Use:   "run <batch.json>",
	Short: "Run a batch file and print the response",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read batch: %w", err)
		}
		var batch poster.BatchRequest
		if err := json.Unmarshal(data, &batch); err != nil {
			return fmt.Errorf("failed to parse batch %s: %w", args[0], err)
		}

		p := newPoster(cfg, poster.Options{Logger: logger})
		resp, err := p.Run(cmd.Context(), poster.Credentials{
			Username:  runFlags.user,
			Password:  runFlags.password,
			MultiUser: runFlags.multiUser,
		}, batch)
		if err != nil {
			return err
		}

		if runFlags.xlsx != "" {
			if err := report.Save(runFlags.xlsx, resp); err != nil {
				return err
			}
			logger.Info("report written", "path", runFlags.xlsx)
		}
		return printJSON(cmd, resp)
	},
}

func init() {
	runCmd.Flags().StringVar(&runFlags.user, "user", "", "data file user name")
	runCmd.Flags().StringVar(&runFlags.password, "password", "", "data file password")
	runCmd.Flags().BoolVar(&runFlags.multiUser, "multiuser", false, "open the data file in multi-user mode")
	runCmd.Flags().StringVar(&runFlags.xlsx, "xlsx", "", "also write the results to this XLSX file")
}

// =============================================================================
// TEMPLATES
// =============================================================================

var templatesCmd = &cobra.Command{
	Use:   "templates [action]",
	Short: "Print blank request templates",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		router := poster.NewRouter()

		if len(args) == 1 {
			op, ok := router.Template(args[0])
			if !ok {
				return fmt.Errorf("unknown action %q", args[0])
			}
			return printJSON(cmd, poster.BatchRequest{Requests: []poster.Operation{op}})
		}

		batch := poster.BatchRequest{}
		for _, a := range router.Actions() {
			op, _ := router.Template(a.String())
			batch.Requests = append(batch.Requests, op)
		}
		return printJSON(cmd, batch)
	},
}

// =============================================================================
// INIT-DB
// =============================================================================

var initFlags struct {
	path          string
	company       string
	accountLength int
	user          string
	password      string
}

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create a company data file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := initFlags.path
		if path == "" {
			path = os.Getenv("ENGINE_DATA_FILE")
		}
		if path == "" {
			return errors.New("--path (or ENGINE_DATA_FILE) is required")
		}

		var users []sqlite.User
		if initFlags.user != "" {
			users = append(users, sqlite.User{Name: initFlags.user, Password: initFlags.password})
		}

		company := sqlite.Company{
			Name:                initFlags.company,
			AccountNumberLength: initFlags.accountLength,
			Accounts:            []engine.Account{},
		}
		if err := sqlite.Create(cmd.Context(), path, company, users...); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", path)
		return nil
	},
}

func init() {
	initDBCmd.Flags().StringVar(&initFlags.path, "path", "", "data file to create")
	initDBCmd.Flags().StringVar(&initFlags.company, "company", "My Company", "company name")
	initDBCmd.Flags().IntVar(&initFlags.accountLength, "account-length", patch.DefaultAccountLength, "account number length")
	initDBCmd.Flags().StringVar(&initFlags.user, "user", "", "initial user (omit to accept any login)")
	initDBCmd.Flags().StringVar(&initFlags.password, "password", "", "initial user's password")
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
