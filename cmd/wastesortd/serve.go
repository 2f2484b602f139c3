package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"wastesort/internal/config"
	"wastesort/internal/httpapi"
	"wastesort/internal/manager"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr            string
		preload         bool
		corsOrigins     string
		maxBody         int64
		classifyTimeout time.Duration
		httpLogLevel    string
	)
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the HTTP API",
		Example: "  wastesortd serve --addr :8080 --preload\n  TFJS_MODEL_DIR=./model wastesortd serve",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Addr = addr
			}
			if cmd.Flags().Changed("preload") {
				a.cfg.Preload = preload
			}
			if cmd.Flags().Changed("cors-origins") {
				a.cfg.CORSOrigins = config.SplitCSV(corsOrigins)
			}
			if cmd.Flags().Changed("max-body-bytes") {
				a.cfg.MaxBodyBytes = maxBody
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, classifyTimeout, httpLogLevel)
		},
	}
	f := cmd.Flags()
	f.StringVar(&addr, "addr", config.DefaultAddr, "HTTP listen address, e.g. :8080")
	f.BoolVar(&preload, "preload", false, "Load the model in the background at startup")
	f.StringVar(&corsOrigins, "cors-origins", "", "Comma-separated allowed CORS origins (enables CORS)")
	f.Int64Var(&maxBody, "max-body-bytes", config.DefaultMaxBodyBytes, "Maximum /classify request body size")
	f.DurationVar(&classifyTimeout, "classify-timeout", 0, "Per-request classify timeout including a cold load (0 disables)")
	f.StringVar(&httpLogLevel, "http-log-level", "", "Default per-request log level: off|error|info|debug")
	return cmd
}

// newHandler wires the manager into the HTTP layer.
func (a *app) newHandler(mgr *manager.Manager) http.Handler {
	httpapi.SetLogger(a.log)
	httpapi.SetMaxBodyBytes(a.cfg.MaxBodyBytes)
	httpapi.SetCORSOptions(len(a.cfg.CORSOrigins) > 0, a.cfg.CORSOrigins, nil, nil)
	return httpapi.NewMux(mgr)
}

func (a *app) serve(ctx context.Context, classifyTimeout time.Duration, httpLogLevel string) error {
	mgr := a.newManager(nil)
	defer func() {
		if err := mgr.Close(); err != nil {
			a.log.Warn().Err(err).Msg("closing model failed")
		}
	}()

	httpapi.SetBaseContext(ctx)
	httpapi.SetClassifyTimeout(classifyTimeout)
	if httpLogLevel != "" {
		httpapi.SetDefaultLogLevel(httpLogLevel)
	}
	srv := &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           a.newHandler(mgr),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if a.cfg.Preload {
		op := mgr.Preload()
		a.log.Info().Str("op", op).Msg("preloading model")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info().Str("addr", a.cfg.Addr).Strs("candidates", mgr.Candidates()).Msg("wastesortd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			a.log.Warn().Err(err).Msg("graceful shutdown error")
		}
		return nil
	})
	return g.Wait()
}
