package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"wiki-companion/api"
	"wiki-companion/catalog"
	"wiki-companion/favorites"
	"wiki-companion/session"
	"wiki-companion/theme"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cat, err := catalog.Default()
	if err != nil {
		return err
	}

	st, err := openStorage(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("closing storage", zap.Error(err))
		}
	}()

	favs := favorites.NewManager(st.store, favorites.WithLogger(logger.Named("favorites")))
	defer favs.Close()
	th := theme.NewManager(st.store,
		theme.WithHint(cfg.Theme.DefaultHint),
		theme.WithLogger(logger.Named("theme")),
	)
	defer th.Close()

	sessions := session.NewManager(cfg.Sync.Backlog, logger.Named("session"))
	api.Bridge(sessions, favs, th, logger.Named("sync"))

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: api.RegisterRoutes(api.Deps{
			Sessions:  sessions,
			Favorites: favs,
			Theme:     th,
			Catalog:   cat,
			Log:       logger.Named("api"),
		}, staticFiles),
	}

	g, ctx := errgroup.WithContext(ctx)

	if st.watcher != nil {
		if err := st.watcher.Start(ctx); err != nil {
			return err
		}
	}

	g.Go(func() error {
		logger.Info("wiki listening", zap.String("addr", srv.Addr), zap.String("storage", cfg.Storage.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		idle := cfg.GetIdleTimeout()
		ticker := time.NewTicker(max(idle/2, time.Second))
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				sessions.Sweep(idle)
			}
		}
	})

	err = g.Wait()
	logger.Info("wiki stopped")
	return err
}
