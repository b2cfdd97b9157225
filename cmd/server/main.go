package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/meur/dexforge/internal/api"
	"github.com/meur/dexforge/internal/catalog"
	"github.com/meur/dexforge/internal/collection"
	"github.com/meur/dexforge/internal/config"
	"github.com/meur/dexforge/internal/httpclient"
	"github.com/meur/dexforge/internal/logging"
	"github.com/meur/dexforge/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "server",
		Short:         "Serve the Pokemon discovery and collection API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	f := cmd.Flags()
	f.String("config", "", "config file (default .dexforge.yaml)")
	f.String("port", "8080", "Server port")
	f.String("db", "./dexforge.db", "SQLite database path")
	f.String("api-base", "https://pokeapi.co/api/v2", "Pokemon API base URL")
	f.String("storage-key", "pokemon-collection", "Storage key holding the collection")
	f.String("static-dir", "../frontend/dist", "Frontend build directory")
	f.BoolP("verbose", "v", false, "Debug logging")

	return cmd
}

func run(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	v, err := config.NewViper(cfgFile)
	if err != nil {
		return err
	}
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	// Initialize storage
	store, err := storage.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	coll := collection.New(store, cfg.StorageKey, logger.Named("collection"))
	coll.Load(ctx)
	defer coll.Close()

	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = cfg.HTTPTimeout
	fetcher := catalog.NewFetcher(cfg.APIBase, httpclient.New(httpCfg),
		catalog.WithLogger(logger.Named("catalog")),
		catalog.WithDetailConcurrency(cfg.DetailConcurrency),
	)
	sessions := catalog.NewRegistry(fetcher, cfg.PageSize, cfg.Ceiling, cfg.MaxSessions)

	// Create router
	srv := api.New(coll, sessions, store, logger.Named("api"))

	// Serve frontend static files (for production deployment)
	staticDir := cfg.StaticDir
	if !filepath.IsAbs(staticDir) {
		workDir, _ := os.Getwd()
		staticDir = filepath.Join(workDir, staticDir)
	}
	FileServer(srv.Router(), "/", http.Dir(staticDir))

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("dexforge API starting",
		zap.String("addr", "http://localhost:"+cfg.Port),
		zap.String("db", cfg.DBPath),
		zap.String("api_base", cfg.APIBase),
		zap.String("storage_key", cfg.StorageKey),
		zap.Int("collection_size", coll.Len()),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// FileServer conveniently sets up a http.FileServer handler to serve
// static files from a http.FileSystem.
func FileServer(r chi.Router, path string, root http.FileSystem) {
	if strings.ContainsAny(path, "{}*") {
		panic("FileServer does not permit URL parameters.")
	}

	if path != "/" && path[len(path)-1] != '/' {
		r.Get(path, http.RedirectHandler(path+"/", http.StatusMovedPermanently).ServeHTTP)
		path += "/"
	}
	path += "*"

	r.Get(path, func(w http.ResponseWriter, req *http.Request) {
		rctx := chi.RouteContext(req.Context())
		pathPrefix := strings.TrimSuffix(rctx.RoutePattern(), "/*")
		fs := http.StripPrefix(pathPrefix, http.FileServer(root))
		fs.ServeHTTP(w, req)
	})
}
