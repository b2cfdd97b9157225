package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/meur/dexforge/internal/catalog"
	"github.com/meur/dexforge/internal/config"
	"github.com/meur/dexforge/internal/httpclient"
	"github.com/meur/dexforge/internal/logging"
	"github.com/meur/dexforge/internal/models"
	"github.com/meur/dexforge/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

const (
	defaultPageSize          = 50
	defaultDetailConcurrency = 10
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s✗ %v%s\n", colorRed, err, colorReset)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "import_catalog",
		Short:         "Snapshot the Pokemon catalog into the local database",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	f := cmd.Flags()
	f.String("config", "", "config file (default .dexforge.yaml)")
	f.String("db", "./dexforge.db", "SQLite database path")
	f.String("api-base", "https://pokeapi.co/api/v2", "Pokemon API base URL")
	f.Int("page-size", defaultPageSize, "Entries requested per page")
	f.Int("ceiling", 1000, "Stop after this many entries")
	f.Int("detail-concurrency", defaultDetailConcurrency, "Concurrent detail requests per page (0 = unbounded)")
	f.Bool("dry-run", false, "Print summary without writing to the database")
	f.BoolP("verbose", "v", false, "Debug logging")

	return cmd
}

// loadConfig resolves configuration for the import. Bulk snapshots use
// larger pages and a bounded fan-out unless a file, env var or flag says otherwise.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	v, err := config.NewViper(cfgFile)
	if err != nil {
		return nil, err
	}
	v.SetDefault("page_size", defaultPageSize)
	v.SetDefault("detail_concurrency", defaultDetailConcurrency)
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return nil, err
	}
	return config.Load(v)
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	logger, err := logging.New(cfg.Verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = cfg.HTTPTimeout
	fetcher := catalog.NewFetcher(cfg.APIBase, httpclient.New(httpCfg),
		catalog.WithLogger(logger.Named("catalog")),
		catalog.WithDetailConcurrency(cfg.DetailConcurrency),
	)

	items, total, err := walk(ctx, catalog.NewSession(fetcher, cfg.PageSize, cfg.Ceiling), func(fetched, total int) {
		fmt.Printf("%s… %d/%d%s\n", colorCyan, fetched, total, colorReset)
	})
	if err != nil {
		return fmt.Errorf("failed to fetch catalog: %w", err)
	}

	fmt.Printf("%s📦 Fetched %d of %d Pokemon%s\n", colorCyan, len(items), total, colorReset)
	if len(items) < total {
		logger.Info("catalog ceiling reached", zap.Int("fetched", len(items)), zap.Int("upstream_total", total))
	}

	if dryRun {
		fmt.Printf("%s⚠ Dry run: would import %d Pokemon into %s%s\n", colorYellow, len(items), cfg.DBPath, colorReset)
		return nil
	}

	store, err := storage.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer store.Close()

	before, err := store.CountCatalogItems()
	if err != nil {
		return fmt.Errorf("failed to count existing items: %w", err)
	}

	if err := store.BulkUpsertCatalogItems(items); err != nil {
		return fmt.Errorf("failed to import catalog: %w", err)
	}

	after, err := store.CountCatalogItems()
	if err != nil {
		return fmt.Errorf("failed to count imported items: %w", err)
	}

	created := after - before
	fmt.Printf("%s✓ Imported %d Pokemon (created %d, updated %d)%s\n",
		colorGreen, len(items), created, len(items)-created, colorReset)
	return nil
}

// walk drives a session until it is exhausted and returns everything it fetched
func walk(ctx context.Context, s *catalog.Session, progress func(fetched, total int)) ([]models.CatalogItem, int, error) {
	for {
		_, err := s.Next(ctx)
		if errors.Is(err, catalog.ErrExhausted) {
			return s.Items(), s.Total(), nil
		}
		if err != nil {
			return nil, 0, err
		}
		if progress != nil {
			progress(s.Fetched(), s.Total())
		}
	}
}
