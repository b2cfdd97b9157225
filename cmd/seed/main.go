package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/meur/dexforge/internal/collection"
	"github.com/meur/dexforge/internal/config"
	"github.com/meur/dexforge/internal/logging"
	"github.com/meur/dexforge/internal/models"
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
		Use:           "seed [file]",
		Short:         "Seed the collection from a JSON array of Pokemon",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	f := cmd.Flags()
	f.String("config", "", "config file (default .dexforge.yaml)")
	f.String("db", "./dexforge.db", "SQLite database path")
	f.String("storage-key", "pokemon-collection", "Storage key holding the collection")
	f.Bool("replace", false, "Clear the existing collection first")
	f.BoolP("verbose", "v", false, "Debug logging")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
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
	replace, _ := cmd.Flags().GetBool("replace")

	logger, err := logging.New(cfg.Verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	items, err := readSeed(args[0])
	if err != nil {
		return err
	}

	store, err := storage.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	coll := collection.New(store, cfg.StorageKey, logger.Named("collection"))
	coll.Load(cmd.Context())
	defer coll.Close()

	added, skipped, err := seed(coll, items, replace)
	if err != nil {
		return err
	}

	logger.Info("seeding complete",
		zap.String("file", args[0]),
		zap.Int("added", added),
		zap.Int("skipped", skipped),
		zap.Int("collection_size", coll.Len()),
	)
	fmt.Printf("🌱 Seeded %d Pokemon (%d already collected)\n", added, skipped)
	return nil
}

func readSeed(path string) ([]models.CatalogItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var items []models.CatalogItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	for i, item := range items {
		if item.ID <= 0 || item.Name == "" {
			return nil, fmt.Errorf("seed entry %d: id and name are required", i)
		}
	}
	return items, nil
}

// seed adds items to a loaded collection in file order
func seed(coll *collection.Store, items []models.CatalogItem, replace bool) (added, skipped int, err error) {
	if replace {
		if err := coll.Clear(); err != nil {
			return 0, 0, fmt.Errorf("failed to clear collection: %w", err)
		}
	}
	for _, item := range items {
		ok, err := coll.Add(item)
		if err != nil {
			return added, skipped, fmt.Errorf("failed to add %d: %w", item.ID, err)
		}
		if ok {
			added++
		} else {
			skipped++
		}
	}
	return added, skipped, nil
}
