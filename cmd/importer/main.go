package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/importer"
	"storefront/internal/logging"
	variantrepo "storefront/internal/repository/variant"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "importer",
		Short: "Catalog import tools for the storefront database",
	}
	rootCmd.AddCommand(variantsCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func variantsCmd() *cobra.Command {
	var (
		filePath string
		dryRun   bool
	)
	cmd := &cobra.Command{
		Use:   "variants",
		Short: "Upsert products, variants and inventory from a CSV file",
		Long: `Upsert products, variants and inventory from a CSV file.

Columns: product_title, product_slug, variant_title, sku, price,
compare_at_price, inventory, image_url, status. Rows with an empty
product_slug are further variants of the previous product.

Examples:
  importer variants --file catalog.csv
  importer variants --file catalog.csv --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runVariants(cmd.Context(), filePath, dryRun)
		},
	}
	cmd.Flags().StringVarP(&filePath, "file", "f", "", "path to the catalog CSV")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate rows without writing")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runVariants(ctx context.Context, filePath string, dryRun bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	var repo importer.VariantWriter
	if !dryRun {
		pool, err := db.Connect(ctx, cfg.DBConnString)
		if err != nil {
			return fmt.Errorf("connect db: %w", err)
		}
		defer pool.Close()
		repo = variantrepo.NewPostgres(pool, logger)
	}

	start := time.Now()
	count, err := importer.NewCSVImporter(f, repo, logger).DryRun(dryRun).Run(ctx)
	if err != nil {
		return fmt.Errorf("import failed after %d variants: %w", count, err)
	}

	logger.Info("import complete",
		zap.String("file", filePath),
		zap.Int("variants", count),
		zap.Duration("took", time.Since(start).Truncate(time.Millisecond)))
	return nil
}
