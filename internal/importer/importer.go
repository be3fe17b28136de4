package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/logging"
	variantrepo "storefront/internal/repository/variant"
)

type VariantWriter interface {
	Upsert(ctx context.Context, in variantrepo.UpsertInput) (*domain.Variant, error)
}

// CSVImporter reads catalog exports and upserts products and variants keyed
// by product slug and SKU.
//
// Expected headers: product_title, product_slug, variant_title, sku, price,
// compare_at_price, inventory, image_url and optionally status. Rows with an
// empty product_slug belong to the product of the previous row.
type CSVImporter struct {
	reader *csv.Reader
	repo   VariantWriter
	logger *zap.Logger
	dryRun bool
}

func NewCSVImporter(r io.Reader, repo VariantWriter, logger *zap.Logger) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	return &CSVImporter{
		reader: csvr,
		repo:   repo,
		logger: logging.OrNop(logger),
	}
}

// DryRun validates every row without writing.
func (i *CSVImporter) DryRun(v bool) *CSVImporter {
	i.dryRun = v
	return i
}

type product struct {
	Title  string
	Slug   string
	Status domain.ProductStatus
}

var requiredHeaders = []string{"sku", "price"}

// Run parses CSV rows and upserts one variant per row. It stops at the
// first invalid row and returns how many variants were written before it.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	for _, h := range requiredHeaders {
		if _, ok := index[h]; !ok {
			return 0, fmt.Errorf("missing required column %q", h)
		}
	}

	var (
		current  *product
		imported int
		line     = 1
	)
	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return imported, fmt.Errorf("read row %d: %w", line, err)
		}
		if blank(record) {
			continue
		}

		if slug := pick(record, index, "product_slug"); slug != "" {
			current = &product{
				Title:  pick(record, index, "product_title"),
				Slug:   slug,
				Status: parseStatus(pick(record, index, "status")),
			}
			if current.Title == "" {
				current.Title = slug
			}
		}
		if current == nil {
			return imported, fmt.Errorf("row %d: variant has no product", line)
		}

		in, err := parseVariant(record, index, *current)
		if err != nil {
			return imported, fmt.Errorf("row %d: %w", line, err)
		}
		if i.dryRun {
			imported++
			continue
		}
		if _, err := i.repo.Upsert(ctx, in); err != nil {
			return imported, fmt.Errorf("row %d: upsert variant %q: %w", line, in.SKU, err)
		}
		imported++
	}

	i.logger.Info("catalog import finished", zap.Int("variants", imported), zap.Bool("dry_run", i.dryRun))
	return imported, nil
}

func parseVariant(record []string, index map[string]int, p product) (variantrepo.UpsertInput, error) {
	in := variantrepo.UpsertInput{
		ProductTitle:  p.Title,
		ProductSlug:   p.Slug,
		ProductStatus: p.Status,
		Title:         pick(record, index, "variant_title"),
		SKU:           pick(record, index, "sku"),
		ImageURL:      pick(record, index, "image_url"),
	}
	if in.SKU == "" {
		return in, errors.New("sku is required")
	}
	if in.Title == "" {
		in.Title = "Default"
	}

	price, err := parseMoney(pick(record, index, "price"))
	if err != nil || price == nil {
		return in, fmt.Errorf("invalid price for %q", in.SKU)
	}
	in.Price = *price

	in.CompareAtPrice, err = parseMoney(pick(record, index, "compare_at_price"))
	if err != nil {
		return in, fmt.Errorf("invalid compare_at_price for %q", in.SKU)
	}

	if raw := pick(record, index, "inventory"); raw != "" {
		qty, err := strconv.Atoi(raw)
		if err != nil || qty < 0 {
			return in, fmt.Errorf("invalid inventory for %q: %s", in.SKU, raw)
		}
		in.InventoryQuantity = qty
	}
	return in, nil
}

// parseMoney returns nil for an empty cell. Values are kept to two places.
func parseMoney(raw string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(strings.TrimPrefix(raw, "$"))
	if err != nil {
		return nil, err
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("negative amount %s", raw)
	}
	d = d.Round(2)
	return &d, nil
}

func parseStatus(raw string) domain.ProductStatus {
	switch s := domain.ProductStatus(strings.ToUpper(raw)); s {
	case domain.ProductStatusDraft, domain.ProductStatusArchived:
		return s
	}
	return domain.ProductStatusActive
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
