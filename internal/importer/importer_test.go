package importer

import (
	"context"
	"strings"
	"testing"

	"storefront/internal/domain"
	variantrepo "storefront/internal/repository/variant"
)

type stubVariantRepo struct {
	items []variantrepo.UpsertInput
}

func (s *stubVariantRepo) Upsert(_ context.Context, in variantrepo.UpsertInput) (*domain.Variant, error) {
	s.items = append(s.items, in)
	return &domain.Variant{ID: "v", SKU: in.SKU, Price: in.Price}, nil
}

func TestCSVImporter_Run(t *testing.T) {
	csvData := `product_title,product_slug,variant_title,sku,price,compare_at_price,inventory,image_url,status
Classic Tee,classic-tee,Small,TEE-S,19.99,24.99,10,https://example.com/tee-s.jpg,
,,Large,TEE-L,$19.99,,0,,
,,,,,,,,
Mug,mug,,MUG-1,12.5,,5,,draft`

	repo := &stubVariantRepo{}
	imp := NewCSVImporter(strings.NewReader(csvData), repo, nil)

	count, err := imp.Run(context.Background())
	if err != nil {
		t.Fatalf("import run: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 variants imported, got %d", count)
	}
	if len(repo.items) != 3 {
		t.Fatalf("expected 3 upserts, got %d", len(repo.items))
	}

	small := repo.items[0]
	if small.ProductSlug != "classic-tee" || small.ProductTitle != "Classic Tee" || small.SKU != "TEE-S" || small.InventoryQuantity != 10 {
		t.Fatalf("unexpected first variant: %+v", small)
	}
	if small.Price.String() != "19.99" || small.CompareAtPrice == nil || small.CompareAtPrice.String() != "24.99" {
		t.Fatalf("unexpected prices: %s %v", small.Price, small.CompareAtPrice)
	}
	if small.ProductStatus != domain.ProductStatusActive {
		t.Fatalf("expected ACTIVE default status, got %s", small.ProductStatus)
	}

	large := repo.items[1]
	if large.ProductSlug != "classic-tee" || large.Title != "Large" || large.CompareAtPrice != nil {
		t.Fatalf("expected continuation row to inherit product: %+v", large)
	}
	if large.Price.String() != "19.99" {
		t.Fatalf("expected dollar sign stripped, got %s", large.Price)
	}

	mug := repo.items[2]
	if mug.Title != "Default" || mug.ProductStatus != domain.ProductStatusDraft || mug.Price.String() != "12.5" {
		t.Fatalf("unexpected mug variant: %+v", mug)
	}
}

func TestCSVImporter_RejectsBadRows(t *testing.T) {
	cases := map[string]string{
		"negative inventory": "product_slug,sku,price,inventory\ntee,TEE-1,10.00,-1",
		"bad price":          "product_slug,sku,price\ntee,TEE-1,ten",
		"missing price":      "product_slug,sku,price\ntee,TEE-1,",
		"orphan variant":     "product_slug,sku,price\n,TEE-1,10.00",
		"missing column":     "product_slug,sku\ntee,TEE-1",
	}
	for name, data := range cases {
		repo := &stubVariantRepo{}
		if _, err := NewCSVImporter(strings.NewReader(data), repo, nil).Run(context.Background()); err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if len(repo.items) != 0 {
			t.Fatalf("%s: expected no writes, got %d", name, len(repo.items))
		}
	}
}

func TestCSVImporter_DryRunDoesNotWrite(t *testing.T) {
	csvData := "product_slug,sku,price\ntee,TEE-1,10.00\n,TEE-2,11.00"
	repo := &stubVariantRepo{}

	count, err := NewCSVImporter(strings.NewReader(csvData), repo, nil).DryRun(true).Run(context.Background())
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if count != 2 || len(repo.items) != 0 {
		t.Fatalf("expected 2 validated rows and no writes, got count=%d writes=%d", count, len(repo.items))
	}
}
