package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	cartrepo "storefront/internal/repository/cart"
)

type stubRepo struct {
	carts      map[string]*domain.Cart
	byOwner    map[domain.CartOwner]string
	addErr     error
	setErr     error
	lastAdd    cartrepo.MergeLine
	lastSet    [2]any
	merges     []cartrepo.MergePlan
	purged     int64
	lineLoads  int
	getOrMakes int
}

func newStubRepo() *stubRepo {
	return &stubRepo{carts: map[string]*domain.Cart{}, byOwner: map[domain.CartOwner]string{}}
}

func (s *stubRepo) put(owner domain.CartOwner, c *domain.Cart) {
	if owner.Anonymous() {
		c.SessionID = &owner.SessionID
	} else {
		c.CustomerID = &owner.CustomerID
	}
	s.carts[c.ID] = c
	s.byOwner[owner] = c.ID
}

func (s *stubRepo) GetOrCreate(_ context.Context, owner domain.CartOwner) (*domain.Cart, error) {
	s.getOrMakes++
	if id, ok := s.byOwner[owner]; ok {
		return s.carts[id], nil
	}
	c := &domain.Cart{ID: "cart-" + owner.CustomerID + owner.SessionID}
	s.put(owner, c)
	return c, nil
}

func (s *stubRepo) FindByOwner(_ context.Context, owner domain.CartOwner) (*domain.Cart, error) {
	id, ok := s.byOwner[owner]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s.carts[id], nil
}

func (s *stubRepo) GetByID(_ context.Context, id string) (*domain.Cart, error) {
	c, ok := s.carts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

func (s *stubRepo) LinesForVariants(_ context.Context, cartID string, variantIDs []string) (map[string]domain.CartLine, error) {
	s.lineLoads++
	out := map[string]domain.CartLine{}
	c := s.carts[cartID]
	for _, id := range variantIDs {
		if l, ok := c.Line(id); ok {
			out[id] = l
		}
	}
	return out, nil
}

func (s *stubRepo) AddItem(_ context.Context, cartID, variantID string, quantity int) error {
	s.lastAdd = cartrepo.MergeLine{VariantID: variantID, Quantity: quantity}
	return s.addErr
}

func (s *stubRepo) SetItemQuantity(_ context.Context, cartID, itemID string, quantity int) error {
	s.lastSet = [2]any{itemID, quantity}
	return s.setErr
}

func (s *stubRepo) RemoveItem(_ context.Context, _, _ string) error { return nil }

func (s *stubRepo) Clear(_ context.Context, cartID string) error {
	s.carts[cartID].Lines = nil
	return nil
}

// ApplyMerge mimics the storage semantics: quantities land in the target
// and the source cart disappears.
func (s *stubRepo) ApplyMerge(_ context.Context, plan cartrepo.MergePlan) error {
	s.merges = append(s.merges, plan)
	target := s.carts[plan.TargetCartID]
	for _, u := range plan.Updates {
		for i := range target.Lines {
			if target.Lines[i].VariantID == u.VariantID {
				target.Lines[i].Quantity = u.Quantity
			}
		}
	}
	for _, in := range plan.Inserts {
		target.Lines = append(target.Lines, domain.CartLine{VariantID: in.VariantID, Quantity: in.Quantity})
	}
	delete(s.carts, plan.SourceCartID)
	for owner, id := range s.byOwner {
		if id == plan.SourceCartID {
			delete(s.byOwner, owner)
		}
	}
	return nil
}

func (s *stubRepo) DeleteExpired(context.Context) (int64, error) { return s.purged, nil }

type stubVariants struct {
	variants map[string]domain.Variant
	err      error
	many     int
}

func (s *stubVariants) Get(_ context.Context, id string) (*domain.Variant, error) {
	if s.err != nil {
		return nil, s.err
	}
	v, ok := s.variants[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &v, nil
}

func (s *stubVariants) GetMany(_ context.Context, ids []string) (map[string]domain.Variant, error) {
	s.many++
	out := map[string]domain.Variant{}
	for _, id := range ids {
		if v, ok := s.variants[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func liveVariant(id string, price string, inventory int) domain.Variant {
	return domain.Variant{
		ID:                id,
		ProductTitle:      "Product " + id,
		ProductStatus:     domain.ProductStatusActive,
		Title:             "Default",
		SKU:               "SKU-" + id,
		Price:             decimal.RequireFromString(price),
		InventoryQuantity: inventory,
	}
}

func line(variantID string, qty int, v domain.Variant) domain.CartLine {
	return domain.CartLine{ID: "item-" + variantID, VariantID: variantID, Quantity: qty, Variant: v}
}

func TestAddItemValidatesInput(t *testing.T) {
	repo := newStubRepo()
	repo.put(domain.SessionOwner("s1"), &domain.Cart{ID: "c1"})
	archived := liveVariant("old", "5.00", 10)
	archived.ProductStatus = domain.ProductStatusArchived
	deleted := liveVariant("gone", "5.00", 10)
	deleted.ProductDeleted = true
	variants := &stubVariants{variants: map[string]domain.Variant{
		"a": liveVariant("a", "49.99", 5), "old": archived, "gone": deleted,
	}}
	svc := New(repo, variants, nil)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "c1", "a", 0)
	require.ErrorIs(t, err, domain.ErrInvalidQuantity)
	for _, id := range []string{"missing", "old", "gone", " "} {
		_, err = svc.AddItem(ctx, "c1", id, 1)
		require.ErrorIs(t, err, domain.ErrUnavailableVariant, id)
	}
	assert.Empty(t, repo.lastAdd.VariantID, "no write for rejected input")

	view, err := svc.AddItem(ctx, "c1", "a", 2)
	require.NoError(t, err)
	assert.Equal(t, cartrepo.MergeLine{VariantID: "a", Quantity: 2}, repo.lastAdd)
	assert.Equal(t, "c1", view.ID)
}

func TestAddItemSurfacesInventoryFailure(t *testing.T) {
	repo := newStubRepo()
	repo.put(domain.SessionOwner("s1"), &domain.Cart{ID: "c1"})
	repo.addErr = domain.InsufficientInventory("a", 1)
	svc := New(repo, &stubVariants{variants: map[string]domain.Variant{"a": liveVariant("a", "1.00", 1)}}, nil)

	_, err := svc.AddItem(context.Background(), "c1", "a", 3)
	require.ErrorIs(t, err, domain.ErrInsufficientInventory)
	var derr *domain.Error
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, 1, *derr.Available)
}

func TestUpdateItemQuantity(t *testing.T) {
	repo := newStubRepo()
	repo.put(domain.SessionOwner("s1"), &domain.Cart{ID: "c1"})
	svc := New(repo, &stubVariants{}, nil)
	ctx := context.Background()

	_, err := svc.UpdateItemQuantity(ctx, "c1", "item", -1)
	require.ErrorIs(t, err, domain.ErrInvalidQuantity)
	_, err = svc.UpdateItemQuantity(ctx, "c1", "", 1)
	require.ErrorIs(t, err, domain.ErrCartItemNotFound)

	_, err = svc.UpdateItemQuantity(ctx, "c1", "item", 0)
	require.NoError(t, err)
	assert.Equal(t, [2]any{"item", 0}, repo.lastSet)

	repo.setErr = domain.ErrCartItemNotFound
	_, err = svc.UpdateItemQuantity(ctx, "c1", "other", 2)
	require.ErrorIs(t, err, domain.ErrCartItemNotFound)
}

func TestViewMapsMissingCart(t *testing.T) {
	svc := New(newStubRepo(), &stubVariants{}, nil)
	_, err := svc.View(context.Background(), "nope")
	require.ErrorIs(t, err, domain.ErrCartNotFound)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestGetOrCreateRejectsAmbiguousIdentity(t *testing.T) {
	svc := New(newStubRepo(), &stubVariants{}, nil)
	_, err := svc.GetOrCreate(context.Background(), domain.CartOwner{CustomerID: "c", SessionID: "s"})
	require.ErrorIs(t, err, domain.ErrInvalidIdentity)
	_, err = svc.GetOrCreate(context.Background(), domain.CartOwner{})
	require.ErrorIs(t, err, domain.ErrInvalidIdentity)
}

func TestMergeCapsAtInventory(t *testing.T) {
	a := liveVariant("a", "10.00", 5)
	repo := newStubRepo()
	repo.put(domain.SessionOwner("guest"), &domain.Cart{ID: "g", Lines: []domain.CartLine{line("a", 3, a)}})
	repo.put(domain.CustomerOwner("cust"), &domain.Cart{ID: "c", Lines: []domain.CartLine{line("a", 4, a)}})
	variants := &stubVariants{variants: map[string]domain.Variant{"a": a}}
	svc := New(repo, variants, nil)

	view, err := svc.Merge(context.Background(), "guest", "cust")
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 5, view.Items[0].Quantity)
	assert.Equal(t, 1, repo.lineLoads, "existing lines are loaded in one batch")
	assert.Equal(t, 1, variants.many, "variants are loaded in one batch")

	_, err = repo.FindByOwner(context.Background(), domain.SessionOwner("guest"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMergeIsIdempotent(t *testing.T) {
	a := liveVariant("a", "10.00", 5)
	repo := newStubRepo()
	repo.put(domain.SessionOwner("guest"), &domain.Cart{ID: "g", Lines: []domain.CartLine{line("a", 2, a)}})
	svc := New(repo, &stubVariants{variants: map[string]domain.Variant{"a": a}}, nil)
	ctx := context.Background()

	first, err := svc.Merge(ctx, "guest", "cust")
	require.NoError(t, err)
	second, err := svc.Merge(ctx, "guest", "cust")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.ItemCount, second.ItemCount)
	assert.Equal(t, 2, second.ItemCount)
	assert.Len(t, repo.merges, 1, "second merge must not write")
}

func TestMergeWithoutGuestCart(t *testing.T) {
	repo := newStubRepo()
	svc := New(repo, &stubVariants{}, nil)

	view, err := svc.Merge(context.Background(), "never-seen", "cust")
	require.NoError(t, err)
	assert.Equal(t, "cart-cust", view.ID)
	assert.Empty(t, repo.merges)
}

func TestPlanMerge(t *testing.T) {
	live := liveVariant("live", "1.00", 10)
	soldOut := liveVariant("soldout", "1.00", 0)
	archived := liveVariant("archived", "1.00", 10)
	archived.ProductStatus = domain.ProductStatusArchived
	same := liveVariant("same", "1.00", 2)
	fresh := liveVariant("fresh", "1.00", 1)

	guest := &domain.Cart{ID: "g", Lines: []domain.CartLine{
		line("live", 3, live),
		line("soldout", 1, soldOut),
		line("archived", 1, archived),
		line("missing", 1, domain.Variant{}),
		line("same", 5, same),
		line("fresh", 4, fresh),
	}}
	existing := map[string]domain.CartLine{
		"live": {VariantID: "live", Quantity: 2},
		"same": {VariantID: "same", Quantity: 2},
	}
	variants := map[string]domain.Variant{
		"live": live, "soldout": soldOut, "archived": archived, "same": same, "fresh": fresh,
	}

	plan := planMerge(guest, "t", existing, variants)

	assert.Equal(t, "t", plan.TargetCartID)
	assert.Equal(t, "g", plan.SourceCartID)
	assert.Equal(t, []cartrepo.MergeLine{{VariantID: "live", Quantity: 5}}, plan.Updates)
	assert.Equal(t, []cartrepo.MergeLine{{VariantID: "fresh", Quantity: 1}}, plan.Inserts)
}

func TestNewViewTotals(t *testing.T) {
	v := liveVariant("a", "49.99", 5)
	view := NewView(domain.Cart{ID: "c", Lines: []domain.CartLine{line("a", 2, v)}})

	assert.Equal(t, 2, view.ItemCount)
	assert.Equal(t, "99.98", view.Subtotal.StringFixed(2))
	require.Len(t, view.Items, 1)
	assert.Equal(t, "99.98", view.Items[0].LineTotal.StringFixed(2))
	assert.True(t, view.Items[0].Product.Available)
}

func TestPurgeExpired(t *testing.T) {
	repo := newStubRepo()
	repo.purged = 3
	n, err := New(repo, &stubVariants{}, nil).PurgeExpired(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}
