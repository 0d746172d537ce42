package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mehtaarjun/shopsphere-backend/pkg/db/models"
	"github.com/mehtaarjun/shopsphere-backend/pkg/enums"
	pkgerrors "github.com/mehtaarjun/shopsphere-backend/pkg/errors"
)

// maxItemQuantity caps any single cart line.
const maxItemQuantity = 50

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

// Service exposes cart operations.
type Service interface {
	AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*View, error)
	GetCart(ctx context.Context, userID uuid.UUID) (*View, error)
	UpdateItemQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*View, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*View, error)
	Clear(ctx context.Context, userID uuid.UUID) (*View, error)
}

type service struct {
	repo     CartRepository
	tx       txRunner
	products productLoader
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, tx txRunner, products productLoader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	return &service{repo: repo, tx: tx, products: products}, nil
}

// AddItem validates the product and merges the line into the user's cart.
// Lines are identified by (product, size, color); adding an existing line
// increases its quantity.
func (s *service) AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if input.Quantity > maxItemQuantity {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "quantity exceeds the per-item limit of 50")
	}

	product, err := s.loadProduct(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.InStock {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "product is out of stock")
	}
	if err := validateSelection(product, input.SelectedSize, input.SelectedColor); err != nil {
		return nil, err
	}

	var saved *models.Cart
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		cart, err := s.loadOrCreateCart(ctx, txRepo, userID)
		if err != nil {
			return err
		}

		merged := false
		for i := range cart.Items {
			if cart.Items[i].MatchesSelection(input.ProductID, input.SelectedSize, input.SelectedColor) {
				next := cart.Items[i].Quantity + input.Quantity
				if next > maxItemQuantity {
					return pkgerrors.New(pkgerrors.CodeConflict, "quantity exceeds the per-item limit of 50")
				}
				cart.Items[i].Quantity = next
				cart.Items[i].Price = product.Price
				cart.Items[i].Currency = product.Currency
				merged = true
				break
			}
		}
		if !merged {
			cart.Items = append(cart.Items, models.CartItem{
				CartID:        cart.ID,
				ProductID:     product.ID,
				Quantity:      input.Quantity,
				Price:         product.Price,
				Currency:      product.Currency,
				SelectedSize:  input.SelectedSize,
				SelectedColor: input.SelectedColor,
			})
		}

		saved = cart
		return s.persist(ctx, txRepo, cart)
	}); err != nil {
		return nil, err
	}

	return s.buildViewWithNames(ctx, saved)
}

// GetCart returns the user's cart, lazily creating an empty one and pruning
// lines whose products have disappeared or gone out of stock. Surviving lines
// get their price snapshots refreshed.
func (s *service) GetCart(ctx context.Context, userID uuid.UUID) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	var saved *models.Cart
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		cart, err := s.loadOrCreateCart(ctx, txRepo, userID)
		if err != nil {
			return err
		}

		changed, err := s.repairItems(ctx, cart)
		if err != nil {
			return err
		}

		saved = cart
		if changed {
			return s.persist(ctx, txRepo, cart)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return s.buildViewWithNames(ctx, saved)
}

// UpdateItemQuantity sets the quantity for one cart line. A quantity of zero
// removes the line.
func (s *service) UpdateItemQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}
	if quantity > maxItemQuantity {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "quantity exceeds the per-item limit of 50")
	}

	return s.mutateItem(ctx, userID, itemID, func(cart *models.Cart, idx int) {
		if quantity == 0 {
			cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
			return
		}
		cart.Items[idx].Quantity = quantity
	})
}

// RemoveItem deletes one line from the cart.
func (s *service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	return s.mutateItem(ctx, userID, itemID, func(cart *models.Cart, idx int) {
		cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
	})
}

// Clear empties the cart. The cart row itself survives.
func (s *service) Clear(ctx context.Context, userID uuid.UUID) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	var saved *models.Cart
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		cart, err := s.loadOrCreateCart(ctx, txRepo, userID)
		if err != nil {
			return err
		}
		cart.Items = nil
		saved = cart
		return s.persist(ctx, txRepo, cart)
	}); err != nil {
		return nil, err
	}

	return s.buildViewWithNames(ctx, saved)
}

func (s *service) mutateItem(ctx context.Context, userID, itemID uuid.UUID, apply func(cart *models.Cart, idx int)) (*View, error) {
	var saved *models.Cart
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		cart, err := txRepo.FindByUserID(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}

		idx := -1
		for i := range cart.Items {
			if cart.Items[i].ID == itemID {
				idx = i
				break
			}
		}
		if idx == -1 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}

		apply(cart, idx)
		saved = cart
		return s.persist(ctx, txRepo, cart)
	}); err != nil {
		return nil, err
	}

	return s.buildViewWithNames(ctx, saved)
}

func (s *service) loadOrCreateCart(ctx context.Context, repo CartRepository, userID uuid.UUID) (*models.Cart, error) {
	cart, err := repo.FindByUserID(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	created, err := repo.Create(ctx, &models.Cart{UserID: userID, Currency: enums.CurrencyUSD})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return created, nil
}

// repairItems drops lines whose products are gone or out of stock and
// refreshes price snapshots. Returns whether anything changed.
func (s *service) repairItems(ctx context.Context, cart *models.Cart) (bool, error) {
	if len(cart.Items) == 0 {
		return false, nil
	}

	ids := make([]uuid.UUID, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart products")
	}
	byID := make(map[uuid.UUID]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	changed := false
	kept := cart.Items[:0]
	for _, item := range cart.Items {
		product, ok := byID[item.ProductID]
		if !ok || !product.InStock {
			changed = true
			continue
		}
		if !item.Price.Equal(product.Price) || item.Currency != product.Currency {
			item.Price = product.Price
			item.Currency = product.Currency
			changed = true
		}
		kept = append(kept, item)
	}
	cart.Items = kept
	return changed, nil
}

func (s *service) persist(ctx context.Context, repo CartRepository, cart *models.Cart) error {
	cart.RecomputeTotals()
	if len(cart.Items) > 0 {
		cart.Currency = cart.Items[0].Currency
	}
	if err := repo.ReplaceItems(ctx, cart.ID, cart.Items); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist cart items")
	}
	if err := repo.Update(ctx, cart); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist cart")
	}
	return nil
}

func (s *service) loadProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func (s *service) buildViewWithNames(ctx context.Context, cart *models.Cart) (*View, error) {
	names := map[uuid.UUID]string{}
	if len(cart.Items) > 0 {
		ids := make([]uuid.UUID, 0, len(cart.Items))
		for _, item := range cart.Items {
			ids = append(ids, item.ProductID)
		}
		products, err := s.products.FindByIDs(ctx, ids)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart products")
		}
		for _, product := range products {
			names[product.ID] = product.Name
		}
	}
	return buildView(cart, names), nil
}

func validateSelection(product *models.Product, size, color *string) error {
	if size != nil && len(product.AvailableSizes) > 0 && !product.AvailableSizes.Contains(*size) {
		return pkgerrors.New(pkgerrors.CodeValidation, "selected size is not available for this product")
	}
	if color != nil && len(product.AvailableColors) > 0 && !product.AvailableColors.Contains(*color) {
		return pkgerrors.New(pkgerrors.CodeValidation, "selected color is not available for this product")
	}
	return nil
}
