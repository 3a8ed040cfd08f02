package cart

import (
	"context"
	"errors"

	"marketplace-api/internal/domain"
)

// maxQuantity bounds one cart line's quantity, including bumps from
// repeat-adds. Keeps line totals well inside int64.
const maxQuantity = 1000

type Service struct {
	repo     cartRepo
	products productResolver
}

type cartRepo interface {
	GetOrCreate(ctx context.Context, buyerID int64) (*domain.Cart, error)
	GetByBuyer(ctx context.Context, buyerID int64) (*domain.Cart, error)
	AddLine(ctx context.Context, cartID int64, ref domain.ProductRef, quantity int) error
	RemoveLine(ctx context.Context, cartID, lineID int64) error
	Clear(ctx context.Context, cartID int64) error
}

type productResolver interface {
	Resolve(ctx context.Context, ref domain.ProductRef) (*domain.Product, error)
}

func New(repo cartRepo, products productResolver) *Service {
	return &Service{repo: repo, products: products}
}

// Add puts quantity of a product into the buyer's cart, creating the cart
// on first use. Re-adding an existing product bumps the line quantity.
func (s *Service) Add(ctx context.Context, buyerID int64, ref domain.ProductRef, quantity int) (*domain.Cart, error) {
	if quantity < 1 || quantity > maxQuantity {
		return nil, domain.Validationf("quantity must be between 1 and %d, got %d", maxQuantity, quantity)
	}
	product, err := s.products.Resolve(ctx, ref)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &domain.ProductUnavailableError{Ref: ref}
		}
		return nil, err
	}
	if !product.Active {
		return nil, &domain.ProductUnavailableError{Ref: ref}
	}
	if product.SellerID != 0 && product.SellerID == buyerID {
		return nil, &domain.SelfPurchaseError{BuyerID: buyerID, Ref: ref}
	}

	cart, err := s.repo.GetOrCreate(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	full, err := s.repo.GetByBuyer(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	for _, l := range full.Lines {
		if l.Ref == ref && l.Quantity+quantity > maxQuantity {
			return nil, domain.Validationf("quantity for %s may not exceed %d", ref, maxQuantity)
		}
	}
	if err := s.repo.AddLine(ctx, cart.ID, ref, quantity); err != nil {
		return nil, err
	}
	return s.repo.GetByBuyer(ctx, buyerID)
}

// Remove deletes one line from the buyer's cart.
func (s *Service) Remove(ctx context.Context, buyerID, lineID int64) (*domain.Cart, error) {
	cart, err := s.repo.GetByBuyer(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.RemoveLine(ctx, cart.ID, lineID); err != nil {
		return nil, err
	}
	return s.repo.GetByBuyer(ctx, buyerID)
}

// Clear empties the buyer's cart.
func (s *Service) Clear(ctx context.Context, buyerID int64) error {
	cart, err := s.repo.GetByBuyer(ctx, buyerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	return s.repo.Clear(ctx, cart.ID)
}

// View returns the buyer's cart, creating it on first use.
func (s *Service) View(ctx context.Context, buyerID int64) (*domain.Cart, error) {
	if _, err := s.repo.GetOrCreate(ctx, buyerID); err != nil {
		return nil, err
	}
	return s.repo.GetByBuyer(ctx, buyerID)
}
