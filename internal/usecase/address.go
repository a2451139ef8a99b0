package usecase

import (
	"context"
	"fmt"

	"github.com/azizikri/storefront/internal/domain"
	"github.com/azizikri/storefront/internal/repository"
)

type AddressService struct {
	store repository.Store
}

func NewAddressService(store repository.Store) *AddressService {
	return &AddressService{store: store}
}

func (s *AddressService) ListAddresses(ctx context.Context, userID int64) ([]domain.Address, error) {
	return s.store.ListAddresses(ctx, userID)
}

func (s *AddressService) GetAddress(ctx context.Context, id, userID int64) (*domain.Address, error) {
	a, err := s.store.GetAddress(ctx, id, userID)
	if err != nil {
		return nil, notFound(err, "address")
	}
	return &a, nil
}

// CreateAddress saves a new address. The first address a user adds becomes
// the default. A new default demotes the previous one before it is written
// because the schema allows only one default per user.
func (s *AddressService) CreateAddress(ctx context.Context, a domain.Address) (*domain.Address, error) {
	var created domain.Address
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		existing, err := q.ListAddresses(ctx, a.UserID)
		if err != nil {
			return err
		}
		if len(existing) == 0 {
			a.IsDefault = true
		}
		if a.IsDefault {
			if err := q.ClearDefaultAddress(ctx, a.UserID, 0); err != nil {
				return err
			}
		}

		if created, err = q.CreateAddress(ctx, a); err != nil {
			return fmt.Errorf("create address: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *AddressService) UpdateAddress(ctx context.Context, a domain.Address) (*domain.Address, error) {
	var updated domain.Address
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		if _, err := q.GetAddress(ctx, a.ID, a.UserID); err != nil {
			return notFound(err, "address")
		}
		if a.IsDefault {
			if err := q.ClearDefaultAddress(ctx, a.UserID, a.ID); err != nil {
				return err
			}
		}
		var err error
		if updated, err = q.UpdateAddress(ctx, a); err != nil {
			return fmt.Errorf("update address: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *AddressService) DeleteAddress(ctx context.Context, id, userID int64) error {
	rows, err := s.store.DeleteAddress(ctx, id, userID)
	if err != nil {
		return fmt.Errorf("delete address: %w", err)
	}
	if rows == 0 {
		return domain.Errorf(domain.ErrNotFound, "address not found")
	}
	return nil
}
