package debt

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

// RepositoryPort describes read and provisioning access used by Service.
type RepositoryPort interface {
	OpenAccount(ctx context.Context, party Party, partyID int64) (Account, error)
	GetAccount(ctx context.Context, party Party, partyID int64) (Account, error)
	ListTransactions(ctx context.Context, filter TxFilter) ([]Transaction, error)
	GetTransaction(ctx context.Context, id int64) (Transaction, error)
	BalanceDrift(ctx context.Context) ([]Drift, error)
}

// Service exposes debt account reads. Balance changes go through settlement.
type Service struct {
	repo RepositoryPort
}

// NewService constructs debt service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// OpenAccount provisions a zero-balance account; opening an existing one is a no-op.
func (s *Service) OpenAccount(ctx context.Context, party Party, partyID int64) (Account, error) {
	if !party.Valid() || partyID <= 0 {
		return Account{}, fmt.Errorf("%w: party and party id required", shared.ErrValidation)
	}
	return s.repo.OpenAccount(ctx, party, partyID)
}

// GetAccount returns the account for the party.
func (s *Service) GetAccount(ctx context.Context, party Party, partyID int64) (Account, error) {
	if !party.Valid() {
		return Account{}, fmt.Errorf("%w: unknown party %q", shared.ErrValidation, party)
	}
	return s.repo.GetAccount(ctx, party, partyID)
}

// ListTransactions returns the newest transactions of an account first.
func (s *Service) ListTransactions(ctx context.Context, filter TxFilter) ([]Transaction, error) {
	if !filter.Party.Valid() || filter.PartyID <= 0 {
		return nil, fmt.Errorf("%w: party and party id required", shared.ErrValidation)
	}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.repo.ListTransactions(ctx, filter)
}

// GetTransaction returns one debt transaction.
func (s *Service) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}
