package custody

import (
	"context"

	"github.com/custodia-labs/safevault-backend/internal/pkg/model"
	"github.com/custodia-labs/safevault-backend/internal/pkg/reject"
)

// All wallets live on one EVM-compatible chain family; the provider scopes a
// wallet to a single family at creation time.
const defaultChainType = "ethereum"

type custodyService struct {
	registry *Registry
}

func (s *custodyService) createWallet(ctx context.Context, ownerId string) (*model.CustodyRecord, *reject.ProblemWithTrace) {
	return s.registry.GetOrCreate(ctx, ownerId, defaultChainType)
}

func (s *custodyService) findWallet(ownerId string) (*model.CustodyRecord, *reject.ProblemWithTrace) {
	return s.registry.FindByOwner(ownerId)
}
