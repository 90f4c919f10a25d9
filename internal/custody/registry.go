package custody

import (
	"context"
	"net/http"
	"time"

	"github.com/custodia-labs/safevault-backend/internal/pkg/model"
	"github.com/custodia-labs/safevault-backend/internal/pkg/reject"
	"github.com/custodia-labs/safevault-backend/internal/pkg/utils"
	"github.com/rs/zerolog/log"
)

// Store is the durable backing of the registry. Lookups return (nil, nil)
// when no record exists.
type Store interface {
	FindByOwnerId(ownerId string) (*model.CustodyRecord, error)
	FindByCustodialAddress(address string) (*model.CustodyRecord, error)
	Insert(record *model.CustodyRecord) error
	// AttachContractAddress sets the contract address only when none is set
	// yet and reports whether the write happened.
	AttachContractAddress(ownerId string, contractAddress string) (bool, error)
}

// Registry owns the owner -> custodial wallet mapping. All mutations for a
// given owner run under a per-owner lock, so at most one provider Create is
// issued per owner and the set-once invariants hold under concurrent calls.
type Registry struct {
	store    Store
	provider Provider
	locks    *utils.KeyedMutex
}

func NewRegistry(store Store, provider Provider) *Registry {
	return &Registry{
		store:    store,
		provider: provider,
		locks:    utils.NewKeyedMutex(),
	}
}

// GetOrCreate returns the existing record for the owner or provisions a new
// custodial wallet. Idempotent: a second call returns the stored record
// without touching the provider.
func (r *Registry) GetOrCreate(ctx context.Context, ownerId string, chainType string) (*model.CustodyRecord, *reject.ProblemWithTrace) {
	record, err := r.store.FindByOwnerId(ownerId)
	if err != nil {
		return nil, &reject.ProblemWithTrace{Problem: reject.UnexpectedProblem(err), Cause: err}
	}
	if record != nil {
		return record, nil
	}

	r.locks.Lock(ownerId)
	defer r.locks.Unlock(ownerId)

	// Re-check under the lock: a racing call may have inserted meanwhile.
	record, err = r.store.FindByOwnerId(ownerId)
	if err != nil {
		return nil, &reject.ProblemWithTrace{Problem: reject.UnexpectedProblem(err), Cause: err}
	}
	if record != nil {
		return record, nil
	}

	wallet, problem := r.provider.Create(ctx, chainType)
	if problem != nil {
		return nil, problem
	}

	record = &model.CustodyRecord{
		OwnerId:           ownerId,
		CustodialWalletId: wallet.Id,
		CustodialAddress:  wallet.Address,
		ChainType:         wallet.ChainType,
		CreatedAt:         time.UnixMilli(wallet.CreatedAt),
	}

	if err := r.store.Insert(record); err != nil {
		return nil, &reject.ProblemWithTrace{Problem: reject.UnexpectedProblem(err), Cause: err}
	}

	log.Info().
		Str("ownerId", ownerId).
		Str("custodialAddress", record.CustodialAddress).
		Msg("Custody record created")

	return record, nil
}

func (r *Registry) FindByOwner(ownerId string) (*model.CustodyRecord, *reject.ProblemWithTrace) {
	record, err := r.store.FindByOwnerId(ownerId)
	if err != nil {
		return nil, &reject.ProblemWithTrace{Problem: reject.UnexpectedProblem(err), Cause: err}
	}
	if record == nil {
		return nil, notFound(ownerId)
	}
	return record, nil
}

// FindByCustodialAddress resolves an owner from the custodial wallet address
// through the store's secondary index.
func (r *Registry) FindByCustodialAddress(address string) (*model.CustodyRecord, *reject.ProblemWithTrace) {
	record, err := r.store.FindByCustodialAddress(address)
	if err != nil {
		return nil, &reject.ProblemWithTrace{Problem: reject.UnexpectedProblem(err), Cause: err}
	}
	if record == nil {
		return nil, notFound(address)
	}
	return record, nil
}

// AttachContractAddress records the deployed contract exactly once. The first
// successful attach wins; later calls get AlreadyDeployed with the stored value.
func (r *Registry) AttachContractAddress(ownerId string, contractAddress string) *reject.ProblemWithTrace {
	r.locks.Lock(ownerId)
	defer r.locks.Unlock(ownerId)

	attached, err := r.store.AttachContractAddress(ownerId, contractAddress)
	if err != nil {
		return &reject.ProblemWithTrace{Problem: reject.UnexpectedProblem(err), Cause: err}
	}
	if !attached {
		existing := ""
		if record, _ := r.store.FindByOwnerId(ownerId); record != nil && record.ContractAddress != nil {
			existing = *record.ContractAddress
		}
		return &reject.ProblemWithTrace{
			Problem: reject.AlreadyDeployedProblem(existing),
			Cause:   nil,
		}
	}

	return nil
}

func notFound(ref string) *reject.ProblemWithTrace {
	return &reject.ProblemWithTrace{
		Problem: reject.NewProblem().
			WithTitle("No custody record").
			WithStatus(http.StatusNotFound).
			WithCode(reject.CodeNotFound).
			WithParam("ref", ref).
			Build(),
	}
}
