package deployment

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/custodia-labs/safevault-backend/internal/custody"
	"github.com/custodia-labs/safevault-backend/internal/pkg/model"
	"github.com/custodia-labs/safevault-backend/internal/pkg/reject"
	"github.com/custodia-labs/safevault-backend/internal/pkg/utils"
	"github.com/custodia-labs/safevault-backend/internal/relay"
	"github.com/rs/zerolog/log"
)

// Result is what a caller gets back from a confirmed deployment.
type Result struct {
	Owner           string `json:"owner"`
	ContractAddress string `json:"contractAddress"`
	TransactionHash string `json:"transactionHash"`
}

// Orchestrator drives one owner's deployment through
// Requested -> KeyExported -> RelaySubmitted -> {Confirmed | Failed | TimedOut}.
// Attempts for distinct owners run concurrently; per owner everything is
// serialized and a second concurrent request is rejected with Conflict.
// No step is retried internally; retry is the caller's decision and is safe
// because re-invocation is guarded by the AlreadyDeployed precondition.
type Orchestrator struct {
	registry     *custody.Registry
	provider     custody.Provider
	relay        relay.Relay
	attempts     AttemptStore
	locks        *utils.KeyedMutex
	bridge       *eventBridge
	awaitTimeout time.Duration
}

func NewOrchestrator(
	registry *custody.Registry,
	provider custody.Provider,
	relayClient relay.Relay,
	attempts AttemptStore,
	awaitTimeout time.Duration,
) *Orchestrator {
	return &Orchestrator{
		registry:     registry,
		provider:     provider,
		relay:        relayClient,
		attempts:     attempts,
		locks:        utils.NewKeyedMutex(),
		bridge:       newEventBridge(),
		awaitTimeout: awaitTimeout,
	}
}

// Deploy accepts either an owner identifier or the custodial wallet address.
func (o *Orchestrator) Deploy(ctx context.Context, ownerRef string) (*Result, *reject.ProblemWithTrace) {
	record, problem := o.resolveRecord(ownerRef)
	if problem != nil {
		return nil, problem
	}

	ownerId := record.OwnerId

	if !o.locks.TryLock(ownerId) {
		return nil, conflict(ownerId)
	}
	defer o.locks.Unlock(ownerId)

	if record.ContractAddress != nil {
		return nil, &reject.ProblemWithTrace{
			Problem: reject.AlreadyDeployedProblem(*record.ContractAddress),
			Cause:   fmt.Errorf("owner %s already has contract %s", ownerId, *record.ContractAddress),
		}
	}

	active, err := o.attempts.FindActiveByOwner(ownerId)
	if err != nil {
		return nil, &reject.ProblemWithTrace{Problem: reject.UnexpectedProblem(err), Cause: err}
	}
	if active != nil {
		if time.Since(active.StartedAt) < o.staleAfter() {
			return nil, conflict(ownerId)
		}
		// Leftover of a crashed process. If the relay submission went out
		// the outcome is unknown (TimedOut); before that point nothing was
		// submitted, so the attempt just failed.
		log.Warn().
			Str("ownerId", ownerId).
			Str("attemptId", active.Id).
			Str("state", active.State).
			Msg("Closing stale deployment attempt")
		next := StateFailed
		active.FailureDetail = "attempt abandoned before relay submission"
		active.FailureCode = reject.CodeUnexpected
		if State(active.State) == StateRelaySubmitted {
			next = StateTimedOut
			active.FailureDetail = "relay outcome never observed"
			active.FailureCode = reject.CodeTimedOut
		}
		if problem := o.transition(active, next); problem != nil {
			return nil, problem
		}
	}

	attempt := &model.DeploymentAttempt{
		Id:        uuid.New().String(),
		OwnerId:   ownerId,
		State:     string(StateRequested),
		StartedAt: time.Now(),
	}
	if err := o.attempts.Insert(attempt); err != nil {
		return nil, &reject.ProblemWithTrace{Problem: reject.UnexpectedProblem(err), Cause: err}
	}
	o.bridge.attemptChanged(attempt)

	// Key export failures are not transient-looking from this layer: fail, no retry.
	keyMaterial, problem := o.provider.ExportSigningKey(ctx, record.CustodialWalletId)
	if problem != nil {
		return nil, o.fail(attempt, problem)
	}

	signer, err := relay.NewSigningContext(keyMaterial)
	keyMaterial = ""
	if err != nil {
		problem := &reject.ProblemWithTrace{
			Problem: reject.ProviderRejectedProblem("provider returned unusable key material"),
			Cause:   err,
		}
		return nil, o.fail(attempt, problem)
	}

	if problem := o.transition(attempt, StateKeyExported); problem != nil {
		return nil, problem
	}

	handle, problem := o.relay.SubmitDeployment(ctx, signer)
	if problem != nil {
		return nil, o.fail(attempt, problem)
	}
	attempt.RelayHandle = handle

	if problem := o.transition(attempt, StateRelaySubmitted); problem != nil {
		return nil, problem
	}

	outcome, problem := o.relay.AwaitOutcome(ctx, handle, o.awaitTimeout)
	if problem != nil {
		if problem.Problem.Code == reject.CodeTimedOut {
			// Unknown outcome: no registry write, owner can reconcile via
			// the status endpoint and retry.
			attempt.FailureCode = reject.CodeTimedOut
			attempt.FailureDetail = problem.Problem.Detail
			o.transition(attempt, StateTimedOut)
			return nil, problem
		}
		return nil, o.fail(attempt, problem)
	}

	contractAddress := outcome.ContractAddress
	if attachProblem := o.registry.AttachContractAddress(ownerId, contractAddress); attachProblem != nil {
		if attachProblem.Problem.Code != reject.CodeAlreadyDeployed {
			return nil, o.fail(attempt, attachProblem)
		}
		// A racing attempt attached first; its address is the record of
		// truth and both callers must see the same one.
		if existing, _ := o.registry.FindByOwner(ownerId); existing != nil && existing.ContractAddress != nil {
			contractAddress = *existing.ContractAddress
		}
	}

	attempt.ContractAddress = contractAddress
	attempt.TransactionHash = outcome.TransactionHash
	if problem := o.transition(attempt, StateConfirmed); problem != nil {
		return nil, problem
	}

	log.Info().
		Str("ownerId", ownerId).
		Str("contractAddress", contractAddress).
		Str("transactionHash", outcome.TransactionHash).
		Msg("Safe deployed")

	return &Result{
		Owner:           record.CustodialAddress,
		ContractAddress: contractAddress,
		TransactionHash: outcome.TransactionHash,
	}, nil
}

func (o *Orchestrator) resolveRecord(ownerRef string) (*model.CustodyRecord, *reject.ProblemWithTrace) {
	if common.IsHexAddress(ownerRef) {
		return o.registry.FindByCustodialAddress(ownerRef)
	}
	return o.registry.FindByOwner(ownerRef)
}

func (o *Orchestrator) transition(attempt *model.DeploymentAttempt, next State) *reject.ProblemWithTrace {
	current := State(attempt.State)
	if !current.CanTransition(next) {
		err := fmt.Errorf("illegal transition %s -> %s for attempt %s", current, next, attempt.Id)
		return &reject.ProblemWithTrace{Problem: reject.UnexpectedProblem(err), Cause: err}
	}

	attempt.State = string(next)
	if next.Terminal() {
		now := time.Now()
		attempt.FinishedAt = &now
	}

	if err := o.attempts.Update(attempt); err != nil {
		return &reject.ProblemWithTrace{Problem: reject.UnexpectedProblem(err), Cause: err}
	}

	o.bridge.attemptChanged(attempt)
	return nil
}

// fail moves the attempt to Failed carrying the cause and hands the original
// problem back so no error is ever swallowed.
func (o *Orchestrator) fail(attempt *model.DeploymentAttempt, problem *reject.ProblemWithTrace) *reject.ProblemWithTrace {
	attempt.FailureCode = problem.Problem.Code
	attempt.FailureDetail = problem.Problem.Detail
	if attempt.FailureDetail == "" {
		attempt.FailureDetail = problem.Problem.Title
	}

	if transitionProblem := o.transition(attempt, StateFailed); transitionProblem != nil {
		log.Error().
			Err(transitionProblem.Cause).
			Str("attemptId", attempt.Id).
			Msg("Cannot record attempt failure")
	}

	return problem
}

func (o *Orchestrator) staleAfter() time.Duration {
	return 2 * o.awaitTimeout
}

func conflict(ownerId string) *reject.ProblemWithTrace {
	return &reject.ProblemWithTrace{
		Problem: reject.DeploymentConflictProblem(ownerId),
		Cause:   fmt.Errorf("deployment already in progress for owner %s", ownerId),
	}
}
