package status

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/custodia-labs/safevault-backend/internal/chain"
	"github.com/custodia-labs/safevault-backend/internal/pkg/reject"
)

// BalanceReport carries both representations of a token balance: the exact
// smallest-unit amount as a string and the human decimal amount.
type BalanceReport struct {
	Safe               string  `json:"safe"`
	DecimalAmount      float64 `json:"decimalAmount"`
	SmallestUnitAmount string  `json:"smallestUnitAmount"`
}

type StatusReport struct {
	Safe     string `json:"safe"`
	Deployed bool   `json:"deployed"`
}

// Service answers balance and deployment-status queries for a deployed Safe.
// Every call re-reads the chain; on-chain bytecode is authoritative over any
// local deployment bookkeeping.
type Service struct {
	reader        chain.Reader
	tokenAddress  common.Address
	tokenDecimals int
}

func NewService(reader chain.Reader, tokenAddress common.Address, tokenDecimals int) *Service {
	return &Service{
		reader:        reader,
		tokenAddress:  tokenAddress,
		tokenDecimals: tokenDecimals,
	}
}

func (s *Service) Balance(ctx context.Context, safeAddress common.Address) (*BalanceReport, *reject.ProblemWithTrace) {
	raw, problem := s.reader.TokenBalance(ctx, s.tokenAddress, safeAddress)
	if problem != nil {
		return nil, problem
	}

	return &BalanceReport{
		Safe:               safeAddress.Hex(),
		DecimalAmount:      toDecimal(raw, s.tokenDecimals),
		SmallestUnitAmount: raw.String(),
	}, nil
}

func (s *Service) DeploymentStatus(ctx context.Context, safeAddress common.Address) (*StatusReport, *reject.ProblemWithTrace) {
	deployed, problem := s.reader.HasDeployedCode(ctx, safeAddress)
	if problem != nil {
		return nil, problem
	}

	return &StatusReport{
		Safe:     safeAddress.Hex(),
		Deployed: deployed,
	}, nil
}

func toDecimal(raw *big.Int, decimals int) float64 {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	value, _ := new(big.Float).Quo(
		new(big.Float).SetInt(raw),
		new(big.Float).SetInt(scale),
	).Float64()
	return value
}
