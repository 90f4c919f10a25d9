package status

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/custodia-labs/safevault-backend/internal/pkg/reject"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var (
	tokenAddress    = common.HexToAddress("0x2791bca1f2de4661ed88a30c99a7a9449aa84174")
	testSafeAddress = common.HexToAddress("0xdef0000000000000000000000000000000000002")
)

type stubReader struct {
	balance  *big.Int
	deployed bool
	problem  *reject.ProblemWithTrace

	balanceCalls int
	lastToken    common.Address
	lastHolder   common.Address
}

func (r *stubReader) TokenBalance(_ context.Context, tokenAddress common.Address, holderAddress common.Address) (*big.Int, *reject.ProblemWithTrace) {
	r.balanceCalls++
	r.lastToken = tokenAddress
	r.lastHolder = holderAddress
	if r.problem != nil {
		return nil, r.problem
	}
	return r.balance, nil
}

func (r *stubReader) HasDeployedCode(_ context.Context, _ common.Address) (bool, *reject.ProblemWithTrace) {
	if r.problem != nil {
		return false, r.problem
	}
	return r.deployed, nil
}

func TestBalanceConvertsSmallestUnits(t *testing.T) {
	reader := &stubReader{balance: big.NewInt(1_500_000)}
	service := NewService(reader, tokenAddress, 6)

	report, problem := service.Balance(context.Background(), testSafeAddress)
	require.Nil(t, problem)
	require.Equal(t, testSafeAddress.Hex(), report.Safe)
	require.Equal(t, 1.50, report.DecimalAmount)
	require.Equal(t, "1500000", report.SmallestUnitAmount)

	require.Equal(t, tokenAddress, reader.lastToken)
	require.Equal(t, testSafeAddress, reader.lastHolder)
}

func TestBalanceWholeAmount(t *testing.T) {
	reader := &stubReader{balance: big.NewInt(2_000_000)}
	service := NewService(reader, tokenAddress, 6)

	report, problem := service.Balance(context.Background(), testSafeAddress)
	require.Nil(t, problem)
	require.Equal(t, 2.00, report.DecimalAmount)
	require.Equal(t, "2000000", report.SmallestUnitAmount)
}

func TestBalanceZero(t *testing.T) {
	reader := &stubReader{balance: big.NewInt(0)}
	service := NewService(reader, tokenAddress, 6)

	report, problem := service.Balance(context.Background(), testSafeAddress)
	require.Nil(t, problem)
	require.Equal(t, 0.0, report.DecimalAmount)
	require.Equal(t, "0", report.SmallestUnitAmount)
}

func TestBalanceKeepsExactAmountBeyondFloatPrecision(t *testing.T) {
	raw, ok := new(big.Int).SetString("123456789012345678901234567890", 10)
	require.True(t, ok)

	reader := &stubReader{balance: raw}
	service := NewService(reader, tokenAddress, 6)

	report, problem := service.Balance(context.Background(), testSafeAddress)
	require.Nil(t, problem)
	// The decimal field is lossy for amounts this size; the string field is not.
	require.Equal(t, "123456789012345678901234567890", report.SmallestUnitAmount)
}

func TestBalanceRpcProblemPassesThrough(t *testing.T) {
	reader := &stubReader{
		problem: &reject.ProblemWithTrace{
			Problem: reject.RpcUnavailableProblem(errors.New("connection refused")),
		},
	}
	service := NewService(reader, tokenAddress, 6)

	_, problem := service.Balance(context.Background(), testSafeAddress)
	require.NotNil(t, problem)
	require.Equal(t, reject.CodeRpcUnavailable, problem.Problem.Code)
}

func TestDeploymentStatus(t *testing.T) {
	service := NewService(&stubReader{deployed: true}, tokenAddress, 6)

	report, problem := service.DeploymentStatus(context.Background(), testSafeAddress)
	require.Nil(t, problem)
	require.Equal(t, testSafeAddress.Hex(), report.Safe)
	require.True(t, report.Deployed)

	service = NewService(&stubReader{deployed: false}, tokenAddress, 6)

	report, problem = service.DeploymentStatus(context.Background(), testSafeAddress)
	require.Nil(t, problem)
	require.False(t, report.Deployed)
}
