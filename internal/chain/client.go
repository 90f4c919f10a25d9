package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/custodia-labs/safevault-backend/internal/pkg/reject"
	"github.com/spf13/viper"
)

// Reader is the read-only view of the chain the rest of the system depends
// on: token balances and bytecode presence, nothing else.
type Reader interface {
	TokenBalance(ctx context.Context, tokenAddress common.Address, holderAddress common.Address) (*big.Int, *reject.ProblemWithTrace)
	HasDeployedCode(ctx context.Context, address common.Address) (bool, *reject.ProblemWithTrace)
}

type Client struct {
	eth *ethclient.Client
}

func NewClient(ctx context.Context) (*Client, error) {
	rpcUrl := viper.Get("RPC_URL").(string)

	eth, err := ethclient.DialContext(ctx, rpcUrl)
	if err != nil {
		return nil, err
	}

	return &Client{eth: eth}, nil
}

func (c *Client) Close() {
	c.eth.Close()
}

// TokenBalance returns the holder's fungible token balance in the token's
// smallest unit. Latest block, no caching.
func (c *Client) TokenBalance(ctx context.Context, tokenAddress common.Address, holderAddress common.Address) (*big.Int, *reject.ProblemWithTrace) {
	data, err := erc20ABI.Pack("balanceOf", holderAddress)
	if err != nil {
		return nil, &reject.ProblemWithTrace{Problem: reject.UnexpectedProblem(err), Cause: err}
	}

	output, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &tokenAddress, Data: data}, nil)
	if err != nil {
		return nil, &reject.ProblemWithTrace{Problem: reject.RpcUnavailableProblem(err), Cause: err}
	}

	results, err := erc20ABI.Unpack("balanceOf", output)
	if err != nil {
		return nil, &reject.ProblemWithTrace{Problem: reject.UnexpectedProblem(err), Cause: err}
	}

	balance := *abi.ConvertType(results[0], new(big.Int)).(*big.Int)
	return &balance, nil
}

// HasDeployedCode reports whether the address currently carries contract
// bytecode. This is the reconciliation path for deployments whose relay
// outcome was never observed.
func (c *Client) HasDeployedCode(ctx context.Context, address common.Address) (bool, *reject.ProblemWithTrace) {
	code, err := c.eth.CodeAt(ctx, address, nil)
	if err != nil {
		return false, &reject.ProblemWithTrace{Problem: reject.RpcUnavailableProblem(err), Cause: err}
	}

	return len(code) > 0, nil
}
