package ports

import (
	"context"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/gamegate/core"
)

// Ledger is the boundary to the blockchain holding game contracts
type Ledger interface {
	CreateIdentity(entropy io.Reader) (*core.GameIdentity, error)
	EstimateDeployGas(ctx context.Context, contract *core.ContractInterface) (uint64, error)
	DeployContract(ctx context.Context, identity *core.GameIdentity, contract *core.ContractInterface, gasPrice, value *big.Int) (common.Hash, error)
	ResolveContractAddress(ctx context.Context, txHash common.Hash) (common.Address, error)
	CheckSolved(ctx context.Context, addr common.Address, contract *core.ContractInterface, check core.SolveCheck) (bool, error)
}

// Compiler turns contract source into a deployable interface
type Compiler interface {
	Compile(ctx context.Context, source, contractName string) (*core.ContractInterface, error)
}
