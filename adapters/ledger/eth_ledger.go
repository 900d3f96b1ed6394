package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/layer-3/gamegate/core"
	"github.com/layer-3/gamegate/ports"
	"github.com/sirupsen/logrus"
)

// Backend is the subset of an Ethereum client the ledger needs
type Backend interface {
	ethereum.ChainIDReader
	ethereum.ContractCaller
	ethereum.GasEstimator
	ethereum.PendingStateReader
	ethereum.TransactionReader
	ethereum.TransactionSender
}

// EthLedger implements the Ledger interface on top of an Ethereum node
type EthLedger struct {
	backend Backend
	chainID *big.Int
	logger  *logrus.Entry
}

// Dial connects to the node at url and creates a ledger for its chain
func Dial(ctx context.Context, url string, logger *logrus.Entry) (*EthLedger, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	l, err := NewEthLedger(ctx, client, logger)
	if err != nil {
		client.Close()
		return nil, err
	}
	return l, nil
}

// NewEthLedger creates a ledger over an existing backend
func NewEthLedger(ctx context.Context, backend Backend, logger *logrus.Entry) (*EthLedger, error) {
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, wrap("chain-id", err)
	}
	logger.WithField("chain_id", chainID).Debug("Connected to ledger")
	return &EthLedger{backend: backend, chainID: chainID, logger: logger}, nil
}

var _ ports.Ledger = (*EthLedger)(nil)

// CreateIdentity generates a new game account. The ledger itself is not
// contacted; the account exists once it is funded.
func (l *EthLedger) CreateIdentity(entropy io.Reader) (*core.GameIdentity, error) {
	return core.NewGameIdentity(entropy)
}

// EstimateDeployGas estimates the gas used by the contract creation
func (l *EthLedger) EstimateDeployGas(ctx context.Context, contract *core.ContractInterface) (uint64, error) {
	gas, err := l.backend.EstimateGas(ctx, ethereum.CallMsg{Data: contract.Bytecode})
	if err != nil {
		return 0, wrap("estimate", err)
	}
	return gas, nil
}

// DeployContract signs and submits a contract creation from identity
func (l *EthLedger) DeployContract(ctx context.Context, identity *core.GameIdentity, contract *core.ContractInterface, gasPrice, value *big.Int) (common.Hash, error) {
	nonce, err := l.backend.PendingNonceAt(ctx, identity.Address)
	if err != nil {
		return common.Hash{}, wrap("nonce", err)
	}

	gas, err := l.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  identity.Address,
		Data:  contract.Bytecode,
		Value: value,
	})
	if err != nil {
		return common.Hash{}, wrap("estimate", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		Value:    value,
		Data:     contract.Bytecode,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(l.chainID), identity.PrivateKey)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign deployment: %w", err)
	}

	if err := l.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, wrap("send", err)
	}

	l.logger.WithFields(logrus.Fields{
		"from":  identity.Address.Hex(),
		"nonce": nonce,
		"gas":   gas,
	}).Debug("Submitted deployment")
	return signed.Hash(), nil
}

// ResolveContractAddress returns the address created by a mined deployment
func (l *EthLedger) ResolveContractAddress(ctx context.Context, txHash common.Hash) (common.Address, error) {
	receipt, err := l.receipt(ctx, txHash)
	if err != nil {
		return common.Address{}, err
	}
	if receipt.ContractAddress == (common.Address{}) {
		return common.Address{}, &core.LedgerError{Op: "receipt", Message: "transaction did not create a contract"}
	}
	return receipt.ContractAddress, nil
}

// CheckSolved evaluates the solved-state predicate against the contract
func (l *EthLedger) CheckSolved(ctx context.Context, addr common.Address, contract *core.ContractInterface, check core.SolveCheck) (bool, error) {
	switch check.Kind {
	case core.SolveByVariable:
		return l.readBool(ctx, addr, contract, check.Name)
	case core.SolveByEvent:
		event, ok := contract.ABI.Events[check.Name]
		if !ok {
			return false, fmt.Errorf("contract %s has no event %s", contract.Name, check.Name)
		}
		receipt, err := l.receipt(ctx, check.TxHash)
		if err != nil {
			return false, err
		}
		return receiptEmits(receipt, addr, event.ID), nil
	}
	return false, fmt.Errorf("unknown solve kind %q", check.Kind)
}

func (l *EthLedger) readBool(ctx context.Context, addr common.Address, contract *core.ContractInterface, name string) (bool, error) {
	input, err := contract.ABI.Pack(name)
	if err != nil {
		return false, fmt.Errorf("failed to pack %s: %w", name, err)
	}

	output, err := l.backend.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: input}, nil)
	if err != nil {
		return false, wrap("call", err)
	}

	values, err := contract.ABI.Unpack(name, output)
	if err != nil {
		return false, fmt.Errorf("failed to unpack %s: %w", name, err)
	}
	if len(values) != 1 {
		return false, fmt.Errorf("%s returned %d values", name, len(values))
	}
	flag, ok := values[0].(bool)
	if !ok {
		return false, fmt.Errorf("%s is not a bool", name)
	}
	return flag, nil
}

func (l *EthLedger) receipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	receipt, err := l.backend.TransactionReceipt(ctx, txHash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, &core.LedgerError{Op: "receipt", Message: "transaction not confirmed", Err: core.ErrNotConfirmed}
	}
	if err != nil {
		return nil, wrap("receipt", err)
	}
	return receipt, nil
}

// receiptEmits reports whether addr logged an event with the given topic
func receiptEmits(receipt *types.Receipt, addr common.Address, topic common.Hash) bool {
	if receipt.Status != types.ReceiptStatusSuccessful {
		return false
	}
	for _, log := range receipt.Logs {
		if log.Address == addr && len(log.Topics) > 0 && log.Topics[0] == topic {
			return true
		}
	}
	return false
}

// wrap converts a node error into a LedgerError, keeping its JSON-RPC code
func wrap(op string, err error) error {
	lerr := &core.LedgerError{Op: op, Message: err.Error(), Err: err}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		lerr.Code = rpcErr.ErrorCode()
	}
	return lerr
}
