package service

import (
	"context"
	"io"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/gamegate/core"
)

type scriptedConn struct {
	inputs []string
	out    strings.Builder
}

func newScriptedConn(inputs ...string) *scriptedConn {
	return &scriptedConn{inputs: inputs}
}

func (c *scriptedConn) Send(s string) error {
	c.out.WriteString(s)
	return nil
}

func (c *scriptedConn) RecvLine() ([]byte, error) {
	if len(c.inputs) == 0 {
		return nil, io.EOF
	}
	line := c.inputs[0]
	c.inputs = c.inputs[1:]
	return []byte(strings.TrimSpace(line)), nil
}

func (c *scriptedConn) Output() string {
	return c.out.String()
}

// valueAfter returns the rest of the first output line starting with prefix
func (c *scriptedConn) valueAfter(prefix string) string {
	for _, line := range strings.Split(c.out.String(), "\n") {
		if i := strings.Index(line, prefix); i >= 0 {
			return strings.TrimSpace(line[i+len(prefix):])
		}
	}
	return ""
}

type fakeLedger struct {
	mu sync.Mutex

	gas        uint64
	txHash     common.Hash
	contract   common.Address
	solved     bool
	deployErr  error
	resolveErr error

	// hang makes EstimateDeployGas block until its context ends
	hang bool

	identities  int
	estimates   int
	deployments []deployCall
	resolved    []common.Hash
	checks      []core.SolveCheck
}

type deployCall struct {
	identity *core.GameIdentity
	contract *core.ContractInterface
	gasPrice *big.Int
	value    *big.Int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		gas:      150000,
		txHash:   common.HexToHash("0x9fc76417374aa880d4449a1f7f31ec597f00b1f6f3dd2d66f4c9c6c445836d8b"),
		contract: common.HexToAddress("0xABCD000000000000000000000000000000001234"),
	}
}

func (l *fakeLedger) calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.identities + l.estimates + len(l.deployments) + len(l.resolved) + len(l.checks)
}

func (l *fakeLedger) CreateIdentity(entropy io.Reader) (*core.GameIdentity, error) {
	l.mu.Lock()
	l.identities++
	l.mu.Unlock()
	return core.NewGameIdentity(entropy)
}

func (l *fakeLedger) EstimateDeployGas(ctx context.Context, contract *core.ContractInterface) (uint64, error) {
	l.mu.Lock()
	l.estimates++
	hang, gas := l.hang, l.gas
	l.mu.Unlock()

	if hang {
		<-ctx.Done()
		return 0, &core.LedgerError{Op: "estimate", Message: ctx.Err().Error(), Err: ctx.Err()}
	}
	return gas, nil
}

func (l *fakeLedger) DeployContract(ctx context.Context, identity *core.GameIdentity, contract *core.ContractInterface, gasPrice, value *big.Int) (common.Hash, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deployments = append(l.deployments, deployCall{identity, contract, gasPrice, value})
	if l.deployErr != nil {
		return common.Hash{}, l.deployErr
	}
	return l.txHash, nil
}

func (l *fakeLedger) ResolveContractAddress(ctx context.Context, txHash common.Hash) (common.Address, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resolved = append(l.resolved, txHash)
	if l.resolveErr != nil {
		return common.Address{}, l.resolveErr
	}
	return l.contract, nil
}

func (l *fakeLedger) CheckSolved(ctx context.Context, addr common.Address, contract *core.ContractInterface, check core.SolveCheck) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.checks = append(l.checks, check)
	return l.solved, nil
}

type fakeCompiler struct {
	mu      sync.Mutex
	sources []string
	err     error
}

func (c *fakeCompiler) Compile(ctx context.Context, source, name string) (*core.ContractInterface, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	c.sources = append(c.sources, source)
	return &core.ContractInterface{Name: name, Bytecode: []byte(source)}, nil
}

type fakeEvents struct {
	mu       sync.Mutex
	accounts []common.Address
	deployed []common.Hash
	attempts []bool
}

func (e *fakeEvents) PublishAccountCreated(ctx context.Context, account common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.accounts = append(e.accounts, account)
	return nil
}

func (e *fakeEvents) PublishDeployed(ctx context.Context, account common.Address, txHash common.Hash) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deployed = append(e.deployed, txHash)
	return nil
}

func (e *fakeEvents) PublishSolveAttempt(ctx context.Context, contract common.Address, solved bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attempts = append(e.attempts, solved)
	return nil
}
