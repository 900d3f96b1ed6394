package core

import (
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Choice is a menu option
type Choice int

const (
	ChoiceInvalid Choice = iota - 1
	_
	ChoiceCreateAccount
	ChoiceDeployContract
	ChoiceRequestFlag
	ChoiceRequestSource
)

// ParseChoice parses a menu line; anything that is not an integer maps to
// ChoiceInvalid
func ParseChoice(line string) Choice {
	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return ChoiceInvalid
	}
	switch c := Choice(n); c {
	case ChoiceCreateAccount, ChoiceDeployContract, ChoiceRequestFlag, ChoiceRequestSource:
		return c
	}
	return ChoiceInvalid
}

func (c Choice) String() string {
	switch c {
	case ChoiceCreateAccount:
		return "create-account"
	case ChoiceDeployContract:
		return "deploy-contract"
	case ChoiceRequestFlag:
		return "request-flag"
	case ChoiceRequestSource:
		return "request-source"
	}
	return "invalid"
}

// ContractInterface is a compiled contract: its ABI and creation bytecode
type ContractInterface struct {
	Name     string
	ABI      abi.ABI
	Bytecode []byte
}

// SolveKind selects how a game contract is checked for being solved
type SolveKind string

const (
	// SolveByVariable reads a public bool getter on the contract
	SolveByVariable SolveKind = "variable"

	// SolveByEvent looks for an event emitted by the contract in a receipt
	SolveByEvent SolveKind = "event"
)

// SolveCheck is the solved-state predicate evaluated by the ledger
type SolveCheck struct {
	Kind SolveKind
	Name string

	// TxHash is the player-supplied transaction for SolveByEvent
	TxHash common.Hash
}
