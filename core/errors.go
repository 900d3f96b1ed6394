package core

import (
	"errors"
	"fmt"
)

var (
	ErrAuthentication = errors.New("token authentication failed")
	ErrAdmission      = errors.New("proof of work rejected")
	ErrNotConfirmed   = errors.New("transaction not confirmed")
	ErrUnknownOption  = errors.New("unknown option")
)

// RPCCodeServerError is the JSON-RPC code nodes use for rejected
// transactions (underpriced, insufficient funds, nonce too low)
const RPCCodeServerError = -32000

// ProtocolError reports a structurally valid but semantically wrong input
type ProtocolError struct {
	Reason string
}

// NewProtocolError creates a protocol error with the given reason
func NewProtocolError(reason string) *ProtocolError {
	return &ProtocolError{Reason: reason}
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Reason
}

// LedgerError reports a failure of the external ledger
type LedgerError struct {
	Op      string
	Code    int
	Message string
	Err     error
}

func (e *LedgerError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("ledger %s failed (code %d): %s", e.Op, e.Code, e.Message)
	}
	return fmt.Sprintf("ledger %s failed: %s", e.Op, e.Message)
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

// Surfaced reports whether the ledger message is meant to reach the player
func (e *LedgerError) Surfaced() bool {
	return e.Code == RPCCodeServerError
}

// CompileError reports a contract compilation failure
type CompileError struct {
	Contract string
	Output   string
	Err      error
}

func (e *CompileError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("failed to compile %s: %v: %s", e.Contract, e.Err, e.Output)
	}
	return fmt.Sprintf("failed to compile %s: %v", e.Contract, e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}
