package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/layer-3/gamegate/core"
	"github.com/layer-3/gamegate/ports"
)

// SolcCompiler compiles Solidity source with a solc binary
type SolcCompiler struct {
	path string
}

// NewSolcCompiler creates a compiler running the solc binary at path
func NewSolcCompiler(path string) ports.Compiler {
	if path == "" {
		path = "solc"
	}
	return &SolcCompiler{path: path}
}

type combinedOutput struct {
	Contracts map[string]struct {
		ABI json.RawMessage `json:"abi"`
		Bin string          `json:"bin"`
	} `json:"contracts"`
}

// Compile runs solc on source and extracts contractName
func (c *SolcCompiler) Compile(ctx context.Context, source, contractName string) (*core.ContractInterface, error) {
	cmd := exec.CommandContext(ctx, c.path, "--combined-json", "abi,bin", "-")
	cmd.Stdin = strings.NewReader(source)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &core.CompileError{Contract: contractName, Output: strings.TrimSpace(stderr.String()), Err: err}
	}
	return parseCombinedJSON(stdout.Bytes(), contractName)
}

// parseCombinedJSON extracts one contract from solc --combined-json output.
// An empty contractName selects the only contract in the output.
func parseCombinedJSON(output []byte, contractName string) (*core.ContractInterface, error) {
	var out combinedOutput
	if err := json.Unmarshal(output, &out); err != nil {
		return nil, &core.CompileError{Contract: contractName, Err: fmt.Errorf("invalid solc output: %w", err)}
	}

	for key, compiled := range out.Contracts {
		// keys are "<source>:<name>"
		name := key[strings.LastIndex(key, ":")+1:]
		if contractName != "" && name != contractName {
			continue
		}
		if contractName == "" && len(out.Contracts) != 1 {
			return nil, &core.CompileError{Contract: contractName, Err: errors.New("source defines several contracts")}
		}

		rawABI := compiled.ABI
		// older solc releases emit the ABI as a JSON string
		var quoted string
		if err := json.Unmarshal(rawABI, &quoted); err == nil {
			rawABI = json.RawMessage(quoted)
		}
		parsed, err := abi.JSON(bytes.NewReader(rawABI))
		if err != nil {
			return nil, &core.CompileError{Contract: name, Err: fmt.Errorf("invalid abi: %w", err)}
		}

		bin := compiled.Bin
		if !strings.HasPrefix(bin, "0x") {
			bin = "0x" + bin
		}
		bytecode, err := hexutil.Decode(bin)
		if err != nil {
			return nil, &core.CompileError{Contract: name, Err: fmt.Errorf("invalid bytecode: %w", err)}
		}

		return &core.ContractInterface{Name: name, ABI: parsed, Bytecode: bytecode}, nil
	}
	return nil, &core.CompileError{Contract: contractName, Err: errors.New("contract not found in solc output")}
}
