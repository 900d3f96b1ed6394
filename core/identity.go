package core

import (
	"bytes"
	"crypto/ecdsa"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// AddressTextLength is the length of a 0x-prefixed checksummed address
	AddressTextLength = 2 + 2*common.AddressLength

	// PrivateKeyLength is the length of a raw secp256k1 private key
	PrivateKeyLength = 32

	// AccountPayloadLength is the length of a stage-1 (account) token payload
	AccountPayloadLength = AddressTextLength + PrivateKeyLength

	// DeploymentPayloadLength is the length of a stage-2 (contract) token payload
	DeploymentPayloadLength = AccountPayloadLength + common.HashLength
)

// GameIdentity represents a player's game account on the ledger
type GameIdentity struct {
	Address    common.Address
	PrivateKey *ecdsa.PrivateKey
}

// Deployment represents a game identity together with the transaction that
// deployed its game contract
type Deployment struct {
	Identity *GameIdentity
	TxHash   common.Hash
}

// NewGameIdentity generates a fresh identity from the supplied entropy source
func NewGameIdentity(entropy io.Reader) (*GameIdentity, error) {
	seed := make([]byte, PrivateKeyLength)
	// A seed outside the curve order is rejected by ToECDSA; draw again.
	for attempt := 0; attempt < 8; attempt++ {
		if _, err := io.ReadFull(entropy, seed); err != nil {
			return nil, fmt.Errorf("failed to read entropy: %w", err)
		}
		key, err := crypto.ToECDSA(seed)
		if err != nil {
			continue
		}
		return &GameIdentity{
			Address:    crypto.PubkeyToAddress(key.PublicKey),
			PrivateKey: key,
		}, nil
	}
	return nil, fmt.Errorf("failed to derive private key from entropy")
}

// Payload returns the stage-1 layout: checksummed address text || raw key
func (id *GameIdentity) Payload() []byte {
	payload := make([]byte, 0, AccountPayloadLength)
	payload = append(payload, id.Address.Hex()...)
	payload = append(payload, crypto.FromECDSA(id.PrivateKey)...)
	return payload
}

// DecodeIdentity parses a stage-1 payload and checks that the embedded
// address belongs to the embedded key
func DecodeIdentity(payload []byte) (*GameIdentity, error) {
	if len(payload) != AccountPayloadLength {
		return nil, NewProtocolError("malformed identity payload")
	}

	addrText, rawKey := payload[:AddressTextLength], payload[AddressTextLength:]
	key, err := crypto.ToECDSA(rawKey)
	if err != nil {
		return nil, NewProtocolError("malformed identity key")
	}

	addr := crypto.PubkeyToAddress(key.PublicKey)
	if !bytes.Equal([]byte(addr.Hex()), addrText) {
		return nil, NewProtocolError("identity address does not match key")
	}

	return &GameIdentity{Address: addr, PrivateKey: key}, nil
}

// Payload returns the stage-2 layout: identity payload || deployment tx hash
func (d *Deployment) Payload() []byte {
	payload := make([]byte, 0, DeploymentPayloadLength)
	payload = append(payload, d.Identity.Payload()...)
	payload = append(payload, d.TxHash.Bytes()...)
	return payload
}

// DecodeDeployment parses a stage-2 payload
func DecodeDeployment(payload []byte) (*Deployment, error) {
	if len(payload) != DeploymentPayloadLength {
		return nil, NewProtocolError("malformed deployment payload")
	}

	identity, err := DecodeIdentity(payload[:AccountPayloadLength])
	if err != nil {
		return nil, err
	}

	return &Deployment{
		Identity: identity,
		TxHash:   common.BytesToHash(payload[AccountPayloadLength:]),
	}, nil
}
