package tokenizer

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/layer-3/gamegate/core"
	"github.com/layer-3/gamegate/ports"
)

// TagSize is the length of the HMAC-SHA256 tag appended to each token
const TagSize = sha256.Size

// MinMACKeySize is the shortest accepted HMAC key
const MinMACKeySize = 32

// CBCTokenizer implements the Tokenizer interface with AES-CBC encryption
// followed by an HMAC-SHA256 over iv || ciphertext
type CBCTokenizer struct {
	block  cipher.Block
	macKey []byte
	rand   io.Reader
}

// NewCBCTokenizer creates a new encrypt-then-MAC tokenizer
func NewCBCTokenizer(encKey, macKey []byte) (ports.Tokenizer, error) {
	return newCBCTokenizer(encKey, macKey, rand.Reader)
}

func newCBCTokenizer(encKey, macKey []byte, random io.Reader) (*CBCTokenizer, error) {
	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}
	if len(macKey) < MinMACKeySize {
		return nil, fmt.Errorf("mac key must be at least %d bytes", MinMACKeySize)
	}

	return &CBCTokenizer{
		block:  block,
		macKey: bytes.Clone(macKey),
		rand:   random,
	}, nil
}

// Issue encrypts the payload under a fresh IV and appends the MAC
func (t *CBCTokenizer) Issue(payload []byte) (string, error) {
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(t.rand, iv); err != nil {
		return "", fmt.Errorf("failed to generate iv: %w", err)
	}

	padded := pad(payload, aes.BlockSize)
	msg := make([]byte, aes.BlockSize+len(padded), aes.BlockSize+len(padded)+TagSize)
	copy(msg, iv)
	cipher.NewCBCEncrypter(t.block, iv).CryptBlocks(msg[aes.BlockSize:], padded)

	msg = append(msg, t.tag(msg)...)
	return base64.StdEncoding.EncodeToString(msg), nil
}

// Redeem checks the MAC before touching the ciphertext
func (t *CBCTokenizer) Redeem(token string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", core.ErrAuthentication)
	}

	// iv, at least one ciphertext block, tag
	if len(raw) < 2*aes.BlockSize+TagSize || (len(raw)-TagSize)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("unexpected token length %d: %w", len(raw), core.ErrAuthentication)
	}

	msg, tag := raw[:len(raw)-TagSize], raw[len(raw)-TagSize:]
	if !hmac.Equal(tag, t.tag(msg)) {
		return nil, fmt.Errorf("tag mismatch: %w", core.ErrAuthentication)
	}

	iv, ciphertext := msg[:aes.BlockSize], msg[aes.BlockSize:]
	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(t.block, iv).CryptBlocks(plain, ciphertext)

	payload, err := unpad(plain, aes.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, core.ErrAuthentication)
	}
	return payload, nil
}

func (t *CBCTokenizer) tag(msg []byte) []byte {
	mac := hmac.New(sha256.New, t.macKey)
	mac.Write(msg)
	return mac.Sum(nil)
}
