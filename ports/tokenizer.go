package ports

// Tokenizer seals payloads into opaque bearer tokens and opens them again
type Tokenizer interface {
	// Issue encrypts and authenticates the payload
	Issue(payload []byte) (string, error)

	// Redeem authenticates the token and returns its payload
	Redeem(token string) ([]byte, error)
}
