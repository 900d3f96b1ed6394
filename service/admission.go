package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"math/bits"
	"strings"

	"github.com/layer-3/gamegate/core"
)

// PrefixEntropy is the number of random bytes behind each puzzle prefix
const PrefixEntropy = 16

// Puzzle is a single proof-of-work challenge
type Puzzle struct {
	Prefix     string
	Difficulty int
}

// Verify reports whether sha256(prefix || answer) starts with Difficulty
// zero bits
func (p Puzzle) Verify(answer []byte) bool {
	h := sha256.New()
	h.Write([]byte(p.Prefix))
	h.Write(answer)
	return LeadingZeroBits(h.Sum(nil)) >= p.Difficulty
}

// Prompt is the text sent to the player before the answer is read
func (p Puzzle) Prompt() string {
	return fmt.Sprintf("sha256(%s + ???) == %s(%d)...\n??? = ", p.Prefix, strings.Repeat("0", p.Difficulty), p.Difficulty)
}

// LeadingZeroBits counts the zero bits at the start of digest
func LeadingZeroBits(digest []byte) int {
	n := 0
	for _, b := range digest {
		if b != 0 {
			return n + bits.LeadingZeros8(b)
		}
		n += 8
	}
	return n
}

// AdmissionGate makes each connection pay a proof of work before it is served
type AdmissionGate struct {
	difficulty int
	rand       io.Reader
}

// NewAdmissionGate creates a gate requiring difficulty leading zero bits
func NewAdmissionGate(difficulty int) *AdmissionGate {
	return &AdmissionGate{difficulty: difficulty, rand: rand.Reader}
}

// NewPuzzle draws a fresh random prefix
func (g *AdmissionGate) NewPuzzle() (Puzzle, error) {
	buf := make([]byte, PrefixEntropy)
	if _, err := io.ReadFull(g.rand, buf); err != nil {
		return Puzzle{}, fmt.Errorf("failed to generate prefix: %w", err)
	}
	return Puzzle{
		Prefix:     base64.RawURLEncoding.EncodeToString(buf),
		Difficulty: g.difficulty,
	}, nil
}

// Admit runs one puzzle over conn. Any failure returns core.ErrAdmission
// wrapped; the caller drops the connection without replying.
func (g *AdmissionGate) Admit(conn Conn) error {
	puzzle, err := g.NewPuzzle()
	if err != nil {
		return err
	}
	if err := conn.Send(puzzle.Prompt()); err != nil {
		return err
	}

	answer, err := conn.RecvLine()
	if err != nil {
		return err
	}
	if !puzzle.Verify(answer) {
		return core.ErrAdmission
	}
	return nil
}
