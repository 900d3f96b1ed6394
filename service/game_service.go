package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/gamegate/core"
	"github.com/layer-3/gamegate/ports"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Variant selects the menu a GameService offers
type Variant string

const (
	// VariantBasic offers three options and serves a single choice
	VariantBasic Variant = "basic"

	// VariantExtended adds the source listing and returns to the menu
	// after every choice
	VariantExtended Variant = "extended"
)

// neutralPlaceholder replaces the source placeholder in the listing and in
// the interface used for solve checks
const neutralPlaceholder = "0"

// GameConfig holds the immutable settings of a game
type GameConfig struct {
	Variant         Variant
	Banner          string
	Network         string
	Source          string
	ContractName    string
	Placeholder     string
	Flag            string
	DefaultGasPrice *big.Int
	SolveKind       core.SolveKind
	SolveName       string

	// StepTimeout bounds every ledger and compiler call made while serving
	// a player; zero leaves them bounded by the connection context only
	StepTimeout time.Duration
}

// GameService drives the menu for one connection at a time. It holds no
// per-player state: everything a later step needs travels in the tokens.
type GameService struct {
	cfg       GameConfig
	tokenizer ports.Tokenizer
	ledger    ports.Ledger
	compiler  ports.Compiler
	events    ports.EventPublisher
	stats     *Stats
	entropy   io.Reader

	source   string
	contract *core.ContractInterface
	menu     string
}

// NewGameService compiles the canonical contract and creates the service
func NewGameService(
	ctx context.Context,
	cfg GameConfig,
	tokenizer ports.Tokenizer,
	ledger ports.Ledger,
	compiler ports.Compiler,
	events ports.EventPublisher,
	stats *Stats,
) (*GameService, error) {
	if cfg.DefaultGasPrice == nil {
		return nil, fmt.Errorf("default gas price is required")
	}
	if cfg.SolveKind != core.SolveByVariable && cfg.SolveKind != core.SolveByEvent {
		return nil, fmt.Errorf("unknown solve kind %q", cfg.SolveKind)
	}
	if stats == nil {
		stats = &Stats{}
	}
	if events == nil {
		events = nopPublisher{}
	}

	source := cfg.Source
	if cfg.Placeholder != "" {
		source = strings.ReplaceAll(source, cfg.Placeholder, neutralPlaceholder)
	}
	contract, err := compiler.Compile(ctx, source, cfg.ContractName)
	if err != nil {
		return nil, err
	}

	s := &GameService{
		cfg:       cfg,
		tokenizer: tokenizer,
		ledger:    ledger,
		compiler:  compiler,
		events:    events,
		stats:     stats,
		entropy:   rand.Reader,
		source:    source,
		contract:  contract,
	}
	s.menu = s.buildMenu()
	return s, nil
}

// Stats returns the counters the service updates
func (s *GameService) Stats() *Stats {
	return s.stats
}

// Serve runs the menu over conn until the player is done or a step fails
func (s *GameService) Serve(ctx context.Context, conn Conn, log *logrus.Entry) error {
	for {
		if err := conn.Send(s.menu); err != nil {
			return err
		}
		if err := conn.Send("Your choice: "); err != nil {
			return err
		}
		line, err := conn.RecvLine()
		if err != nil {
			return err
		}

		choice := core.ParseChoice(string(line))
		if !s.offers(choice) {
			log.WithField("input", truncate(string(line), 16)).Debug("Invalid option")
			return sendLine(conn, "Invalid option!")
		}

		if err := s.dispatch(ctx, conn, choice, log.WithField("choice", choice.String())); err != nil {
			s.stats.Failures.Add(1)
			return fmt.Errorf("%s: %w", choice, err)
		}

		if s.cfg.Variant != VariantExtended {
			return nil
		}
		if err := sendLine(conn, ""); err != nil {
			return err
		}
	}
}

func (s *GameService) offers(c core.Choice) bool {
	switch c {
	case core.ChoiceCreateAccount, core.ChoiceDeployContract, core.ChoiceRequestFlag:
		return true
	case core.ChoiceRequestSource:
		return s.cfg.Variant == VariantExtended
	}
	return false
}

func (s *GameService) dispatch(ctx context.Context, conn Conn, c core.Choice, log *logrus.Entry) error {
	switch c {
	case core.ChoiceCreateAccount:
		return s.createAccount(ctx, conn, log)
	case core.ChoiceDeployContract:
		return s.deployContract(ctx, conn, log)
	case core.ChoiceRequestFlag:
		return s.requestFlag(ctx, conn, log)
	case core.ChoiceRequestSource:
		return sendLine(conn, s.source)
	}
	return core.ErrUnknownOption
}

func (s *GameService) createAccount(ctx context.Context, conn Conn, log *logrus.Entry) error {
	identity, err := s.ledger.CreateIdentity(s.entropy)
	if err != nil {
		return fmt.Errorf("failed to create identity: %w", err)
	}

	token, err := s.tokenizer.Issue(identity.Payload())
	if err != nil {
		return fmt.Errorf("failed to issue account token: %w", err)
	}

	lines := []string{
		"Your game account: " + identity.Address.Hex(),
		"Your account token: " + token,
		"",
		"Please keep your account token, and send some Ether to the game account.",
		"The sent Ether is for transaction fee of the game contract deployment.",
		"After that, continue to Choice 2 to deploy a game contract.",
	}
	if err := sendLines(conn, lines...); err != nil {
		return err
	}

	s.stats.AccountsCreated.Add(1)
	log.WithField("account", identity.Address.Hex()).Info("GenAcc")
	if err := s.events.PublishAccountCreated(ctx, identity.Address); err != nil {
		log.WithError(err).Warn("Failed to publish account event")
	}
	return nil
}

func (s *GameService) deployContract(ctx context.Context, conn Conn, log *logrus.Entry) error {
	if err := conn.Send("Input your account token: "); err != nil {
		return err
	}
	line, err := conn.RecvLine()
	if err != nil {
		return err
	}
	payload, err := s.tokenizer.Redeem(string(line))
	if err != nil {
		return err
	}
	identity, err := core.DecodeIdentity(payload)
	if err != nil {
		return err
	}
	if err := sendLine(conn, ""); err != nil {
		return err
	}

	stepCtx, cancel := s.stepContext(ctx)
	defer cancel()

	contract, err := s.deploymentInterface(stepCtx)
	if err != nil {
		return err
	}

	gas, err := s.ledger.EstimateDeployGas(stepCtx, contract)
	if err != nil {
		return err
	}
	cost := new(big.Int).Mul(new(big.Int).SetUint64(gas), s.cfg.DefaultGasPrice)
	if err := sendLines(conn,
		fmt.Sprintf("Estimated gas for deploying the game contract: %d", gas),
		fmt.Sprintf("Estimated cost at %s wei per gas: %s ether", s.cfg.DefaultGasPrice, weiToEther(cost)),
	); err != nil {
		return err
	}

	if err := conn.Send(fmt.Sprintf("Input gas price (in wei, default %s): ", s.cfg.DefaultGasPrice)); err != nil {
		return err
	}
	line, err = conn.RecvLine()
	if err != nil {
		return err
	}
	gasPrice, err := s.parseGasPrice(string(line))
	if err != nil {
		return err
	}
	if err := sendLine(conn, ""); err != nil {
		return err
	}

	deployCtx, cancelDeploy := s.stepContext(ctx)
	defer cancelDeploy()

	txHash, err := s.ledger.DeployContract(deployCtx, identity, contract, gasPrice, new(big.Int))
	if err != nil {
		var lerr *core.LedgerError
		if errors.As(err, &lerr) && lerr.Surfaced() {
			if serr := sendLine(conn, "Error: "+lerr.Message); serr != nil {
				return serr
			}
		}
		return err
	}

	deployment := &core.Deployment{Identity: identity, TxHash: txHash}
	token, err := s.tokenizer.Issue(deployment.Payload())
	if err != nil {
		return fmt.Errorf("failed to issue contract token: %w", err)
	}

	if err := sendLines(conn,
		"Game contract is deploying...",
		"Transaction hash of game contract deployment: "+txHash.Hex(),
		"Your contract token: "+token,
		"",
		"Keep your contract token and solve the challenge now!",
		s.goal(),
		"Once you solve the challenge, continue to Choice 3 to request for the flag.",
	); err != nil {
		return err
	}

	s.stats.Deployments.Add(1)
	log.WithFields(logrus.Fields{
		"account": identity.Address.Hex(),
		"tx_hash": txHash.Hex(),
	}).Info("Deployed")
	if err := s.events.PublishDeployed(ctx, identity.Address, txHash); err != nil {
		log.WithError(err).Warn("Failed to publish deployment event")
	}
	return nil
}

func (s *GameService) requestFlag(ctx context.Context, conn Conn, log *logrus.Entry) error {
	if err := conn.Send("Input your contract token: "); err != nil {
		return err
	}
	line, err := conn.RecvLine()
	if err != nil {
		return err
	}
	payload, err := s.tokenizer.Redeem(string(line))
	if err != nil {
		return err
	}
	deployment, err := core.DecodeDeployment(payload)
	if err != nil {
		return err
	}
	if err := sendLine(conn, ""); err != nil {
		return err
	}

	resolveCtx, cancel := s.stepContext(ctx)
	defer cancel()

	addr, err := s.ledger.ResolveContractAddress(resolveCtx, deployment.TxHash)
	if err != nil {
		return err
	}

	check := core.SolveCheck{Kind: s.cfg.SolveKind, Name: s.cfg.SolveName}
	if check.Kind == core.SolveByEvent {
		if err := conn.Send(fmt.Sprintf("Transaction hash (in hex string) that emitted `%s` event: ", check.Name)); err != nil {
			return err
		}
		line, err := conn.RecvLine()
		if err != nil {
			return err
		}
		check.TxHash, err = parseTxHash(string(line))
		if err != nil {
			return err
		}
	}

	s.stats.SolveAttempts.Add(1)
	checkCtx, cancelCheck := s.stepContext(ctx)
	defer cancelCheck()

	solved, err := s.ledger.CheckSolved(checkCtx, addr, s.contract, check)
	if err != nil {
		return err
	}

	if solved {
		s.stats.Solved.Add(1)
		err = sendLine(conn, "Congrats! Here is your flag: "+s.cfg.Flag)
	} else {
		err = sendLine(conn, "Nope, try harder!")
	}

	status := "Failed"
	if solved {
		status = "Solved"
	}
	log.WithField("contract", addr.Hex()).Info(status)
	if perr := s.events.PublishSolveAttempt(ctx, addr, solved); perr != nil {
		log.WithError(perr).Warn("Failed to publish solve event")
	}
	return err
}

// stepContext derives the context of a single ledger or compiler call
func (s *GameService) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.StepTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.StepTimeout)
}

// deploymentInterface compiles a fresh copy of the source with a random
// value in place of the placeholder
func (s *GameService) deploymentInterface(ctx context.Context) (*core.ContractInterface, error) {
	if s.cfg.Placeholder == "" {
		return s.contract, nil
	}
	buf := make([]byte, 16)
	if _, err := io.ReadFull(s.entropy, buf); err != nil {
		return nil, fmt.Errorf("failed to draw contract seed: %w", err)
	}
	seed := new(big.Int).SetBytes(buf).String()
	source := strings.ReplaceAll(s.cfg.Source, s.cfg.Placeholder, seed)
	return s.compiler.Compile(ctx, source, s.cfg.ContractName)
}

func (s *GameService) parseGasPrice(line string) (*big.Int, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return new(big.Int).Set(s.cfg.DefaultGasPrice), nil
	}
	price, ok := new(big.Int).SetString(line, 10)
	if !ok || price.Sign() <= 0 {
		return nil, core.NewProtocolError("invalid gas price")
	}
	return price, nil
}

func (s *GameService) goal() string {
	if s.cfg.SolveKind == core.SolveByEvent {
		return fmt.Sprintf("Your goal is to emit the `%s` event in the game contract.", s.cfg.SolveName)
	}
	return fmt.Sprintf("Your goal is to set the `%s` variable in the game contract to `true`.", s.cfg.SolveName)
}

func (s *GameService) buildMenu() string {
	var b strings.Builder
	b.WriteString(s.cfg.Banner)
	b.WriteString("\n")
	if s.cfg.Network != "" {
		fmt.Fprintf(&b, "All game contracts will be deployed on ** %s **\n", s.cfg.Network)
	}
	b.WriteString("Please follow the instructions below:\n\n")
	b.WriteString("1. Create a game account\n")
	b.WriteString("2. Deploy a game contract\n")
	b.WriteString("3. Request for the flag\n")
	if s.cfg.Variant == VariantExtended {
		b.WriteString("4. Get the game contract source code\n")
	}
	b.WriteString("\n")
	return b.String()
}

type nopPublisher struct{}

func (nopPublisher) PublishAccountCreated(context.Context, common.Address) error { return nil }

func (nopPublisher) PublishDeployed(context.Context, common.Address, common.Hash) error { return nil }

func (nopPublisher) PublishSolveAttempt(context.Context, common.Address, bool) error { return nil }

func parseTxHash(line string) (common.Hash, error) {
	line = strings.TrimPrefix(strings.TrimSpace(line), "0x")
	raw, err := hex.DecodeString(line)
	if err != nil || len(raw) != common.HashLength {
		return common.Hash{}, core.NewProtocolError("malformed transaction hash")
	}
	return common.BytesToHash(raw), nil
}

func weiToEther(wei *big.Int) string {
	return decimal.NewFromBigInt(wei, -18).String()
}

func sendLines(conn Conn, lines ...string) error {
	for _, l := range lines {
		if err := sendLine(conn, l); err != nil {
			return err
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
