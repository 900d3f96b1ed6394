package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/layer-3/gamegate/ports"
)

// DefaultTopic is the topic game events are published to
const DefaultTopic = "gamegate.events"

// Event types
const (
	TypeAccountCreated = "account_created"
	TypeDeployed       = "deployed"
	TypeSolveAttempt   = "solve_attempt"
)

// GameEvent is the payload of every published event. It never carries key
// material or the flag.
type GameEvent struct {
	Type     string    `json:"type"`
	Account  string    `json:"account,omitempty"`
	Contract string    `json:"contract,omitempty"`
	TxHash   string    `json:"tx_hash,omitempty"`
	Solved   *bool     `json:"solved,omitempty"`
	At       time.Time `json:"at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
	topic     string
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher, topic string) ports.EventPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &WatermillPublisher{
		publisher: publisher,
		topic:     topic,
	}
}

// PublishAccountCreated publishes an account creation event
func (p *WatermillPublisher) PublishAccountCreated(ctx context.Context, account common.Address) error {
	return p.publish(ctx, GameEvent{Type: TypeAccountCreated, Account: account.Hex()})
}

// PublishDeployed publishes a contract deployment event
func (p *WatermillPublisher) PublishDeployed(ctx context.Context, account common.Address, txHash common.Hash) error {
	return p.publish(ctx, GameEvent{Type: TypeDeployed, Account: account.Hex(), TxHash: txHash.Hex()})
}

// PublishSolveAttempt publishes the outcome of a flag request
func (p *WatermillPublisher) PublishSolveAttempt(ctx context.Context, contract common.Address, solved bool) error {
	return p.publish(ctx, GameEvent{Type: TypeSolveAttempt, Contract: contract.Hex(), Solved: &solved})
}

func (p *WatermillPublisher) publish(ctx context.Context, event GameEvent) error {
	event.At = time.Now().UTC()

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.New().String(), payload)
	msg.Metadata.Set("type", event.Type)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
