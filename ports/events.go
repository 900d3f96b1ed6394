package ports

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// EventPublisher publishes game audit events
type EventPublisher interface {
	PublishAccountCreated(ctx context.Context, account common.Address) error
	PublishDeployed(ctx context.Context, account common.Address, txHash common.Hash) error
	PublishSolveAttempt(ctx context.Context, contract common.Address, solved bool) error
}
