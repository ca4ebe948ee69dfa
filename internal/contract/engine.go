package contract

import (
	"context"

	"golang-options/internal/dto"
	"golang-options/internal/model"
)

// SignalEvaluator scores one symbol's directional opportunity.
type SignalEvaluator interface {
	Evaluate(ctx context.Context, symbol string) (*dto.Signal, error)
}

type Notifier interface {
	SendMessage(ctx context.Context, message string) error
}

type PositionCloser interface {
	Close(ctx context.Context, positionID uint, reason string, source model.TradeSource) (*dto.Fill, error)
}
