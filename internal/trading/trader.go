package trading

import (
	"context"

	"github.com/mvessey/crowd-trader/internal/storage"
)

// Trader executes decisions against a ledger. PaperTrader simulates fills;
// LiveTrader places real orders. A nil trade with a nil error means the order
// was declined by a risk gate or there was nothing to do - a normal business
// outcome, not a failure.
type Trader interface {
	// ExecuteBuy opens or adds to a position at the given price. signalID
	// links the trade to the decision that caused it.
	ExecuteBuy(ctx context.Context, productID string, price float64, signalID *uint) (*storage.Trade, error)

	// ExecuteSell reduces or closes a position. quantity <= 0 sells the full
	// position.
	ExecuteSell(ctx context.Context, productID string, price float64, quantity float64, signalID *uint) (*storage.Trade, error)

	// CheckStopLossTakeProfit scans open positions against the given current
	// prices and returns the exit trades it executed.
	CheckStopLossTakeProfit(ctx context.Context, prices map[string]float64) ([]storage.Trade, error)
}

// RiskCheck is the structured outcome of a risk gate.
type RiskCheck struct {
	Allowed bool
	Reason  string
}

func allow() RiskCheck {
	return RiskCheck{Allowed: true, Reason: "ok"}
}

func deny(reason string) RiskCheck {
	return RiskCheck{Allowed: false, Reason: reason}
}

var (
	_ Trader = (*PaperTrader)(nil)
	_ Trader = (*LiveTrader)(nil)
)
