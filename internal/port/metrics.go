package port

import "github.com/rl1809/inventory-ledger/internal/core/domain"

// Metrics records stock mutation and notification outcomes.
type Metrics interface {
	StockMutation(kind domain.MovementKind, outcome string)
	AlertRaised()
	Notification(outcome string)
}
