package domain

import "time"

type LifecycleState string

const (
	StateActive     LifecycleState = "ACTIVE"
	StateInactive   LifecycleState = "INACTIVE"
	StateOutOfStock LifecycleState = "OUT_OF_STOCK"
)

func (s LifecycleState) Valid() bool {
	switch s {
	case StateActive, StateInactive, StateOutOfStock:
		return true
	}
	return false
}

type Item struct {
	ID           int64
	Name         string
	Stock        int
	MinimumStock int
	State        LifecycleState
	Version      int64 // bumped on every write, keeps cached snapshots monotonic
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ApplyDelta returns a copy of the item with delta applied to its stock and
// the lifecycle state recomputed. It does not validate the result; callers
// check Stock before persisting.
//
// An INACTIVE item keeps its state: a stock write never resurrects a
// soft-deleted item.
func (i Item) ApplyDelta(delta int, now time.Time) Item {
	next := i
	next.Stock = i.Stock + delta
	next.Version = i.Version + 1
	next.UpdatedAt = now

	if i.State != StateInactive {
		next.State = StateForStock(next.Stock)
	}
	return next
}

// IsCritical reports whether the item should appear in the critical-stock
// listing.
func (i Item) IsCritical() bool {
	return i.State != StateInactive && i.Stock <= i.MinimumStock
}

// StateForStock is the state a live item takes for the given stock level.
func StateForStock(stock int) LifecycleState {
	if stock == 0 {
		return StateOutOfStock
	}
	return StateActive
}

// NewItem carries the fields catalog management sets at creation.
type NewItem struct {
	Name         string
	Stock        int
	MinimumStock int
}
