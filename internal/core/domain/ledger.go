package domain

import "time"

type MovementKind string

const (
	MovementInbound  MovementKind = "INBOUND"
	MovementOutbound MovementKind = "OUTBOUND"
)

// KindForDelta derives the movement kind from the sign of a delta.
func KindForDelta(delta int) MovementKind {
	if delta > 0 {
		return MovementInbound
	}
	return MovementOutbound
}

// LedgerEntry is an immutable record of one stock mutation.
type LedgerEntry struct {
	ID        string
	ItemID    int64
	Delta     int
	Kind      MovementKind
	ActorID   string
	CreatedAt time.Time
}

// LedgerRange selects ledger entries with CreatedAt in [Start, End].
// A nil ItemID matches every item.
type LedgerRange struct {
	Start  time.Time
	End    time.Time
	ItemID *int64
}

// Empty reports whether the range can match nothing at all.
func (r LedgerRange) Empty() bool {
	return r.Start.After(r.End)
}
