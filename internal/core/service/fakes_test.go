package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-ledger/internal/adapter/storage"
	"github.com/rl1809/inventory-ledger/internal/core/domain"
)

const adminAddress = "stock-admin@example.com"

type recordingNotifier struct {
	mu     sync.Mutex
	reject bool
	sent   []domain.Notification
}

func (n *recordingNotifier) Enqueue(_ context.Context, msg domain.Notification) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.reject {
		return false
	}
	n.sent = append(n.sent, msg)
	return true
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type fakeSink struct {
	mu       sync.Mutex
	attempts int
	failures int // number of leading attempts that fail
	calls    []string
}

func (s *fakeSink) Send(ctx context.Context, recipient, subject, body string) (domain.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempts++
	s.calls = append(s.calls, recipient+"|"+subject)
	if s.attempts <= s.failures {
		return domain.Receipt{}, fmt.Errorf("%w: smtp unavailable", domain.ErrDeliveryFailed)
	}
	return domain.Receipt{MessageID: fmt.Sprintf("msg-%d", s.attempts), DeliveredAt: time.Now()}, nil
}

func (s *fakeSink) attemptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

type fakeCache struct {
	mu     sync.Mutex
	items  map[int64]domain.Item
	setErr error
	sets   int
}

func newFakeCache() *fakeCache {
	return &fakeCache{items: make(map[int64]domain.Item)}
}

func (c *fakeCache) GetItem(ctx context.Context, itemID int64) (*domain.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[itemID]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (c *fakeCache) SetItem(ctx context.Context, item domain.Item) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	if c.setErr != nil {
		return c.setErr
	}
	if current, ok := c.items[item.ID]; ok && current.Version >= item.Version {
		return nil
	}
	c.items[item.ID] = item
	return nil
}

func (c *fakeCache) InvalidateItem(ctx context.Context, itemID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, itemID)
	return nil
}

var errCacheDown = errors.New("cache down")

// testClock hands out strictly increasing timestamps one second apart
// unless pinned.
type testClock struct {
	base   time.Time
	ticks  atomic.Int64
	pinned atomic.Pointer[time.Time]
}

func newTestClock() *testClock {
	return &testClock{base: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	if p := c.pinned.Load(); p != nil {
		return *p
	}
	return c.base.Add(time.Duration(c.ticks.Add(1)) * time.Second)
}

func (c *testClock) Pin(t time.Time) { c.pinned.Store(&t) }

func (c *testClock) Unpin() { c.pinned.Store(nil) }

type testEnv struct {
	engine   *InventoryEngine
	repo     *storage.MemoryAdapter
	notifier *recordingNotifier
	clock    *testClock
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()

	repo := storage.NewMemoryAdapter()
	notifier := &recordingNotifier{}
	clock := newTestClock()

	opts = append([]Option{WithClock(clock.Now)}, opts...)
	engine := NewInventoryEngine(repo, notifier, Config{AdminNotificationAddress: adminAddress}, zap.NewNop(), opts...)

	return &testEnv{engine: engine, repo: repo, notifier: notifier, clock: clock}
}

func (env *testEnv) createItem(t *testing.T, name string, stock, minimum int) domain.Item {
	t.Helper()
	item, err := env.engine.CreateItem(context.Background(), domain.NewItem{Name: name, Stock: stock, MinimumStock: minimum})
	require.NoError(t, err)
	return *item
}

func (env *testEnv) stockOf(t *testing.T, itemID int64) int {
	t.Helper()
	item, err := env.repo.GetItem(context.Background(), itemID)
	require.NoError(t, err)
	return item.Stock
}

func (env *testEnv) ledgerOf(t *testing.T, itemID int64) []domain.LedgerEntry {
	t.Helper()
	entries, err := env.repo.ListLedger(context.Background(), itemID)
	require.NoError(t, err)
	return entries
}

func (env *testEnv) alertsOf(t *testing.T, itemID int64) []domain.Alert {
	t.Helper()
	alerts, err := env.repo.ListAlerts(context.Background(), &itemID)
	require.NoError(t, err)
	return alerts
}

type fakeMetrics struct {
	mu            sync.Mutex
	mutations     map[string]int
	alerts        int
	notifications map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{mutations: make(map[string]int), notifications: make(map[string]int)}
}

func (m *fakeMetrics) StockMutation(kind domain.MovementKind, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mutations[string(kind)+"/"+outcome]++
}

func (m *fakeMetrics) AlertRaised() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts++
}

func (m *fakeMetrics) Notification(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications[outcome]++
}
