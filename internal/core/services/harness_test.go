package services

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven/mocks"
)

// testClock is a settable clock shared by the services under test
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// harness wires every service over in-memory mocks
type harness struct {
	clock       *testClock
	cacheStore  *mocks.MockCacheStore
	cache       *CacheService
	subs        *mocks.MockWebhookStore
	sender      *mocks.MockWebhookSender
	broadcaster *mocks.MockBroadcaster
	dispatcher  *WebhookDispatcher
	progress    *ProgressTracker
	adapter     *mocks.MockProviderAdapter
	registry    *mocks.MockProviderRegistry
	items       *mocks.MockInventoryStore
	products    *mocks.MockProductStore
	inventory   *InventoryService
	schedules   *mocks.MockScheduleStore
	executions  *mocks.MockExecutionStore
	lock        *mocks.MockDistributedLock
	notifier    *mocks.MockNotifier
	metrics     *mocks.MockMetrics
	manager     *ScheduleManager
}

func newHarness(t *testing.T, levels ...domain.InventoryLevel) *harness {
	t.Helper()

	h := &harness{
		clock:       newTestClock(),
		cacheStore:  mocks.NewMockCacheStore(),
		subs:        mocks.NewMockWebhookStore(),
		sender:      mocks.NewMockWebhookSender(),
		broadcaster: mocks.NewMockBroadcaster(),
		adapter:     mocks.NewMockProviderAdapter("shipbob", levels...),
		items:       mocks.NewMockInventoryStore(),
		products:    mocks.NewMockProductStore(),
		schedules:   mocks.NewMockScheduleStore(),
		executions:  mocks.NewMockExecutionStore(),
		lock:        mocks.NewMockDistributedLock(),
		notifier:    mocks.NewMockNotifier(),
		metrics:     mocks.NewMockMetrics(),
	}
	h.cacheStore.SetClock(h.clock.Now)
	h.registry = mocks.NewMockProviderRegistry(h.adapter)
	logger := quietLogger()

	h.cache = NewCacheService(CacheServiceConfig{Store: h.cacheStore, Metrics: h.metrics, Logger: logger})
	h.dispatcher = NewWebhookDispatcher(WebhookDispatcherConfig{
		Store:   h.subs,
		Sender:  h.sender,
		Metrics: h.metrics,
		Logger:  logger,
		Now:     h.clock.Now,
	})
	h.progress = NewProgressTracker(ProgressTrackerConfig{
		Cache:       h.cache,
		Dispatcher:  h.dispatcher,
		Broadcaster: h.broadcaster,
		Logger:      logger,
		Now:         h.clock.Now,
	})
	h.inventory = NewInventoryService(InventoryServiceConfig{
		Registry:   h.registry,
		Store:      h.items,
		Products:   h.products,
		Cache:      h.cache,
		Progress:   h.progress,
		Dispatcher: h.dispatcher,
		Metrics:    h.metrics,
		Logger:     logger,
		Now:        h.clock.Now,
		BatchSize:  2,
		Workers:    4,
	})
	h.manager = NewScheduleManager(ScheduleManagerConfig{
		Schedules:  h.schedules,
		Executions: h.executions,
		Inventory:  h.inventory,
		Progress:   h.progress,
		Cache:      h.cache,
		Lock:       h.lock,
		Notifier:   h.notifier,
		Providers:  h.registry,
		Metrics:    h.metrics,
		Logger:     logger,
		Now:        h.clock.Now,
	})
	return h
}

// seedItem stores an inventory record for the shipbob provider
func (h *harness) seedItem(t *testing.T, sku string, quantity, low int) {
	t.Helper()
	item := &domain.InventoryItem{
		SKU:        sku,
		Provider:   "shipbob",
		Thresholds: domain.Thresholds{Low: low},
	}
	item.SetQuantity(quantity)
	if err := h.items.Save(t.Context(), item); err != nil {
		t.Fatalf("seed item: %v", err)
	}
}

// subscribeSystem registers a system-scoped subscription for event
func (h *harness) subscribeSystem(t *testing.T, url string, events ...string) *domain.WebhookSubscription {
	t.Helper()
	sub, err := h.dispatcher.Subscribe(t.Context(), domain.SystemUserID, domain.CreateSubscriptionRequest{
		URL:    url,
		Events: events,
		Secret: "s3cret",
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	return sub
}
