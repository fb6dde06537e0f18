package postgres

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
)

// setupTestDB connects to SYNCBRIDGE_TEST_DATABASE_URL and resets the tables.
// Tests are skipped when it is unset.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("SYNCBRIDGE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("SYNCBRIDGE_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := Connect(ctx, DefaultConfig(url))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.InitSchema(ctx); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	if _, err := db.ExecContext(ctx, `TRUNCATE schedules, executions, inventory_items, products,
		webhook_subscriptions, connections, leases`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return db
}

var storeNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestScheduleStore_RoundTripAndDue(t *testing.T) {
	db := setupTestDB(t)
	store := NewScheduleStore(db)
	ctx := context.Background()

	due := storeNow.Add(-time.Minute)
	later := storeNow.Add(time.Hour)
	for _, s := range []*domain.Schedule{
		{ID: "due", Provider: "shipbob", Enabled: true, NextRun: &due, Status: domain.ScheduleStatusActive,
			Frequency: domain.Frequency{Type: domain.FrequencyInterval, Value: "PT1H"},
			Filters:   domain.ScheduleFilters{Warehouses: []string{"w1"}},
			Notifications: domain.NotificationTargets{
				Emails: []string{"ops@example.com"},
				Slack:  &domain.SlackTarget{Webhook: "https://hooks.slack.com/x"},
			},
			CreatedAt: storeNow, UpdatedAt: storeNow},
		{ID: "later", Provider: "shipbob", Enabled: true, NextRun: &later, Status: domain.ScheduleStatusActive, CreatedAt: storeNow, UpdatedAt: storeNow},
		{ID: "disabled", Provider: "stripe", Enabled: false, NextRun: &due, Status: domain.ScheduleStatusPaused, CreatedAt: storeNow, UpdatedAt: storeNow},
	} {
		if err := store.Save(ctx, s); err != nil {
			t.Fatalf("save %s: %v", s.ID, err)
		}
	}

	got, err := store.Get(ctx, "due")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Frequency.Value != "PT1H" || got.Filters.Warehouses[0] != "w1" || got.Notifications.Slack == nil {
		t.Errorf("json columns not restored: %+v", got)
	}
	if !got.NextRun.Equal(due) {
		t.Errorf("next run = %v, want %v", got.NextRun, due)
	}

	dueList, err := store.ListDue(ctx, storeNow)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(dueList) != 1 || dueList[0].ID != "due" {
		t.Errorf("due = %v", dueList)
	}

	list, _ := store.List(ctx, domain.ScheduleFilter{Provider: "shipbob"})
	if len(list) != 2 {
		t.Errorf("provider filter returned %d", len(list))
	}

	if err := store.Delete(ctx, "due"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "due"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.Delete(ctx, "due"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestExecutionStore_RetriesAndHistory(t *testing.T) {
	db := setupTestDB(t)
	store := NewExecutionStore(db)
	ctx := context.Background()

	retryAt := storeNow.Add(-time.Second)
	first := &domain.Execution{ID: "e1", ScheduleID: "s1", SyncID: "x1", Provider: "shipbob",
		Status: domain.ExecutionStatusFailed, StartTime: storeNow.Add(-time.Hour), NextRetry: &retryAt, RetryCount: 1, Error: "boom"}
	second := &domain.Execution{ID: "e2", ScheduleID: "s1", SyncID: "x2", Provider: "shipbob",
		Status: domain.ExecutionStatusCompleted, StartTime: storeNow,
		Result: &domain.SyncResult{Success: true, Stats: domain.SyncStats{Updated: 3}}}
	for _, e := range []*domain.Execution{first, second} {
		if err := store.Save(ctx, e); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	retries, err := store.ListDueRetries(ctx, storeNow)
	if err != nil || len(retries) != 1 || retries[0].ID != "e1" {
		t.Fatalf("due retries = %v, %v", retries, err)
	}
	latest, err := store.LatestFailed(ctx, "s1")
	if err != nil || latest.ID != "e1" {
		t.Fatalf("latest failed = %v, %v", latest, err)
	}

	history, _ := store.ListBySchedule(ctx, "s1", 10)
	if len(history) != 2 || history[0].ID != "e2" {
		t.Fatalf("history order wrong: %v", history)
	}
	if history[0].Result == nil || history[0].Result.Stats.Updated != 3 {
		t.Errorf("result not restored: %+v", history[0].Result)
	}
}

func TestInventoryStore_OptimisticUpdate(t *testing.T) {
	db := setupTestDB(t)
	store := NewInventoryStore(db)
	ctx := context.Background()

	item := &domain.InventoryItem{SKU: "A1", Provider: "shipbob", Thresholds: domain.Thresholds{Low: 5},
		Metadata: map[string]any{"category": "mugs"}, UpdatedAt: storeNow}
	item.SetQuantity(10)
	if err := store.Save(ctx, item); err != nil {
		t.Fatalf("save: %v", err)
	}

	a, _ := store.Get(ctx, "A1")
	b, _ := store.Get(ctx, "A1")

	a.SetQuantity(7)
	if err := store.Update(ctx, a); err != nil {
		t.Fatalf("first update: %v", err)
	}
	b.SetQuantity(3)
	if err := store.Update(ctx, b); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	got, _ := store.Get(ctx, "A1")
	if got.Quantity != 7 || got.Category() != "mugs" || got.Version != a.Version {
		t.Errorf("unexpected item %+v", got)
	}

	many, err := store.GetMany(ctx, []string{"A1", "missing"})
	if err != nil || len(many) != 1 {
		t.Errorf("get many = %v, %v", many, err)
	}

	missing := &domain.InventoryItem{SKU: "nope"}
	if err := store.Update(ctx, missing); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestConnectionStore_SecretsEncrypted(t *testing.T) {
	db := setupTestDB(t)
	enc, _ := NewSecretEncryptor(testKey)
	store := NewConnectionStore(db, enc)
	ctx := context.Background()

	conn := &domain.Connection{ID: "c1", UserID: "u1", Provider: "shipbob", AuthType: domain.AuthTypeOAuth,
		AccessToken: "at", RefreshToken: "rt", Status: domain.ConnectionStatusActive, CreatedAt: storeNow, UpdatedAt: storeNow}
	if err := store.Save(ctx, conn); err != nil {
		t.Fatalf("save: %v", err)
	}

	var raw []byte
	if err := db.QueryRowContext(ctx, `SELECT secrets FROM connections WHERE id = 'c1'`).Scan(&raw); err != nil {
		t.Fatalf("raw: %v", err)
	}
	if len(raw) == 0 || raw[0] != secretVersion || bytes.Contains(raw, []byte(`"refresh_token"`)) {
		t.Errorf("secrets not sealed: %x", raw)
	}

	if err := store.UpdateTokens(ctx, "c1", &domain.OAuthToken{AccessToken: "at2", ExpiresAt: storeNow.Add(time.Hour)}); err != nil {
		t.Fatalf("update tokens: %v", err)
	}
	got, err := store.GetByProvider(ctx, "u1", "shipbob")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.AccessToken != "at2" || got.RefreshToken != "rt" || got.TokenExpiresAt == nil {
		t.Errorf("tokens not updated: %+v", got)
	}

	if err := store.UpdateStatus(ctx, "c1", domain.ConnectionStatusNeedsReauth); err != nil {
		t.Fatalf("update status: %v", err)
	}
	got, _ = store.Get(ctx, "c1")
	if got.Status != domain.ConnectionStatusNeedsReauth {
		t.Errorf("status = %s", got.Status)
	}
}

func TestWebhookStore_EventFiltering(t *testing.T) {
	db := setupTestDB(t)
	enc, _ := NewSecretEncryptor(testKey)
	store := NewWebhookStore(db, enc)
	ctx := context.Background()

	for _, sub := range []*domain.WebhookSubscription{
		{ID: "w1", UserID: "u1", URL: "https://a", Events: []string{"x", "y"}, Secret: "k1", Active: true, CreatedAt: storeNow},
		{ID: "w2", UserID: "u1", URL: "https://b", Events: []string{"y"}, Secret: "k2", Active: true, CreatedAt: storeNow},
		{ID: "w3", UserID: "u1", URL: "https://c", Events: []string{"x"}, Secret: "k3", Active: false, CreatedAt: storeNow},
	} {
		if err := store.Save(ctx, sub); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	subs, err := store.ListActiveForEvent(ctx, "u1", "x")
	if err != nil || len(subs) != 1 || subs[0].ID != "w1" || subs[0].Secret != "k1" {
		t.Fatalf("active for x = %v, %v", subs, err)
	}

	if err := store.MarkFailed(ctx, "w1", "status 500"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := store.MarkTriggered(ctx, "w1", storeNow); err != nil {
		t.Fatalf("mark triggered: %v", err)
	}
	got, _ := store.Get(ctx, "w1")
	if got.LastError != "" || got.LastTriggered == nil {
		t.Errorf("unexpected delivery state %+v", got)
	}

	if err := store.Delete(ctx, "w1", "someone-else"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for foreign delete, got %v", err)
	}
}

func TestLeaseLock(t *testing.T) {
	db := setupTestDB(t)
	a, b := NewLeaseLock(db), NewLeaseLock(db)
	ctx := context.Background()

	ok, err := a.Acquire(ctx, "schedule:lease:s1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first acquire = %v, %v", ok, err)
	}
	if ok, _ := b.Acquire(ctx, "schedule:lease:s1", time.Minute); ok {
		t.Error("second owner acquired a held lease")
	}
	if err := b.Extend(ctx, "schedule:lease:s1", time.Minute); err == nil {
		t.Error("foreign extend should fail")
	}

	if err := a.Release(ctx, "schedule:lease:s1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := b.Acquire(ctx, "schedule:lease:s1", time.Millisecond); !ok {
		t.Error("released lease should be available")
	}

	time.Sleep(20 * time.Millisecond)
	if ok, _ := a.Acquire(ctx, "schedule:lease:s1", time.Minute); !ok {
		t.Error("expired lease should be available")
	}
}
