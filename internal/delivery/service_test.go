package delivery

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alexdevfreak/plansfilesharecombined/internal/catalog"
	"github.com/alexdevfreak/plansfilesharecombined/internal/model"
)

type mockRelay struct {
	mu          sync.Mutex
	copyFunc    func(ctx context.Context, chatID, fromChatID, messageID int64) (int64, error)
	deleteFunc  func(ctx context.Context, chatID, messageID int64) error
	deleteCalls []int64
}

func (m *mockRelay) CopyMessage(ctx context.Context, chatID, fromChatID, messageID int64) (int64, error) {
	if m.copyFunc != nil {
		return m.copyFunc(ctx, chatID, fromChatID, messageID)
	}
	return messageID + 1000, nil
}

func (m *mockRelay) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	m.mu.Lock()
	m.deleteCalls = append(m.deleteCalls, messageID)
	m.mu.Unlock()
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, chatID, messageID)
	}
	return nil
}

func (m *mockRelay) deletedIDs() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.deleteCalls...)
}

type mockDeliveryStore struct {
	mu       sync.Mutex
	created  []*model.Delivery
	deleted  []string
	listFunc func(ctx context.Context) ([]*model.Delivery, error)
}

func (m *mockDeliveryStore) Create(ctx context.Context, d *model.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, d)
	return nil
}

func (m *mockDeliveryStore) DeleteByID(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockDeliveryStore) ListPending(ctx context.Context) ([]*model.Delivery, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return nil, nil
}

func (m *mockDeliveryStore) deletedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}

type mockRecorder struct {
	mu            sync.Mutex
	deliveries    int
	relayFailures int
	expiries      int
}

func (m *mockRecorder) RecordDelivery(bucket string) {
	m.mu.Lock()
	m.deliveries++
	m.mu.Unlock()
}

func (m *mockRecorder) RecordRelayFailure(bucket string) {
	m.mu.Lock()
	m.relayFailures++
	m.mu.Unlock()
}

func (m *mockRecorder) RecordExpiryFired() {
	m.mu.Lock()
	m.expiries++
	m.mu.Unlock()
}

func (m *mockRecorder) expiryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expiries
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Parse(`{"CT1-ICT1": -100123}`)
	if err != nil {
		t.Fatalf("カタログの構築に失敗: %v", err)
	}
	return cat
}

func newTestService(t *testing.T, relay *mockRelay, retention time.Duration) (*Service, *mockDeliveryStore, *mockRecorder) {
	t.Helper()
	store := &mockDeliveryStore{}
	rec := &mockRecorder{}
	sched := NewScheduler(relay, store, rec, testLogger())
	t.Cleanup(sched.Stop)
	svc := NewService(testCatalog(t), relay, store, sched, rec, testLogger(), retention)
	return svc, store, rec
}

func TestService_Deliver_Success(t *testing.T) {
	relay := &mockRelay{
		copyFunc: func(ctx context.Context, chatID, fromChatID, messageID int64) (int64, error) {
			if chatID != 500 {
				t.Errorf("chatID = %d, want 500", chatID)
			}
			if fromChatID != -100123 {
				t.Errorf("fromChatID = %d, want -100123", fromChatID)
			}
			if messageID != 42 {
				t.Errorf("messageID = %d, want 42", messageID)
			}
			return 900, nil
		},
	}
	svc, store, rec := newTestService(t, relay, time.Hour)

	before := time.Now()
	d, err := svc.Deliver(context.Background(), 500, "CT1-ICT1", 42)
	if err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	if d.ID == "" {
		t.Error("配信IDが空")
	}
	if d.ChatID != 500 || d.MessageID != 900 || d.Bucket != "CT1-ICT1" || d.ItemID != 42 {
		t.Errorf("配信レコードが不正: %+v", d)
	}
	wantExpiry := before.Add(time.Hour)
	if d.ExpiresAt.Before(wantExpiry.Add(-time.Minute)) || d.ExpiresAt.After(wantExpiry.Add(time.Minute)) {
		t.Errorf("ExpiresAt = %v, want %v付近", d.ExpiresAt, wantExpiry)
	}

	if len(store.created) != 1 {
		t.Errorf("レコード作成回数 = %d, want 1", len(store.created))
	}
	if rec.deliveries != 1 {
		t.Errorf("配信メトリクス = %d, want 1", rec.deliveries)
	}
}

func TestService_Deliver_UnconfiguredBucket(t *testing.T) {
	svc, store, _ := newTestService(t, &mockRelay{}, time.Hour)

	_, err := svc.Deliver(context.Background(), 500, "CT9-ICT9", 42)
	var botErr *model.BotError
	if !errors.As(err, &botErr) || botErr.Code != model.ErrCodeBucketUnconfigured {
		t.Fatalf("err = %v, want BUCKET_UNCONFIGURED", err)
	}
	if len(store.created) != 0 {
		t.Error("未設定バケットでレコードが作成された")
	}
}

func TestService_Deliver_RelayFailure(t *testing.T) {
	relay := &mockRelay{
		copyFunc: func(ctx context.Context, chatID, fromChatID, messageID int64) (int64, error) {
			return 0, errors.New("forbidden: bot is not a member")
		},
	}
	svc, store, rec := newTestService(t, relay, time.Hour)

	_, err := svc.Deliver(context.Background(), 500, "CT1-ICT1", 42)
	var botErr *model.BotError
	if !errors.As(err, &botErr) || botErr.Code != model.ErrCodeRelayFailed {
		t.Fatalf("err = %v, want RELAY_FAILED", err)
	}
	if len(store.created) != 0 {
		t.Error("中継失敗でレコードが作成された")
	}
	if rec.relayFailures != 1 {
		t.Errorf("中継失敗メトリクス = %d, want 1", rec.relayFailures)
	}
}

func TestScheduler_FireDeletesCopyAndRecord(t *testing.T) {
	relay := &mockRelay{}
	store := &mockDeliveryStore{}
	rec := &mockRecorder{}
	sched := NewScheduler(relay, store, rec, testLogger())
	defer sched.Stop()

	d := &model.Delivery{
		ID:        "d-1",
		ChatID:    500,
		MessageID: 900,
		Bucket:    "CT1-ICT1",
		ExpiresAt: time.Now().Add(20 * time.Millisecond),
	}
	sched.Arm(d)

	deadline := time.After(2 * time.Second)
	for rec.expiryCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("タイマーが発火しなかった")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if got := relay.deletedIDs(); len(got) != 1 || got[0] != 900 {
		t.Errorf("削除されたメッセージ = %v, want [900]", got)
	}
	if got := store.deletedIDs(); len(got) != 1 || got[0] != "d-1" {
		t.Errorf("削除されたレコード = %v, want [d-1]", got)
	}
	if sched.PendingCount() != 0 {
		t.Errorf("発火後のタイマー数 = %d, want 0", sched.PendingCount())
	}
}

func TestScheduler_FireSwallowsDeleteFailure(t *testing.T) {
	relay := &mockRelay{
		deleteFunc: func(ctx context.Context, chatID, messageID int64) error {
			return errors.New("message to delete not found")
		},
	}
	store := &mockDeliveryStore{}
	rec := &mockRecorder{}
	sched := NewScheduler(relay, store, rec, testLogger())
	defer sched.Stop()

	sched.Arm(&model.Delivery{
		ID:        "d-2",
		ChatID:    500,
		MessageID: 901,
		ExpiresAt: time.Now().Add(-time.Minute),
	})

	deadline := time.After(2 * time.Second)
	for rec.expiryCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("タイマーが発火しなかった")
		case <-time.After(10 * time.Millisecond):
		}
	}

	// 削除失敗してもレコードは消える
	if got := store.deletedIDs(); len(got) != 1 || got[0] != "d-2" {
		t.Errorf("削除されたレコード = %v, want [d-2]", got)
	}
}

func TestScheduler_ReArmPending(t *testing.T) {
	relay := &mockRelay{}
	store := &mockDeliveryStore{
		listFunc: func(ctx context.Context) ([]*model.Delivery, error) {
			return []*model.Delivery{
				{ID: "d-3", ChatID: 1, MessageID: 10, ExpiresAt: time.Now().Add(time.Hour)},
				{ID: "d-4", ChatID: 2, MessageID: 20, ExpiresAt: time.Now().Add(time.Hour)},
			}, nil
		},
	}
	sched := NewScheduler(relay, store, &mockRecorder{}, testLogger())
	defer sched.Stop()

	count, err := sched.ReArmPending(context.Background())
	if err != nil {
		t.Fatalf("ReArmPending() error = %v", err)
	}
	if count != 2 {
		t.Errorf("再装填件数 = %d, want 2", count)
	}
	if sched.PendingCount() != 2 {
		t.Errorf("タイマー数 = %d, want 2", sched.PendingCount())
	}
}

func TestScheduler_ReArmReplacesExistingTimer(t *testing.T) {
	sched := NewScheduler(&mockRelay{}, &mockDeliveryStore{}, &mockRecorder{}, testLogger())
	defer sched.Stop()

	d := &model.Delivery{ID: "d-5", ChatID: 1, MessageID: 10, ExpiresAt: time.Now().Add(time.Hour)}
	sched.Arm(d)
	sched.Arm(d)

	if sched.PendingCount() != 1 {
		t.Errorf("タイマー数 = %d, want 1", sched.PendingCount())
	}
}

func TestScheduler_Stop(t *testing.T) {
	sched := NewScheduler(&mockRelay{}, &mockDeliveryStore{}, &mockRecorder{}, testLogger())

	sched.Arm(&model.Delivery{ID: "d-6", ExpiresAt: time.Now().Add(time.Hour)})
	sched.Stop()

	if sched.PendingCount() != 0 {
		t.Errorf("Stop後のタイマー数 = %d, want 0", sched.PendingCount())
	}
}
