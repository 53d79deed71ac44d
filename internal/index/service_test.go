package index

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alexdevfreak/plansfilesharecombined/internal/catalog"
	"github.com/alexdevfreak/plansfilesharecombined/internal/model"
	"github.com/alexdevfreak/plansfilesharecombined/internal/repository"
)

type mockHistorySource struct {
	historyFunc func(ctx context.Context, channelID int64, limit int) ([]int64, error)
	calls       atomic.Int64
}

func (m *mockHistorySource) History(ctx context.Context, channelID int64, limit int) ([]int64, error) {
	m.calls.Add(1)
	return m.historyFunc(ctx, channelID, limit)
}

type mockBuildRecorder struct {
	builds atomic.Int64
}

func (m *mockBuildRecorder) RecordIndexBuild(bucket string) {
	m.builds.Add(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Parse(`{"CT1-ICT1": -100123, "CT1-ICT2": -100456}`)
	if err != nil {
		t.Fatalf("カタログの構築に失敗: %v", err)
	}
	return cat
}

func TestService_IndexOf_BuildsOnceAndCaches(t *testing.T) {
	source := &mockHistorySource{
		historyFunc: func(ctx context.Context, channelID int64, limit int) ([]int64, error) {
			if channelID != -100123 {
				t.Errorf("channelID = %d, want -100123", channelID)
			}
			if limit != 2000 {
				t.Errorf("limit = %d, want 2000", limit)
			}
			return []int64{10, 20, 30}, nil
		},
	}
	rec := &mockBuildRecorder{}
	svc := NewService(testCatalog(t), source, rec, testLogger(), 2000)

	for i := 0; i < 3; i++ {
		ids, err := svc.IndexOf(context.Background(), "CT1-ICT1")
		if err != nil {
			t.Fatalf("IndexOf() error = %v", err)
		}
		if len(ids) != 3 || ids[0] != 10 || ids[2] != 30 {
			t.Errorf("ids = %v, want [10 20 30]", ids)
		}
	}

	if got := source.calls.Load(); got != 1 {
		t.Errorf("履歴ソースの呼び出し回数 = %d, want 1", got)
	}
	if got := rec.builds.Load(); got != 1 {
		t.Errorf("構築記録回数 = %d, want 1", got)
	}
}

func TestService_IndexOf_EmptyResultIsCached(t *testing.T) {
	source := &mockHistorySource{
		historyFunc: func(ctx context.Context, channelID int64, limit int) ([]int64, error) {
			return nil, nil
		},
	}
	svc := NewService(testCatalog(t), source, &mockBuildRecorder{}, testLogger(), 2000)

	for i := 0; i < 2; i++ {
		ids, err := svc.IndexOf(context.Background(), "CT1-ICT1")
		if err != nil {
			t.Fatalf("IndexOf() error = %v", err)
		}
		if len(ids) != 0 {
			t.Errorf("ids = %v, want empty", ids)
		}
	}

	if got := source.calls.Load(); got != 1 {
		t.Errorf("空結果もキャッシュされるべき: 呼び出し回数 = %d, want 1", got)
	}
}

func TestService_IndexOf_UnconfiguredBucket(t *testing.T) {
	source := &mockHistorySource{
		historyFunc: func(ctx context.Context, channelID int64, limit int) ([]int64, error) {
			return []int64{1}, nil
		},
	}
	svc := NewService(testCatalog(t), source, &mockBuildRecorder{}, testLogger(), 2000)

	ids, err := svc.IndexOf(context.Background(), "CT9-ICT9")
	if err != nil {
		t.Fatalf("IndexOf() error = %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("ids = %v, want empty", ids)
	}
	if got := source.calls.Load(); got != 0 {
		t.Errorf("未設定バケットで履歴ソースが呼ばれた: %d", got)
	}
}

func TestService_IndexOf_SourceErrorNotCached(t *testing.T) {
	failing := true
	source := &mockHistorySource{
		historyFunc: func(ctx context.Context, channelID int64, limit int) ([]int64, error) {
			if failing {
				return nil, errors.New("接続エラー")
			}
			return []int64{5}, nil
		},
	}
	svc := NewService(testCatalog(t), source, &mockBuildRecorder{}, testLogger(), 2000)

	if _, err := svc.IndexOf(context.Background(), "CT1-ICT1"); err == nil {
		t.Fatal("エラーが返るはず")
	}

	failing = false
	ids, err := svc.IndexOf(context.Background(), "CT1-ICT1")
	if err != nil {
		t.Fatalf("IndexOf() error = %v", err)
	}
	if len(ids) != 1 || ids[0] != 5 {
		t.Errorf("ids = %v, want [5]", ids)
	}
}

func TestService_Clear_ForcesRebuild(t *testing.T) {
	source := &mockHistorySource{
		historyFunc: func(ctx context.Context, channelID int64, limit int) ([]int64, error) {
			return []int64{1, 2}, nil
		},
	}
	svc := NewService(testCatalog(t), source, &mockBuildRecorder{}, testLogger(), 2000)

	if _, err := svc.IndexOf(context.Background(), "CT1-ICT1"); err != nil {
		t.Fatalf("IndexOf() error = %v", err)
	}
	svc.Clear("CT1-ICT1")
	if _, err := svc.IndexOf(context.Background(), "CT1-ICT1"); err != nil {
		t.Fatalf("IndexOf() error = %v", err)
	}

	if got := source.calls.Load(); got != 2 {
		t.Errorf("Clear後に再構築されるべき: 呼び出し回数 = %d, want 2", got)
	}
}

func TestService_ClearAll(t *testing.T) {
	source := &mockHistorySource{
		historyFunc: func(ctx context.Context, channelID int64, limit int) ([]int64, error) {
			return []int64{1}, nil
		},
	}
	svc := NewService(testCatalog(t), source, &mockBuildRecorder{}, testLogger(), 2000)

	if _, err := svc.IndexOf(context.Background(), "CT1-ICT1"); err != nil {
		t.Fatalf("IndexOf() error = %v", err)
	}
	if _, err := svc.IndexOf(context.Background(), "CT1-ICT2"); err != nil {
		t.Fatalf("IndexOf() error = %v", err)
	}
	if got := len(svc.CachedBuckets()); got != 2 {
		t.Errorf("CachedBuckets() = %d件, want 2件", got)
	}

	svc.ClearAll()
	if got := len(svc.CachedBuckets()); got != 0 {
		t.Errorf("ClearAll後のCachedBuckets() = %d件, want 0件", got)
	}
}

func TestService_IndexOf_ConcurrentBuildOnce(t *testing.T) {
	source := &mockHistorySource{
		historyFunc: func(ctx context.Context, channelID int64, limit int) ([]int64, error) {
			return []int64{100, 200}, nil
		},
	}
	svc := NewService(testCatalog(t), source, &mockBuildRecorder{}, testLogger(), 2000)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids, err := svc.IndexOf(context.Background(), "CT1-ICT1")
			if err != nil {
				t.Errorf("IndexOf() error = %v", err)
				return
			}
			if len(ids) != 2 {
				t.Errorf("ids = %v, want 2件", ids)
			}
		}()
	}
	wg.Wait()

	if got := source.calls.Load(); got != 1 {
		t.Errorf("並行構築は1回に抑制されるべき: 呼び出し回数 = %d", got)
	}
}

type mockChannelItemRepo struct {
	listFunc func(ctx context.Context, channelID int64, limit int) ([]int64, error)
}

func (m *mockChannelItemRepo) Append(ctx context.Context, item *model.ChannelItem) error {
	return nil
}

func (m *mockChannelItemRepo) ListByChannel(ctx context.Context, channelID int64, limit int) ([]int64, error) {
	return m.listFunc(ctx, channelID, limit)
}

var _ repository.ChannelItemRepository = (*mockChannelItemRepo)(nil)

func TestStoreHistorySource_History(t *testing.T) {
	repo := &mockChannelItemRepo{
		listFunc: func(ctx context.Context, channelID int64, limit int) ([]int64, error) {
			return []int64{11, 12}, nil
		},
	}
	source := NewStoreHistorySource(repo)

	ids, err := source.History(context.Background(), -100123, 2000)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(ids) != 2 || ids[0] != 11 || ids[1] != 12 {
		t.Errorf("ids = %v, want [11 12]", ids)
	}
}
