package selector

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/alexdevfreak/plansfilesharecombined/internal/model"
)

type mockIndexer struct {
	indexFunc func(ctx context.Context, bucket string) ([]int64, error)
}

func (m *mockIndexer) IndexOf(ctx context.Context, bucket string) ([]int64, error) {
	return m.indexFunc(ctx, bucket)
}

type mockProgressRepo struct {
	findFunc func(ctx context.Context, userID int64, bucket string) (*model.Progress, error)
	upserted []*model.Progress
}

func (m *mockProgressRepo) FindByUserAndBucket(ctx context.Context, userID int64, bucket string) (*model.Progress, error) {
	if m.findFunc != nil {
		return m.findFunc(ctx, userID, bucket)
	}
	return nil, nil
}

func (m *mockProgressRepo) Upsert(ctx context.Context, prog *model.Progress) error {
	m.upserted = append(m.upserted, prog)
	return nil
}

func newTestService(index []int64, prog *model.Progress) (*Service, *mockProgressRepo) {
	repo := &mockProgressRepo{
		findFunc: func(ctx context.Context, userID int64, bucket string) (*model.Progress, error) {
			return prog, nil
		},
	}
	indexer := &mockIndexer{
		indexFunc: func(ctx context.Context, bucket string) ([]int64, error) {
			return index, nil
		},
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewService(indexer, repo, logger), repo
}

func TestService_Select_EmptyIndex(t *testing.T) {
	svc, repo := newTestService(nil, nil)

	itemID, ok, err := svc.Select(context.Background(), 100, "CT1-ICT1", ModeRandomUnseen)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if ok {
		t.Errorf("空インデックスで選択された: item_id=%d", itemID)
	}
	if len(repo.upserted) != 0 {
		t.Error("空インデックスで進捗が変更された")
	}
}

func TestService_Select_RandomPicksUnseen(t *testing.T) {
	prog := &model.Progress{
		UserID: 100,
		Bucket: "CT1-ICT1",
		Seen:   []int64{10, 30},
		Cursor: 2,
	}
	svc, repo := newTestService([]int64{10, 20, 30}, prog)
	svc.randInt = func(n int) int {
		if n != 1 {
			t.Errorf("未閲覧候補数 = %d, want 1", n)
		}
		return 0
	}

	itemID, ok, err := svc.Select(context.Background(), 100, "CT1-ICT1", ModeRandomUnseen)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if !ok || itemID != 20 {
		t.Errorf("itemID = %d, ok = %v, want 20, true", itemID, ok)
	}

	if len(repo.upserted) != 1 {
		t.Fatalf("進捗の保存回数 = %d, want 1", len(repo.upserted))
	}
	saved := repo.upserted[0]
	if !saved.HasSeen(20) {
		t.Error("選択されたアイテムが閲覧済みに追加されていない")
	}
	if saved.Cursor != 1 {
		t.Errorf("カーソル = %d, want 1", saved.Cursor)
	}
}

func TestService_Select_RandomResetsWhenExhausted(t *testing.T) {
	prog := &model.Progress{
		UserID: 100,
		Bucket: "CT1-ICT1",
		Seen:   []int64{10, 20, 30},
		Cursor: 1,
	}
	svc, repo := newTestService([]int64{10, 20, 30}, prog)
	svc.randInt = func(n int) int {
		if n != 3 {
			t.Errorf("リセット後の候補数 = %d, want 3", n)
		}
		return 2
	}

	itemID, ok, err := svc.Select(context.Background(), 100, "CT1-ICT1", ModeRandomUnseen)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if !ok || itemID != 30 {
		t.Errorf("itemID = %d, want 30", itemID)
	}

	saved := repo.upserted[0]
	if len(saved.Seen) != 1 || saved.Seen[0] != 30 {
		t.Errorf("リセット後のSeen = %v, want [30]", saved.Seen)
	}
	if saved.Cursor != 2 {
		t.Errorf("カーソル = %d, want 2", saved.Cursor)
	}
}

func TestService_Select_SequentialAdvancesCursor(t *testing.T) {
	tests := []struct {
		name       string
		cursor     int
		wantItem   int64
		wantCursor int
	}{
		{"初回は先頭", -1, 10, 0},
		{"途中から次へ", 0, 20, 1},
		{"末尾から先頭へ巻き戻る", 2, 10, 0},
		{"範囲外カーソルは先頭から", 99, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := &model.Progress{UserID: 100, Bucket: "CT1-ICT1", Cursor: tt.cursor}
			svc, repo := newTestService([]int64{10, 20, 30}, prog)

			itemID, ok, err := svc.Select(context.Background(), 100, "CT1-ICT1", ModeSequentialNext)
			if err != nil {
				t.Fatalf("Select() error = %v", err)
			}
			if !ok || itemID != tt.wantItem {
				t.Errorf("itemID = %d, want %d", itemID, tt.wantItem)
			}
			if saved := repo.upserted[0]; saved.Cursor != tt.wantCursor {
				t.Errorf("カーソル = %d, want %d", saved.Cursor, tt.wantCursor)
			}
		})
	}
}

func TestService_Select_SequentialDoesNotDuplicateSeen(t *testing.T) {
	prog := &model.Progress{
		UserID: 100,
		Bucket: "CT1-ICT1",
		Seen:   []int64{20},
		Cursor: 0,
	}
	svc, repo := newTestService([]int64{10, 20, 30}, prog)

	itemID, _, err := svc.Select(context.Background(), 100, "CT1-ICT1", ModeSequentialNext)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if itemID != 20 {
		t.Fatalf("itemID = %d, want 20", itemID)
	}
	if saved := repo.upserted[0]; len(saved.Seen) != 1 {
		t.Errorf("Seenが重複した: %v", saved.Seen)
	}
}

func TestService_Select_NewUserStartsFresh(t *testing.T) {
	svc, repo := newTestService([]int64{10, 20}, nil)
	svc.randInt = func(n int) int { return 0 }

	itemID, ok, err := svc.Select(context.Background(), 200, "CT1-ICT1", ModeRandomUnseen)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if !ok || itemID != 10 {
		t.Errorf("itemID = %d, want 10", itemID)
	}

	saved := repo.upserted[0]
	if saved.UserID != 200 || saved.Bucket != "CT1-ICT1" {
		t.Errorf("新規進捗のキーが不正: %+v", saved)
	}
}

func TestService_Select_IndexError(t *testing.T) {
	indexer := &mockIndexer{
		indexFunc: func(ctx context.Context, bucket string) ([]int64, error) {
			return nil, errors.New("接続エラー")
		},
	}
	repo := &mockProgressRepo{}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	svc := NewService(indexer, repo, logger)

	if _, _, err := svc.Select(context.Background(), 100, "CT1-ICT1", ModeRandomUnseen); err == nil {
		t.Error("インデックスエラーが伝播するはず")
	}
}
