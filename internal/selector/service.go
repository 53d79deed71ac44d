// Package selector はユーザーごとの進捗を踏まえて次に配信するアイテムを選択する。
package selector

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/alexdevfreak/plansfilesharecombined/internal/model"
	"github.com/alexdevfreak/plansfilesharecombined/internal/repository"
)

// Mode はアイテム選択の方式を表す。
type Mode string

const (
	// ModeRandomUnseen は未閲覧アイテムから一様ランダムに選択する。
	// 全件閲覧済みの場合は閲覧履歴をリセットして全体から選び直す。
	ModeRandomUnseen Mode = "random_unseen"
	// ModeSequentialNext はカーソルの次の位置のアイテムを選択する。
	// 末尾に達したら先頭に巻き戻る。
	ModeSequentialNext Mode = "sequential_next"
)

// Indexer はバケットのインデックスを提供するインターフェース。
type Indexer interface {
	IndexOf(ctx context.Context, bucket string) ([]int64, error)
}

// Service はインデックスと進捗からアイテムを選択する。
type Service struct {
	index    Indexer
	progress repository.ProgressRepository
	logger   *slog.Logger
	randInt  func(n int) int
}

// NewService は新しいセレクターを生成する。
func NewService(index Indexer, progress repository.ProgressRepository, logger *slog.Logger) *Service {
	return &Service{
		index:    index,
		progress: progress,
		logger:   logger,
		randInt:  rand.Intn,
	}
}

// Select はバケットから次のアイテムを1件選択し、進捗を更新して返す。
// インデックスが空（チャンネル未割り当てを含む）の場合は選択なしとして
// (0, false, nil) を返し、進捗は一切変更しない。
func (s *Service) Select(ctx context.Context, userID int64, bucket string, mode Mode) (int64, bool, error) {
	ids, err := s.index.IndexOf(ctx, bucket)
	if err != nil {
		return 0, false, fmt.Errorf("インデックスの取得に失敗しました: %w", err)
	}
	if len(ids) == 0 {
		return 0, false, nil
	}

	prog, err := s.progress.FindByUserAndBucket(ctx, userID, bucket)
	if err != nil {
		return 0, false, fmt.Errorf("進捗の取得に失敗しました: %w", err)
	}
	if prog == nil {
		prog = &model.Progress{
			UserID: userID,
			Bucket: bucket,
			Cursor: -1,
		}
	}

	var itemID int64
	switch mode {
	case ModeSequentialNext:
		itemID = s.selectSequential(prog, ids)
	default:
		itemID = s.selectRandom(prog, ids)
	}

	if err := s.progress.Upsert(ctx, prog); err != nil {
		return 0, false, fmt.Errorf("進捗の保存に失敗しました: %w", err)
	}

	return itemID, true, nil
}

// selectRandom は未閲覧アイテムから一様ランダムに1件選ぶ。
// 未閲覧がなければ閲覧履歴をリセットして全体から選ぶ。
// カーソルは選択位置に揃える。順次選択と混在した際の基準点になる。
func (s *Service) selectRandom(prog *model.Progress, ids []int64) int64 {
	unseen := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !prog.HasSeen(id) {
			unseen = append(unseen, id)
		}
	}
	if len(unseen) == 0 {
		prog.Seen = nil
		unseen = ids
	}

	itemID := unseen[s.randInt(len(unseen))]
	prog.Seen = append(prog.Seen, itemID)
	if pos := position(ids, itemID); pos >= 0 {
		prog.Cursor = pos
	}
	return itemID
}

// selectSequential はカーソルの次の位置のアイテムを選ぶ。
func (s *Service) selectSequential(prog *model.Progress, ids []int64) int64 {
	cursor := prog.Cursor
	if cursor < -1 || cursor >= len(ids) {
		cursor = -1
	}
	cursor = (cursor + 1) % len(ids)

	itemID := ids[cursor]
	prog.Cursor = cursor
	if !prog.HasSeen(itemID) {
		prog.Seen = append(prog.Seen, itemID)
	}
	return itemID
}

func position(ids []int64, itemID int64) int {
	for i, id := range ids {
		if id == itemID {
			return i
		}
	}
	return -1
}
