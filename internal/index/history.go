package index

import (
	"context"
	"fmt"

	"github.com/alexdevfreak/plansfilesharecombined/internal/repository"
)

// StoreHistorySource は記録済みチャンネル投稿テーブルを履歴ソースとして提供する。
type StoreHistorySource struct {
	items repository.ChannelItemRepository
}

// NewStoreHistorySource は新しいStoreHistorySourceを生成する。
func NewStoreHistorySource(items repository.ChannelItemRepository) *StoreHistorySource {
	return &StoreHistorySource{items: items}
}

// History はチャンネルの直近limit件の投稿メッセージIDを昇順で返す。
func (s *StoreHistorySource) History(ctx context.Context, channelID int64, limit int) ([]int64, error) {
	ids, err := s.items.ListByChannel(ctx, channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("チャンネル投稿の取得に失敗しました: %w", err)
	}
	return ids, nil
}

// compile-time interface check
var _ HistorySource = (*StoreHistorySource)(nil)
