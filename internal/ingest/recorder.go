// Package ingest はソースチャンネルの新着投稿をインデックス用ストアに記録する。
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alexdevfreak/plansfilesharecombined/internal/catalog"
	"github.com/alexdevfreak/plansfilesharecombined/internal/model"
	"github.com/alexdevfreak/plansfilesharecombined/internal/repository"
	"github.com/alexdevfreak/plansfilesharecombined/internal/telegram"
)

// Recorder はカタログに登録済みのチャンネルからメディア付き投稿を記録する。
// 記録された投稿はインデックスの履歴ソースとして参照される。
type Recorder struct {
	catalog *catalog.Catalog
	items   repository.ChannelItemRepository
	logger  *slog.Logger
}

// NewRecorder は新しいRecorderを生成する。
func NewRecorder(cat *catalog.Catalog, items repository.ChannelItemRepository, logger *slog.Logger) *Recorder {
	return &Recorder{
		catalog: cat,
		items:   items,
		logger:  logger,
	}
}

// RecordChannelPost はチャンネル投稿を記録する。
// カタログ外のチャンネルやメディアを含まない投稿は無視する。
// 同一投稿の重複記録は保存層で冪等に処理される。
func (r *Recorder) RecordChannelPost(ctx context.Context, post *telegram.Message) error {
	if post == nil {
		return nil
	}
	if !r.catalog.ContainsChannel(post.Chat.ID) {
		return nil
	}

	kind, ok := post.MediaKind()
	if !ok {
		return nil
	}

	item := &model.ChannelItem{
		ChannelID: post.Chat.ID,
		MessageID: post.MessageID,
		Kind:      model.MediaKind(kind),
	}
	if err := r.items.Append(ctx, item); err != nil {
		return fmt.Errorf("チャンネル投稿の記録に失敗しました: %w", err)
	}

	r.logger.Debug("チャンネル投稿を記録した",
		"channel_id", item.ChannelID,
		"message_id", item.MessageID,
		"kind", item.Kind,
	)
	return nil
}
