// Package delivery はチャンネル投稿のユーザー会話への中継と自動失効を行う。
package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alexdevfreak/plansfilesharecombined/internal/catalog"
	"github.com/alexdevfreak/plansfilesharecombined/internal/model"
)

// Relay はメッセージの中継と削除を行うトランスポートのインターフェース。
type Relay interface {
	// CopyMessage はfromChatIDのmessageIDをchatIDへ転送元を伏せてコピーし、
	// 新しいメッセージIDを返す。
	CopyMessage(ctx context.Context, chatID, fromChatID, messageID int64) (int64, error)

	// DeleteMessage はchatIDのmessageIDを削除する。
	DeleteMessage(ctx context.Context, chatID, messageID int64) error
}

// DeliveryStore は配信レコードの永続化に必要な操作のサブセット。
type DeliveryStore interface {
	Create(ctx context.Context, delivery *model.Delivery) error
	DeleteByID(ctx context.Context, id string) error
	ListPending(ctx context.Context) ([]*model.Delivery, error)
}

// DeliveryRecorder は配信のメトリクスを記録するインターフェース。
type DeliveryRecorder interface {
	RecordDelivery(bucket string)
	RecordRelayFailure(bucket string)
}

// Service はアイテムをユーザーの会話へ中継し、保持期間経過後の自動削除を予約する。
type Service struct {
	catalog   *catalog.Catalog
	relay     Relay
	store     DeliveryStore
	scheduler *Scheduler
	metrics   DeliveryRecorder
	logger    *slog.Logger
	retention time.Duration
	now       func() time.Time
}

// NewService は新しい配信サービスを生成する。
func NewService(cat *catalog.Catalog, relay Relay, store DeliveryStore, scheduler *Scheduler, metrics DeliveryRecorder, logger *slog.Logger, retention time.Duration) *Service {
	return &Service{
		catalog:   cat,
		relay:     relay,
		store:     store,
		scheduler: scheduler,
		metrics:   metrics,
		logger:    logger,
		retention: retention,
		now:       time.Now,
	}
}

// Retention は配信コピーの保持期間を返す。
func (s *Service) Retention() time.Duration {
	return s.retention
}

// Deliver はバケットのitemIDをchatIDへ中継し、失効タイマーを装填して配信レコードを返す。
// 中継に失敗した場合はレコードを作らずRELAY_FAILEDを返す。
func (s *Service) Deliver(ctx context.Context, chatID int64, bucket string, itemID int64) (*model.Delivery, error) {
	channelID, ok := s.catalog.ChannelFor(bucket)
	if !ok {
		return nil, model.NewBucketUnconfiguredError(bucket)
	}

	messageID, err := s.relay.CopyMessage(ctx, chatID, channelID, itemID)
	if err != nil {
		s.metrics.RecordRelayFailure(bucket)
		s.logger.Warn("メッセージの中継に失敗した",
			"chat_id", chatID,
			"bucket", bucket,
			"item_id", itemID,
			"error", err,
		)
		return nil, model.NewRelayFailedError(err.Error())
	}

	d := &model.Delivery{
		ID:        uuid.New().String(),
		ChatID:    chatID,
		MessageID: messageID,
		Bucket:    bucket,
		ItemID:    itemID,
		ExpiresAt: s.now().Add(s.retention),
	}

	// レコード作成に失敗してもタイマーは装填する。削除義務はプロセス内で果たされ、
	// 再起動で失われる可能性だけが残る。
	if err := s.store.Create(ctx, d); err != nil {
		s.logger.Error("配信レコードの作成に失敗した", "delivery_id", d.ID, "error", err)
	}
	s.scheduler.Arm(d)

	s.metrics.RecordDelivery(bucket)
	s.logger.Info("アイテムを配信した",
		"chat_id", chatID,
		"bucket", bucket,
		"item_id", itemID,
		"delivery_id", d.ID,
		"expires_at", d.ExpiresAt,
	)

	return d, nil
}

// ListPending は残存する全配信レコードを返す。運用APIから参照される。
func (s *Service) ListPending(ctx context.Context) ([]*model.Delivery, error) {
	pending, err := s.store.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("配信レコードの取得に失敗しました: %w", err)
	}
	return pending, nil
}
