package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alexdevfreak/plansfilesharecombined/internal/model"
)

// ExpiryRecorder は失効タイマー発火のメトリクスを記録するインターフェース。
type ExpiryRecorder interface {
	RecordExpiryFired()
}

// Scheduler は配信済みコピーの失効タイマーを管理する。
// タイマーはプロセス内のワンショットだが、裏付けのレコードは永続化されており、
// ReArmPendingによって再起動をまたいで削除義務が引き継がれる。
type Scheduler struct {
	relay      Relay
	deliveries DeliveryStore
	metrics    ExpiryRecorder
	logger     *slog.Logger
	fireWait   time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
	now    func() time.Time
}

// NewScheduler は新しいSchedulerを生成する。
func NewScheduler(relay Relay, deliveries DeliveryStore, metrics ExpiryRecorder, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		relay:      relay,
		deliveries: deliveries,
		metrics:    metrics,
		logger:     logger,
		fireWait:   30 * time.Second,
		timers:     make(map[string]*time.Timer),
		now:        time.Now,
	}
}

// Arm は配信に対する失効タイマーを装填する。
// 期限を過ぎている場合は即座に発火する。同一IDの再装填は既存タイマーを置き換える。
func (s *Scheduler) Arm(d *model.Delivery) {
	delay := d.ExpiresAt.Sub(s.now())
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.timers[d.ID]; ok {
		prev.Stop()
	}
	s.timers[d.ID] = time.AfterFunc(delay, func() {
		s.fire(d)
	})
}

// ReArmPending は永続化された全配信レコードのタイマーを装填し直し、件数を返す。
// プロセス起動時に1回呼ぶ。既に期限切れのレコードは即座に発火する。
func (s *Scheduler) ReArmPending(ctx context.Context) (int, error) {
	pending, err := s.deliveries.ListPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("配信レコードの取得に失敗しました: %w", err)
	}

	for _, d := range pending {
		s.Arm(d)
	}

	if len(pending) > 0 {
		s.logger.Info("失効タイマーを再装填した", "count", len(pending))
	}
	return len(pending), nil
}

// PendingCount は装填中のタイマー数を返す。
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop は全タイマーを停止する。レコードは残るため、次回起動時に再装填される。
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}

// fire は失効した配信コピーを会話から削除し、レコードを消す。
// コピーの削除失敗（ユーザーによる手動削除済み等）は握りつぶす。
func (s *Scheduler) fire(d *model.Delivery) {
	ctx, cancel := context.WithTimeout(context.Background(), s.fireWait)
	defer cancel()

	if err := s.relay.DeleteMessage(ctx, d.ChatID, d.MessageID); err != nil {
		s.logger.Warn("失効コピーの削除に失敗した",
			"delivery_id", d.ID,
			"chat_id", d.ChatID,
			"message_id", d.MessageID,
			"error", err,
		)
	}

	if err := s.deliveries.DeleteByID(ctx, d.ID); err != nil {
		s.logger.Error("配信レコードの削除に失敗した", "delivery_id", d.ID, "error", err)
	}

	s.mu.Lock()
	delete(s.timers, d.ID)
	s.mu.Unlock()

	s.metrics.RecordExpiryFired()
	s.logger.Debug("失効タイマーが発火した", "delivery_id", d.ID, "chat_id", d.ChatID)
}
