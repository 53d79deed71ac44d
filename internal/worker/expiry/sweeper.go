// Package expiry は失効済み配信レコードの後始末ジョブを提供する。
// タイマー発火後にレコード削除が失敗した行など、失効期限を大きく過ぎて
// 残存する配信レコードを定期バッチで削除する。
package expiry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alexdevfreak/plansfilesharecombined/internal/repository"
)

// SweeperJob は失効済み配信レコードの定期削除ジョブ。
// 装填中のタイマーと競合しないよう、失効からGraceを超えて経過した行のみを対象にする。
type SweeperJob struct {
	deliveries repository.DeliveryRepository
	logger     *slog.Logger
	Grace      time.Duration // 失効後この期間を超えた行のみ削除（デフォルト: 10分）
	now        func() time.Time
}

// NewSweeperJob は新しいSweeperJobを生成する。
func NewSweeperJob(deliveries repository.DeliveryRepository, logger *slog.Logger) *SweeperJob {
	return &SweeperJob{
		deliveries: deliveries,
		logger:     logger,
		Grace:      10 * time.Minute,
		now:        time.Now,
	}
}

// Run は失効からGraceを超えて経過した配信レコードを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *SweeperJob) Run(ctx context.Context) error {
	start := time.Now()
	cutoff := j.now().Add(-j.Grace)

	deleted, err := j.deliveries.DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("配信レコードの掃き出しに失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("配信レコードの掃き出しに失敗: %w", err)
	}

	if deleted > 0 {
		j.logger.Info("失効済み配信レコードを掃き出した",
			slog.Int64("deleted_count", deleted),
			slog.Time("cutoff", cutoff),
			slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
		)
	}

	return nil
}

// RunPeriodic はintervalごとにRunを実行する。ctxのキャンセルで停止する。
func (j *SweeperJob) RunPeriodic(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("定期掃き出しに失敗した", slog.String("error", err.Error()))
			}
		}
	}
}
