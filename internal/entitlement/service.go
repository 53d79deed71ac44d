// Package entitlement はサブスクリプションレジストリを提供する。
// ユーザーから有効期限への正本マップと、現在時刻に対する純粋な
// 資格判定述語を持つ。
package entitlement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alexdevfreak/plansfilesharecombined/internal/model"
	"github.com/alexdevfreak/plansfilesharecombined/internal/repository"
)

// Service はサブスクリプションレジストリの実装。
// 付与・剥奪は外部ストアへの耐久書き込みを伴い、資格判定は副作用を持たない。
type Service struct {
	repo   repository.SubscriptionRepository
	logger *slog.Logger
	now    func() time.Time // テストで差し替え可能
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.SubscriptionRepository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// IsEntitled はユーザーが現時点でコンテンツにアクセスできるかを返す。
// 永久→true、期限が厳密に未来→true、それ以外（不在・期限ちょうど・
// 期限切れ・読み取り失敗）→false。判定に失敗した場合は安全側に倒す。
func (s *Service) IsEntitled(ctx context.Context, userID int64) bool {
	sub, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		s.logger.Error("サブスクリプションの読み取りに失敗しました",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		return false
	}
	return sub.Active(s.now())
}

// Grant は期間指定に基づきサブスクリプションを付与する。
// 既存のサブスクリプションは無条件に上書きされ、期間の積み上げは行わない。
// 解釈できない期間指定は30日にフォールバックし、警告ログを残す。
func (s *Service) Grant(ctx context.Context, userID int64, durationSpec string) (*model.Subscription, error) {
	spec := ParseDurationSpec(durationSpec)
	if spec.Fallback {
		s.logger.Warn("期間指定を解釈できないためデフォルトの30日を適用します",
			slog.Int64("user_id", userID),
			slog.String("duration_spec", durationSpec),
		)
	}

	sub := &model.Subscription{UserID: userID}
	if spec.Permanent {
		sub.Permanent = true
	} else {
		expiry := s.now().AddDate(0, 0, spec.Days)
		sub.ExpiresAt = &expiry
	}

	if err := s.repo.Upsert(ctx, sub); err != nil {
		return nil, fmt.Errorf("サブスクリプションの付与に失敗しました: %w", err)
	}

	s.logger.Info("サブスクリプションを付与しました",
		slog.Int64("user_id", userID),
		slog.String("duration_spec", durationSpec),
		slog.Bool("permanent", sub.Permanent),
	)

	return sub, nil
}

// Revoke はユーザーのサブスクリプションを剥奪する。対象が存在しなくても成功する。
func (s *Service) Revoke(ctx context.Context, userID int64) error {
	if err := s.repo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("サブスクリプションの剥奪に失敗しました: %w", err)
	}

	s.logger.Info("サブスクリプションを剥奪しました",
		slog.Int64("user_id", userID),
	)

	return nil
}

// List は全サブスクリプションを返す。管理者向け一覧に使用する。
func (s *Service) List(ctx context.Context) ([]*model.Subscription, error) {
	subs, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("サブスクリプション一覧の取得に失敗しました: %w", err)
	}
	return subs, nil
}

// Count はサブスクリプションの総数を返す。
func (s *Service) Count(ctx context.Context) (int, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("サブスクリプション数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// Find はユーザーのサブスクリプションを返す。プロフィール表示用。
// 見つからない場合はnilを返す。
func (s *Service) Find(ctx context.Context, userID int64) (*model.Subscription, error) {
	sub, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("サブスクリプションの取得に失敗しました: %w", err)
	}
	return sub, nil
}
