// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/alexdevfreak/plansfilesharecombined/internal/model"
)

// SubscriptionRepository はサブスクリプションデータの永続化インターフェース。
type SubscriptionRepository interface {
	// FindByUserID は指定ユーザーのサブスクリプションを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID int64) (*model.Subscription, error)

	// Upsert はサブスクリプションを無条件に上書き保存する。
	// 既存の期限に加算する積み上げは行わない。
	Upsert(ctx context.Context, sub *model.Subscription) error

	// DeleteByUserID は指定ユーザーのサブスクリプションを削除する。
	// 対象が存在しない場合もエラーにしない（冪等）。
	DeleteByUserID(ctx context.Context, userID int64) error

	// List は全サブスクリプションを作成日時昇順で返す。
	List(ctx context.Context) ([]*model.Subscription, error)

	// Count はサブスクリプションの総数を返す。
	Count(ctx context.Context) (int, error)
}

// ProgressRepository はユーザーごと・バケットごとの視聴進捗の永続化インターフェース。
type ProgressRepository interface {
	// FindByUserAndBucket は指定(user, bucket)の進捗を取得する。見つからない場合はnilを返す。
	FindByUserAndBucket(ctx context.Context, userID int64, bucket string) (*model.Progress, error)

	// Upsert は進捗を冪等にUPSERTする。
	Upsert(ctx context.Context, progress *model.Progress) error
}

// PurchaseSessionRepository は購入ワークフローセッションの永続化インターフェース。
type PurchaseSessionRepository interface {
	// FindByUserID は指定ユーザーのセッションを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID int64) (*model.PurchaseSession, error)

	// Upsert はセッションを冪等にUPSERTする。
	Upsert(ctx context.Context, session *model.PurchaseSession) error

	// DeleteByUserID は指定ユーザーのセッションを削除する。冪等。
	DeleteByUserID(ctx context.Context, userID int64) error
}

// ChannelItemRepository はソースチャンネルで観測されたメディア投稿の永続化インターフェース。
// レコードは追記専用であり、一度記録されたアイテムは削除されない。
type ChannelItemRepository interface {
	// Append はチャンネルアイテムを記録する。既に記録済みの場合は何もしない（冪等）。
	Append(ctx context.Context, item *model.ChannelItem) error

	// ListByChannel は指定チャンネルの直近limit件のメッセージIDを昇順で返す。
	// limitが0以下の場合は全件を返す。
	ListByChannel(ctx context.Context, channelID int64, limit int) ([]int64, error)
}

// DeliveryRepository は配信済みコピーの永続化インターフェース。
// 失効期限の再装填（プロセス再起動時）を可能にするため、配信ごとに1行を保持する。
type DeliveryRepository interface {
	// Create は配信済みコピーのレコードを作成する。
	Create(ctx context.Context, delivery *model.Delivery) error

	// DeleteByID は指定IDのレコードを削除する。対象が存在しない場合もエラーにしない。
	DeleteByID(ctx context.Context, id string) error

	// ListPending は未失効・失効済みを問わず残存する全配信レコードを期限昇順で返す。
	// 起動時のタイマー再装填に使用する。
	ListPending(ctx context.Context) ([]*model.Delivery, error)

	// DeleteExpiredBefore はcutoffより前に失効したレコードを削除し、削除件数を返す。
	// タイマーが失われた行の後始末（スイーパー）に使用する。
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
