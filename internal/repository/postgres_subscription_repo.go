package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alexdevfreak/plansfilesharecombined/internal/model"
)

// PostgresSubscriptionRepo はPostgreSQLを使用したサブスクリプションリポジトリ。
type PostgresSubscriptionRepo struct {
	db *sql.DB
}

// NewPostgresSubscriptionRepo はPostgresSubscriptionRepoを生成する。
func NewPostgresSubscriptionRepo(db *sql.DB) *PostgresSubscriptionRepo {
	return &PostgresSubscriptionRepo{db: db}
}

// FindByUserID は指定ユーザーのサブスクリプションを取得する。見つからない場合はnilを返す。
func (r *PostgresSubscriptionRepo) FindByUserID(ctx context.Context, userID int64) (*model.Subscription, error) {
	sub := &model.Subscription{}
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, permanent, expires_at, created_at, updated_at
		 FROM subscriptions WHERE user_id = $1`,
		userID,
	).Scan(&sub.UserID, &sub.Permanent, &sub.ExpiresAt, &sub.CreatedAt, &sub.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("サブスクリプションの取得に失敗しました: %w", err)
	}

	return sub, nil
}

// Upsert はサブスクリプションを無条件に上書き保存する。
func (r *PostgresSubscriptionRepo) Upsert(ctx context.Context, sub *model.Subscription) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO subscriptions (user_id, permanent, expires_at, created_at, updated_at)
		 VALUES ($1, $2, $3, NOW(), NOW())
		 ON CONFLICT (user_id) DO UPDATE
		 SET permanent = EXCLUDED.permanent,
		     expires_at = EXCLUDED.expires_at,
		     updated_at = NOW()`,
		sub.UserID, sub.Permanent, sub.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("サブスクリプションの保存に失敗しました: %w", err)
	}
	return nil
}

// DeleteByUserID は指定ユーザーのサブスクリプションを削除する。冪等。
func (r *PostgresSubscriptionRepo) DeleteByUserID(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM subscriptions WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("サブスクリプションの削除に失敗しました: %w", err)
	}
	return nil
}

// List は全サブスクリプションを作成日時昇順で返す。
func (r *PostgresSubscriptionRepo) List(ctx context.Context) ([]*model.Subscription, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, permanent, expires_at, created_at, updated_at
		 FROM subscriptions ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("サブスクリプション一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var subs []*model.Subscription
	for rows.Next() {
		sub := &model.Subscription{}
		if err := rows.Scan(&sub.UserID, &sub.Permanent, &sub.ExpiresAt, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return nil, fmt.Errorf("サブスクリプション行の読み取りに失敗しました: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("サブスクリプション一覧の走査に失敗しました: %w", err)
	}
	return subs, nil
}

// Count はサブスクリプションの総数を返す。
func (r *PostgresSubscriptionRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM subscriptions`,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("サブスクリプション数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ SubscriptionRepository = (*PostgresSubscriptionRepo)(nil)
