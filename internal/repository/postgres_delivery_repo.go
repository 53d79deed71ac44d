package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alexdevfreak/plansfilesharecombined/internal/model"
)

// PostgresDeliveryRepo はPostgreSQLを使用した配信済みコピーリポジトリ。
type PostgresDeliveryRepo struct {
	db *sql.DB
}

// NewPostgresDeliveryRepo はPostgresDeliveryRepoを生成する。
func NewPostgresDeliveryRepo(db *sql.DB) *PostgresDeliveryRepo {
	return &PostgresDeliveryRepo{db: db}
}

// Create は配信済みコピーのレコードを作成する。
func (r *PostgresDeliveryRepo) Create(ctx context.Context, delivery *model.Delivery) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO deliveries (id, user_chat_id, message_id, bucket, item_id, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		delivery.ID, delivery.ChatID, delivery.MessageID, delivery.Bucket, delivery.ItemID, delivery.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("配信レコードの作成に失敗しました: %w", err)
	}
	return nil
}

// DeleteByID は指定IDの配信レコードを削除する。冪等。
func (r *PostgresDeliveryRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM deliveries WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("配信レコードの削除に失敗しました: %w", err)
	}
	return nil
}

// ListPending は残存する全配信レコードを期限昇順で返す。
func (r *PostgresDeliveryRepo) ListPending(ctx context.Context) ([]*model.Delivery, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_chat_id, message_id, bucket, item_id, expires_at, created_at
		 FROM deliveries ORDER BY expires_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("配信レコード一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var deliveries []*model.Delivery
	for rows.Next() {
		d := &model.Delivery{}
		if err := rows.Scan(&d.ID, &d.ChatID, &d.MessageID, &d.Bucket, &d.ItemID, &d.ExpiresAt, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("配信レコード行の読み取りに失敗しました: %w", err)
		}
		deliveries = append(deliveries, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("配信レコード一覧の走査に失敗しました: %w", err)
	}
	return deliveries, nil
}

// DeleteExpiredBefore はcutoffより前に失効したレコードを削除し、削除件数を返す。
func (r *PostgresDeliveryRepo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM deliveries WHERE expires_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("失効済み配信レコードの削除に失敗しました: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var _ DeliveryRepository = (*PostgresDeliveryRepo)(nil)
