package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alexdevfreak/plansfilesharecombined/internal/model"
)

// PostgresChannelItemRepo はPostgreSQLを使用したチャンネルアイテムリポジトリ。
type PostgresChannelItemRepo struct {
	db *sql.DB
}

// NewPostgresChannelItemRepo はPostgresChannelItemRepoを生成する。
func NewPostgresChannelItemRepo(db *sql.DB) *PostgresChannelItemRepo {
	return &PostgresChannelItemRepo{db: db}
}

// Append はチャンネルアイテムを記録する。既に記録済みの場合は何もしない（冪等）。
func (r *PostgresChannelItemRepo) Append(ctx context.Context, item *model.ChannelItem) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO channel_items (channel_id, message_id, kind, recorded_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (channel_id, message_id) DO NOTHING`,
		item.ChannelID, item.MessageID, item.Kind,
	)
	if err != nil {
		return fmt.Errorf("チャンネルアイテムの記録に失敗しました: %w", err)
	}
	return nil
}

// ListByChannel は指定チャンネルの直近limit件のメッセージIDを昇順で返す。
// 履歴スキャンの深さ上限に対応するため、message_id降順でlimit件を切り出してから
// 昇順に並べ替えて返す。limitが0以下の場合は全件を返す。
func (r *PostgresChannelItemRepo) ListByChannel(ctx context.Context, channelID int64, limit int) ([]int64, error) {
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = r.db.QueryContext(ctx,
			`SELECT message_id FROM (
			     SELECT message_id FROM channel_items
			     WHERE channel_id = $1
			     ORDER BY message_id DESC
			     LIMIT $2
			 ) recent ORDER BY message_id ASC`,
			channelID, limit,
		)
	} else {
		rows, err = r.db.QueryContext(ctx,
			`SELECT message_id FROM channel_items
			 WHERE channel_id = $1 ORDER BY message_id ASC`,
			channelID,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("チャンネルアイテム一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("チャンネルアイテム行の読み取りに失敗しました: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("チャンネルアイテム一覧の走査に失敗しました: %w", err)
	}
	return ids, nil
}

// compile-time interface check
var _ ChannelItemRepository = (*PostgresChannelItemRepo)(nil)
