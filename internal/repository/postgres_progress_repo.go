package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/alexdevfreak/plansfilesharecombined/internal/model"
)

// PostgresProgressRepo はPostgreSQLを使用した視聴進捗リポジトリ。
type PostgresProgressRepo struct {
	db *sql.DB
}

// NewPostgresProgressRepo はPostgresProgressRepoを生成する。
func NewPostgresProgressRepo(db *sql.DB) *PostgresProgressRepo {
	return &PostgresProgressRepo{db: db}
}

// FindByUserAndBucket は指定(user, bucket)の進捗を取得する。見つからない場合はnilを返す。
func (r *PostgresProgressRepo) FindByUserAndBucket(ctx context.Context, userID int64, bucket string) (*model.Progress, error) {
	progress := &model.Progress{}
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, bucket, seen, cursor, updated_at
		 FROM progress WHERE user_id = $1 AND bucket = $2`,
		userID, bucket,
	).Scan(&progress.UserID, &progress.Bucket, pq.Array(&progress.Seen), &progress.Cursor, &progress.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("進捗の取得に失敗しました: %w", err)
	}

	return progress, nil
}

// Upsert は進捗を冪等にUPSERTする。
func (r *PostgresProgressRepo) Upsert(ctx context.Context, progress *model.Progress) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO progress (user_id, bucket, seen, cursor, updated_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (user_id, bucket) DO UPDATE
		 SET seen = EXCLUDED.seen,
		     cursor = EXCLUDED.cursor,
		     updated_at = NOW()`,
		progress.UserID, progress.Bucket, pq.Array(progress.Seen), progress.Cursor,
	)
	if err != nil {
		return fmt.Errorf("進捗の保存に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ProgressRepository = (*PostgresProgressRepo)(nil)
