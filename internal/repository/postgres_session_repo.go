package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alexdevfreak/plansfilesharecombined/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用した購入セッションリポジトリ。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// FindByUserID は指定ユーザーの購入セッションを取得する。見つからない場合はnilを返す。
func (r *PostgresSessionRepo) FindByUserID(ctx context.Context, userID int64) (*model.PurchaseSession, error) {
	session := &model.PurchaseSession{}
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, state, plan_id, updated_at
		 FROM purchase_sessions WHERE user_id = $1`,
		userID,
	).Scan(&session.UserID, &session.State, &session.PlanID, &session.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("購入セッションの取得に失敗しました: %w", err)
	}

	return session, nil
}

// Upsert は購入セッションを冪等にUPSERTする。
func (r *PostgresSessionRepo) Upsert(ctx context.Context, session *model.PurchaseSession) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO purchase_sessions (user_id, state, plan_id, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (user_id) DO UPDATE
		 SET state = EXCLUDED.state,
		     plan_id = EXCLUDED.plan_id,
		     updated_at = NOW()`,
		session.UserID, session.State, session.PlanID,
	)
	if err != nil {
		return fmt.Errorf("購入セッションの保存に失敗しました: %w", err)
	}
	return nil
}

// DeleteByUserID は指定ユーザーの購入セッションを削除する。冪等。
func (r *PostgresSessionRepo) DeleteByUserID(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM purchase_sessions WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("購入セッションの削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ PurchaseSessionRepository = (*PostgresSessionRepo)(nil)
