package purchase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alexdevfreak/plansfilesharecombined/internal/model"
	"github.com/alexdevfreak/plansfilesharecombined/internal/repository"
)

// Granter はサブスクリプション付与のインターフェース。承認時に呼ばれる。
type Granter interface {
	Grant(ctx context.Context, userID int64, durationSpec string) (*model.Subscription, error)
}

// ReviewRecorder は承認・却下のメトリクスを記録するインターフェース。
type ReviewRecorder interface {
	RecordApproval()
	RecordRejection()
}

// AdminChecker は管理者判定のインターフェース。
type AdminChecker interface {
	IsAdmin(userID int64) bool
}

// Service は購入承認ワークフローの状態機械を駆動する。
//
// 状態遷移:
//
//	NONE → PLAN_SELECTED → AWAITING_PROOF → PROOF_SUBMITTED → APPROVED | REJECTED
//
// プラン選択はどの状態からでも可能で、フローを最初からやり直す。
type Service struct {
	sessions repository.PurchaseSessionRepository
	granter  Granter
	admins   AdminChecker
	metrics  ReviewRecorder
	logger   *slog.Logger
	plans    []model.Plan
}

// NewService は新しい購入ワークフローサービスを生成する。
func NewService(sessions repository.PurchaseSessionRepository, granter Granter, admins AdminChecker, metrics ReviewRecorder, logger *slog.Logger, plans []model.Plan) *Service {
	return &Service{
		sessions: sessions,
		granter:  granter,
		admins:   admins,
		metrics:  metrics,
		logger:   logger,
		plans:    plans,
	}
}

// Plans は販売プランの一覧を表示順で返す。
func (s *Service) Plans() []model.Plan {
	return s.plans
}

// PlanByID は指定IDのプランを返す。
func (s *Service) PlanByID(planID string) (*model.Plan, bool) {
	for i := range s.plans {
		if s.plans[i].ID == planID {
			return &s.plans[i], true
		}
	}
	return nil, false
}

// SelectPlan はユーザーのセッションをPLAN_SELECTEDに進める。
// 既存のセッション状態に関わらずフローを最初からやり直す。
func (s *Service) SelectPlan(ctx context.Context, userID int64, planID string) (*model.PurchaseSession, error) {
	plan, ok := s.PlanByID(planID)
	if !ok {
		return nil, model.NewPlanNotFoundError(planID)
	}

	session := &model.PurchaseSession{
		UserID: userID,
		State:  model.StatePlanSelected,
		PlanID: plan.ID,
	}
	if err := s.sessions.Upsert(ctx, session); err != nil {
		return nil, fmt.Errorf("セッションの保存に失敗しました: %w", err)
	}

	s.logger.Info("プランが選択された", "user_id", userID, "plan_id", plan.ID)
	return session, nil
}

// ConfirmPayment は支払い完了の申告を受けてAWAITING_PROOFに進める。
// PLAN_SELECTED以外の状態からの申告はINVALID_STATEを返す。
func (s *Service) ConfirmPayment(ctx context.Context, userID int64) (*model.PurchaseSession, error) {
	session, err := s.findSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	if session.State != model.StatePlanSelected {
		return nil, model.NewInvalidStateError(session.State)
	}

	session.State = model.StateAwaitingProof
	if err := s.sessions.Upsert(ctx, session); err != nil {
		return nil, fmt.Errorf("セッションの保存に失敗しました: %w", err)
	}

	s.logger.Info("支払い完了が申告された", "user_id", userID, "plan_id", session.PlanID)
	return session, nil
}

// SubmitProof は支払い証憑の受理を試みる。
//
// AWAITING_PROOF以外の状態で受け取った証憑は対象外としてnilを返す（送信者への
// 応答は不要）。転送されたメッセージはFORWARDED_PROOFで拒否し、状態は変えない。
func (s *Service) SubmitProof(ctx context.Context, userID int64, forwarded bool) (*model.PurchaseSession, error) {
	session, err := s.sessions.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("セッションの取得に失敗しました: %w", err)
	}
	if session == nil || session.State != model.StateAwaitingProof {
		return nil, nil
	}

	if forwarded {
		s.logger.Warn("転送された証憑を拒否した", "user_id", userID)
		return nil, model.NewForwardedProofError()
	}

	session.State = model.StateProofSubmitted
	if err := s.sessions.Upsert(ctx, session); err != nil {
		return nil, fmt.Errorf("セッションの保存に失敗しました: %w", err)
	}

	s.logger.Info("証憑を受理した", "user_id", userID, "plan_id", session.PlanID)
	return session, nil
}

// Approve は購入を承認し、期間指定に応じたサブスクリプションを付与する。
// adminIDが管理者でない場合はUNAUTHORIZED。フロー未開始のユーザーはINVALID_STATE。
func (s *Service) Approve(ctx context.Context, adminID, userID int64, durationSpec string) (*model.Subscription, error) {
	if !s.admins.IsAdmin(adminID) {
		s.logger.Warn("管理者以外からの承認操作を拒否した", "actor_id", adminID, "user_id", userID)
		return nil, model.NewUnauthorizedError()
	}

	session, err := s.findSession(ctx, userID)
	if err != nil {
		return nil, err
	}

	sub, err := s.granter.Grant(ctx, userID, durationSpec)
	if err != nil {
		return nil, fmt.Errorf("サブスクリプションの付与に失敗しました: %w", err)
	}

	session.State = model.StateApproved
	if err := s.sessions.Upsert(ctx, session); err != nil {
		return nil, fmt.Errorf("セッションの保存に失敗しました: %w", err)
	}

	s.metrics.RecordApproval()
	s.logger.Info("購入を承認した",
		"admin_id", adminID,
		"user_id", userID,
		"duration_spec", durationSpec,
	)
	return sub, nil
}

// Reject は購入を却下する。adminIDが管理者でない場合はUNAUTHORIZED。
func (s *Service) Reject(ctx context.Context, adminID, userID int64) error {
	if !s.admins.IsAdmin(adminID) {
		s.logger.Warn("管理者以外からの却下操作を拒否した", "actor_id", adminID, "user_id", userID)
		return model.NewUnauthorizedError()
	}

	session, err := s.findSession(ctx, userID)
	if err != nil {
		return err
	}

	session.State = model.StateRejected
	if err := s.sessions.Upsert(ctx, session); err != nil {
		return fmt.Errorf("セッションの保存に失敗しました: %w", err)
	}

	s.metrics.RecordRejection()
	s.logger.Info("購入を却下した", "admin_id", adminID, "user_id", userID)
	return nil
}

// SessionOf はユーザーの現在のセッションを返す。未開始の場合はStateNoneのセッションを返す。
func (s *Service) SessionOf(ctx context.Context, userID int64) (*model.PurchaseSession, error) {
	session, err := s.sessions.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("セッションの取得に失敗しました: %w", err)
	}
	if session == nil {
		return &model.PurchaseSession{UserID: userID, State: model.StateNone}, nil
	}
	return session, nil
}

// findSession はフロー開始済みのセッションを取得する。未開始の場合はINVALID_STATE。
func (s *Service) findSession(ctx context.Context, userID int64) (*model.PurchaseSession, error) {
	session, err := s.sessions.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("セッションの取得に失敗しました: %w", err)
	}
	if session == nil || session.State == model.StateNone {
		return nil, model.NewInvalidStateError(model.StateNone)
	}
	return session, nil
}
