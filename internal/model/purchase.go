// Package model はドメインモデルを定義する。
package model

import "time"

// SessionState は購入ワークフローの状態を表す。
type SessionState string

const (
	// StateNone は購入フロー未開始の状態。
	StateNone SessionState = "none"
	// StatePlanSelected はプラン選択済み・支払い案内表示済みの状態。
	StatePlanSelected SessionState = "plan_selected"
	// StateAwaitingProof は支払い完了の申告後、証憑の送信を待つ状態。
	StateAwaitingProof SessionState = "awaiting_proof"
	// StateProofSubmitted は証憑を受理し、管理者の判断を待つ状態。
	StateProofSubmitted SessionState = "proof_submitted"
	// StateApproved は管理者が承認した終端状態。
	StateApproved SessionState = "approved"
	// StateRejected は管理者が却下した終端状態。
	StateRejected SessionState = "rejected"
)

// PurchaseSession はユーザーごとの購入ワークフローセッションを表す。
type PurchaseSession struct {
	UserID    int64
	State     SessionState
	PlanID    string
	UpdatedAt time.Time
}

// Plan は販売プランを表す。カタログは静的設定であり実行時に変化しない。
type Plan struct {
	ID    string
	Label string
	Price int    // 表示価格（INR）
	QRURL string // 支払いQR画像のURL（空の場合はテキスト案内のみ）
}
