// Package model はドメインモデルを定義する。
package model

import "fmt"

// BotError は統一エラーフォーマットを表す。
// ユーザーに提示する原因カテゴリと対処方法を含む。
type BotError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, content, purchase, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *BotError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeNotEntitled        = "NOT_ENTITLED"
	ErrCodeBucketUnconfigured = "BUCKET_UNCONFIGURED"
	ErrCodeEmptyIndex         = "EMPTY_INDEX"
	ErrCodeRelayFailed        = "RELAY_FAILED"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForwardedProof     = "FORWARDED_PROOF"
	ErrCodePlanNotFound       = "PLAN_NOT_FOUND"
	ErrCodeInvalidState       = "INVALID_STATE"
)

// NewNotEntitledError はサブスクリプション未保有エラーを生成する。
// このエラーは致命的ではなく、購入フローへの誘導を意味する。
func NewNotEntitledError() *BotError {
	return &BotError{
		Code:     ErrCodeNotEntitled,
		Message:  "プレミアムサブスクリプションが有効ではありません。",
		Category: "auth",
		Action:   "プランを購入してからコンテンツにアクセスしてください。",
	}
}

// NewBucketUnconfiguredError は未設定バケットエラーを生成する。
func NewBucketUnconfiguredError(bucket string) *BotError {
	return &BotError{
		Code:     ErrCodeBucketUnconfigured,
		Message:  fmt.Sprintf("このサブカテゴリにはソースチャンネルが設定されていません: %s", bucket),
		Category: "content",
		Action:   "別のカテゴリを選択してください。",
	}
}

// NewEmptyIndexError はインデックスが空のバケットへのリクエストエラーを生成する。
func NewEmptyIndexError(bucket string) *BotError {
	return &BotError{
		Code:     ErrCodeEmptyIndex,
		Message:  fmt.Sprintf("設定されたチャンネルにメディアが見つかりません: %s", bucket),
		Category: "content",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewRelayFailedError はメディア中継失敗エラーを生成する。
// 自動リトライは行わず、ユーザーに失敗を通知する。
func NewRelayFailedError(reason string) *BotError {
	return &BotError{
		Code:     ErrCodeRelayFailed,
		Message:  fmt.Sprintf("メディアの送信に失敗しました: %s", reason),
		Category: "system",
		Action:   "もう一度お試しください。",
	}
}

// NewUnauthorizedError は管理者専用操作を非管理者が呼び出した場合のエラーを生成する。
func NewUnauthorizedError() *BotError {
	return &BotError{
		Code:     ErrCodeUnauthorized,
		Message:  "この操作を実行する権限がありません。",
		Category: "auth",
		Action:   "管理者のみが実行できる操作です。",
	}
}

// NewForwardedProofError は転送された証憑画像の拒否エラーを生成する。
// ユーザーは元の画像を送信し直すことで再試行できる。
func NewForwardedProofError() *BotError {
	return &BotError{
		Code:     ErrCodeForwardedProof,
		Message:  "転送されたスクリーンショットは受け付けられません。",
		Category: "purchase",
		Action:   "ご自身で撮影した元のスクリーンショットを送信してください。",
	}
}

// NewPlanNotFoundError は存在しないプランの選択エラーを生成する。
func NewPlanNotFoundError(planID string) *BotError {
	return &BotError{
		Code:     ErrCodePlanNotFound,
		Message:  fmt.Sprintf("指定されたプランが見つかりません: %s", planID),
		Category: "purchase",
		Action:   "プラン一覧から選択し直してください。",
	}
}

// NewInvalidStateError は現在の状態で許可されない遷移のエラーを生成する。
func NewInvalidStateError(state SessionState) *BotError {
	return &BotError{
		Code:     ErrCodeInvalidState,
		Message:  fmt.Sprintf("現在の状態ではこの操作を実行できません: %s", state),
		Category: "purchase",
		Action:   "購入フローを最初からやり直してください。",
	}
}
