// Package bot はTelegram更新のディスパッチとユーザー対話を実装する。
package bot

import (
	"strconv"
	"strings"
)

// ActionKind はユーザー操作の種別を表す。
type ActionKind int

const (
	// ActionUnknown は解釈できない操作。
	ActionUnknown ActionKind = iota
	// ActionStart は/startコマンド。
	ActionStart
	// ActionProfile はプロフィール表示。
	ActionProfile
	// ActionChoosePlan はプラン一覧の表示。
	ActionChoosePlan
	// ActionSelectPlan は特定プランの選択。
	ActionSelectPlan
	// ActionPaymentDone は支払い完了の申告。
	ActionPaymentDone
	// ActionShowCategories はカテゴリー一覧の表示。
	ActionShowCategories
	// ActionCategory はカテゴリーの選択。
	ActionCategory
	// ActionSubcategory はサブカテゴリー（バケット）の選択。
	ActionSubcategory
	// ActionGet はランダム未閲覧の取得。
	ActionGet
	// ActionNext は順次取得。
	ActionNext
	// ActionApprove は購入の承認（管理者）。
	ActionApprove
	// ActionReject は購入の却下（管理者）。
	ActionReject
	// ActionAuthorize は/authorizeコマンド（管理者）。
	ActionAuthorize
	// ActionUnauthorize は/unauthorizeコマンド（管理者）。
	ActionUnauthorize
	// ActionListAuthorized は/authorizedコマンド（管理者）。
	ActionListAuthorized
	// ActionStats は/usersコマンド（管理者）。
	ActionStats
	// ActionClearCache は/clearcacheコマンド（管理者）。
	ActionClearCache
)

// Action は解釈済みのユーザー操作を表す。
// コールバックデータやコマンド文字列の解釈は境界で1回だけ行い、
// 以降の処理はこの型に対して分岐する。
type Action struct {
	Kind       ActionKind
	PlanID     string // ActionSelectPlan
	Category   string // ActionCategory
	Bucket     string // ActionSubcategory, ActionGet, ActionNext, ActionClearCache（空は全体）
	TargetUser int64  // ActionApprove, ActionReject, ActionAuthorize, ActionUnauthorize
	Duration   string // ActionApprove, ActionAuthorize
}

// ParseCallback はインラインボタンのコールバックデータを解釈する。
func ParseCallback(data string) Action {
	switch data {
	case "choose_plan":
		return Action{Kind: ActionChoosePlan}
	case "payment_done":
		return Action{Kind: ActionPaymentDone}
	case "profile":
		return Action{Kind: ActionProfile}
	case "back_main":
		return Action{Kind: ActionShowCategories}
	}

	switch {
	case strings.HasPrefix(data, "plan_"):
		return Action{Kind: ActionSelectPlan, PlanID: strings.TrimPrefix(data, "plan_")}

	case strings.HasPrefix(data, "get_"):
		return Action{Kind: ActionGet, Bucket: strings.TrimPrefix(data, "get_")}

	case strings.HasPrefix(data, "next_"):
		return Action{Kind: ActionNext, Bucket: strings.TrimPrefix(data, "next_")}

	case strings.HasPrefix(data, "sub_"):
		// sub_<category>_<sub> をバケット <category>-<sub> に組み立てる
		rest := strings.TrimPrefix(data, "sub_")
		parts := strings.SplitN(rest, "_", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return Action{Kind: ActionUnknown}
		}
		return Action{Kind: ActionSubcategory, Bucket: parts[0] + "-" + parts[1]}

	case strings.HasPrefix(data, "back_"):
		return Action{Kind: ActionCategory, Category: strings.TrimPrefix(data, "back_")}

	case strings.HasPrefix(data, "cat_"):
		return Action{Kind: ActionCategory, Category: strings.TrimPrefix(data, "cat_")}

	case strings.HasPrefix(data, "approve_"):
		// approve_<duration>_<userID>
		rest := strings.TrimPrefix(data, "approve_")
		idx := strings.LastIndex(rest, "_")
		if idx <= 0 {
			return Action{Kind: ActionUnknown}
		}
		userID, err := strconv.ParseInt(rest[idx+1:], 10, 64)
		if err != nil {
			return Action{Kind: ActionUnknown}
		}
		return Action{Kind: ActionApprove, Duration: rest[:idx], TargetUser: userID}

	case strings.HasPrefix(data, "reject_"):
		userID, err := strconv.ParseInt(strings.TrimPrefix(data, "reject_"), 10, 64)
		if err != nil {
			return Action{Kind: ActionUnknown}
		}
		return Action{Kind: ActionReject, TargetUser: userID}
	}

	return Action{Kind: ActionUnknown}
}

// ParseCommand はテキストメッセージのコマンドを解釈する。
// コマンドでないテキストはActionUnknownを返す。
func ParseCommand(text string) Action {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return Action{Kind: ActionUnknown}
	}

	// グループでの /start@botname 形式に対応する
	command := strings.SplitN(fields[0], "@", 2)[0]
	args := fields[1:]

	switch command {
	case "/start":
		return Action{Kind: ActionStart}

	case "/profile":
		return Action{Kind: ActionProfile}

	case "/plans":
		return Action{Kind: ActionChoosePlan}

	case "/authorize":
		if len(args) < 1 {
			return Action{Kind: ActionUnknown}
		}
		userID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return Action{Kind: ActionUnknown}
		}
		duration := "1m"
		if len(args) >= 2 {
			duration = args[1]
		}
		return Action{Kind: ActionAuthorize, TargetUser: userID, Duration: duration}

	case "/unauthorize":
		if len(args) < 1 {
			return Action{Kind: ActionUnknown}
		}
		userID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return Action{Kind: ActionUnknown}
		}
		return Action{Kind: ActionUnauthorize, TargetUser: userID}

	case "/authorized":
		return Action{Kind: ActionListAuthorized}

	case "/users":
		return Action{Kind: ActionStats}

	case "/clearcache":
		a := Action{Kind: ActionClearCache}
		if len(args) >= 1 {
			a.Bucket = args[0]
		}
		return a
	}

	return Action{Kind: ActionUnknown}
}
