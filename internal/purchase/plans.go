// Package purchase は購入承認ワークフローの状態機械とプランカタログを提供する。
package purchase

import (
	"encoding/json"
	"fmt"

	"github.com/alexdevfreak/plansfilesharecombined/internal/model"
)

// defaultPlans は販売プランの静的カタログ。表示順を保持する。
var defaultPlans = []model.Plan{
	{ID: "1w", Label: "1 Week", Price: 99},
	{ID: "1m", Label: "1 Month", Price: 199},
	{ID: "3m", Label: "3 Months", Price: 499},
	{ID: "life", Label: "Lifetime", Price: 1499},
}

// LoadPlans は静的カタログにQR画像URLの設定を適用して返す。
// qrJSONはプランID→URLのJSONオブジェクト。空文字列の場合はURLなしのカタログを返す。
// 未知のプランIDへのURL指定はエラーにする。
func LoadPlans(qrJSON string) ([]model.Plan, error) {
	plans := make([]model.Plan, len(defaultPlans))
	copy(plans, defaultPlans)

	if qrJSON == "" {
		return plans, nil
	}

	var urls map[string]string
	if err := json.Unmarshal([]byte(qrJSON), &urls); err != nil {
		return nil, fmt.Errorf("QR URL設定の解析に失敗しました: %w", err)
	}

	byID := make(map[string]int, len(plans))
	for i, p := range plans {
		byID[p.ID] = i
	}
	for id, url := range urls {
		i, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("QR URL設定に未知のプランIDが含まれています: %s", id)
		}
		plans[i].QRURL = url
	}

	return plans, nil
}
