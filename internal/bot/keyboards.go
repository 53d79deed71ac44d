package bot

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alexdevfreak/plansfilesharecombined/internal/catalog"
	"github.com/alexdevfreak/plansfilesharecombined/internal/model"
	"github.com/alexdevfreak/plansfilesharecombined/internal/telegram"
)

// subscribeMarkup は未加入ユーザー向けの導線。
func subscribeMarkup() *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{
			{{Text: "💎 Premium Plans", CallbackData: "choose_plan"}},
			{{Text: "👤 My Profile", CallbackData: "profile"}},
		},
	}
}

// planOptionsMarkup はプラン選択ボタンを1行1プランで並べる。
func planOptionsMarkup(plans []model.Plan) *telegram.InlineKeyboardMarkup {
	rows := make([][]telegram.InlineKeyboardButton, 0, len(plans))
	for _, p := range plans {
		rows = append(rows, []telegram.InlineKeyboardButton{{
			Text:         fmt.Sprintf("%s - ₹%d", p.Label, p.Price),
			CallbackData: "plan_" + p.ID,
		}})
	}
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// paymentDoneMarkup は支払い完了の申告ボタン。
func paymentDoneMarkup() *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{
			{{Text: "✅ I've Paid", CallbackData: "payment_done"}},
		},
	}
}

// categoriesMarkup はカタログからカテゴリー一覧ボタンを組み立てる。
// カテゴリーはバケット名の「-」より前の部分で、名前順に並べる。
func categoriesMarkup(cat *catalog.Catalog) *telegram.InlineKeyboardMarkup {
	seen := make(map[string]bool)
	var categories []string
	for _, bucket := range cat.Buckets() {
		category, _, ok := strings.Cut(bucket, "-")
		if !ok || seen[category] {
			continue
		}
		seen[category] = true
		categories = append(categories, category)
	}
	sort.Strings(categories)

	rows := make([][]telegram.InlineKeyboardButton, 0, len(categories))
	for _, c := range categories {
		rows = append(rows, []telegram.InlineKeyboardButton{{
			Text:         "📁 " + c,
			CallbackData: "cat_" + c,
		}})
	}
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// subcategoriesMarkup はカテゴリー内のサブカテゴリー一覧ボタンを組み立てる。
func subcategoriesMarkup(cat *catalog.Catalog, category string) *telegram.InlineKeyboardMarkup {
	var rows [][]telegram.InlineKeyboardButton
	for _, bucket := range cat.Buckets() {
		c, sub, ok := strings.Cut(bucket, "-")
		if !ok || c != category {
			continue
		}
		rows = append(rows, []telegram.InlineKeyboardButton{{
			Text:         "📂 " + sub,
			CallbackData: "sub_" + category + "_" + sub,
		}})
	}
	rows = append(rows, []telegram.InlineKeyboardButton{{
		Text:         "⬅️ Back",
		CallbackData: "back_main",
	}})
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// mediaOptionsMarkup はバケット内での取得操作ボタンを組み立てる。
func mediaOptionsMarkup(bucket string) *telegram.InlineKeyboardMarkup {
	category, _, _ := strings.Cut(bucket, "-")
	return &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{
			{
				{Text: "🎲 Random", CallbackData: "get_" + bucket},
				{Text: "➡️ Next", CallbackData: "next_" + bucket},
			},
			{{Text: "⬅️ Back", CallbackData: "back_" + category}},
		},
	}
}

// adminReviewMarkup は証憑レビュー用の承認・却下ボタンを組み立てる。
// 承認ボタンはプランIDを期間指定としてそのまま埋め込む。
func adminReviewMarkup(userID int64, planID string) *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{
			{
				{Text: "✅ Approve", CallbackData: fmt.Sprintf("approve_%s_%d", planID, userID)},
				{Text: "❌ Reject", CallbackData: fmt.Sprintf("reject_%d", userID)},
			},
		},
	}
}
