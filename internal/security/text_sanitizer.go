// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizerService はユーザー入力文字列（表示名やユーザー名）を
// サニタイズする。これらの文字列はHTMLパースモードで送信される
// 管理者向け通知のキャプションに埋め込まれるため、タグや属性を
// 一切許可しないbluemondayの厳格ポリシーで除去する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はユーザー入力のサニタイズのインターフェース。
type TextSanitizerService interface {
	// SanitizeDisplayText はユーザー入力からマークアップを除去し、
	// HTMLパースモードのメッセージに安全に埋め込める文字列を返す。
	SanitizeDisplayText(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		// StrictPolicy: すべてのタグと属性を除去する
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeDisplayText はユーザー入力からマークアップを除去する。
// bluemondayはタグ除去後の文字列をHTMLエンティティとしてエスケープ済みで
// 返すため、テキストとして再利用する前にアンエスケープし、前後の空白を
// 取り除く。結果はメッセージ生成側で改めてエスケープする。
func (s *textSanitizer) SanitizeDisplayText(raw string) string {
	stripped := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(stripped))
}

// compile-time interface check
var _ TextSanitizerService = (*textSanitizer)(nil)
