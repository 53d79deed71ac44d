// Package model はドメインモデルを定義する。
package model

import "time"

// Subscription はユーザーの有料サブスクリプションを表す。
// ユーザーIDはメッセージングトランスポートが発行する数値IDをそのまま使用する。
type Subscription struct {
	UserID    int64
	Permanent bool
	ExpiresAt *time.Time // Permanentがtrueの場合はnil
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Active はnow時点でサブスクリプションが有効かを返す。
// 永久サブスクリプションは常にtrue。期限付きの場合はnowが期限より
// 厳密に前のときのみtrue（now == 期限ちょうどは無効として扱う）。
func (s *Subscription) Active(now time.Time) bool {
	if s == nil {
		return false
	}
	if s.Permanent {
		return true
	}
	if s.ExpiresAt == nil {
		return false
	}
	return now.Before(*s.ExpiresAt)
}

// Progress はユーザーごと・バケットごとの視聴進捗を表す。
// Seenは配信済みアイテムIDの集合、Cursorは逐次モードで最後に配信した
// インデックス位置（未配信なら-1）。
type Progress struct {
	UserID    int64
	Bucket    string
	Seen      []int64
	Cursor    int
	UpdatedAt time.Time
}

// HasSeen はアイテムIDが配信済み集合に含まれるかを返す。
func (p *Progress) HasSeen(itemID int64) bool {
	for _, id := range p.Seen {
		if id == itemID {
			return true
		}
	}
	return false
}
