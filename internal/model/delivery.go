// Package model はドメインモデルを定義する。
package model

import "time"

// MediaKind はチャンネル投稿のメディア種別を表す。
type MediaKind string

const (
	// MediaKindPhoto は写真。
	MediaKindPhoto MediaKind = "photo"
	// MediaKindVideo は動画。
	MediaKindVideo MediaKind = "video"
	// MediaKindDocument は汎用ファイル。
	MediaKindDocument MediaKind = "document"
	// MediaKindAnimation はアニメーション（GIF等）。
	MediaKindAnimation MediaKind = "animation"
)

// ChannelItem はソースチャンネルで観測されたメディア付き投稿を表す。
// message_idはチャンネル内で単調増加するため、作成順の安定ソートキーになる。
type ChannelItem struct {
	ChannelID  int64
	MessageID  int64
	Kind       MediaKind
	RecordedAt time.Time
}

// Delivery はユーザーの会話に中継された配信済みコピーを表す。
// IDは配信コピー自体の識別子であり、ソースアイテムのIDとは独立している。
// ExpiresAtを過ぎたコピーは会話から削除される。
type Delivery struct {
	ID        string
	ChatID    int64
	MessageID int64
	Bucket    string
	ItemID    int64
	ExpiresAt time.Time
	CreatedAt time.Time
}
