// Package catalog はバケット（カテゴリ×サブカテゴリ）とソースチャンネルの
// 静的な対応表を提供する。対応表は起動時に1回構築され、プロセス存続中は
// 不変として扱う。
package catalog

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
)

// bucketPattern はバケットキーの形式（例: "CT1-ICT2"）。
var bucketPattern = regexp.MustCompile(`^CT[0-9]+-ICT[0-9]+$`)

// Catalog はバケットキーからソースチャンネルIDへの不変マップ。
type Catalog struct {
	channels map[string]int64
}

// Parse はJSON文字列（{"CT1-ICT1": -1001111111111, ...}）からCatalogを構築する。
// 空文字列は空のカタログとして有効（全バケットが未設定扱いになる）。
// バケットキーの形式が不正な場合はエラーを返す。
func Parse(raw string) (*Catalog, error) {
	channels := make(map[string]int64)
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &channels); err != nil {
			return nil, fmt.Errorf("バケット設定のパースに失敗しました: %w", err)
		}
	}
	for key := range channels {
		if !bucketPattern.MatchString(key) {
			return nil, fmt.Errorf("不正なバケットキーです: %s", key)
		}
	}
	return &Catalog{channels: channels}, nil
}

// ChannelFor はバケットに対応するソースチャンネルIDを返す。
// 未設定のバケットの場合はok=falseを返す。
func (c *Catalog) ChannelFor(bucket string) (int64, bool) {
	id, ok := c.channels[bucket]
	return id, ok
}

// Contains はバケットがカタログに存在するかを返す。
func (c *Catalog) Contains(bucket string) bool {
	_, ok := c.channels[bucket]
	return ok
}

// ContainsChannel はチャンネルIDがいずれかのバケットのソースかを返す。
// 取り込み（ingest）時に未知のチャンネルからの投稿を無視するために使用する。
func (c *Catalog) ContainsChannel(channelID int64) bool {
	for _, id := range c.channels {
		if id == channelID {
			return true
		}
	}
	return false
}

// Buckets は設定済みバケットキーの一覧を昇順で返す。
func (c *Catalog) Buckets() []string {
	keys := make([]string, 0, len(c.channels))
	for key := range c.channels {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Len は設定済みバケット数を返す。
func (c *Catalog) Len() int {
	return len(c.channels)
}
