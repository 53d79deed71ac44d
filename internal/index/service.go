// Package index はバケットごとのチャンネル投稿インデックスを構築・キャッシュする。
package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alexdevfreak/plansfilesharecombined/internal/catalog"
)

// HistorySource はチャンネルの投稿履歴を提供するインターフェース。
// 返却されるメッセージIDは投稿順（昇順）で、最大limit件の直近投稿に限定される。
type HistorySource interface {
	History(ctx context.Context, channelID int64, limit int) ([]int64, error)
}

// BuildRecorder はインデックス構築のメトリクスを記録するインターフェース。
type BuildRecorder interface {
	RecordIndexBuild(bucket string)
}

// entry は1バケット分のキャッシュエントリ。
// 各エントリが自身のロックを持つため、別バケットの構築は互いをブロックしない。
type entry struct {
	mu    sync.Mutex
	built bool
	ids   []int64
}

// Service はバケット別インデックスのキャッシュを管理する。
// 一度構築されたインデックス（空の結果を含む）はClearされるまで再利用される。
type Service struct {
	catalog   *catalog.Catalog
	source    HistorySource
	metrics   BuildRecorder
	logger    *slog.Logger
	scanLimit int

	mu      sync.Mutex
	entries map[string]*entry
}

// NewService は新しいインデックスサービスを生成する。
func NewService(cat *catalog.Catalog, source HistorySource, metrics BuildRecorder, logger *slog.Logger, scanLimit int) *Service {
	return &Service{
		catalog:   cat,
		source:    source,
		metrics:   metrics,
		logger:    logger,
		scanLimit: scanLimit,
		entries:   make(map[string]*entry),
	}
}

// IndexOf はバケットのインデックスを返す。未構築なら履歴ソースから構築してキャッシュする。
// バケットにチャンネルが割り当てられていない場合や履歴が空の場合は空のインデックスを
// 構築済みとしてキャッシュし、以降の呼び出しで履歴ソースへ問い合わせない。
// 返却されるスライスは呼び出し側で変更してはならない。
func (s *Service) IndexOf(ctx context.Context, bucket string) ([]int64, error) {
	e := s.entryFor(bucket)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.built {
		return e.ids, nil
	}

	channelID, ok := s.catalog.ChannelFor(bucket)
	if !ok {
		e.built = true
		e.ids = nil
		s.logger.Warn("バケットにチャンネルが割り当てられていない", "bucket", bucket)
		return nil, nil
	}

	ids, err := s.source.History(ctx, channelID, s.scanLimit)
	if err != nil {
		return nil, fmt.Errorf("チャンネル履歴の取得に失敗しました: %w", err)
	}

	e.built = true
	e.ids = ids
	s.metrics.RecordIndexBuild(bucket)
	s.logger.Info("インデックスを構築した",
		"bucket", bucket,
		"channel_id", channelID,
		"item_count", len(ids),
	)

	return e.ids, nil
}

// Clear は指定バケットのキャッシュを破棄する。次回のIndexOfで再構築される。
func (s *Service) Clear(bucket string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, bucket)
}

// ClearAll は全バケットのキャッシュを破棄する。
func (s *Service) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*entry)
}

// CachedBuckets は構築済みキャッシュを持つバケット名の一覧を返す。
func (s *Service) CachedBuckets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	buckets := make([]string, 0, len(s.entries))
	for bucket, e := range s.entries {
		e.mu.Lock()
		built := e.built
		e.mu.Unlock()
		if built {
			buckets = append(buckets, bucket)
		}
	}
	return buckets
}

// entryFor はバケットのエントリを取得する。存在しなければ生成する。
func (s *Service) entryFor(bucket string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[bucket]
	if !ok {
		e = &entry{}
		s.entries[bucket] = e
	}
	return e
}
