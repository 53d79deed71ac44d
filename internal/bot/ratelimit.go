package bot

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// userLimiter はユーザーごとのレートリミッターとアクセス時刻を保持する。
type userLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// ActionLimiter はコンテンツ取得操作のユーザーごとレート制限を管理する。
// 連打によるチャンネルからの大量コピーを抑止する。
type ActionLimiter struct {
	actionRate  rate.Limit
	actionBurst int

	mu       sync.RWMutex
	limiters map[int64]*userLimiter

	stopCh chan struct{}
}

// NewActionLimiter は新しいActionLimiterを生成する。
// actionsPerMinuteはユーザーごとの毎分許可回数。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewActionLimiter(actionsPerMinute int) *ActionLimiter {
	al := &ActionLimiter{
		actionRate:  rate.Limit(float64(actionsPerMinute) / 60.0),
		actionBurst: actionsPerMinute,
		limiters:    make(map[int64]*userLimiter),
		stopCh:      make(chan struct{}),
	}

	go al.cleanupLoop()

	return al
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (al *ActionLimiter) Stop() {
	close(al.stopCh)
}

// Allow はユーザーの操作が許可されるかを返す。
func (al *ActionLimiter) Allow(userID int64) bool {
	return al.getOrCreate(userID).Allow()
}

// LimiterCount は現在管理されているリミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (al *ActionLimiter) LimiterCount() int {
	al.mu.RLock()
	defer al.mu.RUnlock()
	return len(al.limiters)
}

// getOrCreate はユーザーのリミッターを取得または作成する。
func (al *ActionLimiter) getOrCreate(userID int64) *rate.Limiter {
	al.mu.RLock()
	ul, exists := al.limiters[userID]
	al.mu.RUnlock()

	if exists {
		al.mu.Lock()
		ul.lastAccess = time.Now()
		al.mu.Unlock()
		return ul.limiter
	}

	al.mu.Lock()
	defer al.mu.Unlock()

	// ダブルチェック
	if ul, exists := al.limiters[userID]; exists {
		ul.lastAccess = time.Now()
		return ul.limiter
	}

	limiter := rate.NewLimiter(al.actionRate, al.actionBurst)
	al.limiters[userID] = &userLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}
	return limiter
}

// cleanupLoop は一定間隔で長時間アクセスのないエントリを削除する。
func (al *ActionLimiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-al.stopCh:
			return
		case <-ticker.C:
			al.cleanup(10 * time.Minute)
		}
	}
}

// cleanup はmaxAgeより古いエントリを削除する。
func (al *ActionLimiter) cleanup(maxAge time.Duration) {
	cutoff := time.Now().Add(-maxAge)

	al.mu.Lock()
	defer al.mu.Unlock()

	for userID, ul := range al.limiters {
		if ul.lastAccess.Before(cutoff) {
			delete(al.limiters, userID)
		}
	}
}
