// Package handler は運用者向けHTTP APIを提供する。
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/alexdevfreak/plansfilesharecombined/internal/middleware"
	"github.com/alexdevfreak/plansfilesharecombined/internal/model"
)

// SubscriptionServiceInterface はサブスクリプション管理操作のインターフェース。
type SubscriptionServiceInterface interface {
	List(ctx context.Context) ([]*model.Subscription, error)
	Count(ctx context.Context) (int, error)
	Find(ctx context.Context, userID int64) (*model.Subscription, error)
	Grant(ctx context.Context, userID int64, durationSpec string) (*model.Subscription, error)
	Revoke(ctx context.Context, userID int64) error
}

// CacheServiceInterface はインデックスキャッシュ管理操作のインターフェース。
type CacheServiceInterface interface {
	Clear(bucket string)
	ClearAll()
	CachedBuckets() []string
}

// DeliveryServiceInterface は配信レコード参照のインターフェース。
type DeliveryServiceInterface interface {
	ListPending(ctx context.Context) ([]*model.Delivery, error)
}

// AdminHandler は運用APIのHTTPハンドラー。
type AdminHandler struct {
	subscriptions SubscriptionServiceInterface
	cache         CacheServiceInterface
	deliveries    DeliveryServiceInterface
	logger        *slog.Logger
}

// NewAdminHandler は新しいAdminHandlerを生成する。
func NewAdminHandler(subs SubscriptionServiceInterface, cache CacheServiceInterface, deliveries DeliveryServiceInterface, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		subscriptions: subs,
		cache:         cache,
		deliveries:    deliveries,
		logger:        logger,
	}
}

// subscriptionResponse はサブスクリプション1件のレスポンス表現。
type subscriptionResponse struct {
	UserID    int64      `json:"user_id"`
	Permanent bool       `json:"permanent"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
}

func toSubscriptionResponse(sub *model.Subscription) subscriptionResponse {
	return subscriptionResponse{
		UserID:    sub.UserID,
		Permanent: sub.Permanent,
		ExpiresAt: sub.ExpiresAt,
		Active:    sub.Active(time.Now()),
		CreatedAt: sub.CreatedAt,
	}
}

// ListSubscriptions はGET /api/subscriptionsを処理する。
func (h *AdminHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.subscriptions.List(r.Context())
	if err != nil {
		h.logger.Error("サブスクリプション一覧の取得に失敗した", "error", err)
		middleware.WriteInternalServerError(w)
		return
	}

	out := make([]subscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		out = append(out, toSubscriptionResponse(sub))
	}
	writeJSON(w, http.StatusOK, map[string]any{"subscriptions": out})
}

// CountSubscriptions はGET /api/subscriptions/countを処理する。
func (h *AdminHandler) CountSubscriptions(w http.ResponseWriter, r *http.Request) {
	count, err := h.subscriptions.Count(r.Context())
	if err != nil {
		h.logger.Error("サブスクリプション数の取得に失敗した", "error", err)
		middleware.WriteInternalServerError(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

// GetSubscription はGET /api/subscriptions/{userID}を処理する。
func (h *AdminHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}

	sub, err := h.subscriptions.Find(r.Context(), userID)
	if err != nil {
		h.logger.Error("サブスクリプションの取得に失敗した", "user_id", userID, "error", err)
		middleware.WriteInternalServerError(w)
		return
	}
	if sub == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, &model.BotError{
			Code:     "NOT_FOUND",
			Message:  "サブスクリプションが見つかりません。",
			Category: "content",
			Action:   "ユーザーIDを確認してください。",
		})
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

// grantRequest はPUT /api/subscriptions/{userID}のリクエストボディ。
type grantRequest struct {
	Duration string `json:"duration"`
}

// GrantSubscription はPUT /api/subscriptions/{userID}を処理する。
func (h *AdminHandler) GrantSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}

	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.BotError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "system",
			Action:   "JSONフォーマットを確認してください。",
		})
		return
	}

	sub, err := h.subscriptions.Grant(r.Context(), userID, req.Duration)
	if err != nil {
		h.logger.Error("サブスクリプションの付与に失敗した", "user_id", userID, "error", err)
		middleware.WriteInternalServerError(w)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

// RevokeSubscription はDELETE /api/subscriptions/{userID}を処理する。
func (h *AdminHandler) RevokeSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}

	if err := h.subscriptions.Revoke(r.Context(), userID); err != nil {
		h.logger.Error("サブスクリプションの取り消しに失敗した", "user_id", userID, "error", err)
		middleware.WriteInternalServerError(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListCaches はGET /api/cacheを処理する。
func (h *AdminHandler) ListCaches(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"buckets": h.cache.CachedBuckets()})
}

// ClearCache はDELETE /api/cache/{bucket}を処理する。
func (h *AdminHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	bucket := chi.URLParam(r, "bucket")
	h.cache.Clear(bucket)
	h.logger.Info("キャッシュをクリアした", "bucket", bucket)
	w.WriteHeader(http.StatusNoContent)
}

// ClearAllCaches はDELETE /api/cacheを処理する。
func (h *AdminHandler) ClearAllCaches(w http.ResponseWriter, r *http.Request) {
	h.cache.ClearAll()
	h.logger.Info("全キャッシュをクリアした")
	w.WriteHeader(http.StatusNoContent)
}

// ListDeliveries はGET /api/deliveriesを処理する。
func (h *AdminHandler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	pending, err := h.deliveries.ListPending(r.Context())
	if err != nil {
		h.logger.Error("配信レコードの取得に失敗した", "error", err)
		middleware.WriteInternalServerError(w)
		return
	}

	type deliveryResponse struct {
		ID        string    `json:"id"`
		ChatID    int64     `json:"chat_id"`
		Bucket    string    `json:"bucket"`
		ItemID    int64     `json:"item_id"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	out := make([]deliveryResponse, 0, len(pending))
	for _, d := range pending {
		out = append(out, deliveryResponse{
			ID:        d.ID,
			ChatID:    d.ChatID,
			Bucket:    d.Bucket,
			ItemID:    d.ItemID,
			ExpiresAt: d.ExpiresAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"deliveries": out})
}

// parseUserID はパスパラメータのユーザーIDを解析する。不正な場合は400を書き込む。
func parseUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "userID")
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.BotError{
			Code:     "INVALID_REQUEST",
			Message:  "ユーザーIDの形式が不正です。",
			Category: "system",
			Action:   "数値のユーザーIDを指定してください。",
		})
		return 0, false
	}
	return userID, true
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("レスポンスの書き込みに失敗した", "error", err)
	}
}
