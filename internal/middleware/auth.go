package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/alexdevfreak/plansfilesharecombined/internal/model"
)

// NewBearerAuthMiddleware は静的トークンによるBearer認証ミドルウェアを生成する。
// 運用APIは管理者のみが利用するため、トークン1本の単純な認証で足りる。
// トークン比較はタイミング攻撃を避けるため定数時間で行う。
func NewBearerAuthMiddleware(token string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			provided, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
				WriteErrorResponse(w, http.StatusUnauthorized, &model.BotError{
					Code:     model.ErrCodeUnauthorized,
					Message:  "認証トークンが無効です。",
					Category: "auth",
					Action:   "正しいAuthorizationヘッダーを指定してください。",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
