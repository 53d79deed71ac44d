package purchase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexdevfreak/plansfilesharecombined/internal/model"
	"github.com/alexdevfreak/plansfilesharecombined/internal/security"
)

// QRVerifier は設定された支払いQR画像URLの安全性と到達性を検証する。
// URLは管理者が設定するものだが、外部リソースへの到達はSSRF防止付き
// クライアント経由に限定する。
type QRVerifier struct {
	guard   security.SSRFGuardService
	logger  *slog.Logger
	timeout time.Duration
	maxSize int64

	// テストでHTTPクライアントを差し替えるためのフック
	newClient func(timeout time.Duration) *http.Client
}

// NewQRVerifier は新しいQRVerifierを生成する。
func NewQRVerifier(guard security.SSRFGuardService, logger *slog.Logger, timeout time.Duration, maxSize int64) *QRVerifier {
	return &QRVerifier{
		guard:     guard,
		logger:    logger,
		timeout:   timeout,
		maxSize:   maxSize,
		newClient: guard.NewSafeClient,
	}
}

// Verify はURLを静的に検証した上で取得を試み、画像として妥当かを確認する。
func (v *QRVerifier) Verify(ctx context.Context, rawURL string) error {
	if err := v.guard.ValidateURL(rawURL); err != nil {
		return fmt.Errorf("QR URLの検証に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("QR URLのリクエスト生成に失敗しました: %w", err)
	}

	client := v.newClient(v.timeout)
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("QR画像の取得に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("QR画像の取得に失敗しました: status %d", resp.StatusCode)
	}
	if resp.ContentLength > v.maxSize {
		return fmt.Errorf("QR画像が大きすぎます: %d bytes", resp.ContentLength)
	}

	// Content-Lengthが無い場合に備えて実読み込みでも上限を課す
	n, err := io.Copy(io.Discard, io.LimitReader(resp.Body, v.maxSize+1))
	if err != nil {
		return fmt.Errorf("QR画像の読み取りに失敗しました: %w", err)
	}
	if n > v.maxSize {
		return fmt.Errorf("QR画像が大きすぎます: %d bytes超", v.maxSize)
	}

	return nil
}

// VerifyPlans は全プランのQR URLを検証し、到達できないURLを持つプランの
// QRURLを空にしたカタログを返す。起動時に1回呼ぶ。
// 検証失敗は起動を妨げない。該当プランはテキスト案内にフォールバックする。
func (v *QRVerifier) VerifyPlans(ctx context.Context, plans []model.Plan) []model.Plan {
	verified := make([]model.Plan, len(plans))
	copy(verified, plans)

	for i := range verified {
		if verified[i].QRURL == "" {
			continue
		}
		if err := v.Verify(ctx, verified[i].QRURL); err != nil {
			v.logger.Warn("QR画像URLの検証に失敗したためテキスト案内へフォールバックする",
				"plan_id", verified[i].ID,
				"error", err,
			)
			verified[i].QRURL = ""
		}
	}
	return verified
}
