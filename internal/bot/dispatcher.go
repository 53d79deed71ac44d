package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"time"

	"github.com/alexdevfreak/plansfilesharecombined/internal/catalog"
	"github.com/alexdevfreak/plansfilesharecombined/internal/config"
	"github.com/alexdevfreak/plansfilesharecombined/internal/delivery"
	"github.com/alexdevfreak/plansfilesharecombined/internal/entitlement"
	"github.com/alexdevfreak/plansfilesharecombined/internal/index"
	"github.com/alexdevfreak/plansfilesharecombined/internal/ingest"
	"github.com/alexdevfreak/plansfilesharecombined/internal/model"
	"github.com/alexdevfreak/plansfilesharecombined/internal/purchase"
	"github.com/alexdevfreak/plansfilesharecombined/internal/security"
	"github.com/alexdevfreak/plansfilesharecombined/internal/selector"
	"github.com/alexdevfreak/plansfilesharecombined/internal/telegram"
)

// Transport はディスパッチャーが必要とするTelegram操作のサブセット。
type Transport interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, error)
	SendMessage(ctx context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) (*telegram.Message, error)
	SendPhoto(ctx context.Context, chatID int64, photo, caption string, markup *telegram.InlineKeyboardMarkup) (*telegram.Message, error)
	AnswerCallbackQuery(ctx context.Context, callbackID, text string, showAlert bool) error
	EditMessageReplyMarkup(ctx context.Context, chatID, messageID int64, markup *telegram.InlineKeyboardMarkup) error
}

// Dispatcher はTelegram更新をエンジンの各サービスへ振り分ける。
type Dispatcher struct {
	transport   Transport
	cfg         *config.Config
	catalog     *catalog.Catalog
	entitlement *entitlement.Service
	purchase    *purchase.Service
	selector    *selector.Service
	delivery    *delivery.Service
	index       *index.Service
	recorder    *ingest.Recorder
	sanitizer   security.TextSanitizerService
	limiter     *ActionLimiter
	logger      *slog.Logger
}

// NewDispatcher は新しいDispatcherを生成する。
func NewDispatcher(
	transport Transport,
	cfg *config.Config,
	cat *catalog.Catalog,
	ent *entitlement.Service,
	pur *purchase.Service,
	sel *selector.Service,
	del *delivery.Service,
	idx *index.Service,
	rec *ingest.Recorder,
	sanitizer security.TextSanitizerService,
	limiter *ActionLimiter,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		transport:   transport,
		cfg:         cfg,
		catalog:     cat,
		entitlement: ent,
		purchase:    pur,
		selector:    sel,
		delivery:    del,
		index:       idx,
		recorder:    rec,
		sanitizer:   sanitizer,
		limiter:     limiter,
		logger:      logger,
	}
}

// Run はロングポーリングで更新を受信し続ける。ctxのキャンセルで停止する。
func (d *Dispatcher) Run(ctx context.Context) error {
	var offset int64

	d.logger.Info("更新の受信を開始した", "poll_timeout", d.cfg.PollTimeout)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, err := d.transport.GetUpdates(ctx, offset, d.cfg.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.logger.Error("更新の取得に失敗した", "error", err)
			time.Sleep(3 * time.Second)
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			d.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate は1件の更新を処理する。
// 個別の処理の失敗はログに記録し、ポーリングループを止めない。
func (d *Dispatcher) HandleUpdate(ctx context.Context, update telegram.Update) {
	switch {
	case update.ChannelPost != nil:
		if err := d.recorder.RecordChannelPost(ctx, update.ChannelPost); err != nil {
			d.logger.Error("チャンネル投稿の処理に失敗した",
				"update_id", update.UpdateID,
				"error", err,
			)
		}

	case update.CallbackQuery != nil:
		if err := d.handleCallback(ctx, update.CallbackQuery); err != nil {
			d.logger.Error("コールバックの処理に失敗した",
				"update_id", update.UpdateID,
				"user_id", update.CallbackQuery.From.ID,
				"error", err,
			)
		}

	case update.Message != nil:
		if err := d.handleMessage(ctx, update.Message); err != nil {
			d.logger.Error("メッセージの処理に失敗した",
				"update_id", update.UpdateID,
				"error", err,
			)
		}
	}
}

// handleMessage はプライベートチャットのメッセージを処理する。
func (d *Dispatcher) handleMessage(ctx context.Context, msg *telegram.Message) error {
	if msg.From == nil || msg.Chat.Type != "private" {
		return nil
	}
	userID := msg.From.ID

	// 写真は購入フローの証憑として扱う
	if len(msg.Photo) > 0 {
		return d.handleProofPhoto(ctx, msg)
	}

	action := ParseCommand(msg.Text)
	switch action.Kind {
	case ActionStart:
		return d.sendHome(ctx, userID)

	case ActionProfile:
		return d.sendProfile(ctx, userID)

	case ActionChoosePlan:
		_, err := d.transport.SendMessage(ctx, userID, "Choose your plan:", planOptionsMarkup(d.purchase.Plans()))
		return err

	case ActionAuthorize, ActionUnauthorize, ActionListAuthorized, ActionStats, ActionClearCache:
		return d.handleAdminCommand(ctx, userID, action)
	}

	return nil
}

// handleCallback はインラインボタンの押下を処理する。
func (d *Dispatcher) handleCallback(ctx context.Context, cb *telegram.CallbackQuery) error {
	if cb.Message == nil {
		return d.transport.AnswerCallbackQuery(ctx, cb.ID, "", false)
	}
	userID := cb.From.ID
	chatID := cb.Message.Chat.ID

	action := ParseCallback(cb.Data)
	switch action.Kind {
	case ActionChoosePlan:
		if err := d.answer(ctx, cb.ID); err != nil {
			return err
		}
		_, err := d.transport.SendMessage(ctx, chatID, "Choose your plan:", planOptionsMarkup(d.purchase.Plans()))
		return err

	case ActionSelectPlan:
		return d.handleSelectPlan(ctx, cb, action.PlanID)

	case ActionPaymentDone:
		return d.handlePaymentDone(ctx, cb)

	case ActionProfile:
		if err := d.answer(ctx, cb.ID); err != nil {
			return err
		}
		return d.sendProfile(ctx, userID)

	case ActionShowCategories:
		if !d.requireEntitled(ctx, cb) {
			return nil
		}
		if err := d.answer(ctx, cb.ID); err != nil {
			return err
		}
		_, err := d.transport.SendMessage(ctx, chatID, "📚 Categories:", categoriesMarkup(d.catalog))
		return err

	case ActionCategory:
		if !d.requireEntitled(ctx, cb) {
			return nil
		}
		if err := d.answer(ctx, cb.ID); err != nil {
			return err
		}
		_, err := d.transport.SendMessage(ctx, chatID, "📁 "+action.Category+":", subcategoriesMarkup(d.catalog, action.Category))
		return err

	case ActionSubcategory:
		if !d.requireEntitled(ctx, cb) {
			return nil
		}
		if err := d.answer(ctx, cb.ID); err != nil {
			return err
		}
		_, err := d.transport.SendMessage(ctx, chatID, "Pick one:", mediaOptionsMarkup(action.Bucket))
		return err

	case ActionGet:
		return d.handleFetch(ctx, cb, action.Bucket, selector.ModeRandomUnseen)

	case ActionNext:
		return d.handleFetch(ctx, cb, action.Bucket, selector.ModeSequentialNext)

	case ActionApprove:
		return d.handleApprove(ctx, cb, action)

	case ActionReject:
		return d.handleReject(ctx, cb, action)
	}

	return d.transport.AnswerCallbackQuery(ctx, cb.ID, "", false)
}

// handleSelectPlan は支払い案内（QR画像またはテキスト）を送る。
func (d *Dispatcher) handleSelectPlan(ctx context.Context, cb *telegram.CallbackQuery, planID string) error {
	userID := cb.From.ID
	chatID := cb.Message.Chat.ID

	session, err := d.purchase.SelectPlan(ctx, userID, planID)
	if err != nil {
		var botErr *model.BotError
		if errors.As(err, &botErr) {
			return d.transport.AnswerCallbackQuery(ctx, cb.ID, userFacingText(botErr), true)
		}
		return err
	}
	if err := d.answer(ctx, cb.ID); err != nil {
		return err
	}

	plan, _ := d.purchase.PlanByID(session.PlanID)
	caption := fmt.Sprintf(
		"💳 <b>%s</b> - ₹%d\n\nPay via UPI:\n<code>%s</code>\n\nTap the button below once you've paid.",
		html.EscapeString(plan.Label), plan.Price, html.EscapeString(d.cfg.UPIID),
	)

	if plan.QRURL != "" {
		if _, err := d.transport.SendPhoto(ctx, chatID, plan.QRURL, caption, paymentDoneMarkup()); err == nil {
			return nil
		}
		// 画像送信に失敗した場合はテキスト案内にフォールバックする
		d.logger.Warn("QR画像の送信に失敗した", "plan_id", plan.ID)
	}
	_, err = d.transport.SendMessage(ctx, chatID, caption, paymentDoneMarkup())
	return err
}

// handlePaymentDone は支払い完了の申告を受けて証憑の送信を促す。
func (d *Dispatcher) handlePaymentDone(ctx context.Context, cb *telegram.CallbackQuery) error {
	userID := cb.From.ID

	if _, err := d.purchase.ConfirmPayment(ctx, userID); err != nil {
		var botErr *model.BotError
		if errors.As(err, &botErr) {
			return d.transport.AnswerCallbackQuery(ctx, cb.ID, userFacingText(botErr), true)
		}
		return err
	}
	if err := d.answer(ctx, cb.ID); err != nil {
		return err
	}

	_, err := d.transport.SendMessage(ctx, cb.Message.Chat.ID,
		"📸 Send a screenshot of your payment here.\n\n⚠️ Forwarded screenshots are not accepted.", nil)
	return err
}

// handleProofPhoto は証憑写真を受理し管理者へレビュー依頼を送る。
func (d *Dispatcher) handleProofPhoto(ctx context.Context, msg *telegram.Message) error {
	userID := msg.From.ID

	session, err := d.purchase.SubmitProof(ctx, userID, msg.IsForwarded())
	if err != nil {
		var botErr *model.BotError
		if errors.As(err, &botErr) && botErr.Code == model.ErrCodeForwardedProof {
			_, sendErr := d.transport.SendMessage(ctx, userID,
				"⚠️ Forwarded screenshots are not accepted. Please send the original screenshot.", nil)
			return sendErr
		}
		return err
	}
	if session == nil {
		// 購入フロー外の写真には反応しない
		return nil
	}

	name := d.sanitizer.SanitizeDisplayText(msg.From.FirstName)
	caption := fmt.Sprintf(
		"🧾 Payment proof\nUser: <b>%s</b> (<code>%d</code>)\nPlan: %s",
		html.EscapeString(name), userID, session.PlanID,
	)
	markup := adminReviewMarkup(userID, session.PlanID)

	if _, err := d.transport.SendPhoto(ctx, d.cfg.AdminID, msg.LargestPhotoFileID(), caption, markup); err != nil {
		d.logger.Error("管理者への証憑転送に失敗した", "user_id", userID, "error", err)
		if _, err := d.transport.SendMessage(ctx, d.cfg.AdminID, caption, markup); err != nil {
			return err
		}
	}

	_, err = d.transport.SendMessage(ctx, userID,
		"✅ Screenshot received! You'll get access once it's verified.", nil)
	return err
}

// handleFetch はコンテンツ1件の選択と配信を行う。
func (d *Dispatcher) handleFetch(ctx context.Context, cb *telegram.CallbackQuery, bucket string, mode selector.Mode) error {
	if !d.requireEntitled(ctx, cb) {
		return nil
	}
	userID := cb.From.ID
	chatID := cb.Message.Chat.ID

	if !d.limiter.Allow(userID) {
		return d.transport.AnswerCallbackQuery(ctx, cb.ID, "⏳ Slow down! Try again in a bit.", true)
	}

	if !d.catalog.Contains(bucket) {
		return d.transport.AnswerCallbackQuery(ctx, cb.ID, "🚧 This section isn't available yet.", true)
	}

	itemID, ok, err := d.selector.Select(ctx, userID, bucket, mode)
	if err != nil {
		d.logger.Error("アイテム選択に失敗した", "user_id", userID, "bucket", bucket, "error", err)
		return d.transport.AnswerCallbackQuery(ctx, cb.ID, "😔 Something went wrong. Try again.", true)
	}
	if !ok {
		return d.transport.AnswerCallbackQuery(ctx, cb.ID, "📭 No content here yet. Check back later!", true)
	}

	if _, err := d.delivery.Deliver(ctx, chatID, bucket, itemID); err != nil {
		return d.transport.AnswerCallbackQuery(ctx, cb.ID, "😔 Couldn't deliver that one. Try again.", true)
	}

	if err := d.answer(ctx, cb.ID); err != nil {
		return err
	}
	_, err = d.transport.SendMessage(ctx, chatID,
		fmt.Sprintf("⏳ This will disappear in %s. Save it if you want to keep it!", formatRetention(d.delivery.Retention())),
		mediaOptionsMarkup(bucket))
	return err
}

// handleApprove は管理者による購入承認を処理する。
func (d *Dispatcher) handleApprove(ctx context.Context, cb *telegram.CallbackQuery, action Action) error {
	sub, err := d.purchase.Approve(ctx, cb.From.ID, action.TargetUser, action.Duration)
	if err != nil {
		var botErr *model.BotError
		if errors.As(err, &botErr) {
			return d.transport.AnswerCallbackQuery(ctx, cb.ID, userFacingText(botErr), true)
		}
		return err
	}

	// レビュー済みの証憑からボタンを外す
	if err := d.transport.EditMessageReplyMarkup(ctx, cb.Message.Chat.ID, cb.Message.MessageID, nil); err != nil {
		d.logger.Warn("レビューボタンの除去に失敗した", "error", err)
	}
	if err := d.transport.AnswerCallbackQuery(ctx, cb.ID, "Approved ✅", false); err != nil {
		return err
	}

	text := "🎉 Your payment has been verified! You now have full access.\n\nSend /start to browse."
	if sub != nil && sub.ExpiresAt != nil {
		text = fmt.Sprintf("🎉 Your payment has been verified! Access until %s.\n\nSend /start to browse.",
			sub.ExpiresAt.Format("2 Jan 2006"))
	}
	_, err = d.transport.SendMessage(ctx, action.TargetUser, text, nil)
	return err
}

// handleReject は管理者による購入却下を処理する。
func (d *Dispatcher) handleReject(ctx context.Context, cb *telegram.CallbackQuery, action Action) error {
	if err := d.purchase.Reject(ctx, cb.From.ID, action.TargetUser); err != nil {
		var botErr *model.BotError
		if errors.As(err, &botErr) {
			return d.transport.AnswerCallbackQuery(ctx, cb.ID, userFacingText(botErr), true)
		}
		return err
	}

	if err := d.transport.EditMessageReplyMarkup(ctx, cb.Message.Chat.ID, cb.Message.MessageID, nil); err != nil {
		d.logger.Warn("レビューボタンの除去に失敗した", "error", err)
	}
	if err := d.transport.AnswerCallbackQuery(ctx, cb.ID, "Rejected ❌", false); err != nil {
		return err
	}

	_, err := d.transport.SendMessage(ctx, action.TargetUser,
		"❌ Your payment could not be verified. Contact support if you believe this is a mistake.", nil)
	return err
}

// handleAdminCommand は管理者専用コマンドを処理する。
func (d *Dispatcher) handleAdminCommand(ctx context.Context, userID int64, action Action) error {
	if !d.cfg.IsAdmin(userID) {
		_, err := d.transport.SendMessage(ctx, userID, "🚫 You are not allowed to use this command.", nil)
		return err
	}

	switch action.Kind {
	case ActionAuthorize:
		sub, err := d.entitlement.Grant(ctx, action.TargetUser, action.Duration)
		if err != nil {
			return err
		}
		text := fmt.Sprintf("✅ User %d authorized permanently.", action.TargetUser)
		if sub.ExpiresAt != nil {
			text = fmt.Sprintf("✅ User %d authorized until %s.", action.TargetUser, sub.ExpiresAt.Format("2 Jan 2006"))
		}
		_, err = d.transport.SendMessage(ctx, userID, text, nil)
		return err

	case ActionUnauthorize:
		if err := d.entitlement.Revoke(ctx, action.TargetUser); err != nil {
			return err
		}
		_, err := d.transport.SendMessage(ctx, userID,
			fmt.Sprintf("✅ User %d unauthorized.", action.TargetUser), nil)
		return err

	case ActionListAuthorized:
		subs, err := d.entitlement.List(ctx)
		if err != nil {
			return err
		}
		if len(subs) == 0 {
			_, err := d.transport.SendMessage(ctx, userID, "No authorized users.", nil)
			return err
		}
		text := "👥 Authorized users:\n"
		for _, sub := range subs {
			switch {
			case sub.Permanent:
				text += fmt.Sprintf("• %d - lifetime\n", sub.UserID)
			case sub.ExpiresAt != nil:
				text += fmt.Sprintf("• %d - until %s\n", sub.UserID, sub.ExpiresAt.Format("2 Jan 2006"))
			default:
				text += fmt.Sprintf("• %d\n", sub.UserID)
			}
		}
		_, err = d.transport.SendMessage(ctx, userID, text, nil)
		return err

	case ActionStats:
		count, err := d.entitlement.Count(ctx)
		if err != nil {
			return err
		}
		_, err = d.transport.SendMessage(ctx, userID,
			fmt.Sprintf("📊 Active subscriptions: %d", count), nil)
		return err

	case ActionClearCache:
		if action.Bucket == "" {
			d.index.ClearAll()
			_, err := d.transport.SendMessage(ctx, userID, "🧹 All caches cleared.", nil)
			return err
		}
		d.index.Clear(action.Bucket)
		_, err := d.transport.SendMessage(ctx, userID,
			fmt.Sprintf("🧹 Cache cleared for %s.", action.Bucket), nil)
		return err
	}

	return nil
}

// sendHome は加入状態に応じた初期画面を送る。
func (d *Dispatcher) sendHome(ctx context.Context, userID int64) error {
	if d.entitlement.IsEntitled(ctx, userID) {
		_, err := d.transport.SendMessage(ctx, userID, "👋 Welcome back!\n\n📚 Categories:", categoriesMarkup(d.catalog))
		return err
	}
	_, err := d.transport.SendMessage(ctx, userID,
		"👋 Welcome!\n\nGet a premium plan to unlock all content.", subscribeMarkup())
	return err
}

// sendProfile は加入状態の詳細を送る。
func (d *Dispatcher) sendProfile(ctx context.Context, userID int64) error {
	sub, err := d.entitlement.Find(ctx, userID)
	if err != nil {
		return err
	}

	var text string
	switch {
	case sub == nil:
		text = "👤 Your Profile\n\nStatus: ❌ Not subscribed"
	case sub.Permanent:
		text = "👤 Your Profile\n\nStatus: ✅ Lifetime access"
	case sub.Active(time.Now()):
		text = fmt.Sprintf("👤 Your Profile\n\nStatus: ✅ Active until %s", sub.ExpiresAt.Format("2 Jan 2006"))
	default:
		text = "👤 Your Profile\n\nStatus: ⌛ Expired"
	}

	markup := subscribeMarkup()
	if sub != nil && sub.Active(time.Now()) {
		markup = nil
	}
	_, err = d.transport.SendMessage(ctx, userID, text, markup)
	return err
}

// requireEntitled は加入状態を確認し、未加入ならプラン導線を返してfalseを返す。
func (d *Dispatcher) requireEntitled(ctx context.Context, cb *telegram.CallbackQuery) bool {
	if d.entitlement.IsEntitled(ctx, cb.From.ID) {
		return true
	}

	if err := d.transport.AnswerCallbackQuery(ctx, cb.ID, "🔒 You need an active plan for this.", true); err != nil {
		d.logger.Warn("コールバック応答に失敗した", "error", err)
	}
	if _, err := d.transport.SendMessage(ctx, cb.From.ID,
		"🔒 This content requires an active plan.", subscribeMarkup()); err != nil {
		d.logger.Warn("未加入案内の送信に失敗した", "error", err)
	}
	return false
}

// userFacingText はエラーコードをユーザーに提示する英文に変換する。
// 内部のエラーメッセージはそのまま露出させない。
func userFacingText(err *model.BotError) string {
	switch err.Code {
	case model.ErrCodeNotEntitled:
		return "🔒 You need an active plan for this."
	case model.ErrCodeBucketUnconfigured:
		return "🚧 This section isn't available yet."
	case model.ErrCodeEmptyIndex:
		return "📭 No content here yet. Check back later!"
	case model.ErrCodeRelayFailed:
		return "😔 Couldn't deliver that one. Try again."
	case model.ErrCodeUnauthorized:
		return "🚫 Admins only."
	case model.ErrCodeForwardedProof:
		return "⚠️ Forwarded screenshots are not accepted."
	case model.ErrCodePlanNotFound:
		return "🤔 That plan doesn't exist. Pick one from the list."
	case model.ErrCodeInvalidState:
		return "🔄 Please start over with /start."
	}
	return "😔 Something went wrong. Try again."
}

// answer はコールバックへの空応答を返す。押下のスピナーを止めるために必要。
func (d *Dispatcher) answer(ctx context.Context, callbackID string) error {
	return d.transport.AnswerCallbackQuery(ctx, callbackID, "", false)
}

// formatRetention は保持期間を人が読みやすい形式にする。
func formatRetention(retention time.Duration) string {
	if retention >= time.Hour && retention%time.Hour == 0 {
		hours := int(retention / time.Hour)
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	minutes := int(retention / time.Minute)
	if minutes == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}
