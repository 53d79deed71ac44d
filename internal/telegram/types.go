// Package telegram はTelegram Bot APIの型付きクライアントを提供する。
// エンジン本体はこのパッケージをトランスポート境界としてのみ利用し、
// ワイヤ形式の詳細には依存しない。
package telegram

// Update はgetUpdatesで受信する1件の更新を表す。
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	ChannelPost   *Message       `json:"channel_post,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

// User はTelegramユーザーを表す。
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username,omitempty"`
}

// Chat は会話（プライベートチャット、グループ、チャンネル）を表す。
type Chat struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title,omitempty"`
}

// Message は受信または送信されたメッセージを表す。
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Date      int64  `json:"date"`
	Text      string `json:"text,omitempty"`

	Photo     []PhotoSize `json:"photo,omitempty"`
	Video     *FileRef    `json:"video,omitempty"`
	Document  *FileRef    `json:"document,omitempty"`
	Animation *FileRef    `json:"animation,omitempty"`

	// 転送されたメッセージにのみ設定される。値の中身は使用せず、
	// 存在の有無のみを転送判定に用いる。
	ForwardDate   int64          `json:"forward_date,omitempty"`
	ForwardOrigin map[string]any `json:"forward_origin,omitempty"`
}

// PhotoSize は写真の1サイズ分を表す。
type PhotoSize struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
}

// FileRef は動画・ファイル・アニメーションの参照を表す。
type FileRef struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
}

// CallbackQuery はインラインボタンの押下を表す。
type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data,omitempty"`
}

// InlineKeyboardMarkup はインラインキーボードを表す。
type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

// InlineKeyboardButton はインラインキーボードの1ボタンを表す。
type InlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
}

// IsForwarded はメッセージが他のメッセージの転送かを返す。
// 証憑画像の使い回し防止に使用する。
func (m *Message) IsForwarded() bool {
	return m.ForwardDate != 0 || len(m.ForwardOrigin) > 0
}

// MediaKind はメッセージが持つメディアの種別を返す。
// メディアを持たない場合は空文字列とfalseを返す。
func (m *Message) MediaKind() (string, bool) {
	switch {
	case len(m.Photo) > 0:
		return "photo", true
	case m.Video != nil:
		return "video", true
	case m.Animation != nil:
		return "animation", true
	case m.Document != nil:
		return "document", true
	}
	return "", false
}

// LargestPhotoFileID は最大サイズの写真のfile_idを返す。写真がない場合は空文字列。
func (m *Message) LargestPhotoFileID() string {
	if len(m.Photo) == 0 {
		return ""
	}
	largest := m.Photo[0]
	for _, p := range m.Photo[1:] {
		if p.Width*p.Height > largest.Width*largest.Height {
			largest = p
		}
	}
	return largest.FileID
}
