package telegram

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf16"
)

type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

type Message struct {
	MessageID       int64    `json:"message_id"`
	Date            int64    `json:"date"`
	Chat            *Chat    `json:"chat,omitempty"`
	From            *User    `json:"from,omitempty"`
	Text            string   `json:"text,omitempty"`
	Caption         string   `json:"caption,omitempty"`
	Entities        []Entity `json:"entities,omitempty"`
	CaptionEntities []Entity `json:"caption_entities,omitempty"`

	ForwardFromChat      *Chat          `json:"forward_from_chat,omitempty"`
	ForwardFromMessageID int64          `json:"forward_from_message_id,omitempty"`
	ForwardOrigin        *MessageOrigin `json:"forward_origin,omitempty"`
}

type Chat struct {
	ID       int64  `json:"id"`
	Type     string `json:"type,omitempty"` // private|group|supergroup|channel
	Username string `json:"username,omitempty"`
}

type User struct {
	ID       int64  `json:"id"`
	IsBot    bool   `json:"is_bot,omitempty"`
	Username string `json:"username,omitempty"`
}

// Entity is a marked span of a text, with offsets in UTF-16 code units.
type Entity struct {
	Type   string `json:"type"`
	Offset int    `json:"offset"`
	Length int    `json:"length"`
}

// MessageOrigin describes where a forwarded message comes from.
type MessageOrigin struct {
	Type      string `json:"type"` // user|hidden_user|chat|channel
	Chat      *Chat  `json:"chat,omitempty"`
	MessageID int64  `json:"message_id,omitempty"`
}

// Time returns when the message was sent.
func (m *Message) Time() time.Time {
	return time.Unix(m.Date, 0)
}

// TextOrCaption returns the text of a text message or the caption of a media message.
func (m *Message) TextOrCaption() string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}

func (m *Message) entities() []Entity {
	if m.Text != "" {
		return m.Entities
	}
	return m.CaptionEntities
}

// URLSpans returns the literal text of every url entity, in entity order.
func (m *Message) URLSpans() []string {
	text := m.TextOrCaption()
	var spans []string
	for _, e := range m.entities() {
		if e.Type != "url" {
			continue
		}
		if s, ok := entityText(text, e); ok {
			spans = append(spans, s)
		}
	}
	return spans
}

// IsSupergroup reports whether the message was posted in a supergroup.
func (m *Message) IsSupergroup() bool {
	return m.Chat != nil && m.Chat.Type == "supergroup"
}

// Forward returns the chat and message id a forwarded message was taken from.
func (m *Message) Forward() (chatID, messageID int64, ok bool) {
	if m.ForwardFromChat != nil && m.ForwardFromMessageID != 0 {
		return m.ForwardFromChat.ID, m.ForwardFromMessageID, true
	}
	if o := m.ForwardOrigin; o != nil && o.Chat != nil && o.MessageID != 0 {
		return o.Chat.ID, o.MessageID, true
	}
	return 0, 0, false
}

// Link returns a t.me link to the message. Only public chats and supergroups have one.
func (m *Message) Link() (string, bool) {
	if m.Chat == nil {
		return "", false
	}
	if m.Chat.Username != "" {
		return "https://t.me/" + m.Chat.Username + "/" + strconv.FormatInt(m.MessageID, 10), true
	}
	if m.Chat.Type != "supergroup" && m.Chat.Type != "channel" {
		return "", false
	}
	// private supergroup ids are -100 followed by the internal id
	id := strings.TrimPrefix(strconv.FormatInt(m.Chat.ID, 10), "-100")
	return "https://t.me/c/" + id + "/" + strconv.FormatInt(m.MessageID, 10), true
}

func entityText(text string, e Entity) (string, bool) {
	if e.Offset < 0 || e.Length <= 0 {
		return "", false
	}
	units := utf16.Encode([]rune(text))
	end := e.Offset + e.Length
	if end > len(units) {
		return "", false
	}
	return string(utf16.Decode(units[e.Offset:end])), true
}
