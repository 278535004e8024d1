package telegram

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURLSpans_UTF16Offsets(t *testing.T) {
	// 😀 is two UTF-16 code units
	m := &Message{
		Text: "😀 see https://example.com/a и http://x.io now",
		Entities: []Entity{
			{Type: "url", Offset: 7, Length: 21},
			{Type: "bold", Offset: 0, Length: 2},
			{Type: "url", Offset: 31, Length: 11},
		},
	}
	assert.Equal(t, []string{"https://example.com/a", "http://x.io"}, m.URLSpans())
}

func TestURLSpans_Caption(t *testing.T) {
	m := &Message{
		Caption:         "look example.org",
		CaptionEntities: []Entity{{Type: "url", Offset: 5, Length: 11}},
		Entities:        []Entity{{Type: "url", Offset: 0, Length: 4}},
	}
	assert.Equal(t, "look example.org", m.TextOrCaption())
	assert.Equal(t, []string{"example.org"}, m.URLSpans())
}

func TestURLSpans_OutOfRangeEntityIgnored(t *testing.T) {
	m := &Message{Text: "short", Entities: []Entity{{Type: "url", Offset: 2, Length: 10}}}
	assert.Empty(t, m.URLSpans())
}

func TestForward(t *testing.T) {
	var legacy Message
	require.NoError(t, json.Unmarshal([]byte(`{"message_id":3,"forward_from_chat":{"id":-100777,"type":"channel"},"forward_from_message_id":12}`), &legacy))
	chatID, msgID, ok := legacy.Forward()
	assert.True(t, ok)
	assert.Equal(t, int64(-100777), chatID)
	assert.Equal(t, int64(12), msgID)

	var origin Message
	require.NoError(t, json.Unmarshal([]byte(`{"message_id":3,"forward_origin":{"type":"channel","chat":{"id":-100888},"message_id":99}}`), &origin))
	chatID, msgID, ok = origin.Forward()
	assert.True(t, ok)
	assert.Equal(t, int64(-100888), chatID)
	assert.Equal(t, int64(99), msgID)

	_, _, ok = (&Message{Text: "plain"}).Forward()
	assert.False(t, ok)

	userForward := &Message{ForwardOrigin: &MessageOrigin{Type: "user"}}
	_, _, ok = userForward.Forward()
	assert.False(t, ok)
}

func TestLink(t *testing.T) {
	private := &Message{MessageID: 77, Chat: &Chat{ID: -1001234567890, Type: "supergroup"}}
	link, ok := private.Link()
	assert.True(t, ok)
	assert.Equal(t, "https://t.me/c/1234567890/77", link)
	assert.True(t, private.IsSupergroup())

	public := &Message{MessageID: 5, Chat: &Chat{ID: -1009, Type: "supergroup", Username: "gophers"}}
	link, ok = public.Link()
	assert.True(t, ok)
	assert.Equal(t, "https://t.me/gophers/5", link)

	group := &Message{MessageID: 5, Chat: &Chat{ID: -42, Type: "group"}}
	_, ok = group.Link()
	assert.False(t, ok)
	assert.False(t, group.IsSupergroup())
}
