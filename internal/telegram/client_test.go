package telegram

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/replybot/internal/domain"
)

func TestGetMe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/getMe", r.URL.Path)
		w.Write([]byte(`{"ok":true,"result":{"id":42,"is_bot":true,"username":"reply_bot"}}`))
	}))
	defer srv.Close()

	me, err := NewClient(srv.Client(), srv.URL+"/", "TOKEN").GetMe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &User{ID: 42, IsBot: true, Username: "reply_bot"}, me)
}

func TestGetUpdates_AdvancesOffset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/getUpdates", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("offset"))
		assert.Equal(t, "1", r.URL.Query().Get("timeout"))
		w.Write([]byte(`{"ok":true,"result":[
			{"update_id":10,"message":{"message_id":1,"date":1700000000,"chat":{"id":-1001,"type":"supergroup"},"text":"hi"}},
			{"update_id":12}
		]}`))
	}))
	defer srv.Close()

	updates, next, err := NewClient(srv.Client(), srv.URL, "TOKEN").GetUpdates(context.Background(), 10, time.Second)
	require.NoError(t, err)
	require.Len(t, updates, 2)
	assert.Equal(t, int64(13), next)
	assert.Equal(t, "hi", updates[0].Message.Text)
	assert.Nil(t, updates[1].Message)
}

func TestGetUpdates_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("offset") {
		case "1":
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		default:
			w.Write([]byte(`{"ok":false,"description":"conflict"}`))
		}
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "TOKEN")

	_, next, err := c.GetUpdates(context.Background(), 1, time.Second)
	assert.ErrorContains(t, err, "http 401")
	assert.Equal(t, int64(1), next)

	_, _, err = c.GetUpdates(context.Background(), 2, time.Second)
	assert.ErrorContains(t, err, "conflict")
}

func TestTransportErrorHidesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(nil, url, "123456:SECRET")

	_, _, err := c.GetUpdates(context.Background(), 0, time.Second)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRET")
	assert.Contains(t, err.Error(), "telegram getUpdates")

	_, err = c.GetMe(context.Background())
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRET")
}

func TestSendMedia(t *testing.T) {
	cases := []struct {
		typ    domain.MediaType
		method string
		field  string
	}{
		{domain.MediaVoice, "sendVoice", "voice"},
		{domain.MediaVideo, "sendVideo", "video"},
		{domain.MediaPicture, "sendPhoto", "photo"},
	}

	for _, tc := range cases {
		t.Run(string(tc.typ), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/botTOKEN/"+tc.method, r.URL.Path)
				require.NoError(t, r.ParseMultipartForm(1<<20))
				assert.Equal(t, "-1001", r.FormValue("chat_id"))
				assert.Equal(t, "55", r.FormValue("reply_to_message_id"))
				assert.Equal(t, "true", r.FormValue("disable_notification"))
				assert.Equal(t, "seen it", r.FormValue("caption"))

				f, hdr, err := r.FormFile(tc.field)
				require.NoError(t, err)
				defer f.Close()
				data, _ := io.ReadAll(f)
				assert.Equal(t, "payload", string(data))
				assert.Equal(t, "clip", hdr.Filename)

				w.Write([]byte(`{"ok":true,"result":{"message_id":56}}`))
			}))
			defer srv.Close()

			err := NewClient(srv.Client(), srv.URL, "TOKEN").SendMedia(context.Background(), SendMediaRequest{
				ChatID:  -1001,
				ReplyTo: 55,
				Type:    tc.typ,
				Name:    "clip",
				Data:    []byte("payload"),
				Caption: "seen it",
			})
			assert.NoError(t, err)
		})
	}
}

func TestSendMedia_OmitsOptionalFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, hasReply := r.MultipartForm.Value["reply_to_message_id"]
		_, hasCaption := r.MultipartForm.Value["caption"]
		assert.False(t, hasReply)
		assert.False(t, hasCaption)
		w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	defer srv.Close()

	err := NewClient(srv.Client(), srv.URL, "TOKEN").SendMedia(context.Background(), SendMediaRequest{
		ChatID: 1,
		Type:   domain.MediaVoice,
		Data:   []byte("ogg"),
	})
	assert.NoError(t, err)
}

func TestSendMedia_UnknownType(t *testing.T) {
	err := NewClient(nil, "", "TOKEN").SendMedia(context.Background(), SendMediaRequest{Type: "gif"})
	assert.Error(t, err)
}
