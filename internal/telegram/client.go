// Package telegram is a minimal Bot API client: long polling and media replies.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pbaille/replybot/internal/domain"
)

const DefaultBaseURL = "https://api.telegram.org"

// Client calls the Telegram Bot API
type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

// NewClient creates a client. A nil httpClient gets a 60 second timeout.
func NewClient(httpClient *http.Client, baseURL, token string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

type response[T any] struct {
	OK          bool   `json:"ok"`
	Result      T      `json:"result"`
	Description string `json:"description,omitempty"`
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
}

// GetMe returns the bot's own user
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.methodURL("getMe"), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	var out response[User]
	if err := c.do(req, "getMe", &out); err != nil {
		return nil, err
	}
	return &out.Result, nil
}

// GetUpdates long polls for updates starting at offset and returns the offset
// to use for the next call.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, int64, error) {
	secs := max(int(timeout.Seconds()), 1)

	q := url.Values{}
	q.Set("timeout", strconv.Itoa(secs))
	q.Set("allowed_updates", `["message"]`)
	if offset > 0 {
		q.Set("offset", strconv.FormatInt(offset, 10))
	}

	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(secs)*time.Second+5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.methodURL("getUpdates")+"?"+q.Encode(), nil)
	if err != nil {
		return nil, offset, fmt.Errorf("create request: %w", err)
	}

	var out response[[]Update]
	if err := c.do(req, "getUpdates", &out); err != nil {
		return nil, offset, err
	}

	next := offset
	for _, u := range out.Result {
		if u.UpdateID >= next {
			next = u.UpdateID + 1
		}
	}
	return out.Result, next, nil
}

// SendMediaRequest describes a media reply. ReplyTo is optional.
type SendMediaRequest struct {
	ChatID  int64
	ReplyTo int64
	Type    domain.MediaType
	Name    string
	Data    []byte
	Caption string
}

// SendMedia uploads a voice, video or photo to a chat without notification.
func (c *Client) SendMedia(ctx context.Context, r SendMediaRequest) error {
	method, field, err := sendMethod(r.Type)
	if err != nil {
		return err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fields := map[string]string{
		"chat_id":              strconv.FormatInt(r.ChatID, 10),
		"disable_notification": "true",
	}
	if r.Caption != "" {
		fields["caption"] = r.Caption
	}
	if r.ReplyTo != 0 {
		fields["reply_to_message_id"] = strconv.FormatInt(r.ReplyTo, 10)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("write field %s: %w", k, err)
		}
	}

	name := r.Name
	if name == "" {
		name = field
	}
	part, err := mw.CreateFormFile(field, name)
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(r.Data); err != nil {
		return fmt.Errorf("write media: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), &body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out response[json.RawMessage]
	return c.do(req, method, &out)
}

func sendMethod(t domain.MediaType) (method, field string, err error) {
	switch t {
	case domain.MediaVoice:
		return "sendVoice", "voice", nil
	case domain.MediaVideo:
		return "sendVideo", "video", nil
	case domain.MediaPicture:
		return "sendPhoto", "photo", nil
	}
	return "", "", fmt.Errorf("unsupported media type %q", t)
}

type okResponse interface {
	ok() (bool, string)
}

func (r *response[T]) ok() (bool, string) { return r.OK, r.Description }

func (c *Client) do(req *http.Request, method string, out okResponse) error {
	resp, err := c.http.Do(req)
	if err != nil {
		// the request URL carries the bot token
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram %s: http %d: %s", method, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if ok, desc := out.ok(); !ok {
		return fmt.Errorf("telegram %s: ok=false %s", method, desc)
	}
	return nil
}
