package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/replybot/internal/classifier"
	"github.com/pbaille/replybot/internal/domain"
	"github.com/pbaille/replybot/internal/telegram"
)

type fakeTransport struct {
	mu      sync.Mutex
	sent    []telegram.SendMediaRequest
	batches [][]telegram.Update
	cancel  context.CancelFunc
}

func (f *fakeTransport) GetUpdates(ctx context.Context, offset int64, _ time.Duration) ([]telegram.Update, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.batches) == 0 {
		f.cancel()
		return nil, offset, ctx.Err()
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch, offset + int64(len(batch)), nil
}

func (f *fakeTransport) SendMedia(_ context.Context, r telegram.SendMediaRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, r)
	return nil
}

func (f *fakeTransport) Sent() []telegram.SendMediaRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]telegram.SendMediaRequest(nil), f.sent...)
}

type fakeCatalog struct {
	tags  []domain.Tag
	media map[string][]domain.Media
	data  map[string][]byte
	err   error
}

func (c *fakeCatalog) Tags(context.Context) ([]domain.Tag, error) { return c.tags, c.err }

func (c *fakeCatalog) MediaByTag(_ context.Context, tag string) ([]domain.Media, error) {
	return c.media[tag], nil
}

func (c *fakeCatalog) MediaData(_ context.Context, name string) ([]byte, error) {
	return c.data[name], nil
}

type fakeForwards struct {
	mu      sync.Mutex
	seen    map[[3]int64]domain.ForwardedMessage
	feature []domain.Media
}

func (f *fakeForwards) ForwardedMessage(_ context.Context, chatID, fromChat, fromMsg int64) (*domain.ForwardedMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fm, ok := f.seen[[3]int64{chatID, fromChat, fromMsg}]; ok {
		return &fm, nil
	}
	return nil, nil
}

func (f *fakeForwards) InsertForwardedMessage(_ context.Context, fm domain.ForwardedMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen[[3]int64{fm.ChatID, fm.ForwardedChatID, fm.ForwardedMessageID}] = fm
	return nil
}

func (f *fakeForwards) MediaByFeature(context.Context, domain.Feature) ([]domain.Media, error) {
	return f.feature, nil
}

var now = time.Unix(1_700_000_100, 0)

type fixture struct {
	bot       *Bot
	transport *fakeTransport
	catalog   *fakeCatalog
	forwards  *fakeForwards
	clock     time.Time
}

func newFixture(t *testing.T, mutate func(*Options)) *fixture {
	t.Helper()
	f := &fixture{
		transport: &fakeTransport{},
		catalog: &fakeCatalog{
			tags: []domain.Tag{
				{ID: 1, Text: "кот", Strategy: domain.StrategyFuzzy, Scope: domain.ScopePerToken},
				{ID: 2, Text: "^собак", Strategy: domain.StrategyExact, Scope: domain.ScopePerToken},
			},
			media: map[string][]domain.Media{
				"кот":    {{ID: 10, Name: "meow", Type: domain.MediaVoice}},
				"^собак": {{ID: 11, Name: "bark", Type: domain.MediaVideo}},
			},
			data: map[string][]byte{"meow": []byte("ogg"), "bark": []byte("mp4"), "again": []byte("png")},
		},
		forwards: &fakeForwards{
			seen:    map[[3]int64]domain.ForwardedMessage{},
			feature: []domain.Media{{ID: 12, Name: "again", Type: domain.MediaPicture}},
		},
		clock: now,
	}

	opts := DefaultOptions()
	opts.SendChance = 100
	if mutate != nil {
		mutate(&opts)
	}
	f.bot = New(f.transport, f.catalog, f.forwards, opts,
		WithChooser(classifier.FixedChooser(0)),
		WithRecognizer(classifier.New(classifier.WithChooser(classifier.FixedChooser(0)))),
		WithClock(func() time.Time { return f.clock }),
	)
	return f
}

func textMessage(chatID, id int64, text string) *telegram.Message {
	return &telegram.Message{
		MessageID: id,
		Date:      now.Unix() - 5,
		Chat:      &telegram.Chat{ID: chatID, Type: "supergroup"},
		Text:      text,
	}
}

func forwardMessage(chatID, id, fromChat, fromMsg int64) *telegram.Message {
	m := textMessage(chatID, id, "")
	m.ForwardFromChat = &telegram.Chat{ID: fromChat, Type: "channel"}
	m.ForwardFromMessageID = fromMsg
	return m
}

func TestTextTrigger_RepliesWithTagMedia(t *testing.T) {
	f := newFixture(t, nil)

	f.bot.HandleMessage(context.Background(), 1, textMessage(-1001, 7, "Смотри, КОТ!"))

	sent := f.transport.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, telegram.SendMediaRequest{
		ChatID:  -1001,
		ReplyTo: 7,
		Type:    domain.MediaVoice,
		Name:    "meow",
		Data:    []byte("ogg"),
	}, sent[0])
}

func TestTextTrigger_PatternBeatsFuzzy(t *testing.T) {
	f := newFixture(t, nil)

	f.bot.HandleMessage(context.Background(), 1, textMessage(-1001, 7, "кот и собака"))

	sent := f.transport.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "bark", sent[0].Name)
}

func TestTextTrigger_URLsAreIgnored(t *testing.T) {
	f := newFixture(t, nil)
	msg := textMessage(-1001, 7, "https://кот.рф")
	msg.Entities = []telegram.Entity{{Type: "url", Offset: 0, Length: 14}}

	f.bot.HandleMessage(context.Background(), 1, msg)
	assert.Empty(t, f.transport.Sent())
}

func TestTextTrigger_CooldownStartsBeforeMatching(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.bot.HandleMessage(ctx, 1, textMessage(-1001, 1, "nothing here"))
	f.clock = f.clock.Add(10 * time.Second)
	f.bot.HandleMessage(ctx, 2, textMessage(-1001, 2, "кот"))
	assert.Empty(t, f.transport.Sent())

	f.bot.HandleMessage(ctx, 3, textMessage(-1002, 3, "кот"))
	assert.Len(t, f.transport.Sent(), 1, "other chat is not affected")

	f.clock = f.clock.Add(25 * time.Second)
	f.bot.HandleMessage(ctx, 4, textMessage(-1001, 4, "кот"))
	assert.Len(t, f.transport.Sent(), 2)
}

func TestTextTrigger_SendChance(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.SendChance = 0 })
	f.bot.HandleMessage(context.Background(), 1, textMessage(-1001, 7, "кот"))
	assert.Empty(t, f.transport.Sent())
}

func TestTextTrigger_TagWithoutMedia(t *testing.T) {
	f := newFixture(t, nil)
	delete(f.catalog.media, "кот")
	f.bot.HandleMessage(context.Background(), 1, textMessage(-1001, 7, "кот"))
	assert.Empty(t, f.transport.Sent())
}

func TestTextTrigger_CatalogError(t *testing.T) {
	f := newFixture(t, nil)
	f.catalog.err = errors.New("db down")
	f.bot.HandleMessage(context.Background(), 1, textMessage(-1001, 7, "кот"))
	assert.Empty(t, f.transport.Sent())
}

func TestHandleMessage_Filters(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	old := textMessage(-1001, 1, "кот")
	old.Date = now.Add(-2 * time.Minute).Unix()
	f.bot.HandleMessage(ctx, 1, old)

	group := textMessage(-42, 2, "кот")
	group.Chat.Type = "group"
	f.bot.HandleMessage(ctx, 2, group)

	assert.Empty(t, f.transport.Sent())

	f = newFixture(t, func(o *Options) { o.SupergroupsOnly = false })
	group = textMessage(-42, 2, "кот")
	group.Chat.Type = "group"
	f.bot.HandleMessage(ctx, 2, group)
	assert.Len(t, f.transport.Sent(), 1)
}

func TestDuplicateForward(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.bot.HandleMessage(ctx, 1, forwardMessage(-1001234, 50, -100999, 5))
	assert.Empty(t, f.transport.Sent())
	require.Contains(t, f.forwards.seen, [3]int64{-1001234, -100999, 5})
	assert.Equal(t, "https://t.me/c/1234/50", f.forwards.seen[[3]int64{-1001234, -100999, 5}].MessageURL)

	f.bot.HandleMessage(ctx, 2, forwardMessage(-1001234, 60, -100999, 5))
	sent := f.transport.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "again", sent[0].Name)
	assert.Equal(t, int64(60), sent[0].ReplyTo)
	assert.Equal(t, "https://t.me/c/1234/50", sent[0].Caption)

	// the second duplicate falls in the cooldown
	f.bot.HandleMessage(ctx, 3, forwardMessage(-1001234, 61, -100999, 5))
	assert.Len(t, f.transport.Sent(), 1)
	assert.Equal(t, "https://t.me/c/1234/50", f.forwards.seen[[3]int64{-1001234, -100999, 5}].MessageURL)
}

func TestDuplicateForward_SkipsTextTrigger(t *testing.T) {
	f := newFixture(t, nil)
	msg := forwardMessage(-1001234, 50, -100999, 5)
	msg.Text = "кот"

	f.bot.HandleMessage(context.Background(), 1, msg)
	assert.Empty(t, f.transport.Sent())
}

func TestDuplicateForward_NoFeatureMedia(t *testing.T) {
	f := newFixture(t, nil)
	f.forwards.feature = nil
	ctx := context.Background()

	f.bot.HandleMessage(ctx, 1, forwardMessage(-1001234, 50, -100999, 5))
	f.bot.HandleMessage(ctx, 2, forwardMessage(-1001234, 51, -100999, 5))
	assert.Empty(t, f.transport.Sent())
}

func TestRun_HandlesBatchesUntilCancelled(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	f.transport.cancel = cancel
	f.transport.batches = [][]telegram.Update{
		{
			{UpdateID: 1, Message: textMessage(-1001, 1, "кот")},
			{UpdateID: 2, Message: textMessage(-1002, 2, "собака")},
			{UpdateID: 3},
		},
		{
			{UpdateID: 4, Message: textMessage(-1003, 3, "кот")},
		},
	}

	require.NoError(t, f.bot.Run(ctx))

	names := map[int64]string{}
	for _, s := range f.transport.Sent() {
		names[s.ChatID] = s.Name
	}
	assert.Equal(t, map[int64]string{-1001: "meow", -1002: "bark", -1003: "meow"}, names)
}

func TestMessageTokens(t *testing.T) {
	msg := &telegram.Message{
		Caption:         "Look https://go.dev NOW",
		CaptionEntities: []telegram.Entity{{Type: "url", Offset: 5, Length: 14}},
	}
	mt := NewMessageTokens(msg)
	assert.Equal(t, "Look  NOW", mt.Source())
	assert.Equal(t, []string{"look", "now"}, mt.Tokens())
}
