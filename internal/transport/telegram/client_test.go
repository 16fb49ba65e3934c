package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	"github.com/mymmrac/telego/telegoapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"relay/internal/config"
	"relay/internal/logger"
	"relay/internal/transport"
	"relay/pkg/retry"
)

// fakeBot implements the calls the tests exercise; anything else panics
// through the nil embedded interface.
type fakeBot struct {
	botAPI

	batches   [][]telego.Update
	pollErrs  []error
	offsets   []int
	cancel    context.CancelFunc
	copies    []*telego.CopyMessageParams
	texts     []*telego.SendMessageParams
	chat      *telego.ChatFullInfo
	sendError error

	filePath    string
	downloadURL string
	uploads     []upload
}

type upload struct {
	method  string
	topic   int
	caption string
}

func (f *fakeBot) GetMe(context.Context) (*telego.User, error) {
	return &telego.User{ID: 1, Username: "relay_bot"}, nil
}

func (f *fakeBot) GetUpdates(_ context.Context, params *telego.GetUpdatesParams) ([]telego.Update, error) {
	f.offsets = append(f.offsets, params.Offset)
	if len(f.pollErrs) > 0 {
		err := f.pollErrs[0]
		f.pollErrs = f.pollErrs[1:]
		return nil, err
	}
	if len(f.batches) == 0 {
		f.cancel()
		return nil, context.Canceled
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch, nil
}

func (f *fakeBot) CopyMessage(_ context.Context, params *telego.CopyMessageParams) (*telego.MessageID, error) {
	f.copies = append(f.copies, params)
	if f.sendError != nil {
		return nil, f.sendError
	}
	return &telego.MessageID{MessageID: 1}, nil
}

func (f *fakeBot) SendMessage(_ context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	f.texts = append(f.texts, params)
	return &telego.Message{MessageID: 2}, nil
}

func (f *fakeBot) GetChat(context.Context, *telego.GetChatParams) (*telego.ChatFullInfo, error) {
	if f.chat == nil {
		return nil, errors.New("chat not found")
	}
	return f.chat, nil
}

func (f *fakeBot) GetFile(_ context.Context, params *telego.GetFileParams) (*telego.File, error) {
	return &telego.File{FileID: params.FileID, FilePath: f.filePath}, nil
}

func (f *fakeBot) FileDownloadURL(path string) string {
	return f.downloadURL + "/" + path
}

func (f *fakeBot) record(method string, topic int, caption string) (*telego.Message, error) {
	f.uploads = append(f.uploads, upload{method: method, topic: topic, caption: caption})
	return &telego.Message{MessageID: 3}, nil
}

func (f *fakeBot) SendPhoto(_ context.Context, p *telego.SendPhotoParams) (*telego.Message, error) {
	return f.record("sendPhoto", p.MessageThreadID, p.Caption)
}

func (f *fakeBot) SendVideo(_ context.Context, p *telego.SendVideoParams) (*telego.Message, error) {
	return f.record("sendVideo", p.MessageThreadID, p.Caption)
}

func (f *fakeBot) SendAudio(_ context.Context, p *telego.SendAudioParams) (*telego.Message, error) {
	return f.record("sendAudio", p.MessageThreadID, p.Caption)
}

func (f *fakeBot) SendVoice(_ context.Context, p *telego.SendVoiceParams) (*telego.Message, error) {
	return f.record("sendVoice", p.MessageThreadID, p.Caption)
}

func (f *fakeBot) SendAnimation(_ context.Context, p *telego.SendAnimationParams) (*telego.Message, error) {
	return f.record("sendAnimation", p.MessageThreadID, p.Caption)
}

func (f *fakeBot) SendDocument(_ context.Context, p *telego.SendDocumentParams) (*telego.Message, error) {
	return f.record("sendDocument", p.MessageThreadID, p.Caption)
}

func newTestClient(bot *fakeBot) *Client {
	c := newClient(bot, config.TelegramConfig{PollTimeoutSeconds: 1}, logger.NewFromZap(zap.NewNop()))
	c.pollRetry = retry.Policy{InitialInterval: time.Millisecond, Constant: true, Unlimited: true}
	return c
}

func TestClient_ListenFiltersChatsAndAdvancesOffset(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bot := &fakeBot{
		cancel: cancel,
		batches: [][]telego.Update{
			{
				{UpdateID: 10, Message: &telego.Message{MessageID: 1, Chat: telego.Chat{ID: -100}, Text: "a"}},
				{UpdateID: 11, Message: &telego.Message{MessageID: 2, Chat: telego.Chat{ID: -999}, Text: "ignored"}},
			},
			{
				{UpdateID: 12, ChannelPost: &telego.Message{MessageID: 3, Chat: telego.Chat{ID: -100}, Text: "b"}},
				{UpdateID: 13},
			},
		},
	}
	c := newTestClient(bot)

	var got []int
	err := c.Listen(ctx, []int64{-100}, func(_ context.Context, msg *transport.Message) error {
		got = append(got, msg.ID)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, got)
	assert.Equal(t, []int{0, 12, 14}, bot.offsets)
}

func TestClient_ListenSurvivesOutage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	outage := make([]error, 8)
	for i := range outage {
		outage[i] = errors.New("dial tcp: connection refused")
	}

	bot := &fakeBot{
		cancel:   cancel,
		pollErrs: outage,
		batches: [][]telego.Update{
			{{UpdateID: 1, Message: &telego.Message{MessageID: 7, Chat: telego.Chat{ID: -100}}}},
		},
	}
	c := newTestClient(bot)

	calls := 0
	err := c.Listen(ctx, []int64{-100}, func(context.Context, *transport.Message) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Len(t, bot.offsets, 10)
}

func TestClient_DefaultPollRetryIsUnlimited(t *testing.T) {
	c := newClient(&fakeBot{}, config.TelegramConfig{}, logger.NopLogger())
	assert.True(t, c.pollRetry.Unlimited)
	assert.Equal(t, 30*time.Second, c.pollRetry.MaxInterval)
}

func TestClient_ListenReturnsInvalidatedSession(t *testing.T) {
	bot := &fakeBot{
		cancel:   func() {},
		pollErrs: []error{&telegoapi.Error{ErrorCode: 409, Description: "Conflict"}},
	}
	c := newTestClient(bot)

	err := c.Listen(context.Background(), []int64{-100}, func(context.Context, *transport.Message) error {
		return nil
	})

	require.Error(t, err)
	assert.True(t, transport.IsSessionInvalidated(err))
	assert.Len(t, bot.offsets, 1)
}

func TestClient_Send(t *testing.T) {
	ctx := context.Background()
	to := transport.Address{ChatID: -200, TopicID: 9}

	t.Run("media is copied", func(t *testing.T) {
		bot := &fakeBot{}
		c := newTestClient(bot)

		msg := &transport.Message{ID: 5, ChatID: -100, Media: &transport.Media{Kind: transport.MediaPhoto, FileID: "f"}}
		require.NoError(t, c.Send(ctx, msg, to))

		require.Len(t, bot.copies, 1)
		assert.Equal(t, 5, bot.copies[0].MessageID)
		assert.Equal(t, 9, bot.copies[0].MessageThreadID)
		assert.Empty(t, bot.texts)
	})

	t.Run("text is resent without preview", func(t *testing.T) {
		bot := &fakeBot{}
		c := newTestClient(bot)

		msg := &transport.Message{ID: 6, ChatID: -100, Text: "hello", Entities: []transport.Entity{{Type: "bold", Length: 5}}}
		require.NoError(t, c.Send(ctx, msg, to))

		require.Len(t, bot.texts, 1)
		assert.Equal(t, "hello", bot.texts[0].Text)
		assert.Equal(t, 9, bot.texts[0].MessageThreadID)
		assert.True(t, bot.texts[0].LinkPreviewOptions.IsDisabled)
		assert.Len(t, bot.texts[0].Entities, 1)
		assert.Empty(t, bot.copies)
	})

	t.Run("protected copy is classified", func(t *testing.T) {
		bot := &fakeBot{sendError: &telegoapi.Error{ErrorCode: 400, Description: "Bad Request: message can't be copied"}}
		c := newTestClient(bot)

		msg := &transport.Message{ID: 7, ChatID: -100, Media: &transport.Media{Kind: transport.MediaVideo, FileID: "v"}}
		err := c.Send(ctx, msg, to)
		assert.True(t, transport.IsProtectedContent(err))
	})
}

func TestClient_DownloadRequiresMedia(t *testing.T) {
	c := newTestClient(&fakeBot{})
	err := c.Download(context.Background(), &transport.Message{Text: "x"}, "/tmp/unused")
	assert.ErrorIs(t, err, transport.ErrNoMedia)

	err = c.SendLocal(context.Background(), &transport.Message{Text: "x"}, transport.Address{ChatID: -200}, "/tmp/unused")
	assert.ErrorIs(t, err, transport.ErrNoMedia)
}

func TestClient_Download(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/photos/file_1.jpg" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	defer srv.Close()

	msg := &transport.Message{ID: 5, ChatID: -100, Media: &transport.Media{Kind: transport.MediaPhoto, FileID: "f1"}}

	newTarget := func(t *testing.T) string {
		path := filepath.Join(t.TempDir(), "media.jpg")
		require.NoError(t, os.WriteFile(path, []byte("stale content that is longer"), 0o600))
		return path
	}

	t.Run("writes body into existing file", func(t *testing.T) {
		c := newTestClient(&fakeBot{filePath: "photos/file_1.jpg", downloadURL: srv.URL})
		path := newTarget(t)

		require.NoError(t, c.Download(context.Background(), msg, path))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "jpeg-bytes", string(data))
	})

	t.Run("non-200 status fails", func(t *testing.T) {
		c := newTestClient(&fakeBot{filePath: "photos/missing.jpg", downloadURL: srv.URL})

		err := c.Download(context.Background(), msg, newTarget(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected status 404")
	})

	t.Run("missing file path fails", func(t *testing.T) {
		c := newTestClient(&fakeBot{downloadURL: srv.URL})

		err := c.Download(context.Background(), msg, newTarget(t))
		assert.ErrorContains(t, err, "no download path")
	})
}

func TestClient_SendLocal(t *testing.T) {
	tests := []struct {
		kind   transport.MediaKind
		method string
	}{
		{kind: transport.MediaPhoto, method: "sendPhoto"},
		{kind: transport.MediaVideo, method: "sendVideo"},
		{kind: transport.MediaAudio, method: "sendAudio"},
		{kind: transport.MediaVoice, method: "sendVoice"},
		{kind: transport.MediaAnimation, method: "sendAnimation"},
		{kind: transport.MediaDocument, method: "sendDocument"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "media")
			require.NoError(t, os.WriteFile(path, []byte("data"), 0o600))

			bot := &fakeBot{}
			c := newTestClient(bot)
			msg := &transport.Message{ID: 5, ChatID: -100, Text: "chart", Media: &transport.Media{Kind: tt.kind, FileID: "f"}}

			require.NoError(t, c.SendLocal(context.Background(), msg, transport.Address{ChatID: -200, TopicID: 9}, path))

			require.Len(t, bot.uploads, 1)
			assert.Equal(t, upload{method: tt.method, topic: 9, caption: "chart"}, bot.uploads[0])
		})
	}
}

func TestClient_ChatName(t *testing.T) {
	tests := []struct {
		name    string
		chat    *telego.ChatFullInfo
		want    string
		wantErr bool
	}{
		{name: "title", chat: &telego.ChatFullInfo{Title: "Signals"}, want: "Signals"},
		{name: "username", chat: &telego.ChatFullInfo{Username: "signals"}, want: "@signals"},
		{name: "first name", chat: &telego.ChatFullInfo{FirstName: "Ann"}, want: "Ann"},
		{name: "blank", chat: &telego.ChatFullInfo{}, wantErr: true},
		{name: "lookup failure", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(&fakeBot{chat: tt.chat})
			got, err := c.ChatName(context.Background(), -100)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
