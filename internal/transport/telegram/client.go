// Package telegram implements the relay transport on the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"relay/internal/config"
	"relay/internal/logger"
	"relay/internal/transport"
	"relay/pkg/retry"
)

var allowedUpdates = []string{"message", "channel_post"}

// botAPI is the subset of *telego.Bot the client calls.
type botAPI interface {
	GetMe(ctx context.Context) (*telego.User, error)
	GetUpdates(ctx context.Context, params *telego.GetUpdatesParams) ([]telego.Update, error)
	GetChat(ctx context.Context, params *telego.GetChatParams) (*telego.ChatFullInfo, error)
	CopyMessage(ctx context.Context, params *telego.CopyMessageParams) (*telego.MessageID, error)
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
	GetFile(ctx context.Context, params *telego.GetFileParams) (*telego.File, error)
	FileDownloadURL(filepath string) string
	SendPhoto(ctx context.Context, params *telego.SendPhotoParams) (*telego.Message, error)
	SendVideo(ctx context.Context, params *telego.SendVideoParams) (*telego.Message, error)
	SendAudio(ctx context.Context, params *telego.SendAudioParams) (*telego.Message, error)
	SendVoice(ctx context.Context, params *telego.SendVoiceParams) (*telego.Message, error)
	SendAnimation(ctx context.Context, params *telego.SendAnimationParams) (*telego.Message, error)
	SendDocument(ctx context.Context, params *telego.SendDocumentParams) (*telego.Message, error)
}

var _ transport.Client = (*Client)(nil)

type Client struct {
	bot         botAPI
	http        *http.Client
	pollTimeout int
	pollRetry   retry.Policy
	logger      logger.Logger

	mu     sync.Mutex
	offset int
}

func New(cfg config.TelegramConfig, log logger.Logger) (*Client, error) {
	opts := []telego.BotOption{telego.WithDiscardLogger()}
	if cfg.APIURL != "" {
		opts = append(opts, telego.WithAPIServer(cfg.APIURL))
	}

	bot, err := telego.NewBot(cfg.Token, opts...)
	if err != nil {
		return nil, transport.Classified(transport.ErrSessionInvalidated, fmt.Errorf("create bot: %w", err))
	}

	return newClient(bot, cfg, log), nil
}

func newClient(bot botAPI, cfg config.TelegramConfig, log logger.Logger) *Client {
	return &Client{
		bot:         bot,
		http:        &http.Client{},
		pollTimeout: cfg.PollTimeoutSeconds,
		pollRetry:   retry.UnlimitedFromConfig(cfg.PollRetry),
		logger:      log,
	}
}

// Connect checks the token against the API.
func (c *Client) Connect(ctx context.Context) error {
	me, err := c.bot.GetMe(ctx)
	if err != nil {
		return classify(err)
	}
	c.logger.InfowCtx(ctx, "Connected to Telegram",
		"bot_username", me.Username,
		"bot_id", me.ID,
	)
	return nil
}

// Listen long-polls for updates and hands messages from chats to h one at a
// time. Transient poll failures are retried under the poll retry policy,
// indefinitely by default. Session-level failures are returned classified.
func (c *Client) Listen(ctx context.Context, chats []int64, h transport.Handler) error {
	watched := make(map[int64]struct{}, len(chats))
	for _, id := range chats {
		watched[id] = struct{}{}
	}

	for {
		updates, err := c.poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		for _, u := range updates {
			c.advance(u.UpdateID)

			m := u.Message
			if m == nil {
				m = u.ChannelPost
			}
			if m == nil {
				continue
			}
			if _, ok := watched[m.Chat.ID]; !ok {
				continue
			}

			if err := h(ctx, toMessage(m)); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

func (c *Client) poll(ctx context.Context) ([]telego.Update, error) {
	var updates []telego.Update
	err := retry.RetryWithCallback(ctx, c.pollRetry, func() error {
		var err error
		updates, err = c.bot.GetUpdates(ctx, &telego.GetUpdatesParams{
			Offset:         c.currentOffset(),
			Timeout:        c.pollTimeout,
			AllowedUpdates: allowedUpdates,
		})
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return retry.NewFatalError(ctx.Err())
		}

		err = classify(err)
		if isPermanent(err) {
			return retry.NewFatalError(err)
		}
		if wait, ok := transport.FloodWait(err); ok {
			if serr := sleepCtx(ctx, wait); serr != nil {
				return retry.NewFatalError(serr)
			}
		}
		return err
	}, func(attempt int, err error, next time.Duration) {
		c.logger.WarnwCtx(ctx, "Polling failed, retrying",
			"attempt", attempt,
			"next_delay", next,
			"error", err,
		)
	})
	return updates, err
}

func (c *Client) currentOffset() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offset
}

func (c *Client) advance(updateID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if updateID >= c.offset {
		c.offset = updateID + 1
	}
}

func (c *Client) Close() error {
	return nil
}

// Send relays msg without attribution: media is copied server-side, text is
// re-sent with its entities and no link preview.
func (c *Client) Send(ctx context.Context, msg *transport.Message, to transport.Address) error {
	if msg.HasMedia() {
		_, err := c.bot.CopyMessage(ctx, &telego.CopyMessageParams{
			ChatID:          tu.ID(to.ChatID),
			MessageThreadID: to.TopicID,
			FromChatID:      tu.ID(msg.ChatID),
			MessageID:       msg.ID,
		})
		return classify(err)
	}

	_, err := c.bot.SendMessage(ctx, &telego.SendMessageParams{
		ChatID:             tu.ID(to.ChatID),
		MessageThreadID:    to.TopicID,
		Text:               msg.Text,
		Entities:           fromEntities(msg.Entities),
		LinkPreviewOptions: &telego.LinkPreviewOptions{IsDisabled: true},
	})
	return classify(err)
}

// Download fetches msg's media into path.
func (c *Client) Download(ctx context.Context, msg *transport.Message, path string) error {
	if !msg.HasMedia() {
		return transport.ErrNoMedia
	}

	file, err := c.bot.GetFile(ctx, &telego.GetFileParams{FileID: msg.Media.FileID})
	if err != nil {
		return classify(err)
	}
	if file.FilePath == "" {
		return fmt.Errorf("file %s has no download path", msg.Media.FileID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.bot.FileDownloadURL(file.FilePath), nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download file: unexpected status %d", resp.StatusCode)
	}

	out, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return out.Close()
}

// SendLocal uploads the file at path with msg's caption, using the method
// that matches the media kind.
func (c *Client) SendLocal(ctx context.Context, msg *transport.Message, to transport.Address, path string) error {
	if !msg.HasMedia() {
		return transport.ErrNoMedia
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	chatID := tu.ID(to.ChatID)
	file := tu.File(f)
	caption := msg.Text
	entities := fromEntities(msg.Entities)

	switch msg.Media.Kind {
	case transport.MediaPhoto:
		_, err = c.bot.SendPhoto(ctx, &telego.SendPhotoParams{
			ChatID: chatID, MessageThreadID: to.TopicID, Photo: file,
			Caption: caption, CaptionEntities: entities,
		})
	case transport.MediaVideo:
		_, err = c.bot.SendVideo(ctx, &telego.SendVideoParams{
			ChatID: chatID, MessageThreadID: to.TopicID, Video: file,
			Caption: caption, CaptionEntities: entities,
		})
	case transport.MediaAudio:
		_, err = c.bot.SendAudio(ctx, &telego.SendAudioParams{
			ChatID: chatID, MessageThreadID: to.TopicID, Audio: file,
			Caption: caption, CaptionEntities: entities,
		})
	case transport.MediaVoice:
		_, err = c.bot.SendVoice(ctx, &telego.SendVoiceParams{
			ChatID: chatID, MessageThreadID: to.TopicID, Voice: file,
			Caption: caption, CaptionEntities: entities,
		})
	case transport.MediaAnimation:
		_, err = c.bot.SendAnimation(ctx, &telego.SendAnimationParams{
			ChatID: chatID, MessageThreadID: to.TopicID, Animation: file,
			Caption: caption, CaptionEntities: entities,
		})
	default:
		_, err = c.bot.SendDocument(ctx, &telego.SendDocumentParams{
			ChatID: chatID, MessageThreadID: to.TopicID, Document: file,
			Caption: caption, CaptionEntities: entities,
		})
	}
	return classify(err)
}

// ChatName returns the chat's title, falling back to its username or first
// name.
func (c *Client) ChatName(ctx context.Context, chatID int64) (string, error) {
	chat, err := c.bot.GetChat(ctx, &telego.GetChatParams{ChatID: tu.ID(chatID)})
	if err != nil {
		return "", classify(err)
	}
	switch {
	case chat.Title != "":
		return chat.Title, nil
	case chat.Username != "":
		return "@" + chat.Username, nil
	case chat.FirstName != "":
		return chat.FirstName, nil
	default:
		return "", errors.New("chat has no display name")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
