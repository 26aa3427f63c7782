// Package telegram implements the Telegram channel on top of telebot's
// long-polling client. Text, voice notes and photos are forwarded into the
// unified message stream; commands arrive as plain text and are parsed
// upstream.
package telegram

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/telebot.v4"

	"github.com/hleserg/neuroapi-talk-bot/pkg/talkbot/channels"
)

// maxTextLen is the Telegram Bot API per-message limit.
const maxTextLen = 4096

// Config holds Telegram channel configuration.
type Config struct {
	// Token is the bot token from @BotFather.
	Token string `yaml:"token"`

	// PollTimeoutSeconds is the long-polling timeout (default 10).
	PollTimeoutSeconds int `yaml:"poll_timeout_seconds"`
}

// Telegram implements channels.Channel, EditableChannel, MediaChannel and
// PresenceChannel over the Bot API.
type Telegram struct {
	cfg      Config
	bot      *telebot.Bot
	logger   *slog.Logger
	incoming chan *channels.IncomingMessage

	connected  atomic.Bool
	lastMsgAt  atomic.Int64
	errorCount atomic.Int64
	stopOnce   sync.Once
}

// New creates a Telegram channel.
func New(cfg Config, logger *slog.Logger) *Telegram {
	if logger == nil {
		logger = slog.Default()
	}
	return &Telegram{
		cfg:      cfg,
		logger:   logger.With("component", "telegram"),
		incoming: make(chan *channels.IncomingMessage, 64),
	}
}

// Name returns "telegram".
func (t *Telegram) Name() string { return "telegram" }

// Connect creates the bot client, registers handlers and starts polling.
func (t *Telegram) Connect(ctx context.Context) error {
	if t.cfg.Token == "" {
		return fmt.Errorf("telegram: token not configured")
	}

	pollTimeout := time.Duration(t.cfg.PollTimeoutSeconds) * time.Second
	if pollTimeout <= 0 {
		pollTimeout = 10 * time.Second
	}

	bot, err := telebot.NewBot(telebot.Settings{
		Token:  t.cfg.Token,
		Poller: &telebot.LongPoller{Timeout: pollTimeout},
	})
	if err != nil {
		return fmt.Errorf("telegram: creating bot: %w", err)
	}
	t.bot = bot

	// Unregistered commands fall through to OnText, so the command parser
	// upstream sees them as regular text.
	bot.Handle(telebot.OnText, func(c telebot.Context) error {
		t.emit(c, channels.MessageText, c.Text(), nil)
		return nil
	})
	bot.Handle(telebot.OnVoice, func(c telebot.Context) error {
		v := c.Message().Voice
		t.emit(c, channels.MessageVoice, "", &channels.MediaInfo{
			Type:     channels.MessageVoice,
			FileID:   v.FileID,
			MimeType: v.MIME,
			FileSize: v.FileSize,
			Duration: v.Duration,
		})
		return nil
	})
	bot.Handle(telebot.OnPhoto, func(c telebot.Context) error {
		p := c.Message().Photo
		t.emit(c, channels.MessageImage, "", &channels.MediaInfo{
			Type:     channels.MessageImage,
			FileID:   p.FileID,
			FileSize: p.FileSize,
			Caption:  c.Message().Caption,
		})
		return nil
	})

	go func() {
		<-ctx.Done()
		t.stopOnce.Do(bot.Stop)
	}()
	go bot.Start()

	t.connected.Store(true)
	t.logger.Info("telegram connected", "bot", bot.Me.Username)
	return nil
}

// emit forwards one update into the incoming stream.
func (t *Telegram) emit(c telebot.Context, typ channels.MessageType, content string, media *channels.MediaInfo) {
	t.lastMsgAt.Store(time.Now().Unix())

	msg := &channels.IncomingMessage{
		ID:        strconv.Itoa(c.Message().ID),
		Channel:   t.Name(),
		UserID:    c.Sender().ID,
		FromName:  c.Sender().FirstName,
		ChatID:    strconv.FormatInt(c.Chat().ID, 10),
		Type:      typ,
		Content:   content,
		Timestamp: c.Message().Time(),
		Media:     media,
	}

	select {
	case t.incoming <- msg:
	default:
		t.errorCount.Add(1)
		t.logger.Warn("incoming buffer full, dropping message", "chat_id", msg.ChatID)
	}
}

// Disconnect stops polling and closes the incoming stream.
func (t *Telegram) Disconnect() error {
	if !t.connected.Swap(false) {
		return nil
	}
	if t.bot != nil {
		t.stopOnce.Do(t.bot.Stop)
	}
	close(t.incoming)
	t.logger.Info("telegram disconnected")
	return nil
}

// Send delivers a text message and returns its message ID.
func (t *Telegram) Send(ctx context.Context, to string, msg *channels.OutgoingMessage) (string, error) {
	rec, err := recipient(to)
	if err != nil {
		return "", err
	}
	sent, err := t.bot.Send(rec, msg.Content)
	if err != nil {
		t.errorCount.Add(1)
		return "", fmt.Errorf("telegram: sending message: %w", err)
	}
	return strconv.Itoa(sent.ID), nil
}

// Edit replaces the text of a previously sent message.
func (t *Telegram) Edit(ctx context.Context, to, messageID, text string) error {
	chatID, err := strconv.ParseInt(to, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chat ID %q: %w", to, err)
	}
	ref := &telebot.StoredMessage{MessageID: messageID, ChatID: chatID}
	if _, err := t.bot.Edit(ref, text); err != nil {
		t.errorCount.Add(1)
		return fmt.Errorf("telegram: editing message: %w", err)
	}
	return nil
}

// Delete removes a previously sent message.
func (t *Telegram) Delete(ctx context.Context, to, messageID string) error {
	chatID, err := strconv.ParseInt(to, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chat ID %q: %w", to, err)
	}
	ref := &telebot.StoredMessage{MessageID: messageID, ChatID: chatID}
	if err := t.bot.Delete(ref); err != nil {
		t.errorCount.Add(1)
		return fmt.Errorf("telegram: deleting message: %w", err)
	}
	return nil
}

// SendMedia sends a voice note or photo and returns its message ID.
func (t *Telegram) SendMedia(ctx context.Context, to string, media *channels.MediaMessage) (string, error) {
	rec, err := recipient(to)
	if err != nil {
		return "", err
	}

	var what any
	switch media.Type {
	case channels.MessageVoice:
		what = &telebot.Voice{
			File:    telebot.FromReader(bytes.NewReader(media.Data)),
			Caption: media.Caption,
		}
	case channels.MessageImage:
		what = &telebot.Photo{
			File:    telebot.FromReader(bytes.NewReader(media.Data)),
			Caption: media.Caption,
		}
	default:
		return "", channels.ErrMediaNotSupported
	}

	sent, err := t.bot.Send(rec, what)
	if err != nil {
		t.errorCount.Add(1)
		return "", fmt.Errorf("telegram: sending media: %w", err)
	}
	return strconv.Itoa(sent.ID), nil
}

// DownloadMedia fetches the media attached to an incoming message.
func (t *Telegram) DownloadMedia(ctx context.Context, msg *channels.IncomingMessage) ([]byte, string, error) {
	if msg.Media == nil || msg.Media.FileID == "" {
		return nil, "", fmt.Errorf("telegram: message has no media")
	}

	rc, err := t.bot.File(&telebot.File{FileID: msg.Media.FileID})
	if err != nil {
		t.errorCount.Add(1)
		return nil, "", fmt.Errorf("telegram: downloading file: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, "", fmt.Errorf("telegram: reading file: %w", err)
	}
	return data, msg.Media.MimeType, nil
}

// SendTyping shows a chat action matching the work in progress.
func (t *Telegram) SendTyping(ctx context.Context, to string, action channels.MessageType) error {
	rec, err := recipient(to)
	if err != nil {
		return err
	}
	chatAction := telebot.Typing
	switch action {
	case channels.MessageVoice:
		chatAction = telebot.RecordingAudio
	case channels.MessageImage:
		chatAction = telebot.UploadingPhoto
	}
	return t.bot.Notify(rec, chatAction)
}

// IsConnected reports whether polling is active.
func (t *Telegram) IsConnected() bool { return t.connected.Load() }

// MaxTextLen returns the Bot API message limit.
func (t *Telegram) MaxTextLen() int { return maxTextLen }

// Health returns the channel health status.
func (t *Telegram) Health() channels.HealthStatus {
	return channels.HealthStatus{
		Connected:     t.connected.Load(),
		LastMessageAt: time.Unix(t.lastMsgAt.Load(), 0),
		ErrorCount:    int(t.errorCount.Load()),
	}
}

// Receive returns the incoming message stream.
func (t *Telegram) Receive() <-chan *channels.IncomingMessage {
	return t.incoming
}

func recipient(to string) (telebot.Recipient, error) {
	id, err := strconv.ParseInt(to, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("telegram: invalid chat ID %q: %w", to, err)
	}
	return telebot.ChatID(id), nil
}
