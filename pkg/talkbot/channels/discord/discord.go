// Package discord implements the Discord channel using discordgo. The
// gateway connection handles its own reconnection; voice notes and images
// arrive as attachments and are downloaded over plain HTTP.
package discord

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/hleserg/neuroapi-talk-bot/pkg/talkbot/channels"
)

// maxTextLen is the Discord per-message limit.
const maxTextLen = 2000

// Config holds Discord channel configuration.
type Config struct {
	// Token is the Discord bot token.
	Token string `yaml:"token"`

	// AllowedChannels restricts which channel IDs the bot responds in.
	// Empty means respond everywhere the bot can read.
	AllowedChannels []string `yaml:"allowed_channels"`
}

// Discord implements channels.Channel, EditableChannel, MediaChannel and
// PresenceChannel over the gateway API.
type Discord struct {
	cfg     Config
	logger  *slog.Logger
	session *discordgo.Session

	incoming   chan *channels.IncomingMessage
	httpClient *http.Client

	connected  atomic.Bool
	lastMsg    atomic.Value // time.Time
	errorCount atomic.Int64
}

// New creates a Discord channel.
func New(cfg Config, logger *slog.Logger) *Discord {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discord{
		cfg:        cfg,
		logger:     logger.With("component", "discord"),
		incoming:   make(chan *channels.IncomingMessage, 64),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Name returns "discord".
func (d *Discord) Name() string { return "discord" }

// Connect opens the gateway WebSocket connection.
func (d *Discord) Connect(ctx context.Context) error {
	if d.cfg.Token == "" {
		return fmt.Errorf("discord: token not configured")
	}

	session, err := discordgo.New("Bot " + d.cfg.Token)
	if err != nil {
		return fmt.Errorf("discord: creating session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	session.AddHandler(d.onMessageCreate)

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord: opening gateway: %w", err)
	}

	d.session = session
	d.connected.Store(true)
	d.logger.Info("discord connected", "bot", session.State.User.Username)
	return nil
}

// Disconnect closes the gateway connection and the incoming stream.
func (d *Discord) Disconnect() error {
	if !d.connected.Swap(false) {
		return nil
	}
	if d.session != nil {
		d.session.Close()
	}
	close(d.incoming)
	d.logger.Info("discord disconnected")
	return nil
}

func (d *Discord) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.ID == s.State.User.ID || m.Author.Bot {
		return
	}

	if len(d.cfg.AllowedChannels) > 0 {
		allowed := false
		for _, id := range d.cfg.AllowedChannels {
			if id == m.ChannelID {
				allowed = true
				break
			}
		}
		if !allowed {
			return
		}
	}

	userID, err := strconv.ParseInt(m.Author.ID, 10, 64)
	if err != nil {
		d.logger.Warn("unparseable author ID", "author", m.Author.ID)
		return
	}

	incoming := &channels.IncomingMessage{
		ID:        m.ID,
		Channel:   d.Name(),
		UserID:    userID,
		FromName:  m.Author.Username,
		ChatID:    m.ChannelID,
		Type:      channels.MessageText,
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}

	if len(m.Attachments) > 0 {
		att := m.Attachments[0]
		mediaType := inferMediaType(att.ContentType)
		incoming.Type = mediaType
		// The attachment URL doubles as the download handle.
		incoming.Media = &channels.MediaInfo{
			Type:     mediaType,
			FileID:   att.URL,
			MimeType: att.ContentType,
			FileSize: int64(att.Size),
			Caption:  m.Content,
		}
	}

	d.lastMsg.Store(time.Now())

	select {
	case d.incoming <- incoming:
	default:
		d.errorCount.Add(1)
		d.logger.Warn("incoming buffer full, dropping message", "channel_id", m.ChannelID)
	}
}

// inferMediaType maps an attachment MIME type to a message type.
func inferMediaType(contentType string) channels.MessageType {
	switch {
	case strings.HasPrefix(contentType, "audio/"):
		return channels.MessageVoice
	case strings.HasPrefix(contentType, "image/"):
		return channels.MessageImage
	default:
		return channels.MessageText
	}
}

// Send delivers a text message and returns its message ID.
func (d *Discord) Send(ctx context.Context, to string, msg *channels.OutgoingMessage) (string, error) {
	if d.session == nil {
		return "", channels.ErrChannelDisconnected
	}

	send := &discordgo.MessageSend{Content: msg.Content}
	if msg.ReplyTo != "" {
		send.Reference = &discordgo.MessageReference{MessageID: msg.ReplyTo}
	}

	sent, err := d.session.ChannelMessageSendComplex(to, send)
	if err != nil {
		d.errorCount.Add(1)
		return "", fmt.Errorf("discord: sending message: %w", err)
	}
	return sent.ID, nil
}

// Edit replaces the text of a previously sent message.
func (d *Discord) Edit(ctx context.Context, to, messageID, text string) error {
	if d.session == nil {
		return channels.ErrChannelDisconnected
	}
	if _, err := d.session.ChannelMessageEdit(to, messageID, text); err != nil {
		d.errorCount.Add(1)
		return fmt.Errorf("discord: editing message: %w", err)
	}
	return nil
}

// Delete removes a previously sent message.
func (d *Discord) Delete(ctx context.Context, to, messageID string) error {
	if d.session == nil {
		return channels.ErrChannelDisconnected
	}
	if err := d.session.ChannelMessageDelete(to, messageID); err != nil {
		d.errorCount.Add(1)
		return fmt.Errorf("discord: deleting message: %w", err)
	}
	return nil
}

// SendMedia sends a file attachment and returns the message ID.
func (d *Discord) SendMedia(ctx context.Context, to string, media *channels.MediaMessage) (string, error) {
	if d.session == nil {
		return "", channels.ErrChannelDisconnected
	}

	filename := media.Filename
	if filename == "" {
		switch media.Type {
		case channels.MessageVoice:
			filename = "voice.ogg"
		case channels.MessageImage:
			filename = "image.png"
		default:
			filename = "file"
		}
	}

	send := &discordgo.MessageSend{
		Content: media.Caption,
		Files: []*discordgo.File{
			{Name: filename, ContentType: media.MimeType, Reader: bytes.NewReader(media.Data)},
		},
	}

	sent, err := d.session.ChannelMessageSendComplex(to, send)
	if err != nil {
		d.errorCount.Add(1)
		return "", fmt.Errorf("discord: sending media: %w", err)
	}
	return sent.ID, nil
}

// DownloadMedia fetches the attachment of an incoming message.
func (d *Discord) DownloadMedia(ctx context.Context, msg *channels.IncomingMessage) ([]byte, string, error) {
	if msg.Media == nil || msg.Media.FileID == "" {
		return nil, "", fmt.Errorf("discord: message has no media")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, msg.Media.FileID, nil)
	if err != nil {
		return nil, "", fmt.Errorf("discord: creating download request: %w", err)
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		d.errorCount.Add(1)
		return nil, "", fmt.Errorf("discord: downloading attachment: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("discord: reading attachment: %w", err)
	}
	return data, msg.Media.MimeType, nil
}

// SendTyping shows a typing indicator.
func (d *Discord) SendTyping(ctx context.Context, to string, action channels.MessageType) error {
	if d.session == nil {
		return nil
	}
	return d.session.ChannelTyping(to)
}

// IsConnected reports whether the gateway is open.
func (d *Discord) IsConnected() bool { return d.connected.Load() }

// MaxTextLen returns the Discord message limit.
func (d *Discord) MaxTextLen() int { return maxTextLen }

// Health returns the channel health status.
func (d *Discord) Health() channels.HealthStatus {
	var lastAt time.Time
	if v := d.lastMsg.Load(); v != nil {
		lastAt = v.(time.Time)
	}
	return channels.HealthStatus{
		Connected:     d.connected.Load(),
		LastMessageAt: lastAt,
		ErrorCount:    int(d.errorCount.Load()),
	}
}

// Receive returns the incoming message stream.
func (d *Discord) Receive() <-chan *channels.IncomingMessage {
	return d.incoming
}
